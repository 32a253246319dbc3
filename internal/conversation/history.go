package conversation

import (
	"errors"

	"ai-character-chat-simulator/backend/internal/models"
)

// ErrMessageNotFound is returned when an id no longer refers to a message in the history
var ErrMessageNotFound = errors.New("message not found")

// History is the ordered message log. Messages are addressed by id; the slice order is
// display order only, so deleting a message never re-targets edits aimed at another one.
// History is not safe for concurrent use; the Engine guards it.
type History struct {
	msgs []models.ChatMessage
}

// NewHistory copies initial into a new history, assigning ids where missing
func NewHistory(initial []models.ChatMessage) *History {
	return &History{msgs: models.EnsureIDs(initial)}
}

// Len returns the number of messages
func (h *History) Len() int {
	return len(h.msgs)
}

// Append adds m at the end
func (h *History) Append(m models.ChatMessage) {
	h.msgs = append(h.msgs, m)
}

// Last returns the final message, if any
func (h *History) Last() (models.ChatMessage, bool) {
	if len(h.msgs) == 0 {
		return models.ChatMessage{}, false
	}
	return h.msgs[len(h.msgs)-1], true
}

// Index returns the display position of id, or -1
func (h *History) Index(id string) int {
	for i, m := range h.msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Get returns the message with the given id
func (h *History) Get(id string) (models.ChatMessage, error) {
	i := h.Index(id)
	if i < 0 {
		return models.ChatMessage{}, ErrMessageNotFound
	}
	return h.msgs[i], nil
}

// Update replaces the text of the message with the given id
func (h *History) Update(id, text string) error {
	i := h.Index(id)
	if i < 0 {
		return ErrMessageNotFound
	}
	h.msgs[i].Text = text
	return nil
}

// Delete removes the message with the given id; later messages move up by one
func (h *History) Delete(id string) error {
	i := h.Index(id)
	if i < 0 {
		return ErrMessageNotFound
	}
	h.msgs = append(h.msgs[:i:i], h.msgs[i+1:]...)
	return nil
}

// Messages returns a copy of the log
func (h *History) Messages() []models.ChatMessage {
	out := make([]models.ChatMessage, len(h.msgs))
	copy(out, h.msgs)
	return out
}
