package models

import (
	"fmt"

	"github.com/google/uuid"
)

// SystemSender is the sender sentinel for narration, notices and injected events
const SystemSender = "System"

// ChatMessage is one line of the dialogue. ID is assigned once at creation and never reused;
// position in the history only determines display order.
type ChatMessage struct {
	ID     string `json:"id,omitempty"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// NewMessage creates a message with a fresh id
func NewMessage(sender, text string) ChatMessage {
	return ChatMessage{
		ID:     uuid.NewString(),
		Sender: sender,
		Text:   text,
	}
}

// NewSystemMessage creates a System message with a fresh id
func NewSystemMessage(text string) ChatMessage {
	return NewMessage(SystemSender, text)
}

// IsSystem reports whether the message was sent by System
func (m ChatMessage) IsSystem() bool {
	return m.Sender == SystemSender
}

// EventText wraps user supplied narration the way injected events are shown in the log
func EventText(text string) string {
	return fmt.Sprintf("[事件：%s]", text)
}

// EnsureIDs returns a copy of msgs where every message carries an id
func EnsureIDs(msgs []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		out[i] = m
	}
	return out
}
