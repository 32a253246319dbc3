package conversation

import (
	"testing"

	"ai-character-chat-simulator/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryAssignsMissingIDs(t *testing.T) {
	h := NewHistory([]models.ChatMessage{{Sender: "System", Text: "start"}})

	last, ok := h.Last()
	require.True(t, ok)
	assert.NotEmpty(t, last.ID)
}

func TestHistoryDeleteKeepsOtherIDsStable(t *testing.T) {
	a := models.NewMessage("Eva", "one")
	b := models.NewMessage("J-4X", "two")
	c := models.NewMessage("Eva", "three")
	h := NewHistory([]models.ChatMessage{a, b, c})

	require.NoError(t, h.Delete(b.ID))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 1, h.Index(c.ID))

	require.NoError(t, h.Update(c.ID, "edited"))
	got, err := h.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Text)

	assert.ErrorIs(t, h.Update(b.ID, "x"), ErrMessageNotFound)
	assert.ErrorIs(t, h.Delete(b.ID), ErrMessageNotFound)
}

func TestHistoryMessagesIsCopy(t *testing.T) {
	h := NewHistory([]models.ChatMessage{models.NewSystemMessage("start")})

	msgs := h.Messages()
	msgs[0].Text = "changed"

	last, _ := h.Last()
	assert.Equal(t, "start", last.Text)
}

func TestHistoryLastOnEmpty(t *testing.T) {
	h := NewHistory(nil)
	_, ok := h.Last()
	assert.False(t, ok)
}
