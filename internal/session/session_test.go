package session

import (
	"testing"
	"time"

	"ai-character-chat-simulator/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullSetup() models.Setup {
	return models.Setup{
		CharA:     models.CharacterProfile{Name: "Eva", Identity: "captain", Personality: "careful"},
		CharB:     models.CharacterProfile{Name: "J-4X", Identity: "android", Personality: "curious"},
		Worldview: "a lonely starship",
		Model:     "gemini-exp-1206",
	}
}

func TestExportRoundTrip(t *testing.T) {
	setup := fullSetup()
	conv := []models.ChatMessage{
		models.NewSystemMessage("對話開始。"),
		models.NewMessage("Eva", "Status report."),
		models.NewMessage("J-4X", "All smiles, captain."),
	}

	data, err := Export(setup, conv)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"worldview\": ")

	up, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, KindFullSession, up.Kind)
	assert.Equal(t, setup, up.Setup)
	assert.Equal(t, conv, up.Conversation)
}

func TestExportSetupOnlyOmitsConversation(t *testing.T) {
	data, err := Export(fullSetup(), nil)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "conversation")

	up, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, KindSettings, up.Kind)
	assert.Equal(t, "gemini-exp-1206", up.Setup.Model)
}

func TestConversationFilename(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 999, time.FixedZone("X", 8*3600))
	assert.Equal(t, "ai-chat-Eva-J-4X-2025-01-01T19-04-05.json", ConversationFilename("Eva", "J-4X", at))
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind Kind
		err  error
	}{
		{
			name: "settings",
			body: `{"charA":{"name":"a","identity":"b","personality":"c"},"charB":{"name":"d","identity":"e","personality":"f"},"worldview":"w","model":"m"}`,
			kind: KindSettings,
		},
		{
			name: "empty conversation is settings",
			body: `{"charA":{"name":"a","identity":"b","personality":"c"},"charB":{"name":"d","identity":"e","personality":"f"},"worldview":"w","model":"m","conversation":[]}`,
			kind: KindSettings,
		},
		{
			name: "conversation with incomplete character is partial",
			body: `{"charA":{"name":"a"},"charB":{"name":"d","identity":"e","personality":"f"},"worldview":"w","model":"m","conversation":[{"sender":"System","text":"x"}]}`,
			kind: KindPartial,
		},
		{
			name: "only worldview",
			body: `{"worldview":"w"}`,
			kind: KindPartial,
		},
		{
			name: "null worldview still recognized",
			body: `{"worldview":null}`,
			kind: KindPartial,
		},
		{
			name: "numeric model still recognized",
			body: `{"model":7}`,
			kind: KindPartial,
		},
		{
			name: "null characters only",
			body: `{"charA":null,"charB":null}`,
			err:  ErrInvalidFormat,
		},
		{
			name: "unrelated keys",
			body: `{"foo":1}`,
			err:  ErrInvalidFormat,
		},
		{
			name: "array",
			body: `[1,2]`,
			err:  ErrInvalidFormat,
		},
		{
			name: "malformed",
			body: `{"charA":`,
			err:  ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, err := Parse([]byte(tt.body))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, up)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, up.Kind)
		})
	}
}

func TestParseAssignsMissingMessageIDs(t *testing.T) {
	body := `{"charA":{"name":"a","identity":"b","personality":"c"},"charB":{"name":"d","identity":"e","personality":"f"},"worldview":"w","model":"m","conversation":[{"sender":"System","text":"x"},{"sender":"a","text":"y"}]}`

	up, err := Parse([]byte(body))
	require.NoError(t, err)
	require.Len(t, up.Conversation, 2)
	for _, m := range up.Conversation {
		assert.NotEmpty(t, m.ID)
	}
	assert.NotEqual(t, up.Conversation[0].ID, up.Conversation[1].ID)
}

func TestPartialMergeVersusReplace(t *testing.T) {
	existing := models.Setup{
		CharA:     models.CharacterProfile{Name: "X", Identity: "Y", Personality: "Z"},
		CharB:     models.CharacterProfile{Name: "P", Identity: "Q", Personality: "R"},
		Worldview: "old world",
		Model:     "gemini-2.5-pro",
	}

	up, err := Parse([]byte(`{"charA":{"name":"X2"}}`))
	require.NoError(t, err)
	require.Equal(t, KindPartial, up.Kind)

	merged := up.Patch.Merge(existing)
	assert.Equal(t, models.CharacterProfile{Name: "X2", Identity: "Y", Personality: "Z"}, merged.CharA)
	assert.Equal(t, existing.CharB, merged.CharB)
	assert.Equal(t, "old world", merged.Worldview)
	assert.Equal(t, "gemini-2.5-pro", merged.Model)

	replaced := up.Patch.Replace()
	assert.Equal(t, models.CharacterProfile{Name: "X2"}, replaced.CharA)
	assert.Equal(t, models.CharacterProfile{}, replaced.CharB)
	assert.Equal(t, "", replaced.Worldview)
	assert.Equal(t, models.DefaultModel, replaced.Model)
}

func TestPartialIgnoresNonStringFields(t *testing.T) {
	existing := fullSetup()

	up, err := Parse([]byte(`{"charA":{"name":42,"identity":"pilot"},"model":null}`))
	require.NoError(t, err)
	require.Equal(t, KindPartial, up.Kind)

	merged := up.Patch.Merge(existing)
	assert.Equal(t, "Eva", merged.CharA.Name)
	assert.Equal(t, "pilot", merged.CharA.Identity)
	assert.Equal(t, existing.Model, merged.Model)
}
