// Package session moves setups and conversations in and out of the simulator as JSON files.
package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-character-chat-simulator/backend/internal/models"
)

// SetupFilename is the download name of a setup-only export
const SetupFilename = "ai-characters-setting.json"

// Export renders the envelope as indented JSON. A nil conversation is omitted.
func Export(setup models.Setup, conversation []models.ChatMessage) ([]byte, error) {
	data, err := json.MarshalIndent(models.NewSimulationData(setup, conversation), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return data, nil
}

// ConversationFilename names a conversation export after both characters and the UTC time
// at second precision, e.g. ai-chat-Eva-J-4X-2025-01-02T03-04-05.json
func ConversationFilename(a, b string, at time.Time) string {
	ts := strings.ReplaceAll(at.UTC().Format("2006-01-02T15:04:05"), ":", "-")
	return fmt.Sprintf("ai-chat-%s-%s-%s.json", a, b, ts)
}
