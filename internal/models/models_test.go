package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestProfilePatchMergeVersusReplace(t *testing.T) {
	existing := CharacterProfile{Name: "X", Identity: "Y", Personality: "Z"}
	patch := ProfilePatch{Name: strPtr("X2")}

	assert.Equal(t, CharacterProfile{Name: "X2", Identity: "Y", Personality: "Z"}, patch.Merge(existing))
	assert.Equal(t, CharacterProfile{Name: "X2"}, patch.Replace())
}

func TestProfilePatchMergeKeepsExplicitEmpty(t *testing.T) {
	existing := CharacterProfile{Name: "X", Identity: "Y", Personality: "Z"}
	patch := ProfilePatch{Identity: strPtr("")}

	assert.Equal(t, CharacterProfile{Name: "X", Personality: "Z"}, patch.Merge(existing))
}

func TestTurn(t *testing.T) {
	assert.Equal(t, TurnB, TurnA.Next())
	assert.Equal(t, TurnA, TurnB.Next())

	turn, ok := ParseTurn(" b ")
	assert.True(t, ok)
	assert.Equal(t, TurnB, turn)

	_, ok = ParseTurn("C")
	assert.False(t, ok)
}

func TestEnsureIDsKeepsExisting(t *testing.T) {
	msgs := EnsureIDs([]ChatMessage{{ID: "keep", Sender: "A", Text: "hi"}, {Sender: SystemSender, Text: "x"}})

	assert.Equal(t, "keep", msgs[0].ID)
	assert.NotEmpty(t, msgs[1].ID)
	assert.True(t, msgs[1].IsSystem())
}

func TestEventText(t *testing.T) {
	assert.Equal(t, "[事件：警報響起]", EventText("警報響起"))
}

func TestSetupCharacter(t *testing.T) {
	s := Setup{CharA: CharacterProfile{Name: "A"}, CharB: CharacterProfile{Name: "B"}}
	assert.Equal(t, "A", s.Character(TurnA).Name)
	assert.Equal(t, "B", s.Character(TurnB).Name)
	assert.False(t, s.Complete())
}

func TestModelOption(t *testing.T) {
	assert.Equal(t, "gemini-2.5-pro", ModelOption("gemini-2.5-pro"))
	assert.Equal(t, CustomModelOption, ModelOption("gemini-exp-1206"))
	assert.Equal(t, CustomModelOption, ModelOption(""))
}
