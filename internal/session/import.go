package session

import (
	"bytes"
	"encoding/json"
	"errors"

	"ai-character-chat-simulator/backend/internal/models"
)

// User facing rejection messages
var (
	ErrInvalidFormat = errors.New("無效的檔案格式。請確認檔案包含角色與世界觀設定。")
	ErrMalformed     = errors.New("讀取檔案失敗。請確認檔案為正確的 JSON 格式。")
)

// Kind classifies an uploaded file
type Kind string

const (
	// KindFullSession is a complete setup plus a non-empty conversation
	KindFullSession Kind = "full_session"
	// KindSettings is a complete setup, applied directly
	KindSettings Kind = "settings"
	// KindPartial has some recognized fields and needs merge or replace
	KindPartial Kind = "partial"
)

// Upload is a classified import. Setup and Conversation are set for full sessions and
// settings; Patch is always set and carries the recognized fields as they were found.
type Upload struct {
	Kind         Kind                 `json:"kind"`
	Setup        models.Setup         `json:"setup"`
	Conversation []models.ChatMessage `json:"conversation,omitempty"`
	Patch        Patch                `json:"-"`
}

// Patch is the sparse view of an upload. A nil profile patch means the key was missing
// or null; nil Worldview/Model mean the key was missing or not a string.
type Patch struct {
	CharA     *models.ProfilePatch
	CharB     *models.ProfilePatch
	Worldview *string
	Model     *string
}

// Merge overlays the patch on base field by field
func (p Patch) Merge(base models.Setup) models.Setup {
	if p.CharA != nil {
		base.CharA = p.CharA.Merge(base.CharA)
	}
	if p.CharB != nil {
		base.CharB = p.CharB.Merge(base.CharB)
	}
	if p.Worldview != nil {
		base.Worldview = *p.Worldview
	}
	if p.Model != nil {
		base.Model = *p.Model
	}
	return base
}

// Replace builds a setup from the patch alone. Missing fields are blank, except an
// empty model which falls back to models.DefaultModel.
func (p Patch) Replace() models.Setup {
	var s models.Setup
	if p.CharA != nil {
		s.CharA = p.CharA.Replace()
	}
	if p.CharB != nil {
		s.CharB = p.CharB.Replace()
	}
	if p.Worldview != nil {
		s.Worldview = *p.Worldview
	}
	s.Model = models.DefaultModel
	if p.Model != nil && *p.Model != "" {
		s.Model = *p.Model
	}
	return s
}

// Parse classifies raw file content. Rejected files return ErrMalformed or ErrInvalidFormat.
func Parse(data []byte) (*Upload, error) {
	if !json.Valid(data) {
		return nil, ErrMalformed
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		// valid JSON that is not an object carries no recognized keys
		return nil, ErrInvalidFormat
	}

	var patch Patch
	recognized := false

	if v, ok := raw["charA"]; ok && present(v) {
		recognized = true
		patch.CharA = profilePatch(v)
	}
	if v, ok := raw["charB"]; ok && present(v) {
		recognized = true
		patch.CharB = profilePatch(v)
	}
	if v, ok := raw["worldview"]; ok {
		recognized = true
		patch.Worldview = stringValue(v)
	}
	if v, ok := raw["model"]; ok {
		recognized = true
		patch.Model = stringValue(v)
	}

	complete := patch.CharA != nil && patch.CharA.Replace().Complete() &&
		patch.CharB != nil && patch.CharB.Replace().Complete() &&
		patch.Worldview != nil && patch.Model != nil

	if complete {
		up := &Upload{Kind: KindSettings, Setup: patch.Replace(), Patch: patch}
		// Replace would default an empty model; a complete upload keeps it verbatim
		up.Setup.Model = *patch.Model

		if conv := conversation(raw["conversation"]); len(conv) > 0 {
			up.Kind = KindFullSession
			up.Conversation = conv
		}
		return up, nil
	}

	if recognized {
		return &Upload{Kind: KindPartial, Patch: patch}, nil
	}
	return nil, ErrInvalidFormat
}

// present reports whether v is a value that counts as supplied: not null and not one
// of the falsy scalars
func present(v json.RawMessage) bool {
	switch string(bytes.TrimSpace(v)) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

func stringValue(v json.RawMessage) *string {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	return &s
}

// profilePatch keeps the string-valued profile fields of an object; anything else yields
// an empty patch so the key still counts as recognized
func profilePatch(v json.RawMessage) *models.ProfilePatch {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(v, &fields); err != nil {
		return &models.ProfilePatch{}
	}
	p := &models.ProfilePatch{}
	if f, ok := fields["name"]; ok {
		p.Name = stringValue(f)
	}
	if f, ok := fields["identity"]; ok {
		p.Identity = stringValue(f)
	}
	if f, ok := fields["personality"]; ok {
		p.Personality = stringValue(f)
	}
	return p
}

// conversation decodes a message array, assigning ids to messages that lack one.
// Anything that is not a message array is treated as no conversation.
func conversation(v json.RawMessage) []models.ChatMessage {
	if v == nil {
		return nil
	}
	var msgs []models.ChatMessage
	if err := json.Unmarshal(v, &msgs); err != nil {
		return nil
	}
	return models.EnsureIDs(msgs)
}
