package service

import (
	"context"
	"errors"

	"ai-character-chat-simulator/backend/internal/conversation"
	"ai-character-chat-simulator/backend/internal/session"
)

// Choice is the user's answer to a pending upload
type Choice string

const (
	ChoiceSettingsOnly     Choice = "settings_only"
	ChoiceWithConversation Choice = "with_conversation"
	ChoiceMerge            Choice = "merge"
	ChoiceReplace          Choice = "replace"
	ChoiceCancel           Choice = "cancel"
)

var (
	// ErrNoPendingUpload is returned when a choice does not fit the pending upload
	ErrNoPendingUpload = errors.New("no pending upload accepts this choice")
	// ErrUnknownChoice is returned for a choice outside the known set
	ErrUnknownChoice = errors.New("unknown upload choice")
)

func choicesFor(kind session.Kind) []Choice {
	switch kind {
	case session.KindFullSession:
		return []Choice{ChoiceSettingsOnly, ChoiceWithConversation, ChoiceCancel}
	case session.KindPartial:
		return []Choice{ChoiceMerge, ChoiceReplace, ChoiceCancel}
	}
	return nil
}

// ImportResult reports what an upload did
type ImportResult struct {
	Kind    session.Kind `json:"kind"`
	Applied bool         `json:"applied"`
	Setup   SetupView    `json:"setup"`
}

// Import classifies data. Complete settings are applied at once; full sessions and
// partial files are held until Resolve. Rejected files change nothing.
func (s *Simulator) Import(ctx context.Context, data []byte) (*ImportResult, error) {
	up, err := session.Parse(data)
	if err != nil {
		s.log.Warn("rejected upload", "error", err.Error())
		return nil, err
	}

	if up.Kind == session.KindSettings {
		if s.active() {
			return nil, ErrConversationActive
		}
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()

		s.setup.Update(ctx, up.Setup)
		return &ImportResult{Kind: up.Kind, Applied: true, Setup: s.SetupView()}, nil
	}

	s.mu.Lock()
	s.pending = up
	s.mu.Unlock()

	s.log.Info("upload waiting for decision", "kind", string(up.Kind))
	view := s.SetupView()
	s.publish(EventSetup, view)
	return &ImportResult{Kind: up.Kind, Setup: view}, nil
}

// ResolveResult is the outcome of Resolve. Conversation is set when the upload
// started a conversation.
type ResolveResult struct {
	Setup        SetupView              `json:"setup"`
	Conversation *conversation.Snapshot `json:"conversation,omitempty"`
}

// Resolve applies the user's choice to the pending upload
func (s *Simulator) Resolve(ctx context.Context, choice Choice) (*ResolveResult, error) {
	s.mu.Lock()
	up := s.pending
	s.mu.Unlock()

	if choice == ChoiceCancel {
		s.clearPending(up)
		view := s.SetupView()
		s.publish(EventSetup, view)
		return &ResolveResult{Setup: view}, nil
	}

	var allowed bool
	switch choice {
	case ChoiceSettingsOnly, ChoiceWithConversation:
		allowed = up != nil && up.Kind == session.KindFullSession
	case ChoiceMerge, ChoiceReplace:
		allowed = up != nil && up.Kind == session.KindPartial
	default:
		return nil, ErrUnknownChoice
	}
	if !allowed {
		return nil, ErrNoPendingUpload
	}
	if s.active() {
		return nil, ErrConversationActive
	}

	next := up.Setup
	switch choice {
	case ChoiceMerge:
		next = up.Patch.Merge(s.setup.Current())
	case ChoiceReplace:
		next = up.Patch.Replace()
	}

	s.clearPending(up)
	s.setup.Update(ctx, next)

	result := &ResolveResult{}
	if choice == ChoiceWithConversation {
		snap, err := s.Start(ctx, up.Conversation)
		if err != nil {
			return nil, err
		}
		result.Conversation = &snap
	}
	result.Setup = s.SetupView()
	return result, nil
}

// clearPending drops up if it is still the pending upload
func (s *Simulator) clearPending(up *session.Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == up {
		s.pending = nil
	}
}
