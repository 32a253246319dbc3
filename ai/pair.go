package ai

import (
	"context"
	"errors"
	"sync"

	"ai-character-chat-simulator/backend/internal/models"
	"ai-character-chat-simulator/backend/pkg/logger"
)

// ErrNotInitialized is returned by Reply before the first successful Reinitialize
var ErrNotInitialized = errors.New("persona sessions not initialized")

// Pair owns the two persona sessions of a conversation. Both sessions are always
// replaced together so that they never disagree about the setup they were seeded with.
type Pair struct {
	provider Provider
	log      *logger.Logger

	mu       sync.RWMutex
	setup    models.Setup
	sessions map[models.Turn]ChatSession
	blocked  *BlockedError
	ready    bool
}

// NewPair creates a pair backed by provider. A nil provider means no credential is
// configured; the pair then stays blocked with a missing-key error.
func NewPair(provider Provider, log *logger.Logger) *Pair {
	p := &Pair{
		provider: provider,
		log:      log.WithComponent("persona_pair"),
	}
	if provider == nil {
		p.blocked = MissingKeyError()
	}
	return p
}

// Reinitialize discards both sessions and seeds two new ones from setup
func (p *Pair) Reinitialize(ctx context.Context, setup models.Setup) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.setup = setup
	p.ready = true

	if p.provider == nil {
		p.sessions = nil
		p.blocked = MissingKeyError()
		return p.blocked
	}

	sessions := make(map[models.Turn]ChatSession, 2)
	for _, t := range []models.Turn{models.TurnA, models.TurnB} {
		s, err := p.provider.NewChatSession(ctx, setup.Model, BuildInstruction(setup, t))
		if err != nil {
			p.log.LogError(err, "failed to initialize persona session", "model", setup.Model, "turn", string(t))
			p.sessions = nil
			p.blocked = ModelInitError(setup.Model, err)
			return p.blocked
		}
		sessions[t] = s
	}

	p.sessions = sessions
	p.blocked = nil
	p.log.Info("persona sessions initialized",
		"model", setup.Model,
		"char_a", setup.CharA.Name,
		"char_b", setup.CharB.Name,
	)
	return nil
}

// Configure reinitializes only when setup differs from the one the sessions were seeded with
func (p *Pair) Configure(ctx context.Context, setup models.Setup) error {
	p.mu.RLock()
	unchanged := p.ready && p.setup == setup
	blocked := p.blocked
	p.mu.RUnlock()

	if unchanged {
		if blocked != nil {
			return blocked
		}
		return nil
	}
	return p.Reinitialize(ctx, setup)
}

// Blocked returns the error that currently prevents generation, if any
func (p *Pair) Blocked() *BlockedError {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.blocked
}

// Reply sends prompt to the session of the character speaking on turn t
func (p *Pair) Reply(ctx context.Context, t models.Turn, prompt string) (string, error) {
	p.mu.RLock()
	session := p.sessions[t]
	blocked := p.blocked
	p.mu.RUnlock()

	if blocked != nil {
		return "", blocked
	}
	if session == nil {
		return "", ErrNotInitialized
	}
	return session.SendMessage(ctx, prompt)
}
