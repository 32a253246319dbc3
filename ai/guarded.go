package ai

import (
	"context"

	"ai-character-chat-simulator/backend/pkg/resilience"
)

// Guarded routes every session call of provider through breaker, so that a
// failing generation service is short-circuited instead of hammered on resume
func Guarded(provider Provider, breaker *resilience.CircuitBreaker) Provider {
	return &guardedProvider{provider: provider, breaker: breaker}
}

type guardedProvider struct {
	provider Provider
	breaker  *resilience.CircuitBreaker
}

func (p *guardedProvider) NewChatSession(ctx context.Context, model string, systemInstruction string) (ChatSession, error) {
	s, err := p.provider.NewChatSession(ctx, model, systemInstruction)
	if err != nil {
		return nil, err
	}
	return &guardedSession{session: s, breaker: p.breaker}, nil
}

type guardedSession struct {
	session ChatSession
	breaker *resilience.CircuitBreaker
}

func (s *guardedSession) SendMessage(ctx context.Context, text string) (string, error) {
	var reply string
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		reply, err = s.session.SendMessage(ctx, text)
		return err
	})
	return reply, err
}
