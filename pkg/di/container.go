package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-character-chat-simulator/backend/ai"
	"ai-character-chat-simulator/backend/internal/service"
	"ai-character-chat-simulator/backend/internal/setup"
	"ai-character-chat-simulator/backend/internal/ws"
	"ai-character-chat-simulator/backend/pkg/config"
	"ai-character-chat-simulator/backend/pkg/health"
	"ai-character-chat-simulator/backend/pkg/kvstore"
	"ai-character-chat-simulator/backend/pkg/logger"
	"ai-character-chat-simulator/backend/pkg/resilience"
	"ai-character-chat-simulator/backend/pkg/secrets"
)

// Container holds all the dependencies for the application
type Container struct {
	Config    *config.Config
	Logger    *logger.Logger
	Store     kvstore.Store
	Secrets   secrets.Manager
	Breaker   *resilience.CircuitBreaker
	Pair      *ai.Pair
	Setup     *setup.Service
	Simulator *service.Simulator
	Hub       *ws.Hub
	Health    *health.Checker
}

// Options lets tests replace the external dependencies
type Options struct {
	// Store overrides the configured key-value store
	Store kvstore.Store
	// Provider overrides the Gemini provider; leave nil to build it from the API key
	Provider ai.Provider
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*Container, error) {
	store := opts.Store
	if store == nil {
		var err error
		if store, err = kvstore.Open(ctx, cfg, log); err != nil {
			return nil, err
		}
	}

	secretManager, err := secrets.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets manager: %w", err)
	}

	provider := opts.Provider
	if provider == nil {
		if provider, err = buildProvider(ctx, secretManager, cfg.AI.APIKeyName); err != nil {
			return nil, err
		}
		if provider == nil {
			log.Warn("generation API key not configured; conversations will start blocked",
				"key", secrets.EnvKey(cfg.AI.APIKeyName))
		}
	}

	breaker := resilience.NewCircuitBreaker(resilience.DefaultConfig("generation"), log)
	if provider != nil {
		provider = ai.Guarded(provider, breaker)
	}

	c := &Container{
		Config:  cfg,
		Logger:  log,
		Store:   store,
		Secrets: secretManager,
		Breaker: breaker,
		Pair:    ai.NewPair(provider, log),
		Setup:   setup.NewService(ctx, store, log),
	}

	c.Hub = ws.NewHub(c.state, cfg.Security.AllowedOrigins, log)
	c.Simulator = service.NewSimulator(c.Setup, c.Pair, c.Hub, log, service.Options{
		PacingDelay: cfg.Simulation.PacingDelay,
	})

	c.Health = health.NewChecker(log, 30*time.Second)
	c.Health.RegisterStoreCheck(store.Ping)
	c.Health.RegisterGeneratorCheck(func() string {
		if blocked := c.Pair.Blocked(); blocked != nil {
			return blocked.Message
		}
		if c.Breaker.State() == resilience.StateOpen {
			return "generation service failing; calls are paused"
		}
		return ""
	})

	if err := c.Pair.Configure(ctx, c.Setup.Current()); err != nil {
		log.Warn("persona sessions unavailable at startup", "error", err.Error())
	}

	return c, nil
}

// buildProvider returns nil without error when no key is configured
func buildProvider(ctx context.Context, m secrets.Manager, keyName string) (ai.Provider, error) {
	key, err := m.GetSecret(ctx, keyName)
	if errors.Is(err, secrets.ErrSecretNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read generation API key: %w", err)
	}

	p, err := ai.NewGeminiProvider(ctx, key)
	if errors.Is(err, ai.ErrMissingAPIKey) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}
	return p, nil
}

// state is what a freshly connected websocket client receives
func (c *Container) state() []ws.Message {
	msgs := []ws.Message{{Type: service.EventSetup, Content: c.Simulator.SetupView()}}
	if e, err := c.Simulator.Conversation(); err == nil {
		msgs = append(msgs, ws.Message{Type: service.EventSnapshot, Content: e.Snapshot()})
	}
	return msgs
}

// Close stops the conversation and releases the store
func (c *Container) Close() error {
	c.Simulator.Close()
	return c.Store.Close()
}
