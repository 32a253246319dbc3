package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-character-chat-simulator/backend/ai"
	"ai-character-chat-simulator/backend/internal/conversation"
	"ai-character-chat-simulator/backend/internal/models"
	"ai-character-chat-simulator/backend/internal/session"
	"ai-character-chat-simulator/backend/internal/setup"
	"ai-character-chat-simulator/backend/pkg/logger"
)

var (
	// ErrNoConversation is returned by conversation operations before Start or after End
	ErrNoConversation = errors.New("no conversation in progress")
	// ErrConversationActive is returned when the setup is changed while a conversation runs
	ErrConversationActive = errors.New("setup cannot change while a conversation is in progress")
)

// Event types pushed to subscribers
const (
	EventSnapshot = "snapshot"
	EventSetup    = "setup"
	EventEnded    = "ended"
)

// Publisher fans events out to connected clients
type Publisher interface {
	Publish(eventType string, content any)
}

// Options tunes the simulator
type Options struct {
	PacingDelay time.Duration
}

// Simulator is the single-user application core: the active setup, at most one running
// conversation and at most one upload waiting for the user's decision.
type Simulator struct {
	setup     *setup.Service
	pair      *ai.Pair
	publisher Publisher
	base      *logger.Logger
	log       *logger.Logger
	opts      Options

	mu      sync.Mutex
	engine  *conversation.Engine
	stop    context.CancelFunc
	done    chan struct{}
	pending *session.Upload
}

// NewSimulator wires the setup service to the persona pair: every setup change
// reconfigures both persona sessions.
func NewSimulator(setupSvc *setup.Service, pair *ai.Pair, publisher Publisher, log *logger.Logger, opts Options) *Simulator {
	s := &Simulator{
		setup:     setupSvc,
		pair:      pair,
		publisher: publisher,
		base:      log,
		log:       log.WithComponent("simulator"),
		opts:      opts,
	}

	setupSvc.Subscribe(func(ctx context.Context, next models.Setup) {
		if err := pair.Configure(ctx, next); err != nil {
			s.log.Warn("persona sessions unavailable", "error", err.Error())
		}
		s.publish(EventSetup, s.SetupView())
	})

	return s
}

func (s *Simulator) publish(eventType string, content any) {
	if s.publisher != nil {
		s.publisher.Publish(eventType, content)
	}
}

// SetupView is the setup screen state
type SetupView struct {
	Setup            models.Setup `json:"setup"`
	ModelOption      string       `json:"model_option"`
	PredefinedModels []string     `json:"predefined_models"`
	Pending          *PendingView `json:"pending,omitempty"`
}

// PendingView describes an upload waiting for a decision
type PendingView struct {
	Kind    session.Kind `json:"kind"`
	Choices []Choice     `json:"choices"`
}

// SetupView returns the active setup with its selector state
func (s *Simulator) SetupView() SetupView {
	current := s.setup.Current()
	view := SetupView{
		Setup:            current,
		ModelOption:      models.ModelOption(current.Model),
		PredefinedModels: models.PredefinedModels,
	}

	s.mu.Lock()
	if s.pending != nil {
		view.Pending = &PendingView{Kind: s.pending.Kind, Choices: choicesFor(s.pending.Kind)}
	}
	s.mu.Unlock()

	return view
}

// UpdateSetup replaces the active setup. Validation happens at Start; any values may
// be saved in between, like a form being filled in.
func (s *Simulator) UpdateSetup(ctx context.Context, next models.Setup) (SetupView, error) {
	if s.active() {
		return SetupView{}, ErrConversationActive
	}
	s.setup.Update(ctx, next)
	return s.SetupView(), nil
}

// ExportSetup renders the setup-only file
func (s *Simulator) ExportSetup() (string, []byte, error) {
	data, err := session.Export(s.setup.Current(), nil)
	if err != nil {
		return "", nil, err
	}
	return session.SetupFilename, data, nil
}

func (s *Simulator) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine != nil
}

// Start validates the active setup and opens a conversation seeded with initial,
// or with the start notice when initial is empty. A running conversation is replaced.
func (s *Simulator) Start(ctx context.Context, initial []models.ChatMessage) (conversation.Snapshot, error) {
	current := s.setup.Current()
	if err := setup.Validate(current); err != nil {
		return conversation.Snapshot{}, err
	}

	// every conversation gets freshly seeded persona sessions with no earlier dialogue
	var reason string
	if err := s.pair.Reinitialize(ctx, current); err != nil {
		var blocked *ai.BlockedError
		if !errors.As(err, &blocked) {
			return conversation.Snapshot{}, err
		}
		reason = blocked.Message
	}

	s.End()

	engine := conversation.NewEngine(current, s.pair, conversation.Options{
		PacingDelay:   s.opts.PacingDelay,
		Initial:       initial,
		BlockedReason: reason,
		Logger:        s.base,
		OnChange: func(snap conversation.Snapshot) {
			s.publish(EventSnapshot, snap)
		},
	})

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	s.mu.Lock()
	s.engine = engine
	s.stop = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		engine.Run(runCtx)
	}()

	snap := engine.Snapshot()
	s.log.Info("conversation started",
		"conversation_id", snap.ID,
		"messages", len(snap.Messages),
		"blocked", reason != "",
	)
	s.publish(EventSnapshot, snap)
	return snap, nil
}

// End stops the running conversation, if any, and returns to setup.
// A reply still in flight is discarded along with the conversation.
func (s *Simulator) End() {
	s.mu.Lock()
	engine, stop, done := s.engine, s.stop, s.done
	s.engine, s.stop, s.done = nil, nil, nil
	s.mu.Unlock()

	if engine == nil {
		return
	}
	stop()
	<-done
	s.log.Info("conversation ended", "conversation_id", engine.ID())
	s.publish(EventEnded, map[string]string{"id": engine.ID()})
}

// Conversation returns the running engine
func (s *Simulator) Conversation() (*conversation.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil, ErrNoConversation
	}
	return s.engine, nil
}

// ExportConversation renders the running conversation together with its setup
func (s *Simulator) ExportConversation(now time.Time) (string, []byte, error) {
	engine, err := s.Conversation()
	if err != nil {
		return "", nil, err
	}

	snap := engine.Snapshot()
	data, err := session.Export(snap.Setup, snap.Messages)
	if err != nil {
		return "", nil, err
	}
	return session.ConversationFilename(snap.Setup.CharA.Name, snap.Setup.CharB.Name, now), data, nil
}

// Close stops the running conversation
func (s *Simulator) Close() {
	s.End()
}
