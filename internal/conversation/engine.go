package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-character-chat-simulator/backend/internal/models"
	"ai-character-chat-simulator/backend/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultPacingDelay is the pause between two generated turns
	DefaultPacingDelay = 1500 * time.Millisecond

	startNotice        = "對話開始。"
	emptyHistoryNotice = "對話紀錄為空，無法繼續。對話已暫停。"
	blankEventText     = "[事件：]"
)

const instrumentationName = "ai-character-chat-simulator/backend/internal/conversation"

// Generator produces the next line for the character speaking on turn t, replying to prompt
type Generator interface {
	Reply(ctx context.Context, t models.Turn, prompt string) (string, error)
}

// Snapshot is a consistent copy of a conversation's observable state
type Snapshot struct {
	ID string `json:"id"`
	// Version increases with every change; a consumer keeps the highest one it has seen
	Version       uint64               `json:"version"`
	Status        Status               `json:"status"`
	Turn          models.Turn          `json:"turn"`
	Generating    bool                 `json:"generating"`
	EditingID     string               `json:"editing_id,omitempty"`
	BlockedReason string               `json:"blocked_reason,omitempty"`
	Setup         models.Setup         `json:"setup"`
	Messages      []models.ChatMessage `json:"messages"`
}

// Options configures an Engine
type Options struct {
	// PacingDelay is the wait before each advancement attempt; DefaultPacingDelay when zero
	PacingDelay time.Duration
	// Initial seeds the history; a single start notice is used when empty
	Initial []models.ChatMessage
	// BlockedReason starts the engine blocked when non-empty
	BlockedReason string
	// OnChange receives a snapshot after every mutation, outside the engine lock
	OnChange func(Snapshot)
	Logger   *logger.Logger
}

// Engine runs the turn-advancement protocol for one two-character conversation.
// All state is guarded by mu; the lock is released while a generation request is in
// flight so that pause, edit and delete stay responsive.
type Engine struct {
	id     string
	setup  models.Setup
	gen    Generator
	pacing time.Duration
	log    *logger.Logger

	onChange func(Snapshot)
	wake     chan struct{}

	// pubMu orders OnChange calls; published is the last version handed out
	pubMu     sync.Mutex
	published uint64

	tracer      trace.Tracer
	generations metric.Int64Counter
	failures    metric.Int64Counter

	mu            sync.Mutex
	history       *History
	state         state
	turn          models.Turn
	blockedReason string
	// inflight is the token of the outstanding generation request, "" when none.
	// A request can outlive the loading state when the user pauses or starts editing.
	inflight string
	version  uint64
}

// NewEngine creates a paused conversation between setup's two characters
func NewEngine(setup models.Setup, gen Generator, opts Options) *Engine {
	if opts.PacingDelay <= 0 {
		opts.PacingDelay = DefaultPacingDelay
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetGlobal()
	}

	initial := opts.Initial
	if len(initial) == 0 {
		initial = []models.ChatMessage{models.NewSystemMessage(startNotice)}
	}

	id := uuid.NewString()
	e := &Engine{
		id:            id,
		setup:         setup,
		gen:           gen,
		pacing:        opts.PacingDelay,
		log:           opts.Logger.WithComponent("conversation").WithConversation(id),
		onChange:      opts.OnChange,
		wake:          make(chan struct{}, 1),
		tracer:        otel.Tracer(instrumentationName),
		history:       NewHistory(initial),
		state:         idle(),
		turn:          models.TurnA,
		blockedReason: opts.BlockedReason,
	}
	if e.blockedReason != "" {
		e.state = blocked()
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if e.generations, err = meter.Int64Counter("simulation.generations",
		metric.WithDescription("Generated dialogue lines")); err != nil {
		e.log.LogError(err, "failed to create generations counter")
	}
	if e.failures, err = meter.Int64Counter("simulation.generation_failures",
		metric.WithDescription("Failed generation requests")); err != nil {
		e.log.LogError(err, "failed to create failures counter")
	}

	return e
}

// ID returns the conversation id
func (e *Engine) ID() string {
	return e.id
}

// Setup returns the setup the conversation was started with
func (e *Engine) Setup() models.Setup {
	return e.setup
}

// Snapshot returns a copy of the current state
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		ID:            e.id,
		Version:       e.version,
		Status:        e.state.status,
		Turn:          e.turn,
		Generating:    e.inflight != "",
		EditingID:     e.state.editingID,
		BlockedReason: e.blockedReason,
		Setup:         e.setup,
		Messages:      e.history.Messages(),
	}
}

// changedLocked bumps the version and returns the snapshot to publish
func (e *Engine) changedLocked() Snapshot {
	e.version++
	return e.snapshotLocked()
}

// mutate runs fn under the lock and publishes a snapshot when fn succeeds
func (e *Engine) mutate(fn func() error) error {
	e.mu.Lock()
	err := fn()
	var snap Snapshot
	if err == nil {
		snap = e.changedLocked()
	}
	e.mu.Unlock()

	if err == nil {
		e.publish(snap)
	}
	return err
}

// publish hands snap to OnChange unless a newer snapshot already went out. Snapshots
// are taken under mu but published after it is released, so two callers can race here.
func (e *Engine) publish(snap Snapshot) {
	select {
	case e.wake <- struct{}{}:
	default:
	}
	if e.onChange == nil {
		return
	}

	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	if snap.Version <= e.published {
		return
	}
	e.published = snap.Version
	e.onChange(snap)
}

// rest is the state a conversation falls back to when it stops running or editing
func (e *Engine) rest() state {
	if e.blockedReason != "" {
		return blocked()
	}
	return idle()
}

// Toggle flips between running and paused. Pausing does not abort an in-flight request;
// its reply is still appended when it arrives.
func (e *Engine) Toggle() (Status, error) {
	var next Status
	err := e.mutate(func() error {
		switch e.state.status {
		case StatusBlocked:
			return ErrBlocked
		case StatusEditing:
			return ErrEditing
		case StatusRunning, StatusLoading:
			e.state = e.rest()
		default:
			e.state = running()
		}
		next = e.state.status
		return nil
	})
	return next, err
}

// InjectEvent appends text as a System event and resumes the run.
// Blank text is ignored and does not resume; the first return value reports whether
// anything was appended.
func (e *Engine) InjectEvent(text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, nil
	}

	err := e.mutate(func() error {
		switch e.state.status {
		case StatusBlocked:
			return ErrBlocked
		case StatusEditing:
			return ErrEditing
		}
		e.history.Append(models.NewSystemMessage(models.EventText(text)))
		if e.state.status != StatusLoading {
			e.state = running()
		}
		return nil
	})
	return err == nil, err
}

// AddMessage appends a blank message from sender and opens it in the editor.
// System messages start as an empty event marker.
func (e *Engine) AddMessage(sender string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := e.mutate(func() error {
		if sender != models.SystemSender && sender != e.setup.CharA.Name && sender != e.setup.CharB.Name {
			return ErrInvalidSender
		}
		if e.state.status == StatusEditing {
			return ErrEditing
		}

		text := ""
		if sender == models.SystemSender {
			text = blankEventText
		}
		msg = models.NewMessage(sender, text)
		e.history.Append(msg)
		e.state = editing(msg.ID)
		return nil
	})
	return msg, err
}

// BeginEdit pauses the conversation and opens message id in the editor
func (e *Engine) BeginEdit(id string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := e.mutate(func() error {
		m, err := e.history.Get(id)
		if err != nil {
			return err
		}
		msg = m
		e.state = editing(id)
		return nil
	})
	return msg, err
}

// SaveEdit stores text into the message being edited and closes the editor
func (e *Engine) SaveEdit(text string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := e.mutate(func() error {
		if e.state.status != StatusEditing {
			return ErrNotEditing
		}
		id := e.state.editingID
		e.state = e.rest()
		if err := e.history.Update(id, text); err != nil {
			return err
		}
		msg, _ = e.history.Get(id)
		return nil
	})
	return msg, err
}

// CancelEdit closes the editor without changes
func (e *Engine) CancelEdit() error {
	return e.mutate(func() error {
		if e.state.status != StatusEditing {
			return ErrNotEditing
		}
		e.state = e.rest()
		return nil
	})
}

// UpdateMessage replaces the text of message id without going through the editor.
// Like any edit it pauses a running conversation.
func (e *Engine) UpdateMessage(id, text string) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := e.mutate(func() error {
		if err := e.history.Update(id, text); err != nil {
			return err
		}
		if e.state.active() {
			e.state = e.rest()
		}
		msg, _ = e.history.Get(id)
		return nil
	})
	return msg, err
}

// DeleteMessage removes message id. Deleting the message under edit closes the editor.
func (e *Engine) DeleteMessage(id string) error {
	return e.mutate(func() error {
		if err := e.history.Delete(id); err != nil {
			return err
		}
		if e.state.status == StatusEditing && e.state.editingID == id {
			e.state = e.rest()
		}
		return nil
	})
}

// SetBlocked marks generation unusable; a running conversation is paused
func (e *Engine) SetBlocked(reason string) {
	_ = e.mutate(func() error {
		e.blockedReason = reason
		if e.state.status != StatusEditing {
			e.state = blocked()
		}
		return nil
	})
}

// ClearBlocked lifts a previous SetBlocked; the conversation stays paused
func (e *Engine) ClearBlocked() {
	_ = e.mutate(func() error {
		e.blockedReason = ""
		if e.state.status == StatusBlocked {
			e.state = idle()
		}
		return nil
	})
}

// eligible reports whether last is something the current speaker should reply to:
// any System message, or a line from the other character.
func (e *Engine) eligible(last models.ChatMessage) bool {
	if last.IsSystem() {
		return true
	}
	return last.Sender == e.setup.Character(e.turn.Next()).Name
}

// Advance performs one advancement attempt. It is a no-op unless the conversation is
// running with no request in flight and the last message is eligible for a reply.
// It returns true when a line was generated and appended.
func (e *Engine) Advance(ctx context.Context) (bool, error) {
	e.mu.Lock()
	if e.state.status != StatusRunning || e.inflight != "" {
		e.mu.Unlock()
		return false, nil
	}

	last, ok := e.history.Last()
	if !ok {
		e.history.Append(models.NewSystemMessage(emptyHistoryNotice))
		e.state = e.rest()
		snap := e.changedLocked()
		e.mu.Unlock()
		e.log.Warn("advance on empty history, pausing")
		e.publish(snap)
		return false, nil
	}

	if !e.eligible(last) {
		e.mu.Unlock()
		return false, nil
	}

	turn := e.turn
	speaker := e.setup.Character(turn).Name
	token := uuid.NewString()
	e.inflight = token
	e.state = loading()
	snap := e.changedLocked()
	e.mu.Unlock()
	e.publish(snap)

	text, err := e.generate(ctx, turn, speaker, last.Text)

	e.mu.Lock()
	if e.inflight == token {
		e.inflight = ""
	}
	if err != nil {
		e.history.Append(models.NewSystemMessage(
			fmt.Sprintf("發生 API 錯誤。對話已暫停。詳細資訊： %s", err.Error())))
		if e.state.status == StatusLoading {
			e.state = e.rest()
		}
	} else {
		e.history.Append(models.NewMessage(speaker, text))
		e.turn = turn.Next()
		if e.state.status == StatusLoading {
			e.state = running()
		}
	}
	snap = e.changedLocked()
	e.mu.Unlock()
	e.publish(snap)

	if err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) generate(ctx context.Context, turn models.Turn, speaker, prompt string) (string, error) {
	attrs := []attribute.KeyValue{
		attribute.String("turn", string(turn)),
		attribute.String("model", e.setup.Model),
	}

	ctx, span := e.tracer.Start(ctx, "conversation.generate", trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	text, err := e.gen.Reply(ctx, turn, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if e.failures != nil {
			e.failures.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
		e.log.LogError(err, "generation failed", "turn", string(turn), "speaker", speaker)
		return "", err
	}

	if e.generations != nil {
		e.generations.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	e.log.Debug("generated line",
		"turn", string(turn),
		"speaker", speaker,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// Run drives the conversation until ctx is done: whenever the conversation is running,
// one advancement is attempted per pacing delay. Advancement happens on this goroutine
// only, so at most one generation request is ever outstanding.
func (e *Engine) Run(ctx context.Context) {
	timer := time.NewTimer(e.pacing)
	defer timer.Stop()
	if !e.isActive() {
		timer.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
			if e.isActive() {
				timer.Reset(e.pacing)
			} else {
				timer.Stop()
			}
		case <-timer.C:
			if _, err := e.Advance(ctx); err != nil && ctx.Err() == nil {
				e.log.Warn("conversation paused after generation failure", "error", err.Error())
			}
			if e.isActive() {
				timer.Reset(e.pacing)
			}
		}
	}
}

func (e *Engine) isActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.active()
}
