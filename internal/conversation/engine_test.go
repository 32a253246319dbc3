package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-character-chat-simulator/backend/internal/models"
	"ai-character-chat-simulator/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu      sync.Mutex
	calls   []string
	fail    error
	release chan struct{}
	active  int32
	maxSeen int32
}

func (g *fakeGenerator) Reply(ctx context.Context, turn models.Turn, prompt string) (string, error) {
	n := atomic.AddInt32(&g.active, 1)
	defer atomic.AddInt32(&g.active, -1)
	for {
		seen := atomic.LoadInt32(&g.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&g.maxSeen, seen, n) {
			break
		}
	}

	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, fmt.Sprintf("%s:%s", turn, prompt))
	if g.fail != nil {
		return "", g.fail
	}
	return fmt.Sprintf("%s says hi #%d", turn, len(g.calls)), nil
}

func engineSetup() models.Setup {
	return models.Setup{
		CharA:     models.CharacterProfile{Name: "Eva", Identity: "captain", Personality: "careful"},
		CharB:     models.CharacterProfile{Name: "J-4X", Identity: "android", Personality: "curious"},
		Worldview: "a lonely starship",
		Model:     "gemini-2.5-flash",
	}
}

func newTestEngine(gen Generator, opts Options) *Engine {
	opts.Logger = logger.Nop()
	return NewEngine(engineSetup(), gen, opts)
}

func senders(msgs []models.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Sender
	}
	return out
}

func TestNewEngineStartsIdleWithNotice(t *testing.T) {
	e := newTestEngine(&fakeGenerator{}, Options{})
	snap := e.Snapshot()

	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, models.TurnA, snap.Turn)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, models.SystemSender, snap.Messages[0].Sender)
	assert.Equal(t, "對話開始。", snap.Messages[0].Text)
}

func TestAdvanceAlternatesSpeakers(t *testing.T) {
	gen := &fakeGenerator{}
	e := newTestEngine(gen, Options{})
	_, err := e.Toggle()
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		ok, err := e.Advance(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}

	snap := e.Snapshot()
	assert.Equal(t, []string{"System", "Eva", "J-4X", "Eva", "J-4X"}, senders(snap.Messages))
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, models.TurnA, snap.Turn)
	assert.Equal(t, "A:對話開始。", gen.calls[0])
	assert.Equal(t, "B:"+snap.Messages[1].Text, gen.calls[1])
}

func TestAdvanceNoopWhenPaused(t *testing.T) {
	gen := &fakeGenerator{}
	e := newTestEngine(gen, Options{})

	ok, err := e.Advance(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, gen.calls)
}

func TestAdvanceSkipsIneligibleLastMessage(t *testing.T) {
	gen := &fakeGenerator{}
	e := newTestEngine(gen, Options{
		Initial: []models.ChatMessage{models.NewMessage("Eva", "my own line")},
	})
	_, err := e.Toggle()
	require.NoError(t, err)

	ok, err := e.Advance(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, gen.calls)
	assert.Equal(t, StatusRunning, e.Snapshot().Status)
}

func TestAdvanceEmptyHistoryPauses(t *testing.T) {
	gen := &fakeGenerator{}
	e := newTestEngine(gen, Options{})
	msgs := e.Snapshot().Messages
	require.NoError(t, e.DeleteMessage(msgs[0].ID))
	_, err := e.Toggle()
	require.NoError(t, err)

	ok, err := e.Advance(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	snap := e.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "對話紀錄為空，無法繼續。對話已暫停。", snap.Messages[0].Text)
	assert.Empty(t, gen.calls)
}

func TestAdvanceFailurePausesWithNotice(t *testing.T) {
	gen := &fakeGenerator{fail: errors.New("quota exceeded")}
	e := newTestEngine(gen, Options{})
	_, err := e.Toggle()
	require.NoError(t, err)

	ok, err := e.Advance(context.Background())
	require.Error(t, err)
	assert.False(t, ok)

	snap := e.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, models.TurnA, snap.Turn)
	last := snap.Messages[len(snap.Messages)-1]
	assert.Equal(t, models.SystemSender, last.Sender)
	assert.Equal(t, "發生 API 錯誤。對話已暫停。詳細資訊： quota exceeded", last.Text)
	assert.False(t, snap.Generating)
}

func TestToggleIsIdempotentPair(t *testing.T) {
	e := newTestEngine(&fakeGenerator{}, Options{})

	st, err := e.Toggle()
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, st)

	st, err = e.Toggle()
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, st)
	assert.Len(t, e.Snapshot().Messages, 1)
}

func TestToggleRejectedWhileBlockedOrEditing(t *testing.T) {
	e := newTestEngine(&fakeGenerator{}, Options{BlockedReason: "missing key"})
	assert.Equal(t, StatusBlocked, e.Snapshot().Status)

	_, err := e.Toggle()
	assert.ErrorIs(t, err, ErrBlocked)

	e.ClearBlocked()
	assert.Equal(t, StatusIdle, e.Snapshot().Status)

	_, err = e.AddMessage("Eva")
	require.NoError(t, err)
	_, err = e.Toggle()
	assert.ErrorIs(t, err, ErrEditing)
}

func TestPauseDuringFlightStillAppendsReply(t *testing.T) {
	gen := &fakeGenerator{release: make(chan struct{})}
	e := newTestEngine(gen, Options{})
	_, err := e.Toggle()
	require.NoError(t, err)

	done := make(chan bool)
	go func() {
		ok, _ := e.Advance(context.Background())
		done <- ok
	}()

	require.Eventually(t, func() bool { return e.Snapshot().Generating }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusLoading, e.Snapshot().Status)

	st, err := e.Toggle()
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, st)

	// Resume while the first request is outstanding: the next attempt must not start another.
	st, err = e.Toggle()
	require.NoError(t, err)
	require.Equal(t, StatusRunning, st)
	ok, err := e.Advance(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, e.Snapshot().Generating)

	st, err = e.Toggle()
	require.NoError(t, err)
	require.Equal(t, StatusIdle, st)

	close(gen.release)
	assert.True(t, <-done)

	snap := e.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Equal(t, models.TurnB, snap.Turn)
	assert.Equal(t, "Eva", snap.Messages[len(snap.Messages)-1].Sender)
	assert.EqualValues(t, 1, atomic.LoadInt32(&gen.maxSeen))
}

func TestInjectEvent(t *testing.T) {
	e := newTestEngine(&fakeGenerator{}, Options{})

	ok, err := e.InjectEvent("   ")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StatusIdle, e.Snapshot().Status)
	assert.Len(t, e.Snapshot().Messages, 1)

	ok, err = e.InjectEvent("  meteor storm ")
	require.NoError(t, err)
	assert.True(t, ok)

	snap := e.Snapshot()
	assert.Equal(t, StatusRunning, snap.Status)
	last := snap.Messages[len(snap.Messages)-1]
	assert.Equal(t, models.SystemSender, last.Sender)
	assert.Equal(t, "[事件：meteor storm]", last.Text)
}

func TestInjectEventMakesAnyTurnEligible(t *testing.T) {
	gen := &fakeGenerator{}
	e := newTestEngine(gen, Options{
		Initial: []models.ChatMessage{models.NewMessage("Eva", "my own line")},
	})

	_, err := e.InjectEvent("alarm")
	require.NoError(t, err)

	ok, err := e.Advance(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A:[事件：alarm]", gen.calls[0])
}

func TestAddMessage(t *testing.T) {
	e := newTestEngine(&fakeGenerator{}, Options{})

	_, err := e.AddMessage("Stranger")
	assert.ErrorIs(t, err, ErrInvalidSender)

	msg, err := e.AddMessage(models.SystemSender)
	require.NoError(t, err)
	assert.Equal(t, "[事件：]", msg.Text)

	snap := e.Snapshot()
	assert.Equal(t, StatusEditing, snap.Status)
	assert.Equal(t, msg.ID, snap.EditingID)

	_, err = e.AddMessage("Eva")
	assert.ErrorIs(t, err, ErrEditing)

	saved, err := e.SaveEdit("[事件：docking]")
	require.NoError(t, err)
	assert.Equal(t, "[事件：docking]", saved.Text)
	assert.Equal(t, StatusIdle, e.Snapshot().Status)

	msg, err = e.AddMessage("J-4X")
	require.NoError(t, err)
	assert.Equal(t, "", msg.Text)
}

func TestEditForcesPause(t *testing.T) {
	e := newTestEngine(&fakeGenerator{}, Options{})
	_, err := e.Toggle()
	require.NoError(t, err)

	first := e.Snapshot().Messages[0]
	_, err = e.BeginEdit(first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusEditing, e.Snapshot().Status)

	ok, err := e.Advance(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, e.CancelEdit())
	assert.Equal(t, StatusIdle, e.Snapshot().Status)
	assert.ErrorIs(t, e.CancelEdit(), ErrNotEditing)
	_, err = e.SaveEdit("x")
	assert.ErrorIs(t, err, ErrNotEditing)
}

func TestUpdateMessagePausesRun(t *testing.T) {
	e := newTestEngine(&fakeGenerator{}, Options{})
	_, err := e.Toggle()
	require.NoError(t, err)

	first := e.Snapshot().Messages[0]
	msg, err := e.UpdateMessage(first.ID, "rewritten")
	require.NoError(t, err)
	assert.Equal(t, "rewritten", msg.Text)

	snap := e.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.EditingID)

	ok, err := e.Advance(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateMessageKeepsBlocked(t *testing.T) {
	e := newTestEngine(&fakeGenerator{}, Options{BlockedReason: "missing key"})

	first := e.Snapshot().Messages[0]
	_, err := e.UpdateMessage(first.ID, "rewritten")
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, e.Snapshot().Status)
}

func TestEditWhileBlockedReturnsToBlocked(t *testing.T) {
	e := newTestEngine(&fakeGenerator{}, Options{BlockedReason: "missing key"})

	first := e.Snapshot().Messages[0]
	_, err := e.BeginEdit(first.ID)
	require.NoError(t, err)

	_, err = e.SaveEdit("rewritten")
	require.NoError(t, err)

	snap := e.Snapshot()
	assert.Equal(t, StatusBlocked, snap.Status)
	assert.Equal(t, "rewritten", snap.Messages[0].Text)
}

func TestDeleteMessageUnderEditExitsEditing(t *testing.T) {
	e := newTestEngine(&fakeGenerator{}, Options{})
	msg, err := e.AddMessage("Eva")
	require.NoError(t, err)

	require.NoError(t, e.DeleteMessage(msg.ID))
	snap := e.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.EditingID)

	_, err = e.UpdateMessage(msg.ID, "stale")
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.ErrorIs(t, e.DeleteMessage(msg.ID), ErrMessageNotFound)
}

func TestDeleteDoesNotRetargetEdits(t *testing.T) {
	a := models.NewMessage("Eva", "one")
	b := models.NewMessage("J-4X", "two")
	e := newTestEngine(&fakeGenerator{}, Options{Initial: []models.ChatMessage{a, b}})

	require.NoError(t, e.DeleteMessage(a.ID))
	_, err := e.UpdateMessage(b.ID, "two edited")
	require.NoError(t, err)

	msgs := e.Snapshot().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "two edited", msgs[0].Text)
}

func TestSetBlockedPausesRun(t *testing.T) {
	e := newTestEngine(&fakeGenerator{}, Options{})
	_, err := e.Toggle()
	require.NoError(t, err)

	e.SetBlocked("model init failed")
	snap := e.Snapshot()
	assert.Equal(t, StatusBlocked, snap.Status)
	assert.Equal(t, "model init failed", snap.BlockedReason)

	_, err = e.InjectEvent("anything")
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestOnChangePublishesSnapshots(t *testing.T) {
	var mu sync.Mutex
	var seen []Status
	e := NewEngine(engineSetup(), &fakeGenerator{}, Options{
		Logger: logger.Nop(),
		OnChange: func(s Snapshot) {
			mu.Lock()
			seen = append(seen, s.Status)
			mu.Unlock()
		},
	})

	_, err := e.Toggle()
	require.NoError(t, err)
	_, err = e.Advance(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusRunning, StatusLoading, StatusRunning}, seen)
}

func TestPublishedSnapshotsNeverGoBackwards(t *testing.T) {
	var mu sync.Mutex
	var versions []uint64
	var last Snapshot
	e := NewEngine(engineSetup(), &fakeGenerator{}, Options{
		Logger: logger.Nop(),
		OnChange: func(s Snapshot) {
			mu.Lock()
			versions = append(versions, s.Version)
			last = s
			mu.Unlock()
		},
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 200 {
			_, _ = e.Advance(context.Background())
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			_, _ = e.Toggle()
		}
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, versions)
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}

	final := e.Snapshot()
	assert.Equal(t, final.Version, last.Version)
	assert.Equal(t, final.Status, last.Status)
	assert.Equal(t, len(final.Messages), len(last.Messages))
}

func TestRunAdvancesOnPacing(t *testing.T) {
	gen := &fakeGenerator{}
	e := newTestEngine(gen, Options{PacingDelay: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	_, err := e.Toggle()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(e.Snapshot().Messages) >= 4
	}, 2*time.Second, 5*time.Millisecond)

	_, err = e.Toggle()
	require.NoError(t, err)
	cancel()

	msgs := e.Snapshot().Messages
	for i := 1; i < len(msgs); i++ {
		if i%2 == 1 {
			assert.Equal(t, "Eva", msgs[i].Sender)
		} else {
			assert.Equal(t, "J-4X", msgs[i].Sender)
		}
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&gen.maxSeen))
}
