package turnengine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/artvoice/turnengine/internal/sessioncore"
)

func newTestEngine(processTurn ProcessTurnFunc) (*Engine, *[]string) {
	var dispatched []string
	var mu sync.Mutex
	sessCtx := sessioncore.New("engine-test-session", "conn-1", sessioncore.TransportBrowser)
	e := New(Config{
		SessionContext: sessCtx,
		QueueCapacity:  20,
		ProcessTurn:    processTurn,
		DispatchTTS: func(ctx context.Context, text, voiceOverride string) error {
			mu.Lock()
			dispatched = append(dispatched, text)
			mu.Unlock()
			return nil
		},
	})
	return e, &dispatched
}

// TestEngine_OneTurnAtATime exercises the "one-turn-at-a-time" property
// (§8): Lane B's handleFinal runs process_turn synchronously in its own
// loop, so concurrently enqueued FINAL events are observed by process_turn
// one at a time, never overlapping.
func TestEngine_OneTurnAtATime(t *testing.T) {
	is := is.New(t)
	var active int32
	var maxObservedConcurrency int32

	processTurn := func(ctx context.Context, input TurnInput) (*TurnResult, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			cur := atomic.LoadInt32(&maxObservedConcurrency)
			if n <= cur || atomic.CompareAndSwapInt32(&maxObservedConcurrency, cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return &TurnResult{AgentName: "agent", ResponseText: input.Text}, nil
	}

	e, _ := newTestEngine(processTurn)
	ctx, cancel := context.WithCancel(context.Background())

	go e.Run(ctx)

	for i := 0; i < 5; i++ {
		e.OnFinal(ctx, "hello there", "en", "caller")
	}

	// Give Lane B time to drain all 5 turns serially.
	time.Sleep(100 * time.Millisecond)
	cancel()

	is.Equal(atomic.LoadInt32(&maxObservedConcurrency), int32(1))
}

// TestEngine_CancellationBound exercises the "cancellation bound" property:
// once the session's cancel signal is set, process_turn must observe it and
// return promptly rather than run to its full per-turn timeout.
func TestEngine_CancellationBound(t *testing.T) {
	is := is.New(t)
	returned := make(chan struct{})

	processTurn := func(ctx context.Context, input TurnInput) (*TurnResult, error) {
		defer close(returned)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return &TurnResult{Interrupted: true}, nil
			case <-ticker.C:
			}
		}
	}

	e, _ := newTestEngine(processTurn)
	ctx := context.Background()

	go e.handleFinal(ctx, WorkEvent{Kind: EventFinal, Text: "long running turn"})
	time.Sleep(10 * time.Millisecond)
	e.sessCtx.RequestCancel()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("process_turn did not return promptly after cancellation")
	}
	is.True(true)
}

// TestEngine_BargeInSuppressionCorrectness exercises barge-in gating: a
// suppressed engine ignores ScheduleBargeIn entirely, and an IDLE engine (no
// turn/speech in flight) does not accept a barge-in either.
func TestEngine_BargeInSuppressionCorrectness(t *testing.T) {
	is := is.New(t)
	e, _ := newTestEngine(func(ctx context.Context, input TurnInput) (*TurnResult, error) {
		return &TurnResult{}, nil
	})

	var handlerCalled bool
	handler := func() { handlerCalled = true }

	// IDLE: AcceptsBargeIn() is false, so the handler must not fire.
	e.ScheduleBargeIn(handler)
	is.True(!handlerCalled)

	e.state.ToProcessing()
	e.SetBargeInSuppressed(true)
	e.ScheduleBargeIn(handler)
	is.True(!handlerCalled) // suppressed, even though state accepts barge-in

	e.SetBargeInSuppressed(false)
	e.ScheduleBargeIn(handler)
	is.True(handlerCalled) // not suppressed and state accepts it
}

func TestEngine_HandleFinal_ReturnsToIdleWithoutDispatchingItself(t *testing.T) {
	is := is.New(t)
	e, dispatched := newTestEngine(func(ctx context.Context, input TurnInput) (*TurnResult, error) {
		return &TurnResult{AgentName: "billing", ResponseText: "done", ToolCalls: []string{"lookup_balance"}}, nil
	})

	e.handleFinal(context.Background(), WorkEvent{Kind: EventFinal, Text: "what's my balance"})

	is.Equal(e.state.Current(), StateIdle) // handleFinal always returns to idle
	is.Equal(len(*dispatched), 0)          // this engine's fake process_turn dispatches nothing itself
}

func TestEngine_HandleDirectTTS_TransitionsThroughSpeaking(t *testing.T) {
	is := is.New(t)
	e, dispatched := newTestEngine(nil)

	e.handleDirectTTS(context.Background(), WorkEvent{Kind: EventTTSResponse, Text: "hello"})

	is.Equal(e.state.Current(), StateIdle)
	is.Equal(len(*dispatched), 1)
	is.Equal((*dispatched)[0], "hello")
}
