// Package turnengine implements the Turn Engine (C4): the three-lane
// concurrency core coordinating audio ingress, serialized turn processing,
// and barge-in cancellation. Grounded on pkg/job.JobContext's cancellation
// plumbing and pkg/voice.AudioGate's suppressed-flag pattern, generalized
// into the full lane model §4.4 describes.
package turnengine

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/artvoice/turnengine/internal/config"
	"github.com/artvoice/turnengine/internal/sessioncore"
	"github.com/artvoice/turnengine/pkg/turn"
	"github.com/artvoice/turnengine/services/llm"
)

// TurnInput is the minimal data Lane B hands to the orchestrator's
// process_turn for a FINAL event.
type TurnInput struct {
	Text    string
	Lang    string
	Speaker string
}

// TurnResult is the process_turn outcome (§4.5.1 step 7): the final
// response text, any tool calls the turn executed (by name), which agent
// produced it, token accounting for the turn's LLM calls, and whether the
// turn was cut short by a barge-in cancellation.
type TurnResult struct {
	ResponseText string
	ToolCalls    []string
	AgentName    string
	InputTokens  int
	OutputTokens int
	Interrupted  bool
}

// ProcessTurnFunc drives the LLM/tool loop and emits TTS chunks for one
// turn. It must observe ctx (equivalently, the session's cancel signal)
// between LLM stream chunks and return promptly on cancellation.
type ProcessTurnFunc func(ctx context.Context, input TurnInput) (*TurnResult, error)

// DispatchTTSFunc hands a text chunk to the TTS Playback component (C3).
type DispatchTTSFunc func(ctx context.Context, text string, voiceOverride string) error

// Engine wires the three lanes around one session's Work Queue.
type Engine struct {
	sessCtx *sessioncore.Context
	queue   *WorkQueue
	state   *StateMachine

	bargeInSuppressed atomic.Bool

	processTurn ProcessTurnFunc
	dispatchTTS DispatchTTSFunc
	onBargeIn   func()
	detector    turn.Detector
	lang        string

	log *slog.Logger
}

// Config bundles the callbacks an Engine needs; all are required except
// OnBargeIn and Detector.
type Config struct {
	SessionContext *sessioncore.Context
	QueueCapacity  int
	ProcessTurn    ProcessTurnFunc
	DispatchTTS    DispatchTTSFunc
	// OnBargeIn is the transport's barge-in handler: stop audio output and
	// notify the UI. Invoked by Lane C after cancel_current, per §4.4 Bridge.
	OnBargeIn func()
	// Detector, when set, supplements the length-based partial gate (§4.4
	// Lane A) with a semantic end-of-turn confidence check so that a short
	// burst of filler speech doesn't trigger a false barge-in.
	Detector turn.Detector
	Language string
}

func New(cfg Config) *Engine {
	lang := cfg.Language
	if lang == "" {
		lang = "en"
	}
	return &Engine{
		sessCtx:     cfg.SessionContext,
		queue:       NewWorkQueue(cfg.QueueCapacity),
		state:       NewStateMachine(),
		processTurn: cfg.ProcessTurn,
		dispatchTTS: cfg.DispatchTTS,
		onBargeIn:   cfg.OnBargeIn,
		detector:    cfg.Detector,
		lang:        lang,
		log:         slog.With("component", "turnengine", "session_id", cfg.SessionContext.SessionID),
	}
}

func (e *Engine) State() *StateMachine { return e.state }
func (e *Engine) Queue() *WorkQueue     { return e.queue }

// SetBargeInSuppressed toggles the flag checked by ScheduleBargeIn, set
// during handoff/greeting playback to avoid echo-driven false triggers
// (§4.4 Lane C).
func (e *Engine) SetBargeInSuppressed(v bool) {
	e.bargeInSuppressed.Store(v)
}

// --- Lane A: Audio Ingress -------------------------------------------------

// OnPartial is the STT engine's partial-result callback. It never suspends:
// on a substantive partial it schedules a barge-in probe and returns
// immediately, matching "thread-like; never suspends on queue work" (§4.4).
func (e *Engine) OnPartial(text, lang, speaker string) {
	if len(strings.TrimSpace(text)) <= 3 {
		return
	}
	e.sessCtx.LatencyAccumulator.StartSTTTimer()
	if !e.passesSemanticGate(text, lang) {
		return
	}
	go e.ScheduleBargeIn(e.onBargeIn)
}

// passesSemanticGate applies the optional turn-detector confidence check.
// A nil detector, an unsupported language, or a detector error never blocks
// a barge-in; the probe is skipped only when the detector's end-of-turn
// probability for the partial text is below its threshold for the language
// (e.g. a trailing filler word), matching the length heuristic's role of
// filtering noise rather than true interruptions.
func (e *Engine) passesSemanticGate(text, lang string) bool {
	if e.detector == nil {
		return true
	}
	if lang == "" {
		lang = e.lang
	}
	if !e.detector.SupportsLanguage(lang) {
		return true
	}
	threshold, err := e.detector.UnlikelyThreshold(lang)
	if err != nil {
		return true
	}
	prob, err := e.detector.PredictEndOfTurn(context.Background(), turn.ChatContext{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: text}},
		Language: lang,
	})
	if err != nil {
		return true
	}
	return prob >= threshold
}

// OnFinal is the STT engine's final-result callback: enqueue a FINAL event
// for Lane B, which stops the STT latency timer when it handles the event.
func (e *Engine) OnFinal(ctx context.Context, text, lang, speaker string) {
	if len(strings.TrimSpace(text)) <= 1 {
		return
	}
	e.queue.Enqueue(ctx, WorkEvent{Kind: EventFinal, Text: text, Lang: lang, Speaker: speaker})
}

// OnError is the STT engine's error callback.
func (e *Engine) OnError(ctx context.Context, msg string) {
	e.queue.Enqueue(ctx, WorkEvent{Kind: EventError, ErrMessage: msg})
}

// --- Lane C: Main (bridge + barge-in) ---------------------------------------

// ScheduleBargeIn is Lane A's entry point into Lane C. It checks suppression,
// then cancels the current turn and invokes the transport's barge-in
// handler (§4.4 Lane C Bridge).
func (e *Engine) ScheduleBargeIn(handler func()) {
	if e.bargeInSuppressed.Load() {
		return
	}
	if !e.state.AcceptsBargeIn() {
		return
	}
	e.CancelCurrent()
	if handler != nil {
		handler()
	}
}

// CancelCurrent drains the Work Queue and requests cancellation of any
// in-flight turn. process_turn and C3's frame loop observe the cancel
// signal and return; this call itself does not block on that.
func (e *Engine) CancelCurrent() {
	e.queue.Drain()
	e.sessCtx.RequestCancel()
}

// --- Lane B: Turn Processing -------------------------------------------------

// Run is Lane B's single-threaded cooperative loop. It suspends only on
// Dequeue, on awaiting process_turn, and (inside dispatchTTS) on awaiting C3
// frame sends — matching §5's suspension-point inventory.
func (e *Engine) Run(ctx context.Context) {
	for {
		ev, ok := e.queue.Dequeue(ctx)
		if !ok {
			e.log.Info("lane B loop exiting")
			return
		}
		e.handle(ctx, ev)
	}
}

func (e *Engine) handle(ctx context.Context, ev WorkEvent) {
	switch ev.Kind {
	case EventFinal:
		e.handleFinal(ctx, ev)
	case EventTTSResponse:
		e.handleDirectTTS(ctx, ev)
	case EventGreeting, EventAnnouncement, EventStatusUpdate:
		e.handleAnnouncement(ctx, ev)
	case EventError:
		e.log.Error("work queue error event", "message", ev.ErrMessage)
	case EventPartial:
		// Partials never reach Lane B in practice (handled in Lane A); ignore
		// defensively if one slips through.
	}
}

func (e *Engine) handleFinal(ctx context.Context, ev WorkEvent) {
	e.sessCtx.ClearCancelRequested()
	e.sessCtx.CancelSignal().Clear()
	e.state.ToProcessing()
	e.sessCtx.LatencyAccumulator.StartTurn()
	sttDuration := e.sessCtx.LatencyAccumulator.StopSTTTimer()

	turnCtx, cancel := context.WithTimeout(ctx, config.PerTurnLLMTimeout)
	defer cancel()
	cancelCh := e.sessCtx.CancelSignal().Done()
	go func() {
		select {
		case <-cancelCh:
			cancel()
		case <-turnCtx.Done():
		}
	}()

	result, err := e.processTurn(turnCtx, TurnInput{Text: ev.Text, Lang: ev.Lang, Speaker: ev.Speaker})
	if err != nil {
		e.log.Error("process_turn failed", "error", err)
	} else if result != nil {
		e.log.Info("turn complete",
			"agent", result.AgentName,
			"input_tokens", result.InputTokens,
			"output_tokens", result.OutputTokens,
			"interrupted", result.Interrupted,
			"tool_calls", result.ToolCalls,
		)
	}

	e.sessCtx.LatencyAccumulator.EndTurn(sttDuration)
	e.state.ToIdle()
}

func (e *Engine) handleDirectTTS(ctx context.Context, ev WorkEvent) {
	e.state.ToSpeaking()
	if err := e.dispatchTTS(ctx, ev.Text, ev.VoiceOverride); err != nil {
		e.log.Warn("tts_response dispatch failed", "error", err)
	}
	e.state.ToIdle()
}

func (e *Engine) handleAnnouncement(ctx context.Context, ev WorkEvent) {
	e.state.ToSpeaking()
	if err := e.dispatchTTS(ctx, ev.Text, ev.VoiceOverride); err != nil {
		e.log.Warn("announcement dispatch failed", "kind", ev.Kind.String(), "error", err)
	}
	e.state.ToIdle()
}
