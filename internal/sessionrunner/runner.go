// Package sessionrunner is the composition root for one live session: it
// wires the Session Context (C1), the TTS Playback component (C3), the
// Turn Engine (C4), and the Multi-Agent Orchestrator (C5) together around
// one transport connection, and drives the STT recognition stream that
// feeds Lane A's callbacks. None of the components it wires know about one
// another directly; sessionrunner is the only package that imports all of
// them, matching §9's replacement of ambient/global wiring with explicit
// per-session construction.
package sessionrunner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/artvoice/turnengine/agents"
	"github.com/artvoice/turnengine/internal/config"
	"github.com/artvoice/turnengine/internal/memory"
	"github.com/artvoice/turnengine/internal/playback"
	"github.com/artvoice/turnengine/internal/sessioncore"
	"github.com/artvoice/turnengine/internal/turnengine"
	"github.com/artvoice/turnengine/media"
	"github.com/artvoice/turnengine/services/llm"
	"github.com/artvoice/turnengine/services/stt"
	"github.com/artvoice/turnengine/services/tools"
	"github.com/artvoice/turnengine/services/vad"
)

// Config bundles everything one connection needs to run a session end to
// end. The caller (cmd/voiceagentd) constructs the provider instances and
// shared pools once per process and passes them in per connection.
type Config struct {
	TransportConnectionID string
	TransportKind         sessioncore.TransportKind
	Sender                playback.Sender
	STT                   stt.STT
	LLM                   llm.LLM
	// VAD, when set, gates WriteAudio: frames it confidently classifies as
	// silence are dropped before reaching the STT stream, saving recognizer
	// work on telephony hold music and dead air. A VAD error or nil VAD
	// never blocks a frame (fail open).
	VAD                   vad.VAD
	TTSPool               playback.Pool
	Memory                *memory.Store
	AgentRegistry         *agents.Registry
	ToolRegistry          *tools.ToolRegistry
	StartAgent            string
	FallbackVoice         playback.Voice
	AudioFormat           media.AudioFormat
}

// Runner owns one live session: the work queue loop, the STT ingress
// goroutine, and teardown.
type Runner struct {
	sessCtx *sessioncore.Context
	engine  *turnengine.Engine
	player  *playback.Player
	orch    *agents.Orchestrator
	sttSvc  stt.STT
	vadSvc  vad.VAD
	format  media.AudioFormat

	recogStream stt.RecognitionStream

	log *slog.Logger
}

// New constructs a Runner bound to one connection. It does not start any
// goroutines; call Run to start Lane B and the STT ingress loop.
func New(cfg Config) *Runner {
	sessCtx := sessioncore.New("", cfg.TransportConnectionID, cfg.TransportKind)
	player := playback.NewPlayer(cfg.TTSPool, cfg.Sender, cfg.FallbackVoice)

	r := &Runner{
		sessCtx: sessCtx,
		player:  player,
		sttSvc:  cfg.STT,
		vadSvc:  cfg.VAD,
		format:  cfg.AudioFormat,
		log:     slog.With("component", "sessionrunner", "session_id", sessCtx.SessionID),
	}

	dispatch := func(ctx context.Context, text string) error {
		if r.engine != nil {
			r.engine.State().ToSpeaking()
		}
		r.speak(ctx, text, "")
		return nil
	}
	suppress := func(v bool) {
		if r.engine != nil {
			r.engine.SetBargeInSuppressed(v)
		}
	}

	orch := agents.NewOrchestrator(sessCtx, cfg.AgentRegistry, cfg.ToolRegistry, cfg.Memory, cfg.LLM, dispatch, suppress)
	r.orch = orch

	r.engine = turnengine.New(turnengine.Config{
		SessionContext: sessCtx,
		QueueCapacity:  config.WorkQueueCapacity,
		ProcessTurn: func(ctx context.Context, input turnengine.TurnInput) (*turnengine.TurnResult, error) {
			return orch.ProcessTurn(ctx, input)
		},
		DispatchTTS: func(ctx context.Context, text, voiceOverride string) error {
			r.speak(ctx, text, voiceOverride)
			return nil
		},
		OnBargeIn: func() {
			r.log.Info("barge-in handled")
		},
	})

	if cfg.StartAgent != "" {
		sessCtx.SetActiveAgent(cfg.StartAgent)
	}

	return r
}

// SessionID returns the generated or supplied session identifier.
func (r *Runner) SessionID() string { return r.sessCtx.SessionID }

// UpdateScenario implements update_scenario (§4.5.5) for the live session:
// a caller-supplied event (e.g. a scenario-management API) swaps the
// running orchestrator's agent registry without tearing down the
// connection.
func (r *Runner) UpdateScenario(newRegistry *agents.Registry, newStartAgent string) error {
	return r.orch.UpdateScenario(newRegistry, newStartAgent)
}

// Greet renders and speaks the starting agent's greeting (§4.5.2), honoring
// any prior visit recorded in memory.
func (r *Runner) Greet(ctx context.Context, agentName string) error {
	returning := false
	if r.orch.Memory != nil {
		if state, err := r.orch.Memory.LoadSnapshot(ctx, r.sessCtx.SessionID, map[string]bool{agentName: true}); err == nil && state != nil {
			returning = state.VisitedAgents[agentName]
		}
	}
	greeting, err := r.orch.Greeting(ctx, agentName, returning)
	if err != nil {
		return err
	}
	r.speak(ctx, greeting, "")
	return nil
}

// Run starts Lane B's cooperative loop and the STT ingress loop (Lane A),
// pre-initializing the recognizer's push stream before either starts so no
// early audio frame is lost (§4.4 "Pre-initialization").
func (r *Runner) Run(ctx context.Context) error {
	stream, err := r.sttSvc.RecognizeStream(ctx)
	if err != nil {
		return fmt.Errorf("sessionrunner: create recognition stream: %w", err)
	}
	r.recogStream = stream

	go r.runIngress(ctx)
	go r.sessCtx.RunForeignWork(ctx)
	r.engine.Run(ctx)
	return nil
}

// WriteAudio pushes one frame of raw audio to the STT engine; callable from
// any context per §4.1 (the transport's read loop calls this directly). A
// configured VAD gates frames it confidently classifies as silence before
// they reach the recognizer; any VAD error forwards the frame unfiltered.
func (r *Runner) WriteAudio(frame *media.AudioFrame) error {
	if r.recogStream == nil {
		return fmt.Errorf("sessionrunner: recognition stream not started")
	}
	if r.vadSvc != nil {
		if detection, err := r.vadSvc.Detect(context.Background(), frame); err == nil && detection != nil && !detection.IsSpeech {
			return nil
		}
	}
	return r.recogStream.SendAudio(frame)
}

// runIngress is Lane A: it never suspends on Work Queue operations, only on
// the STT stream's own Recv, which is the STT SDK's worker thread in this
// design's terms.
func (r *Runner) runIngress(ctx context.Context) {
	for {
		recognition, err := r.recogStream.Recv()
		if err != nil {
			r.engine.OnError(ctx, err.Error())
			return
		}
		if recognition == nil {
			continue
		}

		speaker, _ := recognition.Metadata["speaker"].(string)

		if recognition.IsFinal {
			r.engine.OnFinal(ctx, recognition.Text, recognition.Language, speaker)
			continue
		}
		if len(strings.TrimSpace(recognition.Text)) > 3 {
			r.engine.OnPartial(recognition.Text, recognition.Language, speaker)
		}
	}
}

// ScheduleBargeIn exposes Lane C's bridge for a transport read loop that
// detects an out-of-band interruption signal (e.g. StopAudio) rather than a
// substantive STT partial.
func (r *Runner) ScheduleBargeIn(handler func()) {
	r.engine.ScheduleBargeIn(handler)
}

// SubmitText enqueues a synthetic FINAL event directly, bypassing STT; used
// for DTMF-derived messages (§6).
func (r *Runner) SubmitText(ctx context.Context, text string) {
	r.engine.OnFinal(ctx, text, "", "")
}

func (r *Runner) speak(ctx context.Context, text, voiceOverride string) bool {
	var override *playback.Voice
	if voiceOverride != "" {
		override = &playback.Voice{Name: voiceOverride}
	}
	req := playback.Request{
		Text:          text,
		VoiceOverride: override,
		TransportKind: r.sessCtx.TransportKind,
		OnFirstAudio:  r.sessCtx.LatencyAccumulator.RecordFirstAudio,
	}
	if voice, ok := r.orch.ActiveVoice(); ok {
		return r.player.Speak(ctx, r.sessCtx, req, voice)
	}
	return r.player.Speak(ctx, r.sessCtx, req, nil)
}

// Close tears down the session: it flushes buffered history to memory,
// closes the STT stream, and closes the session context (cancelling its
// registered background tasks). The session's synthesizer is not returned
// to or evicted from the TTS pool.
func (r *Runner) Close(ctx context.Context) {
	if r.orch.Memory != nil {
		_ = r.orch.Memory.FlushHistory(ctx, r.sessCtx.SessionID)
	}
	if r.recogStream != nil {
		_ = r.recogStream.CloseSend()
		_ = r.recogStream.Close()
	}
	r.sessCtx.Close()
}
