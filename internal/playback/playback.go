// Package playback implements the TTS Playback component (C3): resolve a
// voice, synthesize text through a pooled synthesizer, and stream framed PCM
// to the transport with cooperative cancellation (§4.3).
package playback

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/artvoice/turnengine/internal/config"
	"github.com/artvoice/turnengine/internal/sessioncore"
	"github.com/artvoice/turnengine/services/tts"
)

// Voice is the resolved {name, style, rate} triple (§3 Agent Descriptor).
type Voice struct {
	Name  string
	Style string
	Rate  float64
}

// Sender delivers one framed envelope to the transport. Transport-kind
// specific JSON shaping happens in this package (§4.3 step 5); Sender just
// moves bytes.
type Sender interface {
	Send(ctx context.Context, data []byte) error
}

// Pool acquires and releases synthesizer handles keyed by session, per §4.3
// step 2 and §5's "Shared resources".
type Pool interface {
	Acquire(sessionID string) (tts.TTS, error)
	Release(sessionID string, synth tts.TTS)
}

// Request is the C3 TTS Request (§3).
type Request struct {
	Text          string
	VoiceOverride *Voice
	TransportKind sessioncore.TransportKind
	OnFirstAudio  func()
}

// Player implements speak(). One Player instance is shared by a session; the
// internal lock serializes concurrent speak calls per session (§4.3 Mutual
// exclusion).
type Player struct {
	pool Pool
	send Sender

	fallbackVoice Voice

	mu  sync.Mutex
	log *slog.Logger
}

func NewPlayer(pool Pool, send Sender, fallbackVoice Voice) *Player {
	return &Player{
		pool:          pool,
		send:          send,
		fallbackVoice: fallbackVoice,
		log:           slog.With("component", "playback"),
	}
}

// activeAgentVoice is satisfied by the orchestrator's Agent Descriptor;
// kept minimal here to avoid an import cycle.
type activeAgentVoice interface {
	VoiceName() string
	VoiceStyle() string
	VoiceRate() float64
}

// Speak synthesizes text and streams it to the transport, returning true on
// complete playback and false on cancellation or failure (§4.3).
func (p *Player) Speak(ctx context.Context, sess *sessioncore.Context, req Request, activeVoice activeAgentVoice) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	voice := p.resolveVoice(req.VoiceOverride, activeVoice)

	synth, err := p.pool.Acquire(sess.SessionID)
	if err != nil || synth == nil {
		p.log.Warn("synthesizer pool acquisition failed", "error", err)
		return false
	}
	defer p.pool.Release(sess.SessionID, synth)

	if sess.CancelSignal().IsSet() {
		sess.CancelSignal().Clear()
		return false
	}

	sampleRate := config.BrowserSampleRate
	if req.TransportKind == sessioncore.TransportTelephony {
		sampleRate = config.TelephonySampleRate
	}

	sess.SetSynthesizing(true)
	pcm, err := tts.SynthesizeToPCM(ctx, synth, req.Text, voice.Name, sampleRate, voice.Style, voice.Rate)
	sess.SetSynthesizing(false)
	if err != nil {
		p.log.Warn("synthesis failed", "error", err)
		return false
	}
	if len(pcm) == 0 {
		p.log.Warn("synthesis returned empty audio")
		return false
	}

	sess.SetAudioPlaying(true)
	defer sess.SetAudioPlaying(false)

	ok := p.stream(ctx, sess, pcm, sampleRate, req)
	return ok
}

func (p *Player) resolveVoice(override *Voice, active activeAgentVoice) Voice {
	if override != nil && override.Name != "" {
		return *override
	}
	if active != nil && active.VoiceName() != "" {
		return Voice{Name: active.VoiceName(), Style: active.VoiceStyle(), Rate: active.VoiceRate()}
	}
	return p.fallbackVoice
}

func (p *Player) stream(ctx context.Context, sess *sessioncore.Context, pcm []byte, sampleRate int, req Request) bool {
	var frameBytes int
	var frameDelay time.Duration
	if req.TransportKind == sessioncore.TransportTelephony {
		frameBytes = config.TelephonyFrameBytes
		frameDelay = config.TelephonyFrameDuration
	} else {
		frameBytes = config.BrowserFrameBytes
		frameDelay = config.BrowserFrameDuration
	}

	totalFrames := (len(pcm) + frameBytes - 1) / frameBytes
	firstAudioSent := false

	for i := 0; i < totalFrames; i++ {
		if sess.CancelSignal().IsSet() {
			sess.CancelSignal().Clear()
			return false
		}

		start := i * frameBytes
		end := start + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		chunk := pcm[start:end]
		isFinal := i == totalFrames-1

		envelope, err := p.buildEnvelope(req.TransportKind, chunk, sampleRate, i, totalFrames, isFinal)
		if err != nil {
			p.log.Error("failed to build playback envelope", "error", err)
			return false
		}
		if err := p.send.Send(ctx, envelope); err != nil {
			p.log.Warn("transport send failed", "error", err)
			return false
		}

		if !firstAudioSent {
			firstAudioSent = true
			if req.OnFirstAudio != nil {
				req.OnFirstAudio()
			}
		}

		if sess.CancelSignal().IsSet() {
			sess.CancelSignal().Clear()
			return false
		}

		if !isFinal {
			select {
			case <-time.After(frameDelay):
			case <-ctx.Done():
				return false
			}
		}
	}

	return true
}

func (p *Player) buildEnvelope(kind sessioncore.TransportKind, pcm []byte, sampleRate, frameIndex, totalFrames int, isFinal bool) ([]byte, error) {
	data := base64.StdEncoding.EncodeToString(pcm)

	if kind == sessioncore.TransportTelephony {
		env := telephonyAudioEnvelope{Kind: "AudioData"}
		env.AudioData.Data = data
		env.AudioData.Silent = false
		return json.Marshal(env)
	}

	env := browserAudioEnvelope{
		Type:        "audio_data",
		Data:        data,
		SampleRate:  sampleRate,
		FrameIndex:  frameIndex,
		TotalFrames: totalFrames,
		IsFinal:     isFinal,
	}
	return json.Marshal(env)
}

type browserAudioEnvelope struct {
	Type        string `json:"type"`
	Data        string `json:"data"`
	SampleRate  int    `json:"sample_rate"`
	FrameIndex  int    `json:"frame_index"`
	TotalFrames int    `json:"total_frames"`
	IsFinal     bool   `json:"is_final"`
}

type telephonyAudioEnvelope struct {
	Kind      string `json:"kind"`
	AudioData struct {
		Data   string `json:"data"`
		Silent bool   `json:"silent"`
	} `json:"audioData"`
}
