package playback

import (
	"fmt"
	"sync"

	"github.com/artvoice/turnengine/plugins"
	"github.com/artvoice/turnengine/services/tts"
)

// SynthesizerPool creates one tts.TTS instance per session and reuses it for
// the session's lifetime, grounded on plugins.Registry.CreateTTS's
// fallback-aware factory lookup.
type SynthesizerPool struct {
	registry     *plugins.Registry
	providerName string

	mu      sync.Mutex
	perSess map[string]tts.TTS
}

func NewSynthesizerPool(registry *plugins.Registry, providerName string) *SynthesizerPool {
	if registry == nil {
		registry = plugins.GlobalRegistry()
	}
	return &SynthesizerPool{
		registry:     registry,
		providerName: providerName,
		perSess:      make(map[string]tts.TTS),
	}
}

// Acquire returns the session's synthesizer, creating it on first use.
func (p *SynthesizerPool) Acquire(sessionID string) (tts.TTS, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if synth, ok := p.perSess[sessionID]; ok {
		return synth, nil
	}

	synth, err := p.registry.CreateTTS(p.providerName)
	if err != nil {
		return nil, fmt.Errorf("playback: acquire synthesizer for session %s: %w", sessionID, err)
	}
	p.perSess[sessionID] = synth
	return synth, nil
}

// Release is a no-op: the synthesizer stays checked out to the session for
// reuse across turns. It exists to satisfy the Pool interface symmetrically
// and as the hook a future per-session eviction policy would use.
func (p *SynthesizerPool) Release(sessionID string, synth tts.TTS) {}

// Evict drops a session's synthesizer, called from session teardown.
func (p *SynthesizerPool) Evict(sessionID string) {
	p.mu.Lock()
	delete(p.perSess, sessionID)
	p.mu.Unlock()
}
