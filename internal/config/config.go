// Package config centralizes the tunables referenced throughout the turn
// engine and orchestrator: queue sizes, frame geometry, and timeouts. Nothing
// here loads from a file or environment; callers wire values in explicitly.
package config

import "time"

const (
	// WorkQueueCapacity is the suggested bound on the per-session work queue (§4.4).
	WorkQueueCapacity = 50

	// TTSResponseEnqueueTimeout bounds the blocking enqueue used for TTS_RESPONSE
	// events when the work queue is full and eviction alone did not free space.
	TTSResponseEnqueueTimeout = 5 * time.Second

	// BrowserFrameBytes is 100ms of 48kHz mono 16-bit PCM.
	BrowserFrameBytes = 4800
	// BrowserFrameDuration is the playback pacing interval for browser frames.
	BrowserFrameDuration = 100 * time.Millisecond

	// TelephonyFrameBytes is 40ms of 16kHz mono 16-bit PCM.
	TelephonyFrameBytes = 640
	// TelephonyFrameDuration is the playback pacing interval for telephony frames.
	TelephonyFrameDuration = 40 * time.Millisecond

	// BrowserSampleRate and TelephonySampleRate are the native transport rates.
	BrowserSampleRate   = 48000
	TelephonySampleRate = 16000

	// DTMFInactivityTimeout flushes a buffered DTMF digit string as a synthetic
	// user message after this much silence.
	DTMFInactivityTimeout = 1500 * time.Millisecond

	// PerTurnLLMTimeout is the hard cap on a single turn's LLM work.
	PerTurnLLMTimeout = 90 * time.Second
	// PerChunkQueueWait bounds how long the sentence-splitter consumer waits
	// for the next stream chunk before checking whether the stream ended.
	PerChunkQueueWait = 5 * time.Second
	// MaxToolIterations bounds the tool-call/recurse loop in process_turn.
	MaxToolIterations = 5

	// SessionUpdateThrottle is the minimum interval between LLM-connection
	// session.update calls triggered by scenario switches (§9).
	SessionUpdateThrottle = 2 * time.Second

	// SentenceBufferPrimaryMin is the minimum buffer length before a primary
	// sentence break (. ! ?) is honored.
	SentenceBufferPrimaryMin = 15
	// SentenceBufferForceFlush is the hard cap that forces a flush even absent
	// a detected break.
	SentenceBufferForceFlush = 80

	// UserMessageHistoryDepth is the bounded deque length for cross-agent
	// history (§3 Orchestrator State).
	UserMessageHistoryDepth = 5

	// STTThreadJoinTimeout bounds Lane A teardown (§5 step 4).
	STTThreadJoinTimeout = 2 * time.Second
)
