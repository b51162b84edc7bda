package sessioncore

import (
	"sync"
	"time"
)

// LatencyAccumulator records per-turn latency milestones: time-to-first-token
// (TTFT), time-to-first-audio (TTFA), and total turn duration. One instance
// lives per session; Start/Record calls are cheap enough to call from any
// lane without a dedicated metrics pipeline (out of scope per §1).
type LatencyAccumulator struct {
	mu sync.Mutex

	turnStart   time.Time
	sttStart    time.Time
	firstToken  time.Time
	firstAudio  time.Time

	lastTurn TurnLatency
}

// TurnLatency is the recorded set of milestones for one completed turn.
type TurnLatency struct {
	STTDuration  time.Duration
	TTFT         time.Duration
	TTFA         time.Duration
	TurnDuration time.Duration
}

func NewLatencyAccumulator() *LatencyAccumulator {
	return &LatencyAccumulator{}
}

// StartSTTTimer begins the STT-recognition latency timer, started on the
// first substantive partial result per §4.4 Lane A.
func (l *LatencyAccumulator) StartSTTTimer() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sttStart.IsZero() {
		l.sttStart = time.Now()
	}
}

// StopSTTTimer records STT duration on a final result.
func (l *LatencyAccumulator) StopSTTTimer() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sttStart.IsZero() {
		return 0
	}
	d := time.Since(l.sttStart)
	l.sttStart = time.Time{}
	return d
}

// StartTurn marks the beginning of a turn span.
func (l *LatencyAccumulator) StartTurn() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turnStart = time.Now()
	l.firstToken = time.Time{}
	l.firstAudio = time.Time{}
}

// RecordFirstToken records TTFT the first time it is called per turn.
func (l *LatencyAccumulator) RecordFirstToken() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.firstToken.IsZero() {
		l.firstToken = time.Now()
	}
}

// RecordFirstAudio records TTFA; used as the on_first_audio callback (§4.3).
func (l *LatencyAccumulator) RecordFirstAudio() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.firstAudio.IsZero() {
		l.firstAudio = time.Now()
	}
}

// EndTurn closes the turn span and returns the recorded milestones.
func (l *LatencyAccumulator) EndTurn(sttDuration time.Duration) TurnLatency {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := TurnLatency{STTDuration: sttDuration}
	if !l.turnStart.IsZero() {
		result.TurnDuration = time.Since(l.turnStart)
		if !l.firstToken.IsZero() {
			result.TTFT = l.firstToken.Sub(l.turnStart)
		}
		if !l.firstAudio.IsZero() {
			result.TTFA = l.firstAudio.Sub(l.turnStart)
		}
	}
	l.lastTurn = result
	return result
}

// LastTurn returns the most recently recorded turn's latency, for tests and
// status reporting.
func (l *LatencyAccumulator) LastTurn() TurnLatency {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastTurn
}
