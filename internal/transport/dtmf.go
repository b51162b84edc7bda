package transport

import (
	"strings"
	"sync"
	"time"

	"github.com/artvoice/turnengine/internal/config"
)

// DTMFBuffer accumulates telephony keypad digits into one synthetic user
// message, flushing on the '#' terminator or after
// config.DTMFInactivityTimeout of silence; '*' discards the buffer (§6).
type DTMFBuffer struct {
	mu      sync.Mutex
	digits  strings.Builder
	timer   *time.Timer
	onFlush func(string)
}

func NewDTMFBuffer(onFlush func(string)) *DTMFBuffer {
	return &DTMFBuffer{onFlush: onFlush}
}

// Push appends one digit, resetting the inactivity timer. '#' flushes the
// accumulated digits as a synthetic user message; '*' silently discards them
// without emitting anything (§6).
func (d *DTMFBuffer) Push(digit string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if digit == "#" {
		d.flushLocked()
		return
	}
	if digit == "*" {
		d.clearLocked()
		return
	}

	d.digits.WriteString(digit)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(config.DTMFInactivityTimeout, func() {
		d.mu.Lock()
		d.flushLocked()
		d.mu.Unlock()
	})
}

// flushLocked emits the accumulated digits and resets the buffer. Caller
// must hold d.mu.
func (d *DTMFBuffer) flushLocked() {
	if d.digits.Len() == 0 {
		d.clearLocked()
		return
	}
	text := d.digits.String()
	d.clearLocked()
	if d.onFlush != nil {
		d.onFlush(text)
	}
}

// clearLocked discards the accumulated digits without emitting a message.
// Caller must hold d.mu.
func (d *DTMFBuffer) clearLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.digits.Reset()
}

// Flush forces an immediate flush, e.g. on session teardown.
func (d *DTMFBuffer) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked()
}
