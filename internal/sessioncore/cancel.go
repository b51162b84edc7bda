package sessioncore

import "sync"

// CancelSignal is a level-triggered, resettable event safe to set and clear
// from any execution context (§3, §5 Cancellation semantics). Unlike a plain
// context.Context, it supports Clear() so the same session can run many
// turns without reallocating.
type CancelSignal struct {
	mu   sync.Mutex
	set  bool
	done chan struct{}
}

// NewCancelSignal returns a cleared signal.
func NewCancelSignal() *CancelSignal {
	return &CancelSignal{done: make(chan struct{})}
}

// Request sets the signal. Idempotent.
func (c *CancelSignal) Request() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set {
		return
	}
	c.set = true
	close(c.done)
}

// Clear resets the signal to its unset state.
func (c *CancelSignal) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return
	}
	c.set = false
	c.done = make(chan struct{})
}

// IsSet reports whether the signal is currently requested.
func (c *CancelSignal) IsSet() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set
}

// Done returns a channel closed when the signal is set. Safe to read
// concurrently with Clear; a caller that held a stale channel across a
// Clear will see it close and should re-check IsSet before acting, which
// every consumer in this codebase does (it always re-reads IsSet()).
func (c *CancelSignal) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
