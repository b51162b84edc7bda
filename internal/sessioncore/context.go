// Package sessioncore implements the Session Context (C1): a typed bundle
// of per-session state and cancellation/scheduling helpers, holding no
// business logic of its own. Grounded on pkg/job.JobContext's shutdown-hook
// and cancellation pattern, generalized from one-shot job teardown to the
// turn engine's cancel/reset/schedule needs.
package sessioncore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TransportKind identifies the bidirectional audio transport a session runs
// over (§3).
type TransportKind string

const (
	TransportTelephony TransportKind = "telephony"
	TransportBrowser   TransportKind = "browser"
	TransportRealtime  TransportKind = "realtime"
)

// ForeignWork is a unit of work posted from a non-scheduler thread to be run
// on the session's cooperative loop.
type ForeignWork func(ctx context.Context) (any, error)

// ForeignWorkHandle lets the poster await the result of work it scheduled,
// with a timeout. A nil handle (returned when the scheduler is unavailable)
// must be tolerated by callers per §4.1.
type ForeignWorkHandle struct {
	result chan foreignResult
}

type foreignResult struct {
	value any
	err   error
}

// Await blocks for the result up to timeout, or returns context.DeadlineExceeded.
func (h *ForeignWorkHandle) Await(timeout time.Duration) (any, error) {
	if h == nil {
		return nil, fmt.Errorf("sessioncore: nil foreign work handle")
	}
	select {
	case r := <-h.result:
		return r.value, r.err
	case <-time.After(timeout):
		return nil, context.DeadlineExceeded
	}
}

// Context is the per-session typed state bundle (C1). It owns no business
// logic: cancellation, scheduling, and the active-agent pointer are
// mechanism, not policy.
type Context struct {
	SessionID              string
	TransportConnectionID  string
	TransportKind          TransportKind

	STTHandle any // capability handle acquired from an STT pool
	TTSHandle any // capability handle acquired from a TTS pool

	MemoryHandle any // *internal/memory.Store, kept as any to avoid an import cycle with callers that mock it

	LatencyAccumulator *LatencyAccumulator

	cancelSignal *CancelSignal

	isSynthesizing  boolFlag
	isAudioPlaying  boolFlag
	cancelRequested boolFlag

	activeAgentMu sync.RWMutex
	activeAgent   any

	tasksMu     sync.Mutex
	activeTasks map[string]context.CancelFunc
	tasksWG     sync.WaitGroup

	workQueue chan scheduledWork
	closeOnce sync.Once
	closed    chan struct{}

	log *slog.Logger
}

type scheduledWork struct {
	fn     ForeignWork
	result chan foreignResult
}

// boolFlag is a single-writer-many-reader boolean guarded by a mutex; the
// spec's "single-writer per flag from the main lane" constraint is enforced
// by convention (only Lane C calls Set), not by the type itself.
type boolFlag struct {
	mu  sync.RWMutex
	val bool
}

func (b *boolFlag) Set(v bool) {
	b.mu.Lock()
	b.val = v
	b.mu.Unlock()
}

func (b *boolFlag) Get() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.val
}

// New constructs a Session Context. The internal foreign-work queue is
// buffered for 32 pending posts.
func New(sessionID string, transportConnectionID string, kind TransportKind) *Context {
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	return &Context{
		SessionID:             sessionID,
		TransportConnectionID: transportConnectionID,
		TransportKind:         kind,
		LatencyAccumulator:    NewLatencyAccumulator(),
		cancelSignal:          NewCancelSignal(),
		activeTasks:           make(map[string]context.CancelFunc),
		workQueue:             make(chan scheduledWork, 32),
		closed:                make(chan struct{}),
		log:                   slog.With("component", "sessioncore", "session_id", sessionID),
	}
}

// RequestCancel sets cancel_signal and cancel_requested. Safe from any
// execution context.
func (c *Context) RequestCancel() {
	c.cancelRequested.Set(true)
	c.cancelSignal.Request()
}

// ClearCancel resets cancel_signal. Does not clear cancel_requested, which is
// a terminal per-turn marker the owning lane resets explicitly at turn start.
func (c *Context) ClearCancel() {
	c.cancelSignal.Clear()
}

// ClearCancelRequested resets the cancel_requested flag; called at the start
// of a new turn.
func (c *Context) ClearCancelRequested() {
	c.cancelRequested.Set(false)
}

// WaitCancel blocks until cancel_signal is set or timeout elapses, returning
// whether it was set.
func (c *Context) WaitCancel(timeout time.Duration) bool {
	select {
	case <-c.cancelSignal.Done():
		return true
	case <-time.After(timeout):
		return c.cancelSignal.IsSet()
	}
}

// CancelSignal exposes the underlying signal for components (C3, C4) that
// need to observe it directly between frames/chunks.
func (c *Context) CancelSignal() *CancelSignal { return c.cancelSignal }

func (c *Context) IsSynthesizing() bool     { return c.isSynthesizing.Get() }
func (c *Context) SetSynthesizing(v bool)   { c.isSynthesizing.Set(v) }
func (c *Context) IsAudioPlaying() bool     { return c.isAudioPlaying.Get() }
func (c *Context) SetAudioPlaying(v bool)   { c.isAudioPlaying.Set(v) }
func (c *Context) IsCancelRequested() bool  { return c.cancelRequested.Get() }

// SetActiveAgent/GetActiveAgent implement the single-writer, eventually
// consistent active_agent reference (§4.1).
func (c *Context) SetActiveAgent(agent any) {
	c.activeAgentMu.Lock()
	c.activeAgent = agent
	c.activeAgentMu.Unlock()
}

func (c *Context) GetActiveAgent() any {
	c.activeAgentMu.RLock()
	defer c.activeAgentMu.RUnlock()
	return c.activeAgent
}

// ScheduleFromForeignContext enqueues work onto the session's scheduler from
// a non-scheduler thread. Returns nil if the scheduler is unavailable
// (session already closed); callers must tolerate a dropped post (§4.1).
func (c *Context) ScheduleFromForeignContext(work ForeignWork) *ForeignWorkHandle {
	select {
	case <-c.closed:
		return nil
	default:
	}

	handle := &ForeignWorkHandle{result: make(chan foreignResult, 1)}
	item := scheduledWork{fn: work, result: handle.result}

	select {
	case c.workQueue <- item:
		return handle
	case <-c.closed:
		return nil
	}
}

// RunForeignWork is the scheduler-side drain loop; the scheduler (Lane C)
// calls this in its own event loop to execute posted work.
func (c *Context) RunForeignWork(ctx context.Context) {
	for {
		select {
		case item := <-c.workQueue:
			v, err := item.fn(ctx)
			select {
			case item.result <- foreignResult{value: v, err: err}:
			default:
			}
		case <-c.closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RegisterTask adds a background work handle to active_tasks for clean
// teardown; cancel is invoked by Close.
func (c *Context) RegisterTask(id string, cancel context.CancelFunc) {
	c.tasksMu.Lock()
	c.activeTasks[id] = cancel
	c.tasksMu.Unlock()
	c.tasksWG.Add(1)
}

// TaskDone marks a previously registered task complete.
func (c *Context) TaskDone(id string) {
	c.tasksMu.Lock()
	_, ok := c.activeTasks[id]
	delete(c.activeTasks, id)
	c.tasksMu.Unlock()
	if ok {
		c.tasksWG.Done()
	}
}

// Close implements session teardown step 5 ("cancel all background tasks
// registered in active_tasks") and stops accepting foreign-context work. It
// is idempotent.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.tasksMu.Lock()
		for id, cancel := range c.activeTasks {
			cancel()
			delete(c.activeTasks, id)
		}
		c.tasksMu.Unlock()
		c.log.Info("session context closed")
	})
}

// Wait blocks until all registered tasks have called TaskDone (or been
// cancelled and torn themselves down), bounded by timeout.
func (c *Context) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		c.tasksWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func generateSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("sess-%d", time.Now().UnixNano())
	}
	return "sess-" + hex.EncodeToString(buf)
}
