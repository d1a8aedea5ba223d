// Package executor implements the driver's background executor (spec
// §4.E): a single-threaded cooperative scheduler for all channel I/O,
// hosted on one dedicated OS thread, plus a separate dedicated thread
// that drains user-supplied callbacks so they may block without
// stalling the I/O loop.
//
// Go's goroutines are cooperative only at the scheduler level, not at
// the OS-thread level the original design assumes; runtime.LockOSThread
// pins the I/O loop's goroutine to its own OS thread so the intent —
// one dedicated worker, isolated from the Go runtime's general pool —
// survives the port, following the same one-thread-per-concern shape as
// the teacher's pkg/service/base.go (one goroutine per concern,
// coordinated by channels and a stop/stopped pair).
package executor

import (
	"context"
	"runtime"
	"sync"

	"github.com/redbco/redb-driver-go/internal/driererr"
)

// task is a unit of work submitted to the I/O loop.
type task func()

// Executor is a per-connection (by default) background scheduler. The
// caller may share one Executor across connections if desired (spec §9
// "Global state": "per-connection by default; no hidden statics").
type Executor struct {
	tasks     chan task
	callbacks chan func()

	closeOnce sync.Once
	closed    chan struct{}

	wg sync.WaitGroup
}

// New starts the executor's two dedicated goroutines: the I/O loop and
// the callback drain.
func New() *Executor {
	e := &Executor{
		tasks:     make(chan task, 64),
		callbacks: make(chan func(), 64),
		closed:    make(chan struct{}),
	}

	e.wg.Add(2)
	go e.runIOLoop()
	go e.runCallbackLoop()

	return e
}

func (e *Executor) runIOLoop() {
	defer e.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-e.closed:
			return
		case t := <-e.tasks:
			t()
		}
	}
}

func (e *Executor) runCallbackLoop() {
	defer e.wg.Done()
	for cb := range e.callbacks {
		cb()
	}
}

// IsOpen reports whether the executor still accepts work.
func (e *Executor) IsOpen() bool {
	select {
	case <-e.closed:
		return false
	default:
		return true
	}
}

// Spawn schedules t to run on the I/O loop. It is a no-op once the
// executor is closed.
func (e *Executor) Spawn(t func()) {
	if !e.IsOpen() {
		return
	}
	select {
	case e.tasks <- t:
	case <-e.closed:
	}
}

// RunBlocking runs f on the I/O loop and waits synchronously on the
// calling goroutine for its result, via a one-shot channel — the
// synchronous facade's suspension point (spec §4.E, §5).
func RunBlocking[T any](ctx context.Context, e *Executor, f func() (T, error)) (T, error) {
	var zero T
	if !e.IsOpen() {
		return zero, driererr.New(driererr.KindConnectionIsClosed, "executor is closed")
	}

	result := make(chan struct {
		val T
		err error
	}, 1)

	e.Spawn(func() {
		v, err := f()
		result <- struct {
			val T
			err error
		}{v, err}
	})

	select {
	case r := <-result:
		return r.val, r.err
	case <-e.closed:
		return zero, driererr.New(driererr.KindConnectionIsClosed, "executor closed while request was in flight")
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// RunCallback hands cb to the dedicated callback thread so it may block
// (e.g. on user code) without stalling the I/O loop.
func (e *Executor) RunCallback(cb func()) {
	if !e.IsOpen() {
		return
	}
	select {
	case e.callbacks <- cb:
	case <-e.closed:
	}
}

// ForceClose signals shutdown to every task and then closes the callback
// channel; it is idempotent. It does not join either goroutine: the I/O
// loop exits once closed is signaled and the callback loop once its
// channel drains, and ForceClose does not block on them, so a caller on
// the I/O loop itself may call ForceClose without deadlocking. Wait
// blocks until both have exited.
func (e *Executor) ForceClose() {
	e.closeOnce.Do(func() {
		close(e.closed)
		close(e.callbacks)
	})
}

// Wait blocks until both dedicated goroutines have exited. Callers that
// are not themselves running on the I/O loop may use this after
// ForceClose to guarantee clean shutdown before returning.
func (e *Executor) Wait() {
	e.wg.Wait()
}
