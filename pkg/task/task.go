package task

import (
	"runtime"

	"github.com/brickingsoft/errors"
)

var (
	ErrCanceled = errors.Define("task: canceled")
)

// Void is the result of tasks that produce no value.
type Void struct{}

type signal int

const (
	signalResume signal = iota
	signalCancel
)

// core carries the suspension machinery shared by every Task regardless of
// its result type. Control is handed between the task goroutine and its
// current resumer through a pair of unbuffered channels, so exactly one of
// the two runs at any moment.
type core struct {
	resume  chan signal
	yield   chan struct{}
	done    bool
	awaiter *core
	finals  []func()
	flag    chan struct{}
}

func newCore() *core {
	return &core{
		resume: make(chan signal),
		yield:  make(chan struct{}),
		flag:   make(chan struct{}),
	}
}

// Resume transfers control to the task until its next suspension point or
// its final completion. It must only be called while the task is suspended.
func (c *core) Resume() {
	c.resume <- signalResume
	<-c.yield
}

// Cancel resumes the task with a cancellation signal: its pending Suspend
// returns ErrCanceled and the task unwinds. Calling Cancel on a completed
// task is a no-op.
func (c *core) Cancel() {
	if c.done {
		return
	}
	c.resume <- signalCancel
	<-c.yield
}

func (c *core) finish() {
	c.done = true
	if a := c.awaiter; a != nil {
		c.awaiter = nil
		a.Resume()
	}
	for _, fn := range c.finals {
		fn()
	}
	close(c.flag)
	c.yield <- struct{}{}
}

// Task is an eagerly started cooperative computation. Spawn runs it to its
// first suspension point before returning; afterwards it advances only when
// resumed, and only one task of a worker runs at a time.
type Task[R any] struct {
	c      *core
	result R
	err    error
}

// Frame is the in-task handle to the suspension machinery. It is only valid
// on the goroutine of the task it was created for.
type Frame struct {
	c *core
}

// Spawn starts fn immediately and returns once it reaches its first
// suspension point or completes.
func Spawn[R any](fn func(fr *Frame) (R, error)) *Task[R] {
	t := &Task[R]{c: newCore()}
	go func() {
		<-t.c.resume
		t.result, t.err = fn(&Frame{c: t.c})
		t.c.finish()
	}()
	t.c.Resume()
	return t
}

// Resume advances the task to its next suspension point. It reports whether
// the task has completed.
func (t *Task[R]) Resume() bool {
	t.c.Resume()
	return t.c.done
}

// Cancel unwinds the task from its current suspension point.
func (t *Task[R]) Cancel() {
	t.c.Cancel()
}

// Done reports whether the task has reached its final completion. It is only
// meaningful on the goroutine that resumes the task.
func (t *Task[R]) Done() bool {
	return t.c.done
}

// OnFinal registers fn to run as part of the task's final completion, after
// its awaiter (if any) has been resumed. Detached tasks use it to deregister
// themselves from their worker.
func (t *Task[R]) OnFinal(fn func()) {
	t.c.finals = append(t.c.finals, fn)
}

// Suspend parks the task until its continuation is resumed. It returns
// ErrCanceled when the resumption was a cancellation, in which case the
// caller must not suspend on the same event again.
func (fr *Frame) Suspend() error {
	c := fr.c
	c.yield <- struct{}{}
	if sig := <-c.resume; sig == signalCancel {
		return ErrCanceled
	}
	return nil
}

// Resumer returns the continuation of the frame's task: invoking it resumes
// the task until its next suspension point. The continuation must be invoked
// at most once per Suspend.
func (fr *Frame) Resumer() func() {
	c := fr.c
	return c.Resume
}

// Await suspends the calling task until t completes and returns t's result.
// If t already completed, its result is returned without suspending.
func Await[R any](fr *Frame, t *Task[R]) (R, error) {
	if t.c.done {
		return t.result, t.err
	}
	t.c.awaiter = fr.c
	if err := fr.Suspend(); err != nil {
		t.c.awaiter = nil
		var zero R
		return zero, err
	}
	return t.result, t.err
}

// Schedule moves the remainder of the task onto a dedicated OS-thread-locked
// resumer, returning control to the creator. Event-loop tasks call it first
// so that Spawn does not block on a body that never suspends.
func Schedule(fr *Frame) error {
	runtime.LockOSThread()
	go fr.c.Resume()
	return fr.Suspend()
}
