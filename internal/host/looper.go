package host

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/swordlegend/dava.engine/internal/errors"
	"github.com/swordlegend/dava.engine/internal/logger"
)

// Task outcomes reported to the Recorder.
const (
	TaskStatusOK    = "ok"
	TaskStatusPanic = "panic"
)

// ErrHostClosed is returned when posting to or registering with a host that
// has been torn down.
var ErrHostClosed = errors.NewStd("host closed")

// Looper runs posted tasks one at a time, in order, on a single goroutine.
// The queue is unbounded so Post never blocks the caller.
type Looper struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}

	log      logger.Logger
	recorder Recorder
}

// NewLooper starts the looper goroutine. Call Quit to stop it.
func NewLooper(log logger.Logger, recorder Recorder) *Looper {
	if log == nil {
		log = logger.Global().Module("host")
	}
	l := &Looper{
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		log:      log.Module("looper"),
		recorder: recorder,
	}
	go l.run()
	return l
}

// Post enqueues task. It fails with ErrHostClosed once Quit has been called.
func (l *Looper) Post(task func()) error {
	if task == nil {
		return errors.Newf("nil task").
			Component("host").
			Category(errors.CategoryValidation).
			Build()
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrHostClosed
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	l.signal()
	return nil
}

// Pending returns the number of queued tasks that have not started yet.
func (l *Looper) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Quit stops accepting tasks. Already queued tasks still run; Done is closed
// after the last one.
func (l *Looper) Quit() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.signal()
}

// Done is closed when the looper goroutine has exited.
func (l *Looper) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the looper exits or ctx is done.
func (l *Looper) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Looper) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Looper) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.mu.Unlock()
			<-l.wake
			l.mu.Lock()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.execute(task)
	}
}

// execute runs one task, keeping the looper alive if it panics
func (l *Looper) execute(task func()) {
	status := TaskStatusOK
	defer func() {
		if r := recover(); r != nil {
			status = TaskStatusPanic
			l.log.Error("ui task panicked",
				logger.String("panic", fmt.Sprint(r)),
				logger.String("stack", string(debug.Stack())))
		}
		if l.recorder != nil {
			l.recorder.RecordUITask(status)
		}
	}()
	task()
}
