package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/stwalsh4118/duet/internal/logger"
)

const defaultQueueSize = 256

// ErrLoopStopped indicates the event loop no longer accepts work
var ErrLoopStopped = errors.New("session event loop stopped")

// Loop is a single-goroutine event loop. Every closure posted to it runs to
// completion before the next one starts, so state touched only from inside
// the loop needs no locking.
type Loop struct {
	queue    chan func()
	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

// NewLoop creates a loop whose queue holds up to size pending closures
func NewLoop(size int) *Loop {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Loop{
		queue: make(chan func(), size),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start runs the loop in a new goroutine. Calling it more than once is a no-op.
func (l *Loop) Start() {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	go l.run()
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.stop:
			return
		case fn := <-l.queue:
			l.invoke(fn)
		}
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error().
				Interface("panic", r).
				Msg("Recovered from panic in session event loop")
		}
	}()
	fn()
}

// Post enqueues fn, blocking while the queue is full. Work posted after Stop
// is dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.stop:
		logger.Log.Debug().Msg("Dropping event posted to stopped loop")
	case l.queue <- fn:
	}
}

// Do runs fn on the loop and waits for it to finish
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case <-l.stop:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	case l.queue <- task:
	}

	select {
	case <-finished:
		return nil
	case <-l.stop:
		if l.started.Load() {
			<-l.done
		}
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop halts the loop and waits for the running closure, if any, to return.
// Closures still queued are discarded.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	if l.started.Load() {
		<-l.done
	}
}
