package boundary

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/ffi-bindgen/errors"
)

type dispatcherKey struct{}

type task struct {
	ctx    context.Context
	fn     func(context.Context) error
	result chan error // nil for posted tasks
}

// Dispatcher is the single host execution context. Native threads enter
// it through Call, which blocks until the host side returns, or through
// Post, which queues work and returns immediately.
type Dispatcher struct {
	queue  []task
	wake   chan struct{}
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts a dispatcher loop.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.loop()
	return d
}

// OnContext reports whether ctx belongs to a task running on d.
func (d *Dispatcher) OnContext(ctx context.Context) bool {
	owner, _ := ctx.Value(dispatcherKey{}).(*Dispatcher)
	return owner == d
}

func closedErr() error {
	return errors.New(errors.PhaseRuntime, errors.KindCancelled).
		Detail("dispatcher closed").
		Build()
}

// Call runs fn on the host context and blocks until it returns. A call
// made from a task already on the context runs inline, so a host method
// calling back into native code that calls the host again cannot
// deadlock.
func (d *Dispatcher) Call(ctx context.Context, fn func(context.Context) error) error {
	if d.OnContext(ctx) {
		return run(ctx, fn)
	}
	result := make(chan error, 1)
	if !d.enqueue(task{ctx: ctx, fn: fn, result: result}) {
		return closedErr()
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return errors.Wrap(errors.PhaseRuntime, errors.KindCancelled, ctx.Err(), "blocking call abandoned")
	}
}

// Post queues fn on the host context without waiting. It reports false
// once the dispatcher is closed.
func (d *Dispatcher) Post(fn func(context.Context)) bool {
	return d.enqueue(task{
		ctx: context.Background(),
		fn: func(ctx context.Context) error {
			fn(ctx)
			return nil
		},
	})
}

func (d *Dispatcher) enqueue(t task) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, t)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for range d.wake {
		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				closed := d.closed
				d.mu.Unlock()
				if closed {
					return
				}
				break
			}
			t := d.queue[0]
			d.queue[0] = task{}
			d.queue = d.queue[1:]
			d.mu.Unlock()

			err := run(context.WithValue(t.ctx, dispatcherKey{}, d), t.fn)
			if t.result != nil {
				t.result <- err
			} else if err != nil {
				Logger().Warn("posted task failed", zap.Error(err))
			}
		}
	}
}

func run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.PhaseRuntime, errors.KindInvalidData).
				Value(r).
				Detail("host task panicked: %s", fmt.Sprint(r)).
				Build()
		}
	}()
	return fn(ctx)
}

// Close drains queued tasks and stops the loop. Tasks queued after Close
// are rejected.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.done
}
