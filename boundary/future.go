package boundary

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/ffi-bindgen/errors"
)

// PollCode is the value a continuation receives.
type PollCode int8

const (
	// PollReady means the future has a result to take.
	PollReady PollCode = 0
	// PollMaybeReady means the continuation was superseded and the caller
	// should poll again.
	PollMaybeReady PollCode = 1
)

func (c PollCode) String() string {
	if c == PollReady {
		return "ready"
	}
	return "maybe_ready"
}

type futureState uint8

const (
	futurePending futureState = iota
	futureDone
	futureFreed
)

var futureIDs atomic.Uint64

// Future is a pending native operation. Continuations are always posted
// to the dispatcher, never run on the completing thread. Cancel only
// signals intent: the operation still finishes through Complete.
type Future[T any] struct {
	d        *Dispatcher
	onCancel func()
	waker    func(PollCode)
	value    T
	err      error
	id       uint64
	mu       sync.Mutex
	state    futureState
	cancel   bool
	taken    bool
}

// NewFuture creates a pending future. onCancel, if set, is signalled at
// most once when cancellation is requested before completion.
func NewFuture[T any](d *Dispatcher, onCancel func()) *Future[T] {
	return &Future[T]{d: d, onCancel: onCancel, id: futureIDs.Add(1)}
}

// ID identifies the future in logs and errors.
func (f *Future[T]) ID() uint64 { return f.id }

// Poll registers cont to be posted once the future is ready. A previous
// continuation that has not fired is woken with PollMaybeReady.
func (f *Future[T]) Poll(cont func(PollCode)) error {
	f.mu.Lock()
	switch f.state {
	case futureFreed:
		f.mu.Unlock()
		return errors.StaleHandle("future", f.id)
	case futureDone:
		f.mu.Unlock()
		f.post(cont, PollReady)
		return nil
	}
	prev := f.waker
	f.waker = cont
	f.mu.Unlock()

	if prev != nil {
		f.post(prev, PollMaybeReady)
	}
	return nil
}

func (f *Future[T]) post(cont func(PollCode), code PollCode) {
	if !f.d.Post(func(context.Context) { cont(code) }) {
		Logger().Warn("continuation dropped, dispatcher closed",
			zap.Uint64("future", f.id),
			zap.Stringer("code", code))
	}
}

// Complete resolves the future. Only the first completion counts; later
// ones are logged and reported as false. A completion after Cancel is
// expected and delivered normally.
func (f *Future[T]) Complete(value T, err error) bool {
	f.mu.Lock()
	if f.state != futurePending {
		f.mu.Unlock()
		Logger().Warn("late completion ignored", zap.Uint64("future", f.id))
		return false
	}
	if f.cancel {
		Logger().Debug("completion after cancel", zap.Uint64("future", f.id), zap.Error(err))
	}
	f.value, f.err = value, err
	f.state = futureDone
	waker := f.waker
	f.waker = nil
	f.mu.Unlock()

	if waker != nil {
		f.post(waker, PollReady)
	}
	return true
}

// Cancel requests cancellation. It is a no-op once the future completed.
func (f *Future[T]) Cancel() {
	f.mu.Lock()
	if f.state != futurePending || f.cancel {
		f.mu.Unlock()
		return
	}
	f.cancel = true
	onCancel := f.onCancel
	f.mu.Unlock()

	if onCancel != nil {
		onCancel()
	}
}

// Cancelled reports whether cancellation was requested.
func (f *Future[T]) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancel
}

// Take returns the result of a ready future. The result is handed out
// once.
func (f *Future[T]) Take() (T, error) {
	var zero T
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case f.state == futureFreed:
		return zero, errors.StaleHandle("future", f.id)
	case f.state == futurePending:
		return zero, errors.New(errors.PhaseRuntime, errors.KindNotInitialized).
			Value(f.id).
			Detail("future %d is not ready", f.id).
			Build()
	case f.taken:
		return zero, errors.New(errors.PhaseRuntime, errors.KindDoubleFree).
			Value(f.id).
			Detail("result of future %d already taken", f.id).
			Build()
	}
	f.taken = true
	value := f.value
	f.value = zero
	return value, f.err
}

// Free releases the future. A second free fails with a double free.
func (f *Future[T]) Free() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == futureFreed {
		return errors.DoubleFree("future", f.id)
	}
	var zero T
	f.state = futureFreed
	f.value = zero
	f.waker = nil
	return nil
}

// Await polls until the future is ready, then takes its result and frees
// it. Awaiting on the dispatcher context would wait for a continuation
// that can only run on that same context, so it is rejected.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	var zero T
	if f.d.OnContext(ctx) {
		return zero, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Value(f.id).
			Detail("await of future %d on the dispatcher context would deadlock", f.id).
			Build()
	}
	for {
		codes := make(chan PollCode, 1)
		if err := f.Poll(func(c PollCode) { codes <- c }); err != nil {
			return zero, err
		}
		select {
		case c := <-codes:
			if c != PollReady {
				continue
			}
		case <-ctx.Done():
			f.Cancel()
			return zero, errors.Wrap(errors.PhaseRuntime, errors.KindCancelled, ctx.Err(), "await abandoned")
		}
		v, err := f.Take()
		if ferr := f.Free(); ferr != nil && err == nil {
			err = ferr
		}
		return v, err
	}
}
