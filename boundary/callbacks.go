package boundary

import (
	"context"
	stderrors "errors"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/ffi-bindgen/errors"
)

// Method is one vtable slot of a host-implemented interface. Arguments
// and the return value cross as serialized buffers.
type Method[T any] func(ctx context.Context, impl T, args []byte) ([]byte, error)

// VTable is the method table native code calls through.
type VTable[T any] struct {
	Methods []Method[T]
	// Free runs when native code releases an instance.
	Free func(impl T)
}

// CallbackRegistry holds host-side implementations of one interface,
// lowered to handles that native code passes back when calling them.
type CallbackRegistry[T any] struct {
	iface   string
	d       *Dispatcher
	handles *HandleMap[T]
	vtable  *VTable[T]
	mu      sync.RWMutex
}

// NewCallbackRegistry creates the registry of iface, dispatching method
// calls through d.
func NewCallbackRegistry[T any](iface string, d *Dispatcher) *CallbackRegistry[T] {
	return &CallbackRegistry[T]{
		iface:   iface,
		d:       d,
		handles: NewHandleMap[T](iface),
	}
}

// Interface returns the interface name.
func (r *CallbackRegistry[T]) Interface() string { return r.iface }

// RegisterVTable installs the method table. It succeeds once.
func (r *CallbackRegistry[T]) RegisterVTable(vt VTable[T]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vtable != nil {
		return errors.New(errors.PhaseRuntime, errors.KindAlreadyRegistered).
			Type(r.iface).
			Detail("vtable for %s already registered", r.iface).
			Build()
	}
	r.vtable = &vt
	return nil
}

func (r *CallbackRegistry[T]) table() (*VTable[T], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.vtable == nil {
		return nil, errors.New(errors.PhaseRuntime, errors.KindNotInitialized).
			Type(r.iface).
			Detail("vtable for %s not registered", r.iface).
			Build()
	}
	return r.vtable, nil
}

// Lower hands impl to native code.
func (r *CallbackRegistry[T]) Lower(impl T) (Handle, error) {
	if _, err := r.table(); err != nil {
		return 0, err
	}
	return r.handles.Insert(impl)
}

// Invoke runs method index of the instance behind h on the host context,
// blocking the caller until it returns.
func (r *CallbackRegistry[T]) Invoke(ctx context.Context, h Handle, index int, args []byte) ([]byte, error) {
	vt, err := r.table()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(vt.Methods) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Type(r.iface).
			Value(index).
			Detail("%s has no method %d", r.iface, index).
			Build()
	}
	impl, err := r.handles.Get(h)
	if err != nil {
		return nil, err
	}

	var out []byte
	err = r.d.Call(ctx, func(ctx context.Context) error {
		var err error
		out, err = vt.Methods[index](ctx, impl, args)
		return err
	})
	return out, err
}

// Free releases the instance behind h. A second free of the same handle
// fails with a double free.
func (r *CallbackRegistry[T]) Free(ctx context.Context, h Handle) error {
	impl, err := r.handles.Remove(h)
	if err != nil {
		if stderrors.Is(err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindStaleHandle}) {
			Logger().Warn("rejected double free",
				zap.String("interface", r.iface),
				zap.Uint64("handle", uint64(h)))
			return errors.DoubleFree(r.iface, uint64(h))
		}
		return err
	}
	vt, err := r.table()
	if err != nil || vt.Free == nil {
		return nil
	}
	return r.d.Call(ctx, func(context.Context) error {
		vt.Free(impl)
		return nil
	})
}

// Live returns the number of instances native code still holds.
func (r *CallbackRegistry[T]) Live() int { return r.handles.Len() }
