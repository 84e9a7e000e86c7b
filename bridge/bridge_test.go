package bridge_test

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/wippyai/ffi-bindgen/bridge"
	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/internal/fixture"
	"github.com/wippyai/ffi-bindgen/ir"
)

func TestCallbackBridgeCompleteness(t *testing.T) {
	c, err := bridge.ForComponent(fixture.Events())
	require.NoError(t, err)
	require.Len(t, c.Callbacks, 2)

	listener := c.Callbacks[0]
	assert.Equal(t, "Listener", listener.Interface)
	slots := listener.Slots()
	require.Len(t, slots, 2+1+1)
	assert.Equal(t, bridge.RoleInit, slots[0].Role)
	assert.Equal(t, "uniffi_events_fn_init_callback_vtable_listener", slots[0].Name)
	assert.Equal(t, bridge.RoleMethod, slots[1].Role)
	assert.Equal(t, "on_event", slots[1].Field)
	assert.Equal(t, "CallbackInterfaceListenerMethod0", slots[1].Name)
	assert.Equal(t, "CallbackInterfaceListenerMethod1", slots[2].Name)
	assert.True(t, slots[3].IsFree())
	assert.Equal(t, ir.FreeField, slots[3].Field)

	require.NotNil(t, slots[2].Return)
	assert.True(t, slots[2].Return.Equal(ir.AbiI32))
	assert.Nil(t, slots[1].Return)

	fetcher := c.Callbacks[1]
	require.Len(t, fetcher.Slots(), 1+1+1)
	assert.True(t, fetcher.Methods[0].Async)
	assert.Equal(t, "ForeignFutureCompleteRustBuffer", fetcher.FutureComplete["fetch"])
}

func TestObjectCallbackBridge(t *testing.T) {
	c, err := bridge.ForComponent(fixture.Geometry())
	require.NoError(t, err)
	require.Len(t, c.Callbacks, 1)

	shape := c.Callbacks[0]
	assert.True(t, shape.IsObject)
	assert.Equal(t, "VTableCallbackInterfaceShape", shape.VTable.Name)
	assert.Len(t, shape.Slots(), 2+1+1)
	assert.Equal(t, "uniffi_geometry_fn_init_callback_vtable_shape", shape.Init.Name)
}

func TestAsyncCallBridge(t *testing.T) {
	c, err := bridge.ForComponent(fixture.Events())
	require.NoError(t, err)
	require.Len(t, c.Calls, 2)

	subscribe := c.Calls[0]
	assert.False(t, subscribe.IsAsync())
	assert.Len(t, subscribe.Slots(), 1)
	assert.Equal(t, "uniffi_events_fn_func_subscribe", subscribe.Call.Name)

	download := c.Calls[1]
	require.True(t, download.IsAsync())
	slots := download.Slots()
	require.Len(t, slots, 1+3)
	assert.Equal(t, []bridge.Role{bridge.RoleCall, bridge.RolePoll, bridge.RoleContinuation, bridge.RoleCancel},
		[]bridge.Role{slots[0].Role, slots[1].Role, slots[2].Role, slots[3].Role})
	assert.Equal(t, "ffi_events_rust_future_poll_rust_buffer", download.Poll.Name)
	assert.Equal(t, "ffi_events_rust_future_cancel_rust_buffer", download.Cancel.Name)
	assert.Equal(t, "ffi_events_rust_future_complete_rust_buffer", download.CompleteSymbol)
	assert.Equal(t, "ffi_events_rust_future_free_rust_buffer", download.FreeSymbol)
	assert.Equal(t, ir.ContinuationCallback, download.Continuation.Name)
	require.NotNil(t, download.Call.Return)
	assert.Equal(t, ir.AbiHandle, download.Call.Return.Kind)
}

func TestSlotContracts(t *testing.T) {
	c, err := bridge.ForComponent(fixture.Events())
	require.NoError(t, err)

	var continuations int
	for _, s := range c.Slots() {
		if s.IsContinuation() {
			continuations++
			assert.False(t, s.IsBlocking(), s.Name)
			assert.Equal(t, bridge.Posted, s.Threading)
			assert.Equal(t, bridge.NativeToHost, s.Direction)
			assert.Equal(t, bridge.OneShot, s.Lifetime)
			continue
		}
		assert.True(t, s.IsBlocking(), s.Name)
		switch s.Role {
		case bridge.RoleMethod, bridge.RoleFree:
			assert.Equal(t, bridge.NativeToHost, s.Direction, s.Name)
			assert.Equal(t, bridge.Blocking, s.Threading, s.Name)
			assert.NotNil(t, s.Callback, s.Name)
		default:
			assert.Equal(t, bridge.HostToNative, s.Direction, s.Name)
			assert.Equal(t, bridge.Caller, s.Threading, s.Name)
			assert.NotNil(t, s.Function, s.Name)
		}
	}
	assert.Equal(t, 1, continuations)
}

func TestSlotNamespaces(t *testing.T) {
	c, err := bridge.ForComponent(fixture.Events())
	require.NoError(t, err)

	listener := c.Callbacks[0]
	assert.Equal(t, "uniffi::events", listener.Init.Namespace)
	assert.Equal(t, "uniffi::events::cb::callbackinterfacelistenermethod0", listener.Methods[0].Namespace)
	assert.Equal(t, "uniffi::events::cb::callbackinterfacefree::vtablecallbackinterfacelistener", listener.Free.Namespace)
	assert.NotEqual(t, listener.Free.Namespace, c.Callbacks[1].Free.Namespace)
}

func TestExportsWithoutAsync(t *testing.T) {
	c, err := bridge.ForComponent(fixture.Geometry())
	require.NoError(t, err)

	require.Len(t, c.Exports.Structs, 1)
	vtable := c.Exports.Structs[0]
	assert.Equal(t, "VTableCallbackInterfaceShape", vtable.Struct.Name)
	assert.Len(t, vtable.FieldModules, 3)
	assert.True(t, strings.HasSuffix(vtable.FieldModules[ir.FreeField], "__free"))

	var names []string
	for _, cb := range c.Exports.Callbacks {
		names = append(names, cb.Callback.Name)
		assert.False(t, cb.Callback.IsContinuation())
		assert.False(t, cb.Callback.IsFutureCallback())
	}
	assert.Equal(t, []string{ir.CallbackInterfaceFree, "CallbackInterfaceShapeMethod0", "CallbackInterfaceShapeMethod1"}, names)
	assert.Equal(t, "VTableCallbackInterfaceShape", c.Exports.Callbacks[0].Owner)

	for _, f := range c.Exports.Functions {
		assert.False(t, f.IsRustBuffer(), f.Name)
		assert.False(t, f.IsFuture(), f.Name)
	}
	assert.Len(t, c.Exports.Functions, 7)
}

func TestExportsSkipNativeStructs(t *testing.T) {
	ci := fixture.Geometry()
	defs := append(ci.FfiDefinitions(), &ir.FfiStruct{
		Name:   "NativeScratch",
		Fields: []ir.FfiField{{Name: "len", Type: ir.AbiU64}},
	})
	c, err := bridge.Generate(ci, defs)
	require.NoError(t, err)

	var names []string
	for _, st := range c.Exports.Structs {
		names = append(names, st.Struct.Name)
	}
	assert.Equal(t, []string{"VTableCallbackInterfaceShape"}, names)
}

func TestExportsWithAsync(t *testing.T) {
	c, err := bridge.ForComponent(fixture.Events())
	require.NoError(t, err)

	// ForeignFuture, 13 result structs, two vtables.
	assert.Len(t, c.Exports.Structs, 1+13+2)

	var frees, completes, continuations int
	owners := map[string]bool{}
	for _, cb := range c.Exports.Callbacks {
		switch {
		case cb.Callback.IsFreeCallback():
			frees++
			owners[cb.Owner] = true
		case cb.Callback.IsFunctionLiteral():
			completes++
		case cb.Callback.IsContinuation():
			continuations++
		}
	}
	assert.Equal(t, 3, frees)
	assert.Len(t, owners, 3)
	assert.Equal(t, 13, completes)
	assert.Equal(t, 1, continuations)
	assert.Len(t, c.Exports.Callbacks, 3+13+1+3)

	var futures int
	for _, f := range c.Exports.Functions {
		if f.IsFuture() {
			futures++
		}
	}
	assert.Equal(t, 4*13, futures)
}

// replaceCallback swaps the named callback definition.
func replaceCallback(defs []ir.FfiDefinition, name string, fn func(*ir.FfiCallbackFunction) *ir.FfiCallbackFunction) []ir.FfiDefinition {
	out := make([]ir.FfiDefinition, len(defs))
	for i, d := range defs {
		if cb, ok := d.(*ir.FfiCallbackFunction); ok && cb.Name == name {
			out[i] = fn(cb)
			continue
		}
		out[i] = d
	}
	return out
}

func withoutArgument(cb *ir.FfiCallbackFunction, name string) *ir.FfiCallbackFunction {
	cp := *cb
	cp.Arguments = nil
	for _, a := range cb.Arguments {
		if a.Name != name {
			cp.Arguments = append(cp.Arguments, a)
		}
	}
	return &cp
}

func TestMissingReturnIsDefect(t *testing.T) {
	ci := fixture.Events()
	tests := []struct {
		name string
		slot string
		edit func(*ir.FfiCallbackFunction) *ir.FfiCallbackFunction
	}{
		{
			name: "sync out-return dropped",
			slot: "CallbackInterfaceListenerMethod1",
			edit: func(cb *ir.FfiCallbackFunction) *ir.FfiCallbackFunction { return withoutArgument(cb, ir.OutReturn) },
		},
		{
			name: "sync out-return of the wrong type",
			slot: "CallbackInterfaceListenerMethod1",
			edit: func(cb *ir.FfiCallbackFunction) *ir.FfiCallbackFunction {
				cp := withoutArgument(cb, ir.OutReturn)
				cp.Arguments = append(cp.Arguments, ir.FfiArgument{Name: ir.OutReturn, Type: ir.MutRefTo(ir.AbiI64)})
				return cp
			},
		},
		{
			name: "async completion callback dropped",
			slot: "CallbackInterfaceFetcherMethod0",
			edit: func(cb *ir.FfiCallbackFunction) *ir.FfiCallbackFunction {
				return withoutArgument(cb, ir.FutureCallbackArg)
			},
		},
		{
			name: "async out-return dropped",
			slot: "CallbackInterfaceFetcherMethod0",
			edit: func(cb *ir.FfiCallbackFunction) *ir.FfiCallbackFunction { return withoutArgument(cb, ir.OutReturn) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs := replaceCallback(ci.FfiDefinitions(), tt.slot, tt.edit)
			c, err := bridge.Generate(ci, defs)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, errors.IsDefect(err))
			assert.True(t, stderrors.Is(err, &errors.Error{Phase: errors.PhaseBridge, Kind: errors.KindMissingReturn}))

			var e *errors.Error
			require.True(t, stderrors.As(err, &e))
			assert.Equal(t, tt.slot, e.Slot)
		})
	}
}

func TestVoidMethodNeedsNoReturn(t *testing.T) {
	ci := fixture.Events()
	defs := replaceCallback(ci.FfiDefinitions(), "CallbackInterfaceListenerMethod0", func(cb *ir.FfiCallbackFunction) *ir.FfiCallbackFunction {
		return withoutArgument(cb, ir.OutReturn)
	})
	_, err := bridge.Generate(ci, defs)
	require.NoError(t, err)
}

func TestMissingDefinition(t *testing.T) {
	ci := fixture.Events()
	var defs []ir.FfiDefinition
	for _, d := range ci.FfiDefinitions() {
		if d.DefinitionName() == ci.VTableInitSymbol("Listener") {
			continue
		}
		defs = append(defs, d)
	}
	_, err := bridge.Generate(ci, defs)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, &errors.Error{Phase: errors.PhaseBridge, Kind: errors.KindNotFound}))
	assert.Contains(t, err.Error(), "init_callback_vtable_listener")
}

var returnTypes = []ir.Type{nil, ir.Int32, ir.String, ir.Float64, ir.Boolean, ir.UInt64}

func genComponent(t *rapid.T) *ir.ComponentInterface {
	ci := &ir.ComponentInterface{Namespace: "prop", ModulePath: "prop"}
	names := rapid.SliceOfNDistinct(rapid.StringMatching(`[A-Z][a-z]{2,8}`), 0, 4, rapid.ID[string]).Draw(t, "interfaces")
	for _, name := range names {
		n := rapid.IntRange(0, 5).Draw(t, name+"/methods")
		def := ir.CallbackInterfaceDef{Name: name}
		for i := 0; i < n; i++ {
			def.Methods = append(def.Methods, ir.Function{
				Name:   fmt.Sprintf("m%d", i),
				Return: rapid.SampledFrom(returnTypes).Draw(t, "return"),
				Async:  rapid.Bool().Draw(t, "async"),
			})
		}
		ci.CallbackInterfaces = append(ci.CallbackInterfaces, def)
	}
	fns := rapid.IntRange(0, 5).Draw(t, "functions")
	for i := 0; i < fns; i++ {
		ci.Functions = append(ci.Functions, ir.Function{
			Name:   fmt.Sprintf("f%d", i),
			Return: rapid.SampledFrom(returnTypes).Draw(t, "return"),
			Async:  rapid.Bool().Draw(t, "async"),
		})
	}
	return ci
}

func TestSlotCountProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ci := genComponent(t)
		c, err := bridge.ForComponent(ci)
		if err != nil {
			t.Fatalf("ForComponent: %v", err)
		}
		if len(c.Callbacks) != len(ci.CallbackInterfaces) {
			t.Fatalf("got %d callback bridges, want %d", len(c.Callbacks), len(ci.CallbackInterfaces))
		}
		total := 0
		for i, b := range c.Callbacks {
			n := len(ci.CallbackInterfaces[i].Methods)
			if got := len(b.Slots()); got != n+2 {
				t.Fatalf("%s: %d slots, want %d", b.Interface, got, n+2)
			}
			var inits, frees int
			for _, s := range b.Slots() {
				switch s.Role {
				case bridge.RoleInit:
					inits++
				case bridge.RoleFree:
					frees++
				}
			}
			if inits != 1 || frees != 1 {
				t.Fatalf("%s: %d init and %d free slots", b.Interface, inits, frees)
			}
			total += n + 2
		}
		for i, call := range c.Calls {
			want := 1
			if ci.Functions[i].Async {
				want = 4
			}
			if got := len(call.Slots()); got != want {
				t.Fatalf("%s: %d slots, want %d", call.Callable, got, want)
			}
			total += want
		}
		if got := len(c.Slots()); got != total {
			t.Fatalf("component has %d slots, want %d", got, total)
		}
	})
}
