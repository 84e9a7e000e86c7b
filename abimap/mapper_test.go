package abimap_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/wippyai/ffi-bindgen/abimap"
	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/ir"
)

// representative returns a well-formed ABI type of kind k. References
// point at an unsigned byte.
func representative(k ir.AbiKind) ir.AbiType {
	switch k {
	case ir.AbiStruct:
		return ir.StructOf("ForeignFuture")
	case ir.AbiCallback:
		return ir.CallbackOf("RustFutureContinuationCallback")
	case ir.AbiArcPointer:
		return ir.ArcPointerTo("Shape")
	case ir.AbiReference:
		return ir.RefTo(ir.AbiU8)
	case ir.AbiMutReference:
		return ir.MutRefTo(ir.AbiU8)
	default:
		return ir.AbiType{Kind: k}
	}
}

func TestMapIsTotal(t *testing.T) {
	m := abimap.New("geometry")
	for _, k := range ir.AbiKinds() {
		base := representative(k)
		targets := []ir.AbiType{base}
		if !base.IsReference() {
			targets = append(targets, ir.RefTo(base), ir.MutRefTo(base))
		}
		for _, typ := range targets {
			t.Run(typ.String(), func(t *testing.T) {
				r, err := m.Map(typ)
				require.NoError(t, err)
				assert.NotEmpty(t, r.HostLabel)
				assert.NotEmpty(t, r.CLabel)
				assert.NotEmpty(t, r.Namespace)
				assert.NotEmpty(t, r.Default)
				assert.Equal(t, 1, r.Lift.Placeholders())
				assert.Equal(t, 1, r.Lower.Placeholders())
				assert.Equal(t, typ.IsReference(), r.ByReference)
			})
		}
	}
}

func genAbiType() *rapid.Generator[ir.AbiType] {
	return rapid.Custom(func(t *rapid.T) ir.AbiType {
		kinds := ir.AbiKinds()
		k := rapid.SampledFrom(kinds[:len(kinds)-2]).Draw(t, "kind")
		name := rapid.StringMatching(`[A-Z][a-zA-Z0-9]{0,12}`).Draw(t, "name")
		var base ir.AbiType
		switch k {
		case ir.AbiStruct:
			base = ir.StructOf(name)
		case ir.AbiCallback:
			base = ir.CallbackOf(name)
		case ir.AbiArcPointer:
			base = ir.ArcPointerTo(name)
		default:
			base = ir.AbiType{Kind: k}
		}
		switch rapid.IntRange(0, 2).Draw(t, "wrap") {
		case 1:
			return ir.RefTo(base)
		case 2:
			return ir.MutRefTo(base)
		}
		return base
	})
}

func TestMapTotalityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		typ := genAbiType().Draw(t, "type")
		ns := rapid.StringMatching(`[a-z][a-z_]{0,8}`).Draw(t, "namespace")
		r, err := abimap.New(ns).Map(typ)
		if err != nil {
			t.Fatalf("Map(%s): %v", typ, err)
		}
		if r.HostLabel == "" || r.CLabel == "" {
			t.Fatalf("Map(%s) produced empty labels", typ)
		}
	})
}

func TestMapUnmapped(t *testing.T) {
	u8 := ir.AbiU8
	nested := ir.RefTo(ir.RefTo(u8))
	tests := []struct {
		name string
		typ  ir.AbiType
	}{
		{"zero kind", ir.AbiType{}},
		{"out of range kind", ir.AbiType{Kind: ir.AbiKind(99)}},
		{"dangling reference", ir.AbiType{Kind: ir.AbiReference}},
		{"reference to reference", nested},
		{"anonymous struct", ir.AbiType{Kind: ir.AbiStruct}},
		{"anonymous callback", ir.AbiType{Kind: ir.AbiCallback}},
		{"reference to anonymous struct", ir.MutRefTo(ir.AbiType{Kind: ir.AbiStruct})},
	}

	m := abimap.New("geometry")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Map(tt.typ)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, &errors.Error{Phase: errors.PhaseMap, Kind: errors.KindUnmappedType}))
			assert.True(t, errors.IsDefect(err))

			var e *errors.Error
			require.True(t, stderrors.As(err, &e))
			assert.NotEmpty(t, e.Type, "defect must name the offending type")
		})
	}
}

func TestMapAllStopsAtDefect(t *testing.T) {
	m := abimap.New("geometry")
	out, err := m.MapAll([]ir.AbiType{ir.AbiU8, ir.AbiRustBuffer})
	require.NoError(t, err)
	require.Len(t, out, 2)

	out, err = m.MapAll([]ir.AbiType{ir.AbiU8, {}, ir.AbiRustBuffer})
	require.Error(t, err)
	assert.Nil(t, out)
}

func TestMapLabels(t *testing.T) {
	tests := []struct {
		typ       ir.AbiType
		host      string
		c         string
		namespace string
		def       string
	}{
		{ir.AbiU8, "number", "uint8_t", "uniffi_jsi", "0"},
		{ir.AbiI32, "number", "int32_t", "uniffi_jsi", "0"},
		{ir.AbiU64, "bigint", "uint64_t", "uniffi_jsi", "0n"},
		{ir.AbiI64, "bigint", "int64_t", "uniffi_jsi", "0n"},
		{ir.AbiF32, "number", "float", "uniffi_jsi", "0.0"},
		{ir.AbiF64, "number", "double", "uniffi_jsi", "0.0"},
		{ir.AbiHandleType, "bigint", "/*handle*/ uint64_t", "uniffi_jsi", "0n"},
		{ir.ArcPointerTo("Shape"), "bigint", "void *", "uniffi::geometry", "null"},
		{ir.AbiVoidPtr, "/*pointer*/ bigint", "void *", "uniffi_jsi", "0n"},
		{ir.AbiRustBuffer, "Uint8Array", "RustBuffer", "uniffi_jsi", "/*empty*/ new Uint8Array(0)"},
		{ir.AbiBytes, "ForeignBytes", "ForeignBytes", "uniffi::geometry", "null"},
		{ir.AbiStatus, "UniffiRustCallStatus", "RustCallStatus", "uniffi_jsi", "uniffiCreateCallStatus()"},
		{ir.StructOf("ForeignFuture"), "UniffiForeignFuture", "UniffiForeignFuture", "uniffi::geometry::st::foreignfuture", "{} as UniffiForeignFuture"},
		{ir.CallbackOf("CallbackInterfaceFree"), "UniffiCallbackInterfaceFree", "UniffiCallbackInterfaceFree", "uniffi::geometry::cb::callbackinterfacefree", "null"},
	}

	m := abimap.New("geometry")
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			r, err := m.Map(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.host, r.HostLabel)
			assert.Equal(t, tt.c, r.CLabel)
			assert.Equal(t, tt.namespace, r.Namespace)
			assert.Equal(t, tt.def, r.Default)
			assert.False(t, r.ByReference)
		})
	}
}

func TestWideIntegersAreDistinct(t *testing.T) {
	m := abimap.New("geometry")
	narrow, err := m.Map(ir.AbiU32)
	require.NoError(t, err)
	for _, wide := range []ir.AbiType{ir.AbiU64, ir.AbiI64, ir.AbiHandleType, ir.ArcPointerTo("Shape")} {
		r, err := m.Map(wide)
		require.NoError(t, err)
		assert.NotEqual(t, narrow.HostLabel, r.HostLabel, wide.String())
	}
}

func TestMapByReference(t *testing.T) {
	m := abimap.New("geometry")
	tests := []struct {
		typ  ir.AbiType
		host string
		c    string
	}{
		{ir.MutRefTo(ir.AbiU8), "UniffiReferenceHolder<number>", "uint8_t *"},
		{ir.MutRefTo(ir.AbiI64), "UniffiReferenceHolder<bigint>", "int64_t *"},
		{ir.MutRefTo(ir.AbiRustBuffer), "UniffiReferenceHolder<Uint8Array>", "RustBuffer *"},
		{ir.MutRefTo(ir.ArcPointerTo("Shape")), "PointerByReference", "void * *"},
		{ir.RefTo(ir.StructOf("ForeignFuture")), "UniffiForeignFuture", "UniffiForeignFuture *"},
		{ir.MutRefTo(ir.AbiStatus), "UniffiRustCallStatus", "RustCallStatus *"},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			r, err := m.Map(tt.typ)
			require.NoError(t, err)
			assert.True(t, r.ByReference)
			assert.Equal(t, tt.c, r.CLabel)
			assert.Equal(t, tt.host, r.HostLabel)
		})
	}
}

func TestStructByReferenceMatchesByValue(t *testing.T) {
	m := abimap.New("events")
	for _, name := range []string{"ForeignFuture", "ForeignFutureStructU8", "VTableCallbackInterfaceListener"} {
		value, err := m.Map(ir.StructOf(name))
		require.NoError(t, err)
		ref, err := m.Map(ir.MutRefTo(ir.StructOf(name)))
		require.NoError(t, err)
		assert.Equal(t, value.HostLabel, ref.HostLabel, name)
		assert.Equal(t, value.Default, ref.Default, name)
	}

	value, err := m.Map(ir.AbiU8)
	require.NoError(t, err)
	ref, err := m.Map(ir.MutRefTo(ir.AbiU8))
	require.NoError(t, err)
	assert.NotEqual(t, value.HostLabel, ref.HostLabel)
}

func TestMapConversions(t *testing.T) {
	m := abimap.New("geometry")

	r, err := m.Map(ir.AbiU32)
	require.NoError(t, err)
	assert.Equal(t, "uniffi_jsi::Bridging<uint32_t>", r.Bridging)
	assert.Equal(t, "uniffi_jsi::Bridging<uint32_t>::fromJs(rt, callInvoker, args[0])", r.Lower.Apply("args[0]"))
	assert.Equal(t, "uniffi_jsi::Bridging<uint32_t>::toJs(rt, callInvoker, value)", r.Lift.Apply("value"))

	r, err = m.Map(ir.MutRefTo(ir.AbiRustBuffer))
	require.NoError(t, err)
	assert.Equal(t, "uniffi::geometry::Bridging<RustBuffer>", r.Bridging)
	assert.Equal(t,
		"uniffi::geometry::Bridging<ReferenceHolder<RustBuffer>>::fromJs(rt, callInvoker, js_out)",
		r.Read.Apply("js_out"))
	assert.Equal(t,
		"uniffi::geometry::Bridging<RustBuffer *>::toJs(rt, callInvoker, rs_out)",
		r.Write.Apply("rs_out"))

	r, err = m.Map(ir.AbiStatus)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Read.Placeholders())
	assert.Equal(t,
		"uniffi::geometry::Bridging<RustCallStatus>::copyFromJs(rt, callInvoker, js, rs)",
		r.Read.Apply("js", "rs"))
}

func TestBufferOwnership(t *testing.T) {
	m := abimap.New("geometry")
	for _, typ := range []ir.AbiType{ir.AbiRustBuffer, ir.BufferOf("other"), ir.MutRefTo(ir.AbiRustBuffer)} {
		r, err := m.Map(typ)
		require.NoError(t, err)
		assert.True(t, r.LowerTransfers, typ.String())
		assert.True(t, r.LiftConsumes, typ.String())
	}
	for _, typ := range []ir.AbiType{ir.AbiU8, ir.AbiBytes, ir.StructOf("ForeignFuture")} {
		r, err := m.Map(typ)
		require.NoError(t, err)
		assert.False(t, r.LowerTransfers, typ.String())
		assert.False(t, r.LiftConsumes, typ.String())
	}
}

func TestNamedShapesDoNotCollide(t *testing.T) {
	a, err := abimap.New("geometry").Map(ir.CallbackOf("CallbackInterfaceFree"))
	require.NoError(t, err)
	b, err := abimap.New("events").Map(ir.CallbackOf("CallbackInterfaceFree"))
	require.NoError(t, err)
	assert.Equal(t, a.CLabel, b.CLabel)
	assert.NotEqual(t, a.Namespace, b.Namespace)

	x, err := abimap.New("geometry").Map(ir.AbiRustBuffer)
	require.NoError(t, err)
	y, err := abimap.New("events").Map(ir.AbiRustBuffer)
	require.NoError(t, err)
	assert.Equal(t, x.Namespace, y.Namespace, "plain buffers share the includes namespace")
}

func TestTemplateApply(t *testing.T) {
	tpl := abimap.Template("f({}, {})")
	assert.Equal(t, "f(a, b)", tpl.Apply("a", "b"))
	assert.Equal(t, "f(a, {})", tpl.Apply("a"))
	assert.Equal(t, "f(a, b)", tpl.Apply("a", "b", "c"))
	assert.Equal(t, 2, tpl.Placeholders())
	assert.Equal(t, "plain", abimap.Template("plain").Apply("x"))
}
