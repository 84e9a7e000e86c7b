package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/ir"
)

func TestTypeIdentity(t *testing.T) {
	tests := []struct {
		typ  ir.Type
		want string
	}{
		{ir.Int32, "Int32"},
		{ir.Optional{Inner: ir.String}, "Optional<String>"},
		{ir.Map{Key: ir.String, Value: ir.Sequence{Inner: ir.UInt8}}, "Map<String, Sequence<UInt8>>"},
		{ir.Record{ModulePath: "geo", Name: "Point"}, "Record(geo.Point)"},
		{ir.Object{ModulePath: "geo", Name: "Shape", Imp: ir.ImplTrait}, "Object(geo.Shape)"},
		{ir.External{ModulePath: "a::b", Name: "Foo", Kind: ir.ExternalInterface}, "External(a::b.Foo, interface)"},
		{ir.Custom{ModulePath: "m", Name: "Url", Builtin: ir.String}, "Custom(m.Url)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.String())
		})
	}
}

func TestParseTypeLookup(t *testing.T) {
	point := ir.Record{ModulePath: "geo", Name: "Point"}
	lookup := func(name string) (ir.Type, bool) {
		if name == "Point" {
			return point, true
		}
		return nil, false
	}

	got, err := ir.ParseType("Sequence<Optional< Point >>", lookup)
	require.NoError(t, err)
	assert.Equal(t, ir.Sequence{Inner: ir.Optional{Inner: point}}, got)

	_, err = ir.ParseType("Missing", lookup)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindNotFound})
}

func TestParseTypeErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"Optional<Int32",
		"Map<String>",
		"Record()",
		"Record(m.A, interface)",
		"External(m.A, weird)",
		"Int32 trailing",
		"Object(.)",
		"Record(mod.)",
		"Enum(.Color)",
		"External(., record)",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := ir.ParseType(src, nil)
			require.Error(t, err)
		})
	}
}

func TestParseTypeRejectsEmptyNames(t *testing.T) {
	for _, src := range []string{"Object(.)", "Record(mod.)", "Custom(.Url)"} {
		_, err := ir.ParseType(src, nil)
		require.Error(t, err, src)
		assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidData}, src)
	}
	typ, err := ir.ParseType("Custom(Url)", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Custom{Name: "Url"}, typ)
}

func genName() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Z][a-z]{0,6}`)
}

func genType(depth int) *rapid.Generator[ir.Type] {
	return rapid.Custom(func(t *rapid.T) ir.Type {
		top := 7
		if depth <= 0 {
			top = 5
		}
		switch rapid.IntRange(0, top).Draw(t, "kind") {
		case 0, 1:
			ps := ir.Primitives()
			return rapid.SampledFrom(ps).Draw(t, "prim")
		case 2:
			return ir.Record{ModulePath: "mod", Name: genName().Draw(t, "name")}
		case 3:
			return ir.Enum{ModulePath: "a::b", Name: genName().Draw(t, "name")}
		case 4:
			return ir.External{ModulePath: "ext", Name: genName().Draw(t, "name"), Kind: ir.ExternalKind(rapid.IntRange(0, 2).Draw(t, "ek"))}
		case 5:
			return ir.CallbackInterface{ModulePath: "mod", Name: genName().Draw(t, "name")}
		case 6:
			if rapid.Bool().Draw(t, "opt") {
				return ir.Optional{Inner: genType(depth-1).Draw(t, "inner")}
			}
			return ir.Sequence{Inner: genType(depth-1).Draw(t, "inner")}
		default:
			return ir.Map{Key: genType(depth-1).Draw(t, "key"), Value: genType(depth-1).Draw(t, "value")}
		}
	})
}

func TestParseTypeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		typ := genType(3).Draw(t, "type")
		parsed, err := ir.ParseType(typ.String(), nil)
		if err != nil {
			t.Fatalf("parse %q: %v", typ.String(), err)
		}
		if parsed.String() != typ.String() {
			t.Fatalf("round trip %q -> %q", typ.String(), parsed.String())
		}
	})
}

func TestAbiTypeOf(t *testing.T) {
	tests := []struct {
		typ  ir.Type
		want string
	}{
		{ir.Boolean, "Int8"},
		{ir.UInt64, "UInt64"},
		{ir.String, "RustBuffer"},
		{ir.Bytes, "RustBuffer"},
		{ir.Optional{Inner: ir.Int32}, "RustBuffer"},
		{ir.Object{ModulePath: "m", Name: "Shape"}, "RustArcPtr(Shape)"},
		{ir.CallbackInterface{ModulePath: "m", Name: "L"}, "UInt64"},
		{ir.Custom{ModulePath: "m", Name: "Handle", Builtin: ir.Int64}, "Int64"},
		{ir.External{ModulePath: "other", Name: "Point"}, "RustBuffer(other)"},
		{ir.External{ModulePath: "other", Name: "Obj", Kind: ir.ExternalInterface}, "RustArcPtr(Obj)"},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ir.AbiTypeOf(tt.typ).String())
		})
	}
}

func TestAbiTypeHelpers(t *testing.T) {
	ref := ir.MutRefTo(ir.StructOf("ForeignFuture"))
	assert.Equal(t, "MutReference(Struct(ForeignFuture))", ref.String())
	assert.True(t, ref.IsReference())
	assert.True(t, ref.IsForeignFuture())
	assert.Equal(t, "Struct(ForeignFuture)", ref.Deref().String())
	assert.False(t, ir.StructOf("VTableCallbackInterfaceL").IsForeignFuture())
	assert.Equal(t, "AbiKind(0)", ir.AbiType{}.String())
	assert.Len(t, ir.AbiKinds(), 20)
}
