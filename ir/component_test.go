package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ffi-bindgen/internal/fixture"
	"github.com/wippyai/ffi-bindgen/ir"
)

func identities(types []ir.Type) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, t.String())
	}
	return out
}

func TestTypesUniverse(t *testing.T) {
	ci := fixture.Geometry()
	ids := identities(ci.Types())

	for _, want := range []string{
		"Record(geometry.Point)",
		"Enum(geometry.Color)",
		"Object(geometry.Shape)",
		"Float64",
	} {
		assert.Contains(t, ids, want)
	}
	assert.Len(t, ids, 4, "types are deduplicated by identity")
}

func TestTypesNested(t *testing.T) {
	ci := fixture.Events()
	ids := identities(ci.Types())
	for _, want := range []string{
		"Sequence<String>", "String", "Optional<Bytes>", "Bytes", "Int32",
		"CallbackInterface(events.Listener)", "CallbackInterface(events.Fetcher)",
	} {
		assert.Contains(t, ids, want)
	}
}

func TestErrorNames(t *testing.T) {
	ci := fixture.Geometry()
	assert.True(t, ci.IsNameUsedAsError("Color"))
	assert.False(t, ci.IsNameUsedAsError("Point"))
	assert.False(t, ci.IsNameUsedAsError("Shape"))
}

func TestAsyncClassification(t *testing.T) {
	geo := fixture.Geometry()
	assert.False(t, geo.HasAsyncCalls())
	assert.False(t, geo.HasAsyncCallbacks())
	assert.True(t, geo.HasCallbacks())

	ev := fixture.Events()
	assert.True(t, ev.HasAsyncCalls())
	assert.True(t, ev.HasAsyncCallbacks())
}

func TestExternalTypes(t *testing.T) {
	ci := fixture.Consumer()
	ext := ci.ExternalTypes()
	require.Len(t, ext, 1)
	assert.Equal(t, "geometry", ext[0].ModulePath)
	for _, typ := range ci.LocalTypes() {
		assert.False(t, ir.IsExternal(typ))
	}
}

func TestNormalize(t *testing.T) {
	ci := &ir.ComponentInterface{
		Namespace:   "n",
		ModulePath:  "n",
		Objects:     []ir.ObjectDef{{Name: "Obj", Imp: ir.ImplCallbackTrait}},
		CustomTypes: []ir.CustomDef{{Name: "Url", Builtin: ir.String}},
		Functions: []ir.Function{{
			Name: "f",
			Arguments: []ir.Argument{
				{Name: "o", Type: ir.Optional{Inner: ir.Object{ModulePath: "n", Name: "Obj"}}},
				{Name: "u", Type: ir.Custom{ModulePath: "n", Name: "Url"}},
			},
		}},
	}
	ci.Normalize()

	opt := ci.Functions[0].Arguments[0].Type.(ir.Optional)
	assert.Equal(t, ir.ImplCallbackTrait, opt.Inner.(ir.Object).Imp)
	assert.Equal(t, ir.String, ci.Functions[0].Arguments[1].Type.(ir.Custom).Builtin)
}
