package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/internal/fixture"
	"github.com/wippyai/ffi-bindgen/ir"
)

func TestValidateFixtures(t *testing.T) {
	require.NoError(t, fixture.Geometry().Validate())
	require.NoError(t, fixture.Events().Validate())
	require.NoError(t, fixture.Consumer().Validate())
}

func TestValidateValueCycle(t *testing.T) {
	a := ir.Record{ModulePath: "m", Name: "A"}
	b := ir.Record{ModulePath: "m", Name: "B"}
	ci := &ir.ComponentInterface{
		Namespace:  "m",
		ModulePath: "m",
		Records: []ir.RecordDef{
			{Name: "A", Fields: []ir.Field{{Name: "b", Type: ir.Optional{Inner: b}}}},
			{Name: "B", Fields: []ir.Field{{Name: "a", Type: ir.Sequence{Inner: a}}}},
		},
	}

	err := ci.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseModel, Kind: errors.KindValueCycle})
	assert.True(t, errors.IsDefect(err))
	assert.Contains(t, err.Error(), "Record(m.A)")
}

func TestValidateCycleThroughObjectAllowed(t *testing.T) {
	node := ir.Object{ModulePath: "m", Name: "Node"}
	ci := &ir.ComponentInterface{
		Namespace:  "m",
		ModulePath: "m",
		Records: []ir.RecordDef{
			{Name: "Edge", Fields: []ir.Field{{Name: "to", Type: node}}},
		},
		Objects: []ir.ObjectDef{{
			Name:    "Node",
			Methods: []ir.Function{{Name: "edges", Return: ir.Sequence{Inner: ir.Record{ModulePath: "m", Name: "Edge"}}}},
		}},
	}
	assert.NoError(t, ci.Validate())
}

func TestValidateCycleThroughCustom(t *testing.T) {
	ci := &ir.ComponentInterface{
		Namespace:   "m",
		ModulePath:  "m",
		CustomTypes: []ir.CustomDef{{Name: "Wrapped", Builtin: ir.Record{ModulePath: "m", Name: "R"}}},
		Records: []ir.RecordDef{
			{Name: "R", Fields: []ir.Field{{Name: "w", Type: ir.Custom{ModulePath: "m", Name: "Wrapped"}}}},
		},
	}
	assert.ErrorIs(t, ci.Validate(), &errors.Error{Phase: errors.PhaseModel, Kind: errors.KindValueCycle})
}

func TestValidateAggregates(t *testing.T) {
	ci := &ir.ComponentInterface{
		Namespace:   "m",
		ModulePath:  "m",
		Records:     []ir.RecordDef{{Name: "Dup"}},
		Enums:       []ir.EnumDef{{Name: "Dup"}},
		CustomTypes: []ir.CustomDef{{Name: "NoBuiltin"}},
		Functions: []ir.Function{
			{Name: "f", Return: ir.Record{ModulePath: "m", Name: "Missing"}},
			{Name: "g", Return: ir.Record{ModulePath: "other", Name: "Foreign"}},
		},
	}

	err := ci.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseModel, Kind: errors.KindDuplicate})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseModel, Kind: errors.KindNotFound})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseModel, Kind: errors.KindInvalidInput})
	assert.False(t, errors.IsDefect(err))
}
