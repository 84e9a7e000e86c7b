package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseBridge,
				Kind:   KindMissingReturn,
				Path:   []string{"Listener", "on_event"},
				Type:   "CallbackInterface(app.Listener)",
				Slot:   "CallbackInterfaceListenerMethod0",
				Detail: "no out-return",
			},
			contains: []string{"[bridge]", "missing_return", "Listener.on_event", "CallbackInterface(app.Listener)", "slot CallbackInterfaceListenerMethod0", "no out-return"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseMap,
				Kind:  KindUnmappedType,
			},
			contains: []string{"[map]", "unmapped_type"},
		},
		{
			name: "slot only",
			err: &Error{
				Phase:  PhaseBridge,
				Kind:   KindMissingReturn,
				Slot:   "VTableCallbackInterfaceFoo",
				Detail: "bad",
			},
			contains: []string{"slot VTableCallbackInterfaceFoo - bad"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRuntime,
				Kind:   KindAllocation,
				Detail: "memory full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[runtime]", "allocation", "memory full", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseLoad,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseRegistry,
		Kind:  KindTypeNotFound,
		Type:  "mod_a.Foo",
	}

	if !err.Is(&Error{Phase: PhaseRegistry, Kind: KindTypeNotFound}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseModel, Kind: KindTypeNotFound}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseRegistry, Kind: KindModuleNotFound}) {
		t.Error("Is should not match different kind")
	}

	wrapped := fmt.Errorf("lowering app: %w", err)
	if !errors.Is(wrapped, &Error{Phase: PhaseRegistry, Kind: KindTypeNotFound}) {
		t.Error("errors.Is should see through fmt wrapping")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseMap, KindUnmappedType).
		Path("Shape", "area").
		Type("Reference(Reference(Int32))").
		Slot("uniffi_geo_fn_method_shape_area").
		Value(7).
		Cause(cause).
		Detail("kind %d has no %s", 7, "rendering").
		Build()

	if err.Phase != PhaseMap {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseMap)
	}
	if len(err.Path) != 2 || err.Path[0] != "Shape" || err.Path[1] != "area" {
		t.Errorf("Path = %v, want [Shape area]", err.Path)
	}
	if err.Type != "Reference(Reference(Int32))" {
		t.Errorf("Type = %v", err.Type)
	}
	if err.Slot != "uniffi_geo_fn_method_shape_area" {
		t.Errorf("Slot = %v", err.Slot)
	}
	if err.Value != 7 {
		t.Errorf("Value = %v, want 7", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "kind 7 has no rendering" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("ModuleNotFound", func(t *testing.T) {
		err := ModuleNotFound("mod_a", "Foo")
		if err.Kind != KindModuleNotFound || err.Phase != PhaseRegistry {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if err.Type != "mod_a.Foo" {
			t.Errorf("Type = %v, want mod_a.Foo", err.Type)
		}
	})

	t.Run("TypeNotFound", func(t *testing.T) {
		err := TypeNotFound("mod_a", "Bar")
		if err.Kind != KindTypeNotFound {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Detail, `"Bar"`) {
			t.Errorf("Detail = %v, should name the type", err.Detail)
		}
	})

	t.Run("MissingReturn", func(t *testing.T) {
		err := MissingReturn("CallbackInterfaceLMethod0", "L.get")
		if err.Slot != "CallbackInterfaceLMethod0" {
			t.Errorf("Slot = %v", err.Slot)
		}
	})

	t.Run("ValueCycle", func(t *testing.T) {
		err := ValueCycle([]string{"Record(a.A)", "Record(a.B)", "Record(a.A)"})
		if err.Type != "Record(a.A)" {
			t.Errorf("Type = %v", err.Type)
		}
		if ValueCycle(nil).Type != "" {
			t.Error("empty path should leave Type empty")
		}
	})

	t.Run("DoubleFree", func(t *testing.T) {
		err := DoubleFree("buffer", 16)
		if err.Kind != KindDoubleFree || err.Value != uint64(16) {
			t.Errorf("got %v value %v", err.Kind, err.Value)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseRuntime, 10, 5)
		if !strings.Contains(err.Detail, "[10, 15)") {
			t.Errorf("Detail = %v", err.Detail)
		}
	})
}

func TestIsDefect(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"unmapped", Unmapped(PhaseMap, "X", ""), true},
		{"module not found", ModuleNotFound("m", "T"), true},
		{"missing return", MissingReturn("s", "m"), true},
		{"double free is runtime", DoubleFree("buffer", 1), false},
		{"wrapped defect", fmt.Errorf("ctx: %w", TypeNotFound("m", "T")), true},
		{"wrapped in Error cause", Wrap(PhaseLower, KindInvalidInput, Unmapped(PhaseMap, "X", ""), "lower"), true},
		{"aggregate", Append(nil, InvalidInput(PhaseModel, "a"), ValueCycle([]string{"A"})), true},
		{"aggregate no defect", Append(nil, InvalidInput(PhaseModel, "a")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDefect(tt.err); got != tt.want {
				t.Errorf("IsDefect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppend(t *testing.T) {
	if err := Append(nil, nil, nil); err != nil {
		t.Errorf("Append of nils = %v, want nil", err)
	}

	a := NotFound(PhaseModel, "record", "Point")
	b := InvalidInput(PhaseModel, "duplicate")
	err := Append(nil, a, b)
	if !errors.Is(err, &Error{Phase: PhaseModel, Kind: KindNotFound}) {
		t.Error("aggregate should match first member")
	}
	if !errors.Is(err, &Error{Phase: PhaseModel, Kind: KindInvalidInput}) {
		t.Error("aggregate should match second member")
	}
}
