package abimap

import (
	"github.com/wippyai/ffi-bindgen/config"
	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/ir"
)

// CodeType is how an abstract type appears on the host surface.
type CodeType struct {
	Type ir.Type

	Label     string // type used in signatures
	DeclLabel string // name of the declaring class
	Canonical string // identifier fragment, e.g. OptionalTypePoint
	Converter string // FfiConverter object with lift/lower/read/write
	Default   string // default literal, empty when the type has none
	Init      string // startup registration call, empty when none

	// ErrorConverter converts the type in a throws position. Objects use a
	// dedicated converter that lifts the error payload.
	ErrorConverter string

	Imports []config.Import // extra host imports from custom overrides

	Lift           Template
	Lower          Template
	Read           Template // reads from a byte stream
	Write          Template // value, stream
	AllocationSize Template
}

// Oracle finds code types for one component.
// An Oracle is not safe for concurrent use.
type Oracle struct {
	ci        *ir.ComponentInterface
	cfg       *config.Config
	expanding map[string]bool // custom types being resolved
}

// NewOracle creates an oracle. cfg may be nil.
func NewOracle(ci *ir.ComponentInterface, cfg *config.Config) *Oracle {
	return &Oracle{ci: ci, cfg: cfg, expanding: make(map[string]bool)}
}

// Find returns the code type of t.
func (o *Oracle) Find(t ir.Type) (*CodeType, error) {
	ct := &CodeType{Type: t}
	switch t := t.(type) {
	case ir.Primitive:
		label, canonical, def, ok := primitiveCode(t)
		if !ok {
			return nil, errors.Unmapped(errors.PhaseMap, t.String(), "unknown primitive")
		}
		ct.Label, ct.Canonical, ct.Default = label, canonical, def

	case ir.Optional:
		inner, err := o.Find(t.Inner)
		if err != nil {
			return nil, err
		}
		ct.Label = inner.Label + " | undefined"
		if _, nested := t.Inner.(ir.Optional); nested {
			ct.Label = inner.Label
		}
		ct.Canonical = "Optional" + inner.Canonical
		ct.Default = "undefined"
		ct.Imports = inner.Imports

	case ir.Sequence:
		inner, err := o.Find(t.Inner)
		if err != nil {
			return nil, err
		}
		ct.Label = "Array<" + inner.Label + ">"
		ct.Canonical = "Array" + inner.Canonical
		ct.Default = "[]"
		ct.Imports = inner.Imports

	case ir.Map:
		key, err := o.Find(t.Key)
		if err != nil {
			return nil, err
		}
		value, err := o.Find(t.Value)
		if err != nil {
			return nil, err
		}
		ct.Label = "Map<" + key.Label + ", " + value.Label + ">"
		ct.Canonical = "Map" + key.Canonical + value.Canonical
		ct.Default = "new Map()"
		ct.Imports = append(append([]config.Import(nil), key.Imports...), value.Imports...)

	case ir.Record:
		ct.Label = ClassName(t.Name)
		ct.Canonical = "Type" + t.Name

	case ir.Enum:
		ct.Label = ClassName(t.Name)
		ct.Canonical = "Type" + t.Name

	case ir.Object:
		ct.Label, ct.DeclLabel = o.objectLabels(t.Name, t.IsTraitInterface())
		ct.Canonical = "Type" + t.Name
		if t.HasCallbackInterface() {
			ct.Init = "uniffiCallbackInterface" + t.Name + ".register"
		}

	case ir.CallbackInterface:
		ct.Label = ClassName(t.Name)
		ct.DeclLabel = ct.Label + "Impl"
		ct.Canonical = "Type" + t.Name
		ct.Init = "uniffiCallbackInterface" + t.Name + ".register"

	case ir.Custom:
		return o.custom(t)

	case ir.External:
		ct.Canonical = "Type" + t.Name
		switch t.Kind {
		case ir.ExternalInterface:
			ct.Label, ct.DeclLabel = ClassName(t.Name)+"Interface", ClassName(t.Name)
		default:
			ct.Label = ClassName(t.Name)
		}

	default:
		id := "<nil>"
		if t != nil {
			id = t.String()
		}
		return nil, errors.Unmapped(errors.PhaseMap, id, "no code type")
	}

	if ct.DeclLabel == "" {
		ct.DeclLabel = ct.Label
	}
	ct.Converter = "FfiConverter" + ct.Canonical
	ct.ErrorConverter = ct.Converter
	if isObjectLike(ct.Type) {
		ct.ErrorConverter += "__as_error"
	}
	ct.setConverterCalls()
	return ct, nil
}

// objectLabels follows the host convention: concrete objects and error
// objects are used through {Name}Interface; trait objects are used by
// their bare name and implemented by {Name}Impl.
func (o *Oracle) objectLabels(name string, trait bool) (label, decl string) {
	cls := ClassName(name)
	if !trait || (o.ci != nil && o.ci.IsNameUsedAsError(name)) {
		return cls + "Interface", cls
	}
	return cls, cls + "Impl"
}

func (o *Oracle) custom(t ir.Custom) (*CodeType, error) {
	builtin := t.Builtin
	if builtin == nil && o.ci != nil {
		if def, ok := o.ci.Custom(t.Name); ok {
			builtin = def.Builtin
		}
	}
	if builtin == nil {
		return nil, errors.Unmapped(errors.PhaseMap, t.String(), "custom type without a builtin")
	}
	if o.expanding[t.Name] {
		return nil, errors.Unmapped(errors.PhaseMap, t.String(), "custom type builtin refers back to itself")
	}
	o.expanding[t.Name] = true
	base, err := o.Find(builtin)
	delete(o.expanding, t.Name)
	if err != nil {
		return nil, err
	}

	ct := &CodeType{
		Type:      t,
		Label:     ClassName(t.Name),
		Canonical: "Type" + t.Name,
		Default:   base.Default,
	}
	ct.DeclLabel = ct.Label
	ct.Converter = "FfiConverter" + ct.Canonical
	ct.ErrorConverter = ct.Converter
	ct.setConverterCalls()

	override, ok := o.cfg.Custom(t.Name)
	if !ok {
		return ct, nil
	}
	if override.TypeName != "" {
		ct.Label, ct.DeclLabel = override.TypeName, override.TypeName
	}
	ct.Imports = append([]config.Import(nil), override.Imports...)
	// Overrides wrap the builtin's converter rather than the alias.
	if override.Lift != "" {
		ct.Lift = Template(override.ApplyLift(string(base.Lift)))
	}
	if override.Lower != "" {
		ct.Lower = Template(base.Lower.Apply(override.ApplyLower("{}")))
	}
	ct.Default = ""
	return ct, nil
}

func (ct *CodeType) setConverterCalls() {
	c := ct.Converter
	ct.Lift = Template(c + ".lift({})")
	ct.Lower = Template(c + ".lower({})")
	ct.Read = Template(c + ".read({})")
	ct.Write = Template(c + ".write({}, {})")
	ct.AllocationSize = Template(c + ".allocationSize({})")
}

func isObjectLike(t ir.Type) bool {
	switch t := t.(type) {
	case ir.Object:
		return true
	case ir.External:
		return t.Kind != ir.ExternalData
	}
	return false
}

func primitiveCode(p ir.Primitive) (label, canonical, def string, ok bool) {
	switch p {
	case ir.Int8:
		return "/*i8*/number", "Int8", "0", true
	case ir.Int16:
		return "/*i16*/number", "Int16", "0", true
	case ir.Int32:
		return "/*i32*/number", "Int32", "0", true
	case ir.Int64:
		return "/*i64*/bigint", "Int64", "0n", true
	case ir.UInt8:
		return "/*u8*/number", "UInt8", "0", true
	case ir.UInt16:
		return "/*u16*/number", "UInt16", "0", true
	case ir.UInt32:
		return "/*u32*/number", "UInt32", "0", true
	case ir.UInt64:
		return "/*u64*/bigint", "UInt64", "0n", true
	case ir.Float32:
		return "/*f32*/number", "Float32", "0", true
	case ir.Float64:
		return "/*f64*/number", "Float64", "0", true
	case ir.Boolean:
		return "boolean", "Bool", "false", true
	case ir.String:
		return "string", "String", `""`, true
	case ir.Bytes:
		return "ArrayBuffer", "ArrayBuffer", "new ArrayBuffer(0)", true
	case ir.Timestamp:
		return "Date", "Timestamp", "new Date(0)", true
	case ir.Duration:
		return "/*ms*/number", "Duration", "0", true
	}
	return "", "", "", false
}
