package ir

import (
	"strings"
)

// Type is an abstract type referenced by the interface model.
// The set of implementations is closed.
type Type interface {
	isType()
	// String returns the canonical identity of the type.
	String() string
}

// Primitive is a builtin scalar or buffer-serialised leaf type.
type Primitive uint8

const (
	UInt8 Primitive = iota + 1
	Int8
	UInt16
	Int16
	UInt32
	Int32
	UInt64
	Int64
	Float32
	Float64
	Boolean
	String
	Bytes
	Timestamp
	Duration
)

var primitiveNames = [...]string{
	UInt8:     "UInt8",
	Int8:      "Int8",
	UInt16:    "UInt16",
	Int16:     "Int16",
	UInt32:    "UInt32",
	Int32:     "Int32",
	UInt64:    "UInt64",
	Int64:     "Int64",
	Float32:   "Float32",
	Float64:   "Float64",
	Boolean:   "Boolean",
	String:    "String",
	Bytes:     "Bytes",
	Timestamp: "Timestamp",
	Duration:  "Duration",
}

// Primitives lists every primitive in declaration order.
func Primitives() []Primitive {
	out := make([]Primitive, 0, len(primitiveNames)-1)
	for p := UInt8; p <= Duration; p++ {
		out = append(out, p)
	}
	return out
}

func (Primitive) isType() {}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) && primitiveNames[p] != "" {
		return primitiveNames[p]
	}
	return "Primitive(?)"
}

// IsInteger reports whether p is a fixed-width integer.
func (p Primitive) IsInteger() bool {
	return p >= UInt8 && p <= Int64
}

// Optional is a nullable inner type.
type Optional struct{ Inner Type }

// Sequence is a list of the inner type.
type Sequence struct{ Inner Type }

// Map is a key/value dictionary.
type Map struct{ Key, Value Type }

// Record references a record definition by module path and name.
type Record struct{ ModulePath, Name string }

// Enum references an enum definition.
type Enum struct{ ModulePath, Name string }

// ObjectImpl says how an object's behaviour is supplied.
type ObjectImpl uint8

const (
	// ImplStruct objects are concrete native types.
	ImplStruct ObjectImpl = iota
	// ImplTrait objects are native trait objects.
	ImplTrait
	// ImplCallbackTrait objects are traits the host may also implement.
	ImplCallbackTrait
)

func (i ObjectImpl) String() string {
	switch i {
	case ImplTrait:
		return "trait"
	case ImplCallbackTrait:
		return "callback"
	default:
		return "struct"
	}
}

// Object references an object (handle) type.
type Object struct {
	ModulePath string
	Name       string
	Imp        ObjectImpl
}

// HasCallbackInterface reports whether the host may implement the object.
func (o Object) HasCallbackInterface() bool { return o.Imp == ImplCallbackTrait }

// IsTraitInterface reports whether the object is any kind of trait.
func (o Object) IsTraitInterface() bool { return o.Imp != ImplStruct }

// CallbackInterface references a host-implemented interface.
type CallbackInterface struct{ ModulePath, Name string }

// Custom is a named wrapper serialised as its builtin type.
type Custom struct {
	ModulePath string
	Name       string
	Builtin    Type
}

// ExternalKind tells how an external type crosses the ABI.
type ExternalKind uint8

const (
	ExternalData ExternalKind = iota
	ExternalInterface
	ExternalTrait
)

// External references a type defined by another component.
type External struct {
	ModulePath string
	Name       string
	Kind       ExternalKind
}

func (Optional) isType()          {}
func (Sequence) isType()          {}
func (Map) isType()               {}
func (Record) isType()            {}
func (Enum) isType()              {}
func (Object) isType()            {}
func (CallbackInterface) isType() {}
func (Custom) isType()            {}
func (External) isType()          {}

func (t Optional) String() string { return "Optional<" + identity(t.Inner) + ">" }
func (t Sequence) String() string { return "Sequence<" + identity(t.Inner) + ">" }
func (t Map) String() string {
	return "Map<" + identity(t.Key) + ", " + identity(t.Value) + ">"
}
func (t Record) String() string            { return named("Record", t.ModulePath, t.Name) }
func (t Enum) String() string              { return named("Enum", t.ModulePath, t.Name) }
func (t Object) String() string            { return named("Object", t.ModulePath, t.Name) }
func (t CallbackInterface) String() string { return named("CallbackInterface", t.ModulePath, t.Name) }
func (t Custom) String() string            { return named("Custom", t.ModulePath, t.Name) }

func (t External) String() string {
	switch t.Kind {
	case ExternalInterface:
		return "External(" + qualify(t.ModulePath, t.Name) + ", interface)"
	case ExternalTrait:
		return "External(" + qualify(t.ModulePath, t.Name) + ", trait)"
	default:
		return named("External", t.ModulePath, t.Name)
	}
}

func identity(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func named(kind, modulePath, name string) string {
	return kind + "(" + qualify(modulePath, name) + ")"
}

func qualify(modulePath, name string) string {
	if modulePath == "" {
		return name
	}
	return modulePath + "." + name
}

// Name returns the declared name of a named type, or "" for primitives
// and composites.
func Name(t Type) string {
	switch t := t.(type) {
	case Record:
		return t.Name
	case Enum:
		return t.Name
	case Object:
		return t.Name
	case CallbackInterface:
		return t.Name
	case Custom:
		return t.Name
	case External:
		return t.Name
	default:
		return ""
	}
}

// ModulePath returns the module a named type is declared in.
func ModulePath(t Type) string {
	switch t := t.(type) {
	case Record:
		return t.ModulePath
	case Enum:
		return t.ModulePath
	case Object:
		return t.ModulePath
	case CallbackInterface:
		return t.ModulePath
	case Custom:
		return t.ModulePath
	case External:
		return t.ModulePath
	default:
		return ""
	}
}

// Equal compares two types by identity.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.String() == b.String()
}

// Inner returns the direct component types of a composite, or nil.
func Inner(t Type) []Type {
	switch t := t.(type) {
	case Optional:
		return []Type{t.Inner}
	case Sequence:
		return []Type{t.Inner}
	case Map:
		return []Type{t.Key, t.Value}
	case Custom:
		if t.Builtin != nil {
			return []Type{t.Builtin}
		}
	}
	return nil
}

// Walk visits t and every type nested in it, depth first, parents before
// children. Named definitions are not expanded.
func Walk(t Type, visit func(Type)) {
	if t == nil {
		return
	}
	visit(t)
	for _, in := range Inner(t) {
		Walk(in, visit)
	}
}

// IsExternal reports whether t is an External reference.
func IsExternal(t Type) bool {
	_, ok := t.(External)
	return ok
}

func splitQualified(s string) (modulePath, name string) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return "", s
	}
	return s[:i], s[i+1:]
}
