package abimap

import (
	"strings"

	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/ir"
)

// Template is a conversion expression with {} placeholders.
type Template string

// Apply fills the placeholders left to right. Surplus placeholders are
// left in place.
func (t Template) Apply(args ...string) string {
	s := string(t)
	var b strings.Builder
	for _, a := range args {
		i := strings.Index(s, "{}")
		if i < 0 {
			break
		}
		b.WriteString(s[:i])
		b.WriteString(a)
		s = s[i+2:]
	}
	b.WriteString(s)
	return b.String()
}

// Placeholders counts the {} markers in t.
func (t Template) Placeholders() int { return strings.Count(string(t), "{}") }

// Rendering is how one ABI type appears at the boundary.
type Rendering struct {
	ABI ir.AbiType

	HostLabel string // host-side type label
	CLabel    string // C ABI type name
	Namespace string // namespace declaring the C type
	Bridging  string // bridging class converting between the two sides
	Default   string // zero value on the host side

	Lift  Template // native value to host value
	Lower Template // host value to native value
	Read  Template // copy a host-filled out slot back to native
	Write Template // expose a native out slot to the host

	ByReference bool

	// LowerTransfers means lowering hands ownership of the native value
	// to the callee. LiftConsumes means lifting frees the native value.
	LowerTransfers bool
	LiftConsumes   bool
}

// Mapper renders ABI types for one component.
type Mapper struct {
	namespace string
	cppNS     string
}

// New creates a mapper for the component namespace.
func New(namespace string) *Mapper {
	return &Mapper{namespace: namespace, cppNS: CppNamespace(namespace)}
}

// ComponentNamespace returns the component's root bridging namespace.
func (m *Mapper) ComponentNamespace() string { return m.cppNS }

// Map renders t, or returns an unmapped_type defect.
func (m *Mapper) Map(t ir.AbiType) (Rendering, error) {
	host, err := m.hostLabel(t)
	if err != nil {
		return Rendering{}, err
	}
	cname, err := m.cLabel(t)
	if err != nil {
		return Rendering{}, err
	}
	def, err := m.defaultValue(t)
	if err != nil {
		return Rendering{}, err
	}

	inner := t.Deref()
	innerName, err := m.cLabel(inner)
	if err != nil {
		return Rendering{}, err
	}
	bns := m.bridgingNamespace(t)
	bridging := bns + "::Bridging<" + innerName + ">"

	r := Rendering{
		ABI:         t,
		HostLabel:   host,
		CLabel:      cname,
		Namespace:   m.namespaceOf(t),
		Bridging:    bridging,
		Default:     def,
		Lift:        Template(bridging + "::toJs(rt, callInvoker, {})"),
		Lower:       Template(bridging + "::fromJs(rt, callInvoker, {})"),
		Read:        Template(bns + "::Bridging<ReferenceHolder<" + innerName + ">>::fromJs(rt, callInvoker, {})"),
		Write:       Template(bns + "::Bridging<" + innerName + " *>::toJs(rt, callInvoker, {})"),
		ByReference: t.IsReference(),
	}
	if inner.Kind == ir.AbiCallStatus {
		r.Read = Template(bridging + "::copyFromJs(rt, callInvoker, {}, {})")
		r.Write = Template(bridging + "::copyIntoJs(rt, callInvoker, {}, {})")
	}
	if inner.Kind == ir.AbiBuffer {
		r.LowerTransfers = true
		r.LiftConsumes = true
	}
	return r, nil
}

// MapAll renders every type, stopping at the first defect.
func (m *Mapper) MapAll(ts []ir.AbiType) ([]Rendering, error) {
	out := make([]Rendering, 0, len(ts))
	for _, t := range ts {
		r, err := m.Map(t)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func unmapped(t ir.AbiType, detail string) error {
	return errors.Unmapped(errors.PhaseMap, t.String(), detail)
}

// checkRef validates a reference and returns its target.
func checkRef(t ir.AbiType) (ir.AbiType, error) {
	if t.Inner == nil {
		return ir.AbiType{}, unmapped(t, "reference without a target")
	}
	if t.Inner.IsReference() {
		return ir.AbiType{}, unmapped(t, "reference to a reference")
	}
	return *t.Inner, nil
}

func (m *Mapper) hostLabel(t ir.AbiType) (string, error) {
	switch t.Kind {
	case ir.AbiUInt8, ir.AbiInt8, ir.AbiUInt16, ir.AbiInt16, ir.AbiUInt32, ir.AbiInt32,
		ir.AbiFloat32, ir.AbiFloat64:
		return "number", nil
	case ir.AbiUInt64, ir.AbiInt64, ir.AbiHandle, ir.AbiArcPointer:
		return "bigint", nil
	case ir.AbiVoidPointer:
		return "/*pointer*/ bigint", nil
	case ir.AbiBuffer:
		return "Uint8Array", nil
	case ir.AbiForeignBytes:
		return "ForeignBytes", nil
	case ir.AbiCallStatus:
		return "UniffiRustCallStatus", nil
	case ir.AbiStruct:
		if t.Name == "" {
			return "", unmapped(t, "struct without a name")
		}
		return StructName(t.Name), nil
	case ir.AbiCallback:
		if t.Name == "" {
			return "", unmapped(t, "callback without a name")
		}
		return CallbackName(t.Name), nil
	case ir.AbiReference, ir.AbiMutReference:
		inner, err := checkRef(t)
		if err != nil {
			return "", err
		}
		return m.hostLabelByReference(inner)
	default:
		return "", unmapped(t, "no host label")
	}
}

// hostLabelByReference renders an out-parameter. Scalars and buffers get
// a holder; structs, callbacks and the call status are already
// reference-like and render as by value.
func (m *Mapper) hostLabelByReference(t ir.AbiType) (string, error) {
	label, err := m.hostLabel(t)
	if err != nil {
		return "", err
	}
	switch t.Kind {
	case ir.AbiStruct, ir.AbiCallback, ir.AbiCallStatus:
		return label, nil
	case ir.AbiArcPointer:
		return "PointerByReference", nil
	default:
		return "UniffiReferenceHolder<" + label + ">", nil
	}
}

func (m *Mapper) cLabel(t ir.AbiType) (string, error) {
	switch t.Kind {
	case ir.AbiUInt8:
		return "uint8_t", nil
	case ir.AbiInt8:
		return "int8_t", nil
	case ir.AbiUInt16:
		return "uint16_t", nil
	case ir.AbiInt16:
		return "int16_t", nil
	case ir.AbiUInt32:
		return "uint32_t", nil
	case ir.AbiInt32:
		return "int32_t", nil
	case ir.AbiUInt64:
		return "uint64_t", nil
	case ir.AbiInt64:
		return "int64_t", nil
	case ir.AbiFloat32:
		return "float", nil
	case ir.AbiFloat64:
		return "double", nil
	case ir.AbiArcPointer, ir.AbiVoidPointer:
		return "void *", nil
	case ir.AbiHandle:
		return "/*handle*/ uint64_t", nil
	case ir.AbiBuffer:
		return "RustBuffer", nil
	case ir.AbiForeignBytes:
		return "ForeignBytes", nil
	case ir.AbiCallStatus:
		return "RustCallStatus", nil
	case ir.AbiStruct:
		if t.Name == "" {
			return "", unmapped(t, "struct without a name")
		}
		return StructName(t.Name), nil
	case ir.AbiCallback:
		if t.Name == "" {
			return "", unmapped(t, "callback without a name")
		}
		return CallbackName(t.Name), nil
	case ir.AbiReference, ir.AbiMutReference:
		inner, err := checkRef(t)
		if err != nil {
			return "", err
		}
		name, err := m.cLabel(inner)
		if err != nil {
			return "", err
		}
		return name + " *", nil
	default:
		return "", unmapped(t, "no C label")
	}
}

func (m *Mapper) defaultValue(t ir.AbiType) (string, error) {
	switch t.Kind {
	case ir.AbiUInt8, ir.AbiInt8, ir.AbiUInt16, ir.AbiInt16, ir.AbiUInt32, ir.AbiInt32:
		return "0", nil
	case ir.AbiUInt64, ir.AbiInt64, ir.AbiHandle, ir.AbiVoidPointer:
		return "0n", nil
	case ir.AbiFloat32, ir.AbiFloat64:
		return "0.0", nil
	case ir.AbiArcPointer, ir.AbiCallback, ir.AbiForeignBytes:
		return "null", nil
	case ir.AbiBuffer:
		return "/*empty*/ new Uint8Array(0)", nil
	case ir.AbiCallStatus:
		return "uniffiCreateCallStatus()", nil
	case ir.AbiStruct:
		if t.Name == "" {
			return "", unmapped(t, "struct without a name")
		}
		return "{} as " + StructName(t.Name), nil
	case ir.AbiReference, ir.AbiMutReference:
		inner, err := checkRef(t)
		if err != nil {
			return "", err
		}
		switch inner.Kind {
		case ir.AbiStruct, ir.AbiCallStatus:
			return m.defaultValue(inner)
		}
		return "null", nil
	default:
		return "", unmapped(t, "no default value")
	}
}

// namespaceOf is the namespace declaring the C type of t.
func (m *Mapper) namespaceOf(t ir.AbiType) string {
	switch t.Kind {
	case ir.AbiUInt8, ir.AbiInt8, ir.AbiUInt16, ir.AbiInt16, ir.AbiUInt32, ir.AbiInt32,
		ir.AbiUInt64, ir.AbiInt64, ir.AbiFloat32, ir.AbiFloat64,
		ir.AbiHandle, ir.AbiCallStatus, ir.AbiBuffer, ir.AbiVoidPointer:
		return IncludesNamespace
	case ir.AbiCallback:
		return m.cppNS + "::cb::" + subNamespace(t.Name)
	case ir.AbiStruct:
		return m.cppNS + "::st::" + subNamespace(t.Name)
	default:
		return m.cppNS
	}
}

// bridgingNamespace is where Bridging<T> is specialised for t. Buffers
// and the call status carry component-specific helpers.
func (m *Mapper) bridgingNamespace(t ir.AbiType) string {
	switch t.Kind {
	case ir.AbiBuffer, ir.AbiCallStatus, ir.AbiCallback, ir.AbiStruct:
		return m.cppNS
	case ir.AbiReference, ir.AbiMutReference:
		if t.Inner != nil {
			return m.bridgingNamespace(*t.Inner)
		}
		return m.cppNS
	default:
		return m.namespaceOf(t)
	}
}
