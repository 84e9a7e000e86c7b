package lower

import (
	"github.com/wippyai/ffi-bindgen/abimap"
	"github.com/wippyai/ffi-bindgen/bridge"
	"github.com/wippyai/ffi-bindgen/config"
	"github.com/wippyai/ffi-bindgen/ir"
	"github.com/wippyai/ffi-bindgen/registry"
	"github.com/wippyai/ffi-bindgen/typegraph"
)

// CallableKind tells where a callable is declared.
type CallableKind uint8

const (
	KindFunction CallableKind = iota
	KindConstructor
	KindMethod
)

func (k CallableKind) String() string {
	switch k {
	case KindConstructor:
		return "constructor"
	case KindMethod:
		return "method"
	default:
		return "function"
	}
}

// Param is a named argument with its host code type.
type Param struct {
	Name string
	Code *abimap.CodeType
}

// Callable is a host-callable function, constructor or method with
// everything needed to emit its wrapper.
type Callable struct {
	Owner    string // object name, empty for top-level functions
	Kind     CallableKind
	Function ir.Function
	Bridge   *bridge.CallBridge
	Params   []Param
	Return   *abimap.CodeType // nil when the callable returns nothing
	Throws   *abimap.CodeType // nil when the callable cannot fail
}

// Name is the host identifier of the callable.
func (c *Callable) Name() string {
	if c.Kind == KindConstructor && c.Function.Name == "new" {
		return "create"
	}
	return abimap.FnName(c.Function.Name)
}

// Implementation is a host-implemented interface with the code types of
// its methods.
type Implementation struct {
	Bridge  *bridge.CallbackBridge
	Code    *abimap.CodeType
	Methods []Callable
}

// Model is one component fully ordered, mapped and bridge-annotated. It
// is only produced when every step succeeded.
type Model struct {
	Namespace  string
	ModulePath string
	Component  *ir.ComponentInterface
	Config     *config.Config

	Order *typegraph.Order
	// Converters holds the code type of every local type in emission
	// order.
	Converters []*abimap.CodeType

	Definitions []ir.FfiDefinition
	// Renderings maps every ABI type used by Definitions, keyed by
	// identity.
	Renderings map[string]abimap.Rendering

	Bridge          *bridge.Component
	Callables       []Callable
	Implementations []Implementation
	Imports         []registry.Import
}

// Rendering returns the mapping of t. Every type reachable from the
// model's definitions is present.
func (m *Model) Rendering(t ir.AbiType) (abimap.Rendering, bool) {
	r, ok := m.Renderings[t.String()]
	return r, ok
}

// CodeType returns the converter of a local type by identity.
func (m *Model) CodeType(id string) (*abimap.CodeType, bool) {
	for _, ct := range m.Converters {
		if ct.Type.String() == id {
			return ct, true
		}
	}
	return nil, false
}

// Initializers returns the startup registration calls in emission order.
func (m *Model) Initializers() []string {
	var out []string
	for _, ct := range m.Converters {
		if ct.Init != "" {
			out = append(out, ct.Init)
		}
	}
	return out
}

// CustomImports returns the host imports custom type overrides add.
func (m *Model) CustomImports() []config.Import {
	seen := make(map[config.Import]bool)
	var out []config.Import
	for _, ct := range m.Converters {
		for _, imp := range ct.Imports {
			if !seen[imp] {
				seen[imp] = true
				out = append(out, imp)
			}
		}
	}
	return out
}
