// Package registry maps (module path, type name) to concrete types across
// every component of a generation run.
//
// All components are registered before any is generated, so forward
// references between components resolve. Sealing the registry makes it
// read-only, after which concurrent lookups are safe.
package registry

import (
	"sort"

	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/ir"
)

// Key identifies a registered type.
type Key struct {
	ModulePath string
	Name       string
}

func (k Key) String() string { return k.ModulePath + "." + k.Name }

// Registry is the cross-component type map.
type Registry struct {
	types      map[Key]ir.Type
	modules    map[string]int // registered types per module path
	namespaces map[string]string
	sealed     bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		types:      make(map[Key]ir.Type),
		modules:    make(map[string]int),
		namespaces: make(map[string]string),
	}
}

func (r *Registry) checkOpen(what string) error {
	if r.sealed {
		return errors.New(errors.PhaseRegistry, errors.KindRegistration).
			Detail("registry is sealed, cannot %s", what).
			Build()
	}
	return nil
}

// Insert registers t under its module path and name. A later insert with
// the same key replaces the earlier one.
func (r *Registry) Insert(t ir.Type) error {
	if err := r.checkOpen("insert " + typeID(t)); err != nil {
		return err
	}
	switch t.(type) {
	case ir.Record, ir.Enum, ir.Object, ir.Custom, ir.CallbackInterface:
	default:
		return errors.New(errors.PhaseRegistry, errors.KindInvalidInput).
			Type(typeID(t)).
			Detail("only named local types can be registered").
			Build()
	}
	key := Key{ModulePath: ir.ModulePath(t), Name: ir.Name(t)}
	if _, ok := r.types[key]; !ok {
		r.modules[key.ModulePath]++
	}
	r.types[key] = t
	return nil
}

// Register inserts every type ci declares and records the namespace of
// its module path.
func (r *Registry) Register(ci *ir.ComponentInterface) error {
	if err := r.checkOpen("register " + ci.Namespace); err != nil {
		return err
	}
	r.namespaces[ci.ModulePath] = ci.Namespace
	if _, ok := r.modules[ci.ModulePath]; !ok {
		r.modules[ci.ModulePath] = 0
	}
	for _, t := range ci.DeclaredTypes() {
		if err := r.Insert(t); err != nil {
			return err
		}
	}
	return nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() { r.sealed = true }

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool { return r.sealed }

// Len returns the number of registered types.
func (r *Registry) Len() int { return len(r.types) }

// Keys returns every registered key, sorted.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.types))
	for k := range r.types {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Resolve returns the concrete type an External reference names.
func (r *Registry) Resolve(e ir.External) (ir.Type, error) {
	if _, ok := r.modules[e.ModulePath]; !ok {
		return nil, errors.ModuleNotFound(e.ModulePath, e.Name)
	}
	t, ok := r.types[Key{ModulePath: e.ModulePath, Name: e.Name}]
	if !ok {
		return nil, errors.TypeNotFound(e.ModulePath, e.Name)
	}
	return t, nil
}

// ResolveType replaces every External reference inside t with its
// registered type.
func (r *Registry) ResolveType(t ir.Type) (ir.Type, error) {
	switch t := t.(type) {
	case ir.External:
		return r.Resolve(t)
	case ir.Optional:
		inner, err := r.ResolveType(t.Inner)
		if err != nil {
			return nil, err
		}
		return ir.Optional{Inner: inner}, nil
	case ir.Sequence:
		inner, err := r.ResolveType(t.Inner)
		if err != nil {
			return nil, err
		}
		return ir.Sequence{Inner: inner}, nil
	case ir.Map:
		key, err := r.ResolveType(t.Key)
		if err != nil {
			return nil, err
		}
		value, err := r.ResolveType(t.Value)
		if err != nil {
			return nil, err
		}
		return ir.Map{Key: key, Value: value}, nil
	case ir.Custom:
		if t.Builtin == nil {
			return t, nil
		}
		builtin, err := r.ResolveType(t.Builtin)
		if err != nil {
			return nil, err
		}
		t.Builtin = builtin
		return t, nil
	default:
		return t, nil
	}
}

// ResolveAll checks every External reference of ci, returning the first
// failure.
func (r *Registry) ResolveAll(ci *ir.ComponentInterface) error {
	for _, e := range ci.ExternalTypes() {
		if _, err := r.Resolve(e); err != nil {
			return err
		}
	}
	return nil
}

// NamespaceFor returns the namespace of the component registered under
// modulePath.
func (r *Registry) NamespaceFor(modulePath string) (string, error) {
	ns, ok := r.namespaces[modulePath]
	if !ok {
		return "", errors.New(errors.PhaseRegistry, errors.KindModuleNotFound).
			Type(modulePath).
			Detail("no component registered for module %q", modulePath).
			Build()
	}
	return ns, nil
}

func typeID(t ir.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
