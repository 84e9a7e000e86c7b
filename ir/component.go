package ir

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Argument is a named parameter.
type Argument struct {
	Name string
	Type Type
}

// Function is a top-level function, method, constructor or callback
// interface method. Return and Throws are nil when absent.
type Function struct {
	Return    Type
	Throws    Type
	Name      string
	Arguments []Argument
	Async     bool
}

// Field is a named member of a record or enum variant.
type Field struct {
	Name string
	Type Type
}

// RecordDef declares a record's fields.
type RecordDef struct {
	Name   string
	Fields []Field
}

// Variant is one enum case. Fields is empty for flat enums.
type Variant struct {
	Name   string
	Fields []Field
}

// EnumDef declares an enum.
type EnumDef struct {
	Name          string
	Variants      []Variant
	NonExhaustive bool
}

// Flat reports whether no variant carries data.
func (e *EnumDef) Flat() bool {
	for _, v := range e.Variants {
		if len(v.Fields) > 0 {
			return false
		}
	}
	return true
}

// ObjectDef declares an object and its callables.
type ObjectDef struct {
	Name         string
	Constructors []Function
	Methods      []Function
	Imp          ObjectImpl
}

// HasCallbackInterface reports whether the host may implement the object.
func (o *ObjectDef) HasCallbackInterface() bool { return o.Imp == ImplCallbackTrait }

// CallbackInterfaceDef declares a host-implemented interface.
type CallbackInterfaceDef struct {
	Name    string
	Methods []Function
}

// HasAsyncMethod reports whether any method is async.
func (c *CallbackInterfaceDef) HasAsyncMethod() bool {
	for _, m := range c.Methods {
		if m.Async {
			return true
		}
	}
	return false
}

// CustomDef declares a custom type over a builtin.
type CustomDef struct {
	Builtin Type
	Name    string
}

// ComponentInterface is one component's public surface.
type ComponentInterface struct {
	Namespace          string
	ModulePath         string
	Functions          []Function
	Records            []RecordDef
	Enums              []EnumDef
	Objects            []ObjectDef
	CallbackInterfaces []CallbackInterfaceDef
	CustomTypes        []CustomDef
}

// Record returns the record declared under name.
func (ci *ComponentInterface) Record(name string) (*RecordDef, bool) {
	for i := range ci.Records {
		if ci.Records[i].Name == name {
			return &ci.Records[i], true
		}
	}
	return nil, false
}

// Enum returns the enum declared under name.
func (ci *ComponentInterface) Enum(name string) (*EnumDef, bool) {
	for i := range ci.Enums {
		if ci.Enums[i].Name == name {
			return &ci.Enums[i], true
		}
	}
	return nil, false
}

// Object returns the object declared under name.
func (ci *ComponentInterface) Object(name string) (*ObjectDef, bool) {
	for i := range ci.Objects {
		if ci.Objects[i].Name == name {
			return &ci.Objects[i], true
		}
	}
	return nil, false
}

// CallbackInterface returns the callback interface declared under name.
func (ci *ComponentInterface) CallbackInterface(name string) (*CallbackInterfaceDef, bool) {
	for i := range ci.CallbackInterfaces {
		if ci.CallbackInterfaces[i].Name == name {
			return &ci.CallbackInterfaces[i], true
		}
	}
	return nil, false
}

// Custom returns the custom type declared under name.
func (ci *ComponentInterface) Custom(name string) (*CustomDef, bool) {
	for i := range ci.CustomTypes {
		if ci.CustomTypes[i].Name == name {
			return &ci.CustomTypes[i], true
		}
	}
	return nil, false
}

// DeclaredTypes returns a type reference for every local definition.
func (ci *ComponentInterface) DeclaredTypes() []Type {
	var out []Type
	for _, r := range ci.Records {
		out = append(out, Record{ModulePath: ci.ModulePath, Name: r.Name})
	}
	for _, e := range ci.Enums {
		out = append(out, Enum{ModulePath: ci.ModulePath, Name: e.Name})
	}
	for _, o := range ci.Objects {
		out = append(out, Object{ModulePath: ci.ModulePath, Name: o.Name, Imp: o.Imp})
	}
	for _, c := range ci.CallbackInterfaces {
		out = append(out, CallbackInterface{ModulePath: ci.ModulePath, Name: c.Name})
	}
	for _, c := range ci.CustomTypes {
		out = append(out, Custom{ModulePath: ci.ModulePath, Name: c.Name, Builtin: c.Builtin})
	}
	return out
}

// Callables returns every function, constructor, method and callback
// interface method.
func (ci *ComponentInterface) Callables() []Function {
	var out []Function
	out = append(out, ci.Functions...)
	for _, o := range ci.Objects {
		out = append(out, o.Constructors...)
		out = append(out, o.Methods...)
	}
	return out
}

// HasAsyncCalls reports whether any host-callable function is async.
func (ci *ComponentInterface) HasAsyncCalls() bool {
	for _, f := range ci.Callables() {
		if f.Async {
			return true
		}
	}
	return false
}

// HasAsyncCallbacks reports whether any interface the host implements
// has an async method.
func (ci *ComponentInterface) HasAsyncCallbacks() bool {
	for i := range ci.CallbackInterfaces {
		if ci.CallbackInterfaces[i].HasAsyncMethod() {
			return true
		}
	}
	for _, o := range ci.Objects {
		if !o.HasCallbackInterface() {
			continue
		}
		for _, m := range o.Methods {
			if m.Async {
				return true
			}
		}
	}
	return false
}

// HasCallbacks reports whether the host implements anything.
func (ci *ComponentInterface) HasCallbacks() bool {
	if len(ci.CallbackInterfaces) > 0 {
		return true
	}
	for i := range ci.Objects {
		if ci.Objects[i].HasCallbackInterface() {
			return true
		}
	}
	return false
}

// ErrorNames returns the names of every type used in a throws position.
func (ci *ComponentInterface) ErrorNames() mapset.Set[string] {
	names := mapset.NewThreadUnsafeSet[string]()
	add := func(f Function) {
		if f.Throws != nil {
			if n := Name(f.Throws); n != "" {
				names.Add(n)
			}
		}
	}
	for _, f := range ci.Callables() {
		add(f)
	}
	for _, c := range ci.CallbackInterfaces {
		for _, m := range c.Methods {
			add(m)
		}
	}
	return names
}

// IsNameUsedAsError reports whether name appears in a throws position.
func (ci *ComponentInterface) IsNameUsedAsError(name string) bool {
	return ci.ErrorNames().Contains(name)
}

// Types returns every distinct type the component references, including
// nested component types and the declared types themselves, in discovery
// order.
func (ci *ComponentInterface) Types() []Type {
	seen := mapset.NewThreadUnsafeSet[string]()
	var out []Type
	add := func(t Type) {
		Walk(t, func(n Type) {
			if seen.Add(n.String()) {
				out = append(out, n)
			}
		})
	}
	addFunc := func(f Function) {
		for _, a := range f.Arguments {
			add(a.Type)
		}
		if f.Return != nil {
			add(f.Return)
		}
		if f.Throws != nil {
			add(f.Throws)
		}
	}

	for _, t := range ci.DeclaredTypes() {
		add(t)
	}
	for _, r := range ci.Records {
		for _, f := range r.Fields {
			add(f.Type)
		}
	}
	for _, e := range ci.Enums {
		for _, v := range e.Variants {
			for _, f := range v.Fields {
				add(f.Type)
			}
		}
	}
	for _, f := range ci.Callables() {
		addFunc(f)
	}
	for _, c := range ci.CallbackInterfaces {
		for _, m := range c.Methods {
			addFunc(m)
		}
	}
	return out
}

// LocalTypes is Types without External references.
func (ci *ComponentInterface) LocalTypes() []Type {
	var out []Type
	for _, t := range ci.Types() {
		if !IsExternal(t) {
			out = append(out, t)
		}
	}
	return out
}

// ExternalTypes returns the distinct External references.
func (ci *ComponentInterface) ExternalTypes() []External {
	var out []External
	for _, t := range ci.Types() {
		if ext, ok := t.(External); ok {
			out = append(out, ext)
		}
	}
	return out
}

// Lookup resolves a bare declared name to its type reference.
func (ci *ComponentInterface) Lookup(name string) (Type, bool) {
	for _, t := range ci.DeclaredTypes() {
		if Name(t) == name {
			return t, true
		}
	}
	return nil, false
}

// Normalize rewrites every Object and Custom reference to carry the
// implementation kind and builtin of its local definition.
func (ci *ComponentInterface) Normalize() {
	fix := func(t Type) Type { return ci.normalizeType(t) }
	fixFunc := func(f *Function) {
		for i := range f.Arguments {
			f.Arguments[i].Type = fix(f.Arguments[i].Type)
		}
		if f.Return != nil {
			f.Return = fix(f.Return)
		}
		if f.Throws != nil {
			f.Throws = fix(f.Throws)
		}
	}
	fixFields := func(fields []Field) {
		for i := range fields {
			fields[i].Type = fix(fields[i].Type)
		}
	}

	for i := range ci.CustomTypes {
		ci.CustomTypes[i].Builtin = fix(ci.CustomTypes[i].Builtin)
	}
	for i := range ci.Functions {
		fixFunc(&ci.Functions[i])
	}
	for i := range ci.Records {
		fixFields(ci.Records[i].Fields)
	}
	for i := range ci.Enums {
		for j := range ci.Enums[i].Variants {
			fixFields(ci.Enums[i].Variants[j].Fields)
		}
	}
	for i := range ci.Objects {
		for j := range ci.Objects[i].Constructors {
			fixFunc(&ci.Objects[i].Constructors[j])
		}
		for j := range ci.Objects[i].Methods {
			fixFunc(&ci.Objects[i].Methods[j])
		}
	}
	for i := range ci.CallbackInterfaces {
		for j := range ci.CallbackInterfaces[i].Methods {
			fixFunc(&ci.CallbackInterfaces[i].Methods[j])
		}
	}
}

func (ci *ComponentInterface) normalizeType(t Type) Type {
	return ci.normalize(t, make(map[string]bool))
}

// normalize expands custom builtins; a custom already being expanded is
// left bare, so mutually recursive customs terminate.
func (ci *ComponentInterface) normalize(t Type, expanding map[string]bool) Type {
	switch t := t.(type) {
	case Optional:
		return Optional{Inner: ci.normalize(t.Inner, expanding)}
	case Sequence:
		return Sequence{Inner: ci.normalize(t.Inner, expanding)}
	case Map:
		return Map{Key: ci.normalize(t.Key, expanding), Value: ci.normalize(t.Value, expanding)}
	case Object:
		if t.ModulePath == ci.ModulePath {
			if def, ok := ci.Object(t.Name); ok {
				t.Imp = def.Imp
			}
		}
		return t
	case Custom:
		if t.ModulePath == ci.ModulePath && t.Builtin == nil && !expanding[t.Name] {
			if def, ok := ci.Custom(t.Name); ok && def.Builtin != nil {
				expanding[t.Name] = true
				t.Builtin = ci.normalize(def.Builtin, expanding)
				delete(expanding, t.Name)
			}
		}
		return t
	default:
		return t
	}
}
