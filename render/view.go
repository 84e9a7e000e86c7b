package render

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/wippyai/ffi-bindgen/abimap"
	"github.com/wippyai/ffi-bindgen/bridge"
	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/ir"
	"github.com/wippyai/ffi-bindgen/lower"
)

// runtimeSymbols are always imported by the host artifact.
var runtimeSymbols = []string{
	"AbstractFfiConverterByteArray",
	"FfiConverterArray",
	"FfiConverterCallback",
	"FfiConverterInt32",
	"FfiConverterMap",
	"FfiConverterObject",
	"FfiConverterObjectAsError",
	"FfiConverterObjectWithCallbacks",
	"FfiConverterOptional",
	"FfiConverterString",
	"RustBuffer",
	"UniffiInternalError",
	"UniffiRustCaller",
	"uniffiCreateCallStatus",
	"uniffiRustCallAsync",
	"uniffiTraitInterfaceCall",
	"uniffiTraitInterfaceCallAsync",
	"uniffiTraitInterfaceCallWithError",
}

type view struct {
	Namespace     string
	CppNamespace  string
	Module        string // JSI host object class and global property
	Debug         bool
	ConsoleImport string

	// ABI artifact
	Declarations []declView
	Callbacks    []callbackView
	Structs      []structView
	Functions    []functionView
	VTables      []vtableView

	// Host artifact
	RuntimeImports []string
	Imports        []importView
	Native         []nativeView
	Converters     []converterView
	Callables      []callableView
	Registrations  []registrationView
	Initializers   []string
}

type paramView struct {
	Name  string
	Label string
}

type declView struct {
	Kind   string // callback, struct or function
	Name   string
	Return string
	Params []paramView
}

type callbackView struct {
	Namespace string
	Name      string
	Role      string
	Threading string
	Lifetime  string
}

type structFieldView struct {
	Name  string // host property
	Field string // C member
	Value string // C++ expression reading the property
}

type structView struct {
	Namespace string
	Name      string
	Fields    []structFieldView
}

type functionView struct {
	Name        string
	Return      bool
	ReturnLift  string
	Args        []string // lowered argument expressions
	CallStatus  bool
	StatusWrite string
}

type slotView struct {
	Name      string
	Role      string
	Direction string
	Threading string
	Lifetime  string
}

type vtableView struct {
	Interface string
	VTable    string
	Init      string
	Slots     []slotView
}

type importView struct {
	Module  string
	Symbols []string
}

type nativeView struct {
	Name   string
	Params []paramView
	Return string
}

type tsFieldView struct {
	Name  string
	Label string
	Read  string
	Write string
	Size  string
}

type variantView struct {
	Name   string
	Fields []tsFieldView
}

type methodSigView struct {
	Name    string
	Params  []paramView
	Returns string
}

type converterView struct {
	Kind string
	Type string // identity
	Code *abimap.CodeType

	Args     []string // inner converters of composite types
	Fields   []tsFieldView
	Flat     bool
	Variants []variantView

	// objects and callback interfaces
	Methods []methodSigView
	Members []callableView
	Clone   string
	Free    string

	// custom types
	Builtin    *abimap.CodeType
	Overridden bool
}

type callableView struct {
	Name      string
	Owner     string
	Kind      string
	Async     bool
	Symbol    string
	Params    []paramView
	Args      []string // lowered arguments, self first for methods
	Returns   string   // host return label, empty for void
	Lift      string   // lift expression applied to the native result
	Throws    *abimap.CodeType
	Poll      string
	Cancel    string
	Complete  string
	FreeFn    string
	Converter string // converter lifting the async result
}

type vtableMethodView struct {
	Field    string
	Method   string
	Params   []paramView // ABI parameters, handle first
	Call     string      // call into the host implementation
	Lower    string      // lower expression for the return value, empty for void
	Throws   *abimap.CodeType
	Async    bool
	Complete string
}

type registrationView struct {
	Interface string
	Code      *abimap.CodeType
	VTable    string
	Init      string
	Methods   []vtableMethodView
}

type builder struct {
	m      *lower.Model
	oracle *abimap.Oracle
	v      *view
}

func newView(m *lower.Model) (*view, error) {
	b := &builder{
		m:      m,
		oracle: abimap.NewOracle(m.Component, m.Config),
		v: &view{
			Namespace:     m.Namespace,
			CppNamespace:  abimap.CppNamespace(m.Namespace),
			Module:        "Native" + abimap.ClassName(m.Namespace),
			Debug:         m.Config.LogLevel.IsDebug(),
			ConsoleImport: m.Config.ConsoleImport,
			Initializers:  m.Initializers(),
		},
	}
	steps := []func() error{
		b.declarations,
		b.exports,
		b.vtables,
		b.imports,
		b.converters,
		b.callables,
		b.members,
		b.registrations,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return b.v, nil
}

func (b *builder) rendering(t ir.AbiType, slot string) (abimap.Rendering, error) {
	r, ok := b.m.Rendering(t)
	if !ok {
		return abimap.Rendering{}, errors.New(errors.PhaseRender, errors.KindUnmappedType).
			Type(t.String()).
			Slot(slot).
			Detail("no rendering for %s", t).
			Build()
	}
	return r, nil
}

func (b *builder) code(t ir.Type) (*abimap.CodeType, error) {
	if t != nil {
		if ct, ok := b.m.CodeType(t.String()); ok {
			return ct, nil
		}
	}
	ct, err := b.oracle.Find(t)
	if err != nil {
		return nil, errors.New(errors.PhaseRender, errors.KindUnmappedType).
			Cause(err).
			Detail("no code type").
			Build()
	}
	return ct, nil
}

func (b *builder) cParams(slot string, args []ir.FfiArgument, status bool) ([]paramView, error) {
	out := make([]paramView, 0, len(args)+1)
	for _, a := range args {
		r, err := b.rendering(a.Type, slot)
		if err != nil {
			return nil, err
		}
		out = append(out, paramView{Name: a.Name, Label: r.CLabel})
	}
	if status {
		out = append(out, paramView{Name: ir.OutErr, Label: "RustCallStatus *"})
	}
	return out, nil
}

func (b *builder) cReturn(slot string, t *ir.AbiType) (string, error) {
	if t == nil {
		return "void", nil
	}
	r, err := b.rendering(*t, slot)
	if err != nil {
		return "", err
	}
	return r.CLabel, nil
}

// declarations lists the C declarations in definition order, which
// already declares every callback and struct before its first use.
func (b *builder) declarations() error {
	for _, d := range b.m.Definitions {
		var dv declView
		switch d := d.(type) {
		case *ir.FfiCallbackFunction:
			ret, err := b.cReturn(d.Name, d.Return)
			if err != nil {
				return err
			}
			params, err := b.cParams(d.Name, d.Arguments, d.HasCallStatus)
			if err != nil {
				return err
			}
			dv = declView{Kind: "callback", Name: abimap.CallbackName(d.Name), Return: ret, Params: params}
		case *ir.FfiStruct:
			dv = declView{Kind: "struct", Name: abimap.StructName(d.Name)}
			for _, f := range d.Fields {
				r, err := b.rendering(f.Type, d.Name)
				if err != nil {
					return err
				}
				dv.Params = append(dv.Params, paramView{Name: f.Name, Label: r.CLabel})
			}
		case *ir.FfiFunction:
			ret, err := b.cReturn(d.Name, d.Return)
			if err != nil {
				return err
			}
			params, err := b.cParams(d.Name, d.Arguments, d.HasCallStatus)
			if err != nil {
				return err
			}
			dv = declView{Kind: "function", Name: d.Name, Return: ret, Params: params}
		}
		b.v.Declarations = append(b.v.Declarations, dv)
	}
	return nil
}

func (b *builder) exports() error {
	slots := make(map[string]bridge.Slot)
	for _, s := range b.m.Bridge.Slots() {
		if s.Callback != nil {
			slots[s.Namespace] = s
		}
	}

	modules := make(map[string]string)
	for _, ec := range b.m.Bridge.Exports.Callbacks {
		modules[ec.Module] = ec.Namespace
		cv := callbackView{
			Namespace: ec.Namespace,
			Name:      abimap.CallbackName(ec.Callback.Name),
			Role:      "callback",
			Threading: bridge.Blocking.String(),
			Lifetime:  bridge.PerCall.String(),
		}
		if s, ok := slots[ec.Namespace]; ok {
			cv.Role, cv.Threading, cv.Lifetime = s.Role.String(), s.Threading.String(), s.Lifetime.String()
		} else if ec.Callback.IsContinuation() {
			cv.Role, cv.Threading, cv.Lifetime = bridge.RoleContinuation.String(), bridge.Posted.String(), bridge.OneShot.String()
		}
		b.v.Callbacks = append(b.v.Callbacks, cv)
	}

	for _, es := range b.m.Bridge.Exports.Structs {
		sv := structView{Namespace: es.Namespace, Name: abimap.StructName(es.Struct.Name)}
		for _, f := range es.Struct.Fields {
			prop := fmt.Sprintf(`jsObject.getProperty(rt, "%s")`, abimap.VarName(f.Name))
			fv := structFieldView{Name: abimap.VarName(f.Name), Field: f.Name}
			if module, ok := es.FieldModules[f.Name]; ok {
				ns, ok := modules[module]
				if !ok {
					return errors.NotFound(errors.PhaseRender, "callback module", module)
				}
				fv.Value = ns + "::makeCallbackFunction(rt, callInvoker, " + prop + ")"
			} else {
				r, err := b.rendering(f.Type, es.Struct.Name)
				if err != nil {
					return err
				}
				fv.Value = r.Lower.Apply(prop)
			}
			sv.Fields = append(sv.Fields, fv)
		}
		b.v.Structs = append(b.v.Structs, sv)
	}

	for _, f := range b.m.Bridge.Exports.Functions {
		fv := functionView{Name: f.Name, CallStatus: f.HasCallStatus}
		for i, a := range f.Arguments {
			r, err := b.rendering(a.Type, f.Name)
			if err != nil {
				return err
			}
			fv.Args = append(fv.Args, r.Lower.Apply(fmt.Sprintf("args[%d]", i)))
		}
		if f.Return != nil {
			r, err := b.rendering(*f.Return, f.Name)
			if err != nil {
				return err
			}
			fv.Return = true
			fv.ReturnLift = r.Lift.Apply("value")
		}
		if f.HasCallStatus {
			r, err := b.rendering(ir.AbiStatus, f.Name)
			if err != nil {
				return err
			}
			fv.StatusWrite = r.Write.Apply("status", fmt.Sprintf("args[%d]", len(f.Arguments)))
		}
		b.v.Functions = append(b.v.Functions, fv)

		nv := nativeView{Name: f.Name, Return: "void"}
		for _, a := range f.Arguments {
			r, err := b.rendering(a.Type, f.Name)
			if err != nil {
				return err
			}
			nv.Params = append(nv.Params, paramView{Name: abimap.VarName(a.Name), Label: r.HostLabel})
		}
		if f.HasCallStatus {
			nv.Params = append(nv.Params, paramView{Name: ir.OutErr, Label: "UniffiRustCallStatus"})
		}
		if f.Return != nil {
			r, err := b.rendering(*f.Return, f.Name)
			if err != nil {
				return err
			}
			nv.Return = r.HostLabel
		}
		b.v.Native = append(b.v.Native, nv)
	}
	return nil
}

func slotOf(s bridge.Slot) slotView {
	name := s.Name
	if s.Field != "" {
		name = s.Field
	}
	return slotView{
		Name:      name,
		Role:      s.Role.String(),
		Direction: s.Direction.String(),
		Threading: s.Threading.String(),
		Lifetime:  s.Lifetime.String(),
	}
}

func (b *builder) vtables() error {
	for i := range b.m.Bridge.Callbacks {
		cb := &b.m.Bridge.Callbacks[i]
		vv := vtableView{
			Interface: cb.Interface,
			VTable:    abimap.StructName(cb.VTable.Name),
			Init:      cb.Init.Name,
		}
		for _, s := range cb.Slots() {
			vv.Slots = append(vv.Slots, slotOf(s))
		}
		b.v.VTables = append(b.v.VTables, vv)
	}
	return nil
}

func (b *builder) imports() error {
	runtime := mapset.NewThreadUnsafeSet(runtimeSymbols...)
	for _, ct := range b.m.Converters {
		if _, ok := ct.Type.(ir.Primitive); ok {
			runtime.Add(ct.Converter)
		}
	}
	b.v.RuntimeImports = runtime.ToSlice()
	sort.Strings(b.v.RuntimeImports)

	for _, imp := range b.m.Imports {
		b.v.Imports = append(b.v.Imports, importView{Module: "./" + imp.Module, Symbols: imp.Symbols})
	}

	custom := make(map[string]mapset.Set[string])
	for _, imp := range b.m.CustomImports() {
		if custom[imp.Module()] == nil {
			custom[imp.Module()] = mapset.NewThreadUnsafeSet[string]()
		}
		custom[imp.Module()].Add(imp.Symbol())
	}
	modules := make([]string, 0, len(custom))
	for mod := range custom {
		modules = append(modules, mod)
	}
	sort.Strings(modules)
	for _, mod := range modules {
		symbols := custom[mod].ToSlice()
		sort.Strings(symbols)
		b.v.Imports = append(b.v.Imports, importView{Module: mod, Symbols: symbols})
	}
	return nil
}

func (b *builder) field(name string, t ir.Type, value string) (tsFieldView, error) {
	ct, err := b.code(t)
	if err != nil {
		return tsFieldView{}, err
	}
	return tsFieldView{
		Name:  abimap.VarName(name),
		Label: ct.Label,
		Read:  ct.Read.Apply("from"),
		Write: ct.Write.Apply(value+"."+abimap.VarName(name), "into"),
		Size:  ct.AllocationSize.Apply(value + "." + abimap.VarName(name)),
	}, nil
}

func (b *builder) signature(f ir.Function, name string) (methodSigView, error) {
	sig := methodSigView{Name: name}
	for _, a := range f.Arguments {
		ct, err := b.code(a.Type)
		if err != nil {
			return methodSigView{}, err
		}
		sig.Params = append(sig.Params, paramView{Name: abimap.VarName(a.Name), Label: ct.Label})
	}
	ret := "void"
	if f.Return != nil {
		ct, err := b.code(f.Return)
		if err != nil {
			return methodSigView{}, err
		}
		ret = ct.Label
	}
	if f.Async {
		ret = "Promise<" + ret + ">"
	}
	sig.Returns = ret
	return sig, nil
}

func (b *builder) converters() error {
	ci := b.m.Component
	for _, ct := range b.m.Converters {
		cv := converterView{Type: ct.Type.String(), Code: ct}
		switch t := ct.Type.(type) {
		case ir.Primitive:
			cv.Kind = "primitive"

		case ir.Optional:
			inner, err := b.code(t.Inner)
			if err != nil {
				return err
			}
			cv.Kind, cv.Args = "optional", []string{inner.Converter}

		case ir.Sequence:
			inner, err := b.code(t.Inner)
			if err != nil {
				return err
			}
			cv.Kind, cv.Args = "sequence", []string{inner.Converter}

		case ir.Map:
			key, err := b.code(t.Key)
			if err != nil {
				return err
			}
			value, err := b.code(t.Value)
			if err != nil {
				return err
			}
			cv.Kind, cv.Args = "map", []string{key.Converter, value.Converter}

		case ir.Record:
			def, ok := ci.Record(t.Name)
			if !ok {
				return errors.NotFound(errors.PhaseRender, "record", t.Name)
			}
			cv.Kind = "record"
			for _, f := range def.Fields {
				fv, err := b.field(f.Name, f.Type, "value")
				if err != nil {
					return err
				}
				cv.Fields = append(cv.Fields, fv)
			}

		case ir.Enum:
			def, ok := ci.Enum(t.Name)
			if !ok {
				return errors.NotFound(errors.PhaseRender, "enum", t.Name)
			}
			cv.Kind, cv.Flat = "enum", def.Flat()
			for _, v := range def.Variants {
				vv := variantView{Name: abimap.VariantName(v.Name)}
				for _, f := range v.Fields {
					fv, err := b.field(f.Name, f.Type, "value.inner")
					if err != nil {
						return err
					}
					vv.Fields = append(vv.Fields, fv)
				}
				cv.Variants = append(cv.Variants, vv)
			}

		case ir.Object:
			def, ok := ci.Object(t.Name)
			if !ok {
				return errors.NotFound(errors.PhaseRender, "object", t.Name)
			}
			cv.Kind = "object"
			cv.Clone, cv.Free = ci.CloneSymbol(t.Name), ci.FreeSymbol(t.Name)
			for _, m := range def.Methods {
				sig, err := b.signature(m, abimap.FnName(m.Name))
				if err != nil {
					return err
				}
				cv.Methods = append(cv.Methods, sig)
			}

		case ir.CallbackInterface:
			def, ok := ci.CallbackInterface(t.Name)
			if !ok {
				return errors.NotFound(errors.PhaseRender, "callback interface", t.Name)
			}
			cv.Kind = "callback"
			for _, m := range def.Methods {
				sig, err := b.signature(m, abimap.FnName(m.Name))
				if err != nil {
					return err
				}
				cv.Methods = append(cv.Methods, sig)
			}

		case ir.Custom:
			builtin := t.Builtin
			if builtin == nil {
				def, ok := ci.Custom(t.Name)
				if !ok {
					return errors.NotFound(errors.PhaseRender, "custom type", t.Name)
				}
				builtin = def.Builtin
			}
			base, err := b.code(builtin)
			if err != nil {
				return err
			}
			_, overridden := b.m.Config.Custom(t.Name)
			cv.Kind, cv.Builtin, cv.Overridden = "custom", base, overridden

		default:
			return errors.Unsupported(errors.PhaseRender, fmt.Sprintf("converter for %s", ct.Type))
		}
		b.v.Converters = append(b.v.Converters, cv)
	}
	return nil
}

func (b *builder) callables() error {
	ci := b.m.Component
	for i := range b.m.Callables {
		c := &b.m.Callables[i]
		cv := callableView{
			Name:   c.Name(),
			Owner:  c.Owner,
			Kind:   c.Kind.String(),
			Async:  c.Function.Async,
			Symbol: c.Bridge.Call.Name,
			Throws: c.Throws,
		}
		if c.Owner != "" {
			def, ok := ci.Object(c.Owner)
			if !ok {
				return errors.NotFound(errors.PhaseRender, "object", c.Owner)
			}
			ct, err := b.code(ir.Object{ModulePath: ci.ModulePath, Name: c.Owner, Imp: def.Imp})
			if err != nil {
				return err
			}
			cv.Owner = ct.DeclLabel
		}
		if c.Kind == lower.KindMethod {
			cv.Args = append(cv.Args, "this.uniffiClonePointer()")
		}
		for _, p := range c.Params {
			cv.Params = append(cv.Params, paramView{Name: p.Name, Label: p.Code.Label})
			cv.Args = append(cv.Args, p.Code.Lower.Apply(p.Name))
		}

		switch {
		case c.Return != nil:
			cv.Returns = c.Return.Label
			cv.Lift = c.Return.Lift.Apply("value")
			cv.Converter = c.Return.Converter
		case c.Kind == lower.KindConstructor:
			cv.Returns = cv.Owner
			cv.Lift = "new " + cv.Owner + "(value)"
		}

		if cv.Async {
			cv.Poll = c.Bridge.Poll.Name
			cv.Cancel = c.Bridge.Cancel.Name
			cv.Complete = c.Bridge.CompleteSymbol
			cv.FreeFn = c.Bridge.FreeSymbol
		}
		b.v.Callables = append(b.v.Callables, cv)
	}
	return nil
}

// members attaches constructors and methods to their object's class.
func (b *builder) members() error {
	byClass := make(map[string]int)
	for i, cv := range b.v.Converters {
		if cv.Kind == "object" {
			byClass[cv.Code.DeclLabel] = i
		}
	}
	for _, c := range b.v.Callables {
		if c.Owner == "" {
			continue
		}
		i, ok := byClass[c.Owner]
		if !ok {
			return errors.NotFound(errors.PhaseRender, "class", c.Owner)
		}
		b.v.Converters[i].Members = append(b.v.Converters[i].Members, c)
	}
	return nil
}

func (b *builder) registrations() error {
	for _, impl := range b.m.Implementations {
		cb := impl.Bridge
		rv := registrationView{
			Interface: cb.Interface,
			Code:      impl.Code,
			VTable:    abimap.StructName(cb.VTable.Name),
			Init:      cb.Init.Name,
		}
		for i, slot := range cb.Methods {
			if i >= len(impl.Methods) {
				return errors.New(errors.PhaseRender, errors.KindInvalidData).
					Slot(slot.Name).
					Detail("%s has more slots than methods", cb.Interface).
					Build()
			}
			m := impl.Methods[i]
			mv := vtableMethodView{
				Field:    abimap.VarName(slot.Field),
				Method:   m.Name(),
				Throws:   m.Throws,
				Async:    slot.Async,
				Complete: abimap.CallbackName(cb.FutureComplete[slot.Method]),
			}
			for _, a := range slot.Callback.ArgumentsNoReturn() {
				r, err := b.rendering(a.Type, slot.Name)
				if err != nil {
					return err
				}
				mv.Params = append(mv.Params, paramView{Name: abimap.VarName(a.Name), Label: r.HostLabel})
			}
			args := make([]string, 0, len(m.Params))
			for _, p := range m.Params {
				args = append(args, p.Code.Lift.Apply(p.Name))
			}
			mv.Call = "jsCallback." + m.Name() + "(" + strings.Join(args, ", ") + ")"
			if m.Return != nil {
				mv.Lower = m.Return.Lower.Apply("value")
			}
			rv.Methods = append(rv.Methods, mv)
		}
		b.v.Registrations = append(b.v.Registrations, rv)
	}
	return nil
}
