package bridge

import (
	"strings"

	"github.com/wippyai/ffi-bindgen/abimap"
	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/ir"
)

// ForComponent derives the bridge from the component's own definitions.
func ForComponent(ci *ir.ComponentInterface) (*Component, error) {
	return Generate(ci, ci.FfiDefinitions())
}

// Generate derives the bridge of ci against defs. Every slot must find its
// definition in defs, and every callback slot whose method returns a value
// must carry the out-return argument.
func Generate(ci *ir.ComponentInterface, defs []ir.FfiDefinition) (*Component, error) {
	g := &generator{
		ci:        ci,
		mapper:    abimap.New(ci.Namespace),
		functions: make(map[string]*ir.FfiFunction),
		callbacks: make(map[string]*ir.FfiCallbackFunction),
		structs:   make(map[string]*ir.FfiStruct),
	}
	for _, d := range defs {
		switch d := d.(type) {
		case *ir.FfiFunction:
			g.functions[d.Name] = d
		case *ir.FfiCallbackFunction:
			g.callbacks[d.Name] = d
		case *ir.FfiStruct:
			g.structs[d.Name] = d
		}
	}

	out := &Component{Namespace: ci.Namespace}
	for _, h := range ci.HostImplementedInterfaces() {
		b, err := g.callbackBridge(h)
		if err != nil {
			return nil, err
		}
		out.Callbacks = append(out.Callbacks, *b)
	}

	for _, f := range ci.Functions {
		c, err := g.callBridge("", f, ci.FunctionSymbol(f.Name), false)
		if err != nil {
			return nil, err
		}
		out.Calls = append(out.Calls, *c)
	}
	for _, o := range ci.Objects {
		for _, f := range o.Constructors {
			c, err := g.callBridge(o.Name, f, ci.ConstructorSymbol(o.Name, f.Name), true)
			if err != nil {
				return nil, err
			}
			out.Calls = append(out.Calls, *c)
		}
		for _, f := range o.Methods {
			c, err := g.callBridge(o.Name, f, ci.MethodSymbol(o.Name, f.Name), false)
			if err != nil {
				return nil, err
			}
			out.Calls = append(out.Calls, *c)
		}
	}

	exports, err := g.exports(defs)
	if err != nil {
		return nil, err
	}
	out.Exports = exports
	return out, nil
}

type generator struct {
	ci        *ir.ComponentInterface
	mapper    *abimap.Mapper
	functions map[string]*ir.FfiFunction
	callbacks map[string]*ir.FfiCallbackFunction
	structs   map[string]*ir.FfiStruct
}

func missing(kind, name string) error {
	return errors.New(errors.PhaseBridge, errors.KindNotFound).
		Slot(name).
		Detail("%s %q has no ABI definition", kind, name).
		Build()
}

func (g *generator) function(name string) (*ir.FfiFunction, error) {
	f, ok := g.functions[name]
	if !ok {
		return nil, missing("function", name)
	}
	return f, nil
}

func (g *generator) callback(name string) (*ir.FfiCallbackFunction, error) {
	cb, ok := g.callbacks[name]
	if !ok {
		return nil, missing("callback", name)
	}
	return cb, nil
}

func (g *generator) namespace(t ir.AbiType) (string, error) {
	r, err := g.mapper.Map(t)
	if err != nil {
		return "", err
	}
	return r.Namespace, nil
}

func (g *generator) callbackBridge(h ir.HostImplemented) (*CallbackBridge, error) {
	vtableName := ir.VTableName(h.Name)
	vtable, ok := g.structs[vtableName]
	if !ok {
		return nil, missing("vtable", vtableName)
	}
	initName := g.ci.VTableInitSymbol(h.Name)
	initFn, err := g.function(initName)
	if err != nil {
		return nil, err
	}

	b := &CallbackBridge{
		Interface: h.Name,
		IsObject:  h.IsObject,
		VTable:    vtable,
		Init: Slot{
			Name:      initName,
			Namespace: g.mapper.ComponentNamespace(),
			Role:      RoleInit,
			Direction: HostToNative,
			Threading: Caller,
			Lifetime:  Registered,
			Function:  initFn,
		},
		FutureComplete: make(map[string]string),
	}

	for i, m := range h.Methods {
		name := ir.CallbackMethodName(h.Name, i)
		cb, err := g.callback(name)
		if err != nil {
			return nil, err
		}
		ret, err := checkReturn(h.Name, m, cb)
		if err != nil {
			return nil, err
		}
		ns, err := g.namespace(ir.CallbackOf(name))
		if err != nil {
			return nil, err
		}
		b.Methods = append(b.Methods, Slot{
			Name:      name,
			Field:     m.Name,
			Namespace: ns,
			Method:    m.Name,
			Role:      RoleMethod,
			Direction: NativeToHost,
			Threading: Blocking,
			Lifetime:  PerCall,
			Callback:  cb,
			Return:    ret,
			Async:     m.Async,
		})
		if m.Async {
			var lowered *ir.AbiType
			if m.Return != nil {
				t := ir.AbiTypeOf(m.Return)
				lowered = &t
			}
			b.FutureComplete[m.Name] = ir.FutureCompleteCallback(lowered)
		}
	}

	free, err := g.callback(ir.CallbackInterfaceFree)
	if err != nil {
		return nil, err
	}
	freeNS, err := g.namespace(ir.CallbackOf(free.Name))
	if err != nil {
		return nil, err
	}
	b.Free = Slot{
		Name: free.Name,
		// The free callback type is shared by every vtable, so each
		// vtable gets its own copy.
		Namespace: freeNS + "::" + strings.ToLower(vtableName),
		Field:     ir.FreeField,
		Role:      RoleFree,
		Direction: NativeToHost,
		Threading: Blocking,
		Lifetime:  Release,
		Callback:  free,
	}
	return b, nil
}

// checkReturn verifies the out-return argument a method's slot needs and
// returns the type it carries.
func checkReturn(iface string, m ir.Function, cb *ir.FfiCallbackFunction) (*ir.AbiType, error) {
	method := iface + "." + m.Name
	if m.Async {
		if !hasArgument(cb, ir.FutureCallbackArg) || !cb.HasReturnOutParam() {
			return nil, errors.MissingReturn(cb.Name, method)
		}
		if m.Return == nil {
			return nil, nil
		}
		t := ir.AbiTypeOf(m.Return)
		return &t, nil
	}
	if m.Return == nil {
		return nil, nil
	}
	got := cb.ArgReturnType()
	if got == nil {
		return nil, errors.MissingReturn(cb.Name, method)
	}
	want := ir.AbiTypeOf(m.Return)
	if !got.Equal(want) {
		return nil, errors.New(errors.PhaseBridge, errors.KindMissingReturn).
			Slot(cb.Name).
			Type(want.String()).
			Detail("%s returns %s but the out-return argument carries %s", method, want, got).
			Build()
	}
	return got, nil
}

func hasArgument(cb *ir.FfiCallbackFunction, name string) bool {
	for _, a := range cb.Arguments {
		if a.Name == name {
			return true
		}
	}
	return false
}

func (g *generator) callBridge(owner string, f ir.Function, symbol string, ctor bool) (*CallBridge, error) {
	fn, err := g.function(symbol)
	if err != nil {
		return nil, err
	}
	c := &CallBridge{
		Owner:    owner,
		Callable: f.Name,
		Call: Slot{
			Name:      symbol,
			Namespace: g.mapper.ComponentNamespace(),
			Method:    f.Name,
			Role:      RoleCall,
			Direction: HostToNative,
			Threading: Caller,
			Lifetime:  PerCall,
			Function:  fn,
			Return:    fn.Return,
			Async:     f.Async,
		},
	}
	if !f.Async {
		return c, nil
	}

	var ret *ir.AbiType
	if f.Return != nil {
		t := ir.AbiTypeOf(f.Return)
		ret = &t
	}
	if ctor && f.Return == nil {
		t := ir.ArcPointerTo(owner)
		ret = &t
	}

	poll, err := g.function(g.ci.FutureSymbol("poll", ret))
	if err != nil {
		return nil, err
	}
	cancel, err := g.function(g.ci.FutureSymbol("cancel", ret))
	if err != nil {
		return nil, err
	}
	complete, err := g.function(g.ci.FutureSymbol("complete", ret))
	if err != nil {
		return nil, err
	}
	free, err := g.function(g.ci.FutureSymbol("free", ret))
	if err != nil {
		return nil, err
	}
	cont, err := g.callback(ir.ContinuationCallback)
	if err != nil {
		return nil, err
	}
	contNS, err := g.namespace(ir.CallbackOf(cont.Name))
	if err != nil {
		return nil, err
	}

	ns := g.mapper.ComponentNamespace()
	c.Poll = &Slot{
		Name: poll.Name, Namespace: ns, Method: f.Name,
		Role: RolePoll, Direction: HostToNative, Threading: Caller, Lifetime: PerCall,
		Function: poll,
	}
	c.Continuation = &Slot{
		Name: cont.Name, Namespace: contNS, Method: f.Name,
		Role: RoleContinuation, Direction: NativeToHost, Threading: Posted, Lifetime: OneShot,
		Callback: cont,
	}
	c.Cancel = &Slot{
		Name: cancel.Name, Namespace: ns, Method: f.Name,
		Role: RoleCancel, Direction: HostToNative, Threading: Caller, Lifetime: PerCall,
		Function: cancel,
	}
	c.CompleteSymbol = complete.Name
	c.FreeSymbol = free.Name
	return c, nil
}
