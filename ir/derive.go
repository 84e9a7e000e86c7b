package ir

import (
	"strconv"
	"strings"
)

// futureReturnKinds are the return shapes the rust-future helper family
// and the foreign-future result structs are instantiated for.
var futureReturnKinds = []*AbiType{
	&AbiU8, &AbiI8, &AbiU16, &AbiI16, &AbiU32, &AbiI32, &AbiU64, &AbiI64,
	&AbiF32, &AbiF64, &AbiHandleType, &AbiRustBuffer, nil,
}

// FutureSuffix returns the UpperCamel suffix used by foreign-future
// definitions for a return shape.
func FutureSuffix(t *AbiType) string {
	if t == nil {
		return "Void"
	}
	switch t.Kind {
	case AbiArcPointer, AbiHandle:
		return "Pointer"
	case AbiBuffer:
		return "RustBuffer"
	case AbiFloat32:
		return "F32"
	case AbiFloat64:
		return "F64"
	default:
		return strings.ToUpper(AbiTypeSuffix(t)[:1]) + AbiTypeSuffix(t)[1:]
	}
}

// FunctionSymbol names the native symbol of a top-level function.
func (ci *ComponentInterface) FunctionSymbol(name string) string {
	return "uniffi_" + ci.Namespace + "_fn_func_" + strings.ToLower(name)
}

// MethodSymbol names the native symbol of an object method.
func (ci *ComponentInterface) MethodSymbol(object, method string) string {
	return "uniffi_" + ci.Namespace + "_fn_method_" + strings.ToLower(object) + "_" + strings.ToLower(method)
}

// ConstructorSymbol names the native symbol of an object constructor.
func (ci *ComponentInterface) ConstructorSymbol(object, ctor string) string {
	return "uniffi_" + ci.Namespace + "_fn_constructor_" + strings.ToLower(object) + "_" + strings.ToLower(ctor)
}

// CloneSymbol names the native symbol that clones an object pointer.
func (ci *ComponentInterface) CloneSymbol(object string) string {
	return "uniffi_" + ci.Namespace + "_fn_clone_" + strings.ToLower(object)
}

// FreeSymbol names the native symbol that releases an object pointer.
func (ci *ComponentInterface) FreeSymbol(object string) string {
	return "uniffi_" + ci.Namespace + "_fn_free_" + strings.ToLower(object)
}

// VTableInitSymbol names the vtable registration symbol of a callback
// interface or callback-implementable object.
func (ci *ComponentInterface) VTableInitSymbol(name string) string {
	return "uniffi_" + ci.Namespace + "_fn_init_callback_vtable_" + strings.ToLower(name)
}

// FutureSymbol names a rust-future helper, op being poll, cancel,
// complete or free.
func (ci *ComponentInterface) FutureSymbol(op string, ret *AbiType) string {
	return "ffi_" + ci.Namespace + "_rust_future_" + op + "_" + AbiTypeSuffix(ret)
}

// VTableName is the ABI struct holding a callback interface's slots.
func VTableName(iface string) string { return vtablePrefix + iface }

// CallbackMethodName is the ABI callback of method index i.
func CallbackMethodName(iface string, i int) string {
	return userCallbackPrefix + iface + "Method" + strconv.Itoa(i)
}

// FutureResultStruct is the ForeignFutureStruct for a return shape.
func FutureResultStruct(ret *AbiType) string { return foreignFutureResult + FutureSuffix(ret) }

// FutureCompleteCallback is the completion literal for a return shape.
func FutureCompleteCallback(ret *AbiType) string { return foreignFutureComplete + FutureSuffix(ret) }

// HostImplemented is a callback interface or callback-implementable object
// together with its methods.
type HostImplemented struct {
	Name     string
	Methods  []Function
	IsObject bool
}

// HostImplementedInterfaces lists callback interfaces followed by
// callback-implementable objects, in declaration order.
func (ci *ComponentInterface) HostImplementedInterfaces() []HostImplemented {
	var out []HostImplemented
	for _, c := range ci.CallbackInterfaces {
		out = append(out, HostImplemented{Name: c.Name, Methods: c.Methods})
	}
	for _, o := range ci.Objects {
		if o.HasCallbackInterface() {
			out = append(out, HostImplemented{Name: o.Name, Methods: o.Methods, IsObject: true})
		}
	}
	return out
}

// FfiDefinitions derives the ABI description of the component: builtin
// callbacks and structs, then per host-implemented interface method
// callbacks and vtable, then every host-callable function.
func (ci *ComponentInterface) FfiDefinitions() []FfiDefinition {
	var defs []FfiDefinition

	defs = append(defs,
		&FfiCallbackFunction{
			Name: ContinuationCallback,
			Arguments: []FfiArgument{
				{Name: "data", Type: AbiU64},
				{Name: "poll_result", Type: AbiI8},
			},
		},
		&FfiCallbackFunction{
			Name:      ForeignFutureFree,
			Arguments: []FfiArgument{{Name: "handle", Type: AbiU64}},
		},
		&FfiCallbackFunction{
			Name:      CallbackInterfaceFree,
			Arguments: []FfiArgument{{Name: "handle", Type: AbiU64}},
		},
		&FfiStruct{
			Name: ForeignFutureStruct,
			Fields: []FfiField{
				{Name: "handle", Type: AbiU64},
				{Name: "free", Type: CallbackOf(ForeignFutureFree)},
			},
		},
	)
	for _, ret := range futureReturnKinds {
		result := &FfiStruct{Name: FutureResultStruct(ret)}
		if ret != nil {
			result.Fields = append(result.Fields, FfiField{Name: "return_value", Type: *ret})
		}
		result.Fields = append(result.Fields, FfiField{Name: "call_status", Type: AbiStatus})
		defs = append(defs, result, &FfiCallbackFunction{
			Name: FutureCompleteCallback(ret),
			Arguments: []FfiArgument{
				{Name: "callback_data", Type: AbiU64},
				{Name: "result", Type: StructOf(result.Name)},
			},
		})
	}

	for _, h := range ci.HostImplementedInterfaces() {
		vtable := &FfiStruct{Name: VTableName(h.Name)}
		for i, m := range h.Methods {
			cb := callbackMethod(h.Name, i, m)
			defs = append(defs, cb)
			vtable.Fields = append(vtable.Fields, FfiField{Name: m.Name, Type: CallbackOf(cb.Name)})
		}
		vtable.Fields = append(vtable.Fields, FfiField{Name: FreeField, Type: CallbackOf(CallbackInterfaceFree)})
		defs = append(defs, vtable)
	}

	for _, f := range ci.FfiFunctions() {
		defs = append(defs, f)
	}
	return defs
}

func callbackMethod(iface string, i int, m Function) *FfiCallbackFunction {
	cb := &FfiCallbackFunction{Name: CallbackMethodName(iface, i)}
	cb.Arguments = append(cb.Arguments, FfiArgument{Name: HandleArg, Type: AbiU64})
	for _, a := range m.Arguments {
		cb.Arguments = append(cb.Arguments, FfiArgument{Name: a.Name, Type: AbiTypeOf(a.Type)})
	}
	if m.Async {
		var ret *AbiType
		if m.Return != nil {
			t := AbiTypeOf(m.Return)
			ret = &t
		}
		cb.Arguments = append(cb.Arguments,
			FfiArgument{Name: FutureCallbackArg, Type: CallbackOf(FutureCompleteCallback(ret))},
			FfiArgument{Name: CallbackDataArg, Type: AbiU64},
			FfiArgument{Name: OutReturn, Type: MutRefTo(StructOf(ForeignFutureStruct))},
		)
		return cb
	}
	ret := AbiVoidPtr
	if m.Return != nil {
		ret = AbiTypeOf(m.Return)
	}
	cb.Arguments = append(cb.Arguments, FfiArgument{Name: OutReturn, Type: MutRefTo(ret)})
	cb.HasCallStatus = true
	return cb
}

// FfiFunctions returns every host-callable native symbol.
func (ci *ComponentInterface) FfiFunctions() []*FfiFunction {
	var out []*FfiFunction

	lowerArgs := func(args []Argument) []FfiArgument {
		lowered := make([]FfiArgument, 0, len(args))
		for _, a := range args {
			lowered = append(lowered, FfiArgument{Name: a.Name, Type: AbiTypeOf(a.Type)})
		}
		return lowered
	}
	returnOf := func(f Function) *AbiType {
		if f.Async {
			t := AbiHandleType
			return &t
		}
		if f.Return == nil {
			return nil
		}
		t := AbiTypeOf(f.Return)
		return &t
	}

	for _, f := range ci.Functions {
		out = append(out, &FfiFunction{
			Name:          ci.FunctionSymbol(f.Name),
			Arguments:     lowerArgs(f.Arguments),
			Return:        returnOf(f),
			HasCallStatus: !f.Async,
			IsAsync:       f.Async,
		})
	}

	for _, o := range ci.Objects {
		self := FfiArgument{Name: "ptr", Type: ArcPointerTo(o.Name)}
		ptr := ArcPointerTo(o.Name)
		out = append(out,
			&FfiFunction{
				Name:          ci.CloneSymbol(o.Name),
				Arguments:     []FfiArgument{self},
				Return:        &ptr,
				HasCallStatus: true,
			},
			&FfiFunction{
				Name:          ci.FreeSymbol(o.Name),
				Arguments:     []FfiArgument{self},
				HasCallStatus: true,
			},
		)
		for _, c := range o.Constructors {
			ret := returnOf(c)
			if !c.Async {
				p := ArcPointerTo(o.Name)
				ret = &p
			}
			out = append(out, &FfiFunction{
				Name:          ci.ConstructorSymbol(o.Name, c.Name),
				Arguments:     lowerArgs(c.Arguments),
				Return:        ret,
				HasCallStatus: !c.Async,
				IsAsync:       c.Async,
			})
		}
		for _, m := range o.Methods {
			out = append(out, &FfiFunction{
				Name:          ci.MethodSymbol(o.Name, m.Name),
				Arguments:     append([]FfiArgument{self}, lowerArgs(m.Arguments)...),
				Return:        returnOf(m),
				HasCallStatus: !m.Async,
				IsAsync:       m.Async,
			})
		}
	}

	for _, h := range ci.HostImplementedInterfaces() {
		out = append(out, &FfiFunction{
			Name:      ci.VTableInitSymbol(h.Name),
			Arguments: []FfiArgument{{Name: "vtable", Type: RefTo(StructOf(VTableName(h.Name)))}},
		})
	}

	buf := AbiRustBuffer
	prefix := "ffi_" + ci.Namespace + "_rustbuffer_"
	out = append(out,
		&FfiFunction{Name: prefix + "alloc", Arguments: []FfiArgument{{Name: "size", Type: AbiU64}}, Return: &buf, HasCallStatus: true},
		&FfiFunction{Name: prefix + "from_bytes", Arguments: []FfiArgument{{Name: "bytes", Type: AbiBytes}}, Return: &buf, HasCallStatus: true},
		&FfiFunction{Name: prefix + "free", Arguments: []FfiArgument{{Name: "buf", Type: AbiRustBuffer}}, HasCallStatus: true},
		&FfiFunction{Name: prefix + "reserve", Arguments: []FfiArgument{{Name: "buf", Type: AbiRustBuffer}, {Name: "additional", Type: AbiU64}}, Return: &buf, HasCallStatus: true},
	)

	handle := FfiArgument{Name: "handle", Type: AbiHandleType}
	for _, ret := range futureReturnKinds {
		out = append(out,
			&FfiFunction{
				Name: ci.FutureSymbol("poll", ret),
				Arguments: []FfiArgument{
					handle,
					{Name: "callback", Type: CallbackOf(ContinuationCallback)},
					{Name: "callback_data", Type: AbiU64},
				},
			},
			&FfiFunction{Name: ci.FutureSymbol("cancel", ret), Arguments: []FfiArgument{handle}},
			&FfiFunction{Name: ci.FutureSymbol("complete", ret), Arguments: []FfiArgument{handle}, Return: ret, HasCallStatus: true},
			&FfiFunction{Name: ci.FutureSymbol("free", ret), Arguments: []FfiArgument{handle}},
		)
	}
	return out
}

// FunctionsHostToNative filters FfiFunctions to what the host calls
// directly: buffers are copied by the ABI layer, and the rust-future
// family is only kept when the component has async calls.
func (ci *ComponentInterface) FunctionsHostToNative() []*FfiFunction {
	async := ci.HasAsyncCalls()
	var out []*FfiFunction
	for _, f := range ci.FfiFunctions() {
		if f.IsRustBuffer() {
			continue
		}
		if f.IsFuture() && !async {
			continue
		}
		out = append(out, f)
	}
	return out
}
