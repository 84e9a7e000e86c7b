package ir

import "strings"

// Out-parameter and well-known definition names used by native scaffolding.
const (
	OutReturn          = "uniffi_out_return"
	OutDroppedCallback = "uniffi_out_dropped_callback"
	OutErr             = "uniffi_out_err"
	FutureCallbackArg  = "uniffi_future_callback"
	CallbackDataArg    = "uniffi_callback_data"
	HandleArg          = "uniffi_handle"
	FreeField          = "uniffi_free"

	ContinuationCallback  = "RustFutureContinuationCallback"
	CallbackInterfaceFree = "CallbackInterfaceFree"
	ForeignFutureFree     = "ForeignFutureFree"
	ForeignFutureStruct   = "ForeignFuture"

	foreignFuturePrefix     = "ForeignFuture"
	foreignFutureComplete   = "ForeignFutureComplete"
	foreignFutureResult     = "ForeignFutureStruct"
	userCallbackPrefix      = "CallbackInterface"
	vtablePrefix            = "VTableCallbackInterface"
	droppedCallbackCallback = "ForeignFutureDroppedCallback"
)

// FfiDefinition is one entry of the low-level ABI description.
type FfiDefinition interface {
	isFfiDefinition()
	DefinitionName() string
}

// FfiArgument is a named ABI parameter.
type FfiArgument struct {
	Name string
	Type AbiType
}

// IsOutputParam reports whether the callee writes the argument.
func (a FfiArgument) IsOutputParam() bool {
	return a.Name == OutReturn || a.Name == OutDroppedCallback
}

// FfiFunction is a host-callable native symbol.
type FfiFunction struct {
	Return        *AbiType
	Name          string
	Arguments     []FfiArgument
	HasCallStatus bool
	IsAsync       bool
}

// FfiCallbackFunction is a function pointer signature the host supplies.
type FfiCallbackFunction struct {
	Return        *AbiType
	Name          string
	Arguments     []FfiArgument
	HasCallStatus bool
}

// FfiField is a struct member.
type FfiField struct {
	Name string
	Type AbiType
}

// FfiStruct is a named ABI struct.
type FfiStruct struct {
	Name   string
	Fields []FfiField
}

func (*FfiFunction) isFfiDefinition()         {}
func (*FfiCallbackFunction) isFfiDefinition() {}
func (*FfiStruct) isFfiDefinition()           {}

func (f *FfiFunction) DefinitionName() string         { return f.Name }
func (c *FfiCallbackFunction) DefinitionName() string { return c.Name }
func (s *FfiStruct) DefinitionName() string           { return s.Name }

// IsFuture reports whether f belongs to the rust-future helper family.
func (f *FfiFunction) IsFuture() bool { return strings.Contains(f.Name, "_rust_future_") }

// IsRustBuffer reports whether f is a buffer management helper.
func (f *FfiFunction) IsRustBuffer() bool { return strings.Contains(f.Name, "_rustbuffer_") }

// IsCallbackInit reports whether f registers a vtable.
func (f *FfiFunction) IsCallbackInit() bool { return strings.Contains(f.Name, "_callback_vtable_") }

// IsUserCallback reports whether c is a callback interface method or the
// interface free callback.
func (c *FfiCallbackFunction) IsUserCallback() bool {
	return strings.HasPrefix(c.Name, userCallbackPrefix)
}

// IsFreeCallback reports whether c releases a host-side instance.
func (c *FfiCallbackFunction) IsFreeCallback() bool { return isFree(c.Name) }

// IsContinuation reports whether c is the future continuation.
func (c *FfiCallbackFunction) IsContinuation() bool { return c.Name == ContinuationCallback }

// IsFutureCallback reports whether c belongs to the foreign-future family.
func (c *FfiCallbackFunction) IsFutureCallback() bool {
	return strings.HasPrefix(c.Name, foreignFuturePrefix) && c.Name != droppedCallbackCallback
}

// IsFunctionLiteral reports whether the host creates c as a literal value
// rather than registering it.
func (c *FfiCallbackFunction) IsFunctionLiteral() bool {
	return strings.HasPrefix(c.Name, foreignFutureComplete)
}

// IsExported reports whether c must appear in host-visible output.
func (c *FfiCallbackFunction) IsExported() bool {
	return !c.IsUserCallback() && !c.IsFreeCallback()
}

// IsNativeCallingHost reports whether the native side invokes c.
func (c *FfiCallbackFunction) IsNativeCallingHost() bool {
	return !c.IsFutureCallback() || c.IsContinuation()
}

// HasReturnOutParam reports whether any argument is an out-parameter.
func (c *FfiCallbackFunction) HasReturnOutParam() bool {
	for _, a := range c.Arguments {
		if a.IsOutputParam() {
			return true
		}
	}
	return false
}

// ArgReturnType is the type written through the out-return parameter,
// or nil when there is none or it is void.
func (c *FfiCallbackFunction) ArgReturnType() *AbiType {
	for _, a := range c.Arguments {
		if a.IsOutputParam() && a.Type.Deref().Kind != AbiVoidPointer {
			t := a.Type.Deref()
			return &t
		}
	}
	return nil
}

// ArgumentsNoReturn excludes out-parameters.
func (c *FfiCallbackFunction) ArgumentsNoReturn() []FfiArgument {
	out := make([]FfiArgument, 0, len(c.Arguments))
	for _, a := range c.Arguments {
		if !a.IsOutputParam() {
			out = append(out, a)
		}
	}
	return out
}

// ReturnsResult reports whether the signature can carry a result or an
// error back to the caller.
func (c *FfiCallbackFunction) ReturnsResult() bool {
	return c.HasReturnOutParam() || c.HasCallStatus || c.Return != nil
}

// IsVTable reports whether any field is a function pointer.
func (s *FfiStruct) IsVTable() bool {
	for _, f := range s.Fields {
		if f.Type.IsCallable() {
			return true
		}
	}
	return false
}

// IsForeignFuture reports whether s belongs to the foreign-future family.
func (s *FfiStruct) IsForeignFuture() bool {
	return strings.HasPrefix(s.Name, foreignFuturePrefix)
}

// IsExported reports whether s must appear in host-visible output.
func (s *FfiStruct) IsExported() bool { return s.IsVTable() || s.IsForeignFuture() }

// CallbackFields returns the function pointer fields in declaration order.
func (s *FfiStruct) CallbackFields() []FfiField {
	var out []FfiField
	for _, f := range s.Fields {
		if f.Type.IsCallable() {
			out = append(out, f)
		}
	}
	return out
}

// IsExported reports whether a definition must appear in host-visible output.
func IsExported(def FfiDefinition) bool {
	switch d := def.(type) {
	case *FfiCallbackFunction:
		return d.IsExported()
	case *FfiStruct:
		return d.IsExported()
	default:
		return false
	}
}

func isFree(name string) bool {
	return name == CallbackInterfaceFree || name == ForeignFutureFree
}
