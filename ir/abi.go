package ir

import "strconv"

// AbiKind enumerates the low-level shapes crossing the C-ABI boundary.
// The zero value is invalid.
type AbiKind uint8

const (
	AbiUInt8 AbiKind = iota + 1
	AbiInt8
	AbiUInt16
	AbiInt16
	AbiUInt32
	AbiInt32
	AbiUInt64
	AbiInt64
	AbiFloat32
	AbiFloat64
	AbiArcPointer   // opaque reference-counted object pointer
	AbiHandle       // opaque 64-bit handle (futures, callback instances)
	AbiVoidPointer  // raw pointer
	AbiBuffer       // length-prefixed byte buffer owned by native code
	AbiForeignBytes // byte span owned by the host
	AbiCallStatus   // packed call status struct
	AbiStruct       // named struct, Name set
	AbiCallback     // named function pointer, Name set
	AbiReference    // pointer to Inner
	AbiMutReference // mutable pointer to Inner
)

var abiKindNames = [...]string{
	AbiUInt8:        "UInt8",
	AbiInt8:         "Int8",
	AbiUInt16:       "UInt16",
	AbiInt16:        "Int16",
	AbiUInt32:       "UInt32",
	AbiInt32:        "Int32",
	AbiUInt64:       "UInt64",
	AbiInt64:        "Int64",
	AbiFloat32:      "Float32",
	AbiFloat64:      "Float64",
	AbiArcPointer:   "RustArcPtr",
	AbiHandle:       "Handle",
	AbiVoidPointer:  "VoidPointer",
	AbiBuffer:       "RustBuffer",
	AbiForeignBytes: "ForeignBytes",
	AbiCallStatus:   "RustCallStatus",
	AbiStruct:       "Struct",
	AbiCallback:     "Callback",
	AbiReference:    "Reference",
	AbiMutReference: "MutReference",
}

// AbiKinds lists every valid kind.
func AbiKinds() []AbiKind {
	out := make([]AbiKind, 0, len(abiKindNames)-1)
	for k := AbiUInt8; k <= AbiMutReference; k++ {
		out = append(out, k)
	}
	return out
}

func (k AbiKind) String() string {
	if int(k) < len(abiKindNames) && abiKindNames[k] != "" {
		return abiKindNames[k]
	}
	return "AbiKind(" + strconv.Itoa(int(k)) + ")"
}

// IsScalar reports whether k is a fixed-width integer or float.
func (k AbiKind) IsScalar() bool {
	return k >= AbiUInt8 && k <= AbiFloat64
}

// Is64 reports whether k is a 64-bit integer.
func (k AbiKind) Is64() bool {
	return k == AbiUInt64 || k == AbiInt64
}

// AbiType is a low-level ABI shape.
//
// Name carries the struct or callback name, the object name for arc
// pointers and the owning module path for buffers of external types.
// Inner is set for references.
type AbiType struct {
	Inner *AbiType
	Name  string
	Kind  AbiKind
}

// Scalar ABI types.
var (
	AbiU8  = AbiType{Kind: AbiUInt8}
	AbiI8  = AbiType{Kind: AbiInt8}
	AbiU16 = AbiType{Kind: AbiUInt16}
	AbiI16 = AbiType{Kind: AbiInt16}
	AbiU32 = AbiType{Kind: AbiUInt32}
	AbiI32 = AbiType{Kind: AbiInt32}
	AbiU64 = AbiType{Kind: AbiUInt64}
	AbiI64 = AbiType{Kind: AbiInt64}
	AbiF32 = AbiType{Kind: AbiFloat32}
	AbiF64 = AbiType{Kind: AbiFloat64}

	AbiRustBuffer = AbiType{Kind: AbiBuffer}
	AbiBytes      = AbiType{Kind: AbiForeignBytes}
	AbiStatus     = AbiType{Kind: AbiCallStatus}
	AbiHandleType = AbiType{Kind: AbiHandle}
	AbiVoidPtr    = AbiType{Kind: AbiVoidPointer}
)

// ArcPointerTo is the handle of a named object.
func ArcPointerTo(object string) AbiType { return AbiType{Kind: AbiArcPointer, Name: object} }

// BufferOf is a buffer serialised by the component at modulePath.
func BufferOf(modulePath string) AbiType { return AbiType{Kind: AbiBuffer, Name: modulePath} }

// StructOf references a named ABI struct.
func StructOf(name string) AbiType { return AbiType{Kind: AbiStruct, Name: name} }

// CallbackOf references a named ABI callback.
func CallbackOf(name string) AbiType { return AbiType{Kind: AbiCallback, Name: name} }

// RefTo wraps t in a const reference.
func RefTo(t AbiType) AbiType { return AbiType{Kind: AbiReference, Inner: &t} }

// MutRefTo wraps t in a mutable reference.
func MutRefTo(t AbiType) AbiType { return AbiType{Kind: AbiMutReference, Inner: &t} }

// IsReference reports whether t is a reference of either kind.
func (t AbiType) IsReference() bool {
	return t.Kind == AbiReference || t.Kind == AbiMutReference
}

// Deref returns the referenced type, or t itself.
func (t AbiType) Deref() AbiType {
	if t.IsReference() && t.Inner != nil {
		return *t.Inner
	}
	return t
}

// String returns the canonical identity of t.
func (t AbiType) String() string {
	switch t.Kind {
	case AbiStruct, AbiCallback, AbiArcPointer:
		return t.Kind.String() + "(" + t.Name + ")"
	case AbiBuffer:
		if t.Name != "" {
			return "RustBuffer(" + t.Name + ")"
		}
		return "RustBuffer"
	case AbiReference, AbiMutReference:
		if t.Inner == nil {
			return t.Kind.String() + "(<nil>)"
		}
		return t.Kind.String() + "(" + t.Inner.String() + ")"
	default:
		return t.Kind.String()
	}
}

// Equal compares by identity.
func (t AbiType) Equal(o AbiType) bool { return t.String() == o.String() }

// IsCallable reports whether t is a function pointer.
func (t AbiType) IsCallable() bool { return t.Kind == AbiCallback }

// IsForeignFuture reports whether t is, or references, a ForeignFuture struct.
func (t AbiType) IsForeignFuture() bool {
	switch t.Kind {
	case AbiStruct:
		return hasPrefix(t.Name, foreignFuturePrefix)
	case AbiReference, AbiMutReference:
		return t.Inner != nil && t.Inner.IsForeignFuture()
	}
	return false
}

// AbiTypeOf lowers an abstract type to the ABI shape it crosses the
// boundary as.
func AbiTypeOf(t Type) AbiType {
	switch t := t.(type) {
	case Primitive:
		switch t {
		case UInt8:
			return AbiU8
		case Int8, Boolean:
			return AbiI8
		case UInt16:
			return AbiU16
		case Int16:
			return AbiI16
		case UInt32:
			return AbiU32
		case Int32:
			return AbiI32
		case UInt64:
			return AbiU64
		case Int64:
			return AbiI64
		case Float32:
			return AbiF32
		case Float64:
			return AbiF64
		default:
			return AbiRustBuffer
		}
	case Object:
		return ArcPointerTo(t.Name)
	case CallbackInterface:
		return AbiU64
	case Custom:
		if t.Builtin != nil {
			return AbiTypeOf(t.Builtin)
		}
		return AbiRustBuffer
	case External:
		if t.Kind == ExternalData {
			return BufferOf(t.ModulePath)
		}
		return ArcPointerTo(t.Name)
	default:
		return AbiRustBuffer
	}
}

// AbiTypeSuffix names the rust-future helper family for a return shape.
func AbiTypeSuffix(t *AbiType) string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case AbiUInt8:
		return "u8"
	case AbiInt8:
		return "i8"
	case AbiUInt16:
		return "u16"
	case AbiInt16:
		return "i16"
	case AbiUInt32:
		return "u32"
	case AbiInt32:
		return "i32"
	case AbiUInt64:
		return "u64"
	case AbiInt64:
		return "i64"
	case AbiFloat32:
		return "f32"
	case AbiFloat64:
		return "f64"
	case AbiArcPointer, AbiHandle:
		return "pointer"
	case AbiBuffer:
		return "rust_buffer"
	default:
		return "void"
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
