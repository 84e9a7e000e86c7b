package bridge

import "github.com/wippyai/ffi-bindgen/ir"

// Role is what a slot does.
type Role uint8

const (
	RoleInit Role = iota + 1
	RoleMethod
	RoleFree
	RoleCall
	RolePoll
	RoleContinuation
	RoleCancel
)

var roleNames = [...]string{
	RoleInit:         "init",
	RoleMethod:       "method",
	RoleFree:         "free",
	RoleCall:         "call",
	RolePoll:         "poll",
	RoleContinuation: "continuation",
	RoleCancel:       "cancel",
}

func (r Role) String() string {
	if int(r) < len(roleNames) && roleNames[r] != "" {
		return roleNames[r]
	}
	return "unknown"
}

// Direction tells which side calls the slot.
type Direction uint8

const (
	HostToNative Direction = iota
	NativeToHost
)

func (d Direction) String() string {
	if d == NativeToHost {
		return "native->host"
	}
	return "host->native"
}

// Threading is how the generated glue schedules a slot.
type Threading uint8

const (
	// Caller runs on the calling host thread.
	Caller Threading = iota
	// Blocking marshals onto the host context and blocks the native
	// caller until the host returns.
	Blocking
	// Posted enqueues onto the host context without blocking and without
	// assuming the current thread.
	Posted
)

func (t Threading) String() string {
	switch t {
	case Blocking:
		return "blocking"
	case Posted:
		return "posted"
	default:
		return "caller"
	}
}

// Lifetime is the ownership contract of the values crossing the slot.
type Lifetime uint8

const (
	// PerCall borrows arguments for the duration of the call. Buffers
	// lowered into the call move to the callee.
	PerCall Lifetime = iota
	// Registered lives from registration until process exit.
	Registered
	// Release consumes the handle it is given, exactly once.
	Release
	// OneShot fires at most once per poll.
	OneShot
)

func (l Lifetime) String() string {
	switch l {
	case Registered:
		return "registered"
	case Release:
		return "release"
	case OneShot:
		return "one-shot"
	default:
		return "per-call"
	}
}

// Slot is one entry point across the boundary.
type Slot struct {
	Name      string // ABI callback or native symbol
	Field     string // vtable field, for vtable slots
	Namespace string // bridging namespace of the slot
	Method    string // user-facing method name, when there is one

	Role      Role
	Direction Direction
	Threading Threading
	Lifetime  Lifetime

	// Exactly one of Callback and Function is set.
	Callback *ir.FfiCallbackFunction
	Function *ir.FfiFunction

	// Return is the value carried back to the caller, nil for void.
	Return *ir.AbiType
	Async  bool
}

// IsFree reports whether the slot releases a host-side instance.
func (s Slot) IsFree() bool { return s.Role == RoleFree }

// IsContinuation reports whether the slot resumes a native future.
func (s Slot) IsContinuation() bool { return s.Role == RoleContinuation }

// IsBlocking reports whether invoking the slot may block the caller.
// Everything except the continuation may block.
func (s Slot) IsBlocking() bool { return s.Role != RoleContinuation }

// CallbackBridge is the bridge of one host-implemented interface.
type CallbackBridge struct {
	Interface string
	IsObject  bool
	VTable    *ir.FfiStruct
	Init      Slot
	Methods   []Slot
	Free      Slot

	// FutureComplete lists the completion literals async methods use,
	// keyed by method name.
	FutureComplete map[string]string
}

// Slots returns init, the methods in declaration order, then free.
func (b *CallbackBridge) Slots() []Slot {
	out := make([]Slot, 0, len(b.Methods)+2)
	out = append(out, b.Init)
	out = append(out, b.Methods...)
	return append(out, b.Free)
}

// CallBridge is the bridge of one host-callable function, constructor or
// method.
type CallBridge struct {
	Owner    string // object name, empty for top-level functions
	Callable string
	Call     Slot

	// Set only for async callables.
	Poll         *Slot
	Continuation *Slot
	Cancel       *Slot

	// CompleteSymbol and FreeSymbol finish an async call after the
	// continuation reports readiness.
	CompleteSymbol string
	FreeSymbol     string
}

// IsAsync reports whether the call returns a future.
func (c *CallBridge) IsAsync() bool { return c.Poll != nil }

// Slots returns the call slot followed by poll, continuation and cancel
// for async callables.
func (c *CallBridge) Slots() []Slot {
	out := []Slot{c.Call}
	if c.IsAsync() {
		out = append(out, *c.Poll, *c.Continuation, *c.Cancel)
	}
	return out
}

// Component is the bridge of a whole component.
type Component struct {
	Namespace string
	Callbacks []CallbackBridge
	Calls     []CallBridge
	Exports   Exports
}

// Slots lists every slot: callback bridges first, then calls.
func (c *Component) Slots() []Slot {
	var out []Slot
	for i := range c.Callbacks {
		out = append(out, c.Callbacks[i].Slots()...)
	}
	for i := range c.Calls {
		out = append(out, c.Calls[i].Slots()...)
	}
	return out
}
