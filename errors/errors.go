package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Phase indicates which stage produced the error
type Phase string

const (
	PhaseModel    Phase = "model"    // interface model validation
	PhaseGraph    Phase = "graph"    // type graph ordering
	PhaseMap      Phase = "map"      // ABI and code type mapping
	PhaseBridge   Phase = "bridge"   // callback and future bridge generation
	PhaseRegistry Phase = "registry" // cross-module resolution
	PhaseLower    Phase = "lower"    // generation entry point
	PhaseRender   Phase = "render"   // template rendering
	PhaseRuntime  Phase = "runtime"  // boundary glue at run time
	PhaseLoad     Phase = "load"     // interface model loading
	PhaseConfig   Phase = "config"   // binding configuration
	PhaseCache    Phase = "cache"    // artifact cache
)

// Kind categorizes the error
type Kind string

const (
	KindUnmappedType      Kind = "unmapped_type"
	KindModuleNotFound    Kind = "module_not_found"
	KindTypeNotFound      Kind = "type_not_found"
	KindMissingReturn     Kind = "missing_return"
	KindValueCycle        Kind = "value_cycle"
	KindResidualCycle     Kind = "residual_cycle"
	KindDuplicate         Kind = "duplicate"
	KindDoubleFree        Kind = "double_free"
	KindStaleHandle       Kind = "stale_handle"
	KindAlreadyRegistered Kind = "already_registered"
	KindCancelled         Kind = "cancelled"
	KindAllocation        Kind = "allocation"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindInvalidData       Kind = "invalid_data"
	KindInvalidInput      Kind = "invalid_input"
	KindUnsupported       Kind = "unsupported"
	KindNotFound          Kind = "not_found"
	KindNotInitialized    Kind = "not_initialized"
	KindRegistration      Kind = "registration"
)

// defectKinds abort generation of the component that produced them.
var defectKinds = map[Kind]bool{
	KindUnmappedType:   true,
	KindModuleNotFound: true,
	KindTypeNotFound:   true,
	KindMissingReturn:  true,
	KindValueCycle:     true,
	KindResidualCycle:  true,
}

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string // canonical identity of the offending type
	Slot   string // bridge slot or ABI definition name
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" || e.Slot != "" {
		b.WriteString(": ")
		if e.Type != "" && e.Slot != "" {
			b.WriteString("type ")
			b.WriteString(e.Type)
			b.WriteString(", slot ")
			b.WriteString(e.Slot)
		} else if e.Type != "" {
			b.WriteString("type ")
			b.WriteString(e.Type)
		} else {
			b.WriteString("slot ")
			b.WriteString(e.Slot)
		}
	}

	if e.Detail != "" {
		if e.Type != "" || e.Slot != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Defect reports whether the error aborts generation of a component.
func (e *Error) Defect() bool {
	return defectKinds[e.Kind]
}

// IsDefect reports whether err, or any error it wraps or aggregates,
// is defect-class.
func IsDefect(err error) bool {
	if err == nil {
		return false
	}
	var merr *multierror.Error
	if stderrors.As(err, &merr) {
		for _, e := range merr.Errors {
			if IsDefect(e) {
				return true
			}
		}
		return false
	}
	for err != nil {
		if e, ok := err.(*Error); ok && e.Defect() {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the canonical type identity
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Slot sets the bridge slot or definition name
func (b *Builder) Slot(s string) *Builder {
	b.err.Slot = s
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Unmapped creates an unmapped type error
func Unmapped(phase Phase, typeID, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnmappedType,
		Type:   typeID,
		Detail: detail,
	}
}

// ModuleNotFound creates an error for an External reference into an
// unregistered module
func ModuleNotFound(modulePath, name string) *Error {
	return &Error{
		Phase:  PhaseRegistry,
		Kind:   KindModuleNotFound,
		Type:   modulePath + "." + name,
		Detail: fmt.Sprintf("module %q not found", modulePath),
	}
}

// TypeNotFound creates an error for an External reference to a type
// missing from a registered module
func TypeNotFound(modulePath, name string) *Error {
	return &Error{
		Phase:  PhaseRegistry,
		Kind:   KindTypeNotFound,
		Type:   modulePath + "." + name,
		Detail: fmt.Sprintf("type %q not found in module %q", name, modulePath),
	}
}

// MissingReturn creates an error for a callback slot that lacks its
// return-carrying argument
func MissingReturn(slot, method string) *Error {
	return &Error{
		Phase:  PhaseBridge,
		Kind:   KindMissingReturn,
		Slot:   slot,
		Detail: fmt.Sprintf("%s returns a value but the slot has no out-return argument", method),
	}
}

// ValueCycle creates an error for a record/enum cycle that does not pass
// through an object handle
func ValueCycle(path []string) *Error {
	var head string
	if len(path) > 0 {
		head = path[0]
	}
	return &Error{
		Phase:  PhaseModel,
		Kind:   KindValueCycle,
		Type:   head,
		Path:   path,
		Detail: "value types reference each other without an object handle",
	}
}

// DoubleFree creates an error for releasing the same resource twice
func DoubleFree(what string, handle uint64) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindDoubleFree,
		Detail: fmt.Sprintf("%s %d already released", what, handle),
		Value:  handle,
	}
}

// StaleHandle creates an error for a handle that is not live
func StaleHandle(what string, handle uint64) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindStaleHandle,
		Detail: fmt.Sprintf("%s handle %d is not live", what, handle),
		Value:  handle,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range [%d, %d) out of bounds", offset, uint64(offset)+uint64(length)),
		Value:  offset,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates an interface model loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Append aggregates errors the way validation passes collect them.
// A nil result means every argument was nil.
func Append(err error, errs ...error) error {
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	if len(nonNil) == 0 {
		return err
	}
	return multierror.Append(err, nonNil...)
}
