// Package errors provides structured error types for the lowering pipeline.
//
// Errors are categorized by Phase (which stage produced them) and Kind
// (error category). The Error type carries the identity of the offending
// type and, for bridge errors, the slot that was being generated.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMap, errors.KindUnmappedType).
//		Type("Reference(Reference(Int32))").
//		Detail("nested references have no rendering").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ModuleNotFound("mod_a", "Foo")
//	err := errors.MissingReturn("CallbackInterfaceListenerMethod0", "Listener.on_event")
//
// Defect-class kinds abort generation of a component. IsDefect reports
// whether any error in a chain is one of them.
package errors
