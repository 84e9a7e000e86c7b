// Package ir is the interface model consumed by the lowering pipeline.
//
// A ComponentInterface describes one native library's public surface:
// functions, objects, records, enums, callback interfaces and custom
// types. Type references are values of the closed Type sum; each has a
// canonical identity returned by String, which ParseType reads back.
//
// Alongside the abstract surface the model derives the low-level ABI
// description (FfiDefinitions) in the naming scheme native scaffolding
// exports: per-function symbols, vtable structs for callback interfaces,
// and the rust-future poll/cancel/complete/free family for async calls.
//
// Interface models are usually loaded from YAML or JSON documents with
// Load, or assembled from WIT type definitions with ImportWIT.
package ir
