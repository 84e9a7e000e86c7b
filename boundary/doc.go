// Package boundary is an executable model of the runtime glue the
// generated bindings must implement. Each type enforces one contract the
// templates encode textually:
//
//   - Arena: a host blob lowered into linear memory is owned by native
//     code until it is lifted back, and a buffer is lifted or freed once.
//   - HandleMap: objects crossing the boundary are handles, 0 is never
//     valid, and a released handle stays invalid.
//   - CallbackRegistry: host-implemented interfaces register their vtable
//     once, and each lowered instance is freed exactly once.
//   - Dispatcher: native-to-host method calls block the native caller and
//     run on the single host context, inline when already on it.
//   - Future: completion continuations are posted, never run on the
//     caller's stack, and a cancelled future still completes through the
//     normal path.
//
// Buffers live in a real wazero linear memory created by NewLinearMemory.
package boundary
