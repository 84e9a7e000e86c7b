// Package bridge derives the native-to-host entry points of a component.
//
// For every host-implemented interface the bridge is one init slot
// (vtable registration), one slot per method and one free slot. For every
// async callable the synchronous call slot is joined by poll, continuation
// and cancel slots.
//
// Each slot carries its execution contract:
//
//   - Method and free slots block the native caller. The host glue
//     marshals them onto the host execution context and waits.
//   - The continuation never blocks and never assumes it runs on the host
//     context. The glue posts it.
//   - Cancel only signals intent. Teardown still flows through the
//     continuation and complete path, which tolerates a late completion.
//
// Generation is single threaded and pure over the interface model.
package bridge
