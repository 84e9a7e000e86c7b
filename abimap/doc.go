// Package abimap maps ABI shapes and abstract types to their renderings.
//
// Map is total over every ABI shape the interface model can produce. A
// shape with no entry is a defect: Map returns an unmapped_type error and
// never falls back to a generic rendering.
//
// Two rendering families are produced:
//
//   - Rendering, for ABI types at the C boundary: host label, C label,
//     bridging namespace, default literal and lift/lower/read/write
//     templates. Struct and callback shapes live in per-component
//     sub-namespaces (cb:: and st::) so same-named shapes from two
//     components never collide.
//   - CodeType, for abstract types on the host surface: label, canonical
//     name, converter name and converter call templates.
//
// Templates use {} as a positional placeholder, filled by Template.Apply.
package abimap
