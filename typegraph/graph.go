// Package typegraph orders the types of a component so that every
// generated declaration appears after the declarations it needs at
// initialization time.
//
// Edges encode initialization dependencies rather than structural
// nesting. An object only needs a 64-bit handle to be declared, so object
// self-reference and records that point at objects never form cycles.
// Enums need their 32-bit ordinal; error types additionally need String
// (and objects Int32) for their error rendering helpers. Composite types
// need their inner types plus their length or presence scalar.
//
// Ties are broken by canonical identity, so the order is reproducible
// regardless of the order types were added in.
package typegraph

import (
	"sort"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/wippyai/ffi-bindgen/ir"
)

var residualCycles atomic.Uint64

// ResidualCycles returns how many sorts, process wide, ended with nodes
// that could not be ordered.
func ResidualCycles() uint64 {
	return residualCycles.Load()
}

// Edge says From must be emitted before To.
type Edge struct {
	From string
	To   string
}

// Builder accumulates nodes and edges for one sort. It is owned by a
// single goroutine for the duration of one generation pass.
type Builder struct {
	errorNames mapset.Set[string]
	nodes      map[string]ir.Type
	expanded   map[string]bool
	dependents map[string]map[string]bool
	edges      []Edge
}

// NewBuilder creates a builder. errorNames lists the type names used as
// errors; it may be nil.
func NewBuilder(errorNames mapset.Set[string]) *Builder {
	if errorNames == nil {
		errorNames = mapset.NewThreadUnsafeSet[string]()
	}
	return &Builder{
		errorNames: errorNames,
		nodes:      make(map[string]ir.Type),
		expanded:   make(map[string]bool),
		dependents: make(map[string]map[string]bool),
	}
}

// Add inserts t and the dependencies its kind implies. Adding a type
// twice has no further effect.
func (b *Builder) Add(t ir.Type) {
	id := b.store(t)
	if b.expanded[id] {
		return
	}
	b.expanded[id] = true

	for _, dep := range b.dependencies(t) {
		b.Add(dep)
		b.addEdge(dep, t)
	}
}

// dependencies returns the types t needs declared before it.
func (b *Builder) dependencies(t ir.Type) []ir.Type {
	switch t := t.(type) {
	case ir.Object:
		if b.errorNames.Contains(t.Name) {
			return []ir.Type{ir.UInt64, ir.Int32, ir.String}
		}
		return []ir.Type{ir.UInt64}
	case ir.Enum:
		if b.errorNames.Contains(t.Name) {
			return []ir.Type{ir.Int32, ir.String}
		}
		return []ir.Type{ir.Int32}
	case ir.Custom:
		if t.Builtin != nil {
			return []ir.Type{t.Builtin}
		}
		return nil
	case ir.Optional:
		return []ir.Type{ir.Boolean, t.Inner}
	case ir.Sequence:
		return []ir.Type{ir.Int32, t.Inner}
	case ir.Map:
		return []ir.Type{t.Key, t.Value}
	default:
		return nil
	}
}

func (b *Builder) store(t ir.Type) string {
	id := t.String()
	if _, ok := b.nodes[id]; !ok {
		b.nodes[id] = t
	}
	return id
}

func (b *Builder) addEdge(dep, t ir.Type) {
	from, to := dep.String(), t.String()
	if from == to {
		return
	}
	out := b.dependents[from]
	if out == nil {
		out = make(map[string]bool)
		b.dependents[from] = out
	}
	if out[to] {
		return
	}
	out[to] = true
	b.edges = append(b.edges, Edge{From: from, To: to})
}

// Len returns the number of distinct nodes.
func (b *Builder) Len() int { return len(b.nodes) }

// Order is the result of a sort.
type Order struct {
	index map[string]int
	// Types holds every node: the topological order followed by Residual.
	Types []ir.Type
	// Edges are the synthetic edges the order satisfies, sorted.
	Edges []Edge
	// Residual holds nodes left on a cycle, sorted by identity.
	Residual []ir.Type
}

// Sort produces the emission order. Nodes whose predecessors are all
// emitted are released together and sorted by identity. Nodes left on a
// cycle are logged, counted, and appended in identity order.
func (b *Builder) Sort() *Order {
	indegree := make(map[string]int, len(b.nodes))
	for id := range b.nodes {
		indegree[id] = 0
	}
	for _, e := range b.edges {
		indegree[e.To]++
	}

	var ready []string
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}

	order := &Order{index: make(map[string]int, len(b.nodes))}
	emit := func(id string) {
		order.index[id] = len(order.Types)
		order.Types = append(order.Types, b.nodes[id])
	}

	for len(ready) > 0 {
		sort.Strings(ready)
		var next []string
		for _, id := range ready {
			emit(id)
			for to := range b.dependents[id] {
				indegree[to]--
				if indegree[to] == 0 {
					next = append(next, to)
				}
			}
		}
		ready = next
	}

	if len(order.Types) < len(b.nodes) {
		var left []string
		for id := range b.nodes {
			if _, done := order.index[id]; !done {
				left = append(left, id)
			}
		}
		sort.Strings(left)
		for _, id := range left {
			order.Residual = append(order.Residual, b.nodes[id])
			emit(id)
		}
		residualCycles.Add(1)
		Logger().Warn("cyclic type dependency, appending unresolved types in identity order",
			zap.Strings("types", left))
	}

	order.Edges = append([]Edge(nil), b.edges...)
	sort.Slice(order.Edges, func(i, j int) bool {
		if order.Edges[i].From != order.Edges[j].From {
			return order.Edges[i].From < order.Edges[j].From
		}
		return order.Edges[i].To < order.Edges[j].To
	})
	return order
}

// Position returns the index of the type with the given identity, or -1.
func (o *Order) Position(id string) int {
	if i, ok := o.index[id]; ok {
		return i
	}
	return -1
}

// Identities returns the identity of every ordered type.
func (o *Order) Identities() []string {
	out := make([]string, len(o.Types))
	for i, t := range o.Types {
		out[i] = t.String()
	}
	return out
}

// Local returns the order without External references, which are
// declared by the component that owns them.
func (o *Order) Local() []ir.Type {
	out := make([]ir.Type, 0, len(o.Types))
	for _, t := range o.Types {
		if !ir.IsExternal(t) {
			out = append(out, t)
		}
	}
	return out
}

// HasCycle reports whether any node could not be ordered.
func (o *Order) HasCycle() bool { return len(o.Residual) > 0 }

// Sort orders types using the given error names.
func Sort(types []ir.Type, errorNames mapset.Set[string]) *Order {
	b := NewBuilder(errorNames)
	for _, t := range types {
		b.Add(t)
	}
	return b.Sort()
}

// ForComponent orders every type referenced by ci.
func ForComponent(ci *ir.ComponentInterface) *Order {
	return Sort(ci.Types(), ci.ErrorNames())
}
