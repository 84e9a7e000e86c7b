package ir

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/wippyai/ffi-bindgen/errors"
)

// Validate checks the structural invariants of the model: unique names,
// resolvable local references, custom builtins, and the absence of value
// cycles among records and enums. All failures are reported together.
func (ci *ComponentInterface) Validate() error {
	var result error

	declared := mapset.NewThreadUnsafeSet[string]()
	for _, t := range ci.DeclaredTypes() {
		if !declared.Add(Name(t)) {
			result = errors.Append(result, errors.New(errors.PhaseModel, errors.KindDuplicate).
				Type(t.String()).
				Detail("name %q declared more than once", Name(t)).
				Build())
		}
	}

	for _, c := range ci.CustomTypes {
		if c.Builtin == nil {
			result = errors.Append(result, errors.New(errors.PhaseModel, errors.KindInvalidInput).
				Type(Custom{ModulePath: ci.ModulePath, Name: c.Name}.String()).
				Detail("custom type has no builtin").
				Build())
		}
	}

	for _, t := range ci.Types() {
		result = errors.Append(result, ci.checkReference(t))
	}

	for _, cycle := range ci.valueCycles() {
		result = errors.Append(result, errors.ValueCycle(cycle))
	}
	return result
}

func (ci *ComponentInterface) checkReference(t Type) error {
	name := Name(t)
	if name == "" || IsExternal(t) {
		return nil
	}
	if mp := ModulePath(t); mp != ci.ModulePath {
		return errors.New(errors.PhaseModel, errors.KindInvalidInput).
			Type(t.String()).
			Detail("reference into module %q must be External", mp).
			Build()
	}
	var ok bool
	switch t.(type) {
	case Record:
		_, ok = ci.Record(name)
	case Enum:
		_, ok = ci.Enum(name)
	case Object:
		_, ok = ci.Object(name)
	case CallbackInterface:
		_, ok = ci.CallbackInterface(name)
	case Custom:
		_, ok = ci.Custom(name)
	}
	if !ok {
		return errors.New(errors.PhaseModel, errors.KindNotFound).
			Type(t.String()).
			Detail("no definition for %q", name).
			Build()
	}
	return nil
}

// valueEdges maps each record/enum identity to the record/enum identities
// its fields contain by value. Object handles break the chain.
func (ci *ComponentInterface) valueEdges() map[string][]string {
	edges := make(map[string][]string)
	var add func(from string, t Type)
	add = func(from string, t Type) {
		Walk(t, func(n Type) {
			switch n := n.(type) {
			case Record, Enum:
				edges[from] = append(edges[from], n.String())
			case Custom:
				if n.Builtin != nil {
					return
				}
				if def, ok := ci.Custom(n.Name); ok && def.Builtin != nil {
					add(from, def.Builtin)
				}
			}
		})
	}
	collect := func(from string, fields []Field) {
		for _, f := range fields {
			add(from, f.Type)
		}
	}
	for _, r := range ci.Records {
		collect(Record{ModulePath: ci.ModulePath, Name: r.Name}.String(), r.Fields)
	}
	for _, e := range ci.Enums {
		from := Enum{ModulePath: ci.ModulePath, Name: e.Name}.String()
		for _, v := range e.Variants {
			collect(from, v.Fields)
		}
	}
	return edges
}

// valueCycles returns each elementary cycle found by depth-first search,
// starting from identities in sorted order so results are stable.
func (ci *ComponentInterface) valueCycles() [][]string {
	edges := ci.valueEdges()
	nodes := make([]string, 0, len(edges))
	for n := range edges {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int)
	var stack []string
	var cycles [][]string

	var visit func(n string)
	visit = func(n string) {
		color[n] = grey
		stack = append(stack, n)
		for _, m := range edges[n] {
			switch color[m] {
			case white:
				visit(m)
			case grey:
				start := len(stack) - 1
				for stack[start] != m {
					start--
				}
				cycle := append([]string(nil), stack[start:]...)
				cycles = append(cycles, append(cycle, m))
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
	}
	for _, n := range nodes {
		if color[n] == white {
			visit(n)
		}
	}
	return cycles
}
