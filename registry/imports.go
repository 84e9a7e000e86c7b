package registry

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/wippyai/ffi-bindgen/abimap"
	"github.com/wippyai/ffi-bindgen/config"
	"github.com/wippyai/ffi-bindgen/ir"
)

// Import is one import statement of a component's host bindings.
type Import struct {
	// Module is the namespace of the component defining the symbols.
	Module  string
	Symbols []string
}

// Imports computes the symbols ci pulls from other components: the type
// label and converter of every External reference, plus the error
// converter of foreign objects used as errors. Every reference must
// resolve first.
func (r *Registry) Imports(ci *ir.ComponentInterface, cfg *config.Config) ([]Import, error) {
	oracle := abimap.NewOracle(ci, cfg)
	bySpace := make(map[string]mapset.Set[string])

	for _, e := range ci.ExternalTypes() {
		resolved, err := r.Resolve(e)
		if err != nil {
			return nil, err
		}
		ns, err := r.NamespaceFor(e.ModulePath)
		if err != nil {
			return nil, err
		}
		ct, err := oracle.Find(e)
		if err != nil {
			return nil, err
		}

		symbols, ok := bySpace[ns]
		if !ok {
			symbols = mapset.NewThreadUnsafeSet[string]()
			bySpace[ns] = symbols
		}
		symbols.Add(ct.Label)
		symbols.Add(ct.Converter)
		if _, isObject := resolved.(ir.Object); isObject && ci.IsNameUsedAsError(e.Name) {
			symbols.Add(ct.ErrorConverter)
		}
	}

	out := make([]Import, 0, len(bySpace))
	for ns, symbols := range bySpace {
		list := symbols.ToSlice()
		sort.Strings(list)
		out = append(out, Import{Module: ns, Symbols: list})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out, nil
}
