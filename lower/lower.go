// Package lower is the generation entry point. It takes one component's
// interface model through validation, cross-component resolution, type
// ordering, ABI mapping and bridge generation, and hands the renderer a
// Model only when every step succeeded.
package lower

import (
	"go.uber.org/zap"

	"github.com/wippyai/ffi-bindgen/abimap"
	"github.com/wippyai/ffi-bindgen/bridge"
	"github.com/wippyai/ffi-bindgen/config"
	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/ir"
	"github.com/wippyai/ffi-bindgen/registry"
	"github.com/wippyai/ffi-bindgen/typegraph"
)

// Generate lowers ci. reg must hold every component ci references; when
// nil a registry holding only ci is used. cfg may be nil.
//
// Output is all-or-nothing: the first error aborts the component and no
// Model is returned.
func Generate(ci *ir.ComponentInterface, reg *registry.Registry, cfg *config.Config) (*Model, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	log := Logger().With(zap.String("namespace", ci.Namespace))
	log.Debug("lowering component")

	ci.Normalize()
	if err := ci.Validate(); err != nil {
		return nil, err
	}

	if reg == nil {
		reg = registry.New()
		if err := reg.Register(ci); err != nil {
			return nil, err
		}
		reg.Seal()
	}
	if err := reg.ResolveAll(ci); err != nil {
		return nil, err
	}

	order := typegraph.ForComponent(ci)
	if order.HasCycle() && cfg.Generation.StrictCycles {
		ids := make([]string, len(order.Residual))
		for i, t := range order.Residual {
			ids[i] = t.String()
		}
		return nil, errors.New(errors.PhaseGraph, errors.KindResidualCycle).
			Type(ids[0]).
			Value(ids).
			Detail("%d types left on a dependency cycle", len(ids)).
			Build()
	}

	m := &Model{
		Namespace:  ci.Namespace,
		ModulePath: ci.ModulePath,
		Component:  ci,
		Config:     cfg,
		Order:      order,
		Renderings: make(map[string]abimap.Rendering),
	}

	oracle := abimap.NewOracle(ci, cfg)
	for _, t := range order.Local() {
		ct, err := oracle.Find(t)
		if err != nil {
			return nil, err
		}
		m.Converters = append(m.Converters, ct)
	}

	m.Definitions = ci.FfiDefinitions()
	mapper := abimap.New(ci.Namespace)
	for _, d := range m.Definitions {
		if err := mapDefinition(mapper, m.Renderings, d); err != nil {
			return nil, err
		}
	}

	b, err := bridge.Generate(ci, m.Definitions)
	if err != nil {
		return nil, err
	}
	m.Bridge = b

	if m.Callables, err = callables(ci, oracle, b); err != nil {
		return nil, err
	}
	if m.Implementations, err = implementations(ci, oracle, b); err != nil {
		return nil, err
	}

	if m.Imports, err = reg.Imports(ci, cfg); err != nil {
		return nil, err
	}

	log.Debug("lowered component",
		zap.Int("types", len(order.Types)),
		zap.Int("definitions", len(m.Definitions)),
		zap.Int("slots", len(b.Slots())),
		zap.Bool("cycle", order.HasCycle()))
	return m, nil
}

func mapDefinition(mapper *abimap.Mapper, out map[string]abimap.Rendering, d ir.FfiDefinition) error {
	var types []ir.AbiType
	switch d := d.(type) {
	case *ir.FfiFunction:
		for _, a := range d.Arguments {
			types = append(types, a.Type)
		}
		if d.Return != nil {
			types = append(types, *d.Return)
		}
		if d.HasCallStatus {
			types = append(types, ir.AbiType{Kind: ir.AbiCallStatus})
		}
	case *ir.FfiCallbackFunction:
		for _, a := range d.Arguments {
			types = append(types, a.Type)
		}
		if d.Return != nil {
			types = append(types, *d.Return)
		}
		if d.HasCallStatus {
			types = append(types, ir.AbiType{Kind: ir.AbiCallStatus})
		}
	case *ir.FfiStruct:
		for _, f := range d.Fields {
			types = append(types, f.Type)
		}
	}

	for _, t := range types {
		id := t.String()
		if _, ok := out[id]; ok {
			continue
		}
		r, err := mapper.Map(t)
		if err != nil {
			return errors.New(errors.PhaseMap, errors.KindUnmappedType).
				Type(id).
				Slot(d.DefinitionName()).
				Detail("definition %s uses an unmapped ABI type", d.DefinitionName()).
				Cause(err).
				Build()
		}
		out[id] = r
	}
	return nil
}

func codeTypes(oracle *abimap.Oracle, f ir.Function) ([]Param, *abimap.CodeType, *abimap.CodeType, error) {
	params := make([]Param, 0, len(f.Arguments))
	for _, a := range f.Arguments {
		ct, err := oracle.Find(a.Type)
		if err != nil {
			return nil, nil, nil, err
		}
		params = append(params, Param{Name: abimap.VarName(a.Name), Code: ct})
	}
	var ret, throws *abimap.CodeType
	var err error
	if f.Return != nil {
		if ret, err = oracle.Find(f.Return); err != nil {
			return nil, nil, nil, err
		}
	}
	if f.Throws != nil {
		if throws, err = oracle.Find(f.Throws); err != nil {
			return nil, nil, nil, err
		}
	}
	return params, ret, throws, nil
}

func callables(ci *ir.ComponentInterface, oracle *abimap.Oracle, b *bridge.Component) ([]Callable, error) {
	bySymbol := make(map[string]*bridge.CallBridge, len(b.Calls))
	for i := range b.Calls {
		bySymbol[b.Calls[i].Call.Name] = &b.Calls[i]
	}

	var out []Callable
	add := func(owner string, kind CallableKind, f ir.Function, symbol string) error {
		params, ret, throws, err := codeTypes(oracle, f)
		if err != nil {
			return err
		}
		cb, ok := bySymbol[symbol]
		if !ok {
			return errors.NotFound(errors.PhaseLower, "call bridge", symbol)
		}
		out = append(out, Callable{
			Owner:    owner,
			Kind:     kind,
			Function: f,
			Bridge:   cb,
			Params:   params,
			Return:   ret,
			Throws:   throws,
		})
		return nil
	}

	for _, f := range ci.Functions {
		if err := add("", KindFunction, f, ci.FunctionSymbol(f.Name)); err != nil {
			return nil, err
		}
	}
	for _, o := range ci.Objects {
		for _, f := range o.Constructors {
			if err := add(o.Name, KindConstructor, f, ci.ConstructorSymbol(o.Name, f.Name)); err != nil {
				return nil, err
			}
		}
		for _, f := range o.Methods {
			if err := add(o.Name, KindMethod, f, ci.MethodSymbol(o.Name, f.Name)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func implementations(ci *ir.ComponentInterface, oracle *abimap.Oracle, b *bridge.Component) ([]Implementation, error) {
	out := make([]Implementation, 0, len(b.Callbacks))
	for i := range b.Callbacks {
		cb := &b.Callbacks[i]
		var t ir.Type = ir.CallbackInterface{ModulePath: ci.ModulePath, Name: cb.Interface}
		if cb.IsObject {
			t = ir.Object{ModulePath: ci.ModulePath, Name: cb.Interface, Imp: ir.ImplCallbackTrait}
		}
		code, err := oracle.Find(t)
		if err != nil {
			return nil, err
		}

		impl := Implementation{Bridge: cb, Code: code}
		for _, h := range ci.HostImplementedInterfaces() {
			if h.Name != cb.Interface {
				continue
			}
			for _, m := range h.Methods {
				params, ret, throws, err := codeTypes(oracle, m)
				if err != nil {
					return nil, err
				}
				impl.Methods = append(impl.Methods, Callable{
					Owner:    cb.Interface,
					Kind:     KindMethod,
					Function: m,
					Params:   params,
					Return:   ret,
					Throws:   throws,
				})
			}
		}
		out = append(out, impl)
	}
	return out, nil
}
