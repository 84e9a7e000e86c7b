package bridge

import (
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/wippyai/ffi-bindgen/ir"
)

// ExportedStruct is an ABI struct the bindings declare.
type ExportedStruct struct {
	Struct    *ir.FfiStruct
	Module    string
	Namespace string
	// FieldModules maps each callback field to the module implementing it.
	FieldModules map[string]string
}

// ExportedCallback is an ABI callback the bindings implement.
type ExportedCallback struct {
	Callback  *ir.FfiCallbackFunction
	Module    string
	Namespace string
	// Owner is the struct a free callback is specialised for.
	Owner string
}

// Exports is the ABI surface the bindings implement or call.
type Exports struct {
	Structs   []ExportedStruct
	Callbacks []ExportedCallback
	Functions []*ir.FfiFunction
}

// exports selects, in definition order, the structs and callbacks the
// bindings must implement. Only vtables and foreign-future shapes are
// exported; other structs are native-internal. Future shapes are only emitted when the
// component has async callbacks, and the continuation only when it has
// async calls. Free callbacks are emitted once per enclosing struct.
func (g *generator) exports(defs []ir.FfiDefinition) (Exports, error) {
	asyncCalls := g.ci.HasAsyncCalls()
	asyncCallbacks := g.ci.HasAsyncCallbacks()

	var out Exports
	for _, d := range defs {
		st, ok := d.(*ir.FfiStruct)
		if !ok {
			continue
		}
		if !st.IsExported() || (st.IsForeignFuture() && !asyncCallbacks) {
			continue
		}
		ns, err := g.namespace(ir.StructOf(st.Name))
		if err != nil {
			return Exports{}, err
		}
		es := ExportedStruct{
			Struct:       st,
			Module:       strcase.ToSnake(st.Name),
			Namespace:    ns,
			FieldModules: make(map[string]string),
		}
		for _, f := range st.CallbackFields() {
			cb, err := g.callback(f.Type.Name)
			if err != nil {
				return Exports{}, err
			}
			if !cb.IsFreeCallback() {
				es.FieldModules[f.Name] = strcase.ToSnake(cb.Name)
				continue
			}
			module := strcase.ToSnake(st.Name) + "__free"
			cbNS, err := g.namespace(ir.CallbackOf(cb.Name))
			if err != nil {
				return Exports{}, err
			}
			es.FieldModules[f.Name] = module
			out.Callbacks = append(out.Callbacks, ExportedCallback{
				Callback:  cb,
				Module:    module,
				Namespace: cbNS + "::" + strings.ToLower(st.Name),
				Owner:     st.Name,
			})
		}
		out.Structs = append(out.Structs, es)
	}

	for _, d := range defs {
		cb, ok := d.(*ir.FfiCallbackFunction)
		if !ok || cb.IsFreeCallback() {
			continue
		}
		if cb.IsFutureCallback() && !asyncCallbacks {
			continue
		}
		if cb.IsContinuation() && !asyncCalls {
			continue
		}
		ns, err := g.namespace(ir.CallbackOf(cb.Name))
		if err != nil {
			return Exports{}, err
		}
		out.Callbacks = append(out.Callbacks, ExportedCallback{
			Callback:  cb,
			Module:    strcase.ToSnake(cb.Name),
			Namespace: ns,
		})
	}

	for _, d := range defs {
		f, ok := d.(*ir.FfiFunction)
		if !ok || f.IsRustBuffer() {
			continue
		}
		if f.IsFuture() && !asyncCalls {
			continue
		}
		out.Functions = append(out.Functions, f)
	}
	return out, nil
}
