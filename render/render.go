// Package render is the thin emitter over a lowered model. It produces
// the ABI artifact, a C++ header declaring the C symbols, the bridging
// namespaces of every exported callback and struct and a JSI host object,
// and the host artifact, a TypeScript module with converters in emission
// order, wrappers for every callable and the callback vtables.
//
// Rendering never writes partial output: either both artifacts are
// produced or an error in the render phase is returned.
package render

import (
	"bytes"
	"embed"
	"strings"
	"text/template"

	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/lower"
)

//go:embed templates/*.tmpl
var packagedTemplates embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
	"cparams": func(ps []paramView) string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.Label + " " + p.Name
		}
		return strings.Join(out, ", ")
	},
	"tsparams": func(ps []paramView) string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.Name + ": " + p.Label
		}
		return strings.Join(out, ", ")
	},
}).ParseFS(packagedTemplates, "templates/*.tmpl"))

// Render emits both artifacts of m. It satisfies lower.RenderFunc.
func Render(m *lower.Model) (lower.Artifacts, error) {
	if m == nil || m.Component == nil || m.Bridge == nil || m.Config == nil {
		return lower.Artifacts{}, errors.InvalidInput(errors.PhaseRender, "incomplete model")
	}
	v, err := newView(m)
	if err != nil {
		return lower.Artifacts{}, err
	}
	abi, err := execute("abi", v)
	if err != nil {
		return lower.Artifacts{}, err
	}
	host, err := execute("host", v)
	if err != nil {
		return lower.Artifacts{}, err
	}
	return lower.Artifacts{ABI: abi, Host: host}, nil
}

func execute(name string, v *view) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, v); err != nil {
		return nil, errors.New(errors.PhaseRender, errors.KindInvalidData).
			Path(v.Namespace, name).
			Cause(err).
			Detail("template failed").
			Build()
	}
	return buf.Bytes(), nil
}
