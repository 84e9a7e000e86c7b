package ir

import (
	"bytes"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/ffi-bindgen/errors"
)

// Interface model documents are YAML (JSON is accepted as a subset).
// Type references use canonical identity syntax; bare names resolve to
// the document's own declarations.
//
//	namespace: geometry
//	records:
//	  - name: Point
//	    fields: [{name: x, type: Float64}, {name: y, type: Float64}]
//	enums:
//	  - name: Color
//	    variants: [Red, Green, Blue]
//	functions:
//	  - name: paint
//	    args: [{name: p, type: Point}]
//	    throws: Color
type document struct {
	Namespace          string        `yaml:"namespace"`
	ModulePath         string        `yaml:"modulePath"`
	Functions          []functionDoc `yaml:"functions"`
	Records            []recordDoc   `yaml:"records"`
	Enums              []enumDoc     `yaml:"enums"`
	Objects            []objectDoc   `yaml:"objects"`
	CallbackInterfaces []callbackDoc `yaml:"callbackInterfaces"`
	CustomTypes        []customDoc   `yaml:"customTypes"`
}

type fieldDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type functionDoc struct {
	Name    string     `yaml:"name"`
	Returns string     `yaml:"returns"`
	Throws  string     `yaml:"throws"`
	Args    []fieldDoc `yaml:"args"`
	Async   bool       `yaml:"async"`
}

type recordDoc struct {
	Name   string     `yaml:"name"`
	Fields []fieldDoc `yaml:"fields"`
}

type variantDoc struct {
	Name   string     `yaml:"name"`
	Fields []fieldDoc `yaml:"fields"`
}

// UnmarshalYAML accepts either a bare variant name or a mapping.
func (v *variantDoc) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		v.Name = n.Value
		return nil
	}
	type plain variantDoc
	return n.Decode((*plain)(v))
}

type enumDoc struct {
	Name          string       `yaml:"name"`
	Variants      []variantDoc `yaml:"variants"`
	NonExhaustive bool         `yaml:"nonExhaustive"`
}

type objectDoc struct {
	Name         string        `yaml:"name"`
	Impl         string        `yaml:"impl"`
	Constructors []functionDoc `yaml:"constructors"`
	Methods      []functionDoc `yaml:"methods"`
}

type callbackDoc struct {
	Name    string        `yaml:"name"`
	Methods []functionDoc `yaml:"methods"`
}

type customDoc struct {
	Name    string `yaml:"name"`
	Builtin string `yaml:"builtin"`
}

// LoadFile reads and validates an interface model document.
func LoadFile(path string) (*ComponentInterface, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read "+path, err)
	}
	return Load(bytes.NewReader(data))
}

// Load decodes an interface model document, resolves its type
// references and validates the result.
func Load(r io.Reader) (*ComponentInterface, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Load("decode interface model", err)
	}
	if doc.Namespace == "" {
		return nil, errors.InvalidData(errors.PhaseLoad, []string{"namespace"}, "namespace is required")
	}

	ci, err := doc.build()
	if err != nil {
		return nil, err
	}
	ci.Normalize()
	if err := ci.Validate(); err != nil {
		return nil, err
	}
	return ci, nil
}

func (doc *document) build() (*ComponentInterface, error) {
	ci := &ComponentInterface{
		Namespace:  doc.Namespace,
		ModulePath: doc.ModulePath,
	}
	if ci.ModulePath == "" {
		ci.ModulePath = doc.Namespace
	}

	// Declarations first so bare names resolve regardless of order.
	for _, r := range doc.Records {
		ci.Records = append(ci.Records, RecordDef{Name: r.Name})
	}
	for _, e := range doc.Enums {
		ci.Enums = append(ci.Enums, EnumDef{Name: e.Name, NonExhaustive: e.NonExhaustive})
	}
	for _, o := range doc.Objects {
		imp, err := parseImpl(o.Impl)
		if err != nil {
			return nil, err
		}
		ci.Objects = append(ci.Objects, ObjectDef{Name: o.Name, Imp: imp})
	}
	for _, c := range doc.CallbackInterfaces {
		ci.CallbackInterfaces = append(ci.CallbackInterfaces, CallbackInterfaceDef{Name: c.Name})
	}
	for _, c := range doc.CustomTypes {
		ci.CustomTypes = append(ci.CustomTypes, CustomDef{Name: c.Name})
	}

	var result error
	parse := func(s string, path ...string) Type {
		if s == "" {
			return nil
		}
		t, err := ParseType(s, ci.Lookup)
		if err != nil {
			result = errors.Append(result, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, joinPath(path)))
			return nil
		}
		return t
	}
	fields := func(docs []fieldDoc, path ...string) []Field {
		out := make([]Field, 0, len(docs))
		for _, f := range docs {
			out = append(out, Field{Name: f.Name, Type: parse(f.Type, append(path, f.Name)...)})
		}
		return out
	}
	function := func(f functionDoc, path ...string) Function {
		path = append(path, f.Name)
		fn := Function{
			Name:   f.Name,
			Async:  f.Async,
			Return: parse(f.Returns, append(path, "returns")...),
			Throws: parse(f.Throws, append(path, "throws")...),
		}
		for _, a := range f.Args {
			fn.Arguments = append(fn.Arguments, Argument{Name: a.Name, Type: parse(a.Type, append(path, a.Name)...)})
		}
		return fn
	}

	for i, c := range doc.CustomTypes {
		ci.CustomTypes[i].Builtin = parse(c.Builtin, c.Name, "builtin")
	}
	for i, r := range doc.Records {
		ci.Records[i].Fields = fields(r.Fields, r.Name)
	}
	for i, e := range doc.Enums {
		for _, v := range e.Variants {
			ci.Enums[i].Variants = append(ci.Enums[i].Variants, Variant{
				Name:   v.Name,
				Fields: fields(v.Fields, e.Name, v.Name),
			})
		}
	}
	for i, o := range doc.Objects {
		for _, c := range o.Constructors {
			ci.Objects[i].Constructors = append(ci.Objects[i].Constructors, function(c, o.Name))
		}
		for _, m := range o.Methods {
			ci.Objects[i].Methods = append(ci.Objects[i].Methods, function(m, o.Name))
		}
	}
	for i, c := range doc.CallbackInterfaces {
		for _, m := range c.Methods {
			ci.CallbackInterfaces[i].Methods = append(ci.CallbackInterfaces[i].Methods, function(m, c.Name))
		}
	}
	for _, f := range doc.Functions {
		ci.Functions = append(ci.Functions, function(f))
	}

	if result != nil {
		return nil, result
	}
	return ci, nil
}

func parseImpl(s string) (ObjectImpl, error) {
	switch s {
	case "", "struct":
		return ImplStruct, nil
	case "trait":
		return ImplTrait, nil
	case "callback":
		return ImplCallbackTrait, nil
	default:
		return 0, errors.InvalidData(errors.PhaseLoad, []string{"impl"}, "unknown object impl "+s)
	}
}

func joinPath(path []string) string {
	return strings.Join(path, ".")
}
