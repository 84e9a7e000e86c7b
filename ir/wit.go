package ir

import (
	"strings"

	"github.com/iancoleman/strcase"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/ffi-bindgen/errors"
)

// FromWIT converts a WIT type reference into an abstract type. Named
// type definitions become references into modulePath; anonymous ones are
// converted structurally.
func FromWIT(modulePath string, t wit.Type) (Type, error) {
	switch t := t.(type) {
	case wit.Bool:
		return Boolean, nil
	case wit.U8:
		return UInt8, nil
	case wit.U16:
		return UInt16, nil
	case wit.U32:
		return UInt32, nil
	case wit.U64:
		return UInt64, nil
	case wit.S8:
		return Int8, nil
	case wit.S16:
		return Int16, nil
	case wit.S32:
		return Int32, nil
	case wit.S64:
		return Int64, nil
	case wit.F32:
		return Float32, nil
	case wit.F64:
		return Float64, nil
	case wit.Char, wit.String:
		return String, nil
	case *wit.TypeDef:
		return fromTypeDef(modulePath, t)
	case nil:
		return nil, errors.InvalidData(errors.PhaseLoad, nil, "nil WIT type")
	default:
		return nil, errors.Unsupported(errors.PhaseLoad, "WIT type "+t.WITKind())
	}
}

func fromTypeDef(modulePath string, td *wit.TypeDef) (Type, error) {
	if name := witName(td); name != "" {
		switch td.Kind.(type) {
		case *wit.Record:
			return Record{ModulePath: modulePath, Name: name}, nil
		case *wit.Enum, *wit.Variant:
			return Enum{ModulePath: modulePath, Name: name}, nil
		case *wit.Resource:
			return Object{ModulePath: modulePath, Name: name}, nil
		case *wit.Flags:
			return Custom{ModulePath: modulePath, Name: name, Builtin: UInt32}, nil
		}
		// Aliases of anonymous kinds fall through to structural conversion.
	}

	switch kind := td.Kind.(type) {
	case *wit.List:
		if _, ok := kind.Type.(wit.U8); ok {
			return Bytes, nil
		}
		inner, err := FromWIT(modulePath, kind.Type)
		if err != nil {
			return nil, err
		}
		return Sequence{Inner: inner}, nil
	case *wit.Option:
		inner, err := FromWIT(modulePath, kind.Type)
		if err != nil {
			return nil, err
		}
		return Optional{Inner: inner}, nil
	case *wit.Own:
		return FromWIT(modulePath, kind.Type)
	case *wit.Borrow:
		return FromWIT(modulePath, kind.Type)
	case wit.Type:
		// type alias of a primitive or another definition
		return FromWIT(modulePath, kind)
	default:
		return nil, errors.New(errors.PhaseLoad, errors.KindUnsupported).
			Type(witName(td)).
			Detail("WIT %s has no interface model equivalent", td.Kind.WITKind()).
			Build()
	}
}

// ImportWIT declares every named WIT type definition in a new component.
// Records, enums, variants, resources and flags are supported; variants
// with a payload get a single field named "value".
func ImportWIT(namespace string, defs []*wit.TypeDef) (*ComponentInterface, error) {
	ci := &ComponentInterface{
		Namespace:  strcase.ToSnake(namespace),
		ModulePath: strcase.ToSnake(namespace),
	}
	var result error
	convert := func(owner string, t wit.Type) Type {
		out, err := FromWIT(ci.ModulePath, t)
		if err != nil {
			result = errors.Append(result, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, owner))
		}
		return out
	}

	for _, td := range defs {
		name := witName(td)
		if name == "" {
			continue
		}
		switch kind := td.Kind.(type) {
		case *wit.Record:
			def := RecordDef{Name: name}
			for _, f := range kind.Fields {
				def.Fields = append(def.Fields, Field{
					Name: strcase.ToSnake(f.Name),
					Type: convert(name+"."+f.Name, f.Type),
				})
			}
			ci.Records = append(ci.Records, def)
		case *wit.Enum:
			def := EnumDef{Name: name}
			for _, c := range kind.Cases {
				def.Variants = append(def.Variants, Variant{Name: strcase.ToCamel(c.Name)})
			}
			ci.Enums = append(ci.Enums, def)
		case *wit.Variant:
			def := EnumDef{Name: name}
			for _, c := range kind.Cases {
				v := Variant{Name: strcase.ToCamel(c.Name)}
				if c.Type != nil {
					v.Fields = []Field{{Name: "value", Type: convert(name+"."+c.Name, c.Type)}}
				}
				def.Variants = append(def.Variants, v)
			}
			ci.Enums = append(ci.Enums, def)
		case *wit.Resource:
			ci.Objects = append(ci.Objects, ObjectDef{Name: name})
		case *wit.Flags:
			ci.CustomTypes = append(ci.CustomTypes, CustomDef{Name: name, Builtin: UInt32})
		}
	}
	if result != nil {
		return nil, result
	}
	ci.Normalize()
	if err := ci.Validate(); err != nil {
		return nil, err
	}
	return ci, nil
}

func witName(td *wit.TypeDef) string {
	if td == nil || td.Name == nil {
		return ""
	}
	return strcase.ToCamel(strings.TrimPrefix(*td.Name, "%"))
}
