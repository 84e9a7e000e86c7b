package ir

import (
	"strings"

	"github.com/wippyai/ffi-bindgen/errors"
)

// Lookup resolves a bare type name to a declared type.
type Lookup func(name string) (Type, bool)

// ParseType reads a canonical type identity, the inverse of Type.String.
// Bare identifiers that are not primitives are passed to lookup, which may
// be nil.
func ParseType(s string, lookup Lookup) (Type, error) {
	p := &typeParser{src: s, lookup: lookup}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.fail("trailing input")
	}
	return t, nil
}

// MustParseType is ParseType for literals known to be valid.
func MustParseType(s string) Type {
	t, err := ParseType(s, nil)
	if err != nil {
		panic(err)
	}
	return t
}

var primitiveByName = func() map[string]Primitive {
	m := make(map[string]Primitive, len(primitiveNames))
	for _, p := range Primitives() {
		m[p.String()] = p
	}
	return m
}()

type typeParser struct {
	lookup Lookup
	src    string
	pos    int
}

func (p *typeParser) parse() (Type, error) {
	p.skipSpace()
	word := p.ident()
	if word == "" {
		return nil, p.fail("expected type name")
	}
	if prim, ok := primitiveByName[word]; ok {
		return prim, nil
	}

	switch word {
	case "Optional", "Sequence":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		inner, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		if word == "Optional" {
			return Optional{Inner: inner}, nil
		}
		return Sequence{Inner: inner}, nil
	case "Map":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		key, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		value, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return Map{Key: key, Value: value}, nil
	case "Record", "Enum", "Object", "CallbackInterface", "Custom", "External":
		return p.parseNamed(word)
	}

	if p.lookup != nil {
		if t, ok := p.lookup(word); ok {
			return t, nil
		}
	}
	return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
		Type(word).
		Detail("unknown type name %q", word).
		Build()
}

func (p *typeParser) parseNamed(kind string) (Type, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != ')' && p.src[p.pos] != ',' {
		p.pos++
	}
	qualified := strings.TrimSpace(p.src[start:p.pos])
	if qualified == "" {
		return nil, p.fail("expected qualified name")
	}
	modulePath, name := splitQualified(qualified)
	if name == "" || (modulePath == "" && strings.Contains(qualified, ".")) {
		return nil, p.fail("empty module path or name")
	}

	var modifier string
	if p.peek() == ',' {
		p.pos++
		p.skipSpace()
		modifier = p.ident()
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}

	if modifier != "" && kind != "External" {
		return nil, p.fail("modifier only allowed on External")
	}

	switch kind {
	case "Record":
		return Record{ModulePath: modulePath, Name: name}, nil
	case "Enum":
		return Enum{ModulePath: modulePath, Name: name}, nil
	case "Object":
		return Object{ModulePath: modulePath, Name: name}, nil
	case "CallbackInterface":
		return CallbackInterface{ModulePath: modulePath, Name: name}, nil
	case "Custom":
		return Custom{ModulePath: modulePath, Name: name}, nil
	default:
		ext := External{ModulePath: modulePath, Name: name}
		switch modifier {
		case "":
		case "interface":
			ext.Kind = ExternalInterface
		case "trait":
			ext.Kind = ExternalTrait
		default:
			return nil, p.fail("unknown external kind " + modifier)
		}
		return ext, nil
	}
}

func (p *typeParser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *typeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) expect(c byte) error {
	if p.peek() != c {
		return p.fail("expected '" + string(c) + "'")
	}
	p.pos++
	return nil
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeParser) fail(msg string) error {
	return errors.New(errors.PhaseLoad, errors.KindInvalidData).
		Type(p.src).
		Detail("%s at offset %d", msg, p.pos).
		Build()
}
