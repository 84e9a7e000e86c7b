package abimap

import (
	"strings"

	"github.com/iancoleman/strcase"
)

// IncludesNamespace holds bridging for scalars, handles, buffers and the
// call status, shared by every component.
const IncludesNamespace = "uniffi_jsi"

// keywords are reserved words of the host language. All are lower case,
// so only lowerCamel identifiers need rewriting.
var keywords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "enum": true, "export": true, "extends": true, "false": true,
	"finally": true, "for": true, "function": true, "if": true, "import": true,
	"in": true, "instanceof": true, "new": true, "null": true, "return": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true,
	// strict mode
	"as": true, "implements": true, "interface": true, "let": true, "package": true,
	"private": true, "protected": true, "public": true, "static": true, "yield": true,
}

func rewriteKeyword(nm string) string {
	if keywords[nm] {
		return nm + "_"
	}
	return nm
}

// ClassName renders a record, enum, object or error name.
func ClassName(nm string) string { return strcase.ToCamel(nm) }

// FnName renders a function or method name. Constructors named "new"
// become "create".
func FnName(nm string) string {
	if nm == "new" {
		return "create"
	}
	return rewriteKeyword(strcase.ToLowerCamel(nm))
}

// VarName renders a variable or argument name.
func VarName(nm string) string { return rewriteKeyword(strcase.ToLowerCamel(nm)) }

// VariantName renders an enum variant.
func VariantName(nm string) string { return strcase.ToCamel(nm) }

// CallbackName renders an ABI callback name.
func CallbackName(nm string) string { return "Uniffi" + strcase.ToCamel(nm) }

// StructName renders an ABI struct name.
func StructName(nm string) string { return "Uniffi" + strcase.ToCamel(nm) }

// CppNamespace is the root namespace of a component's bridging code.
func CppNamespace(namespace string) string {
	return "uniffi::" + strcase.ToSnake(namespace)
}

func subNamespace(nm string) string {
	return strings.ToLower(strcase.ToLowerCamel(nm))
}
