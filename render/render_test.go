package render_test

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/ffi-bindgen/abimap"
	"github.com/wippyai/ffi-bindgen/config"
	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/internal/fixture"
	"github.com/wippyai/ffi-bindgen/ir"
	"github.com/wippyai/ffi-bindgen/lower"
	"github.com/wippyai/ffi-bindgen/render"
)

func generate(t *testing.T, ci *ir.ComponentInterface, cfg *config.Config) (*lower.Model, lower.Artifacts) {
	t.Helper()
	m, err := lower.Generate(ci, nil, cfg)
	require.NoError(t, err)
	art, err := render.Render(m)
	require.NoError(t, err)
	return m, art
}

func TestRenderGeometryABI(t *testing.T) {
	_, art := generate(t, fixture.Geometry(), nil)
	abi := string(art.ABI)
	vtable := abimap.StructName(ir.VTableName("Shape"))

	assert.Contains(t, abi, "#pragma once")
	assert.Contains(t, abi, "class NativeGeometry : public jsi::HostObject {")
	assert.Contains(t, abi, "typedef struct "+vtable+" {")
	assert.Contains(t, abi, "double uniffi_geometry_fn_method_shape_area(void * ptr, RustCallStatus * uniffi_out_err);")
	assert.Contains(t, abi, "jsi::Value cpp_uniffi_geometry_fn_func_centroid(")
	assert.Contains(t, abi, "namespace uniffi::geometry::st::")
	assert.Contains(t, abi, "namespace uniffi::geometry::cb::")
	assert.Contains(t, abi, "// Shape: "+vtable+" registered through uniffi_geometry_fn_init_callback_vtable_shape")
	assert.Contains(t, abi, "//   area: method, native->host, blocking, per-call")
	assert.Contains(t, abi, "//   uniffi_free: free, native->host, blocking, release")

	// Buffer helpers are copied by the bridging layer, not exposed.
	assert.NotContains(t, abi, "cpp_ffi_geometry_rustbuffer_alloc")
	assert.Contains(t, abi, "RustBuffer ffi_geometry_rustbuffer_alloc(uint64_t size, RustCallStatus * uniffi_out_err);")
}

func TestRenderGeometryHost(t *testing.T) {
	_, art := generate(t, fixture.Geometry(), nil)
	host := string(art.Host)
	vtable := abimap.StructName(ir.VTableName("Shape"))

	assert.Contains(t, host, "export type Point = {")
	assert.Contains(t, host, "export enum Color {")
	assert.Contains(t, host, "export function centroid(shape: Shape): Point {")
	assert.Contains(t, host, "nativeModule().uniffi_geometry_fn_func_centroid(FfiConverterTypeShape.lower(shape), callStatus)")
	assert.Contains(t, host, "static create(origin: Point): ShapeImpl {")
	assert.Contains(t, host, "rustCallWithError(FfiConverterTypeColor.lift.bind(FfiConverterTypeColor), ")
	assert.Contains(t, host, "const uniffiCallbackInterfaceShape: { vtable: "+vtable+"; register: () => void } = {")
	assert.Contains(t, host, "nativeModule().uniffi_geometry_fn_init_callback_vtable_shape(uniffiCallbackInterfaceShape.vtable);")
	assert.Contains(t, host, "  uniffiCallbackInterfaceShape.register();")
	assert.Contains(t, host, "const uniffiDebug = false;")
}

func TestRenderObjectFreedOnce(t *testing.T) {
	_, art := generate(t, fixture.Geometry(), nil)
	host := string(art.Host)

	start := strings.Index(host, "  uniffiDestroy(): void {")
	require.GreaterOrEqual(t, start, 0)
	end := strings.Index(host[start:], "\n  }\n")
	require.Greater(t, end, 0)
	destroy := host[start : start+end]

	// The pointer is cleared and the finalizer dropped before the free, so
	// a second destroy or a later collection never frees it again.
	guard := strings.Index(destroy, "if (pointer === undefined) {")
	clear := strings.Index(destroy, "this.pointer = undefined;")
	unregister := strings.Index(destroy, "uniffiShapeImplFinalizer.unregister(this);")
	free := strings.Index(destroy, "nativeModule().uniffi_geometry_fn_free_shape(pointer, callStatus)")
	require.True(t, guard >= 0 && clear >= 0 && unregister >= 0 && free >= 0, destroy)
	assert.Less(t, guard, clear)
	assert.Less(t, clear, free)
	assert.Less(t, unregister, free)

	assert.Contains(t, host, "const uniffiShapeImplFinalizer = new FinalizationRegistry<bigint>((pointer) => {")
	assert.Contains(t, host, "    uniffiShapeImplFinalizer.register(this, pointer, this);")
	assert.Contains(t, host, "      throw new UniffiInternalError.UnexpectedNullPointer();")
	assert.Contains(t, host, "  private pointer: bigint | undefined;")
	assert.NotContains(t, host, "(this.pointer, callStatus)")
}

func TestConvertersFollowEmissionOrder(t *testing.T) {
	for _, ci := range []*ir.ComponentInterface{fixture.Geometry(), fixture.Events()} {
		t.Run(ci.Namespace, func(t *testing.T) {
			m, art := generate(t, ci, nil)

			var want []string
			for _, ct := range m.Converters {
				if _, ok := ct.Type.(ir.Primitive); !ok {
					want = append(want, ct.Converter)
				}
			}
			re := regexp.MustCompile(`(?m)^const (FfiConverter\w+) = `)
			var got []string
			for _, match := range re.FindAllStringSubmatch(string(art.Host), -1) {
				if !strings.HasSuffix(match[1], "__as_error") {
					got = append(got, match[1])
				}
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestRenderAsync(t *testing.T) {
	m, art := generate(t, fixture.Events(), nil)
	host := string(art.Host)
	abi := string(art.ABI)

	var download *lower.Callable
	for i := range m.Callables {
		if m.Callables[i].Function.Name == "download" {
			download = &m.Callables[i]
		}
	}
	require.NotNil(t, download)

	assert.Contains(t, host, "export async function download(fetcher: Fetcher, urls: Array<string>): Promise<ArrayBuffer | undefined> {")
	assert.Contains(t, host, "pollFunc: nativeModule()."+download.Bridge.Poll.Name+",")
	assert.Contains(t, host, "cancelFunc: nativeModule()."+download.Bridge.Cancel.Name+",")
	assert.Contains(t, host, "completeFunc: nativeModule()."+download.Bridge.CompleteSymbol+",")
	assert.Contains(t, host, "freeFunc: nativeModule()."+download.Bridge.FreeSymbol+",")
	assert.Contains(t, host, "return uniffiTraitInterfaceCallAsync(")
	assert.Contains(t, host, "return uniffiTraitInterfaceCall(")

	assert.Contains(t, abi, "typedef void (*UniffiRustFutureContinuationCallback)(uint64_t data, int8_t poll_result);")
	assert.Contains(t, abi, "// continuation callback: posted, one-shot")
}

func TestRenderIsDeterministic(t *testing.T) {
	_, first := generate(t, fixture.Events(), nil)
	_, second := generate(t, fixture.Events(), nil)
	assert.Equal(t, first, second)
}

func TestRenderCustomOverride(t *testing.T) {
	ci := &ir.ComponentInterface{
		Namespace:   "web",
		ModulePath:  "web",
		CustomTypes: []ir.CustomDef{{Name: "Url", Builtin: ir.String}},
		Functions: []ir.Function{{
			Name:      "open",
			Arguments: []ir.Argument{{Name: "url", Type: ir.Custom{ModulePath: "web", Name: "Url"}}},
		}},
	}
	cfg, err := config.Decode(`
logLevel = "debug"
consoleImport = "./console"

[customTypes.Url]
typeName = "URL"
imports = [["URL", "whatwg-url"]]
lift = "new URL({})"
lower = "{}.toString()"
`)
	require.NoError(t, err)

	_, art := generate(t, ci, cfg)
	host := string(art.Host)
	assert.Contains(t, host, "import { URL } from 'whatwg-url';")
	assert.Contains(t, host, "import { console } from './console';")
	assert.Contains(t, host, "const uniffiDebug = true;")
	assert.Contains(t, host, "return new URL(FfiConverterString.lift(value));")
	assert.Contains(t, host, "export function open(url: URL) {")
	assert.NotContains(t, host, "export type URL")

	_, plain := generate(t, &ir.ComponentInterface{
		Namespace:   "web",
		ModulePath:  "web",
		CustomTypes: []ir.CustomDef{{Name: "Url", Builtin: ir.String}},
	}, nil)
	assert.Contains(t, string(plain.Host), "export type Url = string;")
}

func TestRenderCrossComponentImports(t *testing.T) {
	results, err := lower.GenerateAll(context.Background(),
		[]*ir.ComponentInterface{fixture.Consumer(), fixture.Geometry()},
		lower.Options{Render: render.Render})
	require.NoError(t, err)
	require.Len(t, results, 2)

	consumer := string(results[0].Artifacts.Host)
	assert.Contains(t, consumer, "import { FfiConverterTypePoint, Point } from './geometry';")
	assert.NotContains(t, consumer, "export type Point")
	assert.Contains(t, consumer, "export type Path = {")
	assert.NotEmpty(t, results[1].Artifacts.ABI)
}

func TestRenderRejectsIncompleteModel(t *testing.T) {
	for _, m := range []*lower.Model{nil, {}} {
		art, err := render.Render(m)
		require.Error(t, err)
		assert.True(t, stderrors.Is(err, &errors.Error{Phase: errors.PhaseRender, Kind: errors.KindInvalidInput}))
		assert.Empty(t, art.ABI)
		assert.Empty(t, art.Host)
	}
}

func TestRenderMissingRenderingIsAllOrNothing(t *testing.T) {
	m, err := lower.Generate(fixture.Geometry(), nil, nil)
	require.NoError(t, err)
	delete(m.Renderings, ir.AbiStatus.String())

	art, err := render.Render(m)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, &errors.Error{Phase: errors.PhaseRender, Kind: errors.KindUnmappedType}))
	assert.Nil(t, art.ABI)
	assert.Nil(t, art.Host)
}
