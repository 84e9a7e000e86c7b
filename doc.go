// Package ffibindgen lowers a component's interface model into FFI binding
// glue: an ABI-facing artifact that speaks the C calling convention and a
// host-facing artifact that wraps it in idiomatic declarations.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	ffibindgen/          Root package with boundary Memory and Allocator interfaces
//	├── ir/              Interface model, derived ABI definitions, YAML and WIT loading
//	├── typegraph/       Emission order with synthetic dependency edges
//	├── abimap/          ABI type renderings, code types and naming
//	├── bridge/          Callback and future slot contracts
//	├── registry/        Cross-component type resolution and imports
//	├── lower/           Generation entry point, all-or-nothing per component
//	├── render/          ABI and host artifact templates
//	├── boundary/        Executable model of the generated runtime glue
//	├── cache/           On-disk cache of rendered artifacts
//	├── config/          TOML binding configuration
//	├── errors/          Structured error types with defect classification
//	└── cmd/ffi-lower/   CLI: generate, order and inspect
//
// # Quick Start
//
// Lower and render a set of components:
//
//	var cis []*ir.ComponentInterface
//	for _, path := range paths {
//	    ci, err := ir.LoadFile(path)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    cis = append(cis, ci)
//	}
//
//	results, err := lower.GenerateAll(ctx, cis, lower.Options{
//	    Config: config.Default(),
//	    Render: render.Render,
//	})
//	for _, r := range results {
//	    if r.Err != nil {
//	        log.Printf("%s: %v", r.Namespace, r.Err)
//	        continue
//	    }
//	    os.WriteFile(r.Namespace+".hpp", r.Artifacts.ABI, 0o644)
//	}
//
// # Generation Model
//
// Every component is registered before any is generated, so External
// references resolve regardless of input order. Generation of a single
// component is synchronous and lock free; GenerateAll only parallelises
// across components once the registry is sealed.
//
// Defect-class errors (an unmapped ABI type, an unresolved External
// reference, a callback slot missing its return argument) abort the
// component and carry the offending type or slot. Residual type graph
// cycles are logged and generation continues.
//
// # Boundary Model
//
// The boundary package runs the contracts the generated glue must honour
// against a real wazero linear memory: buffer ownership transfer, handle
// maps, callback instance lifetimes, blocking dispatch and one-shot future
// continuations.
package ffibindgen
