package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/ffi-bindgen/ir"
)

const witJSONSuffix = ".wit.json"

// loadModels reads every interface model. Documents ending in .wit.json
// are WIT packages resolved to JSON by wasm-tools; their named type
// definitions become a component named after the file.
func loadModels(paths []string) ([]*ir.ComponentInterface, error) {
	out := make([]*ir.ComponentInterface, 0, len(paths))
	for _, path := range paths {
		var (
			ci  *ir.ComponentInterface
			err error
		)
		if strings.HasSuffix(path, witJSONSuffix) {
			ci, err = loadWIT(path)
		} else {
			ci, err = ir.LoadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, ci)
	}
	return out, nil
}

func loadWIT(path string) (*ir.ComponentInterface, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := wit.DecodeJSON(f)
	if err != nil {
		return nil, fmt.Errorf("decode WIT: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), witJSONSuffix)
	return ir.ImportWIT(name, res.TypeDefs)
}

// findModel picks the component named ns, or the first one when ns is
// empty.
func findModel(cis []*ir.ComponentInterface, ns string) (int, error) {
	if ns == "" {
		return 0, nil
	}
	for i, ci := range cis {
		if ci.Namespace == ns {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no component named %q", ns)
}
