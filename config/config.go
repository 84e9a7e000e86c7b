// Package config loads the per-component binding configuration.
//
// A configuration file is TOML:
//
//	logLevel = "debug"
//	consoleImport = "./console"
//
//	[customTypes.Url]
//	typeName = "URL"
//	imports = [["URL", "whatwg-url"]]
//	lift = "new URL({})"
//	lower = "{}.toString()"
//
//	[generation]
//	parallelism = 4
//	cacheDir = ".ffi-cache"
//	strictCycles = false
package config

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/ffi-bindgen/errors"
)

// LogLevel controls generator logging and the console flag of rendered
// host glue.
type LogLevel string

const (
	LogNone  LogLevel = "none"
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

func (l LogLevel) valid() bool {
	switch l {
	case LogNone, LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// IsDebug reports whether rendered glue should log calls.
func (l LogLevel) IsDebug() bool { return l == LogDebug }

// Import is a [symbol, module] pair.
type Import [2]string

func (i Import) Symbol() string { return i[0] }
func (i Import) Module() string { return i[1] }

// CustomType overrides how a custom type surfaces on the host side.
// Lift and Lower are templates where {} stands for the value.
type CustomType struct {
	TypeName string   `toml:"typeName"`
	Imports  []Import `toml:"imports"`
	Lift     string   `toml:"lift"`
	Lower    string   `toml:"lower"`
}

// ApplyLift substitutes v into the lift template.
func (c CustomType) ApplyLift(v string) string { return strings.ReplaceAll(c.Lift, "{}", v) }

// ApplyLower substitutes v into the lower template.
func (c CustomType) ApplyLower(v string) string { return strings.ReplaceAll(c.Lower, "{}", v) }

// Generation holds run-wide knobs.
type Generation struct {
	Parallelism  int    `toml:"parallelism"`
	CacheDir     string `toml:"cacheDir"`
	StrictCycles bool   `toml:"strictCycles"`
}

// Config is the binding configuration for one generation run.
type Config struct {
	LogLevel      LogLevel              `toml:"logLevel"`
	ConsoleImport string                `toml:"consoleImport"`
	CustomTypes   map[string]CustomType `toml:"customTypes"`
	Generation    Generation            `toml:"generation"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel:    LogNone,
		CustomTypes: map[string]CustomType{},
		Generation: Generation{
			Parallelism: runtime.GOMAXPROCS(0),
		},
	}
}

// Custom returns the override for name, if any.
func (c *Config) Custom(name string) (CustomType, bool) {
	if c == nil {
		return CustomType{}, false
	}
	ct, ok := c.CustomTypes[name]
	return ct, ok
}

// Decode parses TOML text over the defaults.
func Decode(data string) (*Config, error) {
	cfg := Default()
	meta, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "failed to parse TOML")
	}
	if err := finish(cfg, meta); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and decodes the file at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, fmt.Sprintf("read %s", path))
	}
	cfg, err := Decode(string(data))
	if err != nil {
		if e, ok := err.(*errors.Error); ok {
			e.Path = append([]string{path}, e.Path...)
		}
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config, meta toml.MetaData) error {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("unknown keys: %s", strings.Join(keys, ", ")).
			Build()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogNone
	}
	if !cfg.LogLevel.valid() {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown logLevel %q", cfg.LogLevel))
	}
	if cfg.Generation.Parallelism <= 0 {
		cfg.Generation.Parallelism = runtime.GOMAXPROCS(0)
	}
	if cfg.CustomTypes == nil {
		cfg.CustomTypes = map[string]CustomType{}
	}
	for name, ct := range cfg.CustomTypes {
		if ct.Lift != "" && !strings.Contains(ct.Lift, "{}") {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("customTypes", name, "lift").
				Detail("template %q has no {} placeholder", ct.Lift).
				Build()
		}
		if ct.Lower != "" && !strings.Contains(ct.Lower, "{}") {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("customTypes", name, "lower").
				Detail("template %q has no {} placeholder", ct.Lower).
				Build()
		}
	}
	return nil
}
