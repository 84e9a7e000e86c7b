package lower

import (
	"context"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/ffi-bindgen/cache"
	"github.com/wippyai/ffi-bindgen/config"
	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/ir"
	"github.com/wippyai/ffi-bindgen/registry"
)

// Artifacts are the two rendered outputs of a component.
type Artifacts struct {
	ABI  []byte // ABI-facing glue
	Host []byte // host-facing declarations
}

// RenderFunc turns a model into artifacts.
type RenderFunc func(*Model) (Artifacts, error)

// Options configures GenerateAll.
type Options struct {
	Config *config.Config
	// Render is applied to every successfully lowered model. When nil,
	// only models are produced.
	Render RenderFunc
	// Cache, when set, is consulted before rendering.
	Cache *cache.DiskCache
}

// Result is the outcome of one component. Exactly one of Err and
// Model is set.
type Result struct {
	Namespace string
	Model     *Model
	Artifacts Artifacts
	Cached    bool
	Err       error
	Elapsed   time.Duration
}

// GenerateAll registers every component, seals the registry, then
// lowers and renders the components concurrently. A component that fails
// does not stop the others; results are in input order. The returned
// error aggregates every component failure, or reports registration or
// cancellation.
func GenerateAll(ctx context.Context, cis []*ir.ComponentInterface, opts Options) ([]Result, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	reg := registry.New()
	for _, ci := range cis {
		ci.Normalize()
		if err := reg.Register(ci); err != nil {
			return nil, err
		}
	}
	reg.Seal()
	Logger().Info("registered components",
		zap.Int("components", len(cis)),
		zap.Int("types", reg.Len()))

	jobs := cfg.Generation.Parallelism
	if jobs <= 0 {
		jobs = 1
	}
	results := make([]Result, len(cis))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(cis))))
	for i, ci := range cis {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = generateOne(ci, reg, cfg, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, errors.Wrap(errors.PhaseLower, errors.KindCancelled, err, "generation interrupted")
	}

	var result error
	for _, r := range results {
		result = errors.Append(result, r.Err)
	}
	return results, result
}

func generateOne(ci *ir.ComponentInterface, reg *registry.Registry, cfg *config.Config, opts Options) Result {
	start := time.Now()
	res := Result{Namespace: ci.Namespace}
	log := Logger().With(zap.String("namespace", ci.Namespace))
	finish := func(err error) Result {
		res.Err = err
		res.Elapsed = time.Since(start)
		if err != nil {
			res.Model = nil
			res.Artifacts = Artifacts{}
			log.Error("component failed", zap.Error(err), zap.Bool("defect", errors.IsDefect(err)))
		} else {
			log.Info("component generated",
				zap.Bool("cached", res.Cached),
				zap.Duration("elapsed", res.Elapsed))
		}
		return res
	}

	m, err := Generate(ci, reg, cfg)
	if err != nil {
		return finish(err)
	}
	res.Model = m
	if opts.Render == nil {
		return finish(nil)
	}

	var key cache.Digest
	if opts.Cache != nil {
		if key, err = Fingerprint(m); err != nil {
			return finish(err)
		}
		var e cache.Entry
		hit, err := opts.Cache.Get(key, &e)
		if err != nil {
			log.Warn("cache read failed", zap.Error(err))
		}
		if hit {
			log.Debug("cache hit", zap.String("key", key.String()))
			res.Artifacts = Artifacts{ABI: e.ABI, Host: e.Host}
			res.Cached = true
			return finish(nil)
		}
	}

	art, err := opts.Render(m)
	if err != nil {
		return finish(err)
	}
	res.Artifacts = art

	if opts.Cache != nil {
		if err := opts.Cache.Put(key, &cache.Entry{Namespace: m.Namespace, ABI: art.ABI, Host: art.Host}); err != nil {
			log.Warn("cache write failed", zap.Error(err))
		}
	}
	return finish(nil)
}

// Fingerprint digests everything the rendering of m depends on: the
// component itself, the identities of its types (which the component's
// plain data does not distinguish), the rendering part of its binding
// configuration and the symbols it imports from other components.
// Generation settings such as parallelism do not change the output and
// are left out.
func Fingerprint(m *Model) (cache.Digest, error) {
	return cache.Key(
		m.Namespace,
		m.Component,
		m.Order.Identities(),
		renderingConfig(m.Config),
		m.Imports,
	)
}

type customKey struct {
	Name string
	Type config.CustomType
}

type renderingKey struct {
	LogLevel      config.LogLevel
	ConsoleImport string
	CustomTypes   []customKey
}

func renderingConfig(cfg *config.Config) renderingKey {
	if cfg == nil {
		cfg = config.Default()
	}
	k := renderingKey{LogLevel: cfg.LogLevel, ConsoleImport: cfg.ConsoleImport}
	for _, name := range slices.Sorted(maps.Keys(cfg.CustomTypes)) {
		k.CustomTypes = append(k.CustomTypes, customKey{Name: name, Type: cfg.CustomTypes[name]})
	}
	return k
}
