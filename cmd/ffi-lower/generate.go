package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wippyai/ffi-bindgen/cache"
	"github.com/wippyai/ffi-bindgen/errors"
	"github.com/wippyai/ffi-bindgen/lower"
	"github.com/wippyai/ffi-bindgen/render"
)

var generateCmd = &cobra.Command{
	Use:   "generate [flags] <model.yaml>...",
	Short: "Render the ABI and host glue of every component",
	Long: `Register every component, then lower and render each of them. A component
that fails does not stop the others; the command fails if any did.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("abi-out", "", "directory for ABI headers (default: alongside host output)")
	generateCmd.Flags().String("host-out", ".", "directory for host modules")
	generateCmd.Flags().String("cache-dir", "", "artifact cache directory (default: generation.cacheDir)")
	generateCmd.Flags().Bool("no-cache", false, "always render, bypassing the artifact cache")
	generateCmd.Flags().IntP("parallelism", "j", 0, "components rendered concurrently (0=from config)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	hostOut, err := cmd.Flags().GetString("host-out")
	if err != nil {
		return fmt.Errorf("failed to get host-out flag: %w", err)
	}
	abiOut, err := cmd.Flags().GetString("abi-out")
	if err != nil {
		return fmt.Errorf("failed to get abi-out flag: %w", err)
	}
	if abiOut == "" {
		abiOut = hostOut
	}
	cacheDir, err := cmd.Flags().GetString("cache-dir")
	if err != nil {
		return fmt.Errorf("failed to get cache-dir flag: %w", err)
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return fmt.Errorf("failed to get no-cache flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("parallelism")
	if err != nil {
		return fmt.Errorf("failed to get parallelism flag: %w", err)
	}
	if jobs > 0 {
		cfg.Generation.Parallelism = jobs
	}

	cis, err := loadModels(args)
	if err != nil {
		return err
	}

	opts := lower.Options{Config: cfg, Render: render.Render}
	if !noCache {
		if cacheDir == "" {
			cacheDir = cfg.Generation.CacheDir
		}
		if opts.Cache, err = cache.Open(cacheDir); err != nil {
			warnColor.Fprintf(os.Stderr, "cache disabled: %v\n", err)
		}
	}

	results, genErr := lower.GenerateAll(cmd.Context(), cis, opts)

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			tag := "error"
			if errors.IsDefect(r.Err) {
				tag = "defect"
			}
			errorColor.Fprintf(out, "✗ %s ", r.Namespace)
			fmt.Fprintf(out, "%s: %v\n", tag, r.Err)
			continue
		}
		if r.Model == nil {
			// Skipped after cancellation.
			continue
		}
		if err := writeArtifacts(abiOut, hostOut, r); err != nil {
			return err
		}
		okColor.Fprintf(out, "✓ %s", r.Namespace)
		if r.Cached {
			dimColor.Fprint(out, " (cached)")
		}
		dimColor.Fprintf(out, " %s\n", r.Elapsed.Round(time.Microsecond))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d components failed", failed, len(cis))
	}
	return genErr
}

func writeArtifacts(abiOut, hostOut string, r lower.Result) error {
	files := []struct {
		dir  string
		name string
		data []byte
	}{
		{abiOut, r.Namespace + ".hpp", r.Artifacts.ABI},
		{hostOut, r.Namespace + ".ts", r.Artifacts.Host},
	}
	for _, f := range files {
		if err := os.MkdirAll(f.dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", f.dir, err)
		}
		path := filepath.Join(f.dir, f.name)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}
