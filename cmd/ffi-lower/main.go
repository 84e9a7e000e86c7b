// Command ffi-lower lowers interface model documents into bridging glue.
//
//	ffi-lower generate --abi-out gen/cpp --host-out gen/ts geometry.yaml consumer.yaml
//	ffi-lower order geometry.yaml
//	ffi-lower inspect geometry.yaml
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/ffi-bindgen/boundary"
	"github.com/wippyai/ffi-bindgen/config"
	"github.com/wippyai/ffi-bindgen/lower"
	"github.com/wippyai/ffi-bindgen/typegraph"
)

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed, color.Bold)
	dimColor   = color.New(color.Faint)
)

var rootCmd = &cobra.Command{
	Use:           "ffi-lower",
	Short:         "Lower interface models into FFI bridging glue",
	Long:          `ffi-lower orders, maps and bridges the types of native components and renders the ABI and host glue for them`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setupLogging(cmd)
	},
}

func main() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(inspectCmd)

	rootCmd.PersistentFlags().String("config", "", "binding configuration file (TOML)")
	rootCmd.PersistentFlags().Bool("verbose", false, "log every generation step")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")

	if err := rootCmd.Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// loadConfig reads --config, or returns the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFile(path)
}

func setupLogging(cmd *cobra.Command) error {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("unknown color mode %q", mode)
	}

	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var log *zap.Logger
	switch {
	case verbose:
		log, err = zap.NewDevelopment()
	case cfg.LogLevel == config.LogNone:
		log = zap.NewNop()
	default:
		zc := zap.NewProductionConfig()
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.Level = zap.NewAtomicLevelAt(zapLevel(cfg.LogLevel))
		log, err = zc.Build()
	}
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	typegraph.SetLogger(log.Named("typegraph"))
	lower.SetLogger(log.Named("lower"))
	boundary.SetLogger(log.Named("boundary"))
	return nil
}

func zapLevel(l config.LogLevel) zapcore.Level {
	switch l {
	case config.LogDebug:
		return zapcore.DebugLevel
	case config.LogWarn:
		return zapcore.WarnLevel
	case config.LogError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
