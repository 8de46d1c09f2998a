// Package cmd provides the CLI commands for segmenta.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/segmenta-io/segmenta/internal/config"
	segerrors "github.com/segmenta-io/segmenta/internal/errors"
	"github.com/segmenta-io/segmenta/internal/logging"
	"github.com/segmenta-io/segmenta/pkg/version"
)

// Exit codes: 0 normal, 1 fatal startup failure, 2 configuration error.
const (
	exitOK     = 0
	exitFatal  = 1
	exitConfig = 2
)

var (
	configPath string
	debugMode  bool
)

// NewRootCmd creates the root command for the segmenta CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segmenta",
		Short: "Natural-language audience segmentation engine",
		Long: `Segmenta serves hybrid retrieval over a consumer-attribute catalog:
keyword and semantic search fused per query, a conversational workflow
for building audiences, and segment computation via an external clusterer.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("segmenta version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLoadCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the CLI and maps errors onto process exit codes.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if segerrors.GetCategory(err) == segerrors.CategoryConfig {
			return exitConfig
		}
		return exitFatal
	}
	return exitOK
}

// loadConfig builds the effective configuration. Failures are
// configuration errors (exit code 2).
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, segerrors.Wrap(segerrors.ErrCodeConfigInvalid, err)
	}
	if debugMode {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// setupLogging initializes the process logger and installs it as the
// slog default.
func setupLogging(level string) (*slog.Logger, func(), error) {
	lcfg := logging.DefaultConfig()
	if strings.EqualFold(level, "debug") {
		lcfg = logging.DebugConfig()
	} else {
		lcfg.Level = level
	}
	logger, cleanup, err := logging.Setup(lcfg)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, cleanup, nil
}
