// Package cli implements the docmind command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nevindra/docmind/internal/app"
	"github.com/nevindra/docmind/internal/config"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "docmind",
	Short: "Route documents to the right processing stream",
	Long: `docmind classifies each document into one of four streams and runs it:
  A  tabular transformation (CSV, Excel, JSON)
  B  form extraction with self-healing validation
  C  visual extraction for low-text documents
  D  retrieval-based question answering for dense text`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default docmind.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	return app.NewLogger(cfg.Log, os.Stderr).With("version", version, "pid", os.Getpid())
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, newLogger(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return a, nil
}
