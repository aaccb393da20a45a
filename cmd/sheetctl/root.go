package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/internal/config"
	"github.com/vogtb/go-spreadsheet/internal/logging"
	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// newRootCmd builds the command tree. commands are built fresh per call so
// tests can run them with their own flags.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sheetctl",
		Short: "sheetctl drives spreadsheet workbooks",
		Long: `sheetctl runs command scripts against workbooks, converts them between
JSON and xlsx, and serves them over HTTP.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "TOML configuration file")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error), overrides the config")

	root.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newConvertCmd(),
		newImportCmd(),
		newExportCmd(),
		newCommandsCmd(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// settings is what every command reads from the persistent flags
type settings struct {
	config *config.Config
	logger *slog.Logger
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return &settings{
		config: cfg,
		logger: logging.NewWriter(cmd.ErrOrStderr(), level),
	}, nil
}

// modelOptions applies the configured history limit and logger
func (s *settings) modelOptions() []spreadsheet.Option {
	opts := []spreadsheet.Option{spreadsheet.WithLogger(s.logger)}
	if s.config.History.Limit > 0 {
		opts = append(opts, spreadsheet.WithHistoryLimit(s.config.History.Limit))
	}
	return opts
}
