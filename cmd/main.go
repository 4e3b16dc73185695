package main

import (
	"fmt"
	"os"

	"studytimer/internal/core/model"
	"studytimer/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const appName = "studytimer"

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded in PersistentPreRunE
	settings model.Settings
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Pomodoro study timer with cross-tab countdown sync",
	Long: `studytimer runs the background countdown behind the study timer.

Every host (browser tab, terminal) owns one countdown service. Services on
the same channel keep each other in step: starting, stopping or finishing a
session in one host is mirrored in every other host.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath == "" {
			configPath, err = storage.ResolveConfigPath(appName)
			if err != nil {
				return err
			}
		}
		settings, err = storage.LoadSettingsFile(configPath)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}

		config := zap.NewProductionConfig()
		level, err := zapcore.ParseLevel(settings.LogLevel)
		if err != nil {
			level = zapcore.InfoLevel
		}
		if verbose {
			level = zapcore.DebugLevel
		}
		config.Level = zap.NewAtomicLevelAt(level)
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default: user config dir)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(autostartCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openHistory opens the configured history store, or returns nil when
// history is disabled.
func openHistory() (*storage.HistoryStore, error) {
	if !settings.HistoryEnabled {
		return nil, nil
	}
	path := settings.HistoryPath
	if path == "" {
		var err error
		path, err = storage.DefaultHistoryPath(appName)
		if err != nil {
			return nil, err
		}
	}
	store, err := storage.OpenHistory(path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	logger.Debug("History opened", zap.String("path", store.Path()))
	return store, nil
}
