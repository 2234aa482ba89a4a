// Command textswitcher corrects words typed in the wrong keyboard layout.
//
//	textswitcher run              Watch the keyboard and correct words
//	textswitcher check <words>    Explain the decision for each word
//	textswitcher batch [corpus]   Score the corrector against a corpus
//	textswitcher exceptions       Manage words that are never converted
//	textswitcher forced           Manage learned manual conversions
//	textswitcher history          Show recent corrections
//	textswitcher config           Create, show or validate the config file
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"textswitcher/internal/config"
	"textswitcher/internal/knowledge"
	"textswitcher/internal/logging"
)

var version = "dev"

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "textswitcher",
		Short:         "Fix words typed in the wrong keyboard layout (EN/RU)",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: search the usual locations)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newExceptionsCmd())
	rootCmd.AddCommand(newForcedCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// resolveConfigPath returns --config, an existing config file or the
// default location for a new one.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if found := config.FindConfigFile(); found != "" {
		return found
	}
	return config.ConfigPath()
}

// loadConfig reads the config file without watching it. Validation errors
// are fatal; warnings are printed to stderr.
func loadConfig(stderr io.Writer) (*config.Config, error) {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	errs := config.Check(cfg)
	for _, w := range errs.Warnings() {
		fmt.Fprintf(stderr, "warning: %s\n", w.Error())
	}
	if errs.HasErrors() {
		return nil, fmt.Errorf("invalid config %s: %w", path, errs.Errors())
	}
	return cfg, nil
}

// newLogger builds the logger for cfg. Short-lived commands log warnings
// and above to stderr unless --log-level asks for more.
func newLogger(cfg *config.Config, daemon bool, stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	lc := &logging.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   config.ExpandPath(cfg.Logging.FilePath),
		MaxSize:    int64(cfg.Logging.MaxSizeMB),
		MaxAge:     cfg.Logging.MaxAgeDays,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
		Component:  "textswitcher",
		Console:    stderr,
	}
	if !daemon {
		lc.Output = "stderr"
		if logLevel == "" {
			lc.Level = logging.LevelWarn
		}
	}
	return logging.New(lc)
}

func openKnowledge(cfg *config.Config) (*knowledge.Store, error) {
	store, err := knowledge.Open(knowledge.Options{
		Dir:           config.ExpandPath(cfg.Knowledge.Dir),
		HardThreshold: cfg.Knowledge.ForcedHardThreshold,
		Sync:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge store: %w", err)
	}
	return store, nil
}
