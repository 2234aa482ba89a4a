package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"textswitcher/internal/config"
	"textswitcher/internal/engine"
	"textswitcher/internal/keystroke"
)

var (
	runDryRun bool
	runSource string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the keyboard and correct words as they are typed",
		Long: `Run captures keystrokes, validates every finished word and retypes words
that were entered in the wrong layout. Double-press the trigger key to
convert the last word by hand; undo right after an automatic correction to
restore the original and remember it as an exception.

The config file is watched and thresholds, timings and the trigger key are
applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	cmd.Flags().BoolVar(&runDryRun, "dry-run", false, "log and journal corrections without typing them")
	cmd.Flags().StringVar(&runSource, "source", "", "key source: auto, evdev, ibus, hook (default from config)")

	return cmd
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	stderr := cmd.ErrOrStderr()
	path := resolveConfigPath()

	cfg, err := loadConfig(stderr)
	if err != nil {
		return err
	}
	if runSource != "" {
		cfg.Keyboard.Source = runSource
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, true, stderr)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	loader := config.NewLoader(path, logger.Logger)
	defer loader.Close()

	eng, err := engine.New(engine.Options{
		Config:  cfg,
		Logger:  logger.Logger,
		Version: version,
		DryRun:  runDryRun,
	})
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer eng.Close()

	eng.Watch(loader, logger)
	if _, statErr := os.Stat(path); statErr == nil {
		if _, err := loader.Load(); err != nil {
			logger.Warn("config reload disabled", "error", err)
		} else if err := loader.Watch(); err != nil {
			logger.Warn("config watch failed", "error", err)
		}
	}
	go func() {
		for err := range loader.Errors() {
			logger.Warn("config reload rejected", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = eng.Run(ctx)
	switch {
	case errors.Is(err, keystroke.ErrNotAvailable):
		return fmt.Errorf("%w (try --source or check input permissions)", err)
	case errors.Is(err, keystroke.ErrPermissionDenied):
		return fmt.Errorf("%w (add your user to the input group)", err)
	case err != nil && !errors.Is(err, context.Canceled):
		return err
	}

	stats := eng.Monitor().Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "stopped: %d automatic, %d manual, %d undone\n", stats.Auto, stats.Manual, stats.Undo)
	return nil
}
