package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"textswitcher/internal/config"
)

var (
	configInitForce  bool
	configShowFormat string
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create, show or validate the config file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
	initCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
	showCmd.Flags().StringVar(&configShowFormat, "format", "toml", "output format: toml, json, yaml")
	cmd.AddCommand(showCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the config file for errors",
		Args:  cobra.NoArgs,
		RunE:  runConfigValidate,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath())
			return nil
		},
	})

	return cmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.ConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	var ext string
	switch configShowFormat {
	case "toml":
		ext = ".toml"
	case "json":
		ext = ".json"
	case "yaml", "yml":
		ext = ".yaml"
	default:
		return fmt.Errorf("unknown format %q", configShowFormat)
	}

	cfg, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	data, err := config.Encode(cfg, ext)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := resolveConfigPath()
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no config file at %s", path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	findings := config.Check(cfg)
	for _, f := range findings {
		if f.IsWarning() {
			fmt.Fprintf(out, "warning: %s\n", f.Error())
		} else {
			fmt.Fprintln(out, failStyle.Render(f.Error()))
		}
	}
	if findings.HasErrors() {
		return fmt.Errorf("%s: %s", filepath.Base(path), plural(len(findings.Errors()), "error"))
	}
	fmt.Fprintf(out, "%s is valid\n", path)
	return nil
}
