package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/fttf/internal/config"
	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage user configuration",
		Long: `Manage the user configuration file.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config ($XDG_CONFIG_HOME/fttf/config.yaml)
  3. The file passed with --config
  4. Environment variables (FTTF_*)`,
		Example: `  # Create the user config with the defaults
  fttf config init

  # Show the effective configuration
  fttf config show

  # Print the user config file path
  fttf config path`,
	}

	cmd.AddCommand(newConfigInitCmd(opts))
	cmd.AddCommand(newConfigShowCmd(opts))
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file",
		Long: `Write the effective configuration to the user config file. An existing
file is kept unless --force is given, in which case it is copied to
config.yaml.bak first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, opts, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")

	return cmd
}

func runConfigInit(cmd *cobra.Command, opts *globalOptions, force bool) error {
	w := opts.writer(cmd)
	path := config.GetUserConfigPath()

	if _, err := os.Stat(path); err == nil {
		if !force {
			w.Warningf("User configuration already exists at %s", path)
			w.Infof("Use --force to rewrite it with the current defaults")
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return apperrors.IOError("failed to read existing config", err).WithDetail("path", path)
		}
		if err := os.WriteFile(path+".bak", data, 0o644); err != nil {
			return apperrors.IOError("failed to back up config", err).WithDetail("path", path+".bak")
		}
		w.Infof("Backup: %s.bak", path)
	}

	cfg, err := opts.config()
	if err != nil {
		return err
	}
	if err := cfg.WriteYAML(path); err != nil {
		return apperrors.ConfigError("failed to write user config", err).WithDetail("path", path)
	}
	w.Successf("Created user configuration at %s", path)
	return nil
}

func newConfigShowCmd(opts *globalOptions) *cobra.Command {
	var (
		jsonOutput bool
		defaults   bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.NewConfig()
			if !defaults {
				loaded, err := opts.config()
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Show the built-in defaults instead")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
