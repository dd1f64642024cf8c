// Package cmd provides the CLI commands for fttf.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fttf/internal/config"
	"github.com/Aman-CERP/fttf/internal/logging"
	"github.com/Aman-CERP/fttf/internal/profiling"
	"github.com/Aman-CERP/fttf/pkg/version"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	debug      bool
	noColor    bool
	profileDir string

	cfg            *config.Config
	loggingCleanup func()
	profile        *profiling.Session
}

// NewRootCmd creates the root command for the fttf CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "fttf",
		Short: "Full-text search over your browsing history",
		Long: `fttf stores the pages you visit in a local SQLite database and makes
them searchable by keyword, by approximate spelling and by meaning.

Pages arrive through 'fttf index', the inbox directory watched by
'fttf watch', or an MCP client connected to 'fttf serve'.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.setup,
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		opts.teardown()
		return nil
	}

	cmd.SetVersionTemplate("fttf version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/fttf/config.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.fttf/logs/")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable coloured output")
	cmd.PersistentFlags().StringVar(&opts.profileDir, "profile", "", "Write CPU, heap and goroutine profiles to this directory")

	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newPageStatusCmd(opts))
	cmd.AddCommand(newVisitCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newBlacklistCmd(opts))
	cmd.AddCommand(newTasksCmd(opts))
	cmd.AddCommand(newReindexCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newRPCCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads the configuration and installs the process logger.
// Without --debug only warnings reach stderr; serve replaces the logger
// with a file-only one.
func (o *globalOptions) setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg

	logCfg := logging.DefaultConfig()
	logCfg.Level = "warn"
	if o.debug {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.loggingCleanup = cleanup
	slog.SetDefault(logger)
	if o.debug {
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	if o.profileDir != "" {
		p, err := profiling.Start(o.profileDir)
		if err != nil {
			return err
		}
		o.profile = p
	}
	return nil
}

func (o *globalOptions) teardown() {
	if o.profile != nil {
		if err := o.profile.Stop(); err != nil {
			slog.Warn("profile_write_failed", slog.String("error", err.Error()))
		}
		o.profile = nil
	}
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
}

// config returns the loaded configuration, loading defaults when a command
// runs without the root pre-run (unit tests that build a subcommand alone).
func (o *globalOptions) config() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	o.cfg = cfg
	return cfg, nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		printError(root, err)
		return err
	}
	return nil
}
