package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/preflight"
)

type doctorOptions struct {
	verbose bool
	json    bool
	offline bool
}

type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	var do doctorOptions

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that this machine can host the history database",
		Long: `Run environment checks before indexing:

  - free disk space in the data directory (100 MB minimum)
  - write permission in the data directory
  - open file limit (256 minimum)
  - the database writer lock
  - the configured embedding provider

An unreachable Ollama server is only a warning: vectors then come from the
static embedder. The command fails when a required check fails.`,
		Example: `  fttf doctor
  fttf doctor --verbose
  fttf doctor --json --offline`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts, do)
		},
	}

	cmd.Flags().BoolVarP(&do.verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&do.json, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&do.offline, "offline", false, "Do not contact the embedding server")

	return cmd
}

func runDoctor(cmd *cobra.Command, opts *globalOptions, do doctorOptions) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	embedCfg, err := embedConfig(cfg)
	if err != nil {
		return err
	}

	dbPath := cfg.DatabasePath()
	checker := preflight.New(
		preflight.WithOffline(do.offline),
		preflight.WithVerbose(do.verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
		preflight.WithEmbedder(embedCfg),
	)
	results := checker.RunAll(cmd.Context(), filepath.Dir(dbPath), dbPath)

	if do.json {
		if err := writeJSON(cmd.OutOrStdout(), doctorReport{
			Status: checker.SummaryStatus(results),
			Checks: results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return apperrors.New(apperrors.ErrCodeInternal, "environment check failed", nil).
			WithSuggestion("Fix the FAIL lines above and run 'fttf doctor' again.")
	}
	return nil
}
