package cmd

import (
	"bufio"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

func newReindexCmd(opts *globalOptions) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the full-text index and queue missing derived data",
		Long: `Rebuild the FTS5 index from the stored fragments, queue fragment
generation for documents with content but no fragments, and queue
embeddings for fragments without a vector.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				res, err := b.Reindex(cmd.Context())
				if err != nil {
					return err
				}
				w := opts.writer(cmd)
				w.Successf("Full-text index rebuilt")
				w.Infof("%d fragment task(s), %d vector task(s) queued", res.FragmentTasks, res.VectorTasks)
				if wait && res.FragmentTasks+res.VectorTasks > 0 {
					counts, err := b.DrainTasks(cmd.Context())
					if err != nil {
						return err
					}
					w.Successf("Queue drained (%d failed)", counts.Failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Drain the task queue before returning")

	return cmd
}

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and show the schema version",
		Long: `Every fttf command applies pending migrations when it opens the
database. This command does only that and reports the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				st, err := b.MigrationStatus(cmd.Context())
				if err != nil {
					return err
				}
				w := opts.writer(cmd)
				w.Successf("Schema at version %d of %d", st.CurrentVersion, st.AvailableVersion)
				if !list {
					return nil
				}
				applied, err := b.AppliedMigrations(cmd.Context())
				if err != nil {
					return err
				}
				w.Newline()
				rows := [][]string{{"VERSION", "NAME", "APPLIED"}}
				for _, r := range applied {
					rows = append(rows, []string{
						strconv.Itoa(r.Version),
						r.Name,
						r.AppliedAt.Format("2006-01-02 15:04:05"),
					})
				}
				w.Table(rows)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "List applied migrations")

	return cmd
}

func newCheckCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the database file is consistent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				if err := b.CheckIntegrity(cmd.Context()); err != nil {
					return err
				}
				opts.writer(cmd).Successf("Database is consistent")
				return nil
			})
		},
	}
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write every document and fragment as JSON lines",
		Long: `Write the history to a JSON-lines file, "-" for stdout. The file can be
loaded into another database with 'fttf import'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				toStdout := args[0] == "-"
				var out io.Writer = cmd.OutOrStdout()
				var f *os.File
				if !toStdout {
					var err error
					f, err = os.Create(args[0])
					if err != nil {
						return apperrors.IOError("failed to create export file", err).WithDetail("path", args[0])
					}
					defer func() { _ = f.Close() }()
					out = f
				}
				bw := bufio.NewWriter(out)
				sum, err := b.Export(cmd.Context(), bw)
				if err != nil {
					return err
				}
				if err := bw.Flush(); err != nil {
					return apperrors.IOError("failed to write export", err)
				}
				if f != nil {
					if err := f.Close(); err != nil {
						return apperrors.IOError("failed to close export file", err)
					}
				}
				if !toStdout {
					opts.writer(cmd).Successf("Exported %d document(s) and %d fragment(s) to %s",
						sum.Documents, sum.Fragments, args[0])
				}
				return nil
			})
		},
	}
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load a file written by 'fttf export'",
		Long: `Load documents and fragments from a JSON-lines export, "-" for stdin.
Documents already stored under the same URL are skipped. Fragments that
arrive without a vector are queued for embedding.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return apperrors.IOError("failed to open import file", err).WithDetail("path", args[0])
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				sum, err := b.Import(cmd.Context(), bufio.NewReader(in))
				if err != nil {
					return err
				}
				opts.writer(cmd).Successf("Imported %d document(s) and %d fragment(s), %d skipped",
					sum.Documents, sum.Fragments, sum.Skipped)
				return nil
			})
		},
	}
}
