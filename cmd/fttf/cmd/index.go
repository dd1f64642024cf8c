package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fttf/internal/backend"
	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

type indexOptions struct {
	title    string
	excerpt  string
	file     string
	payload  string
	siteName string
	wait     bool
	json     bool
}

func newIndexCmd(opts *globalOptions) *cobra.Command {
	var flags indexOptions

	cmd := &cobra.Command{
		Use:   "index [url]",
		Short: "Store a page in the history",
		Long: `Store a page visit. With content, the page is split into fragments and
embedded by the background queue; without content only the URL and title
are kept.

Content comes from --file (markdown, "-" for stdin) or from --payload, a
JSON page capture in the format the inbox accepts.`,
		Example: `  fttf index https://sqlite.org/wal.html --title "Write-Ahead Logging" --file wal.md
  curl -s https://example.com | pandoc -t gfm | fttf index https://example.com --file -
  fttf index --payload capture.json --wait`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := ""
			if len(args) == 1 {
				url = args[0]
			}
			return runIndex(cmd.Context(), cmd, opts, url, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.title, "title", "t", "", "Page title")
	cmd.Flags().StringVar(&flags.excerpt, "excerpt", "", "Short page summary")
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "Markdown content file, - for stdin")
	cmd.Flags().StringVar(&flags.payload, "payload", "", "JSON page capture file, - for stdin")
	cmd.Flags().StringVar(&flags.siteName, "site-name", "", "Site name")
	cmd.Flags().BoolVar(&flags.wait, "wait", false, "Drain the task queue before returning")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Output as JSON")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts *globalOptions, url string, flags indexOptions) error {
	page, err := buildPayload(cmd.InOrStdin(), url, flags)
	if err != nil {
		return err
	}

	return opts.withBackend(ctx, func(b *cliBackend) error {
		res, err := b.IndexPage(ctx, page)
		if err != nil {
			return err
		}
		var drained *backend.TaskCounts
		if flags.wait && res.Queued {
			counts, err := b.DrainTasks(ctx)
			if err != nil {
				return err
			}
			drained = &counts
		}

		if flags.json {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		w := opts.writer(cmd)
		if res.DocumentID == 0 {
			w.Warningf("%s: %s", page.URL, res.Message)
			return nil
		}
		w.Successf("Document %d %s (level %s)", res.DocumentID, res.Message, res.Level)
		switch {
		case drained != nil && drained.Failed > 0:
			w.Warningf("%d task(s) failed; see 'fttf tasks list --failed'", drained.Failed)
		case drained != nil:
			w.Infof("fragments and vectors generated")
		case res.Queued:
			w.Infof("fragments queued; run 'fttf tasks drain' or keep 'fttf watch' running")
		}
		return nil
	})
}

// buildPayload merges the --payload capture with the positional URL and flags.
// Flags win over the capture.
func buildPayload(stdin io.Reader, url string, o indexOptions) (backend.PagePayload, error) {
	var page backend.PagePayload
	if o.file == "-" && o.payload == "-" {
		return page, apperrors.ValidationError("--file and --payload cannot both read stdin", nil)
	}
	if o.payload != "" {
		data, err := readInput(stdin, o.payload)
		if err != nil {
			return page, err
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return page, apperrors.ValidationError("invalid page capture", err).WithDetail("file", o.payload)
		}
	}
	if url != "" {
		page.URL = url
	}
	if o.title != "" {
		page.Title = o.title
	}
	if o.excerpt != "" {
		page.Excerpt = o.excerpt
	}
	if o.siteName != "" {
		page.SiteName = o.siteName
	}
	if o.file != "" {
		data, err := readInput(stdin, o.file)
		if err != nil {
			return page, err
		}
		page.MdContent = string(data)
	}
	if page.URL == "" {
		return page, apperrors.ValidationError("a URL is required", nil).
			WithSuggestion("Pass the URL as an argument or set \"url\" in the --payload capture.")
	}
	if page.Extractor == "" {
		page.Extractor = "cli"
	}
	return page, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, apperrors.IOError("failed to read stdin", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.IOError(fmt.Sprintf("failed to read %s", path), err).WithDetail("path", path)
	}
	return data, nil
}

func newPageStatusCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "page-status <url>",
		Short: "Show how a URL would be indexed",
		Long: `Normalize a URL, classify it against the blacklist and report whether it
is stored. A stored page has its last visit bumped, as a browser visit would.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				st, err := b.GetPageStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), st)
				}
				w := opts.writer(cmd)
				if st.Error != "" {
					w.Errorf("%s", st.Error)
					return nil
				}
				w.Header(st.NormalizedURL)
				w.Table([][]string{
					{"FIELD", "VALUE"},
					{"level", string(st.IndexLevel)},
					{"stored", storedLabel(st.DocumentID)},
					{"should index", fmt.Sprintf("%t", st.ShouldIndex)},
				})
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func storedLabel(id int64) string {
	if id == 0 {
		return "no"
	}
	return fmt.Sprintf("document %d", id)
}

func newVisitCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "visit <url>",
		Short: "Record a visit to a page with nothing to index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				found, err := b.NothingToIndex(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				w := opts.writer(cmd)
				if found {
					w.Successf("Visit recorded")
				} else {
					w.Infof("page is not stored; nothing to update")
				}
				return nil
			})
		},
	}
}
