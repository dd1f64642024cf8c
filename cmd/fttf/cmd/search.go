package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/search"
	"github.com/Aman-CERP/fttf/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	mode      string // "fulltext", "trigram", "semantic"
	limit     int
	offset    int
	orderBy   string
	raw       bool
	threshold float64
	exact     bool
	json      bool
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var so searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the browsing history",
		Long: `Search stored pages.

Modes:
  fulltext  FTS5 keyword search with prefix matching (default)
  trigram   similarity search that tolerates typos
  semantic  embedding similarity over fragment vectors`,
		Example: `  fttf search "sqlite checkpoint"
  fttf search "postgress vacum" --mode trigram
  fttf search "how does write-ahead logging work" --mode semantic --limit 5
  fttf search 'title:wal NOT rollback' --raw --order-by rank`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, opts, query, so)
		},
	}

	cmd.Flags().StringVarP(&so.mode, "mode", "m", "fulltext", "Search mode: fulltext, trigram, semantic")
	cmd.Flags().IntVarP(&so.limit, "limit", "n", 0, "Maximum number of results (0 uses the configured default)")
	cmd.Flags().IntVar(&so.offset, "offset", 0, "Skip this many full-text results")
	cmd.Flags().StringVar(&so.orderBy, "order-by", "", "Full-text secondary order: updated_at, last_visit, created_at, rank")
	cmd.Flags().BoolVar(&so.raw, "raw", false, "Pass the query to FTS5 unchanged")
	cmd.Flags().Float64Var(&so.threshold, "threshold", 0, "Minimum semantic similarity (0 uses the configured default)")
	cmd.Flags().BoolVar(&so.exact, "exact", false, "Semantic search without the HNSW index")
	cmd.Flags().BoolVar(&so.json, "json", false, "Output as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, opts *globalOptions, query string, so searchOptions) error {
	slog.Debug("search_started", slog.String("query", query), slog.String("mode", so.mode))

	return opts.withBackend(ctx, func(b *cliBackend) error {
		var (
			hits  []ui.Hit
			total int64
			data  any
		)
		switch so.mode {
		case "fulltext", "":
			var order search.OrderBy
			if so.orderBy != "" {
				parsed, err := search.ParseOrderBy(so.orderBy)
				if err != nil {
					return apperrors.ValidationError("invalid --order-by", err)
				}
				order = parsed
			}
			res, err := b.Search(ctx, search.FullTextOptions{
				Query:   query,
				Limit:   so.limit,
				Offset:  so.offset,
				OrderBy: order,
				Raw:     so.raw,
			})
			if err != nil {
				return err
			}
			data, total = res, res.Count
			for _, r := range res.Results {
				hits = append(hits, ui.Hit{
					Title:         r.Title,
					URL:           r.URL,
					LastVisitDate: r.LastVisitDate,
					Attribute:     r.Attribute,
					Text:          r.Snippet,
				})
			}

		case "trigram", "semantic":
			var (
				res []search.ScoredResult
				err error
			)
			cfg, _ := opts.config()
			limit := so.limit
			if so.mode == "trigram" {
				if limit <= 0 {
					limit = cfg.Search.TrigramLimit
				}
				res, err = b.SearchTrigram(ctx, query, limit)
			} else {
				if limit <= 0 {
					limit = cfg.Search.SemanticLimit
				}
				res, err = b.SearchSemantic(ctx, query, search.SemanticOptions{
					Limit:     limit,
					Threshold: so.threshold,
					Exact:     so.exact,
				})
			}
			if err != nil {
				return err
			}
			data, total = res, int64(len(res))
			for _, r := range res {
				hits = append(hits, ui.Hit{
					Title:         r.Title,
					URL:           r.URL,
					LastVisitDate: r.LastVisitDate,
					Attribute:     r.Attribute,
					Text:          r.Value,
					Score:         r.Score,
					HasScore:      true,
				})
			}

		default:
			return apperrors.ValidationError(fmt.Sprintf("unknown search mode %q", so.mode), nil).
				WithSuggestion("Use --mode fulltext, trigram or semantic.")
		}

		slog.Debug("search_complete", slog.String("mode", so.mode), slog.Int("results", len(hits)))
		if so.json {
			return writeJSON(cmd.OutOrStdout(), data)
		}
		ui.NewResultsRenderer(cmd.OutOrStdout(), !ui.UseColor(cmd.OutOrStdout(), opts.noColor)).
			Render(query, hits, total)
		return nil
	})
}
