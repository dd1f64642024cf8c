package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

func newBlacklistCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage URL blacklist rules",
		Long: `Blacklist rules decide how much of a page is kept. A rule is a SQL LIKE
pattern over the normalized URL ("%" matches any run of characters) and a
level:
  url_only  store the URL and title, never the content
  no_index  store nothing

The most recently added matching rule wins. URLs with no matching rule are
indexed in full.`,
		Example: `  fttf blacklist list
  fttf blacklist add "https://mail.google.com/%" no_index
  fttf blacklist classify "https://news.ycombinator.com/item?id=1"
  fttf blacklist remove 7`,
	}

	cmd.AddCommand(newBlacklistListCmd(opts))
	cmd.AddCommand(newBlacklistAddCmd(opts))
	cmd.AddCommand(newBlacklistRemoveCmd(opts))
	cmd.AddCommand(newBlacklistClassifyCmd(opts))

	return cmd
}

func newBlacklistListCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blacklist rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				rules, err := b.ListRules(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), rules)
				}
				w := opts.writer(cmd)
				if len(rules) == 0 {
					w.Infof("no rules")
					return nil
				}
				rows := [][]string{{"ID", "PATTERN", "LEVEL", "CREATED"}}
				for _, r := range rules {
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10),
						r.Pattern,
						string(r.Level),
						time.UnixMilli(r.CreatedAt).Format("2006-01-02"),
					})
				}
				w.Table(rows)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newBlacklistAddCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <pattern> <url_only|no_index>",
		Short: "Add or update a blacklist rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				rule, err := b.AddRule(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				opts.writer(cmd).Successf("Rule %d: %s -> %s", rule.ID, rule.Pattern, rule.Level)
				return nil
			})
		},
	}
}

func newBlacklistRemoveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a blacklist rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				removed, err := b.RemoveRule(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return apperrors.NotFoundError("rule", args[0])
				}
				opts.writer(cmd).Successf("Rule %d removed", id)
				return nil
			})
		},
	}
}

func newBlacklistClassifyCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <url>",
		Short: "Show the index level a URL gets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				normalized, level, err := b.Classify(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", level, normalized)
				return err
			})
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationError(fmt.Sprintf("invalid id %q", s), err)
	}
	return id, nil
}
