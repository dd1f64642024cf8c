package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/fttf/internal/inbox"
	"github.com/Aman-CERP/fttf/internal/logging"
	"github.com/Aman-CERP/fttf/internal/mcp"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		withInbox bool
		wo        watchOptions
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Expose the history to an MCP client over stdin/stdout with the tools
search_history, page_status and index_stats. The background queue runs
while serving.

Stdout carries only protocol messages; logs go to ~/.fttf/logs/fttf.log.
When the database cannot be opened the server still starts and every tool
reports that the database is not ready.`,
		Example: `  # Claude Desktop / MCP client configuration
  {"command": "fttf", "args": ["serve", "--inbox"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, withInbox, wo)
		},
	}

	cmd.Flags().BoolVar(&withInbox, "inbox", false, "Also watch the inbox directory")
	cmd.Flags().StringVar(&wo.dir, "inbox-dir", "", "Inbox directory (default inbox.dir from config)")
	wo.debounce = inbox.DefaultDebounce
	wo.rescan = inbox.DefaultScanInterval

	return cmd
}

func runServe(ctx context.Context, opts *globalOptions, withInbox bool, wo watchOptions) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}

	// Nothing may reach stdout or stderr once the protocol starts.
	logger, cleanup, err := logging.Setup(logging.ServeConfig(cfg.Server.LogLevel))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()
	slog.SetDefault(logger)

	b, err := opts.openBackend(ctx, true)
	if b == nil {
		return err
	}
	defer func() { _ = b.Close() }()
	if err != nil {
		logger.Warn("serving_without_database", slog.String("error", err.Error()))
	}

	srv, err := mcp.NewServer(b.Backend, mcp.WithLogger(logger))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopWatch := context.WithCancel(gctx)
	defer stopWatch()

	g.Go(func() error {
		// The client closing stdin ends the session and the inbox with it.
		defer stopWatch()
		return srv.Serve(serveCtx)
	})
	if withInbox && b.Status().OK {
		dir := wo.dir
		if dir == "" {
			dir = cfg.Inbox.Dir
		}
		g.Go(func() error {
			return newInboxWatcher(dir, b, wo).Run(serveCtx)
		})
	}
	return g.Wait()
}
