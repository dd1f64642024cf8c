package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fttf/internal/inbox"
)

type watchOptions struct {
	dir      string
	polling  bool
	debounce time.Duration
	rescan   time.Duration
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var wo watchOptions

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Index page captures dropped into the inbox directory",
		Long: `Watch the inbox directory for *.json page captures, index each one and
remove it. Captures that can never be indexed are renamed to *.rejected.
The background queue runs while watching.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				wo.dir = args[0]
			}
			return runWatch(cmd.Context(), cmd, opts, wo)
		},
	}

	cmd.Flags().StringVarP(&wo.dir, "dir", "d", "", "Inbox directory (default inbox.dir from config)")
	cmd.Flags().BoolVar(&wo.polling, "polling", false, "Rescan periodically instead of using file notifications")
	cmd.Flags().DurationVar(&wo.debounce, "debounce", inbox.DefaultDebounce, "Wait this long after the last write to a capture")
	cmd.Flags().DurationVar(&wo.rescan, "rescan", inbox.DefaultScanInterval, "Full directory rescan interval")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts *globalOptions, wo watchOptions) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	dir := wo.dir
	if dir == "" {
		dir = cfg.Inbox.Dir
	}

	b, err := opts.openBackend(ctx, true)
	if b != nil {
		defer func() { _ = b.Close() }()
	}
	if err != nil {
		return err
	}

	w := newInboxWatcher(dir, b, wo)
	opts.writer(cmd).Successf("Watching %s (Ctrl-C to stop)", dir)
	if err := w.Run(ctx); err != nil {
		return err
	}
	st := w.Stats()
	opts.writer(cmd).Infof("%d indexed, %d rejected, %d failed", st.Indexed, st.Rejected, st.Failed)
	return nil
}

func newInboxWatcher(dir string, b *cliBackend, wo watchOptions) *inbox.Watcher {
	inboxOpts := []inbox.Option{
		inbox.WithLogger(slog.Default()),
		inbox.WithDebounce(wo.debounce),
		inbox.WithScanInterval(wo.rescan),
	}
	if wo.polling {
		inboxOpts = append(inboxOpts, inbox.WithPolling())
	}
	return inbox.New(dir, b, inboxOpts...)
}
