package cmd

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/queue"
)

func newTasksCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and run the background task queue",
		Long: `Background tasks split stored pages into fragments and embed the
fragments. A running 'fttf watch' or 'fttf serve' drains the queue; 'fttf
tasks drain' does it once in the foreground.

Failed tasks stay in the queue with their error until retried or deleted.`,
	}

	cmd.AddCommand(newTasksListCmd(opts))
	cmd.AddCommand(newTasksDrainCmd(opts))
	cmd.AddCommand(newTasksRetryCmd(opts))
	cmd.AddCommand(newTasksDeleteCmd(opts))
	cmd.AddCommand(newTasksEnqueueCmd(opts))

	return cmd
}

func newTasksListCmd(opts *globalOptions) *cobra.Command {
	var (
		failed     bool
		pending    bool
		taskType   string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued and failed tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if failed && pending {
				return apperrors.ValidationError("--failed and --pending are exclusive", nil)
			}
			f := queue.Filter{Type: queue.TaskType(taskType), Limit: limit}
			switch {
			case failed:
				f.Status = queue.StatusFailed
			case pending:
				f.Status = queue.StatusPending
			}
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				tasks, err := b.ListTasks(cmd.Context(), f)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), tasks)
				}
				w := opts.writer(cmd)
				if len(tasks) == 0 {
					w.Infof("no tasks")
					return nil
				}
				rows := [][]string{{"ID", "TYPE", "PARAMS", "CREATED", "ERROR"}}
				for _, t := range tasks {
					rows = append(rows, []string{
						strconv.FormatInt(t.ID, 10),
						string(t.Type),
						string(t.Params),
						time.UnixMilli(t.CreatedAt).Format("2006-01-02 15:04:05"),
						firstLine(t.Error),
					})
				}
				w.Table(rows)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&failed, "failed", false, "Only failed tasks")
	cmd.Flags().BoolVar(&pending, "pending", false, "Only pending tasks")
	cmd.Flags().StringVar(&taskType, "type", "", "Only tasks of this type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Maximum number of tasks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newTasksDrainCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Run pending tasks until the queue is empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				start := time.Now()
				before, err := b.CountTasks(cmd.Context())
				if err != nil {
					return err
				}
				after, err := b.DrainTasks(cmd.Context())
				if err != nil {
					return err
				}
				w := opts.writer(cmd)
				w.Successf("Queue drained in %s", time.Since(start).Round(time.Millisecond))
				if newlyFailed := after.Failed - before.Failed; newlyFailed > 0 {
					w.Warningf("%d task(s) failed; see 'fttf tasks list --failed'", newlyFailed)
				}
				return nil
			})
		},
	}
}

func newTasksRetryCmd(opts *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "retry [id]",
		Short: "Make failed tasks pending again",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return apperrors.ValidationError("pass a task id or --all", nil)
			}
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				w := opts.writer(cmd)
				if all {
					n, err := b.RetryFailedTasks(cmd.Context())
					if err != nil {
						return err
					}
					w.Successf("%d task(s) requeued", n)
					return nil
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				ok, err := b.RetryTask(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !ok {
					return apperrors.NotFoundError("failed task", args[0])
				}
				w.Successf("Task %d requeued", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Retry every failed task")

	return cmd
}

func newTasksDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				ok, err := b.DeleteTask(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !ok {
					return apperrors.NotFoundError("task", args[0])
				}
				opts.writer(cmd).Successf("Task %d deleted", id)
				return nil
			})
		},
	}
}

func newTasksEnqueueCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <type> [params-json]",
		Short: "Queue a task by hand",
		Example: `  fttf tasks enqueue ping
  fttf tasks enqueue generate_fragments '{"document_id": 42}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := json.RawMessage("{}")
			if len(args) == 2 {
				params = json.RawMessage(args[1])
			}
			return opts.withBackend(cmd.Context(), func(b *cliBackend) error {
				id, inserted, err := b.EnqueueTask(cmd.Context(), queue.TaskType(args[0]), params)
				if err != nil {
					return err
				}
				w := opts.writer(cmd)
				if !inserted {
					w.Infof("identical task %d already queued", id)
					return nil
				}
				w.Successf("Task %d queued", id)
				return nil
			})
		},
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
