package cmd

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fttf/internal/backend"
	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

type rpcOptions struct {
	payload string
	data    string
}

func newRPCCmd(opts *globalOptions) *cobra.Command {
	var flags rpcOptions

	names := make([]string, 0, len(backend.Methods()))
	for _, m := range backend.Methods() {
		names = append(names, string(m))
	}

	cmd := &cobra.Command{
		Use:   "rpc <method>",
		Short: "Call a backend method with a JSON payload",
		Long: `Run one backend method and print its result as JSON. This is the
entry point for the browser extension helper, which speaks the same
method names and payloads.

The payload comes from --data, or from --payload (a file, "-" for stdin).
No payload is an empty object.

Methods: ` + strings.Join(names, ", "),
		Example: `  fttf rpc getStatus
  fttf rpc search --data '{"query":"write ahead","limit":5}'
  echo '{"url":"https://sqlite.org/wal.html"}' | fttf rpc getPageStatus --payload -`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRPC(cmd, opts, flags, backend.Method(args[0]))
		},
	}

	cmd.Flags().StringVarP(&flags.payload, "payload", "p", "", "Read the JSON payload from a file (\"-\" for stdin)")
	cmd.Flags().StringVar(&flags.data, "data", "", "Inline JSON payload")
	cmd.MarkFlagsMutuallyExclusive("payload", "data")

	return cmd
}

func runRPC(cmd *cobra.Command, opts *globalOptions, o rpcOptions, method backend.Method) error {
	if !slices.Contains(backend.Methods(), method) {
		return apperrors.New(apperrors.ErrCodeUnknownMethod, fmt.Sprintf("unknown method %q", method), nil).
			WithSuggestion("Run 'fttf rpc --help' for the method list.")
	}

	var payload json.RawMessage
	switch {
	case o.data != "":
		payload = json.RawMessage(o.data)
	case o.payload != "":
		data, err := readInput(cmd.InOrStdin(), o.payload)
		if err != nil {
			return err
		}
		payload = data
	}

	ctx := cmd.Context()
	b, err := opts.openBackend(ctx, false)
	if b == nil {
		return err
	}
	defer func() { _ = b.Close() }()
	// getStatus reports a failed open instead of failing with it.
	if err != nil && method != backend.MethodGetStatus {
		return err
	}

	result, err := b.Dispatch(ctx, method, payload)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}
