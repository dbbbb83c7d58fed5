package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/objsync/internal/ir"
	"github.com/roach88/objsync/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	All bool
}

// HistoryResult is the recorded operations of one or all streams.
type HistoryResult struct {
	Stream     string               `json:"stream,omitempty"`
	Operations []ir.OperationRecord `json:"operations"`
}

func (r *HistoryResult) renderText(w io.Writer, _ bool) {
	if len(r.Operations) == 0 {
		fmt.Fprintln(w, "No operations recorded")
		return
	}
	for _, op := range r.Operations {
		root := op.RootID
		if len(root) > 12 {
			root = root[:12]
		}
		fmt.Fprintf(w, "%4d  %-7s %-9s %-10s %-12s converted=%d skipped=%d errors=%d  %s\n",
			op.Seq, op.Kind, op.State, op.StreamID, root, op.Converted, op.Skipped, op.Errors, op.ID)
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded send and receive operations",
		Long: `Show the operations recorded in the state database, oldest first.

Examples:
  objsync history
  objsync history --stream design
  objsync history --all --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "show every stream")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open state database", err)
	}
	defer st.Close()

	stream := cfg.Stream
	if opts.All {
		stream = ""
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ops, err := st.ReadOperations(ctx, stream)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read operations", err)
	}
	return opts.formatter(cmd).Success(&HistoryResult{Stream: stream, Operations: ops})
}
