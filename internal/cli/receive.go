package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/objsync/internal/engine"
	"github.com/roach88/objsync/internal/transport"
)

// ReceiveOptions holds flags for the receive command.
type ReceiveOptions struct {
	*RootOptions
	From   string
	RootID string
}

// NewReceiveCommand creates the receive command.
func NewReceiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReceiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Download a commit and reconcile the document with it",
		Long: `Download a commit from a transport and reconcile the document with it.

Elements created by an earlier receive of the same stream are updated in
place, elements whose nodes are gone from the commit are deleted, and new
nodes are created. The document file is rewritten afterwards.

Without --root the stream's latest recorded commit is received.

Examples:
  objsync receive
  objsync receive --from remote --root 3f1c...
  objsync receive --stream design --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceive(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "transport to read from (default the first configured)")
	cmd.Flags().StringVar(&opts.RootID, "root", "", "commit object id (default the stream's latest)")

	return cmd
}

// source picks the transport to receive from.
func (s *session) source(ctx context.Context, name string) (transport.Transport, error) {
	if name != "" {
		return s.pool.get(ctx, name)
	}
	trs, err := s.transports(ctx, nil)
	if err != nil {
		return nil, err
	}
	if len(trs) == 0 {
		return nil, NewExitError(ExitCommandError, "no transports configured")
	}
	return trs[0], nil
}

func runReceive(opts *ReceiveOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) error {
		src, err := s.source(ctx, opts.From)
		if err != nil {
			return err
		}

		res := s.engine.Receive(ctx, engine.ReceiveRequest{
			Stream: s.cfg.Stream,
			RootID: opts.RootID,
			Source: src,
		})

		// Placeholders were committed together with these outcomes, so the
		// document must be persisted even when some nodes failed.
		if len(res.Outcomes) > 0 {
			if err := s.saveDocument(); err != nil {
				return err
			}
			f.VerboseLog("document saved to %s", s.cfg.Document)
		}
		return finish(f, res, []string{src.Name()})
	})
}
