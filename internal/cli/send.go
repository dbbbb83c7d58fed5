package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/objsync/internal/engine"
	"github.com/roach88/objsync/internal/host"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	*RootOptions
	Transports []string
	Elements   []string
	Categories []string

	// Parameter filter: all three must be set together.
	Param      string
	ParamOp    string
	ParamValue string
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Convert document elements and upload them",
		Long: `Convert the selected elements of the document into an object graph and
upload it to the configured transports.

Without --element, --category or --param every element is selected. The
operation history and the stream's latest commit are recorded in the state
database.

Examples:
  objsync send
  objsync send --category Walls --category Floors --transport local
  objsync send --param Mark --op contains --value W-
  objsync send --element 01J0Z... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Transports, "transport", "t", nil, "transport name (repeatable, default all but the cache)")
	cmd.Flags().StringSliceVarP(&opts.Elements, "element", "e", nil, "element handle id (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Categories, "category", nil, "category to select (repeatable)")
	cmd.Flags().StringVar(&opts.Param, "param", "", "parameter name to filter on")
	cmd.Flags().StringVar(&opts.ParamOp, "op", host.OpEquals, "parameter operator (equals|contains|is greater than|is less than)")
	cmd.Flags().StringVar(&opts.ParamValue, "value", "", "parameter value to compare with")

	return cmd
}

// filter builds the element filter from the selection flags. It returns
// nil when nothing narrows the selection.
func (o *SendOptions) filter() (host.Filter, error) {
	var fs host.AllOf
	if len(o.Categories) > 0 {
		fs = append(fs, host.CategoryFilter{Categories: o.Categories})
	}
	if o.Param != "" {
		pf, err := host.NewParameterFilter(o.Param, o.ParamOp, o.ParamValue)
		if err != nil {
			return nil, err
		}
		fs = append(fs, pf)
	}
	if len(fs) == 0 {
		return nil, nil
	}
	return fs, nil
}

func runSend(opts *SendOptions, cmd *cobra.Command) error {
	filter, err := opts.filter()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid selection", err)
	}
	if filter != nil && len(opts.Elements) > 0 {
		return NewExitError(ExitCommandError, "--element cannot be combined with --category or --param")
	}

	f := opts.formatter(cmd)
	return withSession(opts.RootOptions, cmd, func(ctx context.Context, s *session) error {
		trs, err := s.transports(ctx, opts.Transports)
		if err != nil {
			return err
		}
		if len(trs) == 0 {
			return NewExitError(ExitCommandError, "no transports configured")
		}

		req := engine.SendRequest{
			Stream:     s.cfg.Stream,
			Filter:     filter,
			Transports: trs,
		}
		for _, id := range opts.Elements {
			req.Elements = append(req.Elements, host.HandleID(id))
		}
		if filter != nil {
			f.VerboseLog("selection: %s", filter.Describe())
		}

		res := s.engine.Send(ctx, req)
		return finish(f, res, fmtTransports(trs))
	})
}
