package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/objsync/internal/graph"
	"github.com/roach88/objsync/internal/transfer"
)

// FlattenOptions holds flags for the flatten command.
type FlattenOptions struct {
	*RootOptions
	From string
}

// FlatNode is one node of a flattened commit.
type FlatNode struct {
	ID            string `json:"id,omitempty"`
	Kind          string `json:"kind"`
	ApplicationID string `json:"application_id,omitempty"`
	Label         string `json:"label"`
}

// FlattenResult lists every node reachable from a commit.
type FlattenResult struct {
	RootID string     `json:"root_id"`
	Count  int        `json:"count"`
	Nodes  []FlatNode `json:"nodes"`
}

func (r *FlattenResult) renderText(w io.Writer, _ bool) {
	fmt.Fprintf(w, "%s: %d nodes\n", r.RootID, r.Count)
	for _, n := range r.Nodes {
		app := n.ApplicationID
		if app == "" {
			app = "-"
		}
		fmt.Fprintf(w, "  %-16s %-28s %s\n", n.Kind, app, n.ID)
	}
}

// NewFlattenCommand creates the flatten command.
func NewFlattenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FlattenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "flatten <root-id>",
		Short: "List every node of a commit",
		Long: `Download a commit and list every node reachable from it, each once.

Examples:
  objsync flatten 3f1c...
  objsync flatten 3f1c... --from remote --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlatten(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "transport to read from (default the first configured)")

	return cmd
}

func runFlatten(opts *FlattenOptions, rootID string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg)

	name := opts.From
	if name == "" {
		if len(cfg.Transports) == 0 {
			return NewExitError(ExitCommandError, "no transports configured")
		}
		name = cfg.Transports[0].Name
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pool := newTransportPool(cfg, logger)
	defer pool.close()
	src, err := pool.get(ctx, name)
	if err != nil {
		return err
	}

	root, err := transfer.Receive(ctx, rootID, src, transfer.Options{
		ChunkSize: cfg.Transfer.ChunkSize,
		Logger:    logger,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "failed to receive commit", err)
	}

	_, nodes := graph.Flatten(root)
	res := &FlattenResult{RootID: rootID, Count: len(nodes), Nodes: make([]FlatNode, len(nodes))}
	for i, n := range nodes {
		res.Nodes[i] = FlatNode{ID: n.ID, Kind: n.Kind, ApplicationID: n.ApplicationID, Label: n.Label()}
	}
	return opts.formatter(cmd).Success(res)
}
