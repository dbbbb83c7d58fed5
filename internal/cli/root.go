package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is the CUE config file. Empty means objsync.cue when it
	// exists, the built-in defaults otherwise.
	Config string

	// Overrides for the config file.
	Store    string
	Document string
	Stream   string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// DefaultConfigFile is read when --config is not given and it exists.
const DefaultConfigFile = "objsync.cue"

// NewRootCommand creates the root command of the objsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "objsync",
		Short: "objsync - bidirectional object graph sync",
		Long: `Sync the elements of a host document with content-addressed object stores.

send converts the selected elements into an object graph and uploads it to one
or more transports. receive downloads a graph and reconciles it with the
document, updating elements it created before and deleting the ones that are
gone from the graph.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.Config, "config", "c", "", "config file (default objsync.cue when present)")
	flags.StringVar(&opts.Store, "store", "", "sqlite state database (overrides config)")
	flags.StringVar(&opts.Document, "document", "", "document YAML file (overrides config)")
	flags.StringVar(&opts.Stream, "stream", "", "stream id (overrides config)")

	cmd.AddCommand(NewSendCommand(opts))
	cmd.AddCommand(NewReceiveCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewFlattenCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
