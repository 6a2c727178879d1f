// Package loomcmder
package loomcmder

import (
	"github.com/spf13/cobra"

	recordcmder "github.com/loomworks/loom/cmd/loom/record"
	treecmder "github.com/loomworks/loom/cmd/loom/tree"
	versioncmder "github.com/loomworks/loom/cmd/version"
)

const loomLongDesc string = `Loom is a content-addressed conversation tree store.

Record and inspect conversations using:
  loom record         Append a turn sequence read from stdin
  loom record branch  Create a divergent sibling for a stored node
  loom tree summary   Aggregate counts and depth for a conversation
  loom tree render    Indented listing of a conversation's trees
  loom tree roots     Conversation roots by creation time`

const loomShortDesc string = "Loom - Content-Addressed Conversation Store"

func NewLoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loom",
		Short: loomShortDesc,
		Long:  loomLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .loom/ directory")

	// Add subcommands
	cmd.AddCommand(treecmder.NewTreeCmd())
	cmd.AddCommand(recordcmder.NewRecordCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
