// Package treecmder provides read-only inspection subcommands over the
// stored conversation forest: summary, render, roots, leaves, and branching.
package treecmder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/dotdir"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/storage"
	"github.com/loomworks/loom/pkg/storage/inmemory"
	"github.com/loomworks/loom/pkg/storage/postgres"
	"github.com/loomworks/loom/pkg/storage/sqlite"
	"github.com/loomworks/loom/pkg/tree"
)

type treeCommander struct {
	configDir string
	debug     bool

	logger *slog.Logger
}

const treeLongDesc string = `Inspect the stored conversation forest.

Examples:
  loom tree summary c1          Aggregate counts and max depth for c1
  loom tree render c1           Indented listing of all of c1's trees
  loom tree render c1 <id>      Listing rooted at a specific node
  loom tree roots c1            Root turns by creation time
  loom tree leaves c1           Turns with no children
  loom tree branching c1        Mean and max branching factor`

const treeShortDesc string = "Inspect stored conversation trees"

func NewTreeCmd() *cobra.Command {
	cmder := &treeCommander{}

	cmd := &cobra.Command{
		Use:   "tree",
		Short: treeShortDesc,
		Long:  treeLongDesc,
	}

	cmd.AddCommand(
		cmder.newSummaryCmd(),
		cmder.newRenderCmd(),
		cmder.newRootsCmd(),
		cmder.newLeavesCmd(),
		cmder.newBranchingCmd(),
	)

	return cmd
}

func (c *treeCommander) setup(cmd *cobra.Command) error {
	var err error
	c.debug, err = cmd.Flags().GetBool("debug")
	if err != nil {
		return fmt.Errorf("could not get debug flag: %w", err)
	}

	c.configDir, err = cmd.Flags().GetString("config-dir")
	if err != nil {
		return fmt.Errorf("could not get config-dir flag: %w", err)
	}

	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
	)

	return nil
}

// openDriver builds the storage driver selected by the configuration.
func (c *treeCommander) openDriver(ctx context.Context) (storage.Driver, error) {
	v, err := config.InitViper(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("initializing config: %w", err)
	}
	cfg := config.FromViper(v)

	switch cfg.Storage.Backend {
	case "memory":
		return inmemory.NewDriver(), nil

	case "postgres":
		return postgres.NewDriver(ctx, cfg.Storage.PostgresDSN)

	case "sqlite", "":
		path := cfg.Storage.SQLitePath
		if path == "" {
			target, err := dotdir.NewManager().Target(c.configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving loom directory: %w", err)
			}
			path = filepath.Join(target, "loom.db")
		}
		return sqlite.NewDriver(path)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func (c *treeCommander) loadForest(ctx context.Context, conversationID string) (*tree.Forest, func(), error) {
	driver, err := c.openDriver(ctx)
	if err != nil {
		return nil, nil, err
	}

	forest, err := tree.Load(ctx, driver, conversationID)
	if err != nil {
		driver.Close()
		return nil, nil, fmt.Errorf("loading forest: %w", err)
	}

	return forest, func() { _ = driver.Close() }, nil
}

func (c *treeCommander) newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <conversation>",
		Short: "Aggregate counts and depth for a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}

			forest, done, err := c.loadForest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer done()

			s := forest.Summary()
			fmt.Printf("Nodes: %d\nRoots: %d\nLeaves: %d\nMax depth: %d\n",
				s.TotalNodes, s.RootCount, s.LeafCount, s.MaxDepth)
			return nil
		},
	}
}

func (c *treeCommander) newRenderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render <conversation> [node-id]",
		Short: "Indented listing of a conversation's trees",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}

			forest, done, err := c.loadForest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer done()

			if len(args) == 2 {
				out := forest.Render(args[1])
				if out == "" {
					return fmt.Errorf("node %s not found in conversation %s", args[1], args[0])
				}
				fmt.Print(out)
				return nil
			}

			for _, root := range forest.Roots() {
				fmt.Print(forest.Render(root.ID))
			}
			return nil
		},
	}
}

func (c *treeCommander) newRootsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roots <conversation>",
		Short: "Root turns by creation time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}

			forest, done, err := c.loadForest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer done()

			for _, n := range forest.Roots() {
				printNodeLine(n)
			}
			return nil
		},
	}
}

func (c *treeCommander) newLeavesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaves <conversation>",
		Short: "Turns with no children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}

			forest, done, err := c.loadForest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer done()

			for _, n := range forest.Leaves() {
				printNodeLine(n)
			}
			return nil
		},
	}
}

func (c *treeCommander) newBranchingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branching <conversation>",
		Short: "Mean and max branching factor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}

			forest, done, err := c.loadForest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer done()

			mean, max := forest.BranchingFactor()
			fmt.Printf("Mean: %.2f\nMax: %d\n", mean, max)
			return nil
		},
	}
}

func printNodeLine(n *tree.Node) {
	fmt.Printf("%s  %s  %s\n", n.ID, n.CreatedAt.Format("2006-01-02 15:04:05"), n.Prompt)
}
