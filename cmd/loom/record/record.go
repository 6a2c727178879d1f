// Package recordcmder provides write-side subcommands: record appends a turn
// sequence to a conversation, branch creates a divergent sibling for a stored
// node.
package recordcmder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/dotdir"
	"github.com/loomworks/loom/pkg/eventstream"
	"github.com/loomworks/loom/pkg/eventstream/kafka"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/session"
	"github.com/loomworks/loom/pkg/storage"
	"github.com/loomworks/loom/pkg/storage/inmemory"
	"github.com/loomworks/loom/pkg/storage/postgres"
	"github.com/loomworks/loom/pkg/storage/sqlite"
	"github.com/loomworks/loom/pkg/turn"
)

type recordCommander struct {
	configDir string
	debug     bool

	cfg    *config.Config
	logger *slog.Logger
}

const recordLongDesc string = `Record conversation turns.

Turns are read from stdin, one JSON object per line:

  {"prompt": "Hello", "response": "Hi!"}
  {"system": "Be brief.", "prompt": "How are you?", "response": "Good!"}

The sequence is resolved from the conversation's roots; turns already stored
are reused and only the unmatched tail creates new nodes. Replaying an
identical sequence creates nothing.`

const recordShortDesc string = "Record conversation turns"

func NewRecordCmd() *cobra.Command {
	cmder := &recordCommander{}

	cmd := &cobra.Command{
		Use:   "record <conversation>",
		Short: recordShortDesc,
		Long:  recordLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmder.setup(cmd); err != nil {
				return err
			}
			return cmder.runRecord(cmd.Context(), args[0], cmd.InOrStdin())
		},
	}

	cmd.AddCommand(cmder.newBranchCmd())

	return cmd
}

func (c *recordCommander) setup(cmd *cobra.Command) error {
	var err error
	c.debug, err = cmd.Flags().GetBool("debug")
	if err != nil {
		return fmt.Errorf("could not get debug flag: %w", err)
	}

	c.configDir, err = cmd.Flags().GetString("config-dir")
	if err != nil {
		return fmt.Errorf("could not get config-dir flag: %w", err)
	}

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	c.cfg = config.FromViper(v)

	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(c.cfg.Log.Pretty),
		logger.WithJSON(c.cfg.Log.JSON),
	)

	return nil
}

func (c *recordCommander) openDriver(ctx context.Context) (storage.Driver, error) {
	switch c.cfg.Storage.Backend {
	case "memory":
		return inmemory.NewDriver(), nil

	case "postgres":
		return postgres.NewDriver(ctx, c.cfg.Storage.PostgresDSN)

	case "sqlite", "":
		path := c.cfg.Storage.SQLitePath
		if path == "" {
			target, err := dotdir.NewManager().Target(c.configDir)
			if err != nil {
				return nil, fmt.Errorf("resolving loom directory: %w", err)
			}
			path = filepath.Join(target, "loom.db")
		}
		return sqlite.NewDriver(path)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.cfg.Storage.Backend)
	}
}

// newRecorder assembles the recorder with the configured event publisher.
func (c *recordCommander) newRecorder(driver storage.Driver) (*session.Recorder, func()) {
	opts := []session.Option{session.WithLogger(c.logger)}

	var publisher eventstream.Publisher
	if c.cfg.Events.Enabled && len(c.cfg.Events.Brokers) > 0 {
		publisher = kafka.NewPublisher(c.cfg.Events.Brokers, c.cfg.Events.Topic)
		opts = append(opts, session.WithPublisher(publisher))
	}

	done := func() {
		if publisher != nil {
			_ = publisher.Close()
		}
	}

	return session.NewRecorder(driver, opts...), done
}

// turnLine is the stdin wire format: one JSON object per line.
type turnLine struct {
	System   string  `json:"system,omitempty"`
	Prompt   string  `json:"prompt"`
	Response *string `json:"response,omitempty"`
}

func readTurns(r io.Reader) ([]turn.Turn, error) {
	var turns []turn.Turn

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var tl turnLine
		if err := json.Unmarshal(raw, &tl); err != nil {
			return nil, fmt.Errorf("parsing turn on line %d: %w", line, err)
		}
		if tl.Prompt == "" {
			return nil, fmt.Errorf("turn on line %d has no prompt", line)
		}

		turns = append(turns, turn.Turn{
			Context:  turn.PromptContext{System: tl.System, Prompt: tl.Prompt},
			Response: tl.Response,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}

	return turns, nil
}

func (c *recordCommander) runRecord(ctx context.Context, conversationID string, in io.Reader) error {
	turns, err := readTurns(in)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return fmt.Errorf("no turns on stdin")
	}

	driver, err := c.openDriver(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	recorder, done := c.newRecorder(driver)
	defer done()

	result, err := recorder.Record(ctx, conversationID, turns)
	if err != nil {
		return err
	}

	c.logger.Info("recorded turns",
		"conversation", conversationID,
		"turns", len(turns),
		"created", len(result.CreatedIDs),
		"diverged", len(result.Divergences),
	)

	for i, id := range result.NodeIDs {
		fmt.Printf("%d  %s\n", i, id)
	}
	return nil
}

func (c *recordCommander) newBranchCmd() *cobra.Command {
	var response string

	cmd := &cobra.Command{
		Use:   "branch <node-id>",
		Short: "Create a divergent sibling for a stored node",
		Long: `Create a new node under the same parent as an existing node, sharing its
prompt but carrying a different response. The pair forms a divergent branch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd); err != nil {
				return err
			}

			driver, err := c.openDriver(cmd.Context())
			if err != nil {
				return err
			}
			defer driver.Close()

			recorder, done := c.newRecorder(driver)
			defer done()

			node, err := recorder.RecordBranch(cmd.Context(), args[0], response)
			if err != nil {
				return err
			}

			fmt.Println(node.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&response, "response", "r", "", "Response text for the new branch")
	_ = cmd.MarkFlagRequired("response")

	return cmd
}
