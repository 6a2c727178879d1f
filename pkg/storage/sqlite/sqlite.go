// Package sqlite provides a SQLite-backed storage driver using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loomworks/loom/pkg/storage"
	"github.com/loomworks/loom/pkg/tree"
	"github.com/loomworks/loom/pkg/turn"
)

// Driver implements storage.Driver backed by SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a new SQLite-backed driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Driver{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the necessary tables and indexes if they don't exist.
func (s *Driver) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		model_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		parent_id TEXT,
		system TEXT NOT NULL DEFAULT '',
		prompt TEXT NOT NULL,
		attachments TEXT,
		tool_calls TEXT,
		tool_results TEXT,
		response TEXT NOT NULL,
		prompt_hash TEXT NOT NULL,
		response_hash TEXT NOT NULL,
		path_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_match ON nodes(conversation_id, parent_id, prompt_hash);
	CREATE INDEX IF NOT EXISTS idx_nodes_path_hash ON nodes(path_hash);
	CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

const nodeColumns = `id, conversation_id, parent_id, system, prompt,
	attachments, tool_calls, tool_results, response,
	prompt_hash, response_hash, path_hash, created_at`

// Insert stores a node atomically, creating its conversation row on first
// use. Duplicate ids and integrity violations are rejected before any write.
func (s *Driver) Insert(ctx context.Context, node *tree.Node) error {
	if node == nil {
		return errors.New("cannot store nil node")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, node.ID).Scan(&exists)
	if err == nil {
		return storage.DuplicateIDError{ID: node.ID}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for existing node: %w", err)
	}

	if node.ParentID != nil {
		var parentConv string
		err = tx.QueryRowContext(ctx,
			`SELECT conversation_id FROM nodes WHERE id = ?`, *node.ParentID).Scan(&parentConv)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.IntegrityError{Reason: "parent " + *node.ParentID + " does not exist"}
		}
		if err != nil {
			return fmt.Errorf("checking parent: %w", err)
		}
		if parentConv != node.ConversationID {
			return storage.IntegrityError{Reason: "parent " + *node.ParentID + " belongs to another conversation"}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (id) VALUES (?)`, node.ConversationID); err != nil {
		return fmt.Errorf("ensuring conversation: %w", err)
	}

	attachments, err := marshalJSON(node.Attachments)
	if err != nil {
		return fmt.Errorf("marshaling attachments: %w", err)
	}
	toolCalls, err := marshalJSON(node.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshaling tool calls: %w", err)
	}
	toolResults, err := marshalJSON(node.ToolResults)
	if err != nil {
		return fmt.Errorf("marshaling tool results: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.ID, node.ConversationID, node.ParentID, node.System, node.Prompt,
		attachments, toolCalls, toolResults, node.Response,
		node.PromptHash, node.ResponseHash, node.PathHash,
		node.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting node: %w", err)
	}

	return tx.Commit()
}

// Get retrieves a node by its id.
func (s *Driver) Get(ctx context.Context, id string) (*tree.Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)

	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}

	return node, nil
}

// Children returns the nodes with the given parent within a conversation,
// in creation order. A nil parentID selects the conversation's roots.
func (s *Driver) Children(ctx context.Context, conversationID string, parentID *string) ([]*tree.Node, error) {
	var rows *sql.Rows
	var err error

	if parentID == nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+nodeColumns+` FROM nodes
			WHERE conversation_id = ? AND parent_id IS NULL
			ORDER BY created_at, id`, conversationID)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+nodeColumns+` FROM nodes
			WHERE conversation_id = ? AND parent_id = ?
			ORDER BY created_at, id`, conversationID, *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// FindMatch returns the earliest node matching the exact
// (conversation, parent, prompt hash) triple.
func (s *Driver) FindMatch(ctx context.Context, conversationID string, parentID *string, promptHash string) (*tree.Node, error) {
	var row *sql.Row

	if parentID == nil {
		row = s.db.QueryRowContext(ctx, `
			SELECT `+nodeColumns+` FROM nodes
			WHERE conversation_id = ? AND parent_id IS NULL AND prompt_hash = ?
			ORDER BY created_at, id LIMIT 1`, conversationID, promptHash)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT `+nodeColumns+` FROM nodes
			WHERE conversation_id = ? AND parent_id = ? AND prompt_hash = ?
			ORDER BY created_at, id LIMIT 1`, conversationID, *parentID, promptHash)
	}

	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{}
	}
	if err != nil {
		return nil, err
	}

	return node, nil
}

// FindByPathHash returns the earliest node carrying the given path hash.
func (s *Driver) FindByPathHash(ctx context.Context, pathHash string) (*tree.Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+nodeColumns+` FROM nodes
		WHERE path_hash = ?
		ORDER BY created_at, id LIMIT 1`, pathHash)

	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{}
	}
	if err != nil {
		return nil, err
	}

	return node, nil
}

// ListConversation returns every node in a conversation, in creation order.
func (s *Driver) ListConversation(ctx context.Context, conversationID string) ([]*tree.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+` FROM nodes
		WHERE conversation_id = ?
		ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying conversation nodes: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// Conversations returns all known conversations.
func (s *Driver) Conversations(ctx context.Context) ([]*tree.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, model_id FROM conversations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var result []*tree.Conversation
	for rows.Next() {
		var conv tree.Conversation
		if err := rows.Scan(&conv.ID, &conv.Name, &conv.ModelID); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		result = append(result, &conv)
	}

	return result, rows.Err()
}

// UpsertConversation sets a conversation's display name and model id.
func (s *Driver) UpsertConversation(ctx context.Context, conv *tree.Conversation) error {
	if conv == nil || conv.ID == "" {
		return errors.New("conversation id is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, name, model_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, model_id = excluded.model_id`,
		conv.ID, conv.Name, conv.ModelID)
	if err != nil {
		return fmt.Errorf("upserting conversation: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Driver) Close() error {
	return s.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for shared node scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*tree.Node, error) {
	var node tree.Node
	var parentID sql.NullString
	var attachments, toolCalls, toolResults sql.NullString
	var createdAt int64

	err := row.Scan(
		&node.ID, &node.ConversationID, &parentID, &node.System, &node.Prompt,
		&attachments, &toolCalls, &toolResults, &node.Response,
		&node.PromptHash, &node.ResponseHash, &node.PathHash, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		node.ParentID = &parentID.String
	}
	node.CreatedAt = time.Unix(0, createdAt).UTC()

	if err := unmarshalJSON(attachments, &node.Attachments); err != nil {
		return nil, fmt.Errorf("unmarshaling attachments: %w", err)
	}
	if err := unmarshalJSON(toolCalls, &node.ToolCalls); err != nil {
		return nil, fmt.Errorf("unmarshaling tool calls: %w", err)
	}
	if err := unmarshalJSON(toolResults, &node.ToolResults); err != nil {
		return nil, fmt.Errorf("unmarshaling tool results: %w", err)
	}

	return &node, nil
}

func scanNodes(rows *sql.Rows) ([]*tree.Node, error) {
	var nodes []*tree.Node

	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return nodes, nil
}

// marshalJSON serializes a slice field, mapping empty to NULL.
func marshalJSON(v any) (any, error) {
	switch val := v.(type) {
	case []turn.Attachment:
		if len(val) == 0 {
			return nil, nil
		}
	case []turn.ToolCall:
		if len(val) == 0 {
			return nil, nil
		}
	case []turn.ToolResult:
		if len(val) == 0 {
			return nil, nil
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return string(data), nil
}

func unmarshalJSON(col sql.NullString, dest any) error {
	if !col.Valid || col.String == "" {
		return nil
	}

	return json.Unmarshal([]byte(col.String), dest)
}

// Ensure Driver implements storage.Driver
var _ storage.Driver = (*Driver)(nil)
