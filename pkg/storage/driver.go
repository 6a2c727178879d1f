// Package storage defines the persistence interface for the conversation
// tree store and the typed errors shared by its backends.
package storage

import (
	"context"

	"github.com/loomworks/loom/pkg/tree"
)

// Driver persists and retrieves response nodes scoped by conversation.
//
// Implementations must keep every insert atomic (a node is fully visible or
// not at all) and must support the lookups the matcher depends on:
// (conversation, parent, prompt hash) and path hash. Distinct conversations
// may be written concurrently; per-conversation writes are expected to be
// low-concurrency and interactive.
type Driver interface {
	// Insert stores a node. The node's conversation is created implicitly
	// on first insert. Fails with DuplicateIDError if the id already exists,
	// and with IntegrityError if the parent is missing or belongs to a
	// different conversation. Never overwrites.
	Insert(ctx context.Context, node *tree.Node) error

	// Get retrieves a node by id. Fails with NotFoundError if absent.
	Get(ctx context.Context, id string) (*tree.Node, error)

	// Children returns the nodes with the given parent within a
	// conversation, ordered by creation time (id as tie-break). A nil
	// parentID selects the conversation's roots.
	Children(ctx context.Context, conversationID string, parentID *string) ([]*tree.Node, error)

	// FindMatch returns the node matching the exact (conversation, parent,
	// prompt hash) triple. When several divergent siblings share the triple
	// the earliest by creation time wins, node id breaking exact timestamp
	// ties; this tie-break is part of the contract. Fails with NotFoundError
	// when no node matches.
	FindMatch(ctx context.Context, conversationID string, parentID *string, promptHash string) (*tree.Node, error)

	// FindByPathHash returns the earliest node carrying the given path
	// hash. Multiple nodes may legitimately share one only as alternate
	// branches identical up to and including themselves. Fails with
	// NotFoundError when no node matches.
	FindByPathHash(ctx context.Context, pathHash string) (*tree.Node, error)

	// ListConversation returns every node in a conversation.
	ListConversation(ctx context.Context, conversationID string) ([]*tree.Node, error)

	// Conversations returns all known conversations.
	Conversations(ctx context.Context) ([]*tree.Conversation, error)

	// UpsertConversation sets a conversation's display name and model id.
	UpsertConversation(ctx context.Context, conv *tree.Conversation) error

	// Close closes the store and releases any resources.
	Close() error
}
