// Package eventstream defines transport-neutral events emitted when nodes
// are persisted, plus the Publisher interface backends implement.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/pkg/tree"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeNodePersisted is emitted after a response node is persisted.
	EventTypeNodePersisted = "loom.node.persisted"
)

// NodePersistedEvent is a transport-neutral event payload for a persisted
// response node. It carries hashes and linkage only, never prompt or
// response text.
type NodePersistedEvent struct {
	SchemaVersion  int       `json:"schema_version"`
	EventType      string    `json:"event_type"`
	EventID        string    `json:"event_id"`
	EmittedAt      time.Time `json:"emitted_at"`
	ConversationID string    `json:"conversation_id"`
	NodeID         string    `json:"node_id"`
	ParentID       *string   `json:"parent_id,omitempty"`
	PromptHash     string    `json:"prompt_hash"`
	ResponseHash   string    `json:"response_hash"`
	PathHash       string    `json:"path_hash"`
}

// NewNodePersistedEvent builds the event for a freshly persisted node.
func NewNodePersistedEvent(node *tree.Node, emittedAt time.Time) *NodePersistedEvent {
	return &NodePersistedEvent{
		SchemaVersion:  SchemaVersionV1,
		EventType:      EventTypeNodePersisted,
		EventID:        uuid.NewString(),
		EmittedAt:      emittedAt,
		ConversationID: node.ConversationID,
		NodeID:         node.ID,
		ParentID:       node.ParentID,
		PromptHash:     node.PromptHash,
		ResponseHash:   node.ResponseHash,
		PathHash:       node.PathHash,
	}
}
