// Package tree defines the persisted conversation model: response nodes
// linked into a forest by parent pointers, scoped by conversation, with
// content-addressed prompt, response, and path hashes.
package tree

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/pkg/hash"
	"github.com/loomworks/loom/pkg/turn"
)

// Conversation is a named scope grouping one or more trees of turns.
// It is created implicitly when its first node is inserted.
type Conversation struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	ModelID string `json:"model_id,omitempty"`
}

// Node is one recorded turn: a prompt context plus the realized response.
//
// A node is created once and is immutable thereafter; corrections are
// represented as new sibling nodes, never updates. Multiple nodes may share
// (conversation, parent, prompt hash) — that is a divergent branch (same
// input, different realized response), not an error.
type Node struct {
	// ID is globally unique and creation-order sortable (UUIDv7).
	ID string `json:"id"`

	// ConversationID scopes the node to its conversation.
	ConversationID string `json:"conversation_id"`

	// ParentID links to the previous turn. Nil for tree roots.
	ParentID *string `json:"parent_id"`

	// System is the optional system text in effect for this turn.
	System string `json:"system,omitempty"`

	// Prompt is the user prompt text.
	Prompt string `json:"prompt"`

	// Attachments are the prompt's attachment descriptors, in caller order.
	Attachments []turn.Attachment `json:"attachments,omitempty"`

	// ToolCalls are the tool invocations carried over from the prior turn.
	ToolCalls []turn.ToolCall `json:"tool_calls,omitempty"`

	// ToolResults are the tool outcomes feeding this turn.
	ToolResults []turn.ToolResult `json:"tool_results,omitempty"`

	// Response is the realized model response text.
	Response string `json:"response"`

	// PromptHash digests everything that causally influenced the response.
	// It is independent of ID, CreatedAt, and parent linkage.
	PromptHash string `json:"prompt_hash"`

	// ResponseHash digests the response text alone.
	ResponseHash string `json:"response_hash"`

	// PathHash is the cumulative digest of the full root-to-node history.
	PathHash string `json:"path_hash"`

	// CreatedAt records insertion time from the injected clock.
	CreatedAt time.Time `json:"created_at"`
}

// NewNode creates an immutable node for one resolved turn, computing its
// prompt, response, and path hashes. The parent must belong to the same
// conversation (nil parent makes the node a tree root). The caller supplies
// the creation timestamp so clocks stay injectable.
func NewNode(conversationID string, parent *Node, ctx turn.PromptContext, response string, createdAt time.Time) (*Node, error) {
	if parent != nil && parent.ConversationID != conversationID {
		return nil, fmt.Errorf("parent %s belongs to conversation %s, not %s",
			parent.ID, parent.ConversationID, conversationID)
	}

	promptHash, err := hash.Prompt(ctx)
	if err != nil {
		return nil, fmt.Errorf("hashing prompt: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating node id: %w", err)
	}

	n := &Node{
		ID:             id.String(),
		ConversationID: conversationID,
		System:         ctx.System,
		Prompt:         ctx.Prompt,
		Attachments:    ctx.Attachments,
		ToolCalls:      ctx.ToolCalls,
		ToolResults:    ctx.ToolResults,
		Response:       response,
		PromptHash:     promptHash,
		ResponseHash:   hash.Text(response),
		CreatedAt:      createdAt,
	}

	var parentPath *string
	if parent != nil {
		n.ParentID = &parent.ID
		parentPath = &parent.PathHash
	}
	n.PathHash = hash.Path(parentPath, promptHash)

	return n, nil
}

// NewSibling creates a divergent branch: a new node under the same parent as
// existing, carrying the same prompt context and prompt hash but a different
// realized response. The pair then shares (conversation, parent, prompt
// hash) while differing in response hash, which the store permits by design.
func NewSibling(existing *Node, parent *Node, response string, createdAt time.Time) (*Node, error) {
	if existing == nil {
		return nil, fmt.Errorf("existing node is required")
	}
	if parent != nil && (existing.ParentID == nil || parent.ID != *existing.ParentID) {
		return nil, fmt.Errorf("parent does not match existing node's parent")
	}
	if parent == nil && existing.ParentID != nil {
		return nil, fmt.Errorf("existing node %s is not a root", existing.ID)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating node id: %w", err)
	}

	n := &Node{
		ID:             id.String(),
		ConversationID: existing.ConversationID,
		ParentID:       existing.ParentID,
		System:         existing.System,
		Prompt:         existing.Prompt,
		Attachments:    existing.Attachments,
		ToolCalls:      existing.ToolCalls,
		ToolResults:    existing.ToolResults,
		Response:       response,
		PromptHash:     existing.PromptHash,
		ResponseHash:   hash.Text(response),
		CreatedAt:      createdAt,
	}

	var parentPath *string
	if parent != nil {
		parentPath = &parent.PathHash
	}
	n.PathHash = hash.Path(parentPath, existing.PromptHash)

	return n, nil
}

// Context reassembles the prompt context this node was created from.
// Options are not persisted; only their deterministic subset participated in
// the prompt hash at creation time.
func (n *Node) Context() turn.PromptContext {
	return turn.PromptContext{
		System:      n.System,
		Prompt:      n.Prompt,
		Attachments: n.Attachments,
		ToolCalls:   n.ToolCalls,
		ToolResults: n.ToolResults,
	}
}

// IsRoot reports whether the node starts a tree within its conversation.
func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}
