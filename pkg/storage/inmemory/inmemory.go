// Package inmemory provides a map-backed storage driver, used by tests and
// as a reference implementation of the storage contract.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/loomworks/loom/pkg/storage"
	"github.com/loomworks/loom/pkg/tree"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards the node arena and conversation map
	mu sync.RWMutex

	// nodes is the flat id-keyed arena of response nodes
	nodes map[string]*tree.Node

	// conversations holds conversation metadata keyed by id
	conversations map[string]*tree.Conversation
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		nodes:         make(map[string]*tree.Node),
		conversations: make(map[string]*tree.Conversation),
	}
}

// Insert stores a node, creating its conversation on first use.
func (s *Driver) Insert(_ context.Context, node *tree.Node) error {
	if node == nil {
		return errors.New("cannot store nil node")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[node.ID]; ok {
		return storage.DuplicateIDError{ID: node.ID}
	}

	if node.ParentID != nil {
		parent, ok := s.nodes[*node.ParentID]
		if !ok {
			return storage.IntegrityError{Reason: "parent " + *node.ParentID + " does not exist"}
		}
		if parent.ConversationID != node.ConversationID {
			return storage.IntegrityError{Reason: "parent " + *node.ParentID + " belongs to another conversation"}
		}
	}

	if _, ok := s.conversations[node.ConversationID]; !ok {
		s.conversations[node.ConversationID] = &tree.Conversation{ID: node.ConversationID}
	}

	s.nodes[node.ID] = node
	return nil
}

// Get retrieves a node by id.
func (s *Driver) Get(_ context.Context, id string) (*tree.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return node, nil
}

// Children returns the nodes with the given parent within a conversation,
// in creation order. A nil parentID selects the conversation's roots.
func (s *Driver) Children(_ context.Context, conversationID string, parentID *string) ([]*tree.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*tree.Node
	for _, node := range s.nodes {
		if node.ConversationID != conversationID {
			continue
		}
		if sameParent(node.ParentID, parentID) {
			result = append(result, node)
		}
	}

	sortByCreation(result)
	return result, nil
}

// FindMatch returns the earliest node matching the exact triple.
func (s *Driver) FindMatch(_ context.Context, conversationID string, parentID *string, promptHash string) (*tree.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*tree.Node
	for _, node := range s.nodes {
		if node.ConversationID != conversationID {
			continue
		}
		if node.PromptHash == promptHash && sameParent(node.ParentID, parentID) {
			candidates = append(candidates, node)
		}
	}

	if len(candidates) == 0 {
		return nil, storage.NotFoundError{}
	}

	sortByCreation(candidates)
	return candidates[0], nil
}

// FindByPathHash returns the earliest node carrying the given path hash.
func (s *Driver) FindByPathHash(_ context.Context, pathHash string) (*tree.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*tree.Node
	for _, node := range s.nodes {
		if node.PathHash == pathHash {
			candidates = append(candidates, node)
		}
	}

	if len(candidates) == 0 {
		return nil, storage.NotFoundError{}
	}

	sortByCreation(candidates)
	return candidates[0], nil
}

// ListConversation returns every node in a conversation.
func (s *Driver) ListConversation(_ context.Context, conversationID string) ([]*tree.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*tree.Node
	for _, node := range s.nodes {
		if node.ConversationID == conversationID {
			result = append(result, node)
		}
	}

	sortByCreation(result)
	return result, nil
}

// Conversations returns all known conversations.
func (s *Driver) Conversations(_ context.Context) ([]*tree.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*tree.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		result = append(result, conv)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// UpsertConversation sets a conversation's display name and model id.
func (s *Driver) UpsertConversation(_ context.Context, conv *tree.Conversation) error {
	if conv == nil || conv.ID == "" {
		return errors.New("conversation id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conv.ID] = conv
	return nil
}

// Count returns the number of nodes in the store.
func (s *Driver) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortByCreation(nodes []*tree.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if !nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// Ensure Driver implements storage.Driver
var _ storage.Driver = (*Driver)(nil)
