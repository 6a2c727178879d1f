package tree

import (
	"context"
	"fmt"
	"sort"
)

// Loader loads the nodes of one conversation from storage. It is satisfied
// by storage.Driver without creating a package cycle.
type Loader interface {
	// ListConversation returns every node in the conversation, in any order.
	ListConversation(ctx context.Context, conversationID string) ([]*Node, error)
}

// Forest is a derived, read-only view of one conversation's nodes organized
// by parent pointer into zero or more rooted trees.
//
// Nodes are held in a flat id-keyed arena with separately maintained child
// lists; there are no owning references between nodes. All traversal is
// iterative with a visited-set guard, so a corrupted forest (missing parents,
// parent cycles) degrades to partial results instead of looping or crashing.
type Forest struct {
	conversationID string
	nodes          map[string]*Node
	children       map[string][]*Node
	roots          []*Node
}

// Summary aggregates the shape of a conversation's forest.
type Summary struct {
	TotalNodes int `json:"total_nodes"`
	RootCount  int `json:"root_count"`
	LeafCount  int `json:"leaf_count"`
	MaxDepth   int `json:"max_depth"`
}

// Load builds the forest view for a conversation from storage.
func Load(ctx context.Context, loader Loader, conversationID string) (*Forest, error) {
	nodes, err := loader.ListConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing conversation %s: %w", conversationID, err)
	}

	return Build(conversationID, nodes), nil
}

// Build organizes the given nodes into a forest. Sibling lists and roots are
// ordered by creation time (id as tie-break; UUIDv7 ids sort by creation).
func Build(conversationID string, nodes []*Node) *Forest {
	f := &Forest{
		conversationID: conversationID,
		nodes:          make(map[string]*Node, len(nodes)),
		children:       make(map[string][]*Node),
	}

	for _, n := range nodes {
		f.nodes[n.ID] = n
	}

	for _, n := range nodes {
		if n.ParentID == nil {
			f.roots = append(f.roots, n)
			continue
		}
		f.children[*n.ParentID] = append(f.children[*n.ParentID], n)
	}

	sortByCreation(f.roots)
	for _, siblings := range f.children {
		sortByCreation(siblings)
	}

	return f
}

func sortByCreation(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if !nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// ConversationID returns the conversation this forest was loaded for.
func (f *Forest) ConversationID() string {
	return f.conversationID
}

// Get returns the node with the given id, or nil if not present.
func (f *Forest) Get(id string) *Node {
	return f.nodes[id]
}

// Size returns the total number of nodes in the forest.
func (f *Forest) Size() int {
	return len(f.nodes)
}

// AncestorsPath returns the root-to-node id sequence for the given node.
// Returns nil if the id is unknown. A missing parent or a parent cycle ends
// the walk early with the path collected so far.
func (f *Forest) AncestorsPath(id string) []string {
	node := f.nodes[id]
	if node == nil {
		return nil
	}

	visited := map[string]bool{}
	var path []string

	for node != nil && !visited[node.ID] {
		visited[node.ID] = true
		path = append(path, node.ID)

		if node.ParentID == nil {
			break
		}
		node = f.nodes[*node.ParentID]
	}

	// Collected node-first; callers want root-first.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path
}

// Descendants returns all nodes transitively reachable from id via child
// edges, depth-first with siblings in creation order. The node itself is
// excluded. Returns nil if the id is unknown.
func (f *Forest) Descendants(id string) []*Node {
	if f.nodes[id] == nil {
		return nil
	}

	var result []*Node
	visited := map[string]bool{id: true}

	// Explicit stack instead of recursion; push children reversed so the
	// earliest-created sibling is visited first.
	stack := appendReversed(nil, f.children[id])
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[node.ID] {
			continue
		}
		visited[node.ID] = true

		result = append(result, node)
		stack = appendReversed(stack, f.children[node.ID])
	}

	return result
}

func appendReversed(stack, nodes []*Node) []*Node {
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}
	return stack
}

// Siblings returns the nodes sharing id's parent, excluding id itself,
// in creation order. Returns nil if the id is unknown.
func (f *Forest) Siblings(id string) []*Node {
	node := f.nodes[id]
	if node == nil {
		return nil
	}

	var pool []*Node
	if node.ParentID == nil {
		pool = f.roots
	} else {
		pool = f.children[*node.ParentID]
	}

	var siblings []*Node
	for _, n := range pool {
		if n.ID != id {
			siblings = append(siblings, n)
		}
	}

	return siblings
}

// Depth returns the edge count from id to its root (0 for roots).
// Returns -1 if the id is unknown. A corrupted parent chain yields the depth
// of the walkable portion.
func (f *Forest) Depth(id string) int {
	path := f.AncestorsPath(id)
	if path == nil {
		return -1
	}

	return len(path) - 1
}

// Roots returns the nodes with no parent, in creation order.
func (f *Forest) Roots() []*Node {
	return f.roots
}

// Leaves returns the nodes with zero children, in creation order.
func (f *Forest) Leaves() []*Node {
	var leaves []*Node
	for _, n := range f.nodes {
		if len(f.children[n.ID]) == 0 {
			leaves = append(leaves, n)
		}
	}

	sortByCreation(leaves)
	return leaves
}

// BranchingFactor returns the mean and max child count over nodes with at
// least one child. Zero-child nodes do not count toward the mean's
// denominator. An empty or leaf-only forest yields (0, 0).
func (f *Forest) BranchingFactor() (mean float64, max int) {
	total, parents := 0, 0
	for id := range f.nodes {
		n := len(f.children[id])
		if n == 0 {
			continue
		}

		total += n
		parents++
		if n > max {
			max = n
		}
	}

	if parents == 0 {
		return 0, 0
	}

	return float64(total) / float64(parents), max
}

// Summary aggregates node, root, and leaf counts plus the maximum depth
// reached across all roots.
func (f *Forest) Summary() Summary {
	s := Summary{
		TotalNodes: len(f.nodes),
		RootCount:  len(f.roots),
		LeafCount:  len(f.Leaves()),
	}

	for _, root := range f.roots {
		visited := map[string]bool{}
		type frame struct {
			node  *Node
			depth int
		}

		stack := []frame{{root, 0}}
		for len(stack) > 0 {
			fr := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if visited[fr.node.ID] {
				continue
			}
			visited[fr.node.ID] = true

			if fr.depth > s.MaxDepth {
				s.MaxDepth = fr.depth
			}
			for _, child := range f.children[fr.node.ID] {
				stack = append(stack, frame{child, fr.depth + 1})
			}
		}
	}

	return s
}
