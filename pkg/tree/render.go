package tree

import (
	"fmt"
	"strings"

	"github.com/loomworks/loom/pkg/utils"
)

// promptPreviewLen is the maximum prompt preview length in rendered output.
const promptPreviewLen = 50

// Render returns an indented listing of the node and all its descendants,
// one line per node, depth-first with siblings in creation order. Each line
// carries a short node id and a truncated prompt preview. Returns "" if the
// id is unknown.
func (f *Forest) Render(id string) string {
	node := f.nodes[id]
	if node == nil {
		return ""
	}

	var b strings.Builder
	visited := map[string]bool{}

	type frame struct {
		node  *Node
		depth int
	}

	stack := []frame{{node, 0}}
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[fr.node.ID] {
			continue
		}
		visited[fr.node.ID] = true

		fmt.Fprintf(&b, "%s%s  %s\n",
			strings.Repeat("  ", fr.depth),
			shortID(fr.node.ID),
			utils.Truncate(fr.node.Prompt, promptPreviewLen),
		)

		// Reversed push keeps the earliest-created child on top of the stack.
		children := f.children[fr.node.ID]
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{children[i], fr.depth + 1})
		}
	}

	return b.String()
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
