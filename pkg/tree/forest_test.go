package tree_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/tree"
)

// buildForestFixture builds the concrete forest root -> {a, b}, a -> {c, d},
// b -> {e} with strictly increasing creation times.
func buildForestFixture() (forest *tree.Forest, nodes map[string]*tree.Node) {
	nodes = map[string]*tree.Node{}
	at := baseTime

	mk := func(name string, parent *tree.Node) *tree.Node {
		at = at.Add(time.Second)
		n, err := tree.NewNode("c1", parent, textContext("prompt "+name), "response "+name, at)
		Expect(err).NotTo(HaveOccurred())
		nodes[name] = n
		return n
	}

	root := mk("root", nil)
	a := mk("a", root)
	b := mk("b", root)
	mk("c", a)
	mk("d", a)
	mk("e", b)

	all := make([]*tree.Node, 0, len(nodes))
	for _, n := range nodes {
		all = append(all, n)
	}

	return tree.Build("c1", all), nodes
}

var _ = Describe("Forest", func() {
	var forest *tree.Forest
	var nodes map[string]*tree.Node

	BeforeEach(func() {
		forest, nodes = buildForestFixture()
	})

	Describe("AncestorsPath", func() {
		It("returns the root-to-node id sequence", func() {
			path := forest.AncestorsPath(nodes["c"].ID)

			Expect(path).To(Equal([]string{
				nodes["root"].ID, nodes["a"].ID, nodes["c"].ID,
			}))
		})

		It("returns just the id for a root", func() {
			Expect(forest.AncestorsPath(nodes["root"].ID)).To(Equal([]string{nodes["root"].ID}))
		})

		It("returns nil for an unknown id", func() {
			Expect(forest.AncestorsPath("missing")).To(BeNil())
		})
	})

	Describe("Depth", func() {
		It("counts edges from the node to its root", func() {
			Expect(forest.Depth(nodes["root"].ID)).To(Equal(0))
			Expect(forest.Depth(nodes["a"].ID)).To(Equal(1))
			Expect(forest.Depth(nodes["c"].ID)).To(Equal(2))
		})

		It("returns -1 for an unknown id", func() {
			Expect(forest.Depth("missing")).To(Equal(-1))
		})
	})

	Describe("Descendants", func() {
		It("returns all transitively reachable nodes depth-first", func() {
			ids := idsOf(forest.Descendants(nodes["root"].ID))

			Expect(ids).To(Equal([]string{
				nodes["a"].ID, nodes["c"].ID, nodes["d"].ID,
				nodes["b"].ID, nodes["e"].ID,
			}))
		})

		It("returns nothing for a leaf", func() {
			Expect(forest.Descendants(nodes["e"].ID)).To(BeEmpty())
		})
	})

	Describe("Siblings", func() {
		It("returns nodes sharing the parent, excluding self, in creation order", func() {
			Expect(idsOf(forest.Siblings(nodes["c"].ID))).To(Equal([]string{nodes["d"].ID}))
			Expect(idsOf(forest.Siblings(nodes["a"].ID))).To(Equal([]string{nodes["b"].ID}))
		})

		It("returns no siblings for an only root", func() {
			Expect(forest.Siblings(nodes["root"].ID)).To(BeEmpty())
		})
	})

	Describe("Roots", func() {
		It("returns the parentless nodes", func() {
			Expect(idsOf(forest.Roots())).To(Equal([]string{nodes["root"].ID}))
		})
	})

	Describe("Leaves", func() {
		It("returns the nodes with zero children, in creation order", func() {
			Expect(idsOf(forest.Leaves())).To(Equal([]string{
				nodes["c"].ID, nodes["d"].ID, nodes["e"].ID,
			}))
		})
	})

	Describe("BranchingFactor", func() {
		It("averages over nodes with at least one child", func() {
			mean, max := forest.BranchingFactor()

			// root, a, and b have children: (2+2+1)/3
			Expect(mean).To(BeNumerically("~", 5.0/3.0, 1e-9))
			Expect(max).To(Equal(2))
		})

		It("yields zero for a leaf-only forest", func() {
			single, err := tree.NewNode("c2", nil, textContext("alone"), "r", baseTime)
			Expect(err).NotTo(HaveOccurred())

			mean, max := tree.Build("c2", []*tree.Node{single}).BranchingFactor()
			Expect(mean).To(BeZero())
			Expect(max).To(BeZero())
		})
	})

	Describe("Summary", func() {
		It("aggregates node, root, and leaf counts plus max depth", func() {
			s := forest.Summary()

			Expect(s.TotalNodes).To(Equal(6))
			Expect(s.RootCount).To(Equal(1))
			Expect(s.LeafCount).To(Equal(3))
			Expect(s.MaxDepth).To(Equal(2))
		})
	})

	Describe("cycle safety", func() {
		It("terminates AncestorsPath on a corrupted parent cycle", func() {
			xID, yID := "node-x", "node-y"
			x := &tree.Node{ID: xID, ConversationID: "bad", ParentID: &yID, Prompt: "x", CreatedAt: baseTime}
			y := &tree.Node{ID: yID, ConversationID: "bad", ParentID: &xID, Prompt: "y", CreatedAt: baseTime.Add(time.Second)}

			corrupted := tree.Build("bad", []*tree.Node{x, y})

			path := corrupted.AncestorsPath(xID)
			Expect(path).To(HaveLen(2))
		})

		It("terminates Descendants and Summary on a corrupted parent cycle", func() {
			xID, yID := "node-x", "node-y"
			x := &tree.Node{ID: xID, ConversationID: "bad", ParentID: &yID, Prompt: "x", CreatedAt: baseTime}
			y := &tree.Node{ID: yID, ConversationID: "bad", ParentID: &xID, Prompt: "y", CreatedAt: baseTime.Add(time.Second)}

			corrupted := tree.Build("bad", []*tree.Node{x, y})

			Expect(func() { corrupted.Descendants(xID) }).NotTo(Panic())
			Expect(corrupted.Summary().TotalNodes).To(Equal(2))
		})

		It("stops an ancestors walk at a missing parent", func() {
			missing := "gone"
			orphan := &tree.Node{ID: "orphan", ConversationID: "bad", ParentID: &missing, Prompt: "o", CreatedAt: baseTime}

			corrupted := tree.Build("bad", []*tree.Node{orphan})

			Expect(corrupted.AncestorsPath("orphan")).To(Equal([]string{"orphan"}))
		})
	})
})

var _ = Describe("Render", func() {
	It("lists the node and its descendants with indentation", func() {
		forest, nodes := buildForestFixture()

		out := forest.Render(nodes["root"].ID)
		lines := nonEmptyLines(out)

		Expect(lines).To(HaveLen(6))
		Expect(lines[0]).To(ContainSubstring("prompt root"))
		Expect(lines[1]).To(HavePrefix("  "))
		Expect(lines[1]).To(ContainSubstring("prompt a"))
		Expect(lines[2]).To(HavePrefix("    "))
		Expect(lines[2]).To(ContainSubstring("prompt c"))
	})

	It("truncates long prompts to a 50 character preview", func() {
		long := "This prompt is definitely much longer than fifty characters in total length"
		node, err := tree.NewNode("c1", nil, textContext(long), "r", baseTime)
		Expect(err).NotTo(HaveOccurred())

		forest := tree.Build("c1", []*tree.Node{node})
		out := forest.Render(node.ID)

		Expect(out).To(ContainSubstring(long[:50] + "..."))
		Expect(out).NotTo(ContainSubstring(long))
	})

	It("returns an empty string for an unknown id", func() {
		forest, _ := buildForestFixture()

		Expect(forest.Render("missing")).To(BeEmpty())
	})
})

func idsOf(nodes []*tree.Node) []string {
	if len(nodes) == 0 {
		return nil
	}

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
