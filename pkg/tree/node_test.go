package tree_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/hash"
	"github.com/loomworks/loom/pkg/tree"
	"github.com/loomworks/loom/pkg/turn"
)

func TestTree(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Tree Suite")
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func textContext(prompt string) turn.PromptContext {
	return turn.PromptContext{Prompt: prompt}
}

var _ = Describe("NewNode", func() {
	Context("when creating a root node (no parent)", func() {
		It("has no parent and a path hash equal to its prompt hash", func() {
			node, err := tree.NewNode("c1", nil, textContext("Hello"), "Hi!", baseTime)
			Expect(err).NotTo(HaveOccurred())

			Expect(node.ParentID).To(BeNil())
			Expect(node.PathHash).To(Equal(node.PromptHash))
		})

		It("computes a valid SHA-256 hex prompt hash", func() {
			node, err := tree.NewNode("c1", nil, textContext("Hello"), "Hi!", baseTime)
			Expect(err).NotTo(HaveOccurred())

			Expect(node.PromptHash).To(HaveLen(64))
			Expect(node.PromptHash).To(MatchRegexp("^[a-f0-9]{64}$"))
		})

		It("hashes the response separately from the prompt", func() {
			a, err := tree.NewNode("c1", nil, textContext("Hello"), "Hi!", baseTime)
			Expect(err).NotTo(HaveOccurred())

			b, err := tree.NewNode("c1", nil, textContext("Hello"), "Hey there!", baseTime)
			Expect(err).NotTo(HaveOccurred())

			Expect(a.PromptHash).To(Equal(b.PromptHash))
			Expect(a.ResponseHash).NotTo(Equal(b.ResponseHash))
			Expect(a.ResponseHash).To(Equal(hash.Text("Hi!")))
		})

		It("assigns unique, creation-order sortable ids", func() {
			a, err := tree.NewNode("c1", nil, textContext("first"), "1", baseTime)
			Expect(err).NotTo(HaveOccurred())

			b, err := tree.NewNode("c1", nil, textContext("second"), "2", baseTime)
			Expect(err).NotTo(HaveOccurred())

			Expect(a.ID).NotTo(Equal(b.ID))
			Expect(a.ID < b.ID).To(BeTrue())
		})
	})

	Context("when creating a child node", func() {
		var parent *tree.Node

		BeforeEach(func() {
			var err error
			parent, err = tree.NewNode("c1", nil, textContext("Hello"), "Hi!", baseTime)
			Expect(err).NotTo(HaveOccurred())
		})

		It("links to the parent and chains the path hash", func() {
			child, err := tree.NewNode("c1", parent, textContext("How are you?"), "Good!", baseTime.Add(time.Second))
			Expect(err).NotTo(HaveOccurred())

			Expect(child.ParentID).NotTo(BeNil())
			Expect(*child.ParentID).To(Equal(parent.ID))
			Expect(child.PathHash).To(Equal(hash.Path(&parent.PathHash, child.PromptHash)))
		})

		It("keeps the prompt hash independent of the parent", func() {
			other, err := tree.NewNode("c1", nil, textContext("Different root"), "ok", baseTime)
			Expect(err).NotTo(HaveOccurred())

			child1, err := tree.NewNode("c1", parent, textContext("Same prompt"), "r", baseTime)
			Expect(err).NotTo(HaveOccurred())
			child2, err := tree.NewNode("c1", other, textContext("Same prompt"), "r", baseTime)
			Expect(err).NotTo(HaveOccurred())

			Expect(child1.PromptHash).To(Equal(child2.PromptHash))
			Expect(child1.PathHash).NotTo(Equal(child2.PathHash))
		})

		It("rejects a parent from another conversation", func() {
			_, err := tree.NewNode("c2", parent, textContext("cross"), "r", baseTime)

			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("NewSibling", func() {
	It("shares the prompt hash and path hash, differing in response hash", func() {
		parent, err := tree.NewNode("c1", nil, textContext("Hello"), "Hi!", baseTime)
		Expect(err).NotTo(HaveOccurred())

		existing, err := tree.NewNode("c1", parent, textContext("Tell me a joke"), "R1", baseTime.Add(time.Second))
		Expect(err).NotTo(HaveOccurred())

		sibling, err := tree.NewSibling(existing, parent, "R2", baseTime.Add(2*time.Second))
		Expect(err).NotTo(HaveOccurred())

		Expect(sibling.ID).NotTo(Equal(existing.ID))
		Expect(sibling.ParentID).To(Equal(existing.ParentID))
		Expect(sibling.PromptHash).To(Equal(existing.PromptHash))
		Expect(sibling.PathHash).To(Equal(existing.PathHash))
		Expect(sibling.ResponseHash).NotTo(Equal(existing.ResponseHash))
	})

	It("branches a root without a parent", func() {
		existing, err := tree.NewNode("c1", nil, textContext("Hello"), "Hi!", baseTime)
		Expect(err).NotTo(HaveOccurred())

		sibling, err := tree.NewSibling(existing, nil, "Howdy!", baseTime.Add(time.Second))
		Expect(err).NotTo(HaveOccurred())

		Expect(sibling.ParentID).To(BeNil())
		Expect(sibling.PathHash).To(Equal(existing.PathHash))
	})

	It("rejects a mismatched parent", func() {
		parent, err := tree.NewNode("c1", nil, textContext("Hello"), "Hi!", baseTime)
		Expect(err).NotTo(HaveOccurred())

		existing, err := tree.NewNode("c1", parent, textContext("Next"), "R1", baseTime.Add(time.Second))
		Expect(err).NotTo(HaveOccurred())

		_, err = tree.NewSibling(existing, nil, "R2", baseTime.Add(2*time.Second))
		Expect(err).To(HaveOccurred())
	})
})
