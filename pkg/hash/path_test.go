package hash_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/hash"
)

var _ = Describe("Path", func() {
	It("returns the prompt hash unchanged for roots", func() {
		h := hash.Text("some prompt")

		Expect(hash.Path(nil, h)).To(Equal(h))
	})

	It("derives a new hash for non-roots", func() {
		parent := hash.Text("parent history")
		own := hash.Text("own prompt")

		Expect(hash.Path(&parent, own)).NotTo(Equal(own))
		Expect(hash.Path(&parent, own)).NotTo(Equal(parent))
	})

	It("converges for identical full histories", func() {
		parent := hash.Text("shared history")
		own := hash.Text("shared prompt")

		Expect(hash.Path(&parent, own)).To(Equal(hash.Path(&parent, own)))
	})

	It("keeps all accumulated values distinct along a chain", func() {
		const n = 16

		seen := map[string]bool{}
		var cumulative *string

		for i := 0; i < n; i++ {
			promptHash := hash.Text(fmt.Sprintf("prompt %d", i))
			next := hash.Path(cumulative, promptHash)

			if i == 0 {
				Expect(next).To(Equal(promptHash))
			}

			Expect(seen[next]).To(BeFalse(), "cumulative hash %d collided", i)
			seen[next] = true
			cumulative = &next
		}

		Expect(seen).To(HaveLen(n))
	})

	It("diverges from the point of a changed input onward", func() {
		p1 := hash.Text("turn 1")
		p2 := hash.Text("turn 2")
		p2alt := hash.Text("turn 2 changed")
		p3 := hash.Text("turn 3")

		path2 := hash.Path(&p1, p2)
		path2alt := hash.Path(&p1, p2alt)
		Expect(path2).NotTo(Equal(path2alt))

		path3 := hash.Path(&path2, p3)
		path3alt := hash.Path(&path2alt, p3)
		Expect(path3).NotTo(Equal(path3alt))
	})
})
