package hash_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/hash"
	"github.com/loomworks/loom/pkg/turn"
)

var _ = Describe("Prompt", func() {
	It("is deterministic for identical arguments", func() {
		ctx := turn.PromptContext{
			System: "You are terse.",
			Prompt: "Summarize the file",
			Attachments: []turn.Attachment{
				{Content: []byte("file contents")},
			},
			Options: turn.Options{"max_tokens": 256},
		}

		a, err := hash.Prompt(ctx)
		Expect(err).NotTo(HaveOccurred())
		b, err := hash.Prompt(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(a).To(Equal(b))
	})

	It("ignores attachment list order", func() {
		att1 := turn.Attachment{Content: []byte("first")}
		att2 := turn.Attachment{Content: []byte("second")}

		a, err := hash.Prompt(turn.PromptContext{
			Prompt:      "Compare these",
			Attachments: []turn.Attachment{att1, att2},
		})
		Expect(err).NotTo(HaveOccurred())

		b, err := hash.Prompt(turn.PromptContext{
			Prompt:      "Compare these",
			Attachments: []turn.Attachment{att2, att1},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(a).To(Equal(b))
	})

	It("is sensitive to tool call order", func() {
		call1 := turn.ToolCall{Name: "read", Arguments: map[string]any{"path": "a.txt"}}
		call2 := turn.ToolCall{Name: "read", Arguments: map[string]any{"path": "b.txt"}}

		a, err := hash.Prompt(turn.PromptContext{
			Prompt:    "Continue",
			ToolCalls: []turn.ToolCall{call1, call2},
		})
		Expect(err).NotTo(HaveOccurred())

		b, err := hash.Prompt(turn.PromptContext{
			Prompt:    "Continue",
			ToolCalls: []turn.ToolCall{call2, call1},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(a).NotTo(Equal(b))
	})

	It("changes when the prompt text changes", func() {
		a, err := hash.Prompt(turn.PromptContext{Prompt: "Hello"})
		Expect(err).NotTo(HaveOccurred())

		b, err := hash.Prompt(turn.PromptContext{Prompt: "Hello!"})
		Expect(err).NotTo(HaveOccurred())

		Expect(a).NotTo(Equal(b))
	})

	It("changes when a single attachment byte changes", func() {
		a, err := hash.Prompt(turn.PromptContext{
			Prompt:      "Describe",
			Attachments: []turn.Attachment{{Content: []byte("abcd")}},
		})
		Expect(err).NotTo(HaveOccurred())

		b, err := hash.Prompt(turn.PromptContext{
			Prompt:      "Describe",
			Attachments: []turn.Attachment{{Content: []byte("abce")}},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(a).NotTo(Equal(b))
	})

	It("changes when a tool result output changes", func() {
		a, err := hash.Prompt(turn.PromptContext{
			Prompt:      "Continue",
			ToolResults: []turn.ToolResult{{Name: "run", Output: "exit 0"}},
		})
		Expect(err).NotTo(HaveOccurred())

		b, err := hash.Prompt(turn.PromptContext{
			Prompt:      "Continue",
			ToolResults: []turn.ToolResult{{Name: "run", Output: "exit 1"}},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(a).NotTo(Equal(b))
	})

	It("ignores system when empty and includes it when set", func() {
		bare, err := hash.Prompt(turn.PromptContext{Prompt: "Hello"})
		Expect(err).NotTo(HaveOccurred())

		withSystem, err := hash.Prompt(turn.PromptContext{System: "Be brief.", Prompt: "Hello"})
		Expect(err).NotTo(HaveOccurred())

		Expect(bare).NotTo(Equal(withSystem))
	})

	Describe("option filtering", func() {
		It("excludes non-zero temperature", func() {
			warm, err := hash.Prompt(turn.PromptContext{
				Prompt:  "Test",
				Options: turn.Options{"temperature": 0.7},
			})
			Expect(err).NotTo(HaveOccurred())

			warmer, err := hash.Prompt(turn.PromptContext{
				Prompt:  "Test",
				Options: turn.Options{"temperature": 0.9},
			})
			Expect(err).NotTo(HaveOccurred())

			none, err := hash.Prompt(turn.PromptContext{Prompt: "Test"})
			Expect(err).NotTo(HaveOccurred())

			Expect(warm).To(Equal(warmer))
			Expect(warm).To(Equal(none))
		})

		It("retains temperature when exactly zero", func() {
			zero, err := hash.Prompt(turn.PromptContext{
				Prompt:  "Test",
				Options: turn.Options{"temperature": 0.0},
			})
			Expect(err).NotTo(HaveOccurred())

			none, err := hash.Prompt(turn.PromptContext{Prompt: "Test"})
			Expect(err).NotTo(HaveOccurred())

			Expect(zero).NotTo(Equal(none))
		})

		It("retains reproducibility keys", func() {
			limited, err := hash.Prompt(turn.PromptContext{
				Prompt:  "Test",
				Options: turn.Options{"max_tokens": 100},
			})
			Expect(err).NotTo(HaveOccurred())

			none, err := hash.Prompt(turn.PromptContext{Prompt: "Test"})
			Expect(err).NotTo(HaveOccurred())

			Expect(limited).NotTo(Equal(none))
		})

		It("ignores options key order", func() {
			a, err := hash.Prompt(turn.PromptContext{
				Prompt:  "Test",
				Options: turn.Options{"max_tokens": 100, "top_k": 40},
			})
			Expect(err).NotTo(HaveOccurred())

			b, err := hash.Prompt(turn.PromptContext{
				Prompt:  "Test",
				Options: turn.Options{"top_k": 40, "max_tokens": 100},
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(a).To(Equal(b))
		})
	})
})

var _ = Describe("DeterministicOptions", func() {
	It("drops unknown keys", func() {
		subset := hash.DeterministicOptions(turn.Options{
			"presence_penalty": 1.5,
			"user":             "someone",
			"top_k":            40,
		})

		Expect(subset).To(HaveLen(1))
		Expect(subset).To(HaveKey("top_k"))
	})

	It("returns nil for an empty or fully filtered mapping", func() {
		Expect(hash.DeterministicOptions(nil)).To(BeNil())
		Expect(hash.DeterministicOptions(turn.Options{"temperature": 1.0})).To(BeNil())
	})

	It("treats integer zero temperature as zero", func() {
		subset := hash.DeterministicOptions(turn.Options{"temperature": 0})

		Expect(subset).To(HaveKey("temperature"))
	})
})
