package hash

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loomworks/loom/pkg/canonical"
	"github.com/loomworks/loom/pkg/turn"
)

// deterministicOptionKeys are the generation option keys known to make output
// reproducible. Everything else is excluded from prompt hashing so that
// options which do not change what the model would produce (or that vary per
// call without affecting replayability) do not fragment the tree.
var deterministicOptionKeys = map[string]bool{
	"max_tokens":            true,
	"max_completion_tokens": true,
	"max_output_tokens":     true,
	"stop":                  true,
	"stop_sequences":        true,
	"top_k":                 true,
}

// Prompt computes the digest of everything that deterministically influences
// a model response for one turn.
//
// The digest is built from labeled components, each included only when
// non-empty, joined with "|" and hashed:
//
//	system:<hash>    prompt:<hash>    attachments:<h1,h2,...>
//	tool_calls:<h1,h2,...>    tool_results:<h1,h2,...>    options:<hash>
//
// Per-attachment hashes are sorted before joining, so attachment order is
// irrelevant (attachment content is not). Tool call and tool result hashes
// keep their original order, which is causally meaningful.
func Prompt(ctx turn.PromptContext) (string, error) {
	var components []string

	if ctx.System != "" {
		components = append(components, "system:"+Text(ctx.System))
	}

	if ctx.Prompt != "" {
		components = append(components, "prompt:"+Text(ctx.Prompt))
	}

	if len(ctx.Attachments) > 0 {
		hashes := make([]string, len(ctx.Attachments))
		for i, a := range ctx.Attachments {
			hashes[i] = Attachment(a)
		}
		sort.Strings(hashes)
		components = append(components, "attachments:"+strings.Join(hashes, ","))
	}

	if len(ctx.ToolCalls) > 0 {
		hashes := make([]string, len(ctx.ToolCalls))
		for i, c := range ctx.ToolCalls {
			h, err := ToolCall(c)
			if err != nil {
				return "", err
			}
			hashes[i] = h
		}
		components = append(components, "tool_calls:"+strings.Join(hashes, ","))
	}

	if len(ctx.ToolResults) > 0 {
		hashes := make([]string, len(ctx.ToolResults))
		for i, r := range ctx.ToolResults {
			h, err := ToolResult(r)
			if err != nil {
				return "", err
			}
			hashes[i] = h
		}
		components = append(components, "tool_results:"+strings.Join(hashes, ","))
	}

	if subset := DeterministicOptions(ctx.Options); len(subset) > 0 {
		enc, err := canonical.Encode(subset)
		if err != nil {
			return "", fmt.Errorf("encoding options: %w", err)
		}
		components = append(components, "options:"+Binary(enc))
	}

	return Text(strings.Join(components, "|")), nil
}

// DeterministicOptions filters an options mapping down to the keys that make
// generation reproducible. Temperature is retained solely when it is exactly
// zero; a non-zero temperature means sampled output and is excluded.
func DeterministicOptions(opts turn.Options) turn.Options {
	if len(opts) == 0 {
		return nil
	}

	subset := turn.Options{}
	for k, v := range opts {
		switch {
		case deterministicOptionKeys[k]:
			subset[k] = v
		case k == "temperature" && isZeroNumber(v):
			subset[k] = v
		}
	}

	if len(subset) == 0 {
		return nil
	}

	return subset
}

// isZeroNumber reports whether v is a numeric scalar equal to zero.
func isZeroNumber(v any) bool {
	switch n := v.(type) {
	case float64:
		return n == 0
	case float32:
		return n == 0
	case int:
		return n == 0
	case int32:
		return n == 0
	case int64:
		return n == 0
	case uint:
		return n == 0
	case uint32:
		return n == 0
	case uint64:
		return n == 0
	default:
		return false
	}
}
