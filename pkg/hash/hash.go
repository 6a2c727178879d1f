// Package hash computes the content-addressed digests used throughout the
// store: content hashes for text, binary blobs, attachments, tool calls and
// tool results; prompt hashes covering everything that causally influences a
// model response; and cumulative path hashes identifying a whole root-to-node
// history.
//
// All digests are SHA-256, hex-encoded (64 characters).
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/loomworks/loom/pkg/canonical"
	"github.com/loomworks/loom/pkg/turn"
)

// EmptyAttachment is the sentinel returned for an attachment with no inline
// content, URL, or path.
const EmptyAttachment = "empty"

// Text returns the digest of the UTF-8 bytes of s.
func Text(s string) string {
	return Binary([]byte(s))
}

// Binary returns the digest of raw bytes.
func Binary(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// Attachment returns a tagged digest for an attachment descriptor.
//
// Inline content is hashed directly and tagged "content:". Otherwise the URL
// or local path string is hashed and tagged "url:" or "path:" respectively.
// Reference-tagged hashes are stable even when the reference is unreachable,
// but they will not detect that the referenced content changed; callers that
// need content stability must resolve attachments to inline bytes first.
func Attachment(a turn.Attachment) string {
	switch {
	case len(a.Content) > 0:
		return "content:" + Binary(a.Content)
	case a.URL != "":
		return "url:" + Text(a.URL)
	case a.Path != "":
		return "path:" + Text(a.Path)
	default:
		return EmptyAttachment
	}
}

// ToolCall returns the digest of a tool call's name and arguments.
// The arguments mapping is canonically encoded so key order is irrelevant.
func ToolCall(c turn.ToolCall) (string, error) {
	enc, err := canonical.Encode(map[string]any{
		"name":      c.Name,
		"arguments": c.Arguments,
	})
	if err != nil {
		return "", fmt.Errorf("encoding tool call %q: %w", c.Name, err)
	}

	return Binary(enc), nil
}

// ToolResult returns the digest of a tool result's name, output text, and
// per-attachment hashes (when attachments are present).
func ToolResult(r turn.ToolResult) (string, error) {
	payload := map[string]any{
		"name":   r.Name,
		"output": r.Output,
	}

	if len(r.Attachments) > 0 {
		hashes := make([]string, len(r.Attachments))
		for i, a := range r.Attachments {
			hashes[i] = Attachment(a)
		}
		payload["attachments"] = hashes
	}

	enc, err := canonical.Encode(payload)
	if err != nil {
		return "", fmt.Errorf("encoding tool result %q: %w", r.Name, err)
	}

	return Binary(enc), nil
}
