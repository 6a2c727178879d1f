// Package turn defines the value types describing a single conversation turn:
// the prompt-side context that deterministically influences a model response,
// and the optional realized response text.
//
// These are plain value types consumed by the hashing and resolution layers;
// fetching attachment bytes, calling providers, and rendering output all live
// outside this module.
package turn

// Attachment is an opaque descriptor for non-text content attached to a
// prompt. Exactly one of Content, URL, or Path is normally set; Content wins
// when several are present. An attachment with none of the three is "empty".
type Attachment struct {
	// Content holds inline bytes when the attachment was resolved upfront.
	Content []byte `json:"content,omitempty"`

	// URL references remote content by location.
	URL string `json:"url,omitempty"`

	// Path references content on the local filesystem.
	Path string `json:"path,omitempty"`
}

// ToolCall is a tool invocation requested by the model on the prior turn.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult is the outcome of executing a tool call, fed into this turn.
type ToolResult struct {
	Name        string       `json:"name"`
	Output      string       `json:"output"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Options is a generation options mapping (string keys to scalar values).
// Only a deterministic subset of it participates in prompt hashing; see
// pkg/hash.
type Options map[string]any

// PromptContext is everything that causally influences a model response for
// one turn. It is the input to prompt hashing.
type PromptContext struct {
	System      string
	Prompt      string
	Attachments []Attachment
	ToolCalls   []ToolCall
	ToolResults []ToolResult
	Options     Options
}

// Turn pairs a prompt context with an optional response text.
//
// A nil Response means the caller is continuing a conversation and will
// accept whatever response is already stored at that position. A non-nil
// Response is the expected (or realized) response text for the turn.
type Turn struct {
	Context  PromptContext
	Response *string
}

// NewTurn creates a turn with a plain text prompt and no expected response.
func NewTurn(prompt string) Turn {
	return Turn{Context: PromptContext{Prompt: prompt}}
}

// NewTurnWithResponse creates a turn with a plain text prompt and an expected
// response text.
func NewTurnWithResponse(prompt, response string) Turn {
	return Turn{
		Context:  PromptContext{Prompt: prompt},
		Response: &response,
	}
}
