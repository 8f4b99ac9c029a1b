// Package llm defines the Provider interface for the language-model extractor
// that turns an order transcript into a loosely structured item list.
//
// A provider wraps a remote or local model API (OpenAI, Anthropic, Gemini,
// a local Ollama instance, ...) behind a single request/response call. The
// response text is untrusted: it may contain prose, markdown fences, partial
// JSON, or nothing useful at all. Callers are expected to parse defensively.
//
// Implementors must be safe for concurrent use and must return promptly when
// the supplied context is cancelled.
package llm

import "context"

// Message is a single message in a completion request.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically the
	// "user" prompt that drives the response.
	Messages []Message

	// SystemPrompt is an optional instruction sent before Messages. Providers
	// without a dedicated system field prepend it as a "system" message.
	SystemPrompt string

	// Temperature controls output randomness. Extraction uses 0.0 for greedy
	// decoding.
	Temperature float64

	// MaxTokens caps the number of generated tokens. Zero means provider default.
	MaxTokens int

	// TopP is the nucleus sampling mass. Zero means provider default.
	TopP float64

	// ResponseSchema, when set, asks the backend to constrain its answer to
	// a JSON schema. Backends without structured output ignore it, so the
	// answer must still be parsed defensively.
	ResponseSchema *ResponseSchema
}

// ResponseSchema names a JSON schema for structured output.
type ResponseSchema struct {
	// Name identifies the schema to the backend. Letters, digits,
	// underscores and dashes only.
	Name string

	// Schema is the JSON schema document. Its top level must be an object.
	Schema map[string]any
}

// CompletionResponse is returned by [Provider.Complete].
type CompletionResponse struct {
	// Content is the full text of the model's reply.
	Content string

	// FinishReason is the backend's stop reason, e.g. "stop". A value of
	// [FinishLength] means the answer was cut off at MaxTokens.
	FinishReason string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// FinishLength is the finish reason reported when generation hit MaxTokens.
const FinishLength = "length"

// Provider is the abstraction over any LLM backend used for extraction.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// Returns an error on transport failure, an empty model answer, or when
	// ctx is cancelled or its deadline expires before the completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Prompt is a convenience constructor for a single-turn user request.
func Prompt(text string) CompletionRequest {
	return CompletionRequest{
		Messages: []Message{{Role: "user", Content: text}},
	}
}
