// Package llm holds the provider-agnostic types that flow through the relay:
// the completion request, the parsed stream events, and the aggregated result.
package llm

// DefaultModel is the model used when a request does not name one.
const DefaultModel = "deepseek-chat"

// CompletionRequest is a single-turn chat completion request.
// It is a value type: build it once with NewCompletionRequest and pass it by
// value so no callee can mutate the caller's copy.
type CompletionRequest struct {
	// UserMessage is the user's turn, sent verbatim.
	UserMessage string `json:"user_message"`

	// Model is the upstream model ID (e.g., "deepseek-chat").
	Model string `json:"model"`

	// MaxTokens caps the completion length. Zero leaves it to the provider.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature is the sampling temperature.
	Temperature float64 `json:"temperature"`

	// SystemPrompt is prepended as a system message when non-empty.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// RequestOption configures a CompletionRequest built with NewCompletionRequest.
type RequestOption func(*CompletionRequest)

// WithModel sets the model. An empty model keeps DefaultModel.
func WithModel(model string) RequestOption {
	return func(r *CompletionRequest) {
		if model != "" {
			r.Model = model
		}
	}
}

// WithMaxTokens sets the completion token cap.
func WithMaxTokens(n int) RequestOption {
	return func(r *CompletionRequest) {
		r.MaxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) RequestOption {
	return func(r *CompletionRequest) {
		r.Temperature = t
	}
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) RequestOption {
	return func(r *CompletionRequest) {
		r.SystemPrompt = prompt
	}
}

// NewCompletionRequest builds a request for message with the given options.
func NewCompletionRequest(message string, opts ...RequestOption) CompletionRequest {
	req := CompletionRequest{
		UserMessage: message,
		Model:       DefaultModel,
	}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}
