package llm

// Usage contains token counts reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AggregatedResult is the answer reconstructed from a provider stream.
// During aggregation Content only ever grows; once IsComplete is set the
// result is treated as immutable.
type AggregatedResult struct {
	// Content is the ordered concatenation of every delta seen so far.
	Content string `json:"content"`

	// Model is the requested model, or the last name the provider echoed.
	Model string `json:"model"`

	// Usage is the last usage report seen, if any.
	Usage *Usage `json:"usage,omitempty"`

	// IsComplete is set once the terminal marker has been consumed.
	IsComplete bool `json:"isComplete"`
}

// Clone returns a deep copy, so a snapshot handed to a cache or a caller
// shares nothing with the in-flight aggregation.
func (r AggregatedResult) Clone() AggregatedResult {
	if r.Usage != nil {
		u := *r.Usage
		r.Usage = &u
	}
	return r
}

// ErrorResponse is the JSON body returned by the HTTP layer on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
