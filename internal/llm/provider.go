package llm

import "context"

//go:generate mockgen -destination=mocks/mock_llm.go -package=mocks . Provider,EventStream

// Provider is the interface all chat-completion backends must implement.
type Provider interface {
	// Complete sends a prompt and returns the whole completion.
	Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error)
	// Stream sends a prompt and returns the completion as a sequence of deltas.
	// The caller must Close the returned stream.
	Stream(ctx context.Context, prompt *Prompt, opts *RequestOptions) (EventStream, error)
	// Name returns the provider identifier (e.g. "openai", "groq").
	Name() string
}

// RequestOptions tunes a single completion request. Nil fields are left to
// the remote API's defaults.
type RequestOptions struct {
	Model       string
	MaxTokens   *int
	Temperature *float64
}
