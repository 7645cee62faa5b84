// Package braidtypes defines LLM client abstractions for braid.
// This file contains the streaming contract and the provider client
// interface implemented by internal/llm.
package braidtypes

import "context"

// TokenUsage reports provider-measured token consumption for a request.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamChunk represents a single chunk of a streaming response.
// The final chunk has Done=true and may carry usage information; a
// failed stream delivers its error on the final chunk.
type StreamChunk struct {
	Content string
	Done    bool
	Usage   *TokenUsage
	Error   error
}

// CompletionRequest is the payload handed to a provider client. The
// prompt builder produces Messages and System; the orchestration core
// treats all providers uniformly through this shape.
type CompletionRequest struct {
	Messages  []APIMessage
	System    string
	MaxTokens int
}

// LLMClient is the interface implemented by each provider adapter.
// Clients are stateless: they receive a fully assembled request and
// return a response. They never maintain history, perform retrieval,
// or trigger summarization.
//
// The context governs cancellation and deadlines for the underlying
// network call; an in-flight stream stops delivering chunks once the
// context is cancelled.
type LLMClient interface {
	// Complete sends a request and returns the full response text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Stream sends a request and returns a channel of response chunks.
	// The channel is closed after the final (Done=true) chunk.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// ProviderName returns the provider identifier (e.g. "anthropic").
	ProviderName() string

	// ModelID returns the provider model identifier this client targets.
	ModelID() string

	// IsConfigured reports whether the client holds enough configuration
	// to make requests.
	IsConfigured() bool
}
