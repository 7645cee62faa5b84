// Package braidtypes defines retrieval types for braid.
package braidtypes

import "context"

// RetrievedChunk is one ranked result from the retrieval capability.
type RetrievedChunk struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Section string  `json:"section,omitempty"`
	Score   float64 `json:"score"`
}

// Retriever is the retrieval capability consumed by the controller.
// The core does not care how ranking or fusion is implemented.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]RetrievedChunk, error)
}
