// Package embedding turns text into fixed-dimension vectors via an external
// embedding service.
//
// The package provides:
//   - A Client speaking two wire shapes (cohere-style with an input_type
//     hint, titan-style with a bare inputText), selected by model id
//   - Ordered multi-endpoint failover across interchangeable regions
//   - Batched generation with staggered in-flight calls, inter-batch delay
//     and partial-failure tolerance
//
// Components should accept the Embedder interface so tests can substitute a
// deterministic implementation.
package embedding

import "context"

// Purpose distinguishes text embedded for storage from a live query. Some
// model families tune representations differently for the two.
type Purpose string

const (
	// PurposeStore marks text that will be persisted and searched against.
	PurposeStore Purpose = "store"

	// PurposeQuery marks a live search query.
	PurposeQuery Purpose = "query"
)

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	// Embed returns the vector for text. The purpose hint is forwarded to
	// model families that distinguish stored text from queries.
	Embed(ctx context.Context, text string, purpose Purpose) ([]float32, error)

	// Dimensions returns the configured vector length.
	Dimensions() int
}

// BatchItem is one successful embedding within a batch, keyed by the index
// of its input text.
type BatchItem struct {
	Index  int
	Vector []float32
}

// BatchError records a single failed text within a batch. A batch never
// aborts on individual failures; callers decide what to do with the gaps.
type BatchError struct {
	Index   int
	Message string
}
