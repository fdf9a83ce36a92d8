package model

import (
	"context"
)

// BatchItem carries one item's outcome of a batch embedding call. A failed
// item never discards its siblings' vectors.
type BatchItem struct {
	Vector []float32
	Err    error
}

// Embedder maps text to a fixed-length vector. Implementations must be
// deterministic: identical input produces an identical vector, which is what
// makes caching by content hash sound.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one item per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) []BatchItem
	Dimension() int
	// Ready probes the backing capability without embedding anything.
	Ready(ctx context.Context) error
}
