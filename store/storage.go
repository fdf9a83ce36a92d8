package store

import (
	"context"

	"docsearch/types"

	"github.com/google/uuid"
)

// Filters restrict a search to chunks whose owning document matches every
// set field (AND of equality predicates). Zero values are ignored.
type Filters struct {
	Source         types.Source
	TaskID         string
	ConversationID string
	UploadedBy     string
}

// SearchHit pairs a matched chunk with its document and similarity score
// (cosine, higher is better).
type SearchHit struct {
	Chunk types.Chunk
	Doc   types.Document
	Score float64
}

// VectorStore is the single shared mutable resource of the pipeline. Put and
// Delete are atomic at document granularity: readers never observe a partial
// chunk set, and concurrent puts of the same idempotency key resolve to one
// consistent final state.
type VectorStore interface {
	Init(ctx context.Context) error
	// Put stores the document together with the complete chunk set as one
	// unit, replacing any previous chunks. It returns the canonical document
	// id: when the idempotency key already exists, the existing id wins.
	Put(ctx context.Context, doc types.Document, chunks []types.Chunk) (uuid.UUID, error)
	// Search returns up to topK chunks ranked by similarity to vec. Ranking
	// over the ANN index is best-effort; ties break on earliest upload.
	Search(ctx context.Context, vec []float32, topK int, f Filters) ([]SearchHit, error)
	// Delete removes the document and cascades to its chunks. Deleting an
	// unknown id is a no-op.
	Delete(ctx context.Context, docID uuid.UUID) error
	GetDocument(ctx context.Context, docID uuid.UUID) (*types.Document, error)
	// FindByKey resolves the idempotency triple to the stored document and
	// its chunk count; (nil, 0, nil) when no such document exists.
	FindByKey(ctx context.Context, source types.Source, sourceID, contentHash string) (*types.Document, int, error)
	ListDocuments(ctx context.Context, source types.Source) ([]types.Document, error)
	Ping(ctx context.Context) error
	Close()
}
