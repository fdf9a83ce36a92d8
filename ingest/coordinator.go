package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"docsearch/chunker"
	"docsearch/model"
	"docsearch/processor"
	"docsearch/store"
	"docsearch/types"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Coordinator is the single write-path entry point: every per-surface
// adapter hands its submissions here. Each submission runs the full
// processor -> chunker -> embedder -> store pipeline as one logical unit of
// work; failures after processing never leave a partially visible document
// because the store's Put is atomic.
type Coordinator struct {
	processor    *processor.Processor
	chunker      *chunker.Chunker
	embedder     model.Embedder
	store        store.VectorStore
	stageTimeout time.Duration
	embedRetries uint64
	log          *logrus.Entry
}

func New(proc *processor.Processor, chk *chunker.Chunker, emb model.Embedder,
	st store.VectorStore, stageTimeout time.Duration, embedRetries int) *Coordinator {
	if embedRetries < 0 {
		embedRetries = 0
	}
	return &Coordinator{
		processor:    proc,
		chunker:      chk,
		embedder:     emb,
		store:        st,
		stageTimeout: stageTimeout,
		embedRetries: uint64(embedRetries),
		log:          logrus.WithField("component", "coordinator"),
	}
}

// Ingest runs one submission through the pipeline. Submitting identical
// content from the same origin twice is a no-op success returning the
// existing document; unreliable upstreams may retry freely.
func (c *Coordinator) Ingest(ctx context.Context, sub types.Submission) (*types.IngestResult, error) {
	start := time.Now()

	data := sub.Bytes()
	if len(data) == 0 {
		return nil, types.NewValidationFailure("ingest", "empty file payload")
	}
	if !sub.Kind().Valid() {
		return nil, types.NewValidationFailure("ingest", fmt.Sprintf("unknown source %q", sub.Kind()))
	}

	doc := sub.Describe()
	sum := sha256.Sum256(data)
	doc.ContentHash = hex.EncodeToString(sum[:])

	log := c.log.WithFields(logrus.Fields{
		"source":    doc.Source,
		"source_id": doc.SourceID,
		"filename":  doc.Filename,
	})

	existing, chunkCount, err := c.store.FindByKey(ctx, doc.Source, doc.SourceID, doc.ContentHash)
	if err != nil {
		return nil, types.NewStorageError("ingest", err)
	}
	if existing != nil {
		log.WithField("doc_id", existing.ID).Info("duplicate submission, short-circuiting")
		return &types.IngestResult{
			DocumentID:     existing.ID,
			Filename:       existing.Filename,
			Source:         existing.Source,
			ChunkCount:     chunkCount,
			ProcessingTime: time.Since(start),
			Success:        true,
		}, nil
	}

	extracted, err := c.process(ctx, data, sub.DeclaredContentType())
	if err != nil {
		return nil, err
	}

	pieces := c.chunker.Split(extracted)

	now := time.Now().UTC()
	doc.ID = uuid.New()
	doc.UploadedAt = now
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	for k, v := range extracted.Metadata {
		doc.Metadata[k] = v
	}
	if extracted.LowConfidence {
		doc.Metadata["low_confidence"] = true
	}

	chunks, err := c.embedPieces(ctx, doc.ID, pieces, now)
	if err != nil {
		return nil, err
	}

	docID, err := c.store.Put(ctx, doc, chunks)
	if err != nil {
		return nil, types.NewStorageError("store", err)
	}

	log.WithFields(logrus.Fields{
		"doc_id": docID,
		"chunks": len(chunks),
		"took":   time.Since(start),
	}).Info("document ingested")

	return &types.IngestResult{
		DocumentID:     docID,
		Filename:       doc.Filename,
		Source:         doc.Source,
		ChunkCount:     len(chunks),
		ProcessingTime: time.Since(start),
		Success:        true,
	}, nil
}

// process extracts normalized text under the stage deadline, retrying a
// parse failure once before surfacing it. OCR-backed formats get their
// second chance through the same extractor.
func (c *Coordinator) process(ctx context.Context, data []byte, contentType string) (*processor.Result, error) {
	stageCtx, cancel := c.stageContext(ctx)
	defer cancel()

	res, err := c.processor.Process(stageCtx, data, contentType)
	if err == nil {
		return res, nil
	}
	if pe, ok := types.AsPipelineError(err); !ok || pe.Code != types.ErrCodeParseFailure {
		return nil, err
	}

	retryCtx, cancel2 := c.stageContext(ctx)
	defer cancel2()
	res, retryErr := c.processor.Process(retryCtx, data, contentType)
	if retryErr != nil {
		return nil, err // report the original failure
	}
	return res, nil
}

// embedPieces embeds all chunk texts as a batch. Individual failures are
// retried with exponential backoff; only items that keep failing after the
// bounded attempts sink the submission.
func (c *Coordinator) embedPieces(ctx context.Context, docID uuid.UUID, pieces []chunker.Piece, now time.Time) ([]types.Chunk, error) {
	if len(pieces) == 0 {
		return nil, nil
	}

	stageCtx, cancel := c.stageContext(ctx)
	defer cancel()

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}

	items := c.embedder.EmbedBatch(stageCtx, texts)

	failed := failedIndices(items)
	if len(failed) > 0 {
		bo := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.embedRetries), stageCtx)
		err := backoff.Retry(func() error {
			retryTexts := make([]string, len(failed))
			for j, idx := range failed {
				retryTexts[j] = texts[idx]
			}
			for j, item := range c.embedder.EmbedBatch(stageCtx, retryTexts) {
				items[failed[j]] = item
			}
			failed = failedIndices(items)
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d chunks failed: %w",
					len(failed), len(items), items[failed[0]].Err)
			}
			return nil
		}, bo)
		if err != nil {
			return nil, types.NewEmbeddingError("embedder", err)
		}
	}

	chunks := make([]types.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = types.Chunk{
			ID:        uuid.New(),
			DocID:     docID,
			Index:     p.Index,
			Content:   p.Text,
			Embedding: items[i].Vector,
			Page:      p.Page,
			Section:   p.Section,
			Metadata:  map[string]any{"token_count": p.TokenCount},
			CreatedAt: now,
		}
	}
	return chunks, nil
}

func failedIndices(items []model.BatchItem) []int {
	var failed []int
	for i, item := range items {
		if item.Err != nil {
			failed = append(failed, i)
		}
	}
	return failed
}

func (c *Coordinator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.stageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.stageTimeout)
}
