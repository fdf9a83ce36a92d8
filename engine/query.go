package engine

import (
	"context"
	"sort"
	"time"

	"docsearch/model"
	"docsearch/store"
	"docsearch/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// overfetchFactor widens the store query so span deduplication still leaves
// enough distinct results to fill top_k.
const (
	overfetchFactor = 3
	maxFetch        = 100
)

// Engine serves the read path: embed the query, search the store, then
// deduplicate, rank and attribute the hits.
type Engine struct {
	store    store.VectorStore
	embedder model.Embedder
	log      *logrus.Entry
}

func New(st store.VectorStore, emb model.Embedder) *Engine {
	return &Engine{
		store:    st,
		embedder: emb,
		log:      logrus.WithField("component", "query_engine"),
	}
}

func (e *Engine) Query(ctx context.Context, params types.QueryParams) (*types.QueryResponse, error) {
	start := time.Now()

	if params.Query == "" {
		return nil, types.NewValidationFailure("query", "query text is required")
	}
	topK := params.TopK
	if topK == 0 {
		topK = types.DefaultTopK
	}
	if topK < 0 {
		return nil, types.NewValidationFailure("query", "top_k must be positive")
	}

	vec, err := e.embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, types.NewEmbeddingError("query", err)
	}

	fetch := topK * overfetchFactor
	if fetch > maxFetch {
		fetch = maxFetch
	}
	hits, err := e.store.Search(ctx, vec, fetch, store.Filters{
		Source:         params.Filters.Source,
		TaskID:         params.Filters.TaskID,
		ConversationID: params.Filters.ConversationID,
		UploadedBy:     params.Filters.UploadedBy,
	})
	if err != nil {
		return nil, types.NewStorageError("query", err)
	}

	hits = dedupe(hits)
	rank(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]types.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = types.SearchResult{
			DocumentID:     h.Doc.ID,
			Content:        h.Chunk.Content,
			Score:          h.Score,
			Source:         h.Doc.Source,
			Filename:       h.Doc.Filename,
			TaskID:         h.Doc.TaskID,
			TaskTitle:      h.Doc.TaskTitle,
			ConversationID: h.Doc.ConversationID,
			ChunkIndex:     h.Chunk.Index,
			Page:           h.Chunk.Page,
			Section:        h.Chunk.Section,
		}
	}

	e.log.WithFields(logrus.Fields{
		"top_k":   topK,
		"results": len(results),
		"took":    time.Since(start),
	}).Debug("query served")

	return &types.QueryResponse{
		Query:                 params.Query,
		Results:               results,
		TotalResults:          len(results),
		ProcessingTimeSeconds: time.Since(start).Seconds(),
	}, nil
}

// dedupe drops hits that cover an overlapping span of a document already
// represented by a better hit. Adjacent chunk indices share the configured
// overlap region, so the same passage would otherwise surface twice.
func dedupe(hits []store.SearchHit) []store.SearchHit {
	kept := make(map[uuid.UUID][]int)
	out := hits[:0]
	for _, h := range hits {
		overlapping := false
		for _, idx := range kept[h.Chunk.DocID] {
			if abs(idx-h.Chunk.Index) <= 1 {
				overlapping = true
				break
			}
		}
		if overlapping {
			continue
		}
		kept[h.Chunk.DocID] = append(kept[h.Chunk.DocID], h.Chunk.Index)
		out = append(out, h)
	}
	return out
}

// rank orders by score descending, breaking ties on earliest upload so equal
// scores return deterministically, then on chunk index.
func rank(hits []store.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].Doc.UploadedAt.Equal(hits[j].Doc.UploadedAt) {
			return hits[i].Doc.UploadedAt.Before(hits[j].Doc.UploadedAt)
		}
		return hits[i].Chunk.Index < hits[j].Chunk.Index
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
