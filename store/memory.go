package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"docsearch/types"

	"github.com/google/uuid"
)

// MemoryStore is an exact in-memory VectorStore with the same semantics as
// PostgresStore: atomic per-document replace, idempotency-key collapse,
// cascade delete. It backs STORE_BACKEND=memory and most of the test suite.
// Not durable.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[uuid.UUID]*memDoc
	byKey map[string]uuid.UUID
}

type memDoc struct {
	doc    types.Document
	chunks []types.Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[uuid.UUID]*memDoc),
		byKey: make(map[string]uuid.UUID),
	}
}

func (m *MemoryStore) Init(context.Context) error { return nil }

func idemKey(source types.Source, sourceID, hash string) string {
	return string(source) + "\x00" + sourceID + "\x00" + hash
}

func (m *MemoryStore) Put(_ context.Context, doc types.Document, chunks []types.Chunk) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := idemKey(doc.Source, doc.SourceID, doc.ContentHash)
	if existing, ok := m.byKey[key]; ok {
		// Same idempotency key: the first write owns the identifier.
		prev := m.docs[existing]
		prev.doc.Metadata = doc.Metadata
		prev.doc.UpdatedAt = doc.UpdatedAt
		prev.chunks = rebindChunks(existing, chunks)
		return existing, nil
	}

	m.docs[doc.ID] = &memDoc{doc: doc, chunks: rebindChunks(doc.ID, chunks)}
	m.byKey[key] = doc.ID
	return doc.ID, nil
}

func rebindChunks(docID uuid.UUID, chunks []types.Chunk) []types.Chunk {
	out := make([]types.Chunk, len(chunks))
	copy(out, chunks)
	for i := range out {
		out[i].DocID = docID
	}
	return out
}

func (m *MemoryStore) Search(_ context.Context, vec []float32, topK int, f Filters) ([]SearchHit, error) {
	if len(vec) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []SearchHit
	for _, md := range m.docs {
		if !matches(md.doc, f) {
			continue
		}
		for _, c := range md.chunks {
			if len(c.Embedding) == 0 {
				continue
			}
			hits = append(hits, SearchHit{
				Chunk: c,
				Doc:   md.doc,
				Score: cosine(vec, c.Embedding),
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].Doc.UploadedAt.Equal(hits[j].Doc.UploadedAt) {
			return hits[i].Doc.UploadedAt.Before(hits[j].Doc.UploadedAt)
		}
		return hits[i].Chunk.Index < hits[j].Chunk.Index
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func matches(doc types.Document, f Filters) bool {
	if f.Source != "" && doc.Source != f.Source {
		return false
	}
	if f.TaskID != "" && doc.TaskID != f.TaskID {
		return false
	}
	if f.ConversationID != "" && doc.ConversationID != f.ConversationID {
		return false
	}
	if f.UploadedBy != "" && doc.UploadedBy != f.UploadedBy {
		return false
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (m *MemoryStore) Delete(_ context.Context, docID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	md, ok := m.docs[docID]
	if !ok {
		return nil
	}
	delete(m.byKey, idemKey(md.doc.Source, md.doc.SourceID, md.doc.ContentHash))
	delete(m.docs, docID)
	return nil
}

func (m *MemoryStore) GetDocument(_ context.Context, docID uuid.UUID) (*types.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if md, ok := m.docs[docID]; ok {
		doc := md.doc
		return &doc, nil
	}
	return nil, nil
}

func (m *MemoryStore) FindByKey(_ context.Context, source types.Source, sourceID, contentHash string) (*types.Document, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[idemKey(source, sourceID, contentHash)]
	if !ok {
		return nil, 0, nil
	}
	md := m.docs[id]
	doc := md.doc
	return &doc, len(md.chunks), nil
}

func (m *MemoryStore) ListDocuments(_ context.Context, source types.Source) ([]types.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var docs []types.Document
	for _, md := range m.docs {
		if source != "" && md.doc.Source != source {
			continue
		}
		docs = append(docs, md.doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	return docs, nil
}

// DocumentCount is a test hook.
func (m *MemoryStore) DocumentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() {}
