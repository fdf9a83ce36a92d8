package model

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
)

// MockEmbedder produces deterministic unit vectors seeded by an FNV hash of
// the input. It backs EMBEDDING_BACKEND=mock for offline development and is
// the test double everywhere a real model would be overkill. Texts sharing
// many words land near each other, which is enough similarity structure for
// retrieval tests.
type MockEmbedder struct {
	Dim int
	// FailFunc, when set, is consulted per text to inject failures.
	FailFunc func(text string) error

	calls atomic.Int64
}

func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{Dim: dim}
}

func (m *MockEmbedder) Dimension() int { return m.Dim }

func (m *MockEmbedder) Ready(context.Context) error { return nil }

// Calls reports how many embeddings were actually computed, letting cache
// tests assert on hit behavior.
func (m *MockEmbedder) Calls() int64 { return m.calls.Load() }

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.FailFunc != nil {
		if err := m.FailFunc(text); err != nil {
			return nil, err
		}
	}
	return deterministicVector(text, m.Dim), nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) []BatchItem {
	items := make([]BatchItem, len(texts))
	for i, text := range texts {
		items[i].Vector, items[i].Err = m.Embed(ctx, text)
	}
	return items
}

// deterministicVector sums word-seeded pseudo-random vectors so lexical
// overlap translates into cosine similarity, then normalizes.
func deterministicVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		words = []string{""}
	}
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		seed := h.Sum32()
		for i := 0; i < dim; i++ {
			seed = seed*1664525 + 1013904223
			vec[i] += float32(int32(seed%2001)-1000) / 1000.0
		}
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if norm := math.Sqrt(sum); norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}
