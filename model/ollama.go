package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkoukk/tiktoken-go"
	"github.com/sirupsen/logrus"
)

// OllamaEmbedder produces embeddings through a local ollama server. Inputs
// longer than the model's token window are truncated before the call; batch
// requests fan out over a bounded worker pool.
type OllamaEmbedder struct {
	baseURL   string
	model     string
	dim       int
	maxTokens int
	client    *http.Client
	tokenizer *tiktoken.Tiktoken
	pool      *ants.Pool
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewOllamaEmbedder(baseURL, model string, dim, maxTokens, workers int) (*OllamaEmbedder, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	// Without the tokenizer, over-long inputs go to the backend untruncated
	// and get rejected there; not worth failing startup over.
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logrus.WithError(err).Warn("tokenizer unavailable, input truncation disabled")
		enc = nil
	}
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &OllamaEmbedder{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		model:     model,
		dim:       dim,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: 60 * time.Second},
		tokenizer: enc,
		pool:      pool,
	}, nil
}

func (e *OllamaEmbedder) Dimension() int { return e.dim }

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := ollamaEmbeddingRequest{Model: e.model, Prompt: e.truncate(text)}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding backend status %d: %s", resp.StatusCode, string(b))
	}

	var out ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	if len(out.Embedding) != e.dim {
		// Wrong model for the configured dimension. Not a per-record
		// condition: the whole deployment is misconfigured.
		return nil, fmt.Errorf("embedding dimension mismatch: backend returned %d, configured %d (check EMBEDDING_DIM / model)",
			len(out.Embedding), e.dim)
	}

	vec := make([]float32, e.dim)
	for i, v := range normalize(out.Embedding) {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) []BatchItem {
	items := make([]BatchItem, len(texts))
	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		if err := e.pool.Submit(func() {
			defer wg.Done()
			items[i].Vector, items[i].Err = e.Embed(ctx, text)
		}); err != nil {
			items[i].Err = err
			wg.Done()
		}
	}
	wg.Wait()
	return items
}

func (e *OllamaEmbedder) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding backend status %d", resp.StatusCode)
	}
	return nil
}

// Close releases the worker pool.
func (e *OllamaEmbedder) Close() {
	e.pool.Release()
}

func (e *OllamaEmbedder) truncate(text string) string {
	if e.maxTokens <= 0 || e.tokenizer == nil {
		return text
	}
	tokens := e.tokenizer.Encode(text, nil, nil)
	if len(tokens) <= e.maxTokens {
		return text
	}
	return e.tokenizer.Decode(tokens[:e.maxTokens])
}

func normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
