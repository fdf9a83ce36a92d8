package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// CachedEmbedder wraps any Embedder with a bounded LRU keyed by a hash of
// the input text. Purely a latency optimization: a miss goes straight to the
// inner embedder, so eviction never affects correctness. Safe for concurrent
// use; the cache synchronizes internally.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
	log   *logrus.Entry
}

func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{
		inner: inner,
		cache: cache,
		log:   logrus.WithField("component", "embedding_cache"),
	}, nil
}

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

func (c *CachedEmbedder) Ready(ctx context.Context) error { return c.inner.Ready(ctx) }

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) []BatchItem {
	items := make([]BatchItem, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := c.cache.Get(cacheKey(text)); ok {
			items[i].Vector = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		c.log.WithFields(logrus.Fields{
			"total": len(texts), "misses": len(missTexts),
		}).Debug("batch cache lookup")
		for j, item := range c.inner.EmbedBatch(ctx, missTexts) {
			items[missIdx[j]] = item
			if item.Err == nil {
				c.cache.Add(cacheKey(missTexts[j]), item.Vector)
			}
		}
	}
	return items
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
