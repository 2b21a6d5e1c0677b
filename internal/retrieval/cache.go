package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"docqa-workers/internal/common/logger"
	"docqa-workers/internal/common/metrics"
	"docqa-workers/internal/models"
)

const cacheKeyPrefix = "docqa:retrieval:"

// Cached memoises search results in Redis. Redis failures are logged and the
// underlying index is queried as if the entry had been missing.
type Cached struct {
	next Index
	rdb  redis.Cmdable
	ttl  time.Duration
	log  logger.Logger
}

func NewCached(next Index, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *Cached {
	return &Cached{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
		log:  logger.OrNoOp(log).With(map[string]interface{}{"component": "retrieval-cache"}),
	}
}

func (c *Cached) SearchForAnswer(ctx context.Context, query string, documentIDs []string, topK int) ([]models.EvidenceChunk, error) {
	return c.lookup(ctx, LayerAnswer, query, documentIDs, topK, c.next.SearchForAnswer)
}

func (c *Cached) SearchForCitations(ctx context.Context, text string, documentIDs []string, topK int) ([]models.EvidenceChunk, error) {
	return c.lookup(ctx, LayerCitation, text, documentIDs, topK, c.next.SearchForCitations)
}

type searchFunc func(ctx context.Context, query string, documentIDs []string, topK int) ([]models.EvidenceChunk, error)

func (c *Cached) lookup(ctx context.Context, layer Layer, query string, documentIDs []string, topK int, fetch searchFunc) ([]models.EvidenceChunk, error) {
	key := CacheKey(layer, query, documentIDs, topK)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var chunks []models.EvidenceChunk
		if jsonErr := json.Unmarshal(raw, &chunks); jsonErr == nil {
			metrics.RetrievalCacheRequests.WithLabelValues(string(layer), "hit").Inc()
			return chunks, nil
		}
		c.log.Warn("Discarding unreadable cache entry", map[string]interface{}{"key": key})
		metrics.RetrievalCacheRequests.WithLabelValues(string(layer), "error").Inc()
	case stderrors.Is(err, redis.Nil):
		metrics.RetrievalCacheRequests.WithLabelValues(string(layer), "miss").Inc()
	default:
		c.log.Warn("Cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		metrics.RetrievalCacheRequests.WithLabelValues(string(layer), "error").Inc()
	}

	chunks, err := fetch(ctx, query, documentIDs, topK)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(chunks)
	if err == nil {
		err = c.rdb.Set(ctx, key, payload, c.ttl).Err()
	}
	if err != nil {
		c.log.Warn("Cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return chunks, nil
}

// CacheKey is stable under reordering of documentIDs.
func CacheKey(layer Layer, query string, documentIDs []string, topK int) string {
	ids := append([]string(nil), documentIDs...)
	sort.Strings(ids)

	payload, _ := json.Marshal(struct {
		Query string   `json:"q"`
		IDs   []string `json:"ids"`
		TopK  int      `json:"k"`
	}{query, ids, topK})

	sum := sha256.Sum256(payload)
	return cacheKeyPrefix + string(layer) + ":" + hex.EncodeToString(sum[:])
}
