package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/yourorg/gatehouse/internal/biometric"
)

// EmbeddingCache stores face embeddings in Redis as JSON arrays. Entries
// carry a TTL so a wiped inference model ages out stale vectors.
type EmbeddingCache struct {
	client *Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewEmbeddingCache creates an embedding cache with the given entry TTL.
func NewEmbeddingCache(client *Client, ttl time.Duration, logger *slog.Logger) *EmbeddingCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached embedding for key, with false on a miss. Redis
// failures degrade to a miss; the matcher re-embeds instead of failing.
func (c *EmbeddingCache) Get(ctx context.Context, key string) (biometric.Embedding, bool) {
	raw, ok, err := c.client.Get(ctx, key)
	if err != nil {
		c.logger.Warn("embedding cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var embedding biometric.Embedding
	if err := json.Unmarshal([]byte(raw), &embedding); err != nil {
		c.logger.Warn("embedding cache entry corrupt, dropping",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		_ = c.client.Delete(ctx, key)
		return nil, false
	}
	return embedding, true
}

// Set stores an embedding under key.
func (c *EmbeddingCache) Set(ctx context.Context, key string, embedding biometric.Embedding) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl)
}
