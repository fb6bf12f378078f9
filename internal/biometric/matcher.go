package biometric

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/gatehouse/internal/domain"
)

// EmbeddingCache stores precomputed embeddings of visitors' reference
// images so identification does not re-embed the whole roster per call.
// A miss is not an error; the matcher falls back to embedding on demand.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) (Embedding, bool)
	Set(ctx context.Context, key string, embedding Embedding) error
}

// Match is the winning candidate of a roster comparison.
type Match struct {
	Visitor  *domain.Visitor
	Distance float64
}

// Matcher compares a probe image against stored visitor images. Matching is
// a linear scan over the roster; acceptable at site scale, with cached
// embeddings taking the model out of the hot path.
type Matcher struct {
	embedder  Embedder
	cache     EmbeddingCache // may be nil
	threshold float64
	timeout   time.Duration
	logger    *slog.Logger
}

// NewMatcher creates a matcher. threshold is the maximum cosine distance
// considered a match (reference default 0.4); timeout bounds each model
// inference call.
func NewMatcher(embedder Embedder, cache EmbeddingCache, threshold float64, timeout time.Duration, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		embedder:  embedder,
		cache:     cache,
		threshold: threshold,
		timeout:   timeout,
		logger:    logger,
	}
}

// FindBestMatch embeds the probe once and compares it against every
// candidate with a stored image, returning the minimum-distance candidate
// within threshold. Ties keep the first-encountered candidate, so callers
// must supply a stable order (visitor ID). domain.ErrNoMatch when nothing
// is within threshold; domain.ErrMatchTimeout when inference ran out of
// time, distinct from ErrNoMatch so callers can retry.
func (m *Matcher) FindBestMatch(ctx context.Context, probe []byte, candidates []*domain.Visitor) (*Match, error) {
	probeEmbedding, err := m.embed(ctx, probe)
	if err != nil {
		return nil, err
	}

	var best *Match
	for _, candidate := range candidates {
		if !candidate.HasPhoto() {
			continue
		}

		stored, err := m.storedEmbedding(ctx, candidate)
		if err != nil {
			if errors.Is(err, domain.ErrMatchTimeout) {
				return nil, err
			}
			// A stored photo that no longer embeds (no face, corrupt) only
			// removes that candidate from consideration.
			m.logger.Warn("skipping candidate with unusable stored image",
				slog.String("visitor_id", candidate.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		distance := CosineDistance(probeEmbedding, stored)
		if distance > m.threshold {
			continue
		}
		if best == nil || distance < best.Distance {
			best = &Match{Visitor: candidate, Distance: distance}
		}
	}

	if best == nil {
		return nil, domain.ErrNoMatch
	}
	return best, nil
}

// WarmCache ensures the visitor's stored image has a cached embedding.
// Used by the background warmer; a no-op without a cache or photo.
func (m *Matcher) WarmCache(ctx context.Context, visitor *domain.Visitor) error {
	if m.cache == nil || !visitor.HasPhoto() {
		return nil
	}
	key := cacheKey(visitor)
	if _, ok := m.cache.Get(ctx, key); ok {
		return nil
	}
	embedding, err := m.embed(ctx, visitor.Photo)
	if err != nil {
		return fmt.Errorf("embed stored image for %s: %w", visitor.ID, err)
	}
	return m.cache.Set(ctx, key, embedding)
}

func (m *Matcher) storedEmbedding(ctx context.Context, visitor *domain.Visitor) (Embedding, error) {
	key := cacheKey(visitor)
	if m.cache != nil {
		if embedding, ok := m.cache.Get(ctx, key); ok {
			return embedding, nil
		}
	}

	embedding, err := m.embed(ctx, visitor.Photo)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, key, embedding); err != nil {
			m.logger.Warn("failed to cache embedding",
				slog.String("visitor_id", visitor.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return embedding, nil
}

func (m *Matcher) embed(ctx context.Context, image []byte) (Embedding, error) {
	embedCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		embedCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	embedding, err := m.embedder.Embed(embedCtx, image)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrMatchTimeout
		}
		return nil, err
	}
	return embedding, nil
}

// The cache key is bound to the photo content, so a replaced reference
// image naturally invalidates the old embedding.
func cacheKey(visitor *domain.Visitor) string {
	sum := sha256.Sum256(visitor.Photo)
	return "face:embedding:" + visitor.ID + ":" + hex.EncodeToString(sum[:8])
}
