package biometric

import (
	"context"
	"math"
)

// Embedding is a fixed-dimension face vector produced by the embedding model.
type Embedding []float32

// Embedder extracts a face embedding from raw image bytes. Implementations
// return domain.ErrNoFaceDetected when no face is found and
// domain.ErrCorruptImage when the image cannot be decoded.
type Embedder interface {
	Embed(ctx context.Context, image []byte) (Embedding, error)
}

// CosineDistance returns 1 - cosine similarity between two embeddings.
// Symmetric; smaller means more similar. Degenerate vectors (zero norm or
// mismatched dimensions) yield the maximum distance so they never match.
func CosineDistance(a, b Embedding) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
