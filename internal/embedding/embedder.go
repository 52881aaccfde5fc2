// Package embedding turns note text into vectors for the similarity index.
package embedding

import (
	"context"
	"math"
)

// Embedder produces vector embeddings for note text. Embeddings are
// L2-normalized so dot product equals cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// normalizeL2 scales x in place to unit length. A zero vector is left as is.
func normalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range x {
		x[i] *= inv
	}
}
