// Package embed turns text into the vectors stored with document fragments.
//
// The embedding model is an external collaborator. Two providers exist: a
// deterministic hash-based embedder that needs nothing installed, and an
// Ollama HTTP client. Both produce unit vectors of a fixed width.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultDimensions is the width of all-MiniLM style sentence embeddings
	// and of document_fragment.content_vector.
	DefaultDimensions = 384

	// DefaultModel is the Ollama model used when none is configured.
	DefaultModel = "all-minilm"

	// DefaultBatchSize is the number of texts sent per HTTP request.
	DefaultBatchSize = 32

	// MaxBatchSize caps DefaultBatchSize overrides.
	MaxBatchSize = 256

	// DefaultTimeout bounds one embedding request.
	DefaultTimeout = 60 * time.Second
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding of a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for several texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int

	// ModelName identifies the model.
	ModelName() string

	// Available reports whether the embedder can serve requests now.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector returns v scaled to unit length. Zero vectors are returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
