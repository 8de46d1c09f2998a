// Package embed talks to the embedding provider. The provider is any
// OpenAI-compatible HTTP endpoint; calls are retried, rate limited,
// cached, and guarded by the shared circuit breaker.
package embed

import (
	"context"
	"time"
)

// Provider generates embeddings for text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}

// Request bounds. The per-call timeout is hard: a slow provider must
// never hold a search request hostage.
const (
	DefaultTimeout    = 3 * time.Second
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 200 * time.Millisecond
	DefaultMaxDelay   = 2 * time.Second

	DefaultDimensions = 1536
	DefaultCacheSize  = 1000

	MaxBatchSize = 256
)
