package lookup

import (
	"context"

	domcache "github.com/kailas-cloud/semroute/internal/domain/cache"
)

// Store is the cache store subset the lookup engine reads from.
type Store interface {
	FindExact(ctx context.Context, hash string) (domcache.Entry, error)
	FindNearest(ctx context.Context, embedding []float32, k int) ([]domcache.Entry, error)
	BumpUsage(ctx context.Context, hash string) error
}

// Tagger assigns context tags to text.
type Tagger interface {
	Tag(text string) []string
}
