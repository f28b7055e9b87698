package services

import (
	"context"
	"time"

	"github.com/snappy-loop/storyteller/internal/models"
)

// recordStore is the subset of object storage operations used by CatalogService.
type recordStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// URLSigner issues time-limited access URLs. May be nil to serve stored public URLs.
type URLSigner interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// StoryIndexReader lists persisted stories from a relational index. May be nil to
// scan the bucket instead.
type StoryIndexReader interface {
	List(ctx context.Context, genre models.Genre) ([]*models.StoryIndexEntry, error)
}

// RandomSource draws uniform integers in [0, n).
type RandomSource interface {
	IntN(n int) int
}
