package ports

import (
	"context"

	"expeval/domain/core"
	"expeval/domain/stats"
)

// CachedResult is a previously computed evaluation response plus the time
// it was computed, which the freshness policy judges.
type CachedResult struct {
	Response   stats.EvaluationResponse
	ComputedAt core.Timestamp
}

// ResultCache stores evaluation responses across requests. Implementations
// own in-flight deduplication; the pipeline only supplies keys and the
// staleness verdict.
type ResultCache interface {
	// Get returns the cached result for the key, or false when no prior
	// computation exists.
	Get(ctx context.Context, key string) (*CachedResult, bool)

	// Put stores a freshly computed result under the key.
	Put(ctx context.Context, key string, result CachedResult)

	// Compute runs fn for the key, collapsing concurrent callers so at
	// most one computation is in flight per key at a time.
	Compute(ctx context.Context, key string, fn func(context.Context) (*CachedResult, error)) (*CachedResult, error)
}
