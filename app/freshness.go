package app

import (
	"time"

	"expeval/domain/core"
)

// DefaultResultTTL is how long a computed result stays fresh.
const DefaultResultTTL = 24 * time.Hour

// FreshnessPolicy decides whether a result computed at the given time is
// still fresh at now. Injected so staleness is testable without a real
// clock. A request with no prior computation never reaches the policy:
// it is stale by definition.
type FreshnessPolicy func(computedAt core.Timestamp, now time.Time) bool

// FreshnessWindow returns a policy that keeps results fresh for ttl after
// their computation.
func FreshnessWindow(ttl time.Duration) FreshnessPolicy {
	return func(computedAt core.Timestamp, now time.Time) bool {
		return now.Sub(computedAt.Time()) <= ttl
	}
}
