package ports

import (
	"context"

	"expeval/domain/action"
	"expeval/domain/core"
)

// ActionRepository resolves action definitions by identifier.
type ActionRepository interface {
	// GetAction returns the action or core.ErrActionNotFound. Callers in
	// the outcome stage treat not-found as a match-nothing predicate,
	// never a pipeline failure.
	GetAction(ctx context.Context, id core.ActionID) (*action.Action, error)
}
