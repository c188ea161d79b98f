package action

import (
	"expeval/domain/core"
	"expeval/domain/metric"
)

// Action is a named bundle of event-match steps. An outcome event matches
// the action when it matches any step.
type Action struct {
	ID    core.ActionID `json:"id" db:"id"`
	Name  string        `json:"name" db:"name"`
	Steps []Step        `json:"steps"`
}

// Step matches events by name plus optional property predicates.
type Step struct {
	Event      string                  `json:"event" db:"event"`
	URL        string                  `json:"url,omitempty" db:"url"`
	Properties []metric.PropertyFilter `json:"properties,omitempty"`
}
