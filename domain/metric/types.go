package metric

import (
	"expeval/domain/core"
)

// Type classifies the metric semantics. Count metrics sum a constant 1 per
// outcome, continuous metrics sum an extracted numeric value, funnel metrics
// reinterpret the per-variant summary as success/failure counts.
type Type string

const (
	TypeCount      Type = "count"
	TypeContinuous Type = "continuous"
	TypeFunnel     Type = "funnel"
)

// SourceKind identifies where outcome records come from.
type SourceKind string

const (
	SourceEvent     SourceKind = "event"
	SourceAction    SourceKind = "action"
	SourceWarehouse SourceKind = "data_warehouse"
)

// PropertyFilter is a single predicate over an event property blob.
type PropertyFilter struct {
	Key      string   `json:"key"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value,omitempty"`
}

// Operator enumerates the supported property comparison operators.
type Operator string

const (
	OpExact    Operator = "exact"
	OpNotEqual Operator = "is_not"
	OpContains Operator = "icontains"
	OpIsSet    Operator = "is_set"
	OpIsNotSet Operator = "is_not_set"
)

// EventConfig sources outcomes from the raw event log by literal event name.
type EventConfig struct {
	Event        string           `json:"event"`
	MathProperty string           `json:"math_property,omitempty"`
	Properties   []PropertyFilter `json:"properties,omitempty"`
}

// ActionConfig sources outcomes from an action definition resolved by ID.
// A missing action degrades to a match-nothing predicate, not an error.
type ActionConfig struct {
	ActionID     core.ActionID `json:"action_id"`
	MathProperty string        `json:"math_property,omitempty"`
}

// WarehouseConfig sources outcomes from an external table. The table is
// assumed purpose-built; no event identity filter applies.
type WarehouseConfig struct {
	TableName       string `json:"table_name"`
	TimestampField  string `json:"timestamp_field"`
	DistinctIDField string `json:"distinct_id_field"`
	MathColumn      string `json:"math_column,omitempty"`
}

// Definition is the declarative metric an evaluation request carries.
// Exactly one of Event, Action, Warehouse is set; Source reports which.
type Definition struct {
	Kind               string           `json:"kind"`
	Type               Type             `json:"metric_type"`
	Event              *EventConfig     `json:"event_config,omitempty"`
	Action             *ActionConfig    `json:"action_config,omitempty"`
	Warehouse          *WarehouseConfig `json:"warehouse_config,omitempty"`
	FilterTestAccounts bool             `json:"filter_test_accounts,omitempty"`
}

// Source reports which outcome source the definition is configured with.
// An unset config defaults to the event source with an empty event name.
func (d Definition) Source() SourceKind {
	switch {
	case d.Warehouse != nil:
		return SourceWarehouse
	case d.Action != nil:
		return SourceAction
	default:
		return SourceEvent
	}
}

// MathProperty returns the numeric extraction target for continuous
// metrics: a property path for event/action sources, a column name for
// warehouse sources. Empty for count and funnel metrics.
func (d Definition) MathProperty() string {
	if d.Type != TypeContinuous {
		return ""
	}
	switch {
	case d.Warehouse != nil:
		return d.Warehouse.MathColumn
	case d.Action != nil:
		return d.Action.MathProperty
	case d.Event != nil:
		return d.Event.MathProperty
	}
	return ""
}

// Validate checks the definition is internally consistent.
func (d Definition) Validate() error {
	switch d.Type {
	case TypeCount, TypeContinuous, TypeFunnel, "":
	default:
		return core.NewUnsupportedMetricTypeError(string(d.Type))
	}
	configured := 0
	if d.Event != nil {
		configured++
	}
	if d.Action != nil {
		configured++
	}
	if d.Warehouse != nil {
		configured++
	}
	if configured > 1 {
		return core.ErrInvalidMetric
	}
	return nil
}

// Fingerprint is a stable identity for cache keying: two requests with the
// same fingerprint compute the same result against an unchanged event log.
func (d Definition) Fingerprint() string {
	src := string(d.Source())
	var ident string
	switch {
	case d.Warehouse != nil:
		ident = d.Warehouse.TableName
	case d.Action != nil:
		ident = d.Action.ActionID.String()
	case d.Event != nil:
		ident = d.Event.Event
	}
	fp := string(d.Type) + "|" + src + "|" + ident + "|" + d.MathProperty()
	if d.FilterTestAccounts {
		fp += "|fta"
	}
	if d.Event != nil {
		for _, p := range d.Event.Properties {
			fp += "|" + p.Key + string(p.Operator) + p.Value
		}
	}
	return fp
}
