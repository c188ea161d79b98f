package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"expeval/domain/core"
)

func TestSourceSelection(t *testing.T) {
	assert.Equal(t, SourceEvent, Definition{}.Source())
	assert.Equal(t, SourceEvent, Definition{Event: &EventConfig{Event: "purchase"}}.Source())
	assert.Equal(t, SourceAction, Definition{Action: &ActionConfig{ActionID: "a1"}}.Source())
	assert.Equal(t, SourceWarehouse, Definition{Warehouse: &WarehouseConfig{TableName: "orders"}}.Source())
}

func TestValidateRejectsUnknownType(t *testing.T) {
	err := Definition{Type: "ratio"}.Validate()
	assert.ErrorIs(t, err, core.ErrUnsupportedMetricType)
}

func TestValidateRejectsMultipleSources(t *testing.T) {
	def := Definition{
		Type:   TypeCount,
		Event:  &EventConfig{Event: "purchase"},
		Action: &ActionConfig{ActionID: "a1"},
	}
	assert.ErrorIs(t, def.Validate(), core.ErrInvalidMetric)
}

func TestValidateAcceptsEmptyType(t *testing.T) {
	assert.NoError(t, Definition{Event: &EventConfig{Event: "purchase"}}.Validate())
}

func TestMathPropertyOnlyForContinuous(t *testing.T) {
	def := Definition{
		Type:  TypeCount,
		Event: &EventConfig{Event: "purchase", MathProperty: "revenue"},
	}
	assert.Empty(t, def.MathProperty())

	def.Type = TypeContinuous
	assert.Equal(t, "revenue", def.MathProperty())

	warehouse := Definition{
		Type:      TypeContinuous,
		Warehouse: &WarehouseConfig{TableName: "orders", MathColumn: "amount"},
	}
	assert.Equal(t, "amount", warehouse.MathProperty())
}

func TestFingerprintDistinguishesDefinitions(t *testing.T) {
	base := Definition{Type: TypeCount, Event: &EventConfig{Event: "purchase"}}

	same := Definition{Type: TypeCount, Event: &EventConfig{Event: "purchase"}}
	assert.Equal(t, base.Fingerprint(), same.Fingerprint())

	otherEvent := Definition{Type: TypeCount, Event: &EventConfig{Event: "signup"}}
	assert.NotEqual(t, base.Fingerprint(), otherEvent.Fingerprint())

	otherType := Definition{Type: TypeFunnel, Event: &EventConfig{Event: "purchase"}}
	assert.NotEqual(t, base.Fingerprint(), otherType.Fingerprint())

	filtered := base
	filtered.FilterTestAccounts = true
	assert.NotEqual(t, base.Fingerprint(), filtered.Fingerprint())

	withProps := Definition{Type: TypeCount, Event: &EventConfig{
		Event:      "purchase",
		Properties: []PropertyFilter{{Key: "plan", Operator: OpExact, Value: "pro"}},
	}}
	assert.NotEqual(t, base.Fingerprint(), withProps.Fingerprint())
}
