package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound           = errors.New("resource not found")
	ErrExperimentNotFound = fmt.Errorf("%w: experiment", ErrNotFound)
	ErrActionNotFound     = fmt.Errorf("%w: action", ErrNotFound)
	ErrFlagNotFound       = fmt.Errorf("%w: feature flag", ErrNotFound)

	// Validation errors
	ErrMissingExperimentID = errors.New("experiment_id is required")
	ErrInvalidMetric       = errors.New("invalid metric definition")

	// Data integrity errors
	ErrMissingControl = errors.New("control variant not found in experiment results")

	// Configuration errors
	ErrUnsupportedMetricType = errors.New("unsupported metric type")

	// Unsupported operations
	ErrNotASourceQuery = errors.New("experiment evaluation cannot be used as a query source")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewUnsupportedMetricTypeError(metricType string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedMetricType, metricType)
}

func NewSourceQueryError(kind string) error {
	return fmt.Errorf("%w: cannot convert metric of kind %s to a source query", ErrNotASourceQuery, kind)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingExperimentID) ||
		errors.Is(err, ErrInvalidMetric)
}

func IsDataIntegrityError(err error) bool {
	return errors.Is(err, ErrMissingControl)
}

func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrUnsupportedMetricType)
}
