package models

import (
	"errors"
	"fmt"
)

// InsufficientDataError reports that a pipeline stage had fewer rows
// than its configured minimum. Rows and Min let the caller decide
// whether widening the lookback window could help.
type InsufficientDataError struct {
	Stage string
	Rows  int
	Min   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: %d rows, need at least %d", e.Stage, e.Rows, e.Min)
}

// TrainingError wraps a numeric fit failure.
type TrainingError struct {
	ModelName string
	Err       error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training %s failed: %v", e.ModelName, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }

// ModelNotFoundError reports a forecast request for a tenant/type with
// no cached model and no trainable history.
type ModelNotFoundError struct {
	ModelName string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.ModelName)
}

// ForecastInputError reports a malformed forecast request.
type ForecastInputError struct {
	Reason string
}

func (e *ForecastInputError) Error() string {
	return fmt.Sprintf("invalid forecast input: %s", e.Reason)
}

// ErrRetrainInFlight is returned when a retrain is requested for a
// tenant that already has one recently in flight.
var ErrRetrainInFlight = errors.New("retrain already in flight for tenant")
