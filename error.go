package sgp4

import (
	"fmt"
)

// InvalidOrbitError is returned when an element set cannot be propagated at all.
// It is fatal for the element set and never retried.
type InvalidOrbitError struct {
	Field string  // Name of the offending element
	Value float64 // The value that was rejected
	Limit string  // Human readable bound
}

// Error returns the error message for InvalidOrbitError.
func (e *InvalidOrbitError) Error() string {
	return fmt.Sprintf("invalid orbit: %s %.8g outside %s", e.Field, e.Value, e.Limit)
}

// PropagationErrorReason defines the specific numerical breakdown that was hit.
type PropagationErrorReason string

const (
	ReasonMeanMotionNonPositive   PropagationErrorReason = "mean motion (xn) <= 0"
	ReasonEccentricityOutOfRange  PropagationErrorReason = "eccentricity <= -0.001"
	ReasonPerturbedEccSqTooHigh   PropagationErrorReason = "perturbed eccentricity squared (elsq) >= 1.0"
	ReasonSemiLatusRectumNegative PropagationErrorReason = "semi-latus rectum (pl) negative"
)

// PropagationError is returned when the model breaks down numerically at a
// given time offset. The propagator remains usable for other offsets.
type PropagationError struct {
	Tsince float64                // Time since epoch in minutes
	Reason PropagationErrorReason // The specific limit that was violated
	Value  float64                // The value that caused the violation
}

// Error returns the error message for PropagationError.
func (e *PropagationError) Error() string {
	return fmt.Sprintf("propagation failed at tsince %.4f min: %s (value: %.6e)", e.Tsince, e.Reason, e.Value)
}

// DecayedError wraps the state carried by a decayed prediction for callers that
// prefer to treat decay as an error. See Prediction.Err.
type DecayedError struct {
	Tsince float64     // Time since epoch in minutes when decay was detected
	Radius float64     // Final orbital radius in Earth radii
	State  StateVector // Last computed state
}

// Error returns the error message for DecayedError.
func (e *DecayedError) Error() string {
	return fmt.Sprintf("satellite has decayed (at tsince %.2f min, orbital radius %.4f < 1.0 earth radii)", e.Tsince, e.Radius)
}

// InvalidArgumentError is returned when a caller supplied parameter is out of contract.
type InvalidArgumentError struct {
	Name    string
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Name, e.Message)
}
