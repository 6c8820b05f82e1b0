package core

import "errors"

var (
	// ErrEmptyInput is returned when inference is invoked with no images or
	// no models.
	ErrEmptyInput = errors.New("empty input")

	// ErrShapeMismatch is returned when model outputs disagree in shape with
	// the input batch or with each other. Averaging mismatched shapes is
	// never permitted.
	ErrShapeMismatch = errors.New("prediction shape mismatch")

	// ErrSelectionMismatch is returned when the resolved image files do not
	// exactly cover the set of positive-classified ids.
	ErrSelectionMismatch = errors.New("selection mismatch")
)
