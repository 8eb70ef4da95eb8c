package domain

import "errors"

var (
	// ErrMissingInput means a required file is absent or fails its schema check.
	ErrMissingInput = errors.New("missing input")

	// ErrMissingCredential means an API key needed for external calls is not set.
	ErrMissingCredential = errors.New("missing credential")

	// ErrService marks a failed call to an external service. It is non-fatal
	// for batch work: the batch is skipped and picked up on the next run.
	ErrService = errors.New("service error")

	// ErrInsufficientData means too few valid samples to build a grid.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrRender means no artifact could be produced from a grid.
	ErrRender = errors.New("render error")
)
