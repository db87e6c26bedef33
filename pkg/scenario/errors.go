package scenario

import "errors"

var (
	// ErrInvalidScenario is returned when a document fails validation.
	ErrInvalidScenario = errors.New("scenario: invalid document")

	// ErrExpectation marks an observation that did not match its expectation.
	ErrExpectation = errors.New("scenario: expectation failed")

	// ErrUnknownReader is returned when a step names a reader that is not
	// declared.
	ErrUnknownReader = errors.New("scenario: unknown reader")

	// ErrNotAttached is returned when a deferred reader is used before its
	// attach step.
	ErrNotAttached = errors.New("scenario: reader not attached")
)
