package message

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRegistered is returned when a reader or writer is constructed for
	// a message type the registry does not know about.
	ErrNotRegistered = errors.New("message: type is not registered")

	// ErrAlreadyRegistered is returned when a message type is registered twice.
	ErrAlreadyRegistered = errors.New("message: type is already registered")

	// ErrNilRegistry is returned when a nil registry is passed to a constructor.
	ErrNilRegistry = errors.New("message: registry is nil")

	// ErrNilBuilder is returned when a param constructor receives a nil builder.
	ErrNilBuilder = errors.New("message: system builder is nil")

	// ErrSkipped marks a validation outcome meaning "do not run the system this
	// tick". It is an expected result, not a failure.
	ErrSkipped = errors.New("message: system skipped")
)

// SkipError describes why a param asked its system to be skipped.
// It matches ErrSkipped with errors.Is.
type SkipError struct {
	Type   string
	Reason string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("message: skipped on %s: %s", e.Type, e.Reason)
}

func (e *SkipError) Is(target error) bool {
	return target == ErrSkipped
}

// IsSkip reports whether err is a validation skip.
func IsSkip(err error) bool {
	return errors.Is(err, ErrSkipped)
}

func notRegistered(typeName string) error {
	return fmt.Errorf("%w: %s", ErrNotRegistered, typeName)
}
