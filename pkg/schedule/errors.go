package schedule

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateSystem is returned when a system name is added twice.
	ErrDuplicateSystem = errors.New("schedule: system already added")

	// ErrNilSetup is returned when Add receives a nil setup function or the
	// setup returns a nil RunFunc.
	ErrNilSetup = errors.New("schedule: setup is nil")

	// ErrAccessConflict is returned when one system declares both a writer and
	// another param for the same message type.
	ErrAccessConflict = errors.New("schedule: conflicting access within system")

	// ErrSystemPanicked marks a system run that ended in a panic.
	ErrSystemPanicked = errors.New("schedule: system panicked")
)

// SystemError ties a failure to the system that produced it.
type SystemError struct {
	System string
	Tick   uint64
	Err    error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("schedule: system %q failed at tick %d: %v", e.System, e.Tick, e.Err)
}

func (e *SystemError) Unwrap() error {
	return e.Err
}
