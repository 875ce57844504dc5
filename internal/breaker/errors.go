package breaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrCircuitOpen matches every *OpenError via errors.Is.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// OpenError is returned without attempting any I/O while the breaker is open.
type OpenError struct {
	Op      string
	RetryAt time.Time
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%s: %v (retry after %s)", e.Op, ErrCircuitOpen, e.RetryAt.Format(time.RFC3339))
}

func (e *OpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// PersistenceError wraps a backend failure that was counted by the breaker.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: persistence failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
