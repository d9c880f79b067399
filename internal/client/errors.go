package client

import (
	"errors"
	"fmt"
)

// Errors
var (
	// ErrNotImplemented marks a required hook that the adapter never
	// overrode. The adapter can never become ready; treat as a fatal
	// integration defect.
	ErrNotImplemented = errors.New("required method not implemented")

	// ErrUnsupported marks an optional hook the adapter does not support.
	// A declared capability gap; callers skip the operation or fall back
	// to the generic hooks.
	ErrUnsupported = errors.New("operation not supported")
)

// OpError reports which adapter and operation produced a contract error.
type OpError struct {
	Client string
	Op     string
	Err    error
}

// Error returns "client: op: err".
func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Client, e.Op, e.Err)
}

// Unwrap returns the underlying condition.
func (e *OpError) Unwrap() error { return e.Err }

// IsNotImplemented reports whether err is a not-implemented-required condition.
func IsNotImplemented(err error) bool {
	return errors.Is(err, ErrNotImplemented)
}

// IsUnsupported reports whether err is a declared capability gap.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

func notImplemented(client, op string) error {
	return &OpError{Client: client, Op: op, Err: ErrNotImplemented}
}

func unsupported(client, op string) error {
	return &OpError{Client: client, Op: op, Err: ErrUnsupported}
}
