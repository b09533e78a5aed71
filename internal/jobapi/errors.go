package jobapi

import (
	"errors"
	"fmt"
)

// ConnectionError is a transport-level failure reaching the job service,
// including non-2xx responses.
type ConnectionError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: job service returned HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError is a response the client could not make sense of.
type ProtocolError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func IsConnection(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

func IsProtocol(err error) bool {
	var target *ProtocolError
	return errors.As(err, &target)
}
