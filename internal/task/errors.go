package task

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyJobID  = errors.New("empty job id")
	ErrPollTimeout = errors.New("job did not finish in time")
	ErrNoStatus    = errors.New("status source returned no job")
)

// FailureError describes a job that the service reported as FAILURE.
type FailureError struct {
	JobID  string
	Reason string
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Reason)
}
