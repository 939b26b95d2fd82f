package generation

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrJobNotFound is returned when no job exists for the given identifier
	ErrJobNotFound = errors.New("generation job not found")

	// ErrForbidden is returned when the requester does not own the job
	ErrForbidden = errors.New("generation job belongs to another owner")
)

// ValidationError rejects a submission before any job record is created
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s %s", e.Field, e.Reason)
}

// StepExecutionError records the failure of one pipeline step
type StepExecutionError struct {
	Step    StepName
	Message string
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %s failed: %s", e.Step, e.Message)
}

// TimeoutError is returned by the poller when a job does not reach a terminal
// state within the configured maximum wait. It says nothing about the job
// itself, which may still be running server-side.
type TimeoutError struct {
	JobID   string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("polling job %s timed out after %s", e.JobID, e.Elapsed)
}
