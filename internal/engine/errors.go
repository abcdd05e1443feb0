package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/nodecheck/internal/job"
)

var (
	// ErrNotFound is returned for an unknown job id.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTarget is returned when no representation of a target ref
	// can be parsed by the document backend.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrUnknownChecker is returned when a selection names a checker that
	// is not registered.
	ErrUnknownChecker = errors.New("unknown checker")

	// ErrClosed is returned after the manager has been closed.
	ErrClosed = errors.New("manager closed")

	// ErrNotModified is returned by LatestResultIfChanged when the caller
	// already has the latest result.
	ErrNotModified = errors.New("result not modified")

	// ErrNotContinuous is returned when retriggering a one-off job.
	ErrNotContinuous = errors.New("job is not continuous")

	// ErrCanceled is returned when retriggering a canceled job.
	ErrCanceled = errors.New("job canceled")
)

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeNotFound indicates an unknown job id.
	ErrCodeNotFound RuntimeErrorCode = "NOT_FOUND"

	// ErrCodeInvalidTarget indicates an unparseable target ref.
	ErrCodeInvalidTarget RuntimeErrorCode = "INVALID_TARGET"

	// ErrCodeSetupFailed indicates a continuous job could not start
	// watching its document. The job is canceled.
	ErrCodeSetupFailed RuntimeErrorCode = "SETUP_FAILED"

	// ErrCodeExecutionFailed indicates an execution ended in the Error
	// state. It is only used for reporting; executions never return errors
	// to callers.
	ErrCodeExecutionFailed RuntimeErrorCode = "EXECUTION_FAILED"
)

// RuntimeError is an error with a code and job context. It unwraps to the
// sentinel or cause in Err, so errors.Is(err, ErrNotFound) works on it.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string
	JobID   job.ID
	Details map[string]string
	Err     error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.JobID != "" {
		msg += fmt.Sprintf(" (job=%s)", e.JobID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first RuntimeError in err's chain, or "".
func CodeOf(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func notFoundError(id job.ID) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNotFound,
		Message: "no such job",
		JobID:   id,
		Err:     ErrNotFound,
	}
}

func invalidTargetError(target fmt.Stringer) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidTarget,
		Message: fmt.Sprintf("no representation of %s is recognised", target),
		Err:     ErrInvalidTarget,
	}
}

func setupFailedError(id job.ID, cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSetupFailed,
		Message: "cannot watch target document",
		JobID:   id,
		Err:     cause,
	}
}

func executionFailedError(id job.ID, msg string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeExecutionFailed,
		Message: msg,
		JobID:   id,
	}
}
