package domain

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// Adapters wrap these with fmt.Errorf("%w: ...") so callers can match with errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider or backend type.
	ErrUnsupportedType = errors.New("unsupported type")

	// Pipeline Errors.

	// ErrExtraction indicates the source document is unreadable or unsupported.
	ErrExtraction = errors.New("text extraction failed")

	// ErrEmbeddingProvider indicates the embedding capability is unavailable or
	// returned an inconsistent vector count or dimension.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrVectorStore indicates a connectivity failure, a dimension mismatch,
	// or a rejected write in the vector store.
	ErrVectorStore = errors.New("vector store error")

	// ErrGeneration indicates the chat capability is unavailable or returned
	// an empty or invalid response.
	ErrGeneration = errors.New("generation failed")

	// ErrAdmissionRejected indicates a request exceeded the throttle or rate limit.
	ErrAdmissionRejected = errors.New("admission rejected")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the workflow engine fails the step immediately.
// Deterministic failures (bad input, dimension mismatch) belong here.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether a step failing with err may be attempted again.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var p *permanentError
	switch {
	case errors.As(err, &p):
		return false
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrAdmissionRejected):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// StepError is returned when a workflow step fails for good.
type StepError struct {
	// RunID identifies the workflow run.
	RunID string

	// Step is the step name.
	Step string

	// Attempts is how many times the step ran in this invocation.
	Attempts int

	// Err is the last error returned by the step.
	Err error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed after %d attempt(s): %v", e.Step, e.Attempts, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
