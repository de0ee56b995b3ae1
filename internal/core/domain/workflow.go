package domain

import "time"

// WorkflowFunction names a durable workflow.
type WorkflowFunction string

// Registered workflows.
const (
	// FunctionIngestPDF loads, chunks, embeds and upserts a PDF.
	FunctionIngestPDF WorkflowFunction = "ingest_pdf"

	// FunctionQueryPDF searches the store and generates an answer.
	FunctionQueryPDF WorkflowFunction = "query_pdf"
)

// RunStatus is the state of a workflow run.
type RunStatus string

// Run states. Ingestion moves received -> loaded -> embedded_and_upserted ->
// completed; query moves received -> searched -> answered. Either may end in failed.
const (
	RunStatusReceived            RunStatus = "received"
	RunStatusLoaded              RunStatus = "loaded"
	RunStatusEmbeddedAndUpserted RunStatus = "embedded_and_upserted"
	RunStatusCompleted           RunStatus = "completed"
	RunStatusSearched            RunStatus = "searched"
	RunStatusAnswered            RunStatus = "answered"
	RunStatusFailed              RunStatus = "failed"
)

// IsTerminal reports whether no further transitions are expected.
// A failed run is terminal until it is explicitly resumed.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusAnswered, RunStatusFailed:
		return true
	default:
		return false
	}
}

// IsSuccess reports whether the run finished without error.
func (s RunStatus) IsSuccess() bool {
	return s == RunStatusCompleted || s == RunStatusAnswered
}

// String returns the string representation.
func (s RunStatus) String() string {
	return string(s)
}

// WorkflowRun is the persisted record of one workflow invocation chain.
type WorkflowRun struct {
	// ID is the run ID. Steps are memoised per (ID, step name).
	ID string

	// Function is the workflow that owns the run.
	Function WorkflowFunction

	// Input is the JSON-encoded trigger payload.
	Input []byte

	// Output is the JSON-encoded result once the run succeeds.
	Output []byte

	// Status is the current state.
	Status RunStatus

	// Error is the last failure message, if any.
	Error string

	// Invocations counts how many times the workflow function was entered.
	Invocations int

	// CreatedAt is when the run was first received.
	CreatedAt time.Time

	// UpdatedAt is when the run last changed state.
	UpdatedAt time.Time
}

// StepRecord is a memoised step result.
type StepRecord struct {
	// RunID identifies the owning run.
	RunID string

	// Name is the step name, unique within a run.
	Name string

	// Output is the JSON-encoded step result.
	Output []byte

	// Attempts is how many attempts the step needed to succeed.
	Attempts int

	// CompletedAt is when the result was persisted.
	CompletedAt time.Time
}

// RetryPolicy bounds step retries.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts per step invocation.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt. It doubles each retry.
	BaseDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Backoff returns the delay after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
