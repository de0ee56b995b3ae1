package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// Engine executes workflow functions as sequences of memoised steps.
//
// A workflow may be invoked any number of times with the same run ID. Steps
// that already completed return their persisted result instead of running
// again, so a re-invocation after a crash or a failed step resumes where the
// previous one stopped.
type Engine struct {
	runs  driven.RunStore
	steps driven.StepStore
	retry domain.RetryPolicy

	// sleep waits between attempts. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*runLock
}

// runLock serialises invocations of one run within the process.
type runLock struct {
	ch   chan struct{}
	refs int
}

// NewEngine creates a workflow engine backed by the given stores.
func NewEngine(runs driven.RunStore, steps driven.StepStore, retry domain.RetryPolicy) *Engine {
	if retry.MaxAttempts <= 0 {
		retry = domain.DefaultRetryPolicy()
	}
	return &Engine{
		runs:  runs,
		steps: steps,
		retry: retry,
		sleep: sleepContext,
		now:   time.Now,
		locks: make(map[string]*runLock),
	}
}

// Runs returns the run store.
func (e *Engine) Runs() driven.RunStore {
	return e.runs
}

// Steps returns the step store.
func (e *Engine) Steps() driven.StepStore {
	return e.steps
}

// Begin opens an invocation of a workflow run, creating the run on first use.
// It blocks while another invocation of the same run is open. The returned
// Run must be closed.
func (e *Engine) Begin(
	ctx context.Context,
	runID string,
	function domain.WorkflowFunction,
	input any,
) (*Run, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: run id is required", domain.ErrInvalidInput)
	}

	release, err := e.lock(ctx, runID)
	if err != nil {
		return nil, err
	}

	record, err := e.load(ctx, runID, function, input)
	if err != nil {
		release()
		return nil, err
	}

	logger.Step(runID, string(function), "invocation %d, status %s", record.Invocations, record.Status)
	return &Run{engine: e, record: *record, release: release}, nil
}

// load fetches or creates the run record and counts the invocation.
func (e *Engine) load(
	ctx context.Context,
	runID string,
	function domain.WorkflowFunction,
	input any,
) (*domain.WorkflowRun, error) {
	now := e.now()

	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode run input: %w", err)
	}

	record, err := e.runs.GetRun(ctx, runID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		record = &domain.WorkflowRun{
			ID:        runID,
			Function:  function,
			Input:     data,
			Status:    domain.RunStatusReceived,
			CreatedAt: now,
		}
	case err != nil:
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	case record.Function != function:
		return nil, fmt.Errorf("%w: run %s belongs to %s, not %s",
			domain.ErrInvalidInput, runID, record.Function, function)
	case !sameInput(record.Input, data):
		// Memoised steps belong to the original input.
		return nil, fmt.Errorf("%w: run %s was started with different input", domain.ErrInvalidInput, runID)
	case record.Status == domain.RunStatusFailed:
		// A failed run starts over; completed steps still short-circuit.
		record.Status = domain.RunStatusReceived
		record.Error = ""
	}

	record.Invocations++
	record.UpdatedAt = now
	if err := e.runs.SaveRun(ctx, record); err != nil {
		return nil, fmt.Errorf("save run %s: %w", runID, err)
	}
	return record, nil
}

// sameInput reports whether two JSON documents encode the same value.
func sameInput(stored, incoming []byte) bool {
	if bytes.Equal(stored, incoming) {
		return true
	}
	var a, b any
	if json.Unmarshal(stored, &a) != nil || json.Unmarshal(incoming, &b) != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// lock acquires the per-run lock, giving up when ctx is done.
//
// The lock is process-local. Two processes sharing one sqlite database can
// still run the same run ID at once, for example `serve` resuming a run while
// `pdfrag ingest --run-id` re-invokes it. Step outputs are idempotent, so the
// later writer wins without corrupting the run.
func (e *Engine) lock(ctx context.Context, runID string) (func(), error) {
	e.mu.Lock()
	l, ok := e.locks[runID]
	if !ok {
		l = &runLock{ch: make(chan struct{}, 1)}
		e.locks[runID] = l
	}
	l.refs++
	e.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		e.unref(runID, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			e.unref(runID, l)
		})
	}, nil
}

func (e *Engine) unref(runID string, l *runLock) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(e.locks, runID)
	}
}

// Run is an open invocation of a workflow run.
type Run struct {
	engine  *Engine
	record  domain.WorkflowRun
	release func()
}

// ID returns the run ID.
func (r *Run) ID() string {
	return r.record.ID
}

// Advance records a state transition.
func (r *Run) Advance(ctx context.Context, status domain.RunStatus) error {
	if r.record.Status == status {
		return nil
	}
	r.record.Status = status
	return r.save(ctx)
}

// Complete stores the workflow output and marks the run successful.
func (r *Run) Complete(ctx context.Context, output any) error {
	data, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode run output: %w", err)
	}
	r.record.Output = data
	r.record.Error = ""
	r.record.Status = domain.RunStatusCompleted
	if r.record.Function == domain.FunctionQueryPDF {
		r.record.Status = domain.RunStatusAnswered
	}
	return r.save(ctx)
}

// Fail marks the run failed with err.
func (r *Run) Fail(ctx context.Context, err error) error {
	r.record.Status = domain.RunStatusFailed
	r.record.Error = err.Error()
	return r.save(ctx)
}

// Close releases the run for other invocations.
func (r *Run) Close() {
	r.release()
}

func (r *Run) save(ctx context.Context) error {
	r.record.UpdatedAt = r.engine.now()
	// The run record is bookkeeping; persist it even if the caller gave up.
	if err := r.engine.runs.SaveRun(context.WithoutCancel(ctx), &r.record); err != nil {
		return fmt.Errorf("save run %s: %w", r.record.ID, err)
	}
	return nil
}

// fail marks the run failed and returns err. A bookkeeping failure is logged,
// never allowed to replace the workflow error.
func (r *Run) fail(ctx context.Context, err error) error {
	if saveErr := r.Fail(ctx, err); saveErr != nil {
		logger.Warn("run %s: %v", r.ID(), saveErr)
	}
	return err
}

// Step runs fn as the named step of run, at most once per run.
//
// If the step already completed in an earlier invocation its persisted result
// is decoded and returned without calling fn. Otherwise fn is attempted up to
// the engine's retry policy, backing off between attempts. Errors for which
// domain.IsRetryable is false end the step immediately. When the step gives
// up the run is marked failed and a *domain.StepError is returned.
func Step[T any](ctx context.Context, run *Run, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	e := run.engine

	rec, err := e.steps.GetStep(ctx, run.ID(), name)
	if err == nil {
		var out T
		if err := json.Unmarshal(rec.Output, &out); err != nil {
			return zero, run.fail(ctx, fmt.Errorf("decode step %q: %w", name, err))
		}
		logger.Step(run.ID(), name, "memoised after %d attempt(s)", rec.Attempts)
		return out, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return zero, run.fail(ctx, fmt.Errorf("load step %q: %w", name, err))
	}

	var lastErr error
	attempts := 0
	for attempts < e.retry.MaxAttempts {
		attempts++
		logger.Step(run.ID(), name, "attempt %d of %d", attempts, e.retry.MaxAttempts)

		out, err := fn(ctx)
		if err == nil {
			if err := e.saveStep(ctx, run.ID(), name, attempts, out); err != nil {
				return zero, run.fail(ctx, err)
			}
			return out, nil
		}

		lastErr = err
		if !domain.IsRetryable(err) || attempts == e.retry.MaxAttempts {
			break
		}

		delay := e.retry.Backoff(attempts)
		logger.Step(run.ID(), name, "attempt %d failed, retrying in %s: %v", attempts, delay, err)
		if err := e.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	stepErr := &domain.StepError{
		RunID:    run.ID(),
		Step:     name,
		Attempts: attempts,
		Err:      lastErr,
	}
	logger.Step(run.ID(), name, "failed: %v", lastErr)
	return zero, run.fail(ctx, stepErr)
}

func (e *Engine) saveStep(ctx context.Context, runID, name string, attempts int, out any) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode step %q: %w", name, err)
	}
	rec := &domain.StepRecord{
		RunID:       runID,
		Name:        name,
		Output:      data,
		Attempts:    attempts,
		CompletedAt: e.now(),
	}
	if err := e.steps.SaveStep(ctx, rec); err != nil {
		return fmt.Errorf("save step %q: %w", name, err)
	}
	return nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
