package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

func newTestEngine() (*Engine, *[]time.Duration) {
	engine := NewEngine(memory.NewRunStore(), memory.NewStepStore(), domain.DefaultRetryPolicy())
	delays := &[]time.Duration{}
	engine.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return engine, delays
}

type payload struct {
	Value string `json:"value"`
}

func TestEngine_Begin_CreatesRun(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	run, err := engine.Begin(ctx, "run-1", domain.FunctionIngestPDF, domain.IngestRequest{PDFPath: "a.pdf"})
	require.NoError(t, err)
	run.Close()

	stored, err := engine.Runs().GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusReceived, stored.Status)
	assert.Equal(t, 1, stored.Invocations)
	assert.JSONEq(t, `{"pdf_path":"a.pdf"}`, string(stored.Input))
}

func TestEngine_Begin_Validation(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	_, err := engine.Begin(ctx, "", domain.FunctionIngestPDF, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	run, err := engine.Begin(ctx, "run-1", domain.FunctionIngestPDF, nil)
	require.NoError(t, err)
	run.Close()

	_, err = engine.Begin(ctx, "run-1", domain.FunctionQueryPDF, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEngine_Begin_RejectsDifferentInput(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	run, err := engine.Begin(ctx, "run-1", domain.FunctionIngestPDF, domain.IngestRequest{PDFPath: "a.pdf"})
	require.NoError(t, err)
	run.Close()

	_, err = engine.Begin(ctx, "run-1", domain.FunctionIngestPDF, domain.IngestRequest{PDFPath: "b.pdf"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "different input")

	stored, err := engine.Runs().GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Invocations)

	// The same input re-invokes the run.
	run, err = engine.Begin(ctx, "run-1", domain.FunctionIngestPDF, domain.IngestRequest{PDFPath: "a.pdf"})
	require.NoError(t, err)
	run.Close()
}

func TestSameInput(t *testing.T) {
	assert.True(t, sameInput([]byte(`{"a":1,"b":"x"}`), []byte(`{"a":1,"b":"x"}`)))
	assert.True(t, sameInput([]byte(`{"b":"x", "a":1}`), []byte(`{"a":1,"b":"x"}`)))
	assert.False(t, sameInput([]byte(`{"a":1}`), []byte(`{"a":2}`)))
	assert.False(t, sameInput(nil, []byte(`{"a":1}`)))
}

func TestStep_MemoisesResult(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()
	calls := 0
	fn := func(context.Context) (payload, error) {
		calls++
		return payload{Value: fmt.Sprintf("call-%d", calls)}, nil
	}

	for i := 0; i < 3; i++ {
		run, err := engine.Begin(ctx, "run-1", domain.FunctionIngestPDF, nil)
		require.NoError(t, err)

		out, err := Step(ctx, run, "only", fn)
		require.NoError(t, err)
		assert.Equal(t, "call-1", out.Value)
		run.Close()
	}

	assert.Equal(t, 1, calls)

	stored, err := engine.Runs().GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Invocations)
}

func TestStep_RetriesTransientFailures(t *testing.T) {
	engine, delays := newTestEngine()
	ctx := context.Background()

	run, err := engine.Begin(ctx, "run-1", domain.FunctionIngestPDF, nil)
	require.NoError(t, err)
	defer run.Close()

	calls := 0
	out, err := Step(ctx, run, "flaky", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, fmt.Errorf("%w: timeout", domain.ErrVectorStore)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 400 * time.Millisecond}, *delays)

	rec, err := engine.Steps().GetStep(ctx, "run-1", "flaky")
	require.NoError(t, err)
	assert.Equal(t, 3, rec.Attempts)
}

func TestStep_ExhaustionFailsRun(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	run, err := engine.Begin(ctx, "run-1", domain.FunctionIngestPDF, nil)
	require.NoError(t, err)
	defer run.Close()

	calls := 0
	_, err = Step(ctx, run, "down", func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("%w: connection refused", domain.ErrEmbeddingProvider)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)

	var stepErr *domain.StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "down", stepErr.Step)
	assert.Equal(t, 3, stepErr.Attempts)

	stored, err := engine.Runs().GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "connection refused")

	_, err = engine.Steps().GetStep(ctx, "run-1", "down")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStep_PermanentErrorIsNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"permanent", domain.Permanent(errors.New("bad pdf"))},
		{"invalid input", fmt.Errorf("%w: overlap", domain.ErrInvalidInput)},
		{"cancelled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, delays := newTestEngine()
			ctx := context.Background()

			run, err := engine.Begin(ctx, "run-1", domain.FunctionIngestPDF, nil)
			require.NoError(t, err)
			defer run.Close()

			calls := 0
			_, err = Step(ctx, run, "step", func(context.Context) (int, error) {
				calls++
				return 0, tt.err
			})
			require.Error(t, err)
			assert.Equal(t, 1, calls)
			assert.Empty(t, *delays)
		})
	}
}

func TestStep_BackoffInterruptedByContext(t *testing.T) {
	engine, _ := newTestEngine()
	engine.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	run, err := engine.Begin(ctx, "run-1", domain.FunctionIngestPDF, nil)
	require.NoError(t, err)
	defer run.Close()

	_, err = Step(ctx, run, "step", func(context.Context) (int, error) {
		cancel()
		return 0, domain.ErrVectorStore
	})
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := engine.Runs().GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, stored.Status)
}

func TestStep_ResumeAfterFailureSkipsCompletedSteps(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()
	firstCalls, secondCalls := 0, 0
	secondFails := true

	invoke := func() error {
		run, err := engine.Begin(ctx, "run-1", domain.FunctionIngestPDF, nil)
		require.NoError(t, err)
		defer run.Close()

		a, err := Step(ctx, run, "first", func(context.Context) (payload, error) {
			firstCalls++
			return payload{Value: "loaded"}, nil
		})
		if err != nil {
			return err
		}
		_, err = Step(ctx, run, "second", func(context.Context) (string, error) {
			secondCalls++
			if secondFails {
				return "", domain.ErrVectorStore
			}
			return a.Value + "+stored", nil
		})
		if err != nil {
			return err
		}
		return run.Complete(ctx, a)
	}

	require.Error(t, invoke())
	stored, _ := engine.Runs().GetRun(ctx, "run-1")
	assert.Equal(t, domain.RunStatusFailed, stored.Status)

	secondFails = false
	require.NoError(t, invoke())

	assert.Equal(t, 1, firstCalls)
	assert.Equal(t, 4, secondCalls)

	stored, _ = engine.Runs().GetRun(ctx, "run-1")
	assert.Equal(t, domain.RunStatusCompleted, stored.Status)
	assert.Empty(t, stored.Error)
	assert.Equal(t, 2, stored.Invocations)
}

func TestRun_Complete_QuerySetsAnswered(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	run, err := engine.Begin(ctx, "q-1", domain.FunctionQueryPDF, nil)
	require.NoError(t, err)
	require.NoError(t, run.Advance(ctx, domain.RunStatusSearched))
	require.NoError(t, run.Complete(ctx, domain.QueryResult{Answer: "42"}))
	run.Close()

	stored, err := engine.Runs().GetRun(ctx, "q-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusAnswered, stored.Status)
	assert.JSONEq(t, `{"answer":"42","sources":null,"num_contexts":0}`, string(stored.Output))
}

func TestEngine_SerialisesSameRun(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	var active, maxActive, calls int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := engine.Begin(ctx, "shared", domain.FunctionIngestPDF, nil)
			if !assert.NoError(t, err) {
				return
			}
			defer run.Close()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			_, err = Step(ctx, run, "once", func(context.Context) (int, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(time.Millisecond)
				return 1, nil
			})
			assert.NoError(t, err)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, int32(1), calls)
	assert.Empty(t, engine.locks)
}

func TestEngine_BeginHonoursContextWhileLocked(t *testing.T) {
	engine, _ := newTestEngine()

	run, err := engine.Begin(context.Background(), "busy", domain.FunctionIngestPDF, nil)
	require.NoError(t, err)
	defer run.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = engine.Begin(ctx, "busy", domain.FunctionIngestPDF, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// Engines sharing stores stand in for two processes on one database: the run
// lock does not span them, but completed steps are still shared.
func TestEngine_LockIsPerEngine(t *testing.T) {
	runs, steps := memory.NewRunStore(), memory.NewStepStore()
	first := NewEngine(runs, steps, domain.DefaultRetryPolicy())
	second := NewEngine(runs, steps, domain.DefaultRetryPolicy())

	held, err := first.Begin(context.Background(), "shared", domain.FunctionIngestPDF, nil)
	require.NoError(t, err)
	defer held.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	other, err := second.Begin(ctx, "shared", domain.FunctionIngestPDF, nil)
	require.NoError(t, err)

	out, err := Step(ctx, other, "once", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, out)
	other.Close()

	out, err = Step(context.Background(), held, "once", func(context.Context) (int, error) {
		t.Error("completed step ran again")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}
