package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
)

// Ensure RunService implements the interface.
var _ driving.RunService = (*RunService)(nil)

// RunService inspects stored runs and re-invokes the ones that did not finish.
type RunService struct {
	engine *Engine
	ingest *IngestWorkflow
	query  *QueryWorkflow
}

// NewRunService creates a run service. Either workflow may be nil, in which
// case its runs can be listed but not resumed.
func NewRunService(engine *Engine, ingest *IngestWorkflow, query *QueryWorkflow) *RunService {
	return &RunService{
		engine: engine,
		ingest: ingest,
		query:  query,
	}
}

// List returns recent runs, newest first.
func (s *RunService) List(ctx context.Context, limit int) ([]domain.WorkflowRun, error) {
	return s.engine.Runs().ListRuns(ctx, limit)
}

// Get returns a run and its memoised steps.
func (s *RunService) Get(ctx context.Context, runID string) (*driving.RunDetail, error) {
	run, err := s.engine.Runs().GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	steps, err := s.engine.Steps().ListSteps(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	return &driving.RunDetail{Run: *run, Steps: steps}, nil
}

// Resume re-invokes a run from the top with its stored input. A run that
// already succeeded returns its stored output without running anything.
func (s *RunService) Resume(ctx context.Context, runID string) (*driving.RunDetail, error) {
	run, err := s.engine.Runs().GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	if !run.Status.IsSuccess() {
		if err := s.resume(ctx, run); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, runID)
}

// ResumeIncomplete resumes every ingest run left in a non-terminal state,
// typically by a crash. Failures are collected so one bad run does not block
// the others.
func (s *RunService) ResumeIncomplete(ctx context.Context) (int, error) {
	runs, err := s.engine.Runs().ListIncomplete(ctx, domain.FunctionIngestPDF)
	if err != nil {
		return 0, fmt.Errorf("list incomplete runs: %w", err)
	}

	var errs []error
	resumed := 0
	for i := range runs {
		if err := s.resume(ctx, &runs[i]); err != nil {
			log.Printf("runs: failed to resume %s: %v", runs[i].ID, err)
			errs = append(errs, fmt.Errorf("run %s: %w", runs[i].ID, err))
			continue
		}
		resumed++
	}
	return resumed, errors.Join(errs...)
}

func (s *RunService) resume(ctx context.Context, run *domain.WorkflowRun) error {
	switch run.Function {
	case domain.FunctionIngestPDF:
		if s.ingest == nil {
			return fmt.Errorf("%w: ingest workflow not configured", domain.ErrUnsupportedType)
		}
		return s.ingest.resume(ctx, run)
	case domain.FunctionQueryPDF:
		if s.query == nil {
			return fmt.Errorf("%w: query workflow not configured", domain.ErrUnsupportedType)
		}
		req, err := decodeInput[domain.QueryRequest](run)
		if err != nil {
			return err
		}
		req.RunID = run.ID
		_, err = s.query.Query(ctx, req)
		return err
	default:
		return fmt.Errorf("%w: workflow %q", domain.ErrUnsupportedType, run.Function)
	}
}

// decodeInput decodes the stored trigger payload of a run.
func decodeInput[T any](run *domain.WorkflowRun) (T, error) {
	var in T
	if err := json.Unmarshal(run.Input, &in); err != nil {
		return in, fmt.Errorf("%w: decode input of run %s: %v", domain.ErrInvalidInput, run.ID, err)
	}
	return in, nil
}
