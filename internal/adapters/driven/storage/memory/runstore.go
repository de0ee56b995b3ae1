package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]domain.WorkflowRun
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]domain.WorkflowRun),
	}
}

// GetRun retrieves a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID string) (*domain.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRun(run), nil
}

// SaveRun creates or updates a run.
func (s *RunStore) SaveRun(_ context.Context, run *domain.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *cloneRun(*run)
	return nil
}

// ListRuns returns runs newest first.
func (s *RunStore) ListRuns(_ context.Context, limit int) ([]domain.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]domain.WorkflowRun, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, *cloneRun(run))
	}
	sortNewestFirst(runs)

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// ListIncomplete returns non-terminal runs of function, oldest first.
func (s *RunStore) ListIncomplete(_ context.Context, function domain.WorkflowFunction) ([]domain.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []domain.WorkflowRun
	for _, run := range s.runs {
		if run.Function == function && !run.Status.IsTerminal() {
			runs = append(runs, *cloneRun(run))
		}
	}
	sortNewestFirst(runs)
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs, nil
}

func sortNewestFirst(runs []domain.WorkflowRun) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID > runs[j].ID
	})
}

func cloneRun(run domain.WorkflowRun) *domain.WorkflowRun {
	run.Input = append([]byte(nil), run.Input...)
	run.Output = append([]byte(nil), run.Output...)
	return &run
}
