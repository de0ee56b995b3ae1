package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// Ensure StepStore implements the interface.
var _ driven.StepStore = (*StepStore)(nil)

type stepKey struct {
	runID string
	name  string
}

// StepStore is an in-memory implementation of driven.StepStore.
type StepStore struct {
	mu    sync.RWMutex
	steps map[stepKey]domain.StepRecord
	order map[string][]string
}

// NewStepStore creates a new in-memory step store.
func NewStepStore() *StepStore {
	return &StepStore{
		steps: make(map[stepKey]domain.StepRecord),
		order: make(map[string][]string),
	}
}

// GetStep retrieves a memoised step.
func (s *StepStore) GetStep(_ context.Context, runID, name string) (*domain.StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	step, ok := s.steps[stepKey{runID, name}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	step.Output = append([]byte(nil), step.Output...)
	return &step, nil
}

// SaveStep persists a completed step.
func (s *StepStore) SaveStep(_ context.Context, step *domain.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stepKey{step.RunID, step.Name}
	if _, ok := s.steps[key]; !ok {
		s.order[step.RunID] = append(s.order[step.RunID], step.Name)
	}
	saved := *step
	saved.Output = append([]byte(nil), step.Output...)
	s.steps[key] = saved
	return nil
}

// ListSteps returns the steps of a run in completion order.
func (s *StepStore) ListSteps(_ context.Context, runID string) ([]domain.StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := s.order[runID]
	steps := make([]domain.StepRecord, 0, len(names))
	for _, name := range names {
		steps = append(steps, s.steps[stepKey{runID, name}])
	}
	return steps, nil
}
