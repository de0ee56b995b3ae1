package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/vecmath"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
// Search is a brute-force cosine scan.
type VectorStore struct {
	mu         sync.RWMutex
	dimensions int
	points     map[string]domain.Point
}

// NewVectorStore creates an empty in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		points: make(map[string]domain.Point),
	}
}

// EnsureCollection fixes the vector size on first use.
func (s *VectorStore) EnsureCollection(_ context.Context, dimensions int) error {
	if dimensions <= 0 {
		return domain.Permanent(fmt.Errorf("%w: invalid dimensions %d", domain.ErrVectorStore, dimensions))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimensions == 0 {
		s.dimensions = dimensions
		return nil
	}
	if s.dimensions != dimensions {
		return domain.Permanent(fmt.Errorf("%w: collection has %d dimensions, requested %d",
			domain.ErrVectorStore, s.dimensions, dimensions))
	}
	return nil
}

// Upsert stores all points or none.
func (s *VectorStore) Upsert(_ context.Context, points []domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if s.dimensions != 0 && len(p.Vector) != s.dimensions {
			return domain.Permanent(fmt.Errorf("%w: point %s has %d dimensions, collection has %d",
				domain.ErrVectorStore, p.ID, len(p.Vector), s.dimensions))
		}
	}
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		s.points[p.ID] = p
	}
	return nil
}

// Search returns up to topK points by cosine similarity.
func (s *VectorStore) Search(_ context.Context, vector []float32, topK int) (*domain.SearchResult, error) {
	result := &domain.SearchResult{Hits: []domain.SearchHit{}}
	if topK <= 0 {
		return result, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]vecmath.Scored, 0, len(s.points))
	for id, p := range s.points {
		score, err := vecmath.Cosine(vector, p.Vector)
		if err != nil {
			return nil, domain.Permanent(fmt.Errorf("%w: %w", domain.ErrVectorStore, err))
		}
		scored = append(scored, vecmath.Scored{ID: id, Score: score})
	}

	for _, sc := range vecmath.TopK(scored, topK) {
		p := s.points[sc.ID]
		result.Hits = append(result.Hits, domain.SearchHit{
			ID:     p.ID,
			Text:   p.Payload.Text,
			Source: p.Payload.Source,
			Score:  sc.Score,
		})
	}
	return result, nil
}

// Count returns the number of stored points.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points), nil
}

// Point returns a stored point by ID.
func (s *VectorStore) Point(id string) (domain.Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.points[id]
	return p, ok
}

// Close is a no-op.
func (s *VectorStore) Close() error {
	return nil
}
