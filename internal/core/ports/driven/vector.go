package driven

import (
	"context"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// VectorStore persists points and answers cosine similarity queries.
// Implementations must be safe for concurrent use.
type VectorStore interface {
	// EnsureCollection creates the collection for vectors of the given size
	// if it does not exist yet.
	EnsureCollection(ctx context.Context, dimensions int) error

	// Upsert inserts or overwrites points by ID. A call either stores every
	// point or none of them.
	Upsert(ctx context.Context, points []domain.Point) error

	// Search returns up to topK points closest to vector, best first.
	// A topK of zero or less returns an empty result.
	Search(ctx context.Context, vector []float32, topK int) (*domain.SearchResult, error)

	// Count returns the number of stored points.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}
