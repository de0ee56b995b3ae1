package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/vecmath"
)

// ==================== Vector Store ====================

// vectorStore implements driven.VectorStore over one collection.
// Search scans every point of the collection.
type vectorStore struct {
	store      *Store
	collection string
}

var _ driven.VectorStore = (*vectorStore)(nil)

// EnsureCollection creates the collection with the given vector size.
// An existing collection of another size is a permanent error.
func (s *vectorStore) EnsureCollection(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return domain.Permanent(fmt.Errorf("%w: invalid dimensions %d", domain.ErrVectorStore, dimensions))
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO collections (name, dimensions) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`, s.collection, dimensions)
	if err != nil {
		return fmt.Errorf("%w: creating collection: %w", domain.ErrVectorStore, err)
	}

	existing, err := s.dimensions(ctx)
	if err != nil {
		return err
	}
	if existing != dimensions {
		return domain.Permanent(fmt.Errorf("%w: collection %s has %d dimensions, requested %d",
			domain.ErrVectorStore, s.collection, existing, dimensions))
	}
	return nil
}

// Upsert writes all points in one transaction.
func (s *vectorStore) Upsert(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	dims, err := s.dimensions(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Permanent(fmt.Errorf("%w: collection %s does not exist", domain.ErrVectorStore, s.collection))
	}
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Vector) != dims {
			return domain.Permanent(fmt.Errorf("%w: point %s has %d dimensions, collection has %d",
				domain.ErrVectorStore, p.ID, len(p.Vector), dims))
		}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", domain.ErrVectorStore, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (collection, id, source, text, vector)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			source = excluded.source,
			text = excluded.text,
			vector = excluded.vector
	`)
	if err != nil {
		return fmt.Errorf("%w: preparing upsert: %w", domain.ErrVectorStore, err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, s.collection, p.ID, p.Payload.Source, p.Payload.Text,
			vecmath.Encode(p.Vector)); err != nil {
			return fmt.Errorf("%w: upserting point %s: %w", domain.ErrVectorStore, p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing upsert: %w", domain.ErrVectorStore, err)
	}
	return nil
}

// Search returns up to topK points by cosine similarity, best first.
func (s *vectorStore) Search(ctx context.Context, vector []float32, topK int) (*domain.SearchResult, error) {
	result := &domain.SearchResult{Hits: []domain.SearchHit{}}
	if topK <= 0 {
		return result, nil
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, source, text, vector FROM points WHERE collection = ?
	`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("%w: querying points: %w", domain.ErrVectorStore, err)
	}
	defer rows.Close()

	payloads := make(map[string]domain.PointPayload)
	var scored []vecmath.Scored //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		var payload domain.PointPayload
		var blob []byte
		if err := rows.Scan(&id, &payload.Source, &payload.Text, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning point: %w", domain.ErrVectorStore, err)
		}

		stored, err := vecmath.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: point %s: %w", domain.ErrVectorStore, id, err)
		}
		score, err := vecmath.Cosine(vector, stored)
		if err != nil {
			return nil, domain.Permanent(fmt.Errorf("%w: %w", domain.ErrVectorStore, err))
		}

		payloads[id] = payload
		scored = append(scored, vecmath.Scored{ID: id, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating points: %w", domain.ErrVectorStore, err)
	}

	for _, sc := range vecmath.TopK(scored, topK) {
		p := payloads[sc.ID]
		result.Hits = append(result.Hits, domain.SearchHit{
			ID:     sc.ID,
			Text:   p.Text,
			Source: p.Source,
			Score:  sc.Score,
		})
	}
	return result, nil
}

// Count returns the number of points in the collection.
func (s *vectorStore) Count(ctx context.Context) (int, error) {
	var n int
	row := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM points WHERE collection = ?", s.collection)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting points: %w", domain.ErrVectorStore, err)
	}
	return n, nil
}

// Close is a no-op; the owning Store closes the database.
func (s *vectorStore) Close() error {
	return nil
}

// dimensions returns the vector size of the collection.
func (s *vectorStore) dimensions(ctx context.Context) (int, error) {
	var dims int
	row := s.store.db.QueryRowContext(ctx, "SELECT dimensions FROM collections WHERE name = ?", s.collection)
	if err := row.Scan(&dims); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("%w: reading collection: %w", domain.ErrVectorStore, err)
	}
	return dims, nil
}
