package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// fakeQdrant serves the handful of collection endpoints the store uses.
type fakeQdrant struct {
	mu      sync.Mutex
	size    int
	points  map[string]point
	creates int
	apiKeys []string
}

func newFakeQdrant(t *testing.T) (*fakeQdrant, *Store) {
	t.Helper()
	f := &fakeQdrant{points: make(map[string]point)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, NewStore(Config{URL: srv.URL, Collection: "docs", APIKey: "secret"})
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	route := r.Method + " " + r.URL.Path
	if f.size == 0 && route != "PUT /collections/docs" {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":{"error":"Not found: Collection docs doesn't exist!"}}`))
		return
	}

	switch route {
	case "GET /collections/docs":
		writeResult(w, map[string]any{
			"config": map[string]any{"params": map[string]any{"vectors": map[string]any{"size": f.size}}},
		})
	case "PUT /collections/docs":
		var req struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.size = req.Vectors.Size
		f.creates++
		writeResult(w, true)
	case "PUT /collections/docs/points":
		var req struct {
			Points []point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, p := range req.Points {
			if len(p.Vector) != f.size {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"status":{"error":"Wrong input: Vector dimension error"}}`))
				return
			}
		}
		for _, p := range req.Points {
			f.points[p.ID] = p
		}
		writeResult(w, map[string]any{"status": "completed"})
	case "POST /collections/docs/points/search":
		var req struct {
			Limit int `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		hits := []map[string]any{}
		for id, p := range f.points {
			if len(hits) == req.Limit {
				break
			}
			hits = append(hits, map[string]any{"id": id, "score": 0.9, "payload": p.Payload})
		}
		writeResult(w, hits)
	case "POST /collections/docs/points/count":
		writeResult(w, map[string]any{"count": len(f.points)})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok", "time": 0.001})
}

func TestEnsureCollection_CreatesOnce(t *testing.T) {
	f, store := newFakeQdrant(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureCollection(ctx, 3))
	require.NoError(t, store.EnsureCollection(ctx, 3))

	assert.Equal(t, 1, f.creates)
	assert.Equal(t, 3, f.size)
	for _, key := range f.apiKeys {
		assert.Equal(t, "secret", key)
	}
}

func TestEnsureCollection_DimensionMismatch(t *testing.T) {
	_, store := newFakeQdrant(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, 3))

	err := store.EnsureCollection(ctx, 4)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVectorStore)
	assert.False(t, domain.IsRetryable(err))
}

func TestEnsureCollection_InvalidDimensions(t *testing.T) {
	_, store := newFakeQdrant(t)
	err := store.EnsureCollection(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrVectorStore)
}

func TestUpsertSearchCount(t *testing.T) {
	_, store := newFakeQdrant(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, 2))

	points := []domain.Point{
		{ID: "6f1c0a52-0000-5000-8000-000000000001", Vector: []float32{1, 0}, Payload: domain.PointPayload{Source: "a.pdf", Text: "one"}},
		{ID: "6f1c0a52-0000-5000-8000-000000000002", Vector: []float32{0, 1}, Payload: domain.PointPayload{Source: "a.pdf", Text: "two"}},
	}
	require.NoError(t, store.Upsert(ctx, points))
	require.NoError(t, store.Upsert(ctx, points))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	result, err := store.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "a.pdf", result.Hits[0].Source)
	assert.Contains(t, []string{"one", "two"}, result.Hits[0].Text)
	assert.InDelta(t, 0.9, result.Hits[0].Score, 1e-9)
}

func TestUpsert_RejectedIsPermanent(t *testing.T) {
	_, store := newFakeQdrant(t)
	ctx := context.Background()
	require.NoError(t, store.EnsureCollection(ctx, 2))

	err := store.Upsert(ctx, []domain.Point{{ID: "x", Vector: []float32{1, 2, 3}}})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVectorStore)
	assert.False(t, domain.IsRetryable(err))
	assert.Contains(t, err.Error(), "Vector dimension error")
}

func TestMissingCollection(t *testing.T) {
	_, store := newFakeQdrant(t)
	ctx := context.Background()

	result, err := store.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, result.Hits)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = store.Upsert(ctx, []domain.Point{{ID: "x", Vector: []float32{1}}})
	assert.ErrorIs(t, err, domain.ErrVectorStore)
}

func TestSearch_NonPositiveTopK(t *testing.T) {
	f, store := newFakeQdrant(t)

	result, err := store.Search(context.Background(), []float32{1}, 0)

	require.NoError(t, err)
	assert.Empty(t, result.Hits)
	assert.Empty(t, f.apiKeys, "no request expected")
}

func TestServerErrorIsRetryable(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := NewStore(Config{URL: srv.URL})
	_, err := store.Count(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVectorStore)
	assert.True(t, domain.IsRetryable(err))
	assert.True(t, strings.HasPrefix(path, "/collections/"+DefaultCollection+"/"), path)
}

func TestPointID(t *testing.T) {
	assert.Equal(t, "abc", pointID(json.RawMessage(`"abc"`)))
	assert.Equal(t, "42", pointID(json.RawMessage(`42`)))
}
