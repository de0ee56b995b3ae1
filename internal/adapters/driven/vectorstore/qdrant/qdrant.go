// Package qdrant provides a vector store adapter over the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Default configuration values.
const (
	DefaultURL        = "http://localhost:6333"
	DefaultCollection = "docs"
	DefaultTimeout    = 30 * time.Second
)

// errCollectionMissing marks a 404 from a collection endpoint.
var errCollectionMissing = errors.New("collection does not exist")

// Config holds configuration for the Qdrant store.
type Config struct {
	// URL is the Qdrant REST endpoint (default: http://localhost:6333).
	URL string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// Collection holds the points (default: docs).
	Collection string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Store keeps points in one Qdrant collection using cosine distance.
// It holds only an HTTP client and is safe for concurrent use.
type Store struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	collection string
}

// point is the Qdrant point format.
type point struct {
	ID      string              `json:"id"`
	Vector  []float32           `json:"vector"`
	Payload domain.PointPayload `json:"payload"`
}

// scoredPoint is a Qdrant search hit.
type scoredPoint struct {
	ID      json.RawMessage     `json:"id"`
	Score   float64             `json:"score"`
	Payload domain.PointPayload `json:"payload"`
}

// envelope wraps every Qdrant response.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

// NewStore creates a Qdrant store. No request is made until first use.
func NewStore(cfg Config) *Store {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Store{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
	}
}

// EnsureCollection creates the collection if it is missing.
// An existing collection with another vector size is a permanent error.
func (s *Store) EnsureCollection(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return domain.Permanent(fmt.Errorf("%w: invalid dimensions %d", domain.ErrVectorStore, dimensions))
	}

	size, err := s.collectionSize(ctx)
	switch {
	case errors.Is(err, errCollectionMissing):
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimensions,
				"distance": "Cosine",
			},
		}
		return s.do(ctx, http.MethodPut, s.collectionPath(""), body, nil)
	case err != nil:
		return err
	case size != dimensions:
		return domain.Permanent(fmt.Errorf("%w: collection %s has %d dimensions, requested %d",
			domain.ErrVectorStore, s.collection, size, dimensions))
	}
	return nil
}

// collectionSize returns the configured vector size of the collection.
func (s *Store) collectionSize(ctx context.Context) (int, error) {
	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := s.do(ctx, http.MethodGet, s.collectionPath(""), nil, &info); err != nil {
		return 0, err
	}
	return info.Config.Params.Vectors.Size, nil
}

// Upsert writes all points in one request and waits for them to be applied.
// Qdrant applies a batch atomically, so a call stores every point or none.
func (s *Store) Upsert(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	batch := make([]point, len(points))
	for i, p := range points {
		batch[i] = point{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}

	body := map[string]any{"points": batch}
	return s.do(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), body, nil)
}

// Search returns up to topK points by cosine similarity, best first.
func (s *Store) Search(ctx context.Context, vector []float32, topK int) (*domain.SearchResult, error) {
	if topK <= 0 {
		return &domain.SearchResult{Hits: []domain.SearchHit{}}, nil
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}

	var found []scoredPoint
	err := s.do(ctx, http.MethodPost, s.collectionPath("/points/search"), body, &found)
	if errors.Is(err, errCollectionMissing) {
		return &domain.SearchResult{Hits: []domain.SearchHit{}}, nil
	}
	if err != nil {
		return nil, err
	}

	hits := make([]domain.SearchHit, 0, len(found))
	for _, p := range found {
		hits = append(hits, domain.SearchHit{
			ID:     pointID(p.ID),
			Text:   p.Payload.Text,
			Source: p.Payload.Source,
			Score:  p.Score,
		})
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return &domain.SearchResult{Hits: hits}, nil
}

// pointID renders a Qdrant id, which is either a UUID string or an integer.
func pointID(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	return string(raw)
}

// Count returns the exact number of points in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	body := map[string]any{"exact": true}
	err := s.do(ctx, http.MethodPost, s.collectionPath("/points/count"), body, &result)
	if errors.Is(err, errCollectionMissing) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return result.Count, nil
}

// Close releases resources.
func (s *Store) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

func (s *Store) collectionPath(suffix string) string {
	return s.baseURL + "/collections/" + url.PathEscape(s.collection) + suffix
}

// do sends a JSON request and decodes the result field of the response into out.
func (s *Store) do(ctx context.Context, method, target string, in, out any) error {
	var reader io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: qdrant %s: %w", domain.ErrVectorStore, method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", domain.ErrVectorStore, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return domain.Permanent(fmt.Errorf("%w: %w: %s", domain.ErrVectorStore, errCollectionMissing, s.collection))
	}
	if resp.StatusCode >= 300 {
		return statusError(method, resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrVectorStore, err)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%w: decode result: %w", domain.ErrVectorStore, err)
	}
	return nil
}

// statusError maps a Qdrant error response onto the domain taxonomy.
// Rejected writes (wrong vector size, bad ids) will not succeed on retry.
func statusError(method string, status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var errResp struct {
		Status struct {
			Error string `json:"error"`
		} `json:"status"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Status.Error != "" {
		message = errResp.Status.Error
	}

	err := fmt.Errorf("%w: qdrant %s failed (status %d): %s", domain.ErrVectorStore, method, status, message)
	if status >= 400 && status < 500 && status != http.StatusRequestTimeout && status != http.StatusTooManyRequests {
		return domain.Permanent(err)
	}
	return err
}
