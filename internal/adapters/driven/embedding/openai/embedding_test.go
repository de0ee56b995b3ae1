package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

func newTestService(t *testing.T, handler http.HandlerFunc, cfg Config) *EmbeddingService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	if cfg.APIKey == "" {
		cfg.APIKey = "test-key"
	}
	svc, err := NewEmbeddingService(cfg)
	require.NoError(t, err)
	return svc
}

func TestNewEmbeddingService_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestNewEmbeddingService_Dimensions(t *testing.T) {
	tests := []struct {
		model    string
		override int
		want     int
	}{
		{model: "", want: 1536},
		{model: "text-embedding-3-large", want: 3072},
		{model: "text-embedding-3-large", override: 256, want: 256},
		{model: "custom-model", want: 1536},
	}

	for _, tt := range tests {
		svc, err := NewEmbeddingService(Config{APIKey: "k", Model: tt.model, Dimensions: tt.override})
		require.NoError(t, err)
		if svc.Dimensions() != tt.want {
			t.Errorf("model %q override %d: Dimensions() = %d, want %d",
				tt.model, tt.override, svc.Dimensions(), tt.want)
		}
	}
}

func TestEmbedBatch_OrdersByIndex(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body["model"])
		assert.Equal(t, []any{"first", "second"}, body["input"])
		assert.EqualValues(t, 2, body["dimensions"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.0, 1.0]},
				{"object": "embedding", "index": 0, "embedding": [1.0, 0.0]}
			],
			"usage": {"prompt_tokens": 2, "total_tokens": 2}
		}`))
	}, Config{Dimensions: 2})

	vectors, err := svc.EmbedBatch(context.Background(), []string{"first", "second"})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{0, 1}, vectors[1])
}

func TestEmbedBatch_MissingEmbedding(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1.0]}]}`))
	}, Config{})

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}, Config{})

	vectors, err := svc.EmbedBatch(context.Background(), []string{})
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedBatch_APIErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{name: "invalid key", status: http.StatusUnauthorized, retryable: false},
		{name: "rate limited", status: http.StatusTooManyRequests, retryable: true},
		{name: "server error", status: http.StatusInternalServerError, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
			}, Config{})

			_, err := svc.EmbedBatch(context.Background(), []string{"x"})

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))
			assert.Equal(t, 1, calls, "the SDK must not retry on its own")
		})
	}
}

func TestPing(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}, Config{})

	assert.NoError(t, svc.Ping(context.Background()))
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.NoError(t, svc.Close())
}
