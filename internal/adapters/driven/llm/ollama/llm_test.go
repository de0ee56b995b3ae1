package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

func TestChat_SendsMessagesAndOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "question", req.Messages[1].Content)
		require.NotNil(t, req.Options)
		assert.Equal(t, 1024, req.Options.NumPredict)
		assert.InDelta(t, 0.2, req.Options.Temperature, 1e-9)

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"the answer"},"done":true}`))
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL})
	answer, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: "be brief"},
		{Role: driven.RoleUser, Content: "question"},
	}, driven.ChatOptions{MaxTokens: 1024, Temperature: 0.2})

	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
}

func TestChat_OmitsUnsetOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mistral", req.Model)
		assert.Nil(t, req.Options)

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"world"},"done":true}`))
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL, Model: "mistral"})
	out, err := svc.Chat(context.Background(), []driven.ChatMessage{{Role: driven.RoleUser, Content: "hello"}},
		driven.ChatOptions{})

	require.NoError(t, err)
	assert.Equal(t, "world", out)
	assert.Equal(t, "mistral", svc.ModelName())
}

func TestChat_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{name: "unknown model", status: http.StatusNotFound, retryable: false},
		{name: "server error", status: http.StatusInternalServerError, retryable: true},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"failed"}`))
			}))
			defer srv.Close()

			svc := NewLLMService(LLMConfig{BaseURL: srv.URL})
			_, err := svc.Chat(context.Background(), []driven.ChatMessage{{Role: driven.RoleUser, Content: "q"}},
				driven.ChatOptions{})

			require.Error(t, err)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err))
		})
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	svc := NewLLMService(LLMConfig{BaseURL: srv.URL})
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}
