// Package ai provides factory functions for creating AI service and vector store adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/pdfrag/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/pdfrag/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/pdfrag/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/pdfrag/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/pdfrag/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/vectorstore/qdrant"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/normalisers/pdf"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the services built from settings.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	VectorStore      driven.VectorStore
	Warnings         []string // Non-fatal issues, e.g. no chat provider configured.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.VectorStore != nil {
		r.VectorStore.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// Init builds every adapter the workflows need. Nothing is pinged: the
// workflows retry transient failures, so an unreachable provider at start-up
// is not fatal. db backs the sqlite vector backend and may be nil otherwise.
//
// An embedding provider is required. A missing chat provider only produces a
// warning, since ingestion works without one.
func Init(settings *domain.Settings, db *sqlite.Store) (*InitResult, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: settings are required", domain.ErrInvalidInput)
	}
	result := &InitResult{}

	emb, err := CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'pdfrag config show' to check", domain.ErrEmbeddingUnavailable, err)
	}
	if emb == nil {
		return nil, fmt.Errorf("%w: %s needs an API key", domain.ErrEmbeddingUnavailable, settings.Embedding.Provider)
	}
	result.EmbeddingService = emb

	llm, err := CreateLLMService(&settings.LLM)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, fmt.Sprintf("chat provider disabled: %v", err))
	case llm == nil:
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("chat provider %s is not configured; queries will fail", settings.LLM.Provider))
	default:
		result.LLMService = llm
	}

	store, err := CreateVectorStore(&settings.VectorStore, db)
	if err != nil {
		result.Close()
		return nil, err
	}
	result.VectorStore = store

	return result, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
func ValidateLLMConfig(ctx context.Context, settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateVectorStore checks the store answers a count request.
func ValidateVectorStore(ctx context.Context, store driven.VectorStore) error {
	if store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	_, err := store.Count(ctx)
	return err
}

// Checker validates settings against the live services.
// DB backs the sqlite vector backend and may be nil otherwise.
type Checker struct {
	DB *sqlite.Store
}

// CheckEmbedding pings the embedding provider.
func (c Checker) CheckEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error {
	return ValidateEmbeddingConfig(ctx, settings)
}

// CheckLLM pings the chat provider.
func (c Checker) CheckLLM(ctx context.Context, settings *domain.LLMSettings) error {
	return ValidateLLMConfig(ctx, settings)
}

// CheckVectorStore opens the configured store and counts its points.
func (c Checker) CheckVectorStore(ctx context.Context, settings *domain.VectorStoreSettings) error {
	store, err := CreateVectorStore(settings, c.DB)
	if err != nil {
		return err
	}
	defer store.Close()
	return ValidateVectorStore(ctx, store)
}

// CheckPDFFallback reports whether the optional pdftotext fallback is
// installed, with install instructions when it is not.
func (c Checker) CheckPDFFallback() error {
	if err := pdf.CheckAvailable(); err != nil {
		return fmt.Errorf("%w\n\n%s", err, pdf.InstallInstructions())
	}
	return nil
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	case domain.AIProviderAnthropic:
		// Anthropic does not support embeddings.
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("%w: embedding provider %s", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAILLM(settings)

	case domain.AIProviderAnthropic:
		return createAnthropicLLM(settings)

	default:
		return nil, fmt.Errorf("%w: LLM provider %s", domain.ErrUnsupportedType, settings.Provider)
	}
}

// CreateVectorStore creates the vector store selected by settings.
func CreateVectorStore(settings *domain.VectorStoreSettings, db *sqlite.Store) (driven.VectorStore, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: vector store settings are required", domain.ErrInvalidInput)
	}

	switch settings.Backend {
	case domain.VectorBackendQdrant:
		return qdrant.NewStore(qdrant.Config{
			URL:        settings.URL,
			APIKey:     settings.APIKey,
			Collection: settings.Collection,
		}), nil

	case domain.VectorBackendSQLite:
		if db == nil {
			return nil, errors.New("sqlite vector backend needs the workflow database")
		}
		return db.VectorStore(settings.Collection), nil

	case domain.VectorBackendMemory:
		return memory.NewVectorStore(), nil

	default:
		return nil, fmt.Errorf("%w: vector backend %s", domain.ErrUnsupportedType, settings.Backend)
	}
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}

	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOllamaLLM creates an Ollama LLM service.
func createOllamaLLM(settings *domain.LLMSettings) driven.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createOpenAILLM creates an OpenAI LLM service.
func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createAnthropicLLM creates an Anthropic LLM service.
func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}
