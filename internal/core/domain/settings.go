package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// SupportsEmbeddings returns true if the provider can produce embeddings.
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// VectorBackend selects the vector store implementation.
type VectorBackend string

// Available vector store backends.
const (
	// VectorBackendQdrant stores points in a Qdrant collection.
	VectorBackendQdrant VectorBackend = "qdrant"

	// VectorBackendSQLite stores points in the local SQLite database.
	VectorBackendSQLite VectorBackend = "sqlite"

	// VectorBackendMemory keeps points in process memory.
	VectorBackendMemory VectorBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendQdrant, VectorBackendSQLite, VectorBackendMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b VectorBackend) String() string {
	return string(b)
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// Dimensions is the expected vector length (EMBED_DIM).
	// Provider responses of any other length are rejected.
	Dimensions int

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds chat model configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the chat model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorStoreSettings holds vector store connection configuration.
type VectorStoreSettings struct {
	// Backend selects the implementation.
	Backend VectorBackend

	// URL is the Qdrant endpoint.
	URL string

	// APIKey is the optional Qdrant API key.
	APIKey string

	// Collection is the collection (or table namespace) holding the points.
	Collection string
}

// ChunkSettings controls the chunker.
type ChunkSettings struct {
	// Size is the window length in characters.
	Size int

	// Overlap is the number of characters shared by neighbouring windows.
	Overlap int
}

// AdmissionSettings bounds query traffic before any workflow runs.
type AdmissionSettings struct {
	// ThrottleRate is the sustained number of queries admitted per second.
	ThrottleRate float64

	// ThrottleBurst is the number of queries admitted back to back.
	ThrottleBurst int

	// ThrottleMaxWait is how long a throttled query may be delayed before it is rejected.
	ThrottleMaxWait time.Duration

	// RateLimit is the number of queries admitted per RatePeriod.
	RateLimit int

	// RatePeriod is the rolling window of RateLimit.
	RatePeriod time.Duration

	// MaxTopK is the largest top_k a caller may request.
	MaxTopK int
}

// Settings holds all application settings.
type Settings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds chat provider settings.
	LLM LLMSettings

	// VectorStore holds vector store settings.
	VectorStore VectorStoreSettings

	// Chunking holds chunker settings.
	Chunking ChunkSettings

	// Admission holds query admission control settings.
	Admission AdmissionSettings

	// Retry bounds per-step retries.
	Retry RetryPolicy

	// DataDir holds the workflow database and the sqlite vector store.
	// Empty means ~/.pdfrag/data.
	DataDir string
}

// DefaultSettings returns settings with sensible defaults.
// Both AI providers default to a local Ollama instance.
func DefaultSettings() Settings {
	return Settings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOllama,
			Model:      DefaultEmbeddingModels()[AIProviderOllama],
			Dimensions: EmbeddingDimensions()[DefaultEmbeddingModels()[AIProviderOllama]],
		},
		LLM: LLMSettings{
			Provider: AIProviderOllama,
			Model:    DefaultLLMModels()[AIProviderOllama],
		},
		VectorStore: VectorStoreSettings{
			Backend:    VectorBackendQdrant,
			URL:        "http://localhost:6333",
			Collection: "docs",
		},
		Chunking: ChunkSettings{
			Size:    1000,
			Overlap: 200,
		},
		Admission: AdmissionSettings{
			ThrottleRate:    5,
			ThrottleBurst:   5,
			ThrottleMaxWait: 10 * time.Second,
			RateLimit:       120,
			RatePeriod:      60 * time.Second,
			MaxTopK:         50,
		},
		Retry: DefaultRetryPolicy(),
	}
}

// Validate checks settings for values the pipeline cannot run with.
func (s *Settings) Validate() error {
	if !s.Embedding.Provider.SupportsEmbeddings() {
		return fmt.Errorf("%w: embedding provider %q does not support embeddings",
			ErrInvalidInput, s.Embedding.Provider)
	}
	if s.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive, got %d",
			ErrInvalidInput, s.Embedding.Dimensions)
	}
	if !s.LLM.Provider.IsValid() {
		return fmt.Errorf("%w: unknown llm provider %q", ErrInvalidInput, s.LLM.Provider)
	}
	if !s.VectorStore.Backend.IsValid() {
		return fmt.Errorf("%w: unknown vector backend %q", ErrInvalidInput, s.VectorStore.Backend)
	}
	if s.VectorStore.Collection == "" {
		return fmt.Errorf("%w: collection name is required", ErrInvalidInput)
	}
	if s.Chunking.Size <= 0 || s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.Size {
		return fmt.Errorf("%w: chunk size %d with overlap %d (need size > 0 and 0 <= overlap < size)",
			ErrInvalidInput, s.Chunking.Size, s.Chunking.Overlap)
	}
	if s.Admission.ThrottleRate <= 0 || s.Admission.ThrottleBurst <= 0 {
		return fmt.Errorf("%w: throttle rate and burst must be positive", ErrInvalidInput)
	}
	if s.Admission.RateLimit <= 0 || s.Admission.RatePeriod <= 0 {
		return fmt.Errorf("%w: rate limit and period must be positive", ErrInvalidInput)
	}
	if s.Admission.MaxTopK <= 0 {
		return fmt.Errorf("%w: max top_k must be positive", ErrInvalidInput)
	}
	if s.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("%w: retry attempts must be positive", ErrInvalidInput)
	}
	return nil
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
