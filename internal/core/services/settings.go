package services

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedDimensions = "embedding.dimensions"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyVectorBackend   = "vector_store.backend"
	keyVectorURL       = "vector_store.url"
	keyVectorAPIKey    = "vector_store.api_key"
	keyVectorColl      = "vector_store.collection"
	keyChunkSize       = "chunking.size"
	keyChunkOverlap    = "chunking.overlap"
	keyThrottleRate    = "admission.throttle_rate"
	keyThrottleBurst   = "admission.throttle_burst"
	keyThrottleMaxWait = "admission.throttle_max_wait"
	keyRateLimit       = "admission.rate_limit"
	keyRatePeriod      = "admission.rate_period"
	keyMaxTopK         = "admission.max_top_k"
	keyRetryAttempts   = "retry.max_attempts"
	keyRetryBaseDelay  = "retry.base_delay"
	keyRetryMaxDelay   = "retry.max_delay"
	keyDataDir         = "data_dir"
)

// Environment variables that override the config file.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvEmbedProvider = "EMBED_PROVIDER"
	EnvEmbedModel    = "EMBED_MODEL"
	EnvEmbedDim      = "EMBED_DIM"
	EnvEmbedBaseURL  = "EMBED_BASE_URL"
	EnvChatProvider  = "CHAT_PROVIDER"
	EnvChatModel     = "CHAT_MODEL"
	EnvChatBaseURL   = "CHAT_BASE_URL"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
	EnvVectorBackend = "VECTOR_BACKEND"
	EnvQdrantURL     = "QDRANT_URL"
	EnvQdrantColl    = "QDRANT_COLLECTION"
	EnvQdrantAPIKey  = "QDRANT_API_KEY"
	EnvChunkSize     = "CHUNK_SIZE"
	EnvChunkOverlap  = "CHUNK_OVERLAP"
	EnvDataDir       = "PDFRAG_DATA_DIR"
)

// SettingsService resolves application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service reading the process environment.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		lookupEnv:   os.LookupEnv,
	}
}

// Get returns the effective, validated settings.
func (s *SettingsService) Get() (*domain.Settings, error) {
	d := domain.DefaultSettings()

	settings := &domain.Settings{
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:      s.getString(keyEmbedModel, ""),
			Dimensions: s.configStore.GetInt(keyEmbedDimensions),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL),
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:    s.getString(keyLLMModel, ""),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		VectorStore: domain.VectorStoreSettings{
			Backend:    domain.VectorBackend(s.getString(keyVectorBackend, d.VectorStore.Backend.String())),
			URL:        s.getString(keyVectorURL, d.VectorStore.URL),
			APIKey:     s.configStore.GetString(keyVectorAPIKey),
			Collection: s.getString(keyVectorColl, d.VectorStore.Collection),
		},
		Chunking: domain.ChunkSettings{
			Size:    s.getInt(keyChunkSize, d.Chunking.Size),
			Overlap: s.getInt(keyChunkOverlap, d.Chunking.Overlap),
		},
		Admission: domain.AdmissionSettings{
			ThrottleRate:    s.getFloat(keyThrottleRate, d.Admission.ThrottleRate),
			ThrottleBurst:   s.getInt(keyThrottleBurst, d.Admission.ThrottleBurst),
			ThrottleMaxWait: s.getDuration(keyThrottleMaxWait, d.Admission.ThrottleMaxWait),
			RateLimit:       s.getInt(keyRateLimit, d.Admission.RateLimit),
			RatePeriod:      s.getDuration(keyRatePeriod, d.Admission.RatePeriod),
			MaxTopK:         s.getInt(keyMaxTopK, d.Admission.MaxTopK),
		},
		Retry: domain.RetryPolicy{
			MaxAttempts: s.getInt(keyRetryAttempts, d.Retry.MaxAttempts),
			BaseDelay:   s.getDuration(keyRetryBaseDelay, d.Retry.BaseDelay),
			MaxDelay:    s.getDuration(keyRetryMaxDelay, d.Retry.MaxDelay),
		},
		DataDir: s.configStore.GetString(keyDataDir),
	}

	if err := s.applyEnv(settings); err != nil {
		return nil, err
	}
	s.fillModelDefaults(settings)

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.Settings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedDimensions, settings.Embedding.Dimensions},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyVectorBackend, settings.VectorStore.Backend.String()},
		{keyVectorURL, settings.VectorStore.URL},
		{keyVectorColl, settings.VectorStore.Collection},
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyThrottleRate, settings.Admission.ThrottleRate},
		{keyThrottleBurst, settings.Admission.ThrottleBurst},
		{keyThrottleMaxWait, settings.Admission.ThrottleMaxWait.String()},
		{keyRateLimit, settings.Admission.RateLimit},
		{keyRatePeriod, settings.Admission.RatePeriod.String()},
		{keyMaxTopK, settings.Admission.MaxTopK},
		{keyRetryAttempts, settings.Retry.MaxAttempts},
		{keyRetryBaseDelay, settings.Retry.BaseDelay.String()},
		{keyRetryMaxDelay, settings.Retry.MaxDelay.String()},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Secrets are only written when set, so keys kept in the environment
	// never end up on disk.
	secrets := map[string]string{
		keyEmbedAPIKey:  settings.Embedding.APIKey,
		keyLLMAPIKey:    settings.LLM.APIKey,
		keyVectorAPIKey: settings.VectorStore.APIKey,
		keyDataDir:      settings.DataDir,
	}
	for key, value := range secrets {
		if value == "" {
			continue
		}
		if err := s.configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}

	return s.configStore.Save()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// applyEnv overlays environment variables on settings.
func (s *SettingsService) applyEnv(settings *domain.Settings) error {
	if v, ok := s.env(EnvEmbedProvider); ok {
		settings.Embedding.Provider = domain.AIProvider(v)
	}
	if v, ok := s.env(EnvEmbedModel); ok {
		settings.Embedding.Model = v
	}
	if v, ok := s.env(EnvEmbedBaseURL); ok {
		settings.Embedding.BaseURL = v
	}
	if v, ok := s.env(EnvChatProvider); ok {
		settings.LLM.Provider = domain.AIProvider(v)
	}
	if v, ok := s.env(EnvChatModel); ok {
		settings.LLM.Model = v
	}
	if v, ok := s.env(EnvChatBaseURL); ok {
		settings.LLM.BaseURL = v
	}
	if v, ok := s.env(EnvVectorBackend); ok {
		settings.VectorStore.Backend = domain.VectorBackend(v)
	}
	if v, ok := s.env(EnvQdrantURL); ok {
		settings.VectorStore.URL = v
	}
	if v, ok := s.env(EnvQdrantColl); ok {
		settings.VectorStore.Collection = v
	}
	if v, ok := s.env(EnvQdrantAPIKey); ok {
		settings.VectorStore.APIKey = v
	}
	if v, ok := s.env(EnvDataDir); ok {
		settings.DataDir = v
	}

	if v, ok := s.env(EnvOpenAIKey); ok {
		if settings.Embedding.Provider == domain.AIProviderOpenAI {
			settings.Embedding.APIKey = v
		}
		if settings.LLM.Provider == domain.AIProviderOpenAI {
			settings.LLM.APIKey = v
		}
	}
	if v, ok := s.env(EnvAnthropicKey); ok && settings.LLM.Provider == domain.AIProviderAnthropic {
		settings.LLM.APIKey = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvEmbedDim, &settings.Embedding.Dimensions},
		{EnvChunkSize, &settings.Chunking.Size},
		{EnvChunkOverlap, &settings.Chunking.Overlap},
	}
	for _, i := range ints {
		v, ok := s.env(i.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", domain.ErrInvalidInput, i.name, v)
		}
		*i.dst = n
	}

	return nil
}

// fillModelDefaults picks provider default models and the known dimension
// of the embedding model when they were not configured.
func (s *SettingsService) fillModelDefaults(settings *domain.Settings) {
	if settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}
	if settings.Embedding.Dimensions == 0 {
		settings.Embedding.Dimensions = domain.EmbeddingDimensions()[settings.Embedding.Model]
	}
	if settings.LLM.Model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[settings.LLM.Provider]
	}
}

// env returns a non-empty environment variable.
func (s *SettingsService) env(name string) (string, bool) {
	v, ok := s.lookupEnv(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetInt(key)
	}
	return defaultVal
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, ok := s.configStore.Get(key); ok {
		return s.configStore.GetFloat(key)
	}
	return defaultVal
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	if d := s.configStore.GetDuration(key); d > 0 {
		return d
	}
	return defaultVal
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	if val := s.configStore.GetString(key); val != "" {
		return domain.AIProvider(val)
	}
	return defaultVal
}
