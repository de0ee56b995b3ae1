package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// ConfigChecker validates settings against the live services.
type ConfigChecker interface {
	CheckEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error
	CheckLLM(ctx context.Context, settings *domain.LLMSettings) error
	CheckVectorStore(ctx context.Context, settings *domain.VectorStoreSettings) error
	CheckPDFFallback() error
}

// configChecker backs config check. Set by main.
var configChecker ConfigChecker

// SetConfigChecker installs the checker used by config check.
func SetConfigChecker(c ConfigChecker) {
	configChecker = c
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View, create and verify the pdfrag configuration.

Settings are read from ~/.pdfrag/config.toml, then overridden by
environment variables (a .env file in the working directory is loaded first).`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to choose the embedding provider, chat provider and vector store.`,
	RunE:  runConfigInit,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check connectivity to the configured services",
	RunE:  runConfigCheck,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	cmd.Printf("  Dimensions: %d\n", settings.Embedding.Dimensions)
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", describeAPIKey(settings.Embedding.APIKey))
	}
	cmd.Printf("  Status: %s\n", configuredStatus(settings.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	if settings.LLM.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", describeAPIKey(settings.LLM.APIKey))
	}
	cmd.Printf("  Status: %s\n", configuredStatus(settings.LLM.IsConfigured()))
	cmd.Println()

	cmd.Println("[Vector Store]")
	cmd.Printf("  Backend: %s\n", settings.VectorStore.Backend)
	if settings.VectorStore.Backend == domain.VectorBackendQdrant {
		cmd.Printf("  URL: %s\n", settings.VectorStore.URL)
		if settings.VectorStore.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.VectorStore.APIKey))
		}
	}
	cmd.Printf("  Collection: %s\n", settings.VectorStore.Collection)
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Size: %d\n", settings.Chunking.Size)
	cmd.Printf("  Overlap: %d\n", settings.Chunking.Overlap)
	cmd.Println()

	cmd.Println("[Admission]")
	cmd.Printf("  Throttle: %g/s (burst %d, max wait %s)\n",
		settings.Admission.ThrottleRate, settings.Admission.ThrottleBurst, settings.Admission.ThrottleMaxWait)
	cmd.Printf("  Rate limit: %d per %s\n", settings.Admission.RateLimit, settings.Admission.RatePeriod)
	cmd.Printf("  Max top_k: %d\n", settings.Admission.MaxTopK)
	cmd.Println()

	cmd.Println("[Retry]")
	cmd.Printf("  Attempts: %d (base delay %s, max delay %s)\n",
		settings.Retry.MaxAttempts, settings.Retry.BaseDelay, settings.Retry.MaxDelay)

	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	// Start from the current settings so re-running the wizard keeps
	// values it does not ask about.
	settings, err := settingsService.Get()
	if err != nil {
		defaults := settingsService.GetDefaults()
		settings = &defaults
	}

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("pdfrag Setup")
	cmd.Println("============")
	cmd.Println()

	if err := configureEmbedding(cmd, reader, &settings.Embedding); err != nil {
		return err
	}
	if err := configureLLM(cmd, reader, &settings.LLM); err != nil {
		return err
	}
	configureVectorStore(cmd, reader, &settings.VectorStore)

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	cmd.Println("Settings saved. Run 'pdfrag config check' to verify connectivity.")
	return nil
}

//nolint:dupl // Similar to configureLLM but for embeddings - intentional for CLI flow clarity
func configureEmbedding(cmd *cobra.Command, reader *bufio.Reader, settings *domain.EmbeddingSettings) error {
	cmd.Println("Select Embedding Provider")
	providers := []domain.AIProvider{domain.AIProviderOllama, domain.AIProviderOpenAI}
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := domain.DefaultEmbeddingModels()[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	defaultDims := domain.EmbeddingDimensions()[model]
	cmd.Printf("Enter vector dimensions [%d]: ", defaultDims)
	dims := defaultDims
	if input := readLine(reader); input != "" {
		v, err := strconv.Atoi(input)
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid dimensions: %q", input)
		}
		dims = v
	}

	apiKey := ""
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key (leave empty to use OPENAI_API_KEY): ")
		apiKey = readSecret(reader)
		cmd.Println()
	}

	settings.Provider = selected
	settings.Model = model
	settings.Dimensions = dims
	settings.APIKey = apiKey
	if selected != domain.AIProviderOllama {
		settings.BaseURL = ""
	}

	cmd.Printf("Embedding provider: %s (%s, %d dimensions)\n\n", selected.Description(), model, dims)
	return nil
}

//nolint:dupl // Similar to configureEmbedding but for LLM - intentional for CLI flow clarity
func configureLLM(cmd *cobra.Command, reader *bufio.Reader, settings *domain.LLMSettings) error {
	cmd.Println("Select Chat Provider")
	providers := []domain.AIProvider{domain.AIProviderOllama, domain.AIProviderOpenAI, domain.AIProviderAnthropic}
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := domain.DefaultLLMModels()[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	apiKey := ""
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key (leave empty to use the environment): ")
		apiKey = readSecret(reader)
		cmd.Println()
	}

	settings.Provider = selected
	settings.Model = model
	settings.APIKey = apiKey
	if selected != domain.AIProviderOllama {
		settings.BaseURL = ""
	}

	cmd.Printf("Chat provider: %s (%s)\n\n", selected.Description(), model)
	return nil
}

func configureVectorStore(cmd *cobra.Command, reader *bufio.Reader, settings *domain.VectorStoreSettings) {
	cmd.Println("Select Vector Store")
	backends := []domain.VectorBackend{domain.VectorBackendQdrant, domain.VectorBackendSQLite, domain.VectorBackendMemory}
	for i, b := range backends {
		cmd.Printf("  %d. %s\n", i+1, b)
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(backends), 1)
	settings.Backend = backends[idx-1]

	if settings.Backend == domain.VectorBackendQdrant {
		url := settings.URL
		if url == "" {
			url = domain.DefaultSettings().VectorStore.URL
		}
		cmd.Printf("Enter Qdrant URL [%s]: ", url)
		if input := readLine(reader); input != "" {
			url = input
		}
		settings.URL = url
	}

	collection := settings.Collection
	if collection == "" {
		collection = domain.DefaultSettings().VectorStore.Collection
	}
	cmd.Printf("Enter collection name [%s]: ", collection)
	if input := readLine(reader); input != "" {
		collection = input
	}
	settings.Collection = collection

	cmd.Printf("Vector store: %s (%s)\n\n", settings.Backend, collection)
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if configChecker == nil {
		return errors.New("config checker not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	ctx := cmd.Context()
	checks := []struct {
		name string
		run  func() error
	}{
		{"Embedding provider", func() error { return configChecker.CheckEmbedding(ctx, &settings.Embedding) }},
		{"Chat provider", func() error { return configChecker.CheckLLM(ctx, &settings.LLM) }},
		{"Vector store", func() error { return configChecker.CheckVectorStore(ctx, &settings.VectorStore) }},
	}

	var errs []error
	for _, c := range checks {
		cmd.Printf("%s... ", c.name)
		if err := c.run(); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			errs = append(errs, fmt.Errorf("%s: %w", strings.ToLower(c.name), err))
			continue
		}
		cmd.Println("OK")
	}

	// Extraction works without pdftotext, so a missing fallback is not an error.
	cmd.Print("PDF fallback (pdftotext)... ")
	if err := configChecker.CheckPDFFallback(); err != nil {
		cmd.Printf("not installed (optional): %v\n", err)
	} else {
		cmd.Println("OK")
	}

	return errors.Join(errs...)
}

// Helper functions.

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func describeAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return maskAPIKey(key)
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readSecret reads a line without echo when stdin is a terminal.
func readSecret(reader *bufio.Reader) string {
	if reader.Buffered() == 0 && term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
