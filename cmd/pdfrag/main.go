// Command pdfrag ingests PDFs into a vector store and answers questions from them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/ai"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/pdfrag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/pdfrag/internal/adapters/driving/cli"
	"github.com/custodia-labs/pdfrag/internal/core/services"
	"github.com/custodia-labs/pdfrag/internal/logger"
	"github.com/custodia-labs/pdfrag/internal/normalisers/pdf"
	"github.com/custodia-labs/pdfrag/internal/postprocessors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is normal; the environment and config file still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)

	// Wiring logs before cobra parses flags.
	logger.SetVerbose(verboseRequested(os.Args[1:]))

	configStore, err := file.NewConfigStore("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening config: %v\n", err)
		return 1
	}
	settingsService := services.NewSettingsService(configStore)

	// On error the config commands still work; pipeline commands report err.
	svc, cleanup, err := wire(settingsService)
	defer cleanup()
	cli.SetServices(svc, err)

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}

// wire builds the pipeline from the effective settings.
// The returned Services always carries the settings service.
func wire(settingsService *services.SettingsService) (cli.Services, func(), error) {
	svc := cli.Services{Settings: settingsService}
	noop := func() {}
	cli.SetConfigChecker(ai.Checker{})

	settings, err := settingsService.Get()
	if err != nil {
		return svc, noop, fmt.Errorf("loading settings: %w", err)
	}

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return svc, noop, fmt.Errorf("opening workflow database: %w", err)
	}
	cli.SetConfigChecker(ai.Checker{DB: store})

	clients, err := ai.Init(settings, store)
	if err != nil {
		store.Close()
		return svc, noop, err
	}
	for _, w := range clients.Warnings {
		logger.Warn("%s", w)
	}
	cleanup := func() {
		clients.Close()
		store.Close()
	}

	pipeline, err := postprocessors.NewChunkingPipeline(settings.Chunking)
	if err != nil {
		cleanup()
		return svc, noop, fmt.Errorf("building chunker: %w", err)
	}

	promptStore, err := file.NewPromptStore("")
	if err != nil {
		cleanup()
		return svc, noop, fmt.Errorf("opening prompts: %w", err)
	}

	engine := services.NewEngine(store.RunStore(), store.StepStore(), settings.Retry)
	embedder := services.NewEmbeddingClient(clients.EmbeddingService, settings.Embedding.Dimensions)

	ingest := services.NewIngestWorkflow(engine, pdf.New(), pipeline, embedder, clients.VectorStore)
	query := services.NewQueryWorkflow(
		engine,
		embedder,
		clients.VectorStore,
		clients.LLMService,
		services.NewPromptBuilder(promptStore),
		services.NewAdmissionController(settings.Admission),
		settings.Admission.MaxTopK,
	)

	svc.Ingest = ingest
	svc.Query = query
	svc.Runs = services.NewRunService(engine, ingest, query)
	return svc, cleanup, nil
}

// verboseRequested reports whether args carry the global verbose flag.
func verboseRequested(args []string) bool {
	for _, arg := range args {
		if arg == "--" {
			return false
		}
		if arg == "-v" || arg == "--verbose" || arg == "--verbose=true" {
			return true
		}
	}
	return false
}
