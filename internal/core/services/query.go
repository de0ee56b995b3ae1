package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// Ensure QueryWorkflow implements the interface.
var _ driving.QueryService = (*QueryWorkflow)(nil)

// Query step names. They key memoised results and must not change.
const (
	StepEmbedAndSearch = "embed-and-search"
	StepGenerateAnswer = "generate-answer"
)

// Generation parameters for answers.
const (
	answerMaxTokens   = 1024
	answerTemperature = 0.2
)

// QueryWorkflow answers a question from the stored points.
type QueryWorkflow struct {
	engine    *Engine
	embedder  *EmbeddingClient
	store     driven.VectorStore
	llm       driven.LLMService
	prompts   *PromptBuilder
	admission *AdmissionController
	maxTopK   int
}

// NewQueryWorkflow creates the query_pdf workflow.
// A nil admission controller admits every request.
func NewQueryWorkflow(
	engine *Engine,
	embedder *EmbeddingClient,
	store driven.VectorStore,
	llm driven.LLMService,
	prompts *PromptBuilder,
	admission *AdmissionController,
	maxTopK int,
) *QueryWorkflow {
	if prompts == nil {
		prompts = NewPromptBuilder(nil)
	}
	return &QueryWorkflow{
		engine:    engine,
		embedder:  embedder,
		store:     store,
		llm:       llm,
		prompts:   prompts,
		admission: admission,
		maxTopK:   maxTopK,
	}
}

// Query validates the request, applies admission control, then runs the workflow.
// TopK of zero means domain.DefaultTopK.
func (w *QueryWorkflow) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}
	if req.TopK == 0 {
		req.TopK = domain.DefaultTopK
	}
	if req.TopK < 0 {
		return nil, fmt.Errorf("%w: %s, got %d", domain.ErrInvalidInput, w.topKRange(), req.TopK)
	}
	if w.maxTopK > 0 && req.TopK > w.maxTopK {
		return nil, fmt.Errorf("%w: %s, got %d", domain.ErrInvalidInput, w.topKRange(), req.TopK)
	}

	if w.admission != nil {
		if err := w.admission.Admit(ctx); err != nil {
			return nil, err
		}
	}

	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	logger.Section("Query")
	logger.Debug("run=%s top_k=%d question=%q", req.RunID, req.TopK, req.Question)

	// The run ID keys the record, so the stored input leaves it out.
	input := req
	input.RunID = ""
	run, err := w.engine.Begin(ctx, req.RunID, domain.FunctionQueryPDF, input)
	if err != nil {
		return nil, err
	}
	defer run.Close()

	return w.execute(ctx, run, req)
}

// topKRange describes the accepted top_k values.
func (w *QueryWorkflow) topKRange() string {
	if w.maxTopK > 0 {
		return fmt.Sprintf("top_k must be between 1 and %d", w.maxTopK)
	}
	return "top_k must be at least 1"
}

func (w *QueryWorkflow) execute(ctx context.Context, run *Run, req domain.QueryRequest) (*domain.QueryResult, error) {
	found, err := Step(ctx, run, StepEmbedAndSearch, func(ctx context.Context) (domain.SearchResult, error) {
		return w.embedAndSearch(ctx, req.Question, req.TopK)
	})
	if err != nil {
		return nil, err
	}
	if err := run.Advance(ctx, domain.RunStatusSearched); err != nil {
		return nil, err
	}

	contexts := found.Contexts()
	messages := w.prompts.Messages(contexts, req.Question)

	answer, err := Step(ctx, run, StepGenerateAnswer, func(ctx context.Context) (string, error) {
		return w.generate(ctx, messages)
	})
	if err != nil {
		return nil, err
	}

	sources := found.Sources()
	if len(sources) > req.TopK {
		sources = sources[:req.TopK]
	}
	result := domain.QueryResult{
		Answer:      answer,
		Sources:     sources,
		NumContexts: len(contexts),
	}
	if err := run.Complete(ctx, result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (w *QueryWorkflow) embedAndSearch(ctx context.Context, question string, topK int) (domain.SearchResult, error) {
	vectors, err := w.embedder.Embed(ctx, []string{question})
	if err != nil {
		return domain.SearchResult{}, err
	}

	found, err := w.store.Search(ctx, vectors[0], topK)
	if err != nil {
		return domain.SearchResult{}, err
	}
	logger.Debug("search returned %d hits", len(found.Hits))
	return *found, nil
}

func (w *QueryWorkflow) generate(ctx context.Context, messages []driven.ChatMessage) (string, error) {
	if w.llm == nil {
		return "", domain.Permanent(fmt.Errorf("%w: %w", domain.ErrGeneration, domain.ErrLLMUnavailable))
	}

	answer, err := w.llm.Chat(ctx, messages, driven.ChatOptions{
		MaxTokens:   answerMaxTokens,
		Temperature: answerTemperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", domain.ErrGeneration, w.llm.ModelName(), err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("%w: %s returned an empty answer", domain.ErrGeneration, w.llm.ModelName())
	}
	return answer, nil
}
