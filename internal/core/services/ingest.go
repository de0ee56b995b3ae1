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
	"github.com/custodia-labs/pdfrag/internal/pointid"
)

// Ensure IngestWorkflow implements the interface.
var _ driving.IngestService = (*IngestWorkflow)(nil)

// Ingest step names. They key memoised results and must not change.
const (
	StepLoadAndChunk   = "load-and-chunk"
	StepEmbedAndUpsert = "embed-and-upsert"
)

// IngestWorkflow loads a PDF, chunks it, embeds the chunks and upserts them
// as points.
type IngestWorkflow struct {
	engine    *Engine
	extractor driven.TextExtractor
	pipeline  driven.PostProcessorPipeline
	embedder  *EmbeddingClient
	store     driven.VectorStore
}

// NewIngestWorkflow creates the ingest_pdf workflow.
func NewIngestWorkflow(
	engine *Engine,
	extractor driven.TextExtractor,
	pipeline driven.PostProcessorPipeline,
	embedder *EmbeddingClient,
	store driven.VectorStore,
) *IngestWorkflow {
	return &IngestWorkflow{
		engine:    engine,
		extractor: extractor,
		pipeline:  pipeline,
		embedder:  embedder,
		store:     store,
	}
}

// Ingest runs the workflow. SourceID defaults to PDFPath and RunID to a new UUID.
func (w *IngestWorkflow) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.UpsertResult, error) {
	if strings.TrimSpace(req.PDFPath) == "" {
		return nil, fmt.Errorf("%w: pdf_path is required", domain.ErrInvalidInput)
	}
	if req.SourceID == "" {
		req.SourceID = req.PDFPath
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	logger.Section("Ingest")
	logger.Debug("run=%s pdf=%s source=%s", req.RunID, req.PDFPath, req.SourceID)

	// The run ID keys the record, so the stored input leaves it out.
	input := req
	input.RunID = ""
	run, err := w.engine.Begin(ctx, req.RunID, domain.FunctionIngestPDF, input)
	if err != nil {
		return nil, err
	}
	defer run.Close()

	return w.execute(ctx, run, req)
}

// resume re-enters a stored run with its original input.
func (w *IngestWorkflow) resume(ctx context.Context, record *domain.WorkflowRun) error {
	req, err := decodeInput[domain.IngestRequest](record)
	if err != nil {
		return err
	}
	req.RunID = record.ID
	_, err = w.Ingest(ctx, req)
	return err
}

func (w *IngestWorkflow) execute(ctx context.Context, run *Run, req domain.IngestRequest) (*domain.UpsertResult, error) {
	loaded, err := Step(ctx, run, StepLoadAndChunk, func(ctx context.Context) (domain.ChunksAndSource, error) {
		return w.loadAndChunk(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if err := run.Advance(ctx, domain.RunStatusLoaded); err != nil {
		return nil, err
	}

	upserted, err := Step(ctx, run, StepEmbedAndUpsert, func(ctx context.Context) (domain.UpsertResult, error) {
		return w.embedAndUpsert(ctx, loaded)
	})
	if err != nil {
		return nil, err
	}
	if err := run.Advance(ctx, domain.RunStatusEmbeddedAndUpserted); err != nil {
		return nil, err
	}

	if err := run.Complete(ctx, upserted); err != nil {
		return nil, err
	}
	logger.Info("ingested %d chunks from %s", upserted.Ingested, req.SourceID)
	return &upserted, nil
}

func (w *IngestWorkflow) loadAndChunk(ctx context.Context, req domain.IngestRequest) (domain.ChunksAndSource, error) {
	text, err := w.extractor.Extract(ctx, req.PDFPath)
	if err != nil {
		return domain.ChunksAndSource{}, err
	}

	doc := &domain.Document{
		SourceID: req.SourceID,
		Path:     req.PDFPath,
		Content:  text,
	}
	chunks, err := w.pipeline.Process(ctx, doc)
	if err != nil {
		return domain.ChunksAndSource{}, domain.Permanent(err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	logger.Debug("extracted %d characters into %d chunks", len(text), len(texts))

	return domain.ChunksAndSource{Chunks: texts, SourceID: req.SourceID}, nil
}

func (w *IngestWorkflow) embedAndUpsert(ctx context.Context, in domain.ChunksAndSource) (domain.UpsertResult, error) {
	if len(in.Chunks) == 0 {
		return domain.UpsertResult{Ingested: 0}, nil
	}

	vectors, err := w.embedder.Embed(ctx, in.Chunks)
	if err != nil {
		return domain.UpsertResult{}, err
	}

	ids := pointid.DeriveAll(in.SourceID, len(in.Chunks))
	payloads := make([]domain.PointPayload, len(in.Chunks))
	for i, text := range in.Chunks {
		payloads[i] = domain.PointPayload{Source: in.SourceID, Text: text}
	}

	points, err := domain.NewPoints(ids, vectors, payloads)
	if err != nil {
		return domain.UpsertResult{}, domain.Permanent(err)
	}

	if err := w.store.EnsureCollection(ctx, w.embedder.Dimensions()); err != nil {
		return domain.UpsertResult{}, err
	}
	if err := w.store.Upsert(ctx, points); err != nil {
		return domain.UpsertResult{}, err
	}

	return domain.UpsertResult{Ingested: len(points)}, nil
}
