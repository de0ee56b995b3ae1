package driving

import (
	"context"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// IngestService loads a PDF into the vector store.
type IngestService interface {
	// Ingest runs the ingest_pdf workflow for the request.
	// Re-using a RunID resumes that run; completed steps are not repeated.
	Ingest(ctx context.Context, req domain.IngestRequest) (*domain.UpsertResult, error)
}
