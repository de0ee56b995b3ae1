package driving

import (
	"context"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// QueryService answers questions from the ingested documents.
type QueryService interface {
	// Query runs the query_pdf workflow for the request.
	// Returns domain.ErrAdmissionRejected when the request is throttled or rate limited.
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error)
}
