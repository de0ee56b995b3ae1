package mcp

import (
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ingest runs the ingest_pdf workflow.
	Ingest driving.IngestService

	// Query runs the query_pdf workflow.
	Query driving.QueryService

	// Runs exposes workflow runs as resources. Optional.
	Runs driving.RunService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Ingest == nil {
		return ErrMissingIngestService
	}
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
