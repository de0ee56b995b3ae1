// Package mcp provides an MCP (Model Context Protocol) server adapter for pdfrag.
// It exposes the ingest_pdf and query_pdf workflows as tools, and workflow
// runs as resources.
package mcp

import "errors"

var (
	// ErrMissingIngestService is returned when the ingest service is not provided.
	ErrMissingIngestService = errors.New("mcp: ingest service is required")

	// ErrMissingQueryService is returned when the query service is not provided.
	ErrMissingQueryService = errors.New("mcp: query service is required")
)
