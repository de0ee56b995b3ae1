package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

// IngestInput is the input schema for the ingest_pdf tool.
type IngestInput struct {
	PDFPath  string `json:"pdf_path" jsonschema:"path of the PDF file to ingest"`
	SourceID string `json:"source_id,omitempty" jsonschema:"source label stored with each chunk (default: the path)"`
	RunID    string `json:"run_id,omitempty" jsonschema:"run to resume; completed steps are not repeated"`
}

// IngestOutput is the output schema for the ingest_pdf tool.
type IngestOutput struct {
	Ingested int `json:"ingested"`
}

// QueryInput is the input schema for the query_pdf tool.
type QueryInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the ingested documents"`
	TopK     *int   `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve, at least 1 (default 5)"`
	RunID    string `json:"run_id,omitempty" jsonschema:"run to resume; completed steps are not repeated"`
}

// QueryOutput is the output schema for the query_pdf tool.
type QueryOutput struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	NumContexts int      `json:"num_contexts"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingest_pdf",
		Description: "Extract, chunk and embed a PDF into the vector store",
	}, s.handleIngest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_pdf",
		Description: "Answer a question from the ingested PDF chunks",
	}, s.handleQuery)
}

// handleIngest handles the ingest_pdf tool invocation.
func (s *Server) handleIngest(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestInput,
) (*mcp.CallToolResult, IngestOutput, error) {
	result, err := s.ports.Ingest.Ingest(ctx, domain.IngestRequest{
		PDFPath:  input.PDFPath,
		SourceID: input.SourceID,
		RunID:    input.RunID,
	})
	if err != nil {
		return nil, IngestOutput{}, err
	}

	return nil, IngestOutput{Ingested: result.Ingested}, nil
}

// handleQuery handles the query_pdf tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	req := domain.QueryRequest{Question: input.Question, RunID: input.RunID}
	if input.TopK != nil {
		if *input.TopK < 1 {
			return nil, QueryOutput{}, fmt.Errorf("%w: top_k must be at least 1, got %d",
				domain.ErrInvalidInput, *input.TopK)
		}
		req.TopK = *input.TopK
	}

	result, err := s.ports.Query.Query(ctx, req)
	if err != nil {
		return nil, QueryOutput{}, err
	}

	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	return nil, QueryOutput{
		Answer:      result.Answer,
		Sources:     sources,
		NumContexts: result.NumContexts,
	}, nil
}
