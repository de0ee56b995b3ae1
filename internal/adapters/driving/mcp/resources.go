package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
)

const (
	// uriScheme is the custom URI scheme for pdfrag resources.
	uriScheme = "pdfrag://"

	// runListLimit caps the runs resource.
	runListLimit = 50
)

// runInfo is the JSON shape of a run in resources.
type runInfo struct {
	ID          string          `json:"id"`
	Function    string          `json:"function"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Invocations int             `json:"invocations"`
	Input       json.RawMessage `json:"input,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Steps       []stepInfo      `json:"steps,omitempty"`
}

// stepInfo is the JSON shape of a memoised step.
type stepInfo struct {
	Name        string    `json:"name"`
	Attempts    int       `json:"attempts"`
	CompletedAt time.Time `json:"completed_at"`
}

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing runs.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "runs",
		Name:        "runs",
		Description: "Recent ingest_pdf and query_pdf workflow runs",
		MIMEType:    "application/json",
	}, s.handleRunsResource)

	// Template for a single run with its steps.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "runs/{runId}",
		Name:        "run",
		Description: "A workflow run and its completed steps",
		MIMEType:    "application/json",
	}, s.handleRunResource)
}

// handleRunsResource returns the most recent runs, newest first.
func (s *Server) handleRunsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Runs == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	runs, err := s.ports.Runs.List(ctx, runListLimit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	infos := make([]runInfo, len(runs))
	for i := range runs {
		infos[i] = toRunInfo(&runs[i], nil)
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling runs: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handleRunResource returns one run with its steps.
func (s *Server) handleRunResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Runs == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract runId from URI: pdfrag://runs/{runId}
	runID := extractRunID(req.Params.URI)
	if runID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	detail, err := s.ports.Runs.Get(ctx, runID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}

	data, err := json.MarshalIndent(toRunInfo(&detail.Run, detail), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling run: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

func toRunInfo(run *domain.WorkflowRun, detail *driving.RunDetail) runInfo {
	info := runInfo{
		ID:          run.ID,
		Function:    string(run.Function),
		Status:      run.Status.String(),
		Error:       run.Error,
		Invocations: run.Invocations,
		CreatedAt:   run.CreatedAt,
		UpdatedAt:   run.UpdatedAt,
	}
	if json.Valid(run.Input) {
		info.Input = run.Input
	}
	if json.Valid(run.Output) {
		info.Output = run.Output
	}
	if detail != nil {
		info.Steps = make([]stepInfo, len(detail.Steps))
		for i, step := range detail.Steps {
			info.Steps[i] = stepInfo{
				Name:        step.Name,
				Attempts:    step.Attempts,
				CompletedAt: step.CompletedAt,
			}
		}
	}
	return info
}

// extractRunID extracts the run ID from a URI like pdfrag://runs/{runId}.
func extractRunID(uri string) string {
	const prefix = uriScheme + "runs/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
