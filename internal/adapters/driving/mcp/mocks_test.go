package mcp

import (
	"context"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
)

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	result *domain.UpsertResult
	err    error
	got    domain.IngestRequest
}

func (m *mockIngestService) Ingest(_ context.Context, req domain.IngestRequest) (*domain.UpsertResult, error) {
	m.got = req
	return m.result, m.err
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	result *domain.QueryResult
	err    error
	got    domain.QueryRequest
}

func (m *mockQueryService) Query(_ context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	m.got = req
	return m.result, m.err
}

// mockRunService is a mock implementation of driving.RunService.
type mockRunService struct {
	runs   []domain.WorkflowRun
	detail *driving.RunDetail
	err    error
	limit  int
}

func (m *mockRunService) List(_ context.Context, limit int) ([]domain.WorkflowRun, error) {
	m.limit = limit
	return m.runs, m.err
}

func (m *mockRunService) Get(_ context.Context, _ string) (*driving.RunDetail, error) {
	return m.detail, m.err
}

func (m *mockRunService) Resume(_ context.Context, _ string) (*driving.RunDetail, error) {
	return m.detail, m.err
}

func (m *mockRunService) ResumeIncomplete(_ context.Context) (int, error) {
	return 0, m.err
}

func validPorts() *Ports {
	return &Ports{
		Ingest: &mockIngestService{},
		Query:  &mockQueryService{},
	}
}
