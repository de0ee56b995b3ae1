package cli

import (
	"context"
	"time"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
)

// mockIngestService implements driving.IngestService for testing.
type mockIngestService struct {
	lastReq domain.IngestRequest
	result  *domain.UpsertResult
	err     error
}

func (m *mockIngestService) Ingest(_ context.Context, req domain.IngestRequest) (*domain.UpsertResult, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.UpsertResult{Ingested: 3}, nil
}

// mockQueryService implements driving.QueryService for testing.
type mockQueryService struct {
	lastReq domain.QueryRequest
	result  *domain.QueryResult
	err     error
}

func (m *mockQueryService) Query(_ context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.QueryResult{
		Answer:      "The warranty lasts two years.",
		Sources:     []string{"manual.pdf"},
		NumContexts: 2,
	}, nil
}

// mockRunService implements driving.RunService for testing.
type mockRunService struct {
	runs        []domain.WorkflowRun
	steps       map[string][]domain.StepRecord
	resumed     []string
	resumeCount int
	lastLimit   int
	err         error
}

func newMockRunService() *mockRunService {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &mockRunService{
		runs: []domain.WorkflowRun{
			{
				ID:          "run-1",
				Function:    domain.FunctionIngestPDF,
				Status:      domain.RunStatusCompleted,
				Input:       []byte(`{"pdf_path":"manual.pdf"}`),
				Output:      []byte(`{"ingested":3}`),
				Invocations: 1,
				CreatedAt:   created,
				UpdatedAt:   created.Add(time.Second),
			},
			{
				ID:          "run-2",
				Function:    domain.FunctionQueryPDF,
				Status:      domain.RunStatusFailed,
				Error:       "generate-answer: connection refused",
				Invocations: 2,
				CreatedAt:   created,
				UpdatedAt:   created.Add(time.Minute),
			},
		},
		steps: map[string][]domain.StepRecord{
			"run-1": {
				{RunID: "run-1", Name: "load-and-chunk", Attempts: 1, CompletedAt: created},
				{RunID: "run-1", Name: "embed-and-upsert", Attempts: 2, CompletedAt: created},
			},
		},
	}
}

func (m *mockRunService) List(_ context.Context, limit int) ([]domain.WorkflowRun, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.runs, nil
}

func (m *mockRunService) Get(_ context.Context, runID string) (*driving.RunDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, run := range m.runs {
		if run.ID == runID {
			return &driving.RunDetail{Run: run, Steps: m.steps[runID]}, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockRunService) Resume(ctx context.Context, runID string) (*driving.RunDetail, error) {
	m.resumed = append(m.resumed, runID)
	return m.Get(ctx, runID)
}

func (m *mockRunService) ResumeIncomplete(_ context.Context) (int, error) {
	return m.resumeCount, m.err
}

// mockSettingsService implements driving.SettingsService for testing.
type mockSettingsService struct {
	settings *domain.Settings
	saved    *domain.Settings
	getErr   error
	saveErr  error
}

func newMockSettingsService() *mockSettingsService {
	s := domain.DefaultSettings()
	return &mockSettingsService{settings: &s}
}

func (m *mockSettingsService) Get() (*domain.Settings, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	cp := *m.settings
	return &cp, nil
}

func (m *mockSettingsService) Save(settings *domain.Settings) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = settings
	return nil
}

func (m *mockSettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// mockConfigChecker implements ConfigChecker for testing.
type mockConfigChecker struct {
	embeddingErr error
	llmErr       error
	vectorErr    error
	pdfErr       error
}

func (m *mockConfigChecker) CheckEmbedding(_ context.Context, _ *domain.EmbeddingSettings) error {
	return m.embeddingErr
}

func (m *mockConfigChecker) CheckLLM(_ context.Context, _ *domain.LLMSettings) error {
	return m.llmErr
}

func (m *mockConfigChecker) CheckVectorStore(_ context.Context, _ *domain.VectorStoreSettings) error {
	return m.vectorErr
}

func (m *mockConfigChecker) CheckPDFFallback() error {
	return m.pdfErr
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	ingest   *mockIngestService
	query    *mockQueryService
	runs     *mockRunService
	settings *mockSettingsService
	checker  *mockConfigChecker
}

// setupTestServices installs mock services and returns them with a cleanup
// function that restores the previous services and flag values.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		ingest:   &mockIngestService{},
		query:    &mockQueryService{},
		runs:     newMockRunService(),
		settings: newMockSettingsService(),
		checker:  &mockConfigChecker{},
	}

	origIngest, origQuery, origRuns, origSettings := ingestService, queryService, runService, settingsService
	origSetupErr, origChecker := setupErr, configChecker

	SetServices(Services{
		Ingest:   ts.ingest,
		Query:    ts.query,
		Runs:     ts.runs,
		Settings: ts.settings,
	}, nil)
	SetConfigChecker(ts.checker)

	return ts, func() {
		ingestService, queryService, runService, settingsService = origIngest, origQuery, origRuns, origSettings
		setupErr, configChecker = origSetupErr, origChecker
		resetFlags()
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}
}

// resetFlags restores command flag variables, which persist between
// Execute calls on the shared root command.
func resetFlags() {
	ingestSourceID, ingestRunID, ingestJSON = "", "", false
	queryTopK, queryRunID, queryJSON = 5, "", false
	runsLimit, runsJSON = 20, false
	serveHTTPAddr, serveNoResume = "", false
	verbose = false
}
