package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/pdfrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/postprocessors"
)

const testDims = 16

// mockExtractor returns canned text per path.
type mockExtractor struct {
	mu    sync.Mutex
	texts map[string]string
	err   error
	calls int
}

func (m *mockExtractor) Extract(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	text, ok := m.texts[path]
	if !ok {
		return "", domain.Permanent(errors.Join(domain.ErrExtraction, errors.New("no such file")))
	}
	return text, nil
}

func (m *mockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockEmbeddingService hashes words into buckets so texts sharing words are
// close under cosine similarity.
type mockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	// failures is how many calls fail before calls succeed.
	failures int
	err      error
	calls    int
	// override replaces the vectors of every call when set.
	override [][]float32
}

func newMockEmbedding() *mockEmbeddingService {
	return &mockEmbeddingService{dimensions: testDims}
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return nil, m.err
	}
	if m.override != nil {
		return m.override, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bagOfWords(t, m.dimensions)
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return nil
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

func (m *mockEmbeddingService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func bagOfWords(text string, dims int) []float32 {
	v := make([]float32, dims)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(dims)]++
	}
	return v
}

// mockLLMService records the messages it receives.
type mockLLMService struct {
	mu       sync.Mutex
	answer   string
	err      error
	failures int
	calls    int
	messages []driven.ChatMessage
	opts     driven.ChatOptions
}

func (m *mockLLMService) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.messages = messages
	m.opts = opts
	if m.failures != 0 {
		// Negative failures fail every call.
		if m.failures > 0 {
			m.failures--
		}
		return "", m.err
	}
	return m.answer, nil
}

func (m *mockLLMService) ModelName() string {
	return "mock-chat"
}

func (m *mockLLMService) Ping(_ context.Context) error {
	return nil
}

func (m *mockLLMService) Close() error {
	return nil
}

func (m *mockLLMService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// failingVectorStore wraps a memory store and fails the first upserts.
type failingVectorStore struct {
	*memory.VectorStore
	mu       sync.Mutex
	failures int
	err      error
	upserts  int
}

func (s *failingVectorStore) Upsert(ctx context.Context, points []domain.Point) error {
	s.mu.Lock()
	s.upserts++
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return s.err
	}
	s.mu.Unlock()
	return s.VectorStore.Upsert(ctx, points)
}

// brokenPipeline rejects every document as misconfigured.
type brokenPipeline struct{}

func (brokenPipeline) Process(_ context.Context, _ *domain.Document) ([]domain.Chunk, error) {
	return nil, fmt.Errorf("%w: overlap must be smaller than chunk size", domain.ErrInvalidInput)
}

// testEnv wires workflows over memory stores and mocks.
type testEnv struct {
	runs      *memory.RunStore
	steps     *memory.StepStore
	store     *failingVectorStore
	extractor *mockExtractor
	embedding *mockEmbeddingService
	llm       *mockLLMService
	engine    *Engine
	delays    []time.Duration
	ingest    *IngestWorkflow
	query     *QueryWorkflow
}

func newTestEnv(chunkSize, overlap int) *testEnv {
	env := &testEnv{
		runs:      memory.NewRunStore(),
		steps:     memory.NewStepStore(),
		store:     &failingVectorStore{VectorStore: memory.NewVectorStore()},
		extractor: &mockExtractor{texts: map[string]string{}},
		embedding: newMockEmbedding(),
		llm:       &mockLLMService{answer: "X is defined as the answer."},
	}
	env.engine = NewEngine(env.runs, env.steps, domain.DefaultRetryPolicy())
	env.engine.sleep = func(_ context.Context, d time.Duration) error {
		env.delays = append(env.delays, d)
		return nil
	}

	pipeline, err := postprocessors.NewChunkingPipeline(domain.ChunkSettings{Size: chunkSize, Overlap: overlap})
	if err != nil {
		panic(err)
	}
	embedder := NewEmbeddingClient(env.embedding, testDims)
	env.ingest = NewIngestWorkflow(env.engine, env.extractor, pipeline, embedder, env.store)
	env.query = NewQueryWorkflow(env.engine, embedder, env.store, env.llm, NewPromptBuilder(nil), nil, 50)
	return env
}
