// Package chunker splits text into fixed-size overlapping windows.
package chunker

import (
	"context"
	"fmt"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/pointid"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Split cuts text into windows of size characters whose starts advance by
// size-overlap. The last window may be shorter. Splitting stops at the first
// window that reaches the end of the text.
//
// Characters are runes, so multi-byte UTF-8 sequences are never cut.
// Empty text yields an empty slice.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidInput, size, overlap)
	}
	if text == "" {
		return []string{}, nil
	}

	runes := []rune(text)
	total := len(runes)
	step := size - overlap

	chunks := make([]string, 0, Count(total, size, overlap))
	for start := 0; ; start += step {
		end := start + size
		if end > total {
			end = total
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == total {
			break
		}
	}

	return chunks, nil
}

// Count returns how many windows Split produces for text of length characters.
func Count(length, size, overlap int) int {
	if length <= 0 || size <= 0 || overlap < 0 || overlap >= size {
		return 0
	}
	rest := length - size
	if rest <= 0 {
		return 1
	}
	step := size - overlap
	return 1 + (rest+step-1)/step
}

// Processor splits document content into fixed-size chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a new chunker processor with the given options.
// Invalid sizes are reported by Process.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
// Chunk IDs are the point IDs the chunks will be stored under.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	texts, err := Split(doc.Content, p.chunkSize, p.overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:       pointid.Derive(doc.SourceID, i),
			SourceID: doc.SourceID,
			Position: i,
			Text:     text,
		}
	}

	return chunks, nil
}
