package postprocessors

import (
	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/postprocessors/chunker"
)

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
}

// NewChunkingPipeline builds the ingestion pipeline for the given chunk policy.
// The policy is validated up front so a bad configuration fails before any
// document is read.
func NewChunkingPipeline(settings domain.ChunkSettings) (*Pipeline, error) {
	if _, err := chunker.Split("", settings.Size, settings.Overlap); err != nil {
		return nil, err
	}

	r := NewRegistry()
	RegisterDefaults(r)

	proc, err := r.Build("chunker", map[string]any{
		"chunk_size": settings.Size,
		"overlap":    settings.Overlap,
	})
	if err != nil {
		return nil, err
	}
	return NewPipeline(proc), nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Characters per chunk (default: 1000)
//   - overlap (int): Overlapping characters between chunks (default: 200)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size, ok := getIntFromConfig(cfg, "chunk_size"); ok {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	}

	return chunker.New(opts...), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
