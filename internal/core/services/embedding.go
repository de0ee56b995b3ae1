package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// EmbeddingClient checks provider embeddings against the configured dimension.
// It is safe for concurrent use.
type EmbeddingClient struct {
	svc        driven.EmbeddingService
	dimensions int
}

// NewEmbeddingClient wraps svc. Every vector it returns has length dimensions.
func NewEmbeddingClient(svc driven.EmbeddingService, dimensions int) *EmbeddingClient {
	return &EmbeddingClient{
		svc:        svc,
		dimensions: dimensions,
	}
}

// Dimensions returns the configured vector length.
func (c *EmbeddingClient) Dimensions() int {
	return c.dimensions
}

// Embed returns one vector per text, index-aligned with texts.
//
// Provider failures are wrapped in domain.ErrEmbeddingProvider and may be
// retried. A vector of the wrong length is never truncated or padded: it is a
// permanent failure, since the same model will keep returning it.
func (c *EmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.svc == nil {
		return nil, domain.Permanent(domain.ErrEmbeddingUnavailable)
	}

	vectors, err := c.svc.EmbedBatch(ctx, texts)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingProvider) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrEmbeddingProvider, c.svc.ModelName(), err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %s returned %d vectors for %d texts",
			domain.ErrEmbeddingProvider, c.svc.ModelName(), len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != c.dimensions {
			return nil, domain.Permanent(fmt.Errorf("%w: %s returned %d dimensions for text %d, expected %d",
				domain.ErrEmbeddingProvider, c.svc.ModelName(), len(v), i, c.dimensions))
		}
	}

	return vectors, nil
}
