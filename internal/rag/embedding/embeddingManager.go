package embedding

import (
	"context"
	"fmt"

	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/rag/retry"
)

// Embedder is the external embedding capability.
// BatchEmbedding returns one vector per input, in order; a nil entry marks an input the provider could not embed.
type Embedder interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type retrying struct {
	next   Embedder
	policy retry.Policy
}

// WithRetry applies policy to every call and tags exhausted failures as embedding errors.
func WithRetry(next Embedder, policy retry.Policy) Embedder {
	return &retrying{next: next, policy: policy}
}

func (r *retrying) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vec, err := retry.Do(ctx, r.policy, "embed_query", func(ctx context.Context) ([]float32, error) {
		return r.next.GetEmbedding(ctx, query)
	})
	if err != nil {
		return nil, asEmbeddingError("embed query", err)
	}
	if len(vec) == 0 {
		return nil, ragErrors.New(ragErrors.KindEmbedding, "embed query", "provider returned an empty vector", nil)
	}
	return vec, nil
}

func (r *retrying) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := retry.Do(ctx, r.policy, "embed_batch", func(ctx context.Context) ([][]float32, error) {
		return r.next.BatchEmbedding(ctx, texts)
	})
	if err != nil {
		return nil, asEmbeddingError("embed batch", err)
	}
	if len(vecs) != len(texts) {
		return nil, ragErrors.New(ragErrors.KindEmbedding, "embed batch",
			fmt.Sprintf("provider returned %d vectors for %d inputs", len(vecs), len(texts)), nil)
	}
	return vecs, nil
}

func asEmbeddingError(op string, err error) error {
	if ragErrors.KindOf(err) != "" {
		return err
	}
	return ragErrors.New(ragErrors.KindEmbedding, op, "", err)
}
