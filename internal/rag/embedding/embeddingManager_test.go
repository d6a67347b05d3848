package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/rag/retry"
)

type stubEmbedder struct {
	single func(ctx context.Context, q string) ([]float32, error)
	batch  func(ctx context.Context, texts []string) ([][]float32, error)
}

func (s *stubEmbedder) GetEmbedding(ctx context.Context, q string) ([]float32, error) {
	return s.single(ctx, q)
}

func (s *stubEmbedder) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return s.batch(ctx, texts)
}

func testPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = 3
	p.InitialBackoff = time.Millisecond
	p.MaxBackoff = time.Millisecond
	p.Jitter = 0
	return p
}

func TestWithRetryRecoversFromTransientFailure(t *testing.T) {
	calls := 0
	e := WithRetry(&stubEmbedder{single: func(ctx context.Context, q string) ([]float32, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("503 from provider")
		}
		return []float32{1, 0}, nil
	}}, testPolicy())

	vec, err := e.GetEmbedding(context.Background(), "who was the guest")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, 2, calls)
}

func TestWithRetryTagsExhaustedFailures(t *testing.T) {
	e := WithRetry(&stubEmbedder{single: func(ctx context.Context, q string) ([]float32, error) {
		return nil, errors.New("still down")
	}}, testPolicy())

	_, err := e.GetEmbedding(context.Background(), "q")
	assert.ErrorIs(t, err, ragErrors.ErrEmbedding)
}

func TestWithRetryRejectsShortBatch(t *testing.T) {
	e := WithRetry(&stubEmbedder{batch: func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}}, testPolicy())

	_, err := e.BatchEmbedding(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ragErrors.ErrEmbedding)
}
