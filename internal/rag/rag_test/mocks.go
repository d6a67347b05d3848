package rag_test

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/akolanti/TranscriptRAG/internal/rag/llm"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB"
)

const mockDimension = 16

// bagOfWords hashes every token into one of mockDimension buckets. Related texts get close vectors.
func bagOfWords(text string) []float32 {
	v := make([]float32, mockDimension)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(tok, ".,?!")))
		v[h.Sum32()%mockDimension]++
	}
	v[0] += 0.5
	return v
}

// MockEmbedder implements embedding.Embedder
type MockEmbedder struct {
	OnGetEmbedding   func(ctx context.Context, text string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bagOfWords(t)
	}
	return out, nil
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, query)
	}
	return bagOfWords(query), nil
}

// MockLLM implements llm.Provider
type MockLLM struct {
	OnGenerate func(ctx context.Context, prompt llm.Prompt) (string, error)
}

func (m *MockLLM) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, prompt)
	}
	return "mocked llm response", nil
}

func vectorFilterFor(documentIds ...string) vectorDB.Filter {
	return vectorDB.Filter{DocumentIds: documentIds}
}
