package openaiEmbedding

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/akolanti/TranscriptRAG/internal/customHttpClient"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

var logger = logger_i.NewLogger("openai_embedding")

type Client struct {
	api       openai.Client
	model     string
	dimension int64
}

// NewOpenAIEmbedder builds a client for any OpenAI-compatible embeddings endpoint.
// The SDK's own retries are disabled; callers wrap the client in embedding.WithRetry.
func NewOpenAIEmbedder(modelName, apiKey, baseURL string, dimension int32) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai embedding: missing api key")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(customHttpClient.Get()),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	logger.Info("OpenAI Embedding client created", "model", modelName, "dimension", dimension)
	return &Client{api: openai.NewClient(opts...), model: modelName, dimension: int64(dimension)}, nil
}

func (c *Client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vecs, err := c.BatchEmbedding(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if vecs[0] == nil {
		return nil, errors.New("openai embedding: empty response")
	}
	return vecs[0], nil
}

func (c *Client) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	log := logger.FromContext(ctx)
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      c.model,
		Dimensions: openai.Int(c.dimension),
	})
	if err != nil {
		log.Error("Error getting embeddings from OpenAI", "error", err, "inputs", len(texts))
		return nil, err
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			continue
		}
		out[d.Index] = toFloat32(d.Embedding)
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
