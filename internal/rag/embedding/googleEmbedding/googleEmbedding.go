package googleEmbedding

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/akolanti/TranscriptRAG/internal/customHttpClient"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

const (
	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

var logger = logger_i.NewLogger("google_embedding")

type Client struct {
	genAi     *genai.Client
	model     string
	dimension int32
}

func NewGoogleEmbedder(ctx context.Context, modelName, apiKey string, dimension int32) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("google embedding: missing api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.Get(),
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	logger.Info("Google Embedding client created", "model", modelName, "dimension", dimension)
	return &Client{genAi: c, model: modelName, dimension: dimension}, nil
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))
	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

func (c *Client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	log := logger.FromContext(ctx)
	log.Debug("embedding query", "chars", len(query))

	result, err := c.doCall(ctx, genai.Text(query), taskQuery)
	if err != nil {
		log.Error("Error getting query embedding from Google", "error", err)
		return nil, err
	}
	if len(result.Embeddings) == 0 || result.Embeddings[0] == nil {
		return nil, errors.New("google embedding: empty response")
	}
	return result.Embeddings[0].Values, nil
}

func (c *Client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	log := logger.FromContext(ctx).With("chunks", len(chunks))

	res, err := c.doCall(ctx, getContent(chunks), taskDocument)
	if err != nil {
		log.Error("Error getting batch embeddings from Google", "error", err)
		return nil, err
	}

	results := make([][]float32, len(chunks))
	for i, r := range res.Embeddings {
		if i >= len(results) {
			break
		}
		if r == nil || len(r.Values) == 0 {
			log.Warn("Google returned no vector for chunk", "position", i)
			continue
		}
		results[i] = r.Values
	}
	return results, nil
}

func (c *Client) doCall(ctx context.Context, content []*genai.Content, task string) (*genai.EmbedContentResponse, error) {
	return c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{
		OutputDimensionality: &c.dimension,
		TaskType:             task,
	})
}
