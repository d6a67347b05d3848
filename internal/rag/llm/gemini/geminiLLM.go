package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/customHttpClient"
	"github.com/akolanti/TranscriptRAG/internal/rag/llm"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

type Client struct {
	client    *genai.Client
	modelName string
}

var logger = logger_i.NewLogger("llm_gemini")

func NewGeminiClient(ctx context.Context, modelName, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: missing api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.Get(),
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	logger.Info("Gemini client created", "model", modelName)
	return &Client{client: c, modelName: modelName}, nil
}

func (c *Client) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	log := logger.FromContext(ctx)

	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		Temperature:       genai.Ptr(config.ModelTemperature),
		MaxOutputTokens:   config.ModelMaxTokens,
	}

	result, err := c.client.Models.GenerateContent(ctx, c.modelName, toContents(prompt), contentConfig)
	if err != nil {
		log.Error("Gemini generation failed", "error", err)
		return "", err
	}
	return result.Text(), nil
}

func toContents(prompt llm.Prompt) []*genai.Content {
	contents := make([]*genai.Content, 0, len(prompt.History)+1)
	for _, m := range prompt.History {
		role := genai.Role(genai.RoleUser)
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return append(contents, genai.NewContentFromText(prompt.UserContent(), genai.RoleUser))
}
