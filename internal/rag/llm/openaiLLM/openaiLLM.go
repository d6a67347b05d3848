package openaiLLM

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/customHttpClient"
	"github.com/akolanti/TranscriptRAG/internal/rag/llm"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

var logger = logger_i.NewLogger("llm_openai")

type Client struct {
	api       openai.Client
	modelName string
}

func NewOpenAIClient(modelName, apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: missing api key")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(customHttpClient.Get()),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	logger.Info("OpenAI client created", "model", modelName)
	return &Client{api: openai.NewClient(opts...), modelName: modelName}, nil
}

func (c *Client) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.modelName,
		Messages:    toMessages(prompt),
		Temperature: openai.Float(float64(config.ModelTemperature)),
		MaxTokens:   openai.Int(config.ModelMaxTokens),
	})
	if err != nil {
		logger.FromContext(ctx).Error("OpenAI completion failed", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func toMessages(prompt llm.Prompt) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(prompt.History)+2)
	if prompt.System != "" {
		msgs = append(msgs, openai.SystemMessage(prompt.System))
	}
	for _, m := range prompt.History {
		if m.Role == llm.RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
			continue
		}
		msgs = append(msgs, openai.UserMessage(m.Content))
	}
	return append(msgs, openai.UserMessage(prompt.UserContent()))
}
