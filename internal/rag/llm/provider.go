package llm

import (
	"context"
	"errors"

	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/rag/retry"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Prompt is what the orchestrator hands to a completion backend.
type Prompt struct {
	System   string
	Context  string
	History  []Message
	Question string
}

// Provider is the external completion capability.
type Provider interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

var ErrEmptyCompletion = errors.New("provider returned an empty completion")

type retrying struct {
	next   Provider
	policy retry.Policy
}

// WithRetry applies policy to every call and tags exhausted failures as completion errors.
func WithRetry(next Provider, policy retry.Policy) Provider {
	return &retrying{next: next, policy: policy}
}

func (r *retrying) Generate(ctx context.Context, prompt Prompt) (string, error) {
	text, err := retry.Do(ctx, r.policy, "complete", func(ctx context.Context) (string, error) {
		text, err := r.next.Generate(ctx, prompt)
		if err == nil && text == "" {
			return "", ErrEmptyCompletion
		}
		return text, err
	})
	if err != nil {
		if ragErrors.KindOf(err) != "" {
			return "", err
		}
		return "", ragErrors.New(ragErrors.KindCompletion, "complete", "", err)
	}
	return text, nil
}

// UserContent joins the retrieved context and the question into the final user message.
func (p Prompt) UserContent() string {
	if p.Context == "" {
		return "User Question: " + p.Question
	}
	return "Context:\n" + p.Context + "\n\nUser Question: " + p.Question
}
