// Package app assembles the rag core from Settings. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/data/redisStore"
	"github.com/akolanti/TranscriptRAG/internal/data/store"
	"github.com/akolanti/TranscriptRAG/internal/domain/jobModel"
	"github.com/akolanti/TranscriptRAG/internal/domain/sessionModel"
	"github.com/akolanti/TranscriptRAG/internal/rag"
	"github.com/akolanti/TranscriptRAG/internal/rag/chunker"
	"github.com/akolanti/TranscriptRAG/internal/rag/embedding"
	"github.com/akolanti/TranscriptRAG/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/TranscriptRAG/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/TranscriptRAG/internal/rag/llm"
	"github.com/akolanti/TranscriptRAG/internal/rag/llm/gemini"
	"github.com/akolanti/TranscriptRAG/internal/rag/llm/openaiLLM"
	"github.com/akolanti/TranscriptRAG/internal/rag/retry"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB/localIndex"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/TranscriptRAG/internal/session"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

var logger = logger_i.NewLogger("bootstrap")

type App struct {
	Settings *config.Settings
	RAG      rag.Service
	Sessions *session.Manager

	index        vectorDB.Index
	sessionStore sessionModel.Store
}

// Build opens the index and the session log and connects the providers named in s.
// ctx bounds the lifetime of the Redis clients, if any are used.
func Build(ctx context.Context, s *config.Settings) (*App, error) {
	c, err := chunker.New(
		chunker.WithWindow(s.Chunker.Window),
		chunker.WithOverlap(s.Chunker.Overlap),
		chunker.WithLookahead(s.Chunker.Lookahead),
	)
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}

	policy := retry.FromSettings(s.Retry)
	embedder, provider, err := newProviders(ctx, s.Provider)
	if err != nil {
		return nil, err
	}

	index, err := openIndex(ctx, s)
	if err != nil {
		return nil, err
	}

	sessionStore, err := openSessionStore(ctx, s)
	if err != nil {
		_ = index.Close()
		return nil, err
	}
	sessions := session.NewManager(sessionStore)

	svc := rag.NewService(index,
		llm.WithRetry(provider, policy),
		embedding.WithRetry(embedder, policy),
		c, sessions, rag.OptionsFromSettings(s))

	logger.Info("rag core ready",
		"index", s.IndexBackend, "sessions", s.SessionBackend, "provider", s.Provider.Name,
		"collection", s.Collection)
	return &App{
		Settings:     s,
		RAG:          svc,
		Sessions:     sessions,
		index:        index,
		sessionStore: sessionStore,
	}, nil
}

func (a *App) Close() error {
	return errors.Join(a.index.Close(), a.sessionStore.Close())
}

func newProviders(ctx context.Context, p config.ProviderSettings) (embedding.Embedder, llm.Provider, error) {
	if p.APIKey == "" {
		return nil, nil, fmt.Errorf("no API key configured for provider %q", p.Name)
	}
	switch p.Name {
	case config.ProviderOpenAI:
		em, err := openaiEmbedding.NewOpenAIEmbedder(p.EmbeddingModel, p.APIKey, p.BaseURL, p.Dimension)
		if err != nil {
			return nil, nil, err
		}
		gen, err := openaiLLM.NewOpenAIClient(p.ChatModel, p.APIKey, p.BaseURL)
		if err != nil {
			return nil, nil, err
		}
		return em, gen, nil
	case config.ProviderGoogle:
		em, err := googleEmbedding.NewGoogleEmbedder(ctx, p.EmbeddingModel, p.APIKey, p.Dimension)
		if err != nil {
			return nil, nil, err
		}
		gen, err := gemini.NewGeminiClient(ctx, p.ChatModel, p.APIKey)
		if err != nil {
			return nil, nil, err
		}
		return em, gen, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider %q", p.Name)
	}
}

func openIndex(ctx context.Context, s *config.Settings) (vectorDB.Index, error) {
	switch s.IndexBackend {
	case config.IndexBackendQdrant:
		return qdrantDB.NewStore(s.Qdrant, s.Provider.Dimension)
	default:
		ix, err := localIndex.Open(ctx, s.IndexPath())
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		return ix, nil
	}
}

func openSessionStore(ctx context.Context, s *config.Settings) (sessionModel.Store, error) {
	switch s.SessionBackend {
	case config.SessionBackendRedis:
		return store.GetRedisSessionStore(ctx, RedisOptions(s))
	default:
		st, err := store.OpenSQLiteSessionStore(ctx, s.SessionPath())
		if err != nil {
			return nil, fmt.Errorf("open session log: %w", err)
		}
		return st, nil
	}
}

func RedisOptions(s *config.Settings) redisStore.Options {
	return redisStore.Options{Addr: s.RedisAddr, Password: s.RedisPassword}
}

// OpenJobStore prefers Redis and falls back to memory when Redis is unreachable and the fallback is enabled.
func OpenJobStore(ctx context.Context, s *config.Settings) (jobModel.JobStore, error) {
	jobs, err := store.GetRedisJobStore(ctx, RedisOptions(s))
	if err == nil {
		return jobs, nil
	}
	if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
		return nil, fmt.Errorf("job store: %w", err)
	}
	logger.Error("Redis job store offline, keeping job status in memory", "error", err)
	return store.InitInMemoryJobStore(), nil
}
