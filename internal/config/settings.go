package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ChunkerSettings is measured in tokens.
type ChunkerSettings struct {
	Window    int `yaml:"window"`
	Overlap   int `yaml:"overlap"`
	Lookahead int `yaml:"lookahead"`
}

type RetrievalSettings struct {
	TopK               int     `yaml:"top_k"`
	TokenBudget        int     `yaml:"token_budget"`
	MinSimilarity      float32 `yaml:"min_similarity"`
	HistoryTurns       int     `yaml:"history_turns"`
	HistoryTokenBudget int     `yaml:"history_token_budget"`
}

type RetrySettings struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
	CallTimeout    time.Duration `yaml:"call_timeout"`
}

type ProviderSettings struct {
	Name           string `yaml:"name"`
	APIKey         string `yaml:"-"`
	BaseURL        string `yaml:"base_url"`
	ChatModel      string `yaml:"chat_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	Dimension      int32  `yaml:"dimension"`
}

type QdrantSettings struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"-"`
	UseTLS bool   `yaml:"use_tls"`
}

// Settings is the runtime configuration. Defaults come from the constants in this package,
// then the optional YAML tuning file, then the environment.
type Settings struct {
	Env            string            `yaml:"env"`
	LogLevel       string            `yaml:"log_level"`
	ListenAddr     string            `yaml:"listen_addr"`
	DataDir        string            `yaml:"data_dir"`
	TranscriptsDir string            `yaml:"transcripts_dir"`
	Collection     string            `yaml:"collection"`
	IndexBackend   string            `yaml:"index_backend"`
	SessionBackend string            `yaml:"session_backend"`
	RedisAddr      string            `yaml:"redis_addr"`
	RedisPassword  string            `yaml:"-"`
	AuthToken      string            `yaml:"-"`
	RateLimit      float64           `yaml:"rate_limit_per_second"`
	RateBurst      int               `yaml:"rate_limit_burst"`
	Chunker        ChunkerSettings   `yaml:"chunker"`
	Retrieval      RetrievalSettings `yaml:"retrieval"`
	Retry          RetrySettings     `yaml:"retry"`
	Provider       ProviderSettings  `yaml:"provider"`
	Qdrant         QdrantSettings    `yaml:"qdrant"`
}

// Default returns the compiled-in settings.
func Default() *Settings {
	return &Settings{
		Env:            DefaultEnv,
		LogLevel:       "debug",
		ListenAddr:     ServerListenAddr,
		DataDir:        DefaultDataDir,
		Collection:     EmbeddingCollectionName,
		IndexBackend:   IndexBackendLocal,
		SessionBackend: SessionBackendSQLite,
		RedisAddr:      RedisAddr,
		RateLimit:      RATE_LIMIT_PER_SECOND,
		RateBurst:      BURST_RATE_LIMIT_PER_SECOND,
		Chunker: ChunkerSettings{
			Window:    ChunkWindowTokens,
			Overlap:   ChunkOverlapTokens,
			Lookahead: ChunkLookaheadTokens,
		},
		Retrieval: RetrievalSettings{
			TopK:               DefaultTopK,
			TokenBudget:        ContextTokenBudget,
			MinSimilarity:      MinSimilarity,
			HistoryTurns:       HistoryTurns,
			HistoryTokenBudget: HistoryTokenBudget,
		},
		Retry: RetrySettings{
			MaxAttempts:    RetryMaxAttempts,
			InitialBackoff: RetryInitialBackoff,
			MaxBackoff:     RetryMaxBackoff,
			Multiplier:     RetryMultiplier,
			CallTimeout:    ExternalCallTimeout,
		},
		Provider: ProviderSettings{
			Name:           ProviderGoogle,
			ChatModel:      GeminiModelName,
			EmbeddingModel: GoogleEmbeddingModel,
			Dimension:      EmbeddingOutputDimensionality,
		},
		Qdrant: QdrantSettings{
			Host:   QdrantHost,
			Port:   QdrantGrpcPort,
			UseTLS: QdrantUseTLS,
		},
	}
}

// Load reads .env (if any), the YAML file at path (missing file is fine) and the environment.
// An empty path falls back to RAG_CONFIG, then config.yaml.
func Load(path string) (*Settings, error) {
	_ = godotenv.Load()

	if path == "" {
		path = envStr("RAG_CONFIG", DefaultConfigPath)
	}
	s := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	s.applyEnv()
	s.applyProviderDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) applyEnv() {
	s.Env = envStr("RAG_ENV", s.Env)
	s.LogLevel = envStr("LOG_LEVEL", s.LogLevel)
	s.ListenAddr = envStr("LISTEN_ADDR", s.ListenAddr)
	s.DataDir = envStr("RAG_DATA_DIR", s.DataDir)
	s.TranscriptsDir = envStr("RAG_TRANSCRIPTS_DIR", s.TranscriptsDir)
	s.Collection = envStr("RAG_COLLECTION", s.Collection)
	s.IndexBackend = envStr("RAG_INDEX_BACKEND", s.IndexBackend)
	s.SessionBackend = envStr("RAG_SESSION_BACKEND", s.SessionBackend)
	s.RedisAddr = envStr("REDIS_ADDR", s.RedisAddr)
	s.RedisPassword = envStr("REDIS_PASSWORD", s.RedisPassword)
	s.AuthToken = envStr("RAG_API_TOKEN", s.AuthToken)

	s.Chunker.Window = envInt("RAG_CHUNK_WINDOW", s.Chunker.Window)
	s.Chunker.Overlap = envInt("RAG_CHUNK_OVERLAP", s.Chunker.Overlap)
	s.Retrieval.TopK = envInt("RAG_TOP_K", s.Retrieval.TopK)
	s.Retrieval.TokenBudget = envInt("RAG_TOKEN_BUDGET", s.Retrieval.TokenBudget)

	s.Provider.Name = envStr("RAG_PROVIDER", s.Provider.Name)
	s.Provider.BaseURL = envStr("OPENAI_BASE_URL", s.Provider.BaseURL)
	switch s.Provider.Name {
	case ProviderOpenAI:
		s.Provider.APIKey = envStr("OPENAI_API_KEY", s.Provider.APIKey)
	default:
		s.Provider.APIKey = envStr("GOOGLE_AI_API_KEY", s.Provider.APIKey)
	}

	s.Qdrant.Host = envStr("QDRANT_HOST", s.Qdrant.Host)
	s.Qdrant.Port = envInt("QDRANT_PORT", s.Qdrant.Port)
	s.Qdrant.APIKey = envStr("QDRANT_API_KEY", s.Qdrant.APIKey)
}

// switching provider without naming models picks that provider's defaults
func (s *Settings) applyProviderDefaults() {
	if s.Provider.Name != ProviderOpenAI {
		return
	}
	if s.Provider.ChatModel == GeminiModelName {
		s.Provider.ChatModel = OpenAIChatModel
	}
	if s.Provider.EmbeddingModel == GoogleEmbeddingModel {
		s.Provider.EmbeddingModel = OpenAIEmbeddingModel
	}
}

func (s *Settings) Validate() error {
	var errs []error
	c := s.Chunker
	if c.Window <= 0 {
		errs = append(errs, fmt.Errorf("chunker.window must be positive, got %d", c.Window))
	}
	if c.Overlap < 0 || c.Overlap >= c.Window {
		errs = append(errs, fmt.Errorf("chunker.overlap must be in [0, window), got %d", c.Overlap))
	}
	if c.Lookahead < 0 {
		errs = append(errs, fmt.Errorf("chunker.lookahead must not be negative, got %d", c.Lookahead))
	}
	if s.Retrieval.TopK <= 0 || s.Retrieval.TopK > MaxTopK {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be in [1, %d], got %d", MaxTopK, s.Retrieval.TopK))
	}
	if s.Retrieval.TokenBudget <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.token_budget must be positive, got %d", s.Retrieval.TokenBudget))
	}
	if s.Retry.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be positive, got %d", s.Retry.MaxAttempts))
	}
	if s.Provider.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("provider.dimension must be positive, got %d", s.Provider.Dimension))
	}
	switch s.IndexBackend {
	case IndexBackendLocal, IndexBackendQdrant:
	default:
		errs = append(errs, fmt.Errorf("unknown index_backend %q", s.IndexBackend))
	}
	switch s.SessionBackend {
	case SessionBackendSQLite, SessionBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown session_backend %q", s.SessionBackend))
	}
	return errors.Join(errs...)
}

func (s *Settings) IsProd() bool {
	return IS_PROD || strings.EqualFold(s.Env, "prod")
}

func (s *Settings) IndexPath() string {
	return filepath.Join(s.DataDir, IndexDBFile)
}

// TranscriptsPath is the root that directory ingest may read from.
func (s *Settings) TranscriptsPath() string {
	if s.TranscriptsDir != "" {
		return s.TranscriptsDir
	}
	return filepath.Join(s.DataDir, TranscriptsDirName)
}

func (s *Settings) SessionPath() string {
	return filepath.Join(s.DataDir, SessionDBFile)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
