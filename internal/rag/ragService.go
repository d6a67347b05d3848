package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/jobModel"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/domain/sessionModel"
	"github.com/akolanti/TranscriptRAG/internal/metrics"
	"github.com/akolanti/TranscriptRAG/internal/rag/chunker"
	"github.com/akolanti/TranscriptRAG/internal/rag/embedding"
	"github.com/akolanti/TranscriptRAG/internal/rag/ingest"
	"github.com/akolanti/TranscriptRAG/internal/rag/llm"
	"github.com/akolanti/TranscriptRAG/internal/rag/retriever"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB"
	"github.com/akolanti/TranscriptRAG/internal/session"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

/*
Service is the opaque entry point of the core. Workers, handlers and the MCP server only see this
interface; the index, the providers and the session log stay inside the private struct so tests can
swap any of them.
*/
type Service interface {
	// job surface used by the worker pool
	ProcessRequest(ctx context.Context, job jobModel.Job) jobModel.Job
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job

	Ask(ctx context.Context, sessionId, message string, opts AskOptions) (Answer, error)
	Ingest(ctx context.Context, doc commonModels.Document) (ingest.Report, error)
	IngestBatch(ctx context.Context, docs []commonModels.Document) (ingest.BatchReport, error)
	IngestDirectory(ctx context.Context, dir string) (ingest.BatchReport, error)
	Search(ctx context.Context, query string, k int, filter vectorDB.Filter) ([]commonModels.SearchResult, error)
	DeleteDocument(ctx context.Context, documentId string) (int, error)
	Stats(ctx context.Context) (commonModels.IndexStats, error)
	ClearCollection(ctx context.Context) error
	Compact(ctx context.Context) error
}

type AskOptions struct {
	UseRAG bool
	K      int
	Filter vectorDB.Filter
}

func DefaultAskOptions() AskOptions {
	return AskOptions{UseRAG: true}
}

type Answer struct {
	Text         string                  `json:"answer"`
	Citations    []commonModels.Citation `json:"citations"`
	NoContext    bool                    `json:"no_context"`
	UserSeq      int64                   `json:"user_seq"`
	AssistantSeq int64                   `json:"assistant_seq"`
}

type Options struct {
	Collection         string
	SystemPrompt       string
	AskTimeout         time.Duration
	HistoryTurns       int
	HistoryTokenBudget int
	TranscriptsDir     string
	Retrieval          retriever.Options
	Ingest             ingest.Options
}

func DefaultOptions() Options {
	return Options{
		Collection:         config.EmbeddingCollectionName,
		SystemPrompt:       config.ModelContext,
		AskTimeout:         config.AskTimeout,
		HistoryTurns:       config.HistoryTurns,
		HistoryTokenBudget: config.HistoryTokenBudget,
		TranscriptsDir:     filepath.Join(config.DefaultDataDir, config.TranscriptsDirName),
		Retrieval:          retriever.DefaultOptions(),
		Ingest:             ingest.DefaultOptions(),
	}
}

func OptionsFromSettings(s *config.Settings) Options {
	opts := DefaultOptions()
	opts.Collection = s.Collection
	opts.HistoryTurns = s.Retrieval.HistoryTurns
	opts.HistoryTokenBudget = s.Retrieval.HistoryTokenBudget
	opts.TranscriptsDir = s.TranscriptsPath()
	opts.Retrieval = retriever.Options{
		Collection:  s.Collection,
		TopK:        s.Retrieval.TopK,
		TokenBudget: s.Retrieval.TokenBudget,
		MinScore:    s.Retrieval.MinSimilarity,
	}
	opts.Ingest.Collection = s.Collection
	return opts
}

type service struct {
	index       vectorDB.Index
	llmProvider llm.Provider
	retriever   *retriever.Retriever
	pipeline    *ingest.Pipeline
	sessions    *session.Manager
	locks       *sessionLocks
	opts        Options
	logger      *logger_i.Logger
}

// NewService wires the core. The embedder and provider are expected to carry their retry policy already.
func NewService(index vectorDB.Index, provider llm.Provider, em embedding.Embedder, c *chunker.Chunker,
	sessions *session.Manager, opts Options) Service {
	opts.Retrieval.Collection = opts.Collection
	opts.Ingest.Collection = opts.Collection
	return &service{
		index:       index,
		llmProvider: provider,
		retriever:   retriever.New(em, index, opts.Retrieval),
		pipeline:    ingest.NewPipeline(c, em, index, opts.Ingest),
		sessions:    sessions,
		locks:       newSessionLocks(),
		opts:        opts,
		logger:      logger_i.NewLogger("RAG Service"),
	}
}

// Ask answers message inside a session. The user turn is durable before anything external runs;
// if retrieval or completion then fails, a failed assistant turn is recorded and the cause returned.
func (s *service) Ask(ctx context.Context, sessionId, message string, opts AskOptions) (Answer, error) {
	log := s.logger.FromContext(ctx).With("sessionId", sessionId)
	message = strings.TrimSpace(message)
	if message == "" {
		return Answer{}, ragErrors.InvalidArgument("ask", "empty message")
	}

	release, err := s.locks.acquire(ctx, sessionId)
	if err != nil {
		return Answer{}, err
	}
	defer release()

	askCtx, cancel := context.WithTimeout(ctx, s.opts.AskTimeout)
	defer cancel()

	userSeq, err := s.sessions.AppendTurn(askCtx, sessionId, sessionModel.Turn{
		Role:    sessionModel.RoleUser,
		Content: message,
		Status:  sessionModel.StatusRecorded,
	})
	if err != nil {
		metrics.CaptureAskOutcome("failed")
		return Answer{}, err
	}
	answer := Answer{UserSeq: userSeq, Citations: []commonModels.Citation{}}

	history, err := s.sessions.History(askCtx, sessionId, userSeq, s.opts.HistoryTurns, s.opts.HistoryTokenBudget)
	if err != nil {
		return s.failTurn(ctx, log, sessionId, answer, err)
	}

	prompt := llm.Prompt{
		System:   s.opts.SystemPrompt,
		History:  toMessages(history),
		Question: message,
	}
	if opts.UseRAG {
		rc, err := s.executeRetrievalStep(askCtx, log, message, opts)
		if err != nil {
			return s.failTurn(ctx, log, sessionId, answer, err)
		}
		prompt.Context = rc.Text
		answer.Citations = rc.Citations
		answer.NoContext = rc.Empty
	}

	text, err := s.executeLLMStep(askCtx, log, prompt)
	if err == nil {
		err = askCtx.Err()
	}
	if err != nil {
		return s.failTurn(ctx, log, sessionId, answer, err)
	}
	answer.Text = text

	answer.AssistantSeq, err = s.sessions.AppendTurn(askCtx, sessionId, sessionModel.Turn{
		Role:      sessionModel.RoleAssistant,
		Content:   text,
		Citations: answer.Citations,
		Status:    sessionModel.StatusSucceeded,
	})
	if err != nil {
		metrics.CaptureAskOutcome("failed")
		log.Error("answer generated but not persisted", "error", err)
		return Answer{UserSeq: userSeq}, err
	}

	if answer.NoContext {
		metrics.CaptureAskOutcome("no_context")
	} else {
		metrics.CaptureAskOutcome("succeeded")
	}
	log.Info("question answered", "userSeq", answer.UserSeq, "assistantSeq", answer.AssistantSeq,
		"citations", len(answer.Citations))
	return answer, nil
}

// failTurn records a failed assistant turn on a context detached from the caller, so a cancelled
// ask still leaves the timeline complete.
func (s *service) failTurn(ctx context.Context, log *logger_i.Logger, sessionId string, answer Answer, cause error) (Answer, error) {
	metrics.CaptureAskOutcome("failed")
	log.Warn("ask failed", "userSeq", answer.UserSeq, "error", cause)

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.TurnPersistTimeout)
	defer cancel()

	seq, err := s.sessions.AppendTurn(persistCtx, sessionId, sessionModel.Turn{
		Role:   sessionModel.RoleAssistant,
		Status: sessionModel.StatusFailed,
		Error:  cause.Error(),
	})
	if err != nil {
		log.Error("could not record failed turn", "error", err)
		return Answer{UserSeq: answer.UserSeq}, errors.Join(cause, err)
	}
	return Answer{UserSeq: answer.UserSeq, AssistantSeq: seq}, cause
}

func toMessages(turns []sessionModel.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == sessionModel.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	return msgs
}

// ProcessRequest runs a queued chat job through Ask.
func (s *service) ProcessRequest(ctx context.Context, job jobModel.Job) jobModel.Job {
	log := s.logger.FromContext(ctx).With("jobId", job.Id)
	job = logOutput(job, jobModel.RAGCall, log)

	opts := DefaultAskOptions()
	opts.UseRAG = job.JobPayload.UseRAG
	opts.K = job.JobPayload.TopK

	answer, err := s.Ask(ctx, job.SessionId, job.JobPayload.Question, opts)
	if err != nil {
		return s.jobError(job, err, "ASK_FAILURE")
	}
	job.JobPayload.Citations = answer.Citations
	return returnOutput(job, answer.Text)
}

// IngestDocument runs a queued ingest job. The payload carries either a parsed document or an uploaded file.
func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	log := s.logger.FromContext(ctx).With("jobId", job.Id)
	job = logOutput(job, jobModel.IngestProcessing, log)

	doc, err := s.executeLoadStep(job)
	if err != nil {
		return s.jobError(job, err, "INGESTION_FAILURE")
	}

	report, err := s.Ingest(ctx, doc)
	if err != nil {
		return s.jobError(job, err, "INGESTION_FAILURE")
	}
	job.JobPayload.ChunksInserted = report.Inserted
	job.JobPayload.ChunksSkipped = report.Skipped
	job.Status = jobModel.JobStatusComplete
	job.CurrentStep = jobModel.Complete
	return job
}

func (s *service) executeLoadStep(job jobModel.Job) (commonModels.Document, error) {
	payload := job.JobPayload
	if payload.Document != nil {
		return *payload.Document, nil
	}
	if payload.IngestPath == "" {
		return commonModels.Document{}, ragErrors.Ingestion("ingest job", "job %s carries no document", job.Id)
	}
	// the upload and its sidecar are single use
	defer func() {
		sidecar := strings.TrimSuffix(payload.IngestPath, filepath.Ext(payload.IngestPath)) + ".json"
		for _, path := range []string{payload.IngestPath, sidecar} {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.logger.Error("Error removing uploaded file", "path", path, "error", err)
			}
		}
	}()
	return ingest.LoadNamed(payload.IngestPath, payload.IngestFileName)
}

func (s *service) Ingest(ctx context.Context, doc commonModels.Document) (ingest.Report, error) {
	report, err := s.pipeline.IngestDocument(ctx, doc)
	if err == nil {
		s.refreshIndexGauge(ctx)
	}
	return report, err
}

func (s *service) IngestBatch(ctx context.Context, docs []commonModels.Document) (ingest.BatchReport, error) {
	report, err := s.pipeline.IngestBatch(ctx, docs)
	s.refreshIndexGauge(ctx)
	return report, err
}

// IngestDirectory ingests every transcript in dir, a path relative to the transcripts root.
// Files that fail to load are reported next to the documents that fail to index.
func (s *service) IngestDirectory(ctx context.Context, dir string) (ingest.BatchReport, error) {
	if dir != "" && !filepath.IsLocal(dir) {
		return ingest.BatchReport{}, ragErrors.InvalidArgument("ingest directory", "%q must be a relative path inside the transcripts directory", dir)
	}
	path := filepath.Join(s.opts.TranscriptsDir, dir)
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return ingest.BatchReport{}, ragErrors.NotFound("ingest directory", "%q is not a transcripts directory", dir)
	}

	docs, loadFailures, err := ingest.LoadDir(path)
	if err != nil {
		return ingest.BatchReport{}, err
	}
	report, err := s.IngestBatch(ctx, docs)
	report.Failures = append(loadFailures, report.Failures...)
	if report.Documents == nil {
		report.Documents = []ingest.Report{}
	}
	s.logger.FromContext(ctx).Info("directory ingested", "dir", path, "documents", len(report.Documents), "failures", len(report.Failures))
	return report, err
}

func (s *service) Search(ctx context.Context, query string, k int, filter vectorDB.Filter) ([]commonModels.SearchResult, error) {
	return s.retriever.Search(ctx, query, k, filter)
}

func (s *service) DeleteDocument(ctx context.Context, documentId string) (int, error) {
	removed, err := s.index.DeleteDocument(ctx, s.opts.Collection, documentId)
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, ragErrors.NotFound("delete document", "document %s is not indexed", documentId)
	}
	s.refreshIndexGauge(ctx)
	return removed, nil
}

func (s *service) Stats(ctx context.Context) (commonModels.IndexStats, error) {
	stats, err := s.index.Stats(ctx, s.opts.Collection)
	if err != nil {
		return stats, err
	}
	metrics.SetIndexSize(stats.Collection, stats.Chunks)
	return stats, nil
}

func (s *service) ClearCollection(ctx context.Context) error {
	if err := s.index.ClearCollection(ctx, s.opts.Collection); err != nil {
		return err
	}
	metrics.SetIndexSize(s.opts.Collection, 0)
	return nil
}

func (s *service) Compact(ctx context.Context) error {
	return s.index.Compact(ctx, s.opts.Collection)
}

func (s *service) refreshIndexGauge(ctx context.Context) {
	if _, err := s.Stats(ctx); err != nil {
		s.logger.FromContext(ctx).Warn("could not refresh index size", "error", err)
	}
}
