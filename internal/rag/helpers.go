package rag

import (
	"context"
	"time"

	"github.com/akolanti/TranscriptRAG/internal/domain/jobModel"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/metrics"
	"github.com/akolanti/TranscriptRAG/internal/rag/llm"
	"github.com/akolanti/TranscriptRAG/internal/rag/retriever"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

func returnOutput(job jobModel.Job, ans string) jobModel.Job {
	job.JobPayload.Answer = ans
	job.Status = jobModel.JobStatusComplete
	job.CurrentStep = jobModel.Complete
	return job
}

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("processing job", "currentStep", job.CurrentStep)
	return job
}

func (s *service) jobError(job jobModel.Job, err error, message string) jobModel.Job {
	s.logger.Error(message, "jobId", job.Id, "error", err)

	code := ragErrors.HTTPStatus(err)
	job.Error = jobModel.JobError{
		Code:    code,
		Message: err.Error(),
		// client errors will fail the same way again
		Retry: code >= 500,
	}
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	return job
}

func (s *service) executeRetrievalStep(ctx context.Context, log *logger_i.Logger, question string, opts AskOptions) (retriever.Context, error) {
	log.Debug("retrieving context", "k", opts.K)
	return s.retriever.Retrieve(ctx, retriever.Query{
		Text:   question,
		K:      opts.K,
		Filter: opts.Filter,
	})
}

func (s *service) executeLLMStep(ctx context.Context, log *logger_i.Logger, prompt llm.Prompt) (string, error) {
	log.Debug("calling completion provider", "historyTurns", len(prompt.History))

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	return s.llmProvider.Generate(ctx, prompt)
}
