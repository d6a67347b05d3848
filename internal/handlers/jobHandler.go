package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/domain/jobModel"
	"github.com/akolanti/TranscriptRAG/internal/job"
	"github.com/akolanti/TranscriptRAG/internal/metrics"
	"github.com/akolanti/TranscriptRAG/internal/rag"
	"github.com/akolanti/TranscriptRAG/internal/session"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	logJH           = logger_i.NewLogger("JobHandler")
)

// JobHandler holds everything the HTTP surface talks to: the job queue for async work,
// the rag core for synchronous calls and the session log.
type JobHandler struct {
	service    *job.Service
	ragService rag.Service
	sessions   *session.Manager
}

func InitJobHandler(jobService *job.Service, ragService rag.Service, sessions *session.Manager) {
	handlerInstance = &JobHandler{service: jobService, ragService: ragService, sessions: sessions}
	logJH.Info("Starting job handler")
}

// CreateNewJob records the job as queued and hands it to the worker pool.
func CreateNewJob(ctx context.Context, newJob newJobData) error {
	log := logJH.FromContext(ctx).With("jobId", newJob.id)
	log.Info("To create new job", "ingest", newJob.isDocumentIngest)
	return handlerInstance.pushToJobChannel(ctx, newJob)
}

func GetJobStatus(ctx context.Context, id string) (result jobModel.Job, isFound bool) {
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctx, id)
	}
	return result, false
}

// private methods
func (h *JobHandler) pushToJobChannel(ctx context.Context, newJob newJobData) error {

	_job := jobModel.Job{}
	_job.Id = newJob.id
	_job.CreatedTime = time.Now()
	_job.TraceId = newJob.traceId
	_job.Status = jobModel.JobStatusQueued

	if newJob.isDocumentIngest {
		_job.CurrentStep = jobModel.IngestInit
		_job.JobType = jobModel.JobTypeIngest
		_job.JobPayload.IngestFileName = newJob.documentName
		_job.JobPayload.IngestPath = newJob.documentSource
	} else {
		_job.JobType = jobModel.JobTypeQuery
		_job.SessionId = newJob.sessionId
		_job.JobPayload.Question = newJob.message
		_job.JobPayload.UseRAG = newJob.useRAG
		_job.JobPayload.TopK = newJob.topK
		_job.CurrentStep = jobModel.UserQueryInit
	}

	// visible to /status before a worker picks it up
	if err := h.service.JobStore.SaveJob(ctx, _job); err != nil {
		logJH.FromContext(ctx).Warn("Could not record queued job", "jobId", _job.Id, "error", err)
	}

	//this is a blocking send to prevent the system from being overwhelmed
	select {
	case h.service.JobChannel <- _job:
	case <-ctx.Done():
		return ctx.Err()
	}
	metrics.IncrementJobsInQueue()
	logJH.FromContext(ctx).Info("Created new job", "jobId", _job.Id)

	//a new worker every RequestsPerNewWorkerCount requests, and one per ingest since those
	//run several embedding batches; idle workers retire on their own
	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1)
	if accurateCount%config.RequestsPerNewWorkerCount == 0 || _job.JobType == jobModel.JobTypeIngest {
		metrics.StartDispatcherSignalCount()
		logJH.Debug("Worker count ", "requests", accurateCount)
		select {
		case h.service.DispatcherChannel <- true:
		default:
			// a signal is already pending
		}
	}
	return nil
}
