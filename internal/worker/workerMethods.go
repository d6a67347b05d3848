package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/TranscriptRAG/internal/config"
	jobmodel "github.com/akolanti/TranscriptRAG/internal/domain/jobModel"
	"github.com/akolanti/TranscriptRAG/internal/metrics"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		// Record total time at the end
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, config.JobTimeout)
	defer cancel()
	log := logger.FromContext(ctx).With("jobId", job.Id)
	log.Debug("Processing job", "jobType", job.JobType)

	saveJobState(ctx, log, job, jobmodel.JobStatusRunning)

	if job.JobType == jobmodel.JobTypeIngest {
		job.CurrentStep = jobmodel.IngestProcessing
		job = ingestDocument(ctx, job)
	} else {
		job.CurrentStep = jobmodel.SessionCall
		job = processQuery(ctx, job)
	}

	job.EndTime = time.Now()
	if job.Status == jobmodel.JobStatusError {
		log.Warn("Job failed", "code", job.Error.Code, "error", job.Error.Message)
		saveJobState(ctx, log, job, jobmodel.JobStatusError)
		return
	}
	saveJobState(ctx, log, job, jobmodel.JobStatusComplete)
}

// removeWorker expects the caller to have already taken the worker off currentWorkerCount.
func removeWorker(reason string) {
	workerWaitGroup.Done()
	logger.Info("Removed worker ", "reason", reason, "workerCount", atomic.LoadInt64(&currentWorkerCount))
	metrics.DecrementActiveWorkerCount()
}

func ingestDocument(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	return _ragService.IngestDocument(ctx, job)
}

func processQuery(ctx context.Context, job jobmodel.Job) jobmodel.Job {
	return _ragService.ProcessRequest(ctx, job)
}

// the job store outlives the job context, so a timed-out job still gets its final state written
func saveJobState(ctx context.Context, log *logger_i.Logger, job jobmodel.Job, jobStatus jobmodel.JobStatus) {
	job.Status = jobStatus
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.TurnPersistTimeout)
	defer cancel()
	if err := _jobService.JobStore.SaveJob(saveCtx, job); err != nil {
		log.Error("Failed to update job status", "err", err)
	}
}
