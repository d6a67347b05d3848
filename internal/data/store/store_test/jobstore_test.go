package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/data/redisStore"
	"github.com/akolanti/TranscriptRAG/internal/data/store"
	"github.com/akolanti/TranscriptRAG/internal/domain/jobModel"
)

func jobStores(t *testing.T) map[string]jobModel.JobStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]jobModel.JobStore{
		"redis":    store.NewRedisJobStore(redisStore.NewTestStore(client)),
		"inMemory": store.InitInMemoryJobStore(),
	}
}

func TestJobStore_Lifecycle(t *testing.T) {
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
	jobID := "job_abc_123"

	testJob := jobModel.Job{
		Id:      jobID,
		Status:  jobModel.JobStatusRunning,
		JobType: jobModel.JobTypeQuery,
		JobPayload: jobModel.JobPayload{
			Question: "What did the guest say about tides?",
			UseRAG:   true,
		},
	}

	for name, jobStore := range jobStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := jobStore.SaveJob(ctx, testJob); err != nil {
				t.Fatalf("SaveJob failed: %v", err)
			}

			retrievedJob, found := jobStore.GetJob(ctx, jobID)
			if !found {
				t.Fatal("Job was saved but not found")
			}
			if retrievedJob.JobPayload.Question != testJob.JobPayload.Question {
				t.Errorf("Data mismatch! Got %s, want %s",
					retrievedJob.JobPayload.Question, testJob.JobPayload.Question)
			}

			if _, found := jobStore.GetJob(ctx, "ghost-id"); found {
				t.Error("Expected found=false for non-existent job")
			}

			jobStore.DeleteJob(ctx, jobID)
			if _, found := jobStore.GetJob(ctx, jobID); found {
				t.Error("Job still present after DeleteJob")
			}
		})
	}
}

func TestJobStore_Race(t *testing.T) {
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "race-trace")
	job := jobModel.Job{Id: "race-job"}

	for name, jobStore := range jobStores(t) {
		t.Run(name, func(t *testing.T) {
			const workers = 50
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = jobStore.SaveJob(ctx, job)
					_, _ = jobStore.GetJob(ctx, "race-job")
				}()
			}
			wg.Wait()

			if _, found := jobStore.GetJob(ctx, "race-job"); !found {
				t.Error("expected race-job to be stored")
			}
		})
	}
}
