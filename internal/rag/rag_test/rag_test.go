package rag_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/data/store"
	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/jobModel"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/domain/sessionModel"
	"github.com/akolanti/TranscriptRAG/internal/rag"
	"github.com/akolanti/TranscriptRAG/internal/rag/chunker"
	"github.com/akolanti/TranscriptRAG/internal/rag/embedding"
	"github.com/akolanti/TranscriptRAG/internal/rag/llm"
	"github.com/akolanti/TranscriptRAG/internal/rag/retry"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB/localIndex"
	"github.com/akolanti/TranscriptRAG/internal/session"
)

const episode = "Welcome to the harbour podcast. Today we talk about tides and the moon. " +
	"The moon pulls the oceans and creates two high tides every day. " +
	"Our guest Ana explains how sailors read tide tables before leaving port. " +
	"She also describes the spring tides that follow a full moon."

type fixture struct {
	service  rag.Service
	sessions *session.Manager
}

func newFixture(t *testing.T, e *MockEmbedder, l *MockLLM) fixture {
	t.Helper()
	return newFixtureWithStore(t, e, l, nil)
}

// newFixtureWithStore lets a test wrap the session store, e.g. to inject read failures.
func newFixtureWithStore(t *testing.T, e *MockEmbedder, l *MockLLM, wrap func(sessionModel.Store) sessionModel.Store) fixture {
	t.Helper()
	return buildFixture(t, e, l, wrap, rag.DefaultOptions())
}

func buildFixture(t *testing.T, e *MockEmbedder, l *MockLLM, wrap func(sessionModel.Store) sessionModel.Store, opts rag.Options) fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := localIndex.Open(ctx, filepath.Join(dir, "index.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	sessionStore, err := store.OpenSQLiteSessionStore(ctx, filepath.Join(dir, "sessions.db"))
	if err != nil {
		t.Fatalf("open session store: %v", err)
	}
	t.Cleanup(func() { _ = sessionStore.Close() })

	c, err := chunker.New(chunker.WithWindow(20), chunker.WithOverlap(4), chunker.WithLookahead(4))
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	var backing sessionModel.Store = sessionStore
	if wrap != nil {
		backing = wrap(sessionStore)
	}
	manager := session.NewManager(backing)
	s := rag.NewService(idx,
		llm.WithRetry(l, retry.NoRetry()),
		embedding.WithRetry(e, retry.NoRetry()),
		c, manager, opts)
	return fixture{service: s, sessions: manager}
}

func (f fixture) ingestEpisode(t *testing.T) {
	t.Helper()
	_, err := f.service.Ingest(context.Background(), commonModels.Document{
		Id: "ep1", Title: "Harbour 1", Text: episode, Duration: 10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
}

func (f fixture) newSession(t *testing.T) string {
	t.Helper()
	s, err := f.sessions.CreateSession(context.Background(), "test")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s.Id
}

func (f fixture) turns(t *testing.T, sessionId string) []sessionModel.Turn {
	t.Helper()
	_, turns, err := f.sessions.GetSession(context.Background(), sessionId)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return turns
}

func TestAsk_Scenarios(t *testing.T) {
	tests := []struct {
		name          string
		setupMocks    func(e *MockEmbedder, l *MockLLM)
		opts          rag.AskOptions
		wantErr       error
		wantAnswer    string
		wantCitations bool
		wantNoContext bool
		wantLastTurn  sessionModel.TurnStatus
	}{
		{
			name: "Success_Full_Flow",
			setupMocks: func(e *MockEmbedder, l *MockLLM) {
				l.OnGenerate = func(ctx context.Context, p llm.Prompt) (string, error) {
					if !strings.Contains(p.Context, "[Source 1: Harbour 1 @") {
						return "", fmt.Errorf("context missing source marker: %q", p.Context)
					}
					return "Two high tides a day [Source 1].", nil
				}
			},
			opts:          rag.DefaultAskOptions(),
			wantAnswer:    "Two high tides a day [Source 1].",
			wantCitations: true,
			wantLastTurn:  sessionModel.StatusSucceeded,
		},
		{
			name: "Success_No_Relevant_Context",
			setupMocks: func(e *MockEmbedder, l *MockLLM) {
				e.OnGetEmbedding = func(ctx context.Context, text string) ([]float32, error) {
					v := make([]float32, mockDimension)
					for i := range v {
						v[i] = -1
					}
					return v, nil
				}
				l.OnGenerate = func(ctx context.Context, p llm.Prompt) (string, error) {
					if p.Context != config.NoContextMarker {
						return "", fmt.Errorf("expected the no-context marker, got %q", p.Context)
					}
					return "I could not find that in the transcripts.", nil
				}
			},
			opts:          rag.DefaultAskOptions(),
			wantAnswer:    "I could not find that in the transcripts.",
			wantNoContext: true,
			wantLastTurn:  sessionModel.StatusSucceeded,
		},
		{
			name: "Success_Without_RAG",
			setupMocks: func(e *MockEmbedder, l *MockLLM) {
				e.OnGetEmbedding = func(ctx context.Context, text string) ([]float32, error) {
					return nil, errors.New("embedder must not be called")
				}
				l.OnGenerate = func(ctx context.Context, p llm.Prompt) (string, error) {
					if p.Context != "" {
						return "", errors.New("unexpected context")
					}
					return "plain answer", nil
				}
			},
			opts:         rag.AskOptions{UseRAG: false},
			wantAnswer:   "plain answer",
			wantLastTurn: sessionModel.StatusSucceeded,
		},
		{
			name: "Failure_Embedding",
			setupMocks: func(e *MockEmbedder, l *MockLLM) {
				e.OnGetEmbedding = func(ctx context.Context, text string) ([]float32, error) {
					return nil, errors.New("api limit")
				}
			},
			opts:         rag.DefaultAskOptions(),
			wantErr:      ragErrors.ErrEmbedding,
			wantLastTurn: sessionModel.StatusFailed,
		},
		{
			name: "Failure_LLM_Generation",
			setupMocks: func(e *MockEmbedder, l *MockLLM) {
				l.OnGenerate = func(ctx context.Context, p llm.Prompt) (string, error) {
					return "", errors.New("provider down")
				}
			},
			opts:         rag.DefaultAskOptions(),
			wantErr:      ragErrors.ErrCompletion,
			wantLastTurn: sessionModel.StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mEmbed := &MockEmbedder{}
			mLLM := &MockLLM{}
			f := newFixture(t, mEmbed, mLLM)
			f.ingestEpisode(t)
			tt.setupMocks(mEmbed, mLLM)
			sessionId := f.newSession(t)

			ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
			answer, err := f.service.Ask(ctx, sessionId, "How many high tides are there each day?", tt.opts)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error got %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if answer.Text != tt.wantAnswer {
				t.Errorf("answer got %q, want %q", answer.Text, tt.wantAnswer)
			}
			if (len(answer.Citations) > 0) != tt.wantCitations {
				t.Errorf("citations got %d, want present=%v", len(answer.Citations), tt.wantCitations)
			}
			if answer.NoContext != tt.wantNoContext {
				t.Errorf("no context got %v, want %v", answer.NoContext, tt.wantNoContext)
			}

			turns := f.turns(t, sessionId)
			if len(turns) != 2 {
				t.Fatalf("expected user and assistant turns, got %d", len(turns))
			}
			if turns[0].Role != sessionModel.RoleUser || turns[0].Status != sessionModel.StatusRecorded {
				t.Errorf("first turn should be the recorded question: %+v", turns[0])
			}
			if turns[1].Status != tt.wantLastTurn {
				t.Errorf("assistant turn status got %s, want %s", turns[1].Status, tt.wantLastTurn)
			}
			if tt.wantLastTurn == sessionModel.StatusFailed && turns[1].Error == "" {
				t.Error("failed turn should carry a reason")
			}
			if answer.UserSeq != 1 || answer.AssistantSeq != 2 {
				t.Errorf("seqs got %d/%d, want 1/2", answer.UserSeq, answer.AssistantSeq)
			}
		})
	}
}

func TestAsk_CitationsArePersisted(t *testing.T) {
	f := newFixture(t, &MockEmbedder{}, &MockLLM{})
	f.ingestEpisode(t)
	sessionId := f.newSession(t)

	answer, err := f.service.Ask(context.Background(), sessionId, "What does Ana explain about tide tables?", rag.DefaultAskOptions())
	if err != nil {
		t.Fatal(err)
	}
	turns := f.turns(t, sessionId)
	if len(turns[1].Citations) != len(answer.Citations) || turns[1].Citations[0].DocumentId != "ep1" {
		t.Errorf("stored citations %+v do not match answer %+v", turns[1].Citations, answer.Citations)
	}
}

func TestAsk_HistoryFeedsThePrompt(t *testing.T) {
	var seen [][]llm.Message
	mLLM := &MockLLM{OnGenerate: func(ctx context.Context, p llm.Prompt) (string, error) {
		seen = append(seen, p.History)
		return "answer to " + p.Question, nil
	}}
	f := newFixture(t, &MockEmbedder{}, mLLM)
	sessionId := f.newSession(t)
	ctx := context.Background()

	if _, err := f.service.Ask(ctx, sessionId, "first", rag.AskOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.Ask(ctx, sessionId, "second", rag.AskOptions{}); err != nil {
		t.Fatal(err)
	}

	if len(seen[0]) != 0 {
		t.Errorf("first ask should have no history, got %+v", seen[0])
	}
	want := []llm.Message{{Role: llm.RoleUser, Content: "first"}, {Role: llm.RoleAssistant, Content: "answer to first"}}
	if len(seen[1]) != 2 || seen[1][0] != want[0] || seen[1][1] != want[1] {
		t.Errorf("second ask history got %+v, want %+v", seen[1], want)
	}
}

func TestAsk_CancelledAfterUserTurnRecordsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mLLM := &MockLLM{OnGenerate: func(c context.Context, p llm.Prompt) (string, error) {
		cancel()
		<-c.Done()
		return "", c.Err()
	}}
	f := newFixture(t, &MockEmbedder{}, mLLM)
	sessionId := f.newSession(t)

	_, err := f.service.Ask(ctx, sessionId, "will this finish?", rag.AskOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	turns := f.turns(t, sessionId)
	if len(turns) != 2 || turns[1].Status != sessionModel.StatusFailed {
		t.Fatalf("expected recorded question and failed answer, got %+v", turns)
	}
}

// failingReads fails the next Get calls, while appends keep working.
type failingReads struct {
	sessionModel.Store
	failures atomic.Int32
}

func (s *failingReads) Get(ctx context.Context, sessionId string) (sessionModel.Session, []sessionModel.Turn, error) {
	if s.failures.Add(-1) >= 0 {
		return sessionModel.Session{}, nil, errors.New("transient read failure")
	}
	return s.Store.Get(ctx, sessionId)
}

func TestAsk_HistoryReadFailureStillRecordsQuestion(t *testing.T) {
	var reads *failingReads
	called := false
	mLLM := &MockLLM{OnGenerate: func(ctx context.Context, p llm.Prompt) (string, error) {
		called = true
		return "unreachable", nil
	}}
	f := newFixtureWithStore(t, &MockEmbedder{}, mLLM, func(st sessionModel.Store) sessionModel.Store {
		reads = &failingReads{Store: st}
		return reads
	})
	sessionId := f.newSession(t)

	reads.failures.Store(1)
	answer, err := f.service.Ask(context.Background(), sessionId, "what did Ana say?", rag.AskOptions{})
	if err == nil || !strings.Contains(err.Error(), "transient read failure") {
		t.Fatalf("expected the read failure, got %v", err)
	}
	if called {
		t.Error("completion must not run without history")
	}

	turns := f.turns(t, sessionId)
	if len(turns) != 2 {
		t.Fatalf("expected question and failed answer, got %+v", turns)
	}
	if turns[0].Role != sessionModel.RoleUser || turns[0].Content != "what did Ana say?" || turns[0].Seq != answer.UserSeq {
		t.Errorf("question not recorded first: %+v", turns[0])
	}
	if turns[1].Status != sessionModel.StatusFailed || turns[1].Seq != answer.AssistantSeq {
		t.Errorf("expected failed assistant turn, got %+v", turns[1])
	}
}

func TestAsk_FailedAnswerDropsQuestionFromHistory(t *testing.T) {
	var seen [][]llm.Message
	fail := true
	mLLM := &MockLLM{OnGenerate: func(ctx context.Context, p llm.Prompt) (string, error) {
		seen = append(seen, p.History)
		if fail {
			return "", ragErrors.New(ragErrors.KindCompletion, "generate", "provider down", nil)
		}
		return "answer to " + p.Question, nil
	}}
	f := newFixture(t, &MockEmbedder{}, mLLM)
	sessionId := f.newSession(t)
	ctx := context.Background()

	if _, err := f.service.Ask(ctx, sessionId, "first question", rag.AskOptions{}); !errors.Is(err, ragErrors.ErrCompletion) {
		t.Fatalf("expected completion error, got %v", err)
	}
	fail = false
	if _, err := f.service.Ask(ctx, sessionId, "second question", rag.AskOptions{}); err != nil {
		t.Fatal(err)
	}
	if len(seen[1]) != 0 {
		t.Errorf("unanswered question leaked into history: %+v", seen[1])
	}
}

func TestAsk_InputErrors(t *testing.T) {
	f := newFixture(t, &MockEmbedder{}, &MockLLM{})
	ctx := context.Background()

	if _, err := f.service.Ask(ctx, "no-such-session", "hello", rag.DefaultAskOptions()); !errors.Is(err, sessionModel.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	sessionId := f.newSession(t)
	if _, err := f.service.Ask(ctx, sessionId, "   ", rag.DefaultAskOptions()); !errors.Is(err, ragErrors.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
	if turns := f.turns(t, sessionId); len(turns) != 0 {
		t.Errorf("rejected asks must not write turns, got %d", len(turns))
	}
}

func TestAsk_SerialisesTurnsWithinASession(t *testing.T) {
	var inFlight, maxInFlight int32
	mLLM := &MockLLM{OnGenerate: func(ctx context.Context, p llm.Prompt) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxInFlight)
			if n <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return "ok", nil
	}}
	f := newFixture(t, &MockEmbedder{}, mLLM)
	sessionId := f.newSession(t)

	const asks = 8
	var wg sync.WaitGroup
	for i := 0; i < asks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			answer, err := f.service.Ask(context.Background(), sessionId, fmt.Sprintf("question %d", i), rag.AskOptions{})
			if err != nil {
				t.Errorf("ask %d: %v", i, err)
				return
			}
			if answer.AssistantSeq != answer.UserSeq+1 {
				t.Errorf("turns of ask %d interleaved: %d/%d", i, answer.UserSeq, answer.AssistantSeq)
			}
		}(i)
	}
	wg.Wait()

	if maxInFlight != 1 {
		t.Errorf("completions for one session overlapped: max in flight %d", maxInFlight)
	}
	if turns := f.turns(t, sessionId); len(turns) != 2*asks {
		t.Errorf("expected %d turns, got %d", 2*asks, len(turns))
	}
}

func TestAsk_SessionsRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	var started int32
	mLLM := &MockLLM{OnGenerate: func(ctx context.Context, p llm.Prompt) (string, error) {
		if atomic.AddInt32(&started, 1) == 2 {
			close(release)
		}
		select {
		case <-release:
			return "ok", nil
		case <-time.After(5 * time.Second):
			return "", errors.New("sessions were serialised")
		}
	}}
	f := newFixture(t, &MockEmbedder{}, mLLM)
	a, b := f.newSession(t), f.newSession(t)

	var wg sync.WaitGroup
	for _, id := range []string{a, b} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := f.service.Ask(context.Background(), id, "hi", rag.AskOptions{}); err != nil {
				t.Errorf("ask on %s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()
}

func TestProcessRequest_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		onGenerate     func(ctx context.Context, p llm.Prompt) (string, error)
		expectedStatus jobModel.JobStatus
		expectedCode   int
	}{
		{
			name:           "Success",
			expectedStatus: jobModel.JobStatusComplete,
		},
		{
			name: "Failure_LLM_Generation",
			onGenerate: func(ctx context.Context, p llm.Prompt) (string, error) {
				return "", errors.New("provider down")
			},
			expectedStatus: jobModel.JobStatusError,
			expectedCode:   http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &MockEmbedder{}, &MockLLM{OnGenerate: tt.onGenerate})
			f.ingestEpisode(t)
			job := jobModel.Job{
				Id:         "test-job",
				SessionId:  f.newSession(t),
				JobPayload: jobModel.JobPayload{Question: "When are spring tides?", UseRAG: true},
			}

			result := f.service.ProcessRequest(context.Background(), job)

			if result.Status != tt.expectedStatus {
				t.Errorf("Status got %v, want %v", result.Status, tt.expectedStatus)
			}
			if tt.expectedCode != 0 && result.Error.Code != tt.expectedCode {
				t.Errorf("Error Code got %d, want %d", result.Error.Code, tt.expectedCode)
			}
			if tt.expectedCode == 0 && result.JobPayload.Answer == "" {
				t.Error("expected an answer on the job")
			}
		})
	}

	t.Run("Unknown_Session", func(t *testing.T) {
		f := newFixture(t, &MockEmbedder{}, &MockLLM{})
		result := f.service.ProcessRequest(context.Background(), jobModel.Job{
			Id: "j", SessionId: "ghost", JobPayload: jobModel.JobPayload{Question: "q"},
		})
		if result.Error.Code != http.StatusNotFound || result.Error.Retry {
			t.Errorf("expected a non-retryable 404, got %+v", result.Error)
		}
	})
}

func TestIngestDocument_Scenarios(t *testing.T) {
	dir := t.TempDir()
	uploaded := filepath.Join(dir, "upload-123")
	if err := os.WriteFile(uploaded, []byte(episode), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name           string
		payload        jobModel.JobPayload
		onBatch        func(ctx context.Context, texts []string) ([][]float32, error)
		expectedStatus jobModel.JobStatus
	}{
		{
			name: "Ingestion_From_Document",
			payload: jobModel.JobPayload{Document: &commonModels.Document{
				Id: "ep2", Title: "Harbour 2", Text: episode,
			}},
			expectedStatus: jobModel.JobStatusComplete,
		},
		{
			name:           "Ingestion_From_Upload",
			payload:        jobModel.JobPayload{IngestFileName: "harbour-3.txt", IngestPath: uploaded},
			expectedStatus: jobModel.JobStatusComplete,
		},
		{
			name:           "Failure_Empty_Payload",
			payload:        jobModel.JobPayload{},
			expectedStatus: jobModel.JobStatusError,
		},
		{
			name: "Failure_Embedding",
			payload: jobModel.JobPayload{Document: &commonModels.Document{
				Id: "ep4", Text: episode,
			}},
			onBatch: func(ctx context.Context, texts []string) ([][]float32, error) {
				return nil, errors.New("quota exceeded")
			},
			expectedStatus: jobModel.JobStatusError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &MockEmbedder{OnBatchEmbedding: tt.onBatch}, &MockLLM{})
			ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "ingest-trace")

			result := f.service.IngestDocument(ctx, jobModel.Job{Id: "ingest-job", JobPayload: tt.payload})

			if result.Status != tt.expectedStatus {
				t.Errorf("Status got %v, want %v (%+v)", result.Status, tt.expectedStatus, result.Error)
			}
			if tt.expectedStatus == jobModel.JobStatusComplete && result.JobPayload.ChunksInserted == 0 {
				t.Error("expected chunks to be inserted")
			}
		})
	}

	if _, err := os.Stat(uploaded); !os.IsNotExist(err) {
		t.Error("uploaded file should be removed after ingestion")
	}
}

func TestIndexOperations(t *testing.T) {
	f := newFixture(t, &MockEmbedder{}, &MockLLM{})
	f.ingestEpisode(t)
	ctx := context.Background()

	stats, err := f.service.Stats(ctx)
	if err != nil || stats.Documents != 1 || stats.Chunks == 0 || stats.Dimension != mockDimension {
		t.Fatalf("unexpected stats %+v (%v)", stats, err)
	}

	results, err := f.service.Search(ctx, "spring tides full moon", 3, vectorFilterFor("ep1"))
	if err != nil || len(results) == 0 {
		t.Fatalf("search got %d results (%v)", len(results), err)
	}

	removed, err := f.service.DeleteDocument(ctx, "ep1")
	if err != nil || removed != stats.Chunks {
		t.Errorf("delete removed %d of %d (%v)", removed, stats.Chunks, err)
	}
	if _, err := f.service.DeleteDocument(ctx, "ep1"); !errors.Is(err, ragErrors.ErrNotFound) {
		t.Errorf("second delete should be not found, got %v", err)
	}

	f.ingestEpisode(t)
	if err := f.service.ClearCollection(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.service.Compact(ctx); err != nil {
		t.Fatal(err)
	}
	stats, _ = f.service.Stats(ctx)
	if stats.Chunks != 0 {
		t.Errorf("expected empty collection after clear, got %d chunks", stats.Chunks)
	}
}

func TestIngestDirectory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	season := filepath.Join(root, "season-2")
	if err := os.Mkdir(season, 0o700); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"harbour.txt":  episode,
		"harbour.json": `{"document_id":"ep1","title":"Harbour 1"}`,
		"silence.txt":  "",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(season, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	opts := rag.DefaultOptions()
	opts.TranscriptsDir = root
	f := buildFixture(t, &MockEmbedder{}, &MockLLM{}, nil, opts)

	report, err := f.service.IngestDirectory(ctx, "season-2")
	if err != nil {
		t.Fatalf("IngestDirectory failed: %v", err)
	}
	if len(report.Documents) != 1 || report.Documents[0].DocumentId != "ep1" || report.Inserted == 0 {
		t.Fatalf("transcript not ingested: %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].DocumentId != "silence.txt" {
		t.Errorf("expected the empty transcript to be reported, got %+v", report.Failures)
	}
	stats, err := f.service.Stats(ctx)
	if err != nil || stats.Documents != 1 {
		t.Errorf("unexpected stats %+v (%v)", stats, err)
	}

	// the root itself has no transcripts
	report, err = f.service.IngestDirectory(ctx, "")
	if err != nil || len(report.Documents) != 0 || len(report.Failures) != 0 {
		t.Errorf("empty root: %+v (%v)", report, err)
	}

	if _, err := f.service.IngestDirectory(ctx, "../outside"); !errors.Is(err, ragErrors.ErrInvalidArgument) {
		t.Errorf("escaping path should be rejected, got %v", err)
	}
	if _, err := f.service.IngestDirectory(ctx, "season-9"); !errors.Is(err, ragErrors.ErrNotFound) {
		t.Errorf("missing folder should be not found, got %v", err)
	}
}
