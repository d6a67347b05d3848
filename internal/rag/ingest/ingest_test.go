package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/rag/chunker"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB/localIndex"
)

// --- Mocks ---

type mockEmbedder struct {
	mu        sync.Mutex
	calls     int
	batchFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	return fakeVector(query), nil
}

func (m *mockEmbedder) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.batchFunc != nil {
		return m.batchFunc(ctx, texts)
	}
	return fakeVectors(texts), nil
}

func fakeVector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum64()
	v := make([]float32, 4)
	for i := range v {
		v[i] = float32(sum>>(16*i)&0xffff) + 1
	}
	return v
}

func fakeVectors(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = fakeVector(t)
	}
	return out
}

func transcript(sentences int, word string) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&b, "The %s number %d was discussed at some length by both hosts today. ", word, i)
	}
	return b.String()
}

func newPipeline(t *testing.T, emb *mockEmbedder, opts Options) (*Pipeline, *localIndex.Index) {
	t.Helper()
	idx, err := localIndex.Open(context.Background(), filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	c, err := chunker.New(chunker.WithWindow(40), chunker.WithOverlap(8), chunker.WithLookahead(6))
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	return NewPipeline(c, emb, idx, opts), idx
}

// --- Loader ---

func TestGetDocType(t *testing.T) {
	tests := []struct {
		path     string
		expected commonModels.DocType
	}{
		{"test.pdf", commonModels.PDF},
		{"DOC.DOCX", commonModels.DOCX},
		{"notes.txt", commonModels.TXT},
		{"old.rtf", commonModels.RTF},
		{"draft.odt", commonModels.ODT},
		{"image.png", commonModels.ERR},
	}

	for _, tt := range tests {
		if got := getDocType(tt.path); got != tt.expected {
			t.Errorf("getDocType(%s) = %v; want %v", tt.path, got, tt.expected)
		}
	}
}

func TestLoadFileWithSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ep42.txt")
	if err := os.WriteFile(path, []byte("Welcome back to the show."), 0o600); err != nil {
		t.Fatal(err)
	}
	sidecar := `{"document_id":"feed-ep-42","title":"Episode 42","published":"2024-02-01","duration":1800.5,"description":"Tides"}`
	if err := os.WriteFile(filepath.Join(dir, "ep42.json"), []byte(sidecar), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if doc.Id != "feed-ep-42" || doc.Title != "Episode 42" {
		t.Errorf("sidecar identity not applied: %+v", doc)
	}
	if doc.Duration != 1800*time.Second+500*time.Millisecond {
		t.Errorf("duration = %v", doc.Duration)
	}
	if !doc.Published.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("published = %v", doc.Published)
	}
	if !strings.Contains(doc.Text, "Welcome back") {
		t.Errorf("text = %q", doc.Text)
	}
	if doc.ContentType != commonModels.TXT {
		t.Errorf("content type = %v", doc.ContentType)
	}
}

func TestLoadFileWithoutSidecar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interview.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}
	doc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if doc.Id != "interview" || doc.Title != "interview" || doc.Source != "interview.txt" {
		t.Errorf("unexpected defaults: %+v", doc)
	}
	if doc.Duration != 0 {
		t.Errorf("expected unknown duration, got %v", doc.Duration)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadNamed(filepath.Join(dir, "x"), "image.png"); !errors.Is(err, ragErrors.ErrIngestion) {
		t.Errorf("expected ingestion error for unsupported type, got %v", err)
	}

	path := filepath.Join(dir, "ep.txt")
	_ = os.WriteFile(path, []byte("text"), 0o600)
	_ = os.WriteFile(filepath.Join(dir, "ep.json"), []byte("{not json"), 0o600)
	if _, err := LoadFile(path); !errors.Is(err, ragErrors.ErrIngestion) {
		t.Errorf("expected ingestion error for malformed sidecar, got %v", err)
	}
}

func TestLoadDirSkipsUnreadableTranscripts(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("b-good.txt", transcript(10, "tide"))
	write("b-good.json", `{"document_id":"feed-ep-7","title":"Episode 7"}`)
	write("a-empty.txt", "")
	write("c-malformed.txt", "words we never get to")
	write("c-malformed.json", "{not json")
	write("cover.png", "not a transcript")
	if err := os.Mkdir(filepath.Join(dir, "nested.txt"), 0o700); err != nil {
		t.Fatal(err)
	}

	docs, failures, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Id != "feed-ep-7" || docs[0].Title != "Episode 7" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
	if len(failures) != 2 || failures[0].DocumentId != "a-empty.txt" || failures[1].DocumentId != "c-malformed.txt" {
		t.Fatalf("unexpected failures: %+v", failures)
	}

	p, idx := newPipeline(t, &mockEmbedder{}, DefaultOptions())
	batch, err := p.IngestBatch(context.Background(), docs)
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	if len(batch.Documents) != 1 || batch.Inserted == 0 {
		t.Fatalf("good transcript not ingested: %+v", batch)
	}
	ids, err := idx.DocumentChunkIDs(context.Background(), DefaultOptions().Collection, "feed-ep-7")
	if err != nil || len(ids) != batch.Inserted {
		t.Errorf("stored chunks = %d (%v), want %d", len(ids), err, batch.Inserted)
	}
}

func TestLoadDirMissingDirectory(t *testing.T) {
	_, _, err := LoadDir(filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, ragErrors.ErrIngestion) {
		t.Errorf("expected ingestion error, got %v", err)
	}
}

// --- Pipeline ---

func TestIngestDocumentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p, idx := newPipeline(t, &mockEmbedder{}, DefaultOptions())
	doc := commonModels.Document{Id: "ep1", Title: "Episode 1", Text: transcript(30, "topic"), Duration: time.Hour}

	first, err := p.IngestDocument(ctx, doc)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if first.Chunks < 2 || first.Inserted != first.Chunks {
		t.Fatalf("unexpected first report: %+v", first)
	}

	second, err := p.IngestDocument(ctx, doc)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if !second.Unchanged || second.Inserted != 0 || second.Chunks != first.Chunks {
		t.Errorf("re-ingest should be a no-op: %+v", second)
	}

	stats, err := idx.Stats(ctx, DefaultOptions().Collection)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Chunks != first.Chunks || stats.Documents != 1 {
		t.Errorf("stats = %+v, want %d chunks of 1 document", stats, first.Chunks)
	}
}

func TestIngestChangedDocumentReplacesChunks(t *testing.T) {
	ctx := context.Background()
	p, idx := newPipeline(t, &mockEmbedder{}, DefaultOptions())
	coll := DefaultOptions().Collection

	if _, err := p.IngestDocument(ctx, commonModels.Document{Id: "ep1", Text: transcript(30, "topic")}); err != nil {
		t.Fatal(err)
	}
	changed := commonModels.Document{Id: "ep1", Text: transcript(12, "subject")}
	report, err := p.IngestDocument(ctx, changed)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Replaced {
		t.Errorf("expected replacement: %+v", report)
	}

	ids, err := idx.DocumentChunkIDs(ctx, coll, "ep1")
	if err != nil {
		t.Fatal(err)
	}
	c, _ := chunker.New(chunker.WithWindow(40), chunker.WithOverlap(8), chunker.WithLookahead(6))
	if !sameChunks(ids, c.Chunk(changed)) {
		t.Errorf("index holds %d stale or missing chunks", len(ids))
	}
}

func TestIngestStoresTimelineMetadata(t *testing.T) {
	ctx := context.Background()
	p, idx := newPipeline(t, &mockEmbedder{}, DefaultOptions())
	doc := commonModels.Document{Id: "ep1", Title: "Episode 1", Source: "feed", Text: transcript(30, "topic"), Duration: time.Hour}
	if _, err := p.IngestDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}

	c, _ := chunker.New(chunker.WithWindow(40), chunker.WithOverlap(8), chunker.WithLookahead(6))
	last := c.Chunk(doc)[len(c.Chunk(doc))-1]
	results, err := idx.Search(ctx, DefaultOptions().Collection, fakeVector(last.Text), 1, vectorFilterNone)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ChunkId != last.Id {
		t.Fatalf("expected the last chunk back, got %+v", results)
	}
	md := results[0].Metadata
	total := chunker.CountTokens(doc.Text)
	want := time.Hour.Seconds() * float64(last.Start) / float64(total)
	if md.OffsetSeconds != want || md.DocumentTokens != total || md.Title != "Episode 1" || md.Source != "feed" {
		t.Errorf("metadata = %+v, want offset %v", md, want)
	}
}

func TestIngestEmbedsInBatches(t *testing.T) {
	emb := &mockEmbedder{}
	p, _ := newPipeline(t, emb, Options{BatchSize: 2, Concurrency: 3})

	report, err := p.IngestDocument(context.Background(), commonModels.Document{Id: "ep1", Text: transcript(30, "topic")})
	if err != nil {
		t.Fatal(err)
	}
	wantCalls := (report.Chunks + 1) / 2
	if emb.calls != wantCalls {
		t.Errorf("expected %d batch calls for %d chunks, got %d", wantCalls, report.Chunks, emb.calls)
	}
}

func TestEmbeddingFailureSkipsOnlyAffectedChunks(t *testing.T) {
	doc := commonModels.Document{Id: "ep1", Text: transcript(30, "topic")}
	c, _ := chunker.New(chunker.WithWindow(40), chunker.WithOverlap(8), chunker.WithLookahead(6))
	poisoned := c.Chunk(doc)[1].Text

	emb := &mockEmbedder{
		batchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			for _, text := range texts {
				if text == poisoned {
					return nil, ragErrors.New(ragErrors.KindEmbedding, "embed batch", "", errors.New("400 bad input"))
				}
			}
			return fakeVectors(texts), nil
		},
	}
	p, idx := newPipeline(t, emb, DefaultOptions())

	report, err := p.IngestDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("ingest should survive a bad chunk: %v", err)
	}
	if report.Failed != 1 || report.Inserted != report.Chunks-1 {
		t.Errorf("unexpected report: %+v", report)
	}
	ids, _ := idx.DocumentChunkIDs(context.Background(), DefaultOptions().Collection, "ep1")
	if len(ids) != report.Chunks-1 {
		t.Errorf("index holds %d chunks, want %d", len(ids), report.Chunks-1)
	}
}

func TestIngestFailsWhenNothingEmbeds(t *testing.T) {
	emb := &mockEmbedder{
		batchFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("provider down")
		},
	}
	p, _ := newPipeline(t, emb, DefaultOptions())

	_, err := p.IngestDocument(context.Background(), commonModels.Document{Id: "ep1", Text: transcript(5, "topic")})
	if !errors.Is(err, ragErrors.ErrEmbedding) {
		t.Errorf("expected embedding error, got %v", err)
	}
}

func TestIngestBatchSkipsBadDocuments(t *testing.T) {
	p, _ := newPipeline(t, &mockEmbedder{}, DefaultOptions())
	docs := []commonModels.Document{
		{Id: "empty", Text: "   "},
		{Id: "", Text: "no id"},
		{Id: "good", Text: transcript(10, "topic")},
	}

	batch, err := p.IngestBatch(context.Background(), docs)
	if err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}
	if len(batch.Failures) != 2 || len(batch.Documents) != 1 {
		t.Fatalf("unexpected batch report: %+v", batch)
	}
	if batch.Documents[0].DocumentId != "good" || batch.Inserted == 0 {
		t.Errorf("good document not ingested: %+v", batch.Documents[0])
	}
}

func TestIngestBatchStopsOnCancel(t *testing.T) {
	p, _ := newPipeline(t, &mockEmbedder{}, DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.IngestBatch(ctx, []commonModels.Document{{Id: "a", Text: "text"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

var vectorFilterNone = vectorDB.Filter{}
