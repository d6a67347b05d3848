// Package ingest chunks transcripts, embeds the chunks and writes them to the vector index.
package ingest

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/metrics"
	"github.com/akolanti/TranscriptRAG/internal/rag/chunker"
	"github.com/akolanti/TranscriptRAG/internal/rag/embedding"
	"github.com/akolanti/TranscriptRAG/internal/rag/retriever"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

var logger = logger_i.NewLogger("Ingestion")

type Options struct {
	Collection  string
	BatchSize   int
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		Collection:  config.EmbeddingCollectionName,
		BatchSize:   config.EmbeddingBatchSize,
		Concurrency: config.EmbeddingConcurrency,
	}
}

// Report describes what one document did to the index.
type Report struct {
	DocumentId string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Inserted   int    `json:"inserted"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Unchanged  bool   `json:"unchanged"`
	Replaced   bool   `json:"replaced"`
}

type DocumentFailure struct {
	DocumentId string `json:"document_id"`
	Error      string `json:"error"`
}

type BatchReport struct {
	Documents []Report          `json:"documents"`
	Failures  []DocumentFailure `json:"failures,omitempty"`
	Inserted  int               `json:"inserted"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
}

type Pipeline struct {
	chunker  *chunker.Chunker
	embedder embedding.Embedder
	index    vectorDB.Index
	opts     Options
}

func NewPipeline(c *chunker.Chunker, embedder embedding.Embedder, index vectorDB.Index, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = config.EmbeddingBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Collection == "" {
		opts.Collection = config.EmbeddingCollectionName
	}
	return &Pipeline{chunker: c, embedder: embedder, index: index, opts: opts}
}

// IngestDocument makes the index hold exactly the current chunking of doc.
// An unchanged document is a no-op; a changed one replaces its previous chunks atomically.
// Chunks whose embedding fails after retries are skipped and counted in Report.Failed.
func (p *Pipeline) IngestDocument(ctx context.Context, doc commonModels.Document) (Report, error) {
	log := logger.FromContext(ctx).With("documentId", doc.Id)
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("ingest", time.Since(start)) }()

	if err := validate(doc); err != nil {
		return Report{DocumentId: doc.Id}, err
	}

	chunks := p.chunker.Chunk(doc)
	report := Report{DocumentId: doc.Id, Chunks: len(chunks)}

	existing, err := p.index.DocumentChunkIDs(ctx, p.opts.Collection, doc.Id)
	if err != nil {
		return report, err
	}
	if sameChunks(existing, chunks) {
		report.Unchanged = true
		report.Skipped = len(chunks)
		metrics.CaptureChunks("skipped", report.Skipped)
		log.Info("document unchanged, nothing to do", "chunks", len(chunks))
		return report, nil
	}

	vectors, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return report, err
	}

	docTokens := chunker.CountTokens(doc.Text)
	entries := make([]commonModels.IndexEntry, 0, len(chunks))
	for i, c := range chunks {
		if vectors[i] == nil {
			report.Failed++
			continue
		}
		entries = append(entries, entryFor(doc, c, docTokens, vectors[i]))
	}
	metrics.CaptureChunks("failed", report.Failed)
	if len(entries) == 0 {
		return report, ragErrors.New(ragErrors.KindEmbedding, "ingest", "no chunk of "+doc.Id+" could be embedded", nil)
	}

	if len(existing) > 0 {
		report.Replaced = true
		report.Inserted, err = p.index.ReplaceDocument(ctx, p.opts.Collection, doc.Id, entries)
	} else {
		report.Inserted, err = p.index.Insert(ctx, p.opts.Collection, entries)
	}
	if err != nil {
		return report, err
	}
	report.Skipped = len(entries) - report.Inserted
	metrics.CaptureChunks("inserted", report.Inserted)
	metrics.CaptureChunks("skipped", report.Skipped)

	log.Info("document ingested", "chunks", report.Chunks, "inserted", report.Inserted,
		"skipped", report.Skipped, "failed", report.Failed, "replaced", report.Replaced)
	return report, nil
}

// IngestBatch ingests docs one after another. Bad documents are logged and skipped;
// only cancellation or index corruption stops the batch, and that error is returned.
func (p *Pipeline) IngestBatch(ctx context.Context, docs []commonModels.Document) (BatchReport, error) {
	log := logger.FromContext(ctx)
	var batch BatchReport

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		report, err := p.IngestDocument(ctx, doc)
		batch.Inserted += report.Inserted
		batch.Skipped += report.Skipped
		batch.Failed += report.Failed
		if err != nil {
			if errors.Is(err, ragErrors.ErrIndexCorruption) || ctx.Err() != nil {
				return batch, err
			}
			log.Warn("skipping document", "documentId", doc.Id, "error", err)
			batch.Failures = append(batch.Failures, DocumentFailure{DocumentId: doc.Id, Error: err.Error()})
			continue
		}
		batch.Documents = append(batch.Documents, report)
	}
	log.Info("batch ingested", "documents", len(batch.Documents), "failures", len(batch.Failures),
		"inserted", batch.Inserted)
	return batch, nil
}

func validate(doc commonModels.Document) error {
	if strings.TrimSpace(doc.Id) == "" {
		return ragErrors.Ingestion("ingest", "document has no id")
	}
	if strings.TrimSpace(doc.Text) == "" {
		return ragErrors.Ingestion("ingest", "document %s has no text", doc.Id)
	}
	if doc.Duration < 0 {
		return ragErrors.Ingestion("ingest", "document %s has a negative duration", doc.Id)
	}
	return nil
}

func sameChunks(existing []string, chunks []commonModels.Chunk) bool {
	if len(existing) == 0 || len(existing) != len(chunks) {
		return false
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.Id
	}
	slices.Sort(ids)
	sorted := slices.Clone(existing)
	slices.Sort(sorted)
	return slices.Equal(sorted, ids)
}

// embedChunks returns one vector per chunk, nil where embedding failed.
// Batches run concurrently; a failed batch is retried one chunk at a time.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []commonModels.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for lo := 0; lo < len(chunks); lo += p.opts.BatchSize {
		hi := min(lo+p.opts.BatchSize, len(chunks))
		g.Go(func() error {
			p.embedBatch(gctx, chunks[lo:hi], vectors[lo:hi])
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (p *Pipeline) embedBatch(ctx context.Context, chunks []commonModels.Chunk, out [][]float32) {
	log := logger.FromContext(ctx)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	start := time.Now()
	vecs, err := p.embedder.BatchEmbedding(ctx, texts)
	metrics.CaptureExecutionMetrics("embedding", time.Since(start))
	if err == nil {
		copy(out, vecs)
		return
	}
	if ctx.Err() != nil {
		return
	}

	log.Warn("batch embedding failed, falling back to single chunks", "chunks", len(chunks), "error", err)
	for i, text := range texts {
		single, err := p.embedder.BatchEmbedding(ctx, []string{text})
		if err != nil || len(single) != 1 {
			if ctx.Err() != nil {
				return
			}
			log.Error("skipping chunk, embedding failed", "chunkId", chunks[i].Id, "error", err)
			continue
		}
		out[i] = single[0]
	}
}

func entryFor(doc commonModels.Document, c commonModels.Chunk, docTokens int, vector []float32) commonModels.IndexEntry {
	return commonModels.IndexEntry{
		ChunkId:     c.Id,
		ContentHash: c.ContentHash,
		Vector:      vector,
		Metadata: commonModels.EntryMetadata{
			DocumentId:     doc.Id,
			Title:          doc.Title,
			Source:         doc.Source,
			Start:          c.Start,
			End:            c.End,
			DocumentTokens: docTokens,
			OffsetSeconds:  retriever.OffsetSeconds(doc.Duration, c.Start, docTokens),
			Text:           c.Text,
		},
	}
}
