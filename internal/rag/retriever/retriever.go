// Package retriever turns a question into a token-budgeted, citation-bearing context block.
package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/metrics"
	"github.com/akolanti/TranscriptRAG/internal/rag/chunker"
	"github.com/akolanti/TranscriptRAG/internal/rag/embedding"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

var logger = logger_i.NewLogger("retriever")

type Searcher interface {
	Search(ctx context.Context, collection string, vector []float32, k int, filter vectorDB.Filter) ([]commonModels.SearchResult, error)
}

type Options struct {
	Collection  string
	TopK        int
	TokenBudget int
	MinScore    float32
}

func DefaultOptions() Options {
	return Options{
		Collection:  config.EmbeddingCollectionName,
		TopK:        config.DefaultTopK,
		TokenBudget: config.ContextTokenBudget,
		MinScore:    config.MinSimilarity,
	}
}

// Query fields left at zero fall back to the retriever's options.
type Query struct {
	Text        string
	K           int
	TokenBudget int
	MinScore    *float32
	Filter      vectorDB.Filter
}

type Context struct {
	Text       string
	Citations  []commonModels.Citation
	Empty      bool
	TokensUsed int
	// Considered is how many results cleared the similarity threshold.
	Considered int
}

type Retriever struct {
	embedder embedding.Embedder
	index    Searcher
	opts     Options
}

func New(embedder embedding.Embedder, index Searcher, opts Options) *Retriever {
	return &Retriever{embedder: embedder, index: index, opts: opts}
}

// Search embeds text once and returns the raw ranked hits.
func (r *Retriever) Search(ctx context.Context, text string, k int, filter vectorDB.Filter) ([]commonModels.SearchResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ragErrors.InvalidArgument("search", "empty query")
	}
	if k <= 0 {
		k = r.opts.TopK
	}
	k = min(k, config.MaxTopK)

	start := time.Now()
	vec, err := r.embedder.GetEmbedding(ctx, text)
	metrics.CaptureExecutionMetrics("embedding", time.Since(start))
	if err != nil {
		return nil, err
	}

	start = time.Now()
	results, err := r.index.Search(ctx, r.opts.Collection, vec, k, filter)
	metrics.CaptureExecutionMetrics("vector_search", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

func (r *Retriever) Retrieve(ctx context.Context, q Query) (Context, error) {
	log := logger.FromContext(ctx)

	budget := q.TokenBudget
	if budget <= 0 {
		budget = r.opts.TokenBudget
	}
	minScore := r.opts.MinScore
	if q.MinScore != nil {
		minScore = *q.MinScore
	}

	results, err := r.Search(ctx, q.Text, q.K, q.Filter)
	if err != nil {
		return Context{}, err
	}

	relevant := make([]commonModels.SearchResult, 0, len(results))
	for _, res := range results {
		if res.Score >= minScore {
			relevant = append(relevant, res)
		}
	}
	vectorDB.SortResults(relevant)

	out := Assemble(relevant, budget)
	out.Considered = len(relevant)
	log.Debug("context assembled", "hits", len(results), "relevant", len(relevant), "included", len(out.Citations), "tokens", out.TokensUsed)
	return out, nil
}

// Assemble greedily packs ranked results into budget tokens, stopping at the first block that does not fit.
func Assemble(ranked []commonModels.SearchResult, budget int) Context {
	var sb strings.Builder
	citations := make([]commonModels.Citation, 0, len(ranked))
	used := 0

	for _, res := range ranked {
		n := len(citations) + 1
		c := citationFor(res)
		block := fmt.Sprintf("[Source %d: %s]\n%s\n", n, c.Label, res.Metadata.Text)
		cost := chunker.CountTokens(block)
		if used+cost > budget {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(block)
		used += cost
		citations = append(citations, c)
	}

	if len(citations) == 0 {
		return Context{Text: config.NoContextMarker, Empty: true, Citations: []commonModels.Citation{}}
	}
	return Context{Text: sb.String(), Citations: citations, TokensUsed: used}
}

func citationFor(res commonModels.SearchResult) commonModels.Citation {
	offset := time.Duration(res.Metadata.OffsetSeconds * float64(time.Second)).Round(time.Second)
	title := res.Metadata.Title
	if title == "" {
		title = res.Metadata.DocumentId
	}
	return commonModels.Citation{
		ChunkId:    res.ChunkId,
		DocumentId: res.Metadata.DocumentId,
		Title:      title,
		Offset:     offset,
		Score:      res.Score,
		Label:      title + " @ " + FormatOffset(offset),
	}
}

// FormatOffset renders d as hh:mm:ss.
func FormatOffset(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}

// OffsetSeconds places token start of a documentTokens-long transcript on its timeline.
func OffsetSeconds(duration time.Duration, start, documentTokens int) float64 {
	if duration <= 0 || documentTokens <= 0 {
		return 0
	}
	return duration.Seconds() * float64(start) / float64(documentTokens)
}
