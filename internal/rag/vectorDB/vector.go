package vectorDB

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
)

// Index is a persistent chunk-vector store partitioned into named collections.
// Writes within a collection are serialised; searches run concurrently and see either the
// state before or after a write batch, never a mix.
type Index interface {
	// Insert skips entries whose chunk id, or whose (document, content hash) pair, is already stored.
	// Content de-dup is scoped per document so that deleting one document never removes text
	// another document still needs.
	Insert(ctx context.Context, collection string, entries []commonModels.IndexEntry) (int, error)
	// ReplaceDocument swaps every entry of docID for entries. A concurrent search sees either the
	// old version of the document or the new one, never both.
	ReplaceDocument(ctx context.Context, collection, docID string, entries []commonModels.IndexEntry) (int, error)
	DeleteDocument(ctx context.Context, collection, docID string) (int, error)
	DocumentChunkIDs(ctx context.Context, collection, docID string) ([]string, error)
	Search(ctx context.Context, collection string, vector []float32, k int, filter Filter) ([]commonModels.SearchResult, error)
	Stats(ctx context.Context, collection string) (commonModels.IndexStats, error)
	ClearCollection(ctx context.Context, collection string) error
	Compact(ctx context.Context, collection string) error
	Close() error
}

// Filter restricts a search. Within a field any listed value matches; all non-empty fields must match.
type Filter struct {
	DocumentIds []string `json:"document_ids,omitempty"`
	Sources     []string `json:"sources,omitempty"`
	Title       string   `json:"title,omitempty"`
}

func (f Filter) IsEmpty() bool {
	return len(f.DocumentIds) == 0 && len(f.Sources) == 0 && f.Title == ""
}

func (f Filter) Match(m commonModels.EntryMetadata) bool {
	if len(f.DocumentIds) > 0 && !slices.Contains(f.DocumentIds, m.DocumentId) {
		return false
	}
	if len(f.Sources) > 0 && !slices.Contains(f.Sources, m.Source) {
		return false
	}
	if f.Title != "" && f.Title != m.Title {
		return false
	}
	return true
}

// Normalize returns a unit-length copy of v.
func Normalize(v []float32) ([]float32, error) {
	var sum float64
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return nil, ragErrors.Ingestion("normalize", "vector contains NaN or Inf")
		}
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return nil, ragErrors.Ingestion("normalize", "zero vector cannot be normalised")
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out, nil
}

func Dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// SortResults orders by score desc, then insertion sequence, then chunk id.
func SortResults(results []commonModels.SearchResult) {
	slices.SortStableFunc(results, func(a, b commonModels.SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Seq, b.Seq); c != 0 {
			return c
		}
		return cmp.Compare(a.ChunkId, b.ChunkId)
	})
}

// ValidateBatch checks dimensions and returns normalised copies of the entries.
func ValidateBatch(entries []commonModels.IndexEntry, dim int) ([]commonModels.IndexEntry, int, error) {
	out := make([]commonModels.IndexEntry, 0, len(entries))
	for _, e := range entries {
		if e.ChunkId == "" {
			return nil, dim, ragErrors.Ingestion("insert", "entry without chunk id")
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return nil, dim, ragErrors.Ingestion("insert", "chunk %s has dimension %d, collection uses %d", e.ChunkId, len(e.Vector), dim)
		}
		vec, err := Normalize(e.Vector)
		if err != nil {
			return nil, dim, err
		}
		e.Vector = vec
		out = append(out, e)
	}
	return out, dim, nil
}
