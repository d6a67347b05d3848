package localIndex

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB"
)

const testCollection = "transcripts"

func entry(docID, chunkID string, vec ...float32) commonModels.IndexEntry {
	return commonModels.IndexEntry{
		ChunkId:     chunkID,
		ContentHash: "hash-" + chunkID,
		Vector:      vec,
		Metadata: commonModels.EntryMetadata{
			DocumentId: docID,
			Title:      "Episode " + docID,
			Source:     "feed-" + docID,
			Text:       "text of " + chunkID,
		},
	}
}

func openIndex(t *testing.T, path string) *Index {
	t.Helper()
	ix, err := Open(context.Background(), path)
	require.NoError(t, err)
	return ix
}

func newIndex(t *testing.T) (*Index, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	ix := openIndex(t, path)
	t.Cleanup(func() { _ = ix.Close() })
	return ix, path
}

func ids(results []commonModels.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ChunkId
	}
	return out
}

func seedFive(t *testing.T, ix *Index) {
	t.Helper()
	n, err := ix.Insert(context.Background(), testCollection, []commonModels.IndexEntry{
		entry("a", "c1", 1, 0),
		entry("a", "c2", 0, 1),
		entry("b", "c3", 2, 0),
		entry("b", "c4", 0.6, 0.8),
		entry("c", "c5", -1, 0),
	})
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestSearchReturnsTopKWithInsertionOrderTies(t *testing.T) {
	ix, _ := newIndex(t)
	seedFive(t, ix)

	results, err := ix.Search(context.Background(), testCollection, []float32{3, 0}, 3, vectorDB.Filter{})
	require.NoError(t, err)

	assert.Equal(t, []string{"c1", "c3", "c4"}, ids(results))
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 1.0, results[1].Score, 1e-6)
	assert.InDelta(t, 0.6, results[2].Score, 1e-6)
}

func TestSearchBounds(t *testing.T) {
	ix, _ := newIndex(t)
	ctx := context.Background()

	empty, err := ix.Search(ctx, testCollection, []float32{1, 0}, 3, vectorDB.Filter{})
	require.NoError(t, err)
	assert.Empty(t, empty)

	seedFive(t, ix)
	for _, k := range []int{0, -1, 1, 5, 50} {
		results, err := ix.Search(ctx, testCollection, []float32{0.3, 0.7}, k, vectorDB.Filter{})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(results), max(k, 0))
		assert.Len(t, results, min(max(k, 0), 5))
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	}

	_, err = ix.Search(ctx, testCollection, []float32{1, 0, 0}, 3, vectorDB.Filter{})
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
}

func TestSearchFilter(t *testing.T) {
	ix, _ := newIndex(t)
	seedFive(t, ix)
	ctx := context.Background()

	results, err := ix.Search(ctx, testCollection, []float32{1, 0}, 10, vectorDB.Filter{DocumentIds: []string{"b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c4"}, ids(results))

	results, err = ix.Search(ctx, testCollection, []float32{1, 0}, 10, vectorDB.Filter{Sources: []string{"feed-a", "feed-c"}, Title: "Episode c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c5"}, ids(results))
}

func TestInsertIsIdempotent(t *testing.T) {
	ix, _ := newIndex(t)
	seedFive(t, ix)
	ctx := context.Background()

	n, err := ix.Insert(ctx, testCollection, []commonModels.IndexEntry{entry("a", "c1", 1, 0), entry("a", "c2", 0, 1)})
	require.NoError(t, err)
	assert.Zero(t, n)

	sameContent := entry("a", "other-id", 1, 1)
	sameContent.ContentHash = "hash-c1"
	n, err = ix.Insert(ctx, testCollection, []commonModels.IndexEntry{sameContent})
	require.NoError(t, err)
	assert.Zero(t, n, "same document and content hash is a duplicate")

	otherDoc := entry("z", "z-id", 1, 1)
	otherDoc.ContentHash = "hash-c1"
	n, err = ix.Insert(ctx, testCollection, []commonModels.IndexEntry{otherDoc, otherDoc})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := ix.Stats(ctx, testCollection)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Chunks)
	assert.Equal(t, 4, stats.Documents)
	assert.Equal(t, 2, stats.Dimension)
}

func TestDeleteKeepsContentSharedWithOtherDocuments(t *testing.T) {
	ix, _ := newIndex(t)
	ctx := context.Background()

	intro := entry("a", "a-intro", 1, 0)
	intro.ContentHash = "hash-jingle"
	rerun := entry("b", "b-intro", 1, 0)
	rerun.ContentHash = "hash-jingle"
	n, err := ix.Insert(ctx, testCollection, []commonModels.IndexEntry{intro, rerun})
	require.NoError(t, err)
	require.Equal(t, 2, n, "the same passage is kept once per document")

	removed, err := ix.DeleteDocument(ctx, testCollection, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	results, err := ix.Search(ctx, testCollection, []float32{1, 0}, 5, vectorDB.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b-intro"}, ids(results))
}

func TestInsertRejectsBadVectors(t *testing.T) {
	ix, _ := newIndex(t)
	seedFive(t, ix)
	ctx := context.Background()

	_, err := ix.Insert(ctx, testCollection, []commonModels.IndexEntry{entry("x", "zero", 0, 0)})
	assert.ErrorIs(t, err, ragErrors.ErrIngestion)

	_, err = ix.Insert(ctx, testCollection, []commonModels.IndexEntry{entry("x", "wide", 1, 0, 0)})
	assert.ErrorIs(t, err, ragErrors.ErrIngestion)
}

func TestDeleteDocumentRemovesEveryChunk(t *testing.T) {
	ix, _ := newIndex(t)
	seedFive(t, ix)
	ctx := context.Background()

	removed, err := ix.DeleteDocument(ctx, testCollection, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	results, err := ix.Search(ctx, testCollection, []float32{1, 0}, 10, vectorDB.Filter{})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "b", r.Metadata.DocumentId)
	}

	chunkIDs, err := ix.DocumentChunkIDs(ctx, testCollection, "b")
	require.NoError(t, err)
	assert.Empty(t, chunkIDs)

	removed, err = ix.DeleteDocument(ctx, testCollection, "missing")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestReplaceDocument(t *testing.T) {
	ix, _ := newIndex(t)
	seedFive(t, ix)
	ctx := context.Background()

	n, err := ix.ReplaceDocument(ctx, testCollection, "a", []commonModels.IndexEntry{entry("a", "c1-v2", 0.5, 0.5)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	chunkIDs, err := ix.DocumentChunkIDs(ctx, testCollection, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1-v2"}, chunkIDs)

	_, err = ix.ReplaceDocument(ctx, testCollection, "a", []commonModels.IndexEntry{entry("b", "wrong", 1, 0)})
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
}

func TestIndexSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	ix := openIndex(t, path)
	seedFive(t, ix)
	_, err := ix.DeleteDocument(ctx, testCollection, "c")
	require.NoError(t, err)
	before, err := ix.Search(ctx, testCollection, []float32{1, 0}, 4, vectorDB.Filter{})
	require.NoError(t, err)
	require.NoError(t, ix.Close())

	reopened := openIndex(t, path)
	defer reopened.Close()
	after, err := reopened.Search(ctx, testCollection, []float32{1, 0}, 4, vectorDB.Filter{})
	require.NoError(t, err)
	assert.Equal(t, ids(before), ids(after))
	assert.Equal(t, before[0].Metadata, after[0].Metadata)

	n, err := reopened.Insert(ctx, testCollection, []commonModels.IndexEntry{entry("d", "c6", 1, 0)})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	latest, err := reopened.Search(ctx, testCollection, []float32{1, 0}, 3, vectorDB.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3", "c6"}, ids(latest), "sequence numbers continue after restart")
}

func TestCorruptRowIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	ix := openIndex(t, path)
	seedFive(t, ix)
	_, err := ix.db.ExecContext(ctx, "UPDATE index_entries SET vector = x'0102' WHERE chunk_id = 'c2'")
	require.NoError(t, err)
	require.NoError(t, ix.Close())

	reopened := openIndex(t, path)
	defer reopened.Close()
	_, err = reopened.Search(ctx, testCollection, []float32{1, 0}, 3, vectorDB.Filter{})
	assert.ErrorIs(t, err, ragErrors.ErrIndexCorruption)
	_, err = reopened.Insert(ctx, testCollection, []commonModels.IndexEntry{entry("d", "c6", 1, 0)})
	assert.ErrorIs(t, err, ragErrors.ErrIndexCorruption)
}

func TestClearAndCompact(t *testing.T) {
	ix, _ := newIndex(t)
	seedFive(t, ix)
	ctx := context.Background()

	require.NoError(t, ix.ClearCollection(ctx, testCollection))
	require.NoError(t, ix.Compact(ctx, testCollection))

	stats, err := ix.Stats(ctx, testCollection)
	require.NoError(t, err)
	assert.Zero(t, stats.Chunks)
	assert.Zero(t, stats.Dimension)

	n, err := ix.Insert(ctx, testCollection, []commonModels.IndexEntry{entry("a", "c1", 1, 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a cleared collection accepts a new dimension")
}

func TestSearchNeverSeesHalfDeletedDocument(t *testing.T) {
	ix, _ := newIndex(t)
	ctx := context.Background()

	const docs, perDoc = 20, 5
	for d := 0; d < docs; d++ {
		batch := make([]commonModels.IndexEntry, 0, perDoc)
		for c := 0; c < perDoc; c++ {
			batch = append(batch, entry(fmt.Sprintf("d%d", d), fmt.Sprintf("d%d-c%d", d, c), float32(c+1), float32(d+1)))
		}
		_, err := ix.Insert(ctx, testCollection, batch)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, docs*4)
	for d := 0; d < docs; d++ {
		docID := fmt.Sprintf("d%d", d)
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := ix.DeleteDocument(ctx, testCollection, docID); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			results, err := ix.Search(ctx, testCollection, []float32{1, 1}, 100, vectorDB.Filter{DocumentIds: []string{docID}})
			if err != nil {
				errs <- err
				return
			}
			if len(results) != 0 && len(results) != perDoc {
				errs <- fmt.Errorf("document %s partially visible: %d chunks", docID, len(results))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
