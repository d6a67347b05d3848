// Package localIndex is the embedded vector index: SQLite for durability, an in-memory snapshot per collection for search.
package localIndex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/akolanti/TranscriptRAG/internal/data/sqliteStore"
	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB/localIndex/migrations"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

var logger = logger_i.NewLogger("local_index")

type Index struct {
	db   *sql.DB
	path string

	mu          sync.Mutex
	collections map[string]*collection
}

type collection struct {
	name    string
	writeMu sync.Mutex
	loadMu  sync.Mutex
	snap    atomic.Pointer[snapshot]
}

var _ vectorDB.Index = (*Index)(nil)

// Open opens (or creates) the index file. Collections are read from disk on first use.
func Open(ctx context.Context, path string) (*Index, error) {
	db, err := sqliteStore.Open(ctx, path, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("open local index: %w", err)
	}
	logger.Info("local index opened", "path", path)
	return &Index{db: db, path: path, collections: make(map[string]*collection)}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

func (ix *Index) collection(ctx context.Context, name string) (*collection, *snapshot, error) {
	if name == "" {
		return nil, nil, ragErrors.InvalidArgument("index", "empty collection name")
	}
	ix.mu.Lock()
	col, ok := ix.collections[name]
	if !ok {
		col = &collection{name: name}
		ix.collections[name] = col
	}
	ix.mu.Unlock()

	if s := col.snap.Load(); s != nil {
		return col, s, nil
	}

	col.loadMu.Lock()
	defer col.loadMu.Unlock()
	if s := col.snap.Load(); s != nil {
		return col, s, nil
	}
	s, err := ix.load(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	col.snap.Store(s)
	return col, s, nil
}

func (ix *Index) load(ctx context.Context, name string) (*snapshot, error) {
	const op = "load collection"
	var dim int
	var nextSeq int64
	err := ix.db.QueryRowContext(ctx, "SELECT dimension, next_seq FROM collections WHERE name = ?", name).Scan(&dim, &nextSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return emptySnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, name, err)
	}

	rows, err := ix.db.QueryContext(ctx, `
		SELECT chunk_id, seq, document_id, content_hash, dim, vector, metadata_json
		FROM index_entries WHERE collection = ? ORDER BY seq`, name)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, name, err)
	}
	defer rows.Close()

	var entries []commonModels.IndexEntry
	for rows.Next() {
		var (
			e        commonModels.IndexEntry
			docID    string
			rowDim   int
			blob     []byte
			metaJSON string
		)
		if err := rows.Scan(&e.ChunkId, &e.Seq, &docID, &e.ContentHash, &rowDim, &blob, &metaJSON); err != nil {
			return nil, ragErrors.Corruption(op, "unreadable row in "+name, err)
		}
		if rowDim != dim {
			return nil, ragErrors.Corruption(op, fmt.Sprintf("chunk %s has dimension %d, collection %s uses %d", e.ChunkId, rowDim, name, dim), nil)
		}
		vec, ok := decodeVector(blob, dim)
		if !ok {
			return nil, ragErrors.Corruption(op, fmt.Sprintf("chunk %s has a malformed vector", e.ChunkId), nil)
		}
		if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
			return nil, ragErrors.Corruption(op, fmt.Sprintf("chunk %s has malformed metadata", e.ChunkId), err)
		}
		if e.Metadata.DocumentId != docID || e.Seq >= nextSeq {
			return nil, ragErrors.Corruption(op, fmt.Sprintf("chunk %s is inconsistent with its collection", e.ChunkId), nil)
		}
		e.Vector = vec
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ragErrors.Corruption(op, "reading "+name, err)
	}

	logger.Info("collection loaded", "collection", name, "chunks", len(entries), "dimension", dim)
	return newSnapshot(entries, dim, nextSeq), nil
}

func (ix *Index) Insert(ctx context.Context, name string, entries []commonModels.IndexEntry) (int, error) {
	return ix.write(ctx, name, "", false, entries)
}

func (ix *Index) ReplaceDocument(ctx context.Context, name, docID string, entries []commonModels.IndexEntry) (int, error) {
	if docID == "" {
		return 0, ragErrors.InvalidArgument("replace document", "empty document id")
	}
	for _, e := range entries {
		if e.Metadata.DocumentId != docID {
			return 0, ragErrors.InvalidArgument("replace document", "chunk %s belongs to %q, not %q", e.ChunkId, e.Metadata.DocumentId, docID)
		}
	}
	return ix.write(ctx, name, docID, true, entries)
}

// write runs one batch: optional delete of docID, then insert, in a single transaction.
// The new snapshot is published only after the commit.
func (ix *Index) write(ctx context.Context, name, docID string, replace bool, entries []commonModels.IndexEntry) (int, error) {
	col, _, err := ix.collection(ctx, name)
	if err != nil {
		return 0, err
	}
	col.writeMu.Lock()
	defer col.writeMu.Unlock()

	base := col.snap.Load()
	kept := base.entries
	if replace {
		kept, _ = base.without(docID)
		base = newSnapshot(kept, base.dim, base.nextSeq)
		if len(kept) == 0 {
			// the collection is about to be empty: let the replacement set the dimension
			base.dim = 0
		}
	}

	validated, dim, err := vectorDB.ValidateBatch(entries, base.dim)
	if err != nil {
		return 0, err
	}
	fresh := base.dedupe(validated)
	if len(fresh) == 0 && !replace {
		return 0, nil
	}
	nextSeq := base.nextSeq + int64(len(fresh))

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin index batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM index_entries WHERE collection = ? AND document_id = ?", name, docID); err != nil {
			return 0, fmt.Errorf("delete document %s: %w", docID, err)
		}
	}
	if err := insertRows(ctx, tx, name, dim, fresh); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO collections (name, dimension, next_seq) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET dimension = excluded.dimension, next_seq = excluded.next_seq`,
		name, dim, nextSeq); err != nil {
		return 0, fmt.Errorf("update collection %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit index batch: %w", err)
	}

	all := make([]commonModels.IndexEntry, 0, len(kept)+len(fresh))
	all = append(all, kept...)
	all = append(all, fresh...)
	col.snap.Store(newSnapshot(all, dim, nextSeq))

	logger.FromContext(ctx).Debug("index batch committed", "collection", name, "inserted", len(fresh), "skipped", len(entries)-len(fresh), "replace", replace)
	return len(fresh), nil
}

func insertRows(ctx context.Context, tx *sql.Tx, name string, dim int, entries []commonModels.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO index_entries (collection, chunk_id, seq, document_id, content_hash, dim, vector, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", e.ChunkId, err)
		}
		if _, err := stmt.ExecContext(ctx, name, e.ChunkId, e.Seq, e.Metadata.DocumentId, e.ContentHash, dim, encodeVector(e.Vector), string(meta)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", e.ChunkId, err)
		}
	}
	return nil
}

func (ix *Index) DeleteDocument(ctx context.Context, name, docID string) (int, error) {
	col, _, err := ix.collection(ctx, name)
	if err != nil {
		return 0, err
	}
	col.writeMu.Lock()
	defer col.writeMu.Unlock()

	base := col.snap.Load()
	kept, removed := base.without(docID)
	if removed == 0 {
		return 0, nil
	}
	if _, err := ix.db.ExecContext(ctx, "DELETE FROM index_entries WHERE collection = ? AND document_id = ?", name, docID); err != nil {
		return 0, fmt.Errorf("delete document %s: %w", docID, err)
	}
	col.snap.Store(newSnapshot(kept, base.dim, base.nextSeq))
	logger.FromContext(ctx).Info("document deleted from index", "collection", name, "document", docID, "chunks", removed)
	return removed, nil
}

func (ix *Index) DocumentChunkIDs(ctx context.Context, name, docID string) ([]string, error) {
	_, s, err := ix.collection(ctx, name)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range s.entries {
		if e.Metadata.DocumentId == docID {
			ids = append(ids, e.ChunkId)
		}
	}
	return ids, nil
}

func (ix *Index) Search(ctx context.Context, name string, vector []float32, k int, filter vectorDB.Filter) ([]commonModels.SearchResult, error) {
	if k <= 0 {
		return []commonModels.SearchResult{}, nil
	}
	_, s, err := ix.collection(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(s.entries) == 0 {
		return []commonModels.SearchResult{}, nil
	}
	if len(vector) != s.dim {
		return nil, ragErrors.InvalidArgument("search", "query has dimension %d, collection %s uses %d", len(vector), name, s.dim)
	}
	q, err := vectorDB.Normalize(vector)
	if err != nil {
		return nil, ragErrors.InvalidArgument("search", "query vector: %v", err)
	}

	results := make([]commonModels.SearchResult, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.IsEmpty() && !filter.Match(e.Metadata) {
			continue
		}
		results = append(results, commonModels.SearchResult{
			ChunkId:  e.ChunkId,
			Score:    vectorDB.Dot(q, e.Vector),
			Seq:      e.Seq,
			Metadata: e.Metadata,
		})
	}
	vectorDB.SortResults(results)
	if len(results) > k {
		results = slices.Clip(results[:k])
	}
	return results, nil
}

func (ix *Index) Stats(ctx context.Context, name string) (commonModels.IndexStats, error) {
	_, s, err := ix.collection(ctx, name)
	if err != nil {
		return commonModels.IndexStats{}, err
	}
	return commonModels.IndexStats{
		Collection: name,
		Chunks:     len(s.entries),
		Documents:  s.documents(),
		Dimension:  s.dim,
		Location:   ix.path,
	}, nil
}

func (ix *Index) ClearCollection(ctx context.Context, name string) error {
	col, _, err := ix.collection(ctx, name)
	if err != nil {
		return err
	}
	col.writeMu.Lock()
	defer col.writeMu.Unlock()

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_entries WHERE collection = ?", name); err != nil {
		return fmt.Errorf("clear collection %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name); err != nil {
		return fmt.Errorf("clear collection %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	col.snap.Store(emptySnapshot())
	logger.FromContext(ctx).Warn("collection cleared", "collection", name)
	return nil
}

// Compact reclaims the space left by deleted entries. VACUUM is file-wide.
func (ix *Index) Compact(ctx context.Context, name string) error {
	col, _, err := ix.collection(ctx, name)
	if err != nil {
		return err
	}
	col.writeMu.Lock()
	defer col.writeMu.Unlock()
	if _, err := ix.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum index: %w", err)
	}
	return nil
}
