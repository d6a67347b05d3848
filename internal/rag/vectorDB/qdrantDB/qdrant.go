package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
	"github.com/akolanti/TranscriptRAG/internal/rag/vectorDB"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

// extra candidates fetched so ties at the k-th score are broken client-side; the fetch widens
// while the page still ends inside the tie group
const tieMargin = 8
const scrollPage = 256

var logger = logger_i.NewLogger("Qdrant")

type Store struct {
	client    *qdrant.Client
	dimension uint64
	address   string

	mu      sync.Mutex
	writeMu map[string]*sync.Mutex
	ensured map[string]bool
	hidden  map[string]map[docGeneration]bool
	lastSeq int64
}

var _ vectorDB.Index = (*Store)(nil)

func NewStore(s config.QdrantSettings, dimension int32) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     s.Host,
		Port:     s.Port,
		APIKey:   s.APIKey,
		UseTLS:   s.UseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	logger.Info("Qdrant client created", "host", s.Host, "port", s.Port)
	return &Store{
		client:    client,
		dimension: uint64(dimension),
		address:   fmt.Sprintf("qdrant://%s:%d", s.Host, s.Port),
		writeMu:   make(map[string]*sync.Mutex),
		ensured:   make(map[string]bool),
		hidden:    make(map[string]map[docGeneration]bool),
	}, nil
}

func (db *Store) Close() error {
	logger.Info("Shutting down Qdrant")
	return db.client.Close()
}

// PointID maps a chunk id and its document generation onto the UUID space Qdrant requires.
// Generation 0 hashes the bare chunk id.
func PointID(chunkID string, generation int64) string {
	name := chunkID
	if generation != 0 {
		name = fmt.Sprintf("%s#%d", chunkID, generation)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func (db *Store) lock(collection string) func() {
	db.mu.Lock()
	m, ok := db.writeMu[collection]
	if !ok {
		m = &sync.Mutex{}
		db.writeMu[collection] = m
	}
	db.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// nextSeq hands out increasing sequence numbers that also increase across restarts.
func (db *Store) nextSeq(n int) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	start := max(time.Now().UnixNano(), db.lastSeq+1)
	db.lastSeq = start + int64(n) - 1
	return start
}

func (db *Store) isEnsured(collectionName string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.ensured[collectionName]
}

func (db *Store) ensureCollection(ctx context.Context, collectionName string) error {
	if db.isEnsured(collectionName) {
		return nil
	}
	unlock := db.lock(collectionName)
	defer unlock()
	if db.isEnsured(collectionName) {
		return nil
	}
	if err := createCollection(ctx, db.client, collectionName, db.dimension, chunkIndexes); err != nil {
		return fmt.Errorf("ensure collection %s: %w", collectionName, err)
	}
	if err := createCollection(ctx, db.client, generationsCollection(collectionName), 1, nil); err != nil {
		return fmt.Errorf("ensure collection %s: %w", generationsCollection(collectionName), err)
	}
	if err := db.reconcile(ctx, collectionName); err != nil {
		return err
	}
	db.mu.Lock()
	db.ensured[collectionName] = true
	db.mu.Unlock()
	return nil
}

var chunkIndexes = map[string]qdrant.FieldType{
	"document_id": qdrant.FieldType_FieldTypeKeyword,
	"source":      qdrant.FieldType_FieldTypeKeyword,
	"title":       qdrant.FieldType_FieldTypeKeyword,
	"generation":  qdrant.FieldType_FieldTypeInteger,
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string, dimension uint64, indexes map[string]qdrant.FieldType) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return err
	}
	for field, fieldType := range indexes {
		_, err := client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collectionName,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("index payload field %s: %w", field, err)
		}
	}
	return nil
}

func (db *Store) Insert(ctx context.Context, collectionName string, entries []commonModels.IndexEntry) (int, error) {
	if err := db.ensureCollection(ctx, collectionName); err != nil {
		return 0, err
	}
	unlock := db.lock(collectionName)
	defer unlock()

	fresh, err := db.prepare(ctx, collectionName, "", entries)
	if err != nil || len(fresh) == 0 {
		return 0, err
	}
	active, err := db.activeGenerations(ctx, collectionName, documentsOf(fresh))
	if err != nil {
		return 0, err
	}
	if err := db.upsert(ctx, collectionName, fresh, active); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

func documentsOf(entries []commonModels.IndexEntry) []string {
	seen := map[string]bool{}
	var docs []string
	for _, e := range entries {
		if !seen[e.Metadata.DocumentId] {
			seen[e.Metadata.DocumentId] = true
			docs = append(docs, e.Metadata.DocumentId)
		}
	}
	return docs
}

// ReplaceDocument writes the new chunks under the document's next generation and commits that
// generation with one write before the old one is deleted.
func (db *Store) ReplaceDocument(ctx context.Context, collectionName, docID string, entries []commonModels.IndexEntry) (int, error) {
	if err := db.ensureCollection(ctx, collectionName); err != nil {
		return 0, err
	}
	unlock := db.lock(collectionName)
	defer unlock()
	log := logger.FromContext(ctx).With("collection", collectionName, "document", docID)

	for _, e := range entries {
		if e.Metadata.DocumentId != docID {
			return 0, ragErrors.InvalidArgument("replace document", "chunk %s belongs to %q, not %q", e.ChunkId, e.Metadata.DocumentId, docID)
		}
	}
	active, err := db.activeGenerations(ctx, collectionName, []string{docID})
	if err != nil {
		return 0, err
	}
	current := docGeneration{document: docID, generation: active[docID]}
	next := docGeneration{document: docID, generation: current.generation + 1}

	db.hide(collectionName, next)
	fresh, err := db.prepare(ctx, collectionName, docID, entries)
	if err != nil {
		db.reveal(collectionName, next)
		return 0, err
	}
	if err := db.upsert(ctx, collectionName, fresh, map[string]int64{docID: next.generation}); err != nil {
		if cleanupErr := db.deleteGeneration(ctx, collectionName, next); cleanupErr != nil {
			log.Warn("Uncommitted generation left hidden", "generation", next.generation, "error", cleanupErr)
		} else {
			db.reveal(collectionName, next)
		}
		return 0, err
	}
	// an uncertain commit keeps next hidden; reconcile settles it from the stored record
	if err := db.commitGeneration(ctx, collectionName, next); err != nil {
		return 0, err
	}

	db.flip(collectionName, next, current)
	if err := db.retireGenerations(ctx, collectionName, next); err != nil {
		log.Warn("Superseded generation left hidden", "generation", current.generation, "error", err)
		return len(fresh), nil
	}
	db.forget(collectionName, docID)
	return len(fresh), nil
}

// prepare validates and de-duplicates a batch against stored points. replacing names a document
// whose stored points are about to be dropped and so do not count as duplicates.
func (db *Store) prepare(ctx context.Context, collectionName, replacing string, entries []commonModels.IndexEntry) ([]commonModels.IndexEntry, error) {
	validated, _, err := vectorDB.ValidateBatch(entries, int(db.dimension))
	if err != nil {
		return nil, err
	}

	docs := map[string]bool{}
	for _, e := range validated {
		if e.Metadata.DocumentId != replacing {
			docs[e.Metadata.DocumentId] = true
		}
	}
	storedChunks := map[string]bool{}
	storedContent := map[string]bool{}
	for docID := range docs {
		points, err := db.scrollDocument(ctx, collectionName, docID)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			storedChunks[p.Payload["chunk_id"].GetStringValue()] = true
			storedContent[docID+"\x00"+p.Payload["content_hash"].GetStringValue()] = true
		}
	}

	fresh := make([]commonModels.IndexEntry, 0, len(validated))
	for _, e := range validated {
		ck := e.Metadata.DocumentId + "\x00" + e.ContentHash
		if storedChunks[e.ChunkId] || storedContent[ck] {
			continue
		}
		storedChunks[e.ChunkId] = true
		storedContent[ck] = true
		fresh = append(fresh, e)
	}
	seq := db.nextSeq(len(fresh))
	for i := range fresh {
		fresh[i].Seq = seq + int64(i)
	}
	return fresh, nil
}

// upsert writes entries under the generation given for their document.
func (db *Store) upsert(ctx context.Context, collectionName string, entries []commonModels.IndexEntry, generations map[string]int64) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		gen := generations[e.Metadata.DocumentId]
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(e.ChunkId, gen)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(toPayload(e, gen)),
		}
	}
	_, err := db.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (db *Store) DeleteDocument(ctx context.Context, collectionName, docID string) (int, error) {
	if err := db.ensureCollection(ctx, collectionName); err != nil {
		return 0, err
	}
	unlock := db.lock(collectionName)
	defer unlock()

	visible := withHidden(documentFilter(docID), db.hiddenIn(collectionName))
	count, err := db.client.Count(ctx, &qdrant.CountPoints{CollectionName: collectionName, Filter: visible, Exact: qdrant.PtrOf(true)})
	if err != nil {
		return 0, fmt.Errorf("qdrant count %s: %w", docID, err)
	}
	if count == 0 {
		return 0, nil
	}
	if _, err := db.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(docID)),
	}); err != nil {
		return 0, fmt.Errorf("qdrant delete %s: %w", docID, err)
	}
	if err := db.dropGenerationRecord(ctx, collectionName, docID); err != nil {
		return 0, err
	}
	db.forget(collectionName, docID)
	logger.FromContext(ctx).Info("document deleted from qdrant", "collection", collectionName, "document", docID, "chunks", count)
	return int(count), nil
}

func (db *Store) DocumentChunkIDs(ctx context.Context, collectionName, docID string) ([]string, error) {
	if err := db.ensureCollection(ctx, collectionName); err != nil {
		return nil, err
	}
	points, err := db.scrollDocument(ctx, collectionName, docID)
	if err != nil {
		return nil, err
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Payload["seq"].GetIntegerValue() < points[j].Payload["seq"].GetIntegerValue()
	})
	ids := make([]string, 0, len(points))
	for _, p := range points {
		ids = append(ids, p.Payload["chunk_id"].GetStringValue())
	}
	return ids, nil
}

func documentFilter(docID string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch("document_id", docID)}}
}

func (db *Store) scrollDocument(ctx context.Context, collectionName, docID string) ([]*qdrant.RetrievedPoint, error) {
	filter := withHidden(documentFilter(docID), db.hiddenIn(collectionName))
	return db.scroll(ctx, collectionName, filter, "chunk_id", "content_hash", "seq")
}

func (db *Store) scroll(ctx context.Context, collectionName string, filter *qdrant.Filter, fields ...string) ([]*qdrant.RetrievedPoint, error) {
	var all []*qdrant.RetrievedPoint
	var offset *qdrant.PointId
	for {
		points, next, err := db.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: collectionName,
			Filter:         filter,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(scrollPage)),
			WithPayload:    qdrant.NewWithPayloadInclude(fields...),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll %s: %w", collectionName, err)
		}
		all = append(all, points...)
		if next == nil {
			return all, nil
		}
		offset = next
	}
}

func (db *Store) Search(ctx context.Context, collectionName string, vectorFloat []float32, k int, filter vectorDB.Filter) ([]commonModels.SearchResult, error) {
	if k <= 0 {
		return []commonModels.SearchResult{}, nil
	}
	if err := db.ensureCollection(ctx, collectionName); err != nil {
		return nil, err
	}
	if uint64(len(vectorFloat)) != db.dimension {
		return nil, ragErrors.InvalidArgument("search", "query has dimension %d, collection %s uses %d", len(vectorFloat), collectionName, db.dimension)
	}
	q, err := vectorDB.Normalize(vectorFloat)
	if err != nil {
		return nil, ragErrors.InvalidArgument("search", "query vector: %v", err)
	}

	limit := k + tieMargin
	var hits []*qdrant.ScoredPoint
	for {
		var err error
		hits, err = db.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collectionName,
			Query:          qdrant.NewQuery(q...),
			Filter:         withHidden(buildFilter(filter), db.hiddenIn(collectionName)),
			Limit:          qdrant.PtrOf(uint64(limit)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			logger.FromContext(ctx).Error("Error querying Qdrant", "error", err)
			return nil, fmt.Errorf("qdrant query: %w", err)
		}
		if !tieCutOff(hits, k, limit) {
			break
		}
		limit *= 2
	}

	results := make([]commonModels.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, fromPayload(hit.Payload, hit.Score))
	}
	vectorDB.SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// tieCutOff reports whether a full page of hits ends inside the group tied with the k-th score,
// in which case the group may continue past the page.
func tieCutOff(hits []*qdrant.ScoredPoint, k, limit int) bool {
	if len(hits) < limit || len(hits) <= k {
		return false
	}
	return hits[k-1].GetScore() == hits[len(hits)-1].GetScore()
}

func buildFilter(f vectorDB.Filter) *qdrant.Filter {
	if f.IsEmpty() {
		return nil
	}
	var must []*qdrant.Condition
	if len(f.DocumentIds) > 0 {
		must = append(must, qdrant.NewMatchKeywords("document_id", f.DocumentIds...))
	}
	if len(f.Sources) > 0 {
		must = append(must, qdrant.NewMatchKeywords("source", f.Sources...))
	}
	if f.Title != "" {
		must = append(must, qdrant.NewMatch("title", f.Title))
	}
	return &qdrant.Filter{Must: must}
}

func toPayload(e commonModels.IndexEntry, generation int64) map[string]any {
	m := e.Metadata
	return map[string]any{
		"chunk_id":        e.ChunkId,
		"generation":      generation,
		"content_hash":    e.ContentHash,
		"seq":             e.Seq,
		"document_id":     m.DocumentId,
		"title":           m.Title,
		"source":          m.Source,
		"start":           int64(m.Start),
		"end":             int64(m.End),
		"document_tokens": int64(m.DocumentTokens),
		"offset_seconds":  m.OffsetSeconds,
		"text":            m.Text,
		"ingested_at":     time.Now().Unix(),
	}
}

func fromPayload(p map[string]*qdrant.Value, score float32) commonModels.SearchResult {
	return commonModels.SearchResult{
		ChunkId: p["chunk_id"].GetStringValue(),
		Score:   score,
		Seq:     p["seq"].GetIntegerValue(),
		Metadata: commonModels.EntryMetadata{
			DocumentId:     p["document_id"].GetStringValue(),
			Title:          p["title"].GetStringValue(),
			Source:         p["source"].GetStringValue(),
			Start:          int(p["start"].GetIntegerValue()),
			End:            int(p["end"].GetIntegerValue()),
			DocumentTokens: int(p["document_tokens"].GetIntegerValue()),
			OffsetSeconds:  p["offset_seconds"].GetDoubleValue(),
			Text:           p["text"].GetStringValue(),
		},
	}
}

func (db *Store) Stats(ctx context.Context, collectionName string) (commonModels.IndexStats, error) {
	if err := db.ensureCollection(ctx, collectionName); err != nil {
		return commonModels.IndexStats{}, err
	}
	points, err := db.scroll(ctx, collectionName, withHidden(nil, db.hiddenIn(collectionName)), "document_id")
	if err != nil {
		return commonModels.IndexStats{}, err
	}
	docs := map[string]struct{}{}
	for _, p := range points {
		docs[p.Payload["document_id"].GetStringValue()] = struct{}{}
	}
	return commonModels.IndexStats{
		Collection: collectionName,
		Chunks:     len(points),
		Documents:  len(docs),
		Dimension:  int(db.dimension),
		Location:   db.address,
	}, nil
}

func (db *Store) ClearCollection(ctx context.Context, collectionName string) error {
	unlock := db.lock(collectionName)
	defer unlock()
	if err := db.client.DeleteCollection(ctx, collectionName); err != nil {
		return fmt.Errorf("qdrant drop %s: %w", collectionName, err)
	}
	records := generationsCollection(collectionName)
	exists, err := db.client.CollectionExists(ctx, records)
	if err != nil {
		return fmt.Errorf("qdrant drop %s: %w", records, err)
	}
	if exists {
		if err := db.client.DeleteCollection(ctx, records); err != nil {
			return fmt.Errorf("qdrant drop %s: %w", records, err)
		}
	}
	db.mu.Lock()
	delete(db.ensured, collectionName)
	delete(db.hidden, collectionName)
	db.mu.Unlock()
	return nil
}

// Compact is a no-op: Qdrant's optimizer vacuums deleted points on its own.
func (db *Store) Compact(ctx context.Context, collectionName string) error {
	logger.FromContext(ctx).Debug("compaction delegated to qdrant optimizer", "collection", collectionName)
	return nil
}
