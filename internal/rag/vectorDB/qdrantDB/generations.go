package qdrantDB

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Every point carries the generation of its document. A replace writes the new chunks under the
// next generation, flips the document's record in the companion collection with a single upsert,
// then drops the old generation. Generations that are still being written or are being retired
// stay hidden from this process's reads.

const generationsSuffix = "__generations"

type docGeneration struct {
	document   string
	generation int64
}

func generationsCollection(collection string) string {
	return collection + generationsSuffix
}

func recordID(docID string) *qdrant.PointId {
	return qdrant.NewID(uuid.NewSHA1(uuid.NameSpaceOID, []byte("document/"+docID)).String())
}

// withHidden extends f so that it excludes the given document generations.
func withHidden(f *qdrant.Filter, hidden []docGeneration) *qdrant.Filter {
	if len(hidden) == 0 {
		return f
	}
	if f == nil {
		f = &qdrant.Filter{}
	}
	for _, h := range hidden {
		f.MustNot = append(f.MustNot, qdrant.NewFilterAsCondition(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", h.document),
				qdrant.NewMatchInt("generation", h.generation),
			},
		}))
	}
	return f
}

func (db *Store) hide(collection string, g docGeneration) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.hidden[collection] == nil {
		db.hidden[collection] = map[docGeneration]bool{}
	}
	db.hidden[collection][g] = true
}

func (db *Store) reveal(collection string, g docGeneration) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.hidden[collection], g)
}

// forget drops every hidden generation of a deleted document.
func (db *Store) forget(collection, docID string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for g := range db.hidden[collection] {
		if g.document == docID {
			delete(db.hidden[collection], g)
		}
	}
}

// flip makes next visible and hides previous in one step for readers of this process.
func (db *Store) flip(collection string, next, previous docGeneration) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.hidden[collection] == nil {
		db.hidden[collection] = map[docGeneration]bool{}
	}
	delete(db.hidden[collection], next)
	db.hidden[collection][previous] = true
}

func (db *Store) hiddenIn(collection string) []docGeneration {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]docGeneration, 0, len(db.hidden[collection]))
	for g := range db.hidden[collection] {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].document != out[j].document {
			return out[i].document < out[j].document
		}
		return out[i].generation < out[j].generation
	})
	return out
}

// activeGenerations reads the committed generation of each document. Documents without a record are at 0.
func (db *Store) activeGenerations(ctx context.Context, collection string, docIDs []string) (map[string]int64, error) {
	active := make(map[string]int64, len(docIDs))
	if len(docIDs) == 0 {
		return active, nil
	}
	ids := make([]*qdrant.PointId, 0, len(docIDs))
	for _, d := range docIDs {
		ids = append(ids, recordID(d))
	}
	records, err := db.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: generationsCollection(collection),
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant read generations: %w", err)
	}
	for _, r := range records {
		active[r.Payload["document_id"].GetStringValue()] = r.Payload["generation"].GetIntegerValue()
	}
	return active, nil
}

// commitGeneration is the single write that makes g the document's live version.
func (db *Store) commitGeneration(ctx context.Context, collection string, g docGeneration) error {
	_, err := db.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: generationsCollection(collection),
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      recordID(g.document),
			Vectors: qdrant.NewVectors(1),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": g.document,
				"generation":  g.generation,
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant commit generation %d of %s: %w", g.generation, g.document, err)
	}
	return nil
}

func (db *Store) dropGenerationRecord(ctx context.Context, collection, docID string) error {
	_, err := db.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: generationsCollection(collection),
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(recordID(docID)),
	})
	if err != nil {
		return fmt.Errorf("qdrant drop generation record of %s: %w", docID, err)
	}
	return nil
}

// deleteGeneration removes the points of one generation of a document.
func (db *Store) deleteGeneration(ctx context.Context, collection string, g docGeneration) error {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{
		qdrant.NewMatch("document_id", g.document),
		qdrant.NewMatchInt("generation", g.generation),
	}}
	_, err := db.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete generation %d of %s: %w", g.generation, g.document, err)
	}
	return nil
}

// retireGenerations removes every point of the document outside the committed generation.
func (db *Store) retireGenerations(ctx context.Context, collection string, committed docGeneration) error {
	filter := &qdrant.Filter{
		Must:    []*qdrant.Condition{qdrant.NewMatch("document_id", committed.document)},
		MustNot: []*qdrant.Condition{qdrant.NewMatchInt("generation", committed.generation)},
	}
	_, err := db.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("qdrant retire old generations of %s: %w", committed.document, err)
	}
	return nil
}

// staleGenerations lists points that do not belong to their document's active generation.
func staleGenerations(points []*qdrant.RetrievedPoint, active map[string]int64) []*qdrant.PointId {
	var stale []*qdrant.PointId
	for _, p := range points {
		doc := p.Payload["document_id"].GetStringValue()
		if p.Payload["generation"].GetIntegerValue() != active[doc] {
			stale = append(stale, p.Id)
		}
	}
	return stale
}

// reconcile drops what an interrupted replace left behind: points of a generation that was
// never committed, or of one that was superseded but not yet deleted.
func (db *Store) reconcile(ctx context.Context, collection string) error {
	records, err := db.scroll(ctx, generationsCollection(collection), nil, "document_id", "generation")
	if err != nil {
		return err
	}
	active := make(map[string]int64, len(records))
	for _, r := range records {
		active[r.Payload["document_id"].GetStringValue()] = r.Payload["generation"].GetIntegerValue()
	}
	points, err := db.scroll(ctx, collection, nil, "document_id", "generation")
	if err != nil {
		return err
	}
	stale := staleGenerations(points, active)
	if len(stale) == 0 {
		return nil
	}
	if _, err := db.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorIDs(stale),
	}); err != nil {
		return fmt.Errorf("qdrant drop stale generations: %w", err)
	}
	logger.FromContext(ctx).Warn("Dropped chunks left by an interrupted replace", "collection", collection, "chunks", len(stale))
	return nil
}
