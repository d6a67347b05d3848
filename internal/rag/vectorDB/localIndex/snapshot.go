package localIndex

import (
	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
)

// snapshot is an immutable view of one collection. Writers build a new one and swap it in.
type snapshot struct {
	entries   []commonModels.IndexEntry
	byChunk   map[string]struct{}
	byContent map[string]struct{}
	dim       int
	nextSeq   int64
}

func contentKey(docID, hash string) string {
	return docID + "\x00" + hash
}

func newSnapshot(entries []commonModels.IndexEntry, dim int, nextSeq int64) *snapshot {
	s := &snapshot{
		entries:   entries,
		byChunk:   make(map[string]struct{}, len(entries)),
		byContent: make(map[string]struct{}, len(entries)),
		dim:       dim,
		nextSeq:   nextSeq,
	}
	for _, e := range entries {
		s.byChunk[e.ChunkId] = struct{}{}
		s.byContent[contentKey(e.Metadata.DocumentId, e.ContentHash)] = struct{}{}
	}
	return s
}

func emptySnapshot() *snapshot {
	return newSnapshot(nil, 0, 1)
}

func (s *snapshot) has(e commonModels.IndexEntry) bool {
	if _, ok := s.byChunk[e.ChunkId]; ok {
		return true
	}
	_, ok := s.byContent[contentKey(e.Metadata.DocumentId, e.ContentHash)]
	return ok
}

// without returns the entries that do not belong to docID.
func (s *snapshot) without(docID string) (kept []commonModels.IndexEntry, removed int) {
	kept = make([]commonModels.IndexEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Metadata.DocumentId == docID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	return kept, removed
}

func (s *snapshot) documents() int {
	docs := make(map[string]struct{})
	for _, e := range s.entries {
		docs[e.Metadata.DocumentId] = struct{}{}
	}
	return len(docs)
}

// dedupe drops entries already present in s or repeated within the batch, and assigns sequence numbers.
func (s *snapshot) dedupe(batch []commonModels.IndexEntry) []commonModels.IndexEntry {
	seenChunk := make(map[string]struct{}, len(batch))
	seenContent := make(map[string]struct{}, len(batch))
	out := make([]commonModels.IndexEntry, 0, len(batch))
	seq := s.nextSeq
	for _, e := range batch {
		ck := contentKey(e.Metadata.DocumentId, e.ContentHash)
		if s.has(e) {
			continue
		}
		if _, dup := seenChunk[e.ChunkId]; dup {
			continue
		}
		if _, dup := seenContent[ck]; dup {
			continue
		}
		seenChunk[e.ChunkId] = struct{}{}
		seenContent[ck] = struct{}{}
		e.Seq = seq
		seq++
		out = append(out, e)
	}
	return out
}
