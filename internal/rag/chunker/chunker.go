// Package chunker splits transcript text into overlapping token windows with stable identities.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
)

const chunkIdLength = 32

type Chunker struct {
	window    int
	overlap   int
	lookahead int
}

type Option func(*Chunker)

// WithWindow sets the window size in tokens.
func WithWindow(tokens int) Option {
	return func(c *Chunker) { c.window = tokens }
}

// WithOverlap sets how many tokens consecutive chunks share.
func WithOverlap(tokens int) Option {
	return func(c *Chunker) { c.overlap = tokens }
}

// WithLookahead sets how far past the raw window edge a sentence boundary is searched for.
func WithLookahead(tokens int) Option {
	return func(c *Chunker) { c.lookahead = tokens }
}

func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		window:    config.ChunkWindowTokens,
		overlap:   config.ChunkOverlapTokens,
		lookahead: config.ChunkLookaheadTokens,
	}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.window <= 0:
		return nil, ragErrors.InvalidArgument("chunker.New", "window must be positive, got %d", c.window)
	case c.overlap < 0 || c.overlap >= c.window:
		return nil, ragErrors.InvalidArgument("chunker.New", "overlap must be in [0, %d), got %d", c.window, c.overlap)
	case c.lookahead < 0:
		return nil, ragErrors.InvalidArgument("chunker.New", "lookahead must not be negative, got %d", c.lookahead)
	}
	return c, nil
}

// MaxTokens is the largest chunk this chunker can emit.
func (c *Chunker) MaxTokens() int {
	return c.window + c.lookahead
}

func (c *Chunker) Overlap() int {
	return c.overlap
}

// Chunk is deterministic in (doc.Id, doc.Text) and the chunker options.
func (c *Chunker) Chunk(doc commonModels.Document) []commonModels.Chunk {
	tokens := Tokenize(doc.Text)
	n := len(tokens)
	if n == 0 {
		return []commonModels.Chunk{}
	}

	chunks := make([]commonModels.Chunk, 0, n/(c.window-c.overlap)+1)
	for start := 0; ; {
		end := c.windowEnd(doc.Text, tokens, start)
		text := doc.Text[tokens[start].Start:tokens[end-1].End]
		chunks = append(chunks, commonModels.Chunk{
			Id:          ChunkId(doc.Id, start, text),
			DocumentId:  doc.Id,
			Start:       start,
			End:         end,
			TokenCount:  end - start,
			Text:        text,
			ContentHash: ContentHash(text),
		})
		if end >= n {
			break
		}
		start = end - c.overlap
	}
	return chunks
}

func (c *Chunker) windowEnd(text string, tokens []Span, start int) int {
	n := len(tokens)
	end := start + c.window
	if end >= n {
		return n
	}
	limit := min(end-1+c.lookahead, n-1)
	for j := end - 1; j <= limit; j++ {
		if endsSentence(text[tokens[j].Start:tokens[j].End]) {
			return j + 1
		}
	}
	return end
}

func ChunkId(documentId string, start int, text string) string {
	h := sha256.New()
	h.Write([]byte(documentId))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(start)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))[:chunkIdLength]
}

func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
