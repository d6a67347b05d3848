package commonModels

import "time"

// Document is a transcript handed over by the transcription stage.
type Document struct {
	Id          string            `json:"document_id"`
	Title       string            `json:"title"`
	Source      string            `json:"source,omitempty"`
	Text        string            `json:"text"`
	Duration    time.Duration     `json:"duration,omitempty"`
	Published   time.Time         `json:"published,omitzero"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ContentType DocType           `json:"content_type,omitempty"`
}

// Chunk is a token span [Start, End) of a document.
type Chunk struct {
	Id          string `json:"chunk_id"`
	DocumentId  string `json:"document_id"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	TokenCount  int    `json:"token_count"`
	Text        string `json:"text"`
	ContentHash string `json:"content_hash"`
}

// EntryMetadata is the denormalised display data stored next to each vector.
type EntryMetadata struct {
	DocumentId     string  `json:"document_id"`
	Title          string  `json:"title"`
	Source         string  `json:"source,omitempty"`
	Start          int     `json:"start"`
	End            int     `json:"end"`
	DocumentTokens int     `json:"document_tokens"`
	OffsetSeconds  float64 `json:"offset_seconds"`
	Text           string  `json:"text"`
}

type IndexEntry struct {
	ChunkId     string        `json:"chunk_id"`
	ContentHash string        `json:"content_hash"`
	Seq         int64         `json:"seq"`
	Vector      []float32     `json:"-"`
	Metadata    EntryMetadata `json:"metadata"`
}

type SearchResult struct {
	ChunkId  string        `json:"chunk_id"`
	Score    float32       `json:"score"`
	Seq      int64         `json:"-"`
	Metadata EntryMetadata `json:"metadata"`
}

type Citation struct {
	ChunkId    string        `json:"chunk_id"`
	DocumentId string        `json:"document_id"`
	Title      string        `json:"title"`
	Offset     time.Duration `json:"offset"`
	Score      float32       `json:"score"`
	Label      string        `json:"label"`
}

type IndexStats struct {
	Collection string `json:"collection"`
	Chunks     int    `json:"chunks"`
	Documents  int    `json:"documents"`
	Dimension  int    `json:"dimension"`
	Location   string `json:"location"`
}

type DocType string

var PDF DocType = "PDF"
var DOCX DocType = "DOCX"
var TXT DocType = "TXT"
var RTF DocType = "RTF"
var ODT DocType = "ODT"
var ERR DocType = "ERROR"
