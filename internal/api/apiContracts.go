package api

import (
	"time"

	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/domain/sessionModel"
	"github.com/akolanti/TranscriptRAG/internal/rag/ingest"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	SessionId string            `json:"session_id,omitempty" example:"0b6f1c7e-5d0e-4a59-9a51-0c4f6a2d7f11"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type RAGResponse struct {
	Question  string                  `json:"question"`
	Answer    string                  `json:"answer"`
	Citations []commonModels.Citation `json:"citations"`
}

type IngestResult struct {
	DocumentName   string `json:"document_name,omitempty"`
	ChunksInserted int    `json:"chunks_inserted"`
	ChunksSkipped  int    `json:"chunks_skipped"`
}

type Result struct {
	Status              string        `json:"status"`
	RAGExternalResponse *RAGResponse  `json:"rag_response,omitempty"`
	IngestResponse      *IngestResult `json:"ingest_response,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	SessionId string `json:"session_id,omitempty"`
	StatusURL string `json:"status_url"`
}

// requests---------------------

// ChatRequest starts an async question. An empty session id opens a new session.
type ChatRequest struct {
	Message     string `json:"message" validate:"required" example:"What did the guest say about interest rates?"`
	SessionId   string `json:"session_id,omitempty"`
	SessionName string `json:"session_name,omitempty"`
	UseRAG      *bool  `json:"use_rag,omitempty"`
	TopK        int    `json:"top_k,omitempty" example:"5"`
}

type FilterRequest struct {
	DocumentIds []string `json:"document_ids,omitempty"`
	Sources     []string `json:"sources,omitempty"`
	Title       string   `json:"title,omitempty"`
}

type AskRequest struct {
	SessionId string         `json:"session_id" validate:"required"`
	Message   string         `json:"message" validate:"required"`
	UseRAG    *bool          `json:"use_rag,omitempty"`
	TopK      int            `json:"top_k,omitempty"`
	Filter    *FilterRequest `json:"filter,omitempty"`
}

type AskResponse struct {
	SessionId    string                  `json:"session_id"`
	Answer       string                  `json:"answer"`
	Citations    []commonModels.Citation `json:"citations"`
	NoContext    bool                    `json:"no_context"`
	UserSeq      int64                   `json:"user_seq"`
	AssistantSeq int64                   `json:"assistant_seq"`
}

type SearchRequest struct {
	Query  string         `json:"query" validate:"required" example:"housing market"`
	TopK   int            `json:"top_k,omitempty" example:"5"`
	Filter *FilterRequest `json:"filter,omitempty"`
}

type SearchResponse struct {
	Results []commonModels.SearchResult `json:"results"`
}

type CreateSessionRequest struct {
	Name string `json:"name,omitempty" example:"Episode 12 notes"`
}

type SessionListResponse struct {
	Sessions []sessionModel.Session `json:"sessions"`
}

type SessionResponse struct {
	Session sessionModel.Session `json:"session"`
	Turns   []sessionModel.Turn  `json:"turns"`
}

// IngestDocumentRequest carries either one transcript or a batch.
type IngestDocumentRequest struct {
	Document  *commonModels.Document  `json:"document,omitempty"`
	Documents []commonModels.Document `json:"documents,omitempty"`
}

type IngestDocumentResponse = ingest.BatchReport

// IngestDirectoryRequest names a folder under the server's transcripts directory; empty means the root.
type IngestDirectoryRequest struct {
	Directory string `json:"directory" example:"season-2"`
}

type DeleteDocumentResponse struct {
	DocumentId string `json:"document_id"`
	Removed    int    `json:"removed"`
}
