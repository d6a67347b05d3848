package handlers

import (
	"net/http"
	"strings"

	"github.com/akolanti/TranscriptRAG/internal/adapter"
	"github.com/akolanti/TranscriptRAG/internal/adapter/utils"
	"github.com/akolanti/TranscriptRAG/internal/api"
	"github.com/akolanti/TranscriptRAG/internal/domain/commonModels"
	"github.com/akolanti/TranscriptRAG/internal/rag/ingest"
)

// AskHandler godoc
// @Summary      Ask a question synchronously
// @Description  Answers a message inside an existing session using retrieved transcript context. Both turns are recorded; a failed answer is recorded as a failed turn.
// @Tags         Messaging
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.AskRequest   true  "Session, message and retrieval options"
// @Success      200      {object}  api.AskResponse
// @Failure      400      {object}  api.JobResponse  "Empty message or bad options"
// @Failure      404      {object}  api.JobResponse  "Unknown session"
// @Failure      502      {object}  api.JobResponse  "Embedding or completion provider failed"
// @Router       /ask [post]
func AskHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	var req api.AskRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, "", err)
		return
	}
	if req.SessionId == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "session_id is required")
		return
	}

	answer, err := handlerInstance.ragService.Ask(r.Context(), req.SessionId, req.Message,
		adapter.ToAskOptions(req.UseRAG, req.TopK, req.Filter))
	if err != nil {
		writeError(w, r, req.SessionId, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAskResponse(req.SessionId, answer))
}

// SearchHandler godoc
// @Summary      Search transcript chunks
// @Description  Ranks stored chunks by similarity to the query, optionally restricted to documents, sources or a title.
// @Tags         Retrieval
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.SearchRequest   true  "Query and filter"
// @Success      200      {object}  api.SearchResponse
// @Failure      400      {object}  api.JobResponse
// @Router       /search [post]
func SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	var req api.SearchRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, "", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "query is required")
		return
	}

	results, err := handlerInstance.ragService.Search(r.Context(), req.Query, req.TopK, adapter.ToFilter(req.Filter))
	if err != nil {
		writeError(w, r, "", err)
		return
	}
	if results == nil {
		results = []commonModels.SearchResult{}
	}
	writeJsonResponse(w, http.StatusOK, api.SearchResponse{Results: results})
}

// IngestDocumentHandler godoc
// @Summary      Ingest parsed transcripts
// @Description  Chunks, embeds and indexes one document or a batch. Re-ingesting an unchanged document is a no-op; a changed one replaces its previous chunks.
// @Tags         Ingestion
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.IngestDocumentRequest   true  "A document or a list of documents"
// @Success      200      {object}  api.IngestDocumentResponse
// @Failure      400      {object}  api.JobResponse
// @Failure      422      {object}  api.JobResponse  "Document rejected"
// @Router       /ingest/document [post]
func IngestDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	var req api.IngestDocumentRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, "", err)
		return
	}

	switch {
	case req.Document != nil && len(req.Documents) > 0:
		WriteErrorResponse(w, http.StatusBadRequest, "", "send either document or documents, not both")
	case req.Document != nil:
		report, err := handlerInstance.ragService.Ingest(r.Context(), *req.Document)
		if err != nil {
			writeError(w, r, req.Document.Id, err)
			return
		}
		writeJsonResponse(w, http.StatusOK, ingest.BatchReport{
			Documents: []ingest.Report{report},
			Inserted:  report.Inserted,
			Skipped:   report.Skipped,
			Failed:    report.Failed,
		})
	case len(req.Documents) > 0:
		report, err := handlerInstance.ragService.IngestBatch(r.Context(), req.Documents)
		if err != nil {
			writeError(w, r, "", err)
			return
		}
		writeJsonResponse(w, http.StatusOK, report)
	default:
		WriteErrorResponse(w, http.StatusBadRequest, "", "no document supplied")
	}
}

// IngestDirectoryHandler godoc
// @Summary      Ingest a transcripts folder
// @Description  Loads every supported transcript in a folder of the server's transcripts directory, with its <name>.json sidecar, and ingests them as one batch. Unreadable files are reported as failures.
// @Tags         Ingestion
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.IngestDirectoryRequest   true  "Folder relative to the transcripts directory"
// @Success      200      {object}  api.IngestDocumentResponse
// @Failure      400      {object}  api.JobResponse  "Path leaves the transcripts directory"
// @Failure      404      {object}  api.JobResponse  "No such folder"
// @Router       /ingest/directory [post]
func IngestDirectoryHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	var req api.IngestDirectoryRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, "", err)
		return
	}
	report, err := handlerInstance.ragService.IngestDirectory(r.Context(), req.Directory)
	if err != nil {
		writeError(w, r, "", err)
		return
	}
	writeJsonResponse(w, http.StatusOK, report)
}

// DeleteDocumentHandler godoc
// @Summary      Remove a document from the index
// @Tags         Ingestion
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  api.DeleteDocumentResponse
// @Failure      404  {object}  api.JobResponse
// @Router       /documents/{id} [delete]
func DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	id := utils.GetChiURLParam(r, "id")
	removed, err := handlerInstance.ragService.DeleteDocument(r.Context(), id)
	if err != nil {
		writeError(w, r, id, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.DeleteDocumentResponse{DocumentId: id, Removed: removed})
}

// IndexStatsHandler godoc
// @Summary      Index statistics
// @Description  Chunk and document counts, dimension and location of the collection.
// @Tags         Retrieval
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  commonModels.IndexStats
// @Router       /index/stats [get]
func IndexStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	stats, err := handlerInstance.ragService.Stats(r.Context())
	if err != nil {
		writeError(w, r, "", err)
		return
	}
	writeJsonResponse(w, http.StatusOK, stats)
}

// ClearIndexHandler godoc
// @Summary      Drop every chunk of the collection
// @Tags         Retrieval
// @Security     BearerAuth
// @Success      204
// @Router       /index [delete]
func ClearIndexHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	if err := handlerInstance.ragService.ClearCollection(r.Context()); err != nil {
		writeError(w, r, "", err)
		return
	}
	logRH.FromContext(r.Context()).Warn("Collection cleared", "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}

// CompactIndexHandler godoc
// @Summary      Reclaim space left by deleted chunks
// @Tags         Retrieval
// @Security     BearerAuth
// @Success      204
// @Router       /index/compact [post]
func CompactIndexHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	if err := handlerInstance.ragService.Compact(r.Context()); err != nil {
		writeError(w, r, "", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
