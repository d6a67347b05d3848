package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/TranscriptRAG/internal/adapter"
	"github.com/akolanti/TranscriptRAG/internal/adapter/utils"
	"github.com/akolanti/TranscriptRAG/internal/api"
	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/rag/ingest"
	"github.com/akolanti/TranscriptRAG/pkg/logger_i"
)

var logRH = logger_i.NewLogger("RequestHandler")

// newJobData is what the HTTP layer knows about a job before it is queued.
type newJobData struct {
	id               string
	sessionId        string
	message          string
	useRAG           bool
	topK             int
	traceId          string
	isDocumentIngest bool
	documentName     string
	documentSource   string
}

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ChatHandler godoc
// @Summary      Start a new chat job
// @Description  Accepts a message, records it against a session (a new one when session_id is empty) and queues a background job. Poll the returned status URL for the answer.
// @Tags         Messaging
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.ChatRequest      true  "Message and optional session"
// @Success      202      {object}  api.InitJobResponse  "Job successfully created"
// @Failure      400      {object}  api.JobResponse      "Invalid request data"
// @Failure      404      {object}  api.JobResponse      "Unknown session"
// @Router       /chat [post]
func ChatHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request ", "remote", request.RemoteAddr)
		return
	}

	var requestData api.ChatRequest
	if err := decodeJSON(w, request, &requestData, false); err != nil {
		writeError(w, request, "", err)
		return
	}
	if strings.TrimSpace(requestData.Message) == "" {
		logRH.FromContext(request.Context()).Warn("Bad Chat Request", "sessionId", requestData.SessionId)
		WriteErrorResponse(w, http.StatusBadRequest, requestData.SessionId, "message is required")
		return
	}

	sessionId := requestData.SessionId
	if sessionId == "" {
		created, err := handlerInstance.sessions.CreateSession(request.Context(), requestData.SessionName)
		if err != nil {
			writeError(w, request, "", err)
			return
		}
		sessionId = created.Id
		logRH.FromContext(request.Context()).Debug("New chat session", "sessionId", sessionId)
	} else if _, _, err := handlerInstance.sessions.GetSession(request.Context(), sessionId); err != nil {
		writeError(w, request, sessionId, err)
		return
	}

	opts := adapter.ToAskOptions(requestData.UseRAG, requestData.TopK, nil)
	processNewJobData(request, w, newJobData{
		sessionId: sessionId,
		message:   requestData.Message,
		useRAG:    opts.UseRAG,
		topK:      opts.K,
	})
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a specific job using its ID.
// @Tags         Job Status
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse   "Successful retrieval of job status"
// @Failure      404  {object}  api.JobResponse   "Job not found (returns Error object within JobResponse)"
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	logRH.FromContext(r.Context()).Debug("Get Status Request", "jobId", idString)
	if idString == "" {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}

	result, isFound := GetJobStatus(r.Context(), idString)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// PostIngestHandler handles the uploading of transcript files for ingestion.
// @Summary      Upload a transcript for ingestion
// @Description  Receives a transcript (txt, pdf, docx, rtf, odt) and an optional JSON sidecar via multipart/form-data, stores them in a temporary directory and queues an ingestion job.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        document_name  formData  string  true   "Display name of the transcript; becomes its id and title unless the sidecar says otherwise"
// @Param        document       formData  file    true   "The transcript file"
// @Param        metadata       formData  file    false  "Sidecar JSON (document_id, title, source, published, duration, description)"
// @Success      202  {object}  api.InitJobResponse "Accepted - returns job id"
// @Failure      400  {object}  api.JobResponse "Bad Request - missing fields, unsupported type or file too large"
// @Failure      500  {object}  api.JobResponse "Internal Server Error - storage or write error"
// @Router       /ingest [post]
func PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", "remote", r.RemoteAddr)
		return
	}

	targetDir, err := getTargetDirectory()
	if err != nil {
		logRH.Error("Couldn't get target directory", "err", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Storage error")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logRH.Warn("Couldn't clean multipart temp files", "error", err)
		}
	}()

	docName := r.FormValue("document_name")
	if strings.TrimSpace(docName) == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document_name is required")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	name := uploadName(docName, fileMetadata.Filename)
	if !ingest.Supported(name) {
		WriteErrorResponse(w, http.StatusBadRequest, docName, fmt.Sprintf("unsupported file type %q", filepath.Ext(name)))
		return
	}

	// the stored file keeps the loader-visible extension and a unique prefix
	stem := fmt.Sprintf("%d-%s", time.Now().UnixNano(), strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	tempFilePath := filepath.Join(targetDir, stem+filepath.Ext(name))
	if err := saveUpload(fileReader, tempFilePath); err != nil {
		logRH.Error("Couldn't store upload", "path", tempFilePath, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Write error")
		return
	}

	sidecar, _, err := r.FormFile("metadata")
	switch {
	case err == nil:
		defer sidecar.Close()
		if err := saveUpload(sidecar, filepath.Join(targetDir, stem+".json")); err != nil {
			removeUpload(tempFilePath)
			WriteErrorResponse(w, http.StatusInternalServerError, docName, "Write error")
			return
		}
	case !errors.Is(err, http.ErrMissingFile):
		removeUpload(tempFilePath)
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Could not retrieve metadata")
		return
	}

	queued := processNewJobData(r, w, newJobData{
		isDocumentIngest: true,
		documentName:     name,
		documentSource:   tempFilePath,
	})
	if !queued {
		removeUpload(tempFilePath)
		removeUpload(filepath.Join(targetDir, stem+".json"))
	}
}

func saveUpload(src multipart.File, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		removeUpload(path)
		return err
	}
	return dst.Close()
}

func removeUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logRH.Warn("Couldn't remove upload", "path", path, "error", err)
	}
}
