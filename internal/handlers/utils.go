package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/akolanti/TranscriptRAG/internal/adapter"
	"github.com/akolanti/TranscriptRAG/internal/adapter/utils"
	"github.com/akolanti/TranscriptRAG/internal/config"
	"github.com/akolanti/TranscriptRAG/internal/domain/ragErrors"
)

const maxJSONBody = 4 << 20

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response", "error", err)
	}
}

func validateContext(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		logRH.FromContext(ctx).Warn("context error", "error", err)
		return false
	}
	return true
}

func traceIdFrom(ctx context.Context) string {
	traceId, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return traceId
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

// writeError maps a core error to its status code. Server-side failures are logged, not echoed.
func writeError(w http.ResponseWriter, r *http.Request, id string, err error) {
	code := ragErrors.HTTPStatus(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		logRH.FromContext(r.Context()).Error("Request failed", "path", r.URL.Path, "error", err)
		message = "Internal error"
	} else {
		logRH.FromContext(r.Context()).Warn("Request failed", "path", r.URL.Path, "code", code, "error", err)
	}
	WriteErrorResponse(w, code, id, message)
}

// decodeJSON reads a bounded JSON body. An empty body is accepted when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logRH.Error("Couldn't close the request body", "error", err)
		}
	}(r.Body)

	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		return ragErrors.InvalidArgument("decode request", "malformed JSON body: %v", err)
	}
	return nil
}

func getTargetDirectory() (string, error) {
	targetDir := config.TemporaryUploadDir
	if !filepath.IsAbs(targetDir) {
		root, err := os.Getwd()
		if err != nil {
			return "", err
		}
		targetDir = filepath.Join(root, targetDir)
	}
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", err
	}
	return targetDir, nil
}

// uploadName is the name the loader sees: the display name, carrying the uploaded file's extension
// since text extraction dispatches on it.
func uploadName(displayName, fileName string) string {
	displayName = strings.TrimSpace(filepath.Base(displayName))
	ext := filepath.Ext(fileName)
	if strings.EqualFold(filepath.Ext(displayName), ext) {
		return displayName
	}
	return displayName + ext
}

// processNewJobData queues the job and answers 202, or writes the error and reports false.
func processNewJobData(request *http.Request, w http.ResponseWriter, data newJobData) bool {
	data.id = utils.GetNewUUID()
	data.traceId = traceIdFrom(request.Context())

	if err := CreateNewJob(request.Context(), data); err != nil {
		writeError(w, request, data.id, err)
		return false
	}
	res := adapter.ToInitJobResponse(data.id, data.sessionId)
	writeJsonResponse(w, http.StatusAccepted, res)
	return true
}
