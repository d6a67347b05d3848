package handlers

import (
	"fmt"
	"net/http"

	"github.com/akolanti/TranscriptRAG/internal/adapter/utils"
	"github.com/akolanti/TranscriptRAG/internal/api"
	"github.com/akolanti/TranscriptRAG/internal/domain/sessionModel"
	"github.com/akolanti/TranscriptRAG/internal/session"
)

// CreateSessionHandler godoc
// @Summary      Open a session
// @Tags         Sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.CreateSessionRequest  false  "Optional display name"
// @Success      201      {object}  sessionModel.Session
// @Router       /sessions [post]
func CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	var req api.CreateSessionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, "", err)
		return
	}
	created, err := handlerInstance.sessions.CreateSession(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, "", err)
		return
	}
	writeJsonResponse(w, http.StatusCreated, created)
}

// ListSessionsHandler godoc
// @Summary      List sessions
// @Description  Newest first.
// @Tags         Sessions
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  api.SessionListResponse
// @Router       /sessions [get]
func ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	sessions, err := handlerInstance.sessions.ListSessions(r.Context())
	if err != nil {
		writeError(w, r, "", err)
		return
	}
	if sessions == nil {
		sessions = []sessionModel.Session{}
	}
	writeJsonResponse(w, http.StatusOK, api.SessionListResponse{Sessions: sessions})
}

// GetSessionHandler godoc
// @Summary      Get a session and its turns
// @Tags         Sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  api.SessionResponse
// @Failure      404  {object}  api.JobResponse
// @Router       /sessions/{id} [get]
func GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	id := utils.GetChiURLParam(r, "id")
	s, turns, err := handlerInstance.sessions.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, r, id, err)
		return
	}
	if turns == nil {
		turns = []sessionModel.Turn{}
	}
	writeJsonResponse(w, http.StatusOK, api.SessionResponse{Session: s, Turns: turns})
}

// DeleteSessionHandler godoc
// @Summary      Delete a session and its turns
// @Tags         Sessions
// @Security     BearerAuth
// @Param        id   path      string  true  "Session ID"
// @Success      204
// @Failure      404  {object}  api.JobResponse
// @Router       /sessions/{id} [delete]
func DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	id := utils.GetChiURLParam(r, "id")
	if err := handlerInstance.sessions.DeleteSession(r.Context(), id); err != nil {
		writeError(w, r, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportSessionHandler godoc
// @Summary      Export a session
// @Description  Downloads the full turn log as json (default) or plain text.
// @Tags         Sessions
// @Produce      json
// @Produce      plain
// @Security     BearerAuth
// @Param        id      path      string  true   "Session ID"
// @Param        format  query     string  false  "json or txt"  Enums(json, txt)
// @Success      200
// @Failure      400  {object}  api.JobResponse  "Unsupported format"
// @Failure      404  {object}  api.JobResponse
// @Router       /sessions/{id}/export [get]
func ExportSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	id := utils.GetChiURLParam(r, "id")
	format := session.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = session.FormatJSON
	}

	data, contentType, err := handlerInstance.sessions.Export(r.Context(), id, format)
	if err != nil {
		writeError(w, r, id, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="session-%s.%s"`, id, format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logRH.FromContext(r.Context()).Error("Error writing export", "sessionId", id, "error", err)
	}
}
