package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type sessionHandler struct {
	service Service
	logger  *slog.Logger
}

type clearRequest struct {
	SessionID string `json:"session_id"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// clear handles POST {prefix}/session/clear. Clearing an unknown session is
// not an error; the end state is the same either way.
func (h *sessionHandler) clear(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	h.service.ClearSession(req.SessionID)
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: "session memory cleared",
	})
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type historyResponse struct {
	SessionID    string           `json:"session_id"`
	History      []historyMessage `json:"history"`
	MessageCount int              `json:"message_count"`
	Status       string           `json:"status"`
}

// history handles GET {prefix}/session/{id}/history. An unknown session
// yields an empty history, not a 404.
func (h *sessionHandler) history(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	messages := h.service.History(sessionID)
	history := make([]historyMessage, 0, len(messages))
	for _, msg := range messages {
		history = append(history, historyMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	writeJSON(w, http.StatusOK, historyResponse{
		SessionID:    sessionID,
		History:      history,
		MessageCount: len(history),
		Status:       "success",
	})
}
