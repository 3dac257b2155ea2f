package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/koopa0/ragserve/internal/rag"
	"github.com/koopa0/ragserve/internal/security"
)

// maxRequestBody bounds request bodies well above any valid query.
const maxRequestBody = 64 << 10 // 64 KB

type chatHandler struct {
	service Service
	logger  *slog.Logger
}

type chatRequest struct {
	Query             string         `json:"query"`
	SessionID         string         `json:"session_id,omitempty"`
	UserData          map[string]any `json:"user_data,omitempty"`
	AdditionalContext string         `json:"additional_context,omitempty"`
}

type chatResponse struct {
	Response    string `json:"response"`
	SessionID   string `json:"session_id"`
	ContextUsed int    `json:"context_used"`
	MemorySize  int    `json:"memory_size"`
	Status      string `json:"status"`
}

// send handles POST {prefix}/chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	result, err := h.service.Query(r.Context(), rag.Request{
		Query:             req.Query,
		SessionID:         req.SessionID,
		AdditionalContext: req.AdditionalContext,
		UserData:          req.UserData,
	})
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:    result.Response,
		SessionID:   result.SessionID,
		ContextUsed: result.ContextUsed,
		MemorySize:  result.MemorySize,
		Status:      result.Status,
	})
}

// writeQueryError maps pipeline errors to HTTP statuses. Input rejections are
// client errors; anything else is a generic 500 with details logged only.
func (h *chatHandler) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, security.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "invalid_query", "query cannot be empty")
	case errors.Is(err, security.ErrInputTooLong):
		writeError(w, http.StatusBadRequest, "invalid_query", "query exceeds maximum length")
	case errors.Is(err, security.ErrPolicyViolation):
		writeError(w, http.StatusBadRequest, "invalid_query", security.ErrPolicyViolation.Error())
	default:
		h.logger.Error("chat request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
