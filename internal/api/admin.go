package api

import (
	"fmt"
	"log/slog"
	"net/http"
)

type adminHandler struct {
	service Service
	info    Info
	logger  *slog.Logger
}

// reload handles POST {prefix}/reload-documents: a full re-read of the
// document folder and a rebuild of the vector store.
func (h *adminHandler) reload(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.Reload(r.Context())
	if err != nil {
		h.logger.Error("document reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reload_failed", "failed to reload documents")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: fmt.Sprintf("documents reloaded, %d chunks indexed", count),
	})
}

type infoResponse struct {
	Info
	IndexedRecords int `json:"indexed_records"`
}

// getInfo handles GET {prefix}/info.
func (h *adminHandler) getInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		Info:           h.info,
		IndexedRecords: h.service.IndexSize(),
	})
}

type healthResponse struct {
	Status  string `json:"status"`
	AppName string `json:"app_name"`
	Version string `json:"version"`
}

// health handles GET /health.
func (h *adminHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		AppName: h.info.AppName,
		Version: h.info.Version,
	})
}

// welcome handles GET / with a minimal service banner.
func (h *adminHandler) welcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Welcome to %s", h.info.AppName),
		"version": h.info.Version,
	})
}
