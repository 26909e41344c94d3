package video

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"tubethought/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create accepts a video for processing. A ready corpus answers 200, a
// fresh or in-flight ingestion answers 202.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL      string `json:"url"`
		Duration string `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "url is required", http.StatusBadRequest)
		return
	}
	if req.Duration != "" && !ValidDuration(req.Duration) {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "invalid duration", http.StatusBadRequest)
		return
	}

	v, ready, err := h.service.Submit(r.Context(), req.URL, req.Duration)
	if err != nil {
		slog.ErrorContext(r.Context(), "submit failed", "error", err, "url", req.URL)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	status := http.StatusAccepted
	if ready {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	h.encode(w, map[string]interface{}{"data": map[string]interface{}{
		"corpus_id": v.ID,
		"ready":     ready,
		"status":    v.Status,
	}})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	v, ready, err := h.service.Get(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "get video failed", "error", err, "video_id", id)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if v == nil {
		h.writeError(r.Context(), w, "NOT_FOUND", "video not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	h.encode(w, map[string]interface{}{"data": map[string]interface{}{
		"corpus_id": v.ID,
		"url":       v.URL,
		"duration":  v.Duration,
		"status":    v.Status,
		"ready":     ready,
	}})
}

func (h *Handler) encode(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
