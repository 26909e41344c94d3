package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"tubethought/internal/composer"
	"tubethought/internal/engine"
	"tubethought/internal/middleware"
)

// QueryEngine is the slice of the query engine the chat surface drives.
type QueryEngine interface {
	Query(ctx context.Context, videoID, query string, opts engine.QueryOptions) (string, error)
	QueryStream(ctx context.Context, videoID, query string, opts engine.QueryOptions) (<-chan composer.Chunk, error)
	Summarize(ctx context.Context, videoID, length string) (string, error)
}

type Handler struct {
	engine QueryEngine
}

func NewHandler(e QueryEngine) *Handler {
	return &Handler{engine: e}
}

var validLengths = map[string]bool{"short": true, "medium": true, "detailed": true}

// Query answers a question about one video, streamed over SSE or as a
// single JSON response.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")

	var req struct {
		Query        string `json:"query"`
		Stream       bool   `json:"stream"`
		SearchMethod string `json:"search_method"`
		Model        string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "query is required", http.StatusBadRequest)
		return
	}

	opts := engine.QueryOptions{SearchMethod: req.SearchMethod, Model: req.Model}

	if req.Stream {
		h.streamQuery(w, r, videoID, req.Query, opts)
		return
	}

	response, err := h.engine.Query(r.Context(), videoID, req.Query, opts)
	if err != nil {
		h.writeEngineError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	h.encode(w, map[string]interface{}{"data": map[string]string{"response": response}})
}

func (h *Handler) streamQuery(w http.ResponseWriter, r *http.Request, videoID, query string, opts engine.QueryOptions) {
	ch, err := h.engine.QueryStream(r.Context(), videoID, query, opts)
	if err != nil {
		h.writeEngineError(r.Context(), w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for chunk := range ch {
		switch {
		case chunk.Err != nil:
			h.sseEvent(w, "error", map[string]string{"message": chunk.Err.Error()})
			flusher.Flush()
			return
		case chunk.Done:
			h.sseEvent(w, "done", map[string]string{"response": chunk.Response})
			flusher.Flush()
			return
		default:
			h.sseEvent(w, "token", map[string]string{"token": chunk.Token})
			flusher.Flush()
		}
	}
}

// Summary produces a transcript summary of the requested length.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("id")

	var req struct {
		Length string `json:"length"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Length == "" {
		req.Length = "medium"
	}
	if !validLengths[req.Length] {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "length must be short, medium or detailed", http.StatusBadRequest)
		return
	}

	summary, err := h.engine.Summarize(r.Context(), videoID, req.Length)
	if err != nil {
		h.writeEngineError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	h.encode(w, map[string]interface{}{"data": map[string]interface{}{
		"summary":          summary,
		"empty_transcript": summary == "",
	}})
}

func (h *Handler) sseEvent(w http.ResponseWriter, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal sse payload", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func (h *Handler) writeEngineError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotReady):
		h.writeError(ctx, w, "NOT_READY", "video is still processing", http.StatusConflict)
	case errors.Is(err, engine.ErrTranslation):
		h.writeError(ctx, w, "TRANSLATION_FAILED", "query translation failed", http.StatusBadGateway)
	case errors.Is(err, engine.ErrGeneration):
		h.writeError(ctx, w, "GENERATION_FAILED", "answer generation failed", http.StatusBadGateway)
	default:
		slog.ErrorContext(ctx, "query failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
	}
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
