package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"tubethought/internal/cache"
	"tubethought/internal/middleware"
)

type VideoRepo interface {
	Count(ctx context.Context) (int, error)
}

type CorpusCounter interface {
	CountReady(ctx context.Context) (int, error)
	Stats() cache.Stats
}

type Handler struct {
	videoRepo VideoRepo
	corpora   CorpusCounter
}

func NewHandler(v VideoRepo, c CorpusCounter) *Handler {
	return &Handler{videoRepo: v, corpora: c}
}

type StatsResponse struct {
	Videos       int   `json:"videos"`
	ReadyCorpora int   `json:"ready_corpora"`
	CacheEntries int64 `json:"cache_entries"`
	CacheHits    int64 `json:"cache_hits"`
	CacheMisses  int64 `json:"cache_misses"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	vCount, err := h.videoRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count videos", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count videos", http.StatusInternalServerError)
		return
	}

	rCount, err := h.corpora.CountReady(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count ready corpora", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count corpora", http.StatusInternalServerError)
		return
	}

	cacheStats := h.corpora.Stats()
	resp := StatsResponse{
		Videos:       vCount,
		ReadyCorpora: rCount,
		CacheEntries: cacheStats.Entries,
		CacheHits:    cacheStats.Hits,
		CacheMisses:  cacheStats.Misses,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
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
