package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// ErrNotReady is returned when a search is issued before the video's
// ingestion has completed. Callers can retry once processing finishes.
var ErrNotReady = errors.New("video not ready")

// Fragment is a contiguous transcript excerpt scored for one search call.
// Scores are normalized to 0..1; CombinedScore is the weighted blend.
type Fragment struct {
	Content       string
	VectorScore   float64
	KeywordScore  float64
	CombinedScore float64
}

// Search mode weights. The blend is
// combined = weight*vector + (1-weight)*keyword.
const (
	VectorWeightSemantic = 1.0
	VectorWeightKeyword  = 0.0
	VectorWeightHybrid   = 0.7
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index exposes the fragment store. Lookup returns candidate fragments
// with both score halves filled in, in the index's natural chunk order.
// A nil vector asks for lexical candidates only (vector scores zero).
type Index interface {
	Lookup(ctx context.Context, videoID, query string, vector []float32, limit int) ([]Fragment, error)
	FullTranscript(ctx context.Context, videoID string) ([]string, error)
}

type ReadyChecker interface {
	HasReady(ctx context.Context, videoID string) (bool, error)
}

type Service struct {
	embedder Embedder
	index    Index
	ready    ReadyChecker
	logger   *QueryLogger
}

func NewService(e Embedder, i Index, r ReadyChecker, l *QueryLogger) *Service {
	return &Service{embedder: e, index: i, ready: r, logger: l}
}

// Search returns up to k fragments ordered by descending combined score.
// Ties keep the index's natural order. An indexed-but-empty video yields
// an empty slice, not an error; callers degrade gracefully on no grounding.
func (s *Service) Search(ctx context.Context, videoID, query string, k int, vectorWeight float64) ([]Fragment, error) {
	start := time.Now()

	ready, err := s.ready.HasReady(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("ready check: %w", err)
	}
	if !ready {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, videoID)
	}

	// Pure lexical search needs no query embedding.
	var vector []float32
	if vectorWeight > 0 {
		vector, err = s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}

	candidates, err := s.index.Lookup(ctx, videoID, query, vector, candidateLimit(k))
	if err != nil {
		return nil, fmt.Errorf("index lookup: %w", err)
	}

	results := Blend(candidates, vectorWeight)
	if len(results) > k {
		results = results[:k]
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			VideoID:    videoID,
			Query:      query,
			NumResults: len(results),
			Duration:   time.Since(start),
		})
	}

	return results, nil
}

// FullTranscript pulls every fragment of a video in chunk order, for flows
// that need the whole transcript rather than query-driven ranking.
func (s *Service) FullTranscript(ctx context.Context, videoID string) ([]string, error) {
	ready, err := s.ready.HasReady(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("ready check: %w", err)
	}
	if !ready {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, videoID)
	}

	chunks, err := s.index.FullTranscript(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("full transcript: %w", err)
	}
	if len(chunks) == 0 {
		slog.InfoContext(ctx, "video has no indexed fragments", "video_id", videoID)
	}
	return chunks, nil
}

// Blend computes combined scores and orders fragments by descending
// combined score. The sort is stable so equal scores retain the index's
// natural order.
func Blend(fragments []Fragment, vectorWeight float64) []Fragment {
	blended := make([]Fragment, len(fragments))
	copy(blended, fragments)
	for i := range blended {
		blended[i].CombinedScore = vectorWeight*blended[i].VectorScore + (1-vectorWeight)*blended[i].KeywordScore
	}
	sort.SliceStable(blended, func(i, j int) bool {
		return blended[i].CombinedScore > blended[j].CombinedScore
	})
	return blended
}

// candidateLimit widens the index fetch beyond k so the union of strong
// semantic and strong lexical matches survives the blend.
func candidateLimit(k int) int {
	limit := k * 4
	if limit < 20 {
		limit = 20
	}
	return limit
}
