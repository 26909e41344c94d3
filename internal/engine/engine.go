package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"tubethought/internal/cache"
	"tubethought/internal/composer"
	"tubethought/internal/language"
	"tubethought/internal/retrieval"
)

// Sentinels raised by collaborators, re-exported so handlers map
// failures without importing every internal package.
var (
	ErrNotReady    = retrieval.ErrNotReady
	ErrGeneration  = composer.ErrGeneration
	ErrTranslation = language.ErrTranslation
)

// RetrievalK is how many fragments ground each answer.
const RetrievalK = 2

// Detector resolves the language of a query; it never fails, falling
// back to the pivot language.
type Detector interface {
	Detect(text string) string
}

type Retriever interface {
	Search(ctx context.Context, videoID, query string, k int, vectorWeight float64) ([]retrieval.Fragment, error)
	FullTranscript(ctx context.Context, videoID string) ([]string, error)
}

type Composer interface {
	Stream(ctx context.Context, query string, fragments []retrieval.Fragment, opts composer.Options) (<-chan composer.Chunk, error)
	Generate(ctx context.Context, query string, fragments []retrieval.Fragment, opts composer.Options) (string, error)
	Summarize(ctx context.Context, transcript, length string, opts composer.Options) (string, error)
}

// Ingestor runs (or kicks off) the transcription-and-indexing pipeline
// for one video. Implementations are idempotent per video.
type Ingestor interface {
	Ingest(ctx context.Context, videoID, url, duration string) error
}

// QueryOptions selects how one query is answered.
type QueryOptions struct {
	SearchMethod string // semantic, keyword or hybrid (default)
	Model        string
}

// Engine orchestrates one video conversation turn: language bridging,
// cache memoization, retrieval grounding and answer generation.
type Engine struct {
	store      cache.Store
	retriever  Retriever
	composer   Composer
	detector   Detector
	translator language.Translator
	ingestor   Ingestor

	timeout           time.Duration
	translationStrict bool

	flight singleflight.Group
}

func New(store cache.Store, r Retriever, c Composer, d Detector, t language.Translator, i Ingestor, timeout time.Duration, translationStrict bool) *Engine {
	return &Engine{
		store:             store,
		retriever:         r,
		composer:          c,
		detector:          d,
		translator:        t,
		ingestor:          i,
		timeout:           timeout,
		translationStrict: translationStrict,
	}
}

// Process canonicalizes the video reference and triggers ingestion when
// the corpus is not ready yet. Concurrent callers for the same video
// join a single ingestion run.
func (e *Engine) Process(ctx context.Context, url, duration string) (string, bool, error) {
	videoID := ExtractVideoID(url)

	ready, err := e.store.HasReady(ctx, videoID)
	if err != nil {
		return videoID, false, fmt.Errorf("ready check: %w", err)
	}
	if ready {
		return videoID, true, nil
	}

	_, err, shared := e.flight.Do(videoID, func() (interface{}, error) {
		// Re-check under the flight: a caller that raced a just-finished
		// ingestion must not start a second one.
		ready, err := e.store.HasReady(ctx, videoID)
		if err != nil || ready {
			return nil, err
		}
		return nil, e.ingestor.Ingest(ctx, videoID, url, duration)
	})
	if err != nil {
		return videoID, false, fmt.Errorf("ingest: %w", err)
	}
	if shared {
		slog.InfoContext(ctx, "joined in-flight ingestion", "video_id", videoID)
	}

	ready, err = e.store.HasReady(ctx, videoID)
	if err != nil {
		return videoID, false, fmt.Errorf("ready check: %w", err)
	}
	return videoID, ready, nil
}

// Query answers a question about a video in one shot. Responses are
// memoized per (video, original query) for cache.ResponseTTL; the key is
// always the query as the caller wrote it, so the same question in the
// same language hits the same entry no matter how translation behaves.
func (e *Engine) Query(ctx context.Context, videoID, query string, opts QueryOptions) (string, error) {
	if cached, ok, err := e.store.Get(ctx, videoID, query); err != nil {
		return "", fmt.Errorf("cache get: %w", err)
	} else if ok {
		slog.InfoContext(ctx, "cache hit", "video_id", videoID)
		return cached, nil
	}

	lang, pivotQuery, err := e.bridgeQuery(ctx, query)
	if err != nil {
		return "", err
	}

	fragments, err := e.retrieve(ctx, videoID, pivotQuery, opts)
	if err != nil {
		return "", err
	}

	gctx, cancel := e.withTimeout(ctx)
	response, err := e.composer.Generate(gctx, pivotQuery, fragments, composer.Options{
		Model:   opts.Model,
		VideoID: videoID,
	})
	cancel()
	if err != nil {
		return "", err
	}

	response, err = e.bridgeResponse(ctx, response, lang)
	if err != nil {
		return "", err
	}

	if err := e.store.Put(ctx, videoID, query, response); err != nil {
		slog.WarnContext(ctx, "cache put failed", "video_id", videoID, "error", err)
	}
	return response, nil
}

// QueryStream is the streaming variant of Query. Tokens arrive in
// generation order; the final chunk carries the complete (and, when
// bridged, back-translated) response. The response is cached only when
// the stream runs to completion.
func (e *Engine) QueryStream(ctx context.Context, videoID, query string, opts QueryOptions) (<-chan composer.Chunk, error) {
	if cached, ok, err := e.store.Get(ctx, videoID, query); err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	} else if ok {
		slog.InfoContext(ctx, "cache hit", "video_id", videoID)
		out := make(chan composer.Chunk, 1)
		out <- composer.Chunk{Done: true, Response: cached}
		close(out)
		return out, nil
	}

	lang, pivotQuery, err := e.bridgeQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	fragments, err := e.retrieve(ctx, videoID, pivotQuery, opts)
	if err != nil {
		return nil, err
	}

	stream, err := e.composer.Stream(ctx, pivotQuery, fragments, composer.Options{
		Model:   opts.Model,
		VideoID: videoID,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan composer.Chunk)
	go func() {
		defer close(out)
		for chunk := range stream {
			if chunk.Done {
				response, err := e.bridgeResponse(ctx, chunk.Response, lang)
				if err != nil {
					e.forward(ctx, out, composer.Chunk{Err: err})
					return
				}
				if err := e.store.Put(ctx, videoID, query, response); err != nil {
					slog.WarnContext(ctx, "cache put failed", "video_id", videoID, "error", err)
				}
				e.forward(ctx, out, composer.Chunk{Done: true, Response: response})
				return
			}
			if !e.forward(ctx, out, chunk) {
				// Consumer gone: the partial answer is never cached.
				return
			}
			if chunk.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

// Summarize produces (and memoizes) a transcript summary. No language
// bridging: summaries follow the transcript's language. An indexed but
// empty transcript yields an empty summary without touching generation.
func (e *Engine) Summarize(ctx context.Context, videoID, length string) (string, error) {
	key := cache.SummaryKey(length)
	if cached, ok, err := e.store.Get(ctx, videoID, key); err != nil {
		return "", fmt.Errorf("cache get: %w", err)
	} else if ok {
		slog.InfoContext(ctx, "cache hit", "video_id", videoID, "key", key)
		return cached, nil
	}

	chunks, err := e.retriever.FullTranscript(ctx, videoID)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", nil
	}

	summary, err := e.composer.Summarize(ctx, strings.Join(chunks, "\n\n"), length, composer.Options{VideoID: videoID})
	if err != nil {
		return "", err
	}

	if err := e.store.Put(ctx, videoID, key, summary); err != nil {
		slog.WarnContext(ctx, "cache put failed", "video_id", videoID, "error", err)
	}
	return summary, nil
}

// bridgeQuery detects the query language and translates non-pivot
// queries to the pivot. In lenient mode a failed translation falls back
// to the original text; strict mode fails the request.
func (e *Engine) bridgeQuery(ctx context.Context, query string) (string, string, error) {
	lang := e.detector.Detect(query)
	if lang == language.Pivot {
		return lang, query, nil
	}

	tctx, cancel := e.withTimeout(ctx)
	defer cancel()

	translated, err := e.translator.Translate(tctx, query, lang, language.Pivot)
	if err != nil {
		if e.translationStrict {
			return lang, "", fmt.Errorf("%w: %v", ErrTranslation, err)
		}
		slog.WarnContext(ctx, "query translation failed, proceeding untranslated", "lang", lang, "error", err)
		return lang, query, nil
	}
	return lang, translated, nil
}

func (e *Engine) bridgeResponse(ctx context.Context, response, lang string) (string, error) {
	if lang == language.Pivot || response == "" {
		return response, nil
	}

	tctx, cancel := e.withTimeout(ctx)
	defer cancel()

	translated, err := e.translator.Translate(tctx, response, language.Pivot, lang)
	if err != nil {
		if e.translationStrict {
			return "", fmt.Errorf("%w: %v", ErrTranslation, err)
		}
		slog.WarnContext(ctx, "response translation failed, returning pivot text", "lang", lang, "error", err)
		return response, nil
	}
	return translated, nil
}

func (e *Engine) retrieve(ctx context.Context, videoID, query string, opts QueryOptions) ([]retrieval.Fragment, error) {
	rctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return e.retriever.Search(rctx, videoID, query, RetrievalK, vectorWeightFor(opts.SearchMethod))
}

func (e *Engine) forward(ctx context.Context, out chan<- composer.Chunk, chunk composer.Chunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

func vectorWeightFor(method string) float64 {
	switch method {
	case "semantic":
		return retrieval.VectorWeightSemantic
	case "keyword":
		return retrieval.VectorWeightKeyword
	default:
		return retrieval.VectorWeightHybrid
	}
}
