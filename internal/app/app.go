package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"tubethought/features/chat"
	"tubethought/features/stats"
	"tubethought/features/video"
	"tubethought/internal/adapter/gemini"
	openaiadapter "tubethought/internal/adapter/openai"
	"tubethought/internal/adapter/ytdlp"
	"tubethought/internal/cache"
	"tubethought/internal/composer"
	"tubethought/internal/config"
	"tubethought/internal/engine"
	"tubethought/internal/language"
	"tubethought/internal/middleware"
	"tubethought/internal/retrieval"
	"tubethought/internal/worker"
)

// VectorStore is the slice of the vector index the app wires together.
type VectorStore interface {
	retrieval.Index
	worker.VectorStore
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler        http.Handler
	ResultConsumer *worker.ResultConsumer
	// TaskConsumer is nil unless the in-process ingest worker is enabled.
	TaskConsumer *worker.TaskConsumer

	port int
}

func New(
	ctx context.Context,
	cfg *config.Config,
	db *sql.DB,
	vecStore VectorStore,
	taskPub EventPublisher,
) (*App, error) {
	store := cache.NewPostgresStore(db)
	videoRepo := video.NewPostgresRepo(db)

	oaClient := openaiadapter.NewClient(cfg.OpenAIAPIKey)
	translator := openaiadapter.NewTranslator(oaClient, cfg.ChatModel)

	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: %w", err)
	}

	queryLogger, err := retrieval.NewFileQueryLogger("data/logs/query.log")
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}

	retrievalService := retrieval.NewService(embedder, vecStore, store, queryLogger)
	answerComposer := composer.New(oaClient, cfg.ChatModel, cfg.SummaryModel)
	detector := language.NewDetector()
	ingestor := video.NewNSQIngestor(videoRepo, store, taskPub)

	queryEngine := engine.New(
		store,
		retrievalService,
		answerComposer,
		detector,
		translator,
		ingestor,
		time.Duration(cfg.CollaboratorTimeoutSeconds)*time.Second,
		cfg.TranslationStrict,
	)

	videoService := video.NewService(videoRepo, store, queryEngine)
	videoHandler := video.NewHandler(videoService)
	chatHandler := chat.NewHandler(queryEngine)
	statsHandler := stats.NewHandler(videoRepo, store)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	mux := http.NewServeMux()

	mux.Handle("POST /videos", middleware.CorrelationID(enableCORS(videoHandler.Create)))
	mux.Handle("GET /videos/{id}", middleware.CorrelationID(enableCORS(videoHandler.Get)))
	mux.Handle("POST /videos/{id}/query", middleware.CorrelationID(enableCORS(chatHandler.Query)))
	mux.Handle("POST /videos/{id}/summary", middleware.CorrelationID(enableCORS(chatHandler.Summary)))
	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	resultConsumer := worker.NewResultConsumer(vecStore, embedder, store, videoRepo)

	app := &App{
		Handler:        mux,
		ResultConsumer: resultConsumer,
		port:           cfg.ServerPort,
	}

	if cfg.EnableIngestWorker {
		fetcher := ytdlp.NewFetcher(cfg.MediaDir, cfg.CookiesPath)
		transcriber := openaiadapter.NewTranscriber(oaClient, cfg.TranscriptionModel)
		app.TaskConsumer = worker.NewTaskConsumer(
			fetcher,
			transcriber,
			taskPub,
			time.Duration(cfg.IngestTimeoutMinutes)*time.Minute,
		)
	}

	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
