package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"tubethought/internal/adapter/weaviate"
	"tubethought/internal/app"
	"tubethought/internal/config"
	"tubethought/internal/logger"
)

func main() {
	// Initialize structured logger
	handler := logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slog.New(handler))

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. External dependencies: postgres, migrations, weaviate schema, nsq
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer deps.Close()

	vecStore := weaviate.NewStore(deps.WeaviateClient)

	a, err := app.New(ctx, cfg, deps.DB, vecStore, deps.NSQProducer)
	if err != nil {
		slog.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	// 3. NSQ consumers
	nsqCfg := nsq.NewConfig()

	resultConsumer, err := nsq.NewConsumer(config.TopicIngestResult, "backend", nsqCfg)
	if err != nil {
		slog.Error("failed to create NSQ consumer for results", "error", err)
		os.Exit(1)
	}
	resultConsumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
		return a.ResultConsumer.HandleMessage(m)
	}))
	if err := resultConsumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		slog.Error("failed to connect result consumer to NSQLookupd", "error", err)
	} else {
		slog.Info("NSQ result consumer connected")
	}
	defer resultConsumer.Stop()

	if a.TaskConsumer != nil {
		taskConsumer, err := nsq.NewConsumer(config.TopicIngestTask, "backend", nsq.NewConfig())
		if err != nil {
			slog.Error("failed to create NSQ consumer for tasks", "error", err)
			os.Exit(1)
		}
		taskConsumer.AddHandler(nsq.HandlerFunc(func(m *nsq.Message) error {
			return a.TaskConsumer.HandleMessage(m)
		}))
		if err := taskConsumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			slog.Error("failed to connect task consumer to NSQLookupd", "error", err)
		} else {
			slog.Info("NSQ task consumer connected")
		}
		defer taskConsumer.Stop()
	}

	// 4. Start server
	if err := a.Run(ctx); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
