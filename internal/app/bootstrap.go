package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"tubethought/internal/config"
	"tubethought/internal/vector"
)

// Dependencies holds the external clients the app needs at runtime.
type Dependencies struct {
	DB             *sql.DB
	NSQProducer    *nsq.Producer
	WeaviateClient *weaviate.Client
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	db, err := connectDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, cfg); err != nil {
		db.Close()
		return nil, err
	}

	wClient, err := connectWeaviate(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create nsq producer: %w", err)
	}

	createTopics(cfg)

	return &Dependencies{
		DB:             db,
		NSQProducer:    producer,
		WeaviateClient: wClient,
	}, nil
}

func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

func connectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	delay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	for attempt := 1; attempt <= cfg.BootstrapRetryAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return db, nil
		}
		slog.Warn("database not ready, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	db.Close()
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", cfg.BootstrapRetryAttempts, err)
}

func runMigrations(db *sql.DB, cfg *config.Config) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, cfg.DBName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("migrations applied")
	return nil
}

func connectWeaviate(ctx context.Context, cfg *config.Config) (*weaviate.Client, error) {
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   cfg.WeaviateHost,
		Scheme: cfg.WeaviateScheme,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	adapter := vector.NewWeaviateClientAdapter(client)
	delay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	for attempt := 1; attempt <= cfg.BootstrapRetryAttempts; attempt++ {
		if err = vector.EnsureSchema(ctx, adapter); err == nil {
			return client, nil
		}
		slog.Warn("weaviate not ready, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("weaviate schema setup failed after %d attempts: %w", cfg.BootstrapRetryAttempts, err)
}

// createTopics pre-creates NSQ topics so consumers can subscribe before the
// first message is published. Failures are non-fatal, nsqd creates topics
// lazily on publish anyway.
func createTopics(cfg *config.Config) {
	client := &http.Client{Timeout: 5 * time.Second}
	for _, topic := range []string{config.TopicIngestTask, config.TopicIngestResult} {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", cfg.NSQDHTTP, topic)
		resp, err := client.Post(url, "", nil)
		if err != nil {
			slog.Warn("failed to pre-create nsq topic", "topic", topic, "error", err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			slog.Warn("unexpected status pre-creating nsq topic", "topic", topic, "status", resp.StatusCode)
		}
	}
}
