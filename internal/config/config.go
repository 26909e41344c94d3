package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"tubethought"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"tubethought"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`

	// Models. Defaults mirror what the hosted assistant ran with.
	ChatModel          string `envconfig:"CHAT_MODEL" default:"gpt-3.5-turbo"`
	SummaryModel       string `envconfig:"SUMMARY_MODEL" default:"gpt-3.5-turbo"`
	EmbeddingModel     string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	TranscriptionModel string `envconfig:"TRANSCRIPTION_MODEL" default:"whisper-1"`

	// When true a failed translation fails the request instead of
	// falling back to the English answer.
	TranslationStrict bool `envconfig:"TRANSLATION_STRICT" default:"false"`

	// Per-collaborator call budget, seconds.
	CollaboratorTimeoutSeconds int `envconfig:"COLLABORATOR_TIMEOUT_SECONDS" default:"60"`

	// Ingestion
	EnableIngestWorker   bool   `envconfig:"ENABLE_INGEST_WORKER" default:"false"`
	MediaDir             string `envconfig:"MEDIA_DIR" default:"./storage/media"`
	CookiesPath          string `envconfig:"COOKIES_PATH" default:""`
	IngestTimeoutMinutes int    `envconfig:"INGEST_TIMEOUT_MINUTES" default:"30"`
	MigrationPath        string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Server
	ServerPort int `envconfig:"SERVER_PORT" default:"8081"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.ServerPort <= 0 {
		return fmt.Errorf("%w: SERVER_PORT", ErrMissingRequired)
	}
	return nil
}
