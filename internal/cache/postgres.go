package cache

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"time"
)

// PostgresStore persists ready flags and response entries across restarts.
// TTL is evaluated in Go against the injected clock so expiry behavior is
// identical to the in-memory store.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return NewPostgresStoreWithClock(db, time.Now)
}

func NewPostgresStoreWithClock(db *sql.DB, now func() time.Time) *PostgresStore {
	return &PostgresStore{db: db, now: now}
}

func (s *PostgresStore) HasReady(ctx context.Context, videoID string) (bool, error) {
	var ready bool
	query := `SELECT ready FROM corpora WHERE id = $1`
	err := s.db.QueryRowContext(ctx, query, videoID).Scan(&ready)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ready, nil
}

func (s *PostgresStore) MarkReady(ctx context.Context, videoID string) error {
	query := `INSERT INTO corpora (id, ready, created_at) VALUES ($1, TRUE, $2)
		ON CONFLICT (id) DO UPDATE SET ready = TRUE`
	_, err := s.db.ExecContext(ctx, query, videoID, s.now())
	return err
}

// RegisterCorpus records a not-yet-ready video so its ingestion can be
// observed. Safe to call repeatedly; never clears an existing ready flag.
func (s *PostgresStore) RegisterCorpus(ctx context.Context, videoID string) error {
	query := `INSERT INTO corpora (id, ready, created_at) VALUES ($1, FALSE, $2)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query, videoID, s.now())
	return err
}

func (s *PostgresStore) Get(ctx context.Context, videoID, requestKey string) (string, bool, error) {
	var response string
	var createdAt time.Time
	query := `SELECT response, created_at FROM response_cache WHERE video_id = $1 AND request_key = $2`
	err := s.db.QueryRowContext(ctx, query, videoID, requestKey).Scan(&response, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if s.now().Sub(createdAt) >= ResponseTTL {
		s.misses.Add(1)
		return "", false, nil
	}

	s.hits.Add(1)
	return response, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, videoID, requestKey, response string) error {
	query := `INSERT INTO response_cache (video_id, request_key, response, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (video_id, request_key) DO UPDATE SET response = $3, created_at = $4`
	_, err := s.db.ExecContext(ctx, query, videoID, requestKey, response, s.now())
	return err
}

func (s *PostgresStore) CountReady(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM corpora WHERE ready`
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PostgresStore) Stats() Stats {
	var entries int64
	query := `SELECT COUNT(*) FROM response_cache`
	// Best effort; stats are advisory.
	_ = s.db.QueryRow(query).Scan(&entries)

	return Stats{
		Entries: entries,
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}
}
