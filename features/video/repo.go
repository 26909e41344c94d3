package video

import (
	"context"
	"database/sql"
	"errors"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Upsert(ctx context.Context, v *Video) error {
	query := `INSERT INTO videos (id, url, duration, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET url = $2, duration = $3, status = $4, updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query, v.ID, v.URL, v.Duration, v.Status)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Video, error) {
	v := &Video{}
	query := `SELECT id, url, duration, status FROM videos WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&v.ID, &v.URL, &v.Duration, &v.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE videos SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM videos`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
