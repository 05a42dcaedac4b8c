// Package postgres is the pgx-backed write endpoint.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tufnapp/tufngate/backend"
	"github.com/tufnapp/tufngate/backend/postgres/migrations"
)

type Store struct {
	Pool *pgxpool.Pool
}

var _ backend.Store = (*Store)(nil)

func Connect(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.Pool.QueryRow(ctx, "select 1").Scan(&one)
}

// Migrate applies every embedded .sql file in name order. The schema uses
// IF NOT EXISTS throughout, so running it twice is harmless.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		sqlBytes, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.Pool.Exec(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) InsertSignup(ctx context.Context, row backend.Signup) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO waitlist (fingerprint, email, created_at) VALUES ($1, $2, $3)`,
		row.Fingerprint, row.Email, backend.Stamp(row.CreatedAt))
	return classify("insert signup", err)
}

func (s *Store) CountSignups(ctx context.Context) (int64, error) {
	var n int64
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM waitlist`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count signups: %w", err)
	}
	return n, nil
}

func (s *Store) InsertReview(ctx context.Context, row backend.Review) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO reviews (fingerprint, name, email, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		row.Fingerprint, row.Name, nullable(row.Email), row.Rating, row.Comment, backend.Stamp(row.CreatedAt))
	return classify("insert review", err)
}

func (s *Store) InsertFeedback(ctx context.Context, row backend.Feedback) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO feedback (fingerprint, name, email, category, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		row.Fingerprint, nullable(row.Name), nullable(row.Email), row.Category, row.Message, backend.Stamp(row.CreatedAt))
	return classify("insert feedback", err)
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == backend.ConflictCode {
		return fmt.Errorf("%s: %w", op, backend.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
