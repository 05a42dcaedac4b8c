// Package sqlite is a single-file write endpoint for small deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/tufnapp/tufngate/backend"
	"github.com/tufnapp/tufngate/backend/sqlite/migrations"
)

// Store persists rows in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ backend.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite store and applies the embedded schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func migrate(sqlDB *sql.DB) error {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := fs.ReadFile(migrations.FS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := sqlDB.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *Store) InsertSignup(ctx context.Context, row backend.Signup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO waitlist (fingerprint, email, created_at) VALUES (?, ?, ?)`,
		row.Fingerprint, row.Email, toMillis(backend.Stamp(row.CreatedAt)))
	if err != nil {
		if isUniqueViolation(err) {
			return backend.ErrConflict
		}
		return fmt.Errorf("insert signup: %w", err)
	}
	return nil
}

func (s *Store) CountSignups(ctx context.Context) (int64, error) {
	var n int64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM waitlist`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count signups: %w", err)
	}
	return n, nil
}

func (s *Store) InsertReview(ctx context.Context, row backend.Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO reviews (fingerprint, name, email, rating, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		row.Fingerprint, row.Name, nullString(row.Email), row.Rating, row.Comment,
		toMillis(backend.Stamp(row.CreatedAt)))
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (s *Store) InsertFeedback(ctx context.Context, row backend.Feedback) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO feedback (fingerprint, name, email, category, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		row.Fingerprint, nullString(row.Name), nullString(row.Email), row.Category, row.Message,
		toMillis(backend.Stamp(row.CreatedAt)))
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
