package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sqlitemigrate "github.com/louisbranch/leaderboard/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/storage"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store implements leaderboard persistence over SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens a leaderboard SQLite store and applies bundled migrations.
// The parent directory is created when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

// PutNonce upserts the challenge for a client identity.
func (s *Store) PutNonce(ctx context.Context, clientIdentity, nonce string) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if nonce == "" {
		return fmt.Errorf("nonce is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO nonces (ip_address, nonce) VALUES (?, ?)
		 ON CONFLICT(ip_address) DO UPDATE SET nonce = excluded.nonce`,
		clientIdentity,
		nonce,
	)
	if err != nil {
		return fmt.Errorf("put nonce: %w", err)
	}
	return nil
}

// TakeNonce deletes and returns the challenge for a client identity in one
// statement, so two concurrent callers cannot both receive it.
func (s *Store) TakeNonce(ctx context.Context, clientIdentity string) (string, error) {
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	var nonce string
	err := s.sqlDB.QueryRowContext(
		ctx,
		`DELETE FROM nonces WHERE ip_address = ? RETURNING nonce`,
		clientIdentity,
	).Scan(&nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNonceNotFound
	}
	if err != nil {
		return "", fmt.Errorf("take nonce: %w", err)
	}
	return nonce, nil
}

// InsertScore appends one score row.
func (s *Store) InsertScore(ctx context.Context, record storage.ScoreRecord) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO highscores (username, score) VALUES (?, ?)`,
		record.Username,
		record.Score,
	)
	if err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

// ListTopScores returns the highest scores first. Equal scores are returned
// in insertion order.
func (s *Store) ListTopScores(ctx context.Context, limit int) ([]storage.ScoreRecord, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT username, score
		 FROM highscores
		 ORDER BY score DESC, id ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list top scores: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]storage.ScoreRecord, 0, min(limit, 64))
	for rows.Next() {
		var record storage.ScoreRecord
		if err := rows.Scan(&record.Username, &record.Score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return records, nil
}
