package keywords

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps counts in the keyword_counts table.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Serialize writers; sqlite allows one at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT keyword, count FROM keyword_counts")
	if err != nil {
		return nil, fmt.Errorf("query keyword counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var keyword string
		var count int
		if err := rows.Scan(&keyword, &count); err != nil {
			return nil, fmt.Errorf("scan keyword count: %w", err)
		}
		counts[keyword] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keyword counts: %w", err)
	}
	return counts, nil
}

func (s *SQLiteStore) Save(ctx context.Context, counts map[string]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO keyword_counts(keyword, count, updated_at)
VALUES(?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(keyword) DO UPDATE SET count = excluded.count, updated_at = excluded.updated_at`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for keyword, count := range counts {
		if _, err := stmt.ExecContext(ctx, keyword, count); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert %q: %w", keyword, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit keyword counts: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Increment(ctx context.Context, keyword string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO keyword_counts(keyword, count, updated_at)
VALUES(?, 1, CURRENT_TIMESTAMP)
ON CONFLICT(keyword) DO UPDATE SET count = count + 1, updated_at = excluded.updated_at`, keyword)
	if err != nil {
		return fmt.Errorf("increment %q: %w", keyword, err)
	}
	return nil
}
