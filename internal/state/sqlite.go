package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dl-alexandre/docloader/internal/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists reports in a single table keyed by session key
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reports (
	state_key TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	source TEXT NOT NULL,
	parsed_count INTEGER NOT NULL,
	failed_count INTEGER NOT NULL,
	body TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

func (s *SQLiteStore) Put(ctx context.Context, key string, report *types.IngestionReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (
			state_key, run_id, source, parsed_count, failed_count, body, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(state_key) DO UPDATE SET
			run_id=excluded.run_id,
			source=excluded.source,
			parsed_count=excluded.parsed_count,
			failed_count=excluded.failed_count,
			body=excluded.body,
			updated_at=excluded.updated_at
	`, key, report.RunID, report.Source, len(report.Parsed), len(report.Failed), string(body), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("storing report %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*types.IngestionReport, error) {
	row := s.db.QueryRowContext(ctx, `SELECT body FROM reports WHERE state_key = ?`, key)

	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var report types.IngestionReport
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		return nil, fmt.Errorf("decoding report %s: %w", key, err)
	}
	return &report, nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state_key FROM reports ORDER BY state_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE state_key = ?`, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
