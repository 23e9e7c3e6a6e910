// Package sqlite stores snapshots and distribution bundles in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/okian/engageboard/internal/adapters/repository"
	"github.com/okian/engageboard/internal/domain/model"
)

// Store handles all database operations.
type Store struct {
	db *sql.DB
}

var _ repository.Store = (*Store)(nil)

// Open creates a Store backed by the database file at dbPath.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS leaderboard_current (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		document TEXT NOT NULL,
		captured_at INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS leaderboard_history (
		key TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		captured_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS distribution_bundles (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL,
		signer_address TEXT NOT NULL,
		signature TEXT NOT NULL,
		anchor_tx_hash TEXT,
		failures INTEGER NOT NULL,
		document TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_captured_at ON leaderboard_history(captured_at);
	CREATE INDEX IF NOT EXISTS idx_bundles_created_at ON distribution_bundles(created_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// PutCurrent overwrites the current leaderboard.
func (s *Store) PutCurrent(ctx context.Context, snap model.Snapshot) error {
	doc, err := repository.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leaderboard_current (id, document, captured_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			captured_at = excluded.captured_at,
			updated_at = CURRENT_TIMESTAMP
	`, string(doc), snap.CapturedAt().UnixNano())
	if err != nil {
		return fmt.Errorf("put current: %w", err)
	}
	return nil
}

// AppendHistory archives snap under key.
func (s *Store) AppendHistory(ctx context.Context, snap model.Snapshot, key string) error {
	doc, err := repository.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO leaderboard_history (key, document, captured_at)
		VALUES (?, ?, ?)
	`, key, string(doc), snap.CapturedAt().UnixNano())
	if err != nil {
		return fmt.Errorf("append history %s: %w", key, wrapConstraint(err))
	}
	return nil
}

// Current returns the current leaderboard.
func (s *Store) Current(ctx context.Context) (model.Snapshot, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM leaderboard_current WHERE id = 1`).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("get current: %w", err)
	}
	return repository.DecodeSnapshot([]byte(doc))
}

// History returns archived snapshots, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]repository.HistoryItem, error) {
	if err := repository.ValidateLimit(limit); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, document FROM leaderboard_history
		ORDER BY captured_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []repository.HistoryItem
	for rows.Next() {
		var key, doc string
		if err := rows.Scan(&key, &doc); err != nil {
			return nil, err
		}
		snap, err := repository.DecodeSnapshot([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", key, err)
		}
		out = append(out, repository.HistoryItem{Key: key, Snapshot: snap})
	}
	return out, rows.Err()
}

// Record appends a distribution bundle under key.
func (s *Store) Record(ctx context.Context, key string, b model.DistributionBundle) error {
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	var anchor sql.NullString
	if b.Anchored() {
		anchor = sql.NullString{String: b.AnchorTxHash, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO distribution_bundles (id, key, signer_address, signature, anchor_tx_hash, failures, document, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, key, b.SignerAddress, b.Signature, anchor, b.Failures(), string(doc), b.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("record bundle %s: %w", b.ID, wrapConstraint(err))
	}
	return nil
}

// Bundles returns recorded bundles, newest first.
func (s *Store) Bundles(ctx context.Context, limit int) ([]model.DistributionBundle, error) {
	if err := repository.ValidateLimit(limit); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT document FROM distribution_bundles
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query bundles: %w", err)
	}
	defer rows.Close()

	var out []model.DistributionBundle
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var b model.DistributionBundle
		if err := json.Unmarshal([]byte(doc), &b); err != nil {
			return nil, fmt.Errorf("decode bundle: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func wrapConstraint(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", repository.ErrDuplicateKey, err)
	}
	return err
}
