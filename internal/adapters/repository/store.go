// Package repository defines where snapshots and distribution bundles are
// kept, with an in-memory implementation.
package repository

import (
	"context"

	"github.com/okian/engageboard/internal/domain/model"
)

// HistoryItem is one archived snapshot and the key it was stored under.
type HistoryItem struct {
	Key      string
	Snapshot model.Snapshot
}

// SnapshotStore persists leaderboard snapshots.
type SnapshotStore interface {
	// PutCurrent replaces the current leaderboard.
	PutCurrent(ctx context.Context, snap model.Snapshot) error
	// AppendHistory archives snap under key. Existing keys are never overwritten.
	AppendHistory(ctx context.Context, snap model.Snapshot, key string) error
	// Current returns the current leaderboard or ErrNotFound.
	Current(ctx context.Context) (model.Snapshot, error)
	// History returns up to limit archived snapshots, newest first.
	History(ctx context.Context, limit int) ([]HistoryItem, error)
}

// BundleStore persists distribution bundles.
type BundleStore interface {
	// Record appends a bundle under key. Bundles are never updated.
	Record(ctx context.Context, key string, b model.DistributionBundle) error
	// Bundles returns up to limit bundles, newest first.
	Bundles(ctx context.Context, limit int) ([]model.DistributionBundle, error)
}

// Store is a snapshot and bundle store.
type Store interface {
	SnapshotStore
	BundleStore
}
