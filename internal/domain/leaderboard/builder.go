// Package leaderboard ranks engagement records into immutable snapshots.
package leaderboard

import (
	"sort"
	"strings"
	"time"

	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/scoring"
)

// historyKeyLayout keeps nanoseconds so keys of distinct captures differ.
const historyKeyLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Builder scores and ranks records.
type Builder struct {
	scorer scoring.Scorer
	now    func() time.Time
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithScorer overrides the scorer.
func WithScorer(s scoring.Scorer) Option {
	return func(b *Builder) {
		b.scorer = s
	}
}

// WithClock overrides the capture clock.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder creates a Builder with default weights and the wall clock.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		scorer: scoring.New(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type scored struct {
	rec   model.EngagementRecord
	score float64
}

// Build ranks records by score descending. The sort is stable so equal
// scores keep their fetch order, and ranks are dense starting at 1. An
// empty input yields an empty snapshot.
func (b *Builder) Build(records []model.EngagementRecord) model.Snapshot {
	rows := make([]scored, len(records))
	for i, r := range records {
		rows[i] = scored{rec: r, score: b.scorer.Score(r.Metrics())}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].score > rows[j].score
	})

	entries := make([]model.LeaderboardEntry, len(rows))
	for i, row := range rows {
		entries[i] = model.LeaderboardEntry{
			Rank:          i + 1,
			Handle:        row.rec.AuthorHandle(),
			PostLink:      row.rec.PostLink(),
			Score:         row.score,
			WalletAddress: row.rec.WalletAddress(),
		}
	}

	// Entries satisfy the snapshot invariants by construction.
	snap, err := model.NewSnapshot(entries, b.now().UTC())
	if err != nil {
		panic(err)
	}
	return snap
}

// HistoryKey renders t as a path-safe, sortable key: UTC with nanoseconds
// where ':' and '.' become '-'.
func HistoryKey(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format(historyKeyLayout))
}
