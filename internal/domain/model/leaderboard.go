package model

import (
	"fmt"
	"strings"
	"time"
)

// LeaderboardEntry is one ranked row of a snapshot.
type LeaderboardEntry struct {
	Rank          int     `json:"rank"`
	Handle        string  `json:"handle"`
	PostLink      string  `json:"post_link"`
	Score         float64 `json:"score"`
	WalletAddress string  `json:"wallet_address"`
}

// Snapshot is an immutable, fully ranked capture of the leaderboard.
type Snapshot struct {
	entries    []LeaderboardEntry
	capturedAt time.Time
}

// NewSnapshot copies entries and checks the ranking invariants: ranks are
// exactly 1..k in order and scores never increase with rank.
func NewSnapshot(entries []LeaderboardEntry, capturedAt time.Time) (Snapshot, error) {
	for i, e := range entries {
		if e.Rank != i+1 {
			return Snapshot{}, fmt.Errorf("%w: entry %d has rank %d", ErrInvalidSnapshot, i, e.Rank)
		}
		if i > 0 && e.Score > entries[i-1].Score {
			return Snapshot{}, fmt.Errorf("%w: score increases at rank %d", ErrInvalidSnapshot, e.Rank)
		}
	}
	cp := make([]LeaderboardEntry, len(entries))
	copy(cp, entries)
	return Snapshot{entries: cp, capturedAt: capturedAt}, nil
}

// Entries returns a copy of the ranked entries.
func (s Snapshot) Entries() []LeaderboardEntry {
	cp := make([]LeaderboardEntry, len(s.entries))
	copy(cp, s.entries)
	return cp
}

// Top returns at most n leading entries. Fewer are returned when the
// snapshot is smaller.
func (s Snapshot) Top(n int) []LeaderboardEntry {
	if n < 0 {
		n = 0
	}
	if n > len(s.entries) {
		n = len(s.entries)
	}
	cp := make([]LeaderboardEntry, n)
	copy(cp, s.entries[:n])
	return cp
}

// Lookup returns the best entry for handle. The match ignores case and a
// leading @.
func (s Snapshot) Lookup(handle string) (LeaderboardEntry, bool) {
	want := strings.TrimPrefix(strings.TrimSpace(handle), "@")
	for _, e := range s.entries {
		if strings.EqualFold(e.Handle, want) {
			return e, true
		}
	}
	return LeaderboardEntry{}, false
}

func (s Snapshot) CapturedAt() time.Time { return s.capturedAt }
func (s Snapshot) ParticipantCount() int { return len(s.entries) }
func (s Snapshot) IsZero() bool          { return s.capturedAt.IsZero() && len(s.entries) == 0 }
