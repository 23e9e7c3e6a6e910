// Package types contains the read shapes served by the API.
package types

import (
	"time"

	"github.com/okian/engageboard/internal/domain/model"
)

// Entry represents a leaderboard entry.
type Entry struct {
	Rank          int     `json:"rank"`
	Handle        string  `json:"handle"`
	PostLink      string  `json:"post_link"`
	Score         float64 `json:"score"`
	WalletAddress string  `json:"wallet_address,omitempty"`
}

// Leaderboard is a view of one snapshot.
type Leaderboard struct {
	Entries           []Entry   `json:"leaderboard"`
	TotalParticipants int       `json:"total_participants"`
	LastUpdated       time.Time `json:"last_updated"`
}

// HistoryItem is one archived snapshot.
type HistoryItem struct {
	Key               string    `json:"key"`
	TotalParticipants int       `json:"total_participants"`
	CapturedAt        time.Time `json:"captured_at"`
	Entries           []Entry   `json:"leaderboard"`
}

// CommandState is the lifecycle position of a submitted command.
type CommandState string

const (
	CommandPending   CommandState = "pending"
	CommandRunning   CommandState = "running"
	CommandSucceeded CommandState = "succeeded"
	CommandFailed    CommandState = "failed"
)

// CommandStatus reports what happened to a submitted command.
type CommandStatus struct {
	Command   model.Command `json:"command"`
	State     CommandState  `json:"state"`
	Error     string        `json:"error,omitempty"`
	BundleID  string        `json:"bundle_id,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Stats is the service overview returned by /stats.
type Stats struct {
	QueueLength       int       `json:"queue_length"`
	TotalParticipants int       `json:"total_participants"`
	LastUpdated       time.Time `json:"last_updated,omitzero"`
	SignerAddress     string    `json:"signer_address"`
	TopN              int       `json:"top_n"`
	RewardTotal       string    `json:"reward_total"`
	CyclesCompleted   int       `json:"cycles_completed"`
	LastBundleID      string    `json:"last_bundle_id,omitempty"`
	TrackedRequests   int64     `json:"tracked_requests"`
}

// FromEntry converts a model entry.
func FromEntry(e model.LeaderboardEntry) Entry {
	return Entry{
		Rank:          e.Rank,
		Handle:        e.Handle,
		PostLink:      e.PostLink,
		Score:         e.Score,
		WalletAddress: e.WalletAddress,
	}
}

// FromEntries converts a slice of model entries.
func FromEntries(entries []model.LeaderboardEntry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = FromEntry(e)
	}
	return out
}

// FromSnapshot builds a leaderboard view holding at most limit entries.
func FromSnapshot(snap model.Snapshot, limit int) Leaderboard {
	return Leaderboard{
		Entries:           FromEntries(snap.Top(limit)),
		TotalParticipants: snap.ParticipantCount(),
		LastUpdated:       snap.CapturedAt(),
	}
}
