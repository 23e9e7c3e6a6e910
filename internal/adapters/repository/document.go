package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/engageboard/internal/domain/model"
)

// Document is the stored form of a snapshot.
type Document struct {
	Leaderboard []model.LeaderboardEntry `json:"leaderboard"`
	Metadata    Metadata                 `json:"metadata"`
}

// Metadata summarizes a stored snapshot.
type Metadata struct {
	TotalParticipants int       `json:"total_participants"`
	LastUpdated       time.Time `json:"last_updated"`
}

// EncodeSnapshot renders snap as a JSON document.
func EncodeSnapshot(snap model.Snapshot) ([]byte, error) {
	return json.Marshal(Document{
		Leaderboard: snap.Entries(),
		Metadata: Metadata{
			TotalParticipants: snap.ParticipantCount(),
			LastUpdated:       snap.CapturedAt().UTC(),
		},
	})
}

// DecodeSnapshot parses and validates a stored document.
func DecodeSnapshot(b []byte) (model.Snapshot, error) {
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return model.NewSnapshot(doc.Leaderboard, doc.Metadata.LastUpdated)
}

// ValidateLimit rejects non-positive limits.
func ValidateLimit(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	return nil
}
