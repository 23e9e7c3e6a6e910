// Package model contains the value objects passed between pipeline stages.
package model

import (
	"fmt"
	"strings"
)

// Metrics holds the public engagement counters of one post.
type Metrics struct {
	Retweets    int64 `json:"retweets"`
	Replies     int64 `json:"replies"`
	Likes       int64 `json:"likes"`
	Quotes      int64 `json:"quotes"`
	Bookmarks   int64 `json:"bookmarks"`
	Impressions int64 `json:"impressions"`
}

// Validate rejects negative counters.
func (m Metrics) Validate() error {
	fields := []struct {
		name string
		v    int64
	}{
		{"retweets", m.Retweets},
		{"replies", m.Replies},
		{"likes", m.Likes},
		{"quotes", m.Quotes},
		{"bookmarks", m.Bookmarks},
		{"impressions", m.Impressions},
	}
	for _, f := range fields {
		if f.v < 0 {
			return fmt.Errorf("%w: %s is negative (%d)", ErrInvalidRecord, f.name, f.v)
		}
	}
	return nil
}

// UnknownAuthor is the handle used when a post's author cannot be resolved.
const UnknownAuthor = "unknown"

// EngagementRecord is one raw post as fetched from the metrics source.
type EngagementRecord struct {
	postID        string
	authorHandle  string
	postLink      string
	metrics       Metrics
	walletAddress string
}

// NewEngagementRecord validates and builds a record. The post link is
// optional; when empty the record has no link.
func NewEngagementRecord(postID, authorHandle, postLink string, m Metrics, wallet string) (EngagementRecord, error) {
	if strings.TrimSpace(postID) == "" {
		return EngagementRecord{}, fmt.Errorf("%w: missing post id", ErrInvalidRecord)
	}
	if err := m.Validate(); err != nil {
		return EngagementRecord{}, fmt.Errorf("post %s: %w", postID, err)
	}
	if strings.TrimSpace(authorHandle) == "" {
		authorHandle = UnknownAuthor
	}
	return EngagementRecord{
		postID:        postID,
		authorHandle:  authorHandle,
		postLink:      postLink,
		metrics:       m,
		walletAddress: strings.TrimSpace(wallet),
	}, nil
}

func (r EngagementRecord) PostID() string        { return r.postID }
func (r EngagementRecord) AuthorHandle() string  { return r.authorHandle }
func (r EngagementRecord) PostLink() string      { return r.postLink }
func (r EngagementRecord) Metrics() Metrics      { return r.metrics }
func (r EngagementRecord) WalletAddress() string { return r.walletAddress }
