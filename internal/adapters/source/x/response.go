package x

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okian/engageboard/internal/domain/dedupe"
	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/pkg/logger"
	"github.com/okian/engageboard/pkg/metrics"
)

// searchResponse is the subset of the recent-search payload we read.
type searchResponse struct {
	Data     []tweet `json:"data"`
	Includes struct {
		Users []user `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type tweet struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	AuthorID      string        `json:"author_id"`
	CreatedAt     string        `json:"created_at"`
	PublicMetrics publicMetrics `json:"public_metrics"`
}

// publicMetrics fields are absent on some posts; absent decodes to zero.
type publicMetrics struct {
	RetweetCount    int64 `json:"retweet_count"`
	ReplyCount      int64 `json:"reply_count"`
	LikeCount       int64 `json:"like_count"`
	QuoteCount      int64 `json:"quote_count"`
	BookmarkCount   int64 `json:"bookmark_count"`
	ImpressionCount int64 `json:"impression_count"`
}

type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func decodePage(body []byte) (searchResponse, error) {
	var page searchResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return searchResponse{}, fmt.Errorf("%w: decode search response: %v", model.ErrUpstream, err)
	}
	return page, nil
}

// PostLink returns the canonical link of a post.
func PostLink(handle, postID string) string {
	return fmt.Sprintf("https://x.com/%s/status/%s", handle, postID)
}

// converter turns pages into engagement records, dropping duplicates and
// invalid posts.
type converter struct {
	wallets *WalletResolver
	seen    dedupe.Deduper
	logger  logger.Logger
}

func (c *converter) convert(ctx context.Context, page searchResponse) []model.EngagementRecord {
	handles := make(map[string]string, len(page.Includes.Users))
	for _, u := range page.Includes.Users {
		handles[u.ID] = u.Username
	}

	out := make([]model.EngagementRecord, 0, len(page.Data))
	for _, t := range page.Data {
		if c.seen.SeenAndRecord(ctx, t.ID) {
			metrics.RecordRecordRejected("duplicate")
			continue
		}
		handle := handles[t.AuthorID]
		if handle == "" {
			handle = model.UnknownAuthor
		}
		m := model.Metrics{
			Retweets:    t.PublicMetrics.RetweetCount,
			Replies:     t.PublicMetrics.ReplyCount,
			Likes:       t.PublicMetrics.LikeCount,
			Quotes:      t.PublicMetrics.QuoteCount,
			Bookmarks:   t.PublicMetrics.BookmarkCount,
			Impressions: t.PublicMetrics.ImpressionCount,
		}
		rec, err := model.NewEngagementRecord(t.ID, handle, PostLink(handle, t.ID), m, c.wallets.Resolve(handle, t.Text))
		if err != nil {
			reason := "invalid"
			if errors.Is(err, model.ErrInvalidRecord) {
				reason = "invalid_record"
			}
			metrics.RecordRecordRejected(reason)
			c.logger.Warn(ctx, "skipping post", logger.String("postID", t.ID), logger.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out
}
