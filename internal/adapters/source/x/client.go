// Package x fetches engagement metrics from the X API v2 recent search
// endpoint.
package x

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/engageboard/internal/domain/dedupe"
	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/pkg/logger"
	"github.com/okian/engageboard/pkg/metrics"
)

// Defaults for the search client.
const (
	DefaultSearchURL      = "https://api.twitter.com/2/tweets/search/recent"
	DefaultCooldown       = 15 * time.Minute
	defaultMaxResults     = 100
	defaultMaxPages       = 10
	defaultRequestsPerSec = 1.0
	defaultHTTPTimeout    = 30 * time.Second
	maxErrorBodyBytes     = 512
	searchTimeLayout      = "2006-01-02T15:04:05Z"
	tweetFields           = "created_at,public_metrics,author_id"
	userFields            = "username"
	expansions            = "author_id"
	minMaxResults         = 10
	maxMaxResults         = 100
)

// Query selects posts to fetch. A zero StartTime means midnight UTC today.
type Query struct {
	Text      string
	StartTime time.Time
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep implements Sleeper.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

func timerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client queries the recent search endpoint.
type Client struct {
	searchURL   string
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	sleeper     Sleeper
	cooldown    time.Duration
	maxRetries  int
	maxResults  int
	maxPages    int
	wallets     *WalletResolver
	logger      logger.Logger
	now         func() time.Time
}

// NewClient creates a search client.
func NewClient(bearerToken string, opts ...Option) *Client {
	c := &Client{
		searchURL:   DefaultSearchURL,
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		limiter:     rate.NewLimiter(rate.Limit(defaultRequestsPerSec), 1),
		sleeper:     SleeperFunc(timerSleep),
		cooldown:    DefaultCooldown,
		maxResults:  defaultMaxResults,
		maxPages:    defaultMaxPages,
		logger:      logger.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartOfDay returns midnight UTC of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Fetch returns the engagement records matching q in feed order. Pages are
// followed until the feed ends or the page limit is reached. A 429 response
// is retried unchanged after the cooldown; any other non-2xx status fails
// with model.ErrUpstream.
func (c *Client) Fetch(ctx context.Context, q Query) ([]model.EngagementRecord, error) {
	start := q.StartTime
	if start.IsZero() {
		start = StartOfDay(c.now())
	}
	conv := &converter{
		wallets: c.wallets,
		seen:    dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(c.maxResults * c.maxPages)),
		logger:  c.logger,
	}

	var (
		records   []model.EngagementRecord
		nextToken string
	)
	for page := 0; page < c.maxPages; page++ {
		params := url.Values{}
		params.Set("query", q.Text)
		params.Set("start_time", start.UTC().Format(searchTimeLayout))
		params.Set("max_results", strconv.Itoa(c.maxResults))
		params.Set("tweet.fields", tweetFields)
		params.Set("expansions", expansions)
		params.Set("user.fields", userFields)
		if nextToken != "" {
			params.Set("next_token", nextToken)
		}

		body, err := c.get(ctx, params)
		if err != nil {
			return nil, err
		}
		resp, err := decodePage(body)
		if err != nil {
			return nil, err
		}
		records = append(records, conv.convert(ctx, resp)...)

		nextToken = resp.Meta.NextToken
		if nextToken == "" {
			break
		}
	}

	metrics.RecordRecordsIngested(len(records))
	c.logger.Info(ctx, "fetched engagement records",
		logger.String("query", q.Text),
		logger.String("startTime", start.UTC().Format(searchTimeLayout)),
		logger.Int("records", len(records)))
	return records, nil
}

// get issues one search request, sleeping through 429 responses.
func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	target := c.searchURL + "?" + params.Encode()

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		status, body, err := c.do(ctx, target)
		if err != nil {
			return nil, err
		}
		switch {
		case status == http.StatusTooManyRequests:
			if c.maxRetries > 0 && attempt >= c.maxRetries {
				return nil, fmt.Errorf("%w: gave up after %d retries", model.ErrUpstreamRateLimited, attempt)
			}
			metrics.RecordRateLimitRetry()
			c.logger.Warn(ctx, "rate limit exceeded, waiting before retrying",
				logger.Duration("cooldown", c.cooldown),
				logger.Int("attempt", attempt+1))
			if err := c.sleeper.Sleep(ctx, c.cooldown); err != nil {
				return nil, fmt.Errorf("%w: %v", model.ErrUpstreamRateLimited, err)
			}
		case status < 200 || status > 299:
			return nil, fmt.Errorf("%w: status %d: %s", model.ErrUpstream, status, body)
		default:
			return body, nil
		}
	}
}

func (c *Client) do(ctx context.Context, target string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: create request: %v", model.ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordFetch("error", time.Since(start))
		return 0, nil, fmt.Errorf("%w: http request: %v", model.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.RecordFetch(statusClass(resp.StatusCode), time.Since(start))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %v", model.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBodyBytes {
			body = body[:maxErrorBodyBytes]
		}
	}
	return resp.StatusCode, body, nil
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// Replay serves a recorded search response from disk. It is used for
// offline runs and demos.
type Replay struct {
	path    string
	wallets *WalletResolver
	logger  logger.Logger
}

// NewReplay creates a replay source reading path on every Fetch.
func NewReplay(path string, wallets *WalletResolver, l logger.Logger) *Replay {
	if l == nil {
		l = logger.Nop()
	}
	return &Replay{path: path, wallets: wallets, logger: l}
}

// Fetch implements the same contract as Client.Fetch; the query is ignored.
func (r *Replay) Fetch(ctx context.Context, _ Query) ([]model.EngagementRecord, error) {
	body, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read recorded response: %v", model.ErrUpstream, err)
	}
	page, err := decodePage(body)
	if err != nil {
		return nil, err
	}
	conv := &converter{wallets: r.wallets, seen: dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0)), logger: r.logger}
	records := conv.convert(ctx, page)
	metrics.RecordRecordsIngested(len(records))
	return records, nil
}
