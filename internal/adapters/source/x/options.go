package x

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/engageboard/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithSearchURL overrides the search endpoint.
func WithSearchURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.searchURL = u
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRequestsPerSecond paces outgoing requests.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithSleeper injects the wait used during rate-limit cooldowns.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		if s != nil {
			c.sleeper = s
		}
	}
}

// WithCooldown sets the wait after a 429 response.
func WithCooldown(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.cooldown = d
		}
	}
}

// WithMaxRateLimitRetries bounds 429 retries. Zero retries forever.
func WithMaxRateLimitRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithMaxResults sets the page size, clamped to what the API accepts.
func WithMaxResults(n int) Option {
	return func(c *Client) {
		switch {
		case n <= 0:
		case n < minMaxResults:
			c.maxResults = minMaxResults
		case n > maxMaxResults:
			c.maxResults = maxMaxResults
		default:
			c.maxResults = n
		}
	}
}

// WithMaxPages caps pagination.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithWallets sets the wallet resolver.
func WithWallets(r *WalletResolver) Option {
	return func(c *Client) {
		c.wallets = r
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the time source used for the default start time.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}
