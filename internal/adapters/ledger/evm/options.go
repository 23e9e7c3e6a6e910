package evm

import (
	"net/http"
	"time"

	"github.com/okian/engageboard/pkg/logger"
)

// Option configures an Account.
type Option func(*Account)

// WithLogger sets the account logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Account) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithPollInterval sets how often receipts are polled.
func WithPollInterval(d time.Duration) Option {
	return func(a *Account) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// WithHTTPClient sets the client used for faucet calls.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Account) {
		if c != nil {
			a.httpClient = c
		}
	}
}
