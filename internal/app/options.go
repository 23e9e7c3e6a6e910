package service

import (
	"strings"
	"time"

	"github.com/okian/engageboard/internal/domain/dedupe"
	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQuery sets the search query used by ScoreAndRank.
func WithQuery(q string) Option {
	return func(s *Service) {
		if q = strings.TrimSpace(q); q != "" {
			s.query = q
		}
	}
}

// WithLookback fetches posts newer than now-d instead of since midnight UTC.
func WithLookback(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lookback = d
		}
	}
}

// WithRewardTotal sets the amount split across the top wallets each cycle.
func WithRewardTotal(total model.Amount) Option {
	return func(s *Service) {
		s.rewardTotal = total
	}
}

// WithTopN sets how many leading entries are signed and paid.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithSignerAddress sets the address reported by Stats.
func WithSignerAddress(addr string) Option {
	return func(s *Service) {
		s.signerAddress = addr
	}
}

// WithQueue sets the queue Submit places commands on.
func WithQueue(q CommandQueue) Option {
	return func(s *Service) {
		if q != nil {
			s.queue = q
		}
	}
}

// WithDeduper sets the request id tracker used for idempotent submissions.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithStatusLimit bounds how many command statuses are kept.
func WithStatusLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.statusLimit = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how bundle and request ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
