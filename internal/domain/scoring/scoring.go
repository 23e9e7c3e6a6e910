// Package scoring turns raw post engagement into a single comparable score.
package scoring

import "github.com/okian/engageboard/internal/domain/model"

// Weights are the per-metric multipliers of the linear score.
type Weights struct {
	Retweets    float64
	Replies     float64
	Likes       float64
	Quotes      float64
	Bookmarks   float64
	Impressions float64
}

// DefaultWeights is the production weighting:
// 2·retweets + 1·replies + 3·likes + 2·quotes + 1·bookmarks + 0.1·impressions.
var DefaultWeights = Weights{
	Retweets:    2,
	Replies:     1,
	Likes:       3,
	Quotes:      2,
	Bookmarks:   1,
	Impressions: 0.1,
}

// Scorer computes scores with a fixed set of weights. The zero value uses
// DefaultWeights.
type Scorer struct {
	weights *Weights
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights overrides the default weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		s.weights = &w
	}
}

// New creates a Scorer.
func New(opts ...Option) Scorer {
	s := Scorer{}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Score is pure and always defined for validated metrics.
func (s Scorer) Score(m model.Metrics) float64 {
	w := DefaultWeights
	if s.weights != nil {
		w = *s.weights
	}
	return w.Retweets*float64(m.Retweets) +
		w.Replies*float64(m.Replies) +
		w.Likes*float64(m.Likes) +
		w.Quotes*float64(m.Quotes) +
		w.Bookmarks*float64(m.Bookmarks) +
		w.Impressions*float64(m.Impressions)
}

// Score applies DefaultWeights.
func Score(m model.Metrics) float64 {
	return Scorer{}.Score(m)
}
