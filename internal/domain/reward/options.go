package reward

import (
	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/pkg/logger"
)

const defaultAsset = "usdc"

// Option configures a Distributor.
type Option func(*Distributor)

// WithAsset sets the asset paid out.
func WithAsset(asset string) Option {
	return func(d *Distributor) {
		if asset != "" {
			d.asset = asset
		}
	}
}

// WithMinBalance sets the balance floor below which a top-up is requested.
func WithMinBalance(amount model.Amount) Option {
	return func(d *Distributor) {
		d.minBalance = amount
	}
}

// WithLogger sets the distributor logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Distributor) {
		if l != nil {
			d.logger = l
		}
	}
}
