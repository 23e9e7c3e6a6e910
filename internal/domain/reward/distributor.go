// Package reward splits a reward total across ranked wallets and pays them
// one at a time.
package reward

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/pkg/logger"
	"github.com/okian/engageboard/pkg/metrics"
)

// Wallet is the paying side of a ledger account.
type Wallet interface {
	Balance(ctx context.Context, asset string) (model.Amount, error)
	RequestFunds(ctx context.Context, asset string) (string, error)
	Transfer(ctx context.Context, amount model.Amount, asset, recipient string) (string, error)
}

// ErrMissingWallet marks a ranked participant with no payout address.
var ErrMissingWallet = errors.New("no wallet address")

// Distributor pays equal shares of a reward total.
type Distributor struct {
	wallet     Wallet
	asset      string
	minBalance model.Amount
	logger     logger.Logger
}

// NewDistributor creates a distributor paying from wallet.
func NewDistributor(wallet Wallet, opts ...Option) *Distributor {
	d := &Distributor{
		wallet: wallet,
		asset:  defaultAsset,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Share returns the per-wallet amount for total split n ways.
func Share(total model.Amount, n int) model.Amount {
	return total.Split(n)
}

// Distribute pays Share(total, len(wallets)) to each wallet in order and
// returns one outcome per wallet. A failed wallet never stops the others.
//
// Calls to the ledger run on a context detached from ctx's cancellation so an
// in-flight transfer always completes. Once ctx is done no new wallet is
// started and the rest are reported as interrupted.
func (d *Distributor) Distribute(ctx context.Context, total model.Amount, wallets []string) []model.TransferOutcome {
	outcomes := make([]model.TransferOutcome, 0, len(wallets))
	if len(wallets) == 0 {
		return outcomes
	}

	per := Share(total, len(wallets))
	ledgerCtx := context.WithoutCancel(ctx)

	d.logger.Info(ctx, "distributing rewards",
		logger.String("total", total.String()),
		logger.String("perWallet", per.String()),
		logger.Int("wallets", len(wallets)),
		logger.String("asset", d.asset))

	for i, w := range wallets {
		if ctx.Err() != nil {
			for _, rest := range wallets[i:] {
				outcomes = append(outcomes, d.record(ctx, model.Failed(rest, per, model.ErrCycleInterrupted)))
			}
			break
		}
		outcomes = append(outcomes, d.record(ctx, d.payOne(ledgerCtx, per, w)))
	}
	return outcomes
}

func (d *Distributor) payOne(ctx context.Context, amount model.Amount, wallet string) model.TransferOutcome {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return model.Failed(wallet, amount, fmt.Errorf("%w: %w", model.ErrTransferFailed, ErrMissingWallet))
	}
	if amount.IsZero() {
		return model.Failed(wallet, amount, fmt.Errorf("%w: zero share", model.ErrTransferFailed))
	}
	if err := d.ensureFunds(ctx, amount); err != nil {
		return model.Failed(wallet, amount, err)
	}
	txHash, err := d.wallet.Transfer(ctx, amount, d.asset, wallet)
	if err != nil {
		if !errors.Is(err, model.ErrTransferFailed) {
			err = fmt.Errorf("%w: %w", model.ErrTransferFailed, err)
		}
		return model.Failed(wallet, amount, err)
	}
	return model.Succeeded(wallet, amount, txHash)
}

// ensureFunds tops the account up when its balance is below the larger of
// amount and the configured minimum.
func (d *Distributor) ensureFunds(ctx context.Context, amount model.Amount) error {
	threshold := model.Max(amount, d.minBalance)

	bal, err := d.wallet.Balance(ctx, d.asset)
	if err == nil && !bal.LT(threshold) {
		return nil
	}
	if err != nil {
		d.logger.Warn(ctx, "balance check failed, requesting top-up", logger.Error(err))
	}

	txHash, faucetErr := d.wallet.RequestFunds(ctx, d.asset)
	if faucetErr != nil {
		metrics.RecordFaucetRequest("error")
		d.logger.Warn(ctx, "faucet top-up failed", logger.Error(faucetErr))
	} else {
		metrics.RecordFaucetRequest("ok")
		d.logger.Debug(ctx, "faucet top-up confirmed", logger.String("txHash", txHash))
	}

	bal, err = d.wallet.Balance(ctx, d.asset)
	switch {
	case err != nil && faucetErr != nil:
		return fmt.Errorf("%w: top-up failed: %v", model.ErrInsufficientFunds, faucetErr)
	case err != nil:
		// Faucet confirmed but balance is unreadable; let the transfer decide.
		return nil
	case bal.LT(amount):
		if faucetErr != nil {
			return fmt.Errorf("%w: balance %s below %s, top-up failed: %v", model.ErrInsufficientFunds, bal, amount, faucetErr)
		}
		return fmt.Errorf("%w: balance %s below %s after top-up", model.ErrInsufficientFunds, bal, amount)
	}
	return nil
}

func (d *Distributor) record(ctx context.Context, o model.TransferOutcome) model.TransferOutcome {
	metrics.RecordTransfer(string(o.Status))
	if o.Status == model.TransferFailed {
		d.logger.Warn(ctx, "reward transfer failed",
			logger.String("wallet", o.WalletAddress),
			logger.String("amount", o.Amount.String()),
			logger.String("reason", o.Reason))
		return o
	}
	d.logger.Info(ctx, "reward transferred",
		logger.String("wallet", o.WalletAddress),
		logger.String("amount", o.Amount.String()),
		logger.String("txHash", o.TxHash))
	return o
}
