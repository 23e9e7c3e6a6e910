// Package ledger defines the account a distribution cycle signs and pays
// with, plus an in-process implementation.
package ledger

import (
	"context"

	"github.com/okian/engageboard/internal/domain/model"
)

// Account is a ledger identity able to sign, call contracts and move funds.
// Every method that returns a string returns a transaction hash.
type Account interface {
	// Address returns the checksummed account address.
	Address() string
	// Sign returns an EIP-191 signature of payload.
	Sign(ctx context.Context, payload []byte) ([]byte, error)
	// InvokeContract calls method on contract and waits for confirmation.
	InvokeContract(ctx context.Context, contract, method string, args ...any) (string, error)
	// RequestFunds asks a faucet to top up asset.
	RequestFunds(ctx context.Context, asset string) (string, error)
	// Transfer sends amount of asset to recipient and waits for confirmation.
	Transfer(ctx context.Context, amount model.Amount, asset, recipient string) (string, error)
	// Balance returns the account's holding of asset.
	Balance(ctx context.Context, asset string) (model.Amount, error)
}
