package provenance

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/pkg/logger"
)

// StoreMethod is the anchor contract method that receives the signature.
const StoreMethod = "store"

// ContractInvoker submits a state-changing contract call and returns the
// transaction hash once the call is confirmed.
type ContractInvoker interface {
	InvokeContract(ctx context.Context, contract, method string, args ...any) (string, error)
}

// Anchor writes signatures to an on-chain storage contract.
type Anchor struct {
	invoker  ContractInvoker
	contract string
	logger   logger.Logger
}

// AnchorOption configures an Anchor.
type AnchorOption func(*Anchor)

// WithAnchorLogger sets the logger used by the anchor.
func WithAnchorLogger(l logger.Logger) AnchorOption {
	return func(a *Anchor) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAnchor creates an anchor targeting contract. An empty contract address
// makes every Submit fail with model.ErrAnchorFailed.
func NewAnchor(invoker ContractInvoker, contract string, opts ...AnchorOption) *Anchor {
	a := &Anchor{invoker: invoker, contract: strings.TrimSpace(contract), logger: logger.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Submit stores rec.Signature on-chain and returns the transaction hash.
func (a *Anchor) Submit(ctx context.Context, rec model.SignedRecord) (string, error) {
	if a.contract == "" {
		return "", fmt.Errorf("%w: %v", model.ErrAnchorFailed, ErrAnchorNotConfigured)
	}
	txHash, err := a.invoker.InvokeContract(ctx, a.contract, StoreMethod, rec.Signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrAnchorFailed, err)
	}
	a.logger.Info(ctx, "signature anchored",
		logger.String("contract", a.contract),
		logger.String("txHash", txHash))
	return txHash, nil
}
