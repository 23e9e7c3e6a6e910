package ledger

import (
	"errors"
)

// Sentinel errors shared by ledger implementations.
var (
	ErrUnsupportedAsset  = errors.New("unsupported asset")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrUnknownContract   = errors.New("unknown contract")
	ErrUnknownMethod     = errors.New("unknown contract method")
	ErrFaucetUnavailable = errors.New("faucet unavailable")
)
