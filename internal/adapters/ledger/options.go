package ledger

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/okian/engageboard/internal/domain/model"
)

// DefaultAsset is the reward token used when none is configured.
const DefaultAsset = "usdc"

// MemoryOption configures a Memory account.
type MemoryOption func(*Memory) error

// WithPrivateKey loads the signing key from a hex string, with or without 0x.
func WithPrivateKey(hexKey string) MemoryOption {
	return func(m *Memory) error {
		hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
		if hexKey == "" {
			return nil
		}
		key, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return fmt.Errorf("parse private key: %w", err)
		}
		m.key = key
		return nil
	}
}

// WithAsset sets the asset the account holds. It replaces the default.
func WithAsset(asset string) MemoryOption {
	return func(m *Memory) error {
		if asset != "" {
			m.assets = map[string]bool{asset: true}
		}
		return nil
	}
}

// WithBalance sets the starting balance of asset.
func WithBalance(asset string, amount model.Amount) MemoryOption {
	return func(m *Memory) error {
		m.assets[asset] = true
		m.balances[asset] = amount
		return nil
	}
}

// WithFaucetDrip sets how much each RequestFunds call credits.
func WithFaucetDrip(amount model.Amount) MemoryOption {
	return func(m *Memory) error {
		m.faucetDrip = amount
		return nil
	}
}

// WithContract registers a contract address that accepts calls.
func WithContract(address string) MemoryOption {
	return func(m *Memory) error {
		if address == "" {
			return nil
		}
		if !common.IsHexAddress(address) {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
		}
		m.contracts[normalize(address)] = true
		return nil
	}
}
