package ledger

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/provenance"
)

// Call is one contract invocation recorded by Memory.
type Call struct {
	Contract string
	Method   string
	Args     []any
	TxHash   string
}

// Memory is an in-process Account. It signs with a real secp256k1 key and
// keeps balances in memory. Faults can be injected for tests.
type Memory struct {
	mu sync.Mutex

	key     *ecdsa.PrivateKey
	address common.Address
	assets  map[string]bool

	balances   map[string]model.Amount
	received   map[string]model.Amount
	faucetDrip model.Amount
	contracts  map[string]bool
	calls      []Call
	nonce      uint64

	signErr     error
	invokeErr   error
	faucetErr   error
	balanceErr  error
	transferErr map[string]error
	onTransfer  func(recipient string)
}

// NewMemory creates an in-memory account. Without WithPrivateKey a fresh key
// is generated.
func NewMemory(opts ...MemoryOption) (*Memory, error) {
	m := &Memory{
		assets:      map[string]bool{DefaultAsset: true},
		balances:    make(map[string]model.Amount),
		received:    make(map[string]model.Amount),
		contracts:   make(map[string]bool),
		transferErr: make(map[string]error),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.key == nil {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		m.key = key
	}
	m.address = crypto.PubkeyToAddress(m.key.PublicKey)
	return m, nil
}

// Address implements Account.
func (m *Memory) Address() string { return m.address.Hex() }

// Sign implements Account.
func (m *Memory) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	err := m.signErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return provenance.SignText(m.key, payload)
}

// InvokeContract implements Account. Only contracts registered with
// WithContract accept calls.
func (m *Memory) InvokeContract(ctx context.Context, contract, method string, args ...any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.invokeErr != nil {
		return "", m.invokeErr
	}
	if !m.contracts[normalize(contract)] {
		return "", fmt.Errorf("%w: %s", ErrUnknownContract, contract)
	}
	if method == "" {
		return "", ErrUnknownMethod
	}
	hash := m.nextTxHashLocked()
	m.calls = append(m.calls, Call{Contract: contract, Method: method, Args: args, TxHash: hash})
	return hash, nil
}

// RequestFunds implements Account by crediting the configured faucet drip.
func (m *Memory) RequestFunds(ctx context.Context, asset string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.assets[asset] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	if m.faucetErr != nil {
		return "", m.faucetErr
	}
	if m.faucetDrip.IsZero() {
		return "", ErrFaucetUnavailable
	}
	m.balances[asset] = m.balances[asset].Add(m.faucetDrip)
	return m.nextTxHashLocked(), nil
}

// Transfer implements Account.
func (m *Memory) Transfer(ctx context.Context, amount model.Amount, asset, recipient string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	hook := m.onTransfer
	hash, err := m.transferLocked(amount, asset, recipient)
	m.mu.Unlock()

	if hook != nil {
		hook(recipient)
	}
	return hash, err
}

func (m *Memory) transferLocked(amount model.Amount, asset, recipient string) (string, error) {
	if !m.assets[asset] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	if !common.IsHexAddress(recipient) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, recipient)
	}
	if err := m.transferErr[normalize(recipient)]; err != nil {
		return "", err
	}
	bal := m.balances[asset]
	if bal.LT(amount) {
		return "", fmt.Errorf("%w: have %s %s, need %s", model.ErrInsufficientFunds, bal, asset, amount)
	}
	rest, err := model.AmountFromMicros(bal.Micros().Sub(amount.Micros()))
	if err != nil {
		return "", err
	}
	m.balances[asset] = rest
	key := normalize(recipient)
	m.received[key] = m.received[key].Add(amount)
	return m.nextTxHashLocked(), nil
}

// Balance implements Account.
func (m *Memory) Balance(ctx context.Context, asset string) (model.Amount, error) {
	if err := ctx.Err(); err != nil {
		return model.Amount{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.assets[asset] {
		return model.Amount{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	if m.balanceErr != nil {
		return model.Amount{}, m.balanceErr
	}
	return m.balances[asset], nil
}

// Received returns the total paid to recipient.
func (m *Memory) Received(recipient string) model.Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received[normalize(recipient)]
}

// Calls returns the recorded contract invocations.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// FailSign makes subsequent Sign calls return err. Pass nil to clear.
func (m *Memory) FailSign(err error) {
	m.mu.Lock()
	m.signErr = err
	m.mu.Unlock()
}

// FailInvoke makes subsequent InvokeContract calls return err.
func (m *Memory) FailInvoke(err error) {
	m.mu.Lock()
	m.invokeErr = err
	m.mu.Unlock()
}

// FailFaucet makes subsequent RequestFunds calls return err.
func (m *Memory) FailFaucet(err error) {
	m.mu.Lock()
	m.faucetErr = err
	m.mu.Unlock()
}

// FailBalance makes subsequent Balance calls return err.
func (m *Memory) FailBalance(err error) {
	m.mu.Lock()
	m.balanceErr = err
	m.mu.Unlock()
}

// FailTransferTo makes transfers to recipient return err.
func (m *Memory) FailTransferTo(recipient string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.transferErr, normalize(recipient))
		return
	}
	m.transferErr[normalize(recipient)] = err
}

// OnTransfer registers fn to run after every transfer attempt.
func (m *Memory) OnTransfer(fn func(recipient string)) {
	m.mu.Lock()
	m.onTransfer = fn
	m.mu.Unlock()
}

func (m *Memory) nextTxHashLocked() string {
	m.nonce++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], m.nonce)
	return crypto.Keccak256Hash(m.address.Bytes(), buf[:]).Hex()
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
