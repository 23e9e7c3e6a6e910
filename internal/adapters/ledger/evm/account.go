// Package evm implements the ledger account against an EVM JSON-RPC node.
package evm

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/okian/engageboard/internal/adapters/ledger"
	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/provenance"
	"github.com/okian/engageboard/pkg/logger"
)

// NativeAsset names the chain's gas token.
const NativeAsset = "eth"

const (
	nativeDecimals          = 18
	gasFeeCapAdjustmentRate = 2
	defaultConfirmTimeout   = 2 * time.Minute
	defaultPollInterval     = time.Second
	defaultFaucetTimeout    = 30 * time.Second
)

// Backend is the subset of ethclient.Client used by Account.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	Close()
}

// Config describes the node, key and reward token.
type Config struct {
	RPCURL         string
	PrivateKey     string
	Asset          string
	TokenAddress   string
	TokenDecimals  int
	FaucetURL      string
	ConfirmTimeout time.Duration
}

type token struct {
	address  common.Address
	decimals int
}

// Account is a ledger.Account backed by an EVM node. Transactions are sent
// one at a time so nonces stay ordered.
type Account struct {
	mu sync.Mutex

	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	signer  types.Signer

	tokens     map[string]token
	anchorABI  abi.ABI
	erc20ABI   abi.ABI
	faucetURL  string
	httpClient *http.Client

	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         logger.Logger
}

var _ ledger.Account = (*Account)(nil)

// Open dials cfg.RPCURL and returns an account ready for use. Close releases
// the connection.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Account, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum node: %w", err)
	}
	a, err := New(ctx, client, cfg, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	return a, nil
}

// New builds an account over an existing backend.
func New(ctx context.Context, backend Backend, cfg Config, opts ...Option) (*Account, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve chain ID: %w", err)
	}
	anchorABI, err := abi.JSON(strings.NewReader(storeABI))
	if err != nil {
		return nil, fmt.Errorf("parse anchor abi: %w", err)
	}
	erc20, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	a := &Account{
		backend:        backend,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		chainID:        chainID,
		signer:         types.LatestSignerForChainID(chainID),
		tokens:         map[string]token{NativeAsset: {decimals: nativeDecimals}},
		anchorABI:      anchorABI,
		erc20ABI:       erc20,
		faucetURL:      strings.TrimSpace(cfg.FaucetURL),
		httpClient:     &http.Client{Timeout: defaultFaucetTimeout},
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   defaultPollInterval,
		logger:         logger.Nop(),
	}
	if a.confirmTimeout <= 0 {
		a.confirmTimeout = defaultConfirmTimeout
	}
	if cfg.Asset != "" && cfg.Asset != NativeAsset {
		if !common.IsHexAddress(cfg.TokenAddress) {
			return nil, fmt.Errorf("%w: token address %q for %s", ledger.ErrInvalidAddress, cfg.TokenAddress, cfg.Asset)
		}
		if cfg.TokenDecimals < model.AmountPrecision {
			return nil, fmt.Errorf("token %s: decimals %d below %d", cfg.Asset, cfg.TokenDecimals, model.AmountPrecision)
		}
		a.tokens[cfg.Asset] = token{address: common.HexToAddress(cfg.TokenAddress), decimals: cfg.TokenDecimals}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Close releases the node connection.
func (a *Account) Close() {
	a.backend.Close()
}

// Address implements ledger.Account.
func (a *Account) Address() string { return a.from.Hex() }

// Sign implements ledger.Account.
func (a *Account) Sign(_ context.Context, payload []byte) ([]byte, error) {
	return provenance.SignText(a.key, payload)
}

// InvokeContract implements ledger.Account. Methods are resolved against the
// anchor storage ABI.
func (a *Account) InvokeContract(ctx context.Context, contract, method string, args ...any) (string, error) {
	if !common.IsHexAddress(contract) {
		return "", fmt.Errorf("%w: contract %q", ledger.ErrInvalidAddress, contract)
	}
	if _, ok := a.anchorABI.Methods[method]; !ok {
		return "", fmt.Errorf("%w: %s", ledger.ErrUnknownMethod, method)
	}
	input, err := a.anchorABI.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("failed to pack input: %w", err)
	}
	receipt, err := a.send(ctx, common.HexToAddress(contract), nil, input)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// Transfer implements ledger.Account.
func (a *Account) Transfer(ctx context.Context, amount model.Amount, asset, recipient string) (string, error) {
	tok, ok := a.tokens[asset]
	if !ok {
		return "", fmt.Errorf("%w: %s", ledger.ErrUnsupportedAsset, asset)
	}
	if !common.IsHexAddress(recipient) {
		return "", fmt.Errorf("%w: %q", ledger.ErrInvalidAddress, recipient)
	}
	to := common.HexToAddress(recipient)
	value := toBaseUnits(amount, tok.decimals)

	var (
		receipt *types.Receipt
		err     error
	)
	if tok.address == (common.Address{}) {
		receipt, err = a.send(ctx, to, value, nil)
	} else {
		var input []byte
		input, err = a.erc20ABI.Pack("transfer", to, value)
		if err != nil {
			return "", fmt.Errorf("failed to pack input: %w", err)
		}
		receipt, err = a.send(ctx, tok.address, nil, input)
	}
	if err != nil {
		if isInsufficientFunds(err) {
			return "", fmt.Errorf("%w: %v", model.ErrInsufficientFunds, err)
		}
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// Balance implements ledger.Account.
func (a *Account) Balance(ctx context.Context, asset string) (model.Amount, error) {
	tok, ok := a.tokens[asset]
	if !ok {
		return model.Amount{}, fmt.Errorf("%w: %s", ledger.ErrUnsupportedAsset, asset)
	}
	if tok.address == (common.Address{}) {
		wei, err := a.backend.BalanceAt(ctx, a.from, nil)
		if err != nil {
			return model.Amount{}, fmt.Errorf("failed to get balance: %w", err)
		}
		return fromBaseUnits(wei, tok.decimals)
	}

	input, err := a.erc20ABI.Pack("balanceOf", a.from)
	if err != nil {
		return model.Amount{}, fmt.Errorf("failed to pack input: %w", err)
	}
	out, err := a.backend.CallContract(ctx, ethereum.CallMsg{To: &tok.address, Data: input}, nil)
	if err != nil {
		return model.Amount{}, fmt.Errorf("failed to call contract: %w", err)
	}
	values, err := a.erc20ABI.Unpack("balanceOf", out)
	if err != nil || len(values) != 1 {
		return model.Amount{}, fmt.Errorf("failed to unpack balance: %v", err)
	}
	raw, ok := values[0].(*big.Int)
	if !ok {
		return model.Amount{}, fmt.Errorf("unexpected balance type %T", values[0])
	}
	return fromBaseUnits(raw, tok.decimals)
}

type faucetRequest struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
}

type faucetResponse struct {
	TransactionHash string `json:"transaction_hash"`
}

// RequestFunds implements ledger.Account by calling the configured faucet
// and waiting for its transaction to confirm.
func (a *Account) RequestFunds(ctx context.Context, asset string) (string, error) {
	if _, ok := a.tokens[asset]; !ok {
		return "", fmt.Errorf("%w: %s", ledger.ErrUnsupportedAsset, asset)
	}
	if a.faucetURL == "" {
		return "", ledger.ErrFaucetUnavailable
	}
	body, err := json.Marshal(faucetRequest{Address: a.from.Hex(), Asset: asset})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.faucetURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build faucet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ledger.ErrFaucetUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ledger.ErrFaucetUnavailable, resp.StatusCode)
	}
	var fr faucetResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return "", fmt.Errorf("decode faucet response: %w", err)
	}
	if fr.TransactionHash == "" {
		return "", fmt.Errorf("%w: empty transaction hash", ledger.ErrFaucetUnavailable)
	}
	if _, err := a.waitForConfirmation(ctx, common.HexToHash(fr.TransactionHash)); err != nil {
		return "", err
	}
	return fr.TransactionHash, nil
}

// send builds, signs and broadcasts a dynamic fee transaction and waits for
// a successful receipt.
func (a *Account) send(ctx context.Context, to common.Address, value *big.Int, input []byte) (*types.Receipt, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	nonce, err := a.backend.PendingNonceAt(ctx, a.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	tipCap, feeCap, err := a.suggestGasFees(ctx)
	if err != nil {
		return nil, err
	}
	gas, err := a.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      a.from,
		To:        &to,
		GasFeeCap: feeCap,
		GasTipCap: tipCap,
		Value:     value,
		Data:      input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	tx, err := types.SignNewTx(a.key, a.signer, &types.DynamicFeeTx{
		ChainID:   a.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      input,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := a.backend.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	a.logger.Debug(ctx, "transaction sent",
		logger.String("hash", tx.Hash().Hex()),
		logger.String("to", to.Hex()),
		logger.Any("nonce", nonce))

	receipt, err := a.waitForConfirmation(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return receipt, nil
}

// suggestGasFees returns tip and fee caps with feeCap = baseFee*2 + tip.
func (a *Account) suggestGasFees(ctx context.Context) (tipCap, feeCap *big.Int, err error) {
	tipCap, err = a.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to suggest gas tip cap: %w", err)
	}
	head, err := a.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get header: %w", err)
	}
	baseFee := head.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	feeCap = new(big.Int).Mul(baseFee, big.NewInt(gasFeeCapAdjustmentRate))
	feeCap.Add(feeCap, tipCap)
	return tipCap, feeCap, nil
}

func (a *Account) waitForConfirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	timeout := time.After(a.confirmTimeout)

	for {
		receipt, err := a.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			a.logger.Debug(ctx, "receipt lookup failed", logger.String("hash", hash.Hex()), logger.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, fmt.Errorf("transaction %s confirmation timed out", hash.Hex())
		case <-ticker.C:
		}
	}
}

func isInsufficientFunds(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "insufficient funds") || strings.Contains(msg, "exceeds balance")
}
