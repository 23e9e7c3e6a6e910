package model

import (
	"fmt"
	"strings"
	"time"
)

// SignedRecord binds a canonical leaderboard payload to its signature.
type SignedRecord struct {
	Payload       []byte `json:"payload"`
	PayloadHash   string `json:"payload_hash"`
	Signature     string `json:"signature"`
	SignerAddress string `json:"signer_address"`
}

// TransferStatus is the outcome class of one reward transfer.
type TransferStatus string

const (
	TransferSuccess TransferStatus = "success"
	TransferFailed  TransferStatus = "failed"
)

// TransferOutcome records the result of paying one wallet.
type TransferOutcome struct {
	WalletAddress string         `json:"wallet_address"`
	Amount        Amount         `json:"amount"`
	Status        TransferStatus `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	TxHash        string         `json:"tx_hash,omitempty"`
}

// Succeeded builds a Success outcome.
func Succeeded(wallet string, amount Amount, txHash string) TransferOutcome {
	return TransferOutcome{WalletAddress: wallet, Amount: amount, Status: TransferSuccess, TxHash: txHash}
}

// Failed builds a Failed outcome carrying err as the reason.
func Failed(wallet string, amount Amount, err error) TransferOutcome {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return TransferOutcome{WalletAddress: wallet, Amount: amount, Status: TransferFailed, Reason: reason}
}

// DistributionBundle is the append-only audit record of one cycle.
// AnchorTxHash is empty when anchoring failed.
type DistributionBundle struct {
	ID            string            `json:"id"`
	SignerAddress string            `json:"signer_address"`
	Signature     string            `json:"signature"`
	PayloadHash   string            `json:"payload_hash"`
	AnchorTxHash  string            `json:"anchor_tx_hash,omitempty"`
	Results       []TransferOutcome `json:"per_wallet_results"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewDistributionBundle validates the fields every bundle must carry.
func NewDistributionBundle(id string, signed SignedRecord, anchorTxHash string, results []TransferOutcome, createdAt time.Time) (DistributionBundle, error) {
	switch {
	case strings.TrimSpace(id) == "":
		return DistributionBundle{}, fmt.Errorf("bundle: missing id")
	case signed.Signature == "":
		return DistributionBundle{}, fmt.Errorf("bundle: missing signature")
	case signed.SignerAddress == "":
		return DistributionBundle{}, fmt.Errorf("bundle: missing signer address")
	case createdAt.IsZero():
		return DistributionBundle{}, fmt.Errorf("bundle: missing creation time")
	}
	cp := make([]TransferOutcome, len(results))
	copy(cp, results)
	return DistributionBundle{
		ID:            id,
		SignerAddress: signed.SignerAddress,
		Signature:     signed.Signature,
		PayloadHash:   signed.PayloadHash,
		AnchorTxHash:  anchorTxHash,
		Results:       cp,
		CreatedAt:     createdAt,
	}, nil
}

// Anchored reports whether the signature made it on-chain.
func (b DistributionBundle) Anchored() bool { return b.AnchorTxHash != "" }

// Failures counts failed transfers.
func (b DistributionBundle) Failures() int {
	n := 0
	for _, r := range b.Results {
		if r.Status == TransferFailed {
			n++
		}
	}
	return n
}
