// Package provenance binds a ranked leaderboard to a signature and anchors
// that signature on a ledger.
package provenance

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/okian/engageboard/internal/domain/model"
)

// Signature layout produced by crypto.Sign: R || S || V.
const (
	signatureLength = 65
	recoveryIDIndex = 64
	legacyVOffset   = 27
)

// canonicalEntry fixes field order and names of the signed payload.
type canonicalEntry struct {
	Rank          int     `json:"rank"`
	Handle        string  `json:"handle"`
	PostLink      string  `json:"post_link"`
	Score         float64 `json:"score"`
	WalletAddress string  `json:"wallet_address"`
}

// Canonicalize serializes entries in rank order into the byte form that gets
// signed. Equal inputs always produce equal bytes.
func Canonicalize(entries []model.LeaderboardEntry) ([]byte, error) {
	out := make([]canonicalEntry, len(entries))
	for i, e := range entries {
		out[i] = canonicalEntry{
			Rank:          e.Rank,
			Handle:        e.Handle,
			PostLink:      e.PostLink,
			Score:         e.Score,
			WalletAddress: e.WalletAddress,
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return b, nil
}

// Hash returns the EIP-191 personal message hash of payload.
func Hash(payload []byte) []byte {
	return accounts.TextHash(payload)
}

// SignText signs the EIP-191 hash of payload with key. V is shifted to 27/28
// so the result matches what wallets return for personal_sign.
func SignText(key *ecdsa.PrivateKey, payload []byte) ([]byte, error) {
	if key == nil {
		return nil, errors.New("nil signing key")
	}
	sig, err := crypto.Sign(Hash(payload), key)
	if err != nil {
		return nil, err
	}
	sig[recoveryIDIndex] += legacyVOffset
	return sig, nil
}

// RecoverSigner returns the address that produced sig over payload.
func RecoverSigner(payload, sig []byte) (common.Address, error) {
	if len(sig) != signatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", signatureLength, len(sig))
	}
	cp := make([]byte, signatureLength)
	copy(cp, sig)
	if cp[recoveryIDIndex] >= legacyVOffset {
		cp[recoveryIDIndex] -= legacyVOffset
	}
	pub, err := crypto.SigToPub(Hash(payload), cp)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks that rec.Signature was produced by rec.SignerAddress over
// rec.Payload and that rec.PayloadHash matches.
func Verify(rec model.SignedRecord) error {
	sig, err := hexutil.Decode(rec.Signature)
	if err != nil {
		return fmt.Errorf("%w: decode signature: %v", ErrVerification, err)
	}
	if rec.PayloadHash != "" && rec.PayloadHash != hexutil.Encode(Hash(rec.Payload)) {
		return fmt.Errorf("%w: payload hash mismatch", ErrVerification)
	}
	addr, err := RecoverSigner(rec.Payload, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if !common.IsHexAddress(rec.SignerAddress) || addr != common.HexToAddress(rec.SignerAddress) {
		return fmt.Errorf("%w: recovered %s, want %s", ErrVerification, addr.Hex(), rec.SignerAddress)
	}
	return nil
}
