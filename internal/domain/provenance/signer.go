package provenance

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/pkg/logger"
	"github.com/okian/engageboard/pkg/metrics"
)

// KeyHolder produces EIP-191 signatures for an account it controls.
type KeyHolder interface {
	Address() string
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}

// Signer turns a leaderboard selection into a SignedRecord.
type Signer struct {
	key    KeyHolder
	logger logger.Logger
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithSignerLogger sets the logger used by the signer.
func WithSignerLogger(l logger.Logger) SignerOption {
	return func(s *Signer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSigner creates a signer backed by key.
func NewSigner(key KeyHolder, opts ...SignerOption) *Signer {
	s := &Signer{key: key, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign canonicalizes entries, asks the key holder for a signature and checks
// that the signature recovers to the holder's address. Any failure is
// reported as model.ErrSigningFailed.
func (s *Signer) Sign(ctx context.Context, entries []model.LeaderboardEntry) (model.SignedRecord, error) {
	payload, err := Canonicalize(entries)
	if err != nil {
		return model.SignedRecord{}, fmt.Errorf("%w: %v", model.ErrSigningFailed, err)
	}

	start := time.Now()
	sig, err := s.key.Sign(ctx, payload)
	metrics.RecordSignLatency(time.Since(start))
	if err != nil {
		return model.SignedRecord{}, fmt.Errorf("%w: %v", model.ErrSigningFailed, err)
	}

	recovered, err := RecoverSigner(payload, sig)
	if err != nil {
		return model.SignedRecord{}, fmt.Errorf("%w: %v", model.ErrSigningFailed, err)
	}
	if recovered != common.HexToAddress(s.key.Address()) {
		return model.SignedRecord{}, fmt.Errorf("%w: signature recovers to %s, not %s",
			model.ErrSigningFailed, recovered.Hex(), s.key.Address())
	}

	rec := model.SignedRecord{
		Payload:       payload,
		PayloadHash:   hexutil.Encode(Hash(payload)),
		Signature:     hexutil.Encode(sig),
		SignerAddress: recovered.Hex(),
	}
	s.logger.Debug(ctx, "leaderboard signed",
		logger.Int("entries", len(entries)),
		logger.String("payloadHash", rec.PayloadHash),
		logger.String("signer", rec.SignerAddress))
	return rec, nil
}
