package provenance_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/provenance"
)

type keyHolder struct {
	fail  error
	other bool
}

var (
	signingKey, _ = crypto.HexToECDSA("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	otherKey, _   = crypto.GenerateKey()
)

func (k keyHolder) Address() string { return crypto.PubkeyToAddress(signingKey.PublicKey).Hex() }

func (k keyHolder) Sign(_ context.Context, payload []byte) ([]byte, error) {
	if k.fail != nil {
		return nil, k.fail
	}
	if k.other {
		return provenance.SignText(otherKey, payload)
	}
	return provenance.SignText(signingKey, payload)
}

type invoker struct {
	contract, method string
	args             []any
	err              error
}

func (i *invoker) InvokeContract(_ context.Context, contract, method string, args ...any) (string, error) {
	if i.err != nil {
		return "", i.err
	}
	i.contract, i.method, i.args = contract, method, args
	return "0xanchor", nil
}

func entries() []model.LeaderboardEntry {
	return []model.LeaderboardEntry{
		{Rank: 1, Handle: "alice", PostLink: "https://x.com/alice/status/1", Score: 12.5, WalletAddress: "0x1111111111111111111111111111111111111111"},
		{Rank: 2, Handle: "bob", PostLink: "https://x.com/bob/status/2", Score: 3, WalletAddress: "0x2222222222222222222222222222222222222222"},
	}
}

func TestCanonicalize(t *testing.T) {
	Convey("Given leaderboard entries", t, func() {
		Convey("When canonicalized twice", func() {
			a, errA := provenance.Canonicalize(entries())
			b, errB := provenance.Canonicalize(entries())

			Convey("Then the bytes are identical and keep field order", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(string(a), ShouldEqual, string(b))
				So(string(a), ShouldStartWith, `[{"rank":1,"handle":"alice","post_link":"https://x.com/alice/status/1","score":12.5,`)
			})
		})

		Convey("When the selection is empty", func() {
			b, err := provenance.Canonicalize(nil)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "[]")
		})
	})
}

func TestSigner(t *testing.T) {
	ctx := context.Background()

	Convey("Given a signer backed by a working key", t, func() {
		s := provenance.NewSigner(keyHolder{})

		Convey("When signing a selection", func() {
			rec, err := s.Sign(ctx, entries())

			Convey("Then the record verifies", func() {
				So(err, ShouldBeNil)
				So(rec.SignerAddress, ShouldEqual, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
				So(rec.PayloadHash, ShouldEqual, hexutil.Encode(provenance.Hash(rec.Payload)))
				So(provenance.Verify(rec), ShouldBeNil)
			})

			Convey("And tampering with the payload breaks verification", func() {
				rec.Payload = append([]byte(nil), rec.Payload...)
				rec.Payload[3] = 'X'
				rec.PayloadHash = ""
				So(errors.Is(provenance.Verify(rec), provenance.ErrVerification), ShouldBeTrue)
			})

			Convey("And a mismatched hash breaks verification", func() {
				rec.PayloadHash = "0x00"
				So(errors.Is(provenance.Verify(rec), provenance.ErrVerification), ShouldBeTrue)
			})
		})
	})

	Convey("Given a key holder that errors", t, func() {
		s := provenance.NewSigner(keyHolder{fail: errors.New("hsm offline")})
		_, err := s.Sign(ctx, entries())
		So(errors.Is(err, model.ErrSigningFailed), ShouldBeTrue)
	})

	Convey("Given a key holder that signs with the wrong key", t, func() {
		s := provenance.NewSigner(keyHolder{other: true})
		_, err := s.Sign(ctx, entries())
		So(errors.Is(err, model.ErrSigningFailed), ShouldBeTrue)
	})
}

func TestAnchor(t *testing.T) {
	ctx := context.Background()
	rec := model.SignedRecord{Signature: "0xsig"}

	Convey("Given an anchor with a contract", t, func() {
		inv := &invoker{}
		a := provenance.NewAnchor(inv, "0x252558FBB8eaF442604833974e414FEF41F5784c")

		Convey("When submitting a record", func() {
			hash, err := a.Submit(ctx, rec)

			Convey("Then the signature is stored through the store method", func() {
				So(err, ShouldBeNil)
				So(hash, ShouldEqual, "0xanchor")
				So(inv.method, ShouldEqual, provenance.StoreMethod)
				So(inv.args, ShouldResemble, []any{"0xsig"})
			})
		})

		Convey("When the ledger rejects the call", func() {
			inv.err = errors.New("reverted")
			_, err := a.Submit(ctx, rec)
			So(errors.Is(err, model.ErrAnchorFailed), ShouldBeTrue)
		})
	})

	Convey("Given an anchor without a contract", t, func() {
		inv := &invoker{}
		_, err := provenance.NewAnchor(inv, "  ").Submit(ctx, rec)
		So(errors.Is(err, model.ErrAnchorFailed), ShouldBeTrue)
		So(inv.method, ShouldEqual, "")
	})
}
