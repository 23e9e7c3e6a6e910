package evm

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/engageboard/internal/adapters/ledger"
	"github.com/okian/engageboard/internal/domain/model"
)

const (
	testKey     = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	usdcAddress = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	recipient   = "0x1111111111111111111111111111111111111111"
)

type fakeBackend struct {
	mu        sync.Mutex
	sent      []*types.Transaction
	mined     map[common.Hash]uint64
	sendErr   error
	tokenBal  *big.Int
	nativeBal *big.Int
	revert    bool
	closed    bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{mined: make(map[common.Hash]uint64), tokenBal: big.NewInt(0), nativeBal: big.NewInt(0)}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(84532), nil }

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(100)}, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 60_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	status := types.ReceiptStatusSuccessful
	if f.revert {
		status = types.ReceiptStatusFailed
	}
	f.mined[tx.Hash()] = status
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.mined[h]
	if !ok {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{TxHash: h, Status: status}, nil
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	a, _ := New(context.Background(), f, Config{PrivateKey: testKey})
	return a.erc20ABI.Methods["balanceOf"].Outputs.Pack(f.tokenBal)
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.nativeBal, nil
}

func (f *fakeBackend) Close() { f.closed = true }

func (f *fakeBackend) last() *types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func newTestAccount(backend *fakeBackend, faucetURL string) *Account {
	a, err := New(context.Background(), backend, Config{
		PrivateKey:     "0x" + testKey,
		Asset:          "usdc",
		TokenAddress:   usdcAddress,
		TokenDecimals:  6,
		FaucetURL:      faucetURL,
		ConfirmTimeout: time.Second,
	}, WithPollInterval(5*time.Millisecond))
	So(err, ShouldBeNil)
	return a
}

func TestAccount(t *testing.T) {
	ctx := context.Background()

	Convey("Given an account over a fake node", t, func() {
		backend := newFakeBackend()
		a := newTestAccount(backend, "")

		Convey("Then the address derives from the key", func() {
			So(a.Address(), ShouldEqual, testAddress)
		})

		Convey("When transferring the reward token", func() {
			hash, err := a.Transfer(ctx, model.MustParseAmount("0.333333"), "usdc", recipient)
			So(err, ShouldBeNil)
			tx := backend.last()

			Convey("Then an ERC-20 transfer is signed by the account", func() {
				So(hash, ShouldEqual, tx.Hash().Hex())
				So(*tx.To(), ShouldEqual, common.HexToAddress(usdcAddress))

				sender, err := types.Sender(a.signer, tx)
				So(err, ShouldBeNil)
				So(sender.Hex(), ShouldEqual, testAddress)

				args, err := a.erc20ABI.Methods["transfer"].Inputs.Unpack(tx.Data()[4:])
				So(err, ShouldBeNil)
				So(args[0].(common.Address), ShouldEqual, common.HexToAddress(recipient))
				So(args[1].(*big.Int).Int64(), ShouldEqual, int64(333333))
			})

			Convey("And the fee cap follows base fee times two plus tip", func() {
				So(tx.GasFeeCap().Int64(), ShouldEqual, int64(1_000_000_200))
			})
		})

		Convey("When transferring the native asset", func() {
			_, err := a.Transfer(ctx, model.MustParseAmount("0.5"), NativeAsset, recipient)
			So(err, ShouldBeNil)
			So(backend.last().Value().String(), ShouldEqual, "500000000000000000")
		})

		Convey("When the node reports insufficient funds", func() {
			backend.sendErr = errors.New("insufficient funds for gas * price + value")
			_, err := a.Transfer(ctx, model.MustParseAmount("1"), "usdc", recipient)
			So(errors.Is(err, model.ErrInsufficientFunds), ShouldBeTrue)
		})

		Convey("When the transaction reverts", func() {
			backend.revert = true
			_, err := a.Transfer(ctx, model.MustParseAmount("1"), "usdc", recipient)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "reverted")
		})

		Convey("When the asset is unknown", func() {
			_, err := a.Transfer(ctx, model.MustParseAmount("1"), "dai", recipient)
			So(errors.Is(err, ledger.ErrUnsupportedAsset), ShouldBeTrue)
		})

		Convey("When reading the token balance", func() {
			backend.tokenBal = big.NewInt(2_500_000)
			bal, err := a.Balance(ctx, "usdc")
			So(err, ShouldBeNil)
			So(bal.String(), ShouldEqual, "2.500000")
		})

		Convey("When reading the native balance", func() {
			backend.nativeBal, _ = new(big.Int).SetString("1234567890000000000", 10)
			bal, err := a.Balance(ctx, NativeAsset)
			So(err, ShouldBeNil)
			So(bal.String(), ShouldEqual, "1.234567")
		})

		Convey("When anchoring a signature", func() {
			hash, err := a.InvokeContract(ctx, "0x252558FBB8eaF442604833974e414FEF41F5784c", "store", "0xsig")

			Convey("Then store(string) is called on the contract", func() {
				So(err, ShouldBeNil)
				tx := backend.last()
				So(hash, ShouldEqual, tx.Hash().Hex())
				args, err := a.anchorABI.Methods["store"].Inputs.Unpack(tx.Data()[4:])
				So(err, ShouldBeNil)
				So(args[0], ShouldEqual, "0xsig")
			})
		})

		Convey("When calling an unknown method", func() {
			_, err := a.InvokeContract(ctx, "0x252558FBB8eaF442604833974e414FEF41F5784c", "burn")
			So(errors.Is(err, ledger.ErrUnknownMethod), ShouldBeTrue)
		})

		Convey("When no faucet is configured", func() {
			_, err := a.RequestFunds(ctx, "usdc")
			So(errors.Is(err, ledger.ErrFaucetUnavailable), ShouldBeTrue)
		})

		Convey("When closed", func() {
			a.Close()
			So(backend.closed, ShouldBeTrue)
		})
	})

	Convey("Given a faucet service", t, func() {
		backend := newFakeBackend()
		faucetHash := common.HexToHash("0xabc123")
		backend.mined[faucetHash] = types.ReceiptStatusSuccessful

		var got faucetRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got)
			_ = json.NewEncoder(w).Encode(faucetResponse{TransactionHash: faucetHash.Hex()})
		}))
		defer srv.Close()
		a := newTestAccount(backend, srv.URL)

		Convey("When requesting funds", func() {
			hash, err := a.RequestFunds(ctx, "usdc")

			Convey("Then the faucet is asked for the account and asset", func() {
				So(err, ShouldBeNil)
				So(hash, ShouldEqual, faucetHash.Hex())
				So(got.Address, ShouldEqual, testAddress)
				So(got.Asset, ShouldEqual, "usdc")
			})
		})
	})

	Convey("Given a token configured without an address", t, func() {
		_, err := New(ctx, newFakeBackend(), Config{PrivateKey: testKey, Asset: "usdc"})
		So(errors.Is(err, ledger.ErrInvalidAddress), ShouldBeTrue)
	})
}

func TestUnits(t *testing.T) {
	Convey("Given amounts in micro-units", t, func() {
		So(toBaseUnits(model.MustParseAmount("1"), 18).String(), ShouldEqual, "1000000000000000000")
		So(toBaseUnits(model.MustParseAmount("0.000001"), 6).String(), ShouldEqual, "1")

		amt, err := fromBaseUnits(big.NewInt(1_999_999_999_999), 12)
		So(err, ShouldBeNil)
		So(amt.String(), ShouldEqual, "1.999999")

		_, err = fromBaseUnits(big.NewInt(-1), 6)
		So(err, ShouldNotBeNil)
	})
}
