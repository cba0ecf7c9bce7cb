package admin

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/onchaincommerce/minibet/chain"
	"github.com/onchaincommerce/minibet/chain/chaintest"
	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/game"
)

const chainID = 84532

var contract = common.HexToAddress("0x3C4883E9eE3FAa7A014e6c656138e7dDc049E754")

type auditRecorder struct {
	owner, txHash, amount string
}

func (a *auditRecorder) PublishWithdraw(ctx context.Context, owner, txHash, amount string) error {
	a.owner, a.txHash, a.amount = owner, txHash, amount
	return nil
}

type fixture struct {
	backend *chaintest.Backend
	signer  *chain.KeySigner
	audit   *auditRecorder
	svc     *Service
}

func newFixture(t *testing.T, owner *common.Address) *fixture {
	t.Helper()
	backend := chaintest.NewBackend(chainID)
	client := chain.NewClient(backend, chain.Options{
		Address:        contract,
		ChainID:        big.NewInt(chainID),
		ReceiptTimeout: 100 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		Decoder:        chain.NewDecoder(contract, chain.MustSignatureSet(nil), game.DefaultPayoutTable(), zerolog.Nop()),
		Logger:         zerolog.Nop(),
	})
	_, hexKey := chaintest.NewKey(t)
	signer, err := chain.NewKeySigner(hexKey, big.NewInt(chainID))
	if err != nil {
		t.Fatal(err)
	}
	if owner == nil {
		addr := signer.Address()
		owner = &addr
	}
	backend.SetOutput(t, "owner", *owner)
	backend.SetOutput(t, "getContractBalance", chaintest.Wei("2000000000000000000"))
	backend.SetOutput(t, "getJackpotStatus", false, big.NewInt(40), big.NewInt(100))
	backend.ReceiptFor = func(tx *types.Transaction) *types.Receipt {
		return chaintest.Receipt(tx.Hash())
	}

	audit := &auditRecorder{}
	return &fixture{
		backend: backend,
		signer:  signer,
		audit:   audit,
		svc:     NewService(client, signer, audit, zerolog.Nop()),
	}
}

func withdrawnAmount(t *testing.T, tx *types.Transaction) *big.Int {
	t.Helper()
	method, err := chain.ContractABI().MethodById(tx.Data()[:4])
	if err != nil || method.Name != "withdraw" {
		t.Fatalf("unexpected calldata: %v", err)
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		t.Fatal(err)
	}
	return args[0].(*big.Int)
}

func TestOverview(t *testing.T) {
	f := newFixture(t, nil)
	o, err := f.svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if o.Owner != f.signer.Address() || o.Balance.String() != "2" || o.Jackpot.CurrentSpins != 40 || o.Jackpot.Progress() != 40 {
		t.Fatalf("unexpected overview %+v", o)
	}

	ok, err := f.svc.IsOwner(context.Background(), common.HexToAddress("0x01"))
	if err != nil || ok {
		t.Fatalf("IsOwner(stranger) = %v, %v", ok, err)
	}
}

func TestWithdraw(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   string
	}{
		{"partial", "0.5", "500000000000000000"},
		{"zero means all", "0", "2000000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			res, err := f.svc.Withdraw(context.Background(), decimal.RequireFromString(tt.amount))
			if err != nil {
				t.Fatalf("Withdraw: %v", err)
			}
			sent := f.backend.Sent()
			if len(sent) != 1 {
				t.Fatalf("sent %d transactions", len(sent))
			}
			if got := withdrawnAmount(t, sent[0]); got.String() != tt.want {
				t.Errorf("withdraw amount = %s, want %s", got, tt.want)
			}
			if res.TxHash != sent[0].Hash().Hex() || res.BlockNumber != 1000 {
				t.Errorf("unexpected result %+v", res)
			}
			if f.audit.txHash != res.TxHash || f.audit.amount != res.Amount {
				t.Errorf("audit = %+v", f.audit)
			}
		})
	}
}

func TestWithdrawRejected(t *testing.T) {
	stranger := common.HexToAddress("0x00000000000000000000000000000000000000ff")

	f := newFixture(t, &stranger)
	if _, err := f.svc.Withdraw(context.Background(), decimal.Zero); err != ErrNotOwner {
		t.Fatalf("non-owner withdraw = %v", err)
	}

	f = newFixture(t, nil)
	if _, err := f.svc.Withdraw(context.Background(), decimal.RequireFromString("3")); err != ErrExceedsBalance {
		t.Fatalf("oversized withdraw = %v", err)
	}
	if _, err := f.svc.Withdraw(context.Background(), decimal.RequireFromString("-1")); err != ErrNegativeAmount {
		t.Fatalf("negative withdraw = %v", err)
	}

	f.backend.SetOutput(t, "getContractBalance", big.NewInt(0))
	if _, err := f.svc.Withdraw(context.Background(), decimal.Zero); err != ErrNothingToWithdraw {
		t.Fatalf("empty withdraw = %v", err)
	}
	if len(f.backend.Sent()) != 0 {
		t.Fatal("rejected withdrawals must not be sent")
	}

	noSigner := NewService(nil, nil, nil, zerolog.Nop())
	if _, err := noSigner.Withdraw(context.Background(), decimal.Zero); !apperrors.HasCode(err, apperrors.ErrSignerUnavailable) {
		t.Fatalf("withdraw without signer = %v", err)
	}
}
