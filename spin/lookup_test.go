package spin

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/onchaincommerce/minibet/chain"
	"github.com/onchaincommerce/minibet/chain/chaintest"
	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/game"
)

func newLookupClient(backend *chaintest.Backend) *chain.Client {
	return chain.NewClient(backend, chain.Options{
		Address: contract,
		ChainID: big.NewInt(chainID),
		Decoder: chain.NewDecoder(contract, chain.MustSignatureSet(nil), game.DefaultPayoutTable(), zerolog.Nop()),
		Logger:  zerolog.Nop(),
	})
}

func TestResolverLookup(t *testing.T) {
	backend := chaintest.NewBackend(chainID)
	hash := common.HexToHash("0x1234")
	backend.AddReceipt(chaintest.Receipt(hash,
		chaintest.SpinLog(contract, topic, 3, stranger, 5, chaintest.Wei("10000000000000000"), 2)))

	cache := NewReceiptCache(4)
	r := NewResolver(newLookupClient(backend), cache, zerolog.Nop())

	o, err := r.Lookup(context.Background(), hash)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if o.Tier != game.TierBigWin || o.PayoutString() != "0.01" || o.SpinID.Int64() != 3 || o.Player != stranger {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if cache.Len() != 1 {
		t.Fatalf("cache len = %d", cache.Len())
	}

	backend.ReceiptErr = context.DeadlineExceeded
	if _, err := r.Lookup(context.Background(), hash); err != nil {
		t.Fatalf("cached Lookup hit the node: %v", err)
	}
}

func TestResolverPendingAndErrors(t *testing.T) {
	backend := chaintest.NewBackend(chainID)
	r := NewResolver(newLookupClient(backend), NewReceiptCache(4), zerolog.Nop())

	_, err := r.Lookup(context.Background(), common.HexToHash("0x01"))
	if !apperrors.HasCode(err, apperrors.ErrUnconfirmed) {
		t.Fatalf("pending lookup = %v", err)
	}

	empty := common.HexToHash("0x02")
	backend.AddReceipt(chaintest.Receipt(empty))
	if _, err := r.Lookup(context.Background(), empty); !apperrors.HasCode(err, apperrors.ErrNoLogs) {
		t.Fatalf("empty receipt lookup = %v", err)
	}

	reverted := common.HexToHash("0x03")
	rc := chaintest.Receipt(reverted)
	rc.Status = types.ReceiptStatusFailed
	backend.AddReceipt(rc)
	if _, err := r.Lookup(context.Background(), reverted); !apperrors.HasCode(err, apperrors.ErrContractRevert) {
		t.Fatalf("reverted lookup = %v", err)
	}
}
