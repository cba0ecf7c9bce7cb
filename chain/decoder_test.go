package chain_test

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/onchaincommerce/minibet/chain"
	"github.com/onchaincommerce/minibet/chain/chaintest"
	"github.com/onchaincommerce/minibet/config"
	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/game"
)

var (
	contract = common.HexToAddress("0x3C4883E9eE3FAa7A014e6c656138e7dDc049E754")
	other    = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	player   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	// observed is a SpinResult topic of an earlier contract version; it is
	// accepted only through configuration.
	observed = common.HexToHash("0x5c4a8f396d7cd416a8bd3a08e0b15ee3a667a30511f11458789b5440c3c97b39")
	txHash   = common.HexToHash("0xabcdef")
)

func newDecoder(t *testing.T) *chain.Decoder {
	t.Helper()
	sigs, err := chain.NewSignatureSet([]string{observed.Hex()})
	if err != nil {
		t.Fatalf("NewSignatureSet() error = %v", err)
	}
	return chain.NewDecoder(contract, sigs, game.DefaultPayoutTable(), zerolog.Nop())
}

func TestSignatureSetIncludesABITopic(t *testing.T) {
	want := crypto.Keccak256Hash([]byte("SpinResult(uint256,address,uint256,uint256,uint8)"))
	if chain.SpinResultTopic() != want {
		t.Fatalf("SpinResultTopic() = %s, want %s", chain.SpinResultTopic().Hex(), want.Hex())
	}

	if observed == want {
		t.Fatal("observed fixture must differ from the ABI topic")
	}

	sigs := chain.MustSignatureSet([]string{observed.Hex(), observed.Hex()})
	if !sigs.Contains(want) || !sigs.Contains(observed) {
		t.Errorf("expected both configured and ABI topics to be accepted")
	}
	if sigs.Primary() != observed {
		t.Errorf("Primary() = %s, want first configured hash", sigs.Primary().Hex())
	}
	if n := len(sigs.Hashes()); n != 2 {
		t.Errorf("expected duplicates to collapse to 2 hashes, got %d", n)
	}

	if _, err := chain.NewSignatureSet([]string{"0x1234"}); err == nil {
		t.Errorf("expected error for a short signature")
	}
	if empty := chain.MustSignatureSet(nil); empty.Primary() != want {
		t.Errorf("Primary() without configuration should be the ABI topic")
	}
}

func TestDecodeFields(t *testing.T) {
	payout := chaintest.Wei("10000000000000000")
	data := chaintest.SpinData(15, payout, 2)

	f, err := chain.DecodeFields(data)
	if err != nil {
		t.Fatalf("DecodeFields() error = %v", err)
	}
	if f.Result != 15 || f.Tier != game.TierBigWin {
		t.Errorf("unexpected fields %+v", f)
	}
	if f.PayoutWei.Cmp(payout) != 0 || f.Payout.String() != "0.01" {
		t.Errorf("payout = %s wei / %s ETH", f.PayoutWei, f.Payout)
	}

	fromHex, err := chain.DecodeHexFields(hexutil.Encode(data))
	if err != nil {
		t.Fatalf("DecodeHexFields() error = %v", err)
	}
	if fromHex.Result != f.Result || fromHex.Tier != f.Tier || !fromHex.Payout.Equal(f.Payout) {
		t.Errorf("hex and byte decoding disagree: %+v vs %+v", fromHex, f)
	}
}

func TestDecodeFieldsUsesLowByteOfTier(t *testing.T) {
	data := append(chaintest.Word(500), chaintest.Word(0)...)
	tierWord := make([]byte, 32)
	tierWord[0] = 0xff
	tierWord[30] = 0x01
	tierWord[31] = 0x03
	data = append(data, tierWord...)

	f, err := chain.DecodeFields(data)
	if err != nil {
		t.Fatalf("DecodeFields() error = %v", err)
	}
	if f.Tier != game.TierSmallWin {
		t.Errorf("Tier = %d, want 3", f.Tier)
	}
	if f.Payout.String() != "0" {
		t.Errorf("Payout = %s, want 0", f.Payout)
	}
}

func TestDecodeFieldsErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"bare prefix", "0x"},
		{"one word", hexutil.Encode(chaintest.Word(1))},
		{"no tier", hexutil.Encode(append(chaintest.Word(1), chaintest.Word(2)...))},
		{"not hex", "0xzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chain.DecodeHexFields(tt.data)
			if err == nil {
				t.Fatalf("expected a decode error")
			}
			if !apperrors.HasCode(err, apperrors.ErrDecode) {
				t.Errorf("expected ErrDecode code, got %v", err)
			}
		})
	}

	if _, err := chain.DecodeFields(nil); !errors.Is(err, chain.ErrEmptyData) {
		t.Errorf("DecodeFields(nil) = %v, want ErrEmptyData", err)
	}
}

func TestMatchLogs(t *testing.T) {
	d := newDecoder(t)
	unknown := common.HexToHash("0xdeadbeef")

	logs := []*types.Log{
		chaintest.SpinLog(other, observed, 1, player, 1, big.NewInt(0), 4),
		chaintest.SpinLog(contract, unknown, 2, player, 2, big.NewInt(0), 4),
		{Address: contract},
		chaintest.SpinLog(contract, chain.SpinResultTopic(), 3, player, 3, big.NewInt(0), 4),
		chaintest.SpinLog(contract, observed, 4, player, 4, big.NewInt(0), 4),
	}

	matched := d.MatchLogs(logs)
	if len(matched) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matched))
	}
	if matched[0] != logs[3] || matched[1] != logs[4] {
		t.Errorf("matches not in receipt order")
	}

	if got := d.MatchLogs(logs[:3]); len(got) != 0 {
		t.Errorf("expected no match when topics are unknown, got %d", len(got))
	}
}

func TestFallbackTierDerivation(t *testing.T) {
	d := newDecoder(t)

	tests := []struct {
		chunk  uint64
		tier   game.Tier
		payout string
	}{
		{0, game.TierJackpot, "0.1"},
		{5, game.TierBigWin, "0.01"},
		{50, game.TierSmallWin, "0.002"},
		{500, game.TierNoWin, "0"},
	}

	for _, tt := range tests {
		logs := []*types.Log{{Address: contract, Data: chaintest.Word(tt.chunk)}}
		f, err := d.Fallback(logs)
		if err != nil {
			t.Fatalf("Fallback(%d) error = %v", tt.chunk, err)
		}
		if f.Result != tt.chunk || f.Tier != tt.tier || f.Payout.String() != tt.payout {
			t.Errorf("Fallback(%d) = %+v, want tier %d payout %s", tt.chunk, f, tt.tier, tt.payout)
		}
	}
}

func TestFallbackScanLimits(t *testing.T) {
	d := newDecoder(t)
	big1 := common.LeftPadBytes(big.NewInt(5000).Bytes(), 32)

	// Plausible value only in the fourth word is outside the scan window.
	data := append(append(append([]byte{}, big1...), big1...), big1...)
	data = append(data, chaintest.Word(7)...)
	if _, err := d.Fallback([]*types.Log{{Address: contract, Data: data}}); !errors.Is(err, chain.ErrResultNotFound) {
		t.Errorf("expected ErrResultNotFound, got %v", err)
	}

	// Second word wins over a later log.
	data = append(append([]byte{}, big1...), chaintest.Word(20)...)
	logs := []*types.Log{
		{Address: other, Data: chaintest.Word(0)},
		{Address: contract, Data: data},
		{Address: contract, Data: chaintest.Word(0)},
	}
	f, err := d.Fallback(logs)
	if err != nil {
		t.Fatalf("Fallback() error = %v", err)
	}
	if f.Result != 20 || f.Tier != game.TierBigWin {
		t.Errorf("unexpected fields %+v", f)
	}
}

func TestDecodeReceipt(t *testing.T) {
	d := newDecoder(t)
	payout := chaintest.Wei("2000000000000000")

	t.Run("no logs", func(t *testing.T) {
		_, err := d.DecodeReceipt(chaintest.Receipt(txHash))
		if !errors.Is(err, chain.ErrNoLogs) {
			t.Errorf("expected ErrNoLogs, got %v", err)
		}
	})

	t.Run("event", func(t *testing.T) {
		r := chaintest.Receipt(txHash,
			&types.Log{Address: other, Data: chaintest.Word(1)},
			chaintest.SpinLog(contract, observed, 42, player, 99, payout, 3),
			chaintest.SpinLog(contract, observed, 43, player, 0, chaintest.Wei("100000000000000000"), 1),
		)
		o, err := d.DecodeReceipt(r)
		if err != nil {
			t.Fatalf("DecodeReceipt() error = %v", err)
		}
		if o.Source != game.SourceEvent || o.Result != 99 || o.Tier != game.TierSmallWin {
			t.Errorf("unexpected outcome %+v", o)
		}
		if o.PayoutString() != "0.002" {
			t.Errorf("payout = %s", o.PayoutString())
		}
		if o.SpinID.Int64() != 42 || o.Player != player || o.TxHash != txHash {
			t.Errorf("indexed fields not decoded: %+v", o)
		}
	})

	t.Run("undecodable match falls through", func(t *testing.T) {
		broken := &types.Log{Address: contract, Topics: []common.Hash{observed}, Data: nil}
		r := chaintest.Receipt(txHash, broken, chaintest.SpinLog(contract, observed, 7, player, 5, big.NewInt(0), 2))
		o, err := d.DecodeReceipt(r)
		if err != nil {
			t.Fatalf("DecodeReceipt() error = %v", err)
		}
		if o.Result != 5 || o.Source != game.SourceEvent {
			t.Errorf("expected second log to decode, got %+v", o)
		}
	})

	t.Run("heuristic", func(t *testing.T) {
		r := chaintest.Receipt(txHash, &types.Log{
			Address: contract,
			Topics:  []common.Hash{common.HexToHash("0x01")},
			Data:    chaintest.Word(10),
		})
		o, err := d.DecodeReceipt(r)
		if err != nil {
			t.Fatalf("DecodeReceipt() error = %v", err)
		}
		if o.Source != game.SourceHeuristic || o.Tier != game.TierBigWin || o.PayoutString() != "0.01" {
			t.Errorf("unexpected heuristic outcome %+v", o)
		}
		if o.BlockNumber != 1000 {
			t.Errorf("block number = %d", o.BlockNumber)
		}
	})

	t.Run("not found", func(t *testing.T) {
		r := chaintest.Receipt(txHash, &types.Log{Address: other, Data: chaintest.Word(1)})
		_, err := d.DecodeReceipt(r)
		if !errors.Is(err, chain.ErrResultNotFound) {
			t.Errorf("expected ErrResultNotFound, got %v", err)
		}
		if !strings.Contains(err.Error(), "could not find spin result") {
			t.Errorf("unexpected message %q", err.Error())
		}
	})
}

func TestContractABIMethodLookup(t *testing.T) {
	spin := chain.ContractABI().Methods["spin"]
	m, err := chain.ContractABI().MethodById(spin.ID)
	if err != nil {
		t.Fatalf("MethodById() error = %v", err)
	}
	if m.Name != "spin" {
		t.Errorf("MethodById() = %s, want spin", m.Name)
	}
}

func TestDecodeReceiptAcceptsKnownSignatures(t *testing.T) {
	known := chain.MustSignatureSet(config.KnownEventSignatures)
	d := chain.NewDecoder(contract, known, game.DefaultPayoutTable(), zerolog.Nop())

	topics := []common.Hash{chain.SpinResultTopic()}
	for _, sig := range config.KnownEventSignatures {
		topics = append(topics, common.HexToHash(sig))
	}

	for _, topic := range topics {
		t.Run(topic.Hex()[:10], func(t *testing.T) {
			r := chaintest.Receipt(txHash, chaintest.SpinLog(contract, topic, 9, player, 15, chaintest.Wei("10000000000000000"), 2))
			o, err := d.DecodeReceipt(r)
			if err != nil {
				t.Fatalf("DecodeReceipt() error = %v", err)
			}
			if o.Source != game.SourceEvent || o.Result != 15 || o.Tier != game.TierBigWin {
				t.Errorf("unexpected outcome %+v", o)
			}
			if o.SpinID.Int64() != 9 || o.Player != player {
				t.Errorf("indexed fields not decoded: %+v", o)
			}
		})
	}

	// Without the whitelist an older topic is not an event match.
	abiOnly := chain.NewDecoder(contract, chain.MustSignatureSet(nil), game.DefaultPayoutTable(), zerolog.Nop())
	r := chaintest.Receipt(txHash, chaintest.SpinLog(contract, observed, 9, player, 15, big.NewInt(0), 2))
	if matched := abiOnly.MatchLogs(r.Logs); len(matched) != 0 {
		t.Errorf("expected no match without configured signatures, got %d", len(matched))
	}
}
