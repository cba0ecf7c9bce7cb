package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// MinibetABI is the subset of the slot machine contract ABI the client uses.
const MinibetABI = `[
  {"inputs":[],"name":"spin","outputs":[{"internalType":"uint256","name":"","type":"uint256"},{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"payable","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"withdraw","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[],"name":"owner","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"getContractBalance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"getJackpotStatus","outputs":[{"internalType":"bool","name":"isUnlocked","type":"bool"},{"internalType":"uint256","name":"currentSpins","type":"uint256"},{"internalType":"uint256","name":"spinsNeeded","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getUserStats","outputs":[{"internalType":"uint256","name":"spins","type":"uint256"},{"internalType":"uint256","name":"winnings","type":"uint256"},{"internalType":"uint256","name":"spent","type":"uint256"},{"internalType":"int256","name":"netProfit","type":"int256"}],"stateMutability":"view","type":"function"},
  {"anonymous":false,"inputs":[{"indexed":true,"internalType":"uint256","name":"spinId","type":"uint256"},{"indexed":true,"internalType":"address","name":"player","type":"address"},{"indexed":false,"internalType":"uint256","name":"result","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"payout","type":"uint256"},{"indexed":false,"internalType":"uint8","name":"tier","type":"uint8"}],"name":"SpinResult","type":"event"}
]`

const spinResultEvent = "SpinResult"

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(MinibetABI))
	if err != nil {
		panic(fmt.Sprintf("invalid minibet ABI: %v", err))
	}
	return parsed
}

// ContractABI returns the parsed contract ABI. Callers must not modify it.
func ContractABI() *abi.ABI {
	return &parsedABI
}

// SpinResultTopic is the event ID of SpinResult as derived from the ABI.
func SpinResultTopic() common.Hash {
	return parsedABI.Events[spinResultEvent].ID
}

// SignatureSet is the ordered set of topic0 hashes accepted as SpinResult.
type SignatureSet struct {
	order []common.Hash
	index map[common.Hash]struct{}
}

// NewSignatureSet builds a set from the configured hashes followed by the
// ABI-derived topic. Malformed entries are rejected.
func NewSignatureSet(extra []string) (*SignatureSet, error) {
	s := &SignatureSet{index: make(map[common.Hash]struct{}, len(extra)+1)}
	for _, e := range extra {
		raw := strings.TrimPrefix(strings.TrimSpace(e), "0x")
		if len(raw) != 2*common.HashLength {
			return nil, fmt.Errorf("event signature %q is not 32 bytes", e)
		}
		s.add(common.HexToHash(e))
	}
	s.add(SpinResultTopic())
	return s, nil
}

// MustSignatureSet is NewSignatureSet for inputs already validated by config.
func MustSignatureSet(extra []string) *SignatureSet {
	s, err := NewSignatureSet(extra)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *SignatureSet) add(h common.Hash) {
	if _, ok := s.index[h]; ok {
		return
	}
	s.index[h] = struct{}{}
	s.order = append(s.order, h)
}

// Contains reports whether h is accepted.
func (s *SignatureSet) Contains(h common.Hash) bool {
	_, ok := s.index[h]
	return ok
}

// Hashes returns the accepted hashes in configuration order.
func (s *SignatureSet) Hashes() []common.Hash {
	return append([]common.Hash(nil), s.order...)
}

// Primary is the hash used when a log query accepts a single topic0. It is
// the first configured hash, or the ABI-derived one when none is configured.
func (s *SignatureSet) Primary() common.Hash {
	return s.order[0]
}
