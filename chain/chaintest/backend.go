// Package chaintest provides an in-memory node backend and log builders for
// tests of packages that talk to the slot machine contract.
package chaintest

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/onchaincommerce/minibet/chain"
)

// Backend is a fake node. Calls to methods it does not implement panic
// through the embedded nil interface.
type Backend struct {
	bind.ContractBackend

	mu sync.Mutex

	ChainIDValue *big.Int
	Head         uint64
	Outputs      map[string][]byte
	CallErr      error
	SendErr      error
	ReceiptErr   error
	// PendingPolls is how many receipt lookups report NotFound before a
	// stored receipt is returned.
	PendingPolls int
	// ReceiptFor builds the receipt stored for each sent transaction.
	ReceiptFor func(tx *types.Transaction) *types.Receipt
	Logs       []types.Log
	BlockTimes map[uint64]uint64

	receipts     map[common.Hash]*types.Receipt
	receiptPolls map[common.Hash]int
	sent         []*types.Transaction
	headerCalls  int
	calls        []string
}

// NewBackend returns a backend on chainID with head block 1000.
func NewBackend(chainID int64) *Backend {
	return &Backend{
		ChainIDValue: big.NewInt(chainID),
		Head:         1000,
		Outputs:      make(map[string][]byte),
		BlockTimes:   make(map[uint64]uint64),
		receipts:     make(map[common.Hash]*types.Receipt),
		receiptPolls: make(map[common.Hash]int),
	}
}

// SetOutput stores the packed return values of a view method.
func (b *Backend) SetOutput(t testing.TB, method string, values ...interface{}) {
	t.Helper()
	m, ok := chain.ContractABI().Methods[method]
	if !ok {
		t.Fatalf("unknown method %s", method)
	}
	out, err := m.Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s outputs: %v", method, err)
	}
	b.mu.Lock()
	b.Outputs[method] = out
	b.mu.Unlock()
}

// AddReceipt stores a receipt under its tx hash.
func (b *Backend) AddReceipt(r *types.Receipt) {
	b.mu.Lock()
	b.receipts[r.TxHash] = r
	b.mu.Unlock()
}

// Sent returns the transactions submitted so far.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// Calls returns the names of the view methods called so far.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// HeaderCalls counts HeaderByNumber lookups for a specific block.
func (b *Backend) HeaderCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.headerCalls
}

func (b *Backend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (b *Backend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.CallErr != nil {
		return nil, b.CallErr
	}
	if len(call.Data) < 4 {
		return nil, errors.New("calldata too short")
	}
	m, err := chain.ContractABI().MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	b.calls = append(b.calls, m.Name)
	out, ok := b.Outputs[m.Name]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if number == nil {
		return &types.Header{Number: new(big.Int).SetUint64(b.Head), BaseFee: big.NewInt(1_000_000)}, nil
	}
	b.headerCalls++
	n := number.Uint64()
	ts, ok := b.BlockTimes[n]
	if !ok {
		ts = 1_700_000_000 + n*2
	}
	return &types.Header{Number: new(big.Int).Set(number), Time: ts}, nil
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.sent)), nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000), nil
}

func (b *Backend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000), nil
}

func (b *Backend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 120_000, nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SendErr != nil {
		return b.SendErr
	}
	b.sent = append(b.sent, tx)
	if b.ReceiptFor != nil {
		if r := b.ReceiptFor(tx); r != nil {
			r.TxHash = tx.Hash()
			b.receipts[tx.Hash()] = r
		}
	}
	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ReceiptErr != nil {
		return nil, b.ReceiptErr
	}
	if b.receiptPolls[txHash] < b.PendingPolls {
		b.receiptPolls[txHash]++
		return nil, ethereum.NotFound
	}
	r, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.ChainIDValue), nil
}

func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Head, nil
}

func (b *Backend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []types.Log
	for _, l := range b.Logs {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if !matchTopics(l.Topics, q.Topics) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func matchTopics(topics []common.Hash, filter [][]common.Hash) bool {
	for i, alternatives := range filter {
		if len(alternatives) == 0 {
			continue
		}
		if i >= len(topics) {
			return false
		}
		found := false
		for _, a := range alternatives {
			if topics[i] == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// NewKey returns a fresh private key and its hex encoding.
func NewKey(t testing.TB) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key, hex.EncodeToString(crypto.FromECDSA(key))
}
