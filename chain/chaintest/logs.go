package chaintest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/onchaincommerce/minibet/chain"
)

// Wei parses a decimal wei amount.
func Wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("invalid wei amount " + s)
	}
	return v
}

// SpinData ABI-encodes the non-indexed SpinResult fields.
func SpinData(result uint64, payoutWei *big.Int, tier uint8) []byte {
	args := chain.ContractABI().Events["SpinResult"].Inputs.NonIndexed()
	data, err := args.Pack(new(big.Int).SetUint64(result), payoutWei, tier)
	if err != nil {
		panic(err)
	}
	return data
}

// Word returns v as a single 32-byte big-endian word.
func Word(v uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)
}

// SpinLog builds a SpinResult log emitted by contract.
func SpinLog(contract common.Address, topic common.Hash, spinID int64, player common.Address, result uint64, payoutWei *big.Int, tier uint8) *types.Log {
	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			topic,
			common.BigToHash(big.NewInt(spinID)),
			common.BytesToHash(player.Bytes()),
		},
		Data:        SpinData(result, payoutWei, tier),
		BlockNumber: 900 + uint64(spinID),
	}
}

// Receipt wraps logs in a successful receipt at block 1000.
func Receipt(txHash common.Hash, logs ...*types.Log) *types.Receipt {
	for i, l := range logs {
		l.TxHash = txHash
		l.Index = uint(i)
	}
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: big.NewInt(1000),
		Logs:        logs,
	}
}
