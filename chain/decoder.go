package chain

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/metrics"
)

const (
	wordSize = 32
	// heuristicScanBytes limits the fallback scan to the first three words.
	heuristicScanBytes = 3 * wordSize
)

var (
	ErrNoLogs = apperrors.New(apperrors.ErrNoLogs,
		"transaction confirmed but no event logs found")
	ErrResultNotFound = apperrors.New(apperrors.ErrResultNotFound,
		"could not find spin result in transaction logs")
	ErrEmptyData = apperrors.New(apperrors.ErrDecode, "log data is empty")
)

// Fields are the non-indexed SpinResult values.
type Fields struct {
	Result    uint64
	PayoutWei *big.Int
	Payout    decimal.Decimal
	Tier      game.Tier
}

// DecodeFields decodes result, payout and tier from ABI-encoded event data.
// Only the low byte of the tier word is used.
func DecodeFields(data []byte) (Fields, error) {
	if len(data) == 0 {
		return Fields{}, ErrEmptyData
	}
	if len(data) < 2*wordSize {
		return Fields{}, apperrors.NewWithDebug(apperrors.ErrDecode, "log data too short",
			"need at least 64 bytes before the tier field")
	}
	if len(data) == 2*wordSize {
		return Fields{}, apperrors.NewWithDebug(apperrors.ErrDecode, "log data too short",
			"tier field missing")
	}

	result := new(big.Int).SetBytes(data[:wordSize])
	if !result.IsUint64() {
		return Fields{}, apperrors.NewWithDebug(apperrors.ErrDecode, "result out of range", result.String())
	}
	payoutWei := new(big.Int).SetBytes(data[wordSize : 2*wordSize])

	tierWord := data[2*wordSize:]
	if len(tierWord) > wordSize {
		tierWord = tierWord[:wordSize]
	}

	return Fields{
		Result:    result.Uint64(),
		PayoutWei: payoutWei,
		Payout:    game.WeiToETH(payoutWei),
		Tier:      game.Tier(tierWord[len(tierWord)-1]),
	}, nil
}

// DecodeHexFields is DecodeFields for 0x-prefixed hex data.
func DecodeHexFields(data string) (Fields, error) {
	raw, err := decodeHex(data)
	if err != nil {
		return Fields{}, err
	}
	return DecodeFields(raw)
}

func decodeHex(data string) ([]byte, error) {
	s := strings.TrimPrefix(strings.TrimSpace(data), "0x")
	if s == "" {
		return nil, ErrEmptyData
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDecode, "log data is not valid hex")
	}
	return raw, nil
}

// Decoder turns receipts and logs of one contract into spin outcomes.
type Decoder struct {
	contract   common.Address
	signatures *SignatureSet
	payouts    game.PayoutTable
	logger     zerolog.Logger
}

// NewDecoder creates a decoder for contract.
func NewDecoder(contract common.Address, signatures *SignatureSet, payouts game.PayoutTable, logger zerolog.Logger) *Decoder {
	return &Decoder{
		contract:   contract,
		signatures: signatures,
		payouts:    payouts,
		logger:     logger.With().Str("component", "decoder").Logger(),
	}
}

// Contract returns the decoded contract address.
func (d *Decoder) Contract() common.Address {
	return d.contract
}

// Signatures returns the accepted SpinResult topics.
func (d *Decoder) Signatures() *SignatureSet {
	return d.signatures
}

// MatchLogs returns the contract's logs whose topic0 is an accepted
// SpinResult signature, in receipt order.
func (d *Decoder) MatchLogs(logs []*types.Log) []*types.Log {
	var matched []*types.Log
	for _, l := range logs {
		if l == nil || l.Address != d.contract {
			continue
		}
		if len(l.Topics) == 0 || !d.signatures.Contains(l.Topics[0]) {
			continue
		}
		matched = append(matched, l)
	}
	return matched
}

// Fallback scans the contract's logs for the first word within the first
// three that is a plausible result and classifies it with the payout table.
func (d *Decoder) Fallback(logs []*types.Log) (Fields, error) {
	for _, l := range logs {
		if l == nil || l.Address != d.contract {
			continue
		}
		limit := len(l.Data)
		if limit > heuristicScanBytes {
			limit = heuristicScanBytes
		}
		for off := 0; off+wordSize <= limit; off += wordSize {
			v := new(big.Int).SetBytes(l.Data[off : off+wordSize])
			if !v.IsUint64() || !d.payouts.Plausible(v.Uint64()) {
				continue
			}
			result := v.Uint64()
			tier, payout := d.payouts.Classify(result)
			return Fields{
				Result:    result,
				PayoutWei: game.ETHToWei(payout),
				Payout:    payout,
				Tier:      tier,
			}, nil
		}
	}
	return Fields{}, ErrResultNotFound
}

// DecodeReceipt extracts the spin outcome from a receipt. Matched events are
// tried in order; when none decodes, the heuristic scan is used.
func (d *Decoder) DecodeReceipt(r *types.Receipt) (game.SpinOutcome, error) {
	if r == nil || len(r.Logs) == 0 {
		metrics.ReceiptDecodes.WithLabelValues("no_logs").Inc()
		return game.SpinOutcome{}, ErrNoLogs
	}

	matched := d.MatchLogs(r.Logs)
	if len(matched) > 1 {
		d.logger.Debug().
			Str("tx_hash", r.TxHash.Hex()).
			Int("matches", len(matched)).
			Msg("multiple SpinResult logs in receipt, using the first that decodes")
	}
	for _, l := range matched {
		outcome, err := d.DecodeLog(*l)
		if err != nil {
			d.logger.Warn().Err(err).
				Str("tx_hash", r.TxHash.Hex()).
				Uint("log_index", l.Index).
				Msg("matched log did not decode")
			continue
		}
		outcome.TxHash = r.TxHash
		if outcome.BlockNumber == 0 && r.BlockNumber != nil {
			outcome.BlockNumber = r.BlockNumber.Uint64()
		}
		metrics.ReceiptDecodes.WithLabelValues(string(game.SourceEvent)).Inc()
		return outcome, nil
	}

	fields, err := d.Fallback(r.Logs)
	if err != nil {
		metrics.ReceiptDecodes.WithLabelValues("not_found").Inc()
		return game.SpinOutcome{}, err
	}
	d.logger.Info().
		Str("tx_hash", r.TxHash.Hex()).
		Uint64("result", fields.Result).
		Msg("spin result recovered heuristically")

	outcome := outcomeFromFields(fields, game.SourceHeuristic)
	outcome.TxHash = r.TxHash
	if r.BlockNumber != nil {
		outcome.BlockNumber = r.BlockNumber.Uint64()
	}
	metrics.ReceiptDecodes.WithLabelValues(string(game.SourceHeuristic)).Inc()
	return outcome, nil
}

// DecodeLog decodes a single matched SpinResult log, including the indexed
// spin id and player when present.
func (d *Decoder) DecodeLog(l types.Log) (game.SpinOutcome, error) {
	fields, err := DecodeFields(l.Data)
	if err != nil {
		return game.SpinOutcome{}, err
	}
	outcome := outcomeFromFields(fields, game.SourceEvent)
	outcome.TxHash = l.TxHash
	outcome.BlockNumber = l.BlockNumber
	if len(l.Topics) > 1 {
		outcome.SpinID = l.Topics[1].Big()
	}
	if len(l.Topics) > 2 {
		outcome.Player = common.BytesToAddress(l.Topics[2].Bytes())
	}
	return outcome, nil
}

func outcomeFromFields(f Fields, source game.OutcomeSource) game.SpinOutcome {
	return game.SpinOutcome{
		Result:    f.Result,
		PayoutWei: f.PayoutWei,
		Payout:    f.Payout,
		Tier:      f.Tier,
		Source:    source,
	}
}
