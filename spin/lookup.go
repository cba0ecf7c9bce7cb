package spin

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/game"
)

// ReceiptReader fetches and decodes receipts. *chain.Client satisfies it.
type ReceiptReader interface {
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	DecodeReceipt(r *types.Receipt) (game.SpinOutcome, error)
}

// Resolver decodes arbitrary spin transactions by hash.
type Resolver struct {
	chain  ReceiptReader
	cache  *ReceiptCache
	logger zerolog.Logger
}

// NewResolver creates a Resolver sharing cache with the sessions.
func NewResolver(chain ReceiptReader, cache *ReceiptCache, logger zerolog.Logger) *Resolver {
	return &Resolver{
		chain:  chain,
		cache:  cache,
		logger: logger.With().Str("component", "spin_resolver").Logger(),
	}
}

// Lookup returns the outcome of the spin mined in txHash. A pending
// transaction yields an ErrUnconfirmed error.
func (r *Resolver) Lookup(ctx context.Context, txHash common.Hash) (game.SpinOutcome, error) {
	if o, ok := r.cache.Get(txHash); ok {
		return o, nil
	}

	receipt, err := r.chain.Receipt(ctx, txHash)
	if err != nil {
		return game.SpinOutcome{}, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return game.SpinOutcome{}, apperrors.New(apperrors.ErrContractRevert, "transaction reverted")
	}

	outcome, err := r.chain.DecodeReceipt(receipt)
	if err != nil {
		r.logger.Debug().Err(err).Str("tx_hash", txHash.Hex()).Msg("Receipt did not decode")
		return game.SpinOutcome{}, err
	}
	r.cache.Add(outcome)
	return outcome, nil
}
