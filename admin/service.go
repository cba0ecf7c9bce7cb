package admin

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/onchaincommerce/minibet/chain"
	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/game"
)

var (
	ErrNotOwner          = apperrors.New(apperrors.ErrForbidden, "signer is not the contract owner")
	ErrNothingToWithdraw = apperrors.New(apperrors.ErrInvalidRequest, "contract balance is zero")
	ErrExceedsBalance    = apperrors.New(apperrors.ErrInvalidRequest, "amount exceeds contract balance")
	ErrNegativeAmount    = apperrors.New(apperrors.ErrInvalidRequest, "amount must not be negative")
)

// Chain is the contract surface used for owner operations. *chain.Client
// satisfies it.
type Chain interface {
	Owner(ctx context.Context) (common.Address, error)
	ContractBalance(ctx context.Context) (*big.Int, error)
	JackpotStatus(ctx context.Context) (game.JackpotStatus, error)
	Withdraw(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Auditor records withdrawals.
type Auditor interface {
	PublishWithdraw(ctx context.Context, owner, txHash, amount string) error
}

// Overview is the owner dashboard.
type Overview struct {
	Owner   common.Address     `json:"owner"`
	Balance decimal.Decimal    `json:"balance"`
	Jackpot game.JackpotStatus `json:"jackpot"`
}

// WithdrawResult describes a confirmed withdrawal.
type WithdrawResult struct {
	TxHash      string `json:"txHash"`
	Amount      string `json:"amount"`
	BlockNumber uint64 `json:"blockNumber"`
}

// Service runs owner-only contract operations.
type Service struct {
	chain   Chain
	signer  chain.Signer
	auditor Auditor
	logger  zerolog.Logger
}

// NewService creates an admin service. signer and auditor may be nil; a nil
// signer makes Withdraw unavailable.
func NewService(c Chain, signer chain.Signer, auditor Auditor, logger zerolog.Logger) *Service {
	return &Service{
		chain:   c,
		signer:  signer,
		auditor: auditor,
		logger:  logger.With().Str("component", "admin").Logger(),
	}
}

// IsOwner reports whether addr owns the contract.
func (s *Service) IsOwner(ctx context.Context, addr common.Address) (bool, error) {
	owner, err := s.chain.Owner(ctx)
	if err != nil {
		return false, err
	}
	return owner == addr, nil
}

// Overview reads owner, balance and jackpot state.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	owner, err := s.chain.Owner(ctx)
	if err != nil {
		return Overview{}, err
	}
	balance, err := s.chain.ContractBalance(ctx)
	if err != nil {
		return Overview{}, err
	}
	jackpot, err := s.chain.JackpotStatus(ctx)
	if err != nil {
		return Overview{}, err
	}
	jackpot.ContractBalance = game.WeiToETH(balance)
	return Overview{Owner: owner, Balance: jackpot.ContractBalance, Jackpot: jackpot}, nil
}

// Withdraw sends amountETH to the owner and waits for confirmation. Zero
// withdraws the whole balance, resolved before sending so the call works on
// contracts that treat zero literally.
func (s *Service) Withdraw(ctx context.Context, amountETH decimal.Decimal) (WithdrawResult, error) {
	if s.signer == nil {
		return WithdrawResult{}, apperrors.New(apperrors.ErrSignerUnavailable, "no signer configured")
	}
	if amountETH.IsNegative() {
		return WithdrawResult{}, ErrNegativeAmount
	}

	isOwner, err := s.IsOwner(ctx, s.signer.Address())
	if err != nil {
		return WithdrawResult{}, err
	}
	if !isOwner {
		return WithdrawResult{}, ErrNotOwner
	}

	balance, err := s.chain.ContractBalance(ctx)
	if err != nil {
		return WithdrawResult{}, err
	}
	amount := game.ETHToWei(amountETH)
	if amount.Sign() == 0 {
		amount = new(big.Int).Set(balance)
	}
	if amount.Sign() == 0 {
		return WithdrawResult{}, ErrNothingToWithdraw
	}
	if amount.Cmp(balance) > 0 {
		return WithdrawResult{}, ErrExceedsBalance
	}

	opts, err := s.signer.TransactOpts(ctx)
	if err != nil {
		return WithdrawResult{}, err
	}
	tx, err := s.chain.Withdraw(opts, amount)
	if err != nil {
		return WithdrawResult{}, apperrors.Wrap(err, apperrors.ErrContractRevert, "withdraw failed")
	}

	logger := s.logger.With().Str("tx_hash", tx.Hash().Hex()).Logger()
	logger.Info().Str("amount", game.WeiToETH(amount).String()).Msg("Withdraw submitted")

	receipt, err := s.chain.WaitReceipt(ctx, tx.Hash())
	if err != nil {
		return WithdrawResult{TxHash: tx.Hash().Hex()}, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return WithdrawResult{TxHash: tx.Hash().Hex()}, apperrors.New(apperrors.ErrContractRevert, "withdraw reverted")
	}

	result := WithdrawResult{
		TxHash: tx.Hash().Hex(),
		Amount: game.WeiToETH(amount).String(),
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	logger.Info().Uint64("block", result.BlockNumber).Msg("Withdraw confirmed")

	if s.auditor != nil {
		if err := s.auditor.PublishWithdraw(ctx, s.signer.Address().Hex(), result.TxHash, result.Amount); err != nil {
			logger.Warn().Err(err).Msg("Withdraw audit publish failed")
		}
	}
	return result, nil
}
