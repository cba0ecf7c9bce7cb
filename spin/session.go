package spin

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/onchaincommerce/minibet/chain"
	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/logging"
	"github.com/onchaincommerce/minibet/metrics"
)

// ErrSpinInProgress is returned when Spin is called while a spin is in flight.
var ErrSpinInProgress = apperrors.New(apperrors.ErrSpinInProgress, "a spin is already in progress")

// ErrNothingPending is returned by CheckStatus when there is no transaction
// to check.
var ErrNothingPending = apperrors.New(apperrors.ErrInvalidRequest, "no pending transaction")

// Chain is the contract surface a Session needs. *chain.Client satisfies it.
type Chain interface {
	CheckNetwork(ctx context.Context) error
	Spin(opts *bind.TransactOpts) (*types.Transaction, error)
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	DecodeReceipt(r *types.Receipt) (game.SpinOutcome, error)
}

// Notifier is told about winning spins.
type Notifier interface {
	NotifyWin(ctx context.Context, outcome game.SpinOutcome) error
}

// Publisher records every decoded spin.
type Publisher interface {
	PublishSpin(ctx context.Context, outcome game.SpinOutcome) error
}

// Options configures a Session.
type Options struct {
	Chain        Chain
	Signer       chain.Signer
	ExplorerName string
	ExplorerTx   string
	HomeURL      string
	Notifier     Notifier
	Publisher    Publisher
	Cache        *ReceiptCache
	Logger       zerolog.Logger
}

// Session drives spins for one player and holds the resulting State.
type Session struct {
	chain        Chain
	signer       chain.Signer
	explorerName string
	explorerTx   string
	homeURL      string
	notifier     Notifier
	publisher    Publisher
	cache        *ReceiptCache
	logger       zerolog.Logger

	mu      sync.Mutex
	state   State
	pending common.Hash
}

// NewSession creates a Session signing with opts.Signer.
func NewSession(opts Options) *Session {
	explorer := opts.ExplorerName
	if explorer == "" {
		explorer = "the block explorer"
	}
	logger := opts.Logger
	if opts.Signer != nil {
		logger = logging.WithPlayer(logger, opts.Signer.Address().Hex())
	}
	return &Session{
		chain:        opts.Chain,
		signer:       opts.Signer,
		explorerName: explorer,
		explorerTx:   opts.ExplorerTx,
		homeURL:      opts.HomeURL,
		notifier:     opts.Notifier,
		publisher:    opts.Publisher,
		cache:        opts.Cache,
		logger:       logger.With().Str("component", "spin").Logger(),
	}
}

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Spin submits one spin and waits for its outcome. A second call while one
// is in flight fails with ErrSpinInProgress and leaves the state untouched.
func (s *Session) Spin(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.state.Spinning {
		s.mu.Unlock()
		return State{}, ErrSpinInProgress
	}
	s.state.reset()
	s.pending = common.Hash{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state.Spinning = false
		s.mu.Unlock()
	}()

	tx, err := s.submit(ctx)
	if err != nil {
		return s.State(), err
	}

	hash := tx.Hash()
	s.mu.Lock()
	s.pending = hash
	s.state.TxHash = hash.Hex()
	s.state.TxURL = s.txURL(hash)
	s.state.TxPending = true
	s.mu.Unlock()

	logger := logging.WithTxHash(s.logger, hash.Hex())
	logger.Info().Msg("Spin submitted, waiting for receipt")

	receipt, err := s.chain.WaitReceipt(ctx, hash)
	if err != nil {
		return s.fail(apperrors.ErrUnconfirmed, fmt.Sprintf(msgUnconfirmedFmt, s.explorerName), true, err)
	}
	return s.settle(ctx, receipt)
}

// CheckStatus fetches the receipt of the pending transaction once. It is
// the manual retry after a confirmation timeout.
func (s *Session) CheckStatus(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.state.Spinning {
		s.mu.Unlock()
		return State{}, ErrSpinInProgress
	}
	hash := s.pending
	if hash == (common.Hash{}) || !s.state.TxPending {
		state := s.state
		s.mu.Unlock()
		return state, ErrNothingPending
	}
	s.state.Spinning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state.Spinning = false
		s.mu.Unlock()
	}()

	receipt, err := s.chain.Receipt(ctx, hash)
	if err != nil {
		return s.fail(apperrors.ErrUnconfirmed, fmt.Sprintf(msgUnconfirmedFmt, s.explorerName), true, err)
	}
	return s.settle(ctx, receipt)
}

func (s *Session) submit(ctx context.Context) (*types.Transaction, error) {
	if s.signer == nil {
		_, err := s.fail(apperrors.ErrSignerUnavailable, failedMessage(stderrors.New("no wallet connected")), false, nil)
		return nil, err
	}
	if err := s.chain.CheckNetwork(ctx); err != nil {
		metrics.SpinsSubmitted.WithLabelValues("wrong_network").Inc()
		_, err = s.fail(apperrors.GetCode(err), failedMessage(err), false, err)
		return nil, err
	}

	opts, err := s.signer.TransactOpts(ctx)
	if err != nil {
		_, err = s.fail(apperrors.ErrSignerUnavailable, failedMessage(err), false, err)
		return nil, err
	}

	tx, err := s.chain.Spin(opts)
	if err != nil {
		if IsRejection(err) {
			metrics.SpinsSubmitted.WithLabelValues("rejected").Inc()
			s.logger.Info().Err(err).Msg("Spin rejected by signer")
			_, err = s.fail(apperrors.ErrUserRejected, MsgRejected, false, err)
			return nil, err
		}
		metrics.SpinsSubmitted.WithLabelValues("failed").Inc()
		_, err = s.fail(apperrors.ErrContractRevert, failedMessage(err), false, err)
		return nil, err
	}
	metrics.SpinsSubmitted.WithLabelValues("submitted").Inc()
	return tx, nil
}

// settle turns a mined receipt into the final state.
func (s *Session) settle(ctx context.Context, receipt *types.Receipt) (State, error) {
	if receipt.Status == types.ReceiptStatusFailed {
		return s.fail(apperrors.ErrContractRevert, fmt.Sprintf(msgRevertedFmt, s.explorerName), false, nil)
	}

	outcome, err := s.chain.DecodeReceipt(receipt)
	if err != nil {
		if stderrors.Is(err, chain.ErrNoLogs) {
			return s.fail(apperrors.ErrNoLogs, fmt.Sprintf(msgNoLogsFmt, s.explorerName), false, err)
		}
		return s.fail(apperrors.ErrResultNotFound, fmt.Sprintf(msgNotFoundFmt, s.explorerName), false, err)
	}
	if outcome.Player == (common.Address{}) && s.signer != nil {
		outcome.Player = s.signer.Address()
	}

	s.mu.Lock()
	s.state.applyOutcome(outcome, s.homeURL)
	state := s.state
	s.mu.Unlock()

	metrics.SpinOutcomes.WithLabelValues(outcome.Tier.String()).Inc()
	s.logger.Info().
		Str("tx_hash", outcome.TxHash.Hex()).
		Uint64("result", outcome.Result).
		Str("payout", outcome.PayoutString()).
		Str("tier", outcome.Tier.String()).
		Str("source", string(outcome.Source)).
		Msg("Spin settled")

	s.cache.Add(outcome)
	s.dispatch(ctx, outcome)
	return state, nil
}

// dispatch notifies the sinks. Sink failures never affect the spin result.
func (s *Session) dispatch(ctx context.Context, outcome game.SpinOutcome) {
	if s.publisher != nil {
		if err := s.publisher.PublishSpin(ctx, outcome); err != nil {
			s.logger.Warn().Err(err).Msg("Spin audit publish failed")
		}
	}
	if s.notifier != nil && outcome.Tier.IsWin() {
		if err := s.notifier.NotifyWin(ctx, outcome); err != nil {
			s.logger.Warn().Err(err).Msg("Win notification failed")
		}
	}
}

// fail records a user-facing error. keepPending leaves the transaction
// marked pending so CheckStatus can retry it.
func (s *Session) fail(code int, message string, keepPending bool, cause error) (State, error) {
	s.mu.Lock()
	s.state.Spinning = false
	s.state.Error = message
	s.state.TxPending = keepPending
	s.state.IsTxSuccess = false
	state := s.state
	s.mu.Unlock()

	event := s.logger.Warn()
	if code == apperrors.ErrUserRejected {
		event = s.logger.Info()
	}
	event.Err(cause).Int("code", code).Str("tx_hash", state.TxHash).Msg(message)

	if cause == nil {
		return state, apperrors.New(code, message)
	}
	return state, apperrors.Wrap(cause, code, message)
}

func (s *Session) txURL(hash common.Hash) string {
	if s.explorerTx == "" {
		return ""
	}
	return game.TxURL(s.explorerTx, hash.Hex())
}

// IsRejection reports whether a submission error is the user declining to
// sign.
func IsRejection(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "rejected")
}
