package chain

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/metrics"
)

// Backend is the node API the client needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

var (
	ErrReceiptNotFound = apperrors.New(apperrors.ErrUnconfirmed, "receipt not available yet")
	ErrWrongNetwork    = apperrors.New(apperrors.ErrWrongNetwork, "connected to the wrong network")
)

// Options configures a Client.
type Options struct {
	Address        common.Address
	ChainID        *big.Int
	SpinPrice      *big.Int
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
	Decoder        *Decoder
	Logger         zerolog.Logger
}

// Client reads from and transacts with the slot machine contract.
type Client struct {
	backend        Backend
	contract       *bind.BoundContract
	address        common.Address
	chainID        *big.Int
	spinPrice      *big.Int
	receiptTimeout time.Duration
	pollInterval   time.Duration
	decoder        *Decoder
	blockTimes     *lru.Cache[uint64, time.Time]
	logger         zerolog.Logger
}

// Dial connects to an RPC endpoint and returns a Client over it.
func Dial(ctx context.Context, rpcURL string, opts Options) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrRPC, "failed to dial rpc")
	}
	return NewClient(ec, opts), nil
}

// NewClient creates a Client over backend.
func NewClient(backend Backend, opts Options) *Client {
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	blockTimes, _ := lru.New[uint64, time.Time](1024)

	return &Client{
		backend:        backend,
		contract:       bind.NewBoundContract(opts.Address, parsedABI, backend, backend, backend),
		address:        opts.Address,
		chainID:        opts.ChainID,
		spinPrice:      opts.SpinPrice,
		receiptTimeout: opts.ReceiptTimeout,
		pollInterval:   opts.PollInterval,
		decoder:        opts.Decoder,
		blockTimes:     blockTimes,
		logger:         opts.Logger.With().Str("component", "chain").Logger(),
	}
}

// Address returns the contract address.
func (c *Client) Address() common.Address {
	return c.address
}

// Decoder returns the receipt decoder bound to this contract.
func (c *Client) Decoder() *Decoder {
	return c.decoder
}

// SpinPrice returns the exact value sent with each spin, in wei.
func (c *Client) SpinPrice() *big.Int {
	return new(big.Int).Set(c.spinPrice)
}

// CheckNetwork fails with ErrWrongNetwork when the node's chain id differs
// from the configured one.
func (c *Client) CheckNetwork(ctx context.Context) error {
	if c.chainID == nil {
		return nil
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrRPC, "failed to read chain id")
	}
	if id.Cmp(c.chainID) != 0 {
		return apperrors.WrapWithDebug(ErrWrongNetwork, apperrors.ErrWrongNetwork, ErrWrongNetwork.Message,
			fmt.Sprintf("node chain id %s, expected %s", id, c.chainID))
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, apperrors.WrapWithDebug(err, apperrors.ErrRPC, "contract call failed", method)
	}
	return out, nil
}

// Owner returns the contract owner.
func (c *Client) Owner(ctx context.Context) (common.Address, error) {
	out, err := c.call(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// ContractBalance returns the contract's balance in wei.
func (c *Client) ContractBalance(ctx context.Context) (*big.Int, error) {
	out, err := c.call(ctx, "getContractBalance")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// JackpotStatus returns the jackpot gate. ContractBalance is left zero.
func (c *Client) JackpotStatus(ctx context.Context) (game.JackpotStatus, error) {
	out, err := c.call(ctx, "getJackpotStatus")
	if err != nil {
		return game.JackpotStatus{}, err
	}
	unlocked := *abi.ConvertType(out[0], new(bool)).(*bool)
	current := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	needed := *abi.ConvertType(out[2], new(*big.Int)).(**big.Int)
	if current == nil || needed == nil || !current.IsUint64() || !needed.IsUint64() {
		return game.JackpotStatus{}, apperrors.NewWithDebug(apperrors.ErrDecode, "jackpot counters out of range",
			fmt.Sprintf("currentSpins=%v spinsNeeded=%v", current, needed))
	}

	return game.JackpotStatus{
		IsUnlocked:   unlocked,
		CurrentSpins: current.Uint64(),
		SpinsNeeded:  needed.Uint64(),
		UpdatedAt:    time.Now(),
	}, nil
}

// UserStats returns the contract's counters for player.
func (c *Client) UserStats(ctx context.Context, player common.Address) (game.UserStats, error) {
	out, err := c.call(ctx, "getUserStats", player)
	if err != nil {
		return game.UserStats{}, err
	}
	return game.UserStats{
		Spins:     *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Winnings:  *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		Spent:     *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		NetProfit: *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
	}, nil
}

// Spin submits spin() paying exactly the spin price. Submission errors are
// returned unwrapped so callers can classify wallet rejections.
func (c *Client) Spin(opts *bind.TransactOpts) (*types.Transaction, error) {
	tx := *opts
	tx.Value = c.SpinPrice()
	return c.contract.Transact(&tx, "spin")
}

// Withdraw submits withdraw(amount). Zero withdraws the whole balance.
func (c *Client) Withdraw(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	if amount == nil {
		amount = new(big.Int)
	}
	return c.contract.Transact(opts, "withdraw", amount)
}

// Receipt fetches a receipt once. ErrReceiptNotFound means still pending.
func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	r, err := c.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		if stderrors.Is(err, ethereum.NotFound) {
			return nil, ErrReceiptNotFound
		}
		return nil, apperrors.Wrap(err, apperrors.ErrRPC, "failed to fetch receipt")
	}
	return r, nil
}

// WaitReceipt polls for a receipt until it is available or the receipt
// timeout elapses. On timeout the error carries ErrUnconfirmed.
func (c *Client) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	start := time.Now()
	defer func() {
		metrics.ReceiptWaitDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		r, err := c.Receipt(ctx, hash)
		if err == nil {
			return r, nil
		}
		if !stderrors.Is(err, ErrReceiptNotFound) {
			lastErr = err
			c.logger.Debug().Err(err).Str("tx_hash", hash.Hex()).Msg("receipt poll failed")
		}

		select {
		case <-ctx.Done():
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			return nil, apperrors.Wrap(lastErr, apperrors.ErrUnconfirmed, "transaction not confirmed in time")
		case <-ticker.C:
		}
	}
}

// DecodeReceipt decodes r with the client's decoder.
func (c *Client) DecodeReceipt(r *types.Receipt) (game.SpinOutcome, error) {
	return c.decoder.DecodeReceipt(r)
}

// LatestBlock returns the current block number.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrRPC, "failed to read block number")
	}
	return n, nil
}

// FilterSpinLogs returns SpinResult logs of player between from and to,
// matching any accepted signature.
func (c *Client) FilterSpinLogs(ctx context.Context, player common.Address, from, to uint64) ([]types.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.address},
		Topics: [][]common.Hash{
			c.decoder.Signatures().Hashes(),
			nil,
			{common.BytesToHash(player.Bytes())},
		},
	}
	logs, err := c.backend.FilterLogs(ctx, q)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrRPC, "failed to filter logs")
	}
	return logs, nil
}

// BlockTime returns the timestamp of block number, cached.
func (c *Client) BlockTime(ctx context.Context, number uint64) (time.Time, error) {
	if t, ok := c.blockTimes.Get(number); ok {
		return t, nil
	}
	h, err := c.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return time.Time{}, apperrors.Wrap(err, apperrors.ErrRPC, "failed to fetch header")
	}
	t := time.Unix(int64(h.Time), 0).UTC()
	c.blockTimes.Add(number, t)
	return t, nil
}
