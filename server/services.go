package server

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/onchaincommerce/minibet/admin"
	"github.com/onchaincommerce/minibet/events/kafka"
	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/history"
	"github.com/onchaincommerce/minibet/pkg/jackpot"
)

// StatsReader reads per-player counters. *chain.Client satisfies it.
type StatsReader interface {
	UserStats(ctx context.Context, player common.Address) (game.UserStats, error)
}

// TxResolver decodes a spin by transaction hash. *spin.Resolver satisfies it.
type TxResolver interface {
	Lookup(ctx context.Context, txHash common.Hash) (game.SpinOutcome, error)
}

// HistoryReader pages a player's spins. *history.Service satisfies it.
type HistoryReader interface {
	Page(ctx context.Context, player common.Address, page int) (history.Page, error)
	Invalidate(ctx context.Context, player string)
}

// JackpotFeed serves jackpot snapshots. *jackpot.Service satisfies it.
type JackpotFeed interface {
	Current() (jackpot.Update, bool)
	Refresh(ctx context.Context) (jackpot.Update, error)
	Listen(ctx context.Context) (<-chan jackpot.Update, context.CancelFunc)
}

// AdminService runs owner operations. *admin.Service satisfies it.
type AdminService interface {
	IsOwner(ctx context.Context, addr common.Address) (bool, error)
	Overview(ctx context.Context) (admin.Overview, error)
	Withdraw(ctx context.Context, amountETH decimal.Decimal) (admin.WithdrawResult, error)
}

// WinFeed streams winning spins. *kafka.Consumer satisfies it.
type WinFeed interface {
	SubscribeAll() *kafka.Subscription
	Unsubscribe(sub *kafka.Subscription)
	Recent() *kafka.RecentWins
}

// Services are the domain services behind the HTTP routes. Nil members
// leave their routes answering 503.
type Services struct {
	Stats   StatsReader
	Tx      TxResolver
	History HistoryReader
	Jackpot JackpotFeed
	Admin   AdminService
	Wins    WinFeed
}
