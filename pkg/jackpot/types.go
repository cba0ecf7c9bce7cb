package jackpot

import (
	"context"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/onchaincommerce/minibet/game"
)

// Reader is the contract surface polled by the service. *chain.Client
// satisfies it.
type Reader interface {
	JackpotStatus(ctx context.Context) (game.JackpotStatus, error)
	ContractBalance(ctx context.Context) (*big.Int, error)
}

// Update is a jackpot snapshot as pushed to listeners.
type Update struct {
	game.JackpotStatus
	Progress       float64 `json:"progress"`
	SpinsRemaining uint64  `json:"spinsRemaining"`
}

// NewUpdate derives the display fields of status.
func NewUpdate(status game.JackpotStatus) Update {
	return Update{
		JackpotStatus:  status,
		Progress:       status.Progress(),
		SpinsRemaining: status.SpinsRemaining(),
	}
}

// ServiceConfig configures the jackpot service.
type ServiceConfig struct {
	Reader Reader

	// PollInterval is how often the contract is read.
	PollInterval time.Duration

	// Logger is optional; if zero value, a no-op logger is used.
	Logger zerolog.Logger
}
