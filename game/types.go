package game

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Tier is the payout category reported by the contract for a spin.
type Tier uint8

const (
	TierJackpot  Tier = 1
	TierBigWin   Tier = 2
	TierSmallWin Tier = 3
	TierNoWin    Tier = 4
)

// IsWin reports whether the tier pays out anything.
func (t Tier) IsWin() bool {
	return t >= TierJackpot && t < TierNoWin
}

func (t Tier) String() string {
	switch t {
	case TierJackpot:
		return "jackpot"
	case TierBigWin:
		return "big_win"
	case TierSmallWin:
		return "small_win"
	case TierNoWin:
		return "no_win"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Title is the headline used for win notifications. Empty for non-winning tiers.
func (t Tier) Title() string {
	switch t {
	case TierJackpot:
		return "JACKPOT!"
	case TierBigWin:
		return "Big Win!"
	case TierSmallWin:
		return "Small Win!"
	default:
		return ""
	}
}

// WinClass is the style hint the front-end applies to the result display.
func (t Tier) WinClass() string {
	switch t {
	case TierJackpot:
		return "jackpot"
	case TierBigWin, TierSmallWin:
		return "win-flash"
	default:
		return ""
	}
}

// OutcomeSource tells how a spin outcome was recovered from a receipt.
type OutcomeSource string

const (
	SourceEvent     OutcomeSource = "event"
	SourceHeuristic OutcomeSource = "heuristic"
)

// SpinOutcome is a decoded spin.
type SpinOutcome struct {
	SpinID      *big.Int        `json:"spinId,omitempty"`
	Player      common.Address  `json:"player"`
	Result      uint64          `json:"result"`
	PayoutWei   *big.Int        `json:"payoutWei"`
	Payout      decimal.Decimal `json:"payout"`
	Tier        Tier            `json:"tier"`
	TxHash      common.Hash     `json:"txHash"`
	BlockNumber uint64          `json:"blockNumber,omitempty"`
	Timestamp   time.Time       `json:"timestamp,omitempty"`
	Source      OutcomeSource   `json:"source"`
}

// PayoutString renders the payout as an ETH amount with no trailing zeros.
func (o SpinOutcome) PayoutString() string {
	return o.Payout.String()
}

// WinRecord is one row of a player's history.
type WinRecord struct {
	SpinID    string    `json:"spinId"`
	Result    uint64    `json:"result"`
	Payout    string    `json:"payout"`
	Tier      Tier      `json:"tier"`
	Timestamp time.Time `json:"timestamp"`
	TxHash    string    `json:"txHash"`
}

// IsRecent reports whether the record is less than an hour older than now.
func (r WinRecord) IsRecent(now time.Time) bool {
	return now.Sub(r.Timestamp) < time.Hour
}

// UserStats mirrors the contract's per-player counters, amounts in wei.
type UserStats struct {
	Spins     *big.Int `json:"spins"`
	Winnings  *big.Int `json:"winnings"`
	Spent     *big.Int `json:"spent"`
	NetProfit *big.Int `json:"netProfit"`
}

// UserStatsView is UserStats formatted for display.
type UserStatsView struct {
	Spins     string `json:"spins"`
	Winnings  string `json:"winnings"`
	Spent     string `json:"spent"`
	NetProfit string `json:"netProfit"`
}

// View formats wei amounts as ETH.
func (s UserStats) View() UserStatsView {
	return UserStatsView{
		Spins:     bigString(s.Spins),
		Winnings:  WeiToETH(s.Winnings).String(),
		Spent:     WeiToETH(s.Spent).String(),
		NetProfit: WeiToETH(s.NetProfit).String(),
	}
}

// JackpotStatus is the contract's jackpot gate plus the contract balance.
type JackpotStatus struct {
	IsUnlocked      bool            `json:"isUnlocked"`
	CurrentSpins    uint64          `json:"currentSpins"`
	SpinsNeeded     uint64          `json:"spinsNeeded"`
	ContractBalance decimal.Decimal `json:"contractBalance"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Progress returns the unlock progress as a percentage clamped to [0,100].
func (j JackpotStatus) Progress() float64 {
	if j.IsUnlocked {
		return 100
	}
	if j.SpinsNeeded == 0 {
		return 0
	}
	p := float64(j.CurrentSpins) * 100 / float64(j.SpinsNeeded)
	if p > 100 {
		return 100
	}
	return p
}

// SpinsRemaining is how many spins are left before the jackpot unlocks.
func (j JackpotStatus) SpinsRemaining() uint64 {
	if j.IsUnlocked || j.CurrentSpins >= j.SpinsNeeded {
		return 0
	}
	return j.SpinsNeeded - j.CurrentSpins
}

// Equal compares everything but UpdatedAt.
func (j JackpotStatus) Equal(o JackpotStatus) bool {
	return j.IsUnlocked == o.IsUnlocked &&
		j.CurrentSpins == o.CurrentSpins &&
		j.SpinsNeeded == o.SpinsNeeded &&
		j.ContractBalance.Equal(o.ContractBalance)
}

const weiExp = -18

// WeiToETH converts a wei amount to ETH. A nil amount is zero.
func WeiToETH(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, weiExp)
}

// ETHToWei converts an ETH amount to wei, truncating below one wei.
func ETHToWei(eth decimal.Decimal) *big.Int {
	return eth.Shift(-weiExp).BigInt()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
