package game

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PayoutRule maps results strictly below Below to Tier, paying Payout ETH.
type PayoutRule struct {
	Below  uint64          `mapstructure:"below" json:"below"`
	Tier   Tier            `mapstructure:"tier" json:"tier"`
	Payout decimal.Decimal `mapstructure:"payout" json:"payout"`
}

// PayoutTable holds the result thresholds shared by the fallback decoder and
// the presentation code. Rules are ordered by ascending Below; results at or
// above the last threshold are TierNoWin.
type PayoutTable struct {
	Rules       []PayoutRule `mapstructure:"rules" json:"rules"`
	ResultBound uint64       `mapstructure:"result_bound" json:"resultBound"`
}

// DefaultPayoutTable returns the thresholds used by the deployed contract.
func DefaultPayoutTable() PayoutTable {
	return PayoutTable{
		Rules: []PayoutRule{
			{Below: 1, Tier: TierJackpot, Payout: decimal.RequireFromString("0.1")},
			{Below: 21, Tier: TierBigWin, Payout: decimal.RequireFromString("0.01")},
			{Below: 121, Tier: TierSmallWin, Payout: decimal.RequireFromString("0.002")},
		},
		ResultBound: 1000,
	}
}

// Classify returns the tier and ETH payout for a raw result.
func (p PayoutTable) Classify(result uint64) (Tier, decimal.Decimal) {
	for _, r := range p.Rules {
		if result < r.Below {
			return r.Tier, r.Payout
		}
	}
	return TierNoWin, decimal.Zero
}

// Plausible reports whether v can be a spin result.
func (p PayoutTable) Plausible(v uint64) bool {
	return v < p.ResultBound
}

// PayoutFor returns the configured payout of a tier.
func (p PayoutTable) PayoutFor(t Tier) decimal.Decimal {
	for _, r := range p.Rules {
		if r.Tier == t {
			return r.Payout
		}
	}
	return decimal.Zero
}

var errEmptyPayoutTable = errors.New("payout table has no rules")

// Validate checks the table is usable.
func (p PayoutTable) Validate() error {
	if len(p.Rules) == 0 {
		return errEmptyPayoutTable
	}
	seen := make(map[Tier]bool, len(p.Rules))
	var prev uint64
	for i, r := range p.Rules {
		if !r.Tier.IsWin() {
			return fmt.Errorf("rule %d: tier %d is not a winning tier", i, r.Tier)
		}
		if seen[r.Tier] {
			return fmt.Errorf("rule %d: duplicate tier %d", i, r.Tier)
		}
		seen[r.Tier] = true
		if r.Below <= prev {
			return fmt.Errorf("rule %d: threshold %d must be greater than %d", i, r.Below, prev)
		}
		if r.Payout.IsNegative() {
			return fmt.Errorf("rule %d: negative payout", i)
		}
		prev = r.Below
	}
	if p.ResultBound < prev {
		return fmt.Errorf("result bound %d is below the last threshold %d", p.ResultBound, prev)
	}
	return nil
}
