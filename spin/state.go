package spin

import (
	"fmt"

	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/game"
)

// User-facing messages, one per failure class.
const (
	MsgRejected       = "Transaction rejected. Please try again."
	msgFailedFmt      = "Transaction failed: %s"
	msgUnconfirmedFmt = "Transaction submitted but waiting for confirmation. Check %s for status."
	msgNoLogsFmt      = "Transaction confirmed but no event logs found. View on %s for details."
	msgNotFoundFmt    = "Couldn't find spin result in transaction logs. View on %s for details."
	msgRevertedFmt    = "Transaction reverted. View on %s for details."
)

// State is what the player sees for the latest spin.
type State struct {
	Spinning    bool      `json:"spinning"`
	Result      *uint64   `json:"result,omitempty"`
	Payout      string    `json:"payout,omitempty"`
	Tier        game.Tier `json:"tier,omitempty"`
	WinClass    string    `json:"winClass,omitempty"`
	ShowJackpot bool      `json:"showJackpot"`
	ShowShare   bool      `json:"showShare"`
	ShareURL    string    `json:"shareUrl,omitempty"`
	TxHash      string    `json:"txHash,omitempty"`
	TxURL       string    `json:"txUrl,omitempty"`
	TxPending   bool      `json:"txPending"`
	IsTxSuccess bool      `json:"isTxSuccess"`
	Error       string    `json:"error,omitempty"`
}

// HasResult reports whether a decoded outcome is displayed.
func (s State) HasResult() bool {
	return s.Result != nil
}

func (s *State) applyOutcome(o game.SpinOutcome, homeURL string) {
	result := o.Result
	s.Result = &result
	s.Payout = o.PayoutString()
	s.Tier = o.Tier
	s.WinClass = o.Tier.WinClass()
	s.ShowJackpot = o.Tier == game.TierJackpot
	s.ShowShare = o.Tier.IsWin()
	s.ShareURL = ""
	if s.ShowShare {
		s.ShareURL = game.ShareURL(o.Tier, homeURL)
	}
	s.Spinning = false
	s.TxPending = false
	s.IsTxSuccess = true
	s.Error = ""
}

// reset clears the previous spin before a new submission.
func (s *State) reset() {
	*s = State{Spinning: true}
}

func failedMessage(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return fmt.Sprintf(msgFailedFmt, appErr.Message)
	}
	return fmt.Sprintf(msgFailedFmt, err.Error())
}
