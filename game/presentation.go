package game

import (
	"fmt"
	"net/url"
	"strings"
)

const shareIntentURL = "https://twitter.com/intent/tweet"

// ShareText is the post text offered after a win.
func ShareText(t Tier, homeURL string) string {
	switch t {
	case TierJackpot:
		return fmt.Sprintf("🎰 JACKPOT! 🎰 I just won 0.1 ETH playing Minibet on @base! Try your luck at %s", homeURL)
	case TierBigWin:
		return fmt.Sprintf("🎰 Big Win! 🎰 I just won 0.01 ETH playing Minibet on @base! Try your luck at %s", homeURL)
	default:
		return fmt.Sprintf("🎰 I just won on Minibet, the slot machine on @base! Try your luck at %s", homeURL)
	}
}

// ShareURL builds the intent link that pre-fills ShareText.
func ShareURL(t Tier, homeURL string) string {
	return shareIntentURL + "?text=" + url.QueryEscape(ShareText(t, homeURL))
}

// Notification is the title/body pair pushed to the player after a win.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NewNotification builds the win notification. ok is false for non-winning tiers.
func NewNotification(t Tier, payout, txHash string) (Notification, bool) {
	if !t.IsWin() {
		return Notification{}, false
	}
	return Notification{
		Title: t.Title(),
		Body:  fmt.Sprintf("You won %s ETH! TX: %s", payout, ShortHash(txHash)),
	}, true
}

// ShortHash abbreviates a hash or address as 0x1234...abcd.
func ShortHash(h string) string {
	if len(h) <= 10 {
		return h
	}
	return h[:6] + "..." + h[len(h)-4:]
}

// TxURL joins an explorer transaction base URL with a hash.
func TxURL(base, txHash string) string {
	return strings.TrimRight(base, "/") + "/" + txHash
}
