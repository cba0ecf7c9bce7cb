package kafka

import (
	"time"
)

// Event actions
const (
	ActionSpin     = "spin"
	ActionWithdraw = "withdraw"
)

// AuditEvent is the envelope published for every confirmed contract action.
type AuditEvent struct {
	EventID   string      `json:"event_id"`
	Timestamp time.Time   `json:"timestamp"`
	Player    string      `json:"player"`
	Network   string      `json:"network"`
	Action    string      `json:"action"`
	Details   interface{} `json:"details"`
	Result    string      `json:"result"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// SpinDetails are the Details of a spin AuditEvent.
type SpinDetails struct {
	TxHash      string `mapstructure:"txHash" json:"txHash"`
	SpinID      string `mapstructure:"spinId" json:"spinId,omitempty"`
	Result      uint64 `mapstructure:"result" json:"result"`
	Payout      string `mapstructure:"payout" json:"payout"`
	Tier        uint8  `mapstructure:"tier" json:"tier"`
	Source      string `mapstructure:"source" json:"source"`
	BlockNumber uint64 `mapstructure:"blockNumber" json:"blockNumber,omitempty"`
}

// WithdrawDetails are the Details of a withdraw AuditEvent.
type WithdrawDetails struct {
	TxHash string `mapstructure:"txHash" json:"txHash"`
	Amount string `mapstructure:"amount" json:"amount"`
}

// WinEvent is what stream subscribers receive for a winning spin.
type WinEvent struct {
	EventID   string      `json:"eventId"`
	Player    string      `json:"player"`
	Network   string      `json:"network"`
	Timestamp time.Time   `json:"timestamp"`
	Spin      SpinDetails `json:"spin"`
}
