package provider

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/onchaincommerce/minibet/config"
	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/httpclient"
)

// WinNotification is the webhook payload sent for a winning spin.
type WinNotification struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Player  string `json:"player"`
	Network string `json:"network"`
	Tier    string `json:"tier"`
	Payout  string `json:"payout"`
	TxHash  string `json:"txHash"`
	TxURL   string `json:"txUrl"`
}

// NotifyProvider posts win notifications to a webhook.
type NotifyProvider struct {
	client  *httpclient.Client
	network config.NetworkConfig
	logger  zerolog.Logger
}

// NewNotifyProvider creates a webhook notifier, or nil when no webhook URL is
// configured.
func NewNotifyProvider(cfg config.NotifyConfig, network config.NetworkConfig, logger zerolog.Logger) *NotifyProvider {
	if cfg.WebhookURL == "" {
		return nil
	}
	headers := map[string]string{}
	if cfg.Token != "" {
		headers["Authorization"] = "Bearer " + cfg.Token
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &NotifyProvider{
		client: httpclient.New(httpclient.Config{
			BaseURL:    strings.TrimRight(cfg.WebhookURL, "/"),
			Timeout:    timeout,
			Logger:     logger,
			Headers:    headers,
			MaxRetries: 1,
		}),
		network: network,
		logger:  logger.With().Str("component", "notify_provider").Logger(),
	}
}

// NotifyWin sends a notification for a winning outcome. Non-winning outcomes
// are ignored.
func (p *NotifyProvider) NotifyWin(ctx context.Context, outcome game.SpinOutcome) error {
	if p == nil {
		return nil
	}
	txHash := outcome.TxHash.Hex()
	n, ok := game.NewNotification(outcome.Tier, outcome.PayoutString(), txHash)
	if !ok {
		return nil
	}

	payload := WinNotification{
		Title:   n.Title,
		Body:    n.Body,
		Player:  strings.ToLower(outcome.Player.Hex()),
		Network: p.network.Name,
		Tier:    outcome.Tier.String(),
		Payout:  outcome.PayoutString(),
		TxHash:  txHash,
		TxURL:   game.TxURL(p.network.ExplorerTxURL, txHash),
	}
	if err := p.client.PostJSON(ctx, "", payload, nil, nil); err != nil {
		p.logger.Warn().Err(err).Str("tx_hash", txHash).Msg("Win notification failed")
		return err
	}
	p.logger.Info().Str("tx_hash", txHash).Str("tier", payload.Tier).Msg("Win notification sent")
	return nil
}
