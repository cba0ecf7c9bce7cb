package provider

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/onchaincommerce/minibet/config"
	"github.com/onchaincommerce/minibet/events/kafka"
	"github.com/onchaincommerce/minibet/game"
	"github.com/onchaincommerce/minibet/middleware"
)

const (
	// TopicAudit is the config key of the audit topic.
	TopicAudit = "audit"

	resultSuccess = "success"
)

// Publisher sends a keyed message to a topic. *kafka.Producer satisfies it.
type Publisher interface {
	SendMessage(topic string, key string, value interface{}) error
}

// AuditProvider publishes confirmed spins and withdrawals as audit events.
type AuditProvider struct {
	publisher Publisher
	topic     string
	network   string
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuditProvider creates an audit provider. A nil publisher makes every
// call a no-op.
func NewAuditProvider(cfg *config.Config, publisher Publisher, logger zerolog.Logger) *AuditProvider {
	return &AuditProvider{
		publisher: publisher,
		topic:     cfg.Kafka.Topic(TopicAudit),
		network:   cfg.Network,
		logger:    logger.With().Str("component", "audit_provider").Logger(),
		now:       time.Now,
	}
}

// Topic returns the topic events are published to.
func (p *AuditProvider) Topic() string {
	return p.topic
}

// PublishSpin publishes a decoded spin outcome.
func (p *AuditProvider) PublishSpin(ctx context.Context, outcome game.SpinOutcome) error {
	details := kafka.SpinDetails{
		TxHash:      outcome.TxHash.Hex(),
		Result:      outcome.Result,
		Payout:      outcome.PayoutString(),
		Tier:        uint8(outcome.Tier),
		Source:      string(outcome.Source),
		BlockNumber: outcome.BlockNumber,
	}
	if outcome.SpinID != nil {
		details.SpinID = outcome.SpinID.String()
	}
	return p.publish(ctx, outcome.Player.Hex(), kafka.ActionSpin, details)
}

// PublishWithdraw publishes an owner withdrawal.
func (p *AuditProvider) PublishWithdraw(ctx context.Context, owner, txHash, amount string) error {
	return p.publish(ctx, owner, kafka.ActionWithdraw, kafka.WithdrawDetails{
		TxHash: txHash,
		Amount: amount,
	})
}

func (p *AuditProvider) publish(ctx context.Context, player, action string, details interface{}) error {
	if p.publisher == nil {
		return nil
	}

	event := kafka.AuditEvent{
		EventID:   uuid.New().String(),
		Timestamp: p.now().UTC(),
		Player:    strings.ToLower(player),
		Network:   p.network,
		Action:    action,
		Details:   details,
		Result:    resultSuccess,
		TraceID:   middleware.TraceIDFromContext(ctx),
	}

	if err := p.publisher.SendMessage(p.topic, event.Player, event); err != nil {
		p.logger.Error().
			Err(err).
			Str("action", action).
			Str("player", event.Player).
			Msg("Failed to publish audit event")
		return err
	}

	p.logger.Debug().
		Str("event_id", event.EventID).
		Str("action", action).
		Msg("Audit event published")
	return nil
}
