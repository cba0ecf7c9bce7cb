package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const allPlayersKey = "*"

// RecentWins keeps the last N win events in arrival order.
type RecentWins struct {
	mu     sync.RWMutex
	events []WinEvent
	limit  int
}

// NewRecentWins creates a buffer holding up to limit events.
func NewRecentWins(limit int) *RecentWins {
	if limit <= 0 {
		limit = 50
	}
	return &RecentWins{limit: limit}
}

// Add appends an event, evicting the oldest when full.
func (r *RecentWins) Add(e WinEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if len(r.events) > r.limit {
		r.events = r.events[len(r.events)-r.limit:]
	}
}

// Snapshot returns the buffered events, newest first.
func (r *RecentWins) Snapshot() []WinEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]WinEvent, len(r.events))
	for i, e := range r.events {
		out[len(r.events)-1-i] = e
	}
	return out
}

// Subscription represents a client subscription for events
type Subscription struct {
	ID      string
	Player  string
	Channel chan WinEvent
}

// EventFilter decides whether an event is relevant to this process.
type EventFilter func(e AuditEvent) bool

// NetworkFilter accepts only events of the given network.
func NetworkFilter(network string) EventFilter {
	return func(e AuditEvent) bool {
		return e.Network == network
	}
}

// Consumer reads spin audit events and fans winning spins out to subscribers.
type Consumer struct {
	reader *kafka.Reader
	recent *RecentWins
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	subscribers map[string][]*Subscription
	filter      EventFilter
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	Logger        zerolog.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config ConsumerConfig, recent *RecentWins) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	return &Consumer{
		reader:      reader,
		recent:      recent,
		logger:      config.Logger.With().Str("component", "kafka-consumer").Logger(),
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[string][]*Subscription),
	}
}

// Start begins consuming messages
func (c *Consumer) Start() error {
	c.wg.Add(1)
	go c.consume()
	c.logger.Info().Msg("Kafka consumer started")
	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info().Msg("Stopping Kafka consumer...")
	c.cancel()
	c.wg.Wait()

	if err := c.reader.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Error closing Kafka reader")
		return err
	}

	c.logger.Info().Msg("Kafka consumer stopped")
	return nil
}

func (c *Consumer) consume() {
	defer c.wg.Done()

	for {
		msg, err := c.reader.FetchMessage(c.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || c.ctx.Err() != nil {
				return
			}
			c.logger.Error().Err(err).Msg("Error fetching message from Kafka")
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.HandleMessage(msg.Value); err != nil {
			c.logger.Error().
				Err(err).
				Str("topic", msg.Topic).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Error handling message")
		}

		if err := c.reader.CommitMessages(c.ctx, msg); err != nil {
			c.logger.Error().Err(err).Msg("Error committing message")
		}
	}
}

// HandleMessage decodes one audit event and, for winning spins, records and
// broadcasts it.
func (c *Consumer) HandleMessage(value []byte) error {
	event, spin, err := DecodeSpinEvent(value)
	if err != nil {
		return err
	}
	if event.Action != ActionSpin || spin.Tier == 0 || spin.Tier >= 4 {
		return nil
	}

	c.mu.RLock()
	keep := c.filter == nil || c.filter(event)
	c.mu.RUnlock()
	if !keep {
		c.logger.Debug().
			Str("network", event.Network).
			Msg("Skipping event from another network")
		return nil
	}

	win := WinEvent{
		EventID:   event.EventID,
		Player:    strings.ToLower(event.Player),
		Network:   event.Network,
		Timestamp: event.Timestamp,
		Spin:      spin,
	}
	if c.recent != nil {
		c.recent.Add(win)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	c.deliver(c.subscribers[win.Player], win)
	c.deliver(c.subscribers[allPlayersKey], win)
	return nil
}

func (c *Consumer) deliver(subs []*Subscription, win WinEvent) {
	for _, sub := range subs {
		select {
		case sub.Channel <- win:
		default:
			c.logger.Warn().
				Str("sub_id", sub.ID).
				Str("player", win.Player).
				Msg("Subscriber channel full, dropping event")
		}
	}
}

// DecodeSpinEvent parses an audit event and decodes its spin details.
func DecodeSpinEvent(value []byte) (AuditEvent, SpinDetails, error) {
	var event AuditEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return AuditEvent{}, SpinDetails{}, err
	}
	var spin SpinDetails
	if event.Action != ActionSpin {
		return event, spin, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &spin,
	})
	if err != nil {
		return AuditEvent{}, SpinDetails{}, err
	}
	if err := decoder.Decode(event.Details); err != nil {
		return AuditEvent{}, SpinDetails{}, err
	}
	return event, spin, nil
}

// Recent returns the recent wins buffer.
func (c *Consumer) Recent() *RecentWins {
	return c.recent
}

// SetFilter sets the event filter. Nil accepts everything.
func (c *Consumer) SetFilter(filter EventFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = filter
}

// Subscribe subscribes to wins of one player address
func (c *Consumer) Subscribe(player string) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := &Subscription{
		ID:      uuid.New().String(),
		Player:  strings.ToLower(player),
		Channel: make(chan WinEvent, 10),
	}
	c.subscribers[sub.Player] = append(c.subscribers[sub.Player], sub)

	c.logger.Debug().
		Str("player", sub.Player).
		Str("sub_id", sub.ID).
		Msg("New subscription added")

	return sub
}

// SubscribeAll subscribes to wins of every player.
func (c *Consumer) SubscribeAll() *Subscription {
	return c.Subscribe(allPlayersKey)
}

// Unsubscribe removes a subscription and closes its channel
func (c *Consumer) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := c.subscribers[sub.Player]
	kept := subs[:0]
	for _, s := range subs {
		if s.ID == sub.ID {
			close(s.Channel)
			continue
		}
		kept = append(kept, s)
	}

	if len(kept) == 0 {
		delete(c.subscribers, sub.Player)
	} else {
		c.subscribers[sub.Player] = kept
	}
}
