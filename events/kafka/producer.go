package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/onchaincommerce/minibet/metrics"
)

const (
	defaultWorkerNum = 4
	defaultQueueSize = 100
)

// ErrQueueFull is returned by SendMessage when the worker queue is saturated.
var ErrQueueFull = errors.New("kafka producer queue full")

// Producer publishes JSON messages through a small worker pool.
type Producer struct {
	writer    *kafka.Writer
	logger    zerolog.Logger
	jobs      chan kafka.Message
	workerNum int
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// ProducerConfig holds configuration for Kafka producer
type ProducerConfig struct {
	Brokers   []string
	Logger    zerolog.Logger
	WorkerNum int
	QueueSize int
}

// NewProducer creates a producer and starts its workers.
func NewProducer(config ProducerConfig) (*Producer, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.New("kafka producer requires at least one broker")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}

	workerNum := config.WorkerNum
	if workerNum <= 0 {
		workerNum = defaultWorkerNum
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	p := &Producer{
		writer:    writer,
		logger:    config.Logger.With().Str("component", "kafka-producer").Logger(),
		jobs:      make(chan kafka.Message, queueSize),
		workerNum: workerNum,
	}

	for i := 0; i < workerNum; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p, nil
}

func (p *Producer) worker() {
	defer p.wg.Done()
	for msg := range p.jobs {
		func() {
			defer p.recover()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = p.write(ctx, msg)
		}()
	}
}

func (p *Producer) write(ctx context.Context, msg kafka.Message) error {
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().
			Err(err).
			Str("topic", msg.Topic).
			Str("key", string(msg.Key)).
			Msg("Failed to send message to Kafka")
		return err
	}
	metrics.EventsPublished.WithLabelValues(msg.Topic).Inc()
	p.logger.Debug().
		Str("topic", msg.Topic).
		Str("key", string(msg.Key)).
		Msg("Message sent to Kafka")
	return nil
}

func encode(topic, key string, value interface{}) (kafka.Message, error) {
	eventBytes, err := json.Marshal(value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: eventBytes,
		Time:  time.Now(),
	}, nil
}

// SendMessage queues a message for the worker pool without blocking.
func (p *Producer) SendMessage(topic string, key string, value interface{}) error {
	msg, err := encode(topic, key, value)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to marshal event")
		return err
	}

	select {
	case p.jobs <- msg:
		return nil
	default:
		p.logger.Warn().Str("topic", topic).Msg("Kafka queue full, dropping event")
		return ErrQueueFull
	}
}

// SendMessageSync writes a message and waits for the broker ack.
func (p *Producer) SendMessageSync(ctx context.Context, topic string, key string, value interface{}) error {
	msg, err := encode(topic, key, value)
	if err != nil {
		return err
	}
	return p.write(ctx, msg)
}

// Close drains queued messages and closes the writer.
func (p *Producer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.jobs)
		p.wg.Wait()
		if err = p.writer.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Error closing Kafka producer")
		}
	})
	return err
}

func (p *Producer) recover() {
	if r := recover(); r != nil {
		stack := debug.Stack()
		p.logger.Error().
			Str("operation", "send_message_kafka").
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack_trace", string(stack)).
			Msg("Panic recovered")
	}
}
