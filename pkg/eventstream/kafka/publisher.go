// Package kafka publishes completion events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/hellochat/pkg/eventstream"
)

// DefaultTopic is the topic used when none is configured.
const DefaultTopic = "hellochat.completions"

// ErrClosed is returned when publishing on a closed publisher.
var ErrClosed = errors.New("kafka publisher is closed")

// MessageWriter is the subset of *kafkago.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures the Kafka publisher.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration

	// Writer overrides the kafka-go writer built from Brokers.
	Writer MessageWriter

	Logger *slog.Logger
}

// Publisher writes JSON-encoded completion events keyed by call ID.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPublisher creates a Kafka publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	writer := cfg.Writer
	if writer == nil {
		if len(cfg.Brokers) == 0 {
			return nil, errors.New("kafka publisher requires at least one broker")
		}

		writeTimeout := cfg.WriteTimeout
		if writeTimeout == 0 {
			writeTimeout = 10 * time.Second
		}

		writer = &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			WriteTimeout:           writeTimeout,
			AllowAutoTopicCreation: true,
			ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...any) {
				logger.Error("kafka writer: " + fmt.Sprintf(msg, args...))
			}),
		}
	}

	logger.Info("kafka publisher initialized",
		"brokers", cfg.Brokers,
		"topic", topic,
	)

	return &Publisher{
		writer: writer,
		topic:  topic,
		logger: logger,
	}, nil
}

// Topic returns the destination topic.
func (p *Publisher) Topic() string {
	return p.topic
}

// PublishCompletion encodes event and writes it to the topic.
func (p *Publisher) PublishCompletion(ctx context.Context, event *eventstream.CompletionEvent) error {
	if event == nil {
		return eventstream.ErrNilCompletionEvent
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal completion event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.RequestMeta.CallID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte(event.EventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write completion event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return p.writer.Close()
}
