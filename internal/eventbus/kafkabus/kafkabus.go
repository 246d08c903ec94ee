// Package kafkabus adapts eventbus.Bus onto Kafka topics, so a deployment
// can swap the default in-memory broker for a durable, cross-replica one
// without publishers or subscribers noticing. It is grounded on the
// teacher's pkg/infra/kafka/client.go (writer-per-topic, SASL/TLS dialer)
// and consumer.go (reader-per-group, handler dispatch loop).
package kafkabus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/coreledger/platform/internal/eventbus"
)

// Config mirrors the teacher's Kafka Config shape.
type Config struct {
	BootstrapServers string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
	GroupID          string
}

// Bus publishes envelopes to, and consumes them from, Kafka topics named
// after eventbus channels. It satisfies eventbus.Bus.
type Bus struct {
	cfg    Config
	dialer *kafka.Dialer

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	readers []*kafka.Reader

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Bus. The returned Bus owns background reader goroutines for
// every channel passed to Subscribe; call Close to stop them.
func New(cfg Config) (*Bus, error) {
	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}

	if cfg.SASLMechanism == "SCRAM-SHA-512" {
		mechanism, err := scram.Mechanism(scram.SHA512, cfg.SASLUsername, cfg.SASLPassword)
		if err != nil {
			return nil, fmt.Errorf("kafkabus: building SCRAM mechanism: %w", err)
		}
		dialer.SASLMechanism = mechanism
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		cfg:     cfg,
		dialer:  dialer,
		writers: make(map[string]*kafka.Writer),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func (b *Bus) brokers() []string {
	return strings.Split(b.cfg.BootstrapServers, ",")
}

func (b *Bus) writer(topic string) *kafka.Writer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(b.brokers()...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Transport: &kafka.Transport{
			Dial: b.dialer.DialFunc,
			SASL: b.dialer.SASLMechanism,
			TLS:  b.dialer.TLS,
		},
	}
	b.writers[topic] = w
	return w
}

// Publish marshals env as JSON and writes it to the topic named after
// channel, keyed by CorrelationID so same-saga events land on one
// partition and preserve order there.
func (b *Bus) Publish(channel string, env eventbus.Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("kafkabus: marshaling envelope: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(env.CorrelationID),
		Value: value,
		Time:  env.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
		},
	}
	if err := b.writer(channel).WriteMessages(b.ctx, msg); err != nil {
		slog.Error("kafkabus: publish failed", "channel", channel, "error", err)
		return fmt.Errorf("kafkabus: writing message: %w", err)
	}
	return nil
}

// Subscribe starts a consumer-group reader for the channel's topic and
// dispatches every message to handler until the returned unsubscribe
// function is called or the Bus is closed. Unlike the in-memory broker,
// each Subscribe call on the same channel starts its own reader in the
// shared GroupID, so messages fan out across replicas rather than to every
// subscriber in the process.
func (b *Bus) Subscribe(channel string, handler eventbus.Handler) func() {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        b.brokers(),
		GroupID:        b.cfg.GroupID,
		GroupTopics:    []string{channel},
		MinBytes:       1e3,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
		Dialer:         b.dialer,
	})

	b.mu.Lock()
	b.readers = append(b.readers, reader)
	b.mu.Unlock()

	ctx, cancel := context.WithCancel(b.ctx)
	go b.consume(ctx, reader, channel, handler)

	return func() {
		cancel()
		_ = reader.Close()
	}
}

func (b *Bus) consume(ctx context.Context, reader *kafka.Reader, channel string, handler eventbus.Handler) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("kafkabus: fetch failed", "channel", channel, "error", err)
			continue
		}

		var env eventbus.Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			slog.Error("kafkabus: malformed envelope, skipping", "channel", channel, "error", err)
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		if err := safeInvoke(handler, env); err != nil {
			slog.Warn("kafkabus: handler error, message left uncommitted", "channel", channel, "error", err)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			slog.Error("kafkabus: commit failed", "channel", channel, "error", err)
		}
	}
}

// safeInvoke recovers a panicking handler, converting it into an error so
// the message is left uncommitted rather than crashing the consumer
// goroutine — the same panic-isolation guarantee the in-memory broker gives
// its subscribers. The consumer then moves on to the next message; once a
// later message on the same partition is committed, the failed one is not
// redelivered.
func safeInvoke(handler eventbus.Handler, env eventbus.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(env)
}

// Close stops every reader goroutine and closes all writers.
func (b *Bus) Close() error {
	b.cancel()
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for _, w := range b.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, r := range b.readers {
		_ = r.Close()
	}
	return firstErr
}
