package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publish: publisher is closed")

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Stats holds publisher counters.
type Stats struct {
	Published     int64
	Bytes         int64
	Errors        int64
	Retries       int64
	LastError     string
	LastErrorTime time.Time
}

// KafkaPublisher writes envelopes to a Kafka topic, one message per
// envelope keyed by scan target.
type KafkaPublisher struct {
	writer  messageWriter
	config  Config
	logger  *slog.Logger
	closed  atomic.Bool
	version string

	published     atomic.Int64
	bytes         atomic.Int64
	errors        atomic.Int64
	retries       atomic.Int64
	lastError     atomic.Value // string
	lastErrorTime atomic.Value // time.Time
}

// NewKafkaPublisher validates cfg and creates a publisher backed by a
// kafka.Writer. version is stamped on envelopes that do not carry one.
func NewKafkaPublisher(cfg Config, version string, logger *slog.Logger) (*KafkaPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Enabled = true
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport, err := cfg.Transport()
	if err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  1,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  cfg.Compression(),
		Transport:    transport,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
	}

	logger.Info("scan publisher initialized",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"compression", cfg.CompressionType,
	)

	return newKafkaPublisher(writer, cfg, version, logger), nil
}

func newKafkaPublisher(w messageWriter, cfg Config, version string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  w,
		config:  cfg,
		logger:  logger.With("component", "publish"),
		version: version,
	}
}

// Publish encodes and writes envelopes as one batch, retrying transient
// failures with exponential backoff.
func (p *KafkaPublisher) Publish(ctx context.Context, envelopes ...Envelope) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}
	if len(envelopes) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(envelopes))
	for _, env := range envelopes {
		if env.Version == "" {
			env.Version = p.version
		}
		msg, err := toMessage(env)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.write(ctx, msgs)
}

func toMessage(env Envelope) (kafka.Message, error) {
	value, err := env.Marshal()
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(env.Target),
		Value: value,
		Time:  env.ScannedAt,
		Headers: []kafka.Header{
			{Key: "scan_id", Value: []byte(env.ScanID.String())},
			{Key: "kind", Value: []byte(env.Kind)},
			{Key: "level", Value: []byte(env.Result.Level)},
		},
	}, nil
}

func (p *KafkaPublisher) write(ctx context.Context, msgs []kafka.Message) error {
	var lastErr error
	backoff := p.config.RetryBackoff

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			p.retries.Add(1)
			p.logger.Debug("retrying publish", "attempt", attempt, "backoff", backoff)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := p.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			for _, m := range msgs {
				p.published.Add(1)
				p.bytes.Add(int64(len(m.Key) + len(m.Value)))
			}
			p.logger.Debug("published envelopes", "count", len(msgs), "topic", p.config.Topic)
			return nil
		}

		lastErr = err
		p.errors.Add(1)
		p.lastError.Store(err.Error())
		p.lastErrorTime.Store(time.Now())

		p.logger.Warn("publish failed",
			"error", err,
			"attempt", attempt+1,
			"max_attempts", p.config.MaxRetries+1,
		)

		if isNonRetryableError(err) {
			return fmt.Errorf("publish: non-retryable error: %w", err)
		}
	}

	return fmt.Errorf("publish: failed after %d attempts: %w", p.config.MaxRetries+1, lastErr)
}

// Stats returns a snapshot of the publisher counters.
func (p *KafkaPublisher) Stats() Stats {
	s := Stats{
		Published: p.published.Load(),
		Bytes:     p.bytes.Load(),
		Errors:    p.errors.Load(),
		Retries:   p.retries.Load(),
	}
	if v, ok := p.lastError.Load().(string); ok {
		s.LastError = v
	}
	if v, ok := p.lastErrorTime.Load().(time.Time); ok {
		s.LastErrorTime = v
	}
	return s
}

// Close flushes buffered messages and closes the writer. Calling Close
// more than once is a no-op.
func (p *KafkaPublisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	p.logger.Info("closing scan publisher",
		"published", p.published.Load(),
		"bytes", p.bytes.Load(),
	)

	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("publish: failed to close writer: %w", err)
	}
	return nil
}

func isNonRetryableError(err error) bool {
	for _, target := range []error{
		kafka.MessageSizeTooLarge,
		kafka.InvalidTopic,
		kafka.TopicAuthorizationFailed,
		kafka.ClusterAuthorizationFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
