package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"sentinel/internal/schema"
)

type fakeWriter struct {
	mu       sync.Mutex
	fail     []error
	calls    int
	messages []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if len(w.fail) > 0 {
		err := w.fail[0]
		w.fail = w.fail[1:]
		return err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testPublisher(w messageWriter) *KafkaPublisher {
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	return newKafkaPublisher(w, cfg, "1.2.3", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleResult() schema.AnalysisResult {
	return schema.AnalysisResult{
		Findings: []schema.Finding{},
		Score:    15,
		Level:    schema.LevelLow,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Enabled {
		t.Error("publishing should be disabled by default")
	}
	if cfg.Topic != "sentinel-scans" {
		t.Errorf("expected topic sentinel-scans, got %s", cfg.Topic)
	}
	if cfg.Compression() != kafka.Lz4 {
		t.Errorf("expected lz4 compression, got %v", cfg.Compression())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled config should validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"no brokers", func(c *Config) { c.Brokers = nil }, true},
		{"no topic", func(c *Config) { c.Topic = "" }, true},
		{"bad acks", func(c *Config) { c.RequiredAcks = 2 }, true},
		{"bad compression", func(c *Config) { c.CompressionType = "brotli" }, true},
		{"bad protocol", func(c *Config) { c.SecurityProtocol = "HTTP" }, true},
		{"sasl without credentials", func(c *Config) {
			c.SecurityProtocol = "SASL_SSL"
			c.SASLMechanism = "PLAIN"
		}, true},
		{"sasl bad mechanism", func(c *Config) {
			c.SecurityProtocol = "SASL_PLAINTEXT"
			c.SASLMechanism = "GSSAPI"
			c.SASLUsername = "u"
			c.SASLPassword = "p"
		}, true},
		{"sasl scram", func(c *Config) {
			c.SecurityProtocol = "SASL_PLAINTEXT"
			c.SASLMechanism = "SCRAM-SHA-512"
			c.SASLUsername = "u"
			c.SASLPassword = "p"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Enabled = true
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecurityProtocol = "SASL_PLAINTEXT"
	cfg.SASLMechanism = "PLAIN"
	cfg.SASLUsername = "scanner"
	cfg.SASLPassword = "secret"

	tr, err := cfg.Transport()
	if err != nil {
		t.Fatalf("Transport() error = %v", err)
	}
	if tr.SASL == nil || tr.SASL.Name() != "PLAIN" {
		t.Errorf("expected PLAIN mechanism, got %v", tr.SASL)
	}
	if tr.TLS != nil {
		t.Error("TLS should be off for SASL_PLAINTEXT")
	}
	if tr.ClientID != "sentinel" {
		t.Errorf("expected client id sentinel, got %s", tr.ClientID)
	}

	cfg.SecurityProtocol = "SSL"
	cfg.TLSCAFile = "/nonexistent/ca.pem"
	if _, err := cfg.Transport(); err == nil {
		t.Error("expected error for missing CA file")
	}
}

func TestNewEnvelope(t *testing.T) {
	a := NewEnvelope(KindSource, "Vault.sol", sampleResult())
	b := NewEnvelope(KindSource, "Vault.sol", sampleResult())
	if a.ScanID == b.ScanID {
		t.Error("scan IDs should be unique")
	}
	if a.ScanID.Version() != 4 {
		t.Errorf("expected v4 scan id, got v%d", a.ScanID.Version())
	}

	data, err := a.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["kind"] != "source" || decoded["target"] != "Vault.sol" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	p := testPublisher(w)

	env := NewEnvelope(KindSequence, "block-18000000.json", sampleResult())
	if err := p.Publish(context.Background(), env); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(w.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.messages))
	}
	msg := w.messages[0]
	if string(msg.Key) != "block-18000000.json" {
		t.Errorf("key = %s", msg.Key)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["kind"] != "sequence" || headers["level"] != "low" || headers["scan_id"] != env.ScanID.String() {
		t.Errorf("headers = %v", headers)
	}

	var got Envelope
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("invalid message value: %v", err)
	}
	if got.Version != "1.2.3" {
		t.Errorf("expected version stamped, got %q", got.Version)
	}

	if s := p.Stats(); s.Published != 1 || s.Bytes == 0 {
		t.Errorf("stats = %+v", s)
	}
	if err := p.Publish(context.Background()); err != nil {
		t.Errorf("empty publish should be a no-op, got %v", err)
	}
}

func TestPublishRetries(t *testing.T) {
	w := &fakeWriter{fail: []error{errors.New("broker unavailable"), errors.New("broker unavailable")}}
	p := testPublisher(w)

	if err := p.Publish(context.Background(), NewEnvelope(KindSource, "a.sol", sampleResult())); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if w.calls != 3 {
		t.Errorf("expected 3 write attempts, got %d", w.calls)
	}
	s := p.Stats()
	if s.Retries != 2 || s.Errors != 2 || s.LastError != "broker unavailable" {
		t.Errorf("stats = %+v", s)
	}
}

func TestPublishGivesUp(t *testing.T) {
	fail := errors.New("broker unavailable")
	w := &fakeWriter{fail: []error{fail, fail, fail, fail, fail}}
	p := testPublisher(w)

	err := p.Publish(context.Background(), NewEnvelope(KindSource, "a.sol", sampleResult()))
	if !errors.Is(err, fail) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
	if w.calls != p.config.MaxRetries+1 {
		t.Errorf("expected %d attempts, got %d", p.config.MaxRetries+1, w.calls)
	}
}

func TestPublishNonRetryable(t *testing.T) {
	w := &fakeWriter{fail: []error{kafka.MessageSizeTooLarge}}
	p := testPublisher(w)

	err := p.Publish(context.Background(), NewEnvelope(KindSource, "a.sol", sampleResult()))
	if !errors.Is(err, kafka.MessageSizeTooLarge) {
		t.Fatalf("expected MessageSizeTooLarge, got %v", err)
	}
	if w.calls != 1 {
		t.Errorf("non-retryable errors should not be retried, got %d calls", w.calls)
	}
}

func TestPublishCancelled(t *testing.T) {
	w := &fakeWriter{fail: []error{errors.New("timeout")}}
	p := testPublisher(w)
	p.config.RetryBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(ctx, NewEnvelope(KindSource, "a.sol", sampleResult()))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	p := testPublisher(w)

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !w.closed {
		t.Error("writer should be closed")
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := p.Publish(context.Background(), NewEnvelope(KindSource, "a.sol", sampleResult())); !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("expected ErrPublisherClosed, got %v", err)
	}
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), NewEnvelope(KindSource, "a.sol", sampleResult())); err != nil {
		t.Error(err)
	}
	if err := p.Close(); err != nil {
		t.Error(err)
	}
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Topic = ""
	if _, err := NewKafkaPublisher(cfg, "dev", nil); err == nil {
		t.Error("expected validation error")
	}

	cfg = DefaultConfig()
	p, err := NewKafkaPublisher(cfg, "dev", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewKafkaPublisher() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
