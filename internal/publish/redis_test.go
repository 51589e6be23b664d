package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"

	"sentinel/internal/schema"
)

type fakeRedis struct {
	messages    []string
	subscribers int64
	err         error
	closed      int
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.messages = append(f.messages, string(message.([]byte)))
	cmd.SetVal(f.subscribers)
	return cmd
}

func (f *fakeRedis) Close() error {
	f.closed++
	return nil
}

func newTestRedisPublisher(f *fakeRedis) *RedisPublisher {
	return newRedisPublisher(f, "sentinel:scans", "v1.2.3", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRedisConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RedisConfig)
		wantErr bool
	}{
		{"disabled defaults", func(c *RedisConfig) {}, false},
		{"disabled without addr", func(c *RedisConfig) { c.Addr = "" }, false},
		{"enabled", func(c *RedisConfig) { c.Enabled = true }, false},
		{"enabled without addr", func(c *RedisConfig) {
			c.Enabled = true
			c.Addr = ""
		}, true},
		{"enabled without channel", func(c *RedisConfig) {
			c.Enabled = true
			c.Channel = ""
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRedisConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRedisPublish(t *testing.T) {
	f := &fakeRedis{subscribers: 2}
	p := newTestRedisPublisher(f)

	res := schema.AnalysisResult{Score: 42, Level: schema.LevelMedium}
	err := p.Publish(context.Background(),
		NewEnvelope(KindSource, "Vault.sol", res),
		NewEnvelope(KindSequence, "txlog.json", schema.AnalysisResult{Level: schema.LevelSafe}),
	)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(f.messages) != 2 {
		t.Fatalf("published %d messages, want 2", len(f.messages))
	}

	var env Envelope
	if err := json.Unmarshal([]byte(f.messages[0]), &env); err != nil {
		t.Fatalf("message is not an envelope: %v", err)
	}
	if env.Version != "v1.2.3" || env.Target != "Vault.sol" || env.Result.Score != 42 {
		t.Errorf("envelope = %+v", env)
	}

	stats := p.Stats()
	if stats.Published != 2 || stats.Deliveries != 4 || stats.Errors != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestRedisPublishError(t *testing.T) {
	f := &fakeRedis{err: errors.New("connection reset by peer")}
	p := newTestRedisPublisher(f)

	err := p.Publish(context.Background(), NewEnvelope(KindSource, "a.sol", schema.AnalysisResult{}))
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("Publish() error = %v", err)
	}
	if p.Stats().Errors != 1 {
		t.Errorf("Errors = %d, want 1", p.Stats().Errors)
	}
}

func TestRedisClose(t *testing.T) {
	f := &fakeRedis{}
	p := newTestRedisPublisher(f)

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if f.closed != 1 {
		t.Errorf("client closed %d times, want 1", f.closed)
	}
	if err := p.Publish(context.Background(), NewEnvelope(KindSource, "a.sol", schema.AnalysisResult{})); !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("Publish after Close error = %v", err)
	}
}

func TestNewRedisPublisherValidates(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = ""
	if _, err := NewRedisPublisher(cfg, "dev", nil); err == nil {
		t.Error("expected error for empty addr")
	}
}

type recordingPublisher struct {
	got    int
	err    error
	closed bool
}

func (r *recordingPublisher) Publish(_ context.Context, envs ...Envelope) error {
	r.got += len(envs)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return r.err
}

func TestCombine(t *testing.T) {
	if _, ok := Combine().(Nop); !ok {
		t.Error("Combine() should be Nop")
	}
	single := &recordingPublisher{}
	if Combine(single) != Publisher(single) {
		t.Error("Combine(p) should return p")
	}

	failing := &recordingPublisher{err: errors.New("broker down")}
	ok := &recordingPublisher{}
	multi := Combine(failing, ok)

	err := multi.Publish(context.Background(), NewEnvelope(KindSource, "a.sol", schema.AnalysisResult{}))
	if err == nil || !strings.Contains(err.Error(), "broker down") {
		t.Errorf("Publish() error = %v", err)
	}
	if ok.got != 1 {
		t.Error("a failing publisher stopped delivery to the others")
	}

	multi.Close()
	if !failing.closed || !ok.closed {
		t.Error("Close() did not reach every publisher")
	}
}
