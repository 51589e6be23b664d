// Package publish streams scan results to downstream consumers such as
// report renderers and CI gates.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/schema"
)

// Envelope kinds.
const (
	KindSource   = "source"
	KindSequence = "sequence"
)

// Envelope wraps one analysis result with the identity of the scan that
// produced it.
type Envelope struct {
	ScanID    uuid.UUID             `json:"scan_id"`
	Kind      string                `json:"kind"`
	Target    string                `json:"target"`
	Version   string                `json:"version,omitempty"`
	ScannedAt time.Time             `json:"scanned_at"`
	Result    schema.AnalysisResult `json:"result"`
}

// NewEnvelope creates an envelope with a fresh scan ID.
func NewEnvelope(kind, target string, result schema.AnalysisResult) Envelope {
	return Envelope{
		ScanID:    uuid.New(),
		Kind:      kind,
		Target:    target,
		ScannedAt: time.Now().UTC(),
		Result:    result,
	}
}

// Marshal encodes the envelope as JSON.
func (e Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("publish: failed to marshal envelope %s: %w", e.ScanID, err)
	}
	return data, nil
}

// Publisher delivers envelopes. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, envelopes ...Envelope) error
	Close() error
}

// Nop discards every envelope.
type Nop struct{}

func (Nop) Publish(context.Context, ...Envelope) error { return nil }
func (Nop) Close() error                               { return nil }
