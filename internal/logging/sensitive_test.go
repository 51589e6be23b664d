package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestIsSensitiveField(t *testing.T) {
	tests := []struct {
		field string
		want  bool
	}{
		{"private_key", true},
		{"PRIVATE_KEY", true},
		{"deployer_private_key", true},
		{"mnemonic", true},
		{"kafka_sasl_password", true},
		{"rpc_url", true},
		{"rule_id", false},
		{"excerpt", false},
		{"component", false},
	}
	for _, tt := range tests {
		if got := IsSensitiveField(tt.field); got != tt.want {
			t.Errorf("IsSensitiveField(%q) = %v, want %v", tt.field, got, tt.want)
		}
	}
}

func TestMaskSensitiveValue(t *testing.T) {
	if got := MaskSensitiveValue("api_key", "abc"); got != MaskedValue {
		t.Errorf("MaskSensitiveValue(api_key) = %q", got)
	}
	if got := MaskSensitiveValue("rule_id", "SWC-107"); got != "SWC-107" {
		t.Errorf("MaskSensitiveValue(rule_id) = %q", got)
	}
	if got := MaskSensitiveValue("api_key", ""); got != "" {
		t.Errorf("empty value should stay empty, got %q", got)
	}
}

func TestMaskString(t *testing.T) {
	tests := []struct {
		in                  string
		showFirst, showLast int
		want                string
	}{
		{"", 2, 2, ""},
		{"short", 2, 2, MaskedValue},
		{"0x1234567890abcdef", 4, 4, "0x12***cdef"},
	}
	for _, tt := range tests {
		if got := MaskString(tt.in, tt.showFirst, tt.showLast); got != tt.want {
			t.Errorf("MaskString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskSensitivePatterns(t *testing.T) {
	key := strings.Repeat("ab", 32)

	tests := []struct {
		name        string
		input       string
		notContains string
	}{
		{"private key", `uint256 privateKey = 0x` + key + `;`, key},
		{"quoted private key", `PRIVATE_KEY="` + key + `"`, key},
		{"mnemonic", `mnemonic: "test test test test test test test test test test test junk"`, "junk"},
		{"infura", "https://mainnet.infura.io/v3/0123456789abcdef0123456789abcdef", "0123456789abcdef"},
		{"alchemy", "https://eth-mainnet.alchemy.com/v2/AbC-123_xyz", "AbC-123_xyz"},
		{"api key", "ETHERSCAN_API_KEY=ZZ99XYZ", "ZZ99XYZ"},
		{"bearer", "Authorization: Bearer eyJhbGciOi", "eyJhbGciOi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskSensitivePatterns(tt.input)
			if strings.Contains(got, tt.notContains) {
				t.Errorf("MaskSensitivePatterns() = %q, still contains %q", got, tt.notContains)
			}
			if !strings.Contains(got, MaskedValue) {
				t.Errorf("MaskSensitivePatterns() = %q, want %s marker", got, MaskedValue)
			}
		})
	}

	slot := "bytes32 constant IMPLEMENTATION_SLOT = 0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc;"
	if got := MaskSensitivePatterns(slot); got != slot {
		t.Errorf("storage slot constant should not be masked, got %q", got)
	}
}

func TestSafeLogValue(t *testing.T) {
	if SafeLogValue("x", nil) != nil {
		t.Error("nil should stay nil")
	}
	if got := SafeLogValue("password", 1234); got != MaskedValue {
		t.Errorf("SafeLogValue(password) = %v", got)
	}
	masked, ok := SafeLogValue("tokens", []string{"a", "b"}).([]string)
	if !ok || len(masked) != 2 || masked[0] != MaskedValue {
		t.Errorf("SafeLogValue([]string) = %v", masked)
	}
	if got := SafeLogValue("excerpt", "api_key=XYZ123"); got == "api_key=XYZ123" {
		t.Error("embedded secrets in non-sensitive fields should be masked")
	}
	if got := SafeLogValue("findings", 3); got != 3 {
		t.Errorf("SafeLogValue(findings) = %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewLoggerMasks(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, Config{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Debug("adapter configured",
		"component", "adapters",
		"sasl_password", "hunter2",
		"stderr", "auth failed for api_key=ABCDEF",
		"findings", 2,
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["sasl_password"] != MaskedValue {
		t.Errorf("sasl_password = %v", entry["sasl_password"])
	}
	if strings.Contains(entry["stderr"].(string), "ABCDEF") {
		t.Errorf("stderr = %v", entry["stderr"])
	}
	if entry["component"] != "adapters" || entry["findings"] != float64(2) {
		t.Errorf("entry = %v", entry)
	}

	if _, err := New(&buf, Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}

	buf.Reset()
	textLogger, err := New(&buf, Config{Level: "warn", Format: "text"})
	if err != nil {
		t.Fatalf("New(text) error = %v", err)
	}
	textLogger.Info("hidden")
	if buf.Len() != 0 {
		t.Error("info should be filtered at warn level")
	}
}
