// Package logging configures structured logging and keeps secrets that show
// up in scanned sources or tool output out of the log stream.
package logging

import (
	"regexp"
	"strings"
)

// SensitiveFields contains attribute names whose values are always masked.
var SensitiveFields = map[string]bool{
	"password":      true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"private_key":   true,
	"privatekey":    true,
	"mnemonic":      true,
	"seed_phrase":   true,
	"rpc_url":       true,
	"sasl_password": true,
	"credentials":   true,
	"authorization": true,
	"bearer":        true,
}

// MaskedValue is the string used to replace sensitive values.
const MaskedValue = "[REDACTED]"

// IsSensitiveField checks if an attribute name is sensitive, either exactly
// or by containing a sensitive name.
func IsSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	if SensitiveFields[lower] {
		return true
	}
	for sensitive := range SensitiveFields {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

// MaskSensitiveValue masks value if fieldName is sensitive.
func MaskSensitiveValue(fieldName, value string) string {
	if value == "" || !IsSensitiveField(fieldName) {
		return value
	}
	return MaskedValue
}

// MaskString keeps the first and last characters of s and masks the rest.
func MaskString(s string, showFirst, showLast int) string {
	if s == "" {
		return s
	}
	if len(s) <= showFirst+showLast+3 {
		return MaskedValue
	}
	return s[:showFirst] + "***" + s[len(s)-showLast:]
}

// SensitivePatterns match secrets embedded in free text such as contract
// sources, test fixtures and analyzer stderr.
var SensitivePatterns = []*regexp.Regexp{
	// Hex private keys assigned to a key-like name
	regexp.MustCompile(`(?i)(private[_-]?key|priv[_-]?key|deployer[_-]?key|secret)['"]?\s*[=:]\s*['"]?(0x)?[0-9a-f]{64}['"]?`),
	// BIP-39 phrases assigned to a mnemonic-like name
	regexp.MustCompile(`(?i)(mnemonic|seed[_ ]?phrase)['"]?\s*[=:]\s*['"][a-z]+(\s+[a-z]+){11,23}['"]`),
	// Node provider project keys in RPC URLs
	regexp.MustCompile(`(?i)(infura\.io/v3/|alchemy\.com/v2/|quiknode\.pro/)[a-z0-9_\-]+`),
	// API keys and tokens
	regexp.MustCompile(`(?i)(api[_-]?key|token|password|passwd|auth)['":\s]*[=:]\s*['"]?([a-zA-Z0-9_\-\.]+)['"]?`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.]+`),
	regexp.MustCompile(`(?i)(sk_live_|pk_live_|sk_test_|pk_test_)[a-zA-Z0-9]+`),
}

// MaskSensitivePatterns masks sensitive patterns in a raw string.
func MaskSensitivePatterns(s string) string {
	for _, pattern := range SensitivePatterns {
		s = pattern.ReplaceAllString(s, MaskedValue)
	}
	return s
}

// SafeLogValue returns a safe-to-log version of value based on its name.
// Strings under non-sensitive names still have embedded secrets masked.
func SafeLogValue(fieldName string, value any) any {
	if value == nil {
		return nil
	}
	if IsSensitiveField(fieldName) {
		if v, ok := value.([]string); ok {
			masked := make([]string, len(v))
			for i := range v {
				masked[i] = MaskedValue
			}
			return masked
		}
		return MaskedValue
	}
	if s, ok := value.(string); ok {
		return MaskSensitivePatterns(s)
	}
	return value
}
