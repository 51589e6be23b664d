// Package errors scrubs messages coming back from external analyzers before
// they reach results, logs or published envelopes.
package errors

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// MaxMessageLength bounds a sanitized message, in bytes.
const MaxMessageLength = 512

var (
	// Absolute paths (Linux and Windows) not inside a URL
	filePathPattern = regexp.MustCompile(`(^|[\s"'(=])(/[a-zA-Z0-9_\-./]+|[A-Z]:\\[a-zA-Z0-9_\-\\ ./]+)`)

	ipPattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

	// Node provider URLs carry the API key in the path or query.
	rpcURLPattern = regexp.MustCompile(`(?i)\b((?:https?|wss?)://[^/\s]+)/[^\s"']*`)

	credentialPattern = regexp.MustCompile(`(?i)(password|secret|token|api[_-]?key|private[_-]?key|mnemonic)\s*[=:]\s*\S+`)

	tracePattern = regexp.MustCompile(`goroutine \d+|Traceback \(most recent call last\)`)
)

// ProductionMode determines whether messages are sanitized.
var ProductionMode = false

// SetProductionMode sets the production mode flag. Call it once during
// startup, before any scan runs.
func SetProductionMode(production bool) {
	ProductionMode = production
}

// IsProduction returns true if running in production mode.
func IsProduction() bool {
	return ProductionMode
}

// SanitizeError returns err with its message scrubbed. In development mode
// the original error is returned so callers keep errors.Is matching.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	if !ProductionMode {
		return err
	}
	return errors.New(SanitizeString(err.Error()))
}

// SanitizeString removes paths, addresses, credentials and stack traces from
// s and bounds its length. It is a no-op outside production mode.
func SanitizeString(s string) string {
	if !ProductionMode {
		return s
	}

	if tracePattern.MatchString(s) || strings.Count(s, "\n") > 3 {
		return "external tool failed - see logs for details"
	}

	s = rpcURLPattern.ReplaceAllString(s, "$1/[REDACTED]")
	s = credentialPattern.ReplaceAllString(s, "$1=[REDACTED]")

	s = filePathPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := filePathPattern.FindStringSubmatch(match)
		return m[1] + filepath.Base(m[2])
	})

	// Keep the first two octets for context.
	s = ipPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := strings.Split(match, ".")
		if len(parts) == 4 {
			return fmt.Sprintf("%s.%s.x.x", parts[0], parts[1])
		}
		return "x.x.x.x"
	})

	return truncate(strings.TrimSpace(s), MaxMessageLength)
}

// WrapSanitized wraps err with a message and sanitizes the result.
func WrapSanitized(err error, message string) error {
	if err == nil {
		return nil
	}
	return SanitizeError(fmt.Errorf("%s: %w", message, err))
}

// SafeErrorMessage returns a message fit for a scan result. Known benign
// failures pass through, everything else is sanitized.
func SafeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()

	benign := []string{
		"timed out",
		"not installed",
		"unavailable",
		"unsupported",
		"no such file",
		"compilation failed",
	}
	lower := strings.ToLower(msg)
	for _, b := range benign {
		if strings.Contains(lower, b) && !strings.Contains(msg, "\n") {
			return truncate(msg, MaxMessageLength)
		}
	}
	return SanitizeString(msg)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
