// Package schema defines the canonical result types shared by every analyzer.
// Findings from the rule engine, structural checks and external tools are all
// normalized to this structure before they are scored.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Severity is the stable lowercase severity token.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists every known severity, most severe first.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// IsValid checks if the severity is a known token.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Rank orders severities for sorting. Unknown tokens rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// ParseSeverity normalizes a severity string. Tool-specific spellings such as
// "Informational" or "Optimization" map to info.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical, nil
	case "high":
		return SeverityHigh, nil
	case "medium":
		return SeverityMedium, nil
	case "low":
		return SeverityLow, nil
	case "info", "informational", "optimization":
		return SeverityInfo, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Category is the vulnerability class of a finding.
type Category string

const (
	CategoryReentrancy       Category = "reentrancy"
	CategoryAccessControl    Category = "access-control"
	CategoryArithmetic       Category = "arithmetic"
	CategoryUncheckedCalls   Category = "unchecked-calls"
	CategoryDenialOfService  Category = "denial-of-service"
	CategoryFrontRunning     Category = "front-running"
	CategoryTimeManipulation Category = "time-manipulation"
	CategoryRandomness       Category = "randomness"
	CategorySignature        Category = "signature"
	CategoryFlashLoan        Category = "flash-loan"
	CategoryOracle           Category = "oracle"
	CategoryProxy            Category = "proxy"
	CategoryLogic            Category = "logic"
	CategoryGas              Category = "gas"
)

// Categories is the closed category set in canonical order.
var Categories = []Category{
	CategoryReentrancy,
	CategoryAccessControl,
	CategoryArithmetic,
	CategoryUncheckedCalls,
	CategoryDenialOfService,
	CategoryFrontRunning,
	CategoryTimeManipulation,
	CategoryRandomness,
	CategorySignature,
	CategoryFlashLoan,
	CategoryOracle,
	CategoryProxy,
	CategoryLogic,
	CategoryGas,
}

// IsValid checks if the category belongs to the closed set.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// FindingSource identifies which analyzer produced a finding.
type FindingSource string

const (
	SourceRules        FindingSource = "rules"
	SourceStructure    FindingSource = "structure"
	SourceSlither      FindingSource = "slither"
	SourceModelChecker FindingSource = "model-checker"
)

// MaxExcerptLength bounds Finding.Excerpt, in runes.
const MaxExcerptLength = 200

// findingNamespace seeds deterministic finding IDs.
var findingNamespace = uuid.MustParse("6f1c2a0e-3b7d-5c44-9a51-2d8e4f9b7c10")

// Finding is one detected issue in a source text.
type Finding struct {
	ID          uuid.UUID     `json:"id"`
	RuleID      string        `json:"rule_id" validate:"required,max=128"`
	Title       string        `json:"title" validate:"required,max=256"`
	Severity    Severity      `json:"severity" validate:"required,severity"`
	Category    Category      `json:"category" validate:"required,category"`
	Source      FindingSource `json:"source,omitempty"`
	Description string        `json:"description,omitempty"`
	Remediation string        `json:"remediation,omitempty"`
	References  []string      `json:"references,omitempty"`

	// Location. Line is 1-based; 0 means the finding is not tied to a line
	// (absence checks, whole-contract properties).
	Line    int    `json:"line" validate:"min=0"`
	Offset  int    `json:"offset"`
	Excerpt string `json:"excerpt,omitempty" validate:"max=800"`

	Confidence          float64 `json:"confidence" validate:"gte=0,lte=1"`
	LikelyFalsePositive bool    `json:"likely_false_positive"`
	Precedent           string  `json:"precedent,omitempty"`

	Fingerprint string `json:"fingerprint"`
}

// Seal computes the fingerprint and the deterministic ID of the finding.
// Two scans of the same text yield identical fingerprints.
func (f *Finding) Seal() {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|%s", f.Source, f.RuleID, f.Line, f.Offset, f.Excerpt)
	f.Fingerprint = hex.EncodeToString(h.Sum(nil))
	f.ID = uuid.NewSHA1(findingNamespace, []byte(f.Fingerprint))
}

// TruncateExcerpt cuts s to at most n runes.
func TruncateExcerpt(s string, n int) string {
	if n <= 0 {
		n = MaxExcerptLength
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// LineAt returns the 1-based line containing byte offset off of src.
func LineAt(src string, off int) int {
	if off < 0 {
		return 0
	}
	if off > len(src) {
		off = len(src)
	}
	return strings.Count(src[:off], "\n") + 1
}
