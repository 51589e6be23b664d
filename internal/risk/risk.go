// Package risk folds findings and sequence patterns into one bounded score.
package risk

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"sentinel/internal/schema"
)

// MaxScore is the saturation point of the score.
const MaxScore = 100.0

// Level thresholds. Each is the lowest score of its band.
const (
	mediumThreshold   = 25.0
	highThreshold     = 50.0
	criticalThreshold = 75.0
)

// WeightTable maps severities to their score contribution at full confidence.
type WeightTable map[schema.Severity]float64

// DefaultWeights returns the canonical weight table.
func DefaultWeights() WeightTable {
	return WeightTable{
		schema.SeverityCritical: 30,
		schema.SeverityHigh:     15,
		schema.SeverityMedium:   8,
		schema.SeverityLow:      3,
		schema.SeverityInfo:     1,
	}
}

// DefaultPatternSeverity returns the severity assigned to each pattern kind.
func DefaultPatternSeverity() map[schema.PatternKind]schema.Severity {
	return map[schema.PatternKind]schema.Severity{
		schema.PatternSandwich:     schema.SeverityHigh,
		schema.PatternFrontrun:     schema.SeverityHigh,
		schema.PatternJITLiquidity: schema.SeverityMedium,
		schema.PatternFlashLoan:    schema.SeverityMedium,
	}
}

// Config holds the scoring parameters.
type Config struct {
	Weights WeightTable `yaml:"weights"`
	// DefaultWeight applies to severities missing from Weights.
	DefaultWeight float64 `yaml:"default_weight" validate:"gte=0"`
	// FalsePositiveWeight scales findings flagged as likely false positives.
	// 1 scores them in full; lower values discount them.
	FalsePositiveWeight float64                                `yaml:"false_positive_weight" validate:"gte=0,lte=1"`
	PatternSeverity     map[schema.PatternKind]schema.Severity `yaml:"pattern_severity"`
}

// DefaultConfig returns the default scoring parameters.
func DefaultConfig() Config {
	return Config{
		Weights:             DefaultWeights(),
		DefaultWeight:       5,
		FalsePositiveWeight: 1,
		PatternSeverity:     DefaultPatternSeverity(),
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	for sev, w := range c.Weights {
		if !sev.IsValid() {
			return fmt.Errorf("unknown severity %q in weight table", sev)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("weight for %s must be a non-negative number", sev)
		}
	}
	if c.DefaultWeight < 0 || math.IsNaN(c.DefaultWeight) {
		return errors.New("default weight must be non-negative")
	}
	if c.FalsePositiveWeight < 0 || c.FalsePositiveWeight > 1 || math.IsNaN(c.FalsePositiveWeight) {
		return errors.New("false positive weight must be between 0 and 1")
	}
	for kind, sev := range c.PatternSeverity {
		if !kind.IsValid() {
			return fmt.Errorf("unknown pattern kind %q", kind)
		}
		if !sev.IsValid() {
			return fmt.Errorf("unknown severity %q for pattern %s", sev, kind)
		}
	}
	return nil
}

// Aggregator scores findings. It is immutable and safe for concurrent use.
type Aggregator struct {
	weights         WeightTable
	defaultWeight   float64
	fpWeight        float64
	patternSeverity map[schema.PatternKind]schema.Severity
}

// NewAggregator creates an Aggregator. Missing tables fall back to the
// defaults.
func NewAggregator(cfg Config) *Aggregator {
	a := &Aggregator{
		weights:         maps.Clone(cfg.Weights),
		defaultWeight:   cfg.DefaultWeight,
		fpWeight:        cfg.FalsePositiveWeight,
		patternSeverity: maps.Clone(cfg.PatternSeverity),
	}
	if len(a.weights) == 0 {
		a.weights = DefaultWeights()
	}
	if len(a.patternSeverity) == 0 {
		a.patternSeverity = DefaultPatternSeverity()
	}
	return a
}

// Weight returns the weight of sev. Unknown severities get the default
// weight rather than an error.
func (a *Aggregator) Weight(sev schema.Severity) float64 {
	if w, ok := a.weights[sev]; ok {
		return w
	}
	return a.defaultWeight
}

// PatternSeverity returns the severity used to score a pattern kind.
func (a *Aggregator) PatternSeverity(kind schema.PatternKind) schema.Severity {
	if sev, ok := a.patternSeverity[kind]; ok {
		return sev
	}
	return schema.SeverityMedium
}

// Aggregate builds the result for one scan. The inputs are copied; the
// score saturates at MaxScore and tallies are plain counts.
func (a *Aggregator) Aggregate(findings []schema.Finding, patterns []schema.SequencePattern) schema.AnalysisResult {
	res := schema.AnalysisResult{
		Findings:      slices.Clone(findings),
		Patterns:      slices.Clone(patterns),
		BySeverity:    make(map[schema.Severity]int),
		ByCategory:    make(map[schema.Category]int),
		ByPatternKind: make(map[schema.PatternKind]int),
		TotalFindings: len(findings),
	}
	if res.Findings == nil {
		res.Findings = []schema.Finding{}
	}

	total := 0.0
	for _, f := range res.Findings {
		res.BySeverity[f.Severity]++
		res.ByCategory[f.Category]++

		c := a.Weight(f.Severity) * clampConfidence(f.Confidence)
		if f.LikelyFalsePositive {
			res.LikelyFalsePositives++
			c *= a.fpWeight
		}
		total = saturatingAdd(total, c)
	}

	for _, p := range res.Patterns {
		res.ByPatternKind[p.Kind]++
		total = saturatingAdd(total, a.Weight(a.PatternSeverity(p.Kind))*clampConfidence(p.Confidence))
	}

	res.Score = total
	res.Level = LevelFor(total)
	return res
}

// LevelFor maps a score to its level: 0 is safe, (0,25) low, [25,50) medium,
// [50,75) high and [75,100] critical.
func LevelFor(score float64) schema.Level {
	switch {
	case math.IsNaN(score) || score <= 0:
		return schema.LevelSafe
	case score < mediumThreshold:
		return schema.LevelLow
	case score < highThreshold:
		return schema.LevelMedium
	case score < criticalThreshold:
		return schema.LevelHigh
	}
	return schema.LevelCritical
}

func saturatingAdd(total, c float64) float64 {
	if math.IsNaN(c) || c <= 0 {
		return total
	}
	return min(MaxScore, total+c)
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return max(0, min(1, c))
}
