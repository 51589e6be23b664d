package risk

import (
	"math"
	"testing"

	"sentinel/internal/schema"
)

func finding(sev schema.Severity, cat schema.Category, confidence float64) schema.Finding {
	return schema.Finding{RuleID: "T-1", Severity: sev, Category: cat, Confidence: confidence}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAggregateEmpty(t *testing.T) {
	res := NewAggregator(DefaultConfig()).Aggregate(nil, nil)
	if res.Score != 0 || res.Level != schema.LevelSafe {
		t.Errorf("Score/Level = %v/%s, want 0/safe", res.Score, res.Level)
	}
	if res.Findings == nil {
		t.Error("Findings should be an empty slice, not nil")
	}
	if res.TotalFindings != 0 || len(res.BySeverity) != 0 {
		t.Errorf("unexpected tallies: %+v", res)
	}
}

func TestAggregateSaturates(t *testing.T) {
	findings := make([]schema.Finding, 200)
	for i := range findings {
		findings[i] = finding(schema.SeverityCritical, schema.CategoryReentrancy, 1)
	}

	res := NewAggregator(DefaultConfig()).Aggregate(findings, nil)
	if res.Score != MaxScore {
		t.Errorf("Score = %v, want %v", res.Score, MaxScore)
	}
	if res.Level != schema.LevelCritical {
		t.Errorf("Level = %s, want critical", res.Level)
	}
	if res.BySeverity[schema.SeverityCritical] != 200 || res.TotalFindings != 200 {
		t.Errorf("BySeverity = %v, TotalFindings = %d", res.BySeverity, res.TotalFindings)
	}
}

func TestZeroConfidenceIsNeutral(t *testing.T) {
	a := NewAggregator(DefaultConfig())
	for _, sev := range schema.Severities {
		res := a.Aggregate([]schema.Finding{finding(sev, schema.CategoryLogic, 0)}, nil)
		if res.Score != 0 {
			t.Errorf("%s with zero confidence scored %v", sev, res.Score)
		}
		if res.BySeverity[sev] != 1 {
			t.Errorf("%s should still be tallied", sev)
		}
	}
}

func TestAggregateWeights(t *testing.T) {
	a := NewAggregator(DefaultConfig())

	tests := []struct {
		name     string
		findings []schema.Finding
		want     float64
	}{
		{"critical", []schema.Finding{finding(schema.SeverityCritical, schema.CategoryLogic, 1)}, 30},
		{"high half", []schema.Finding{finding(schema.SeverityHigh, schema.CategoryLogic, 0.5)}, 7.5},
		{"medium", []schema.Finding{finding(schema.SeverityMedium, schema.CategoryGas, 1)}, 8},
		{"low and info", []schema.Finding{
			finding(schema.SeverityLow, schema.CategoryGas, 1),
			finding(schema.SeverityInfo, schema.CategoryGas, 1),
		}, 4},
		{"unknown severity", []schema.Finding{finding("bogus", schema.CategoryGas, 1)}, 5},
		{"confidence above one clamps", []schema.Finding{finding(schema.SeverityLow, schema.CategoryGas, 7)}, 3},
		{"negative confidence clamps", []schema.Finding{finding(schema.SeverityLow, schema.CategoryGas, -1)}, 0},
		{"nan confidence ignored", []schema.Finding{finding(schema.SeverityLow, schema.CategoryGas, math.NaN())}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Aggregate(tt.findings, nil).Score; !approx(got, tt.want) {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFalsePositiveWeighting(t *testing.T) {
	f := finding(schema.SeverityHigh, schema.CategoryArithmetic, 1)
	f.LikelyFalsePositive = true

	res := NewAggregator(DefaultConfig()).Aggregate([]schema.Finding{f}, nil)
	if !approx(res.Score, 15) {
		t.Errorf("Score = %v, want 15", res.Score)
	}
	if res.LikelyFalsePositives != 1 || res.TotalFindings != 1 {
		t.Errorf("LikelyFalsePositives/TotalFindings = %d/%d", res.LikelyFalsePositives, res.TotalFindings)
	}
	if res.Findings[0].Confidence != 1 {
		t.Error("aggregation must not alter finding confidence")
	}

	cfg := DefaultConfig()
	cfg.FalsePositiveWeight = 0.25
	if got := NewAggregator(cfg).Aggregate([]schema.Finding{f}, nil).Score; !approx(got, 3.75) {
		t.Errorf("Score with weight 0.25 = %v, want 3.75", got)
	}
}

func TestFlaggedCriticalKeepsLevel(t *testing.T) {
	f := finding(schema.SeverityCritical, schema.CategoryAccessControl, 1)
	f.LikelyFalsePositive = true

	res := NewAggregator(DefaultConfig()).Aggregate([]schema.Finding{f}, nil)
	if !approx(res.Score, 30) {
		t.Errorf("Score = %v, want 30", res.Score)
	}
	if res.Level != schema.LevelMedium {
		t.Errorf("Level = %s, want medium", res.Level)
	}
}

func TestAggregatePatterns(t *testing.T) {
	patterns := []schema.SequencePattern{
		{Kind: schema.PatternSandwich, Confidence: 0.9},
		{Kind: schema.PatternFlashLoan, Confidence: 0.5},
	}

	res := NewAggregator(DefaultConfig()).Aggregate(nil, patterns)
	if !approx(res.Score, 13.5+4) {
		t.Errorf("Score = %v, want 17.5", res.Score)
	}
	if res.Level != schema.LevelLow {
		t.Errorf("Level = %s, want low", res.Level)
	}
	if res.ByPatternKind[schema.PatternSandwich] != 1 || res.ByPatternKind[schema.PatternFlashLoan] != 1 {
		t.Errorf("ByPatternKind = %v", res.ByPatternKind)
	}
	if len(res.Patterns) != 2 {
		t.Errorf("got %d patterns in result, want 2", len(res.Patterns))
	}
}

func TestAggregateCopiesInput(t *testing.T) {
	findings := []schema.Finding{finding(schema.SeverityHigh, schema.CategoryOracle, 1)}
	res := NewAggregator(DefaultConfig()).Aggregate(findings, nil)

	findings[0].RuleID = "CHANGED"
	if res.Findings[0].RuleID != "T-1" {
		t.Error("result shares backing array with input")
	}
}

func TestAggregateTallies(t *testing.T) {
	findings := []schema.Finding{
		finding(schema.SeverityHigh, schema.CategoryReentrancy, 1),
		finding(schema.SeverityHigh, schema.CategoryOracle, 1),
		finding(schema.SeverityLow, schema.CategoryReentrancy, 1),
	}
	res := NewAggregator(DefaultConfig()).Aggregate(findings, nil)

	if res.BySeverity[schema.SeverityHigh] != 2 || res.BySeverity[schema.SeverityLow] != 1 {
		t.Errorf("BySeverity = %v", res.BySeverity)
	}
	if res.ByCategory[schema.CategoryReentrancy] != 2 || res.ByCategory[schema.CategoryOracle] != 1 {
		t.Errorf("ByCategory = %v", res.ByCategory)
	}
	if !approx(res.Score, 33) || res.Level != schema.LevelMedium {
		t.Errorf("Score/Level = %v/%s, want 33/medium", res.Score, res.Level)
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		score float64
		want  schema.Level
	}{
		{0, schema.LevelSafe},
		{0.001, schema.LevelLow},
		{24.999, schema.LevelLow},
		{25, schema.LevelMedium},
		{49.999, schema.LevelMedium},
		{50, schema.LevelHigh},
		{74.999, schema.LevelHigh},
		{75, schema.LevelCritical},
		{100, schema.LevelCritical},
		{math.NaN(), schema.LevelSafe},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.score); got != tt.want {
			t.Errorf("LevelFor(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestCustomWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = WeightTable{schema.SeverityHigh: 20}
	cfg.DefaultWeight = 2
	a := NewAggregator(cfg)

	if a.Weight(schema.SeverityHigh) != 20 {
		t.Errorf("Weight(high) = %v, want 20", a.Weight(schema.SeverityHigh))
	}
	if a.Weight(schema.SeverityCritical) != 2 {
		t.Errorf("Weight(critical) = %v, want default 2", a.Weight(schema.SeverityCritical))
	}

	cfg.Weights[schema.SeverityHigh] = 99
	if a.Weight(schema.SeverityHigh) != 20 {
		t.Error("aggregator should not observe later config changes")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown severity", func(c *Config) { c.Weights["severe"] = 1 }},
		{"negative weight", func(c *Config) { c.Weights[schema.SeverityLow] = -1 }},
		{"negative default", func(c *Config) { c.DefaultWeight = -1 }},
		{"fp weight above one", func(c *Config) { c.FalsePositiveWeight = 1.5 }},
		{"unknown pattern", func(c *Config) { c.PatternSeverity["backrun"] = schema.SeverityLow }},
		{"bad pattern severity", func(c *Config) { c.PatternSeverity[schema.PatternSandwich] = "huge" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
