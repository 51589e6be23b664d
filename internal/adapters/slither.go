package adapters

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"sentinel/internal/schema"
)

// StaticFinding is one detector result reported by a static analyzer.
type StaticFinding struct {
	Check       string   `json:"check"`
	Impact      string   `json:"impact"`
	Confidence  string   `json:"confidence"`
	Description string   `json:"description"`
	Line        int      `json:"line"`
	Elements    []string `json:"elements,omitempty"`
}

// StaticAnalyzer is an external static analysis tool.
type StaticAnalyzer interface {
	Name() string
	// Run analyzes the file at path. When path is empty src is analyzed
	// from a temporary file.
	Run(ctx context.Context, path, src string) ([]StaticFinding, error)
}

// SlitherConfig holds slither settings.
type SlitherConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
	ExtraArgs []string      `yaml:"extra_args"`
}

// DefaultSlitherConfig returns slither settings with a five minute timeout.
func DefaultSlitherConfig() SlitherConfig {
	return SlitherConfig{
		Path:    "slither",
		Timeout: 5 * time.Minute,
	}
}

// Slither runs the slither analyzer with JSON output.
type Slither struct {
	cfg    SlitherConfig
	run    CommandRunner
	logger *slog.Logger
}

// NewSlither creates a slither adapter. A nil runner uses ExecRunner.
func NewSlither(cfg SlitherConfig, run CommandRunner, logger *slog.Logger) *Slither {
	if cfg.Path == "" {
		cfg.Path = "slither"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSlitherConfig().Timeout
	}
	if run == nil {
		run = ExecRunner
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Slither{cfg: cfg, run: run, logger: logger.With("component", "slither")}
}

func (s *Slither) Name() string { return "slither" }

type slitherOutput struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
	Results struct {
		Detectors []slitherDetector `json:"detectors"`
	} `json:"results"`
}

type slitherDetector struct {
	Check       string           `json:"check"`
	Impact      string           `json:"impact"`
	Confidence  string           `json:"confidence"`
	Description string           `json:"description"`
	Elements    []slitherElement `json:"elements"`
}

type slitherElement struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	SourceMapping struct {
		Lines []int `json:"lines"`
	} `json:"source_mapping"`
}

// Run executes slither against path (or src) and parses its JSON report.
// Slither exits non-zero when it finds issues, so the exit status alone is
// not treated as a failure.
func (s *Slither) Run(ctx context.Context, path, src string) ([]StaticFinding, error) {
	if path == "" {
		tmp, cleanup, err := writeTemp("Contract.sol", src)
		if err != nil {
			return nil, &Error{Adapter: s.Name(), Err: ErrAdapterFailed, Detail: err.Error()}
		}
		defer cleanup()
		path = tmp
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	args := append([]string{path, "--json", "-", "--exclude-dependencies"}, s.cfg.ExtraArgs...)
	start := time.Now()
	stdout, stderr, err := s.run(ctx, s.cfg.Path, args...)
	if ctx.Err() != nil {
		return nil, runError(ctx, s.Name(), ctx.Err(), stderr)
	}

	var out slitherOutput
	if len(stdout) == 0 || json.Unmarshal(stdout, &out) != nil {
		if err == nil {
			return nil, &Error{Adapter: s.Name(), Err: ErrAdapterFailed, Detail: "unparseable output"}
		}
		return nil, runError(ctx, s.Name(), err, stderr)
	}
	if !out.Success {
		detail := "analysis failed"
		if out.Error != nil && *out.Error != "" {
			detail = *out.Error
		}
		return nil, runError(ctx, s.Name(), nil, []byte(detail))
	}

	findings := make([]StaticFinding, 0, len(out.Results.Detectors))
	for _, d := range out.Results.Detectors {
		findings = append(findings, d.normalize())
	}

	s.logger.Debug("slither finished",
		"target", path,
		"findings", len(findings),
		"duration", time.Since(start),
	)
	return findings, nil
}

func (d slitherDetector) normalize() StaticFinding {
	f := StaticFinding{
		Check:       d.Check,
		Impact:      d.Impact,
		Confidence:  d.Confidence,
		Description: strings.TrimSpace(d.Description),
	}
	for _, el := range d.Elements {
		if el.Name != "" {
			f.Elements = append(f.Elements, el.Type+":"+el.Name)
		}
		if f.Line == 0 && len(el.SourceMapping.Lines) > 0 {
			f.Line = el.SourceMapping.Lines[0]
		}
	}
	return f
}

// slitherTitles names the common slither detectors.
var slitherTitles = map[string]string{
	"reentrancy-eth":          "Reentrancy with ETH transfer",
	"reentrancy-no-eth":       "Reentrancy without ETH transfer",
	"reentrancy-events":       "Reentrancy with event misorder",
	"arbitrary-send-eth":      "Arbitrary ETH send",
	"controlled-delegatecall": "Delegatecall to user-controlled address",
	"suicidal":                "Functions allowing self-destruct by anyone",
	"unprotected-upgrade":     "Unprotected upgradeable contract",
	"divide-before-multiply":  "Divide before multiply precision loss",
	"incorrect-equality":      "Dangerous strict equality",
	"locked-ether":            "Contract locks Ether",
	"missing-zero-check":      "Missing zero-address validation",
	"tx-origin":               "Dangerous usage of tx.origin",
	"unchecked-transfer":      "Unchecked ERC20 transfer",
	"uninitialized-local":     "Uninitialized local variable",
	"unused-return":           "Unused return value",
	"calls-loop":              "External calls in loop",
	"timestamp":               "Block timestamp comparison",
	"low-level-calls":         "Low level call",
	"weak-prng":               "Weak pseudo-random number generator",
}

var slitherCategories = map[string]schema.Category{
	"arbitrary-send-eth":      schema.CategoryAccessControl,
	"arbitrary-send-erc20":    schema.CategoryAccessControl,
	"controlled-delegatecall": schema.CategoryAccessControl,
	"suicidal":                schema.CategoryAccessControl,
	"unprotected-upgrade":     schema.CategoryProxy,
	"tx-origin":               schema.CategoryAccessControl,
	"missing-zero-check":      schema.CategoryAccessControl,
	"divide-before-multiply":  schema.CategoryArithmetic,
	"too-many-digits":         schema.CategoryArithmetic,
	"unused-return":           schema.CategoryUncheckedCalls,
	"low-level-calls":         schema.CategoryUncheckedCalls,
	"calls-loop":              schema.CategoryDenialOfService,
	"costly-loop":             schema.CategoryDenialOfService,
	"locked-ether":            schema.CategoryDenialOfService,
	"timestamp":               schema.CategoryTimeManipulation,
	"weak-prng":               schema.CategoryRandomness,
}

func slitherCategory(check, impact string) schema.Category {
	if c, ok := slitherCategories[check]; ok {
		return c
	}
	switch {
	case strings.HasPrefix(check, "reentrancy"):
		return schema.CategoryReentrancy
	case strings.HasPrefix(check, "unchecked"):
		return schema.CategoryUncheckedCalls
	case strings.EqualFold(impact, "optimization"):
		return schema.CategoryGas
	}
	return schema.CategoryLogic
}

func confidenceValue(level string) float64 {
	switch strings.ToLower(level) {
	case "high":
		return 0.9
	case "medium":
		return 0.6
	case "low":
		return 0.3
	}
	return 0.5
}

// StaticFindings converts analyzer results to sealed findings attributed
// to source.
func StaticFindings(source schema.FindingSource, in []StaticFinding) []schema.Finding {
	out := make([]schema.Finding, 0, len(in))
	for _, sf := range in {
		sev, err := schema.ParseSeverity(sf.Impact)
		if err != nil {
			sev = schema.SeverityInfo
		}
		title := slitherTitles[sf.Check]
		if title == "" {
			title = sf.Check
		}
		excerpt, _, _ := strings.Cut(sf.Description, "\n")
		f := schema.Finding{
			RuleID:      string(source) + ":" + sf.Check,
			Title:       title,
			Severity:    sev,
			Category:    slitherCategory(sf.Check, sf.Impact),
			Source:      source,
			Description: sf.Description,
			Line:        sf.Line,
			Excerpt:     schema.TruncateExcerpt(excerpt, schema.MaxExcerptLength),
			Confidence:  confidenceValue(sf.Confidence),
		}
		f.Seal()
		out = append(out, f)
	}
	return out
}
