package adapters

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	sanitize "sentinel/internal/errors"
	"sentinel/internal/schema"
)

// Verification statuses.
const (
	VerificationVerified = "verified"
	VerificationViolated = "violated"
	VerificationUnknown  = "unknown"
	VerificationTimeout  = "timeout"
	VerificationError    = "error"
)

// Violation is one property failure reported by the model checker.
type Violation struct {
	Kind           string            `json:"kind"`
	Line           int               `json:"line"`
	Counterexample map[string]string `json:"counterexample,omitempty"`
}

// VerificationResult is the outcome of checking one property set.
type VerificationResult struct {
	Property       string            `json:"property"`
	Status         string            `json:"status"`
	Counterexample map[string]string `json:"counterexample,omitempty"`
	Violations     []Violation       `json:"violations,omitempty"`
	Message        string            `json:"message,omitempty"`
	Elapsed        time.Duration     `json:"elapsed"`
	Err            error             `json:"-"`
}

// ModelChecker proves properties of a contract.
type ModelChecker interface {
	Name() string
	// Verify checks property against model. The property syntax is
	// checker specific; an empty property checks the default set.
	Verify(ctx context.Context, model, property string) VerificationResult
}

// SolcConfig holds settings for the solc SMT model checker.
type SolcConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	Engine  string        `yaml:"engine" validate:"omitempty,oneof=chc bmc all"`
	Targets []string      `yaml:"targets"`
}

// DefaultSolcConfig returns model checker settings using the CHC engine.
func DefaultSolcConfig() SolcConfig {
	return SolcConfig{
		Path:    "solc",
		Timeout: 5 * time.Minute,
		Engine:  "chc",
		Targets: []string{"assert", "overflow", "underflow", "divByZero"},
	}
}

// solcGrace is added to the process deadline so the solver's own timeout
// fires first.
const solcGrace = 10 * time.Second

// SolcChecker runs the compiler's built-in model checker.
type SolcChecker struct {
	cfg    SolcConfig
	run    CommandRunner
	logger *slog.Logger
}

// NewSolcChecker creates a model checker adapter. A nil runner uses ExecRunner.
func NewSolcChecker(cfg SolcConfig, run CommandRunner, logger *slog.Logger) *SolcChecker {
	def := DefaultSolcConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Engine == "" {
		cfg.Engine = def.Engine
	}
	if len(cfg.Targets) == 0 {
		cfg.Targets = def.Targets
	}
	if run == nil {
		run = ExecRunner
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SolcChecker{cfg: cfg, run: run, logger: logger.With("component", "solc")}
}

func (s *SolcChecker) Name() string { return "solc" }

// Verify compiles model with the model checker enabled for the targets in
// property (comma separated) and classifies the compiler's report.
func (s *SolcChecker) Verify(ctx context.Context, model, property string) VerificationResult {
	if property == "" {
		property = strings.Join(s.cfg.Targets, ",")
	}
	res := VerificationResult{Property: property}
	start := time.Now()

	path, cleanup, err := writeTemp("Model.sol", model)
	if err != nil {
		res.Status = VerificationError
		res.Err = &Error{Adapter: s.Name(), Err: ErrAdapterFailed, Detail: err.Error()}
		res.Message = res.Err.Error()
		return withElapsed(res, start)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout+solcGrace)
	defer cancel()

	stdout, stderr, runErr := s.run(ctx, s.cfg.Path,
		"--model-checker-engine", s.cfg.Engine,
		"--model-checker-targets", property,
		"--model-checker-timeout", strconv.FormatInt(s.cfg.Timeout.Milliseconds(), 10),
		path,
	)

	if ctx.Err() != nil || isNotFound(runErr) {
		e := runError(ctx, s.Name(), runErr, stderr)
		res.Err = e
		res.Message = e.Error()
		if errors.Is(e, ErrAdapterTimeout) {
			res.Status = VerificationTimeout
		} else {
			res.Status = VerificationError
		}
		return withElapsed(res, start)
	}

	parseSolcOutput(&res, string(stdout)+string(stderr), runErr)
	s.logger.Debug("model checker finished",
		"property", property,
		"status", res.Status,
		"violations", len(res.Violations),
	)
	return withElapsed(res, start)
}

func withElapsed(res VerificationResult, start time.Time) VerificationResult {
	res.Elapsed = time.Since(start)
	return res
}

var (
	solcWarningPattern = regexp.MustCompile(`(?m)^Warning: CHC: (.+?) happens here\.`)
	solcLocation       = regexp.MustCompile(`-->\s*\S+?:(\d+):\d+:`)
	solcBinding        = regexp.MustCompile(`^\s*([A-Za-z_$][\w$.\[\]]*)\s*=\s*(.+?)\s*$`)
	solcErrorLine      = regexp.MustCompile(`(?m)^(?:\w+)?Error: (.+)$`)
)

// parseSolcOutput fills status, violations and counterexamples from the
// compiler output.
func parseSolcOutput(res *VerificationResult, output string, runErr error) {
	if m := solcErrorLine.FindStringSubmatch(output); m != nil {
		res.Status = VerificationError
		res.Message = sanitize.SanitizeString(m[1])
		res.Err = &Error{Adapter: "solc", Err: ErrAdapterFailed, Detail: res.Message}
		return
	}

	locs := solcWarningPattern.FindAllStringSubmatchIndex(output, -1)
	for i, loc := range locs {
		end := len(output)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		block := output[loc[0]:end]
		if next := strings.Index(block[1:], "\nWarning:"); next >= 0 {
			block = block[:next+1]
		}
		v := Violation{
			Kind:           output[loc[2]:loc[3]],
			Counterexample: counterexample(block),
		}
		if m := solcLocation.FindStringSubmatch(block); m != nil {
			v.Line, _ = strconv.Atoi(m[1])
		}
		res.Violations = append(res.Violations, v)
	}

	switch {
	case len(res.Violations) > 0:
		res.Status = VerificationViolated
		res.Counterexample = res.Violations[0].Counterexample
	case strings.Contains(output, "could not be proved"),
		strings.Contains(output, "might happen here"),
		strings.Contains(output, "Solver timed out"):
		res.Status = VerificationUnknown
	case runErr != nil:
		res.Status = VerificationError
		res.Message = "compilation failed"
		res.Err = &Error{Adapter: "solc", Err: ErrAdapterFailed, Detail: res.Message}
	default:
		res.Status = VerificationVerified
	}
}

// counterexample reads the "name = value" bindings following a
// "Counterexample:" header up to the first blank line.
func counterexample(block string) map[string]string {
	_, rest, ok := strings.Cut(block, "Counterexample:")
	if !ok {
		return nil
	}
	bindings := make(map[string]string)
	for _, line := range strings.Split(strings.TrimLeft(rest, "\r\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			break
		}
		if m := solcBinding.FindStringSubmatch(line); m != nil {
			bindings[m[1]] = m[2]
		}
	}
	if len(bindings) == 0 {
		return nil
	}
	return bindings
}

// ModelCheckerFindings converts the violations of res to sealed findings.
func ModelCheckerFindings(res VerificationResult) []schema.Finding {
	out := make([]schema.Finding, 0, len(res.Violations))
	for _, v := range res.Violations {
		sev, cat := violationClass(v.Kind)
		f := schema.Finding{
			RuleID:      "model-checker:" + violationID(v.Kind),
			Title:       v.Kind,
			Severity:    sev,
			Category:    cat,
			Source:      schema.SourceModelChecker,
			Description: "The model checker found a reachable state that violates this property.",
			Line:        v.Line,
			Excerpt:     schema.TruncateExcerpt(formatBindings(v.Counterexample), schema.MaxExcerptLength),
			Confidence:  0.95,
		}
		f.Seal()
		out = append(out, f)
	}
	return out
}

func violationClass(kind string) (schema.Severity, schema.Category) {
	lower := strings.ToLower(kind)
	switch {
	case strings.HasPrefix(lower, "overflow"), strings.HasPrefix(lower, "underflow"):
		return schema.SeverityHigh, schema.CategoryArithmetic
	case strings.HasPrefix(lower, "division by zero"):
		return schema.SeverityMedium, schema.CategoryArithmetic
	case strings.HasPrefix(lower, "assertion violation"):
		return schema.SeverityHigh, schema.CategoryLogic
	}
	return schema.SeverityMedium, schema.CategoryLogic
}

func violationID(kind string) string {
	name, _, _ := strings.Cut(kind, " (")
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

func formatBindings(b map[string]string) string {
	if len(b) == 0 {
		return ""
	}
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " = " + b[k]
	}
	return strings.Join(parts, ", ")
}
