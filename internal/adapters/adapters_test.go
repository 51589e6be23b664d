package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"testing"
	"time"

	"sentinel/internal/schema"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type call struct {
	name string
	args []string
}

func fakeRunner(stdout, stderr string, err error, calls *[]call) CommandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		if calls != nil {
			*calls = append(*calls, call{name: name, args: args})
		}
		return []byte(stdout), []byte(stderr), err
	}
}

func blockingRunner(ctx context.Context, _ string, _ ...string) ([]byte, []byte, error) {
	<-ctx.Done()
	return nil, nil, ctx.Err()
}

const slitherReport = `{
  "success": true,
  "error": null,
  "results": {
    "detectors": [
      {
        "check": "reentrancy-eth",
        "impact": "High",
        "confidence": "Medium",
        "description": "Reentrancy in Vault.withdraw(uint256) (Vault.sol#12-18):\n\tExternal calls:\n",
        "elements": [
          {"type": "function", "name": "withdraw", "source_mapping": {"lines": [12, 13, 14]}}
        ]
      },
      {
        "check": "solc-version",
        "impact": "Informational",
        "confidence": "High",
        "description": "Pragma version^0.8.0 allows old versions",
        "elements": []
      }
    ]
  }
}`

func TestSlitherRun(t *testing.T) {
	var calls []call
	s := NewSlither(SlitherConfig{ExtraArgs: []string{"--solc-remaps", "x=y"}}, fakeRunner(slitherReport, "", &exec.ExitError{}, &calls), quiet)

	got, err := s.Run(context.Background(), "contracts/Vault.sol", "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(got))
	}
	if got[0].Check != "reentrancy-eth" || got[0].Line != 12 {
		t.Errorf("first finding = %+v", got[0])
	}
	if !slices.Equal(got[0].Elements, []string{"function:withdraw"}) {
		t.Errorf("elements = %v", got[0].Elements)
	}

	if len(calls) != 1 || calls[0].name != "slither" {
		t.Fatalf("calls = %+v", calls)
	}
	want := []string{"contracts/Vault.sol", "--json", "-", "--exclude-dependencies", "--solc-remaps", "x=y"}
	if !slices.Equal(calls[0].args, want) {
		t.Errorf("args = %v, want %v", calls[0].args, want)
	}
}

func TestSlitherRunFromSource(t *testing.T) {
	var seen string
	run := func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, nil, err
		}
		seen = string(data)
		return []byte(`{"success": true, "results": {"detectors": []}}`), nil, nil
	}
	s := NewSlither(SlitherConfig{}, run, quiet)

	got, err := s.Run(context.Background(), "", "contract A {}")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no findings, got %d", len(got))
	}
	if seen != "contract A {}" {
		t.Errorf("temp file content = %q", seen)
	}
}

func TestSlitherFailures(t *testing.T) {
	tests := []struct {
		name   string
		run    CommandRunner
		status string
	}{
		{"not installed", fakeRunner("", "", exec.ErrNotFound, nil), StatusUnavailable},
		{"missing binary path", fakeRunner("", "", fmt.Errorf("fork/exec: %w", os.ErrNotExist), nil), StatusUnavailable},
		{"crash", fakeRunner("", "Traceback (most recent call last):", errors.New("exit status 1"), nil), StatusError},
		{"unsuccessful report", fakeRunner(`{"success": false, "error": "solc compilation failed"}`, "", nil, nil), StatusError},
		{"garbage output", fakeRunner("not json", "", nil, nil), StatusError},
		{"timeout", blockingRunner, StatusTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSlither(SlitherConfig{Timeout: 20 * time.Millisecond}, tt.run, quiet)
			got, err := s.Run(context.Background(), "a.sol", "")
			if err == nil {
				t.Fatal("expected error")
			}
			if got != nil {
				t.Errorf("expected no findings, got %v", got)
			}
			var ae *Error
			if !errors.As(err, &ae) || ae.Adapter != "slither" {
				t.Errorf("expected *Error from slither, got %T %v", err, err)
			}
			if s := StatusOf(err); s != tt.status {
				t.Errorf("StatusOf() = %s, want %s", s, tt.status)
			}
		})
	}
}

func TestStaticFindings(t *testing.T) {
	in := []StaticFinding{
		{Check: "reentrancy-eth", Impact: "High", Confidence: "Medium", Description: "Reentrancy in Vault.withdraw\nmore", Line: 12},
		{Check: "timestamp", Impact: "Low", Confidence: "High", Description: "uses timestamp"},
		{Check: "external-function", Impact: "Optimization", Confidence: "High"},
		{Check: "brand-new-detector", Impact: "Weird", Confidence: "Unknown"},
	}
	got := StaticFindings(schema.SourceSlither, in)
	if len(got) != 4 {
		t.Fatalf("expected 4 findings, got %d", len(got))
	}

	tests := []struct {
		ruleID     string
		severity   schema.Severity
		category   schema.Category
		confidence float64
	}{
		{"slither:reentrancy-eth", schema.SeverityHigh, schema.CategoryReentrancy, 0.6},
		{"slither:timestamp", schema.SeverityLow, schema.CategoryTimeManipulation, 0.9},
		{"slither:external-function", schema.SeverityInfo, schema.CategoryGas, 0.9},
		{"slither:brand-new-detector", schema.SeverityInfo, schema.CategoryLogic, 0.5},
	}
	for i, tt := range tests {
		f := got[i]
		if f.RuleID != tt.ruleID || f.Severity != tt.severity || f.Category != tt.category || f.Confidence != tt.confidence {
			t.Errorf("finding %d = %s %s %s %v", i, f.RuleID, f.Severity, f.Category, f.Confidence)
		}
		if f.Source != schema.SourceSlither || f.Fingerprint == "" {
			t.Errorf("finding %d not sealed or wrong source: %+v", i, f)
		}
	}
	if got[0].Title != "Reentrancy with ETH transfer" || got[0].Excerpt != "Reentrancy in Vault.withdraw" {
		t.Errorf("title/excerpt = %q / %q", got[0].Title, got[0].Excerpt)
	}
	if err := schema.NewValidator().ValidateFinding(&got[0]); err != nil {
		t.Errorf("normalized finding should validate: %v", err)
	}
}

const solcViolated = `Warning: SPDX license identifier not provided in source file.
--> Model.sol

Warning: CHC: Overflow (resulting value larger than 2**256 - 1) happens here.
Counterexample:
a = 115792089237316195423570985008687907853269984665640564039457584007913129639935
b = 1

Transaction trace:
C.constructor()
C.add(115792089237316195423570985008687907853269984665640564039457584007913129639935, 1)
 --> Model.sol:5:16:
  |
5 |         return a + b;
  |                ^^^^^

Warning: CHC: Assertion violation happens here.
Counterexample:
x = 0

Transaction trace:
C.constructor()
C.check(0)
 --> Model.sol:9:9:
  |
9 |         assert(x > 0);
  |         ^^^^^^^^^^^^^
`

func TestSolcVerify(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		stderr string
		err    error
		status string
	}{
		{"verified", "", "", nil, VerificationVerified},
		{"violated", "", solcViolated, nil, VerificationViolated},
		{"unknown", "", "Warning: CHC: 1 verification condition(s) could not be proved.", nil, VerificationUnknown},
		{"compile error", "", "ParserError: Expected ';' but got '}'\n --> Model.sol:3:1:", errors.New("exit status 1"), VerificationError},
		{"not installed", "", "", exec.ErrNotFound, VerificationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSolcChecker(SolcConfig{}, fakeRunner(tt.stdout, tt.stderr, tt.err, nil), quiet)
			res := c.Verify(context.Background(), "contract C {}", "")
			if res.Status != tt.status {
				t.Errorf("Status = %s, want %s (message %q)", res.Status, tt.status, res.Message)
			}
			if res.Property != "assert,overflow,underflow,divByZero" {
				t.Errorf("Property = %q", res.Property)
			}
			if (res.Err != nil) != (tt.status == VerificationError) {
				t.Errorf("Err = %v for status %s", res.Err, res.Status)
			}
		})
	}
}

func TestSolcViolations(t *testing.T) {
	var calls []call
	c := NewSolcChecker(SolcConfig{Timeout: time.Minute}, fakeRunner("", solcViolated, nil, &calls), quiet)
	res := c.Verify(context.Background(), "contract C {}", "overflow,assert")

	if len(res.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(res.Violations))
	}
	first := res.Violations[0]
	if !strings.HasPrefix(first.Kind, "Overflow") || first.Line != 5 || first.Counterexample["b"] != "1" {
		t.Errorf("first violation = %+v", first)
	}
	if res.Violations[1].Kind != "Assertion violation" || res.Violations[1].Line != 9 {
		t.Errorf("second violation = %+v", res.Violations[1])
	}
	if res.Counterexample["b"] != "1" {
		t.Errorf("result counterexample = %v", res.Counterexample)
	}

	args := calls[0].args
	if !slices.Contains(args, "overflow,assert") || !slices.Contains(args, "60000") || !slices.Contains(args, "chc") {
		t.Errorf("args = %v", args)
	}

	findings := ModelCheckerFindings(res)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].RuleID != "model-checker:overflow" || findings[0].Severity != schema.SeverityHigh || findings[0].Category != schema.CategoryArithmetic {
		t.Errorf("overflow finding = %+v", findings[0])
	}
	if findings[1].RuleID != "model-checker:assertion-violation" || findings[1].Category != schema.CategoryLogic {
		t.Errorf("assertion finding = %+v", findings[1])
	}
	if findings[1].Excerpt != "x = 0" || findings[1].Line != 9 {
		t.Errorf("assertion excerpt/line = %q/%d", findings[1].Excerpt, findings[1].Line)
	}
}

func TestSolcTimeout(t *testing.T) {
	c := NewSolcChecker(SolcConfig{Timeout: time.Millisecond}, blockingRunner, quiet)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := c.Verify(ctx, "contract C {}", "assert")
	if res.Status != VerificationTimeout {
		t.Errorf("Status = %s, want timeout", res.Status)
	}
	if !errors.Is(res.Err, ErrAdapterTimeout) {
		t.Errorf("Err = %v", res.Err)
	}
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Adapter: "slither", Err: ErrAdapterTimeout}
	if err.Error() != "slither: adapter timed out" {
		t.Errorf("Error() = %q", err.Error())
	}
	err = &Error{Adapter: "solc", Err: ErrAdapterUnavailable, Detail: "not installed"}
	if err.Error() != "solc: adapter unavailable: not installed" {
		t.Errorf("Error() = %q", err.Error())
	}
	if StatusOf(nil) != StatusOK {
		t.Error("nil error should be ok")
	}
	if StatusOf(fmt.Errorf("wrapped: %w", err)) != StatusUnavailable {
		t.Error("wrapped unavailable should map to unavailable")
	}
}
