package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const goodRules = `
- id: CUSTOM-1
  name: Hardcoded owner
  severity: medium
  category: access-control
  swc: SWC-115
  predicates:
    - pattern: 'owner\s*=\s*0x[0-9a-f]{40}'
`

const badRegex = `
- id: CUSTOM-2
  name: Broken
  severity: low
  category: logic
  predicates:
    - pattern: '(unclosed'
`

func writeRules(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeRules(t, dir, "good.yaml", goodRules)

	var out bytes.Buffer
	if code := runValidate(&out, []string{good}, true); code != 0 {
		t.Fatalf("runValidate() = %d, output:\n%s", code, out.String())
	}
	for _, want := range []string{"OK", "CUSTOM-1", "refs: SWC-115", "1 valid, 0 invalid"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	tests := []struct {
		name    string
		content string
	}{
		{"bad regex", badRegex},
		{"not yaml", "- id: [unterminated"},
		{"missing predicates", "- id: X-1\n  name: x\n  severity: low\n  category: logic\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := t.TempDir()
			path := writeRules(t, sub, "rules.yaml", tt.content)
			var out bytes.Buffer
			if code := runValidate(&out, []string{path}, false); code != 1 {
				t.Errorf("runValidate() = %d, want 1; output:\n%s", code, out.String())
			}
			if !strings.Contains(out.String(), "FAIL") {
				t.Errorf("expected FAIL line:\n%s", out.String())
			}
		})
	}
}

func TestRunValidateDuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeRules(t, dir, "a.yaml", goodRules)
	writeRules(t, dir, "b.yml", goodRules)

	var out bytes.Buffer
	if code := runValidate(&out, []string{dir}, false); code != 1 {
		t.Errorf("runValidate() = %d, want 1; output:\n%s", code, out.String())
	}
}

func TestRunValidateMissingPath(t *testing.T) {
	var out bytes.Buffer
	if code := runValidate(&out, []string{filepath.Join(t.TempDir(), "nope")}, false); code != 1 {
		t.Errorf("runValidate() = %d, want 1", code)
	}
}

func TestRunList(t *testing.T) {
	dir := t.TempDir()
	writeRules(t, dir, "good.yaml", goodRules)

	var out bytes.Buffer
	if code := runList(&out, []string{dir}); code != 0 {
		t.Fatalf("runList() = %d", code)
	}
	if !strings.Contains(out.String(), "CUSTOM-1") || !strings.Contains(out.String(), "access-control") {
		t.Errorf("unexpected list output:\n%s", out.String())
	}
}

func TestRunBuiltin(t *testing.T) {
	var out bytes.Buffer
	if code := runBuiltin(&out, true); code != 0 {
		t.Fatalf("runBuiltin() = %d", code)
	}
	for _, want := range []string{"SWC-107", "rules", "critical"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
}
