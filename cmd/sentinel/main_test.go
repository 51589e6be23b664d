package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const originAuth = `pragma solidity 0.8.20;

contract Wallet {
    address owner;
    function withdraw() external {
        require(tx.origin == owner);
        payable(msg.sender).transfer(address(this).balance);
    }
}
`

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("SENTINEL_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("SENTINEL_LOG_LEVEL", "error")
}

func TestReached(t *testing.T) {
	tests := []struct {
		level, threshold string
		want             bool
	}{
		{"high", "", false},
		{"safe", "low", false},
		{"low", "low", true},
		{"medium", "high", false},
		{"critical", "HIGH", true},
		{"high", "bogus", false},
	}
	for _, tt := range tests {
		if got := reached(tt.level, tt.threshold); got != tt.want {
			t.Errorf("reached(%q, %q) = %v, want %v", tt.level, tt.threshold, got, tt.want)
		}
	}
}

func TestRunScanJSON(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Wallet.sol"), []byte(originAuth), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	code := runScanCmd(context.Background(), []string{"-json", dir}, &out)
	if code != exitOK {
		t.Fatalf("runScanCmd() = %d, output:\n%s", code, out.String())
	}

	var results []scanOutput
	if err := json.Unmarshal(out.Bytes(), &results); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if len(results) != 1 || results[0].Result == nil {
		t.Fatalf("results = %+v", results)
	}
	found := false
	for _, f := range results[0].Result.Findings {
		if f.RuleID == "SWC-115" {
			found = true
		}
	}
	if !found {
		t.Error("expected SWC-115 finding")
	}
}

func TestRunScanFailOn(t *testing.T) {
	isolateConfig(t)
	path := filepath.Join(t.TempDir(), "Wallet.sol")
	if err := os.WriteFile(path, []byte(originAuth), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if code := runScanCmd(context.Background(), []string{"-fail-on", "low", path}, &out); code != exitThreshold {
		t.Errorf("runScanCmd() = %d, want %d", code, exitThreshold)
	}
	if !strings.Contains(out.String(), "SWC-115") {
		t.Errorf("summary missing finding:\n%s", out.String())
	}
}

func TestRunScanErrors(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"no paths", nil},
		{"missing path", []string{filepath.Join(dir, "nope.sol")}},
		{"no sources", []string{dir}},
		{"missing config", []string{"-config", filepath.Join(dir, "none.yaml"), dir}},
		{"bad fail-on", []string{"-fail-on", "severe", dir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if code := runScanCmd(context.Background(), tt.args, &out); code != exitError {
				t.Errorf("runScanCmd() = %d, want %d", code, exitError)
			}
		})
	}
}

const unorderedLog = `[
  {"hash": "0x0000000000000000000000000000000000000000000000000000000000000002", "from": "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", "blockNumber": "0x2", "transactionIndex": "0x0"},
  {"hash": "0x0000000000000000000000000000000000000000000000000000000000000001", "from": "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "blockNumber": "0x1", "transactionIndex": "0x0"}
]`

func TestRunSequence(t *testing.T) {
	isolateConfig(t)
	path := filepath.Join(t.TempDir(), "txlog.json")
	if err := os.WriteFile(path, []byte(unorderedLog), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if code := runSequenceCmd(context.Background(), []string{"-json", path}, &out); code != exitOK {
		t.Fatalf("runSequenceCmd() = %d", code)
	}
	var result struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if result.Level != "safe" {
		t.Errorf("level = %q, want safe", result.Level)
	}

	out.Reset()
	if code := runSequenceCmd(context.Background(), []string{"-strict", path}, &out); code != exitError {
		t.Errorf("strict run = %d, want %d", code, exitError)
	}
}

func TestReadRecords(t *testing.T) {
	dir := t.TempDir()
	if _, err := readRecords(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readRecords(bad); err == nil || !strings.Contains(err.Error(), "bad.json") {
		t.Errorf("readRecords() error = %v", err)
	}
}

func TestRunDoctor(t *testing.T) {
	isolateConfig(t)

	var out bytes.Buffer
	if code := runDoctorCmd(context.Background(), []string{"-json"}, &out); code != exitOK {
		t.Fatalf("runDoctorCmd() = %d, output:\n%s", code, out.String())
	}
	var results []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(out.Bytes(), &results); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	statuses := make(map[string]string)
	for _, r := range results {
		statuses[r.Name] = r.Status
	}
	if statuses["rules"] != "OK" || statuses["config_file"] != "WARNING" || statuses["kafka"] != "SKIPPED" {
		t.Errorf("statuses = %v", statuses)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("scan:\n  extensions: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if code := runDoctorCmd(context.Background(), []string{"-config", bad}, &out); code != exitError {
		t.Errorf("invalid config: runDoctorCmd() = %d, want %d", code, exitError)
	}
	if !strings.Contains(out.String(), "config_validation") {
		t.Errorf("output missing config_validation:\n%s", out.String())
	}
}
