package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"sentinel/internal/engine"
	sanitize "sentinel/internal/errors"
	"sentinel/internal/publish"
	"sentinel/internal/schema"
	"sentinel/internal/summary"
)

type scanOutput struct {
	Path   string                 `json:"path"`
	Result *schema.AnalysisResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

func runScanCmd(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	rulePaths := fs.String("rules", "", "Comma-separated extra rule files or directories")
	slither := fs.Bool("slither", false, "Run slither on each source")
	solc := fs.Bool("solc", false, "Run the solc model checker on each source")
	workers := fs.Int("workers", 0, "Concurrent scans (default from config, then CPU count)")
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one path is required\n")
		fmt.Fprintf(os.Stderr, "Usage: sentinel scan [flags] <file|dir> [<file|dir>...]\n")
		return exitError
	}

	cfg, logger, err := common.setup()
	if err != nil {
		return fail(err)
	}
	if *rulePaths != "" {
		for _, p := range strings.Split(*rulePaths, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Rules.Paths = append(cfg.Rules.Paths, p)
			}
		}
	}
	cfg.Adapters.Slither.Enabled = cfg.Adapters.Slither.Enabled || *slither
	cfg.Adapters.Solc.Enabled = cfg.Adapters.Solc.Enabled || *solc
	if *workers > 0 {
		cfg.Scan.Workers = *workers
	}

	store, rejected, err := engine.BuildStore(cfg.Rules)
	if err != nil {
		return fail(err)
	}
	for _, r := range rejected {
		logger.Warn("rule rejected", "error", r)
	}
	logger.Info("rules loaded", "rules", store.Len(), "rejected", len(rejected))

	eng, err := engine.New(cfg, store, engine.WithLogger(logger))
	if err != nil {
		return fail(err)
	}

	sources, err := engine.CollectSources(paths, cfg.Scan.Extensions)
	if err != nil {
		return fail(err)
	}
	if len(sources) == 0 {
		fmt.Fprintf(os.Stderr, "No sources found in %s\n", strings.Join(paths, ", "))
		return exitError
	}

	results, err := eng.ScanBatch(ctx, sources)
	if err != nil {
		return fail(err)
	}

	pub, err := newPublisher(cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer pub.Close()

	code := exitOK
	outputs := make([]scanOutput, 0, len(results))
	var envelopes []publish.Envelope
	for _, r := range results {
		out := scanOutput{Path: r.Path}
		if r.Err != nil {
			out.Error = sanitize.SafeErrorMessage(r.Err)
			code = exitError
		} else {
			res := r.Result
			out.Result = &res
			envelopes = append(envelopes, publish.NewEnvelope(publish.KindSource, r.Path, res))
			if code == exitOK && reached(string(res.Level), common.failOn) {
				code = exitThreshold
			}
		}
		outputs = append(outputs, out)
	}

	if err := pub.Publish(ctx, envelopes...); err != nil {
		logger.Error("failed to publish results", "error", err)
		code = exitError
	}

	if err := printScan(stdout, outputs, common.jsonOut); err != nil {
		return fail(err)
	}
	logScanTotals(logger, outputs)
	return code
}

func printScan(w io.Writer, outputs []scanOutput, asJSON bool) error {
	if asJSON {
		return writeJSON(w, outputs)
	}
	for _, out := range outputs {
		if out.Error != "" {
			fmt.Fprintf(w, "%s\n  %s\n\n", out.Path, summary.SeverityStyle("high").Render("error: "+out.Error))
			continue
		}
		fmt.Fprintln(w, summary.Render(out.Path, *out.Result))
	}
	return nil
}

func logScanTotals(logger *slog.Logger, outputs []scanOutput) {
	var findings, failed int
	for _, out := range outputs {
		if out.Result == nil {
			failed++
			continue
		}
		findings += out.Result.TotalFindings
	}
	logger.Info("scan finished", "sources", len(outputs), "findings", findings, "failed", failed)
}
