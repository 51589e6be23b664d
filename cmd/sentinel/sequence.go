package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"

	"sentinel/internal/engine"
	"sentinel/internal/publish"
	"sentinel/internal/rules"
	"sentinel/internal/sequence"
	"sentinel/internal/summary"
)

func runSequenceCmd(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("sequence", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	strict := fs.Bool("strict", false, "Reject logs not ordered by block and index")
	pendingPath := fs.String("pending", "", "Pending transactions to check for front-running against the log")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: exactly one transaction log is required\n")
		fmt.Fprintf(os.Stderr, "Usage: sentinel sequence [flags] <txlog.json>\n")
		return exitError
	}
	logPath := fs.Arg(0)

	cfg, logger, err := common.setup()
	if err != nil {
		return fail(err)
	}
	if *strict {
		cfg.Sequence.StrictOrdering = true
	}

	eng, err := engine.New(cfg, rules.NewStore(), engine.WithLogger(logger))
	if err != nil {
		return fail(err)
	}

	txs, err := readRecords(logPath)
	if err != nil {
		return fail(err)
	}

	result, err := eng.AnalyzeTransactions(txs)
	if err != nil {
		return fail(err)
	}

	if *pendingPath != "" {
		pending, err := readRecords(*pendingPath)
		if err != nil {
			return fail(err)
		}
		fr := eng.AnalyzeFrontruns(pending, txs)
		patterns := append(slices.Clone(result.Patterns), fr.Patterns...)
		result = eng.Score(patterns)
	}

	pub, err := newPublisher(cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer pub.Close()

	code := exitOK
	if err := pub.Publish(ctx, publish.NewEnvelope(publish.KindSequence, logPath, result)); err != nil {
		logger.Error("failed to publish results", "error", err)
		code = exitError
	}

	if common.jsonOut {
		if err := writeJSON(stdout, result); err != nil {
			return fail(err)
		}
	} else {
		fmt.Fprintln(stdout, summary.Render(logPath, result))
	}

	logger.Info("sequence analysis finished",
		"transactions", len(txs),
		"patterns", len(result.Patterns),
		"level", result.Level,
	)
	if code == exitOK && reached(string(result.Level), common.failOn) {
		code = exitThreshold
	}
	return code
}

func readRecords(path string) ([]sequence.TransactionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction log: %w", err)
	}
	txs, err := sequence.DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return txs, nil
}
