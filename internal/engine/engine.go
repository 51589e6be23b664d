// Package engine is the entry point for scans. It wires the rule engine,
// structural classifier, external adapters, sequence detector and risk
// aggregator into source and transaction-log analyses.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"sentinel/internal/adapters"
	"sentinel/internal/classify"
	"sentinel/internal/config"
	"sentinel/internal/detection"
	sanitize "sentinel/internal/errors"
	"sentinel/internal/risk"
	"sentinel/internal/rules"
	"sentinel/internal/schema"
	"sentinel/internal/sequence"
)

// ErrSourceTooLarge is returned for sources above the configured size limit.
var ErrSourceTooLarge = errors.New("source exceeds size limit")

// Engine runs scans. It is immutable after New and safe for concurrent use.
type Engine struct {
	rules      *detection.Engine
	detector   *sequence.Detector
	aggregator *risk.Aggregator

	narrow    bool
	disabled  map[string]bool
	maxSource int64
	workers   int

	analyzers []adapters.StaticAnalyzer
	checkers  []adapters.ModelChecker
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStaticAnalyzer adds a static analyzer run on every source scan.
func WithStaticAnalyzer(a adapters.StaticAnalyzer) Option {
	return func(e *Engine) { e.analyzers = append(e.analyzers, a) }
}

// WithModelChecker adds a model checker run on every source scan.
func WithModelChecker(c adapters.ModelChecker) Option {
	return func(e *Engine) { e.checkers = append(e.checkers, c) }
}

// WithWorkers bounds ScanBatch concurrency.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New creates an Engine from cfg over store. A nil cfg uses the defaults.
// Adapters enabled in cfg are constructed with the real subprocess runner.
func New(cfg *config.Config, store *rules.Store, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if store == nil {
		return nil, errors.New("engine: rule store is required")
	}

	detector, err := sequence.NewDetector(cfg.Sequence)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if err := cfg.Risk.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid risk configuration: %w", err)
	}

	e := &Engine{
		detector:   detector,
		aggregator: risk.NewAggregator(cfg.Risk),
		narrow:     cfg.Scan.NarrowScope,
		disabled:   make(map[string]bool, len(cfg.Rules.Disabled)),
		maxSource:  cfg.Scan.MaxSourceBytes,
		workers:    cfg.Scan.Workers,
		logger:     slog.Default(),
	}
	for _, id := range cfg.Rules.Disabled {
		e.disabled[id] = true
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers <= 0 {
		e.workers = runtime.NumCPU()
	}
	e.logger = e.logger.With("component", "engine")

	if cfg.Adapters.Slither.Enabled {
		e.analyzers = append(e.analyzers, adapters.NewSlither(cfg.Adapters.Slither, nil, e.logger))
	}
	if cfg.Adapters.Solc.Enabled {
		e.checkers = append(e.checkers, adapters.NewSolcChecker(cfg.Adapters.Solc, nil, e.logger))
	}

	e.rules = detection.New(store,
		detection.WithExcerptLength(cfg.Scan.ExcerptLength),
		detection.WithLogger(e.logger),
	)
	return e, nil
}

// Store returns the rule store the engine scans with.
func (e *Engine) Store() *rules.Store {
	return e.rules.Store()
}

// ScanSource analyzes Solidity source text and returns its scored result.
func (e *Engine) ScanSource(ctx context.Context, src string) (schema.AnalysisResult, error) {
	return e.ScanFile(ctx, "", src)
}

// ScanFile is ScanSource for a source read from path. The path is handed
// to external analyzers so they can resolve imports.
func (e *Engine) ScanFile(ctx context.Context, path, src string) (schema.AnalysisResult, error) {
	if e.maxSource > 0 && int64(len(src)) > e.maxSource {
		return schema.AnalysisResult{}, fmt.Errorf("%w: %d bytes (max %d)", ErrSourceTooLarge, len(src), e.maxSource)
	}
	start := time.Now()

	cls := classify.Classify(src)
	selected := e.Store().Select(func(r *rules.Rule) bool {
		if e.disabled[r.ID] {
			return false
		}
		if e.narrow {
			return cls.Applies(r)
		}
		return cls.Admits(r)
	})

	findings, err := e.rules.ScanRules(ctx, src, selected)
	if err != nil {
		return schema.AnalysisResult{}, err
	}
	for _, f := range classify.StructuralFindings(src, cls, e.narrow) {
		if !e.disabled[f.RuleID] {
			findings = append(findings, f)
		}
	}

	extra, statuses := e.runAdapters(ctx, path, src)
	if err := ctx.Err(); err != nil {
		return schema.AnalysisResult{}, err
	}
	findings = append(findings, extra...)

	result := e.aggregator.Aggregate(findings, nil)
	result.Structure = cls.Summary()
	result.Adapters = statuses

	e.logger.Debug("source scanned",
		"path", path,
		"findings", result.TotalFindings,
		"score", result.Score,
		"level", result.Level,
		"proxy_kind", cls.Proxy.Kind,
		"bridge_kind", cls.Bridge.Kind,
		"duration", time.Since(start),
	)
	return result, nil
}

// runAdapters runs every configured collaborator. Failures are logged and
// recorded; they never fail the scan.
func (e *Engine) runAdapters(ctx context.Context, path, src string) ([]schema.Finding, []schema.AdapterStatus) {
	var (
		findings []schema.Finding
		statuses []schema.AdapterStatus
	)

	for _, a := range e.analyzers {
		raw, err := a.Run(ctx, path, src)
		st := schema.AdapterStatus{Name: a.Name(), Status: adapters.StatusOf(err)}
		if err != nil {
			e.logger.Warn("static analyzer failed", "adapter", a.Name(), "status", st.Status, "error", err)
			st.Error = sanitize.SafeErrorMessage(err)
		} else {
			converted := adapters.StaticFindings(schema.FindingSource(a.Name()), raw)
			st.Findings = len(converted)
			findings = append(findings, converted...)
		}
		statuses = append(statuses, st)
	}

	for _, c := range e.checkers {
		res := c.Verify(ctx, src, "")
		st := schema.AdapterStatus{Name: c.Name(), Status: adapters.StatusOf(res.Err)}
		if res.Err != nil {
			e.logger.Warn("model checker failed", "adapter", c.Name(), "status", res.Status, "error", res.Err)
			st.Error = sanitize.SafeErrorMessage(res.Err)
		}
		converted := adapters.ModelCheckerFindings(res)
		st.Findings = len(converted)
		findings = append(findings, converted...)
		statuses = append(statuses, st)
	}

	return findings, statuses
}

// ScanTransactionSequence detects exploit patterns in a transaction log.
func (e *Engine) ScanTransactionSequence(txs []sequence.TransactionRecord) ([]schema.SequencePattern, error) {
	patterns, err := e.detector.Scan(txs)
	if err != nil {
		return nil, fmt.Errorf("sequence scan: %w", err)
	}
	return patterns, nil
}

// AnalyzeTransactions detects patterns in a transaction log and scores them.
func (e *Engine) AnalyzeTransactions(txs []sequence.TransactionRecord) (schema.AnalysisResult, error) {
	patterns, err := e.ScanTransactionSequence(txs)
	if err != nil {
		return schema.AnalysisResult{}, err
	}
	result := e.aggregator.Aggregate(nil, patterns)
	e.logger.Debug("transaction log analyzed",
		"transactions", len(txs),
		"patterns", len(patterns),
		"score", result.Score,
	)
	return result, nil
}

// AnalyzeFrontruns pairs pending transactions with confirmed ones that beat
// them to the same call and scores the pairs.
func (e *Engine) AnalyzeFrontruns(pending, confirmed []sequence.TransactionRecord) schema.AnalysisResult {
	return e.aggregator.Aggregate(nil, e.detector.DetectFrontruns(pending, confirmed))
}

// Score aggregates already detected patterns into a result.
func (e *Engine) Score(patterns []schema.SequencePattern) schema.AnalysisResult {
	return e.aggregator.Aggregate(nil, patterns)
}

// Inspect profiles a single transaction.
func (e *Engine) Inspect(tx sequence.TransactionRecord) sequence.Profile {
	return e.detector.Inspect(tx)
}
