// Package detection evaluates rule predicates against Solidity source text
// and turns every distinct match into a Finding.
package detection

import (
	"cmp"
	"context"
	"iter"
	"log/slog"
	"slices"
	"strings"

	"sentinel/internal/rules"
	"sentinel/internal/schema"
)

// Engine scans source text with the rules of a Store. It holds no per-scan
// state and may be shared by concurrent scans.
type Engine struct {
	store      *rules.Store
	excerptLen int
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithExcerptLength sets the maximum excerpt length in runes.
func WithExcerptLength(n int) Option {
	return func(e *Engine) {
		if n > 0 && n <= schema.MaxExcerptLength {
			e.excerptLen = n
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine over store.
func New(store *rules.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		excerptLen: schema.MaxExcerptLength,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the rule store the engine evaluates.
func (e *Engine) Store() *rules.Store {
	return e.store
}

// Scan evaluates every rule in the store against src.
func (e *Engine) Scan(ctx context.Context, src string) ([]schema.Finding, error) {
	return e.ScanRules(ctx, src, e.store.All())
}

// ScanRules evaluates the given rules against src. Findings are ordered by
// rule, then by match offset. Cancellation is checked between rules; a
// cancelled scan returns no findings.
func (e *Engine) ScanRules(ctx context.Context, src string, rs iter.Seq[*rules.Rule]) ([]schema.Finding, error) {
	var findings []schema.Finding
	evaluated := 0

	for r := range rs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		evaluated++
		findings = append(findings, e.evaluate(r, src)...)
	}

	e.logger.Debug("source scan complete",
		"component", "detection",
		"rules", evaluated,
		"findings", len(findings),
		"bytes", len(src),
	)
	return findings, nil
}

// span is a half-open byte range of src. Absence findings use start = -1.
type span struct {
	start, end int
}

func (e *Engine) evaluate(r *rules.Rule, src string) []schema.Finding {
	for _, req := range r.Required() {
		if !req.MatchString(src) {
			return nil
		}
	}

	spans := matchSpans(r, src)
	if len(spans) == 0 {
		return nil
	}
	if r.Once {
		spans = spans[:1]
	}

	flagged := hasHint(src, r.FalsePositiveHints)
	precedent := rules.PrecedentName(r.Precedent)

	findings := make([]schema.Finding, 0, len(spans))
	for _, sp := range spans {
		f := schema.Finding{
			RuleID:              r.ID,
			Title:               r.Name,
			Severity:            r.Severity,
			Category:            r.Category,
			Source:              schema.SourceRules,
			Description:         r.Description,
			Remediation:         r.Remediation,
			References:          slices.Clone(r.References),
			Confidence:          r.Confidence,
			LikelyFalsePositive: flagged,
			Precedent:           precedent,
		}
		if sp.start >= 0 {
			f.Line = schema.LineAt(src, sp.start)
			f.Offset = sp.start
			f.Excerpt = schema.TruncateExcerpt(src[sp.start:sp.end], e.excerptLen)
		}
		f.Seal()
		findings = append(findings, f)
	}
	return findings
}

// matchSpans collects the distinct spans matched by the rule's predicates,
// sorted by offset.
func matchSpans(r *rules.Rule, src string) []span {
	seen := make(map[span]struct{})
	var spans []span

	add := func(sp span) {
		if _, dup := seen[sp]; dup {
			return
		}
		seen[sp] = struct{}{}
		spans = append(spans, sp)
	}

	for i := range r.Predicates {
		p := &r.Predicates[i]
		re := p.Regexp()
		if re == nil {
			continue
		}

		if p.Absent {
			if !re.MatchString(src) {
				add(span{start: -1, end: -1})
			}
			continue
		}

		unless := p.UnlessRegexp()
		for _, loc := range re.FindAllStringIndex(src, -1) {
			if unless != nil && unless.MatchString(guardRegion(src, loc[0], loc[1], p.GuardRegion())) {
				continue
			}
			add(span{start: loc[0], end: loc[1]})
		}
	}

	slices.SortStableFunc(spans, func(a, b span) int {
		if c := cmp.Compare(a.start, b.start); c != 0 {
			return c
		}
		return cmp.Compare(a.end, b.end)
	})
	return spans
}

// guardRegion returns the text an Unless clause is evaluated against.
func guardRegion(src string, start, end int, g rules.Guard) string {
	if g == rules.GuardMatch {
		return src[start:end]
	}

	rest := src[end:]
	var stop int
	switch g {
	case rules.GuardLine:
		stop = strings.IndexByte(rest, '\n')
	case rules.GuardBody:
		stop = strings.IndexByte(rest, '}')
	default:
		stop = strings.IndexAny(rest, "{;")
	}
	if stop < 0 {
		return rest
	}
	return rest[:stop]
}

// hasHint reports whether any false-positive hint occurs in src.
func hasHint(src string, hints []string) bool {
	for _, h := range hints {
		if h != "" && strings.Contains(src, h) {
			return true
		}
	}
	return false
}
