// Package rules holds the declarative vulnerability rule catalog.
//
// A rule is a set of regular-expression predicates plus metadata (severity,
// category, remediation, false-positive hints). Rules are compiled and
// validated when they enter a Store; a Store is never mutated afterwards, so
// any number of scanners may read it concurrently.
package rules

import (
	"fmt"
	"regexp"
	"slices"

	"sentinel/internal/schema"
)

// Scope restricts a rule to an architectural family.
type Scope string

const (
	ScopeGeneral Scope = "general"
	ScopeProxy   Scope = "proxy"
	ScopeBridge  Scope = "bridge"
)

// Guard selects the text an Unless clause is evaluated against.
type Guard string

const (
	// GuardHeader is the text after the match up to the next '{' or ';'.
	GuardHeader Guard = "header"
	// GuardBody is the text after the match up to the next '}'.
	GuardBody Guard = "body"
	// GuardLine is the rest of the line after the match.
	GuardLine Guard = "line"
	// GuardMatch is the matched text itself.
	GuardMatch Guard = "match"
)

// DefaultConfidence applies to rule documents that omit a confidence.
const DefaultConfidence = 0.7

// Rule is one vulnerability detection rule.
type Rule struct {
	ID          string          `yaml:"id" json:"id" validate:"required,rule_id,max=128"`
	Name        string          `yaml:"name" json:"name" validate:"required,max=256"`
	Description string          `yaml:"description,omitempty" json:"description,omitempty"`
	Severity    schema.Severity `yaml:"severity" json:"severity" validate:"required,severity"`
	Category    schema.Category `yaml:"category" json:"category" validate:"required,category"`
	Confidence  float64         `yaml:"confidence" json:"confidence" validate:"gte=0,lte=1"`

	Scope      Scope    `yaml:"scope,omitempty" json:"scope,omitempty" validate:"omitempty,oneof=general proxy bridge"`
	ProxyKinds []string `yaml:"proxy_kinds,omitempty" json:"proxy_kinds,omitempty"`
	Requires   []string `yaml:"requires,omitempty" json:"requires,omitempty"`

	Predicates []Predicate `yaml:"predicates" json:"predicates" validate:"required,min=1,dive"`
	// Once collapses all matches of the rule into its first one.
	Once bool `yaml:"once,omitempty" json:"once,omitempty"`

	FalsePositiveHints []string `yaml:"false_positive_hints,omitempty" json:"false_positive_hints,omitempty"`
	Remediation        string   `yaml:"remediation,omitempty" json:"remediation,omitempty"`
	References         []string `yaml:"references,omitempty" json:"references,omitempty"`
	SWC                string   `yaml:"swc,omitempty" json:"swc,omitempty"`
	CWE                string   `yaml:"cwe,omitempty" json:"cwe,omitempty"`
	Precedent          string   `yaml:"precedent,omitempty" json:"precedent,omitempty"`

	requires []*regexp.Regexp
	compiled bool
}

// Predicate is a single matching clause of a rule.
type Predicate struct {
	Pattern       string `yaml:"pattern" json:"pattern" validate:"required"`
	Unless        string `yaml:"unless,omitempty" json:"unless,omitempty"`
	Guard         Guard  `yaml:"guard,omitempty" json:"guard,omitempty" validate:"omitempty,oneof=header body line match"`
	Absent        bool   `yaml:"absent,omitempty" json:"absent,omitempty"`
	CaseSensitive bool   `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	DotAll        bool   `yaml:"dot_all,omitempty" json:"dot_all,omitempty"`

	re     *regexp.Regexp
	unless *regexp.Regexp
}

// Regexp returns the compiled pattern. Nil until the rule has been added to a Store.
func (p *Predicate) Regexp() *regexp.Regexp { return p.re }

// UnlessRegexp returns the compiled Unless clause, or nil.
func (p *Predicate) UnlessRegexp() *regexp.Regexp { return p.unless }

// GuardRegion returns the Guard, defaulting to GuardHeader.
func (p *Predicate) GuardRegion() Guard {
	if p.Guard == "" {
		return GuardHeader
	}
	return p.Guard
}

// Required returns the compiled Requires preconditions.
func (r *Rule) Required() []*regexp.Regexp { return r.requires }

// EffectiveScope returns the rule scope, defaulting to ScopeGeneral.
func (r *Rule) EffectiveScope() Scope {
	if r.Scope == "" {
		return ScopeGeneral
	}
	return r.Scope
}

// AppliesToProxyKind reports whether the rule's proxy-kind gate admits kind.
// Rules without a gate admit every kind.
func (r *Rule) AppliesToProxyKind(kind string) bool {
	if len(r.ProxyKinds) == 0 {
		return true
	}
	return slices.Contains(r.ProxyKinds, kind)
}

// flags builds the inline flag group for a predicate.
func (p *Predicate) flags() string {
	f := "m"
	if !p.CaseSensitive {
		f = "i" + f
	}
	if p.DotAll {
		f += "s"
	}
	return "(?" + f + ")"
}

// compile compiles every regular expression in the rule. It never mutates
// the rule on failure.
func (r *Rule) compile() error {
	preds := make([]Predicate, len(r.Predicates))
	copy(preds, r.Predicates)

	for i := range preds {
		p := &preds[i]
		re, err := regexp.Compile(p.flags() + p.Pattern)
		if err != nil {
			return &MalformedPredicateError{RuleID: r.ID, Index: i, Pattern: p.Pattern, Err: err}
		}
		p.re = re
		if p.Unless != "" {
			if p.Absent {
				return &MalformedPredicateError{RuleID: r.ID, Index: i, Pattern: p.Unless,
					Err: fmt.Errorf("unless clause on an absence predicate")}
			}
			un, err := regexp.Compile(p.flags() + p.Unless)
			if err != nil {
				return &MalformedPredicateError{RuleID: r.ID, Index: i, Pattern: p.Unless, Err: err}
			}
			p.unless = un
		}
	}

	requires := make([]*regexp.Regexp, 0, len(r.Requires))
	for _, expr := range r.Requires {
		re, err := regexp.Compile("(?im)" + expr)
		if err != nil {
			return &MalformedPredicateError{RuleID: r.ID, Index: -1, Pattern: expr, Err: err}
		}
		requires = append(requires, re)
	}

	r.Predicates = preds
	r.requires = requires
	r.compiled = true
	return nil
}

// clone returns a deep copy of the exported rule fields.
func (r *Rule) clone() *Rule {
	c := *r
	c.ProxyKinds = slices.Clone(r.ProxyKinds)
	c.Requires = slices.Clone(r.Requires)
	c.Predicates = slices.Clone(r.Predicates)
	c.FalsePositiveHints = slices.Clone(r.FalsePositiveHints)
	c.References = slices.Clone(r.References)
	c.requires = nil
	c.compiled = false
	return &c
}
