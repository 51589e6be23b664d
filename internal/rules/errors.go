package rules

import (
	"errors"
	"fmt"
)

// Sentinel errors for rule store operations.
var (
	ErrDuplicateRuleID = errors.New("rules: duplicate rule id")
	ErrRuleNotFound    = errors.New("rules: rule not found")
	ErrInvalidRule     = errors.New("rules: invalid rule")
)

// MalformedPredicateError reports a rule whose pattern cannot be compiled.
// Index is the predicate position, or -1 for a Requires precondition.
type MalformedPredicateError struct {
	RuleID  string
	Index   int
	Pattern string
	Err     error
}

func (e *MalformedPredicateError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("rules: rule %s: malformed precondition %q: %v", e.RuleID, e.Pattern, e.Err)
	}
	return fmt.Sprintf("rules: rule %s: malformed predicate %d %q: %v", e.RuleID, e.Index, e.Pattern, e.Err)
}

func (e *MalformedPredicateError) Unwrap() error {
	return e.Err
}

// ValidationError reports a rule that fails schema validation.
type ValidationError struct {
	RuleID string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rules: rule %q: %v", e.RuleID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrInvalidRule) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRule
}
