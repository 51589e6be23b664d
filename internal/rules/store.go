package rules

import (
	"errors"
	"fmt"
	"iter"

	"sentinel/internal/schema"
)

var ruleValidator = schema.NewValidator()

// Store is an ordered, immutable-after-build collection of compiled rules.
// Add is meant for construction only; once a Store is handed to scanners it
// must not be modified.
type Store struct {
	rules []*Rule
	byID  map[string]*Rule
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*Rule)}
}

// Add validates, compiles and appends a copy of r. A rule whose ID is already
// present is rejected with ErrDuplicateRuleID and the stored rule is kept.
func (s *Store) Add(r *Rule) error {
	if r == nil {
		return fmt.Errorf("%w: nil rule", ErrInvalidRule)
	}
	if _, exists := s.byID[r.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRuleID, r.ID)
	}
	if err := ruleValidator.Struct(r); err != nil {
		return &ValidationError{RuleID: r.ID, Err: err}
	}
	if r.Precedent != "" {
		if _, ok := LookupPrecedent(r.Precedent); !ok {
			return &ValidationError{RuleID: r.ID, Err: fmt.Errorf("unknown precedent %q", r.Precedent)}
		}
	}

	c := r.clone()
	if err := c.compile(); err != nil {
		return err
	}

	s.rules = append(s.rules, c)
	s.byID[c.ID] = c
	return nil
}

// Get returns the rule with the given ID.
func (s *Store) Get(id string) (*Rule, error) {
	r, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return r, nil
}

// All yields every rule in insertion order. The sequence can be ranged over
// any number of times.
func (s *Store) All() iter.Seq[*Rule] {
	return func(yield func(*Rule) bool) {
		for _, r := range s.rules {
			if !yield(r) {
				return
			}
		}
	}
}

// Select yields, in insertion order, the rules for which keep returns true.
func (s *Store) Select(keep func(*Rule) bool) iter.Seq[*Rule] {
	return func(yield func(*Rule) bool) {
		for _, r := range s.rules {
			if keep(r) && !yield(r) {
				return
			}
		}
	}
}

// Len returns the number of rules.
func (s *Store) Len() int {
	return len(s.rules)
}

// IDs returns rule IDs in insertion order.
func (s *Store) IDs() []string {
	ids := make([]string, len(s.rules))
	for i, r := range s.rules {
		ids[i] = r.ID
	}
	return ids
}

// Stats summarizes a Store.
type Stats struct {
	Total      int                     `json:"total"`
	BySeverity map[schema.Severity]int `json:"by_severity"`
	ByCategory map[schema.Category]int `json:"by_category"`
	ByScope    map[Scope]int           `json:"by_scope"`
}

// Stats counts rules by severity, category and scope.
func (s *Store) Stats() Stats {
	st := Stats{
		Total:      len(s.rules),
		BySeverity: make(map[schema.Severity]int),
		ByCategory: make(map[schema.Category]int),
		ByScope:    make(map[Scope]int),
	}
	for _, r := range s.rules {
		st.BySeverity[r.Severity]++
		st.ByCategory[r.Category]++
		st.ByScope[r.EffectiveScope()]++
	}
	return st
}

// Load builds a Store from rules. Rules that fail validation or compilation
// are skipped and reported in rejected. A duplicate ID aborts the load.
func Load(rs []*Rule) (store *Store, rejected []error, err error) {
	store = NewStore()
	for _, r := range rs {
		addErr := store.Add(r)
		switch {
		case addErr == nil:
		case errors.Is(addErr, ErrDuplicateRuleID):
			return nil, rejected, addErr
		default:
			rejected = append(rejected, addErr)
		}
	}
	return store, rejected, nil
}

// Merge adds extra rules to a copy of base. It follows the same policy as Load.
func Merge(base *Store, extra []*Rule) (*Store, []error, error) {
	all := make([]*Rule, 0, base.Len()+len(extra))
	all = append(all, base.rules...)
	all = append(all, extra...)
	return Load(all)
}
