package schema

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// ruleIDPattern defines the valid format for rule identifiers.
// Examples: "SWC-107", "DEFI-003", "BRIDGE-SIG-001", "SLITHER-reentrancy-eth"
var ruleIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*(-[A-Za-z0-9_]+)*$`)

// Validator validates findings and rule definitions against the schema.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the schema's custom tags registered:
// severity, category and rule_id.
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		return Severity(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("rule_id", func(fl validator.FieldLevel) bool {
		return ruleIDPattern.MatchString(fl.Field().String())
	})

	return &Validator{validate: v}
}

// Struct validates any struct carrying schema tags.
func (v *Validator) Struct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateFinding validates a finding before it is scored.
func (v *Validator) ValidateFinding(f *Finding) error {
	if err := v.Struct(f); err != nil {
		return err
	}
	if len([]rune(f.Excerpt)) > MaxExcerptLength {
		return fmt.Errorf("excerpt too long: %d runes (max %d)", len([]rune(f.Excerpt)), MaxExcerptLength)
	}
	return nil
}

// ValidateRuleID checks if a rule identifier matches the required format.
func ValidateRuleID(id string) bool {
	return ruleIDPattern.MatchString(id)
}
