package sequence

import (
	"slices"

	"sentinel/internal/schema"
)

var remediations = map[schema.PatternKind][]string{
	schema.PatternSandwich: {
		"Use private transaction pools (Flashbots Protect, MEV Blocker)",
		"Set tight slippage tolerance",
		"Use DEX aggregators with MEV protection",
		"Consider breaking large trades into smaller amounts",
	},
	schema.PatternFrontrun: {
		"Use commit-reveal scheme",
		"Submit transactions via private mempool",
		"Use submarine sends for sensitive operations",
		"Implement minimum delay between actions",
	},
	schema.PatternJITLiquidity: {
		"This is a form of MEV extraction that may not be preventable",
		"Consider using protocols with JIT protection",
		"Use private transaction submission",
	},
	schema.PatternFlashLoan: {
		"Use TWAP oracles instead of spot prices",
		"Implement flash loan guards",
		"Add minimum time between price updates",
	},
}

// Remediation returns the static advice for a pattern kind. The returned
// slice is a copy.
func Remediation(kind schema.PatternKind) []string {
	return slices.Clone(remediations[kind])
}
