package rules

import "sentinel/internal/schema"

// Proxy kinds as produced by the structural classifier.
const (
	proxyTransparent = "transparent"
	proxyUUPS        = "uups"
	proxyBeacon      = "beacon"
)

// proxyRules returns upgradeable-proxy safety rules. Selector collisions and
// storage gap sizing need arithmetic and are computed by the classifier.
func proxyRules() []*Rule {
	return []*Rule{
		// PROXY-001: initializer without the initializer modifier
		{
			ID:          "PROXY-001",
			Name:        "Initializer Missing Protection",
			Description: "Initialize function found without `initializer` modifier. This can allow re-initialization attacks.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryProxy,
			Confidence:  0.7,
			Scope:       ScopeProxy,
			Predicates: []Predicate{{
				Pattern: `function\s+init(?:ialize)?\s*\(`,
				Unless:  `\b(?:initializer|reinitializer|onlyInitializing)\b`,
				Guard:   GuardHeader,
			}},
			Remediation: "Add OpenZeppelin's `initializer` modifier to prevent re-initialization.",
		},
		// PROXY-002: implementation can be initialized directly
		{
			ID:          "PROXY-002",
			Name:        "Missing _disableInitializers in Constructor",
			Description: "Implementation contract should call _disableInitializers() in constructor to prevent initialization of the implementation contract itself.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryProxy,
			Confidence:  0.7,
			Scope:       ScopeProxy,
			ProxyKinds:  []string{proxyUUPS, proxyTransparent},
			Predicates: []Predicate{{
				Pattern:       `_disableInitializers\s*\(\s*\)`,
				Absent:        true,
				CaseSensitive: true,
			}},
			Remediation: "Add `constructor() { _disableInitializers(); }` to implementation.",
		},
		// PROXY-003: multiple inheritance without a storage gap
		{
			ID:          "PROXY-003",
			Name:        "Missing Storage Gap in Upgradeable Contract",
			Description: "Contract inherits from several contracts but no storage gap found. Adding state variables to parent contracts in future upgrades will cause storage collision.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryProxy,
			Confidence:  0.6,
			Scope:       ScopeProxy,
			Requires:    []string{`contract\s+\w+\s+is\s+\w+\s*,`},
			Predicates: []Predicate{{
				Pattern: `uint256\[\s*\d+\s*\]\s+(?:private|internal)?\s*__gap`,
				Absent:  true,
			}},
			Remediation: "Add `uint256[50] private __gap;` at the end of each upgradeable base contract.",
		},
		// PROXY-004: upgrade function without access control
		{
			ID:          "PROXY-004",
			Name:        "Unprotected Upgrade Function",
			Description: "Upgrade function lacks access control. Anyone can upgrade the implementation.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryProxy,
			Confidence:  0.75,
			Scope:       ScopeProxy,
			Predicates: []Predicate{{
				Pattern:       `function\s+upgrade\w*\s*\([^)]*\)\s+(?:external|public)`,
				Unless:        `onlyOwner|onlyRole|onlyAdmin|require`,
				Guard:         GuardBody,
				CaseSensitive: true,
			}},
			Remediation: "Add `onlyOwner`, `onlyRole`, or similar access control to upgrade functions.",
		},
		// PROXY-005: empty _authorizeUpgrade
		{
			ID:          "PROXY-005",
			Name:        "Empty _authorizeUpgrade Function",
			Description: "The _authorizeUpgrade function is empty, allowing anyone to upgrade.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryProxy,
			Confidence:  0.9,
			Scope:       ScopeProxy,
			Predicates: []Predicate{{
				Pattern:       `function\s+_authorizeUpgrade\s*\([^)]*\)\s+internal\s+(?:virtual\s+)?override\s*\{\s*\}`,
				CaseSensitive: true,
			}},
			Remediation: "Implement proper access control in _authorizeUpgrade.",
		},
		// PROXY-006: UUPS without an access-control base
		{
			ID:          "PROXY-006",
			Name:        "UUPS Without Access Control",
			Description: "UUPS proxy implementation without standard access control pattern.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryProxy,
			Confidence:  0.65,
			Scope:       ScopeProxy,
			ProxyKinds:  []string{proxyUUPS},
			Predicates: []Predicate{{
				Pattern:       `OwnableUpgradeable|AccessControlUpgradeable|onlyOwner|onlyRole`,
				Absent:        true,
				CaseSensitive: true,
			}},
			Remediation: "Inherit from OwnableUpgradeable or AccessControlUpgradeable.",
		},
		// PROXY-009: delegatecall forwarding caller data
		{
			ID:          "PROXY-009",
			Name:        "Delegatecall with User Input",
			Description: "Delegatecall with user-controlled data detected. This can lead to arbitrary code execution in proxy context.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryProxy,
			Confidence:  0.6,
			Scope:       ScopeProxy,
			Once:        true,
			Predicates: []Predicate{{
				Pattern:       `\.delegatecall\s*\(\s*(?:msg\.data|_data|data|abi\.encode)`,
				CaseSensitive: true,
			}},
			Remediation: "Avoid delegatecall with user input or implement strict validation.",
		},
		// PROXY-010: state variables declared in a proxy
		{
			ID:          "PROXY-010",
			Name:        "State Variables in Proxy Contract",
			Description: "State variables declared directly in proxy contract. This can cause storage collision with implementation.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryProxy,
			Confidence:  0.6,
			Scope:       ScopeProxy,
			Once:        true,
			Predicates: []Predicate{{
				Pattern:       `contract\s+\w*Proxy\w*[^{]*\{[^}]*(?:uint256|address|bool|mapping|bytes)\s+(?:public|private|internal)`,
				CaseSensitive: true,
			}},
			Remediation: "Use EIP-1967 slots for proxy-specific storage.",
		},
		// PROXY-011: constructor logic in an initializable contract
		{
			ID:          "PROXY-011",
			Name:        "Constructor with Logic in Upgradeable Contract",
			Description: "Constructor contains logic in an upgradeable contract. Constructor logic won't run for proxy deployments.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryProxy,
			Confidence:  0.65,
			Scope:       ScopeProxy,
			Requires:    []string{`Initializable|initializer`},
			Predicates: []Predicate{{
				Pattern:       `constructor\s*\([^)]*\)\s*\{[^}]+\}`,
				Unless:        `_disableInitializers`,
				Guard:         GuardMatch,
				CaseSensitive: true,
			}},
			Remediation: "Move constructor logic to initializer function.",
		},
		// PROXY-012: immutables in an upgradeable implementation
		{
			ID:          "PROXY-012",
			Name:        "Immutable Variables in Upgradeable Contract",
			Description: "Immutable values are stored in bytecode and may differ between implementations.",
			Severity:    schema.SeverityInfo,
			Category:    schema.CategoryProxy,
			Confidence:  0.8,
			Scope:       ScopeProxy,
			ProxyKinds:  []string{proxyUUPS, proxyTransparent, proxyBeacon},
			Once:        true,
			Predicates: []Predicate{{
				Pattern:       `\w+\s+(?:public\s+)?immutable\s+\w+`,
				CaseSensitive: true,
			}},
			Remediation: "Ensure immutable values are consistent across upgrades or use storage.",
		},
		// PROXY-013: selfdestruct reachable from an implementation
		{
			ID:          "PROXY-013",
			Name:        "Selfdestruct in Upgradeable Contract",
			Description: "Selfdestruct found in upgradeable contract. This can permanently brick the proxy by destroying implementation.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryProxy,
			Confidence:  0.8,
			Scope:       ScopeProxy,
			Once:        true,
			Predicates: []Predicate{{
				Pattern:       `selfdestruct\s*\(`,
				CaseSensitive: true,
			}},
			Remediation: "Remove selfdestruct from implementation contracts.",
		},
	}
}
