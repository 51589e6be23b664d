package rules

import "sentinel/internal/schema"

// bridgeRule fills the fields shared by every bridge rule.
func bridgeRule(r Rule) *Rule {
	r.Scope = ScopeBridge
	r.Once = true
	if r.Confidence == 0 {
		r.Confidence = 0.6
	}
	return &r
}

// bridgeRules returns cross-chain bridge rules. The validator threshold
// ratio check is computed by the classifier.
func bridgeRules() []*Rule {
	return []*Rule{
		bridgeRule(Rule{
			ID:          "BRIDGE-001",
			Name:        "Missing Signature Verification",
			Description: "Bridge message processing without signature verification. Attacker can forge cross-chain messages.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategorySignature,
			Confidence:  0.55,
			Predicates: []Predicate{{
				Pattern: `function\s+\w*(?:relay|execute|claim|process)\w*\s*\([^)]*\)[^{]*\{`,
				Unless:  `verify|ecrecover|ECDSA`,
				Guard:   GuardBody,
			}},
			Remediation: "Implement robust signature verification using ECDSA.recover or similar.",
			Precedent:   "wormhole",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-002",
			Name:        "Weak Merkle Root Validation",
			Description: "Merkle root validation accepts zero/empty values. Attacker can submit transactions with zero proof.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryLogic,
			Confidence:  0.8,
			Predicates:  match(`(?:merkleRoot|root)\s*==\s*(?:bytes32\(0\)|0x0{64})`),
			Remediation: "Validate merkle root is non-zero and properly initialized.",
			Precedent:   "nomad",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-003",
			Name:        "Low Multi-Sig Threshold",
			Description: "Multi-sig threshold is too low (1-2 signers). Compromising 1-2 keys gives full control.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryAccessControl,
			Confidence:  0.7,
			Predicates:  match(`threshold\s*[=<]\s*[12]\s*(?:;|\)|,)`),
			Remediation: "Increase threshold to at least 2/3 of total signers.",
			Precedent:   "harmony",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-004",
			Name:        "Unprotected Admin Functions",
			Description: "Administrative functions lack access control. Anyone can modify bridge configuration.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryAccessControl,
			Confidence:  0.6,
			Predicates: []Predicate{{
				Pattern: `function\s+(?:set\w*|update\w*|change\w*)\s*\([^)]*\)\s+(?:external|public)`,
				Unless:  `onlyOwner|onlyAdmin|onlyRole|require\s*\(\s*msg\.sender`,
				Guard:   GuardBody,
			}},
			Remediation: "Add onlyOwner/onlyAdmin modifier to administrative functions.",
			Precedent:   "polynetwork",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-005",
			Name:        "Missing Replay Protection",
			Description: "No nonce or transaction tracking for replay prevention. Same message can be replayed multiple times.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategorySignature,
			Predicates: []Predicate{{
				Pattern: `function\s+\w*(?:relay|claim|execute)\w*\s*\([^)]*\)`,
				Unless:  `nonce|used\[|processed\[|claimed\[`,
				Guard:   GuardBody,
			}},
			Remediation: "Track processed messages with nonce or transaction hash mapping.",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-006",
			Name:        "Centralized Oracle/Relayer",
			Description: "Bridge relies on single oracle or relayer. Oracle compromise leads to false messages.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryOracle,
			Predicates:  match(`(?:oracle|reporter|relayer)\s*=\s*(?:msg\.sender|_\w+|address)`),
			Remediation: "Use decentralized oracle network or multi-oracle setup.",
			Precedent:   "multichain",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-007",
			Name:        "Missing Chain ID Validation",
			Description: "Cross-chain message doesn't validate source/dest chain. Message from wrong chain could be processed.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategorySignature,
			Predicates: []Predicate{{
				Pattern: `function\s+\w*process\w*\s*\([^)]*\)`,
				Unless:  `chainId`,
				Guard:   GuardBody,
			}},
			Remediation: "Validate source and destination chain IDs in message.",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-008",
			Name:        "Potential Bridge Reentrancy",
			Description: "ETH/token transfer before state update in bridge. Reentrant call can drain bridge funds.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryReentrancy,
			Predicates:  match(`(?:\.call\{value:|\.transfer\(|\.send\().*\n(?:.*\n){0,5}.*(?:balances?\[|amount)`),
			FalsePositiveHints: []string{"nonReentrant"},
			Remediation:        "Follow checks-effects-interactions pattern or use ReentrancyGuard.",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-009",
			Name:        "Bridge Operating Without Validators",
			Description: "Bridge can operate with empty validator set. Attacker can add themselves as sole validator.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryAccessControl,
			Confidence:  0.7,
			Predicates:  match(`(?:validator|guardian|keeper)s?\s*\.\s*length\s*==\s*0`),
			Remediation: "Require minimum validator count before processing.",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-010",
			Name:        "Uncapped Token Minting",
			Description: "Bridge can mint wrapped tokens without limit. Infinite mint attack on wrapped asset.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryAccessControl,
			Predicates: []Predicate{{
				Pattern: `function\s+mint\s*\([^)]*\)\s+(?:external|public)`,
				Unless:  `require|assert|revert`,
				Guard:   GuardBody,
			}},
			Remediation: "Implement minting limits and validation.",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-011",
			Name:        "Hardcoded Validator Addresses",
			Description: "Validator addresses are hardcoded in contract. Validator rotation requires contract upgrade.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryAccessControl,
			Confidence:  0.7,
			Predicates: []Predicate{{
				Pattern:       `validators?\s*=\s*\[.*0x[a-fA-F0-9]{40}`,
				CaseSensitive: true,
			}},
			Remediation: "Implement upgradeable validator set with proper governance.",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-012",
			Name:        "No Validator Rotation Mechanism",
			Description: "No mechanism to add/remove validators. Compromised validator cannot be removed.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryAccessControl,
			Predicates:  []Predicate{{Pattern: `addValidator|removeValidator|updateValidator`, Absent: true}},
			Remediation: "Implement secure validator rotation with timelock.",
			Precedent:   "ronin",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-014",
			Name:        "Missing Message Expiry",
			Description: "Cross-chain messages have no expiration time. Old messages can be replayed indefinitely.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategorySignature,
			Predicates:  []Predicate{{Pattern: `expiry|deadline|timeout|validUntil`, Absent: true}},
			Remediation: "Add message expiry/deadline for time-bounded validity.",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-015",
			Name:        "Missing Transaction Tracking",
			Description: "No mapping to track processed transactions. Same transaction can be claimed multiple times.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategorySignature,
			Predicates:  []Predicate{{Pattern: `(?:processed|claimed|executed|used)\s*\[`, Absent: true}},
			Remediation: "Track processed transaction hashes/nonces in mapping.",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-016",
			Name:        "No Backing Asset Tracking",
			Description: "Minted tokens don't track locked collateral. Can mint unbacked tokens.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryLogic,
			Requires:    []string{`function\s+mint`},
			Predicates:  []Predicate{{Pattern: `totalLocked|lockedSupply|backingAmount`, Absent: true}},
			Remediation: "Track locked assets and ensure 1:1 backing.",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-017",
			Name:        "Unvalidated Token Burn",
			Description: "Token burn lacks sufficient validation. Invalid burns could unlock incorrect amounts.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryLogic,
			Confidence:  0.5,
			Requires:    []string{`burn`},
			Predicates:  []Predicate{{Pattern: `burn.*require`, Absent: true}},
			Remediation: "Verify burn amount, sender, and emit proper events.",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-018",
			Name:        "Critical Operations Without Timelock",
			Description: "Critical admin operations execute without a timelock delay. Compromised admin can make instant changes.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryAccessControl,
			Requires:    []string{`function\s+(?:upgrade|setValidator|setThreshold|pause|withdraw)`},
			Predicates:  []Predicate{{Pattern: `timelock|delay|queue.*execute`, Absent: true}},
			Remediation: "Add timelock for critical admin operations.",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-019",
			Name:        "Missing Emergency Pause",
			Description: "Bridge has no emergency pause mechanism. Cannot stop ongoing attack.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryDenialOfService,
			Predicates:  []Predicate{{Pattern: `pause|unpause|Pausable`, Absent: true}},
			Remediation: "Implement Pausable pattern for emergency stops.",
		}),
		bridgeRule(Rule{
			ID:          "BRIDGE-020",
			Name:        "Missing Fund Recovery Mechanism",
			Description: "No emergency fund recovery function. Stuck funds cannot be recovered.",
			Severity:    schema.SeverityLow,
			Category:    schema.CategoryLogic,
			Predicates:  []Predicate{{Pattern: `emergencyWithdraw|rescueFunds|recoverToken`, Absent: true}},
			Remediation: "Add timelocked emergency withdrawal (with proper access control).",
		}),
	}
}
