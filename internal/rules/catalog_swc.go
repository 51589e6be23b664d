package rules

import "sentinel/internal/schema"

func swcRef(id string) []string {
	return []string{"https://swcregistry.io/docs/" + id}
}

// match builds plain predicates from patterns.
func match(patterns ...string) []Predicate {
	preds := make([]Predicate, len(patterns))
	for i, p := range patterns {
		preds[i] = Predicate{Pattern: p}
	}
	return preds
}

// swcRules returns the Smart Contract Weakness Classification rules.
func swcRules() []*Rule {
	return []*Rule{
		// SWC-100: Function Default Visibility
		{
			ID:          "SWC-100",
			Name:        "Function Default Visibility",
			Description: "Functions that do not have a function visibility type specified are public by default.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryAccessControl,
			Confidence:  0.5,
			Predicates: []Predicate{{
				Pattern: `function\s+\w+\s*\([^)]*\)`,
				Unless:  `\b(?:public|private|internal|external)\b`,
				Guard:   GuardHeader,
			}},
			Remediation: "Explicitly declare function visibility (public, private, internal, external).",
			References:  swcRef("SWC-100"),
			SWC:         "SWC-100",
			CWE:         "CWE-710",
		},
		// SWC-101: Integer Overflow and Underflow
		{
			ID:          "SWC-101",
			Name:        "Integer Overflow and Underflow",
			Description: "Integer overflow/underflow can occur when arithmetic operations reach the maximum or minimum size of the type.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryArithmetic,
			Confidence:  0.35,
			Predicates: []Predicate{
				{Pattern: `\w+\s*\+\s*\w+`, Unless: `^\s*;.*SafeMath`, Guard: GuardLine},
				{Pattern: `\w+\s*-\s*\w+`, Unless: `^\s*;.*SafeMath`, Guard: GuardLine},
				{Pattern: `\w+\s*\*\s*\w+`, Unless: `^\s*;.*SafeMath`, Guard: GuardLine},
			},
			FalsePositiveHints: []string{"pragma solidity ^0.8", "using SafeMath"},
			Remediation:        "Use Solidity 0.8.x built-in overflow checks or SafeMath library.",
			References:         swcRef("SWC-101"),
			SWC:                "SWC-101",
			CWE:                "CWE-190",
		},
		// SWC-104: Unchecked Call Return Value
		{
			ID:          "SWC-104",
			Name:        "Unchecked Call Return Value",
			Description: "The return value of a message call is not checked.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryUncheckedCalls,
			Confidence:  0.6,
			Predicates: []Predicate{
				{Pattern: `\.call\{[^}]*\}\([^)]*\)\s*;`},
				{Pattern: `\.send\([^)]*\)\s*;`},
				{Pattern: `\.transfer\([^)]*\)\s*;`, Unless: `^\s*//\s*safe`, Guard: GuardLine},
			},
			Remediation: "Check the return value of low-level calls and handle failures appropriately.",
			References:  swcRef("SWC-104"),
			SWC:         "SWC-104",
			CWE:         "CWE-252",
		},
		// SWC-106: Unprotected SELFDESTRUCT
		{
			ID:          "SWC-106",
			Name:        "Unprotected SELFDESTRUCT Instruction",
			Description: "A selfdestruct instruction can be triggered by any user, destroying the contract.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryAccessControl,
			Confidence:  0.7,
			Predicates:  match(`selfdestruct\s*\([^)]*\)`, `suicide\s*\([^)]*\)`),
			Remediation: "Protect selfdestruct with access control modifiers (onlyOwner, etc.).",
			References:  swcRef("SWC-106"),
			SWC:         "SWC-106",
			CWE:         "CWE-284",
		},
		// SWC-107: Reentrancy
		{
			ID:          "SWC-107",
			Name:        "Reentrancy",
			Description: "External calls can call back into the calling contract before the first execution is complete.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryReentrancy,
			Confidence:  0.75,
			Predicates: match(
				`\.call\{.*value.*\}.*\n.*\w+\s*[+-]=`,
				`\.call\{.*value.*\}.*\n.*\w+\s*=\s*\w+\s*[+-]`,
				`payable\([^)]+\)\.transfer.*\n.*\w+\s*[+-]=`,
			),
			FalsePositiveHints: []string{"nonReentrant"},
			Remediation:        "Use Checks-Effects-Interactions pattern or ReentrancyGuard.",
			References:         swcRef("SWC-107"),
			SWC:                "SWC-107",
			CWE:                "CWE-841",
		},
		// SWC-110: Assert Violation
		{
			ID:          "SWC-110",
			Name:        "Assert Violation",
			Description: "Assert should only be used to test for internal errors and check invariants.",
			Severity:    schema.SeverityLow,
			Category:    schema.CategoryLogic,
			Confidence:  0.6,
			Predicates:  match(`assert\s*\([^)]*msg\.value`, `assert\s*\([^)]*tx\.origin`),
			Remediation: "Use require() for input validation, assert() only for invariants.",
			References:  swcRef("SWC-110"),
			SWC:         "SWC-110",
			CWE:         "CWE-670",
		},
		// SWC-111: Use of Deprecated Functions
		{
			ID:          "SWC-111",
			Name:        "Use of Deprecated Solidity Functions",
			Description: "Deprecated Solidity functions are used.",
			Severity:    schema.SeverityInfo,
			Category:    schema.CategoryLogic,
			Confidence:  0.8,
			Predicates: match(
				`\bsuicide\s*\(`,
				`\bsha3\s*\(`,
				`\bcallcode\s*\(`,
				`\bthrow\s*;`,
				`\bvar\s+\w+`,
			),
			Remediation: "Replace deprecated functions with their modern equivalents.",
			References:  swcRef("SWC-111"),
			SWC:         "SWC-111",
		},
		// SWC-112: Delegatecall to Untrusted Callee
		{
			ID:          "SWC-112",
			Name:        "Delegatecall to Untrusted Callee",
			Description: "Delegatecall retains the context of the calling contract, which can lead to unexpected behavior.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryAccessControl,
			Confidence:  0.6,
			Predicates:  match(`\.delegatecall\s*\(`, `delegatecall\s*\([^)]*\w+\s*\)`),
			Remediation: "Avoid delegatecall to untrusted contracts. If necessary, validate the target.",
			References:  swcRef("SWC-112"),
			SWC:         "SWC-112",
			CWE:         "CWE-829",
		},
		// SWC-113: DoS with Failed Call
		{
			ID:          "SWC-113",
			Name:        "DoS with Failed Call",
			Description: "External calls can fail, which may lead to DoS if not handled properly.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryDenialOfService,
			Confidence:  0.65,
			Predicates:  match(`for\s*\([^)]*\)\s*\{[^}]*\.transfer\(`, `while\s*\([^)]*\)\s*\{[^}]*\.send\(`),
			Remediation: "Use pull payment pattern instead of pushing payments in loops.",
			References:  swcRef("SWC-113"),
			SWC:         "SWC-113",
			CWE:         "CWE-703",
		},
		// SWC-114: Transaction Order Dependence
		{
			ID:          "SWC-114",
			Name:        "Transaction Order Dependence (Front-Running)",
			Description: "Contract behavior depends on the order of transactions, which miners can manipulate.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryFrontRunning,
			Confidence:  0.4,
			Predicates: match(
				`mapping.*\bprice\b`,
				`function\s+\w*buy\w*\s*\(`,
				`function\s+\w*swap\w*\s*\(`,
			),
			Remediation: "Use commit-reveal scheme, submarine sends, or flashbots.",
			References:  swcRef("SWC-114"),
			SWC:         "SWC-114",
			CWE:         "CWE-362",
		},
		// SWC-115: Authorization through tx.origin
		{
			ID:          "SWC-115",
			Name:        "Authorization through tx.origin",
			Description: "tx.origin should not be used for authorization as it can be phished.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryAccessControl,
			Confidence:  0.85,
			Predicates: match(
				`require\s*\([^)]*tx\.origin`,
				`if\s*\([^)]*tx\.origin`,
				`tx\.origin\s*==`,
			),
			Remediation: "Use msg.sender instead of tx.origin for authorization.",
			References:  swcRef("SWC-115"),
			SWC:         "SWC-115",
			CWE:         "CWE-477",
		},
		// SWC-116: Block Timestamp Dependence
		{
			ID:          "SWC-116",
			Name:        "Block Timestamp Dependence",
			Description: "Contracts using block.timestamp for critical logic can be manipulated by miners.",
			Severity:    schema.SeverityLow,
			Category:    schema.CategoryTimeManipulation,
			Confidence:  0.6,
			Predicates:  match(`block\.timestamp\s*[<>=]`, `\bnow\s*[<>=]`),
			Remediation: "Avoid using block.timestamp for critical logic or use a tolerance window.",
			References:  swcRef("SWC-116"),
			SWC:         "SWC-116",
			CWE:         "CWE-829",
		},
		// SWC-120: Weak Sources of Randomness
		{
			ID:          "SWC-120",
			Name:        "Weak Sources of Randomness from Chain Attributes",
			Description: "Using block attributes for randomness can be predicted or manipulated.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryRandomness,
			Confidence:  0.7,
			Predicates: match(
				`block\.timestamp.*random`,
				`block\.difficulty.*random`,
				`blockhash\s*\([^)]*\).*random`,
				`keccak256\s*\([^)]*block\.`,
			),
			Remediation: "Use Chainlink VRF or commit-reveal scheme for randomness.",
			References:  swcRef("SWC-120"),
			SWC:         "SWC-120",
			CWE:         "CWE-330",
		},
		// SWC-123: Requirement Violation
		{
			ID:          "SWC-123",
			Name:        "Requirement Violation",
			Description: "A require() statement can fail under normal operation.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryLogic,
			Confidence:  0.7,
			Predicates:  match(`require\s*\(\s*false\s*[,)]`, `require\s*\(\s*0\s*[,)]`),
			Remediation: "Review require conditions to ensure they are reachable under valid inputs.",
			References:  swcRef("SWC-123"),
			SWC:         "SWC-123",
		},
		// SWC-124: Write to Arbitrary Storage Location
		{
			ID:          "SWC-124",
			Name:        "Write to Arbitrary Storage Location",
			Description: "User-controlled data can determine which storage slot is written to.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryAccessControl,
			Confidence:  0.55,
			Predicates:  match(`assembly\s*\{[^}]*sstore\s*\([^)]*\w+`),
			Remediation: "Validate array indices and avoid assembly storage writes with user input.",
			References:  swcRef("SWC-124"),
			SWC:         "SWC-124",
			CWE:         "CWE-123",
		},
		// SWC-126: Insufficient Gas Griefing
		{
			ID:          "SWC-126",
			Name:        "Insufficient Gas Griefing",
			Description: "Relaying transactions may fail due to insufficient gas forwarded.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryGas,
			Confidence:  0.55,
			Predicates:  match(`\.call\{[^}]*gas\s*:`, `\.call\s*\.\s*gas\s*\(`),
			Remediation: "Forward sufficient gas or use gasleft() checks.",
			References:  swcRef("SWC-126"),
			SWC:         "SWC-126",
			CWE:         "CWE-691",
		},
		// SWC-127: Arbitrary Jump with Function Type Variable
		{
			ID:          "SWC-127",
			Name:        "Arbitrary Jump with Function Type Variable",
			Description: "Function type variables can be manipulated to jump to arbitrary code.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryLogic,
			Confidence:  0.5,
			Predicates:  match(`function\s*\([^)]*\)\s*(?:internal|external|public|private)?\s*\w+\s*;`),
			Remediation: "Validate function type variables before calling.",
			References:  swcRef("SWC-127"),
			SWC:         "SWC-127",
			CWE:         "CWE-695",
		},
		// SWC-128: DoS With Block Gas Limit
		{
			ID:          "SWC-128",
			Name:        "DoS With Block Gas Limit",
			Description: "Loops over dynamic arrays can exceed block gas limit.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryDenialOfService,
			Confidence:  0.6,
			Predicates:  match(`for\s*\([^)]*\.length`, `while\s*\([^)]*\.length`),
			Remediation: "Implement pagination or limit array size.",
			References:  swcRef("SWC-128"),
			SWC:         "SWC-128",
			CWE:         "CWE-400",
		},
		// SWC-129: Typographical Error
		{
			ID:          "SWC-129",
			Name:        "Typographical Error",
			Description: "A typo can lead to unintended behavior.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryLogic,
			Confidence:  0.6,
			Predicates:  match(`=\+`, `=-`),
			Remediation: "Review operators carefully: =+ is most likely meant to be +=.",
			References:  swcRef("SWC-129"),
			SWC:         "SWC-129",
			CWE:         "CWE-480",
		},
		// SWC-132: Unexpected Ether Balance
		{
			ID:          "SWC-132",
			Name:        "Unexpected Ether Balance",
			Description: "Contracts relying on this.balance can be manipulated via selfdestruct.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryLogic,
			Confidence:  0.6,
			Predicates:  match(`address\s*\(\s*this\s*\)\s*\.balance`, `this\.balance`),
			Remediation: "Track deposits/withdrawals separately instead of relying on this.balance.",
			References:  swcRef("SWC-132"),
			SWC:         "SWC-132",
			CWE:         "CWE-667",
		},
		// SWC-134: Message call with hardcoded gas amount
		{
			ID:          "SWC-134",
			Name:        "Message Call with Hardcoded Gas Amount",
			Description: "Hardcoded gas amounts can break with EVM upgrades.",
			Severity:    schema.SeverityLow,
			Category:    schema.CategoryGas,
			Confidence:  0.5,
			Predicates:  match(`\.call\{.*gas\s*:\s*\d+`, `\.transfer\s*\(`, `\.send\s*\(`),
			Remediation: "Use .call{value: x}(\"\") instead of transfer/send.",
			References:  swcRef("SWC-134"),
			SWC:         "SWC-134",
			CWE:         "CWE-655",
		},
		// SWC-135: Code With No Effects
		{
			ID:          "SWC-135",
			Name:        "Code With No Effects",
			Description: "Code that has no effect indicates a bug.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryLogic,
			Confidence:  0.5,
			Predicates:  match(`^\s*\w+\s*;\s*$`),
			Remediation: "Remove dead code or fix the intended logic.",
			References:  swcRef("SWC-135"),
			SWC:         "SWC-135",
			CWE:         "CWE-1164",
		},
		// SWC-136: Unencrypted Private Data On-Chain
		{
			ID:          "SWC-136",
			Name:        "Unencrypted Private Data On-Chain",
			Description: "Private variables are still visible on the blockchain.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryAccessControl,
			Confidence:  0.5,
			Predicates:  match(`private\s+.*password`, `private\s+.*secret`, `private\s+.*key`),
			Remediation: "Never store sensitive data on-chain, even in private variables.",
			References:  swcRef("SWC-136"),
			SWC:         "SWC-136",
			CWE:         "CWE-767",
		},
	}
}
