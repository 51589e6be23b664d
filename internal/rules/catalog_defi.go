package rules

import "sentinel/internal/schema"

// defiRules returns DeFi-specific rules: price oracles, slippage, approvals
// and vault accounting.
func defiRules() []*Rule {
	return []*Rule{
		// DEFI-001: Flash Loan Attack Vector
		{
			ID:          "DEFI-001",
			Name:        "Flash Loan Attack Vector",
			Description: "Contract may be vulnerable to flash loan attacks due to price manipulation.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryFlashLoan,
			Confidence:  0.55,
			Predicates:  match(`getReserves\s*\(\s*\)`, `slot0\s*\(\s*\)`, `\.price\s*\(\s*\)`),
			Remediation: "Use TWAP oracles, multiple price sources, or flash loan guards.",
			References:  []string{"https://www.paradigm.xyz/2020/11/so-you-want-to-use-a-price-oracle"},
		},
		// DEFI-002: Oracle Price Manipulation
		{
			ID:          "DEFI-002",
			Name:        "Oracle Price Manipulation",
			Description: "Single-block price from AMM can be manipulated.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryOracle,
			Confidence:  0.65,
			Predicates:  match(`IUniswapV2Pair.*getReserves`, `reserve0.*reserve1.*price`),
			Remediation: "Use Chainlink oracles or implement TWAP.",
			References:  []string{"https://shouldiusespotpriceasmyoracle.com/"},
			SWC:         "SWC-114",
		},
		// DEFI-003: Missing Slippage Protection
		{
			ID:          "DEFI-003",
			Name:        "Missing Slippage Protection",
			Description: "Swap functions without minimum output can be sandwich attacked.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryFrontRunning,
			Confidence:  0.6,
			Predicates:  match(`swap\s*\([^)]*0\s*,`, `amountOutMin\s*:\s*0`),
			Remediation: "Implement slippage protection with minimum output amounts.",
			References:  []string{"https://docs.uniswap.org/contracts/v2/guides/smart-contract-integration/trading-from-a-smart-contract"},
		},
		// DEFI-004: Unlimited Token Approval
		{
			ID:          "DEFI-004",
			Name:        "Unlimited Token Approval",
			Description: "Approving max uint256 can lead to fund loss if spender is compromised.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryAccessControl,
			Confidence:  0.8,
			Predicates: match(
				`approve\s*\([^,]+,\s*type\s*\(\s*uint256\s*\)\s*\.max`,
				`approve\s*\([^,]+,\s*2\s*\*\*\s*256\s*-\s*1`,
				`approve\s*\([^,]+,\s*0xffffffff`,
			),
			Remediation: "Approve only the necessary amount or implement permit-style approvals.",
			References:  []string{"https://revoke.cash/"},
		},
		// DEFI-005: Missing Deadline Check
		{
			ID:          "DEFI-005",
			Name:        "Missing Deadline Check",
			Description: "Transactions without deadline can be held and executed at unfavorable prices.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryFrontRunning,
			Confidence:  0.6,
			Predicates:  match(`block\.timestamp\s*\+\s*\d{6,}`),
			Remediation: "Use reasonable deadlines (e.g., 30 minutes) for time-sensitive operations.",
			References:  []string{"https://blog.uniswap.org/"},
		},
		// DEFI-006: Read-Only Reentrancy
		{
			ID:          "DEFI-006",
			Name:        "Read-Only Reentrancy",
			Description: "View functions can return stale data during reentrancy.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryReentrancy,
			Confidence:  0.45,
			Predicates:  match(`function\s+\w+\s*\([^)]*\)\s*.*view.*\{[^}]*balanceOf`),
			Remediation: "Use reentrancy guards even for view functions that query external contracts.",
			References:  []string{"https://chainsecurity.com/curve-lp-oracle-manipulation-post-mortem/"},
		},
		// DEFI-007: Curve LP Token Oracle
		{
			ID:          "DEFI-007",
			Name:        "Curve LP Token Price Vulnerability",
			Description: "Curve virtual_price can be manipulated via reentrancy.",
			Severity:    schema.SeverityCritical,
			Category:    schema.CategoryOracle,
			Confidence:  0.6,
			Predicates:  match(`get_virtual_price\s*\(\s*\)`, `virtualPrice`),
			Remediation: "Use Curve's native reentrancy protection or check for reentrancy state.",
			References:  []string{"https://chainsecurity.com/curve-lp-oracle-manipulation-post-mortem/"},
		},
		// DEFI-008: ERC4626 Inflation Attack
		{
			ID:          "DEFI-008",
			Name:        "ERC4626 Vault Inflation Attack",
			Description: "First depositor can manipulate share price in ERC4626 vaults.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryLogic,
			Confidence:  0.5,
			Predicates:  match(`ERC4626`, `previewDeposit.*totalSupply.*==.*0`),
			Once:        true,
			Remediation: "Implement virtual shares/assets or require minimum deposit.",
			References:  []string{"https://blog.openzeppelin.com/a-novel-defense-against-erc4626-inflation-attacks"},
		},
	}
}

// mevRules returns source-level MEV exposure rules. Exploits that only show
// up in transaction order are handled by the sequence detector.
func mevRules() []*Rule {
	return []*Rule{
		// MEV-001: Sandwich Attack Vector
		{
			ID:          "MEV-001",
			Name:        "Sandwich Attack Vulnerability",
			Description: "Public swap functions can be sandwiched by MEV bots.",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryFrontRunning,
			Confidence:  0.5,
			Predicates:  match(`function\s+swap\s*\([^)]*\)\s*public`, `function\s+swap\s*\([^)]*\)\s*external`),
			Remediation: "Use private mempools (Flashbots), MEV-Share, or implement MEV protection.",
			References:  []string{"https://docs.flashbots.net/"},
		},
		// MEV-003: Liquidation MEV
		{
			ID:          "MEV-003",
			Name:        "Liquidation MEV Exposure",
			Description: "Liquidation functions can be front-run by MEV bots.",
			Severity:    schema.SeverityMedium,
			Category:    schema.CategoryFrontRunning,
			Confidence:  0.5,
			Predicates:  match(`function\s+liquidate\s*\(`, `function\s+liquidateBorrow\s*\(`),
			Remediation: "Consider implementing liquidation rewards that account for MEV.",
			References:  []string{"https://www.paradigm.xyz/2021/07/mev-and-me"},
		},
		// MEV-004: Arbitrage Leakage
		{
			ID:          "MEV-004",
			Name:        "Arbitrage Opportunity Leakage",
			Description: "Protocol leaves arbitrage value for MEV extractors.",
			Severity:    schema.SeverityLow,
			Category:    schema.CategoryFrontRunning,
			Confidence:  0.5,
			Predicates:  match(`price\s*=\s*getReserves`),
			Remediation: "Capture MEV value for the protocol or users via MEV-Share.",
			References:  []string{"https://collective.flashbots.net/"},
		},
	}
}
