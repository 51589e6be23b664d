package schema

import (
	"github.com/google/uuid"
)

// PatternKind names a multi-transaction exploit shape.
type PatternKind string

const (
	PatternSandwich     PatternKind = "sandwich"
	PatternJITLiquidity PatternKind = "jit-liquidity"
	PatternFrontrun     PatternKind = "frontrun"
	PatternFlashLoan    PatternKind = "flash-loan"
)

// IsValid checks if the pattern kind is known.
func (k PatternKind) IsValid() bool {
	switch k {
	case PatternSandwich, PatternJITLiquidity, PatternFrontrun, PatternFlashLoan:
		return true
	}
	return false
}

// Transaction roles inside a detected pattern.
const (
	RoleAttackerLeg1    = "attacker-leg-1"
	RoleVictim          = "victim"
	RoleAttackerLeg2    = "attacker-leg-2"
	RoleLiquidityAdd    = "liquidity-add"
	RoleLiquidityRemove = "liquidity-remove"
	RoleFrontrunner     = "frontrunner"
	RoleBorrower        = "borrower"
)

var patternNamespace = uuid.MustParse("b3e0d7a4-19c2-5f6e-8d43-0a7c5e21f9b8")

// SequencePattern is a detected multi-transaction exploit.
type SequencePattern struct {
	ID          uuid.UUID         `json:"id"`
	Kind        PatternKind       `json:"kind"`
	BlockNumber uint64            `json:"block_number"`
	TxHashes    []string          `json:"tx_hashes"`
	Roles       map[string]string `json:"roles"`
	Attacker    string            `json:"attacker,omitempty"`
	Victim      string            `json:"victim,omitempty"`
	Confidence  float64           `json:"confidence"`
	Remediation []string          `json:"remediation,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
}

// AssignID derives a stable ID from the kind and the participating hashes.
func (p *SequencePattern) AssignID() {
	key := string(p.Kind)
	for _, h := range p.TxHashes {
		key += "|" + h
	}
	p.ID = uuid.NewSHA1(patternNamespace, []byte(key))
}

// Level is the coarse risk band derived from a score.
type Level string

const (
	LevelSafe     Level = "safe"
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Component is a contract detected in a source file together with its role.
type Component struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Structure summarizes the architectural classification of a source file.
type Structure struct {
	ProxyKind          string      `json:"proxy_kind"`
	BridgeKind         string      `json:"bridge_kind"`
	Components         []Component `json:"components,omitempty"`
	ImplementationSlot string      `json:"implementation_slot,omitempty"`
	AdminSlot          string      `json:"admin_slot,omitempty"`
	BeaconSlot         string      `json:"beacon_slot,omitempty"`
	HasInitializer     bool        `json:"has_initializer"`
	HasReinitializer   bool        `json:"has_reinitializer"`
	UpgradeMechanism   string      `json:"upgrade_mechanism,omitempty"`
}

// AdapterStatus records how an external collaborator run ended.
type AdapterStatus struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Findings int    `json:"findings"`
	Error    string `json:"error,omitempty"`
}

// AnalysisResult is the aggregate outcome of one scan.
type AnalysisResult struct {
	Findings []Finding         `json:"findings"`
	Patterns []SequencePattern `json:"patterns,omitempty"`

	Score float64 `json:"score"`
	Level Level   `json:"level"`

	BySeverity    map[Severity]int    `json:"by_severity"`
	ByCategory    map[Category]int    `json:"by_category"`
	ByPatternKind map[PatternKind]int `json:"by_pattern_kind,omitempty"`

	TotalFindings        int `json:"total_findings"`
	LikelyFalsePositives int `json:"likely_false_positives"`

	Structure *Structure      `json:"structure,omitempty"`
	Adapters  []AdapterStatus `json:"adapters,omitempty"`
}
