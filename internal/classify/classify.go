// Package classify recognizes the architecture of a contract source: the
// upgradeable proxy pattern it implements, the cross-chain bridge design it
// follows and the roles of the contracts it declares. Classification narrows
// which rule families are worth evaluating.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"sentinel/internal/rules"
	"sentinel/internal/schema"
)

// ProxyKind is the upgradeable proxy pattern of a source.
type ProxyKind string

const (
	ProxyTransparent ProxyKind = "transparent"
	ProxyUUPS        ProxyKind = "uups"
	ProxyBeacon      ProxyKind = "beacon"
	ProxyMinimal     ProxyKind = "minimal"
	ProxyDiamond     ProxyKind = "diamond"
	ProxyMetamorphic ProxyKind = "metamorphic"
	ProxyUnknown     ProxyKind = "unknown"
)

// BridgeKind is the cross-chain bridge design of a source.
type BridgeKind string

const (
	BridgeLockMint       BridgeKind = "lock-mint"
	BridgeBurnMint       BridgeKind = "burn-mint"
	BridgeLiquidityPool  BridgeKind = "liquidity-pool"
	BridgeHashTimeLocked BridgeKind = "hash-time-locked"
	BridgeOptimistic     BridgeKind = "optimistic"
	BridgeZKRollup       BridgeKind = "zk-rollup"
	BridgeSidechain      BridgeKind = "sidechain"
	BridgeUnknown        BridgeKind = "unknown"
)

// Component roles.
const (
	RoleVault     = "vault"
	RoleValidator = "validator"
	RoleRelayer   = "relayer"
	RoleOracle    = "oracle"
	RoleRouter    = "router"
	RoleToken     = "token"
)

// EIP-1967 storage slots.
const (
	SlotImplementation = "0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc"
	SlotAdmin          = "0xb53127684a568b3173ae13b9f8a6016e243e63b6e8ee1178d6a717850b5d6103"
	SlotBeacon         = "0xa3f0ad74e5423aebfd80d3ef4346578335a9a72aeaee59ff6cb3582b35133d50"
)

type proxySignature struct {
	kind     ProxyKind
	patterns []*regexp.Regexp
}

type bridgeSignature struct {
	kind     BridgeKind
	patterns []*regexp.Regexp
}

type roleSignature struct {
	role    string
	pattern *regexp.Regexp
}

func compileAll(prefix string, exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(prefix + e)
	}
	return out
}

// Signature lists are evaluated in order; the first kind with a matching
// pattern wins.
var proxySignatures = []proxySignature{
	{ProxyTransparent, compileAll("", `TransparentUpgradeableProxy`, `_IMPLEMENTATION_SLOT`, `_ADMIN_SLOT`)},
	{ProxyUUPS, compileAll("", `UUPSUpgradeable`, `_authorizeUpgrade`, `proxiableUUID`)},
	{ProxyBeacon, compileAll("", `BeaconProxy`, `IBeacon`, `_BEACON_SLOT`)},
	{ProxyMinimal, compileAll("", `clone\s*\(`, `0x3d602d80600a3d3981f3363d3d373d3d3d363d73`, `EIP-1167`, `LibClone`)},
	{ProxyDiamond, compileAll("", `DiamondCut`, `IDiamondCut`, `facetAddress`, `LibDiamond`, `DiamondLoupe`)},
	{ProxyMetamorphic, compileAll("", `CREATE2`, `selfdestruct`, `0x5860208158601c335a63`)},
}

var bridgeSignatures = []bridgeSignature{
	{BridgeLockMint, compileAll("(?i)", `\block.*mint`, `deposit.*wrap`)},
	{BridgeBurnMint, compileAll("(?i)", `burn.*mint`)},
	{BridgeLiquidityPool, compileAll("(?i)", `addLiquidity`, `removeLiquidity`, `swap.*pool`)},
	{BridgeHashTimeLocked, compileAll("(?i)", `hashlock`, `timelock`, `HTLC`, `secretHash`)},
	{BridgeOptimistic, compileAll("(?i)", `fraud.*proof`, `challenge.*period`, `dispute`)},
	{BridgeZKRollup, compileAll("(?i)", `zkProof`, `verifyProof`, `snark`, `plonk`)},
	{BridgeSidechain, compileAll("(?i)", `stateSync`, `StateSender`, `checkpoint`, `childChain`, `rootChain`)},
}

var roleSignatures = []roleSignature{
	{RoleVault, regexp.MustCompile(`(?i)vault|treasury|escrow|lock`)},
	{RoleValidator, regexp.MustCompile(`(?i)validator|guardian|keeper|signer`)},
	{RoleRelayer, regexp.MustCompile(`(?i)relayer|messenger|executor|bridge`)},
	{RoleOracle, regexp.MustCompile(`(?i)oracle|pricef|datafeed`)},
	{RoleRouter, regexp.MustCompile(`(?i)router|gateway|portal`)},
	{RoleToken, regexp.MustCompile(`(?i)wrapped|bridged|synth`)},
}

var (
	proxyKeywords  = []string{"proxy", "upgradeable", "initializable", "uups", "beacon"}
	bridgeKeywords = []string{"bridge", "crosschain", "relay", "validator", "guardian"}

	initializerFuncPattern = regexp.MustCompile(`function\s+\w+\s*\([^)]*\)[^{]*\binitializer\b`)
	reinitializerPattern   = regexp.MustCompile(`reinitializer\s*\(\s*\d+\s*\)`)
	storageGapPattern      = regexp.MustCompile(`(?i)uint256\[\s*(\d+)\s*\]\s+(?:private|internal)?\s*__gap`)
	contractNamePattern    = regexp.MustCompile(`contract\s+(\w+)`)
	contractBodyPattern    = regexp.MustCompile(`\A[^{]*\{([^}]+)\}`)
	functionNamePattern    = regexp.MustCompile(`function\s+(\w+)`)
	thresholdPattern       = regexp.MustCompile(`(?:threshold|required|minValidators)\s*=\s*(\d+)`)
	validatorTotalPattern  = regexp.MustCompile(`(?:totalValidators|validatorCount|numValidators)\s*=\s*(\d+)`)

	slotPatterns = map[string]*regexp.Regexp{
		"implementation": regexp.MustCompile(`(?i)bytes32.*implementation.*=.*0x([a-f0-9]{64})`),
		"admin":          regexp.MustCompile(`(?i)bytes32.*admin.*=.*0x([a-f0-9]{64})`),
		"beacon":         regexp.MustCompile(`(?i)bytes32.*beacon.*=.*0x([a-f0-9]{64})`),
	}
	standardSlots = map[string]string{
		"implementation": SlotImplementation,
		"admin":          SlotAdmin,
		"beacon":         SlotBeacon,
	}
)

// Component is a contract declared in the source together with its role.
type Component struct {
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	Functions []string `json:"functions,omitempty"`
}

// ProxyInfo describes the upgradeable proxy aspects of a source.
type ProxyInfo struct {
	Kind               ProxyKind `json:"kind"`
	ImplementationSlot string    `json:"implementation_slot,omitempty"`
	AdminSlot          string    `json:"admin_slot,omitempty"`
	BeaconSlot         string    `json:"beacon_slot,omitempty"`
	HasInitializer     bool      `json:"has_initializer"`
	HasReinitializer   bool      `json:"has_reinitializer"`
	UpgradeMechanism   string    `json:"upgrade_mechanism"`
	StorageGaps        []int     `json:"storage_gaps,omitempty"`
}

// BridgeInfo describes the bridge aspects of a source. Threshold and
// TotalValidators are zero when the source does not declare them.
type BridgeInfo struct {
	Kind            BridgeKind  `json:"kind"`
	Components      []Component `json:"components,omitempty"`
	Threshold       int         `json:"threshold,omitempty"`
	TotalValidators int         `json:"total_validators,omitempty"`
}

// Classification is the structural profile of a source.
type Classification struct {
	Proxy  ProxyInfo  `json:"proxy"`
	Bridge BridgeInfo `json:"bridge"`

	proxyKeyword  bool
	bridgeKeyword bool
}

// Classify profiles src. It never returns nil; unrecognized architectures
// are reported as unknown.
func Classify(src string) *Classification {
	lower := strings.ToLower(src)
	c := &Classification{
		Proxy:         classifyProxy(src),
		Bridge:        classifyBridge(src),
		proxyKeyword:  containsAny(lower, proxyKeywords),
		bridgeKeyword: containsAny(lower, bridgeKeywords),
	}
	return c
}

// ProxyRelevant reports whether proxy rules should be evaluated.
func (c *Classification) ProxyRelevant() bool {
	return c.Proxy.Kind != ProxyUnknown || c.proxyKeyword
}

// BridgeRelevant reports whether bridge rules should be evaluated.
func (c *Classification) BridgeRelevant() bool {
	return c.Bridge.Kind != BridgeUnknown || c.bridgeKeyword
}

// Applies reports whether rule r is relevant to this source. General rules
// always apply; scoped rules apply when their family is relevant and their
// proxy-kind gate admits the detected kind.
func (c *Classification) Applies(r *rules.Rule) bool {
	switch r.EffectiveScope() {
	case rules.ScopeProxy:
		return c.ProxyRelevant() && c.Admits(r)
	case rules.ScopeBridge:
		return c.BridgeRelevant()
	}
	return c.Admits(r)
}

// Admits applies only the rule's proxy-kind gate. It is used when scope
// narrowing is disabled.
func (c *Classification) Admits(r *rules.Rule) bool {
	return r.AppliesToProxyKind(string(c.Proxy.Kind))
}

// Summary converts the classification for inclusion in an AnalysisResult.
func (c *Classification) Summary() *schema.Structure {
	s := &schema.Structure{
		ProxyKind:          string(c.Proxy.Kind),
		BridgeKind:         string(c.Bridge.Kind),
		ImplementationSlot: c.Proxy.ImplementationSlot,
		AdminSlot:          c.Proxy.AdminSlot,
		BeaconSlot:         c.Proxy.BeaconSlot,
		HasInitializer:     c.Proxy.HasInitializer,
		HasReinitializer:   c.Proxy.HasReinitializer,
		UpgradeMechanism:   c.Proxy.UpgradeMechanism,
	}
	for _, comp := range c.Bridge.Components {
		s.Components = append(s.Components, schema.Component{Name: comp.Name, Role: comp.Role})
	}
	return s
}

func classifyProxy(src string) ProxyInfo {
	info := ProxyInfo{Kind: ProxyUnknown}

detect:
	for _, sig := range proxySignatures {
		for _, re := range sig.patterns {
			if re.MatchString(src) {
				info.Kind = sig.kind
				break detect
			}
		}
	}

	info.ImplementationSlot = findSlot(src, "implementation")
	info.AdminSlot = findSlot(src, "admin")
	info.BeaconSlot = findSlot(src, "beacon")
	info.HasInitializer = initializerFuncPattern.MatchString(src)
	info.HasReinitializer = reinitializerPattern.MatchString(src)
	info.UpgradeMechanism = upgradeMechanism(info.Kind)

	for _, m := range storageGapPattern.FindAllStringSubmatch(src, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			info.StorageGaps = append(info.StorageGaps, n)
		}
	}
	return info
}

func upgradeMechanism(kind ProxyKind) string {
	switch kind {
	case ProxyUUPS:
		return "UUPS (implementation-side)"
	case ProxyTransparent:
		return "Transparent (admin-side)"
	case ProxyBeacon:
		return "Beacon (beacon contract)"
	case ProxyDiamond:
		return "Diamond (facet cuts)"
	case ProxyMinimal:
		return "Minimal clone (not upgradeable)"
	case ProxyMetamorphic:
		return "Metamorphic (redeploy at same address)"
	}
	return "Unknown"
}

// findSlot returns the EIP-1967 slot if the source uses it, otherwise the
// first custom bytes32 constant whose declaration names the slot type.
func findSlot(src, slotType string) string {
	if std := standardSlots[slotType]; strings.Contains(src, std) {
		return std
	}
	if m := slotPatterns[slotType].FindStringSubmatch(src); m != nil {
		return "0x" + strings.ToLower(m[1])
	}
	return ""
}

func classifyBridge(src string) BridgeInfo {
	info := BridgeInfo{Kind: BridgeUnknown}

detect:
	for _, sig := range bridgeSignatures {
		for _, re := range sig.patterns {
			if re.MatchString(src) {
				info.Kind = sig.kind
				break detect
			}
		}
	}

	info.Components = detectComponents(src)

	if m := thresholdPattern.FindStringSubmatch(src); m != nil {
		info.Threshold, _ = strconv.Atoi(m[1])
	}
	if m := validatorTotalPattern.FindStringSubmatch(src); m != nil {
		info.TotalValidators, _ = strconv.Atoi(m[1])
	}
	return info
}

// detectComponents assigns each declared contract the first role whose
// pattern matches its name. Contracts matching no role are skipped.
func detectComponents(src string) []Component {
	var comps []Component
	seen := make(map[string]bool)

	for _, loc := range contractNamePattern.FindAllStringSubmatchIndex(src, -1) {
		name := src[loc[2]:loc[3]]
		if seen[name] {
			continue
		}
		seen[name] = true

		for _, sig := range roleSignatures {
			if !sig.pattern.MatchString(name) {
				continue
			}
			comps = append(comps, Component{
				Name:      name,
				Role:      sig.role,
				Functions: contractFunctions(src[loc[1]:]),
			})
			break
		}
	}
	return comps
}

// contractFunctions lists the functions declared before the first closing
// brace of the contract body that follows a contract name. rest starts right
// after the name.
func contractFunctions(rest string) []string {
	m := contractBodyPattern.FindStringSubmatch(rest)
	if m == nil {
		return nil
	}
	var fns []string
	for _, fm := range functionNamePattern.FindAllStringSubmatch(m[1], -1) {
		fns = append(fns, fm[1])
	}
	return fns
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
