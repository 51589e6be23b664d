package classify

import (
	"testing"

	"sentinel/internal/rules"
	"sentinel/internal/schema"
)

func TestClassifyProxyKind(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want ProxyKind
	}{
		{"transparent", "contract P is TransparentUpgradeableProxy {}", ProxyTransparent},
		{"uups", "contract V is UUPSUpgradeable {}", ProxyUUPS},
		{"beacon", "contract B is BeaconProxy {}", ProxyBeacon},
		{"minimal", "address c = Clones.clone(impl);", ProxyMinimal},
		{"diamond", "library LibDiamond {}", ProxyDiamond},
		{"metamorphic", "// deployed with CREATE2", ProxyMetamorphic},
		{"unknown", "contract Plain {}", ProxyUnknown},
		{"first match wins", "contract V is UUPSUpgradeable, TransparentUpgradeableProxy {}", ProxyTransparent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.src).Proxy.Kind; got != tt.want {
				t.Errorf("Proxy.Kind = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyBridgeKind(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want BridgeKind
	}{
		{"lock mint", "function lockTokens() external { token.mint(to, amount); }", BridgeLockMint},
		{"burn mint", "function burnAndMint() external {}", BridgeBurnMint},
		{"liquidity pool", "router.addLiquidity(a, b);", BridgeLiquidityPool},
		{"htlc", "bytes32 public hashlock;", BridgeHashTimeLocked},
		{"optimistic", "function submitFraudProof() external {}", BridgeOptimistic},
		{"zk", "require(verifier.verifyProof(p));", BridgeZKRollup},
		{"sidechain", "function onStateSync(bytes data) external {}", BridgeSidechain},
		{"unknown", "contract Token {}", BridgeUnknown},
		{"block is not lock", "uint t = block.timestamp; _mint(a, 1);", BridgeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.src).Bridge.Kind; got != tt.want {
				t.Errorf("Bridge.Kind = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyNeverNil(t *testing.T) {
	c := Classify("")
	if c == nil {
		t.Fatal("Classify returned nil")
	}
	if c.Proxy.Kind != ProxyUnknown || c.Bridge.Kind != BridgeUnknown {
		t.Errorf("empty source kinds = %s/%s, want unknown/unknown", c.Proxy.Kind, c.Bridge.Kind)
	}
	if c.ProxyRelevant() || c.BridgeRelevant() {
		t.Error("empty source should not be proxy or bridge relevant")
	}
}

func TestComponents(t *testing.T) {
	src := `contract TokenVault { function deposit() external {} }
contract GuardianSet { function rotate() external {} }
contract Plain {}
`
	c := Classify(src)
	comps := c.Bridge.Components
	if len(comps) != 2 {
		t.Fatalf("got %d components, want 2: %+v", len(comps), comps)
	}
	if comps[0].Name != "TokenVault" || comps[0].Role != RoleVault {
		t.Errorf("component 0 = %+v, want TokenVault/vault", comps[0])
	}
	if len(comps[0].Functions) != 1 || comps[0].Functions[0] != "deposit" {
		t.Errorf("TokenVault functions = %v, want [deposit]", comps[0].Functions)
	}
	if comps[1].Name != "GuardianSet" || comps[1].Role != RoleValidator {
		t.Errorf("component 1 = %+v, want GuardianSet/validator", comps[1])
	}
	if len(comps[1].Functions) != 1 || comps[1].Functions[0] != "rotate" {
		t.Errorf("GuardianSet functions = %v, want [rotate]", comps[1].Functions)
	}
	if !c.BridgeRelevant() {
		t.Error("guardian keyword should make the source bridge relevant")
	}
}

func TestProxyInfo(t *testing.T) {
	src := `contract Impl is UUPSUpgradeable {
    bytes32 constant SLOT = ` + SlotImplementation + `;
    function initialize() public initializer {}
    function migrate() public reinitializer(2) {}
    uint256[48] private __gap;
}`
	info := Classify(src).Proxy
	if info.Kind != ProxyUUPS {
		t.Errorf("Kind = %s, want uups", info.Kind)
	}
	if info.ImplementationSlot != SlotImplementation {
		t.Errorf("ImplementationSlot = %q", info.ImplementationSlot)
	}
	if !info.HasInitializer || !info.HasReinitializer {
		t.Errorf("HasInitializer/HasReinitializer = %v/%v, want true/true", info.HasInitializer, info.HasReinitializer)
	}
	if info.UpgradeMechanism != "UUPS (implementation-side)" {
		t.Errorf("UpgradeMechanism = %q", info.UpgradeMechanism)
	}
	if len(info.StorageGaps) != 1 || info.StorageGaps[0] != 48 {
		t.Errorf("StorageGaps = %v, want [48]", info.StorageGaps)
	}

	s := Classify(src).Summary()
	if s.ProxyKind != "uups" || s.BridgeKind != "unknown" || s.ImplementationSlot != SlotImplementation {
		t.Errorf("Summary() = %+v", s)
	}
}

func TestApplies(t *testing.T) {
	uupsOnly := &rules.Rule{ID: "P-1", Scope: rules.ScopeProxy, ProxyKinds: []string{"uups"}}
	anyProxy := &rules.Rule{ID: "P-2", Scope: rules.ScopeProxy}
	bridge := &rules.Rule{ID: "B-1", Scope: rules.ScopeBridge}
	general := &rules.Rule{ID: "G-1"}

	uups := Classify("contract V is UUPSUpgradeable {}")
	transparent := Classify("contract P is TransparentUpgradeableProxy {}")
	plain := Classify("contract Plain {}")

	tests := []struct {
		name string
		c    *Classification
		r    *rules.Rule
		want bool
	}{
		{"uups gate on uups", uups, uupsOnly, true},
		{"uups gate on transparent", transparent, uupsOnly, false},
		{"proxy rule on transparent", transparent, anyProxy, true},
		{"proxy rule on plain", plain, anyProxy, false},
		{"bridge rule on plain", plain, bridge, false},
		{"general rule on plain", plain, general, true},
	}
	for _, tt := range tests {
		if got := tt.c.Applies(tt.r); got != tt.want {
			t.Errorf("%s: Applies() = %v, want %v", tt.name, got, tt.want)
		}
	}

	if plain.Admits(anyProxy) != true {
		t.Error("Admits should ignore scope")
	}
	if plain.Admits(uupsOnly) != false {
		t.Error("Admits should honor the proxy-kind gate")
	}
}

func TestSelector(t *testing.T) {
	tests := map[string]string{
		"transfer(address,uint256)":                                      "0xa9059cbb",
		"burn(uint256)":                                                  "0x42966c68",
		"collate_propagate_storage(bytes16)":                             "0x42966c68",
		"swapExactTokensForTokens(uint256,uint256,address[],address,uint256)": "0x38ed1739",
	}
	for sig, want := range tests {
		if got := Selector(sig); got != want {
			t.Errorf("Selector(%s) = %s, want %s", sig, got, want)
		}
	}
}

func TestCanonicalSignature(t *testing.T) {
	tests := []struct {
		name, params, want string
	}{
		{"f", "", "f()"},
		{"f", "uint a", "f(uint256)"},
		{"g", "address to, uint amount", "g(address,uint256)"},
		{"h", "bytes calldata data, int[] memory xs", "h(bytes,int256[])"},
	}
	for _, tt := range tests {
		if got := canonicalSignature(tt.name, tt.params); got != tt.want {
			t.Errorf("canonicalSignature(%q, %q) = %q, want %q", tt.name, tt.params, got, tt.want)
		}
	}
}

func TestSelectorCollision(t *testing.T) {
	src := "function burn(uint256 amount) external {}\nfunction collate_propagate_storage(bytes16 x) external {}\n"
	findings := StructuralFindings(src, Classify(src), false)

	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	f := findings[0]
	if f.RuleID != "PROXY-007" || f.Line != 2 {
		t.Errorf("finding = %s line %d, want PROXY-007 line 2", f.RuleID, f.Line)
	}
	if f.Source != schema.SourceStructure || f.Fingerprint == "" {
		t.Error("structural findings should be sealed with source structure")
	}
}

func TestSameSignatureIsNotCollision(t *testing.T) {
	src := "function f(uint a) external;\nfunction f(uint256 b) external {}\n"
	if findings := StructuralFindings(src, Classify(src), false); len(findings) != 0 {
		t.Errorf("got %d findings, want 0", len(findings))
	}
}

func TestStorageGapFindings(t *testing.T) {
	small := "contract Plain {\n  uint256[30] private __gap;\n}"
	if got := StructuralFindings(small, Classify(small), false); len(got) != 1 || got[0].RuleID != "PROXY-008" || got[0].Line != 2 {
		t.Errorf("small gap findings = %+v", got)
	}
	if got := StructuralFindings(small, Classify(small), true); len(got) != 0 {
		t.Errorf("narrowed scan of non-proxy source returned %d findings", len(got))
	}

	full := "contract Plain {\n  uint256[50] private __gap;\n}"
	if got := StructuralFindings(full, Classify(full), false); len(got) != 0 {
		t.Errorf("50-slot gap should not be flagged, got %d", len(got))
	}

	huge := "contract Plain {\n  uint256[99999999999999999999] private __gap;\n}"
	if got := StructuralFindings(huge, Classify(huge), false); len(got) != 0 {
		t.Errorf("unparseable gap size should not be flagged, got %+v", got)
	}
}

func TestThresholdFindings(t *testing.T) {
	low := "contract ValidatorSet {\n  uint256 threshold = 3;\n  uint256 totalValidators = 9;\n}"
	c := Classify(low)
	if c.Bridge.Threshold != 3 || c.Bridge.TotalValidators != 9 {
		t.Fatalf("Threshold/Total = %d/%d, want 3/9", c.Bridge.Threshold, c.Bridge.TotalValidators)
	}

	findings := StructuralFindings(low, c, true)
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	if findings[0].RuleID != "BRIDGE-013" || findings[0].Line != 2 {
		t.Errorf("finding = %s line %d", findings[0].RuleID, findings[0].Line)
	}
	if findings[0].Precedent != "Ronin Bridge Hack" {
		t.Errorf("Precedent = %q", findings[0].Precedent)
	}

	ok := "contract ValidatorSet {\n  uint256 threshold = 6;\n  uint256 totalValidators = 9;\n}"
	if got := StructuralFindings(ok, Classify(ok), true); len(got) != 0 {
		t.Errorf("2/3 threshold should pass, got %d findings", len(got))
	}

	large := "contract ValidatorSet {\n  uint256 threshold = 1;\n  uint256 totalValidators = 4611686018427387904;\n}"
	c = Classify(large)
	if c.Bridge.TotalValidators != 4611686018427387904 {
		t.Fatalf("TotalValidators = %d", c.Bridge.TotalValidators)
	}
	if got := StructuralFindings(large, c, true); len(got) != 1 || got[0].RuleID != "BRIDGE-013" {
		t.Errorf("large validator total findings = %+v, want one BRIDGE-013", got)
	}
}
