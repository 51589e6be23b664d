package classify

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"

	"sentinel/internal/rules"
	"sentinel/internal/schema"
)

// MinStorageGap is the conventional storage gap size for upgradeable bases.
const MinStorageGap = 50

var functionSignaturePattern = regexp.MustCompile(`function\s+(\w+)\s*\(([^)]*)\)`)

// Selector returns the 4-byte function selector of a canonical signature
// such as "transfer(address,uint256)", hex encoded with a 0x prefix.
func Selector(signature string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return "0x" + hex.EncodeToString(h.Sum(nil)[:4])
}

// canonicalType normalizes Solidity type aliases to their ABI spelling.
func canonicalType(t string) string {
	switch t {
	case "uint":
		return "uint256"
	case "int":
		return "int256"
	case "byte":
		return "bytes1"
	}
	if strings.HasPrefix(t, "uint[") {
		return "uint256" + t[len("uint"):]
	}
	if strings.HasPrefix(t, "int[") {
		return "int256" + t[len("int"):]
	}
	return t
}

// canonicalSignature builds name(type1,type2) from a declared parameter list.
func canonicalSignature(name, params string) string {
	var types []string
	for _, p := range strings.Split(params, ",") {
		fields := strings.Fields(p)
		if len(fields) == 0 {
			continue
		}
		types = append(types, canonicalType(fields[0]))
	}
	return name + "(" + strings.Join(types, ",") + ")"
}

// StructuralFindings runs the checks that need arithmetic rather than
// pattern matching: selector collisions, undersized storage gaps and
// validator thresholds below two thirds. When narrow is true the proxy and
// bridge checks only run for sources classified as relevant.
func StructuralFindings(src string, c *Classification, narrow bool) []schema.Finding {
	var findings []schema.Finding

	if !narrow || c.ProxyRelevant() {
		findings = append(findings, selectorCollisions(src)...)
		findings = append(findings, storageGapFindings(src)...)
	}
	if !narrow || c.BridgeRelevant() {
		findings = append(findings, thresholdFindings(src, c)...)
	}

	for i := range findings {
		findings[i].Source = schema.SourceStructure
		findings[i].Seal()
	}
	return findings
}

func selectorCollisions(src string) []schema.Finding {
	type declared struct {
		signature string
	}
	bySelector := make(map[string]declared)
	var findings []schema.Finding

	for _, loc := range functionSignaturePattern.FindAllStringSubmatchIndex(src, -1) {
		name := src[loc[2]:loc[3]]
		params := src[loc[4]:loc[5]]
		sig := canonicalSignature(name, params)
		sel := Selector(sig)

		prev, ok := bySelector[sel]
		if !ok {
			bySelector[sel] = declared{signature: sig}
			continue
		}
		if prev.signature == sig {
			continue
		}

		findings = append(findings, schema.Finding{
			RuleID:      "PROXY-007",
			Title:       "Function Selector Collision",
			Severity:    schema.SeverityHigh,
			Category:    schema.CategoryProxy,
			Description: fmt.Sprintf("Functions `%s` and `%s` share selector %s.", prev.signature, sig, sel),
			Remediation: "Rename one of the functions to avoid selector collision.",
			Line:        schema.LineAt(src, loc[0]),
			Offset:      loc[0],
			Excerpt:     schema.TruncateExcerpt(src[loc[0]:loc[1]], schema.MaxExcerptLength),
			Confidence:  0.9,
		})
	}
	return findings
}

func storageGapFindings(src string) []schema.Finding {
	var findings []schema.Finding
	for _, loc := range storageGapPattern.FindAllStringSubmatchIndex(src, -1) {
		size, err := strconv.Atoi(src[loc[2]:loc[3]])
		if err != nil || size >= MinStorageGap {
			continue
		}
		findings = append(findings, schema.Finding{
			RuleID:      "PROXY-008",
			Title:       "Insufficient Storage Gap Size",
			Severity:    schema.SeverityLow,
			Category:    schema.CategoryProxy,
			Description: fmt.Sprintf("Storage gap of %d slots found. Standard practice is %d slots for future-proofing.", size, MinStorageGap),
			Remediation: "Consider using `uint256[50] private __gap;` for more flexibility.",
			Line:        schema.LineAt(src, loc[0]),
			Offset:      loc[0],
			Excerpt:     schema.TruncateExcerpt(src[loc[0]:loc[1]], schema.MaxExcerptLength),
			Confidence:  0.9,
		})
	}
	return findings
}

// thresholdFindings reports a declared validator threshold that is below two
// thirds of the declared validator total.
func thresholdFindings(src string, c *Classification) []schema.Finding {
	threshold, total := c.Bridge.Threshold, c.Bridge.TotalValidators
	if threshold <= 0 || total <= 0 {
		return nil
	}
	lhs := new(big.Int).Mul(big.NewInt(int64(threshold)), big.NewInt(3))
	rhs := new(big.Int).Mul(big.NewInt(int64(total)), big.NewInt(2))
	if lhs.Cmp(rhs) >= 0 {
		return nil
	}

	f := schema.Finding{
		RuleID:      "BRIDGE-013",
		Title:       "Insufficient Validator Threshold",
		Severity:    schema.SeverityHigh,
		Category:    schema.CategoryAccessControl,
		Description: fmt.Sprintf("Threshold %d/%d is below 2/3 Byzantine tolerance. Attacker needs to compromise fewer validators.", threshold, total),
		Remediation: "Set threshold to at least 2/3 of validators.",
		Confidence:  0.75,
		Precedent:   rules.PrecedentName("ronin"),
	}
	if loc := thresholdPattern.FindStringIndex(src); loc != nil {
		f.Line = schema.LineAt(src, loc[0])
		f.Offset = loc[0]
		f.Excerpt = schema.TruncateExcerpt(src[loc[0]:loc[1]], schema.MaxExcerptLength)
	}
	return []schema.Finding{f}
}
