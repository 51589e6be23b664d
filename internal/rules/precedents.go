package rules

// Precedent is a historical exploit that a rule's weakness has enabled before.
type Precedent struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Date    string `json:"date"`
	Loss    string `json:"loss"`
	Cause   string `json:"cause"`
	Pattern string `json:"pattern"`
}

var precedents = map[string]Precedent{
	"ronin": {
		Key:     "ronin",
		Name:    "Ronin Bridge Hack",
		Date:    "March 2022",
		Loss:    "$625M",
		Cause:   "Validator key compromise (5/9 multisig)",
		Pattern: "Centralized validator set with insufficient key security",
	},
	"wormhole": {
		Key:     "wormhole",
		Name:    "Wormhole Hack",
		Date:    "February 2022",
		Loss:    "$320M",
		Cause:   "Signature verification bypass",
		Pattern: "Missing guardian set verification in VAA validation",
	},
	"nomad": {
		Key:     "nomad",
		Name:    "Nomad Bridge Hack",
		Date:    "August 2022",
		Loss:    "$190M",
		Cause:   "Invalid merkle root accepted as valid",
		Pattern: "Initialization bug allowing zero bytes32 as valid root",
	},
	"harmony": {
		Key:     "harmony",
		Name:    "Harmony Horizon Hack",
		Date:    "June 2022",
		Loss:    "$100M",
		Cause:   "Multi-sig key compromise (2/5)",
		Pattern: "Low threshold multi-sig with poor key management",
	},
	"polynetwork": {
		Key:     "polynetwork",
		Name:    "Poly Network Hack",
		Date:    "August 2021",
		Loss:    "$611M",
		Cause:   "Access control bypass via cross-chain message",
		Pattern: "Keeper role could be changed via cross-chain call",
	},
	"multichain": {
		Key:     "multichain",
		Name:    "Multichain Exploit",
		Date:    "July 2023",
		Loss:    "$130M",
		Cause:   "Admin/MPC key compromise",
		Pattern: "Centralized key management for bridge assets",
	},
}

// LookupPrecedent returns the historical exploit registered under key.
func LookupPrecedent(key string) (Precedent, bool) {
	p, ok := precedents[key]
	return p, ok
}

// PrecedentName returns the display name for key, or "" when unknown.
func PrecedentName(key string) string {
	return precedents[key].Name
}
