package sequence

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// highGasPrice marks bids typical of priority gas auctions.
var highGasPrice = new(big.Int).Mul(big.NewInt(100), big.NewInt(params.GWei))

// Profile lists MEV indicators of a single transaction.
type Profile struct {
	KnownBot     string   `json:"known_bot,omitempty"`
	DEX          string   `json:"dex,omitempty"`
	Shape        string   `json:"shape"`
	FlashLoan    string   `json:"flash_loan,omitempty"`
	HighGasPrice bool     `json:"high_gas_price"`
	Risk         string   `json:"risk"`
	Indicators   []string `json:"indicators,omitempty"`
}

// Inspect profiles tx on its own, without looking at neighbors.
func (d *Detector) Inspect(tx TransactionRecord) Profile {
	p := Profile{Risk: "low", Shape: d.catalog.shape(&tx).String()}

	if name, ok := d.catalog.bots[tx.From]; ok {
		p.KnownBot = name
		p.Risk = "high"
		p.Indicators = append(p.Indicators, "Known MEV bot address")
	}
	if dex, ok := dexRouters[tx.To]; ok {
		p.DEX = dex
		p.Indicators = append(p.Indicators, "Targets DEX: "+dex)
	}
	if tx.GasPrice != nil && tx.GasPrice.Cmp(highGasPrice) > 0 {
		p.HighGasPrice = true
		if p.Risk == "low" {
			p.Risk = "medium"
		}
		p.Indicators = append(p.Indicators, "High gas price (potential priority gas auction)")
	}
	if p.Shape == ShapeSwap.String() {
		p.Indicators = append(p.Indicators, "Contains swap operation")
	}
	if provider, ok := d.catalog.flashLoan(&tx); ok {
		p.FlashLoan = provider.Name
		p.Risk = "high"
		p.Indicators = append(p.Indicators, "Flash loan detected")
	}
	return p
}

// IsKnownBot reports whether addr is a known MEV bot.
func (d *Detector) IsKnownBot(addr common.Address) bool {
	_, ok := d.catalog.bots[addr]
	return ok
}
