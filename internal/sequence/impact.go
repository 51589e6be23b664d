package sequence

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// MaxPriceImpactBps caps the estimated price impact at 50%.
const MaxPriceImpactBps = 5000

// Sandwich gas assumptions: two legs of roughly 200k gas at 50 gwei.
const (
	sandwichGas      = 400_000
	sandwichGasPrice = 50 * params.GWei
)

// SandwichImpact is a rough profitability estimate for sandwiching a trade.
// It is a heuristic for reports and never feeds detection.
type SandwichImpact struct {
	PriceImpactBps  int64    `json:"price_impact_bps"`
	EstimatedProfit *big.Int `json:"estimated_profit"`
	GasCost         *big.Int `json:"gas_cost"`
	NetProfit       *big.Int `json:"net_profit"`
	Profitable      bool     `json:"profitable"`
}

// EstimateSandwichImpact estimates the attacker's return on sandwiching a
// trade of victimValue against liquidity, using the constant-product
// approximation impact = value × 10000 / liquidity.
func EstimateSandwichImpact(victimValue, liquidity *big.Int) SandwichImpact {
	impact := priceImpactBps(victimValue, liquidity)

	profit := new(big.Int)
	if victimValue != nil {
		profit.Mul(victimValue, big.NewInt(impact))
		profit.Quo(profit, big.NewInt(10_000))
	}

	gas := new(big.Int).Mul(big.NewInt(sandwichGas), big.NewInt(sandwichGasPrice))
	net := new(big.Int).Sub(profit, gas)

	return SandwichImpact{
		PriceImpactBps:  impact,
		EstimatedProfit: profit,
		GasCost:         gas,
		NetProfit:       net,
		Profitable:      net.Sign() > 0,
	}
}

func priceImpactBps(value, liquidity *big.Int) int64 {
	if value == nil || liquidity == nil || liquidity.Sign() <= 0 || value.Sign() <= 0 {
		return 0
	}
	bps := new(big.Int).Mul(value, big.NewInt(10_000))
	bps.Quo(bps, liquidity)
	if bps.Cmp(big.NewInt(MaxPriceImpactBps)) > 0 {
		return MaxPriceImpactBps
	}
	return bps.Int64()
}
