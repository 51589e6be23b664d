package sequence

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Selector is a 4-byte function selector.
type Selector [4]byte

// String returns the selector as 0x-prefixed lowercase hex.
func (s Selector) String() string {
	return hexutil.Encode(s[:])
}

// ParseSelector parses a 0x-prefixed 8-digit hex selector.
func ParseSelector(s string) (Selector, error) {
	var sel Selector
	b, err := hexutil.Decode(s)
	if err != nil {
		return sel, fmt.Errorf("invalid selector %q: %w", s, err)
	}
	if len(b) != len(sel) {
		return sel, fmt.Errorf("invalid selector %q: want 4 bytes, got %d", s, len(b))
	}
	copy(sel[:], b)
	return sel, nil
}

func mustSelector(s string) Selector {
	sel, err := ParseSelector(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// Shape is the coarse kind of call a transaction makes.
type Shape int

const (
	ShapeOther Shape = iota
	ShapeSwap
	ShapeAddLiquidity
	ShapeRemoveLiquidity
)

func (s Shape) String() string {
	switch s {
	case ShapeSwap:
		return "swap"
	case ShapeAddLiquidity:
		return "add-liquidity"
	case ShapeRemoveLiquidity:
		return "remove-liquidity"
	}
	return "other"
}

// Router and pair entry points.
var (
	// SelectorPairSwap is UniswapV2Pair.swap(uint256,uint256,address,bytes),
	// which doubles as the flash-swap entry point.
	SelectorPairSwap = mustSelector("0x022c0d9f")

	defaultSwapSelectors = []string{
		"0x38ed1739", // swapExactTokensForTokens
		"0x8803dbee", // swapTokensForExactTokens
		"0x7ff36ab5", // swapExactETHForTokens
		"0xfb3bdb41", // swapETHForExactTokens
		"0x18cbafe5", // swapExactTokensForETH
		"0x4a25d94a", // swapTokensForExactETH
		"0x414bf389", // V3 exactInputSingle
		"0xc04b8d59", // V3 exactInput
		"0x022c0d9f", // pair swap
	}
	defaultAddLiquiditySelectors = []string{
		"0xe8e33700", // addLiquidity
		"0xf305d719", // addLiquidityETH
		"0x88316456", // V3 positions mint
		"0x219f5d17", // V3 increaseLiquidity
	}
	defaultRemoveLiquiditySelectors = []string{
		"0xbaa2abde", // removeLiquidity
		"0x02751cec", // removeLiquidityETH
		"0x0c49ccbe", // V3 decreaseLiquidity
	}
)

// FlashLoanProvider describes a known flash-loan entry point.
type FlashLoanProvider struct {
	Name   string `yaml:"name" json:"name"`
	FeeBps int    `yaml:"fee_bps" json:"fee_bps"`
}

var defaultFlashLoanSelectors = map[string]FlashLoanProvider{
	"0xab9c4b5d": {Name: "Aave V2", FeeBps: 9},
	"0xe0232b42": {Name: "Aave V3", FeeBps: 5},
	"0x5cffe9de": {Name: "Balancer", FeeBps: 0},
	"0xd9d98ce4": {Name: "dYdX", FeeBps: 0},
}

var pairFlashSwapProvider = FlashLoanProvider{Name: "Uniswap V2", FeeBps: 30}

var defaultKnownBots = map[string]string{
	"0x00000000000fde22a70e7b18c6f9f5f1de22a70e": "Flashbots Builder",
	"0x98c3d3183c4b8a650614ad179a1a98be0a8d6b8e": "BloXroute",
	"0xa57bd00134b2850b2a1c55860c9e9ea100fdd6cf": "MEV Bot",
	"0x5aa3393e361c2eb342408559309b3e873cd77ef3": "Sandwich Bot",
}

var dexRouters = map[common.Address]string{
	common.HexToAddress("0x7a250d5630b4cf539739df2c5dacb4c659f2488d"): "Uniswap V2",
	common.HexToAddress("0xe592427a0aece92de3edee1f18e0157c05861564"): "Uniswap V3",
	common.HexToAddress("0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f"): "SushiSwap",
	common.HexToAddress("0x1111111254fb6c44bac0bed2854e76f90643097d"): "1inch",
	common.HexToAddress("0xdef1c0ded9bec7f1a1670819833240f027b25eff"): "0x",
}

// catalog resolves selectors to call shapes and flash-loan providers.
type catalog struct {
	shapes     map[Selector]Shape
	flashLoans map[Selector]FlashLoanProvider
	bots       map[common.Address]string
}

func newCatalog(cfg Config) (*catalog, error) {
	c := &catalog{
		shapes:     make(map[Selector]Shape),
		flashLoans: make(map[Selector]FlashLoanProvider),
		bots:       make(map[common.Address]string),
	}

	groups := []struct {
		shape Shape
		lists [][]string
	}{
		{ShapeSwap, [][]string{defaultSwapSelectors, cfg.SwapSelectors}},
		{ShapeAddLiquidity, [][]string{defaultAddLiquiditySelectors, cfg.AddLiquiditySelectors}},
		{ShapeRemoveLiquidity, [][]string{defaultRemoveLiquiditySelectors, cfg.RemoveLiquiditySelectors}},
	}
	for _, g := range groups {
		for _, list := range g.lists {
			for _, s := range list {
				sel, err := ParseSelector(s)
				if err != nil {
					return nil, err
				}
				if prev, ok := c.shapes[sel]; ok && prev != g.shape {
					return nil, fmt.Errorf("selector %s registered as both %s and %s", sel, prev, g.shape)
				}
				c.shapes[sel] = g.shape
			}
		}
	}

	for _, m := range []map[string]FlashLoanProvider{defaultFlashLoanSelectors, cfg.FlashLoanSelectors} {
		for s, p := range m {
			sel, err := ParseSelector(s)
			if err != nil {
				return nil, err
			}
			c.flashLoans[sel] = p
		}
	}

	for _, m := range []map[string]string{defaultKnownBots, cfg.KnownBots} {
		for addr, name := range m {
			if !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("invalid bot address %q", addr)
			}
			c.bots[common.HexToAddress(addr)] = name
		}
	}
	return c, nil
}

func (c *catalog) shape(tx *TransactionRecord) Shape {
	sel, ok := tx.Selector()
	if !ok {
		return ShapeOther
	}
	return c.shapes[sel]
}

// flashLoan returns the provider when tx enters a flash loan. Pair swaps
// count only when they carry callback data.
func (c *catalog) flashLoan(tx *TransactionRecord) (FlashLoanProvider, bool) {
	sel, ok := tx.Selector()
	if !ok {
		return FlashLoanProvider{}, false
	}
	if p, ok := c.flashLoans[sel]; ok {
		return p, true
	}
	if sel == SelectorPairSwap && hasCallbackData(tx.Input) {
		return pairFlashSwapProvider, true
	}
	return FlashLoanProvider{}, false
}

// hasCallbackData reports whether ABI-encoded swap(uint256,uint256,address,bytes)
// call data carries a non-empty bytes argument.
func hasCallbackData(input []byte) bool {
	const word = 32
	args := input[4:]
	if len(args) < 4*word {
		return false
	}
	off := new(big.Int).SetBytes(args[3*word : 4*word])
	if !off.IsUint64() || off.Uint64() > uint64(len(args)-word) {
		return false
	}
	start := int(off.Uint64())
	n := new(big.Int).SetBytes(args[start : start+word])
	return n.Sign() > 0
}
