// Package sequence detects multi-transaction exploit shapes (sandwiches,
// just-in-time liquidity, front-runs and flash loans) in block-ordered
// transaction logs.
package sequence

import (
	"cmp"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"sentinel/internal/schema"
)

var (
	// ErrUnsortedSequenceInput is returned in strict mode when records are
	// not ordered by block and index.
	ErrUnsortedSequenceInput = errors.New("transaction records are not ordered by block and index")
	// ErrDuplicatePosition is returned when two records claim the same
	// block and index.
	ErrDuplicatePosition = errors.New("duplicate transaction position")
)

// Base confidences per pattern kind.
const (
	sandwichConfidence  = 0.85
	jitConfidence       = 0.8
	frontrunConfidence  = 0.6
	flashLoanConfidence = 0.5

	sameTargetBonus = 0.05
	gasBidBonus     = 0.2
	knownBotBonus   = 0.05
)

// Config controls ordering policy and extends the built-in selector tables.
type Config struct {
	StrictOrdering           bool                         `yaml:"strict_ordering"`
	SwapSelectors            []string                     `yaml:"swap_selectors"`
	AddLiquiditySelectors    []string                     `yaml:"add_liquidity_selectors"`
	RemoveLiquiditySelectors []string                     `yaml:"remove_liquidity_selectors"`
	FlashLoanSelectors       map[string]FlashLoanProvider `yaml:"flash_loan_selectors"`
	KnownBots                map[string]string            `yaml:"known_bots"`
}

// Detector finds exploit shapes in transaction logs. It keeps no state
// between calls.
type Detector struct {
	strict  bool
	catalog *catalog
}

// NewDetector creates a Detector from cfg.
func NewDetector(cfg Config) (*Detector, error) {
	c, err := newCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build selector catalog: %w", err)
	}
	return &Detector{strict: cfg.StrictOrdering, catalog: c}, nil
}

// Scan runs every in-log detector and returns the patterns ordered by block,
// then first participating index, then kind.
func (d *Detector) Scan(txs []TransactionRecord) ([]schema.SequencePattern, error) {
	ordered, err := d.order(txs)
	if err != nil {
		return nil, err
	}

	var patterns []schema.SequencePattern
	patterns = append(patterns, d.sandwiches(ordered)...)
	patterns = append(patterns, d.jits(ordered)...)
	patterns = append(patterns, d.flashLoans(ordered)...)

	slices.SortStableFunc(patterns, func(a, b schema.SequencePattern) int {
		if c := cmp.Compare(a.BlockNumber, b.BlockNumber); c != 0 {
			return c
		}
		if c := cmp.Compare(firstIndex(a), firstIndex(b)); c != 0 {
			return c
		}
		return cmp.Compare(kindRank(a.Kind), kindRank(b.Kind))
	})
	return patterns, nil
}

// DetectSandwich returns every sandwich in txs.
func (d *Detector) DetectSandwich(txs []TransactionRecord) ([]schema.SequencePattern, error) {
	ordered, err := d.order(txs)
	if err != nil {
		return nil, err
	}
	return d.sandwiches(ordered), nil
}

// DetectJIT returns every just-in-time liquidity pattern in txs.
func (d *Detector) DetectJIT(txs []TransactionRecord) ([]schema.SequencePattern, error) {
	ordered, err := d.order(txs)
	if err != nil {
		return nil, err
	}
	return d.jits(ordered), nil
}

// DetectFlashLoans returns one pattern per transaction entering a known
// flash-loan provider.
func (d *Detector) DetectFlashLoans(txs []TransactionRecord) ([]schema.SequencePattern, error) {
	ordered, err := d.order(txs)
	if err != nil {
		return nil, err
	}
	return d.flashLoans(ordered), nil
}

// DetectFrontrun reports whether confirmed front-ran pending: it was placed
// earlier by block and index, calls the same function and comes from a
// different sender. A higher gas bid raises confidence but is not required.
func (d *Detector) DetectFrontrun(pending, confirmed TransactionRecord) (schema.SequencePattern, bool) {
	if comparePosition(confirmed, pending) >= 0 {
		return schema.SequencePattern{}, false
	}
	ps, ok := pending.Selector()
	if !ok {
		return schema.SequencePattern{}, false
	}
	if cs, ok := confirmed.Selector(); !ok || cs != ps {
		return schema.SequencePattern{}, false
	}
	if pending.From == confirmed.From {
		return schema.SequencePattern{}, false
	}

	confidence := frontrunConfidence
	outbid := pending.GasPrice != nil && confirmed.GasPrice != nil && confirmed.GasPrice.Cmp(pending.GasPrice) > 0
	if outbid {
		confidence += gasBidBonus
	}

	p := schema.SequencePattern{
		Kind:        schema.PatternFrontrun,
		BlockNumber: confirmed.BlockNumber,
		TxHashes:    []string{confirmed.Hash.Hex(), pending.Hash.Hex()},
		Roles: map[string]string{
			confirmed.Hash.Hex(): schema.RoleFrontrunner,
			pending.Hash.Hex():   schema.RoleVictim,
		},
		Attacker: confirmed.From.Hex(),
		Victim:   pending.From.Hex(),
		Metadata: map[string]any{
			"selector":      ps.String(),
			"outbid":        outbid,
			"first_index":   confirmed.Index,
			"pending_block": pending.BlockNumber,
		},
		Remediation: Remediation(schema.PatternFrontrun),
	}
	d.annotateBot(&p, confirmed, &confidence)
	p.Confidence = clamp(confidence)
	p.AssignID()
	return p, true
}

// DetectFrontruns checks every pending record against every confirmed one.
// Results follow pending order, then confirmed order.
func (d *Detector) DetectFrontruns(pending, confirmed []TransactionRecord) []schema.SequencePattern {
	var patterns []schema.SequencePattern
	for _, p := range pending {
		for _, c := range confirmed {
			if p.Hash == c.Hash {
				continue
			}
			if pat, ok := d.DetectFrontrun(p, c); ok {
				patterns = append(patterns, pat)
			}
		}
	}
	return patterns
}

// order returns a position-sorted copy of txs.
func (d *Detector) order(txs []TransactionRecord) ([]TransactionRecord, error) {
	ordered := slices.Clone(txs)
	if !slices.IsSortedFunc(ordered, comparePosition) {
		if d.strict {
			return nil, ErrUnsortedSequenceInput
		}
		slices.SortStableFunc(ordered, comparePosition)
	}
	for i := 1; i < len(ordered); i++ {
		if comparePosition(ordered[i-1], ordered[i]) == 0 {
			return nil, fmt.Errorf("%w: block %d index %d", ErrDuplicatePosition, ordered[i].BlockNumber, ordered[i].Index)
		}
	}
	return ordered, nil
}

func (d *Detector) sandwiches(txs []TransactionRecord) []schema.SequencePattern {
	var patterns []schema.SequencePattern
	for w := range windows(txs, 3) {
		if !d.isSandwich(w) {
			continue
		}
		front, victim, back := w.At(0), w.At(1), w.At(2)

		confidence := sandwichConfidence
		if w.SameRecipient(0, 1) {
			confidence += sameTargetBonus
		}

		p := schema.SequencePattern{
			Kind:        schema.PatternSandwich,
			BlockNumber: w.Block(),
			TxHashes:    []string{front.Hash.Hex(), victim.Hash.Hex(), back.Hash.Hex()},
			Roles: map[string]string{
				front.Hash.Hex():  schema.RoleAttackerLeg1,
				victim.Hash.Hex(): schema.RoleVictim,
				back.Hash.Hex():   schema.RoleAttackerLeg2,
			},
			Attacker: front.From.Hex(),
			Victim:   victim.From.Hex(),
			Metadata: map[string]any{
				"first_index":   front.Index,
				"target":        front.To.Hex(),
				"attacker_gas":  new(big.Int).Add(front.GasCost(), back.GasCost()).String(),
				"victim_value":  valueString(victim),
				"victim_target": victim.To.Hex(),
			},
			Remediation: Remediation(schema.PatternSandwich),
		}
		d.annotateBot(&p, front, &confidence)
		p.Confidence = clamp(confidence)
		p.AssignID()
		patterns = append(patterns, p)
	}
	return patterns
}

func (d *Detector) isSandwich(w Window) bool {
	if !w.IncreasingIndex() {
		return false
	}
	if !w.SameSender(0, 2) || w.SameSender(0, 1) {
		return false
	}
	if !w.SameRecipient(0, 2) {
		return false
	}
	for i := range w.Len() {
		if d.catalog.shape(w.At(i)) != ShapeSwap {
			return false
		}
	}
	return true
}

func (d *Detector) jits(txs []TransactionRecord) []schema.SequencePattern {
	var patterns []schema.SequencePattern
	for w := range windows(txs, 3) {
		if !d.isJIT(w) {
			continue
		}
		add, swap, remove := w.At(0), w.At(1), w.At(2)

		confidence := jitConfidence
		p := schema.SequencePattern{
			Kind:        schema.PatternJITLiquidity,
			BlockNumber: w.Block(),
			TxHashes:    []string{add.Hash.Hex(), swap.Hash.Hex(), remove.Hash.Hex()},
			Roles: map[string]string{
				add.Hash.Hex():    schema.RoleLiquidityAdd,
				swap.Hash.Hex():   schema.RoleVictim,
				remove.Hash.Hex(): schema.RoleLiquidityRemove,
			},
			Attacker: add.From.Hex(),
			Victim:   swap.From.Hex(),
			Metadata: map[string]any{
				"first_index": add.Index,
				"pool":        add.To.Hex(),
			},
			Remediation: Remediation(schema.PatternJITLiquidity),
		}
		d.annotateBot(&p, add, &confidence)
		p.Confidence = clamp(confidence)
		p.AssignID()
		patterns = append(patterns, p)
	}
	return patterns
}

func (d *Detector) isJIT(w Window) bool {
	if !w.IncreasingIndex() {
		return false
	}
	if !w.SameSender(0, 2) || w.SameSender(0, 1) {
		return false
	}
	return d.catalog.shape(w.At(0)) == ShapeAddLiquidity &&
		d.catalog.shape(w.At(1)) == ShapeSwap &&
		d.catalog.shape(w.At(2)) == ShapeRemoveLiquidity
}

func (d *Detector) flashLoans(txs []TransactionRecord) []schema.SequencePattern {
	var patterns []schema.SequencePattern
	for i := range txs {
		tx := &txs[i]
		provider, ok := d.catalog.flashLoan(tx)
		if !ok {
			continue
		}

		confidence := flashLoanConfidence
		p := schema.SequencePattern{
			Kind:        schema.PatternFlashLoan,
			BlockNumber: tx.BlockNumber,
			TxHashes:    []string{tx.Hash.Hex()},
			Roles:       map[string]string{tx.Hash.Hex(): schema.RoleBorrower},
			Attacker:    tx.From.Hex(),
			Metadata: map[string]any{
				"first_index": tx.Index,
				"provider":    provider.Name,
				"fee_bps":     provider.FeeBps,
				"lender":      tx.To.Hex(),
			},
			Remediation: Remediation(schema.PatternFlashLoan),
		}
		d.annotateBot(&p, tx, &confidence)
		p.Confidence = clamp(confidence)
		p.AssignID()
		patterns = append(patterns, p)
	}
	return patterns
}

// annotateBot tags patterns whose acting transaction comes from a known bot.
func (d *Detector) annotateBot(p *schema.SequencePattern, actor *TransactionRecord, confidence *float64) {
	name, ok := d.catalog.bots[actor.From]
	if !ok {
		return
	}
	p.Metadata["known_bot"] = name
	*confidence += knownBotBonus
}

func firstIndex(p schema.SequencePattern) uint {
	if v, ok := p.Metadata["first_index"].(uint); ok {
		return v
	}
	return 0
}

func kindRank(k schema.PatternKind) int {
	switch k {
	case schema.PatternSandwich:
		return 0
	case schema.PatternJITLiquidity:
		return 1
	case schema.PatternFrontrun:
		return 2
	}
	return 3
}

func clamp(c float64) float64 {
	return max(0, min(1, c))
}

func valueString(tx *TransactionRecord) string {
	if tx.Value == nil {
		return "0"
	}
	return tx.Value.String()
}
