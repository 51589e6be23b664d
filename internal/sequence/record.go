package sequence

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TransactionRecord is one transaction of a block-ordered log. Records are
// owned by the caller and never modified by the detector.
type TransactionRecord struct {
	Hash        common.Hash    `json:"hash"`
	From        common.Address `json:"from"`
	To          common.Address `json:"to"`
	Input       []byte         `json:"input"`
	Value       *big.Int       `json:"value"`
	GasPrice    *big.Int       `json:"gasPrice"`
	GasUsed     uint64         `json:"gasUsed"`
	BlockNumber uint64         `json:"blockNumber"`
	Index       uint           `json:"transactionIndex"`
}

// Selector returns the 4-byte function selector of the call data and false
// when the input is too short to carry one.
func (tx *TransactionRecord) Selector() (Selector, bool) {
	var s Selector
	if len(tx.Input) < len(s) {
		return s, false
	}
	copy(s[:], tx.Input[:len(s)])
	return s, true
}

// GasCost returns GasUsed × GasPrice in wei.
func (tx *TransactionRecord) GasCost() *big.Int {
	if tx.GasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(tx.GasUsed), tx.GasPrice)
}

// comparePosition orders records by block, then by index inside the block.
func comparePosition(a, b TransactionRecord) int {
	if c := cmp.Compare(a.BlockNumber, b.BlockNumber); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// rpcTransaction is the JSON-RPC representation of a mined transaction with
// its receipt's gasUsed merged in.
type rpcTransaction struct {
	Hash             common.Hash     `json:"hash"`
	From             common.Address  `json:"from"`
	To               *common.Address `json:"to"`
	Input            hexutil.Bytes   `json:"input"`
	Data             hexutil.Bytes   `json:"data"`
	Value            *hexutil.Big    `json:"value"`
	GasPrice         *hexutil.Big    `json:"gasPrice"`
	GasUsed          *hexutil.Uint64 `json:"gasUsed"`
	BlockNumber      *hexutil.Uint64 `json:"blockNumber"`
	TransactionIndex *hexutil.Uint   `json:"transactionIndex"`
	Index            *hexutil.Uint   `json:"index"`
}

func (r *rpcTransaction) record() (TransactionRecord, error) {
	if r.BlockNumber == nil {
		return TransactionRecord{}, fmt.Errorf("transaction %s: missing blockNumber", r.Hash.Hex())
	}
	idx := r.TransactionIndex
	if idx == nil {
		idx = r.Index
	}
	if idx == nil {
		return TransactionRecord{}, fmt.Errorf("transaction %s: missing transactionIndex", r.Hash.Hex())
	}

	tx := TransactionRecord{
		Hash:        r.Hash,
		From:        r.From,
		Input:       r.Input,
		Value:       new(big.Int),
		GasPrice:    new(big.Int),
		BlockNumber: uint64(*r.BlockNumber),
		Index:       uint(*idx),
	}
	if r.To != nil {
		tx.To = *r.To
	}
	if len(tx.Input) == 0 {
		tx.Input = r.Data
	}
	if r.Value != nil {
		tx.Value = r.Value.ToInt()
	}
	if r.GasPrice != nil {
		tx.GasPrice = r.GasPrice.ToInt()
	}
	if r.GasUsed != nil {
		tx.GasUsed = uint64(*r.GasUsed)
	}
	return tx, nil
}

// DecodeRecords decodes a JSON transaction log. The document is either an
// array of RPC-style transaction objects or an object with a "transactions"
// array. Quantities are hex encoded; addresses may be checksummed or not.
func DecodeRecords(data []byte) ([]TransactionRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw []rpcTransaction
	if data[0] == '{' {
		var wrapped struct {
			Transactions []rpcTransaction `json:"transactions"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode transaction log: %w", err)
		}
		raw = wrapped.Transactions
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode transaction log: %w", err)
	}

	records := make([]TransactionRecord, 0, len(raw))
	for i := range raw {
		tx, err := raw[i].record()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, tx)
	}
	return records, nil
}
