package sequence

import "iter"

// Window is a contiguous run of records from one block. Relations are
// computed on demand and positions are window-relative.
type Window struct {
	txs []TransactionRecord
}

// Len returns the number of records in the window.
func (w Window) Len() int { return len(w.txs) }

// At returns the i-th record.
func (w Window) At(i int) *TransactionRecord { return &w.txs[i] }

// Block returns the block number shared by every record.
func (w Window) Block() uint64 {
	if len(w.txs) == 0 {
		return 0
	}
	return w.txs[0].BlockNumber
}

// SameSender reports whether records i and j share a sender.
func (w Window) SameSender(i, j int) bool {
	return w.txs[i].From == w.txs[j].From
}

// SameRecipient reports whether records i and j call the same address.
func (w Window) SameRecipient(i, j int) bool {
	return w.txs[i].To == w.txs[j].To
}

// IncreasingIndex reports whether indices strictly increase across the window.
func (w Window) IncreasingIndex() bool {
	for i := 1; i < len(w.txs); i++ {
		if w.txs[i].Index <= w.txs[i-1].Index {
			return false
		}
	}
	return true
}

// windows yields every contiguous run of size records that share a block.
// txs must already be ordered by position.
func windows(txs []TransactionRecord, size int) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		for start := 0; start+size <= len(txs); start++ {
			run := txs[start : start+size]
			if run[0].BlockNumber != run[size-1].BlockNumber {
				continue
			}
			if !yield(Window{txs: run}) {
				return
			}
		}
	}
}
