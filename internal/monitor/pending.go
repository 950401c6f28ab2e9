package monitor

import (
	"sync"
	"time"

	"sniper-core/pkg/ledger"
)

// PendingTransaction is one submitted-but-unconfirmed unit of work.
type PendingTransaction struct {
	Signature    ledger.Signature
	SubmittedAt  time.Time
	Instructions []ledger.Instruction
}

// PendingSet is the shared collection of in-flight transactions, keyed by
// signature and iterated in insertion order. A signature is inserted at most
// once and removed at most once.
type PendingSet struct {
	mu      sync.Mutex
	order   []ledger.Signature
	entries map[ledger.Signature]PendingTransaction
}

// NewPendingSet creates an empty set.
func NewPendingSet() *PendingSet {
	return &PendingSet{entries: make(map[ledger.Signature]PendingTransaction)}
}

// Add inserts a transaction. Returns false when the signature is already
// tracked (no double-submission bookkeeping).
func (p *PendingSet) Add(tx PendingTransaction) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.entries[tx.Signature]; exists {
		return false
	}
	p.entries[tx.Signature] = tx
	p.order = append(p.order, tx.Signature)
	return true
}

// Remove deletes a tracked transaction. Returns false when absent.
func (p *PendingSet) Remove(sig ledger.Signature) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.entries[sig]; !exists {
		return false
	}
	delete(p.entries, sig)
	for i, s := range p.order {
		if s == sig {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// Snapshot copies the current entries in insertion order. Callers iterate the
// copy so the set lock is never held across network round trips.
func (p *PendingSet) Snapshot() []PendingTransaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingTransaction, 0, len(p.order))
	for _, sig := range p.order {
		out = append(out, p.entries[sig])
	}
	return out
}

// Len returns the number of tracked transactions.
func (p *PendingSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
