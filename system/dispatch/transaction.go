package dispatch

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// transactionType mirrors CTransaction's undefined/read/write state: a
// transaction decides which side it is on at its first use and never
// changes afterward.
type transactionType int

const (
	txUndefined transactionType = iota
	txRead
	txWrite
)

// Transaction is a single read-or-write unit of work. A fresh Transaction
// captures a read_id eagerly so reads through it observe a stable snapshot
// even if it ends up being used to write instead.
type Transaction struct {
	mgr *TransactionManager

	mu          sync.Mutex
	kind        transactionType
	readID      uint64
	deferred    map[*Signal]any
	deferredSeq []*Signal // preserves insertion order for deterministic finalize
}

// SetReadMode returns the transaction's read id, switching it to a read
// transaction on first call. Returns 0 if the transaction is already a
// write transaction.
func (t *Transaction) SetReadMode() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.kind != txRead {
		if t.kind == txUndefined {
			t.kind = txRead
			t.mgr.newDirectTransactionID()
		} else {
			return 0
		}
	}
	return t.readID
}

// DeferWrite records value for signal, to be applied at Finalize. Switches
// the transaction to write type on first call; subsequent calls overwrite
// any previously deferred value for the same signal. No-op once the
// transaction is already a read transaction.
func (t *Transaction) DeferWrite(sig *Signal, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.kind != txWrite {
		if t.kind == txUndefined {
			t.kind = txWrite
		} else {
			return
		}
	}

	if t.deferred == nil {
		t.deferred = make(map[*Signal]any)
	}
	if _, exists := t.deferred[sig]; !exists {
		t.deferredSeq = append(t.deferredSeq, sig)
	}
	t.deferred[sig] = value
}

// Finalize applies deferred writes (for write transactions) under one
// fresh write id — so every signal touched by this transaction lands with
// the same id, making the set of writes atomic to any reader — then fires
// the union of attached triggers once. No-op for read transactions or
// transactions that never deferred a write.
func (t *Transaction) Finalize() {
	t.mu.Lock()
	if t.kind != txWrite {
		if t.kind == txUndefined {
			t.kind = txWrite
		} else {
			t.mu.Unlock()
			return
		}
	}
	deferredSeq := t.deferredSeq
	deferred := t.deferred
	t.deferred = nil
	t.deferredSeq = nil
	t.mu.Unlock()

	if len(deferredSeq) == 0 {
		return
	}

	writeID := t.mgr.nextTransactionID()

	triggerSet := make(map[*Trigger]struct{})
	for _, sig := range deferredSeq {
		val, ok := deferred[sig]
		if !ok || sig == nil {
			continue
		}
		triggers := sig.writeFromProvider(val, writeID)
		for _, tr := range triggers {
			triggerSet[tr] = struct{}{}
		}
	}

	for tr := range triggerSet {
		tr.Execute(reasonSpontaneous)
	}
}

// Discard drops the transaction. Deferred writes, if any, are never applied.
func (t *Transaction) Discard() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deferred = nil
	t.deferredSeq = nil
}

// TransactionManager owns the process-wide monotonically increasing
// transaction id counter and the "direct" transaction id used by writes
// that are not part of an explicit transaction.
type TransactionManager struct {
	nextID uint64 // atomic
	direct uint64 // atomic
}

// NewTransactionManager returns a manager with its counters at zero.
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

func (m *TransactionManager) nextTransactionID() uint64 {
	return atomic.AddUint64(&m.nextID, 1)
}

// newDirectTransactionID allocates a fresh direct transaction id so
// subsequent direct writes do not populate a slot at or before a newly
// started read transaction's read id.
func (m *TransactionManager) newDirectTransactionID() uint64 {
	id := m.nextTransactionID()
	atomic.StoreUint64(&m.direct, id)
	return id
}

// directTransactionID returns the current direct transaction id, allocating
// one lazily on first use.
func (m *TransactionManager) directTransactionID() uint64 {
	if id := atomic.LoadUint64(&m.direct); id != 0 {
		return id
	}
	return m.newDirectTransactionID()
}

// Begin allocates a new transaction, eagerly capturing read_id.
func (m *TransactionManager) Begin() *Transaction {
	return &Transaction{mgr: m, readID: m.nextTransactionID()}
}

// String renders a transaction for diagnostic logging.
func (t *Transaction) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("transaction{kind=%d read_id=%d deferred=%d}", t.kind, t.readID, len(t.deferred))
}
