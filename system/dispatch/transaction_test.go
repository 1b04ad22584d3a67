package dispatch

import "testing"

func TestTransactionWriteIsAtomicAcrossSignals(t *testing.T) {
	s := newRunningStore()
	// Consumers are opened on the tx signals themselves: RegisterRx would open
	// separate rx signals of the same names.
	speedProvider, _ := s.RegisterTx("speed", 0)
	speedConsumer := &Consumer{signal: speedProvider.signal}
	gearProvider, _ := s.RegisterTx("gear", 0)
	gearConsumer := &Consumer{signal: gearProvider.signal}
	s.SetMode(ModeRunning)

	tx := s.mgr.Begin()
	speedProvider.Write(100, tx)
	gearProvider.Write(3, tx)

	// Not yet finalized: consumers must still see defaults.
	if got := speedConsumer.Read(nil); got != 0 {
		t.Fatalf("expected deferred write to not be visible yet, got %v", got)
	}

	tx.Finalize()

	if got := speedConsumer.Read(nil); got != 100 {
		t.Fatalf("expected 100 after finalize, got %v", got)
	}
	if got := gearConsumer.Read(nil); got != 3 {
		t.Fatalf("expected 3 after finalize, got %v", got)
	}
}

func TestTransactionReadSnapshotIsStable(t *testing.T) {
	s := newRunningStore()
	provider, _ := s.RegisterTx("speed", 0)
	consumer := &Consumer{signal: provider.signal}
	s.SetMode(ModeRunning)

	provider.Write(10, nil)

	tx := s.mgr.Begin()
	readID := tx.SetReadMode()
	if readID == 0 {
		t.Fatal("expected non-zero read id")
	}

	provider.Write(20, nil)

	if got := consumer.Read(tx); got != 10 {
		t.Fatalf("expected read transaction to observe pre-snapshot value 10, got %v", got)
	}
	if got := consumer.Read(nil); got != 20 {
		t.Fatalf("expected direct read to observe latest value 20, got %v", got)
	}
}

func TestTransactionDiscardDropsDeferredWrites(t *testing.T) {
	s := newRunningStore()
	provider, _ := s.RegisterTx("speed", 0)
	consumer := &Consumer{signal: provider.signal}
	s.SetMode(ModeRunning)

	tx := s.mgr.Begin()
	provider.Write(99, tx)
	tx.Discard()
	tx.Finalize()

	if got := consumer.Read(nil); got != 0 {
		t.Fatalf("expected discarded write to never apply, got %v", got)
	}
}

func TestTransactionCannotSwitchKind(t *testing.T) {
	s := newRunningStore()
	provider, _ := s.RegisterTx("speed", 0)
	s.SetMode(ModeRunning)

	tx := s.mgr.Begin()
	_ = tx.SetReadMode()
	provider.Write(5, tx) // DeferWrite should no-op: already a read transaction.
	if tx.kind != txRead {
		t.Fatalf("expected transaction to remain a read transaction, got kind=%v", tx.kind)
	}
}
