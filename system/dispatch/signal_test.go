package dispatch

import "testing"

func newRunningStore() *Store {
	s := NewStore(NewTransactionManager())
	s.SetMode(ModeConfiguring)
	return s
}

func TestStoreWriteReadRoundTrip(t *testing.T) {
	s := newRunningStore()
	provider, err := s.RegisterTx("vehicle.speed", 0.0)
	if err != nil {
		t.Fatalf("RegisterTx failed: %v", err)
	}
	if _, err := s.RegisterRx("vehicle.speed"); err != nil {
		t.Fatalf("RegisterRx failed: %v", err)
	}
	// RegisterRx opens the separate rx signal of the same name; the tx
	// signal is read back through a consumer handle on it directly.
	consumer := &Consumer{signal: provider.signal}

	s.SetMode(ModeRunning)
	provider.Write(42.0, nil)

	if got := consumer.Read(nil); got != 42.0 {
		t.Fatalf("expected 42.0, got %v", got)
	}
}

func TestStoreWriteOutsideRunningIsNoop(t *testing.T) {
	s := newRunningStore()
	provider, _ := s.RegisterTx("vehicle.speed", 0.0)
	consumer := &Consumer{signal: provider.signal}

	// Still in configuring mode: write must not take effect.
	provider.Write(42.0, nil)
	if got := consumer.Read(nil); got != 0.0 {
		t.Fatalf("expected default value while not running, got %v", got)
	}
}

func TestStoreAddPublisherRequiresExistingSignal(t *testing.T) {
	s := newRunningStore()
	if _, err := s.AddPublisher("nope"); err == nil {
		t.Fatal("expected error for unknown tx signal")
	}
	if _, err := s.RegisterTx("known", 0); err != nil {
		t.Fatalf("RegisterTx failed: %v", err)
	}
	if _, err := s.AddPublisher("known"); err != nil {
		t.Fatalf("AddPublisher on known signal failed: %v", err)
	}
}

func TestStoreSubscribeRequiresExistingSignal(t *testing.T) {
	s := newRunningStore()
	if _, err := s.Subscribe("nope", func(any) {}); err == nil {
		t.Fatal("expected error for unknown rx signal")
	}
}

func TestSignalRingCoalescesEqualTransactionIDs(t *testing.T) {
	s := newRunningStore()
	provider, _ := s.RegisterTx("a", 0)
	consumer := &Consumer{signal: provider.signal}
	s.SetMode(ModeRunning)

	provider.signal.write(1, 100)
	provider.signal.write(2, 100) // same id: coalesces in place

	if got := consumer.Read(nil); got != 2 {
		t.Fatalf("expected coalesced value 2, got %v", got)
	}
}

func TestSignalReadTooOldReturnsDefault(t *testing.T) {
	s := newRunningStore()
	provider, _ := s.RegisterTx("a", "default")
	s.SetMode(ModeRunning)

	for i := uint64(1); i <= uint64(ringCapacity)+2; i++ {
		provider.signal.write(i, i)
	}

	if got := provider.signal.Read(1); got != "default" {
		t.Fatalf("expected default value for an evicted transaction id, got %v", got)
	}
}

func TestSignalEqualsDefault(t *testing.T) {
	s := newRunningStore()
	provider, _ := s.RegisterTx("a", 0)
	s.SetMode(ModeRunning)

	if !provider.signal.EqualsDefault() {
		t.Fatal("expected fresh signal to equal its default value")
	}
	provider.Write(7, nil)
	if provider.signal.EqualsDefault() {
		t.Fatal("expected signal to no longer equal default after a write")
	}
}

func TestEnumerate(t *testing.T) {
	s := newRunningStore()
	if _, err := s.RegisterTx("b", 0); err != nil {
		t.Fatalf("RegisterTx: %v", err)
	}
	if _, err := s.RegisterRx("a"); err != nil {
		t.Fatalf("RegisterRx: %v", err)
	}

	infos := s.Enumerate()
	if len(infos) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(infos))
	}
	if infos[0].Direction != DirectionTx || infos[0].Name != "b" {
		t.Fatalf("unexpected first entry: %+v", infos[0])
	}
}
