package dispatch

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerCreateRequiresCallbackAndTiming(t *testing.T) {
	gate := newModeGate()
	sch := NewScheduler(gate)

	if _, err := sch.Create(0, 0, 0, func() {}); err == nil {
		t.Fatal("expected ErrInvalidTrigger when neither cycle nor spontaneous behavior is set")
	}
	if _, err := sch.Create(0, 0, BehaviorSpontaneous, nil); err == nil {
		t.Fatal("expected ErrInvalidTrigger when callback is nil")
	}
	if _, err := sch.Create(0, 0, BehaviorSpontaneous, func() {}); err != nil {
		t.Fatalf("expected valid spontaneous-only trigger to be accepted: %v", err)
	}
}

func TestSchedulerSpontaneousWriteFiresAttachedTrigger(t *testing.T) {
	store := newRunningStore()
	gate := store.gate
	sch := NewScheduler(gate)
	sch.Start()
	defer sch.Stop()

	provider, _ := store.RegisterTx("door.open", false)
	store.SetMode(ModeRunning)

	var fired atomic.Int32
	trigger, err := sch.Create(0, 0, BehaviorSpontaneous, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if ok := sch.AttachSignal(trigger, store, "door.open"); !ok {
		t.Fatal("expected AttachSignal to succeed for a registered tx signal")
	}

	provider.Write(true, nil)

	if fired.Load() != 1 {
		t.Fatalf("expected trigger to fire once, got %d", fired.Load())
	}
}

func TestSchedulerMinDelayDefersAndCoalesces(t *testing.T) {
	store := newRunningStore()
	sch := NewScheduler(store.gate)
	sch.Start()
	defer sch.Stop()

	provider, _ := store.RegisterTx("door.open", false)
	store.SetMode(ModeRunning)

	var fired atomic.Int32
	trigger, err := sch.Create(0, 50, BehaviorSpontaneous, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sch.AttachSignal(trigger, store, "door.open")

	provider.Write(true, nil)
	if fired.Load() != 1 {
		t.Fatalf("expected first write to fire immediately, got %d", fired.Load())
	}

	// Within the min-delay window: should defer, not fire immediately, and
	// the two deferred writes coalesce into one pending execution.
	provider.Write(false, nil)
	provider.Write(true, nil)
	if fired.Load() != 1 {
		t.Fatalf("expected second write within min-delay to defer, got %d", fired.Load())
	}

	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 2 {
		t.Fatalf("expected deferred execution after min-delay elapses, got %d", fired.Load())
	}
}

func TestSchedulerDestroyStopsPeriodic(t *testing.T) {
	store := newRunningStore()
	sch := NewScheduler(store.gate)
	sch.Start()
	defer sch.Stop()
	store.SetMode(ModeRunning)

	var fired atomic.Int32
	trigger, err := sch.Create(5, 0, 0, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	sch.Destroy(trigger)
	countAtDestroy := fired.Load()

	time.Sleep(30 * time.Millisecond)
	if fired.Load() != countAtDestroy {
		t.Fatalf("expected no further firings after Destroy, before=%d after=%d", countAtDestroy, fired.Load())
	}
}

func TestTriggerPeriodicIfActiveSuppressesAfterThreshold(t *testing.T) {
	store := newRunningStore()
	sch := NewScheduler(store.gate)
	// No Start(): drive Execute directly for a deterministic test.

	provider, _ := store.RegisterTx("heartbeat", 0)
	store.SetMode(ModeRunning)

	var fired atomic.Int32
	// cycleMs is 0 (no independent periodic ticker running concurrently);
	// BehaviorSpontaneous only satisfies Create's validity requirement, the
	// test drives Execute(reasonPeriodic) directly.
	trigger, err := sch.Create(0, 0, BehaviorPeriodicIfActive|BehaviorSpontaneous, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sch.AttachSignal(trigger, store, "heartbeat")
	defer sch.Destroy(trigger)

	_ = provider // signal stays at its default value throughout

	trigger.Execute(reasonPeriodic) // inactiveRepetitions: 0 -> 1, not yet over threshold, fires
	trigger.Execute(reasonPeriodic) // inactiveRepetitions: 1 -> 2, over threshold, suppressed
	trigger.Execute(reasonPeriodic) // inactiveRepetitions: 2 -> 3, still suppressed

	if fired.Load() != 1 {
		t.Fatalf("expected exactly 1 firing before suppression kicks in, got %d", fired.Load())
	}
}
