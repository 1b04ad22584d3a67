package dispatch

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TriggerBehavior is a bitmask of optional trigger firing behaviors.
type TriggerBehavior uint32

const (
	// BehaviorSpontaneous allows a direct write to an attached signal to
	// fire the trigger outside its periodic cycle.
	BehaviorSpontaneous TriggerBehavior = 1 << iota
	// BehaviorPeriodicIfActive suppresses periodic firings once every
	// attached signal has held its default value for more than one
	// consecutive periodic tick.
	BehaviorPeriodicIfActive
)

// reason is why Execute is being invoked: on the trigger's own periodic
// timer, or because an attached signal changed spontaneously.
type reason int

const (
	reasonPeriodic reason = iota
	reasonSpontaneous
)

// maxInactiveRepetitions is the fixed threshold above which a
// periodic_if_active trigger suppresses its periodic firing. The original
// service hard-codes this at 1; kept as an unexported constant rather than
// a configurable field since nothing in this system ever varies it.
const maxInactiveRepetitions = 1

// Trigger fires a callback either periodically, spontaneously on an
// attached tx signal's direct write, or both, subject to a minimum delay
// between firings.
type Trigger struct {
	scheduler  *Scheduler
	cycleMs    uint32
	minDelayMs uint32
	behavior   TriggerBehavior
	callback   func()

	mu                  sync.Mutex
	lastExecution       time.Time
	inactiveRepetitions int
	closed              bool

	signalsMu sync.Mutex
	signals   map[string]*Signal

	ticker   *time.Ticker
	tickDone chan struct{}
}

// Execute runs the trigger's firing algorithm for the given reason: mode
// guard, behavior guard, minimum-delay deferral (with reason promotion on
// the scheduler side), periodic_if_active suppression, then the callback.
func (t *Trigger) Execute(r reason) {
	if !t.scheduler.gate.running() {
		return
	}
	if r == reasonSpontaneous && t.behavior&BehaviorSpontaneous == 0 {
		return
	}

	now := time.Now()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if t.minDelayMs > 0 {
		allowed := t.lastExecution.Add(time.Duration(t.minDelayMs) * time.Millisecond)
		if now.Before(allowed) {
			t.mu.Unlock()
			t.scheduler.enqueue(t, r, allowed)
			return
		}
	}

	if t.behavior&BehaviorPeriodicIfActive != 0 {
		allDefault := true
		t.signalsMu.Lock()
		for _, sig := range t.signals {
			if !sig.EqualsDefault() {
				allDefault = false
				break
			}
		}
		t.signalsMu.Unlock()

		if allDefault {
			t.inactiveRepetitions++
		} else {
			t.inactiveRepetitions = 0
		}

		if r == reasonPeriodic && t.inactiveRepetitions > maxInactiveRepetitions {
			t.mu.Unlock()
			return
		}
	}

	t.lastExecution = now
	t.mu.Unlock()

	t.scheduler.metrics.TriggerFired(r.String())
	if t.callback != nil {
		t.callback()
	}
}

// addSignal attaches sig (a registered tx signal) to the trigger under name
// so that direct writes to it schedule a spontaneous execution when
// BehaviorSpontaneous is set.
func (t *Trigger) addSignal(name string, sig *Signal) {
	t.signalsMu.Lock()
	t.signals[name] = sig
	t.signalsMu.Unlock()
	sig.addTrigger(t)
}

func (t *Trigger) removeSignal(name string) {
	t.signalsMu.Lock()
	sig, ok := t.signals[name]
	delete(t.signals, name)
	t.signalsMu.Unlock()
	if ok {
		sig.removeTrigger(t)
	}
}

func (t *Trigger) removeAllSignals() {
	t.signalsMu.Lock()
	signals := t.signals
	t.signals = make(map[string]*Signal)
	t.signalsMu.Unlock()
	for _, sig := range signals {
		sig.removeTrigger(t)
	}
}

func (t *Trigger) startPeriodic() {
	if t.cycleMs == 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(t.cycleMs) * time.Millisecond)
	done := make(chan struct{})
	t.ticker = ticker
	t.tickDone = done
	go func() {
		for {
			select {
			case <-ticker.C:
				t.Execute(reasonPeriodic)
			case <-done:
				return
			}
		}
	}()
}

func (t *Trigger) stopPeriodic() {
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	close(t.tickDone)
	t.ticker = nil
}

type scheduleEntry struct {
	due     time.Time
	trigger *Trigger
}

// Scheduler is the Trigger Scheduler: a pending map of trigger->reason plus
// a due-time ordered schedule, drained by a 1ms tick independent of any
// individual trigger's own periodic timer.
type Scheduler struct {
	gate    *modeGate
	metrics DispatchMetricsSink

	mu       sync.Mutex
	pending  map[*Trigger]reason
	schedule []scheduleEntry

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler returns a scheduler sharing the dispatch service's mode
// gate. Start must be called to begin the 1ms tick.
func NewScheduler(gate *modeGate) *Scheduler {
	return &Scheduler{gate: gate, metrics: noopDispatchSink{}, pending: make(map[*Trigger]reason)}
}

// SetMetrics installs the sink that observes trigger firings and scheduler
// tick latency. A nil sink restores the no-op default.
func (sch *Scheduler) SetMetrics(m DispatchMetricsSink) {
	if m == nil {
		m = noopDispatchSink{}
	}
	sch.mu.Lock()
	sch.metrics = m
	sch.mu.Unlock()
}

func (r reason) String() string {
	if r == reasonSpontaneous {
		return "spontaneous"
	}
	return "periodic"
}

// Start begins the 1ms tick goroutine that drains due schedule entries.
func (sch *Scheduler) Start() {
	if sch.ticker != nil {
		return
	}
	sch.ticker = time.NewTicker(time.Millisecond)
	sch.stop = make(chan struct{})
	sch.wg.Add(1)
	go func() {
		defer sch.wg.Done()
		for {
			select {
			case <-sch.ticker.C:
				sch.evaluateAndExecute()
			case <-sch.stop:
				return
			}
		}
	}()
}

// Stop halts the 1ms tick and clears all pending schedule entries.
func (sch *Scheduler) Stop() {
	if sch.ticker == nil {
		return
	}
	sch.ticker.Stop()
	close(sch.stop)
	sch.wg.Wait()
	sch.ticker = nil

	sch.mu.Lock()
	sch.pending = make(map[*Trigger]reason)
	sch.schedule = nil
	sch.mu.Unlock()
}

// enqueue inserts a deferred execution for trigger at due. If a job is
// already pending for this trigger, only a spontaneous reason upgrades the
// stored reason; a periodic reason never downgrades a pending spontaneous
// one.
func (sch *Scheduler) enqueue(trigger *Trigger, r reason, due time.Time) {
	sch.mu.Lock()
	defer sch.mu.Unlock()

	if existing, ok := sch.pending[trigger]; ok {
		if r == reasonSpontaneous && existing != reasonSpontaneous {
			sch.pending[trigger] = reasonSpontaneous
		}
		return
	}

	sch.pending[trigger] = r
	idx := sort.Search(len(sch.schedule), func(i int) bool { return sch.schedule[i].due.After(due) })
	sch.schedule = append(sch.schedule, scheduleEntry{})
	copy(sch.schedule[idx+1:], sch.schedule[idx:])
	sch.schedule[idx] = scheduleEntry{due: due, trigger: trigger}
}

func (sch *Scheduler) evaluateAndExecute() {
	for {
		sch.mu.Lock()
		if len(sch.schedule) == 0 {
			sch.mu.Unlock()
			return
		}
		entry := sch.schedule[0]
		now := time.Now()
		if now.Before(entry.due) {
			sch.mu.Unlock()
			return
		}
		sch.schedule = sch.schedule[1:]
		r := sch.pending[entry.trigger]
		delete(sch.pending, entry.trigger)
		sch.mu.Unlock()

		sch.metrics.SchedulerTick(now.Sub(entry.due).Seconds())
		entry.trigger.Execute(r)
	}
}

// removeFromSchedule drops every pending job for trigger, used when the
// trigger is destroyed.
func (sch *Scheduler) removeFromSchedule(trigger *Trigger) {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	delete(sch.pending, trigger)
	filtered := sch.schedule[:0]
	for _, e := range sch.schedule {
		if e.trigger != trigger {
			filtered = append(filtered, e)
		}
	}
	sch.schedule = filtered
}

// Create validates and constructs a trigger, starting its periodic timer if
// cycleMs is non-zero. Fails with ErrInvalidTrigger unless cycleMs > 0 or
// BehaviorSpontaneous is set, and callback is non-nil.
func (sch *Scheduler) Create(cycleMs, minDelayMs uint32, behavior TriggerBehavior, callback func()) (*Trigger, error) {
	if callback == nil || (cycleMs == 0 && behavior&BehaviorSpontaneous == 0) {
		return nil, fmt.Errorf("%w: requires a callback and either cycle_ms > 0 or the spontaneous behavior", ErrInvalidTrigger)
	}

	t := &Trigger{
		scheduler:  sch,
		cycleMs:    cycleMs,
		minDelayMs: minDelayMs,
		behavior:   behavior,
		callback:   callback,
		signals:    make(map[string]*Signal),
	}
	t.startPeriodic()
	return t, nil
}

// AttachSignal records a back-reference from store's tx signal name to
// trigger, so that a direct write to it schedules a spontaneous execution.
// Returns false if the name is not a registered tx signal.
func (sch *Scheduler) AttachSignal(t *Trigger, store *Store, signalName string) bool {
	sig, ok := store.findTxSignal(signalName)
	if !ok {
		return false
	}
	t.addSignal(signalName, sig)
	return true
}

// DetachSignal removes signalName from trigger's attached set.
func (sch *Scheduler) DetachSignal(t *Trigger, signalName string) {
	t.removeSignal(signalName)
}

// Destroy cancels the trigger's periodic timer, detaches it from every
// attached signal, and removes any pending schedule entry.
func (sch *Scheduler) Destroy(t *Trigger) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.stopPeriodic()
	t.removeAllSignals()
	sch.removeFromSchedule(t)
}
