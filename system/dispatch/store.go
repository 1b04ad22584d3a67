package dispatch

import (
	"fmt"
	"sort"
	"sync"
)

// SignalInfo is the enumerate() result: a signal's name and direction.
type SignalInfo struct {
	Name      string
	Direction Direction
}

// DispatchMetricsSink receives signal and trigger observability events.
// Defined here rather than imported from pkg/metrics so this package never
// depends on Prometheus directly; pkg/metrics.Recorder implements it.
type DispatchMetricsSink interface {
	SignalRegistered(direction string)
	SignalWritten(name string)
	SignalRead(name string)
	TriggerFired(reason string)
	SchedulerTick(latencySeconds float64)
}

type noopDispatchSink struct{}

func (noopDispatchSink) SignalRegistered(string) {}
func (noopDispatchSink) SignalWritten(string)    {}
func (noopDispatchSink) SignalRead(string)       {}
func (noopDispatchSink) TriggerFired(string)     {}
func (noopDispatchSink) SchedulerTick(float64)   {}

// Store is the Signal Store: two top-level maps (tx/rx) keyed by signal
// name, with registration, AddPublisher and Subscribe gated to configuring
// mode and writes gated to running mode via the shared modeGate. Reads are
// not mode-gated.
type Store struct {
	mu      sync.RWMutex
	gate    *modeGate
	mgr     *TransactionManager
	metrics DispatchMetricsSink

	tx map[string]*Signal
	rx map[string]*Signal
}

// NewStore returns an empty signal store sharing mode and transaction id
// state with the rest of the dispatch service.
func NewStore(mgr *TransactionManager) *Store {
	return &Store{
		gate:    newModeGate(),
		mgr:     mgr,
		metrics: noopDispatchSink{},
		tx:      make(map[string]*Signal),
		rx:      make(map[string]*Signal),
	}
}

// SetMetrics installs the sink that observes signal registration and
// read/write throughput. A nil sink restores the no-op default.
func (s *Store) SetMetrics(m DispatchMetricsSink) {
	if m == nil {
		m = noopDispatchSink{}
	}
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
}

// NewScheduler returns a Trigger Scheduler sharing this store's mode gate,
// so that object-level lifecycle transitions applied via SetMode gate both
// signal read/write and trigger execution identically. Exported as a
// constructor on Store rather than taking the unexported gate directly,
// since modeGate cannot be named outside this package.
func (s *Store) NewScheduler() *Scheduler {
	return NewScheduler(s.gate)
}

// SetMode transitions the store (and every signal it owns) into the given
// mode. Called by the runtime facade when the lifecycle orchestrator moves
// the dispatch service object across modes.
func (s *Store) SetMode(m Mode) {
	s.gate.set(m)
}

func (s *Store) tableFor(dir Direction) map[string]*Signal {
	if dir == DirectionRx {
		return s.rx
	}
	return s.tx
}

func (s *Store) unregister(name string, dir Direction) {
	s.mu.Lock()
	table := s.tableFor(dir)
	sig, ok := table[name]
	delete(table, name)
	s.mu.Unlock()
	if !ok {
		return
	}

	sig.triggerMu.Lock()
	triggers := make([]*Trigger, 0, len(sig.triggers))
	for tr := range sig.triggers {
		triggers = append(triggers, tr)
	}
	sig.triggerMu.Unlock()
	for _, tr := range triggers {
		tr.removeSignal(name)
	}
}

// RegisterTx creates (or reopens) a tx signal and returns a new provider
// handle. Any number of providers may coexist on the same signal.
func (s *Store) RegisterTx(name string, defaultVal any) (*Provider, error) {
	if !s.gate.configuring() {
		return nil, fmt.Errorf("%w: register_tx requires configuring mode", ErrInvalidMode)
	}

	s.mu.Lock()
	sig, ok := s.tx[name]
	if !ok {
		sig = newSignal(name, DirectionTx, defaultVal, s.gate, s.mgr, s.metrics, s.unregister)
		s.tx[name] = sig
		s.metrics.SignalRegistered("tx")
	}
	s.mu.Unlock()

	sig.addProvider()
	return &Provider{signal: sig}, nil
}

// RegisterRx creates (or reopens) an rx signal and returns a new consumer
// handle with no push callback attached.
func (s *Store) RegisterRx(name string) (*Consumer, error) {
	if !s.gate.configuring() {
		return nil, fmt.Errorf("%w: register_rx requires configuring mode", ErrInvalidMode)
	}

	s.mu.Lock()
	sig, ok := s.rx[name]
	if !ok {
		sig = newSignal(name, DirectionRx, nil, s.gate, s.mgr, s.metrics, s.unregister)
		s.rx[name] = sig
		s.metrics.SignalRegistered("rx")
	}
	s.mu.Unlock()

	c := &Consumer{signal: sig}
	sig.addConsumer(c)
	return c, nil
}

// AddPublisher attaches an additional writer to an already-registered tx
// signal. Fails with ErrNotFound if the name has no tx registration.
func (s *Store) AddPublisher(name string) (*Provider, error) {
	if !s.gate.configuring() {
		return nil, fmt.Errorf("%w: add_publisher requires configuring mode", ErrInvalidMode)
	}

	s.mu.RLock()
	sig, ok := s.tx[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tx signal %q", ErrNotFound, name)
	}

	sig.addProvider()
	return &Provider{signal: sig}, nil
}

// Subscribe attaches a reader with a push callback to an rx signal. Fails
// with ErrNotFound if the name has no rx registration.
func (s *Store) Subscribe(name string, onChange func(value any)) (*Consumer, error) {
	if !s.gate.configuring() {
		return nil, fmt.Errorf("%w: subscribe requires configuring mode", ErrInvalidMode)
	}

	s.mu.RLock()
	sig, ok := s.rx[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: rx signal %q", ErrNotFound, name)
	}

	c := &Consumer{signal: sig, callback: onChange}
	sig.addConsumer(c)
	return c, nil
}

// findTxSignal looks up a tx signal by name, used by the trigger scheduler
// when attaching a trigger.
func (s *Store) findTxSignal(name string) (*Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.tx[name]
	return sig, ok
}

// Enumerate returns every registered signal's name and direction, sorted by
// (direction, name) for deterministic output.
func (s *Store) Enumerate() []SignalInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SignalInfo, 0, len(s.tx)+len(s.rx))
	for name := range s.tx {
		out = append(out, SignalInfo{Name: name, Direction: DirectionTx})
	}
	for name := range s.rx {
		out = append(out, SignalInfo{Name: name, Direction: DirectionRx})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Direction != out[j].Direction {
			return out[i].Direction < out[j].Direction
		}
		return out[i].Name < out[j].Name
	})
	return out
}
