package dispatch

import (
	"sync"
)

// Direction is a signal's data-flow direction relative to the store: tx
// signals are written by providers and read (circularly) by triggers; rx
// signals hold the consumers and subscriber callbacks opened by
// RegisterRx/Subscribe. The store hands out no provider for an rx signal.
type Direction int

const (
	DirectionTx Direction = iota
	DirectionRx
)

const ringCapacity = 16

type ringSlot struct {
	transactionID uint64
	value         any
}

// Signal is the per-name record in the Signal Store: a 16-slot
// transaction-id-versioned value ring plus the provider/consumer/trigger
// sets attached to it.
type Signal struct {
	name      string
	direction Direction
	defaultVal any
	gate      *modeGate
	mgr       *TransactionManager
	metrics   DispatchMetricsSink

	valMu    sync.Mutex
	ring     [ringCapacity]ringSlot
	valIndex int

	objMu         sync.Mutex
	providerCount int
	consumers     map[*Consumer]struct{}

	triggerMu sync.Mutex
	triggers  map[*Trigger]struct{}

	onUnregister func(name string, dir Direction)
}

func newSignal(name string, dir Direction, defaultVal any, gate *modeGate, mgr *TransactionManager, metrics DispatchMetricsSink, onUnregister func(string, Direction)) *Signal {
	if metrics == nil {
		metrics = noopDispatchSink{}
	}
	s := &Signal{
		name: name, direction: dir, defaultVal: defaultVal, gate: gate, mgr: mgr, metrics: metrics,
		consumers: make(map[*Consumer]struct{}), triggers: make(map[*Trigger]struct{}),
		onUnregister: onUnregister,
	}
	for i := range s.ring {
		s.ring[i] = ringSlot{transactionID: 0, value: defaultVal}
	}
	return s
}

// Name returns the signal's registered name.
func (s *Signal) Name() string { return s.name }

// Direction returns the signal's direction.
func (s *Signal) Direction() Direction { return s.direction }

// writeFromProvider implements the Write algorithm: advance the ring only
// when the effective transaction id is strictly greater than the current
// slot's id (tie-break: equal ids coalesce in place, making one finalized
// write transaction atomic across all its signals), fan the value out to
// consumers after releasing the value-ring lock, and return the snapshot of
// attached triggers for the caller to execute.
func (s *Signal) writeFromProvider(value any, transactionID uint64) []*Trigger {
	if !s.gate.running() {
		return nil
	}

	effective := transactionID
	if effective == 0 {
		effective = s.mgr.directTransactionID()
	}

	s.valMu.Lock()
	target := s.valIndex
	if s.ring[target].transactionID < effective {
		target = (target + 1) % ringCapacity
		s.valIndex = target
	}
	s.ring[target] = ringSlot{transactionID: effective, value: value}
	s.valMu.Unlock()

	s.triggerMu.Lock()
	triggers := make([]*Trigger, 0, len(s.triggers))
	for tr := range s.triggers {
		triggers = append(triggers, tr)
	}
	s.triggerMu.Unlock()

	s.distribute(value)
	s.metrics.SignalWritten(s.name)

	return triggers
}

// write is the shared entry point for a provider handle writing directly
// (transactionID 0 meaning "use the direct transaction id"). The returned
// triggers are the ones attached to the signal at the moment of the write;
// the caller is responsible for executing them.
func (s *Signal) write(value any, transactionID uint64) []*Trigger {
	return s.writeFromProvider(value, transactionID)
}

// readFromConsumer implements the Read algorithm: scan the ring circularly
// from the newest slot toward older slots for the first transaction id at
// or below the target, returning the default value if the scan wraps
// without finding one (the oldest available value is already newer).
func (s *Signal) readFromConsumer(transactionID uint64) any {
	s.valMu.Lock()
	defer s.valMu.Unlock()

	target := transactionID
	idx := s.valIndex
	if target == 0 {
		target = s.ring[idx].transactionID
	}

	for s.ring[idx].transactionID > target {
		idx = (idx - 1 + ringCapacity) % ringCapacity
		if idx == s.valIndex {
			return s.defaultVal
		}
	}
	return s.ring[idx].value
}

// Read is the public entry point for a consumer handle reading, with
// transactionID 0 meaning "most recently written value".
func (s *Signal) Read(transactionID uint64) any {
	s.metrics.SignalRead(s.name)
	return s.readFromConsumer(transactionID)
}

// EqualsDefault reports whether the signal's current value equals its
// default value, used by the periodic_if_active trigger behavior.
func (s *Signal) EqualsDefault() bool {
	return s.readFromConsumer(0) == s.defaultVal
}

func (s *Signal) distribute(value any) {
	if !s.gate.running() {
		return
	}
	s.objMu.Lock()
	consumers := make([]*Consumer, 0, len(s.consumers))
	for c := range s.consumers {
		consumers = append(consumers, c)
	}
	s.objMu.Unlock()

	for _, c := range consumers {
		c.distribute(value)
	}
}

func (s *Signal) addTrigger(tr *Trigger) {
	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()
	s.triggers[tr] = struct{}{}
}

func (s *Signal) removeTrigger(tr *Trigger) {
	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()
	delete(s.triggers, tr)
}

func (s *Signal) addProvider() {
	s.objMu.Lock()
	s.providerCount++
	s.objMu.Unlock()
}

func (s *Signal) removeProvider() {
	s.objMu.Lock()
	s.providerCount--
	unregister := s.providerCount <= 0 && len(s.consumers) == 0
	s.objMu.Unlock()
	if unregister && s.onUnregister != nil {
		s.onUnregister(s.name, s.direction)
	}
}

func (s *Signal) addConsumer(c *Consumer) {
	s.objMu.Lock()
	s.consumers[c] = struct{}{}
	s.objMu.Unlock()
}

func (s *Signal) removeConsumer(c *Consumer) {
	s.objMu.Lock()
	delete(s.consumers, c)
	unregister := s.providerCount <= 0 && len(s.consumers) == 0
	s.objMu.Unlock()
	if unregister && s.onUnregister != nil {
		s.onUnregister(s.name, s.direction)
	}
}

// Provider is a non-owning write handle on a signal, returned by
// RegisterTx/AddPublisher.
type Provider struct {
	signal *Signal
}

// Write stores value on the underlying signal, using transaction tx if
// non-nil (deferring the write instead of applying it immediately) or
// applying and firing any attached triggers immediately otherwise.
func (p *Provider) Write(value any, tx *Transaction) {
	if tx != nil {
		tx.DeferWrite(p.signal, value)
		return
	}
	triggers := p.signal.write(value, 0)
	for _, tr := range triggers {
		tr.Execute(reasonSpontaneous)
	}
}

// Close releases the provider handle.
func (p *Provider) Close() { p.signal.removeProvider() }

// Consumer is a non-owning read handle on a signal, returned by
// RegisterRx/Subscribe, optionally carrying a push callback.
type Consumer struct {
	signal   *Signal
	callback func(value any)
}

// Read returns the value visible at tx's read id, or the most recent value
// if tx is nil.
func (c *Consumer) Read(tx *Transaction) any {
	var id uint64
	if tx != nil {
		id = tx.SetReadMode()
	}
	return c.signal.Read(id)
}

// Close releases the consumer handle, detaching any attached triggers once
// it is the last object on the signal.
func (c *Consumer) Close() { c.signal.removeConsumer(c) }

func (c *Consumer) distribute(value any) {
	if c.callback != nil {
		c.callback(value)
	}
}
