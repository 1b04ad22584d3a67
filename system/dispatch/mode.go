package dispatch

import "sync/atomic"

// Mode mirrors the subset of the object lifecycle relevant to the dispatch
// service's own mode guards: signal registration, AddPublisher and Subscribe
// are only permitted while configuring, and writes only take effect while
// running. Reads and trigger creation are not mode-gated.
type Mode int32

const (
	ModeConfiguring Mode = iota
	ModeRunning
	ModeStopped
)

// modeGate is the shared, lock-free mode flag consulted by the store, the
// transaction manager, and the scheduler on every hot-path call. It is
// intentionally a single atomic, matching the "capability registries and
// mode flags require no locking" resource-discipline note.
type modeGate struct {
	mode atomic.Int32
}

func newModeGate() *modeGate {
	g := &modeGate{}
	g.mode.Store(int32(ModeConfiguring))
	return g
}

func (g *modeGate) set(m Mode) {
	g.mode.Store(int32(m))
}

func (g *modeGate) get() Mode {
	return Mode(g.mode.Load())
}

func (g *modeGate) running() bool {
	return g.get() == ModeRunning
}

func (g *modeGate) configuring() bool {
	return g.get() == ModeConfiguring
}
