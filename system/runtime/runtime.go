// Package runtime composes the Component Registry and the Signal Dispatch
// Service into a single process-wide facade, grounded on the teacher's
// system/core.Engine composition pattern: one struct wiring subsystems
// together behind a small set of delegating methods, built via
// New(opts ...Option).
package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub012/pkg/logger"
	"github.com/eclipse-openvehicle-api/openvehicle-api-sub012/pkg/metrics"
	"github.com/eclipse-openvehicle-api/openvehicle-api-sub012/system/dispatch"
	"github.com/eclipse-openvehicle-api/openvehicle-api-sub012/system/registry"
)

// Factory constructs an object instance given its configuration blob,
// returning the caller-owned handle and the capability set it advertises.
// This is the register_class(..., factory_fn) parameter from the external
// interface contract: the factory runs once, at CreateObject time.
type Factory func(configBlob string) (handle any, caps *registry.CapabilitySet, err error)

// Initializer is implemented by object handles that need a post-construction
// initialization pass driven by Runtime.Startup, separate from the
// construction-time Factory call (construction happens once per object at
// CreateObject; Startup walks every live object in dependency order and
// calls Initialize on each handle that implements this interface).
type Initializer interface {
	Initialize(configBlob string) error
}

// ModeSetter is implemented by object handles that react to a process-level
// mode transition (configuring/running/back to initialized).
type ModeSetter interface {
	SetMode(mode registry.ObjectStatus) error
}

// Shutdowner is implemented by object handles that need to release
// resources when the runtime shuts down.
type Shutdowner interface {
	Shutdown() error
}

// Runtime is the composition root: Component Registry (Catalog, Repository,
// Lifecycle) plus Signal Dispatch Service (Store, TransactionManager,
// Scheduler), wired with a shared logger and metrics recorder.
type Runtime struct {
	log        *logger.Logger
	metricsReg *prometheus.Registry
	recorder   *metrics.Recorder

	preferredOrder []string

	catalog   *registry.Catalog
	repo      *registry.Repository
	lifecycle *registry.Lifecycle

	store     *dispatch.Store
	txManager *dispatch.TransactionManager
	scheduler *dispatch.Scheduler

	mu        sync.Mutex
	factories map[string]Factory
}

// New builds a Runtime ready to accept RegisterModule/RegisterClass calls.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		log:        logger.NewDefault("runtime"),
		metricsReg: metrics.Registry,
		factories:  make(map[string]Factory),
	}
	for _, opt := range opts {
		opt(rt)
	}

	rt.recorder = metrics.NewRecorder(rt.metricsReg)

	rt.catalog = registry.NewCatalog()
	rt.repo = registry.NewRepository(rt.catalog)
	rt.lifecycle = registry.NewLifecycle(rt.catalog, rt.repo, rt.log.Logger, rt.recorder)

	rt.txManager = dispatch.NewTransactionManager()
	rt.store = dispatch.NewStore(rt.txManager)
	rt.store.SetMetrics(rt.recorder)
	rt.scheduler = rt.store.NewScheduler()
	rt.scheduler.SetMetrics(rt.recorder)

	return rt
}

// =============================================================================
// Module & Class Catalog (delegates to Catalog)
// =============================================================================

// RegisterModule records a newly loaded module and returns its generated id.
func (rt *Runtime) RegisterModule(filename, version, path string) string {
	return rt.catalog.RegisterModule(filename, version, path)
}

// RegisterClass ingests a class descriptor under moduleID and, if factory is
// non-nil, remembers it for later CreateObject calls.
func (rt *Runtime) RegisterClass(moduleID string, desc registry.ClassDescriptor, factory Factory) error {
	desc.ModuleID = moduleID
	if err := rt.catalog.RegisterClass(desc); err != nil {
		return err
	}
	if factory != nil {
		rt.mu.Lock()
		rt.factories[desc.ClassName] = factory
		rt.mu.Unlock()
	}
	return nil
}

// ResolveClass looks up a registered class by name or alias.
func (rt *Runtime) ResolveClass(name string) (registry.ClassDescriptor, bool) {
	return rt.catalog.Resolve(name)
}

// ListClasses returns every registered class, optionally filtered to one
// module, honouring the class's registration order.
func (rt *Runtime) ListClasses(moduleID string) []registry.ClassDescriptor {
	return rt.catalog.ListClasses(moduleID)
}

// ClassOrder returns the explicit order set via WithOrder, or the catalog's
// own registration order if none was set. Purely an enumeration hint; the
// Lifecycle Orchestrator's dependency-driven start/stop order is unaffected.
func (rt *Runtime) ClassOrder() []string {
	if len(rt.preferredOrder) > 0 {
		return append([]string{}, rt.preferredOrder...)
	}
	out := make([]string, 0, 8)
	for _, desc := range rt.catalog.ListClasses("") {
		out = append(out, desc.ClassName)
	}
	return out
}

// =============================================================================
// Object Repository (delegates to Repository)
// =============================================================================

// CreateObject constructs an object of className via its registered
// factory (if any) and inserts the resulting record into the repository.
// configBlob is passed to the factory, not to Initialize — see Startup.
func (rt *Runtime) CreateObject(className, objectName, configBlob string) (*registry.Object, error) {
	rt.mu.Lock()
	factory := rt.factories[className]
	rt.mu.Unlock()

	var handle any
	var caps *registry.CapabilitySet
	if factory != nil {
		var err error
		handle, caps, err = factory(configBlob)
		if err != nil {
			return nil, fmt.Errorf("construct object of class %q: %w", className, err)
		}
	}

	return rt.repo.Create(className, objectName, caps, handle)
}

// GetObject returns the live object registered under name.
func (rt *Runtime) GetObject(name string) (*registry.Object, bool) {
	return rt.repo.Get(name)
}

// ListObjects returns every live object in creation order.
func (rt *Runtime) ListObjects() []registry.Object {
	return rt.repo.List()
}

// Query resolves a capability handle on the named object, total and
// non-blocking per §4.1.
func (rt *Runtime) Query(objectName string, capID registry.CapabilityID) (any, bool) {
	obj, ok := rt.repo.Get(objectName)
	if !ok {
		return nil, false
	}
	return obj.Capability.Query(capID)
}

// =============================================================================
// Lifecycle Orchestrator
// =============================================================================

// Startup drives every live object through initialization in dependency
// order, invoking Initialize (if the handle implements Initializer) with
// configBlob.
func (rt *Runtime) Startup(configBlob string) error {
	return rt.lifecycle.InitializeAll(func(obj *registry.Object) error {
		init, ok := obj.Handle.(Initializer)
		if !ok {
			return nil
		}
		return init.Initialize(configBlob)
	})
}

// SetMode drives every live object (and the dispatch service) to mode.
// registry.StatusConfiguring and registry.StatusRunning also set the
// dispatch service's own mode gate; any other value (including
// registry.StatusInitialized) is passed through to the per-object hook but
// leaves that gate untouched.
func (rt *Runtime) SetMode(mode registry.ObjectStatus) error {
	switch mode {
	case registry.StatusConfiguring:
		rt.store.SetMode(dispatch.ModeConfiguring)
	case registry.StatusRunning:
		rt.store.SetMode(dispatch.ModeRunning)
	}

	return rt.lifecycle.SetMode(mode, func(obj *registry.Object, mode registry.ObjectStatus) error {
		setter, ok := obj.Handle.(ModeSetter)
		if !ok {
			return nil
		}
		return setter.SetMode(mode)
	})
}

// shutdownHook type-asserts an object's handle against Shutdowner, shared by
// Shutdown (every live object) and DestroyObject (a single one).
func shutdownHook(obj *registry.Object) error {
	down, ok := obj.Handle.(Shutdowner)
	if !ok {
		return nil
	}
	return down.Shutdown()
}

// Shutdown stops the trigger scheduler, puts the dispatch service into its
// stopped mode, then drives every live object through shutdown in reverse
// dependency order.
func (rt *Runtime) Shutdown() error {
	rt.scheduler.Stop()
	rt.store.SetMode(dispatch.ModeStopped)

	return rt.lifecycle.ShutdownAll(shutdownHook)
}

// DestroyObject drives the single named object through shutting_down and
// destruction_pending (invoking its Shutdowner hook, if implemented) before
// removing it from the repository, freeing a singleton class's slot for a
// subsequent CreateObject without tearing down every other live object.
func (rt *Runtime) DestroyObject(objectName string) error {
	obj, ok := rt.repo.Get(objectName)
	if !ok {
		return fmt.Errorf("%w: %q", registry.ErrUnknownObject, objectName)
	}
	return rt.lifecycle.Destroy(obj.ID, shutdownHook)
}

// Run starts the trigger scheduler and the dispatch service, transitions to
// running, then blocks until ctx is cancelled (the "inter-process shutdown
// signal" of §6), finally driving a full Shutdown before returning.
func (rt *Runtime) Run(ctx context.Context) error {
	rt.scheduler.Start()
	if err := rt.SetMode(registry.StatusRunning); err != nil {
		rt.scheduler.Stop()
		return err
	}

	<-ctx.Done()

	return rt.Shutdown()
}

// =============================================================================
// Signal Dispatch Service (delegates to Store / TransactionManager / Scheduler)
// =============================================================================

// RegisterTx creates (or reopens) a tx signal and returns a provider handle.
func (rt *Runtime) RegisterTx(name string, defaultVal any) (*dispatch.Provider, error) {
	return rt.store.RegisterTx(name, defaultVal)
}

// RegisterRx creates (or reopens) an rx signal and returns a consumer handle.
func (rt *Runtime) RegisterRx(name string) (*dispatch.Consumer, error) {
	return rt.store.RegisterRx(name)
}

// AddPublisher attaches an additional writer to an already-registered tx signal.
func (rt *Runtime) AddPublisher(name string) (*dispatch.Provider, error) {
	return rt.store.AddPublisher(name)
}

// Subscribe attaches a push-callback reader to an rx signal.
func (rt *Runtime) Subscribe(name string, onChange func(value any)) (*dispatch.Consumer, error) {
	return rt.store.Subscribe(name, onChange)
}

// Enumerate returns every registered signal's name and direction.
func (rt *Runtime) Enumerate() []dispatch.SignalInfo {
	return rt.store.Enumerate()
}

// BeginTransaction allocates a new read-or-write transaction.
func (rt *Runtime) BeginTransaction() *dispatch.Transaction {
	return rt.txManager.Begin()
}

// CreateTrigger constructs a new trigger on the dispatch service's scheduler.
func (rt *Runtime) CreateTrigger(cycleMs, minDelayMs uint32, behavior dispatch.TriggerBehavior, callback func()) (*dispatch.Trigger, error) {
	return rt.scheduler.Create(cycleMs, minDelayMs, behavior, callback)
}

// AttachSignal attaches a tx signal to trigger so direct writes can fire it.
func (rt *Runtime) AttachSignal(t *dispatch.Trigger, signalName string) bool {
	return rt.scheduler.AttachSignal(t, rt.store, signalName)
}

// DetachSignal removes signalName from trigger's attached set.
func (rt *Runtime) DetachSignal(t *dispatch.Trigger, signalName string) {
	rt.scheduler.DetachSignal(t, signalName)
}

// DestroyTrigger cancels trigger's periodic timer and detaches it from every
// attached signal.
func (rt *Runtime) DestroyTrigger(t *dispatch.Trigger) {
	rt.scheduler.Destroy(t)
}

// =============================================================================
// Utility Accessors
// =============================================================================

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *logger.Logger { return rt.log }

// Catalog returns the underlying class catalog for advanced use cases.
func (rt *Runtime) Catalog() *registry.Catalog { return rt.catalog }

// Repository returns the underlying object repository for advanced use cases.
func (rt *Runtime) Repository() *registry.Repository { return rt.repo }
