package registry

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// InitHook is invoked once per object during InitializeAll, in dependency
// order. A non-nil error moves the object to StatusInitFailure and, unlike
// the single-abort-on-failure behavior of a plain module loader, does not
// stop the walk: InitializeAll continues so that every object gets an
// initialization attempt, and marks any object whose declared dependency
// failed as failed too without ever invoking its hook.
type InitHook func(obj *Object) error

// ModeHook drives an object across a mode transition (e.g. configuring,
// running). A non-nil error is recorded but does not block sibling objects.
type ModeHook func(obj *Object, mode ObjectStatus) error

// ShutdownHook tears an object down. Errors are logged and shutdown
// continues so that one misbehaving object cannot leak the rest.
type ShutdownHook func(obj *Object) error

// MetricsSink receives lifecycle observability events. Defined here rather
// than imported from pkg/metrics so this package never depends on
// Prometheus directly; pkg/metrics.Recorder implements it.
type MetricsSink interface {
	SetObjectStatus(className, objectName, status string)
}

type noopSink struct{}

func (noopSink) SetObjectStatus(string, string, string) {}

// Lifecycle is the Lifecycle Orchestrator: it walks objects in dependency
// order and drives them through the init_pending -> ... -> destruction_pending
// state machine described by the object repository's ObjectStatus values.
type Lifecycle struct {
	catalog *Catalog
	repo    *Repository
	log     *logrus.Logger
	metrics MetricsSink
}

// NewLifecycle returns a lifecycle orchestrator over the given catalog and
// repository. A nil logger or metrics sink is replaced with a no-op.
func NewLifecycle(catalog *Catalog, repo *Repository, log *logrus.Logger, metrics MetricsSink) *Lifecycle {
	if log == nil {
		log = logrus.New()
	}
	if metrics == nil {
		metrics = noopSink{}
	}
	return &Lifecycle{catalog: catalog, repo: repo, log: log, metrics: metrics}
}

// objectOrder maps a dependency order over class names onto the live
// objects of those classes, since InitializeAll orders objects, not classes.
func (l *Lifecycle) objectOrder() ([]*Object, error) {
	objs := l.repo.List()
	names := make([]string, 0, len(objs))
	byClass := make(map[string][]*Object)
	seen := make(map[string]bool)
	for i := range objs {
		obj := &objs[i]
		byClass[obj.Class.ClassName] = append(byClass[obj.Class.ClassName], obj)
		if !seen[obj.Class.ClassName] {
			seen[obj.Class.ClassName] = true
			names = append(names, obj.Class.ClassName)
		}
	}

	classOrder, err := l.catalog.DependencyOrder(names)
	if err != nil {
		return nil, err
	}

	ordered := make([]*Object, 0, len(objs))
	for _, className := range classOrder {
		ordered = append(ordered, byClass[className]...)
	}
	return ordered, nil
}

// InitializeAll walks every live object in dependency order, invoking hook
// once per object. An object whose class declares a dependency that failed
// (or was itself skipped) is marked StatusInitFailure without ever calling
// hook for it, matching the propagate-failure-to-dependents requirement.
func (l *Lifecycle) InitializeAll(hook InitHook) error {
	ordered, err := l.objectOrder()
	if err != nil {
		return err
	}

	failedClasses := make(map[string]bool)

	for _, obj := range ordered {
		for _, dep := range obj.Class.Dependencies {
			if failedClasses[dep] {
				failedClasses[obj.Class.ClassName] = true
				l.setStatus(obj, StatusInitFailure)
				depErr := fmt.Errorf("%w: dependency %q failed to initialize", ErrInitFailure, dep)
				l.log.WithFields(logrus.Fields{
					"object": obj.Name, "class": obj.Class.ClassName, "error": depErr,
				}).Warn("registry: object init skipped, dependency failed")
				break
			}
		}
		if failedClasses[obj.Class.ClassName] {
			continue
		}

		l.setStatus(obj, StatusInitializing)
		if err := l.safeInit(hook, obj); err != nil {
			failedClasses[obj.Class.ClassName] = true
			l.setStatus(obj, StatusInitFailure)
			l.log.WithFields(logrus.Fields{
				"object": obj.Name, "class": obj.Class.ClassName,
				"error": fmt.Errorf("%w: %v", ErrInitFailure, err),
			}).Error("registry: object init failed")
			continue
		}
		l.setStatus(obj, StatusInitialized)
	}

	return nil
}

// safeInit converts a panicking hook into ErrRuntimeError so one broken
// object cannot crash the whole initialization walk.
func (l *Lifecycle) safeInit(hook InitHook, obj *Object) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRuntimeError, r)
		}
	}()
	if hook == nil {
		return nil
	}
	return hook(obj)
}

// SetMode transitions every initialized (or already-running) object toward
// the given mode, in forward dependency order for running/configuring and
// reverse order when heading back toward initialized.
func (l *Lifecycle) SetMode(mode ObjectStatus, hook ModeHook) error {
	ordered, err := l.objectOrder()
	if err != nil {
		return err
	}
	if mode == StatusInitialized {
		ordered = reverseObjects(ordered)
	}

	for _, obj := range ordered {
		if obj.Status == StatusInitPending || obj.Status == StatusInitializing ||
			obj.Status == StatusInitFailure || obj.Status == StatusShuttingDown || obj.Status == StatusDestructionPending {
			continue
		}
		l.setStatus(obj, mode)
		if hook == nil {
			continue
		}
		if err := hook(obj, mode); err != nil {
			l.log.WithFields(logrus.Fields{
				"object": obj.Name, "mode": mode.String(), "error": err,
			}).Error("registry: object mode transition failed")
		}
	}
	return nil
}

// ShutdownAll drives every live object through shutting_down and
// destruction_pending in reverse dependency order, then removes it from the
// repository. Hook errors are logged and do not stop the walk.
func (l *Lifecycle) ShutdownAll(hook ShutdownHook) error {
	ordered, err := l.objectOrder()
	if err != nil {
		return err
	}
	ordered = reverseObjects(ordered)

	for _, obj := range ordered {
		l.destroyObject(obj, hook)
	}
	return nil
}

// Destroy drives the single live object identified by objectID through
// shutting_down and destruction_pending (invoking hook, if non-nil) before
// removing it from the repository. This is the per-object counterpart to
// ShutdownAll: callers that need to free one object — e.g. to reopen a
// singleton class's slot — use this instead of tearing down the whole
// dependency graph.
func (l *Lifecycle) Destroy(objectID string, hook ShutdownHook) error {
	obj, ok := l.repo.GetByID(objectID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownObject, objectID)
	}
	return l.destroyObject(obj, hook)
}

// destroyObject runs the shutting_down -> destruction_pending transition
// for a single object and removes it from the repository. Shutdown hook
// errors are logged, not propagated, matching ShutdownAll's
// one-misbehaving-object-cannot-block-the-rest contract; a failure to
// remove the object from the repository (already gone) is returned so
// Destroy can report it to its caller.
func (l *Lifecycle) destroyObject(obj *Object, hook ShutdownHook) error {
	l.setStatus(obj, StatusShuttingDown)
	if hook != nil {
		if err := l.safeShutdown(hook, obj); err != nil {
			l.log.WithFields(logrus.Fields{
				"object": obj.Name, "error": err,
			}).Error("registry: object shutdown hook failed")
		}
	}
	l.setStatus(obj, StatusDestructionPending)
	if err := l.repo.Remove(obj.ID); err != nil {
		l.log.WithFields(logrus.Fields{"object": obj.Name, "error": err}).Warn("registry: object already removed")
		return err
	}
	return nil
}

func (l *Lifecycle) safeShutdown(hook ShutdownHook, obj *Object) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRuntimeError, r)
		}
	}()
	return hook(obj)
}

func (l *Lifecycle) setStatus(obj *Object, status ObjectStatus) {
	obj.Status = status
	_ = l.repo.SetStatus(obj.ID, status)
	l.metrics.SetObjectStatus(obj.Class.ClassName, obj.Name, status.String())
}

func reverseObjects(objs []*Object) []*Object {
	out := make([]*Object, len(objs))
	for i, o := range objs {
		out[len(objs)-1-i] = o
	}
	return out
}
