package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ObjectStatus tracks an object record through the lifecycle state machine
// driven by lifecycle.go.
type ObjectStatus int

const (
	StatusInitPending ObjectStatus = iota
	StatusInitializing
	StatusInitFailure
	StatusInitialized
	StatusConfiguring
	StatusRunning
	StatusShuttingDown
	StatusDestructionPending
)

func (s ObjectStatus) String() string {
	switch s {
	case StatusInitPending:
		return "init_pending"
	case StatusInitializing:
		return "initializing"
	case StatusInitFailure:
		return "init_failure"
	case StatusInitialized:
		return "initialized"
	case StatusConfiguring:
		return "configuring"
	case StatusRunning:
		return "running"
	case StatusShuttingDown:
		return "shutting_down"
	case StatusDestructionPending:
		return "destruction_pending"
	default:
		return "unknown"
	}
}

// ObjectFlag marks provenance/ownership attributes of an object record.
type ObjectFlag int

const (
	FlagControlled ObjectFlag = iota
	FlagForeign
	FlagIsolated
)

// Object is an Object Record: a live instance of a registered class.
type Object struct {
	ID         string
	Name       string
	Class      ClassDescriptor
	Status     ObjectStatus
	Flags      map[ObjectFlag]bool
	Capability *CapabilitySet
	Handle     any // the caller-supplied instance behind Capability
}

func (o Object) clone() Object {
	out := o
	out.Flags = make(map[ObjectFlag]bool, len(o.Flags))
	for k, v := range o.Flags {
		out.Flags[k] = v
	}
	return out
}

// Repository is the Object Repository: the single owner of all live object
// records, keyed by object name with singleton enforcement per class.
type Repository struct {
	mu sync.RWMutex

	catalog *Catalog

	byID   map[string]*Object
	byName map[string]string // object_name -> object_id
	order  []string          // object_id in creation order

	singletonOwner map[string]string // class_name -> object_id, for FlagSingleton classes

	counters map[string]uint64 // class_name -> next generated-name suffix
}

// NewRepository returns a repository backed by the given catalog.
func NewRepository(catalog *Catalog) *Repository {
	return &Repository{
		catalog:        catalog,
		byID:           make(map[string]*Object),
		byName:         make(map[string]string),
		singletonOwner: make(map[string]string),
		counters:       make(map[string]uint64),
	}
}

var objectSeq uint64

func nextObjectID() string {
	return fmt.Sprintf("obj-%d", atomic.AddUint64(&objectSeq, 1))
}

// Create allocates a new Object Record for class className. objectName may
// be empty, in which case the name is taken from the class's
// DefaultObjectName, falling back to a generated "<class_name>#<n>" name.
// Returns ErrUnknownClass if the class is not registered, ErrDuplicateObjectName
// if the resolved name is already in use, ErrSingletonViolation if the class
// carries FlagSingleton and already has a live instance, and
// ErrDependencyMissing if a declared dependency class has no live instance.
func (r *Repository) Create(className, objectName string, capability *CapabilitySet, handle any) (*Object, error) {
	desc, ok := r.catalog.Resolve(className)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, className)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if desc.IsSingleton() {
		if ownerID, exists := r.singletonOwner[desc.ClassName]; exists {
			return nil, fmt.Errorf("%w: class %q already owned by object %q", ErrSingletonViolation, desc.ClassName, ownerID)
		}
	}

	for _, dep := range desc.Dependencies {
		if r.classInstanceCount(dep) == 0 {
			return nil, fmt.Errorf("%w: class %q requires a live instance of %q", ErrDependencyMissing, desc.ClassName, dep)
		}
	}

	name := strings.TrimSpace(objectName)
	if name == "" {
		name = strings.TrimSpace(desc.DefaultObjectName)
	}
	if name == "" {
		name = r.generateName(desc.ClassName)
	}
	if _, taken := r.byName[name]; taken {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateObjectName, name)
	}

	obj := &Object{
		ID:         nextObjectID(),
		Name:       name,
		Class:      desc,
		Status:     StatusInitPending,
		Flags:      map[ObjectFlag]bool{FlagControlled: true},
		Capability: capability,
		Handle:     handle,
	}

	r.byID[obj.ID] = obj
	r.byName[name] = obj.ID
	r.order = append(r.order, obj.ID)
	if desc.IsSingleton() {
		r.singletonOwner[desc.ClassName] = obj.ID
	}

	return &Object{
		ID: obj.ID, Name: obj.Name, Class: obj.Class, Status: obj.Status,
		Flags: obj.Flags, Capability: obj.Capability, Handle: obj.Handle,
	}, nil
}

// classInstanceCount must be called with r.mu held.
func (r *Repository) classInstanceCount(className string) int {
	n := 0
	for _, id := range r.order {
		if r.byID[id].Class.ClassName == className {
			n++
		}
	}
	return n
}

// generateName must be called with r.mu held.
func (r *Repository) generateName(className string) string {
	for {
		r.counters[className]++
		candidate := fmt.Sprintf("%s#%d", className, r.counters[className])
		if _, taken := r.byName[candidate]; !taken {
			return candidate
		}
	}
}

// Get returns the object registered under name.
func (r *Repository) Get(name string) (*Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	obj := r.byID[id].clone()
	return &obj, true
}

// GetByID returns the object with the given id.
func (r *Repository) GetByID(id string) (*Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	clone := obj.clone()
	return &clone, true
}

// List returns all live objects in creation order.
func (r *Repository) List() []Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Object, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].clone())
	}
	return out
}

// ListNames returns all live object names, sorted.
func (r *Repository) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetStatus updates the status of the object in place. Used by the
// Lifecycle Orchestrator to drive the state machine; repository itself does
// not validate transitions.
func (r *Repository) SetStatus(id string, status ObjectStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownObject, id)
	}
	obj.Status = status
	return nil
}

// Remove deletes the object record entirely. It is the low-level primitive
// behind the shutdown path: it does not itself transition status or invoke
// any hook. Most callers want Lifecycle.Destroy (single object) or
// Lifecycle.ShutdownAll (every live object), which drive shutting_down ->
// destruction_pending and the ShutdownHook before calling this.
func (r *Repository) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownObject, id)
	}
	delete(r.byID, id)
	delete(r.byName, obj.Name)
	if ownerID, exists := r.singletonOwner[obj.Class.ClassName]; exists && ownerID == id {
		delete(r.singletonOwner, obj.Class.ClassName)
	}
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
