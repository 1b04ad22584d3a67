package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ObjectKind enumerates the kinds of components a class can describe.
type ObjectKind int

const (
	KindSystemObject ObjectKind = iota
	KindDevice
	KindBasicService
	KindComplexService
	KindApplication
	KindProxy
	KindStub
	KindUtility
)

// ClassFlag is a bit in a class descriptor's flag set.
type ClassFlag int

const (
	// FlagSingleton restricts a class to at most one live object.
	FlagSingleton ClassFlag = iota
)

// ModuleInfo describes an externally loaded module that registered classes.
type ModuleInfo struct {
	ID       string
	Filename string
	Version  string
	Path     string
	Active   bool
}

// ClassDescriptor is the immutable record describing a registrable class.
// Once registered it is never mutated; callers receive copies.
type ClassDescriptor struct {
	ClassName         string
	Aliases           []string
	DefaultObjectName string
	Kind              ObjectKind
	Flags             map[ClassFlag]bool
	ModuleID          string
	Dependencies      []string
}

// IsSingleton reports whether the descriptor carries the singleton flag.
func (c ClassDescriptor) IsSingleton() bool {
	return c.Flags[FlagSingleton]
}

// clone returns a deep-enough copy safe to hand to callers outside the lock.
func (c ClassDescriptor) clone() ClassDescriptor {
	out := c
	out.Aliases = append([]string{}, c.Aliases...)
	out.Dependencies = append([]string{}, c.Dependencies...)
	out.Flags = make(map[ClassFlag]bool, len(c.Flags))
	for k, v := range c.Flags {
		out.Flags[k] = v
	}
	return out
}

// Catalog is the Module & Class Catalog: an ordered table of modules and an
// ordered table of classes, keyed by class name with alias resolution.
type Catalog struct {
	mu sync.RWMutex

	moduleOrder []string
	modules     map[string]ModuleInfo

	classOrder []string
	classes    map[string]ClassDescriptor // keyed by class_name
	aliases    map[string]string          // alias -> class_name

	deps *dependencyGraph
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		modules: make(map[string]ModuleInfo),
		classes: make(map[string]ClassDescriptor),
		aliases: make(map[string]string),
		deps:    newDependencyGraph(),
	}
}

// RegisterModule records a newly loaded module and returns its generated id.
func (c *Catalog) RegisterModule(filename, version, path string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	c.modules[id] = ModuleInfo{ID: id, Filename: filename, Version: version, Path: path, Active: true}
	c.moduleOrder = append(c.moduleOrder, id)
	return id
}

// RegisterClass ingests a class descriptor from a module. Fails with
// ErrDuplicateClass if the class name or any alias collides with an
// existing registration, and with ErrCircularDependency if the class's
// declared dependencies would make the dependency graph cyclic.
func (c *Catalog) RegisterClass(desc ClassDescriptor) error {
	name := strings.TrimSpace(desc.ClassName)
	if name == "" {
		return fmt.Errorf("%w: empty class name", ErrDuplicateClass)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.classes[name]; exists {
		return fmt.Errorf("%w: class %q", ErrDuplicateClass, name)
	}
	if _, exists := c.aliases[name]; exists {
		return fmt.Errorf("%w: class %q collides with an alias", ErrDuplicateClass, name)
	}
	for _, alias := range desc.Aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		if _, exists := c.classes[alias]; exists {
			return fmt.Errorf("%w: alias %q collides with a class name", ErrDuplicateClass, alias)
		}
		if _, exists := c.aliases[alias]; exists {
			return fmt.Errorf("%w: alias %q", ErrDuplicateClass, alias)
		}
	}

	if c.deps.wouldCycle(name, desc.Dependencies) {
		return fmt.Errorf("%w: class %q", ErrCircularDependency, name)
	}

	stored := desc.clone()
	stored.ClassName = name
	c.classes[name] = stored
	c.classOrder = append(c.classOrder, name)
	for _, alias := range desc.Aliases {
		if alias = strings.TrimSpace(alias); alias != "" {
			c.aliases[alias] = name
		}
	}
	c.deps.set(name, desc.Dependencies...)

	return nil
}

// Resolve looks up a class descriptor by class_name first, then by alias.
func (c *Catalog) Resolve(name string) (ClassDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if desc, ok := c.classes[name]; ok {
		return desc.clone(), true
	}
	if className, ok := c.aliases[name]; ok {
		return c.classes[className].clone(), true
	}
	return ClassDescriptor{}, false
}

// ListModules returns registered modules in registration order.
func (c *Catalog) ListModules() []ModuleInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ModuleInfo, 0, len(c.moduleOrder))
	for _, id := range c.moduleOrder {
		out = append(out, c.modules[id])
	}
	return out
}

// ListClasses returns registered classes in registration order, optionally
// filtered to one module.
func (c *Catalog) ListClasses(moduleID string) []ClassDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ClassDescriptor, 0, len(c.classOrder))
	for _, name := range c.classOrder {
		desc := c.classes[name]
		if moduleID != "" && desc.ModuleID != moduleID {
			continue
		}
		out = append(out, desc.clone())
	}
	return out
}

// DependencyOrder returns the given class names ordered so that every
// name's declared dependencies precede it.
func (c *Catalog) DependencyOrder(names []string) ([]string, error) {
	return c.deps.resolveOrder(names)
}

// classNames returns all registered class names, sorted.
func (c *Catalog) classNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := append([]string{}, c.classOrder...)
	sort.Strings(out)
	return out
}
