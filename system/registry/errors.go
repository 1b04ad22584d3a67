// Package registry implements the Component Registry: the Capability
// Registry, the Module & Class Catalog, the Object Repository, and the
// Lifecycle Orchestrator that drives objects through their operating modes.
package registry

import "errors"

// Sentinel errors returned by catalog and repository operations. Callers use
// errors.Is against these rather than matching on error strings.
var (
	ErrUnknownClass        = errors.New("registry: unknown class")
	ErrDuplicateClass      = errors.New("registry: duplicate class or alias")
	ErrDuplicateObjectName = errors.New("registry: duplicate object name")
	ErrSingletonViolation  = errors.New("registry: singleton class already has a live instance")
	ErrCircularDependency  = errors.New("registry: circular or unresolved class dependency")
	ErrDependencyMissing   = errors.New("registry: declared dependency has no live instance")
	ErrInitFailure         = errors.New("registry: object initialize hook reported failure")
	ErrRuntimeError        = errors.New("registry: object callback panicked")
	ErrUnknownObject       = errors.New("registry: unknown object")
)
