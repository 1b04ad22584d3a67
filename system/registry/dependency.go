package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// dependencyGraph tracks declared class-name dependencies and resolves a
// startup/shutdown ordering that satisfies them. The topological sort is an
// iterative fixed-point pass: repeatedly collect every not-yet-resolved name
// whose dependencies are already resolved, until either every name resolves
// or a pass makes no progress (a cycle among the given names). Dependencies
// on names outside the given set are ignored.
type dependencyGraph struct {
	mu   sync.RWMutex
	deps map[string][]string
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{deps: make(map[string][]string)}
}

// set records the declared dependencies for a class name, replacing any
// prior declaration.
func (d *dependencyGraph) set(name string, deps ...string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	filtered := make([]string, 0, len(deps))
	for _, dep := range deps {
		if dep = strings.TrimSpace(dep); dep != "" {
			filtered = append(filtered, dep)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deps[name] = filtered
}

func (d *dependencyGraph) get(name string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string{}, d.deps[name]...)
}

func (d *dependencyGraph) remove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.deps, name)
}

// wouldCycle reports whether declaring name -> deps would introduce a cycle
// among the dependency graph restricted to known names, used at
// registration time so catalog.RegisterClass can reject the class outright
// with ErrCircularDependency instead of deferring the failure to a later
// resolveOrder call.
func (d *dependencyGraph) wouldCycle(name string, deps []string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	visited := make(map[string]bool)
	var visit func(n string) bool
	visit = func(n string) bool {
		if n == name {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		for _, dep := range d.deps[n] {
			if visit(dep) {
				return true
			}
		}
		return false
	}
	for _, dep := range deps {
		if visit(dep) {
			return true
		}
	}
	return false
}

// resolveOrder returns names ordered so that every name's dependencies
// precede it, preserving the input order as a tie-break. Returns
// ErrCircularDependency naming the unresolved set if no valid order exists.
func (d *dependencyGraph) resolveOrder(names []string) ([]string, error) {
	if len(names) == 0 {
		return names, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}

	resolved := make([]string, 0, len(names))
	done := make(map[string]bool, len(names))

	for len(resolved) < len(names) {
		progressed := false

		for _, name := range names {
			if done[name] {
				continue
			}

			waiting := false
			for _, dep := range d.deps[name] {
				if dep = strings.TrimSpace(dep); dep == "" || !set[dep] {
					continue
				}
				if !done[dep] {
					waiting = true
					break
				}
			}
			if waiting {
				continue
			}

			resolved = append(resolved, name)
			done[name] = true
			progressed = true
		}

		if !progressed {
			var unresolved []string
			for _, name := range names {
				if !done[name] {
					unresolved = append(unresolved, name)
				}
			}
			sort.Strings(unresolved)
			return nil, fmt.Errorf("%w: %v", ErrCircularDependency, unresolved)
		}
	}

	return resolved, nil
}

// reverse returns a new slice with the elements of order in reverse,
// used to drive shutdown/backward mode transitions.
func reverse(order []string) []string {
	out := make([]string, len(order))
	for i, v := range order {
		out[len(order)-1-i] = v
	}
	return out
}
