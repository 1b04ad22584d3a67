package registry

import (
	"errors"
	"testing"
)

func TestCatalogRegisterAndResolve(t *testing.T) {
	c := NewCatalog()
	modID := c.RegisterModule("headlamp.so", "1.0", "/modules/headlamp.so")

	desc := ClassDescriptor{
		ClassName:         "HeadlampControl",
		Aliases:           []string{"headlamp"},
		DefaultObjectName: "headlamp_control",
		ModuleID:          modID,
	}
	if err := c.RegisterClass(desc); err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}

	if got, ok := c.Resolve("HeadlampControl"); !ok || got.ClassName != "HeadlampControl" {
		t.Fatalf("Resolve by class name failed: %+v, %v", got, ok)
	}
	if got, ok := c.Resolve("headlamp"); !ok || got.ClassName != "HeadlampControl" {
		t.Fatalf("Resolve by alias failed: %+v, %v", got, ok)
	}
	if _, ok := c.Resolve("nope"); ok {
		t.Fatal("expected unknown class to not resolve")
	}
}

func TestCatalogDuplicateClass(t *testing.T) {
	c := NewCatalog()
	desc := ClassDescriptor{ClassName: "A", Aliases: []string{"alias-a"}}
	if err := c.RegisterClass(desc); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}

	if err := c.RegisterClass(ClassDescriptor{ClassName: "A"}); !errors.Is(err, ErrDuplicateClass) {
		t.Fatalf("expected ErrDuplicateClass for duplicate name, got %v", err)
	}
	if err := c.RegisterClass(ClassDescriptor{ClassName: "B", Aliases: []string{"alias-a"}}); !errors.Is(err, ErrDuplicateClass) {
		t.Fatalf("expected ErrDuplicateClass for duplicate alias, got %v", err)
	}
	if err := c.RegisterClass(ClassDescriptor{ClassName: "alias-a"}); !errors.Is(err, ErrDuplicateClass) {
		t.Fatalf("expected ErrDuplicateClass for name colliding with alias, got %v", err)
	}
}

func TestCatalogCircularDependencyRejected(t *testing.T) {
	c := NewCatalog()
	if err := c.RegisterClass(ClassDescriptor{ClassName: "A", Dependencies: []string{"B"}}); err != nil {
		t.Fatalf("register A: %v", err)
	}
	if err := c.RegisterClass(ClassDescriptor{ClassName: "B", Dependencies: []string{"A"}}); !errors.Is(err, ErrCircularDependency) {
		t.Fatalf("expected ErrCircularDependency, got %v", err)
	}
}

func TestCatalogDependencyOrder(t *testing.T) {
	c := NewCatalog()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	must(c.RegisterClass(ClassDescriptor{ClassName: "Engine"}))
	must(c.RegisterClass(ClassDescriptor{ClassName: "Transmission", Dependencies: []string{"Engine"}}))
	must(c.RegisterClass(ClassDescriptor{ClassName: "Drivetrain", Dependencies: []string{"Transmission", "Engine"}}))

	order, err := c.DependencyOrder([]string{"Drivetrain", "Transmission", "Engine"})
	if err != nil {
		t.Fatalf("DependencyOrder failed: %v", err)
	}
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	if pos["Engine"] > pos["Transmission"] || pos["Transmission"] > pos["Drivetrain"] {
		t.Fatalf("unexpected order: %v", order)
	}
}
