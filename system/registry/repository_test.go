package registry

import (
	"errors"
	"testing"
)

func newTestCatalog(t *testing.T, desc ClassDescriptor) *Catalog {
	t.Helper()
	c := NewCatalog()
	if err := c.RegisterClass(desc); err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}
	return c
}

func TestRepositoryCreateDefaultName(t *testing.T) {
	c := newTestCatalog(t, ClassDescriptor{ClassName: "Wiper", DefaultObjectName: "wiper_front"})
	r := NewRepository(c)

	obj, err := r.Create("Wiper", "", nil, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if obj.Name != "wiper_front" {
		t.Fatalf("expected default object name, got %q", obj.Name)
	}
}

func TestRepositoryCreateGeneratedName(t *testing.T) {
	c := newTestCatalog(t, ClassDescriptor{ClassName: "Wiper"})
	r := NewRepository(c)

	first, err := r.Create("Wiper", "", nil, nil)
	if err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	second, err := r.Create("Wiper", "", nil, nil)
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	if first.Name == second.Name {
		t.Fatalf("expected distinct generated names, got %q twice", first.Name)
	}
}

func TestRepositoryDuplicateObjectName(t *testing.T) {
	c := newTestCatalog(t, ClassDescriptor{ClassName: "Wiper"})
	r := NewRepository(c)

	if _, err := r.Create("Wiper", "front", nil, nil); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := r.Create("Wiper", "front", nil, nil); !errors.Is(err, ErrDuplicateObjectName) {
		t.Fatalf("expected ErrDuplicateObjectName, got %v", err)
	}
}

func TestRepositorySingletonViolation(t *testing.T) {
	desc := ClassDescriptor{ClassName: "BodyController", Flags: map[ClassFlag]bool{FlagSingleton: true}}
	c := newTestCatalog(t, desc)
	r := NewRepository(c)

	if _, err := r.Create("BodyController", "", nil, nil); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	if _, err := r.Create("BodyController", "", nil, nil); !errors.Is(err, ErrSingletonViolation) {
		t.Fatalf("expected ErrSingletonViolation, got %v", err)
	}
}

func TestRepositoryUnknownClass(t *testing.T) {
	c := NewCatalog()
	r := NewRepository(c)
	if _, err := r.Create("Nope", "", nil, nil); !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("expected ErrUnknownClass, got %v", err)
	}
}

func TestRepositoryDependencyMissing(t *testing.T) {
	c := NewCatalog()
	if err := c.RegisterClass(ClassDescriptor{ClassName: "Engine"}); err != nil {
		t.Fatalf("RegisterClass(Engine) failed: %v", err)
	}
	if err := c.RegisterClass(ClassDescriptor{ClassName: "Transmission", Dependencies: []string{"Engine"}}); err != nil {
		t.Fatalf("RegisterClass(Transmission) failed: %v", err)
	}
	r := NewRepository(c)

	if _, err := r.Create("Transmission", "", nil, nil); !errors.Is(err, ErrDependencyMissing) {
		t.Fatalf("expected ErrDependencyMissing before Engine exists, got %v", err)
	}
	if _, err := r.Create("Engine", "", nil, nil); err != nil {
		t.Fatalf("Create(Engine) failed: %v", err)
	}
	if _, err := r.Create("Transmission", "", nil, nil); err != nil {
		t.Fatalf("expected Transmission create to succeed once Engine exists, got %v", err)
	}
}

func TestRepositoryRemoveFreesSingletonSlot(t *testing.T) {
	desc := ClassDescriptor{ClassName: "BodyController", Flags: map[ClassFlag]bool{FlagSingleton: true}}
	c := newTestCatalog(t, desc)
	r := NewRepository(c)
	lc := NewLifecycle(c, r, nil, nil)

	obj, err := r.Create("BodyController", "", nil, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var hookCalled bool
	if err := lc.Destroy(obj.ID, func(o *Object) error {
		hookCalled = true
		if o.Status != StatusShuttingDown {
			t.Fatalf("expected hook to observe StatusShuttingDown, got %v", o.Status)
		}
		return nil
	}); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if !hookCalled {
		t.Fatal("expected shutdown hook to be invoked")
	}
	if _, ok := r.GetByID(obj.ID); ok {
		t.Fatal("expected object removed from repository after Destroy")
	}
	if _, err := r.Create("BodyController", "", nil, nil); err != nil {
		t.Fatalf("expected singleton slot freed after Destroy, got: %v", err)
	}
}
