package registry

import "testing"

func TestLifecycleInitializeAllOrdersByDependency(t *testing.T) {
	c := NewCatalog()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	must(c.RegisterClass(ClassDescriptor{ClassName: "Engine"}))
	must(c.RegisterClass(ClassDescriptor{ClassName: "Transmission", Dependencies: []string{"Engine"}}))

	r := NewRepository(c)
	if _, err := r.Create("Engine", "", nil, nil); err != nil {
		t.Fatalf("create Engine: %v", err)
	}
	if _, err := r.Create("Transmission", "", nil, nil); err != nil {
		t.Fatalf("create Transmission: %v", err)
	}

	var order []string
	lc := NewLifecycle(c, r, nil, nil)
	if err := lc.InitializeAll(func(obj *Object) error {
		order = append(order, obj.Class.ClassName)
		return nil
	}); err != nil {
		t.Fatalf("InitializeAll failed: %v", err)
	}

	if len(order) != 2 || order[0] != "Engine" || order[1] != "Transmission" {
		t.Fatalf("expected [Engine Transmission], got %v", order)
	}

	for _, name := range r.ListNames() {
		obj, _ := r.Get(name)
		if obj.Status != StatusInitialized {
			t.Fatalf("object %q expected StatusInitialized, got %v", name, obj.Status)
		}
	}
}

func TestLifecyclePropagatesInitFailureToDependents(t *testing.T) {
	c := NewCatalog()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	must(c.RegisterClass(ClassDescriptor{ClassName: "Engine"}))
	must(c.RegisterClass(ClassDescriptor{ClassName: "Transmission", Dependencies: []string{"Engine"}}))

	r := NewRepository(c)
	if _, err := r.Create("Engine", "", nil, nil); err != nil {
		t.Fatalf("create Engine: %v", err)
	}
	if _, err := r.Create("Transmission", "", nil, nil); err != nil {
		t.Fatalf("create Transmission: %v", err)
	}

	var transmissionHookCalled bool
	lc := NewLifecycle(c, r, nil, nil)
	err := lc.InitializeAll(func(obj *Object) error {
		if obj.Class.ClassName == "Engine" {
			return errFailingInit
		}
		transmissionHookCalled = true
		return nil
	})
	if err != nil {
		t.Fatalf("InitializeAll should continue past a failure, got error: %v", err)
	}
	if transmissionHookCalled {
		t.Fatal("dependent's hook should never run once its dependency failed")
	}

	engine, _ := r.Get("Engine#1")
	transmission, _ := r.Get("Transmission#1")
	if engine.Status != StatusInitFailure {
		t.Fatalf("Engine expected StatusInitFailure, got %v", engine.Status)
	}
	if transmission.Status != StatusInitFailure {
		t.Fatalf("Transmission expected propagated StatusInitFailure, got %v", transmission.Status)
	}
}

var errFailingInit = &initError{"boom"}

type initError struct{ msg string }

func (e *initError) Error() string { return e.msg }
