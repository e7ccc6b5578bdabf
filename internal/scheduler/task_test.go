package scheduler

import "testing"

func TestRegistryRegisterGetNames(t *testing.T) {
	r := NewRegistry()
	r.Register(Task{Name: "alpha"})
	r.Register(Task{Name: "beta"})

	if _, ok := r.Get("alpha"); !ok {
		t.Fatal("expected alpha to be registered")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("did not expect missing to be registered")
	}

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
}
