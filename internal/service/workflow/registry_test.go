package workflow

import (
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(DefaultPolicy(), &fakeValidator{}, newLedger(t, 3), nil)

	a := r.Create()
	b := r.Create()
	if a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("expected distinct ids, got %q and %q", a.ID(), b.ID())
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 workflows, got %d", r.Len())
	}

	got, ok := r.Get(a.ID())
	if !ok || got != a {
		t.Errorf("expected to find workflow %s", a.ID())
	}
	if got.State() != StateDictation {
		t.Errorf("expected new workflow in dictation, got %v", got.State())
	}

	if !r.Delete(a.ID()) {
		t.Error("expected delete to report true")
	}
	if r.Delete(a.ID()) {
		t.Error("expected second delete to report false")
	}
	if _, ok := r.Get(a.ID()); ok {
		t.Error("expected workflow to be gone")
	}
}
