package replay

import (
	"testing"

	"endorsegraph/types/ids"
)

func addr(b byte) ids.Address {
	var a ids.Address
	a[19] = b
	return a
}

func TestStrictGuard(t *testing.T) {
	g := NewStrict()
	u := addr(1)

	if err := g.Check(u, 1); err != nil {
		t.Fatalf("fresh identity rejected: %v", err)
	}
	g.Commit(u, 1)

	if err := g.Check(u, 1); err == nil {
		t.Error("equal timestamp accepted by strict guard")
	}
	if err := g.Check(u, 0); err == nil {
		t.Error("earlier timestamp accepted by strict guard")
	}
	if err := g.Check(u, 2); err != nil {
		t.Errorf("later timestamp rejected: %v", err)
	}
}

func TestNonStrictGuardAllowsEqual(t *testing.T) {
	g := NewNonStrict()
	u := addr(2)
	g.Commit(u, 100)

	if err := g.Check(u, 100); err != nil {
		t.Errorf("equal timestamp rejected by non-strict guard: %v", err)
	}
	if err := g.Check(u, 99); err == nil {
		t.Error("earlier timestamp accepted by non-strict guard")
	}
}

func TestGuardIsPerIdentity(t *testing.T) {
	g := NewStrict()
	g.Commit(addr(1), 50)

	if err := g.Check(addr(2), 1); err != nil {
		t.Errorf("unrelated identity rejected: %v", err)
	}
	if got := g.Last(addr(1)); got != 50 {
		t.Errorf("Last = %d, want 50", got)
	}
}

func TestCheckDoesNotMutate(t *testing.T) {
	g := NewStrict()
	u := addr(3)

	if err := g.Check(u, 10); err != nil {
		t.Fatal(err)
	}
	// Check alone must not advance state.
	if err := g.Check(u, 10); err != nil {
		t.Fatal("Check mutated guard state")
	}
}
