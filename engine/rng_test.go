package engine

import "testing"

func TestRNG_Deterministic(t *testing.T) {
	rng1 := NewRNG(42)
	rng2 := NewRNG(42)

	for i := 0; i < 20; i++ {
		a := rng1.Pick(8)
		b := rng2.Pick(8)
		if a != b {
			t.Fatalf("pick %d: got %d and %d from same seed", i, a, b)
		}
	}
}

func TestRNG_Pick_Range(t *testing.T) {
	rng := NewRNG(99)

	for i := 0; i < 1000; i++ {
		p := rng.Pick(8)
		if p < 0 || p > 7 {
			t.Fatalf("pick out of range [0,8): got %d", p)
		}
	}
}

func TestRNG_Pick_SingleOption(t *testing.T) {
	rng := NewRNG(1)

	for i := 0; i < 10; i++ {
		if p := rng.Pick(1); p != 0 {
			t.Fatalf("single option should always be 0, got %d", p)
		}
	}
}

func TestRNG_Roll_Range(t *testing.T) {
	rng := NewRNG(7)

	for i := 0; i < 1000; i++ {
		r := rng.Roll(6)
		if r < 1 || r > 6 {
			t.Fatalf("roll out of range [1,6]: got %d", r)
		}
	}
}

func TestRNG_Position_Tracks(t *testing.T) {
	rng := NewRNG(42)

	if rng.Position() != 0 {
		t.Fatalf("expected position 0, got %d", rng.Position())
	}

	rng.Pick(8)
	if rng.Position() != 1 {
		t.Fatalf("expected position 1, got %d", rng.Position())
	}

	rng.Roll(6)
	rng.Pick(3)
	if rng.Position() != 3 {
		t.Fatalf("expected position 3, got %d", rng.Position())
	}
}

func TestRNG_Restore_MatchesPosition(t *testing.T) {
	// Advance an RNG to position 10 and record the next 5 picks.
	rng := NewRNG(42)
	for i := 0; i < 10; i++ {
		rng.Pick(8)
	}

	var expected [5]int
	for i := range expected {
		expected[i] = rng.Pick(8)
	}

	// Restore to position 10 and verify same picks.
	restored := RestoreRNG(42, 10)
	if restored.Position() != 10 {
		t.Fatalf("expected position 10, got %d", restored.Position())
	}

	for i, want := range expected {
		got := restored.Pick(8)
		if got != want {
			t.Fatalf("pick %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestRNG_DifferentSeeds_DifferentResults(t *testing.T) {
	rng1 := NewRNG(1)
	rng2 := NewRNG(2)

	differs := false
	for i := 0; i < 20; i++ {
		if rng1.Pick(100) != rng2.Pick(100) {
			differs = true
			break
		}
	}
	if !differs {
		t.Error("expected different seeds to produce different results")
	}
}
