package bingo

import (
	"testing"

	"pgregory.net/rapid"
)

// TestDrawNeverRepeatsProperty plays a full round of draws: no number repeats,
// the called set only grows, and the pool reports exhaustion afterwards.
func TestDrawNeverRepeatsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := seededRand(t)
		called := make(map[int]struct{})

		for i := 0; i < UniverseSize; i++ {
			before := len(called)
			n, ok := NextNumber(called, r)
			if !ok {
				t.Fatalf("pool exhausted after %d draws", i)
			}
			if !InUniverse(n) {
				t.Fatalf("drew %d outside universe", n)
			}
			if _, dup := called[n]; dup {
				t.Fatalf("number %d drawn twice", n)
			}
			called[n] = struct{}{}
			if len(called) != before+1 {
				t.Fatalf("called set did not grow: %d -> %d", before, len(called))
			}
		}

		for i := 0; i < 3; i++ {
			if n, ok := NextNumber(called, r); ok {
				t.Fatalf("exhausted pool returned %d", n)
			}
		}
		if !Exhausted(called) {
			t.Fatalf("Exhausted() = false with full called set")
		}
	})
}

// TestDrawRespectsOutOfBandCallsProperty checks that numbers added to the set
// by the caller are never drawn.
func TestDrawRespectsOutOfBandCallsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seq := rapid.SliceOfNDistinct(rapid.IntRange(MinNumber, MaxNumber), 0, UniverseSize, rapid.ID[int]).Draw(t, "called")
		called := CalledSet(seq)

		n, ok := NextNumber(called, seededRand(t))
		if len(seq) == UniverseSize {
			if ok {
				t.Fatalf("expected exhaustion, drew %d", n)
			}
			return
		}
		if !ok {
			t.Fatalf("pool reported exhausted with %d called", len(seq))
		}
		if _, dup := called[n]; dup {
			t.Fatalf("drew already called number %d", n)
		}
	})
}
