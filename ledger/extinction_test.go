package ledger

import (
	"math/rand"
	"testing"
)

// firstAfterLinear is the reference implementation FirstAfter is checked
// against: a linear scan for the leftmost entry strictly greater than ts.
func firstAfterLinear(entries []uint64, ts uint64) (uint64, bool) {
	for _, e := range entries {
		if e > ts {
			return e, true
		}
	}
	return 0, false
}

func TestFirstAfterEmpty(t *testing.T) {
	l := new(ExtinctionList)
	if _, ok := l.FirstAfter(42); ok {
		t.Fatal("empty ledger returned an entry")
	}
	if _, ok := l.Earliest(); ok {
		t.Fatal("empty ledger has an earliest entry")
	}
}

func TestFirstAfterBoundaries(t *testing.T) {
	l := new(ExtinctionList)
	for _, ts := range []uint64{100, 250, 400} {
		l.Append(ts)
	}

	tests := []struct {
		ts     uint64
		want   uint64
		wantOK bool
	}{
		{0, 100, true},    // before first entry
		{99, 100, true},
		{100, 250, true},  // strictly greater, not >=
		{249, 250, true},
		{250, 400, true},
		{399, 400, true},
		{400, 0, false},   // at last entry
		{401, 0, false},   // past last entry
	}
	for _, tt := range tests {
		got, ok := l.FirstAfter(tt.ts)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("FirstAfter(%d) = (%d, %v), want (%d, %v)", tt.ts, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestFirstAfterMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 100; trial++ {
		l := new(ExtinctionList)
		ts := uint64(0)
		for i := 0; i < rng.Intn(40); i++ {
			ts += 1 + uint64(rng.Intn(1000))
			l.Append(ts)
		}
		entries := l.Entries()
		for probe := 0; probe < 200; probe++ {
			q := uint64(rng.Intn(int(ts + 100)))
			got, gotOK := l.FirstAfter(q)
			want, wantOK := firstAfterLinear(entries, q)
			if got != want || gotOK != wantOK {
				t.Fatalf("trial %d: FirstAfter(%d) = (%d, %v), linear scan (%d, %v), entries %v",
					trial, q, got, gotOK, want, wantOK, entries)
			}
		}
	}
}

func TestAppendRejectsNonMonotonic(t *testing.T) {
	l := new(ExtinctionList)
	l.Append(100)
	defer func() {
		if recover() == nil {
			t.Fatal("appending a non-monotonic timestamp did not panic")
		}
	}()
	l.Append(100)
}

func TestRestore(t *testing.T) {
	l, ok := Restore([]uint64{10, 20, 30})
	if !ok || l.Len() != 3 {
		t.Fatalf("Restore of sorted entries failed (ok=%v len=%d)", ok, l.Len())
	}
	if _, ok := Restore([]uint64{10, 10}); ok {
		t.Fatal("Restore accepted duplicate timestamps")
	}
	if _, ok := Restore([]uint64{20, 10}); ok {
		t.Fatal("Restore accepted unsorted timestamps")
	}
}
