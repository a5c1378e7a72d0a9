// Package ledger records extinction events as an ordered, append-only list
// of timestamps with logarithmic history lookup.
package ledger

import "sort"

// ExtinctionList is the ordered history of extinction timestamps. Entries
// are only ever appended, never removed or reordered, so the backing slice
// stays sorted by construction and lookups are plain binary searches.
type ExtinctionList struct {
	entries []uint64
}

// Restore rebuilds a list from persisted entries. The slice must already be
// strictly increasing; ok reports whether it was.
func Restore(entries []uint64) (*ExtinctionList, bool) {
	for i := 1; i < len(entries); i++ {
		if entries[i] <= entries[i-1] {
			return nil, false
		}
	}
	l := &ExtinctionList{entries: make([]uint64, len(entries))}
	copy(l.entries, entries)
	return l, true
}

// Append records a new extinction timestamp. Timestamps arrive from a
// monotonic clock and staking cannot resume until after a heal, so ts is
// always strictly greater than the last entry; anything else is a caller
// bug.
func (l *ExtinctionList) Append(ts uint64) {
	if n := len(l.entries); n > 0 && ts <= l.entries[n-1] {
		panic("ledger: non-monotonic extinction timestamp")
	}
	l.entries = append(l.entries, ts)
}

// FirstAfter returns the earliest entry strictly greater than ts.
func (l *ExtinctionList) FirstAfter(ts uint64) (uint64, bool) {
	n := len(l.entries)
	if n == 0 || ts >= l.entries[n-1] {
		return 0, false
	}
	i := sort.Search(n, func(i int) bool { return l.entries[i] > ts })
	return l.entries[i], true
}

// Earliest returns the first recorded extinction, if any.
func (l *ExtinctionList) Earliest() (uint64, bool) {
	if len(l.entries) == 0 {
		return 0, false
	}
	return l.entries[0], true
}

// Latest returns the most recent recorded extinction, if any.
func (l *ExtinctionList) Latest() (uint64, bool) {
	if len(l.entries) == 0 {
		return 0, false
	}
	return l.entries[len(l.entries)-1], true
}

// Len returns the number of recorded extinctions.
func (l *ExtinctionList) Len() int { return len(l.entries) }

// Entries returns a copy of the full history, oldest first.
func (l *ExtinctionList) Entries() []uint64 {
	out := make([]uint64, len(l.entries))
	copy(out, l.entries)
	return out
}
