// Package epoch converts wall-clock timestamps to discrete epoch numbers.
package epoch

// Clock maps unix timestamps onto fixed-length epochs counted from Start.
// The zero Clock is not usable; build one with New.
type Clock struct {
	start  uint64
	length uint64
}

// New returns a Clock with the given start time (unix seconds) and epoch
// length (seconds). length must be positive; params.Economy.Verify enforces
// that before any Clock is built.
func New(start, length uint64) Clock {
	return Clock{start: start, length: length}
}

// Of returns the epoch a timestamp falls in. Timestamps at or before the
// start time map to epoch 0.
func (c Clock) Of(ts uint64) uint64 {
	if ts <= c.start {
		return 0
	}
	return (ts - c.start) / c.length
}

// Start returns the clock's start time in unix seconds.
func (c Clock) Start() uint64 { return c.start }
