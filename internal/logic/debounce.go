package logic

// DebounceTimer detects a condition sustained over consecutive ticks.
type DebounceTimer struct {
	count     uint
	threshold uint
}

// NewDebounceTimer creates a timer that elapses once the condition has held
// for more than threshold consecutive ticks.
func NewDebounceTimer(threshold uint) *DebounceTimer {
	return &DebounceTimer{threshold: threshold}
}

// Advance feeds one tick's condition and reports whether the timer has elapsed.
// A false condition resets the count immediately.
func (d *DebounceTimer) Advance(cond bool) bool {
	if !cond {
		d.count = 0
		return false
	}
	d.count++
	return d.Elapsed()
}

// Elapsed reports whether the count is strictly above the threshold.
func (d *DebounceTimer) Elapsed() bool {
	return d.count > d.threshold
}

// Reset clears the count so a full run is required to elapse again.
func (d *DebounceTimer) Reset() {
	d.count = 0
}

// Count returns the current number of consecutive true ticks.
func (d *DebounceTimer) Count() uint {
	return d.count
}

// Threshold returns the configured threshold in ticks.
func (d *DebounceTimer) Threshold() uint {
	return d.threshold
}
