package swervemodule

// DistanceTracker turns the module's wrapping 16-bit encoder count into a running
// total.  Feedback must arrive often enough that the count moves less than half its
// range between updates.
type DistanceTracker struct {
	doneFirstUpdate bool
	lastRaw         int16

	accumulator int64
}

func (d *DistanceTracker) Update(raw int16) {
	if d.doneFirstUpdate {
		// int16 subtraction wraps, which is what we want.
		delta := raw - d.lastRaw
		d.accumulator += int64(delta)
	}
	d.lastRaw = raw
	d.doneFirstUpdate = true
}

func (d *DistanceTracker) Counts() int64 {
	return d.accumulator
}

// Zero restarts the total.  The module restarts its own count at the same time, so the
// next raw value is taken as the new baseline rather than as motion.
func (d *DistanceTracker) Zero() {
	d.accumulator = 0
	d.doneFirstUpdate = false
}
