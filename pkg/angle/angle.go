package angle

import "math"

const twoPi = 2 * math.Pi

// PlusMinus180 is an angle in degrees, stored as a value in range (-180, 180].
// All operations clamp their output into range.
type PlusMinus180 struct {
	float64
}

func (a PlusMinus180) Add(b PlusMinus180) PlusMinus180 {
	return FromFloat(a.float64 + b.float64)
}

func (a PlusMinus180) Sub(b PlusMinus180) PlusMinus180 {
	return FromFloat(a.float64 - b.float64)
}

func (a PlusMinus180) AddFloat(f float64) PlusMinus180 {
	return FromFloat(a.float64 + f)
}

func (a PlusMinus180) SubFloat(f float64) PlusMinus180 {
	return FromFloat(a.float64 - f)
}

// Float returns the angle in degrees, range (-180, 180].
func (a PlusMinus180) Float() float64 {
	return a.float64
}

// Radians returns the angle in radians, range (-pi, pi].
func (a PlusMinus180) Radians() float64 {
	return a.float64 * math.Pi / 180
}

// FromFloat converts a float of any magnitude to a PlusMinus180 by calculating
// f mod 360 and shifting into range.
func FromFloat(f float64) PlusMinus180 {
	d := math.Mod(f, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return PlusMinus180{d}
}

func FromRadians(r float64) PlusMinus180 {
	return FromFloat(r * 180 / math.Pi)
}

// WrapRadians maps any angle into [0, 2pi).
func WrapRadians(a float64) float64 {
	w := math.Mod(a, twoPi)
	if w < 0 {
		w += twoPi
	}
	if w >= twoPi {
		// math.Mod of a tiny negative value can round up to exactly 2pi.
		w = 0
	}
	return w
}

// WrapPlusMinusPi maps any angle into (-pi, pi].
func WrapPlusMinusPi(a float64) float64 {
	w := WrapRadians(a)
	if w > math.Pi {
		w -= twoPi
	}
	return w
}

// Difference returns the smallest magnitude difference between a and b, in [0, pi].
func Difference(a, b float64) float64 {
	d := WrapRadians(math.Abs(a - b))
	if d > math.Pi {
		return twoPi - d
	}
	return d
}

// StepTowards moves current towards target by at most step.
func StepTowards(current, target, step float64) float64 {
	if math.Abs(current-target) <= step {
		return target
	}
	if target < current {
		return current - step
	}
	return current + step
}

// StepTowardsCircular moves current towards target by at most step, taking the short
// way round the circle.  The result is in [0, 2pi).
func StepTowardsCircular(current, target, step float64) float64 {
	current = WrapRadians(current)
	target = WrapRadians(target)

	diff := target - current
	dist := math.Abs(diff)
	if dist <= step {
		return target
	}
	direction := math.Copysign(1, diff)
	if dist > math.Pi {
		// Shorter to go the other way, across the 0/2pi seam.
		if twoPi-dist <= step {
			return target
		}
		return WrapRadians(current - direction*step)
	}
	return current + direction*step
}
