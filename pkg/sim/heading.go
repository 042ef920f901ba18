package sim

import (
	"math"
	"sync"
)

// Heading is a perfect gyro.  It integrates whatever turn rate the simulation feeds it.
type Heading struct {
	lock    sync.Mutex
	heading float64 // degrees
	zero    float64
	rate    float64
}

func (h *Heading) Advance(omega, dt float64) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.rate = omega * 180 / math.Pi
	h.heading += h.rate * dt
}

func (h *Heading) Heading() float64 {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.heading - h.zero
}

func (h *Heading) Rate() float64 {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.rate
}

func (h *Heading) Reset() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.zero = h.heading
}

func (h *Heading) Calibrate() error {
	return nil
}
