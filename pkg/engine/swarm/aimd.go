package swarm

import (
	"sync"
	"time"
)

// AIMD adjusts a concurrency limit: additive increase while calls are fast,
// multiplicative decrease when the provider throttles.
type AIMD struct {
	mu            sync.Mutex
	concurrency   int
	minWorkers    int
	maxWorkers    int
	step          int
	latencyTarget time.Duration
	lastChange    time.Time
}

func NewAIMD(start, min, max int) *AIMD {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	if start < min {
		start = min
	}
	if start > max {
		start = max
	}
	return &AIMD{
		concurrency:   start,
		minWorkers:    min,
		maxWorkers:    max,
		step:          5,
		latencyTarget: 100 * time.Millisecond,
	}
}

// SetLatencyTarget sets the latency under which a call counts as healthy.
func (a *AIMD) SetLatencyTarget(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latencyTarget = d
}

func (a *AIMD) GetConcurrency() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.concurrency
}

func (a *AIMD) Feedback(lat time.Duration, throttled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	// dampen oscillation
	if now.Sub(a.lastChange) < 100*time.Millisecond {
		return
	}

	if throttled {
		a.concurrency = a.concurrency / 2
		if a.concurrency < a.minWorkers {
			a.concurrency = a.minWorkers
		}
		a.lastChange = now
		return
	}

	if lat < a.latencyTarget && a.concurrency < a.maxWorkers {
		a.concurrency += a.step
		if a.concurrency > a.maxWorkers {
			a.concurrency = a.maxWorkers
		}
		a.lastChange = now
	}
}
