// Package swarm is a bounded worker pool whose concurrency backs off when the
// provider throttles.
package swarm

import (
	"context"
	"sync"
	"time"
)

// Task represents a unit of work for the swarm.
type Task func(ctx context.Context) error

// Engine runs submitted tasks with at most Concurrency() running at once.
type Engine struct {
	aimd *AIMD
	// IsThrottled classifies task errors for AIMD feedback. Nil means never throttled.
	IsThrottled func(error) bool

	wg     sync.WaitGroup
	mu     sync.Mutex
	active int
	wake   chan struct{}
	stats  Stats
}

// Stats holds runtime statistics for the engine.
type Stats struct {
	ActiveWorkers  int
	Concurrency    int
	TasksCompleted int64
	TasksFailed    int64
	Throttled      int64
}

// NewEngine creates a pool that runs up to maxWorkers tasks concurrently.
func NewEngine(maxWorkers int) *Engine {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	aimd := NewAIMD(maxWorkers, 1, maxWorkers)
	aimd.SetLatencyTarget(2 * time.Second)
	return &Engine{
		aimd: aimd,
		wake: make(chan struct{}),
	}
}

// Submit blocks until a worker slot is free, then runs t in the background.
// It returns ctx.Err() if ctx ends before a slot frees up, in which case t
// never runs.
func (e *Engine) Submit(ctx context.Context, t Task) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.release()

		start := time.Now()
		err := t(ctx)
		latency := time.Since(start)

		throttled := err != nil && e.IsThrottled != nil && e.IsThrottled(err)
		e.aimd.Feedback(latency, throttled)

		e.mu.Lock()
		e.stats.TasksCompleted++
		if err != nil {
			e.stats.TasksFailed++
		}
		if throttled {
			e.stats.Throttled++
		}
		e.mu.Unlock()
	}()
	return nil
}

// Wait blocks until every submitted task has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// GetStats returns current engine stats.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.ActiveWorkers = e.active
	s.Concurrency = e.aimd.GetConcurrency()
	return s
}

func (e *Engine) acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.mu.Lock()
		if e.active < e.aimd.GetConcurrency() {
			e.active++
			e.mu.Unlock()
			return nil
		}
		wake := e.wake
		e.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

func (e *Engine) release() {
	e.mu.Lock()
	e.active--
	close(e.wake)
	e.wake = make(chan struct{})
	e.mu.Unlock()
}
