package swarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAIMD_Feedback(t *testing.T) {
	aimd := NewAIMD(10, 5, 20)
	assert.Equal(t, 10, aimd.GetConcurrency())

	// Additive increase on a healthy call.
	aimd.Feedback(50*time.Millisecond, false)
	assert.Equal(t, 15, aimd.GetConcurrency())

	// Changes within the damping window are ignored.
	aimd.Feedback(50*time.Millisecond, false)
	assert.Equal(t, 15, aimd.GetConcurrency())

	// Multiplicative decrease.
	time.Sleep(110 * time.Millisecond)
	aimd.Feedback(500*time.Millisecond, true)
	assert.Equal(t, 7, aimd.GetConcurrency())

	// Floor.
	time.Sleep(110 * time.Millisecond)
	aimd.Feedback(500*time.Millisecond, true)
	time.Sleep(110 * time.Millisecond)
	aimd.Feedback(500*time.Millisecond, true)
	assert.Equal(t, 5, aimd.GetConcurrency())
}

func TestAIMD_Ceiling(t *testing.T) {
	aimd := NewAIMD(18, 1, 20)
	aimd.Feedback(time.Millisecond, false)
	assert.Equal(t, 20, aimd.GetConcurrency())
}

func TestAIMD_LatencyTarget(t *testing.T) {
	aimd := NewAIMD(4, 1, 10)
	aimd.SetLatencyTarget(time.Second)

	aimd.Feedback(1500*time.Millisecond, false)
	assert.Equal(t, 4, aimd.GetConcurrency(), "slow calls do not scale up")

	aimd.Feedback(800*time.Millisecond, false)
	assert.Equal(t, 9, aimd.GetConcurrency())
}

func TestNewAIMDClampsBounds(t *testing.T) {
	assert.Equal(t, 1, NewAIMD(0, 0, 0).GetConcurrency())
	assert.Equal(t, 8, NewAIMD(50, 2, 8).GetConcurrency())
}
