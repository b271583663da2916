package sim

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerAfterFiresOnce(t *testing.T) {
	sc := newScheduler()
	defer sc.Close()

	var fired atomic.Int32
	sc.After(10*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestSchedulerCloseCancelsPending(t *testing.T) {
	sc := newScheduler()

	var fired atomic.Int32
	sc.After(30*time.Millisecond, func() { fired.Add(1) })
	sc.Close()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	// After on a closed scheduler is dropped
	sc.After(time.Millisecond, func() { fired.Add(1) })
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestSchedulerEveryStops(t *testing.T) {
	sc := newScheduler()
	defer sc.Close()

	var ticks atomic.Int32
	stop := sc.Every(10*time.Millisecond, func() { ticks.Add(1) })

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)
	stop()
	stop() // idempotent

	n := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, ticks.Load(), n+1)
}

func TestSchedulerStopReleasesEntry(t *testing.T) {
	sc := newScheduler()
	defer sc.Close()

	for i := 0; i < 20; i++ {
		stop := sc.Every(time.Hour, func() {})
		stop()
	}

	sc.mu.Lock()
	remaining := len(sc.stops)
	sc.mu.Unlock()
	assert.Zero(t, remaining)
}
