package chat

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func waitForReloads(t *testing.T, counter *atomic.Int64, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if counter.Load() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected at least %d reloads, got %d", want, counter.Load())
}

func TestSchedulerReloadsWhenIdle(t *testing.T) {
	var reloads atomic.Int64
	scheduler := NewRefreshScheduler(20*time.Millisecond, func() { reloads.Add(1) })
	defer scheduler.Stop()

	waitForReloads(t, &reloads, 2)
}

func TestSchedulerSkipsTicksAfterSend(t *testing.T) {
	var reloads atomic.Int64
	scheduler := NewRefreshScheduler(50*time.Millisecond, func() { reloads.Add(1) })
	defer scheduler.Stop()

	// Keep marking sends faster than the tick period; every tick lands
	// within the interval of a send and must be skipped.
	stop := time.After(300 * time.Millisecond)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			scheduler.MarkSend()
		case <-stop:
			assert.Equal(t, int64(0), reloads.Load(), "sends within the interval suppress reloads")
			return
		}
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	var reloads atomic.Int64
	scheduler := NewRefreshScheduler(10*time.Millisecond, func() { reloads.Add(1) })

	waitForReloads(t, &reloads, 1)
	scheduler.Stop()
	scheduler.Stop()

	settled := reloads.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, reloads.Load(), "no reloads after stop")
}

type closeCounter struct {
	closed atomic.Bool
}

func (c *closeCounter) Close() { c.closed.Store(true) }

func TestRegistryReusesMountedControllers(t *testing.T) {
	var mounts atomic.Int64
	registry := NewRegistry(4, func(id int64) (*closeCounter, *RefreshScheduler) {
		mounts.Add(1)
		return &closeCounter{}, NewRefreshScheduler(time.Hour, func() {})
	})
	defer registry.CloseAll()

	first, _ := registry.Get(7)
	second, _ := registry.Get(7)
	assert.Same(t, first, second)
	assert.Equal(t, int64(1), mounts.Load())

	registry.Get(8)
	assert.Equal(t, int64(2), mounts.Load())
}

func TestRegistryEvictsLeastRecentlyUsed(t *testing.T) {
	registry := NewRegistry(2, func(id int64) (*closeCounter, *RefreshScheduler) {
		return &closeCounter{}, NewRefreshScheduler(time.Hour, func() {})
	})
	defer registry.CloseAll()

	oldest, _ := registry.Get(1)
	registry.Get(2)
	registry.Get(1) // refresh id 1, making id 2 the eviction candidate
	victim, _ := registry.Get(2)
	registry.Get(1)

	registry.Get(3) // over capacity

	assert.True(t, victim.closed.Load(), "the least recently used controller is closed")
	assert.False(t, oldest.closed.Load())
}

func TestRegistryCloseAll(t *testing.T) {
	registry := NewRegistry(4, func(id int64) (*closeCounter, *RefreshScheduler) {
		return &closeCounter{}, NewRefreshScheduler(time.Hour, func() {})
	})

	a, _ := registry.Get(1)
	b, _ := registry.Get(2)
	registry.CloseAll()

	assert.True(t, a.closed.Load())
	assert.True(t, b.closed.Load())
}
