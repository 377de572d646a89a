package chat

import (
	"sync"
	"time"
)

// DefaultRefreshInterval is the auto-refresh period for mounted controllers.
const DefaultRefreshInterval = 10 * time.Minute

// RefreshScheduler reloads a mounted controller on a repeating timer. A tick
// is skipped when a locally-originated send happened within the last period,
// so a reload never clobbers in-flight optimistic state. Stop cancels the
// timer on controller teardown and is safe to call more than once.
type RefreshScheduler struct {
	interval time.Duration
	reload   func()

	mu       sync.Mutex
	lastSend time.Time

	done     chan struct{}
	stopOnce sync.Once
}

func NewRefreshScheduler(interval time.Duration, reload func()) *RefreshScheduler {
	s := &RefreshScheduler{
		interval: interval,
		reload:   reload,
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *RefreshScheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			idle := time.Since(s.lastSend) >= s.interval
			s.mu.Unlock()
			if idle {
				s.reload()
			}
		}
	}
}

// MarkSend records a locally-originated send, deferring the next reload.
func (s *RefreshScheduler) MarkSend() {
	s.mu.Lock()
	s.lastSend = time.Now()
	s.mu.Unlock()
}

func (s *RefreshScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
