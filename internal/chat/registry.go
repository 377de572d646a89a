package chat

import (
	"sync"
	"time"
)

type controller interface {
	Close()
}

type mountedEntry[T controller] struct {
	controller   T
	scheduler    *RefreshScheduler
	lastAccessed time.Time
}

// Registry caches mounted controllers by principal id so repeated requests
// from the same admin or user drive one state machine. At capacity the least
// recently accessed controller is unmounted: its scheduler stops and the
// controller is closed so late store results are discarded.
type Registry[T controller] struct {
	mu      sync.Mutex
	entries map[int64]*mountedEntry[T]
	maxSize int
	mount   func(id int64) (T, *RefreshScheduler)
}

func NewRegistry[T controller](maxSize int, mount func(id int64) (T, *RefreshScheduler)) *Registry[T] {
	return &Registry[T]{
		entries: make(map[int64]*mountedEntry[T], maxSize),
		maxSize: maxSize,
		mount:   mount,
	}
}

func (r *Registry[T]) Get(id int64) (T, *RefreshScheduler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[id]; ok {
		entry.lastAccessed = time.Now()
		return entry.controller, entry.scheduler
	}

	if len(r.entries) >= r.maxSize {
		r.evictOldestLocked()
	}

	controller, scheduler := r.mount(id)
	r.entries[id] = &mountedEntry[T]{
		controller:   controller,
		scheduler:    scheduler,
		lastAccessed: time.Now(),
	}
	return controller, scheduler
}

func (r *Registry[T]) evictOldestLocked() {
	var oldestId int64
	var oldestTime time.Time
	first := true
	for id, entry := range r.entries {
		if first || entry.lastAccessed.Before(oldestTime) {
			oldestId = id
			oldestTime = entry.lastAccessed
			first = false
		}
	}
	if first {
		return
	}

	entry := r.entries[oldestId]
	delete(r.entries, oldestId)
	entry.scheduler.Stop()
	entry.controller.Close()
}

// CloseAll unmounts every controller, for server shutdown.
func (r *Registry[T]) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, entry := range r.entries {
		entry.scheduler.Stop()
		entry.controller.Close()
		delete(r.entries, id)
	}
}
