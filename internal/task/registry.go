package task

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fukidashi-ocr/fukidashi/internal/pipeline"
)

// Registry is the process-wide task table. The submission surface
// creates entries, exactly one worker finishes each entry, and pollers
// read snapshots. A terminal status and its payload are written in one
// critical section, so a reader can never observe a done task without
// its bubbles.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task

	ttl      time.Duration
	stopOnce sync.Once
	stop     chan struct{}
}

// NewRegistry creates a registry. When ttl is positive a janitor
// goroutine evicts terminal entries older than ttl; zero disables
// eviction and entries live for the rest of the process.
func NewRegistry(ttl time.Duration) *Registry {
	r := &Registry{
		tasks: make(map[string]*Task),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	if ttl > 0 {
		go r.janitor()
	}
	return r
}

// Create registers a new task in the processing state and returns its
// id. The entry is visible to pollers before this method returns.
func (r *Registry) Create() string {
	id := uuid.NewString()
	r.mu.Lock()
	r.tasks[id] = &Task{
		ID:        id,
		Status:    StatusProcessing,
		CreatedAt: time.Now(),
	}
	r.mu.Unlock()
	return id
}

// Get returns a snapshot of the task, or ok=false for an unknown or
// evicted id.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	snap := *t
	snap.Bubbles = t.Bubbles // bubbles are immutable once published
	return snap, true
}

// Complete transitions the task to done with its bubbles. Calls on an
// unknown id or an already-terminal task are ignored; the first terminal
// write wins.
func (r *Registry) Complete(id string, bubbles []pipeline.Bubble) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Terminal() {
		return
	}
	t.Status = StatusDone
	t.Bubbles = bubbles
	t.FinishedAt = time.Now()
}

// Fail transitions the task to error with a descriptive message, under
// the same write-once rule as Complete.
func (r *Registry) Fail(id string, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Terminal() {
		return
	}
	t.Status = StatusError
	t.Err = msg
	t.FinishedAt = time.Now()
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Close stops the janitor. Entries are kept; only eviction stops.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Registry) janitor() {
	interval := r.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			r.evictBefore(now.Add(-r.ttl))
		}
	}
}

// evictBefore removes terminal entries that finished before the cutoff.
// In-flight tasks are never evicted.
func (r *Registry) evictBefore(cutoff time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted int
	for id, t := range r.tasks {
		if t.Terminal() && t.FinishedAt.Before(cutoff) {
			delete(r.tasks, id)
			evicted++
		}
	}
	if evicted > 0 {
		slog.Debug("evicted expired tasks", "count", evicted, "remaining", len(r.tasks))
	}
}
