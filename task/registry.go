package task

import (
	"strings"
	"sync"
	"time"
)

// Registry is the process-wide store of task records. Executors write to it
// from background goroutines while handlers read from request goroutines, so
// every operation takes the single registry lock. Records are small and
// writes are infrequent, a coarse lock is enough.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Set inserts or overwrites the record under key. The registry stores its
// own copy so callers cannot mutate it behind the lock.
func (r *Registry) Set(key string, t *Task) {
	cp := *t
	r.mu.Lock()
	r.tasks[key] = &cp
	r.mu.Unlock()
}

// Get returns a snapshot of the record under key.
func (r *Registry) Get(key string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[key]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Update applies fn to the record under key while holding the lock. It
// returns false, without inserting anything, when the key is absent.
func (r *Registry) Update(key string, fn func(*Task)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[key]
	if !ok {
		return false
	}
	fn(t)
	return true
}

// Delete removes the record under key, reporting whether it existed.
func (r *Registry) Delete(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[key]
	delete(r.tasks, key)
	return ok
}

// ListByPrefix returns snapshots of all records whose key starts with
// prefix. Order is unspecified. An empty prefix lists everything.
func (r *Registry) ListByPrefix(prefix string) []Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Task
	for key, t := range r.tasks {
		if strings.HasPrefix(key, prefix) {
			out = append(out, *t)
		}
	}
	return out
}

// Expire deletes every record created before cutoff and returns how many
// were removed. Used by the reaper to reclaim memory for tasks whose files
// are gone or never existed.
func (r *Registry) Expire(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, t := range r.tasks {
		if t.Created.Before(cutoff) {
			delete(r.tasks, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
