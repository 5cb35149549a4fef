package search

import (
	"sync"

	"github.com/standardbeagle/codesearch/internal/progress"
)

// Registry tracks the running query of each client. Starting a new query
// for a client cancels the previous one, whose results the client no
// longer wants.
type Registry struct {
	mu     sync.Mutex
	active map[string]*progress.Tracker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*progress.Tracker)}
}

// Begin registers a new query for clientID and cancels the one it replaces.
func (r *Registry) Begin(clientID string, maxResults int) *progress.Tracker {
	tracker := progress.New(maxResults)

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.active[clientID]; ok {
		prev.Cancel()
	}
	r.active[clientID] = tracker
	return tracker
}

// Finish unregisters tracker and reports whether a newer query replaced it.
func (r *Registry) Finish(clientID string, tracker *progress.Tracker) (superseded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[clientID] != tracker {
		return true
	}
	delete(r.active, clientID)
	return false
}

// Cancel stops the client's running query, if any.
func (r *Registry) Cancel(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	tracker, ok := r.active[clientID]
	if ok {
		tracker.Cancel()
	}
	return ok
}

// Active returns the number of clients with a running query.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
