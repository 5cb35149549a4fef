// Package progress coordinates early termination across the concurrent
// scans of a single query.
//
// One Tracker is created per query and shared by pointer with every scan
// task. The cap is best-effort: tasks add and check independently, so the
// final count may exceed the cap by up to one result per concurrently
// running scan.
package progress

import (
	"context"
	"sync/atomic"
)

// Tracker is the shared found-count and cancellation flag for one query.
type Tracker struct {
	found      atomic.Int64
	maxResults int64
	cancelled  atomic.Bool
}

// New creates a tracker. maxResults <= 0 disables the cap.
func New(maxResults int) *Tracker {
	if maxResults < 0 {
		maxResults = 0
	}
	return &Tracker{maxResults: int64(maxResults)}
}

// AddResults records n more matches.
func (t *Tracker) AddResults(n int) {
	t.found.Add(int64(n))
}

// ResultCount returns the matches recorded so far.
func (t *Tracker) ResultCount() int {
	return int(t.found.Load())
}

// MaxResults returns the cap, 0 when unbounded.
func (t *Tracker) MaxResults() int {
	return int(t.maxResults)
}

// Cancel marks the query as abandoned. Scans stop at their next checkpoint.
func (t *Tracker) Cancel() {
	t.cancelled.Store(true)
}

// IsCancelled reports whether Cancel was called.
func (t *Tracker) IsCancelled() bool {
	return t.cancelled.Load()
}

// CapReached reports whether the found-count hit the cap.
func (t *Tracker) CapReached() bool {
	return t.maxResults > 0 && t.found.Load() >= t.maxResults
}

// ShouldEndProcessing is true once the cap is reached or the tracker is cancelled.
func (t *Tracker) ShouldEndProcessing() bool {
	return t.cancelled.Load() || t.CapReached()
}

// Bind cancels the tracker when ctx is done. The returned stop function
// detaches the binding and reports whether it did so before it fired.
func (t *Tracker) Bind(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, t.Cancel)
}
