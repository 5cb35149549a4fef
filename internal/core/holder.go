package core

import "sync/atomic"

// DatabaseHolder publishes the current snapshot. Readers Load a snapshot and
// keep using it for the whole query; rebuilds Store a new one without
// blocking readers.
type DatabaseHolder struct {
	current  atomic.Pointer[FileDatabase]
	rebuilds atomic.Int32
}

// NewDatabaseHolder creates a holder. A nil db publishes an empty snapshot.
func NewDatabaseHolder(db *FileDatabase) *DatabaseHolder {
	h := &DatabaseHolder{}
	h.Store(db)
	return h
}

// Load returns the current snapshot.
func (h *DatabaseHolder) Load() *FileDatabase {
	return h.current.Load()
}

// Store replaces the current snapshot and returns the previous one.
func (h *DatabaseHolder) Store(db *FileDatabase) *FileDatabase {
	if db == nil {
		db = EmptyDatabase()
	}
	return h.current.Swap(db)
}

// BeginRebuild reports the holder busy until the returned func is called.
func (h *DatabaseHolder) BeginRebuild() (done func()) {
	h.rebuilds.Add(1)
	return func() { h.rebuilds.Add(-1) }
}

func (h *DatabaseHolder) Status() ServerStatus {
	if h.rebuilds.Load() > 0 {
		return StatusBusy
	}
	return StatusIdle
}

// Statistics describes the current snapshot along with the rebuild status.
func (h *DatabaseHolder) Statistics() Statistics {
	stats := ComputeStatistics(h.Load())
	stats.ServerStatus = h.Status()
	return stats
}
