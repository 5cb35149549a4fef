package indexing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/codesearch/internal/config"
	"github.com/standardbeagle/codesearch/internal/core"
	"github.com/standardbeagle/codesearch/internal/debug"
)

const defaultDebounce = 300 * time.Millisecond

// FileWatcher rebuilds the whole snapshot after a burst of file system
// events settles and swaps it into the holder. Queries that already loaded
// the previous snapshot keep using it.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	loader  *Loader
	holder  *core.DatabaseHolder

	debouncer *eventDebouncer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	onRebuild func(*core.FileDatabase)

	eventsProcessed atomic.Int64
	rebuilds        atomic.Int64
	errorCount      atomic.Int64
}

// WatchStats contains statistics about file watching operations
type WatchStats struct {
	EventsProcessed int64
	Rebuilds        int64
	ErrorCount      int64
	IsActive        bool
}

func NewFileWatcher(cfg *config.Config, loader *Loader, holder *core.DatabaseHolder) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := time.Duration(cfg.Index.WatchDebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &FileWatcher{
		watcher:   watcher,
		loader:    loader,
		holder:    holder,
		debouncer: newEventDebouncer(debounce),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// SetOnRebuild registers a callback run after each swapped snapshot. Call
// before Start.
func (fw *FileWatcher) SetOnRebuild(fn func(*core.FileDatabase)) {
	fw.onRebuild = fn
}

// Start watches every project directory that is not excluded.
func (fw *FileWatcher) Start() error {
	for _, p := range fw.loader.Projects() {
		if err := fw.Watch(p.Root); err != nil {
			return err
		}
	}

	fw.wg.Add(1)
	go fw.processEvents()
	return nil
}

// Stop ends watching and waits for an in-flight rebuild to finish.
func (fw *FileWatcher) Stop() error {
	fw.cancel()
	fw.debouncer.stop()
	err := fw.watcher.Close()
	fw.wg.Wait()
	return err
}

func (fw *FileWatcher) Stats() WatchStats {
	return WatchStats{
		EventsProcessed: fw.eventsProcessed.Load(),
		Rebuilds:        fw.rebuilds.Load(),
		ErrorCount:      fw.errorCount.Load(),
		IsActive:        fw.ctx.Err() == nil,
	}
}

// Watch adds the non-excluded directories of a project root.
func (fw *FileWatcher) Watch(root string) error {
	debug.LogIndex("watching %s\n", root)
	if err := fw.addWatches(root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
	}
	return nil
}

// Unwatch removes every watch at or below root.
func (fw *FileWatcher) Unwatch(root string) {
	for _, path := range fw.watcher.WatchList() {
		if _, ok := relativeTo(root, path); ok {
			_ = fw.watcher.Remove(path)
		}
	}
	debug.LogIndex("stopped watching %s\n", root)
}

// addWatches adds a watch for root and each non-excluded directory below it.
func (fw *FileWatcher) addWatches(root string) error {
	if _, err := os.Stat(root); err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root && fw.loader.Ignored(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.errorCount.Add(1)
			log.Printf("File watcher error: %v", err)

		case <-fw.debouncer.fired:
			fw.rebuild()
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || fw.loader.Ignored(event.Name) {
		return
	}
	debug.LogIndex("watcher: %v %s\n", event.Op, event.Name)
	fw.eventsProcessed.Add(1)

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.addWatches(event.Name); err != nil {
				log.Printf("Warning: failed to watch new directory %s: %v", event.Name, err)
			}
		}
	}
	fw.debouncer.trigger()
}

func (fw *FileWatcher) rebuild() {
	start := time.Now()
	db, previous, err := fw.loader.Reload(fw.ctx, fw.holder)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fw.errorCount.Add(1)
			log.Printf("Snapshot rebuild failed: %v", err)
		}
		return
	}

	fw.rebuilds.Add(1)
	debug.LogIndex("snapshot %d replaced %d in %v\n", db.Generation(), previous.Generation(), time.Since(start))

	if fw.onRebuild != nil {
		fw.onRebuild(db)
	}
}

// eventDebouncer coalesces events: fired receives one value once no event
// arrived for the debounce duration.
type eventDebouncer struct {
	mu       sync.Mutex
	debounce time.Duration
	timer    *time.Timer
	fired    chan struct{}
}

func newEventDebouncer(debounce time.Duration) *eventDebouncer {
	return &eventDebouncer{debounce: debounce, fired: make(chan struct{}, 1)}
}

func (d *eventDebouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, func() {
		select {
		case d.fired <- struct{}{}:
		default: // a rebuild is already pending
		}
	})
}

func (d *eventDebouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
