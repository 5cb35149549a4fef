package indexing

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/standardbeagle/codesearch/internal/config"
	"github.com/standardbeagle/codesearch/internal/core"
	"github.com/standardbeagle/codesearch/internal/debug"
)

// Registry adds and removes projects while the server runs. Every change
// reloads the snapshot before it returns, and a failed reload undoes the
// change.
type Registry struct {
	mu      sync.Mutex
	loader  *Loader
	holder  *core.DatabaseHolder
	watcher *FileWatcher
}

func NewRegistry(loader *Loader, holder *core.DatabaseHolder) *Registry {
	return &Registry{loader: loader, holder: holder}
}

// SetWatcher makes the registry watch the projects it adds.
func (r *Registry) SetWatcher(fw *FileWatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watcher = fw
}

// Register loads the project holding path. A path that already lies in a
// loaded project changes nothing; that project is returned with added false.
func (r *Registry) Register(ctx context.Context, path string) (p config.Project, added bool, err error) {
	root, err := ProjectRoot(path)
	if err != nil {
		return config.Project{}, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	projects := r.loader.Projects()
	if existing, ok := containingProject(projects, root); ok {
		return existing, false, nil
	}

	p = config.Project{Root: root, Name: uniqueProjectName(projects, filepath.Base(root))}
	r.loader.AddProject(p)
	if _, _, err := r.loader.Reload(ctx, r.holder); err != nil {
		r.loader.RemoveProject(root)
		return config.Project{}, false, fmt.Errorf("failed to load project %s: %w", root, err)
	}
	if r.watcher != nil {
		if err := r.watcher.Watch(root); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	debug.LogIndex("registered project %s at %s\n", p.Name, root)
	return p, true, nil
}

// Unregister drops the innermost loaded project containing path.
func (r *Registry) Unregister(ctx context.Context, path string) (p config.Project, removed bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return config.Project{}, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := containingProject(r.loader.Projects(), abs)
	if !ok {
		return config.Project{}, false, nil
	}
	r.loader.RemoveProject(p.Root)
	if _, _, err := r.loader.Reload(ctx, r.holder); err != nil {
		r.loader.AddProject(p)
		return config.Project{}, false, fmt.Errorf("failed to unload project %s: %w", p.Root, err)
	}
	if r.watcher != nil {
		r.watcher.Unwatch(p.Root)
	}
	debug.LogIndex("unregistered project %s at %s\n", p.Name, p.Root)
	return p, true, nil
}

// ProjectRoot resolves the directory to load for path. A directory is its
// own root. A file belongs to the nearest ancestor holding a .git entry, or
// to its own directory when there is none.
func ProjectRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return abs, nil
	}

	dir := filepath.Dir(abs)
	for d := dir; ; {
		if _, err := os.Stat(filepath.Join(d, ".git")); err == nil {
			return d, nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			return dir, nil
		}
		d = parent
	}
}

func containingProject(projects []config.Project, abs string) (config.Project, bool) {
	var best config.Project
	found := false
	for _, p := range projects {
		if _, ok := relativeTo(p.Root, abs); !ok {
			continue
		}
		if !found || len(p.Root) > len(best.Root) {
			best, found = p, true
		}
	}
	return best, found
}

func uniqueProjectName(projects []config.Project, base string) string {
	taken := make(map[string]bool, len(projects))
	for _, p := range projects {
		taken[p.Name] = true
	}
	name := base
	for n := 2; taken[name]; n++ {
		name = fmt.Sprintf("%s-%d", base, n)
	}
	return name
}
