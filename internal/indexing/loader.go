// Package indexing reads the configured project trees into FileDatabase
// snapshots and keeps them fresh while files change.
package indexing

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/codesearch/internal/config"
	"github.com/standardbeagle/codesearch/internal/core"
	"github.com/standardbeagle/codesearch/internal/debug"
)

// Loader builds a complete snapshot of every loaded project. The project
// list starts as the configured one and may change at runtime.
type Loader struct {
	cfg    *config.Config
	binary *BinaryDetector

	mu       sync.RWMutex
	projects []config.Project

	// reloading orders Reload calls so snapshots are stored in load order
	reloading sync.Mutex
}

func NewLoader(cfg *config.Config) *Loader {
	return &Loader{
		cfg:      cfg,
		binary:   NewBinaryDetector(),
		projects: slices.Clone(cfg.Projects),
	}
}

// Projects returns the projects the next Load reads.
func (l *Loader) Projects() []config.Project {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.projects)
}

// AddProject appends p unless a project with the same root is loaded.
func (l *Loader) AddProject(p config.Project) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.projects {
		if existing.Root == p.Root {
			return false
		}
	}
	l.projects = append(l.projects, p)
	return true
}

// RemoveProject drops the project rooted at root.
func (l *Loader) RemoveProject(root string) (config.Project, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, p := range l.projects {
		if p.Root == root {
			l.projects = slices.Delete(l.projects, i, i+1)
			return p, true
		}
	}
	return config.Project{}, false
}

// Reload loads a fresh snapshot and stores it in holder, which reports busy
// until the snapshot is stored or the load fails.
func (l *Loader) Reload(ctx context.Context, holder *core.DatabaseHolder) (db, previous *core.FileDatabase, err error) {
	done := holder.BeginRebuild()
	defer done()

	l.reloading.Lock()
	defer l.reloading.Unlock()

	db, err = l.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return db, holder.Store(db), nil
}

// candidate is a file that passed every name based filter.
type candidate struct {
	project    *core.Project
	abs        string
	rel        string
	viaSymlink bool
}

// Load walks all projects and reads the selected files in parallel. Files
// that cannot be read, look binary, or exceed the size limit are counted as
// skipped. Only context cancellation fails the load.
func (l *Loader) Load(ctx context.Context) (*core.FileDatabase, error) {
	start := time.Now()
	b := core.NewBuilder(core.BuildOptions{MaxPieceSize: l.cfg.Performance.MaxPieceSize})

	var candidates []candidate
	skipped := 0
	for _, p := range l.Projects() {
		scan := &projectScan{
			loader:  l,
			project: b.AddProject(p.Name, p.Root),
			visited: make(map[string]bool),
		}
		if l.cfg.Index.RespectGitignore {
			scan.gitignore = config.NewGitignoreParser()
		}
		root := p.Root
		if real, err := filepath.EvalSymlinks(root); err == nil {
			root = real
		}
		if err := scan.walk(ctx, root, "", false); err != nil {
			return nil, err
		}
		candidates = append(candidates, scan.files...)
		skipped += scan.skipped
	}

	if limit := l.cfg.Index.MaxFileCount; limit > 0 && len(candidates) > limit {
		log.Printf("Warning: %d files found, loading the first %d (max_file_count)", len(candidates), limit)
		skipped += len(candidates) - limit
		candidates = candidates[:limit]
	}

	var unreadable atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers())
	for _, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !l.loadFile(b, c) {
				unreadable.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	b.AddSkipped(skipped + int(unreadable.Load()))

	db := b.Build()
	core.LogContentStats(db)
	debug.LogIndex("loaded %d files (%d skipped) in %v\n", db.FileCount(), db.SkippedFileCount(), time.Since(start))
	return db, nil
}

func (l *Loader) workers() int {
	if n := l.cfg.Performance.LoadWorkers; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// loadFile reads one candidate into the builder and reports whether it was
// added.
func (l *Loader) loadFile(b *core.Builder, c candidate) bool {
	data, err := os.ReadFile(c.abs)
	if err != nil {
		debug.LogIndex("skip %s: %v\n", c.abs, err)
		return false
	}
	if int64(len(data)) > l.cfg.Index.MaxFileSize {
		// grew between walk and read
		debug.LogIndex("skip %s: %d bytes\n", c.abs, len(data))
		return false
	}
	if l.binary.IsBinaryContent(data) {
		debug.LogIndex("skip %s: binary content\n", c.abs)
		return false
	}

	add := b.AddFile
	if c.viaSymlink {
		add = b.AddLinkedFile
	}
	if err := add(c.project, c.rel, data); err != nil {
		debug.LogIndex("skip %s: %v\n", c.abs, err)
		return false
	}
	return true
}

// Ignored reports whether an absolute path is excluded from every project
// that contains it. Paths outside all projects are ignored.
func (l *Loader) Ignored(abs string) bool {
	for _, p := range l.Projects() {
		rel, ok := relativeTo(p.Root, abs)
		if !ok {
			continue
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return false
		}
		if !l.excludedDir(rel) && !l.excludedAncestor(rel) {
			return false
		}
	}
	return true
}

// relativeTo returns abs relative to root when abs is root or lies below it.
func relativeTo(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func (l *Loader) excludedAncestor(rel string) bool {
	for dir := path.Dir(rel); dir != "."; dir = path.Dir(dir) {
		if l.excludedDir(dir) {
			return true
		}
	}
	return false
}

// excludedDir matches a directory against the exclusions. A "dir/**"
// pattern excludes dir itself so the walk never enters it.
func (l *Loader) excludedDir(rel string) bool {
	for _, pattern := range l.cfg.Exclude {
		if matchPattern(pattern, rel) {
			return true
		}
		if dirPattern, ok := strings.CutSuffix(pattern, "/**"); ok && matchPattern(dirPattern, rel) {
			return true
		}
	}
	return false
}

func (l *Loader) excludedFile(rel string) bool {
	for _, pattern := range l.cfg.Exclude {
		if matchPattern(pattern, rel) {
			return true
		}
	}
	return false
}

func (l *Loader) included(rel string) bool {
	if len(l.cfg.Include) == 0 {
		return true
	}
	for _, pattern := range l.cfg.Include {
		if matchPattern(pattern, rel) {
			return true
		}
	}
	return false
}

// matchPattern matches a doublestar glob. Patterns without a slash match the
// base name, so "*.go" selects Go files at any depth.
func matchPattern(pattern, rel string) bool {
	name := rel
	if !strings.Contains(pattern, "/") {
		name = path.Base(rel)
	}
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}

// projectScan collects the candidates of one project.
type projectScan struct {
	loader    *Loader
	project   *core.Project
	gitignore *config.GitignoreParser
	visited   map[string]bool // real paths of walked directories
	files     []candidate
	skipped   int
}

// walk visits dir, whose project relative path is relBase. Symlinked
// directories are walked recursively with their own relative prefix.
func (s *projectScan) walk(ctx context.Context, dir, relBase string, viaSymlink bool) error {
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		if s.visited[real] {
			return nil
		}
		s.visited[real] = true
	}

	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			debug.LogIndex("walk %s: %v\n", p, err)
			if d != nil && d.IsDir() && p != dir {
				return filepath.SkipDir
			}
			return nil
		}

		rel := relBase
		if p != dir {
			sub, _ := filepath.Rel(dir, p)
			rel = path.Join(relBase, filepath.ToSlash(sub))
		}

		switch {
		case d.IsDir():
			if p != dir && s.skipDir(rel) {
				return filepath.SkipDir
			}
			s.loadGitignore(rel)
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			return s.followSymlink(ctx, p, rel)
		case !d.Type().IsRegular():
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		s.consider(p, rel, info.Size(), viaSymlink)
		return nil
	})
}

func (s *projectScan) followSymlink(ctx context.Context, p, rel string) error {
	if !s.loader.cfg.Index.FollowSymlinks {
		return nil
	}
	info, err := os.Stat(p)
	if err != nil {
		debug.LogIndex("dangling symlink %s: %v\n", p, err)
		return nil
	}
	if info.IsDir() {
		if s.skipDir(rel) {
			return nil
		}
		target, err := filepath.EvalSymlinks(p)
		if err != nil {
			return nil
		}
		return s.walk(ctx, target, rel, true)
	}
	if info.Mode().IsRegular() {
		s.consider(p, rel, info.Size(), true)
	}
	return nil
}

func (s *projectScan) skipDir(rel string) bool {
	if s.loader.excludedDir(rel) {
		return true
	}
	return s.gitignore != nil && s.gitignore.ShouldIgnore(rel, true)
}

func (s *projectScan) loadGitignore(rel string) {
	if s.gitignore == nil {
		return
	}
	if err := s.gitignore.LoadGitignoreAt(s.project.Root, rel); err != nil {
		log.Printf("Warning: failed to read .gitignore in %s: %v", filepath.Join(s.project.Root, filepath.FromSlash(rel)), err)
	}
}

func (s *projectScan) consider(abs, rel string, size int64, viaSymlink bool) {
	l := s.loader
	if !l.included(rel) || l.excludedFile(rel) {
		return
	}
	if s.gitignore != nil && s.gitignore.ShouldIgnore(rel, false) {
		return
	}
	if l.binary.IsBinaryByExtension(rel) || size > l.cfg.Index.MaxFileSize {
		s.skipped++
		return
	}
	s.files = append(s.files, candidate{project: s.project, abs: abs, rel: rel, viaSymlink: viaSymlink})
}
