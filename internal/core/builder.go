package core

import (
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	cserrors "github.com/standardbeagle/codesearch/internal/errors"
	"github.com/standardbeagle/codesearch/internal/types"
)

// generationCounter numbers snapshots in build order
var generationCounter atomic.Uint64

// BuildOptions controls how a snapshot is decomposed into pieces.
type BuildOptions struct {
	// MaxPieceSize is the target piece size in bytes (0 = types.DefaultMaxPieceSize).
	MaxPieceSize int
}

// Builder collects projects and files and produces an immutable FileDatabase.
// AddFile may be called from multiple goroutines.
type Builder struct {
	opts     BuildOptions
	mu       sync.Mutex
	projects []*Project
	entries  []*FileEntry
	seen     map[string]struct{}
	skipped  int
}

// NewBuilder creates a snapshot builder
func NewBuilder(opts BuildOptions) *Builder {
	if opts.MaxPieceSize <= 0 {
		opts.MaxPieceSize = types.DefaultMaxPieceSize
	}
	return &Builder{
		opts: opts,
		seen: make(map[string]struct{}),
	}
}

// AddProject registers a project root. An empty name defaults to the root's base name.
func (b *Builder) AddProject(name, root string) *Project {
	b.mu.Lock()
	defer b.mu.Unlock()

	if name == "" {
		name = filepath.Base(root)
	}
	p := &Project{Name: name, Root: filepath.Clean(root), index: len(b.projects)}
	b.projects = append(b.projects, p)
	return p
}

// AddFile adds one file to a project. Files of 2 GiB or more are rejected
// because match positions are 32-bit.
func (b *Builder) AddFile(p *Project, relPath string, contents []byte) error {
	return b.addFile(p, relPath, contents, false)
}

// AddLinkedFile adds a file that was reached through a symbolic link.
// Such files are only searched when a query asks for them.
func (b *Builder) AddLinkedFile(p *Project, relPath string, contents []byte) error {
	return b.addFile(p, relPath, contents, true)
}

func (b *Builder) addFile(p *Project, relPath string, contents []byte, viaSymlink bool) error {
	rel := path.Clean(filepath.ToSlash(relPath))
	if int64(len(contents)) >= types.MaxSearchableFileSize {
		return cserrors.NewFileError("add", rel, cserrors.ErrFileTooLarge)
	}

	entry := &FileEntry{
		Project:  p,
		RelPath:  rel,
		Contents: contents,
		Hash:     xxhash.Sum64(contents),

		ViaSymlink: viaSymlink,
	}

	key := fmt.Sprintf("%d/%s", p.index, rel)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.seen[key]; dup {
		return fmt.Errorf("duplicate file %s in project %s", rel, p.Name)
	}
	b.seen[key] = struct{}{}
	b.entries = append(b.entries, entry)
	return nil
}

// AddSkipped counts files that were found but not loaded (binary, too large).
// They show up in statistics but are never searched.
func (b *Builder) AddSkipped(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.skipped += n
}

// FileCount returns how many files were added so far.
func (b *Builder) FileCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Build orders the files, assigns IDs and cuts pieces. The builder must not
// be reused afterwards.
func (b *Builder) Build() *FileDatabase {
	b.mu.Lock()
	defer b.mu.Unlock()

	files := b.entries
	sort.Slice(files, func(i, j int) bool {
		pi, pj := files[i].Project.index, files[j].Project.index
		if pi != pj {
			return pi < pj
		}
		return files[i].RelPath < files[j].RelPath
	})

	db := &FileDatabase{
		projects:      b.projects,
		files:         files,
		filePieces:    make([]int, len(files)),
		byFullPath:    make(map[string]*FileEntry, len(files)),
		byProjectPath: make(map[string]*FileEntry, len(files)),
		byRelPath:     make(map[string]*FileEntry, len(files)),
		skippedFiles:  b.skipped,
		builtAt:       time.Now(),
		generation:    generationCounter.Add(1),
	}

	pieces := make([]ContentPiece, 0, len(files))
	for i, f := range files {
		f.ID = types.FileID(i)
		db.filePieces[i] = len(pieces)
		pieces = appendPieces(pieces, f, b.opts.MaxPieceSize)
		db.totalBytes += f.ByteLength()

		db.byFullPath[f.Path()] = f
		db.byProjectPath[f.Project.Name+"/"+f.RelPath] = f
		if _, exists := db.byRelPath[f.RelPath]; !exists {
			db.byRelPath[f.RelPath] = f
		}
	}
	db.pieces = pieces

	return db
}

// appendPieces cuts a file into pieces of at most maxSize bytes, preferring
// to end a piece right after a newline. Lines longer than 2*maxSize are
// hard-cut at maxSize. Empty files get one empty piece.
func appendPieces(pieces []ContentPiece, f *FileEntry, maxSize int) []ContentPiece {
	content := f.Contents
	n := len(content)
	if n == 0 {
		return append(pieces, ContentPiece{File: f})
	}

	for off := 0; off < n; {
		end := off + maxSize
		if end >= n {
			end = n
		} else if i := bytes.LastIndexByte(content[off+maxSize/2:end], '\n'); i >= 0 {
			end = off + maxSize/2 + i + 1
		} else {
			limit := min(n, off+2*maxSize)
			if j := bytes.IndexByte(content[end:limit], '\n'); j >= 0 {
				end += j + 1
			} else if limit == n {
				end = n
			}
		}
		pieces = append(pieces, ContentPiece{File: f, Offset: off, Length: end - off})
		off = end
	}
	return pieces
}
