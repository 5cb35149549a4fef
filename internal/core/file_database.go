package core

import (
	"path"
	"path/filepath"
	"time"

	"github.com/standardbeagle/codesearch/internal/types"
)

// Project is one searched root. Projects are the first level of the result tree.
type Project struct {
	Name  string
	Root  string
	index int // insertion order, defines grouping order
}

// Index returns the project's position in FileDatabase.Projects().
func (p *Project) Index() int {
	return p.index
}

// FileEntry is an immutable file record inside one snapshot.
type FileEntry struct {
	ID       types.FileID
	Project  *Project
	RelPath  string // slash separated, relative to Project.Root
	Contents []byte
	Hash     uint64 // xxhash of Contents

	// ViaSymlink is set for files reached through a symbolic link.
	ViaSymlink bool
}

// Path returns the file's full path on disk.
func (f *FileEntry) Path() string {
	return filepath.Join(f.Project.Root, filepath.FromSlash(f.RelPath))
}

// Name returns the base name of the file.
func (f *FileEntry) Name() string {
	return path.Base(f.RelPath)
}

// ByteLength returns the size of the file contents.
func (f *FileEntry) ByteLength() int64 {
	return int64(len(f.Contents))
}

// ContentPiece is a contiguous slice of one file's contents, the unit of
// work distribution. A file's pieces, in order, cover it exactly once.
type ContentPiece struct {
	File   *FileEntry
	Offset int
	Length int
}

// Bytes returns the piece's slice of the file contents (zero-copy).
func (p ContentPiece) Bytes() []byte {
	return p.File.Contents[p.Offset : p.Offset+p.Length]
}

// FileDatabase is an immutable snapshot of file contents. It is safe for
// concurrent reads without locking. Changes produce a new snapshot.
type FileDatabase struct {
	projects   []*Project
	files      []*FileEntry
	pieces     []ContentPiece
	filePieces []int // filePieces[id] = index of the file's first piece

	byFullPath    map[string]*FileEntry
	byProjectPath map[string]*FileEntry
	byRelPath     map[string]*FileEntry

	totalBytes   int64
	skippedFiles int
	builtAt      time.Time
	generation   uint64
}

// EmptyDatabase returns a snapshot with no projects and no files.
func EmptyDatabase() *FileDatabase {
	return NewBuilder(BuildOptions{}).Build()
}

// Projects returns the projects in grouping order. Callers must not modify the slice.
func (db *FileDatabase) Projects() []*Project {
	return db.projects
}

// Files returns every file, ordered by project then relative path.
// Callers must not modify the slice.
func (db *FileDatabase) Files() []*FileEntry {
	return db.files
}

// Pieces returns the content pieces of all files in file order.
// Callers must not modify the slice.
func (db *FileDatabase) Pieces() []ContentPiece {
	return db.pieces
}

// FilePieces returns the pieces belonging to one file.
func (db *FileDatabase) FilePieces(id types.FileID) []ContentPiece {
	start := db.filePieces[id]
	end := len(db.pieces)
	if int(id)+1 < len(db.filePieces) {
		end = db.filePieces[id+1]
	}
	return db.pieces[start:end]
}

// File returns the entry with the given ID, or nil.
func (db *FileDatabase) File(id types.FileID) *FileEntry {
	if int(id) >= len(db.files) {
		return nil
	}
	return db.files[id]
}

// FileByPath resolves a full path, a "project/relative" path, or a bare
// project-relative path (first project wins).
func (db *FileDatabase) FileByPath(name string) *FileEntry {
	if f, ok := db.byFullPath[filepath.Clean(name)]; ok {
		return f
	}
	slashed := filepath.ToSlash(name)
	if f, ok := db.byProjectPath[slashed]; ok {
		return f
	}
	if f, ok := db.byRelPath[path.Clean(slashed)]; ok {
		return f
	}
	return nil
}

// FileCount returns the number of files in the snapshot.
func (db *FileDatabase) FileCount() int {
	return len(db.files)
}

// SkippedFileCount returns how many files were seen but not loaded.
func (db *FileDatabase) SkippedFileCount() int {
	return db.skippedFiles
}

// TotalBytes returns the summed size of every file.
func (db *FileDatabase) TotalBytes() int64 {
	return db.totalBytes
}

// BuiltAt returns when the snapshot was built.
func (db *FileDatabase) BuiltAt() time.Time {
	return db.builtAt
}

// Generation is a process-wide increasing snapshot number.
func (db *FileDatabase) Generation() uint64 {
	return db.generation
}
