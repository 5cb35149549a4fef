package core

import (
	"path"
	"runtime"
	"sort"
	"time"

	"github.com/standardbeagle/codesearch/internal/debug"
)

// Thresholds for the content report.
const (
	LargeFileThreshold       = 500 * 1024
	ExtensionSizeThreshold   = 100 * 1024
	largestFilesPerExtension = 25
)

// FileSize is a file path with its byte length.
type FileSize struct {
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// ExtensionStats aggregates the files sharing one extension.
type ExtensionStats struct {
	Extension string `json:"extension"`
	FileCount int    `json:"file_count"`
	Bytes     int64  `json:"bytes"`
}

// ServerStatus tells whether a snapshot rebuild is running.
type ServerStatus string

const (
	StatusIdle ServerStatus = "idle"
	StatusBusy ServerStatus = "busy"
)

// Statistics summarizes a snapshot.
type Statistics struct {
	ServerStatus        ServerStatus     `json:"server_status,omitempty"`
	ProjectCount        int              `json:"project_count"`
	FileCount           int              `json:"file_count"`
	SearchableFileCount int              `json:"searchable_file_count"`
	TotalBytes          int64            `json:"total_bytes"`
	PieceCount          int              `json:"piece_count"`
	BuiltAt             time.Time        `json:"built_at"`
	Generation          uint64           `json:"generation"`
	HeapBytes           uint64           `json:"heap_bytes"`
	LargeFiles          []FileSize       `json:"large_files,omitempty"`
	Extensions          []ExtensionStats `json:"extensions,omitempty"`
}

// ComputeStatistics gathers counts, the files of at least LargeFileThreshold
// bytes (by path) and the extensions occupying at least
// ExtensionSizeThreshold bytes (largest first).
func ComputeStatistics(db *FileDatabase) Statistics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := Statistics{
		ProjectCount:        len(db.projects),
		FileCount:           len(db.files) + db.skippedFiles,
		SearchableFileCount: len(db.files),
		TotalBytes:          db.totalBytes,
		PieceCount:          len(db.pieces),
		BuiltAt:             db.builtAt,
		Generation:          db.generation,
		HeapBytes:           mem.HeapAlloc,
	}

	byExt := make(map[string]*ExtensionStats)
	for _, f := range db.files {
		size := f.ByteLength()
		if size >= LargeFileThreshold {
			stats.LargeFiles = append(stats.LargeFiles, FileSize{Path: f.Path(), Bytes: size})
		}
		ext := path.Ext(f.RelPath)
		es, ok := byExt[ext]
		if !ok {
			es = &ExtensionStats{Extension: ext}
			byExt[ext] = es
		}
		es.FileCount++
		es.Bytes += size
	}

	sort.Slice(stats.LargeFiles, func(i, j int) bool {
		return stats.LargeFiles[i].Path < stats.LargeFiles[j].Path
	})

	for _, es := range byExt {
		if es.Bytes >= ExtensionSizeThreshold {
			stats.Extensions = append(stats.Extensions, *es)
		}
	}
	sort.Slice(stats.Extensions, func(i, j int) bool {
		if stats.Extensions[i].Bytes != stats.Extensions[j].Bytes {
			return stats.Extensions[i].Bytes > stats.Extensions[j].Bytes
		}
		return stats.Extensions[i].Extension < stats.Extensions[j].Extension
	})

	return stats
}

// LogContentStats writes the content report to the index debug log, listing
// the largest files of each reported extension.
func LogContentStats(db *FileDatabase) {
	if !debug.IsDebugEnabled() {
		return
	}
	stats := ComputeStatistics(db)
	debug.LogIndex("snapshot %d: %d projects, %d files (%d searchable), %d KB in %d pieces\n",
		stats.Generation, stats.ProjectCount, stats.FileCount, stats.SearchableFileCount,
		stats.TotalBytes/1024, stats.PieceCount)

	for _, f := range stats.LargeFiles {
		debug.LogIndex("  large file %s: %d KB\n", f.Path, f.Bytes/1024)
	}

	for _, es := range stats.Extensions {
		debug.LogIndex("  extension %q: %d files, %d KB\n", es.Extension, es.FileCount, es.Bytes/1024)

		var files []*FileEntry
		for _, f := range db.files {
			if path.Ext(f.RelPath) == es.Extension {
				files = append(files, f)
			}
		}
		sort.Slice(files, func(i, j int) bool { return files[i].ByteLength() > files[j].ByteLength() })
		for _, f := range files[:min(len(files), largestFilesPerExtension)] {
			debug.LogIndex("    %s: %d KB\n", f.Path(), f.ByteLength()/1024)
		}
	}
}
