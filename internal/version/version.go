package version

import (
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X github.com/standardbeagle/codesearch/internal/version.Version=..."
var (
	Version   = "0.1.0"
	BuildDate = "development"
	GitCommit = "unknown"
)

var (
	commit     string
	commitOnce sync.Once
)

// Commit returns GitCommit, falling back to the VCS revision the Go
// toolchain stamped into the binary.
func Commit() string {
	commitOnce.Do(func() {
		commit = GitCommit
		if commit != "unknown" {
			return
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 12 {
				commit = s.Value[:12]
			}
		}
	})
	return commit
}

// FullInfo returns detailed version information
func FullInfo() string {
	return "codesearch " + Version + " (commit: " + Commit() + ", built: " + BuildDate + ")"
}
