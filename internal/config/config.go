package config

import (
	"os"
	"path/filepath"

	"github.com/standardbeagle/codesearch/internal/types"
)

// ConfigFileName is looked up in the project directory and the home directory.
const ConfigFileName = ".codesearch.kdl"

type Config struct {
	Version     int
	Projects    []Project
	Index       Index
	Performance Performance
	Search      Search
	Include     []string
	Exclude     []string
}

// Project is one root directory to index. Name defaults to the directory name.
type Project struct {
	Root string
	Name string
}

type Index struct {
	MaxFileSize          int64
	MaxFileCount         int
	FollowSymlinks       bool
	RespectGitignore     bool // Process .gitignore files for additional exclusions
	DetectBuildArtifacts bool // Exclude output directories named by build manifests
	WatchMode            bool // Rebuild the snapshot when files change
	WatchDebounceMs      int  // Debounce time for file change events
}

type Performance struct {
	Parallelism  int // Scan partitions per query and worker pool size, 0 = NumCPU
	LoadWorkers  int // Concurrent file reads while loading, 0 = NumCPU
	MaxPieceSize int // Target content piece size in bytes
}

type Search struct {
	MaxResults         int // Default result cap, 0 = unbounded
	MaxExtractLength   int
	ExtractCacheSize   int
	AlgorithmCacheSize int
}

// Load reads the configuration for the current directory.
func Load() (*Config, error) {
	return LoadWithRoot("")
}

// LoadWithRoot reads ~/.codesearch.kdl and <rootDir>/.codesearch.kdl and
// merges them, project settings winning. Without either file the defaults
// index rootDir as a single project.
func LoadWithRoot(rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}
	absDir, err := filepath.Abs(searchDir)
	if err != nil {
		absDir = searchDir
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil && filepath.Clean(homeDir) != absDir {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	projectConfig, err := LoadKDL(absDir)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	switch {
	case baseConfig != nil && projectConfig != nil:
		cfg = mergeConfigs(baseConfig, projectConfig)
	case projectConfig != nil:
		cfg = projectConfig
	case baseConfig != nil:
		cfg = baseConfig
		// the global file never decides what to index
		cfg.Projects = nil
	default:
		cfg = Default()
	}

	if len(cfg.Projects) == 0 {
		cfg.Projects = []Project{{Root: absDir, Name: filepath.Base(absDir)}}
	}
	if cfg.Index.DetectBuildArtifacts {
		cfg.EnrichExclusionsWithBuildArtifacts()
	}
	return cfg, nil
}

// Default returns the built-in configuration without projects.
func Default() *Config {
	return &Config{
		Version: 1,
		Index: Index{
			MaxFileSize:          types.DefaultMaxFileSize,
			MaxFileCount:         types.DefaultMaxFileCount,
			FollowSymlinks:       false,
			RespectGitignore:     true,
			DetectBuildArtifacts: true,
			WatchMode:            true,
			WatchDebounceMs:      300,
		},
		Performance: Performance{
			Parallelism:  0, // auto-detect (NumCPU)
			LoadWorkers:  0,
			MaxPieceSize: types.DefaultMaxPieceSize,
		},
		Search: Search{
			MaxResults:         types.DefaultMaxResults,
			MaxExtractLength:   types.DefaultMaxExtractLength,
			ExtractCacheSize:   types.DefaultExtractCacheSize,
			AlgorithmCacheSize: types.DefaultAlgorithmCacheSize,
		},
		Include: []string{},
		Exclude: getDefaultExclusions(),
	}
}

// getDefaultExclusions lists paths that are never worth searching.
func getDefaultExclusions() []string {
	return []string{
		// VCS metadata and hidden directories
		"**/.git/**",
		"**/.hg/**",
		"**/.svn/**",
		"**/.*/**",

		// Package managers & dependencies
		"**/node_modules/**",
		"**/bower_components/**",
		"**/__pycache__/**",

		// Minified bundles
		"**/*.min.js",
		"**/*.min.css",
		"**/*.min.map",

		// Editor temp files
		"**/*.swp",
		"**/*.swo",
		"**/*~",

		// OS files
		"**/Thumbs.db",
		"**/desktop.ini",
		"**/.DS_Store",
	}
}

// mergeConfigs merges a base config with a project config.
// Project config takes precedence, but base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(append([]string{}, base.Exclude...), project.Exclude...))
	}

	// Inclusions: project overrides base completely if specified
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

// EnrichExclusionsWithBuildArtifacts adds the build output directories
// declared by each project's language configs to the exclusions.
func (c *Config) EnrichExclusionsWithBuildArtifacts() {
	for _, p := range c.Projects {
		if p.Root == "" {
			continue
		}
		detected := NewBuildArtifactDetector(p.Root).DetectOutputDirectories()
		if len(detected) > 0 {
			c.Exclude = DeduplicatePatterns(append(c.Exclude, detected...))
		}
	}
}
