package config

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserrors "github.com/standardbeagle/codesearch/internal/errors"
	"github.com/standardbeagle/codesearch/internal/types"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Projects = []Project{{Root: "/src/app", Name: "app"}}
	return cfg
}

func TestValidator_SetsSmartDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Performance.MaxPieceSize = 0
	cfg.Search.MaxExtractLength = 0

	require.NoError(t, NewValidator().ValidateAndSetDefaults(cfg))
	assert.Equal(t, runtime.NumCPU(), cfg.Performance.Parallelism)
	assert.Equal(t, max(1, runtime.NumCPU()-1), cfg.Performance.LoadWorkers)
	assert.Equal(t, types.DefaultMaxPieceSize, cfg.Performance.MaxPieceSize)
	assert.Equal(t, types.DefaultMaxExtractLength, cfg.Search.MaxExtractLength)
}

func TestValidator_KeepsExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.Performance.Parallelism = 3
	cfg.Performance.LoadWorkers = 2

	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, 3, cfg.Performance.Parallelism)
	assert.Equal(t, 2, cfg.Performance.LoadWorkers)
}

func TestValidator_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		section string
	}{
		{"no projects", func(c *Config) { c.Projects = nil }, "project"},
		{"empty root", func(c *Config) { c.Projects[0].Root = "" }, "project"},
		{"empty name", func(c *Config) { c.Projects[0].Name = "" }, "project"},
		{"duplicate name", func(c *Config) { c.Projects = append(c.Projects, Project{Root: "/other", Name: "app"}) }, "project"},
		{"zero file size", func(c *Config) { c.Index.MaxFileSize = 0 }, "index"},
		{"huge file size", func(c *Config) { c.Index.MaxFileSize = types.MaxSearchableFileSize }, "index"},
		{"zero file count", func(c *Config) { c.Index.MaxFileCount = 0 }, "index"},
		{"negative debounce", func(c *Config) { c.Index.WatchDebounceMs = -1 }, "index"},
		{"negative parallelism", func(c *Config) { c.Performance.Parallelism = -1 }, "performance"},
		{"negative piece size", func(c *Config) { c.Performance.MaxPieceSize = -1 }, "performance"},
		{"negative max results", func(c *Config) { c.Search.MaxResults = -1 }, "search"},
		{"negative cache", func(c *Config) { c.Search.AlgorithmCacheSize = -1 }, "search"},
		{"bad glob", func(c *Config) { c.Exclude = append(c.Exclude, "[") }, "patterns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)
			var cfgErr *cserrors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.section, cfgErr.Field)
		})
	}
}
