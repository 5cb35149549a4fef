package config

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"

	cserrors "github.com/standardbeagle/codesearch/internal/errors"
	"github.com/standardbeagle/codesearch/internal/types"
)

// Validator validates configuration and fills in values left for auto-detection.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults returns a ConfigError naming the first invalid
// section, or fills auto values in place.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjects(cfg.Projects); err != nil {
		return cserrors.NewConfigError("project", "", err)
	}

	if err := v.validateIndexConfig(&cfg.Index); err != nil {
		return cserrors.NewConfigError("index", "", err)
	}

	if err := v.validatePerformanceConfig(&cfg.Performance); err != nil {
		return cserrors.NewConfigError("performance", "", err)
	}

	if err := v.validateSearchConfig(&cfg.Search); err != nil {
		return cserrors.NewConfigError("search", "", err)
	}

	for _, p := range append(append([]string{}, cfg.Include...), cfg.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return cserrors.NewConfigError("patterns", p, errors.New("invalid glob pattern"))
		}
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjects(projects []Project) error {
	if len(projects) == 0 {
		return errors.New("at least one project is required")
	}
	names := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		if p.Root == "" {
			return errors.New("project root cannot be empty")
		}
		if p.Name == "" {
			return fmt.Errorf("project name cannot be empty (root %s)", p.Root)
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("duplicate project name %q", p.Name)
		}
		names[p.Name] = struct{}{}
	}
	return nil
}

func (v *Validator) validateIndexConfig(index *Index) error {
	if index.MaxFileSize <= 0 {
		return fmt.Errorf("MaxFileSize must be positive, got %d", index.MaxFileSize)
	}

	if index.MaxFileSize >= types.MaxSearchableFileSize {
		return fmt.Errorf("MaxFileSize must be below 2GB, got %d", index.MaxFileSize)
	}

	if index.MaxFileCount <= 0 {
		return fmt.Errorf("MaxFileCount must be positive, got %d", index.MaxFileCount)
	}

	if index.WatchDebounceMs < 0 {
		return fmt.Errorf("WatchDebounceMs cannot be negative, got %d", index.WatchDebounceMs)
	}

	return nil
}

func (v *Validator) validatePerformanceConfig(perf *Performance) error {
	// 0 means auto-detect for both worker counts
	if perf.Parallelism < 0 {
		return fmt.Errorf("Parallelism cannot be negative, got %d", perf.Parallelism)
	}

	if perf.LoadWorkers < 0 {
		return fmt.Errorf("LoadWorkers cannot be negative, got %d", perf.LoadWorkers)
	}

	if perf.MaxPieceSize < 0 {
		return fmt.Errorf("MaxPieceSize cannot be negative, got %d", perf.MaxPieceSize)
	}

	return nil
}

func (v *Validator) validateSearchConfig(search *Search) error {
	if search.MaxResults < 0 {
		return fmt.Errorf("MaxResults cannot be negative, got %d", search.MaxResults)
	}

	if search.MaxExtractLength < 0 {
		return fmt.Errorf("MaxExtractLength cannot be negative, got %d", search.MaxExtractLength)
	}

	if search.ExtractCacheSize < 0 || search.AlgorithmCacheSize < 0 {
		return errors.New("cache sizes cannot be negative")
	}

	return nil
}

func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Performance.Parallelism == 0 {
		cfg.Performance.Parallelism = runtime.NumCPU()
	}

	// Loading is I/O bound, leave one core for the searches already running
	if cfg.Performance.LoadWorkers == 0 {
		cfg.Performance.LoadWorkers = max(1, runtime.NumCPU()-1)
	}

	if cfg.Performance.MaxPieceSize == 0 {
		cfg.Performance.MaxPieceSize = types.DefaultMaxPieceSize
	}

	if cfg.Search.MaxExtractLength == 0 {
		cfg.Search.MaxExtractLength = types.DefaultMaxExtractLength
	}

	if cfg.Search.ExtractCacheSize == 0 {
		cfg.Search.ExtractCacheSize = types.DefaultExtractCacheSize
	}

	if cfg.Search.AlgorithmCacheSize == 0 {
		cfg.Search.AlgorithmCacheSize = types.DefaultAlgorithmCacheSize
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
