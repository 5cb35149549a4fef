package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL loads <dir>/.codesearch.kdl. It returns nil, nil when the file
// does not exist. Relative project roots resolve against dir.
func LoadKDL(dir string) (*Config, error) {
	kdlPath := filepath.Join(dir, ConfigFileName)

	content, err := os.ReadFile(kdlPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", kdlPath, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kdlPath, err)
	}

	for i := range cfg.Projects {
		p := &cfg.Projects[i]
		if !filepath.IsAbs(p.Root) {
			p.Root = filepath.Join(dir, p.Root)
		}
		p.Root = filepath.Clean(p.Root)
		if p.Name == "" {
			p.Name = filepath.Base(p.Root)
		}
	}
	return cfg, nil
}

// parseKDL reads a configuration such as:
//
//	project { root "."; name "chromium" }
//	project { root "../v8" }
//	index { max_file_size "10MB"; follow_symlinks false }
//	performance { parallelism 8; max_piece_size "100KB" }
//	search { max_results 10000; max_extract_length 250 }
//	include "*.cc" "*.h"
//	exclude { "**/out/**" }
//
// Settings not mentioned keep their defaults.
func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			var p Project
			if s, ok := firstStringArg(n); ok { // project "."
				p.Root = s
			}
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { p.Root = v })
				assignSimpleString(cn, "name", func(v string) { p.Name = v })
			}
			if p.Root == "" {
				return nil, fmt.Errorf("project without root")
			}
			cfg.Projects = append(cfg.Projects, p)
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_file_size":
					if v, ok := sizeArg(cn); ok {
						cfg.Index.MaxFileSize = v
					}
				case "max_file_count":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileCount = v
					}
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.FollowSymlinks = b
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
					}
				case "detect_build_artifacts":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.DetectBuildArtifacts = b
					}
				case "watch_mode":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.WatchMode = b
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.WatchDebounceMs = v
					}
				}
			}
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "parallelism":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.Parallelism = v
					}
				case "load_workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.LoadWorkers = v
					}
				case "max_piece_size":
					if v, ok := sizeArg(cn); ok {
						cfg.Performance.MaxPieceSize = int(v)
					}
				}
			}
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_results":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxResults = v
					}
				case "max_extract_length":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxExtractLength = v
					}
				case "extract_cache_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.ExtractCacheSize = v
					}
				case "algorithm_cache_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.AlgorithmCacheSize = v
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			// An exclude block replaces the default exclusions
			cfg.Exclude = collectStringArgs(n)
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// sizeArg accepts a plain byte count or a size string such as "10MB".
func sizeArg(n *document.Node) (int64, bool) {
	if v, ok := firstIntArg(n); ok {
		return int64(v), true
	}
	if s, ok := firstStringArg(n); ok {
		if sz, err := parseSize(s); err == nil {
			return sz, true
		}
	}
	return 0, false
}

// collectStringArgs accepts both `include "a" "b"` and `include { "a"; "b" }`.
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// In block format each string is a child node named by the string
	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB"
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	numStr := s
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}
