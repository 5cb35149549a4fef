// Package mcp exposes the search engine as Model Context Protocol tools over
// stdio.
package mcp

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/codesearch/internal/config"
	"github.com/standardbeagle/codesearch/internal/core"
	csdebug "github.com/standardbeagle/codesearch/internal/debug"
	"github.com/standardbeagle/codesearch/internal/extract"
	"github.com/standardbeagle/codesearch/internal/indexing"
	"github.com/standardbeagle/codesearch/internal/search"
	"github.com/standardbeagle/codesearch/internal/version"
)

// DefaultClientID identifies requests that do not name a client. A stdio
// server has a single client, so its queries supersede each other.
const DefaultClientID = "default"

// Server answers tool calls against whatever snapshot the holder currently
// stores. Each call loads the snapshot once and uses it throughout.
type Server struct {
	server   *mcp.Server
	cfg      *config.Config
	holder   *core.DatabaseHolder
	registry *indexing.Registry
	engine   *search.Engine
	extracts *extract.Service
}

// NewServer serves the snapshots published in holder. register_file and
// unregister_file change projects through registry.
func NewServer(cfg *config.Config, holder *core.DatabaseHolder, registry *indexing.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		holder:   holder,
		registry: registry,
		engine: search.NewEngine(search.Options{
			Parallelism:        cfg.Performance.Parallelism,
			AlgorithmCacheSize: cfg.Search.AlgorithmCacheSize,
		}),
		extracts: extract.NewService(extract.Options{
			CacheSize:   cfg.Search.ExtractCacheSize,
			Parallelism: cfg.Performance.Parallelism,
		}),
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "codesearch",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "search_code",
		Description: "Search the contents of every indexed file. Returns matches grouped by project and file as byte position spans. A newer call from the same client cancels an older one still running.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern":            {Type: "string", Description: "Text or regular expression to find"},
				"regex":              {Type: "boolean", Description: "Treat pattern as an RE2 regular expression"},
				"match_case":         {Type: "boolean", Description: "Case sensitive matching (default false)"},
				"whole_word":         {Type: "boolean", Description: "Only report matches not surrounded by word characters"},
				"file_path_pattern":  {Type: "string", Description: "Glob filter on file paths, ';' separated, '!' prefix excludes (e.g. \"*.go;!*_test.go\")"},
				"max_results":        {Type: "integer", Description: "Result cap, 0 for unbounded (default from configuration)"},
				"include_symlinks":   {Type: "boolean", Description: "Also search files reached through symbolic links"},
				"require_file_match": {Type: "boolean", Description: "Fail when file_path_pattern selects no file"},
				"include_extracts":   {Type: "boolean", Description: "Attach the matching line of every span"},
				"client_id":          {Type: "string", Description: "Caller identity for superseding queries"},
			},
			Required: []string{"pattern"},
		},
	}, s.wrap("search_code", s.handleSearchCode))

	s.server.AddTool(&mcp.Tool{
		Name:        "get_file_extracts",
		Description: "Return the line around each position of one file, with 0-based line and column numbers.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {Type: "string", Description: "Full path, project/relative path, or relative path"},
				"positions": {
					Type:        "array",
					Description: "Spans to extract",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"position": {Type: "integer"},
							"length":   {Type: "integer"},
						},
						Required: []string{"position"},
					},
				},
				"max_extract_length": {Type: "integer", Description: "Longest extract in bytes (default from configuration)"},
			},
			Required: []string{"file", "positions"},
		},
	}, s.wrap("get_file_extracts", s.handleGetFileExtracts))

	s.server.AddTool(&mcp.Tool{
		Name:        "search_file_paths",
		Description: "Find indexed files whose relative path matches the pattern.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"pattern":           {Type: "string", Description: "Text or regular expression to find in paths"},
				"regex":             {Type: "boolean", Description: "Treat pattern as an RE2 regular expression"},
				"match_case":        {Type: "boolean", Description: "Case sensitive matching (default false)"},
				"file_path_pattern": {Type: "string", Description: "Glob filter applied before matching"},
				"max_results":       {Type: "integer", Description: "Maximum number of files"},
			},
			Required: []string{"pattern"},
		},
	}, s.wrap("search_file_paths", s.handleSearchFilePaths))

	s.server.AddTool(&mcp.Tool{
		Name:        "get_database_statistics",
		Description: "Describe the current snapshot: projects, file counts, bytes, large files and size per extension, and whether a rebuild is running.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"force_gc": {Type: "boolean", Description: "Run a garbage collection before measuring the heap"},
			},
		},
	}, s.wrap("get_database_statistics", s.handleGetDatabaseStatistics))

	s.server.AddTool(&mcp.Tool{
		Name:        "register_file",
		Description: "Load the project holding a file or directory and rebuild the snapshot. A directory is its own project root; a file belongs to the nearest ancestor holding .git.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {Type: "string", Description: "Absolute path of a file or directory"},
			},
			Required: []string{"file"},
		},
	}, s.wrap("register_file", s.handleRegisterFile))

	s.server.AddTool(&mcp.Tool{
		Name:        "unregister_file",
		Description: "Drop the innermost loaded project containing a path and rebuild the snapshot.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {Type: "string", Description: "Absolute path inside the project to drop"},
			},
			Required: []string{"file"},
		},
	}, s.wrap("unregister_file", s.handleUnregisterFile))

	s.server.AddTool(&mcp.Tool{
		Name:        "cancel_search",
		Description: "Cancel the running search_code call of a client.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"client_id": {Type: "string", Description: "Client whose query to cancel"},
			},
		},
	}, s.wrap("cancel_search", s.handleCancelSearch))
}

type toolHandler = mcp.ToolHandler

// wrap turns handler errors and panics into IsError results so one bad
// request never takes the server down.
func (s *Server) wrap(operation string, handler toolHandler) toolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				csdebug.LogMCP("PANIC in %s: %v\n%s", operation, r, debug.Stack())
				result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
			}
		}()

		result, err = handler(ctx, req)
		if err != nil {
			csdebug.LogMCP("%s failed: %v\n", operation, err)
			return createErrorResponse(operation, err)
		}
		return result, nil
	}
}

// Run serves tool calls on stdin/stdout until ctx ends or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	csdebug.LogMCP("starting MCP server with stdio transport\n")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the wrapped handler of a tool, for tests and embedding.
func (s *Server) Handler(toolName string) toolHandler {
	switch toolName {
	case "search_code":
		return s.wrap(toolName, s.handleSearchCode)
	case "get_file_extracts":
		return s.wrap(toolName, s.handleGetFileExtracts)
	case "search_file_paths":
		return s.wrap(toolName, s.handleSearchFilePaths)
	case "get_database_statistics":
		return s.wrap(toolName, s.handleGetDatabaseStatistics)
	case "cancel_search":
		return s.wrap(toolName, s.handleCancelSearch)
	case "register_file":
		return s.wrap(toolName, s.handleRegisterFile)
	case "unregister_file":
		return s.wrap(toolName, s.handleUnregisterFile)
	default:
		return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return createErrorResponse("dispatch", fmt.Errorf("unknown tool: %s", toolName))
		}
	}
}
