package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codesearch/internal/config"
	"github.com/standardbeagle/codesearch/internal/core"
	"github.com/standardbeagle/codesearch/internal/indexing"
	"github.com/standardbeagle/codesearch/internal/types"
)

const mainGo = "package main\n\nfunc main() {\n\tfoo()\n\tfoo()\n}\n"

func testDatabase() *core.FileDatabase {
	return core.NewDatabaseFixture().
		WithFile("main.go", mainGo).
		WithFile("util/util.go", "package util\n\nfunc Foo() {}\n").
		WithFile("README.md", "# demo\n").
		Build()
}

func newTestServer(t *testing.T, db *core.FileDatabase) (*Server, *core.DatabaseHolder) {
	t.Helper()
	cfg := config.Default()
	cfg.Projects = []config.Project{{Root: "/test", Name: "test"}}
	require.NoError(t, config.ValidateConfig(cfg))
	cfg.Performance.Parallelism = 2

	holder := core.NewDatabaseHolder(db)
	return NewServer(cfg, holder, indexing.NewRegistry(indexing.NewLoader(cfg), holder)), holder
}

func callTool(t *testing.T, s *Server, tool string, args any) *mcp.CallToolResult {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	res, err := s.Handler(tool)(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: tool, Arguments: raw},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	var out T
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func TestSearchCode(t *testing.T) {
	s, _ := newTestServer(t, testDatabase())

	res := callTool(t, s, "search_code", map[string]any{"pattern": "foo"})
	require.False(t, res.IsError)
	resp := decodeResult[SearchCodeResponse](t, res)

	assert.Equal(t, 3, resp.HitCount, "case-insensitive by default")
	assert.Equal(t, 3, resp.TotalFileCount)
	assert.False(t, resp.CapReached)
	assert.False(t, resp.Superseded)
	require.NotNil(t, resp.Results)
	require.Len(t, resp.Results.Projects, 1)
	files := resp.Results.Projects[0].Files
	require.Len(t, files, 2)
	assert.Equal(t, "main.go", files[0].RelPath)
	assert.Len(t, files[0].Spans, 2)
	assert.Nil(t, resp.Extracts)
}

func TestSearchCode_FlagsAndCap(t *testing.T) {
	s, _ := newTestServer(t, testDatabase())

	resp := decodeResult[SearchCodeResponse](t, callTool(t, s, "search_code", map[string]any{
		"pattern": "Foo", "match_case": true,
	}))
	assert.Equal(t, 1, resp.HitCount)

	resp = decodeResult[SearchCodeResponse](t, callTool(t, s, "search_code", map[string]any{
		"pattern": "foo", "file_path_pattern": "*.go;!util/**",
	}))
	assert.Equal(t, 2, resp.HitCount)

	resp = decodeResult[SearchCodeResponse](t, callTool(t, s, "search_code", map[string]any{
		"pattern": `f\w+\(`, "regex": true, "max_results": 1,
	}))
	assert.GreaterOrEqual(t, resp.HitCount, 1)
	assert.LessOrEqual(t, resp.HitCount, 2, "overshoot is bounded by the partition count")
	assert.True(t, resp.CapReached)
}

func TestSearchCode_IncludeExtracts(t *testing.T) {
	s, _ := newTestServer(t, testDatabase())

	resp := decodeResult[SearchCodeResponse](t, callTool(t, s, "search_code", map[string]any{
		"pattern": "foo()", "match_case": true, "include_extracts": true,
	}))
	require.Equal(t, 2, resp.HitCount)
	path := resp.Results.Projects[0].Files[0].Path
	extracts := resp.Extracts[path]
	require.Len(t, extracts, 2)
	assert.Equal(t, "\tfoo()", extracts[0].Text)
	assert.Equal(t, 3, extracts[0].LineNumber)
	assert.Equal(t, 4, extracts[1].LineNumber)
}

func TestSearchCode_Errors(t *testing.T) {
	s, _ := newTestServer(t, testDatabase())

	tests := []struct {
		name    string
		args    any
		errType string
	}{
		{"empty pattern", map[string]any{"pattern": ""}, "invalid_query"},
		{"bad regex", map[string]any{"pattern": "(", "regex": true}, "pattern"},
		{"bad filter", map[string]any{"pattern": "x", "file_path_pattern": "[", "require_file_match": true}, "invalid_query"},
		{"unmatched filter", map[string]any{"pattern": "x", "file_path_pattern": "*.rs", "require_file_match": true}, "invalid_query"},
		{"wrong argument type", map[string]any{"pattern": 5}, "invalid_query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, s, "search_code", tt.args)
			require.True(t, res.IsError)
			resp := decodeResult[ErrorResponse](t, res)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.errType, resp.ErrorType)
			assert.Equal(t, "search_code", resp.Operation)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSearchCode_SeesSwappedSnapshot(t *testing.T) {
	s, holder := newTestServer(t, testDatabase())

	resp := decodeResult[SearchCodeResponse](t, callTool(t, s, "search_code", map[string]any{"pattern": "needle"}))
	assert.Equal(t, 0, resp.HitCount)
	first := resp.Generation

	holder.Store(core.NewDatabaseFixture().WithFile("new.txt", "a needle here").Build())
	resp = decodeResult[SearchCodeResponse](t, callTool(t, s, "search_code", map[string]any{"pattern": "needle"}))
	assert.Equal(t, 1, resp.HitCount)
	assert.Greater(t, resp.Generation, first)
}

func TestGetFileExtracts(t *testing.T) {
	s, _ := newTestServer(t, testDatabase())

	res := callTool(t, s, "get_file_extracts", map[string]any{
		"file":      "main.go",
		"positions": []types.FilePositionSpan{{Position: 0, Length: 7}, {Position: 28, Length: 3}},
	})
	require.False(t, res.IsError)
	resp := decodeResult[FileExtractsResponse](t, res)
	require.Len(t, resp.Extracts, 2)
	assert.Equal(t, "package main", resp.Extracts[0].Text)
	assert.Equal(t, "\tfoo()", resp.Extracts[1].Text)
	assert.Equal(t, 3, resp.Extracts[1].LineNumber)

	res = callTool(t, s, "get_file_extracts", map[string]any{
		"file":      "missing.go",
		"positions": []types.FilePositionSpan{{Position: 0, Length: 1}},
	})
	require.True(t, res.IsError)
	assert.Equal(t, "file_not_found", decodeResult[ErrorResponse](t, res).ErrorType)
}

func TestSearchFilePaths(t *testing.T) {
	s, _ := newTestServer(t, testDatabase())

	res := callTool(t, s, "search_file_paths", map[string]any{"pattern": "util"})
	require.False(t, res.IsError)
	resp := decodeResult[FilePathsResponse](t, res)
	assert.Equal(t, 1, resp.HitCount)
	assert.Equal(t, 3, resp.TotalFileCount)
	assert.Equal(t, "util/util.go", resp.Results.Projects[0].Files[0].RelPath)
}

func TestGetDatabaseStatistics(t *testing.T) {
	s, _ := newTestServer(t, testDatabase())

	res := callTool(t, s, "get_database_statistics", nil)
	require.False(t, res.IsError)
	stats := decodeResult[core.Statistics](t, res)
	assert.Equal(t, 1, stats.ProjectCount)
	assert.Equal(t, 3, stats.SearchableFileCount)
	assert.Equal(t, int64(len(mainGo)+len("package util\n\nfunc Foo() {}\n")+len("# demo\n")), stats.TotalBytes)
	assert.Equal(t, core.StatusIdle, stats.ServerStatus)

	res = callTool(t, s, "get_database_statistics", map[string]any{"force_gc": true})
	require.False(t, res.IsError)
	stats = decodeResult[core.Statistics](t, res)
	assert.Equal(t, 3, stats.SearchableFileCount)
	assert.NotZero(t, stats.HeapBytes)
}

func TestGetDatabaseStatistics_BusyDuringRebuild(t *testing.T) {
	s, holder := newTestServer(t, testDatabase())
	done := holder.BeginRebuild()

	stats := decodeResult[core.Statistics](t, callTool(t, s, "get_database_statistics", nil))
	assert.Equal(t, core.StatusBusy, stats.ServerStatus)

	done()
	stats = decodeResult[core.Statistics](t, callTool(t, s, "get_database_statistics", nil))
	assert.Equal(t, core.StatusIdle, stats.ServerStatus)
}

func TestRegisterFile(t *testing.T) {
	root := t.TempDir()
	extra := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(extra, "lib.go"), []byte("package lib // needle\n"), 0o644))

	cfg := config.Default()
	cfg.Projects = []config.Project{{Root: root, Name: "main"}}
	require.NoError(t, config.ValidateConfig(cfg))
	cfg.Performance.Parallelism = 2

	loader := indexing.NewLoader(cfg)
	db, err := loader.Load(context.Background())
	require.NoError(t, err)
	holder := core.NewDatabaseHolder(db)
	s := NewServer(cfg, holder, indexing.NewRegistry(loader, holder))

	resp := decodeResult[RegisterFileResponse](t, callTool(t, s, "register_file", map[string]any{"file": extra}))
	assert.True(t, resp.Changed)
	assert.Equal(t, extra, resp.Root)
	assert.Equal(t, 2, resp.FileCount)
	assert.Equal(t, holder.Load().Generation(), resp.Generation)

	found := decodeResult[SearchCodeResponse](t, callTool(t, s, "search_code", map[string]any{"pattern": "needle"}))
	assert.Equal(t, 1, found.HitCount)

	resp = decodeResult[RegisterFileResponse](t, callTool(t, s, "register_file", map[string]any{"file": filepath.Join(extra, "lib.go")}))
	assert.False(t, resp.Changed, "already loaded")
	assert.Equal(t, extra, resp.Root)

	resp = decodeResult[RegisterFileResponse](t, callTool(t, s, "unregister_file", map[string]any{"file": filepath.Join(extra, "lib.go")}))
	assert.True(t, resp.Changed)
	assert.Equal(t, 1, resp.FileCount)

	found = decodeResult[SearchCodeResponse](t, callTool(t, s, "search_code", map[string]any{"pattern": "needle"}))
	assert.Zero(t, found.HitCount)

	resp = decodeResult[RegisterFileResponse](t, callTool(t, s, "unregister_file", map[string]any{"file": extra}))
	assert.False(t, resp.Changed)

	assert.True(t, callTool(t, s, "register_file", map[string]any{}).IsError)
	assert.True(t, callTool(t, s, "register_file", map[string]any{"file": filepath.Join(root, "missing")}).IsError)
}

func TestRegisterFile_WithoutRegistry(t *testing.T) {
	cfg := config.Default()
	s := NewServer(cfg, core.NewDatabaseHolder(testDatabase()), nil)
	res := callTool(t, s, "register_file", map[string]any{"file": "/tmp"})
	assert.True(t, res.IsError)
}

// Every tool is registered with the SDK and answers over a client session.
func TestServer_ToolsOverSession(t *testing.T) {
	s, _ := newTestServer(t, testDatabase())
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := s.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, cs.Close())
		_ = ss.Wait()
	}()

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"search_code", "get_file_extracts", "search_file_paths", "get_database_statistics",
		"cancel_search", "register_file", "unregister_file",
	}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search_code",
		Arguments: map[string]any{"pattern": "foo", "match_case": true},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	resp := decodeResult[SearchCodeResponse](t, res)
	assert.Equal(t, 2, resp.HitCount)
}

func TestCancelSearch_NoActiveQuery(t *testing.T) {
	s, _ := newTestServer(t, testDatabase())

	resp := decodeResult[CancelSearchResponse](t, callTool(t, s, "cancel_search", map[string]any{}))
	assert.Equal(t, DefaultClientID, resp.ClientID)
	assert.False(t, resp.Cancelled)
}

func TestHandler_UnknownTool(t *testing.T) {
	s, _ := newTestServer(t, testDatabase())
	res := callTool(t, s, "no_such_tool", nil)
	assert.True(t, res.IsError)
}
