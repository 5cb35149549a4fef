package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/standardbeagle/codesearch/internal/core"
	"github.com/standardbeagle/codesearch/internal/debug"
	"github.com/standardbeagle/codesearch/internal/indexing"
	"github.com/standardbeagle/codesearch/internal/mcp"

	"github.com/urfave/cli/v2"
)

func mcpCommand(c *cli.Context) error {
	// stdout carries the protocol, keep debug output off it
	debug.SetMCPMode(true)
	defer openDebugLog(c.App.ErrWriter)()

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return debug.Fatal("failed to load config: %v\n", err)
	}

	start := time.Now()
	loader := indexing.NewLoader(cfg)
	db, err := loader.Load(c.Context)
	if err != nil {
		return debug.Fatal("failed to load projects: %v\n", err)
	}
	debug.LogMCP("loaded %d files in %v\n", db.FileCount(), time.Since(start))
	holder := core.NewDatabaseHolder(db)
	registry := indexing.NewRegistry(loader, holder)

	if cfg.Index.WatchMode {
		watcher, err := indexing.NewFileWatcher(cfg, loader, holder)
		if err != nil {
			debug.LogMCP("Warning: file watching disabled: %v\n", err)
		} else if err := watcher.Start(); err != nil {
			debug.LogMCP("Warning: file watching disabled: %v\n", err)
			_ = watcher.Stop()
		} else {
			registry.SetWatcher(watcher)
			defer watcher.Stop()
		}
	}

	ctx, cancel := interruptContext(c.Context)
	defer cancel()

	server := mcp.NewServer(cfg, holder, registry)
	if err := server.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
		return debug.Fatal("MCP server error: %v\n", err)
	}
	debug.LogMCP("server shutdown completed\n")
	return nil
}

// openDebugLog sends debug output to a log file when debug is requested, so
// it stays off the protocol stream. The returned func closes the file.
func openDebugLog(w io.Writer) func() {
	if !debug.DebugRequested() {
		return func() {}
	}
	path, err := debug.InitDebugLogFile()
	if err != nil {
		fmt.Fprintf(w, "Warning: debug log disabled: %v\n", err)
		return func() {}
	}
	fmt.Fprintf(w, "debug log: %s\n", path)
	return func() { _ = debug.CloseDebugLog() }
}
