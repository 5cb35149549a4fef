package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/codesearch/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// MCPMode tracks if we're serving MCP over stdio (set by main)
var MCPMode = false

// debugOutput is the writer for debug output (nil means no output)
var debugOutput io.Writer

// debugFile holds the open file handle if debug output goes to a file
var debugFile *os.File

// debugMutex protects access to debug output
var debugMutex sync.Mutex

// SetMCPMode enables MCP mode which suppresses all debug output to stdio
func SetMCPMode(enabled bool) {
	MCPMode = enabled
}

// SetDebugOutput sets a custom writer for debug output.
// Pass nil to disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile initializes debug logging to a timestamped file under the
// temp directory and returns its path. Call CloseDebugLog when done.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "codesearch-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// DebugRequested reports whether the build flag or DEBUG=1 asks for debug
// output, whatever the output mode.
func DebugRequested() bool {
	if EnableDebug == "true" {
		return true
	}

	// Runtime override via environment variable
	if v := os.Getenv("DEBUG"); v == "1" || v == "true" {
		return true
	}

	return false
}

// IsDebugEnabled returns true if debug output is requested and has somewhere
// to go. In MCP mode stdio carries the protocol, so only a log file opened
// with InitDebugLogFile receives output.
func IsDebugEnabled() bool {
	if !DebugRequested() {
		return false
	}
	if MCPMode {
		debugMutex.Lock()
		defer debugMutex.Unlock()
		return debugFile != nil
	}
	return true
}

func getDebugWriter() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Printf prints debug information only when debug mode is enabled and output is configured
func Printf(format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG] "+format, args...)
}

// Log provides debug logging tagged with a component name
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format, append([]interface{}{component}, args...)...)
}

// LogIndex logs snapshot building, partitioning and watcher activity
func LogIndex(format string, args ...interface{}) {
	Log("INDEX", format, args...)
}

// LogSearch logs query execution
func LogSearch(format string, args ...interface{}) {
	Log("SEARCH", format, args...)
}

// LogExtract logs extract requests
func LogExtract(format string, args ...interface{}) {
	Log("EXTRACT", format, args...)
}

// LogMCP logs MCP request handling
func LogMCP(format string, args ...interface{}) {
	Log("MCP", format, args...)
}

// Fatal writes a fatal message to the debug log and returns it as an error.
// Callers decide whether to exit.
func Fatal(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if !MCPMode {
		if w := getDebugWriter(); w != nil {
			fmt.Fprintf(w, "[FATAL] %s", msg)
		}
	}
	return fmt.Errorf("fatal error: %s", msg)
}
