package debug

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saveAndRestoreState saves the debug package state and returns a cleanup function
func saveAndRestoreState() func() {
	originalDebug := EnableDebug
	originalMode := MCPMode
	originalOutput := debugOutput
	originalFile := debugFile
	return func() {
		EnableDebug = originalDebug
		MCPMode = originalMode
		debugOutput = originalOutput
		debugFile = originalFile
	}
}

func TestSetMCPMode(t *testing.T) {
	defer saveAndRestoreState()()

	SetMCPMode(true)
	assert.True(t, MCPMode)

	SetMCPMode(false)
	assert.False(t, MCPMode)
}

func TestIsDebugEnabled(t *testing.T) {
	defer saveAndRestoreState()()
	t.Setenv("DEBUG", "")

	EnableDebug = "false"
	MCPMode = false
	assert.False(t, IsDebugEnabled())

	EnableDebug = "true"
	assert.True(t, IsDebugEnabled())

	// MCP mode without a log file stays quiet
	MCPMode = true
	assert.False(t, IsDebugEnabled())
	assert.True(t, DebugRequested())

	MCPMode = false
	EnableDebug = "invalid"
	assert.False(t, IsDebugEnabled())
	assert.False(t, DebugRequested())

	t.Setenv("DEBUG", "1")
	assert.True(t, IsDebugEnabled())

	t.Setenv("DEBUG", "true")
	assert.True(t, DebugRequested())

	t.Setenv("DEBUG", "0")
	assert.False(t, DebugRequested())
}

func TestLogComponents(t *testing.T) {
	defer saveAndRestoreState()()

	EnableDebug = "true"
	MCPMode = false
	var buf bytes.Buffer
	SetDebugOutput(&buf)

	LogSearch("query %q done\n", "foo")
	LogIndex("%d pieces\n", 3)
	LogExtract("ok\n")
	LogMCP("ready\n")

	out := buf.String()
	assert.Contains(t, out, `[DEBUG:SEARCH] query "foo" done`)
	assert.Contains(t, out, "[DEBUG:INDEX] 3 pieces")
	assert.Contains(t, out, "[DEBUG:EXTRACT] ok")
	assert.Contains(t, out, "[DEBUG:MCP] ready")
}

func TestLogSuppressed(t *testing.T) {
	defer saveAndRestoreState()()

	var buf bytes.Buffer
	SetDebugOutput(&buf)

	EnableDebug = "true"
	MCPMode = true
	LogSearch("hidden\n")
	Printf("hidden\n")
	assert.Empty(t, buf.String())

	// No writer configured: nothing panics
	SetDebugOutput(nil)
	MCPMode = false
	LogSearch("dropped\n")
}

func TestFatalReturnsError(t *testing.T) {
	defer saveAndRestoreState()()

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	MCPMode = false

	err := Fatal("cannot load %s", "snapshot")
	require.Error(t, err)
	assert.Equal(t, "fatal error: cannot load snapshot", err.Error())
	assert.True(t, strings.HasPrefix(buf.String(), "[FATAL]"))
}

func TestInitDebugLogFile(t *testing.T) {
	defer saveAndRestoreState()()

	path, err := InitDebugLogFile()
	require.NoError(t, err)
	defer os.Remove(path)

	EnableDebug = "true"
	MCPMode = false
	Printf("to file\n")
	require.NoError(t, CloseDebugLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] to file")
}

func TestInitDebugLogFile_MCPMode(t *testing.T) {
	defer saveAndRestoreState()()
	t.Setenv("DEBUG", "1")
	EnableDebug = "false"
	MCPMode = true

	assert.False(t, IsDebugEnabled(), "no log file yet")

	path, err := InitDebugLogFile()
	require.NoError(t, err)
	defer os.Remove(path)

	assert.True(t, IsDebugEnabled())
	LogMCP("request handled\n")
	require.NoError(t, CloseDebugLog())
	assert.False(t, IsDebugEnabled())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG:MCP] request handled")
}
