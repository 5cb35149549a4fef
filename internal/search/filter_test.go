package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserrors "github.com/standardbeagle/codesearch/internal/errors"
)

func TestParsePathFilter(t *testing.T) {
	tests := []struct {
		name    string
		filter  string
		path    string
		matches bool
	}{
		{"base_name_glob", "*.cc", "src/deep/file.cc", true},
		{"base_name_miss", "*.cc", "src/file.h", false},
		{"list", "*.cc; *.h", "src/file.h", true},
		{"path_glob", "src/**/*.go", "src/a/b/c.go", true},
		{"path_glob_miss", "src/**/*.go", "lib/c.go", false},
		{"exclude_only", "!*_test.go", "engine.go", true},
		{"exclude_only_hit", "!*_test.go", "engine_test.go", false},
		{"exclude_wins", "*.go;!vendor/**", "vendor/x/y.go", false},
		{"backslashes", "src\\*.go", "src/main.go", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParsePathFilter(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.matches, f.Match(tt.path))
		})
	}
}

func TestParsePathFilter_Empty(t *testing.T) {
	for _, source := range []string{"", " ", ";;", "!"} {
		f, err := ParsePathFilter(source)
		require.NoError(t, err)
		assert.Nil(t, f)
		assert.True(t, f.Match("anything"))
	}
}

func TestParsePathFilter_Invalid(t *testing.T) {
	_, err := ParsePathFilter("*.go;[")
	require.Error(t, err)
	assert.True(t, cserrors.IsInvalidQuery(err))
}
