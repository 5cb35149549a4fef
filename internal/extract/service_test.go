package extract

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/codesearch/internal/core"
	"github.com/standardbeagle/codesearch/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func span(pos, length int) types.FilePositionSpan {
	return types.FilePositionSpan{Position: int32(pos), Length: int32(length)}
}

func TestExtract_LinesAndColumns(t *testing.T) {
	content := "package main\r\n\nfunc main() {\n\tfoo()\n}"
	db := core.NewDatabaseFixture().WithFile("main.go", content).Build()
	svc := NewService(Options{})

	positions := []types.FilePositionSpan{
		span(strings.Index(content, "foo"), 3),
		span(0, 7),
		span(strings.Index(content, "main()"), 4),
		span(len(content)-1, 1),
	}
	got, err := svc.Extract(context.Background(), db, "main.go", positions, 0)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, types.FileExtract{Text: "\tfoo()", Offset: 29, Length: 6, LineNumber: 3, ColumnNumber: 1}, got[0])
	assert.Equal(t, "package main", got[1].Text, "CRLF is stripped")
	assert.Equal(t, 0, got[1].LineNumber)
	assert.Equal(t, "func main() {", got[2].Text)
	assert.Equal(t, 2, got[2].LineNumber)
	assert.Equal(t, 5, got[2].ColumnNumber)
	assert.Equal(t, "}", got[3].Text)
	assert.Equal(t, 4, got[3].LineNumber)
}

func TestExtract_PreservesInputOrder(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		sb.WriteString("line with target\n")
	}
	content := sb.String()
	db := core.NewDatabaseFixture().WithFile("many.txt", content).Build()
	svc := NewService(Options{Parallelism: 4})

	// descending order across several chunks
	var positions []types.FilePositionSpan
	for line := 499; line >= 0; line-- {
		positions = append(positions, span(line*17+10, 6))
	}

	got, err := svc.Extract(context.Background(), db, "many.txt", positions, 0)
	require.NoError(t, err)
	require.Len(t, got, len(positions))
	for i, e := range got {
		assert.Equal(t, 499-i, e.LineNumber)
		assert.Equal(t, 10, e.ColumnNumber)
		assert.Equal(t, "line with target", e.Text)
	}
}

func TestExtract_LongLineWindow(t *testing.T) {
	content := strings.Repeat("a", 1000) + "needle" + strings.Repeat("b", 1000)
	db := core.NewDatabaseFixture().WithFile("long.txt", content).Build()
	svc := NewService(Options{})

	got, err := svc.Extract(context.Background(), db, "long.txt", []types.FilePositionSpan{span(1000, 6)}, 50)
	require.NoError(t, err)

	e := got[0]
	assert.Equal(t, 50, e.Length)
	assert.Contains(t, e.Text, "needle")
	assert.Equal(t, 1000, e.ColumnNumber)
	assert.Equal(t, content[e.Offset:e.Offset+e.Length], e.Text)
}

func TestExtract_WindowAtLineEdges(t *testing.T) {
	content := "needle" + strings.Repeat("x", 300)
	db := core.NewDatabaseFixture().WithFile("f.txt", content).Build()
	svc := NewService(Options{})

	got, err := svc.Extract(context.Background(), db, "f.txt",
		[]types.FilePositionSpan{span(0, 6), span(len(content)-2, 2)}, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, got[0].Offset)
	assert.Equal(t, 20, got[0].Length)
	assert.Equal(t, len(content)-20, got[1].Offset)
	assert.Equal(t, 20, got[1].Length)
}

func TestExtract_UTF8Boundaries(t *testing.T) {
	content := strings.Repeat("é", 200) + "X" + strings.Repeat("ü", 200)
	db := core.NewDatabaseFixture().WithFile("u.txt", content).Build()
	svc := NewService(Options{})

	for _, maxLen := range []int{9, 10, 11, 31} {
		got, err := svc.Extract(context.Background(), db, "u.txt", []types.FilePositionSpan{span(400, 1)}, maxLen)
		require.NoError(t, err)
		assert.True(t, utf8.ValidString(got[0].Text), "maxLen %d: %q", maxLen, got[0].Text)
		assert.Contains(t, got[0].Text, "X")
		assert.LessOrEqual(t, got[0].Length, maxLen)
	}
}

func TestExtract_ClampsPositions(t *testing.T) {
	db := core.NewDatabaseFixture().WithFile("c.txt", "ab\ncd\n").Build()
	svc := NewService(Options{})

	got, err := svc.Extract(context.Background(), db, "c.txt",
		[]types.FilePositionSpan{span(100, 4), span(-5, 1), span(2, 1)}, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, got[0].LineNumber, "past EOF lands on the empty last line")
	assert.Equal(t, "", got[0].Text)
	assert.Equal(t, 0, got[1].LineNumber)
	assert.Equal(t, 0, got[1].ColumnNumber)
	assert.Equal(t, "ab", got[2].Text, "a position on the newline belongs to its line")
	assert.Equal(t, 2, got[2].ColumnNumber)
}

func TestExtract_Errors(t *testing.T) {
	db := core.NewDatabaseFixture().WithFile("a.txt", "x").Build()
	svc := NewService(Options{})

	_, err := svc.Extract(context.Background(), db, "missing.txt", []types.FilePositionSpan{span(0, 1)}, 0)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Extract(ctx, db, "a.txt", []types.FilePositionSpan{span(0, 1)}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtract_CachesLineIndexByContent(t *testing.T) {
	db := core.NewDatabaseFixture().
		WithFile("a.txt", "same\ncontent").
		WithFile("b.txt", "same\ncontent").
		WithFile("c.txt", "other").
		Build()
	svc := NewService(Options{CacheSize: 8})

	for _, name := range []string{"a.txt", "b.txt", "a.txt", "c.txt"} {
		_, err := svc.Extract(context.Background(), db, name, []types.FilePositionSpan{span(0, 1)}, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, svc.CachedFiles())
}

func TestExtract_EmptyPositions(t *testing.T) {
	db := core.NewDatabaseFixture().WithFile("a.txt", "x").Build()
	got, err := NewService(Options{}).Extract(context.Background(), db, "a.txt", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
