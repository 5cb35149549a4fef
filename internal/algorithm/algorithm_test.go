package algorithm

import (
	"bytes"
	"errors"
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	cserrors "github.com/standardbeagle/codesearch/internal/errors"
	"github.com/standardbeagle/codesearch/internal/progress"
	"github.com/standardbeagle/codesearch/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustCompile(t *testing.T, opts Options) Algorithm {
	t.Helper()
	alg, err := Compile(opts)
	require.NoError(t, err)
	return alg
}

func scanText(t *testing.T, opts Options, text string) []int {
	t.Helper()
	alg := mustCompile(t, opts)
	spans := ScanAll(alg, []byte(text), 0, len(text), 0, progress.New(0))
	return positions(spans)
}

func positions(spans []types.FilePositionSpan) []int {
	var out []int
	for _, s := range spans {
		out = append(out, int(s.Position))
	}
	return out
}

func TestCompile_SelectsVariant(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		kind Kind
	}{
		{"ascii", Options{Pattern: "foo", MatchCase: true}, KindASCIILiteral},
		{"ascii_fold", Options{Pattern: "foo"}, KindCaseFold},
		{"unicode", Options{Pattern: "größe", MatchCase: true}, KindUnicodeLiteral},
		{"unicode_fold", Options{Pattern: "größe"}, KindRegex},
		{"regex", Options{Pattern: "f.o", Regex: true}, KindRegex},
		{"whole_word", Options{Pattern: "foo", WholeWord: true}, KindWholeWord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, mustCompile(t, tt.opts).Kind())
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile(Options{})
	require.Error(t, err)
	assert.True(t, cserrors.IsInvalidQuery(err))
	assert.True(t, errors.Is(err, cserrors.ErrEmptyPattern))

	_, err = Compile(Options{Pattern: "foo(", Regex: true})
	require.Error(t, err)
	assert.True(t, cserrors.IsPatternError(err))
}

func TestASCIILiteral(t *testing.T) {
	assert.Equal(t, []int{0, 8}, scanText(t, Options{Pattern: "foo", MatchCase: true}, "foo bar foo"))
	assert.Empty(t, scanText(t, Options{Pattern: "Foo", MatchCase: true}, "foo bar foo"))
	assert.Equal(t, []int{0, 2}, scanText(t, Options{Pattern: "aa", MatchCase: true}, "aaaaa"), "matches do not overlap")
	assert.Empty(t, scanText(t, Options{Pattern: "longer than text", MatchCase: true}, "short"))
}

func TestCaseFold(t *testing.T) {
	assert.Equal(t, []int{0, 4, 8}, scanText(t, Options{Pattern: "FoO"}, "foo FOO fOo"))
	assert.Equal(t, []int{1}, scanText(t, Options{Pattern: "a[b"}, "xA[Bx"))
}

func TestCaseFold_MatchAcrossBlocks(t *testing.T) {
	alg := mustCompile(t, Options{Pattern: "needle"})
	block := alg.BufferSize()

	text := make([]byte, 3*block)
	for i := range text {
		text[i] = '.'
	}
	want := []int{block - 3, 2*block - 1, 3*block - 6}
	for _, at := range want {
		copy(text[at:], "NeEdLe")
	}

	spans := ScanAll(alg, text, 0, len(text), 0, progress.New(0))
	assert.Equal(t, want, positions(spans))
}

func TestUnicodeLiteral(t *testing.T) {
	text := "die Größe, GRÖSSE, größe"
	got := scanText(t, Options{Pattern: "größe", MatchCase: true}, text)
	assert.Equal(t, []int{strings.Index(text, "größe")}, got)
}

func TestUnicodeCaseFold(t *testing.T) {
	text := "ÉCOLE école"
	assert.Equal(t, []int{0, len("ÉCOLE ")}, scanText(t, Options{Pattern: "école"}, text))
}

func TestWholeWord(t *testing.T) {
	text := "foo foobar barfoo _foo foo.bar (foo)"
	got := scanText(t, Options{Pattern: "foo", MatchCase: true, WholeWord: true}, text)
	assert.Equal(t, []int{0, 23, 32}, got)

	// Non-word pattern edges do not need a boundary.
	got = scanText(t, Options{Pattern: "->x", MatchCase: true, WholeWord: true}, "a->x a->xy")
	assert.Equal(t, []int{1}, got)

	// Unicode letters count as word characters.
	got = scanText(t, Options{Pattern: "na", MatchCase: true, WholeWord: true}, "éna na")
	assert.Equal(t, []int{len("éna ")}, got)
}

func TestWholeWord_LooksOutsideWindow(t *testing.T) {
	alg := mustCompile(t, Options{Pattern: "foo", MatchCase: true, WholeWord: true})
	text := []byte("xfoo foo")
	// Window starts at the "f": the preceding "x" still disqualifies it.
	spans := ScanAll(alg, text, 1, len(text)-1, 0, progress.New(0))
	assert.Equal(t, []int{5}, positions(spans))
}

func TestRegex(t *testing.T) {
	text := "alpha\nbeta\ngamma"
	assert.Equal(t, []int{0, 6, 11}, scanText(t, Options{Pattern: `^\w+$`, Regex: true}, text))
	assert.Equal(t, []int{6}, scanText(t, Options{Pattern: "BETA", Regex: true}, text))
	assert.Empty(t, scanText(t, Options{Pattern: "BETA", Regex: true, MatchCase: true}, text))
}

func TestRegex_SkipsEmptyMatches(t *testing.T) {
	got := scanText(t, Options{Pattern: "x*", Regex: true, MatchCase: true}, "axxbx")
	assert.Equal(t, []int{1, 4}, got)
}

func TestScanAll_WindowAndBase(t *testing.T) {
	alg := mustCompile(t, Options{Pattern: "abc", MatchCase: true})
	text := []byte("abcabcabc")

	// Window [2, 5): the match at 3 starts inside, the one at 0 does not.
	// The match at 3 extends to 6, past the window end.
	spans := ScanAll(alg, text, 2, 3, 100, progress.New(0))
	require.Len(t, spans, 1)
	assert.Equal(t, types.FilePositionSpan{Position: 103, Length: 3}, spans[0])
}

// Splitting the buffer into adjacent windows finds each literal match once.
func TestScanAll_AdjacentWindows(t *testing.T) {
	for _, opts := range []Options{
		{Pattern: "abab", MatchCase: true},
		{Pattern: "ABAB"},
		{Pattern: "abab", MatchCase: true, WholeWord: true},
	} {
		alg := mustCompile(t, opts)
		text := []byte("abab abab xabab abab")
		whole := positions(ScanAll(alg, text, 0, len(text), 0, progress.New(0)))

		for cut := 1; cut < len(text); cut++ {
			left := ScanAll(alg, text, 0, cut, 0, progress.New(0))
			right := ScanAll(alg, text, cut, len(text)-cut, 0, progress.New(0))
			assert.Equal(t, whole, append(positions(left), positions(right)...), "pattern %q cut %d", opts.Pattern, cut)
		}
	}
}

func TestScanAll_StopsAtCap(t *testing.T) {
	alg := mustCompile(t, Options{Pattern: "x", MatchCase: true})
	tracker := progress.New(2)
	spans := ScanAll(alg, []byte("xxxxx"), 0, 5, 0, tracker)
	assert.Len(t, spans, 2)
	assert.Equal(t, 2, tracker.ResultCount())
}

func TestScanAll_StopsWhenCancelled(t *testing.T) {
	for _, opts := range []Options{
		{Pattern: "x", MatchCase: true},
		{Pattern: "x", Regex: true},
		{Pattern: "X"},
	} {
		alg := mustCompile(t, opts)
		tracker := progress.New(0)
		tracker.Cancel()
		spans := ScanAll(alg, []byte("xxxxx"), 0, 5, 0, tracker)
		assert.Len(t, spans, 1, "the match that observed cancellation is kept: %+v", opts)
	}
}

func TestScanner_ReusedAcrossWindows(t *testing.T) {
	alg := mustCompile(t, Options{Pattern: "q", Regex: true})
	s := NewScanner(alg)
	tracker := progress.New(0)

	first := s.ScanAll([]byte("q.q"), 0, 3, 0, tracker)
	second := s.ScanAll([]byte("..q"), 0, 3, 0, tracker)
	assert.Equal(t, []int{0, 2}, positions(first))
	assert.Equal(t, []int{2}, positions(second))
}

// Regex windows see the rune before them and the rest of their last line, so
// splitting a line at any byte neither loses nor invents matches.
func TestScanAll_RegexAdjacentWindows(t *testing.T) {
	text := []byte("foobar xbar\nbar café CAFÉ foobar\nfoobarbar")
	tests := []struct {
		opts      Options
		reference string
	}{
		{Options{Pattern: "foobar", Regex: true}, `(?mi)foobar`},
		{Options{Pattern: `^\w+`, Regex: true}, `(?mi)^\w+`},
		{Options{Pattern: `\bbar\b`, Regex: true}, `(?mi)\bbar\b`},
		{Options{Pattern: `\Bbar`, Regex: true}, `(?mi)\Bbar`},
		{Options{Pattern: `r$`, Regex: true}, `(?mi)r$`},
		{Options{Pattern: "CAFÉ"}, `(?mi)CAFÉ`},
	}

	for _, tt := range tests {
		alg := mustCompile(t, tt.opts)
		var want []int
		for _, loc := range regexp.MustCompile(tt.reference).FindAllIndex(text, -1) {
			want = append(want, loc[0])
		}
		require.NotEmpty(t, want, tt.opts.Pattern)
		assert.Equal(t, want, positions(ScanAll(alg, text, 0, len(text), 0, progress.New(0))), tt.opts.Pattern)

		for cut := 1; cut < len(text); cut++ {
			left := ScanAll(alg, text, 0, cut, 0, progress.New(0))
			right := ScanAll(alg, text, cut, len(text)-cut, 0, progress.New(0))
			assert.Equal(t, want, append(positions(left), positions(right)...), "pattern %q cut %d", tt.opts.Pattern, cut)
		}
	}
}

func TestScanAll_RegexMatchLengthPastWindow(t *testing.T) {
	alg := mustCompile(t, Options{Pattern: `foo\w+`, Regex: true})
	text := []byte("xx foobarbaz yy")

	spans := ScanAll(alg, text, 0, 5, 0, progress.New(0))
	require.Len(t, spans, 1)
	assert.Equal(t, types.FilePositionSpan{Position: 3, Length: 9}, spans[0])

	// a window starting mid-word does not report the tail of that word
	assert.Empty(t, ScanAll(alg, text, 5, 5, 0, progress.New(0)))
	assert.Empty(t, ScanAll(mustCompile(t, Options{Pattern: `^y`, Regex: true}), text, 13, 2, 0, progress.New(0)))
	assert.Empty(t, ScanAll(mustCompile(t, Options{Pattern: `\byy`, Regex: true}), []byte("xyyy"), 2, 2, 0, progress.New(0)))
}

func TestLineHorizon(t *testing.T) {
	text := []byte("abc\ndef\nghi")
	assert.Equal(t, 0, lineHorizon(text, 0))
	assert.Equal(t, 4, lineHorizon(text, 2))
	assert.Equal(t, 4, lineHorizon(text, 4))
	assert.Equal(t, 8, lineHorizon(text, 5))
	assert.Equal(t, len(text), lineHorizon(text, 9))
	assert.Equal(t, len(text), lineHorizon(text, len(text)))

	long := bytes.Repeat([]byte("a"), 2*regexLookahead)
	assert.Equal(t, 10+regexLookahead, lineHorizon(long, 10))
}

// A capped regex scan stops after the first match instead of matching the
// whole window up front.
func TestScanAll_RegexCapDoesNotMatchAhead(t *testing.T) {
	alg := mustCompile(t, Options{Pattern: "ab", Regex: true})
	text := bytes.Repeat([]byte("ab "), 200_000)

	allocs := testing.AllocsPerRun(5, func() {
		spans := ScanAll(alg, text, 0, len(text), 0, progress.New(1))
		if len(spans) != 1 {
			t.Fatalf("got %d spans", len(spans))
		}
	})
	assert.Less(t, allocs, 50.0)
}

// Property: literal scans agree with a naive reference and are deterministic.
func TestProperty_LiteralMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	alphabet := []byte("abAB \n_")

	for iter := 0; iter < 300; iter++ {
		text := randomBytes(rng, alphabet, rng.Intn(300))
		pattern := randomBytes(rng, alphabet[:4], 1+rng.Intn(3))
		matchCase := rng.Intn(2) == 0

		alg := mustCompile(t, Options{Pattern: string(pattern), MatchCase: matchCase})
		got := positions(ScanAll(alg, text, 0, len(text), 0, progress.New(0)))
		again := positions(ScanAll(alg, text, 0, len(text), 0, progress.New(0)))
		assert.Equal(t, got, again)
		assert.Equal(t, naiveIndexAll(text, pattern, matchCase), got, "text %q pattern %q", text, pattern)
	}
}

func randomBytes(rng *rand.Rand, alphabet []byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return b
}

func naiveIndexAll(text, pattern []byte, matchCase bool) []int {
	if !matchCase {
		text = bytes.ToLower(text)
		pattern = bytes.ToLower(pattern)
	}
	var out []int
	for i := 0; i+len(pattern) <= len(text); {
		if bytes.Equal(text[i:i+len(pattern)], pattern) {
			out = append(out, i)
			i += len(pattern)
			continue
		}
		i++
	}
	return out
}

func TestCache(t *testing.T) {
	c := NewCache(2)
	a, err := c.Get(Options{Pattern: "foo"})
	require.NoError(t, err)
	b, err := c.Get(Options{Pattern: "foo"})
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, err = c.Get(Options{Pattern: "(", Regex: true})
	assert.Error(t, err)

	_, _ = c.Get(Options{Pattern: "bar"})
	_, _ = c.Get(Options{Pattern: "baz"})
	assert.Equal(t, 2, c.Len())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(4), misses)
}
