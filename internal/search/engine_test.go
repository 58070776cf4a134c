package search

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ltv/internal/encoding"
	"github.com/standardbeagle/ltv/internal/window"
)

func openTemp(t *testing.T, content string) *window.Window {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	w, err := window.Open(path, encoding.UTF8)
	require.NoError(t, err)
	t.Cleanup(func() { w.Release() })
	return w
}

// runCount drains a CountMatches stream and returns the summed total.
func runCount(t *testing.T, w *window.Window, q Query, workers int) int {
	t.Helper()
	e := NewEngine(workers)
	e.SetQuery(q)

	msgs := make(chan Message, 100)
	e.CountMatches(context.Background(), w, msgs)

	total := 0
	for {
		select {
		case m := <-msgs:
			switch msg := m.(type) {
			case CountResult:
				total += msg.Count
			case Done:
				require.Equal(t, KindCount, msg.Kind)
				return total
			case Error:
				t.Fatalf("unexpected error: %s", msg.Message)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("count timed out")
		}
	}
}

// runFetch drains a FetchMatches stream and returns all matches.
func runFetch(t *testing.T, w *window.Window, q Query, start int64, max int) []Result {
	t.Helper()
	e := NewEngine(0)
	e.SetQuery(q)

	msgs := make(chan Message, 100)
	e.FetchMatches(context.Background(), w, start, max, msgs)

	var results []Result
	for {
		select {
		case m := <-msgs:
			switch msg := m.(type) {
			case ChunkResult:
				results = append(results, msg.Matches...)
			case Done:
				require.Equal(t, KindFetch, msg.Kind)
				return results
			case Error:
				t.Fatalf("unexpected error: %s", msg.Message)
			}
		case <-time.After(10 * time.Second):
			t.Fatal("fetch timed out")
		}
	}
}

func TestCountLiteralCaseInsensitive(t *testing.T) {
	w := openTemp(t, "Hello World, Hello Universe")
	total := runCount(t, w, Query{Text: "hello"}, 0)
	assert.Equal(t, 2, total)
}

func TestFetchLiteralCaseInsensitive(t *testing.T) {
	w := openTemp(t, "Hello World, Hello Universe")
	results := runFetch(t, w, Query{Text: "hello"}, 0, 100)
	require.Len(t, results, 2)
	assert.Equal(t, int64(0), results[0].ByteOffset)
	assert.Equal(t, int64(13), results[1].ByteOffset)
	assert.Equal(t, 5, results[0].MatchLen)
}

func TestRegexSearch(t *testing.T) {
	w := openTemp(t, "Item 1, Item 2, Item 3")
	q := Query{Text: `Item (\d)`, UseRegex: true, CaseSensitive: true}

	assert.Equal(t, 3, runCount(t, w, q, 0))

	results := runFetch(t, w, q, 0, 100)
	require.Len(t, results, 3)
	for i, want := range []int64{0, 8, 16} {
		assert.Equal(t, want, results[i].ByteOffset)
		assert.Equal(t, 6, results[i].MatchLen)
	}
}

func TestCaseSensitiveLiteral(t *testing.T) {
	w := openTemp(t, "Hello hello HELLO")
	q := Query{Text: "hello", CaseSensitive: true}
	assert.Equal(t, 1, runCount(t, w, q, 0))
}

func TestLiteralMetacharactersEscaped(t *testing.T) {
	w := openTemp(t, "a+b a+b axb")
	q := Query{Text: "a+b", CaseSensitive: true}
	assert.Equal(t, 2, runCount(t, w, q, 0))
}

func TestEmptyQuery(t *testing.T) {
	w := openTemp(t, "anything")

	assert.Equal(t, 0, runCount(t, w, Query{}, 0))
	assert.Empty(t, runFetch(t, w, Query{}, 0, 100))
}

func TestInvalidRegex(t *testing.T) {
	w := openTemp(t, "anything")
	e := NewEngine(0)
	e.SetQuery(Query{Text: "(unclosed", UseRegex: true})

	msgs := make(chan Message, 10)
	e.CountMatches(context.Background(), w, msgs)

	select {
	case m := <-msgs:
		errMsg, ok := m.(Error)
		require.True(t, ok, "expected Error, got %T", m)
		assert.Contains(t, errMsg.Message, "invalid regex")
	case <-time.After(5 * time.Second):
		t.Fatal("no error message")
	}
}

func TestCountIndependentOfShardCount(t *testing.T) {
	// Matches land all over the file so shard boundaries cut through them
	// for some worker counts.
	var b strings.Builder
	for i := 0; i < 5000; i++ {
		b.WriteString("padding needle more padding\n")
	}
	w := openTemp(t, b.String())

	q := Query{Text: "needle", CaseSensitive: true}
	want := runCount(t, w, q, 1)
	assert.Equal(t, 5000, want)

	for _, workers := range []int{2, 3, 4, 8} {
		assert.Equal(t, want, runCount(t, w, q, workers), "workers=%d", workers)
	}
}

func TestFetchStrictlyIncreasing(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 2000; i++ {
		b.WriteString("x needle y\n")
	}
	w := openTemp(t, b.String())

	results := runFetch(t, w, Query{Text: "needle", CaseSensitive: true}, 0, 5000)
	require.Len(t, results, 2000)
	for i := 1; i < len(results); i++ {
		assert.Greater(t, results[i].ByteOffset, results[i-1].ByteOffset)
	}
}

func TestFetchMaxResults(t *testing.T) {
	w := openTemp(t, strings.Repeat("needle ", 50))
	results := runFetch(t, w, Query{Text: "needle", CaseSensitive: true}, 0, 10)
	assert.Len(t, results, 10)
}

func TestFetchFromOffset(t *testing.T) {
	w := openTemp(t, "needle needle needle")
	results := runFetch(t, w, Query{Text: "needle", CaseSensitive: true}, 7, 10)
	require.Len(t, results, 2)
	assert.Equal(t, int64(7), results[0].ByteOffset)
	assert.Equal(t, int64(14), results[1].ByteOffset)
}

func TestCancelledBeforeStart(t *testing.T) {
	w := openTemp(t, "needle needle")
	e := NewEngine(2)
	e.SetQuery(Query{Text: "needle", CaseSensitive: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msgs := make(chan Message, 100)
	e.CountMatches(ctx, w, msgs)

	// Once cancelled, no Done is ever emitted.
	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case m := <-msgs:
			if _, isDone := m.(Done); isDone {
				t.Fatal("Done emitted after cancellation")
			}
		case <-deadline:
			return
		}
	}
}

func TestWindowSurvivesReleaseDuringSearch(t *testing.T) {
	// The engine retains the window, so the caller can drop its reference
	// while a search is running.
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("needle\n", 1000)), 0o644))
	w, err := window.Open(path, encoding.UTF8)
	require.NoError(t, err)

	e := NewEngine(2)
	e.SetQuery(Query{Text: "needle", CaseSensitive: true})

	msgs := make(chan Message, 100)
	e.CountMatches(context.Background(), w, msgs)
	require.NoError(t, w.Release())

	total := 0
	for {
		m := <-msgs
		switch msg := m.(type) {
		case CountResult:
			total += msg.Count
		case Done:
			assert.Equal(t, 1000, total)
			return
		case Error:
			t.Fatalf("unexpected error: %s", msg.Message)
		}
	}
}
