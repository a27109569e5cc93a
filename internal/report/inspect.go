package report

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"sort"
	"unicode/utf8"

	"github.com/tmcallister/crashkit/internal/core/domain"
)

const truncationMarker = " ..."

// safeRender converts an arbitrary value to bounded text and never panics.
// Error and Stringer implementations are preferred over %v, and a panicking
// implementation yields a fixed placeholder instead of propagating.
func safeRender(v any, max int) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("<unrepresentable: %T>", v)
		}
	}()

	switch t := v.(type) {
	case nil:
		s = "<nil>"
	case error:
		s = t.Error()
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprintf("%v", v)
	}

	if prefix := sizeHint(v); prefix != "" {
		s = prefix + s
	}
	return truncate(s, max)
}

// sizeHint prepends the element count for container values, so a truncated
// rendering of a large slice still tells the reader how big it was.
func sizeHint(v any) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return fmt.Sprintf("len %d: ", rv.Len())
	}
	return ""
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	// Back off to a rune boundary so the cut never leaves invalid UTF-8.
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fileCache reads source files at most once per report build.
type fileCache struct {
	lines map[string][]string
}

func newFileCache() *fileCache {
	return &fileCache{lines: make(map[string][]string)}
}

// context returns the source window around line, clamped to file bounds.
// A missing or unreadable file yields an empty window, not an error.
func (c *fileCache) context(path string, line, before, after int) []domain.SourceLine {
	lines, ok := c.lines[path]
	if !ok {
		lines = readLines(path)
		c.lines[path] = lines
	}
	if len(lines) == 0 || line < 1 || line > len(lines) {
		return nil
	}

	start := line - before
	if start < 1 {
		start = 1
	}
	end := line + after
	if end > len(lines) {
		end = len(lines)
	}

	out := make([]domain.SourceLine, 0, end-start+1)
	for n := start; n <= end; n++ {
		out = append(out, domain.SourceLine{Number: n, Text: lines[n-1]})
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}
