// Package debug contains helpers producing human readable dumps of internal
// structures for troubleshooting.
package debug

import (
	"fmt"
	"strconv"
	"strings"
)

const indent = "  "

// TreeWriter accumulates indented lines of text.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

// Line writes formatted line at the given nesting depth.
func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.pad(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// Pair writes "key: value" with value quoted so that empty and whitespace
// only values remain visible.
func (tw TreeWriter) Pair(depth int, key, value string) {
	tw.pad(depth)
	tw.w.WriteString(key)
	tw.w.WriteString(": ")
	tw.w.WriteString(quote(value))
	tw.w.WriteByte('\n')
}

// List writes label followed by quoted items on a single line.
func (tw TreeWriter) List(depth int, label string, items []string) {
	tw.pad(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": [")
	for i, item := range items {
		if i > 0 {
			tw.w.WriteString(", ")
		}
		tw.w.WriteString(strconv.Quote(item))
	}
	tw.w.WriteString("]\n")
}

func (tw TreeWriter) pad(depth int) {
	for range depth {
		tw.w.WriteString(indent)
	}
}

func quote(raw string) string {
	if raw == "" {
		return `""`
	}
	if strings.TrimSpace(raw) != raw || strings.ContainsAny(raw, "\n\t\"") {
		return strconv.Quote(raw)
	}
	return raw
}
