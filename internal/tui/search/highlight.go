package search

import (
	"slices"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const (
	// black on yellow
	matchStartSeq = "\x1b[30;43m"
	matchEndSeq   = "\x1b[0m"
)

// Highlighter applies search highlights to text.
type Highlighter struct{}

// NewHighlighter creates a new highlighter.
func NewHighlighter() *Highlighter {
	return &Highlighter{}
}

// HighlightLines returns lines with every case-insensitive occurrence of
// query highlighted. Matching lines lose their own styling; other lines
// are returned unchanged.
func (h *Highlighter) HighlightLines(lines []string, query string) []string {
	if len(lines) == 0 || query == "" {
		return lines
	}
	result := make([]string, len(lines))
	for i, line := range lines {
		plain := ansi.Strip(line)
		ranges := findQueryRanges(plain, query)
		if len(ranges) == 0 {
			result[i] = line
			continue
		}
		result[i] = applyRangeHighlight(plain, ranges)
	}
	return result
}

// RuneRange represents a range of runes in a string.
type RuneRange struct {
	Start int
	End   int
}

// findQueryRanges finds all occurrences of query in plain (case-insensitive).
func findQueryRanges(plain, query string) []RuneRange {
	if plain == "" || query == "" {
		return nil
	}
	lowerRunes := []rune(strings.ToLower(plain))
	queryRunes := []rune(strings.ToLower(query))
	if len(queryRunes) == 0 || len(queryRunes) > len(lowerRunes) {
		return nil
	}

	var ranges []RuneRange
	for i := 0; i <= len(lowerRunes)-len(queryRunes); i++ {
		if slices.Equal(lowerRunes[i:i+len(queryRunes)], queryRunes) {
			ranges = append(ranges, RuneRange{Start: i, End: i + len(queryRunes)})
		}
	}
	return mergeRanges(ranges)
}

// mergeRanges merges overlapping or adjacent ranges. ranges are sorted by
// Start.
func mergeRanges(ranges []RuneRange) []RuneRange {
	if len(ranges) <= 1 {
		return ranges
	}
	merged := make([]RuneRange, 0, len(ranges))
	cur := ranges[0]
	for _, r := range ranges[1:] {
		if r.Start <= cur.End {
			cur.End = max(cur.End, r.End)
			continue
		}
		merged = append(merged, cur)
		cur = r
	}
	return append(merged, cur)
}

func applyRangeHighlight(plain string, ranges []RuneRange) string {
	runes := []rune(plain)
	var b strings.Builder
	prev := 0
	for _, r := range ranges {
		b.WriteString(string(runes[prev:r.Start]))
		b.WriteString(matchStartSeq)
		b.WriteString(string(runes[r.Start:r.End]))
		b.WriteString(matchEndSeq)
		prev = r.End
	}
	b.WriteString(string(runes[prev:]))
	return b.String()
}
