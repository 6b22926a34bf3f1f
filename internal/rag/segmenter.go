package rag

import (
	"fmt"
	"regexp"
	"strings"
)

// Default windowing parameters. 220/1400 keeps roughly 16% of every segment
// shared with its neighbor so that advice-relevant sentences are not cut at
// a boundary.
const (
	DefaultChunkSize    = 1400
	DefaultChunkOverlap = 220
)

var (
	reCarriageReturn = regexp.MustCompile(`\r`)
	reHorizontalWS   = regexp.MustCompile(`[ \t]+`)
	reBlankLines     = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes extracted text: carriage returns are stripped, runs
// of spaces and tabs collapse to a single space, three or more consecutive
// newlines collapse to exactly two, and the result is trimmed.
func CleanText(s string) string {
	s = reCarriageReturn.ReplaceAllString(s, "")
	s = reHorizontalWS.ReplaceAllString(s, " ")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// SplitText normalizes text and windows it into segments of at most size
// runes, advancing the window start by size-overlap each step. Segments
// that are empty after trimming are discarded. Empty or whitespace-only
// input yields no segments and no error.
//
// The step size must be at least one rune, otherwise the window would never
// advance.
func SplitText(text string, size, overlap int) ([]string, error) {
	if size-overlap < 1 {
		return nil, fmt.Errorf("invalid segmentation parameters: size=%d overlap=%d (size-overlap must be >= 1)", size, overlap)
	}

	cleaned := CleanText(text)
	if cleaned == "" {
		return nil, nil
	}

	runes := []rune(cleaned)
	step := size - overlap

	var out []string
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[i:end]))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out, nil
}
