package engine

import (
	"strings"
	"unicode"
)

// contextWindow extracts a window of up to 2*radius+1 whitespace-delimited
// words centered on the word containing byte offset matchStart. Near the
// edges of the text the window is clipped to what is available.
func contextWindow(text string, matchStart, radius int) string {
	if text == "" {
		return ""
	}

	type span struct {
		start int
		end   int
	}
	var words []span

	inWord := false
	wordStart := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inWord {
				words = append(words, span{wordStart, i})
				inWord = false
			}
			continue
		}
		if !inWord {
			wordStart = i
			inWord = true
		}
	}
	if inWord {
		words = append(words, span{wordStart, len(text)})
	}
	if len(words) == 0 {
		return ""
	}

	// Find the word containing the match offset. A match can only begin
	// inside a word; an out-of-range offset falls back to the last word.
	k := len(words) - 1
	for i, w := range words {
		if matchStart < w.end {
			k = i
			break
		}
	}

	lo := k - radius
	if lo < 0 {
		lo = 0
	}
	hi := k + radius + 1
	if hi > len(words) {
		hi = len(words)
	}

	parts := make([]string, 0, hi-lo)
	for _, w := range words[lo:hi] {
		parts = append(parts, text[w.start:w.end])
	}
	return strings.Join(parts, " ")
}
