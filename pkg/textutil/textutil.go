// Package textutil provides text measurement and truncation helpers for
// building bounded LLM prompts.
package textutil

import (
	"encoding/xml"
	"strings"
	"unicode/utf8"
)

// TruncationMarker is inserted between the head and tail of truncated content.
const TruncationMarker = "\n\n[... truncated ...]\n\n"

// WordCount returns the number of whitespace-delimited tokens in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// TruncateMiddle bounds text to roughly maxChars characters, keeping the
// head and tail with a marker in between. Manuscript files tend to carry
// their strongest classification signal at chapter openings and closings,
// so the middle is what gets cut.
func TruncateMiddle(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if len(text) <= maxChars {
		return text
	}

	head := maxChars * 2 / 3
	tail := maxChars - head

	front := trimToWordBoundary(trimPartialRune(text[:head], false), false)
	back := trimToWordBoundary(trimPartialRune(text[len(text)-tail:], true), true)
	return front + TruncationMarker + back
}

// trimPartialRune drops the bytes of a multibyte rune split by a byte-offset
// cut. fromStart drops leading continuation bytes, otherwise the trailing
// incomplete sequence.
func trimPartialRune(s string, fromStart bool) string {
	if fromStart {
		for len(s) > 0 {
			r, size := utf8.DecodeRuneInString(s)
			if r != utf8.RuneError || size != 1 {
				break
			}
			s = s[size:]
		}
		return s
	}
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size != 1 {
			break
		}
		s = s[:len(s)-size]
	}
	return s
}

// trimToWordBoundary drops the partial word at the cut edge. fromStart
// trims the leading partial word, otherwise the trailing one.
func trimToWordBoundary(s string, fromStart bool) string {
	if fromStart {
		if i := strings.IndexAny(s, " \t\n"); i >= 0 {
			return strings.TrimLeft(s[i:], " \t\n")
		}
		return s
	}
	if i := strings.LastIndexAny(s, " \t\n"); i > len(s)/2 {
		return strings.TrimRight(s[:i], " \t\n")
	}
	return s
}

// EscapeXML replaces characters with special meaning in XML to prevent
// prompt injection when embedding file content in XML-delimited templates.
func EscapeXML(s string) string {
	var buf strings.Builder
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		// EscapeText only fails on invalid UTF-8; return original on error.
		return s
	}
	return buf.String()
}
