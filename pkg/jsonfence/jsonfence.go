// Package jsonfence strips Markdown code-fence wrappers from LLM responses
// before JSON decoding. Models asked for "only valid JSON" still routinely
// wrap their output in ```json fences.
package jsonfence

import "strings"

// Strip removes a leading/trailing Markdown code fence from s, if present,
// and trims surrounding whitespace. Content without fences passes through
// unchanged apart from trimming.
func Strip(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Drop the opening fence line (``` or ```json etc).
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return strings.TrimPrefix(s, "```")
	}

	// Drop the closing fence, which may or may not end the string.
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
