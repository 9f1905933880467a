package monitor

import "strings"

// newSlice returns the portion of curr that was not part of prev. When prev
// appears anywhere inside curr the tail after it is new output; when the
// screen scrolled or cleared so prev is gone entirely, the whole capture
// counts as new.
func newSlice(prev, curr string) string {
	if prev == "" {
		return curr
	}
	if i := strings.Index(curr, prev); i >= 0 {
		return curr[i+len(prev):]
	}
	return curr
}

// lastLines returns the final n lines of text, or all of it when shorter.
func lastLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
