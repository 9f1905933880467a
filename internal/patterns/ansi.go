package patterns

import (
	"regexp"
	"strings"
)

var (
	// Cursor-movement sequences become spaces so column alignment survives stripping.
	cursorSeqRe = regexp.MustCompile(`\x1b\[[0-9;]*[ABCDGH]`)
	csiSeqRe    = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)
	oscSeqRe    = regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)
	charsetRe   = regexp.MustCompile(`\x1b[()][0-9A-B]`)
	sgrSeqRe    = regexp.MustCompile(`\x1b\[([0-9;]*)m`)
)

// StripANSI removes escape sequences and non-printing control characters,
// keeping newlines and tabs so line structure is preserved.
func StripANSI(text string) string {
	text = cursorSeqRe.ReplaceAllString(text, " ")
	text = csiSeqRe.ReplaceAllString(text, "")
	text = oscSeqRe.ReplaceAllString(text, "")
	text = charsetRe.ReplaceAllString(text, "")
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// sgrCodes reports the SGR attributes present on a line: dim covers the
// dim/grey family (2, 8, 90), lit covers any other non-reset attribute.
func sgrCodes(line string) (dim bool, lit bool) {
	for _, m := range sgrSeqRe.FindAllStringSubmatch(line, -1) {
		for _, code := range strings.Split(m[1], ";") {
			switch code {
			case "", "0":
			case "2", "8", "90":
				dim = true
			default:
				lit = true
			}
		}
	}
	return dim, lit
}
