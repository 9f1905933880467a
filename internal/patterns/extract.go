package patterns

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	resetTimeRe = regexp.MustCompile(`(?i)(?:resets at|resets|available again at|ready at)\s+(\d{1,2}(?::\d{2})?\s*(?:am|pm)?)`)
	clockTimeRe = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*$`)

	boxChromeRe    = regexp.MustCompile(`[│┃║╭╮╰╯┌┐└┘├┤─━═]`)
	editTargetRe   = regexp.MustCompile(`make this edit to\s+([^\s?]+)`)
	createTargetRe = regexp.MustCompile(`create\s+([^\s?]+)`)
	isoDateRe      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// ExtractResetTime returns the first reset-time string announced in the
// text, e.g. "3:45pm" from "Your limit resets at 3:45pm".
func ExtractResetTime(text string) (string, bool) {
	m := resetTimeRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// ParseClockTime parses "H", "H:MM", optionally suffixed am/pm, into a
// 24-hour clock. pm adds 12 unless the hour is 12; 12am maps to 0. Hours
// above 23 and minutes above 59 are rejected.
func ParseClockTime(s string) (hour, minute int, ok bool) {
	m := clockTimeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

type ApprovalOption struct {
	Number   int
	Text     string
	Shortcut string
}

type ApprovalInfo struct {
	Tool     string
	Action   string
	Question string
	Options  []ApprovalOption
}

// ExtractApprovalInfo pulls the question, the numbered options, and a
// tool/action classification out of an approval dialog capture. Box-drawing
// chrome and escape sequences are stripped before matching.
func ExtractApprovalInfo(text string) ApprovalInfo {
	deboxed := Debox(text)
	lines := strings.Split(deboxed, "\n")

	info := ApprovalInfo{Tool: "Tool", Action: "Proceed with operation"}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if info.Question == "" && approvalQuestionRe.MatchString(trimmed) {
			info.Question = trimmed
			continue
		}
		if m := optionLineRe.FindStringSubmatch(trimmed); m != nil {
			num, _ := strconv.Atoi(m[1])
			info.Options = append(info.Options, ApprovalOption{
				Number:   num,
				Text:     strings.TrimSpace(m[2]),
				Shortcut: strings.TrimSpace(m[3]),
			})
		}
	}

	switch {
	case editTargetRe.MatchString(info.Question):
		file := strings.TrimSuffix(editTargetRe.FindStringSubmatch(info.Question)[1], "?")
		info.Tool = "Edit"
		info.Action = "Edit " + file
	case createTargetRe.MatchString(info.Question):
		file := strings.TrimSuffix(createTargetRe.FindStringSubmatch(info.Question)[1], "?")
		info.Tool = "Write"
		info.Action = "Write " + file
	case strings.Contains(info.Question, "proceed") && strings.Contains(deboxed, "Bash command"):
		info.Tool = "Bash"
		if cmd := firstCommandLine(lines); cmd != "" {
			info.Action = "Bash: " + cmd
		} else {
			info.Action = "Bash command"
		}
	}
	return info
}

// firstCommandLine finds the command shown under a "Bash command" header:
// the first non-empty line after the header that is neither the question
// nor an option row.
func firstCommandLine(lines []string) string {
	seenHeader := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.Contains(trimmed, "Bash command") {
			seenHeader = true
			continue
		}
		if !seenHeader {
			continue
		}
		if approvalQuestionRe.MatchString(trimmed) {
			return ""
		}
		if optionLineRe.MatchString(trimmed) || strings.Contains(trimmed, "❯") {
			continue
		}
		return trimmed
	}
	return ""
}

// Debox strips escape sequences and box-drawing chrome so option and
// question regexes see bare text.
func Debox(text string) string {
	return boxChromeRe.ReplaceAllString(StripANSI(text), "")
}

// RewriteDatedCommand refreshes the ISO date (YYYY-MM-DD) carried inside a
// staged quota command. Commands without a date get the date appended so
// later rewrites have something to replace.
func RewriteDatedCommand(cmd, date string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return date
	}
	if isoDateRe.MatchString(cmd) {
		return isoDateRe.ReplaceAllString(cmd, date)
	}
	return cmd + " " + date
}
