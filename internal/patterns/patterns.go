// Package patterns holds the pure predicates and extractors the monitoring
// engine runs over captured pane text. Everything here is deterministic and
// side-effect free; no other package compiles regular expressions.
package patterns

import (
	"regexp"
	"strings"
)

var (
	limitRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)limit reached`),
		regexp.MustCompile(`(?i)usage limit`),
		// Wrapped notices can split "limit" and "resets" across lines.
		regexp.MustCompile(`(?is)limit.*resets`),
	}

	barePromptRe   = regexp.MustCompile(`(?m)^>\s*$`)
	framedPromptRe = regexp.MustCompile(`(?m)^\s*[│┃]\s*>`)
	activePhraseRe = regexp.MustCompile(`(?i)continue this conversation|you can continue|your limit (?:will )?reset`)

	approvalQuestionRe = regexp.MustCompile(`Do you want to (?:make this edit to|create|proceed)`)
	numberedYesRe      = regexp.MustCompile(`^\s*(?:❯\s*)?\d+\.\s+Yes`)
	optionLineRe       = regexp.MustCompile(`^(?:\s*❯)?\s*(\d+)\.\s+(.+?)(?:\s+\(([^)]+)\))?\s*$`)

	waitingInputRe = regexp.MustCompile(`(?m)^>\s*$|^>.*↵\s*send`)
	processingRe   = regexp.MustCompile(`(?i)[◐◑◒◓⠋⠙⠹⠸]|processing|analyzing|running|executing|working|loading`)
)

// LimitPresent reports whether the text carries a usage-limit notice.
func LimitPresent(text string) bool {
	for _, re := range limitRes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ActiveTerminalState reports whether the screen shows an input affordance:
// a bare prompt line, a framed input box, or a continuation phrase.
func ActiveTerminalState(text string) bool {
	if barePromptRe.MatchString(text) || framedPromptRe.MatchString(text) {
		return true
	}
	return activePhraseRe.MatchString(text)
}

// ApprovalDialogPresent reports whether all three parts of a modal approval
// dialog are on screen: the question, a numbered Yes option, and the
// selection marker. The scan short-circuits once all three are seen.
func ApprovalDialogPresent(text string) bool {
	var question, option, marker bool
	for _, line := range strings.Split(text, "\n") {
		if !question && approvalQuestionRe.MatchString(line) {
			question = true
		}
		if !option && numberedYesRe.MatchString(line) {
			option = true
		}
		if !marker && strings.Contains(line, "❯") {
			marker = true
		}
		if question && option && marker {
			return true
		}
	}
	return false
}

// InteractiveApproval distinguishes a live dialog from pasted dialog text in
// a color-annotated capture. A dialog is interactive iff at least one line
// carrying approval content has a non-dim attribute and no dim/grey
// attribute (SGR 2, 8, 90). Captures without any escapes count as
// interactive.
func InteractiveApproval(colored string) bool {
	if !strings.Contains(colored, "\x1b") {
		return true
	}
	for _, line := range strings.Split(colored, "\n") {
		if !approvalContentLine(StripANSI(line)) {
			continue
		}
		dim, lit := sgrCodes(line)
		if lit && !dim {
			return true
		}
	}
	return false
}

func approvalContentLine(plain string) bool {
	return approvalQuestionRe.MatchString(plain) ||
		optionLineRe.MatchString(plain) ||
		strings.Contains(plain, "❯")
}

// WaitingForInput reports whether the pane shows an empty prompt or the
// "↵ send" input hint.
func WaitingForInput(text string) bool {
	return waitingInputRe.MatchString(text)
}

// NotProcessing checks only the last non-empty line for spinner glyphs and
// busy words. Deliberately a last-line heuristic, not an all-lines one.
func NotProcessing(text string) bool {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		return !processingRe.MatchString(line)
	}
	return true
}
