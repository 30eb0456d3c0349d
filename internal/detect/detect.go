// Package detect implements component B: per-agent detectors that map
// scanner.ScannedFrame output to a classified agentstate.DetectionResult.
package detect

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/scanner"
)

// Detector is polymorphic over agent kind; each arm is pure of state.
// busy is the supplemented PID-tree signal (SPEC_FULL.md's "Supplemented
// features"): whether the pane's process tree has a descendant that
// indicates active work. Only the Default arm consults it.
type Detector interface {
	Classify(frame scanner.ScannedFrame, prior *agentstate.AgentRecord, busy bool) agentstate.DetectionResult
}

// For dispatches by the detected agent kind, tolerating the
// "tmai wrap <agent>" command-line form via word-boundary matching.
func For(kind agentstate.AgentKind) Detector {
	switch kind {
	case agentstate.AgentClaudeCode:
		return ClaudeCode{}
	case agentstate.AgentCodex:
		return Codex{}
	case agentstate.AgentGemini:
		return Gemini{}
	default:
		return Default{}
	}
}

var cmdlineWords = regexp.MustCompile(`\b\w[\w-]*\b`)

// KindFromCmdline derives an AgentKind from a command line, tolerating
// "tmai wrap claude --foo" and plain "claude" invocations alike.
func KindFromCmdline(cmdline string) agentstate.AgentKind {
	words := cmdlineWords.FindAllString(strings.ToLower(cmdline), -1)
	for _, w := range words {
		switch w {
		case "claude":
			return agentstate.AgentClaudeCode
		case "codex":
			return agentstate.AgentCodex
		case "gemini":
			return agentstate.AgentGemini
		case "opencode":
			return agentstate.AgentOpenCode
		}
	}
	return agentstate.AgentUnknown
}

// --- shared prompt parsing (spec §4.B "Prompt parsing") ---

var numberedLine = regexp.MustCompile(`^\s*❯?\s*(\d+)[.)]\s+(.*\S)\s*$`)

// numberedChoices scans contiguous numbered lines starting at `from`
// and returns the parsed choice text, the cursor position (1-based,
// defaulting to 1) and the index one past the last numbered line.
func numberedChoices(lines []string, from int) (choices []string, cursor int, end int) {
	cursor = 1
	i := from
	for ; i < len(lines); i++ {
		m := numberedLine.FindStringSubmatch(lines[i])
		if m == nil {
			break
		}
		n, _ := strconv.Atoi(m[1])
		choices = append(choices, m[2])
		if strings.Contains(strings.TrimLeft(lines[i], " \t"), string([]rune{'❯'})) {
			cursor = n
		}
	}
	// Some agents print the cursor on its own trailing line ("❯ 1")
	// rather than prefixing the chosen row itself.
	if n, ok := standaloneCursorNumber(lines, i); ok {
		cursor = n
	}
	return choices, cursor, i
}

var standaloneCursorLine = regexp.MustCompile(`^\s*❯\s*(\d+)\s*$`)

func standaloneCursorNumber(lines []string, at int) (int, bool) {
	if at < 0 || at >= len(lines) {
		return 0, false
	}
	m := standaloneCursorLine.FindStringSubmatch(lines[at])
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// detailsAbove returns the nearest non-empty, non-choice line above
// index `at`, used as the prompt's free-text description.
func detailsAbove(lines []string, at int) string {
	for i := at - 1; i >= 0; i-- {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			continue
		}
		if numberedLine.MatchString(lines[i]) {
			continue
		}
		return t
	}
	return ""
}

var checkboxLine = regexp.MustCompile(`(?:\[([ xX×✔])\]|\(([ *])\))\s*(.*\S)\s*$`)

// checkboxChoices scans contiguous checkbox lines, returning labels and
// the cursor position of the ❯-marked row.
func checkboxChoices(lines []string, from int) (choices []string, cursor int, end int) {
	cursor = 1
	i := from
	idx := 0
	for ; i < len(lines); i++ {
		m := checkboxLine.FindStringSubmatch(lines[i])
		if m == nil {
			break
		}
		idx++
		label := m[3]
		choices = append(choices, label)
		if strings.Contains(strings.TrimLeft(lines[i], " \t"), string([]rune{'❯'})) {
			cursor = idx
		}
	}
	return choices, cursor, i
}

func findFirstCheckboxLine(lines []string) int {
	for i, l := range lines {
		if checkboxLine.MatchString(l) {
			return i
		}
	}
	return -1
}

func findFirstNumberedLine(lines []string) int {
	for i, l := range lines {
		if numberedLine.MatchString(l) {
			return i
		}
	}
	return -1
}

var yesNoBracket = regexp.MustCompile(`\[y/n\]`)

// yesNoBracketPresent fires only on the exact whole token "[y/n]"
// (case-insensitive on the letters, spec boundary case "[yn]" must not
// match).
func yesNoBracketPresent(lines []string) (string, bool) {
	for _, l := range lines {
		lower := strings.ToLower(l)
		if yesNoBracket.MatchString(lower) {
			return l, true
		}
	}
	return "", false
}

var yesToken = regexp.MustCompile(`(?m)^\s*Yes\s*$`)
var noToken = regexp.MustCompile(`(?m)^\s*No\s*$`)

// yesNoButtons looks for dedicated "Yes"/"No" rows within 4 lines of
// each other.
func yesNoButtons(lines []string) (matched string, ok bool) {
	yesIdx, noIdx := -1, -1
	for i, l := range lines {
		if yesToken.MatchString(l) && yesIdx == -1 {
			yesIdx = i
		}
		if noToken.MatchString(l) && noIdx == -1 {
			noIdx = i
		}
	}
	if yesIdx == -1 || noIdx == -1 {
		return "", false
	}
	diff := yesIdx - noIdx
	if diff < 0 {
		diff = -diff
	}
	if diff <= 4 {
		return "Yes/No", true
	}
	return "", false
}

// questionMarkHeuristic is the supplemented Default-only rule: the last
// non-empty line ends in '?' and is not a cursor line.
func questionMarkHeuristic(lines []string) (string, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "❯") {
			return "", false
		}
		if strings.HasSuffix(t, "?") {
			return t, true
		}
		return "", false
	}
	return "", false
}
