// Package scanner implements component A: tokenizing a decoded terminal
// text slab into a ScannedFrame that detectors can classify.
package scanner

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// ModeIcon is the agent mode indicator parsed from a pane title.
type ModeIcon int

const (
	ModeNone ModeIcon = iota
	ModePlan
	ModeDelegate
	ModeAutoApprove
)

func (m ModeIcon) String() string {
	switch m {
	case ModePlan:
		return "plan"
	case ModeDelegate:
		return "delegate"
	case ModeAutoApprove:
		return "auto_approve"
	default:
		return "none"
	}
}

// SpinnerHit records where a spinner glyph was found and the verb it
// appears to be narrating.
type SpinnerHit struct {
	Line int    // index into ScannedFrame.Lines, or -1 if found in Title
	Verb string // the word immediately following the glyph, if any
	Glyph string
}

// ScannedFrame is component A's output: a slab of terminal text reduced
// to the fields the detectors need.
type ScannedFrame struct {
	Title      string
	Lines      []string
	CursorLine int // -1 when unknown
	ModeIcon   ModeIcon
	SpinnerHit *SpinnerHit
}

const (
	brailleLow  = '⠀'
	brailleHigh = '⣿'
	sparkleIdle = '✳' // ✳
	cursorGlyph = '❯' // ❯
)

var asteriskSpinnerGlyphs = []rune{'✢', '✽', '✶', '✻', '·', '✳', '*'}

// spinnerLinePattern matches "<glyph> Verb…" possibly followed by a
// parenthetical with a duration or "esc to interrupt" style suffix.
var spinnerLinePattern = regexp.MustCompile(`^\s*([✢✽✶✻·✳*])\s+([A-Za-z][A-Za-z ]*?)…?\s*(?:\(|$)`)

var brailleLinePattern = regexp.MustCompile(`^\s*([\x{2800}-\x{28FF}])\s+([A-Za-z][A-Za-z ]*?)…?\s*(?:\(|$)`)

// Scan builds a ScannedFrame from already-decoded plain text (colors
// discarded) and a separately captured title string.
func Scan(title string, rawLines []string) ScannedFrame {
	lines := trimTrailingBlank(rawLines)

	frame := ScannedFrame{
		Title:      title,
		Lines:      lines,
		CursorLine: findCursorLine(lines),
		ModeIcon:   parseModeIcon(title),
	}
	frame.SpinnerHit = findSpinnerHit(title, lines)
	return frame
}

// trimTrailingBlank removes trailing empty (or whitespace-only) lines,
// per spec §4.A: terminal clears otherwise leave a blank bottom that
// would break cursor/last-line heuristics.
func trimTrailingBlank(lines []string) []string {
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return append([]string(nil), lines[:end]...)
}

func findCursorLine(lines []string) int {
	for i, l := range lines {
		trimmed := strings.TrimLeft(l, " \t")
		if strings.HasPrefix(trimmed, string(cursorGlyph)) {
			return i
		}
	}
	return -1
}

func parseModeIcon(title string) ModeIcon {
	switch {
	case strings.Contains(title, "⏸"):
		return ModePlan
	case strings.Contains(title, "⇢"):
		return ModeDelegate
	case strings.Contains(title, "⏵⏵"):
		return ModeAutoApprove
	default:
		return ModeNone
	}
}

// findSpinnerHit looks for a content-line spinner first (it must win
// over a title-only indicator per spec §4.B step 4), then a title
// spinner.
func findSpinnerHit(title string, lines []string) *SpinnerHit {
	for i, l := range lines {
		if m := spinnerLinePattern.FindStringSubmatch(l); m != nil {
			return &SpinnerHit{Line: i, Glyph: m[1], Verb: strings.TrimSpace(m[2])}
		}
		if m := brailleLinePattern.FindStringSubmatch(l); m != nil {
			return &SpinnerHit{Line: i, Glyph: m[1], Verb: strings.TrimSpace(m[2])}
		}
	}
	if m := spinnerLinePattern.FindStringSubmatch(title); m != nil {
		return &SpinnerHit{Line: -1, Glyph: m[1], Verb: strings.TrimSpace(m[2])}
	}
	if m := brailleLinePattern.FindStringSubmatch(title); m != nil {
		return &SpinnerHit{Line: -1, Glyph: m[1], Verb: strings.TrimSpace(m[2])}
	}
	return nil
}

// TitleIsSparkleIdle reports whether the title's leading rune is the
// ✳ idle glyph (U+2733), per spec §4.B step 4 / agent-detect.go.
func TitleIsSparkleIdle(title string) bool {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(title))
	return r == sparkleIdle
}

// TitleIsBrailleSpinner reports whether the title's leading rune falls
// in the Braille spinner range U+2800-U+28FF.
func TitleIsBrailleSpinner(title string) bool {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(title))
	return r >= brailleLow && r <= brailleHigh
}
