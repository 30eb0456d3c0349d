package detect

import (
	"regexp"
	"strings"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/scanner"
)

// ClaudeCode is the canonical detector the priority ladder in spec §4.B
// is written against; Codex/Gemini/Default specialize it.
type ClaudeCode struct{}

var claudeErrorLine = regexp.MustCompile(`(?i)^\s*(error|✗|✖)\b.*`)

// errorLinePattern is the generic error-line glyph set used by Default
// for unrecognized agents.
func errorLinePattern() *regexp.Regexp {
	return regexp.MustCompile(`(?i)^\s*(error|✗|✖)\b.*`)
}

func (ClaudeCode) Classify(frame scanner.ScannedFrame, prior *agentstate.AgentRecord, busy bool) agentstate.DetectionResult {
	if r, ok := classifyApproval(frame); ok {
		return r
	}
	if r, ok := classifyError(frame, claudeErrorLine); ok {
		return r
	}
	if r, ok := classifyContentSpinner(frame); ok {
		return r
	}
	if r, ok := classifyTitle(frame); ok {
		return r
	}
	return agentstate.DetectionResult{
		Status: agentstate.Idle(),
		Reason: agentstate.NewReason("fallback_no_indicator", agentstate.ConfidenceLow, ""),
		Source: agentstate.SourceCapturePane,
	}
}

// classifyApproval implements priority-ladder step 1, shared by every
// detector that follows the canonical ladder.
func classifyApproval(frame scanner.ScannedFrame) (agentstate.DetectionResult, bool) {
	lines := frame.Lines

	// Checkbox multi-select takes precedence: it is unambiguous wherever
	// it appears.
	if idx := findFirstCheckboxLine(lines); idx >= 0 {
		choices, cursor, _ := checkboxChoices(lines, idx)
		if len(choices) > 0 {
			details := detailsAbove(lines, idx)
			status := agentstate.Awaiting(agentstate.ApprovalUserQuestion, details, choices, true, cursor)
			return agentstate.DetectionResult{
				Status: status,
				Reason: agentstate.NewReason("checkbox_multi_select", agentstate.ConfidenceHigh, lines[idx]),
				Source: agentstate.SourceCapturePane,
			}, true
		}
	}

	if idx := findFirstNumberedLine(lines); idx >= 0 {
		choices, cursor, end := numberedChoices(lines, idx)
		if len(choices) >= 2 {
			details := detailsAbove(lines, idx)
			hasCursor := frame.CursorLine >= idx && frame.CursorLine <= end
			kind, rule, conf := classifyNumberedPrompt(choices, hasCursor)
			status := agentstate.Awaiting(kind, details, choices, false, cursor)
			return agentstate.DetectionResult{
				Status: status,
				Reason: agentstate.NewReason(rule, conf, strings.Join(choices, " | ")),
				Source: agentstate.SourceCapturePane,
			}, true
		}
	}

	if matched, ok := yesNoButtons(lines); ok {
		status := agentstate.Awaiting(agentstate.ApprovalYesNo, detailsAboveOrLast(lines), nil, false, 0)
		return agentstate.DetectionResult{
			Status: status,
			Reason: agentstate.NewReason("yes_no_buttons", agentstate.ConfidenceHigh, matched),
			Source: agentstate.SourceCapturePane,
		}, true
	}

	if matched, ok := yesNoBracketPresent(lines); ok {
		status := agentstate.Awaiting(agentstate.ApprovalYesNo, detailsAboveOrLast(lines), nil, false, 0)
		return agentstate.DetectionResult{
			Status: status,
			Reason: agentstate.NewReason("yes_no_text_pattern", agentstate.ConfidenceHigh, matched),
			Source: agentstate.SourceCapturePane,
		}, true
	}

	return agentstate.DetectionResult{}, false
}

func detailsAboveOrLast(lines []string) string {
	if d := detailsAbove(lines, len(lines)); d != "" {
		return d
	}
	if len(lines) > 0 {
		return strings.TrimSpace(lines[len(lines)-1])
	}
	return ""
}

// classifyNumberedPrompt decides which approval kind/rule a numbered
// list represents: UserQuestion with a cursor marker, or the narrower
// "proceed_prompt" shape (2-3 items matching Yes/Yes-dont-ask/No).
func classifyNumberedPrompt(choices []string, hasCursor bool) (agentstate.ApprovalKind, string, agentstate.Confidence) {
	if looksLikeProceedPrompt(choices) {
		return agentstate.ApprovalFileEdit, "proceed_prompt", agentstate.ConfidenceHigh
	}
	if hasCursor {
		return agentstate.ApprovalUserQuestion, "user_question_numbered_choices", agentstate.ConfidenceHigh
	}
	return agentstate.ApprovalUserQuestion, "user_question_numbered_choices", agentstate.ConfidenceMedium
}

func looksLikeProceedPrompt(choices []string) bool {
	if len(choices) < 2 || len(choices) > 3 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(choices[0]))
	last := strings.ToLower(strings.TrimSpace(choices[len(choices)-1]))
	return strings.HasPrefix(first, "yes") && strings.HasPrefix(last, "no")
}

// classifyError implements priority-ladder step 2.
func classifyError(frame scanner.ScannedFrame, pattern *regexp.Regexp) (agentstate.DetectionResult, bool) {
	for _, l := range frame.Lines {
		if pattern.MatchString(l) {
			return agentstate.DetectionResult{
				Status: agentstate.ErrorStatus(strings.TrimSpace(l)),
				Reason: agentstate.NewReason("agent_error_line", agentstate.ConfidenceHigh, l),
				Source: agentstate.SourceCapturePane,
			}, true
		}
	}
	return agentstate.DetectionResult{}, false
}

// classifyContentSpinner implements priority-ladder step 3: a
// content-area spinner hit, with past-tense-completion downgrade.
func classifyContentSpinner(frame scanner.ScannedFrame) (agentstate.DetectionResult, bool) {
	hit := frame.SpinnerHit
	if hit == nil || hit.Line < 0 {
		return agentstate.DetectionResult{}, false
	}
	if isPastTenseCompletion(hit.Verb) {
		return agentstate.DetectionResult{
			Status: agentstate.Idle(),
			Reason: agentstate.NewReason("past_tense_completion_downgrade", agentstate.ConfidenceHigh, hit.Verb),
			Source: agentstate.SourceCapturePane,
		}, true
	}
	return agentstate.DetectionResult{
		Status: agentstate.Processing(hit.Verb),
		Reason: agentstate.NewReason("content_spinner", agentstate.ConfidenceMedium, hit.Glyph+" "+hit.Verb),
		Source: agentstate.SourceCapturePane,
	}, true
}

// classifyTitle implements priority-ladder step 4: title-only spinner
// indications, evaluated only once content-area signals are exhausted.
func classifyTitle(frame scanner.ScannedFrame) (agentstate.DetectionResult, bool) {
	if scanner.TitleIsSparkleIdle(frame.Title) {
		return agentstate.DetectionResult{
			Status: agentstate.Idle(),
			Reason: agentstate.NewReason("title_sparkle_idle", agentstate.ConfidenceHigh, frame.Title),
			Source: agentstate.SourceCapturePane,
		}, true
	}
	if scanner.TitleIsBrailleSpinner(frame.Title) {
		activity := ""
		if frame.SpinnerHit != nil && frame.SpinnerHit.Line < 0 {
			activity = frame.SpinnerHit.Verb
		}
		// Scenario fixture in spec §8 scores a bare title-only braille hit
		// as Medium confidence (it carries less context than a content-area
		// spinner, which can see more of the surrounding line).
		return agentstate.DetectionResult{
			Status: agentstate.Processing(activity),
			Reason: agentstate.NewReason("braille_spinner", agentstate.ConfidenceMedium, frame.Title),
			Source: agentstate.SourceCapturePane,
		}, true
	}
	return agentstate.DetectionResult{}, false
}
