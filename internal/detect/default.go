package detect

import (
	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/scanner"
)

// Default handles unrecognized agents: only generic [y/n] and error
// lines are detected, plus the supplemented question-mark heuristic.
type Default struct{}

func (Default) Classify(frame scanner.ScannedFrame, prior *agentstate.AgentRecord, busy bool) agentstate.DetectionResult {
	if matched, ok := yesNoBracketPresent(frame.Lines); ok {
		return agentstate.DetectionResult{
			Status: agentstate.Awaiting(agentstate.ApprovalYesNo, detailsAboveOrLast(frame.Lines), nil, false, 0),
			Reason: agentstate.NewReason("yes_no_text_pattern", agentstate.ConfidenceHigh, matched),
			Source: agentstate.SourceCapturePane,
		}
	}
	if r, ok := classifyError(frame, defaultErrorLine); ok {
		return r
	}
	if r, ok := classifyContentSpinner(frame); ok {
		return r
	}
	if r, ok := classifyTitle(frame); ok {
		return r
	}
	if busy {
		return agentstate.DetectionResult{
			Status: agentstate.Processing(""),
			Reason: agentstate.NewReason("process_table_busy", agentstate.ConfidenceLow, "descendant process indicates active work"),
			Source: agentstate.SourceCapturePane,
		}
	}
	if matched, ok := questionMarkHeuristic(frame.Lines); ok {
		return agentstate.DetectionResult{
			Status: agentstate.Awaiting(agentstate.ApprovalOther, matched, nil, false, 0),
			Reason: agentstate.NewReason("trailing_question_mark", agentstate.ConfidenceLow, matched),
			Source: agentstate.SourceCapturePane,
		}
	}
	return agentstate.DetectionResult{
		Status: agentstate.Idle(),
		Reason: agentstate.NewReason("fallback_no_indicator", agentstate.ConfidenceLow, ""),
		Source: agentstate.SourceCapturePane,
	}
}

var defaultErrorLine = errorLinePattern()
