package detect

import (
	"regexp"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/scanner"
)

// Gemini follows the canonical ladder with its own error-line glyph.
type Gemini struct{}

var geminiErrorLine = regexp.MustCompile(`(?i)^\s*(error|✗|exception)\b.*`)

func (Gemini) Classify(frame scanner.ScannedFrame, prior *agentstate.AgentRecord, busy bool) agentstate.DetectionResult {
	if r, ok := classifyApproval(frame); ok {
		return r
	}
	if r, ok := classifyError(frame, geminiErrorLine); ok {
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
