package detect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/scanner"
)

func TestProceedPrompt(t *testing.T) {
	frame := scanner.Scan("", []string{
		"Do you want to make this edit?",
		"1. Yes",
		"2. Yes, and don't ask again",
		"3. No",
		"❯ 1",
	})
	result := ClaudeCode{}.Classify(frame, nil, false)
	require.Equal(t, agentstate.StatusAwaitingApproval, result.Status.Kind)
	require.Equal(t, agentstate.ApprovalFileEdit, result.Status.ApprovalKind)
	require.Equal(t, []string{"Yes", "Yes, and don't ask again", "No"}, result.Status.Choices)
	require.Equal(t, 1, result.Status.CursorPosition)
	require.False(t, result.Status.MultiSelect)
	require.Equal(t, "proceed_prompt", result.Reason.Rule)
	require.Equal(t, agentstate.ConfidenceHigh, result.Reason.Confidence)
}

func TestBrailleTitleSpinner(t *testing.T) {
	frame := scanner.Scan("⠋ Spinning… · esc to interrupt", nil)
	result := ClaudeCode{}.Classify(frame, nil, false)
	require.Equal(t, agentstate.StatusProcessing, result.Status.Kind)
	require.Equal(t, "Spinning", result.Status.Activity)
	require.Equal(t, "braille_spinner", result.Reason.Rule)
	require.Equal(t, agentstate.ConfidenceMedium, result.Reason.Confidence)
}

func TestContentCompactingOverridesTitleIdle(t *testing.T) {
	frame := scanner.Scan("✳ my-project", []string{"✶ Compacting… (esc to interrupt)"})
	result := ClaudeCode{}.Classify(frame, nil, false)
	require.Equal(t, agentstate.StatusProcessing, result.Status.Kind)
	require.Equal(t, "Compacting", result.Status.Activity)
}

func TestCheckboxMultiSelect(t *testing.T) {
	frame := scanner.Scan("", []string{
		"Select features:",
		"❯ [ ] Auth",
		"  [x] Dark mode",
		"  [ ] Tests",
		"(enter to toggle, right+enter to submit)",
	})
	result := ClaudeCode{}.Classify(frame, nil, false)
	require.Equal(t, agentstate.StatusAwaitingApproval, result.Status.Kind)
	require.Equal(t, agentstate.ApprovalUserQuestion, result.Status.ApprovalKind)
	require.True(t, result.Status.MultiSelect)
	require.Equal(t, []string{"Auth", "Dark mode", "Tests"}, result.Status.Choices)
	require.Equal(t, 1, result.Status.CursorPosition)
}

func TestYesNoBracketWholeToken(t *testing.T) {
	frame := scanner.Scan("", []string{"Run this command? [y/n]"})
	result := Default{}.Classify(frame, nil, false)
	require.Equal(t, agentstate.StatusAwaitingApproval, result.Status.Kind)
	require.Equal(t, agentstate.ApprovalYesNo, result.Status.ApprovalKind)

	noMatch := scanner.Scan("", []string{"Run this command? [yn]"})
	result2 := Default{}.Classify(noMatch, nil, false)
	require.NotEqual(t, agentstate.StatusAwaitingApproval, result2.Status.Kind)
}

func TestLoneCursorGlyphIsNotAPrompt(t *testing.T) {
	frame := scanner.Scan("", []string{"some output", "❯"})
	result := ClaudeCode{}.Classify(frame, nil, false)
	require.NotEqual(t, agentstate.StatusAwaitingApproval, result.Status.Kind)
}

func TestFallbackIdle(t *testing.T) {
	frame := scanner.Scan("my-project", []string{"plain output"})
	result := ClaudeCode{}.Classify(frame, nil, false)
	require.Equal(t, agentstate.StatusIdle, result.Status.Kind)
	require.Equal(t, "fallback_no_indicator", result.Reason.Rule)
	require.Equal(t, agentstate.ConfidenceLow, result.Reason.Confidence)
}

func TestDetectorIdempotent(t *testing.T) {
	frame := scanner.Scan("⠋ Spinning… · esc to interrupt", nil)
	a := ClaudeCode{}.Classify(frame, nil, false)
	b := ClaudeCode{}.Classify(frame, nil, false)
	require.Equal(t, a, b)
}

func TestKindFromCmdline(t *testing.T) {
	require.Equal(t, agentstate.AgentClaudeCode, KindFromCmdline("tmai wrap claude --resume"))
	require.Equal(t, agentstate.AgentCodex, KindFromCmdline("codex"))
	require.Equal(t, agentstate.AgentUnknown, KindFromCmdline("zsh"))
}

func TestDefaultBusyHintPromotesToProcessingWithoutSpinner(t *testing.T) {
	frame := scanner.Scan("my-project", []string{"plain output"})
	result := Default{}.Classify(frame, nil, true)
	require.Equal(t, agentstate.StatusProcessing, result.Status.Kind)
	require.Equal(t, "process_table_busy", result.Reason.Rule)
	require.Equal(t, agentstate.ConfidenceLow, result.Reason.Confidence)
}

func TestDefaultBusyHintNeverOverridesContentSpinner(t *testing.T) {
	frame := scanner.Scan("✳ my-project", []string{"✶ Thinking… (esc to interrupt)"})
	result := Default{}.Classify(frame, nil, true)
	require.Equal(t, agentstate.StatusProcessing, result.Status.Kind)
	require.Equal(t, "content_spinner", result.Reason.Rule)
}

func TestDefaultBusyHintTakesPriorityOverQuestionMark(t *testing.T) {
	frame := scanner.Scan("my-project", []string{"Do you want to continue?"})
	result := Default{}.Classify(frame, nil, true)
	require.Equal(t, agentstate.StatusProcessing, result.Status.Kind)
	require.Equal(t, "process_table_busy", result.Reason.Rule)
}

func TestDefaultQuestionMarkStillFiresWithoutBusyHint(t *testing.T) {
	frame := scanner.Scan("my-project", []string{"Do you want to continue?"})
	result := Default{}.Classify(frame, nil, false)
	require.Equal(t, agentstate.StatusAwaitingApproval, result.Status.Kind)
	require.Equal(t, "trailing_question_mark", result.Reason.Rule)
}
