package agentstate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAgentStatusValidate(t *testing.T) {
	t.Run("idle is always valid", func(t *testing.T) {
		require.NoError(t, Idle().Validate())
	})

	t.Run("cursor position must be in range", func(t *testing.T) {
		s := Awaiting(ApprovalUserQuestion, "pick one", []string{"a", "b"}, false, 3)
		require.ErrorIs(t, s.Validate(), ErrCursorOutOfRange)
	})

	t.Run("choices require UserQuestion kind", func(t *testing.T) {
		s := Awaiting(ApprovalYesNo, "proceed?", []string{"yes", "no"}, false, 1)
		require.ErrorIs(t, s.Validate(), ErrChoicesWithoutQuestion)
	})

	t.Run("multi select needs at least two choices", func(t *testing.T) {
		s := Awaiting(ApprovalUserQuestion, "pick", []string{"only"}, true, 1)
		require.ErrorIs(t, s.Validate(), ErrMultiSelectNeedsChoices)
	})

	t.Run("valid user question", func(t *testing.T) {
		s := Awaiting(ApprovalUserQuestion, "pick", []string{"a", "b", "c"}, true, 2)
		require.NoError(t, s.Validate())
	})
}

func TestReasonTruncation(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	r := NewReason("rule", ConfidenceHigh, string(long))
	require.Len(t, r.MatchedText, maxMatchedTextBytes)
}

func TestStateRecordRoundTrip(t *testing.T) {
	original := Awaiting(ApprovalFileEdit, "edit foo.go", []string{"Yes", "No"}, false, 1)
	rec := FromAgentStatus(original, 100, 50, 1234, PaneKey("s:0.0"))
	back := rec.ToAgentStatus()
	require.Equal(t, original, back)
}
