package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanTrimsTrailingBlankLines(t *testing.T) {
	frame := Scan("", []string{"hello", "world", "", "   ", ""})
	require.Equal(t, []string{"hello", "world"}, frame.Lines)
}

func TestScanFindsCursorLine(t *testing.T) {
	frame := Scan("", []string{"1. Yes", "2. No", "❯ 1"})
	require.Equal(t, 2, frame.CursorLine)
}

func TestScanNoCursorLine(t *testing.T) {
	frame := Scan("", []string{"just text"})
	require.Equal(t, -1, frame.CursorLine)
}

func TestScanContentSpinnerWinsOverTitleIdle(t *testing.T) {
	frame := Scan("✳ idle-title", []string{"✶ Compacting… (esc to interrupt)"})
	require.NotNil(t, frame.SpinnerHit)
	require.Equal(t, 0, frame.SpinnerHit.Line)
	require.Equal(t, "Compacting", frame.SpinnerHit.Verb)
}

func TestScanTitleBrailleSpinner(t *testing.T) {
	frame := Scan("⠋ Spinning… · esc to interrupt", nil)
	require.NotNil(t, frame.SpinnerHit)
	require.Equal(t, -1, frame.SpinnerHit.Line)
	require.Equal(t, "Spinning", frame.SpinnerHit.Verb)
}

func TestModeIconParsing(t *testing.T) {
	require.Equal(t, ModePlan, parseModeIcon("⏸ my-project"))
	require.Equal(t, ModeDelegate, parseModeIcon("⇢ my-project"))
	require.Equal(t, ModeAutoApprove, parseModeIcon("⏵⏵ my-project"))
	require.Equal(t, ModeNone, parseModeIcon("my-project"))
}

func TestTitleIsSparkleIdle(t *testing.T) {
	require.True(t, TitleIsSparkleIdle("✳ my-project"))
	require.False(t, TitleIsSparkleIdle("⠋ my-project"))
}

func TestTitleIsBrailleSpinner(t *testing.T) {
	require.True(t, TitleIsBrailleSpinner("⠋ my-project"))
	require.False(t, TitleIsBrailleSpinner("✳ my-project"))
}
