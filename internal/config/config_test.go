package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := Default()
	require.Equal(t, 500, opts.PollIntervalMs)
	require.Equal(t, 200*time.Millisecond, opts.OutputSilenceToIdle)
	require.Equal(t, 500*time.Millisecond, opts.ApprovalDebounce)
	require.Equal(t, 300*time.Millisecond, opts.EchoGrace)
	require.Equal(t, 2*time.Second, opts.IpcBackoffCap)
	require.Equal(t, 5*time.Second, opts.UserInputDebounce)
}

func TestResolveLegacyModeEnabledTrue(t *testing.T) {
	opts := Default()
	enabled := true
	opts.AutoApprove.Mode = ""
	opts.AutoApprove.Enabled = &enabled
	opts.ResolveLegacyMode()
	require.Equal(t, ModeAi, opts.AutoApprove.Mode)
}

func TestResolveLegacyModeAbsent(t *testing.T) {
	opts := Default()
	opts.AutoApprove.Mode = ""
	opts.ResolveLegacyMode()
	require.Equal(t, ModeOff, opts.AutoApprove.Mode)
}

func TestResolveLegacyModeDoesNotOverrideExplicitMode(t *testing.T) {
	opts := Default()
	opts.AutoApprove.Mode = ModeHybrid
	opts.ResolveLegacyMode()
	require.Equal(t, ModeHybrid, opts.AutoApprove.Mode)
}

func TestParseOverridesPollInterval(t *testing.T) {
	data := []byte("poll-interval-ms 750\ncapture-lines 50\n")
	opts, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, 750, opts.PollIntervalMs)
	require.Equal(t, 50, opts.CaptureLines)
}

func TestParseMillisecondOverrides(t *testing.T) {
	data := []byte("approval-debounce-ms 750\n")
	opts, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, 750*time.Millisecond, opts.ApprovalDebounce)
}
