package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trust-delta/tmai/internal/agentstate"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func TestLoggerWritesNdjsonLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit", "detection.ndjson")
	l, err := New(path, 0, nil)
	require.NoError(t, err)

	l.Log(agentstate.AuditEvent{Event: agentstate.EventAgentAppeared, PaneKey: "p1"})
	l.Log(agentstate.AuditEvent{Event: agentstate.EventAgentDisappeared, PaneKey: "p1"})
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	var e1 agentstate.AuditEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e1))
	require.Equal(t, agentstate.EventAgentAppeared, e1.Event)
}

func TestLoggerRotatesAtSizeThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "detection.ndjson")

	l, err := New(path, 80, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		l.Log(agentstate.AuditEvent{Event: agentstate.EventStateChanged, PaneKey: agentstate.PaneKey("pane-with-a-longer-key")})
	}
	require.NoError(t, l.Close())

	_, err = os.Stat(path + ".1")
	require.NoError(t, err, "expected rotation to produce a .1 generation")
	_, err = os.Stat(path)
	require.NoError(t, err, "current log file must still exist after rotation")
}

func TestLoggerReopensExistingFileAndAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "detection.ndjson")

	l1, err := New(path, 0, nil)
	require.NoError(t, err)
	l1.Log(agentstate.AuditEvent{Event: agentstate.EventAgentAppeared, PaneKey: "p1"})
	require.NoError(t, l1.Close())

	l2, err := New(path, 0, nil)
	require.NoError(t, err)
	l2.Log(agentstate.AuditEvent{Event: agentstate.EventAgentDisappeared, PaneKey: "p1"})
	require.NoError(t, l2.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
}

func TestLoggerDropsOldestOnOverflowWithoutBlocking(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "detection.ndjson")
	l, err := New(path, 0, nil)
	require.NoError(t, err)
	defer l.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultQueueSize*4; i++ {
			l.Log(agentstate.AuditEvent{Event: agentstate.EventStateChanged, PaneKey: "p1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Log() blocked producers under overflow")
	}
}
