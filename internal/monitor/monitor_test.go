package monitor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/config"
	"github.com/trust-delta/tmai/internal/tmux"
)

// fakeRunner answers tmux list-panes/capture-pane calls from a fixed
// script, keyed by the pane target passed to capture-pane.
type fakeRunner struct {
	panes    string
	captures map[string]string
	ps       string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if name == "ps" {
		return []byte(f.ps), nil
	}
	for _, a := range args {
		if a == "list-panes" {
			return []byte(f.panes), nil
		}
	}
	for i, a := range args {
		if a == "-t" && i+1 < len(args) {
			return []byte(f.captures[args[i+1]]), nil
		}
	}
	return nil, nil
}

type fakeAudit struct {
	events []agentstate.AuditEvent
}

func (f *fakeAudit) Log(e agentstate.AuditEvent) { f.events = append(f.events, e) }

func newTestMonitor(runner *fakeRunner, cfg *config.Options) *Monitor {
	tc := tmux.NewWithRunner(runner)
	return New(tc, cfg, &fakeAudit{}, nil)
}

func paneLine(target, command, path string, pid int, title string) string {
	return strings.Join([]string{target, command, path, itoa(pid), title}, "\t")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

func TestMonitorEmitsAgentAppearedOnFirstSight(t *testing.T) {
	runner := &fakeRunner{
		panes: paneLine("s:0.0", "claude", "/home", 111, "claude"),
		captures: map[string]string{
			"s:0.0": "Human: hi\n",
		},
	}
	m := newTestMonitor(runner, config.Default())
	ch := m.Subscribe()

	m.tick(context.Background())

	snap := <-ch
	require.Equal(t, int64(1), snap.Revision)
	require.Len(t, snap.Agents, 1)
	require.Equal(t, agentstate.AgentClaudeCode, snap.Agents[0].Kind)

	audit := m.audit.(*fakeAudit)
	require.Len(t, audit.events, 1)
	require.Equal(t, agentstate.EventAgentAppeared, audit.events[0].Event)
}

func TestMonitorEmitsAgentDisappearedWhenPaneGoesAway(t *testing.T) {
	runner := &fakeRunner{
		panes: paneLine("s:0.0", "claude", "/home", 111, "claude"),
		captures: map[string]string{
			"s:0.0": "Human: hi\n",
		},
	}
	m := newTestMonitor(runner, config.Default())
	m.tick(context.Background())

	runner.panes = ""
	audit := m.audit.(*fakeAudit)
	audit.events = nil

	m.tick(context.Background())
	require.Len(t, audit.events, 1)
	require.Equal(t, agentstate.EventAgentDisappeared, audit.events[0].Event)
}

func TestMonitorCaptureApprovalOverridesStaleIpcIdle(t *testing.T) {
	runner := &fakeRunner{
		panes: paneLine("s:0.0", "claude", "/home", 111, "claude"),
		captures: map[string]string{
			"s:0.0": "Do you want to proceed?\n❯ 1. Yes\n  2. No\n",
		},
	}
	cfg := config.Default()
	m := newTestMonitor(runner, cfg)

	pane := agentstate.PaneKey("s:0.0")
	m.mu.Lock()
	m.ipcRegistry[pane] = &ipcState{kind: agentstate.AgentClaudeCode, pid: 111, status: agentstate.Idle()}
	m.mu.Unlock()

	ch := m.Subscribe()
	m.tick(context.Background())
	snap := <-ch
	require.Len(t, snap.Agents, 1)
	require.Equal(t, agentstate.StatusAwaitingApproval, snap.Agents[0].Status.Kind)
}

func TestMonitorPreferNewerOnDisagreementSkipsOverride(t *testing.T) {
	runner := &fakeRunner{
		panes: paneLine("s:0.0", "claude", "/home", 111, "claude"),
		captures: map[string]string{
			"s:0.0": "Do you want to proceed?\n❯ 1. Yes\n  2. No\n",
		},
	}
	cfg := config.Default()
	cfg.PreferNewerOnDisagreement = true
	m := newTestMonitor(runner, cfg)

	pane := agentstate.PaneKey("s:0.0")
	m.mu.Lock()
	m.ipcRegistry[pane] = &ipcState{kind: agentstate.AgentClaudeCode, pid: 111, status: agentstate.Idle()}
	m.mu.Unlock()

	ch := m.Subscribe()
	m.tick(context.Background())
	snap := <-ch
	require.Len(t, snap.Agents, 1)
	require.Equal(t, agentstate.StatusIdle, snap.Agents[0].Status.Kind)
}

func TestMonitorRecordCarriesWorkingDirAndScreenLines(t *testing.T) {
	runner := &fakeRunner{
		panes: paneLine("s:0.0", "claude", "/home/dev/project", 111, "claude"),
		captures: map[string]string{
			"s:0.0": "Human: hi\nAssistant: working on it\n",
		},
	}
	m := newTestMonitor(runner, config.Default())
	ch := m.Subscribe()

	m.tick(context.Background())

	snap := <-ch
	require.Len(t, snap.Agents, 1)
	require.Equal(t, "/home/dev/project", snap.Agents[0].WorkingDir)
	require.Equal(t, []string{"Human: hi", "Assistant: working on it"}, snap.Agents[0].Lines)
}

func TestMonitorBusyHintPromotesUnknownAgentToProcessing(t *testing.T) {
	runner := &fakeRunner{
		panes: paneLine("s:0.0", "some-tool", "/home", 111, "some-tool"),
		captures: map[string]string{
			"s:0.0": "plain output\n",
		},
		ps: "  111     1 bash\n  222   111 caffeinate\n",
	}
	m := newTestMonitor(runner, config.Default())
	ch := m.Subscribe()

	m.tick(context.Background())

	snap := <-ch
	require.Len(t, snap.Agents, 1)
	require.Equal(t, agentstate.StatusProcessing, snap.Agents[0].Status.Kind)
}

func TestMonitorStatusEqualIgnoresUpdatedAtChurn(t *testing.T) {
	require.True(t, statusEqual(agentstate.Processing("thinking"), agentstate.Processing("thinking")))
	require.False(t, statusEqual(agentstate.Processing("thinking"), agentstate.Processing("editing")))
	require.True(t, statusEqual(agentstate.Idle(), agentstate.Idle()))
}
