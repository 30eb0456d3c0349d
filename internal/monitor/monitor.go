// Package monitor implements component F: the fixed-period polling
// loop that enumerates multiplexer panes, selects a classification
// source per pane, applies the approval override, diffs against the
// previous cycle, and publishes immutable snapshots to subscribers.
//
// Grounded on the teacher's internal/overlay/status.go StatusFetcher
// (Start/Stop/run ticker loop, an initial fetch before the ticker
// fires) generalized from "fetch one daemon status" to "enumerate and
// classify every pane".
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/config"
	"github.com/trust-delta/tmai/internal/detect"
	"github.com/trust-delta/tmai/internal/ipc"
	"github.com/trust-delta/tmai/internal/scanner"
	"github.com/trust-delta/tmai/internal/tmailog"
	"github.com/trust-delta/tmai/internal/tmux"
)

// AuditSink is the subset of audit.Logger the monitor needs; kept as a
// local interface so this package never imports internal/audit.
type AuditSink interface {
	Log(agentstate.AuditEvent)
}

// Snapshot is the immutable per-cycle publication spec §4.F names: a
// revision number plus the full agent list.
type Snapshot struct {
	Revision int64
	Agents   []agentstate.AgentRecord
}

// DiffKind discriminates one cycle-to-cycle change.
type DiffKind int

const (
	DiffStateChanged DiffKind = iota
	DiffAgentAppeared
	DiffAgentDisappeared
)

// Diff is one emitted change between two consecutive snapshots.
type Diff struct {
	Kind   DiffKind
	Record agentstate.AgentRecord
}

// ipcState is what the monitor remembers about one IPC-registered
// pane between polls.
type ipcState struct {
	kind    agentstate.AgentKind
	pid     int
	cmdline string
	status  agentstate.AgentStatus
	seen    bool
}

// Monitor drives the poll loop. Build one with New, wire it to an
// ipc.Server via AttachIPC, then call Run.
type Monitor struct {
	tmuxClient *tmux.Client
	cfg        *config.Options
	audit      AuditSink
	logger     *tmailog.Logger
	now        func() time.Time

	mu          sync.RWMutex
	ipcRegistry map[agentstate.PaneKey]*ipcState
	connected   func(agentstate.PaneKey) bool

	snapMu   sync.RWMutex
	revision int64
	prior    map[agentstate.PaneKey]agentstate.AgentRecord

	subsMu sync.Mutex
	subs   []chan Snapshot
}

// New builds a Monitor over a tmux client and config.
func New(tc *tmux.Client, cfg *config.Options, audit AuditSink, logger *tmailog.Logger) *Monitor {
	if logger == nil {
		logger = tmailog.New(nil, "monitor")
	}
	return &Monitor{
		tmuxClient:  tc,
		cfg:         cfg,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
		ipcRegistry: make(map[agentstate.PaneKey]*ipcState),
		prior:       make(map[agentstate.PaneKey]agentstate.AgentRecord),
	}
}

// AttachIPC wires the parent-side IPC server's Register/State/
// Unregister callbacks into the monitor's own registry, so a poll
// cycle can consult the latest pushed StateRecord without blocking on
// the IPC connection itself.
func (m *Monitor) AttachIPC(server *ipc.Server) {
	m.connected = server.Connected
	server.OnRegister(func(p ipc.RegisterPayload) {
		m.mu.Lock()
		m.ipcRegistry[p.PaneKey] = &ipcState{kind: p.AgentKind, pid: p.PID, cmdline: p.Cmdline, status: agentstate.Idle()}
		m.mu.Unlock()
	})
	server.OnState(func(pane agentstate.PaneKey, rec agentstate.StateRecord) {
		m.mu.Lock()
		if st, ok := m.ipcRegistry[pane]; ok {
			st.status = rec.ToAgentStatus()
		}
		m.mu.Unlock()
	})
	server.OnUnregister(func(pane agentstate.PaneKey) {
		m.mu.Lock()
		delete(m.ipcRegistry, pane)
		m.mu.Unlock()
	})
}

// Subscribe returns a channel that receives every published snapshot
// in revision order. The channel is buffered; a slow subscriber drops
// nothing but may fall behind.
func (m *Monitor) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 8)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *Monitor) publish(snap Snapshot) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Run executes the poll loop until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	interval := time.Duration(m.cfg.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	m.tick(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	panes, err := m.tmuxClient.ListPanes(ctx)
	if err != nil {
		m.logger.Errorf("list-panes: %v", err)
		return
	}

	processTable := m.tmuxClient.LoadProcessTable(ctx)

	current := make(map[agentstate.PaneKey]agentstate.AgentRecord, len(panes))
	for _, p := range panes {
		rec := m.classifyPane(ctx, p, processTable)
		current[rec.PaneKey] = rec
	}

	diffs := m.diff(current)
	for _, d := range diffs {
		m.auditDiff(d)
	}

	m.snapMu.Lock()
	m.revision++
	agents := make([]agentstate.AgentRecord, 0, len(current))
	for _, r := range current {
		agents = append(agents, r)
	}
	snap := Snapshot{Revision: m.revision, Agents: agents}
	m.prior = current
	m.snapMu.Unlock()

	m.publish(snap)
}

func (m *Monitor) classifyPane(ctx context.Context, p tmux.Pane, processTable tmux.ProcessTable) agentstate.AgentRecord {
	pane := agentstate.PaneKey(p.Target)
	kind := detect.KindFromCmdline(p.Command)

	var priorRec *agentstate.AgentRecord
	m.snapMu.RLock()
	if r, ok := m.prior[pane]; ok {
		priorRec = &r
	}
	m.snapMu.RUnlock()

	lines, _ := m.tmuxClient.CapturePane(ctx, p.Target, m.captureLines())
	frame := scanner.Scan(p.Title, lines)
	busy := processTable.HasDescendantComm(p.PID, tmux.BusyIndicatorComm)
	captureResult := detect.For(kind).Classify(frame, priorRec, busy)

	m.mu.RLock()
	ipcSt, hasIPC := m.ipcRegistry[pane]
	ipcConnected := hasIPC
	if hasIPC && m.connected != nil {
		ipcConnected = m.connected(pane)
	}
	m.mu.RUnlock()

	status := captureResult.Status
	if hasIPC && ipcConnected {
		status = ipcSt.status
		kind = ipcSt.kind

		// spec §4.F: a capture-pane AwaitingApproval classification
		// overrides the IPC-reported status, since a child process can
		// die or hang mid-prompt without ever pushing the approval
		// frame. PreferNewerOnDisagreement (spec §9 open question) lets
		// an operator trust the child's own self-report instead.
		if captureResult.Status.Kind == agentstate.StatusAwaitingApproval && !m.cfg.PreferNewerOnDisagreement {
			disagree := status.Kind != agentstate.StatusAwaitingApproval
			status = captureResult.Status
			if disagree && m.cfg.Audit.LogSourceDisagreement && m.audit != nil {
				ipcCopy, captureCopy := ipcSt.status, captureResult.Status
				m.audit.Log(agentstate.AuditEvent{
					Event:         agentstate.EventSourceDisagreement,
					Timestamp:     m.now(),
					PaneKey:       pane,
					AgentKind:     kind,
					IpcStatus:     &ipcCopy,
					CaptureStatus: &captureCopy,
				})
			}
		}
	}

	pid := p.PID
	if hasIPC {
		pid = ipcSt.pid
	}

	return agentstate.AgentRecord{
		PaneKey:    pane,
		Kind:       kind,
		PID:        pid,
		Cmdline:    p.Command,
		WorkingDir: p.Path,
		Title:      p.Title,
		Lines:      lines,
		Status:     status,
		UpdatedAt:  m.now(),
	}
}

func (m *Monitor) captureLines() int {
	if m.cfg.CaptureLines > 0 {
		return m.cfg.CaptureLines
	}
	return 30
}

func (m *Monitor) diff(current map[agentstate.PaneKey]agentstate.AgentRecord) []Diff {
	m.snapMu.RLock()
	prior := m.prior
	m.snapMu.RUnlock()

	var diffs []Diff
	for key, rec := range current {
		old, existed := prior[key]
		if !existed {
			diffs = append(diffs, Diff{Kind: DiffAgentAppeared, Record: rec})
			continue
		}
		if !statusEqual(old.Status, rec.Status) {
			diffs = append(diffs, Diff{Kind: DiffStateChanged, Record: rec})
		}
	}
	for key, rec := range prior {
		if _, stillThere := current[key]; !stillThere {
			diffs = append(diffs, Diff{Kind: DiffAgentDisappeared, Record: rec})
		}
	}
	return diffs
}

func (m *Monitor) auditDiff(d Diff) {
	if m.audit == nil {
		return
	}
	var event agentstate.AuditEventKind
	switch d.Kind {
	case DiffAgentAppeared:
		event = agentstate.EventAgentAppeared
	case DiffAgentDisappeared:
		event = agentstate.EventAgentDisappeared
	default:
		event = agentstate.EventStateChanged
	}
	status := d.Record.Status
	m.audit.Log(agentstate.AuditEvent{
		Event:         event,
		Timestamp:     m.now(),
		PaneKey:       d.Record.PaneKey,
		AgentKind:     d.Record.Kind,
		CurrentStatus: &status,
	})
}

func statusEqual(a, b agentstate.AgentStatus) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case agentstate.StatusProcessing:
		return a.Activity == b.Activity
	case agentstate.StatusAwaitingApproval:
		if a.ApprovalKind != b.ApprovalKind || a.Details != b.Details || a.MultiSelect != b.MultiSelect || a.CursorPosition != b.CursorPosition {
			return false
		}
		if len(a.Choices) != len(b.Choices) {
			return false
		}
		for i := range a.Choices {
			if a.Choices[i] != b.Choices[i] {
				return false
			}
		}
		return true
	case agentstate.StatusError:
		return a.Message == b.Message
	default:
		return true
	}
}
