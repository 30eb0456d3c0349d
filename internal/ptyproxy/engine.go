// Package ptyproxy implements component D: the `tmai wrap <cmd>`
// PTY-proxy runner. Engine holds the platform-independent classify /
// debounce / persist pipeline; runner_unix.go and runner_windows.go
// supply the PTY spawn and duplex-copy loop around it (grounded on the
// teacher's cmd/agnt run.go / run_windows.go split).
package ptyproxy

import (
	"sync"
	"time"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/detect"
	"github.com/trust-delta/tmai/internal/scanner"
)

// Clock abstracts time.Now for debounce tests.
type Clock func() time.Time

// StatePublisher is the subset of ipc.Client the engine needs.
type StatePublisher interface {
	PushState(agentstate.StateRecord) error
}

// StatePersister writes the convenience state file consumers without
// IPC read from.
type StatePersister interface {
	Persist(agentstate.StateRecord) error
	Remove() error
}

// EngineConfig carries the debounce thresholds from config.Options
// the engine needs, so this package does not import config directly.
type EngineConfig struct {
	OutputSilenceToIdle time.Duration
	ApprovalDebounce    time.Duration
	EchoGrace           time.Duration
}

// Engine owns the classification/debounce state machine for one
// wrapped child. Safe for concurrent use from the reader/writer
// goroutines that feed it.
type Engine struct {
	mu sync.Mutex

	cfg      EngineConfig
	kind     agentstate.AgentKind
	detector detect.Detector
	pane     agentstate.PaneKey
	pid      int

	publisher StatePublisher
	persister StatePersister
	now       Clock
	busyCheck func() bool

	screen *Screen

	lastOutput time.Time
	lastInput  time.Time
	pendingAt  time.Time // when a non-final classification started pending
	pending    *agentstate.AgentStatus
	current    agentstate.AgentStatus
	prior      *agentstate.AgentRecord
}

// NewEngine builds an Engine for a running child. busyCheck is the
// supplemented PID-tree busy signal (nil disables it): the Default
// detector consults it as a confidence booster for Processing when no
// content/title spinner is visible.
func NewEngine(kind agentstate.AgentKind, pane agentstate.PaneKey, pid int, screen *Screen, cfg EngineConfig, pub StatePublisher, per StatePersister, now Clock, busyCheck func() bool) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:       cfg,
		kind:      kind,
		detector:  detect.For(kind),
		pane:      pane,
		pid:       pid,
		publisher: pub,
		persister: per,
		now:       now,
		busyCheck: busyCheck,
		screen:    screen,
		current:   agentstate.Idle(),
	}
}

// OnOutput is called with every chunk of child output (after the
// staircase-newline rewrite has been applied to the user-TTY copy; the
// scanner always sees the raw LF-terminated stream per spec §4.D).
func (e *Engine) OnOutput(raw []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	withinEchoGrace := !e.lastInput.IsZero() && now.Sub(e.lastInput) < e.cfg.EchoGrace
	e.lastOutput = now

	title, lines := e.screen.Snapshot()
	frame := scanner.Scan(title, lines)
	busy := e.busyCheck != nil && e.busyCheck()
	result := e.detector.Classify(frame, e.prior, busy)

	if withinEchoGrace && result.Status.Kind == agentstate.StatusProcessing && e.current.Kind != agentstate.StatusProcessing {
		// Keyboard echo suppressed: do not transition to Processing
		// purely because the terminal echoed what the user just typed.
		return
	}

	e.applyClassification(result.Status, now)
}

// applyClassification implements the two debounce rules of spec §4.D:
// a 200ms output-silence-to-idle rule and a 500ms post-output wait
// before publishing an Approval classification.
func (e *Engine) applyClassification(status agentstate.AgentStatus, now time.Time) {
	if status.Kind == agentstate.StatusAwaitingApproval {
		e.pending = &status
		e.pendingAt = now
		return
	}
	e.pending = nil
	e.commit(status, now)
}

// Tick is driven by a periodic timer in the runner; it resolves any
// pending Approval once its debounce window has elapsed, and applies
// the output-silence idle-downgrade for a Processing status.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()

	if e.pending != nil && now.Sub(e.pendingAt) >= e.cfg.ApprovalDebounce {
		status := *e.pending
		e.pending = nil
		e.commit(status, now)
		return
	}

	if e.current.Kind == agentstate.StatusProcessing && !e.lastOutput.IsZero() && now.Sub(e.lastOutput) >= e.cfg.OutputSilenceToIdle {
		e.commit(agentstate.Idle(), now)
	}
}

func (e *Engine) commit(status agentstate.AgentStatus, now time.Time) {
	if status.Kind == e.current.Kind && statusEqual(status, e.current) {
		return
	}
	e.current = status
	rec := agentstate.FromAgentStatus(status, e.lastOutput.UnixMilli(), e.lastInput.UnixMilli(), e.pid, e.pane)
	if e.publisher != nil {
		_ = e.publisher.PushState(rec)
	}
	if e.persister != nil {
		_ = e.persister.Persist(rec)
	}
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

// OnInput records a user keystroke's timestamp, used for the echo
// grace window.
func (e *Engine) OnInput() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastInput = e.now()
}

// Current returns the last committed status.
func (e *Engine) Current() agentstate.AgentStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Shutdown commits an Offline status and removes the convenience
// state file, mirroring the runner's exit responsibilities.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commit(agentstate.Offline(), e.now())
	if e.persister != nil {
		_ = e.persister.Remove()
	}
}
