// Package sender implements component I: the single funnel for "send
// bytes to agent X", preferring a live IPC connection and falling back
// to the multiplexer's key-send primitive per keystroke.
package sender

import (
	"context"
	"sync"
	"time"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/ipc"
	"github.com/trust-delta/tmai/internal/tmux"
)

// IpcSender is the subset of ipc.Server the sender needs.
type IpcSender interface {
	SendKeys(pane agentstate.PaneKey, raw []byte) error
	Connected(pane agentstate.PaneKey) bool
}

// TargetResolver maps a PaneKey to the multiplexer target string
// ("session:window.pane") used for the capture-based fallback.
type TargetResolver func(agentstate.PaneKey) (string, bool)

// AuditSink is the subset of audit.Logger the sender needs; kept local
// so this package never imports internal/audit.
type AuditSink interface {
	Log(agentstate.AuditEvent)
}

// StatusLookup returns the monitor's most recently published status
// for pane, so the sender can tell a deliberate passthrough keystroke
// from one sent while the agent was believed busy.
type StatusLookup func(agentstate.PaneKey) agentstate.AgentStatus

// Sender is component I.
type Sender struct {
	ipc     IpcSender
	tmux    *tmux.Client
	resolve TargetResolver

	audit    AuditSink
	status   StatusLookup
	now      func() time.Time
	debounce time.Duration

	mu      sync.Mutex
	lastHit map[agentstate.PaneKey]time.Time
}

// New builds a Sender over a live IPC server and a tmux client used
// for the fallback path.
func New(ipcServer IpcSender, tmuxClient *tmux.Client, resolve TargetResolver) *Sender {
	return &Sender{
		ipc:     ipcServer,
		tmux:    tmuxClient,
		resolve: resolve,
		now:     time.Now,
		lastHit: make(map[agentstate.PaneKey]time.Time),
	}
}

// AttachAudit wires the UserInputDuringProcessing emission spec §4.H
// names: a keystroke sent to a pane currently classified Processing or
// Idle is high-signal for a missed approval prompt, reported with a
// per-pane debounce so passthrough typing doesn't flood the log.
func (s *Sender) AttachAudit(audit AuditSink, status StatusLookup, debounce time.Duration) {
	s.audit = audit
	s.status = status
	s.debounce = debounce
}

// Send writes raw bytes to the agent behind pane. IPC is preferred;
// an IPC failure transparently falls over to the tmux fallback for
// this call only (per-keystroke fall-through, spec §4.I).
func (s *Sender) Send(ctx context.Context, pane agentstate.PaneKey, data []byte) error {
	if s.ipc != nil && s.ipc.Connected(pane) {
		if err := s.ipc.SendKeys(pane, data); err == nil {
			return nil
		}
	}
	target, ok := s.resolve(pane)
	if !ok {
		return ErrUnresolvedPane
	}
	return s.tmux.SendKeys(ctx, target, data)
}

// SendKey translates a logical key name to its byte sequence and sends
// it through the same funnel as Send.
func (s *Sender) SendKey(ctx context.Context, pane agentstate.PaneKey, key string) error {
	bytes, err := Translate(key)
	if err != nil {
		return err
	}
	return s.Send(ctx, pane, bytes)
}

// SendUserInput is the entry point for keystrokes originating from a
// human operator (the UI/web terminal passthrough), as opposed to
// keystrokes synthesized by the auto-approve engine. It behaves exactly
// like Send, plus the spec §4.H UserInputDuringProcessing audit check.
func (s *Sender) SendUserInput(ctx context.Context, pane agentstate.PaneKey, data []byte) error {
	s.maybeAuditUserInput(pane)
	return s.Send(ctx, pane, data)
}

func (s *Sender) maybeAuditUserInput(pane agentstate.PaneKey) {
	if s.audit == nil || s.status == nil {
		return
	}
	status := s.status(pane)
	if status.Kind != agentstate.StatusProcessing && status.Kind != agentstate.StatusIdle {
		return
	}

	now := s.now()
	debounce := s.debounce
	if debounce <= 0 {
		debounce = 5 * time.Second
	}

	s.mu.Lock()
	last, seen := s.lastHit[pane]
	if seen && now.Sub(last) < debounce {
		s.mu.Unlock()
		return
	}
	s.lastHit[pane] = now
	s.mu.Unlock()

	current := status
	s.audit.Log(agentstate.AuditEvent{
		Event:         agentstate.EventUserInputDuringProcess,
		Timestamp:     now,
		PaneKey:       pane,
		CurrentStatus: &current,
	})
}
