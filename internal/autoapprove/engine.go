package autoapprove

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/config"
)

// PhaseKind discriminates the UI phase spec §4.G names, published
// alongside the monitor's snapshot.
type PhaseKind int

const (
	PhaseNone PhaseKind = iota
	PhaseJudging
	PhaseApprovedByRule
	PhaseApprovedByAi
	PhaseManualRequired
)

// Phase is the auto-approve status overlay for one pane.
type Phase struct {
	Kind   PhaseKind
	Reason string
}

// KeySender is the subset of sender.Sender the engine needs to
// synthesize the approval keystroke.
type KeySender interface {
	SendKey(ctx context.Context, pane agentstate.PaneKey, key string) error
}

// AuditSink is the subset of audit.Logger the engine needs; kept local
// so this package never imports internal/audit.
type AuditSink interface {
	Log(agentstate.AuditEvent)
}

// Engine is component G: it decides, per AwaitingApproval pane,
// whether to auto-approve, ask an AI judge, or defer to a human.
type Engine struct {
	cfg    *config.Options
	judge  Provider
	sender KeySender
	audit  AuditSink
	now    func() time.Time

	sem chan struct{}

	mu        sync.Mutex
	phases    map[agentstate.PaneKey]Phase
	cooldowns map[agentstate.PaneKey]time.Time
}

// New builds an Engine. judge may be nil when mode never reaches the
// AI judge (Off/Rules with no Hybrid fallback); Evaluate returns
// ManualRequired instead of panicking if a judge call is attempted
// with none configured.
func New(cfg *config.Options, judge Provider, sender KeySender, audit AuditSink) *Engine {
	maxConcurrent := cfg.AutoApprove.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Engine{
		cfg:       cfg,
		judge:     judge,
		sender:    sender,
		audit:     audit,
		now:       time.Now,
		sem:       make(chan struct{}, maxConcurrent),
		phases:    make(map[agentstate.PaneKey]Phase),
		cooldowns: make(map[agentstate.PaneKey]time.Time),
	}
}

// Phase returns the current auto-approve UI phase for pane.
func (e *Engine) Phase(pane agentstate.PaneKey) Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phases[pane]
}

// Clear removes a pane's phase once it leaves AwaitingApproval, per
// spec §4.G.
func (e *Engine) Clear(pane agentstate.PaneKey) {
	e.mu.Lock()
	delete(e.phases, pane)
	e.mu.Unlock()
}

func (e *Engine) setPhase(pane agentstate.PaneKey, p Phase) {
	e.mu.Lock()
	e.phases[pane] = p
	e.mu.Unlock()
}

func (e *Engine) withinCooldown(pane agentstate.PaneKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	until, ok := e.cooldowns[pane]
	return ok && e.now().Before(until)
}

func (e *Engine) startCooldown(pane agentstate.PaneKey) {
	secs := e.cfg.AutoApprove.CooldownSecs
	if secs <= 0 {
		secs = 10
	}
	e.mu.Lock()
	e.cooldowns[pane] = e.now().Add(time.Duration(secs) * time.Second)
	e.mu.Unlock()
}

// Consider evaluates one AwaitingApproval status against the
// configured mode. Rule-only decisions resolve synchronously; a judge
// call runs in a background goroutine bounded by MaxConcurrent, with
// the phase set to Judging for the duration. The returned Phase is the
// state known at the moment Consider is called — poll Phase(pane) for
// the eventual AI verdict.
func (e *Engine) Consider(ctx context.Context, pane agentstate.PaneKey, status agentstate.AgentStatus, screenContext []string, agentOwnAutoApprove bool) Phase {
	mode := e.cfg.AutoApprove.Mode
	if mode == "" || mode == config.ModeOff {
		return Phase{}
	}
	if status.Kind != agentstate.StatusAwaitingApproval {
		e.Clear(pane)
		return Phase{}
	}
	if status.ApprovalKind == agentstate.ApprovalUserQuestion && status.MultiSelect {
		return Phase{}
	}
	if agentOwnAutoApprove {
		return Phase{}
	}
	if !typeAllowed(status.ApprovalKind, e.cfg.AutoApprove.AllowedTypes) {
		return Phase{}
	}
	if e.withinCooldown(pane) {
		return e.Phase(pane)
	}

	tuple := ParsePrompt(status)

	var ruleMatched bool
	var category string
	if mode != config.ModeAi {
		ruleMatched, category = MatchRules(tuple, e.cfg.AutoApprove.Rules)
	}

	switch mode {
	case config.ModeRules:
		if ruleMatched {
			return e.approve(ctx, pane, PhaseApprovedByRule, category, "", 0)
		}
		return e.manual(pane, "no rule matched")

	case config.ModeAi:
		return e.askJudge(ctx, pane, tuple, status, screenContext)

	case config.ModeHybrid:
		if ruleMatched {
			return e.approve(ctx, pane, PhaseApprovedByRule, category, "", 0)
		}
		return e.askJudge(ctx, pane, tuple, status, screenContext)

	default:
		return Phase{}
	}
}

func typeAllowed(kind agentstate.ApprovalKind, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, kind.String()) {
			return true
		}
	}
	return false
}

func (e *Engine) manual(pane agentstate.PaneKey, reason string) Phase {
	p := Phase{Kind: PhaseManualRequired, Reason: reason}
	e.setPhase(pane, p)
	e.startCooldown(pane)
	return p
}

// approve sends the approval keystroke and records the decision. For a
// rule match, label is the matched category name (e.g. "allow_read");
// for an AI approval it is the judge's model name.
func (e *Engine) approve(ctx context.Context, pane agentstate.PaneKey, kind PhaseKind, label, reasoning string, elapsedMs int64) Phase {
	p := Phase{Kind: kind}
	e.setPhase(pane, p)
	e.startCooldown(pane)

	sendErr := e.sender.SendKey(ctx, pane, "Enter")
	if e.audit != nil {
		e.audit.Log(agentstate.AuditEvent{
			Event:        agentstate.EventAutoApproveJudgment,
			Timestamp:    e.now(),
			PaneKey:      pane,
			Decision:     string(VerdictApprove),
			Model:        label,
			ElapsedMs:    elapsedMs,
			ApprovalSent: sendErr == nil,
			Reasoning:    reasoning,
		})
	}
	return p
}

// askJudge dispatches the AI judge. The caller sees PhaseJudging
// immediately; the goroutine updates the phase to the final verdict
// once the judge answers (or times out).
func (e *Engine) askJudge(ctx context.Context, pane agentstate.PaneKey, tuple PromptTuple, status agentstate.AgentStatus, screenContext []string) Phase {
	if e.judge == nil {
		return e.manual(pane, "no AI judge configured")
	}

	judging := Phase{Kind: PhaseJudging}
	e.setPhase(pane, judging)
	e.startCooldown(pane)

	go e.runJudge(pane, tuple, status, screenContext)

	return judging
}

func (e *Engine) runJudge(pane agentstate.PaneKey, tuple PromptTuple, status agentstate.AgentStatus, screenContext []string) {
	e.sem <- struct{}{}
	defer func() { <-e.sem }()

	timeoutSecs := e.cfg.AutoApprove.TimeoutSecs
	if timeoutSecs <= 0 {
		timeoutSecs = 30
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	start := e.now()
	req := Request{
		Operation: tuple.Operation,
		Target:    tuple.Target,
		Details:   status.Details,
		Context:   strings.Join(screenContext, "\n"),
	}

	resp, err := e.judge.Judge(ctx, req)
	elapsed := e.now().Sub(start).Milliseconds()
	if err != nil {
		e.manual(pane, "judge error: "+err.Error())
		e.logJudgment(pane, string(VerdictUncertain), e.judge.Name(), elapsed, false, err.Error())
		return
	}

	switch resp.Verdict {
	case VerdictApprove:
		e.approve(context.Background(), pane, PhaseApprovedByAi, resp.Model, resp.Reasoning, elapsed)
	default:
		e.manual(pane, resp.Reasoning)
		e.logJudgment(pane, string(resp.Verdict), resp.Model, elapsed, false, resp.Reasoning)
	}
}

func (e *Engine) logJudgment(pane agentstate.PaneKey, decision, model string, elapsedMs int64, sent bool, reasoning string) {
	if e.audit == nil {
		return
	}
	e.audit.Log(agentstate.AuditEvent{
		Event:        agentstate.EventAutoApproveJudgment,
		Timestamp:    e.now(),
		PaneKey:      pane,
		Decision:     decision,
		Model:        model,
		ElapsedMs:    elapsedMs,
		ApprovalSent: sent,
		Reasoning:    reasoning,
	})
}
