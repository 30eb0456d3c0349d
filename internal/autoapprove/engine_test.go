package autoapprove

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(0, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeJudge struct {
	mu       sync.Mutex
	calls    int
	verdict  Verdict
	reason   string
	model    string
	err      error
	blockers chan struct{} // if non-nil, Judge blocks until closed
}

func (f *fakeJudge) Name() string { return "fake" }

func (f *fakeJudge) Judge(ctx context.Context, req Request) (Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.blockers != nil {
		select {
		case <-f.blockers:
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Response{}, f.err
	}
	return Response{Verdict: f.verdict, Reasoning: f.reason, Model: f.model}, nil
}

func (f *fakeJudge) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeKeySender struct {
	mu    sync.Mutex
	sent  []agentstate.PaneKey
	err   error
}

func (s *fakeKeySender) SendKey(ctx context.Context, pane agentstate.PaneKey, key string) error {
	s.mu.Lock()
	s.sent = append(s.sent, pane)
	s.mu.Unlock()
	return s.err
}

func (s *fakeKeySender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeAuditSink struct {
	mu     sync.Mutex
	events []agentstate.AuditEvent
}

func (a *fakeAuditSink) Log(e agentstate.AuditEvent) {
	a.mu.Lock()
	a.events = append(a.events, e)
	a.mu.Unlock()
}

func (a *fakeAuditSink) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func newTestEngine(mode config.AutoApproveMode, judge Provider) (*Engine, *fakeKeySender, *fakeAuditSink, *fakeClock) {
	cfg := &config.Options{
		AutoApprove: config.AutoApproveOptions{
			Mode:          mode,
			Rules:         config.RuleFlags{AllowGitReadonly: true},
			CooldownSecs:  10,
			TimeoutSecs:   5,
			MaxConcurrent: 2,
		},
	}
	sender := &fakeKeySender{}
	audit := &fakeAuditSink{}
	e := New(cfg, judge, sender, audit)
	clock := newFakeClock()
	e.now = clock.Now
	return e, sender, audit, clock
}

func awaitingShell(details string) agentstate.AgentStatus {
	return agentstate.Awaiting(agentstate.ApprovalShellCommand, details, nil, false, 0)
}

func TestEngineOffModeAlwaysNoOp(t *testing.T) {
	e, sender, _, _ := newTestEngine(config.ModeOff, nil)
	p := e.Consider(context.Background(), "p1", awaitingShell("Bash(git status)"), nil, false)
	require.Equal(t, PhaseNone, p.Kind)
	require.Equal(t, 0, sender.sentCount())
}

func TestEngineRulesModeApprovesOnMatch(t *testing.T) {
	e, sender, audit, _ := newTestEngine(config.ModeRules, nil)
	p := e.Consider(context.Background(), "p1", awaitingShell("Bash(git status)"), nil, false)
	require.Equal(t, PhaseApprovedByRule, p.Kind)
	require.Equal(t, 1, sender.sentCount())
	require.Equal(t, 1, audit.count())
}

func TestEngineRulesModeManualOnNoMatch(t *testing.T) {
	e, sender, _, _ := newTestEngine(config.ModeRules, nil)
	p := e.Consider(context.Background(), "p1", awaitingShell("Bash(rm -rf /)"), nil, false)
	require.Equal(t, PhaseManualRequired, p.Kind)
	require.Equal(t, 0, sender.sentCount())
}

func TestEngineAiModeAlwaysAsksJudgeEvenWhenRuleWouldMatch(t *testing.T) {
	judge := &fakeJudge{verdict: VerdictApprove, model: "fake-model"}
	e, sender, _, _ := newTestEngine(config.ModeAi, judge)

	p := e.Consider(context.Background(), "p1", awaitingShell("Bash(git status)"), nil, false)
	require.Equal(t, PhaseJudging, p.Kind)

	require.Eventually(t, func() bool {
		return e.Phase("p1").Kind == PhaseApprovedByAi
	}, time.Second, time.Millisecond)
	require.Equal(t, 1, judge.callCount())
	require.Equal(t, 1, sender.sentCount())
}

func TestEngineHybridModeRuleMatchBypassesJudge(t *testing.T) {
	judge := &fakeJudge{verdict: VerdictApprove}
	e, sender, _, _ := newTestEngine(config.ModeHybrid, judge)

	p := e.Consider(context.Background(), "p1", awaitingShell("Bash(git status)"), nil, false)
	require.Equal(t, PhaseApprovedByRule, p.Kind)
	require.Equal(t, 0, judge.callCount())
	require.Equal(t, 1, sender.sentCount())
}

func TestEngineHybridModeFallsBackToJudgeOnNoRuleMatch(t *testing.T) {
	judge := &fakeJudge{verdict: VerdictReject, reason: "touches system files"}
	e, _, _, _ := newTestEngine(config.ModeHybrid, judge)

	p := e.Consider(context.Background(), "p1", awaitingShell("Bash(rm -rf /)"), nil, false)
	require.Equal(t, PhaseJudging, p.Kind)

	require.Eventually(t, func() bool {
		return e.Phase("p1").Kind == PhaseManualRequired
	}, time.Second, time.Millisecond)
}

func TestEngineCooldownSuppressesReevaluation(t *testing.T) {
	e, sender, _, clock := newTestEngine(config.ModeRules, nil)

	e.Consider(context.Background(), "p1", awaitingShell("Bash(git status)"), nil, false)
	require.Equal(t, 1, sender.sentCount())

	e.Consider(context.Background(), "p1", awaitingShell("Bash(git status)"), nil, false)
	require.Equal(t, 1, sender.sentCount(), "still within cooldown, must not re-send")

	clock.Advance(11 * time.Second)
	e.Consider(context.Background(), "p1", awaitingShell("Bash(git status)"), nil, false)
	require.Equal(t, 2, sender.sentCount(), "cooldown elapsed, should evaluate again")
}

func TestEngineSkipsMultiSelectUserQuestion(t *testing.T) {
	e, sender, _, _ := newTestEngine(config.ModeRules, nil)
	status := agentstate.Awaiting(agentstate.ApprovalUserQuestion, "pick one", []string{"a", "b"}, true, 1)
	p := e.Consider(context.Background(), "p1", status, nil, false)
	require.Equal(t, PhaseNone, p.Kind)
	require.Equal(t, 0, sender.sentCount())
}

func TestEngineSkipsAgentOwnAutoApprove(t *testing.T) {
	e, sender, _, _ := newTestEngine(config.ModeRules, nil)
	p := e.Consider(context.Background(), "p1", awaitingShell("Bash(git status)"), nil, true)
	require.Equal(t, PhaseNone, p.Kind)
	require.Equal(t, 0, sender.sentCount())
}

func TestEngineAllowedTypesFiltersOutDisallowedKind(t *testing.T) {
	cfg := &config.Options{
		AutoApprove: config.AutoApproveOptions{
			Mode:         config.ModeRules,
			Rules:        config.RuleFlags{AllowGitReadonly: true},
			AllowedTypes: []string{"file_edit"},
			CooldownSecs: 10,
		},
	}
	sender := &fakeKeySender{}
	e := New(cfg, nil, sender, nil)

	p := e.Consider(context.Background(), "p1", awaitingShell("Bash(git status)"), nil, false)
	require.Equal(t, PhaseNone, p.Kind)
	require.Equal(t, 0, sender.sentCount())
}

func TestEngineClearResetsPhaseWhenLeavingAwaitingApproval(t *testing.T) {
	e, _, _, _ := newTestEngine(config.ModeRules, nil)
	e.Consider(context.Background(), "p1", awaitingShell("Bash(git status)"), nil, false)
	require.Equal(t, PhaseApprovedByRule, e.Phase("p1").Kind)

	p := e.Consider(context.Background(), "p1", agentstate.Idle(), nil, false)
	require.Equal(t, PhaseNone, p.Kind)
	require.Equal(t, PhaseNone, e.Phase("p1").Kind)
}

func TestEngineBoundsConcurrentJudgeCalls(t *testing.T) {
	release := make(chan struct{})
	judge := &fakeJudge{verdict: VerdictApprove, blockers: release}
	cfg := &config.Options{
		AutoApprove: config.AutoApproveOptions{
			Mode:          config.ModeAi,
			TimeoutSecs:   5,
			MaxConcurrent: 1,
			CooldownSecs:  0,
		},
	}
	sender := &fakeKeySender{}
	e := New(cfg, judge, sender, nil)

	e.Consider(context.Background(), "p1", awaitingShell("Bash(git status)"), nil, false)
	e.Consider(context.Background(), "p2", awaitingShell("Bash(git log)"), nil, false)

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, judge.callCount(), "second judge call must wait for the semaphore slot")

	close(release)
	require.Eventually(t, func() bool {
		return judge.callCount() == 2
	}, time.Second, time.Millisecond)
}

func TestEngineJudgeErrorResultsInManual(t *testing.T) {
	judge := &fakeJudge{err: context.DeadlineExceeded}
	e, _, audit, _ := newTestEngine(config.ModeAi, judge)

	e.Consider(context.Background(), "p1", awaitingShell("Bash(git status)"), nil, false)
	require.Eventually(t, func() bool {
		return e.Phase("p1").Kind == PhaseManualRequired
	}, time.Second, time.Millisecond)
	require.GreaterOrEqual(t, audit.count(), 1)
}
