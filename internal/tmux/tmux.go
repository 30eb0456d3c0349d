// Package tmux is the pane enumerate/capture/send-keys collaborator
// used by the polling monitor (F) and the command sender (I). It drives
// the tmux CLI as a subprocess, the way every pack example that talks
// to tmux does.
package tmux

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Pane describes one tmux pane as returned by list-panes.
type Pane struct {
	Target  string // "session:window.pane"
	Command string
	Path    string
	PID     int
	Title   string
}

// Session/Window/Pane split Target.
func (p Pane) Session() string {
	s, _, _ := ParseTarget(p.Target)
	return s
}

func (p Pane) Window() string {
	_, w, _ := ParseTarget(p.Target)
	return w
}

// Runner abstracts subprocess execution so tests can stub tmux without
// a real server.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner shells out for real.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Client drives a tmux server via the given Runner (exec.Command by
// default).
type Client struct {
	run Runner
}

// New builds a Client that shells out to the real tmux binary.
func New() *Client { return &Client{run: execRunner{}} }

// NewWithRunner builds a Client over a custom Runner, for tests.
func NewWithRunner(r Runner) *Client { return &Client{run: r} }

const listPanesFormat = "#{session_name}:#{window_index}.#{pane_index}\t#{pane_current_command}\t#{pane_current_path}\t#{pane_pid}\t#{pane_title}"

// ListPanes enumerates every pane across every session.
func (c *Client) ListPanes(ctx context.Context) ([]Pane, error) {
	out, err := c.run.Run(ctx, "tmux", "list-panes", "-a", "-F", listPanesFormat)
	if err != nil {
		return nil, fmt.Errorf("tmux list-panes: %w", err)
	}
	return parsePanes(out), nil
}

func parsePanes(out []byte) []Pane {
	var panes []Pane
	text := strings.TrimSpace(string(out))
	if text == "" {
		return panes
	}
	for _, line := range strings.Split(text, "\n") {
		fields := strings.SplitN(line, "\t", 5)
		if len(fields) < 4 {
			continue
		}
		pid, _ := strconv.Atoi(fields[3])
		p := Pane{Target: fields[0], Command: fields[1], Path: fields[2], PID: pid}
		if len(fields) == 5 {
			p.Title = fields[4]
		}
		panes = append(panes, p)
	}
	return panes
}

// CapturePane returns the last `lines` rows of visible pane content
// (plain text; ANSI is not requested, so no interpreter is needed
// downstream, per SPEC_FULL.md §4.A′).
func (c *Client) CapturePane(ctx context.Context, target string, lines int) ([]string, error) {
	out, err := c.run.Run(ctx, "tmux", "capture-pane", "-t", target, "-p", "-S", fmt.Sprintf("-%d", lines))
	if err != nil {
		return nil, fmt.Errorf("tmux capture-pane %s: %w", target, err)
	}
	text := strings.TrimRight(string(out), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// SendKeys writes raw bytes into a pane by way of tmux send-keys -l
// (literal mode, no key-name interpretation).
func (c *Client) SendKeys(ctx context.Context, target string, data []byte) error {
	_, err := c.run.Run(ctx, "tmux", "send-keys", "-t", target, "-l", "--", string(data))
	if err != nil {
		return fmt.Errorf("tmux send-keys %s: %w", target, err)
	}
	return nil
}

// SwitchToPane switches the attached client to target's window and
// selects the pane.
func (c *Client) SwitchToPane(ctx context.Context, target string) error {
	session, window, _ := ParseTarget(target)
	sessionWindow := session + ":" + window
	if _, err := c.run.Run(ctx, "tmux", "switch-client", "-t", sessionWindow); err != nil {
		return fmt.Errorf("tmux switch-client: %w", err)
	}
	if _, err := c.run.Run(ctx, "tmux", "select-pane", "-t", target); err != nil {
		return fmt.Errorf("tmux select-pane: %w", err)
	}
	return nil
}

// ParseTarget splits "session:window.pane" into its components.
func ParseTarget(s string) (session, window, pane string) {
	colonIdx := strings.LastIndex(s, ":")
	if colonIdx < 0 {
		return s, "", ""
	}
	session = s[:colonIdx]
	rest := s[colonIdx+1:]
	dotIdx := strings.LastIndex(rest, ".")
	if dotIdx < 0 {
		return session, rest, ""
	}
	return session, rest[:dotIdx], rest[dotIdx+1:]
}

// ProcessTable is an in-memory snapshot of pid -> ppid -> comm built
// from one `ps` call, used to avoid a subprocess-per-pane busy check.
type ProcessTable struct {
	children map[int][]int
	comm     map[int]string
}

// BusyIndicatorComm is the descendant-process basename the supplemented
// PID-tree busy check looks for (grounded on
// other_examples/.../claude-tmux.go's isClaudeBusy, which treats a
// "caffeinate" descendant as proof the agent is actively working).
const BusyIndicatorComm = "caffeinate"

// LoadProcessTable snapshots the system process tree.
func (c *Client) LoadProcessTable(ctx context.Context) ProcessTable {
	pt := ProcessTable{children: make(map[int][]int), comm: make(map[int]string)}
	out, err := c.run.Run(ctx, "ps", "-eo", "pid,ppid,comm")
	if err != nil {
		return pt
	}
	text := strings.TrimSpace(string(out))
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err1 := strconv.Atoi(fields[0])
		ppid, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			continue
		}
		pt.children[ppid] = append(pt.children[ppid], pid)
		pt.comm[pid] = fields[2]
	}
	return pt
}

// HasDescendantComm reports whether any descendant of pid (direct or
// grandchild) has the given command basename. This is the supplemented
// process-tree busy-check signal named in SPEC_FULL.md's "Supplemented
// features" section.
func (pt ProcessTable) HasDescendantComm(pid int, comm string) bool {
	for _, child := range pt.children[pid] {
		if matchesComm(pt.comm[child], comm) {
			return true
		}
		for _, grandchild := range pt.children[child] {
			if matchesComm(pt.comm[grandchild], comm) {
				return true
			}
		}
	}
	return false
}

func matchesComm(got, want string) bool {
	return got == want || strings.HasSuffix(got, "/"+want)
}
