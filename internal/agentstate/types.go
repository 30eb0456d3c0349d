// Package agentstate holds the shared data model that every other tmai
// package speaks: pane identity, agent status, detection results, the
// wire-level state record, and audit events.
package agentstate

import "time"

// PaneKey is the stable identifier the multiplexer assigns to a pane
// (tmux's "session:window.pane" target string, typically).
type PaneKey string

// AgentKind enumerates the agent families a detector can recognize.
type AgentKind int

const (
	AgentUnknown AgentKind = iota
	AgentClaudeCode
	AgentCodex
	AgentGemini
	AgentOpenCode
)

func (k AgentKind) String() string {
	switch k {
	case AgentClaudeCode:
		return "claude-code"
	case AgentCodex:
		return "codex"
	case AgentGemini:
		return "gemini"
	case AgentOpenCode:
		return "opencode"
	default:
		return "unknown"
	}
}

// ApprovalKind enumerates the categories of interactive prompt the
// detectors can classify an AwaitingApproval state as.
type ApprovalKind int

const (
	ApprovalOther ApprovalKind = iota
	ApprovalFileEdit
	ApprovalFileCreate
	ApprovalFileDelete
	ApprovalShellCommand
	ApprovalMcpTool
	ApprovalUserQuestion
	ApprovalYesNo
)

func (k ApprovalKind) String() string {
	switch k {
	case ApprovalFileEdit:
		return "file_edit"
	case ApprovalFileCreate:
		return "file_create"
	case ApprovalFileDelete:
		return "file_delete"
	case ApprovalShellCommand:
		return "shell_command"
	case ApprovalMcpTool:
		return "mcp_tool"
	case ApprovalUserQuestion:
		return "user_question"
	case ApprovalYesNo:
		return "yes_no"
	default:
		return "other"
	}
}

// StatusKind discriminates the AgentStatus tagged variant.
type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusProcessing
	StatusAwaitingApproval
	StatusError
	StatusOffline
)

func (k StatusKind) String() string {
	switch k {
	case StatusProcessing:
		return "processing"
	case StatusAwaitingApproval:
		return "awaiting_approval"
	case StatusError:
		return "error"
	case StatusOffline:
		return "offline"
	default:
		return "idle"
	}
}

// AgentStatus is the tagged variant described in spec §3. Only the
// fields relevant to Kind are meaningful; the rest are zero values.
type AgentStatus struct {
	Kind StatusKind `json:"kind"`

	// Processing
	Activity string `json:"activity,omitempty"`

	// AwaitingApproval
	ApprovalKind   ApprovalKind `json:"approval_kind,omitempty"`
	Details        string       `json:"details,omitempty"`
	Choices        []string     `json:"choices,omitempty"`
	MultiSelect    bool         `json:"multi_select,omitempty"`
	CursorPosition int          `json:"cursor_position,omitempty"`

	// Error
	Message string `json:"message,omitempty"`
}

func Idle() AgentStatus { return AgentStatus{Kind: StatusIdle} }

func Processing(activity string) AgentStatus {
	return AgentStatus{Kind: StatusProcessing, Activity: activity}
}

func ErrorStatus(message string) AgentStatus {
	return AgentStatus{Kind: StatusError, Message: message}
}

func Offline() AgentStatus { return AgentStatus{Kind: StatusOffline} }

func Awaiting(kind ApprovalKind, details string, choices []string, multi bool, cursor int) AgentStatus {
	return AgentStatus{
		Kind:           StatusAwaitingApproval,
		ApprovalKind:   kind,
		Details:        details,
		Choices:        choices,
		MultiSelect:    multi,
		CursorPosition: cursor,
	}
}

// Validate enforces the invariants spec §3 states about AgentStatus.
func (s AgentStatus) Validate() error {
	if s.Kind != StatusAwaitingApproval {
		return nil
	}
	if s.ApprovalKind != ApprovalUserQuestion && len(s.Choices) > 0 {
		return ErrChoicesWithoutQuestion
	}
	if len(s.Choices) > 0 {
		if s.CursorPosition < 1 || s.CursorPosition > len(s.Choices) {
			return ErrCursorOutOfRange
		}
	}
	if s.ApprovalKind == ApprovalUserQuestion && s.MultiSelect && len(s.Choices) < 2 {
		return ErrMultiSelectNeedsChoices
	}
	return nil
}

// TeamRef is an opaque pointer an out-of-core team/task overlay
// collaborator may attach to an AgentRecord; agentstate never
// interprets it.
type TeamRef struct {
	Name   string `json:"name,omitempty"`
	Member string `json:"member,omitempty"`
	IsLead bool   `json:"is_lead,omitempty"`
}

// AgentRecord pairs pane identity with detected agent kind, process
// metadata, and its current status.
type AgentRecord struct {
	PaneKey    PaneKey     `json:"pane_key"`
	Kind       AgentKind   `json:"kind"`
	PID        int         `json:"pid"`
	Cmdline    string      `json:"cmdline"`
	WorkingDir string      `json:"working_dir,omitempty"`
	Title      string      `json:"title,omitempty"`
	Team       *TeamRef    `json:"team,omitempty"`
	Status     AgentStatus `json:"status"`
	UpdatedAt  time.Time   `json:"updated_at"`

	// Lines is the tail of captured screen content this record was
	// classified from — the "last ~30 lines of screen context" the AI
	// judge (component G) needs to make an informed allow/deny decision,
	// not just the single prompt line. Omitted from JSON by default
	// since it's sizable and only consumed in-process.
	Lines []string `json:"lines,omitempty"`
}

// Source names where a DetectionResult came from.
type Source int

const (
	SourceCapturePane Source = iota
	SourceIpcSocket
)

func (s Source) String() string {
	if s == SourceIpcSocket {
		return "ipc_socket"
	}
	return "capture_pane"
}

// Confidence ranks how sure a detector rule is of its classification.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}

const maxMatchedTextBytes = 200

// Reason documents which rule produced a DetectionResult and how
// confident it was.
type Reason struct {
	Rule        string     `json:"rule"`
	Confidence  Confidence `json:"confidence"`
	MatchedText string     `json:"matched_text,omitempty"`
}

// NewReason truncates matchedText to the 200-byte bound spec §3 names.
func NewReason(rule string, confidence Confidence, matchedText string) Reason {
	if len(matchedText) > maxMatchedTextBytes {
		matchedText = matchedText[:maxMatchedTextBytes]
	}
	return Reason{Rule: rule, Confidence: confidence, MatchedText: matchedText}
}

// DetectionResult is the output of running a detector over a frame.
type DetectionResult struct {
	Status AgentStatus `json:"status"`
	Reason Reason      `json:"reason"`
	Source Source      `json:"source"`
}

// StateRecord is the normalized on-wire message a wrapped child pushes
// over IPC or persists to its state file.
type StateRecord struct {
	Status         StatusKind   `json:"status"`
	ApprovalKind   ApprovalKind `json:"approval_kind,omitempty"`
	Details        string       `json:"details,omitempty"`
	Choices        []string     `json:"choices,omitempty"`
	MultiSelect    bool         `json:"multi_select,omitempty"`
	CursorPosition int          `json:"cursor_position,omitempty"`
	LastOutputMs   int64        `json:"last_output_ms"`
	LastInputMs    int64        `json:"last_input_ms"`
	PID            int          `json:"pid"`
	PaneKey        PaneKey      `json:"pane_key,omitempty"`
	TeamName       string       `json:"team_name,omitempty"`
	TeamMember     string       `json:"team_member,omitempty"`
	IsTeamLead     bool         `json:"is_team_lead,omitempty"`
}

// ToAgentStatus converts the wire record back into an AgentStatus.
func (r StateRecord) ToAgentStatus() AgentStatus {
	switch r.Status {
	case StatusProcessing:
		return Processing(r.Details)
	case StatusAwaitingApproval:
		return Awaiting(r.ApprovalKind, r.Details, r.Choices, r.MultiSelect, r.CursorPosition)
	case StatusError:
		return ErrorStatus(r.Details)
	case StatusOffline:
		return Offline()
	default:
		return Idle()
	}
}

// FromAgentStatus builds the wire representation of a status plus the
// timestamps/pid/pane metadata the proxy tracks locally.
func FromAgentStatus(s AgentStatus, lastOutputMs, lastInputMs int64, pid int, pane PaneKey) StateRecord {
	rec := StateRecord{
		Status:       s.Kind,
		LastOutputMs: lastOutputMs,
		LastInputMs:  lastInputMs,
		PID:          pid,
		PaneKey:      pane,
	}
	switch s.Kind {
	case StatusProcessing:
		rec.Details = s.Activity
	case StatusAwaitingApproval:
		rec.ApprovalKind = s.ApprovalKind
		rec.Details = s.Details
		rec.Choices = s.Choices
		rec.MultiSelect = s.MultiSelect
		rec.CursorPosition = s.CursorPosition
	case StatusError:
		rec.Details = s.Message
	}
	return rec
}

// AuditEventKind discriminates the AuditEvent tagged variant.
type AuditEventKind string

const (
	EventStateChanged           AuditEventKind = "state_changed"
	EventAgentAppeared          AuditEventKind = "agent_appeared"
	EventAgentDisappeared       AuditEventKind = "agent_disappeared"
	EventSourceDisagreement     AuditEventKind = "source_disagreement"
	EventUserInputDuringProcess AuditEventKind = "user_input_during_processing"
	EventAutoApproveJudgment    AuditEventKind = "auto_approve_judgment"
)

// AuditEvent is one line of the ndjson audit log.
type AuditEvent struct {
	Event     AuditEventKind `json:"event"`
	Timestamp time.Time      `json:"ts"`
	PaneKey   PaneKey        `json:"pane_key"`
	AgentKind AgentKind      `json:"agent_kind"`

	// StateChanged / AgentAppeared / AgentDisappeared
	PreviousStatus *AgentStatus `json:"previous_status,omitempty"`
	CurrentStatus  *AgentStatus `json:"current_status,omitempty"`

	// SourceDisagreement
	IpcStatus     *AgentStatus `json:"ipc_status,omitempty"`
	CaptureStatus *AgentStatus `json:"capture_status,omitempty"`

	// AutoApproveJudgment
	Decision      string `json:"decision,omitempty"`
	Model         string `json:"model,omitempty"`
	ElapsedMs     int64  `json:"elapsed_ms,omitempty"`
	ApprovalSent  bool   `json:"approval_sent,omitempty"`
	Reasoning     string `json:"reasoning,omitempty"`
}
