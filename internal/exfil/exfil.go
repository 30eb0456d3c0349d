// Package exfil implements component C: a stateful scanner over the
// input byte stream sent to an agent, flagging commands that transmit
// data externally and upgrading the flag when a known secret pattern
// appears on the same line. It never blocks; it only reports.
package exfil

import (
	"strings"
)

// Severity of a flagged line.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityExternalTransmission
	SeveritySensitiveData
)

func (s Severity) String() string {
	switch s {
	case SeveritySensitiveData:
		return "sensitive_data_in_transmission"
	case SeverityExternalTransmission:
		return "external_transmission_detected"
	default:
		return "none"
	}
}

// Finding is emitted for every completed line whose head token matches
// a transmission command.
type Finding struct {
	Line     string
	Command  string
	Severity Severity
	Secret   string // which secret pattern matched, if SeveritySensitiveData
}

// defaultCommands is the built-in set of transmission-capable command
// heads: HTTP clients, transfer tools, cloud CLIs, and the common
// publish/push commands named in spec §4.C.
var defaultCommands = map[string]bool{
	"curl": true, "wget": true, "http": true, "httpie": true,
	"scp": true, "rsync": true, "sftp": true, "nc": true, "ncat": true, "netcat": true,
	"aws": true, "gcloud": true, "az": true, "doctl": true, "heroku": true,
	"ssh": true,
}

// Scanner is a stateful line-assembler over an input byte stream. Feed
// it raw bytes with Write; completed lines are classified immediately.
type Scanner struct {
	extra   map[string]bool
	buf     strings.Builder
	onFind  func(Finding)
}

// New builds a Scanner with the built-in command set unioned with the
// configurable extra commands, invoking onFind for every flagged line.
func New(extraCommands []string, onFind func(Finding)) *Scanner {
	extra := make(map[string]bool, len(extraCommands))
	for _, c := range extraCommands {
		extra[strings.ToLower(c)] = true
	}
	return &Scanner{extra: extra, onFind: onFind}
}

// Write feeds raw bytes destined for the agent's PTY. A line completes
// on LF (prompt redraws are the caller's concern — this scanner only
// needs byte-accurate command lines, which newline-bounds suffice for).
func (s *Scanner) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			s.flushLine(s.buf.String())
			s.buf.Reset()
			continue
		}
		if b == '\r' {
			continue
		}
		s.buf.WriteByte(b)
	}
	return len(p), nil
}

// Flush classifies any buffered partial line without a trailing
// newline (useful at stream end / PTY close).
func (s *Scanner) Flush() {
	if s.buf.Len() == 0 {
		return
	}
	s.flushLine(s.buf.String())
	s.buf.Reset()
}

func (s *Scanner) flushLine(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	fields := strings.Fields(trimmed)
	head := strings.ToLower(fields[0])

	isTransmission := defaultCommands[head] || s.extra[head]
	isPublish := matchesPublishCommand(fields)

	if !isTransmission && !isPublish {
		return
	}

	finding := Finding{Line: trimmed, Command: head, Severity: SeverityExternalTransmission}
	if secret, ok := MatchSecret(trimmed); ok {
		finding.Severity = SeveritySensitiveData
		finding.Secret = secret
	}
	if s.onFind != nil {
		s.onFind(finding)
	}
}

// matchesPublishCommand recognizes "git push", "npm publish", and
// "cargo publish" style two-token commands.
func matchesPublishCommand(fields []string) bool {
	if len(fields) < 2 {
		return false
	}
	head := strings.ToLower(fields[0])
	sub := strings.ToLower(fields[1])
	switch head {
	case "git":
		return sub == "push"
	case "npm", "pnpm", "yarn":
		return sub == "publish"
	case "cargo":
		return sub == "publish"
	}
	return false
}
