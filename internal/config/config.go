// Package config carries the fixed options record the out-of-core
// configuration collaborator hands the monitor/engine (spec §6), plus a
// thin KDL loader (internal/config/kdl.go) so the binary is runnable
// standalone even though richer config-file parsing stays out of core.
package config

import "time"

// AutoApproveMode dispatches component G (spec §4.G).
type AutoApproveMode string

const (
	ModeOff    AutoApproveMode = "off"
	ModeRules  AutoApproveMode = "rules"
	ModeAi     AutoApproveMode = "ai"
	ModeHybrid AutoApproveMode = "hybrid"
)

// RuleFlags toggles the built-in allow categories of the rule engine.
type RuleFlags struct {
	AllowRead        bool     `kdl:"allow-read"`
	AllowTests       bool     `kdl:"allow-tests"`
	AllowFetch       bool     `kdl:"allow-fetch"`
	AllowGitReadonly bool     `kdl:"allow-git-readonly"`
	AllowFormatLint  bool     `kdl:"allow-format-lint"`
	AllowPatterns    []string `kdl:"allow-patterns"`
}

// AutoApproveOptions configures component G.
type AutoApproveOptions struct {
	Mode            AutoApproveMode `kdl:"mode"`
	Enabled         *bool           `kdl:"enabled"` // legacy fallback, spec §6
	Rules           RuleFlags       `kdl:"rules"`
	Model           string          `kdl:"model"`
	TimeoutSecs     int             `kdl:"timeout-secs"`
	CooldownSecs    int             `kdl:"cooldown-secs"`
	CheckIntervalMs int             `kdl:"check-interval-ms"`
	MaxConcurrent   int             `kdl:"max-concurrent"`
	AllowedTypes    []string        `kdl:"allowed-types"`
	CustomCommand   string          `kdl:"custom-command"`
}

// ExfilOptions configures component C.
type ExfilOptions struct {
	Enabled            bool     `kdl:"enabled"`
	AdditionalCommands []string `kdl:"additional-commands"`
}

// AuditOptions configures component H.
type AuditOptions struct {
	Enabled               bool  `kdl:"enabled"`
	MaxSizeBytes          int64 `kdl:"max-size-bytes"`
	LogSourceDisagreement bool  `kdl:"log-source-disagreement"`
}

// Options is the fixed record consumed by the monitor/engine per
// spec §6's recognized-keys table.
type Options struct {
	PollIntervalMs int `kdl:"poll-interval-ms"`
	CaptureLines   int `kdl:"capture-lines"`

	Exfil       ExfilOptions       `kdl:"exfil"`
	Audit       AuditOptions       `kdl:"audit"`
	AutoApprove AutoApproveOptions `kdl:"auto-approve"`

	// PreferNewerOnDisagreement resolves spec §9's open question about
	// whether the capture-always-wins Approval override should instead
	// prefer whichever source is more recent. Default false preserves
	// spec's literal "capture wins" wording.
	PreferNewerOnDisagreement bool `kdl:"prefer-newer-on-disagreement"`

	// Debounce thresholds, all configurable per spec §9. Not exposed as
	// plain KDL fields (time.Duration has no single KDL scalar mapping
	// in the teacher's usage), set from their *Ms counterparts below.
	OutputSilenceToIdle time.Duration `kdl:"-"`
	ApprovalDebounce    time.Duration `kdl:"-"`
	EchoGrace           time.Duration `kdl:"-"`
	IpcBackoffCap       time.Duration `kdl:"-"`
	UserInputDebounce   time.Duration `kdl:"-"`
}

// Default returns an Options populated with every default spec §4/§9
// names.
func Default() *Options {
	return &Options{
		PollIntervalMs: 500,
		CaptureLines:   30,
		Exfil: ExfilOptions{
			Enabled: true,
		},
		Audit: AuditOptions{
			Enabled:               true,
			MaxSizeBytes:          10 * 1024 * 1024,
			LogSourceDisagreement: true,
		},
		AutoApprove: AutoApproveOptions{
			Mode:            ModeOff,
			TimeoutSecs:     30,
			CooldownSecs:    10,
			CheckIntervalMs: 500,
			MaxConcurrent:   2,
		},
		PreferNewerOnDisagreement: false,
		OutputSilenceToIdle:       200 * time.Millisecond,
		ApprovalDebounce:          500 * time.Millisecond,
		EchoGrace:                 300 * time.Millisecond,
		IpcBackoffCap:             2 * time.Second,
		UserInputDebounce:         5 * time.Second,
	}
}

// ResolveLegacyMode applies spec §6's legacy fallback: if Mode is
// absent, the deprecated auto_approve.enabled flag maps to Ai (true) or
// Off (false).
func (o *Options) ResolveLegacyMode() {
	if o.AutoApprove.Mode != "" {
		return
	}
	if o.AutoApprove.Enabled != nil && *o.AutoApprove.Enabled {
		o.AutoApprove.Mode = ModeAi
		return
	}
	o.AutoApprove.Mode = ModeOff
}
