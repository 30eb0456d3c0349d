package config

import (
	"fmt"
	"os"
	"time"

	kdl "github.com/sblinch/kdl-go"
)

// FileName is the project config file name, adapted from the teacher's
// ".agnt.kdl" convention for this tool.
const FileName = ".tmai.kdl"

// LoadFile reads and parses a KDL config file at path, starting from
// Default() and overlaying whatever the file sets — so a config file
// that only sets one key never resets the rest to zero values.
func LoadFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw KDL bytes into Options, grounded on the teacher's
// ParseAgntConfig idiom (internal/config/agnt.go): unmarshal onto a
// defaulted struct via kdl-go's struct tags.
func Parse(data []byte) (*Options, error) {
	opts := Default()
	if err := kdl.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	opts.ResolveLegacyMode()
	applyMillisecondOverrides(opts, data)
	return opts, nil
}

// msOverrides mirrors the handful of duration fields Options keeps off
// the direct kdl-tag path (time.Duration has no single KDL scalar
// mapping), read from their millisecond-int sibling keys instead.
type msOverrides struct {
	OutputSilenceToIdleMs int `kdl:"output-silence-to-idle-ms"`
	ApprovalDebounceMs    int `kdl:"approval-debounce-ms"`
	EchoGraceMs           int `kdl:"echo-grace-ms"`
	IpcBackoffCapMs       int `kdl:"ipc-backoff-cap-ms"`
	UserInputDebounceMs   int `kdl:"user-input-debounce-ms"`
}

func applyMillisecondOverrides(opts *Options, data []byte) {
	var ms msOverrides
	if err := kdl.Unmarshal(data, &ms); err != nil {
		return
	}
	if ms.OutputSilenceToIdleMs > 0 {
		opts.OutputSilenceToIdle = time.Duration(ms.OutputSilenceToIdleMs) * time.Millisecond
	}
	if ms.ApprovalDebounceMs > 0 {
		opts.ApprovalDebounce = time.Duration(ms.ApprovalDebounceMs) * time.Millisecond
	}
	if ms.EchoGraceMs > 0 {
		opts.EchoGrace = time.Duration(ms.EchoGraceMs) * time.Millisecond
	}
	if ms.IpcBackoffCapMs > 0 {
		opts.IpcBackoffCap = time.Duration(ms.IpcBackoffCapMs) * time.Millisecond
	}
	if ms.UserInputDebounceMs > 0 {
		opts.UserInputDebounce = time.Duration(ms.UserInputDebounceMs) * time.Millisecond
	}
}
