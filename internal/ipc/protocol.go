// Package ipc implements component E: the parent-side Unix domain
// socket listener and child-side client that carry state pushes and
// keystroke injection between the PTY-proxy runner and the monitor.
//
// The wire format is newline-delimited JSON, one Frame per line — this
// differs from the teacher's custom ";;"-terminated verb protocol
// (internal/protocol/parser.go) because spec §4.E mandates JSON-lines,
// but the surrounding idiom (accept loop, one reader/one writer
// goroutine per connection, mutex-guarded registry) is kept.
package ipc

import (
	"encoding/base64"
	"encoding/json"

	"github.com/trust-delta/tmai/internal/agentstate"
)

// Kind discriminates a Frame's payload.
type Kind string

const (
	KindRegister   Kind = "register"
	KindState      Kind = "state"
	KindUnregister Kind = "unregister"
	KindSendKeys   Kind = "send_keys"
	KindPing       Kind = "ping"
	KindPong       Kind = "pong"
)

// RegisterPayload is sent child -> parent on connect.
type RegisterPayload struct {
	PaneKey   agentstate.PaneKey   `json:"pane_key"`
	PID       int                  `json:"pid"`
	AgentKind agentstate.AgentKind `json:"agent_kind"`
	Cmdline   string               `json:"cmdline"`
}

// UnregisterPayload is sent child -> parent on clean exit.
type UnregisterPayload struct {
	PaneKey agentstate.PaneKey `json:"pane_key"`
}

// SendKeysPayload is sent parent -> child; Bytes is base64-encoded raw
// bytes to write into the PTY master.
type SendKeysPayload struct {
	Bytes string `json:"bytes"`
}

// EncodeSendKeys base64-encodes raw bytes for a SendKeys frame.
func EncodeSendKeys(raw []byte) SendKeysPayload {
	return SendKeysPayload{Bytes: base64.StdEncoding.EncodeToString(raw)}
}

// Decode returns the raw bytes carried by a SendKeys frame.
func (p SendKeysPayload) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Bytes)
}

// Frame is one newline-delimited JSON line of the wire protocol. Only
// the field matching Kind is populated.
type Frame struct {
	Kind       Kind                     `json:"kind"`
	Register   *RegisterPayload         `json:"register,omitempty"`
	State      *agentstate.StateRecord  `json:"state,omitempty"`
	Unregister *UnregisterPayload       `json:"unregister,omitempty"`
	SendKeys   *SendKeysPayload         `json:"send_keys,omitempty"`
}

func (f Frame) MarshalLine() ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func UnmarshalLine(line []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(line, &f)
	return f, err
}

func RegisterFrame(p RegisterPayload) Frame   { return Frame{Kind: KindRegister, Register: &p} }
func StateFrame(s agentstate.StateRecord) Frame { return Frame{Kind: KindState, State: &s} }
func UnregisterFrame(p UnregisterPayload) Frame { return Frame{Kind: KindUnregister, Unregister: &p} }
func SendKeysFrame(p SendKeysPayload) Frame   { return Frame{Kind: KindSendKeys, SendKeys: &p} }
func PingFrame() Frame                        { return Frame{Kind: KindPing} }
func PongFrame() Frame                        { return Frame{Kind: KindPong} }
