package ipc

import "errors"

var (
	ErrConnectionClosed = errors.New("ipc: connection closed")
	ErrNotRegistered    = errors.New("ipc: pane has no live connection")
	ErrServerClosed     = errors.New("ipc: server closed")
)
