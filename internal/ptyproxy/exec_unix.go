//go:build unix

package ptyproxy

import "os/exec"

func newExecCmd(name string, args ...string) *exec.Cmd {
	// Don't set Setpgid - it's blocked by seccomp in some sandboxed
	// environments; process-group management isn't needed for an
	// interactive wrap session.
	return exec.Command(name, args...)
}
