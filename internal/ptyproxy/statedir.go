package ptyproxy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/trust-delta/tmai/internal/agentstate"
)

// DefaultStateDir resolves the state directory per spec §6: prefer
// $XDG_RUNTIME_DIR/tmai, fall back to /tmp/tmai-<uid>.
func DefaultStateDir() string {
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, "tmai")
	}
	return fmt.Sprintf("/tmp/tmai-%d", os.Getuid())
}

// EnsureStateDir implements the idempotent create-and-verify sequence
// spec §4.D names: mkdir-if-absent, stat, verify owner uid and that the
// path is not a symlink; repair mode bits on a pre-existing owned
// directory, fail otherwise.
func EnsureStateDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil && !os.IsExist(err) {
		return fmt.Errorf("ptyproxy: create state dir: %w", err)
	}

	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("ptyproxy: stat state dir: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("ptyproxy: state dir %s is a symlink", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("ptyproxy: state dir %s is not a directory", path)
	}
	if err := verifyOwner(path, info); err != nil {
		return err
	}
	if info.Mode().Perm() != 0o700 {
		if err := os.Chmod(path, 0o700); err != nil {
			return fmt.Errorf("ptyproxy: repair state dir mode: %w", err)
		}
	}
	return nil
}

// FileStatePersister writes <state_dir>/<pane_key>.json, the
// convenience snapshot for consumers without an IPC connection.
type FileStatePersister struct {
	path string
}

// NewFileStatePersister builds a persister for one pane under dir.
func NewFileStatePersister(dir string, pane agentstate.PaneKey) *FileStatePersister {
	name := filepath.Clean(string(pane))
	name = filepath.Base(name) // pane keys may contain ':' and '.', never '/'
	return &FileStatePersister{path: filepath.Join(dir, name+".json")}
}

// Persist writes rec as the current state file, overwriting any prior
// content. Writes are not atomic-renamed: spec §4.H allows losing the
// tail on process kill, and this file is a best-effort convenience.
func (p *FileStatePersister) Persist(rec agentstate.StateRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o600)
}

// Remove unlinks the state file on the runner's exit path (spec §4.D
// step 9). A missing file is not an error.
func (p *FileStatePersister) Remove() error {
	err := os.Remove(p.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
