package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/trust-delta/tmai/internal/config"
	"github.com/trust-delta/tmai/internal/ptyproxy"
)

// loadConfig resolves the --config flag (falling back to ./.tmai.kdl
// when present) and returns Default() untouched when neither exists,
// mirroring the teacher's "config file is optional, defaults always
// apply" stance (internal/config/agnt.go's DefaultAgntConfig).
func loadConfig(cmd *cobra.Command) (*config.Options, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.FileName
		if _, err := os.Stat(path); err != nil {
			return config.Default(), nil
		}
	}
	return config.LoadFile(path)
}

// resolveStateDir applies the --state-dir flag over
// ptyproxy.DefaultStateDir()'s XDG_RUNTIME_DIR/tmp fallback.
func resolveStateDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("state-dir")
	if dir != "" {
		return dir
	}
	return ptyproxy.DefaultStateDir()
}
