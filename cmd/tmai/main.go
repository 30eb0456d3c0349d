// Command tmai monitors a set of AI coding agent CLIs running inside a
// terminal multiplexer and gives their operator one place to see and
// answer their prompts. See cmd/agnt/main.go for the layout this
// mirrors: a cobra root with one subcommand per file.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

const appName = "tmai"

// appVersion can be overridden at build time with
// -ldflags="-X main.appVersion=x.y.z"
var appVersion = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     appName,
	Short:   "Monitor and auto-approve AI coding agents running in a terminal multiplexer",
	Version: appVersion,
	Long: `tmai watches AI coding assistants (Claude Code, Codex, Gemini, and
others) running inside tmux panes, classifies each one's state
(processing, idle, awaiting approval, error), and gives you a single
place to review and answer their prompts — optionally auto-approving
the ones a rule or an AI judge trusts.`,
}

func init() {
	rootCmd.PersistentFlags().String("state-dir", "", "State directory (default: $XDG_RUNTIME_DIR/tmai or /tmp/tmai-<uid>)")
	rootCmd.PersistentFlags().String("config", "", "Path to a .tmai.kdl config file (default: ./.tmai.kdl if present)")

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(wrapCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
