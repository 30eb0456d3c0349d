package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/ptyproxy"
	"github.com/trust-delta/tmai/internal/tmailog"
)

// wrapCmd is component D's entry point: run a single agent CLI under
// a PTY with the classify/debounce/IPC pipeline attached. Flag parsing
// is disabled, same as cmd/agnt/run.go's `run`, since everything after
// the subcommand name belongs to the wrapped program, not to tmai.
var wrapCmd = &cobra.Command{
	Use:                "wrap <command> [args...]",
	Short:              "Run an agent CLI under a PTY, publishing its state over IPC",
	DisableFlagParsing: true,
	Args:               cobra.MinimumNArgs(1),
	RunE:               runWrap,
}

func runWrap(cmd *cobra.Command, rawArgs []string) error {
	paneKey, stateDir, command, err := parseWrapArgs(rawArgs)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.ResolveLegacyMode()

	if stateDir == "" {
		stateDir = resolveStateDir(cmd)
	}
	if err := ptyproxy.EnsureStateDir(stateDir); err != nil {
		return err
	}

	logger := tmailog.New(os.Stderr, "wrap")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code, err := ptyproxy.Run(ctx, ptyproxy.Options{
		Command:  command,
		PaneKey:  agentstate.PaneKey(paneKey),
		StateDir: stateDir,
		Config:   cfg,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	os.Exit(code)
	return nil
}

// parseWrapArgs scans rawArgs for tmai's own --pane/--state-dir flags
// (DisableFlagParsing means cobra never sees them) and returns
// everything after them as the wrapped command line, mirroring
// cmd/agnt/run.go's runCommand manual scan.
func parseWrapArgs(rawArgs []string) (paneKey, stateDir string, command []string, err error) {
	i := 0
	for i < len(rawArgs) {
		switch rawArgs[i] {
		case "--pane":
			if i+1 >= len(rawArgs) {
				return "", "", nil, fmt.Errorf("wrap: --pane requires a value")
			}
			paneKey = rawArgs[i+1]
			i += 2
		case "--state-dir":
			if i+1 >= len(rawArgs) {
				return "", "", nil, fmt.Errorf("wrap: --state-dir requires a value")
			}
			stateDir = rawArgs[i+1]
			i += 2
		case "--":
			i++
			return paneKey, stateDir, rawArgs[i:], nil
		default:
			return paneKey, stateDir, rawArgs[i:], nil
		}
	}
	return "", "", nil, fmt.Errorf("wrap: no command given")
}
