//go:build windows

package ptyproxy

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/aymanbagabas/go-pty"
	"golang.org/x/term"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/config"
	"github.com/trust-delta/tmai/internal/detect"
	"github.com/trust-delta/tmai/internal/exfil"
	"github.com/trust-delta/tmai/internal/ipc"
	"github.com/trust-delta/tmai/internal/tmailog"
)

// Options configures one Run invocation of the wrap runner.
type Options struct {
	Command  []string
	PaneKey  agentstate.PaneKey
	StateDir string
	Config   *config.Options
	OnExfil  func(exfil.Finding)
	Logger   *tmailog.Logger
}

// Run spawns args[0] under a ConPTY and duplexes I/O with the console
// until the child exits or ctx is cancelled, mirroring the Unix
// runner's pipeline (no SIGWINCH on Windows, so resize is polled).
func Run(ctx context.Context, opts Options) (int, error) {
	if opts.Logger == nil {
		opts.Logger = tmailog.New(os.Stderr, "wrap")
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.PaneKey == "" {
		opts.PaneKey = agentstate.PaneKey(fmt.Sprintf("wrap.%d", os.Getpid()))
	}
	if opts.StateDir == "" {
		opts.StateDir = DefaultStateDir()
	}
	if err := EnsureStateDir(opts.StateDir); err != nil {
		return 1, err
	}

	command := opts.Command[0]
	args := opts.Command[1:]
	kind := detect.KindFromCmdline(command)

	width, height := getTerminalSize()

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return 1, fmt.Errorf("ptyproxy: set raw mode: %w", err)
	}
	defer func() { _ = term.Restore(int(os.Stdin.Fd()), oldState) }()

	ptmx, err := pty.New()
	if err != nil {
		return 1, fmt.Errorf("ptyproxy: create pty: %w", err)
	}
	defer ptmx.Close()
	_ = ptmx.Resize(width, height)

	cmdPath, err := exec.LookPath(command)
	if err != nil {
		return 1, fmt.Errorf("ptyproxy: command not found: %s", command)
	}
	cmd := ptmx.Command(cmdPath, args...)
	if err := cmd.Start(); err != nil {
		return 1, fmt.Errorf("ptyproxy: start process: %w", err)
	}

	screen := NewScreen(width, height)
	persister := NewFileStatePersister(opts.StateDir, opts.PaneKey)

	client := ipc.NewClient(opts.StateDir+"\\control.sock", opts.Config.IpcBackoffCap)
	outgoing := make(chan ipc.Frame, 16)
	client.OnSendKeys = func(raw []byte) {
		_, _ = ptmx.Write(raw)
	}

	engine := NewEngine(kind, opts.PaneKey, cmd.Process.Pid, screen, EngineConfig{
		OutputSilenceToIdle: opts.Config.OutputSilenceToIdle,
		ApprovalDebounce:    opts.Config.ApprovalDebounce,
		EchoGrace:           opts.Config.EchoGrace,
	}, client, persister, nil, newBusyChecker(ctx, cmd.Process.Pid))

	clientCtx, cancelClient := context.WithCancel(ctx)
	defer cancelClient()
	go client.Run(clientCtx, ipc.RegisterPayload{
		PaneKey:   opts.PaneKey,
		PID:       cmd.Process.Pid,
		AgentKind: kind,
		Cmdline:   fmt.Sprintf("%s %v", command, args),
	}, outgoing)

	var exfilScanner *exfil.Scanner
	if opts.Config.Exfil.Enabled {
		exfilScanner = exfil.New(opts.Config.Exfil.AdditionalCommands, opts.OnExfil)
	}

	tickCtx, cancelTick := context.WithCancel(ctx)
	defer cancelTick()
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				engine.Tick()
			}
		}
	}()

	var wg sync.WaitGroup
	done := make(chan struct{})

	// Windows has no SIGWINCH; poll the console size instead.
	wg.Add(1)
	go func() {
		defer wg.Done()
		lastW, lastH := width, height
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				w, h := getTerminalSize()
				if w == lastW && h == lastH {
					continue
				}
				lastW, lastH = w, h
				if err := ptmx.Resize(w, h); err != nil {
					opts.Logger.Errorf("resize pty: %v", err)
				}
				screen.Resize(w, h)
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				chunk := buf[:n]
				engine.OnInput()
				if exfilScanner != nil {
					_, _ = exfilScanner.Write(chunk)
				}
				if _, werr := ptmx.Write(chunk); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 4096)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				chunk := buf[:n]
				screen.Write(chunk)
				engine.OnOutput(chunk)
				writeStaircase(os.Stdout, chunk)
			}
			if err != nil {
				close(done)
				return
			}
		}
	}()

	processExited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(processExited)
		ptmx.Close()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	case <-done:
	case <-processExited:
	}

	cancelTick()
	if exfilScanner != nil {
		exfilScanner.Flush()
	}
	wg.Wait()
	engine.Shutdown()
	cancelClient()

	return 0, nil
}

func getTerminalSize() (width, height int) {
	if w, h, err := term.GetSize(int(os.Stdin.Fd())); err == nil && w > 0 && h > 0 {
		return w, h
	}
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && h > 0 {
		return w, h
	}
	return 80, 24
}

// writeStaircase re-emits bare LF as CR+LF, matching the Unix runner's
// output rewrite.
func writeStaircase(w io.Writer, chunk []byte) {
	start := 0
	for i, b := range chunk {
		if b != '\n' {
			continue
		}
		if i == 0 || chunk[i-1] != '\r' {
			w.Write(chunk[start:i])
			w.Write([]byte("\r\n"))
			start = i + 1
		}
	}
	if start < len(chunk) {
		w.Write(chunk[start:])
	}
}
