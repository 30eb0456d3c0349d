//go:build unix

package ptyproxy

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
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
	Command    []string
	PaneKey    agentstate.PaneKey
	StateDir   string
	Config     *config.Options
	OnExfil    func(exfil.Finding)
	Logger     *tmailog.Logger
}

// Run spawns args[0] under a PTY, duplexes I/O with the controlling
// terminal, and runs the classify/debounce/IPC pipeline until the
// child exits or ctx is cancelled. It returns the child's exit code.
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

	c := newExecCmd(command, args...)
	ptmx, err := pty.Start(c)
	if err != nil {
		return 1, fmt.Errorf("ptyproxy: start pty: %w", err)
	}
	defer ptmx.Close()

	width, height := 80, 24
	if w, h, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
		width, height = w, h
	}
	_ = pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(height), Cols: uint16(width)})

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return 1, fmt.Errorf("ptyproxy: set raw mode: %w", err)
	}
	defer func() { _ = term.Restore(int(os.Stdin.Fd()), oldState) }()

	sizeCh := make(chan os.Signal, 1)
	signal.Notify(sizeCh, syscall.SIGWINCH)
	defer signal.Stop(sizeCh)

	screen := NewScreen(width, height)
	persister := NewFileStatePersister(opts.StateDir, opts.PaneKey)

	client := ipc.NewClient(opts.StateDir+"/control.sock", opts.Config.IpcBackoffCap)
	outgoing := make(chan ipc.Frame, 16)
	client.OnSendKeys = func(raw []byte) {
		_, _ = ptmx.Write(raw)
	}

	engine := NewEngine(kind, opts.PaneKey, c.Process.Pid, screen, EngineConfig{
		OutputSilenceToIdle: opts.Config.OutputSilenceToIdle,
		ApprovalDebounce:    opts.Config.ApprovalDebounce,
		EchoGrace:           opts.Config.EchoGrace,
	}, client, persister, nil, newBusyChecker(ctx, c.Process.Pid))

	clientCtx, cancelClient := context.WithCancel(ctx)
	defer cancelClient()
	go client.Run(clientCtx, ipc.RegisterPayload{
		PaneKey:   opts.PaneKey,
		PID:       c.Process.Pid,
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

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case <-sizeCh:
				w, h, err := term.GetSize(int(os.Stdin.Fd()))
				if err != nil {
					continue
				}
				if err := pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(h), Cols: uint16(w)}); err != nil {
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

	select {
	case <-ctx.Done():
		if c.Process != nil {
			_ = c.Process.Signal(syscall.SIGINT)
		}
	case <-done:
	}

	cancelTick()
	if exfilScanner != nil {
		exfilScanner.Flush()
	}
	_ = c.Wait()
	wg.Wait()
	engine.Shutdown()
	cancelClient()

	if c.ProcessState != nil {
		return c.ProcessState.ExitCode(), nil
	}
	return 0, nil
}

// writeStaircase re-emits bare LF as CR+LF to the user TTY (spec
// §4.D's staircase-newline fix); the raw chunk fed to the scanner/
// engine above retains bare LF.
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
