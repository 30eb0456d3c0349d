package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/audit"
	"github.com/trust-delta/tmai/internal/autoapprove"
	"github.com/trust-delta/tmai/internal/ipc"
	"github.com/trust-delta/tmai/internal/monitor"
	"github.com/trust-delta/tmai/internal/ptyproxy"
	"github.com/trust-delta/tmai/internal/sender"
	"github.com/trust-delta/tmai/internal/tmailog"
	"github.com/trust-delta/tmai/internal/tmux"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the polling monitor, wiring auto-approve, the audit log, and the status websocket",
	RunE:  runMonitor,
}

func init() {
	monitorCmd.Flags().String("listen", "127.0.0.1:4317", "address the status websocket listens on")
	monitorCmd.Flags().Bool("no-http", false, "disable the websocket status server")
}

// runMonitor wires every previously-built collaborator into one
// running process: tmux enumeration feeds the poll loop (component F),
// which consults the IPC registry (component E) attached to it, hands
// AwaitingApproval prompts to the auto-approve engine (component G),
// and logs every transition to the audit trail (component H). It
// mirrors cmd/agnt/run.go's top-level shape: build collaborators,
// start background goroutines, block on a cancellable context, flush
// on the way out.
func runMonitor(cmd *cobra.Command, args []string) error {
	stateDir := resolveStateDir(cmd)
	if err := ptyproxy.EnsureStateDir(stateDir); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.ResolveLegacyMode()

	logger := tmailog.New(os.Stderr, "monitor")

	// auditLogger stays a nil *audit.Logger, never boxed into one of
	// the AuditSink interfaces below, when auditing is off: a
	// typed-nil interface value is non-nil and would panic the first
	// time a collaborator called Log on it.
	var auditLogger *audit.Logger
	if cfg.Audit.Enabled {
		auditPath := filepath.Join(stateDir, "audit.ndjson")
		auditLogger, err = audit.New(auditPath, cfg.Audit.MaxSizeBytes, logger)
		if err != nil {
			return err
		}
		defer auditLogger.Close()
	}

	var monitorAudit monitor.AuditSink
	var engineAudit autoapprove.AuditSink
	var senderAudit sender.AuditSink
	if auditLogger != nil {
		monitorAudit = auditLogger
		engineAudit = auditLogger
		senderAudit = auditLogger
	}

	tc := tmux.New()
	mon := monitor.New(tc, cfg, monitorAudit, logger)

	ipcLogger := log.New(os.Stderr, "[ipc] ", log.LstdFlags)
	ipcServer := ipc.NewServer(ipcLogger)
	mon.AttachIPC(ipcServer)

	resolve := func(pane agentstate.PaneKey) (string, bool) {
		return string(pane), pane != ""
	}
	send := sender.New(ipcServer, tc, resolve)

	var engine *autoapprove.Engine
	if cfg.AutoApprove.Mode != "" {
		judge, err := autoapprove.BuildJudge(cfg.AutoApprove)
		if err != nil {
			return err
		}
		engine = autoapprove.New(cfg, judge, send, engineAudit)
	}

	latest := newStatusBoard()
	send.AttachAudit(senderAudit, latest.lookup, cfg.UserInputDebounce)

	hub := monitor.NewHub(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopCh := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stopCh)
	}()

	snaps := mon.Subscribe()
	go hub.Run(stopCh)
	go hub.Feed(snaps, stopCh)
	go feedStatusBoard(latest, mon, engine, stopCh)

	noHTTP, _ := cmd.Flags().GetBool("no-http")
	if !noHTTP {
		listen, _ := cmd.Flags().GetString("listen")
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			if err := hub.Upgrade(w, r); err != nil {
				logger.Errorf("websocket upgrade: %v", err)
			}
		})
		srv := &http.Server{Addr: listen, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("status server: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	socketPath := filepath.Join(stateDir, "tmai.sock")
	_ = os.Remove(socketPath)
	if err := ipcServer.Serve(ctx, socketPath); err != nil && err != ipc.ErrServerClosed {
		return err
	}
	return nil
}
