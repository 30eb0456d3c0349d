package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/detect"
	"github.com/trust-delta/tmai/internal/scanner"
	"github.com/trust-delta/tmai/internal/tmux"
)

// statusCmd is a supplemented feature, not named by the distilled
// component list: a one-shot JSON snapshot of every classified pane,
// for scripting and for operators who don't want the websocket surface
// running. Grounded on internal/overlay/status.go's "one fetch, print,
// exit" shape, generalized from "one daemon's status" to "every pane's
// classification".
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a one-shot JSON snapshot of every classified agent pane",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Int("capture-lines", 30, "tail lines captured per pane before classification")
}

func runStatus(cmd *cobra.Command, args []string) error {
	captureLines, _ := cmd.Flags().GetInt("capture-lines")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if captureLines <= 0 {
		captureLines = cfg.CaptureLines
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tc := tmux.New()
	panes, err := tc.ListPanes(ctx)
	if err != nil {
		return fmt.Errorf("status: list panes: %w", err)
	}
	processTable := tc.LoadProcessTable(ctx)

	records := make([]agentstate.AgentRecord, 0, len(panes))
	for _, p := range panes {
		kind := detect.KindFromCmdline(p.Command)
		lines, _ := tc.CapturePane(ctx, p.Target, captureLines)
		frame := scanner.Scan(p.Title, lines)
		busy := processTable.HasDescendantComm(p.PID, tmux.BusyIndicatorComm)
		result := detect.For(kind).Classify(frame, nil, busy)

		records = append(records, agentstate.AgentRecord{
			PaneKey:    agentstate.PaneKey(p.Target),
			Kind:       kind,
			PID:        p.PID,
			Cmdline:    p.Command,
			WorkingDir: p.Path,
			Title:      p.Title,
			Lines:      lines,
			Status:     result.Status,
			UpdatedAt:  time.Now(),
		})
	}

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
