package main

import (
	"context"
	"sync"
	"time"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/autoapprove"
	"github.com/trust-delta/tmai/internal/monitor"
)

// shutdownGrace bounds how long the status HTTP server waits for
// in-flight requests to drain on SIGINT/SIGTERM.
const shutdownGrace = 2 * time.Second

// statusBoard keeps the most recently published snapshot around so
// the sender's UserInputDuringProcessing check and `tmai status` can
// both answer "what does this pane look like right now" without a
// dedicated round-trip through the poll loop.
type statusBoard struct {
	mu    sync.RWMutex
	byKey map[agentstate.PaneKey]agentstate.AgentStatus
	snap  monitor.Snapshot
}

func newStatusBoard() *statusBoard {
	return &statusBoard{byKey: make(map[agentstate.PaneKey]agentstate.AgentStatus)}
}

func (b *statusBoard) lookup(pane agentstate.PaneKey) agentstate.AgentStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.byKey[pane]
}

func (b *statusBoard) update(snap monitor.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap = snap
	b.byKey = make(map[agentstate.PaneKey]agentstate.AgentStatus, len(snap.Agents))
	for _, rec := range snap.Agents {
		b.byKey[rec.PaneKey] = rec.Status
	}
}

func (b *statusBoard) current() monitor.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// feedStatusBoard mirrors each published snapshot into the board and,
// when an auto-approve engine is wired, offers every AwaitingApproval
// pane to it. It is the monitor command's glue between component F's
// publications and component G's Consider, since Monitor itself stays
// unaware that auto-approve exists (spec §4.F/§4.G are separate
// collaborators wired together only here).
func feedStatusBoard(board *statusBoard, mon *monitor.Monitor, engine *autoapprove.Engine, stop <-chan struct{}) {
	ch := mon.Subscribe()
	for {
		select {
		case <-stop:
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			board.update(snap)
			if engine == nil {
				continue
			}
			for _, rec := range snap.Agents {
				if rec.Status.Kind != agentstate.StatusAwaitingApproval {
					engine.Clear(rec.PaneKey)
					continue
				}
				engine.Consider(context.Background(), rec.PaneKey, rec.Status, rec.Lines, false)
			}
		}
	}
}
