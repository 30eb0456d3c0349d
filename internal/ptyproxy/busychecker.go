package ptyproxy

import (
	"context"
	"sync"
	"time"

	"github.com/trust-delta/tmai/internal/tmux"
)

// busyCheckInterval bounds how often the wrapped child's process tree
// is re-snapshotted for the PID-tree busy check; OnOutput can fire far
// more often than a `ps` call is worth.
const busyCheckInterval = 250 * time.Millisecond

// newBusyChecker caches a process-table lookup for the wrapped child,
// grounded the same way component F's poller avoids a subprocess per
// classification. ps is unavailable on Windows; tmux.LoadProcessTable
// returns an empty table on that error, so the check just never fires
// there rather than failing the runner.
func newBusyChecker(ctx context.Context, pid int) func() bool {
	tc := tmux.New()
	var (
		mu     sync.Mutex
		at     time.Time
		cached bool
	)
	return func() bool {
		mu.Lock()
		defer mu.Unlock()
		if time.Since(at) < busyCheckInterval {
			return cached
		}
		pt := tc.LoadProcessTable(ctx)
		cached = pt.HasDescendantComm(pid, tmux.BusyIndicatorComm)
		at = time.Now()
		return cached
	}
}
