// Package audit implements component H: the append-only line-delimited
// JSON event log, with size-based rotation and a bounded
// multi-producer single-consumer channel feeding the one task that
// owns the file.
//
// Grounded on the teacher's internal/daemon/daemon.go proxyEvents
// channel: a fixed-size buffered channel fed by non-blocking sends
// (`select { case ch <- v: default: log warning }`), generalized from
// "drop the newest event and warn" to spec §4.H/§5's "drop oldest with
// a counter, never block producers" by always making room for the
// newest event instead of discarding it.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/trust-delta/tmai/internal/agentstate"
	"github.com/trust-delta/tmai/internal/tmailog"
)

const defaultQueueSize = 256

// Logger is the single writer task described in spec §5: "Audit log
// file: owned exclusively by the logger task; other tasks send events
// through a bounded channel."
type Logger struct {
	path         string
	maxSizeBytes int64
	logger       *tmailog.Logger

	queue   chan agentstate.AuditEvent
	dropped atomic.Int64

	mu   sync.Mutex
	file *os.File
	size int64

	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// New opens (creating if absent) the ndjson file at path and starts
// the writer goroutine. maxSizeBytes <= 0 disables rotation.
func New(path string, maxSizeBytes int64, logger *tmailog.Logger) (*Logger, error) {
	if logger == nil {
		logger = tmailog.New(nil, "audit")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create log dir: %w", err)
	}
	f, size, err := openAppend(path)
	if err != nil {
		return nil, err
	}

	l := &Logger{
		path:         path,
		maxSizeBytes: maxSizeBytes,
		logger:       logger,
		queue:        make(chan agentstate.AuditEvent, defaultQueueSize),
		file:         f,
		size:         size,
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	go l.run()
	return l, nil
}

func openAppend(path string) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("audit: stat log file: %w", err)
	}
	return f, info.Size(), nil
}

// Log enqueues an event for the writer task. Never blocks: spec §5's
// "backpressure drops oldest on overflow, with a counter" is
// implemented by discarding the oldest queued event and retrying the
// send for the new one when the queue is full.
func (l *Logger) Log(e agentstate.AuditEvent) {
	select {
	case l.queue <- e:
		return
	default:
	}
	select {
	case <-l.queue:
		l.dropped.Add(1)
	default:
	}
	select {
	case l.queue <- e:
	default:
		l.dropped.Add(1)
	}
}

// Dropped returns the running count of events discarded due to
// overflow, for diagnostics/metrics surfaces.
func (l *Logger) Dropped() int64 { return l.dropped.Load() }

func (l *Logger) run() {
	defer close(l.stopped)
	for {
		select {
		case e := <-l.queue:
			l.write(e)
		case <-l.done:
			l.drain()
			return
		}
	}
}

func (l *Logger) drain() {
	for {
		select {
		case e := <-l.queue:
			l.write(e)
		default:
			return
		}
	}
}

func (l *Logger) write(e agentstate.AuditEvent) {
	line, err := json.Marshal(e)
	if err != nil {
		l.logger.Errorf("marshal event: %v", err)
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxSizeBytes > 0 && l.size+int64(len(line)) > l.maxSizeBytes {
		l.rotateLocked()
	}

	n, err := l.file.Write(line)
	if err != nil {
		l.logger.Errorf("write event: %v", err)
		return
	}
	l.size += int64(n)
}

// rotateLocked implements spec §4.H: rename the current file to .1
// (replacing any prior .1) and open a fresh file. Called with l.mu
// held.
func (l *Logger) rotateLocked() {
	if err := l.file.Close(); err != nil {
		l.logger.Errorf("close before rotate: %v", err)
	}
	rotated := l.path + ".1"
	if err := os.Rename(l.path, rotated); err != nil && !os.IsNotExist(err) {
		l.logger.Errorf("rotate log: %v", err)
	}
	f, size, err := openAppend(l.path)
	if err != nil {
		l.logger.Errorf("reopen after rotate: %v", err)
		return
	}
	l.file = f
	l.size = size
}

// Close stops the writer task after draining any queued events and
// closes the underlying file. Spec §5: "its last act is to close the
// IPC server and flush the audit logger."
func (l *Logger) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	<-l.stopped
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
