package ipc

import (
	"bufio"
	"context"
	"log"
	"net"
	"os"
	"sync"

	"github.com/trust-delta/tmai/internal/agentstate"
)

// conn is one accepted connection: a reader goroutine decodes incoming
// Frames, a writer goroutine drains an outbound channel. Registered
// under the registry's lock once its Register frame arrives.
type conn struct {
	netConn net.Conn
	paneKey agentstate.PaneKey
	outbox  chan Frame
	closed  chan struct{}
	once    sync.Once
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.netConn.Close()
	})
}

// Server is the parent-side listener on <state_dir>/control.sock. It
// maintains a registry of live connections keyed by pane_key (exclusive
// write, many readers) and dispatches incoming State/Register/Unregister
// frames to the supplied handler.
type Server struct {
	logger *log.Logger

	mu    sync.RWMutex
	conns map[agentstate.PaneKey]*conn

	onRegister   func(RegisterPayload)
	onState      func(agentstate.PaneKey, agentstate.StateRecord)
	onUnregister func(agentstate.PaneKey)

	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer builds a Server; set the On* callbacks before calling Serve.
func NewServer(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stderr, "ipc: ", log.LstdFlags)
	}
	return &Server{logger: logger, conns: make(map[agentstate.PaneKey]*conn)}
}

func (s *Server) OnRegister(f func(RegisterPayload))                        { s.onRegister = f }
func (s *Server) OnState(f func(agentstate.PaneKey, agentstate.StateRecord)) { s.onState = f }
func (s *Server) OnUnregister(f func(agentstate.PaneKey))                   { s.onUnregister = f }

// Serve accepts connections on socketPath until ctx is cancelled. The
// caller is responsible for removing any stale socket file first.
func (s *Server) Serve(ctx context.Context, socketPath string) error {
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	s.listener = ln

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		s.closeAll()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return ErrServerClosed
			default:
				return err
			}
		}
		s.wg.Add(1)
		go s.handleConn(ctx, nc)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.close()
	}
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	defer s.wg.Done()
	c := &conn{netConn: nc, outbox: make(chan Frame, 16), closed: make(chan struct{})}
	defer c.close()

	go s.writerLoop(c)

	scanner := bufio.NewScanner(nc)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		frame, err := UnmarshalLine(scanner.Bytes())
		if err != nil {
			s.logger.Printf("malformed frame: %v", err)
			continue
		}
		s.dispatch(c, frame)
	}

	if c.paneKey != "" {
		s.unregisterConn(c)
	}
}

func (s *Server) writerLoop(c *conn) {
	for {
		select {
		case <-c.closed:
			return
		case f := <-c.outbox:
			line, err := f.MarshalLine()
			if err != nil {
				continue
			}
			if _, err := c.netConn.Write(line); err != nil {
				c.close()
				return
			}
		}
	}
}

func (s *Server) dispatch(c *conn, f Frame) {
	switch f.Kind {
	case KindRegister:
		if f.Register == nil {
			return
		}
		s.registerConn(c, f.Register.PaneKey)
		if s.onRegister != nil {
			s.onRegister(*f.Register)
		}
	case KindState:
		if f.State == nil || c.paneKey == "" {
			return
		}
		if s.onState != nil {
			s.onState(c.paneKey, *f.State)
		}
	case KindUnregister:
		if f.Unregister == nil {
			return
		}
		s.unregisterConn(c)
		if s.onUnregister != nil {
			s.onUnregister(f.Unregister.PaneKey)
		}
	case KindPing:
		select {
		case c.outbox <- PongFrame():
		default:
		}
	}
}

// registerConn implements the reconnection semantics of spec §4.E:
// when a new connection registers for a pane_key that already has a
// live connection, the old one is closed and discarded before the new
// one is installed.
func (s *Server) registerConn(c *conn, pane agentstate.PaneKey) {
	s.mu.Lock()
	if old, ok := s.conns[pane]; ok && old != c {
		old.close()
	}
	c.paneKey = pane
	s.conns[pane] = c
	s.mu.Unlock()
}

func (s *Server) unregisterConn(c *conn) {
	s.mu.Lock()
	if cur, ok := s.conns[c.paneKey]; ok && cur == c {
		delete(s.conns, c.paneKey)
	}
	s.mu.Unlock()
}

// SendKeys performs a lock-free snapshot read of the registry and
// enqueues a SendKeys frame on the matching connection's outbox.
func (s *Server) SendKeys(pane agentstate.PaneKey, raw []byte) error {
	s.mu.RLock()
	c, ok := s.conns[pane]
	s.mu.RUnlock()
	if !ok {
		return ErrNotRegistered
	}
	frame := SendKeysFrame(EncodeSendKeys(raw))
	select {
	case c.outbox <- frame:
		return nil
	case <-c.closed:
		return ErrConnectionClosed
	}
}

// Connected reports whether pane currently has a live connection.
func (s *Server) Connected(pane agentstate.PaneKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conns[pane]
	return ok
}
