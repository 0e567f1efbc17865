// Package transport carries semihosting CALL/RETN containers over a
// plain TCP connection: one connection per guest instance, one
// in-flight request at a time per connection, mirroring the single-
// threaded-per-instance contract internal/host.Session already assumes.
//
// Real ARM semihosting reaches guest memory through a debugger or
// emulator; this bridge instead treats the connection itself as the
// addressable region internal/host.MemoryAccess expects, so the two
// ReadBlock calls process() makes per request (header, then full
// container) read progressively further into the same stream rather
// than re-reading a shared memory window.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/johnwbyrd/semihost/internal/host"
)

// SessionFactory builds a fresh Session for an accepted connection,
// given the session ID and the connection's MemoryAccess view. Each
// connection gets its own Backend (and therefore its own handle table
// and sandbox root/policy), since internal/sandbox.Backend and
// pkg/backend/s3backend.Backend are not safe for concurrent sessions to
// share.
type SessionFactory func(id string, mem host.MemoryAccess) (*host.Session, error)

// Server accepts TCP connections and runs one internal/host.Session per
// connection until the guest disconnects.
type Server struct {
	listener net.Listener
	newSess  SessionFactory
	onAccept func(s *host.Session)
	onClose  func(id string)

	shutdown chan struct{}
	closeOne sync.Once
	wg       sync.WaitGroup
}

// NewServer builds a Server. onAccept and onClose, if non-nil, are
// called as connections arrive/depart, letting the caller register the
// session with pkg/api.SessionRegistry without this package depending
// on it.
func NewServer(newSess SessionFactory, onAccept func(*host.Session), onClose func(id string)) *Server {
	return &Server{
		newSess:  newSess,
		onAccept: onAccept,
		onClose:  onClose,
		shutdown: make(chan struct{}),
	}
}

// Serve listens on addr and blocks, handling one connection per
// goroutine, until ctx is cancelled or Stop is called.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = listener

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	slog.Info("semihosting transport listening", "address", addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				s.wg.Wait()
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConn(ctx, c)
		}(conn)
	}
}

// Stop closes the listener, causing Serve's accept loop to return.
// Already-accepted connections run to completion.
func (s *Server) Stop() {
	s.closeOne.Do(func() {
		close(s.shutdown)
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	id := uuid.New().String()
	mem := newStreamMemory(conn)

	session, err := s.newSess(id, mem)
	if err != nil {
		slog.Error("semihosting session setup failed", "session", id, "error", err)
		return
	}
	if s.onAccept != nil {
		s.onAccept(session)
	}
	defer func() {
		if s.onClose != nil {
			s.onClose(id)
		}
	}()

	slog.Info("semihosting session accepted", "session", id, "remote", conn.RemoteAddr().String())

	for {
		mem.reset()
		if err := session.Process(ctx, 0); err != nil {
			if err != io.EOF {
				slog.Debug("semihosting session ended", "session", id, "error", err)
			}
			return
		}
	}
}

// streamMemory adapts a net.Conn to host.MemoryAccess for exactly one
// guest "instance": there is no real shared memory, so ReadBlock treats
// addr as irrelevant and instead grows a buffer of bytes read so far for
// the in-flight request, and WriteBlock writes the response straight
// back onto the wire.
type streamMemory struct {
	conn    net.Conn
	pending []byte
}

func newStreamMemory(conn net.Conn) *streamMemory {
	return &streamMemory{conn: conn}
}

func (m *streamMemory) reset() {
	m.pending = m.pending[:0]
}

func (m *streamMemory) ReadBlock(addr uint64, dst []byte) error {
	need := len(dst)
	if need > len(m.pending) {
		delta := need - len(m.pending)
		extra := make([]byte, delta)
		if _, err := io.ReadFull(m.conn, extra); err != nil {
			return err
		}
		m.pending = append(m.pending, extra...)
	}
	copy(dst, m.pending[:need])
	return nil
}

func (m *streamMemory) WriteBlock(addr uint64, src []byte) error {
	_, err := m.conn.Write(src)
	return err
}
