package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/NicolasHaas/linechat/pkg/protocol"
)

// Start binds the TCP listener (and the WebSocket endpoint, if configured)
// and begins accepting connections. A bind failure is fatal and returned
// to the caller; accept failures after startup are reported through Run.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.ln = ln
	slog.Info("listening", "addr", ln.Addr().String())

	if err := s.startWS(); err != nil {
		_ = ln.Close()
		return err
	}

	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			// A failing listener leaves no partial-availability mode
			// to fall back to; report it and let Run terminate.
			slog.Error("accept failed", "err", err)
			select {
			case s.fatal <- fmt.Errorf("server: accept: %w", err):
			default:
			}
			return
		}
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			s.handleConn(conn)
		}()
	}
}

// handleConn owns one connection from accept to teardown: it registers the
// session, arms idle supervision, and runs the read loop that frames lines
// and feeds the dispatcher.
func (s *Server) handleConn(conn net.Conn) {
	sess := newSession(conn, s.cfg.IdleTimeout, s.idleExpire)
	s.registry.Add(sess)
	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	slog.Debug("new connection", "remote", sess.RemoteAddr())

	defer s.teardown(sess)

	// The idle clock starts at connection establishment, before any line.
	sess.Touch()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), s.cfg.MaxLineBytes)
	for scanner.Scan() {
		sess.Touch()
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		slog.Debug("received", "remote", sess.RemoteAddr(), "line", line)
		s.dispatch(sess, protocol.ParseLine(line))
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
		slog.Error("read failed", "remote", sess.RemoteAddr(), "err", err)
	}
}

// idleExpire runs when a session's idle timer fires uncancelled. Closing
// the transport unwinds the read loop, which performs the normal teardown.
// Unauthenticated sessions are closed without the notice line.
func (s *Server) idleExpire(sess *Session) {
	if name := sess.Username(); name != "" {
		slog.Info("closing idle session", "user", name)
		_ = sess.WriteLine(protocol.IdleNotice())
	} else {
		slog.Debug("closing idle unauthenticated connection", "remote", sess.RemoteAddr())
	}
	s.metrics.IdleTimeouts.Add(1)
	_ = sess.conn.Close()
}

// teardown releases a session exactly once: idle timer cancelled,
// departure broadcast to the remaining users if the session was
// authenticated, registry entry removed, transport closed. Safe to invoke
// from any failure path; duplicates are no-ops.
func (s *Server) teardown(sess *Session) {
	sess.closeOnce.Do(func() {
		sess.stopIdle()
		name := sess.Username()
		// Remove first so nobody who sees the notice can still find the
		// departing user via WHO or DM.
		s.registry.Remove(sess.ID)
		if name != "" {
			s.broadcast(protocol.DisconnectedNotice(name), sess)
		}
		_ = sess.conn.Close()
		s.metrics.ActiveConnections.Add(-1)
		s.metrics.TotalDisconnects.Add(1)
		if name != "" {
			slog.Info("client disconnected", "user", name)
		} else {
			slog.Debug("connection closed", "remote", sess.RemoteAddr())
		}
	})
}
