package server

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// startWS exposes the session engine over WebSocket when WSAddr is set.
// Each upgraded connection is wrapped to look like a net.Conn and handed to
// the same per-connection handler as a TCP client; one text message is one
// or more protocol lines.
func (s *Server) startWS() error {
	addr := s.cfg.WSAddr
	if addr == "" {
		return nil
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// The protocol carries no cookies or ambient credentials, so
		// cross-origin browser clients are safe to accept.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		ws.SetReadLimit(int64(s.cfg.MaxLineBytes))
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			s.handleConn(&wsConn{ws: ws})
		}()
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen ws: %w", err)
	}
	s.wsLn = ln

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("websocket listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("websocket HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()

	return nil
}

// wsConn adapts a *websocket.Conn to net.Conn so the line framer can read
// it like any byte stream. Messages lacking a trailing newline get one
// appended, since most WebSocket chat clients send one bare line per
// message. Writes are already serialized by the session's write lock, as
// gorilla requires.
type wsConn struct {
	ws  *websocket.Conn
	buf []byte // unread remainder of the current message
}

func (c *wsConn) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		if !bytes.HasSuffix(data, []byte("\n")) {
			data = append(data, '\n')
		}
		c.buf = data
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error         { return c.ws.Close() }
func (c *wsConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
