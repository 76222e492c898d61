package server

import (
	"bufio"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testPeer is the client end of an in-memory connection whose server end
// is being driven by Server.handleConn. A background goroutine drains
// server output into a channel so pipe writes never deadlock.
type testPeer struct {
	conn  net.Conn
	lines chan string
}

func newTestServer(t *testing.T, tweak func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		ListenAddr:    ":0",
		IdleTimeout:   time.Minute,
		ShutdownGrace: 2 * time.Second,
		MaxLineBytes:  65536,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	return New(cfg)
}

// connect attaches a new in-memory client to the server's connection
// handler.
func connect(t *testing.T, srv *Server) *testPeer {
	t.Helper()
	client, server := net.Pipe()
	go srv.handleConn(server)

	p := &testPeer{conn: client, lines: make(chan string, 64)}
	go func() {
		scanner := bufio.NewScanner(client)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
		close(p.lines)
	}()

	t.Cleanup(func() { _ = client.Close() })
	return p
}

func (p *testPeer) send(t *testing.T, line string) {
	t.Helper()
	require.NoError(t, p.conn.SetWriteDeadline(time.Now().Add(2*time.Second)))
	_, err := fmt.Fprintf(p.conn, "%s\n", line)
	require.NoError(t, err)
}

// expect returns the next server line, failing the test on timeout or
// connection close.
func (p *testPeer) expect(t *testing.T) string {
	t.Helper()
	select {
	case line, ok := <-p.lines:
		require.True(t, ok, "connection closed while awaiting a line")
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a server line")
		return ""
	}
}

// expectNone asserts that no line arrives within the window.
func (p *testPeer) expectNone(t *testing.T, window time.Duration) {
	t.Helper()
	select {
	case line, ok := <-p.lines:
		if ok {
			t.Fatalf("unexpected server line %q", line)
		}
	case <-time.After(window):
	}
}

// expectClosed waits for the server to close the connection, discarding
// any lines still in flight.
func (p *testPeer) expectClosed(t *testing.T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-p.lines:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for the connection to close")
		}
	}
}

// observe registers an already-authenticated session that never idles out,
// for asserting on broadcasts without racing the server's idle supervisor.
func observe(t *testing.T, srv *Server, name string) *testPeer {
	t.Helper()
	client, server := net.Pipe()
	sess := newSession(server, time.Hour, func(*Session) {})
	srv.registry.Add(sess)
	require.NoError(t, srv.registry.Login(sess, name))

	p := &testPeer{conn: client, lines: make(chan string, 64)}
	go func() {
		scanner := bufio.NewScanner(client)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
		close(p.lines)
	}()

	t.Cleanup(func() {
		srv.teardown(sess)
		_ = client.Close()
	})
	return p
}

func login(t *testing.T, p *testPeer, name string) {
	t.Helper()
	p.send(t, "LOGIN "+name)
	require.Equal(t, "OK", p.expect(t))
}
