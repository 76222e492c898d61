package server

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side state for one live connection. It owns the
// transport exclusively; all writes to the client go through WriteLine so
// that responses and fan-out deliveries from other goroutines never
// interleave mid-line.
type Session struct {
	ID uuid.UUID

	conn    net.Conn
	writeMu sync.Mutex

	mu           sync.Mutex
	username     string // empty until LOGIN succeeds, immutable afterward
	loginSeq     uint64 // registry insertion order, for stable WHO output
	lastActivity time.Time
	idleTimer    *time.Timer
	idleTimeout  time.Duration
	stopped      bool // idle supervision disabled (teardown started)

	expired func(*Session) // invoked when the idle timer fires uncancelled

	closeOnce sync.Once
}

func newSession(conn net.Conn, idleTimeout time.Duration, expired func(*Session)) *Session {
	return &Session{
		ID:           uuid.New(),
		conn:         conn,
		lastActivity: time.Now(),
		idleTimeout:  idleTimeout,
		expired:      expired,
	}
}

// RemoteAddr reports the peer address for logging.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// Username returns the session username, or "" before LOGIN.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Authenticated reports whether LOGIN has succeeded on this session.
func (s *Session) Authenticated() bool {
	return s.Username() != ""
}

// LastActivity returns the time of the most recent framed line.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// WriteLine writes one already-delimited protocol line to the client.
// Write errors are returned for the caller to log; fan-out callers ignore
// them per the fire-and-forget delivery contract.
func (s *Session) WriteLine(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write([]byte(line))
	return err
}

// Touch records line activity and re-arms the idle timer: cancel if
// pending, then schedule afresh. Called once at connection establishment
// and once per successfully framed line.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.lastActivity = time.Now()
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.idleTimeout, s.idleFired)
}

// idleFired runs on the timer goroutine. A timer that lost the race with a
// concurrent Touch (stopped too late) sees fresh activity here and does
// nothing, so a stale fire can never evict an active session.
func (s *Session) idleFired() {
	s.mu.Lock()
	if s.stopped || time.Since(s.lastActivity) < s.idleTimeout {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.expired(s)
}

// stopIdle cancels idle supervision permanently. Called from teardown.
func (s *Session) stopIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

func (s *Session) setLogin(name string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = name
	s.loginSeq = seq
}
