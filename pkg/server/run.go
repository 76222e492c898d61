package server

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NicolasHaas/linechat/pkg/protocol"
)

// Run starts the server and blocks until a termination signal or a fatal
// listener failure. The signal path performs a graceful shutdown and
// returns nil; a listener failure is returned after shutdown so the
// process can exit non-zero.
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	slog.Info("linechat server running",
		"listen", s.ln.Addr().String(),
		"idle_timeout", s.cfg.IdleTimeout,
	)

	s.startMetricsHTTP()
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		slog.Info("shutting down...")
		s.Shutdown()
		return nil
	case err := <-s.fatal:
		s.Shutdown()
		return err
	}
}

// Shutdown stops accepting connections, notifies every connected client,
// closes all transports, and waits up to the configured grace period for
// connection handlers to finish. Best-effort: a stuck peer cannot hold the
// process open past the grace period.
func (s *Server) Shutdown() {
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}

	// One absolute deadline across the whole notify sweep: a peer that
	// stopped reading gets a write error instead of stalling the loop.
	deadline := time.Now().Add(s.cfg.ShutdownGrace)
	for _, sess := range s.registry.All() {
		_ = sess.conn.SetWriteDeadline(deadline)
		_ = sess.WriteLine(protocol.ShutdownNotice())
		_ = sess.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
		slog.Info("all connections closed")
	case <-time.After(s.cfg.ShutdownGrace):
		slog.Warn("shutdown grace period elapsed", "remaining", s.registry.Count())
	}
}
