// Package server implements the linechat session engine: the TCP (and
// optional WebSocket) listeners, the per-connection protocol state machine,
// the shared client registry, broadcast and direct-message delivery, idle
// eviction, and graceful shutdown.
package server

import (
	"context"
	"net"
	"sync"
)

// Server is the chat server.
type Server struct {
	cfg      Config
	registry *Registry
	metrics  *Metrics

	ln       net.Listener
	wsLn     net.Listener
	handlers sync.WaitGroup
	fatal    chan error

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		registry: NewRegistry(),
		metrics:  NewMetrics(),
		fatal:    make(chan error, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry returns the session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Addr returns the bound TCP listener address, or nil before Start.
// Useful when listening on ":0".
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// WSAddr returns the bound WebSocket listener address, or nil when the
// WebSocket endpoint is disabled or not yet started.
func (s *Server) WSAddr() net.Addr {
	if s.wsLn == nil {
		return nil
	}
	return s.wsLn.Addr()
}
