// Package server is the session coordination server: it accepts control
// connections, negotiates channel keys, routes lobby lifecycle requests, and
// runs the liveness monitor and rendezvous coordinator.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"matchpoint/internal/config"
	"matchpoint/internal/lobby"
	"matchpoint/internal/metrics"
	"matchpoint/internal/registry"
)

// Server owns both transport listeners and the shared registries. Create one
// with New, bind with Listen, then drive it with Serve.
type Server struct {
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Metrics

	clients *registry.Registry
	lobbies *lobby.Registry

	tcpLn      net.Listener
	udpConn    *net.UDPConn
	metricsSrv *http.Server

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a server from configuration. No sockets are opened yet.
func New(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		log:     log,
		metrics: m,
		clients: registry.NewRegistry(),
		lobbies: lobby.NewRegistry(cfg.Lobby.Capacity),
		stop:    make(chan struct{}),
	}
}

// Listen binds the control and rendezvous listeners.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Server.TCPAddr())
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", s.cfg.Server.TCPAddr(), err)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", s.cfg.Server.UDPAddr())
	if err != nil {
		ln.Close()
		return fmt.Errorf("resolve udp %s: %w", s.cfg.Server.UDPAddr(), err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		ln.Close()
		return fmt.Errorf("listen udp %s: %w", s.cfg.Server.UDPAddr(), err)
	}

	s.tcpLn = ln
	s.udpConn = udpConn
	s.log.Info("listening",
		zap.String("control", ln.Addr().String()),
		zap.String("rendezvous", udpConn.LocalAddr().String()))
	return nil
}

// ControlAddr returns the bound control listener address. Valid after Listen.
func (s *Server) ControlAddr() net.Addr { return s.tcpLn.Addr() }

// RendezvousPort returns the bound UDP port. Valid after Listen.
func (s *Server) RendezvousPort() int {
	return s.udpConn.LocalAddr().(*net.UDPAddr).Port
}

// Serve runs the accept loop, the UDP listener and the liveness monitor
// until ctx is cancelled, then tears everything down. Listen must have been
// called.
func (s *Server) Serve(ctx context.Context) error {
	if s.cfg.Metrics.Enabled {
		s.startMetrics()
	}

	s.wg.Add(3)
	go s.acceptLoop()
	go s.serveUDP()
	go s.livenessLoop()

	<-ctx.Done()
	s.log.Info("shutting down")
	s.shutdown()
	s.wg.Wait()
	s.log.Info("shutdown complete")
	return nil
}

// Run binds and serves in one call.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.tcpLn.Close()
		s.udpConn.Close()
		for _, c := range s.clients.All() {
			s.removeClient(c, "shutdown")
		}
		if s.metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.metricsSrv.Shutdown(shutdownCtx)
		}
	})
}

func (s *Server) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Server) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.metricsSrv = &http.Server{Addr: s.cfg.Metrics.ListenAddress, Handler: mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("metrics listener failed", zap.Error(err))
		}
	}()
}

// removeClient is the single teardown path for disconnects, evictions and
// shutdown. It is idempotent: the registries treat unknown ids as no-ops and
// a second conn close only returns an error we ignore.
func (s *Server) removeClient(c *registry.Client, reason string) {
	s.lobbies.RemoveClient(c)
	s.clients.Unregister(c.ID())
	if conn := c.Conn(); conn != nil {
		conn.Close()
	}
	s.metrics.ClientsConnected.Set(float64(s.clients.Len()))
	s.metrics.LobbiesOpen.Set(float64(s.lobbies.Len()))
	s.log.Info("client removed",
		zap.String("client_id", c.ID()),
		zap.String("reason", reason))
}
