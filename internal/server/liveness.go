package server

import (
	"time"

	"go.uber.org/zap"
)

// livenessLoop evicts clients whose heartbeats stop arriving. Eviction is
// silent: the connection is closed and all membership state cleaned up, but
// no message is sent because the client is presumed unreachable.
func (s *Server) livenessLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Liveness.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			for _, c := range s.clients.Expired(s.cfg.Liveness.Timeout) {
				s.metrics.EvictionsTotal.Inc()
				s.log.Info("evicting unresponsive client",
					zap.String("client_id", c.ID()),
					zap.Duration("timeout", s.cfg.Liveness.Timeout))
				s.removeClient(c, "heartbeat timeout")
			}
		}
	}
}
