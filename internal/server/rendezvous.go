package server

import (
	"time"

	"go.uber.org/zap"

	"matchpoint/internal/protocol"
	"matchpoint/internal/registry"
)

// runMatch distributes the rendezvous port to every member of a started
// lobby, waits a bounded time for their UDP address reports, and fans out
// connection data: the host gets every reporting member's endpoint, each
// reporting member gets the host's endpoint. Members that never report are
// dropped from the match only; nothing here can fail the server.
func (s *Server) runMatch(lobbyName string, host *registry.Client, members []*registry.Client) {
	s.metrics.MatchesStarted.Inc()

	startMsg := &protocol.MatchStart{UDPPort: s.RendezvousPort()}
	for _, m := range members {
		s.send(m, startMsg)
	}

	s.awaitReports(members)

	var reporters []*registry.Client
	for _, m := range members {
		if m.Rendezvous() != nil {
			reporters = append(reporters, m)
		} else if m != host {
			s.log.Info("member missed rendezvous window",
				zap.String("lobby", lobbyName),
				zap.String("client_id", m.ID()))
		}
	}

	// The host always gets its bundle over the control channel, even when
	// nobody reported.
	hostMsg := &protocol.ConnectionDataHost{ClientEndpoints: []string{}}
	for _, m := range reporters {
		if m != host {
			hostMsg.ClientEndpoints = append(hostMsg.ClientEndpoints, m.Rendezvous().String())
		}
	}
	s.send(host, hostMsg)

	if hostAddr := host.Rendezvous(); hostAddr != nil {
		clientMsg := &protocol.ConnectionDataClient{HostEndpoint: hostAddr.String()}
		for _, m := range reporters {
			if m != host {
				s.send(m, clientMsg)
			}
		}
	} else {
		s.log.Warn("host missed rendezvous window, members get no routing data",
			zap.String("lobby", lobbyName),
			zap.String("host", host.ID()))
	}

	for _, m := range members {
		m.ClearRendezvous()
	}
	s.log.Info("match rendezvous settled",
		zap.String("lobby", lobbyName),
		zap.Int("reported", len(reporters)),
		zap.Int("members", len(members)))
}

// awaitReports polls until every member has a rendezvous address or the
// collection window closes.
func (s *Server) awaitReports(members []*registry.Client) {
	deadline := time.Now().Add(s.cfg.Rendezvous.Timeout)
	ticker := time.NewTicker(s.cfg.Rendezvous.PollInterval)
	defer ticker.Stop()

	for {
		allSet := true
		for _, m := range members {
			if m.Rendezvous() == nil {
				allSet = false
				break
			}
		}
		if allSet || time.Now().After(deadline) {
			return
		}
		select {
		case <-ticker.C:
		case <-s.stop:
			return
		}
	}
}
