package server

import (
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"matchpoint/internal/protocol"
	"matchpoint/internal/secure"
)

// serveUDP receives rendezvous datagrams. Each datagram carries one encrypted
// match_start_response frame; the datagram's source address is the reported
// rendezvous endpoint. Malformed datagrams are logged and dropped, never
// answered.
func (s *Server) serveUDP() {
	defer s.wg.Done()

	buf := make([]byte, 2*s.cfg.Server.MaxFrameBytes)
	for {
		s.udpConn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, addr, err := s.udpConn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				if s.stopped() {
					return
				}
				continue
			}
			if s.stopped() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("udp read failed", zap.Error(err))
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		s.handleDatagram(data, addr)
	}
}

func (s *Server) handleDatagram(data []byte, addr *net.UDPAddr) {
	header, body, err := protocol.DecodeDatagram(data, s.cfg.Server.MaxFrameBytes)
	if err != nil {
		s.metrics.ProtocolErrors.Inc()
		s.log.Debug("malformed datagram", zap.String("remote", addr.String()), zap.Error(err))
		return
	}

	c, ok := s.clients.Find(header.ClientID)
	if !ok {
		s.log.Debug("datagram from unknown client", zap.String("remote", addr.String()))
		return
	}
	key := c.Key()
	if !header.Encrypted || key == nil {
		s.metrics.ProtocolErrors.Inc()
		s.log.Debug("unencrypted datagram rejected", zap.String("client_id", c.ID()))
		return
	}
	plain, err := secure.Open(key, body)
	if err != nil {
		s.metrics.ProtocolErrors.Inc()
		s.log.Debug("datagram decrypt failed", zap.String("client_id", c.ID()))
		return
	}

	payload, err := protocol.DecodePayload(plain)
	if err != nil {
		s.metrics.ProtocolErrors.Inc()
		return
	}
	resp, ok := payload.(*protocol.MatchStartResponse)
	if !ok || resp.ClientID != c.ID() {
		s.log.Debug("unexpected datagram payload",
			zap.String("client_id", c.ID()),
			zap.String("tag", payload.Tag()))
		return
	}

	c.SetRendezvous(addr)
	s.metrics.RendezvousReports.Inc()
	s.log.Info("rendezvous address recorded",
		zap.String("client_id", c.ID()),
		zap.String("endpoint", addr.String()))
}
