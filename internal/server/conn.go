package server

import (
	"bufio"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"matchpoint/internal/protocol"
	"matchpoint/internal/registry"
	"matchpoint/internal/secure"
)

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.tcpLn.Accept()
		if err != nil {
			if s.stopped() {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", zap.Error(err))
			continue
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn owns one control connection: it registers the client, runs the
// receive loop, and guarantees registry cleanup on every exit path. A panic
// in a handler is logged and stops only this connection's loop.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()

	c := s.clients.Register(conn)
	s.metrics.ClientsConnected.Set(float64(s.clients.Len()))
	s.log.Info("client connected",
		zap.String("client_id", c.ID()),
		zap.String("remote", conn.RemoteAddr().String()))

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panicked",
				zap.String("client_id", c.ID()),
				zap.Any("panic", r))
		}
		s.removeClient(c, "disconnect")
	}()

	r := bufio.NewReader(conn)
	for {
		header, body, err := protocol.ReadFrame(r, s.cfg.Server.MaxFrameBytes)
		if err != nil {
			var decErr *protocol.DecodeError
			if errors.As(err, &decErr) {
				s.metrics.ProtocolErrors.Inc()
				s.sendStatus(c, protocol.LevelError, "invalid message frame")
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !s.stopped() {
				s.log.Debug("read failed", zap.String("client_id", c.ID()), zap.Error(err))
			}
			return
		}
		s.dispatch(c, header, body)
	}
}

// dispatch decrypts, decodes and routes one inbound envelope. Protocol
// errors answer with an error status and never fault the connection.
func (s *Server) dispatch(c *registry.Client, header protocol.Header, body []byte) {
	if header.Encrypted {
		key := c.Key()
		if key == nil {
			s.metrics.ProtocolErrors.Inc()
			s.sendStatus(c, protocol.LevelError, "no channel key established")
			return
		}
		plain, err := secure.Open(key, body)
		if err != nil {
			s.metrics.ProtocolErrors.Inc()
			s.sendStatus(c, protocol.LevelError, "invalid message body")
			return
		}
		body = plain
	}

	payload, err := protocol.DecodePayload(body)
	if err != nil {
		s.metrics.ProtocolErrors.Inc()
		s.sendStatus(c, protocol.LevelError, "unrecognized message")
		return
	}
	s.metrics.MessagesTotal.WithLabelValues(payload.Tag()).Inc()

	switch msg := payload.(type) {
	case *protocol.KeyExchange:
		s.handleKeyExchange(msg, c)
	case *protocol.Heartbeat:
		s.handleHeartbeat(c)
	case *protocol.ServerInfoRequest:
		s.handleServerInfo(c)
	case *protocol.CreateLobby:
		s.handleCreateLobby(msg, c)
	case *protocol.DeleteLobby:
		s.handleDeleteLobby(msg, c)
	case *protocol.JoinLobby:
		s.handleJoinLobby(msg, c)
	case *protocol.LeaveLobby:
		s.handleLeaveLobby(msg, c)
	case *protocol.StartLobby:
		s.handleStartLobby(msg, c)
	case *protocol.SwapSeats:
		s.handleSwapSeats(msg, c)
	case *protocol.Status:
		s.handleStatus(msg, c)
	case *protocol.ChangeName:
		s.handleChangeName(msg, c)
	default:
		s.metrics.ProtocolErrors.Inc()
		s.sendStatus(c, protocol.LevelError, "unexpected message type")
	}
}

// send frames and delivers one payload to a client. Everything after the key
// exchange travels encrypted.
func (s *Server) send(c *registry.Client, p protocol.Payload) {
	body, err := protocol.EncodePayload(p)
	if err != nil {
		s.log.Error("encode payload failed",
			zap.String("tag", p.Tag()), zap.Error(err))
		return
	}

	header := protocol.Header{ClientID: c.ID()}
	if key := c.Key(); key != nil && p.Tag() != protocol.TagKeyExchange {
		sealed, err := secure.Seal(key, body)
		if err != nil {
			s.log.Error("seal payload failed",
				zap.String("client_id", c.ID()), zap.Error(err))
			return
		}
		header.Encrypted = true
		body = sealed
	}

	if err := c.WriteFrame(header, body); err != nil {
		s.log.Debug("write failed",
			zap.String("client_id", c.ID()),
			zap.String("tag", p.Tag()),
			zap.Error(err))
	}
}

func (s *Server) sendStatus(c *registry.Client, level, message string) {
	s.send(c, &protocol.Status{Level: level, Message: message})
}
