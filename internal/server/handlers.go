package server

import (
	"errors"

	"go.uber.org/zap"

	"matchpoint/internal/lobby"
	"matchpoint/internal/protocol"
	"matchpoint/internal/registry"
	"matchpoint/internal/secure"
)

// handleKeyExchange derives the channel key from the client's public value
// and answers with the server's public value plus the assigned id. The reply
// is the last plaintext message on the connection.
func (s *Server) handleKeyExchange(msg *protocol.KeyExchange, c *registry.Client) {
	if c.Key() != nil {
		s.sendStatus(c, protocol.LevelError, "channel key already established")
		return
	}

	ex, err := secure.NewExchange()
	if err != nil {
		s.log.Error("key exchange failed", zap.String("client_id", c.ID()), zap.Error(err))
		s.sendStatus(c, protocol.LevelError, "key exchange failed")
		return
	}
	key, err := ex.SharedKey(msg.PublicKey)
	if err != nil {
		s.sendStatus(c, protocol.LevelError, "invalid public key")
		return
	}

	s.send(c, &protocol.KeyExchange{
		ClientID:  c.ID(),
		PublicKey: ex.PublicKey(),
	})
	c.SetKey(key)
	s.log.Info("channel key established", zap.String("client_id", c.ID()))
}

func (s *Server) handleHeartbeat(c *registry.Client) {
	c.Touch()
}

func (s *Server) handleChangeName(msg *protocol.ChangeName, c *registry.Client) {
	c.SetName(msg.DisplayName)
	s.sendStatus(c, protocol.LevelInfo, "display name updated")
}

func (s *Server) handleServerInfo(c *registry.Client) {
	infos := s.lobbies.List()
	resp := &protocol.ServerInfoResponse{
		CurrentLobby: c.Lobby(),
		CurrentName:  c.Name(),
		Lobbies:      make([]protocol.LobbyInfo, 0, len(infos)),
	}
	for _, info := range infos {
		resp.Lobbies = append(resp.Lobbies, protocol.LobbyInfo{
			Name:    info.Name,
			Host:    info.Host,
			Members: info.Members,
		})
	}
	s.send(c, resp)
}

// handleStatus rebroadcasts a client status to every client that finished
// its key exchange.
func (s *Server) handleStatus(msg *protocol.Status, c *registry.Client) {
	s.log.Info("status broadcast",
		zap.String("client_id", c.ID()),
		zap.String("level", msg.Level))
	for _, other := range s.clients.All() {
		if other.Key() != nil {
			s.send(other, msg)
		}
	}
}

func (s *Server) handleCreateLobby(msg *protocol.CreateLobby, c *registry.Client) {
	err := s.lobbies.Create(msg.LobbyName, c)
	s.metrics.LobbiesOpen.Set(float64(s.lobbies.Len()))
	switch {
	case err == nil:
		s.log.Info("lobby created",
			zap.String("lobby", msg.LobbyName),
			zap.String("host", c.ID()))
		s.sendLobbyResponse(c, protocol.TagCreateLobby, msg.LobbyName, true, "lobby created successfully")
	case errors.Is(err, lobby.ErrNameTaken):
		s.sendLobbyResponse(c, protocol.TagCreateLobby, msg.LobbyName, false, "that lobby already exists")
	default:
		s.sendLobbyResponse(c, protocol.TagCreateLobby, msg.LobbyName, false, "could not create lobby")
	}
}

func (s *Server) handleDeleteLobby(msg *protocol.DeleteLobby, c *registry.Client) {
	err := s.lobbies.Delete(msg.LobbyName, c)
	s.metrics.LobbiesOpen.Set(float64(s.lobbies.Len()))
	if err != nil {
		s.sendLobbyResponse(c, protocol.TagDeleteLobby, msg.LobbyName, false, "could not delete lobby")
		return
	}
	s.log.Info("lobby deleted",
		zap.String("lobby", msg.LobbyName),
		zap.String("host", c.ID()))
	s.sendLobbyResponse(c, protocol.TagDeleteLobby, msg.LobbyName, true, "lobby successfully deleted")
}

func (s *Server) handleJoinLobby(msg *protocol.JoinLobby, c *registry.Client) {
	if err := s.lobbies.Join(msg.LobbyName, c); err != nil {
		s.sendLobbyResponse(c, protocol.TagJoinLobby, msg.LobbyName, false, "could not join lobby")
		return
	}
	s.log.Info("client joined lobby",
		zap.String("lobby", msg.LobbyName),
		zap.String("client_id", c.ID()))
	s.sendLobbyResponse(c, protocol.TagJoinLobby, msg.LobbyName, true, "joined lobby successfully")
}

func (s *Server) handleLeaveLobby(msg *protocol.LeaveLobby, c *registry.Client) {
	if err := s.lobbies.Leave(msg.LobbyName, c); err != nil {
		s.sendLobbyResponse(c, protocol.TagLeaveLobby, msg.LobbyName, false, "could not leave lobby")
		return
	}
	s.log.Info("client left lobby",
		zap.String("lobby", msg.LobbyName),
		zap.String("client_id", c.ID()))
	s.sendLobbyResponse(c, protocol.TagLeaveLobby, msg.LobbyName, true, "left lobby successfully")
}

func (s *Server) handleSwapSeats(msg *protocol.SwapSeats, c *registry.Client) {
	if err := s.lobbies.Swap(msg.LobbyName, c, msg.FirstSeat, msg.SecondSeat); err != nil {
		s.sendLobbyResponse(c, protocol.TagSwapSeats, msg.LobbyName, false, "swap failed")
		return
	}
	s.sendLobbyResponse(c, protocol.TagSwapSeats, msg.LobbyName, true, "swap successful")
}

// handleStartLobby transitions the lobby out of the registry, answers the
// host, then runs the rendezvous with the member snapshot. The bounded wait
// blocks only this connection's goroutine.
func (s *Server) handleStartLobby(msg *protocol.StartLobby, c *registry.Client) {
	members, err := s.lobbies.Start(msg.LobbyName, c)
	s.metrics.LobbiesOpen.Set(float64(s.lobbies.Len()))
	switch {
	case errors.Is(err, lobby.ErrNotFound):
		s.sendLobbyResponse(c, protocol.TagStartLobby, msg.LobbyName, false, "lobby does not exist")
		return
	case errors.Is(err, lobby.ErrNotHost):
		s.sendLobbyResponse(c, protocol.TagStartLobby, msg.LobbyName, false, "you do not have permission to start this lobby")
		return
	case err != nil:
		s.sendLobbyResponse(c, protocol.TagStartLobby, msg.LobbyName, false, "could not start lobby")
		return
	}

	s.log.Info("lobby starting",
		zap.String("lobby", msg.LobbyName),
		zap.String("host", c.ID()),
		zap.Int("members", len(members)))
	s.sendLobbyResponse(c, protocol.TagStartLobby, msg.LobbyName, true, "lobby successfully started")

	s.runMatch(msg.LobbyName, c, members)
}

func (s *Server) sendLobbyResponse(c *registry.Client, op, name string, success bool, message string) {
	s.send(c, &protocol.LobbyResponse{
		Op:        op,
		LobbyName: name,
		Success:   success,
		Message:   message,
	})
}
