package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"matchpoint/internal/protocol"
)

func TestSilentClientEvicted(t *testing.T) {
	cfg := testConfig()
	cfg.Liveness.Timeout = 300 * time.Millisecond
	cfg.Liveness.SweepInterval = 50 * time.Millisecond
	s := startServer(t, cfg)

	tc := connectAndExchange(t, s)
	tc.send(&protocol.CreateLobby{LobbyName: "ghost"})
	require.True(t, tc.expectLobbyResponse(protocol.TagCreateLobby).Success)

	// No heartbeats: the server closes the connection without a goodbye.
	require.NoError(t, tc.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	buf := make([]byte, 1)
	_, err := tc.conn.Read(buf)
	require.Error(t, err)

	// The evicted host's lobby is gone.
	observer := connectAndExchange(t, s)
	observer.send(&protocol.ServerInfoRequest{})
	info := observer.read(2 * time.Second).(*protocol.ServerInfoResponse)
	require.Empty(t, info.Lobbies)
}

func TestHeartbeatsKeepClientAlive(t *testing.T) {
	cfg := testConfig()
	cfg.Liveness.Timeout = 300 * time.Millisecond
	cfg.Liveness.SweepInterval = 50 * time.Millisecond
	s := startServer(t, cfg)

	tc := connectAndExchange(t, s)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		tc.send(&protocol.Heartbeat{ClientID: tc.id})
		time.Sleep(100 * time.Millisecond)
	}

	// Several timeout windows later the connection still answers.
	tc.send(&protocol.ServerInfoRequest{})
	_, ok := tc.read(2 * time.Second).(*protocol.ServerInfoResponse)
	require.True(t, ok)
}
