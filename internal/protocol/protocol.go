// Package protocol defines the framed wire format spoken between clients and
// the coordination server: a small routing header followed by a tagged,
// JSON-encoded payload. Payloads marked encrypted in the header are sealed
// with the client's channel key before framing.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Payload tags. The tag selects the handler on the receiving side.
const (
	TagKeyExchange          = "key_exchange"
	TagHeartbeat            = "heartbeat"
	TagServerInfoRequest    = "server_info_request"
	TagServerInfoResponse   = "server_info_response"
	TagCreateLobby          = "create_lobby"
	TagDeleteLobby          = "delete_lobby"
	TagJoinLobby            = "join_lobby"
	TagLeaveLobby           = "leave_lobby"
	TagStartLobby           = "start_lobby"
	TagSwapSeats            = "swap_seats"
	TagLobbyResponse        = "lobby_response"
	TagStatus               = "status"
	TagMatchStart           = "match_start"
	TagMatchStartResponse   = "match_start_response"
	TagConnectionDataHost   = "connection_data_host"
	TagConnectionDataClient = "connection_data_client"
	TagChangeName           = "change_name"
)

// Status levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Header is the routing metadata sent ahead of every payload.
type Header struct {
	ClientID  string `json:"client_id"`
	Encrypted bool   `json:"encrypted"`
}

// Payload is implemented by every message that can travel in an envelope.
type Payload interface {
	Tag() string
}

// KeyExchange carries one side's Curve25519 public value. The server reply
// additionally carries the id assigned to the client.
type KeyExchange struct {
	ClientID  string `json:"client_id,omitempty"`
	PublicKey []byte `json:"public_key"`
}

// Heartbeat refreshes the sender's liveness window.
type Heartbeat struct {
	ClientID string `json:"client_id"`
}

// ServerInfoRequest asks for the lobby listing.
type ServerInfoRequest struct{}

// LobbyInfo is one lobby entry in a ServerInfoResponse.
type LobbyInfo struct {
	Name    string   `json:"name"`
	Host    string   `json:"host"`
	Members []string `json:"members"`
}

// ServerInfoResponse enumerates lobbies and echoes the requester's own state.
type ServerInfoResponse struct {
	CurrentLobby string      `json:"current_lobby"`
	CurrentName  string      `json:"current_name"`
	Lobbies      []LobbyInfo `json:"lobbies"`
}

// CreateLobby asks the server to create a lobby owned by the sender.
type CreateLobby struct {
	LobbyName string `json:"lobby_name"`
}

// DeleteLobby asks the server to delete a lobby. Host only.
type DeleteLobby struct {
	LobbyName string `json:"lobby_name"`
}

// JoinLobby asks to occupy the next free seat in a lobby.
type JoinLobby struct {
	LobbyName string `json:"lobby_name"`
}

// LeaveLobby gives up the sender's seat.
type LeaveLobby struct {
	LobbyName string `json:"lobby_name"`
}

// StartLobby begins the match for every member. Host only.
type StartLobby struct {
	LobbyName string `json:"lobby_name"`
}

// SwapSeats exchanges two seats in the ordered member list. Host only.
type SwapSeats struct {
	LobbyName  string `json:"lobby_name"`
	FirstSeat  int    `json:"first_seat"`
	SecondSeat int    `json:"second_seat"`
}

// LobbyResponse is the generic result for every lobby lifecycle request.
type LobbyResponse struct {
	Op        string `json:"op"`
	LobbyName string `json:"lobby_name"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

// Status is a free-text notice. Client-sent statuses are rebroadcast to all
// connected clients; the server also uses it to answer protocol errors.
type Status struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// MatchStart tells a lobby member to report its address on the UDP port.
type MatchStart struct {
	UDPPort int `json:"udp_port"`
}

// MatchStartResponse arrives over UDP; the datagram's source address is the
// sender's rendezvous endpoint.
type MatchStartResponse struct {
	ClientID string `json:"client_id"`
}

// ConnectionDataHost delivers every reporting member's endpoint to the host.
type ConnectionDataHost struct {
	ClientEndpoints []string `json:"client_endpoints"`
}

// ConnectionDataClient delivers the host's endpoint to a non-host member.
type ConnectionDataClient struct {
	HostEndpoint string `json:"host_endpoint"`
}

// ChangeName updates the sender's display name.
type ChangeName struct {
	DisplayName string `json:"display_name"`
}

func (KeyExchange) Tag() string          { return TagKeyExchange }
func (Heartbeat) Tag() string            { return TagHeartbeat }
func (ServerInfoRequest) Tag() string    { return TagServerInfoRequest }
func (ServerInfoResponse) Tag() string   { return TagServerInfoResponse }
func (CreateLobby) Tag() string          { return TagCreateLobby }
func (DeleteLobby) Tag() string          { return TagDeleteLobby }
func (JoinLobby) Tag() string            { return TagJoinLobby }
func (LeaveLobby) Tag() string           { return TagLeaveLobby }
func (StartLobby) Tag() string           { return TagStartLobby }
func (SwapSeats) Tag() string            { return TagSwapSeats }
func (LobbyResponse) Tag() string        { return TagLobbyResponse }
func (Status) Tag() string               { return TagStatus }
func (MatchStart) Tag() string           { return TagMatchStart }
func (MatchStartResponse) Tag() string   { return TagMatchStartResponse }
func (ConnectionDataHost) Tag() string   { return TagConnectionDataHost }
func (ConnectionDataClient) Tag() string { return TagConnectionDataClient }
func (ChangeName) Tag() string           { return TagChangeName }

// payloadFactories maps a tag to a constructor for the matching payload type.
var payloadFactories = map[string]func() Payload{
	TagKeyExchange:          func() Payload { return &KeyExchange{} },
	TagHeartbeat:            func() Payload { return &Heartbeat{} },
	TagServerInfoRequest:    func() Payload { return &ServerInfoRequest{} },
	TagServerInfoResponse:   func() Payload { return &ServerInfoResponse{} },
	TagCreateLobby:          func() Payload { return &CreateLobby{} },
	TagDeleteLobby:          func() Payload { return &DeleteLobby{} },
	TagJoinLobby:            func() Payload { return &JoinLobby{} },
	TagLeaveLobby:           func() Payload { return &LeaveLobby{} },
	TagStartLobby:           func() Payload { return &StartLobby{} },
	TagSwapSeats:            func() Payload { return &SwapSeats{} },
	TagLobbyResponse:        func() Payload { return &LobbyResponse{} },
	TagStatus:               func() Payload { return &Status{} },
	TagMatchStart:           func() Payload { return &MatchStart{} },
	TagMatchStartResponse:   func() Payload { return &MatchStartResponse{} },
	TagConnectionDataHost:   func() Payload { return &ConnectionDataHost{} },
	TagConnectionDataClient: func() Payload { return &ConnectionDataClient{} },
	TagChangeName:           func() Payload { return &ChangeName{} },
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EncodePayload serializes a payload into its tagged JSON form.
func EncodePayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.Tag(), err)
	}
	out, err := json.Marshal(envelope{Type: p.Tag(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", p.Tag(), err)
	}
	return out, nil
}

// DecodePayload parses a tagged JSON body into the payload type named by its
// tag. Unknown tags and malformed bodies return a *DecodeError.
func DecodePayload(data []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Reason: "malformed envelope", Err: err}
	}
	factory, ok := payloadFactories[env.Type]
	if !ok {
		return nil, &DecodeError{Reason: fmt.Sprintf("unknown tag %q", env.Type)}
	}
	p := factory()
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, p); err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("malformed %s body", env.Type), Err: err}
		}
	}
	return p, nil
}

// DecodeError reports a frame or payload that could not be parsed. It is
// never fatal to a connection; the server answers with an error status.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode: %s: %v", e.Reason, e.Err)
	}
	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }
