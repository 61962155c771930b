// Package registry owns the authoritative set of connected clients. All
// mutation goes through Registry or Client methods so that id uniqueness and
// the at-most-one-lobby invariant are enforced in one place. The registry
// lock is always taken before any per-client lock.
package registry

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"matchpoint/internal/protocol"
)

// Client is one connected peer. Fields are guarded by mu except id and conn,
// which are fixed at registration.
type Client struct {
	id   string
	conn net.Conn

	mu             sync.Mutex
	displayName    string
	channelKey     []byte
	lastHeartbeat  time.Time
	currentLobby   string
	rendezvousAddr *net.UDPAddr

	// writeMu serializes whole frames on conn so concurrent broadcasts and
	// responses never interleave.
	writeMu sync.Mutex
}

// ID returns the client's stable identifier.
func (c *Client) ID() string { return c.id }

// Conn returns the client's control connection. Nil for registry tests that
// never touch the transport.
func (c *Client) Conn() net.Conn { return c.conn }

// SetName updates the display name.
func (c *Client) SetName(name string) {
	c.mu.Lock()
	c.displayName = name
	c.mu.Unlock()
}

// Name returns the display name, falling back to the id while unset.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.displayName == "" {
		return c.id
	}
	return c.displayName
}

// SetKey installs the channel key once the exchange completes. It returns
// false if a key was already established.
func (c *Client) SetKey(key []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channelKey != nil {
		return false
	}
	c.channelKey = key
	return true
}

// Key returns the channel key, or nil before the exchange completes.
func (c *Client) Key() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelKey
}

// Touch refreshes the heartbeat timestamp.
func (c *Client) Touch() {
	c.mu.Lock()
	c.lastHeartbeat = time.Now()
	c.mu.Unlock()
}

// LastHeartbeat returns the last liveness refresh.
func (c *Client) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeat
}

// ClaimLobby atomically records lobby membership. It fails if the client is
// already in a lobby, which keeps membership at most one under concurrent
// joins.
func (c *Client) ClaimLobby(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentLobby != "" {
		return false
	}
	c.currentLobby = name
	return true
}

// ClearLobby drops the lobby pointer.
func (c *Client) ClearLobby() {
	c.mu.Lock()
	c.currentLobby = ""
	c.mu.Unlock()
}

// Lobby returns the name of the lobby the client occupies, or "".
func (c *Client) Lobby() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLobby
}

// SetRendezvous records the client's address on the unreliable transport.
func (c *Client) SetRendezvous(addr *net.UDPAddr) {
	c.mu.Lock()
	c.rendezvousAddr = addr
	c.mu.Unlock()
}

// Rendezvous returns the recorded rendezvous address, or nil.
func (c *Client) Rendezvous() *net.UDPAddr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rendezvousAddr
}

// ClearRendezvous resets the rendezvous address after a match start settles.
func (c *Client) ClearRendezvous() {
	c.mu.Lock()
	c.rendezvousAddr = nil
	c.mu.Unlock()
}

// WriteFrame sends one framed payload on the control connection. Frames from
// concurrent callers are serialized per client.
func (c *Client) WriteFrame(h protocol.Header, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteFrame(c.conn, h, payload)
}

// Registry is the set of currently connected clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry returns an empty client registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register creates a client for a newly accepted connection and assigns it a
// fresh id.
func (r *Registry) Register(conn net.Conn) *Client {
	c := &Client{
		id:            uuid.NewString(),
		conn:          conn,
		lastHeartbeat: time.Now(),
	}
	r.mu.Lock()
	r.clients[c.id] = c
	r.mu.Unlock()
	return c
}

// Find looks up a client by id. Safe to call concurrently with registration
// of unrelated clients.
func (r *Registry) Find(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	return c, ok
}

// Unregister removes a client. Removing an unknown id is a no-op so the
// eviction and teardown paths stay idempotent.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.clients, id)
	r.mu.Unlock()
}

// UpdateHeartbeat refreshes the client's liveness window. It reports whether
// the client was found.
func (r *Registry) UpdateHeartbeat(id string) bool {
	c, ok := r.Find(id)
	if !ok {
		return false
	}
	c.Touch()
	return true
}

// All returns a snapshot of the registered clients, for broadcast iteration.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Expired returns clients whose heartbeat is older than timeout.
func (r *Registry) Expired(timeout time.Duration) []*Client {
	now := time.Now()
	var out []*Client
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		if now.Sub(c.LastHeartbeat()) >= timeout {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
