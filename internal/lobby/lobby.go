// Package lobby implements the named, capacity-bounded, host-owned groups
// that clients form before a match. The registry lock orders above any
// single lobby's lock, and a lobby's lock orders above per-client state, so
// cross-registry operations always nest the same way.
package lobby

import (
	"errors"
	"sync"

	"matchpoint/internal/registry"
)

// State is a lobby's lifecycle phase.
type State int

const (
	// Open accepts join, leave and swap.
	Open State = iota
	// Starting is terminal; the lobby is removed from the registry the
	// moment it is entered.
	Starting
	// Closed is reached only by explicit deletion.
	Closed
)

var (
	// ErrNameTaken rejects a create for a name already in use.
	ErrNameTaken = errors.New("lobby: name already exists")
	// ErrNotFound rejects operations on unknown lobby names.
	ErrNotFound = errors.New("lobby: no such lobby")
	// ErrNotHost rejects privileged operations from non-hosts.
	ErrNotHost = errors.New("lobby: requester is not the host")
	// ErrFull rejects a join against a lobby at capacity.
	ErrFull = errors.New("lobby: lobby is full")
	// ErrAlreadyInLobby rejects create/join from a client with a seat elsewhere.
	ErrAlreadyInLobby = errors.New("lobby: client already in a lobby")
	// ErrNotMember rejects a leave from a client without a seat here.
	ErrNotMember = errors.New("lobby: client is not a member")
	// ErrBadSeat rejects a swap with an out-of-range seat index.
	ErrBadSeat = errors.New("lobby: seat index out of range")
	// ErrNotOpen rejects mutations against a lobby that left Open.
	ErrNotOpen = errors.New("lobby: lobby is not open")
)

// Lobby is one named group. The member order is significant; it is the seat
// assignment the host can rearrange.
type Lobby struct {
	mu      sync.Mutex
	name    string
	host    *registry.Client
	members []*registry.Client
	state   State
}

// Name returns the lobby's unique name.
func (l *Lobby) Name() string { return l.name }

// Host returns the owning client.
func (l *Lobby) Host() *registry.Client {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.host
}

// Members returns the ordered seat list as a snapshot.
func (l *Lobby) Members() []*registry.Client {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*registry.Client, len(l.members))
	copy(out, l.members)
	return out
}

// State returns the lifecycle phase.
func (l *Lobby) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Info is a point-in-time view of a lobby for server info listings.
type Info struct {
	Name    string
	Host    string
	Members []string
}

// Registry is the set of lobbies, keyed by name.
type Registry struct {
	mu       sync.RWMutex
	lobbies  map[string]*Lobby
	capacity int
}

// NewRegistry returns an empty lobby registry. Every lobby it creates holds
// at most capacity members.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		lobbies:  make(map[string]*Lobby),
		capacity: capacity,
	}
}

// Capacity returns the per-lobby member bound.
func (r *Registry) Capacity() int { return r.capacity }

// Create makes a new lobby owned by host. Concurrent creates for the same
// name yield exactly one success.
func (r *Registry) Create(name string, host *registry.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.lobbies[name]; exists {
		return ErrNameTaken
	}
	if !host.ClaimLobby(name) {
		return ErrAlreadyInLobby
	}
	r.lobbies[name] = &Lobby{
		name:    name,
		host:    host,
		members: []*registry.Client{host},
		state:   Open,
	}
	return nil
}

// Delete removes a lobby and frees every member. Host only.
func (r *Registry) Delete(name string, requester *registry.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lb, ok := r.lobbies[name]
	if !ok {
		return ErrNotFound
	}
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.host != requester {
		return ErrNotHost
	}
	r.closeLocked(lb)
	return nil
}

// closeLocked empties a lobby and drops it from the registry. Callers hold
// both r.mu and lb.mu.
func (r *Registry) closeLocked(lb *Lobby) {
	for _, m := range lb.members {
		m.ClearLobby()
	}
	lb.members = nil
	lb.state = Closed
	delete(r.lobbies, lb.name)
}

// Join seats a client in an open lobby. It fails if the lobby is full, not
// open, or the client already holds a seat somewhere.
func (r *Registry) Join(name string, c *registry.Client) error {
	r.mu.RLock()
	lb, ok := r.lobbies[name]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.state != Open {
		return ErrNotOpen
	}
	if len(lb.members) >= r.capacity {
		return ErrFull
	}
	if !c.ClaimLobby(name) {
		return ErrAlreadyInLobby
	}
	lb.members = append(lb.members, c)
	return nil
}

// Leave removes a client's seat. The lobby record survives even when the
// host's seat empties; only Delete removes a lobby.
func (r *Registry) Leave(name string, c *registry.Client) error {
	r.mu.RLock()
	lb, ok := r.lobbies[name]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.state != Open {
		return ErrNotOpen
	}
	if !lb.removeLocked(c) {
		return ErrNotMember
	}
	c.ClearLobby()
	return nil
}

func (l *Lobby) removeLocked(c *registry.Client) bool {
	for i, m := range l.members {
		if m == c {
			l.members = append(l.members[:i], l.members[i+1:]...)
			return true
		}
	}
	return false
}

// Swap exchanges two seats in the ordered member list. Host only.
func (r *Registry) Swap(name string, requester *registry.Client, first, second int) error {
	r.mu.RLock()
	lb, ok := r.lobbies[name]
	r.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.state != Open {
		return ErrNotOpen
	}
	if lb.host != requester {
		return ErrNotHost
	}
	if first < 0 || second < 0 || first >= len(lb.members) || second >= len(lb.members) {
		return ErrBadSeat
	}
	lb.members[first], lb.members[second] = lb.members[second], lb.members[first]
	return nil
}

// Start transitions a lobby to Starting and removes it from the registry in
// the same critical section, so no later join, leave or swap can observe it.
// It returns the member snapshot taken at the moment of transition, host
// first. Host only.
func (r *Registry) Start(name string, requester *registry.Client) ([]*registry.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lb, ok := r.lobbies[name]
	if !ok {
		return nil, ErrNotFound
	}
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.host != requester {
		return nil, ErrNotHost
	}
	snapshot := make([]*registry.Client, len(lb.members))
	copy(snapshot, lb.members)
	for _, m := range lb.members {
		m.ClearLobby()
	}
	lb.members = nil
	lb.state = Starting
	delete(r.lobbies, name)
	return snapshot, nil
}

// RemoveClient cleans up a departing client's membership on disconnect or
// eviction. A vanished host takes its lobby down with it; members are freed
// exactly as if the host had issued delete.
func (r *Registry) RemoveClient(c *registry.Client) {
	name := c.Lobby()
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	lb, ok := r.lobbies[name]
	if !ok {
		c.ClearLobby()
		return
	}
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.host == c {
		r.closeLocked(lb)
		return
	}
	lb.removeLocked(c)
	c.ClearLobby()
}

// Get looks up a lobby by name.
func (r *Registry) Get(name string) (*Lobby, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lb, ok := r.lobbies[name]
	return lb, ok
}

// List returns a point-in-time view of every lobby, for server info
// responses.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.lobbies))
	for _, lb := range r.lobbies {
		lb.mu.Lock()
		info := Info{
			Name:    lb.name,
			Host:    lb.host.Name(),
			Members: make([]string, 0, len(lb.members)),
		}
		for _, m := range lb.members {
			info.Members = append(info.Members, m.Name())
		}
		lb.mu.Unlock()
		out = append(out, info)
	}
	return out
}

// Len returns the number of registered lobbies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lobbies)
}
