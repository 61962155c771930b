package lobby

import (
	"testing"

	"pgregory.net/rapid"

	"matchpoint/internal/registry"
)

// TestMembershipInvariants drives a lobby registry with random operation
// sequences and checks the structural invariants after every step: no lobby
// exceeds capacity, every member's lobby pointer matches the lobby holding
// its seat, and no client holds more than one seat.
func TestMembershipInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		const capacity = 3
		clients := registry.NewRegistry()
		r := NewRegistry(capacity)

		pool := make([]*registry.Client, 8)
		for i := range pool {
			pool[i] = clients.Register(nil)
		}
		names := []string{"red", "green", "blue"}

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			c := pool[rapid.IntRange(0, len(pool)-1).Draw(t, "client")]
			name := names[rapid.IntRange(0, len(names)-1).Draw(t, "name")]

			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				r.Create(name, c)
			case 1:
				r.Join(name, c)
			case 2:
				r.Leave(name, c)
			case 3:
				r.Delete(name, c)
			}

			checkInvariants(t, r, pool, names, capacity)
		}
	})
}

func checkInvariants(t *rapid.T, r *Registry, pool []*registry.Client, names []string, capacity int) {
	seats := make(map[string]string) // client id -> lobby name holding a seat

	for _, name := range names {
		lb, ok := r.Get(name)
		if !ok {
			continue
		}
		members := lb.Members()
		if len(members) > capacity {
			t.Fatalf("lobby %s has %d members, capacity %d", name, len(members), capacity)
		}
		for _, m := range members {
			if prev, dup := seats[m.ID()]; dup {
				t.Fatalf("client %s seated in both %s and %s", m.ID(), prev, name)
			}
			seats[m.ID()] = name
			if m.Lobby() != name {
				t.Fatalf("client %s seated in %s but points at %q", m.ID(), name, m.Lobby())
			}
		}
	}

	for _, c := range pool {
		if ptr := c.Lobby(); ptr != "" {
			if seats[c.ID()] != ptr {
				t.Fatalf("client %s points at %q but holds no seat there", c.ID(), ptr)
			}
		}
	}
}
