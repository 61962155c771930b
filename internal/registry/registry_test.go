package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAssignsUniqueIDs(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		c := r.Register(nil)
		assert.False(t, seen[c.ID()], "duplicate id %s", c.ID())
		seen[c.ID()] = true
	}
	assert.Equal(t, 100, r.Len())
}

func TestFindAndUnregister(t *testing.T) {
	r := NewRegistry()
	c := r.Register(nil)

	got, ok := r.Find(c.ID())
	require.True(t, ok)
	assert.Same(t, c, got)

	r.Unregister(c.ID())
	_, ok = r.Find(c.ID())
	assert.False(t, ok)

	// Repeated unregister is a no-op.
	r.Unregister(c.ID())
	assert.Equal(t, 0, r.Len())
}

func TestUpdateHeartbeat(t *testing.T) {
	r := NewRegistry()
	c := r.Register(nil)

	before := c.LastHeartbeat()
	time.Sleep(5 * time.Millisecond)
	require.True(t, r.UpdateHeartbeat(c.ID()))
	assert.True(t, c.LastHeartbeat().After(before))

	assert.False(t, r.UpdateHeartbeat("no-such-client"))
}

func TestExpired(t *testing.T) {
	r := NewRegistry()
	stale := r.Register(nil)
	fresh := r.Register(nil)

	time.Sleep(20 * time.Millisecond)
	fresh.Touch()

	expired := r.Expired(15 * time.Millisecond)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID(), expired[0].ID())
}

func TestClaimLobbyAtMostOne(t *testing.T) {
	r := NewRegistry()
	c := r.Register(nil)

	require.True(t, c.ClaimLobby("alpha"))
	assert.False(t, c.ClaimLobby("beta"))
	assert.Equal(t, "alpha", c.Lobby())

	c.ClearLobby()
	assert.True(t, c.ClaimLobby("beta"))
}

func TestClaimLobbyConcurrent(t *testing.T) {
	r := NewRegistry()
	c := r.Register(nil)

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan string, attempts)
	for i := 0; i < attempts; i++ {
		name := string(rune('a' + i%26))
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if c.ClaimLobby(name) {
				wins <- name
			}
		}(name)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)
	assert.Equal(t, winners[0], c.Lobby())
}

func TestKeyInstalledOnce(t *testing.T) {
	r := NewRegistry()
	c := r.Register(nil)

	assert.Nil(t, c.Key())
	require.True(t, c.SetKey([]byte("first")))
	assert.False(t, c.SetKey([]byte("second")))
	assert.Equal(t, []byte("first"), c.Key())
}

func TestNameFallsBackToID(t *testing.T) {
	r := NewRegistry()
	c := r.Register(nil)

	assert.Equal(t, c.ID(), c.Name())
	c.SetName("Ada")
	assert.Equal(t, "Ada", c.Name())
}
