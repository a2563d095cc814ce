package player

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetCreatesOnce(t *testing.T) {
	r := NewRegistry(nil, WithTick(time.Hour))
	defer r.Shutdown()

	const goroutines = 32
	players := make([]*Player, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			players[i] = r.Get("guild-1")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, players[0], players[i], "every caller must see the same player")
	}
}

func TestRegistrySeparatePlayersPerGuild(t *testing.T) {
	r := NewRegistry(nil, WithTick(time.Hour))
	defer r.Shutdown()

	a := r.Get("guild-a")
	b := r.Get("guild-b")
	require.NotSame(t, a, b)
	assert.Equal(t, "guild-a", a.GuildID())
	assert.Equal(t, "guild-b", b.GuildID())
}

func TestRegistryPeek(t *testing.T) {
	r := NewRegistry(nil, WithTick(time.Hour))
	defer r.Shutdown()

	_, ok := r.Peek("guild-1")
	assert.False(t, ok)

	p := r.Get("guild-1")
	got, ok := r.Peek("guild-1")
	require.True(t, ok)
	assert.Same(t, p, got)
}

func TestRegistryRemoveDestroysPlayer(t *testing.T) {
	r := NewRegistry(nil, WithTick(time.Hour))
	defer r.Shutdown()

	p := r.Get("guild-1")
	require.NoError(t, p.Add([]Track{testTrack("a", 60)}, false, false))

	r.Remove("guild-1")

	require.ErrorIs(t, p.Add([]Track{testTrack("b", 60)}, false, false), ErrPlayerDestroyed)

	_, ok := r.Peek("guild-1")
	assert.False(t, ok)

	// A fresh player is handed out after removal.
	fresh := r.Get("guild-1")
	require.NotSame(t, p, fresh)
	assert.NoError(t, fresh.Add([]Track{testTrack("c", 60)}, false, false))
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry(nil, WithTick(time.Hour))
	defer r.Shutdown()

	assert.Empty(t, r.List())

	r.Get("guild-b")
	r.Get("guild-a")
	assert.Equal(t, []string{"guild-a", "guild-b"}, r.List())

	r.Remove("guild-b")
	assert.Equal(t, []string{"guild-a"}, r.List())
}

func TestRegistryShutdown(t *testing.T) {
	r := NewRegistry(nil, WithTick(time.Hour))

	var players []*Player
	for i := 0; i < 5; i++ {
		players = append(players, r.Get(fmt.Sprintf("guild-%d", i)))
	}

	r.Shutdown()

	for _, p := range players {
		assert.ErrorIs(t, p.Add([]Track{testTrack("x", 60)}, false, false), ErrPlayerDestroyed)
	}
}
