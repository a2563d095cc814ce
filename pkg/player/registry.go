package player

import (
	"os"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// Registry maps guild IDs to their players, creating them lazily. Creation
// is exactly-once per guild even under concurrent first requests; the
// registry lock is never held across player operations, so guilds stay
// independent units of concurrency.
type Registry struct {
	mu      sync.Mutex
	players map[string]*Player
	opts    []Option
	logger  *log.Logger
}

// NewRegistry creates an empty registry. opts are applied to every player it
// creates.
func NewRegistry(logger *log.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "registry"})
	}
	return &Registry{
		players: make(map[string]*Player),
		opts:    opts,
		logger:  logger,
	}
}

// Get returns the player for a guild, creating it on first use.
func (r *Registry) Get(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[guildID]; ok {
		return p
	}
	p := NewPlayer(guildID, r.opts...)
	r.players[guildID] = p
	r.logger.Info("player created", "guild", guildID)
	return p
}

// Peek returns the player for a guild without creating one.
func (r *Registry) Peek(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

// List returns the guild IDs that currently have a player.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	guilds := make([]string, 0, len(r.players))
	for id := range r.players {
		guilds = append(guilds, id)
	}
	sort.Strings(guilds)
	return guilds
}

// Remove destroys the guild's player and releases its resources. No-op if
// the guild has no player.
func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	p, ok := r.players[guildID]
	delete(r.players, guildID)
	r.mu.Unlock()

	if ok {
		p.Destroy()
		r.logger.Info("player removed", "guild", guildID)
	}
}

// Shutdown destroys every player.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	r.players = make(map[string]*Player)
	r.mu.Unlock()

	for _, p := range players {
		p.Destroy()
	}
}
