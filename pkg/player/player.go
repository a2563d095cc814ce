package player

import (
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Status is the playback state of a guild player.
type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

const historyLimit = 100

// Player owns the queue and playback state for a single guild. All mutating
// operations are serialized behind one mutex, so concurrent requests for the
// same guild apply in arrival order and never observe a torn queue. While
// playing, queue[0] is the current track and is only removed by an explicit
// skip or stop.
type Player struct {
	guildID  string
	notifier Notifier
	logger   *log.Logger

	mu        sync.Mutex
	status    Status
	queue     []Track
	history   []Track
	position  int // seconds within the underlying source
	loop      bool
	destroyed bool

	rng       *rand.Rand
	tick      time.Duration
	clockStop chan struct{} // non-nil while the position clock runs
}

// Option configures a Player.
type Option func(*Player)

// WithNotifier sets the sink for track-advanced / queue-emptied events.
func WithNotifier(n Notifier) Option {
	return func(p *Player) { p.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Player) { p.logger = l }
}

// WithRand sets the random source used for shuffling. Tests pass a seeded
// source for deterministic permutations.
func WithRand(r *rand.Rand) Option {
	return func(p *Player) { p.rng = r }
}

// WithTick overrides the position clock interval (default one second).
func WithTick(d time.Duration) Option {
	return func(p *Player) { p.tick = d }
}

// NewPlayer creates an idle player for a guild.
func NewPlayer(guildID string, opts ...Option) *Player {
	p := &Player{
		guildID:  guildID,
		notifier: NopNotifier{},
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		tick:     time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "player"})
	}
	p.logger = p.logger.With("guild", guildID)
	return p
}

// GuildID returns the guild this player belongs to.
func (p *Player) GuildID() string { return p.guildID }

// Status returns the current playback state.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Current returns the currently playing track, if any.
func (p *Player) Current() (Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusIdle || len(p.queue) == 0 {
		return Track{}, false
	}
	return p.queue[0], true
}

// Position returns the playback position in seconds within the underlying
// source. For chapter segments this starts at the chapter offset.
func (p *Player) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Loop reports whether the current track loops at end-of-track.
func (p *Player) Loop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loop
}

// SetLoop toggles looping of the current track. It does not affect tracks
// that already advanced past.
func (p *Player) SetLoop(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loop = enabled
}

// QueueSize returns the number of upcoming tracks, excluding the current one.
func (p *Player) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return 0
	}
	return len(p.queue) - 1
}

// QueuePage returns one page of upcoming tracks (excluding the current one)
// and the total number of upcoming tracks.
func (p *Player) QueuePage(page, pageSize int) ([]Track, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var upcoming []Track
	if len(p.queue) > 1 {
		upcoming = p.queue[1:]
	}
	total := len(upcoming)

	start := (page - 1) * pageSize
	if start >= total {
		return nil, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	out := make([]Track, end-start)
	copy(out, upcoming[start:end])
	return out, total
}

// Add inserts a batch of resolved tracks into the queue. If shuffle is set
// the incoming batch is permuted before insertion. toFront inserts the batch
// directly after the current track instead of at the back. If the player is
// idle, the first inserted track becomes current and playback starts.
func (p *Player) Add(tracks []Track, toFront, shuffle bool) error {
	if len(tracks) == 0 {
		return nil
	}

	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return ErrPlayerDestroyed
	}

	batch := make([]Track, len(tracks))
	copy(batch, tracks)
	if shuffle {
		p.shuffleLocked(batch)
	}

	if toFront && len(p.queue) > 1 {
		rest := make([]Track, len(p.queue)-1)
		copy(rest, p.queue[1:])
		p.queue = append(p.queue[:1], append(batch, rest...)...)
	} else if toFront && len(p.queue) == 1 {
		p.queue = append(p.queue, batch...)
	} else {
		p.queue = append(p.queue, batch...)
	}

	var ev event
	if p.status == StatusIdle && len(p.queue) > 0 {
		p.status = StatusPlaying
		p.position = p.queue[0].Offset
		p.startClockLocked()
		cur := p.queue[0]
		ev.advanced = &cur
		p.logger.Info("playback started", "title", cur.Title, "queued", len(p.queue)-1)
	} else {
		p.logger.Info("tracks queued", "count", len(batch), "front", toFront)
	}
	p.mu.Unlock()

	p.emit(ev)
	return nil
}

// Pause freezes playback and the position clock.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != StatusPlaying {
		return ErrNotPlaying
	}
	p.status = StatusPaused
	p.stopClockLocked()
	return nil
}

// Resume continues playback after a pause. On an idle player with queued
// tracks it starts playing the head of the queue.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.status {
	case StatusPlaying:
		return ErrAlreadyPlaying
	case StatusPaused:
		p.status = StatusPlaying
		p.startClockLocked()
		return nil
	default:
		if len(p.queue) == 0 {
			return ErrEmptyQueue
		}
		p.status = StatusPlaying
		p.position = p.queue[0].Offset
		p.startClockLocked()
		return nil
	}
}

// Skip advances past n tracks (default 1). The skipped current track is
// pushed to history only for a single skip; bulk skips discard without
// history. When looping is enabled a single skip replays the current track
// from its start unless overrideLoop is set.
func (p *Player) Skip(n int, overrideLoop bool) error {
	if n <= 0 {
		n = 1
	}

	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return ErrPlayerDestroyed
	}
	if p.status == StatusIdle || len(p.queue) == 0 {
		p.mu.Unlock()
		return ErrEmptyQueue
	}

	if p.loop && !overrideLoop && n == 1 {
		p.position = p.queue[0].Offset
		p.mu.Unlock()
		return nil
	}

	ev := p.advanceLocked(n, n == 1)
	p.mu.Unlock()

	p.emit(ev)
	return nil
}

// Unskip pops the most recent history entry and reinserts it at the front of
// the queue with its original offset, resuming playback if idle.
func (p *Player) Unskip() error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return ErrPlayerDestroyed
	}
	if len(p.history) == 0 {
		p.mu.Unlock()
		return ErrEmptyHistory
	}

	t := p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]

	p.queue = append([]Track{t}, p.queue...)
	p.position = t.Offset
	if p.status == StatusIdle {
		p.status = StatusPlaying
		p.startClockLocked()
	}
	ev := event{advanced: &t}
	p.mu.Unlock()

	p.emit(ev)
	return nil
}

// Seek jumps to the given second within the current track. Live streams
// cannot be seeked. Targets past the end clamp to the track end.
func (p *Player) Seek(seconds int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seekLocked(seconds)
}

// ForwardSeek jumps delta seconds ahead of the current position.
func (p *Player) ForwardSeek(delta int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusIdle || len(p.queue) == 0 {
		return ErrNotPlaying
	}
	return p.seekLocked(p.position - p.queue[0].Offset + delta)
}

func (p *Player) seekLocked(seconds int) error {
	if p.status == StatusIdle || len(p.queue) == 0 {
		return ErrNotPlaying
	}
	cur := p.queue[0]
	if cur.IsLive {
		return ErrLiveSeek
	}
	if seconds < 0 {
		return ErrOutOfRange
	}
	if seconds > cur.Duration {
		seconds = cur.Duration
	}
	p.position = cur.Offset + seconds
	return nil
}

// Shuffle randomly permutes the upcoming queue. The current track stays at
// the front while the player is not idle.
func (p *Player) Shuffle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := 1
	if p.status == StatusIdle {
		start = 0
	}
	if len(p.queue)-start < 2 {
		return
	}
	p.shuffleLocked(p.queue[start:])
	p.logger.Info("queue shuffled", "count", len(p.queue)-start)
}

// Move relocates an upcoming queue entry. Positions are 1-based over the
// queue excluding the current track.
func (p *Player) Move(from, to int) (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	upcoming := len(p.queue) - 1
	if upcoming < 1 {
		return Track{}, ErrEmptyQueue
	}
	if from < 1 || from > upcoming || to < 1 || to > upcoming {
		return Track{}, ErrOutOfRange
	}

	src := from // queue index: upcoming position n is queue[n]
	dst := to
	item := p.queue[src]
	p.queue = append(p.queue[:src], p.queue[src+1:]...)
	p.queue = append(p.queue[:dst], append([]Track{item}, p.queue[dst:]...)...)
	return item, nil
}

// Remove deletes an upcoming queue entry. Positions are 1-based over the
// queue excluding the current track.
func (p *Player) Remove(position int) (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	upcoming := len(p.queue) - 1
	if upcoming < 1 {
		return Track{}, ErrEmptyQueue
	}
	if position < 1 || position > upcoming {
		return Track{}, ErrOutOfRange
	}

	removed := p.queue[position]
	p.queue = append(p.queue[:position], p.queue[position+1:]...)
	p.logger.Info("track removed", "title", removed.Title, "position", position)
	return removed, nil
}

// Clear drops every upcoming track, keeping the current one.
func (p *Player) Clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) <= 1 {
		return 0
	}
	dropped := len(p.queue) - 1
	p.queue = p.queue[:1]
	return dropped
}

// Stop halts playback and empties the queue and history.
func (p *Player) Stop() {
	p.mu.Lock()
	p.stopClockLocked()
	p.status = StatusIdle
	p.queue = nil
	p.history = nil
	p.position = 0
	p.mu.Unlock()

	p.emit(event{emptied: true})
}

// Destroy releases the player. The position clock stops immediately and all
// further mutations fail. Safe to call more than once.
func (p *Player) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.stopClockLocked()
	p.status = StatusIdle
	p.queue = nil
	p.history = nil
}

// advanceLocked dequeues n tracks. Caller holds the lock and guarantees a
// non-empty queue.
func (p *Player) advanceLocked(n int, recordHistory bool) event {
	if recordHistory {
		p.history = append(p.history, p.queue[0])
		if len(p.history) > historyLimit {
			p.history = p.history[len(p.history)-historyLimit:]
		}
	}

	if n > len(p.queue) {
		n = len(p.queue)
	}
	p.queue = p.queue[n:]

	if len(p.queue) > 0 {
		cur := p.queue[0]
		p.position = cur.Offset
		p.status = StatusPlaying
		p.startClockLocked()
		return event{advanced: &cur}
	}

	p.status = StatusIdle
	p.position = 0
	p.stopClockLocked()
	return event{emptied: true}
}

func (p *Player) shuffleLocked(tracks []Track) {
	for i := len(tracks) - 1; i > 0; i-- {
		j := p.rng.Intn(i + 1)
		tracks[i], tracks[j] = tracks[j], tracks[i]
	}
}
