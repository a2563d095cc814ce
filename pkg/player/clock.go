package player

import "time"

// The position clock is a per-player background ticker that advances the
// playback position while the player is in StatusPlaying. It is started and
// stopped under the player lock; each run owns a stop channel so a late tick
// from a superseded clock can never mutate state.

func (p *Player) startClockLocked() {
	if p.clockStop != nil {
		return
	}
	stop := make(chan struct{})
	p.clockStop = stop
	go p.runClock(stop)
}

func (p *Player) stopClockLocked() {
	if p.clockStop != nil {
		close(p.clockStop)
		p.clockStop = nil
	}
}

func (p *Player) runClock(stop chan struct{}) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ev, done := p.tickOnce(stop)
			p.emit(ev)
			if done {
				return
			}
		}
	}
}

// tickOnce advances the position by one second and auto-advances the queue
// when a finite, non-looping track reaches its end, exactly as Skip(1) would.
func (p *Player) tickOnce(stop chan struct{}) (event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// A newer clock owns the player, or playback stopped between ticks.
	if p.clockStop != stop || p.status != StatusPlaying || len(p.queue) == 0 {
		return event{}, true
	}

	p.position++

	cur := p.queue[0]
	if cur.IsLive {
		return event{}, false
	}
	if p.position < cur.EndPosition() {
		return event{}, false
	}

	if p.loop {
		p.position = cur.Offset
		return event{}, false
	}

	ev := p.advanceLocked(1, true)
	return ev, p.clockStop != stop
}
