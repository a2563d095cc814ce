package player

// Notifier receives playback lifecycle events so the presentation layer can
// update displayed state without polling the position clock. Implementations
// must not call back into the player synchronously from the callback.
type Notifier interface {
	TrackAdvanced(guildID string, track Track)
	QueueEmptied(guildID string)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) TrackAdvanced(string, Track) {}

func (NopNotifier) QueueEmptied(string) {}

// event is a pending notification, captured while the player lock is held
// and dispatched after it is released.
type event struct {
	advanced *Track
	emptied  bool
}

func (p *Player) emit(ev event) {
	if p.notifier == nil {
		return
	}
	if ev.advanced != nil {
		p.notifier.TrackAdvanced(p.guildID, *ev.advanced)
	}
	if ev.emptied {
		p.notifier.QueueEmptied(p.guildID)
	}
}
