package player

import "time"

// MediaKind identifies how a track maps onto its underlying source.
type MediaKind int

const (
	// KindStreamable is a plain resolvable media item.
	KindStreamable MediaKind = iota
	// KindChapterSegment is a slice of a longer source, bounded by chapter markers.
	KindChapterSegment
	// KindExternalStream is a live or externally hosted stream (e.g. HLS).
	KindExternalStream
)

func (k MediaKind) String() string {
	switch k {
	case KindStreamable:
		return "streamable"
	case KindChapterSegment:
		return "chapter"
	case KindExternalStream:
		return "external"
	default:
		return "unknown"
	}
}

// PlaylistRef ties a track back to the playlist it was added from.
type PlaylistRef struct {
	Title     string
	SourceID  string
	Thumbnail string
}

// Track is a single queue entry. Tracks are immutable once created and are
// owned exclusively by the queue that holds them.
type Track struct {
	ID          string
	Title       string
	SourceURL   string
	Duration    int // seconds; 0 for live streams
	IsLive      bool
	Kind        MediaKind
	Offset      int // start offset in seconds within the underlying source
	RequestedBy string
	Thumbnail   string
	Playlist    *PlaylistRef
	AddedAt     time.Time
}

// EndPosition is the position at which playback of this track completes.
// For chapter segments this is the chapter boundary within the source.
func (t Track) EndPosition() int {
	return t.Offset + t.Duration
}
