// Package provider defines the capability boundary to external media
// providers. Implementations are fallible and never retry internally;
// recovery policy belongs to the caller.
package provider

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoResults   = errors.New("provider returned no results")
	ErrUnavailable = errors.New("provider unavailable")
)

// Chapter marks a named offset within a longer source.
type Chapter struct {
	Title string
	Start int // seconds from the start of the source
}

// TrackInfo is resolved metadata for a single playable item.
type TrackInfo struct {
	ID        string
	Title     string
	Artist    string
	URL       string
	Duration  time.Duration
	IsLive    bool
	Thumbnail string
	Chapters  []Chapter
}

// PlaylistInfo is resolved metadata for a playlist container.
type PlaylistInfo struct {
	ID        string
	Title     string
	Thumbnail string
}

// StreamHandle points at playable stream data for a resolved track.
type StreamHandle struct {
	URL      string
	MimeType string
}

// Resolver turns identifiers and queries into track metadata.
type Resolver interface {
	Search(ctx context.Context, query string) ([]TrackInfo, error)
	ResolveTrack(ctx context.Context, id string) (TrackInfo, error)
	ResolvePlaylist(ctx context.Context, id string) (PlaylistInfo, []TrackInfo, error)
	ResolveStream(ctx context.Context, id string) (StreamHandle, error)
}

// SearchTermSource resolves a foreign link into search terms for
// re-resolution on another provider. Cross-provider links (a Spotify album
// played through a YouTube backend) go through this.
type SearchTermSource interface {
	SearchTerms(ctx context.Context, kind LinkKind, id string) (PlaylistInfo, []string, error)
}

// LinkKind classifies a cross-provider link.
type LinkKind int

const (
	LinkTrack LinkKind = iota
	LinkAlbum
	LinkPlaylist
)
