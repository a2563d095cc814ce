package provider

import (
	"context"

	"github.com/pkg/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// spotifyPageLimit bounds how many playlist members a single add pulls in.
const spotifyPageLimit = 50

// TokenSource supplies a currently valid bearer token. The credentials
// session satisfies this.
type TokenSource interface {
	Token() (string, error)
}

// Spotify resolves Spotify links into search terms for re-resolution on the
// playback provider. Spotify itself never serves audio here; its tracks,
// albums and playlists are replayed through equivalent matches elsewhere.
type Spotify struct {
	tokens TokenSource
	auth   *spotifyauth.Authenticator
}

// NewSpotify creates a Spotify resolver backed by the given token source.
func NewSpotify(tokens TokenSource) *Spotify {
	return &Spotify{
		tokens: tokens,
		auth:   spotifyauth.New(),
	}
}

func (s *Spotify) client(ctx context.Context) (*spotify.Client, error) {
	tok, err := s.tokens.Token()
	if err != nil {
		return nil, err
	}
	httpClient := s.auth.Client(ctx, &oauth2.Token{AccessToken: tok, TokenType: "Bearer"})
	return spotify.New(httpClient), nil
}

// SearchTerms resolves a Spotify entity into "title artist" search terms.
func (s *Spotify) SearchTerms(ctx context.Context, kind LinkKind, id string) (PlaylistInfo, []string, error) {
	c, err := s.client(ctx)
	if err != nil {
		return PlaylistInfo{}, nil, err
	}

	switch kind {
	case LinkTrack:
		t, err := c.GetTrack(ctx, spotify.ID(id))
		if err != nil {
			return PlaylistInfo{}, nil, errors.Wrapf(ErrUnavailable, "spotify track %s: %v", id, err)
		}
		return PlaylistInfo{}, []string{trackTerm(t.Name, t.Artists)}, nil

	case LinkAlbum:
		a, err := c.GetAlbum(ctx, spotify.ID(id))
		if err != nil {
			return PlaylistInfo{}, nil, errors.Wrapf(ErrUnavailable, "spotify album %s: %v", id, err)
		}
		info := PlaylistInfo{ID: id, Title: a.Name}
		if len(a.Images) > 0 {
			info.Thumbnail = a.Images[0].URL
		}
		terms := make([]string, 0, len(a.Tracks.Tracks))
		for _, t := range a.Tracks.Tracks {
			terms = append(terms, trackTerm(t.Name, t.Artists))
		}
		if len(terms) == 0 {
			return PlaylistInfo{}, nil, ErrNoResults
		}
		return info, terms, nil

	case LinkPlaylist:
		p, err := c.GetPlaylist(ctx, spotify.ID(id))
		if err != nil {
			return PlaylistInfo{}, nil, errors.Wrapf(ErrUnavailable, "spotify playlist %s: %v", id, err)
		}
		info := PlaylistInfo{ID: id, Title: p.Name}
		if len(p.Images) > 0 {
			info.Thumbnail = p.Images[0].URL
		}
		items := p.Tracks.Tracks
		if len(items) > spotifyPageLimit {
			items = items[:spotifyPageLimit]
		}
		terms := make([]string, 0, len(items))
		for _, item := range items {
			if item.Track.Name == "" {
				continue
			}
			terms = append(terms, trackTerm(item.Track.Name, item.Track.Artists))
		}
		if len(terms) == 0 {
			return PlaylistInfo{}, nil, ErrNoResults
		}
		return info, terms, nil

	default:
		return PlaylistInfo{}, nil, errors.Errorf("unknown spotify link kind %d", kind)
	}
}

func trackTerm(name string, artists []spotify.SimpleArtist) string {
	if len(artists) == 0 {
		return name
	}
	return name + " " + artists[0].Name
}
