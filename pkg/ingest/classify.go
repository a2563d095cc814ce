package ingest

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/latoulicious/Kitasan/pkg/provider"
)

type queryKind int

const (
	kindSearch queryKind = iota
	kindTrackURL
	kindPlaylistURL
	kindCrossLink
	kindInvalid
)

type classified struct {
	kind      queryKind
	id        string
	crossKind provider.LinkKind
}

var videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// isURL reports whether the input looks like a link rather than a search
// term.
func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

// classify sorts a raw query into a direct media URL, a playlist URL, a
// cross-provider link needing re-resolution, or a free-text search term.
func classify(query string) classified {
	if !isURL(query) {
		return classified{kind: kindSearch}
	}

	raw := query
	if strings.HasPrefix(raw, "www.") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return classified{kind: kindInvalid}
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch {
	case strings.HasSuffix(host, "spotify.com"):
		return classifySpotify(u)
	case host == "youtube.com" || host == "m.youtube.com" || host == "music.youtube.com":
		if list := u.Query().Get("list"); list != "" {
			return classified{kind: kindPlaylistURL, id: list}
		}
		if v := u.Query().Get("v"); videoIDPattern.MatchString(v) {
			return classified{kind: kindTrackURL, id: v}
		}
		if strings.HasPrefix(u.Path, "/embed/") || strings.HasPrefix(u.Path, "/shorts/") {
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if id := parts[len(parts)-1]; videoIDPattern.MatchString(id) {
				return classified{kind: kindTrackURL, id: id}
			}
		}
		return classified{kind: kindInvalid}
	case host == "youtu.be":
		id := strings.Trim(u.Path, "/")
		if videoIDPattern.MatchString(id) {
			return classified{kind: kindTrackURL, id: id}
		}
		return classified{kind: kindInvalid}
	default:
		return classified{kind: kindInvalid}
	}
}

func classifySpotify(u *url.URL) classified {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// Tolerate locale prefixes like /intl-ja/track/<id>.
	for len(parts) > 2 {
		parts = parts[1:]
	}
	if len(parts) != 2 || parts[1] == "" {
		return classified{kind: kindInvalid}
	}
	c := classified{kind: kindCrossLink, id: parts[1]}
	switch parts[0] {
	case "track":
		c.crossKind = provider.LinkTrack
	case "album":
		c.crossKind = provider.LinkAlbum
	case "playlist":
		c.crossKind = provider.LinkPlaylist
	default:
		return classified{kind: kindInvalid}
	}
	return c
}
