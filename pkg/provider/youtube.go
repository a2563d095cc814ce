package provider

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/pkg/errors"
	"github.com/ppalone/ytsearch"
)

// YouTube resolves tracks, playlists and streams against YouTube using the
// native youtube client, with search backed by the lightweight ytsearch
// endpoint.
type YouTube struct {
	client *youtube.Client
	search *ytsearch.Client
}

// NewYouTube creates a YouTube resolver.
func NewYouTube() *YouTube {
	return &YouTube{
		client: &youtube.Client{},
		search: ytsearch.NewClient(nil),
	}
}

// Search returns candidate tracks for a free-text query, best match first.
func (y *YouTube) Search(ctx context.Context, query string) ([]TrackInfo, error) {
	res, err := y.search.Search(ctx, query)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	if len(res.Results) == 0 {
		return nil, ErrNoResults
	}

	infos := make([]TrackInfo, 0, len(res.Results))
	for _, r := range res.Results {
		if r.VideoID == "" {
			continue
		}
		infos = append(infos, TrackInfo{
			ID:       r.VideoID,
			Title:    r.Title,
			Artist:   r.Channel,
			URL:      watchURL(r.VideoID),
			Duration: parseClock(r.Duration),
		})
	}
	if len(infos) == 0 {
		return nil, ErrNoResults
	}
	return infos, nil
}

// ResolveTrack fetches full metadata for a single video, including chapter
// markers parsed from the description.
func (y *YouTube) ResolveTrack(ctx context.Context, id string) (TrackInfo, error) {
	v, err := y.client.GetVideoContext(ctx, id)
	if err != nil {
		return TrackInfo{}, errors.Wrapf(ErrUnavailable, "get video %s: %v", id, err)
	}

	isLive := v.HLSManifestURL != ""
	info := TrackInfo{
		ID:       v.ID,
		Title:    v.Title,
		Artist:   v.Author,
		URL:      watchURL(v.ID),
		Duration: v.Duration,
		IsLive:   isLive,
	}
	if len(v.Thumbnails) > 0 {
		info.Thumbnail = v.Thumbnails[len(v.Thumbnails)-1].URL
	}
	if !isLive {
		info.Chapters = parseChapters(v.Description, int(v.Duration/time.Second))
	}
	return info, nil
}

// ResolvePlaylist fetches metadata for every member of a playlist.
func (y *YouTube) ResolvePlaylist(ctx context.Context, id string) (PlaylistInfo, []TrackInfo, error) {
	pl, err := y.client.GetPlaylistContext(ctx, id)
	if err != nil {
		return PlaylistInfo{}, nil, errors.Wrapf(ErrUnavailable, "get playlist %s: %v", id, err)
	}
	if len(pl.Videos) == 0 {
		return PlaylistInfo{}, nil, ErrNoResults
	}

	info := PlaylistInfo{ID: pl.ID, Title: pl.Title}
	tracks := make([]TrackInfo, 0, len(pl.Videos))
	for _, v := range pl.Videos {
		thumb := ""
		if len(v.Thumbnails) > 0 {
			thumb = v.Thumbnails[len(v.Thumbnails)-1].URL
		}
		tracks = append(tracks, TrackInfo{
			ID:        v.ID,
			Title:     v.Title,
			Artist:    v.Author,
			URL:       watchURL(v.ID),
			Duration:  v.Duration,
			Thumbnail: thumb,
		})
	}
	if info.Thumbnail == "" && len(tracks) > 0 {
		info.Thumbnail = tracks[0].Thumbnail
	}
	return info, tracks, nil
}

// ResolveStream picks the best audio format for a video and returns its
// stream URL.
func (y *YouTube) ResolveStream(ctx context.Context, id string) (StreamHandle, error) {
	v, err := y.client.GetVideoContext(ctx, id)
	if err != nil {
		return StreamHandle{}, errors.Wrapf(ErrUnavailable, "get video %s: %v", id, err)
	}
	if v.HLSManifestURL != "" {
		return StreamHandle{URL: v.HLSManifestURL, MimeType: "application/x-mpegURL"}, nil
	}

	formats := v.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return StreamHandle{}, ErrNoResults
	}
	f := &formats[0]
	url, err := y.client.GetStreamURLContext(ctx, v, f)
	if err != nil {
		return StreamHandle{}, errors.Wrapf(ErrUnavailable, "stream url %s: %v", id, err)
	}
	return StreamHandle{URL: url, MimeType: f.MimeType}, nil
}

func watchURL(id string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", id)
}

// chapterLine matches description lines like "12:34 Chapter title" or
// "1:02:03 - Chapter title".
var chapterLine = regexp.MustCompile(`^\s*(?:(\d{1,2}):)?(\d{1,2}):(\d{2})\s*[-–—]?\s+(\S.*)$`)

// parseChapters extracts chapter markers from a video description. A valid
// chapter list starts at 0:00 and has strictly increasing offsets; anything
// else is treated as not having chapters.
func parseChapters(description string, totalSeconds int) []Chapter {
	var chapters []Chapter
	for _, line := range strings.Split(description, "\n") {
		m := chapterLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		hours := 0
		if m[1] != "" {
			hours, _ = strconv.Atoi(m[1])
		}
		mins, _ := strconv.Atoi(m[2])
		secs, _ := strconv.Atoi(m[3])
		chapters = append(chapters, Chapter{
			Title: strings.TrimSpace(m[4]),
			Start: hours*3600 + mins*60 + secs,
		})
	}

	if len(chapters) < 2 || chapters[0].Start != 0 {
		return nil
	}
	for i := 1; i < len(chapters); i++ {
		if chapters[i].Start <= chapters[i-1].Start || chapters[i].Start >= totalSeconds {
			return nil
		}
	}
	return chapters
}

// parseClock converts a "h:mm:ss" or "m:ss" clock string into a duration.
func parseClock(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}
