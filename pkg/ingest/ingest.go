// Package ingest turns raw user queries into queue-ready tracks. Resolution
// (provider calls, cache lookups, chapter splitting) happens entirely before
// the guild player is touched, so slow network work never blocks other
// operations on the same guild; the finished batch lands in a single atomic
// Add.
package ingest

import (
	"context"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/latoulicious/Kitasan/pkg/cache"
	"github.com/latoulicious/Kitasan/pkg/player"
	"github.com/latoulicious/Kitasan/pkg/provider"
)

// AddRequest is one user query plus its queueing options.
type AddRequest struct {
	GuildID       string
	Query         string
	Requester     string
	ToFront       bool
	Shuffle       bool
	SplitChapters bool
}

// AddResult reports the accepted batch for display purposes.
type AddResult struct {
	Added    []player.Track
	Playlist *player.PlaylistRef
}

// Service is the ingestion pipeline. Provider failures are surfaced to the
// caller untouched; only the credential layer retries.
type Service struct {
	resolver provider.Resolver
	spotify  provider.SearchTermSource
	lookup   *cache.KV[provider.TrackInfo]
	registry *player.Registry
	logger   *log.Logger

	defaultPlaylist string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDefaultPlaylist sets the playlist resolved for an empty query.
func WithDefaultPlaylist(id string) ServiceOption {
	return func(s *Service) { s.defaultPlaylist = id }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithServiceRand sets the batch-shuffle random source. Tests pass a seeded
// source.
func WithServiceRand(r *rand.Rand) ServiceOption {
	return func(s *Service) { s.rng = r }
}

// NewService wires the pipeline. spotify may be nil, disabling
// cross-provider links.
func NewService(resolver provider.Resolver, spotify provider.SearchTermSource, lookup *cache.KV[provider.TrackInfo], registry *player.Registry, opts ...ServiceOption) *Service {
	s := &Service{
		resolver: resolver,
		spotify:  spotify,
		lookup:   lookup,
		registry: registry,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "ingest"})
	}
	return s
}

// AddQuery resolves a query and queues the result on the guild's player. An
// empty query falls back to the configured default playlist.
func (s *Service) AddQuery(ctx context.Context, req AddRequest) (AddResult, error) {
	tracks, ref, err := s.Resolve(ctx, req)
	if err != nil {
		return AddResult{}, err
	}

	p := s.registry.Get(req.GuildID)
	if err := p.Add(tracks, req.ToFront, false); err != nil {
		return AddResult{}, err
	}

	s.logger.Info("query accepted", "guild", req.GuildID, "tracks", len(tracks))
	return AddResult{Added: tracks, Playlist: ref}, nil
}

// Resolve turns a query into tracks without touching any player.
func (s *Service) Resolve(ctx context.Context, req AddRequest) ([]player.Track, *player.PlaylistRef, error) {
	query := strings.TrimSpace(req.Query)

	var (
		infos []provider.TrackInfo
		ref   *player.PlaylistRef
		err   error
	)

	if query == "" {
		if s.defaultPlaylist == "" {
			return nil, nil, errors.Wrap(ErrInvalidQuery, "empty query")
		}
		infos, ref, err = s.resolvePlaylist(ctx, s.defaultPlaylist)
	} else {
		c := classify(query)
		switch c.kind {
		case kindInvalid:
			return nil, nil, errors.Wrapf(ErrInvalidQuery, "unrecognized link %q", query)
		case kindTrackURL:
			var info provider.TrackInfo
			info, err = s.resolveTrackCached(ctx, query, c.id)
			if err == nil {
				infos = []provider.TrackInfo{info}
			}
		case kindPlaylistURL:
			infos, ref, err = s.resolvePlaylist(ctx, c.id)
		case kindCrossLink:
			infos, ref, err = s.resolveCross(ctx, c)
		default:
			infos, err = s.resolveSearch(ctx, query)
		}
	}
	if err != nil {
		return nil, nil, err
	}
	if len(infos) == 0 {
		return nil, nil, errors.Wrapf(ErrResolution, "query %q", query)
	}

	var tracks []player.Track
	if req.SplitChapters && len(infos) == 1 && len(infos[0].Chapters) > 0 {
		tracks = splitChapters(infos[0], req.Requester)
	} else {
		tracks = make([]player.Track, 0, len(infos))
		for _, info := range infos {
			tracks = append(tracks, buildTrack(info, req.Requester, ref))
		}
	}

	if req.Shuffle {
		s.shuffleBatch(tracks)
	}
	return tracks, ref, nil
}

// resolveTrackCached reads through the lookup cache keyed by the raw query.
func (s *Service) resolveTrackCached(ctx context.Context, key, id string) (provider.TrackInfo, error) {
	if info, ok := s.lookup.Get(key); ok {
		return info, nil
	}
	info, err := s.resolver.ResolveTrack(ctx, id)
	if err != nil {
		return provider.TrackInfo{}, err
	}
	s.lookup.Put(key, info)
	return info, nil
}

func (s *Service) resolvePlaylist(ctx context.Context, id string) ([]provider.TrackInfo, *player.PlaylistRef, error) {
	pl, infos, err := s.resolver.ResolvePlaylist(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return infos, &player.PlaylistRef{Title: pl.Title, SourceID: pl.ID, Thumbnail: pl.Thumbnail}, nil
}

func (s *Service) resolveSearch(ctx context.Context, query string) ([]provider.TrackInfo, error) {
	if info, ok := s.lookup.Get(query); ok {
		return []provider.TrackInfo{info}, nil
	}
	results, err := s.resolver.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	// Full metadata (live flag, chapters) comes from a follow-up resolve of
	// the best match.
	info, err := s.resolver.ResolveTrack(ctx, results[0].ID)
	if err != nil {
		return nil, err
	}
	s.lookup.Put(query, info)
	return []provider.TrackInfo{info}, nil
}

// resolveCross re-resolves a foreign link by searching equivalent tracks on
// the playback provider, one search per member.
func (s *Service) resolveCross(ctx context.Context, c classified) ([]provider.TrackInfo, *player.PlaylistRef, error) {
	if s.spotify == nil {
		return nil, nil, errors.Wrap(ErrInvalidQuery, "cross-provider links are not configured")
	}
	pl, terms, err := s.spotify.SearchTerms(ctx, c.crossKind, c.id)
	if err != nil {
		return nil, nil, err
	}

	var ref *player.PlaylistRef
	if c.crossKind != provider.LinkTrack {
		ref = &player.PlaylistRef{Title: pl.Title, SourceID: pl.ID, Thumbnail: pl.Thumbnail}
	}

	infos := make([]provider.TrackInfo, 0, len(terms))
	for _, term := range terms {
		if cached, ok := s.lookup.Get(term); ok {
			infos = append(infos, cached)
			continue
		}
		results, err := s.resolver.Search(ctx, term)
		if err != nil {
			if errors.Is(err, provider.ErrNoResults) {
				s.logger.Debug("no match for cross-provider term", "term", term)
				continue
			}
			return nil, nil, err
		}
		s.lookup.Put(term, results[0])
		infos = append(infos, results[0])
	}
	return infos, ref, nil
}

func (s *Service) shuffleBatch(tracks []player.Track) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	for i := len(tracks) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		tracks[i], tracks[j] = tracks[j], tracks[i]
	}
}

func buildTrack(info provider.TrackInfo, requester string, ref *player.PlaylistRef) player.Track {
	kind := player.KindStreamable
	if info.IsLive {
		kind = player.KindExternalStream
	}
	return player.Track{
		ID:          info.ID,
		Title:       info.Title,
		SourceURL:   info.URL,
		Duration:    int(info.Duration / time.Second),
		IsLive:      info.IsLive,
		Kind:        kind,
		RequestedBy: requester,
		Thumbnail:   info.Thumbnail,
		Playlist:    ref,
		AddedAt:     time.Now(),
	}
}

// splitChapters explodes a chaptered item into one track per chapter. Each
// segment's duration runs to the next chapter start, or to the track end for
// the last one.
func splitChapters(info provider.TrackInfo, requester string) []player.Track {
	total := int(info.Duration / time.Second)
	tracks := make([]player.Track, 0, len(info.Chapters))
	for i, ch := range info.Chapters {
		end := total
		if i+1 < len(info.Chapters) {
			end = info.Chapters[i+1].Start
		}
		tracks = append(tracks, player.Track{
			ID:          info.ID,
			Title:       ch.Title,
			SourceURL:   info.URL,
			Duration:    end - ch.Start,
			Kind:        player.KindChapterSegment,
			Offset:      ch.Start,
			RequestedBy: requester,
			Thumbnail:   info.Thumbnail,
			AddedAt:     time.Now(),
		})
	}
	return tracks
}
