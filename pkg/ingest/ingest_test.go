package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latoulicious/Kitasan/pkg/cache"
	"github.com/latoulicious/Kitasan/pkg/player"
	"github.com/latoulicious/Kitasan/pkg/provider"
)

// fakeResolver serves canned tracks and counts provider calls so tests can
// observe cache read-through behavior.
type fakeResolver struct {
	mu        sync.Mutex
	tracks    map[string]provider.TrackInfo
	playlists map[string][]provider.TrackInfo
	searches  map[string][]provider.TrackInfo

	resolveCalls int
	searchCalls  int
	streamCalls  int
	streamErr    error
}

func (f *fakeResolver) Search(_ context.Context, query string) ([]provider.TrackInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	results, ok := f.searches[query]
	if !ok || len(results) == 0 {
		return nil, provider.ErrNoResults
	}
	return results, nil
}

func (f *fakeResolver) ResolveTrack(_ context.Context, id string) (provider.TrackInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	info, ok := f.tracks[id]
	if !ok {
		return provider.TrackInfo{}, provider.ErrNoResults
	}
	return info, nil
}

func (f *fakeResolver) ResolvePlaylist(_ context.Context, id string) (provider.PlaylistInfo, []provider.TrackInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	infos, ok := f.playlists[id]
	if !ok {
		return provider.PlaylistInfo{}, nil, provider.ErrNoResults
	}
	return provider.PlaylistInfo{ID: id, Title: "playlist " + id}, infos, nil
}

func (f *fakeResolver) ResolveStream(_ context.Context, id string) (provider.StreamHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamCalls++
	if f.streamErr != nil {
		return provider.StreamHandle{}, f.streamErr
	}
	return provider.StreamHandle{
		URL:      fmt.Sprintf("https://cdn.example/%s?gen=%d", id, f.streamCalls),
		MimeType: "audio/webm",
	}, nil
}

// fakeTermSource mimics the foreign-link side of cross-provider resolution.
type fakeTermSource struct {
	terms map[string][]string
}

func (f *fakeTermSource) SearchTerms(_ context.Context, kind provider.LinkKind, id string) (provider.PlaylistInfo, []string, error) {
	terms, ok := f.terms[id]
	if !ok {
		return provider.PlaylistInfo{}, nil, provider.ErrNoResults
	}
	var pl provider.PlaylistInfo
	if kind != provider.LinkTrack {
		pl = provider.PlaylistInfo{ID: id, Title: "foreign " + id}
	}
	return pl, terms, nil
}

func info(id string, seconds int) provider.TrackInfo {
	return provider.TrackInfo{
		ID:       id,
		Title:    "title " + id,
		URL:      "https://www.youtube.com/watch?v=" + id,
		Duration: time.Duration(seconds) * time.Second,
	}
}

func newFixture(t *testing.T, resolver *fakeResolver, spotify provider.SearchTermSource, opts ...ServiceOption) (*Service, *player.Registry) {
	t.Helper()
	lookup, err := cache.NewKV[provider.TrackInfo](64, time.Minute)
	require.NoError(t, err)

	registry := player.NewRegistry(nil, player.WithTick(time.Hour))
	t.Cleanup(registry.Shutdown)

	return NewService(resolver, spotify, lookup, registry, opts...), registry
}

func TestAddQueryDirectLink(t *testing.T) {
	resolver := &fakeResolver{
		tracks: map[string]provider.TrackInfo{"dQw4w9WgXcQ": info("dQw4w9WgXcQ", 212)},
	}
	svc, registry := newFixture(t, resolver, nil)

	res, err := svc.AddQuery(context.Background(), AddRequest{
		GuildID:   "guild-1",
		Query:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Requester: "alice",
	})
	require.NoError(t, err)
	require.Len(t, res.Added, 1)
	assert.Equal(t, "dQw4w9WgXcQ", res.Added[0].ID)
	assert.Equal(t, 212, res.Added[0].Duration)
	assert.Equal(t, "alice", res.Added[0].RequestedBy)
	assert.Equal(t, player.KindStreamable, res.Added[0].Kind)

	p := registry.Get("guild-1")
	cur, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "dQw4w9WgXcQ", cur.ID)
}

func TestAddQueryReadsThroughLookupCache(t *testing.T) {
	resolver := &fakeResolver{
		tracks: map[string]provider.TrackInfo{"dQw4w9WgXcQ": info("dQw4w9WgXcQ", 212)},
	}
	svc, _ := newFixture(t, resolver, nil)

	req := AddRequest{GuildID: "guild-1", Query: "https://youtu.be/dQw4w9WgXcQ"}
	_, err := svc.AddQuery(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.AddQuery(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, resolver.resolveCalls, "second identical query must hit the cache")
}

func TestAddQuerySearch(t *testing.T) {
	resolver := &fakeResolver{
		tracks: map[string]provider.TrackInfo{"vid00000001": info("vid00000001", 240)},
		searches: map[string][]provider.TrackInfo{
			"uma pyoi song": {info("vid00000001", 240), info("vid00000002", 100)},
		},
	}
	svc, _ := newFixture(t, resolver, nil)

	res, err := svc.AddQuery(context.Background(), AddRequest{GuildID: "guild-1", Query: "uma pyoi song"})
	require.NoError(t, err)
	require.Len(t, res.Added, 1)
	assert.Equal(t, "vid00000001", res.Added[0].ID, "best match wins")
	assert.Equal(t, 1, resolver.resolveCalls, "search follows up with one full resolve")

	// Same term again comes from the cache.
	_, err = svc.AddQuery(context.Background(), AddRequest{GuildID: "guild-1", Query: "uma pyoi song"})
	require.NoError(t, err)
	assert.Equal(t, 1, resolver.searchCalls)
}

func TestAddQuerySearchNoResults(t *testing.T) {
	resolver := &fakeResolver{searches: map[string][]provider.TrackInfo{}}
	svc, _ := newFixture(t, resolver, nil)

	_, err := svc.AddQuery(context.Background(), AddRequest{GuildID: "guild-1", Query: "nothing matches this"})
	require.ErrorIs(t, err, provider.ErrNoResults)
}

func TestAddQueryEmptyQueryWithoutDefault(t *testing.T) {
	svc, _ := newFixture(t, &fakeResolver{}, nil)

	_, err := svc.AddQuery(context.Background(), AddRequest{GuildID: "guild-1", Query: "   "})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestAddQueryEmptyQueryFallsBackToDefaultPlaylist(t *testing.T) {
	resolver := &fakeResolver{
		playlists: map[string][]provider.TrackInfo{
			"PLdefault": {info("vid00000001", 100), info("vid00000002", 200)},
		},
	}
	svc, _ := newFixture(t, resolver, nil, WithDefaultPlaylist("PLdefault"))

	res, err := svc.AddQuery(context.Background(), AddRequest{GuildID: "guild-1"})
	require.NoError(t, err)
	assert.Len(t, res.Added, 2)
	require.NotNil(t, res.Playlist)
	assert.Equal(t, "playlist PLdefault", res.Playlist.Title)
}

func TestAddQueryPlaylistLink(t *testing.T) {
	resolver := &fakeResolver{
		playlists: map[string][]provider.TrackInfo{
			"PLabc123": {info("vid00000001", 100), info("vid00000002", 200), info("vid00000003", 300)},
		},
	}
	svc, registry := newFixture(t, resolver, nil)

	res, err := svc.AddQuery(context.Background(), AddRequest{
		GuildID: "guild-1",
		Query:   "https://www.youtube.com/playlist?list=PLabc123",
	})
	require.NoError(t, err)
	assert.Len(t, res.Added, 3)
	for _, tr := range res.Added {
		require.NotNil(t, tr.Playlist)
		assert.Equal(t, "PLabc123", tr.Playlist.SourceID)
	}

	assert.Equal(t, 2, registry.Get("guild-1").QueueSize())
}

func TestAddQueryInvalidLink(t *testing.T) {
	svc, _ := newFixture(t, &fakeResolver{}, nil)

	_, err := svc.AddQuery(context.Background(), AddRequest{
		GuildID: "guild-1",
		Query:   "https://soundcloud.com/some/track",
	})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestAddQueryCrossProviderAlbum(t *testing.T) {
	resolver := &fakeResolver{
		searches: map[string][]provider.TrackInfo{
			"song one artist": {info("vid00000001", 100)},
			"song two artist": {info("vid00000002", 200)},
		},
	}
	terms := &fakeTermSource{terms: map[string][]string{
		"6dVIqQ8qmQ5GBnJ9shOYGE": {"song one artist", "missing everywhere", "song two artist"},
	}}
	svc, _ := newFixture(t, resolver, terms)

	res, err := svc.AddQuery(context.Background(), AddRequest{
		GuildID: "guild-1",
		Query:   "https://open.spotify.com/album/6dVIqQ8qmQ5GBnJ9shOYGE",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"vid00000001", "vid00000002"}, addedIDs(res), "unmatched terms are skipped, not fatal")
	require.NotNil(t, res.Playlist)
	assert.Equal(t, "foreign 6dVIqQ8qmQ5GBnJ9shOYGE", res.Playlist.Title)
}

func TestAddQueryCrossProviderWithoutCredentials(t *testing.T) {
	svc, _ := newFixture(t, &fakeResolver{}, nil)

	_, err := svc.AddQuery(context.Background(), AddRequest{
		GuildID: "guild-1",
		Query:   "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
	})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestAddQuerySplitChapters(t *testing.T) {
	chaptered := info("longmix0001", 400)
	chaptered.Chapters = []provider.Chapter{
		{Title: "intro", Start: 0},
		{Title: "second", Start: 120},
		{Title: "finale", Start: 300},
	}
	resolver := &fakeResolver{
		tracks: map[string]provider.TrackInfo{"longmix0001": chaptered},
	}
	svc, _ := newFixture(t, resolver, nil)

	res, err := svc.AddQuery(context.Background(), AddRequest{
		GuildID:       "guild-1",
		Query:         "https://youtu.be/longmix0001",
		SplitChapters: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Added, 3)

	type segment struct {
		title            string
		offset, duration int
	}
	var got []segment
	for _, tr := range res.Added {
		assert.Equal(t, player.KindChapterSegment, tr.Kind)
		assert.Equal(t, "longmix0001", tr.ID)
		got = append(got, segment{tr.Title, tr.Offset, tr.Duration})
	}
	assert.Equal(t, []segment{
		{"intro", 0, 120},
		{"second", 120, 180},
		{"finale", 300, 100},
	}, got)
}

func TestAddQueryShuffleIsDeterministicWithSeededSource(t *testing.T) {
	infos := make([]provider.TrackInfo, 5)
	for i := range infos {
		infos[i] = info(fmt.Sprintf("vid0000000%d", i), 100)
	}
	resolver := &fakeResolver{playlists: map[string][]provider.TrackInfo{"PLabc123": infos}}

	permutation := func() []string {
		svc, _ := newFixture(t, resolver, nil, WithServiceRand(rand.New(rand.NewSource(7))))
		res, err := svc.AddQuery(context.Background(), AddRequest{
			GuildID: "guild-1",
			Query:   "https://www.youtube.com/playlist?list=PLabc123",
			Shuffle: true,
		})
		require.NoError(t, err)
		return addedIDs(res)
	}

	first := permutation()
	assert.Equal(t, first, permutation(), "same seed, same order")

	sorted := map[string]bool{}
	for _, id := range first {
		sorted[id] = true
	}
	assert.Len(t, sorted, 5, "shuffle must not duplicate or drop tracks")
}

func TestAddQueryLiveStream(t *testing.T) {
	live := info("livefeed001", 0)
	live.IsLive = true
	resolver := &fakeResolver{tracks: map[string]provider.TrackInfo{"livefeed001": live}}
	svc, _ := newFixture(t, resolver, nil)

	res, err := svc.AddQuery(context.Background(), AddRequest{
		GuildID: "guild-1",
		Query:   "https://youtu.be/livefeed001",
	})
	require.NoError(t, err)
	require.Len(t, res.Added, 1)
	assert.True(t, res.Added[0].IsLive)
	assert.Equal(t, player.KindExternalStream, res.Added[0].Kind)
}

func addedIDs(res AddResult) []string {
	ids := make([]string, len(res.Added))
	for i, tr := range res.Added {
		ids[i] = tr.ID
	}
	return ids
}
