package ingest

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/latoulicious/Kitasan/pkg/cache"
	"github.com/latoulicious/Kitasan/pkg/player"
	"github.com/latoulicious/Kitasan/pkg/provider"
)

// streamProvider names the backend in stream-cache fingerprints.
const streamProvider = "youtube"

// StreamSource hands out playable stream handles for queued tracks, backed
// by the content-addressed file cache so repeated plays of the same track
// skip re-resolution.
type StreamSource struct {
	resolver provider.Resolver
	files    *cache.FileCache
}

// NewStreamSource creates a stream source.
func NewStreamSource(resolver provider.Resolver, files *cache.FileCache) *StreamSource {
	return &StreamSource{resolver: resolver, files: files}
}

// Handle returns the stream handle for a track, reading through the cache.
// Live external streams are never cached.
func (ss *StreamSource) Handle(ctx context.Context, t player.Track) (provider.StreamHandle, error) {
	if t.IsLive {
		return ss.resolver.ResolveStream(ctx, t.ID)
	}

	fp := cache.Fingerprint(streamProvider, t.ID)
	if data, ok := ss.files.Get(fp); ok {
		var h provider.StreamHandle
		if err := json.Unmarshal(data, &h); err == nil {
			return h, nil
		}
		// Corrupt entry; only an explicit refresh may overwrite it.
		return ss.Refresh(ctx, t)
	}

	h, err := ss.resolver.ResolveStream(ctx, t.ID)
	if err != nil {
		return provider.StreamHandle{}, err
	}
	data, err := json.Marshal(h)
	if err != nil {
		return provider.StreamHandle{}, errors.Wrap(err, "encode stream handle")
	}
	if err := ss.files.Put(fp, data); err != nil {
		return provider.StreamHandle{}, err
	}
	return h, nil
}

// Refresh forces re-resolution for a track, replacing its cache entry.
func (ss *StreamSource) Refresh(ctx context.Context, t player.Track) (provider.StreamHandle, error) {
	h, err := ss.resolver.ResolveStream(ctx, t.ID)
	if err != nil {
		return provider.StreamHandle{}, err
	}
	data, err := json.Marshal(h)
	if err != nil {
		return provider.StreamHandle{}, errors.Wrap(err, "encode stream handle")
	}
	if err := ss.files.Refresh(cache.Fingerprint(streamProvider, t.ID), data); err != nil {
		return provider.StreamHandle{}, err
	}
	return h, nil
}
