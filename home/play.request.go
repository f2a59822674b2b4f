package home

import (
	"context"
	"errors"
	"strings"

	"github.com/leeineian/resonance/media"
)

const playlistLimit = 25

type source int

const (
	sourceSearch source = iota
	sourceDirect
	sourceResolve
	sourceLink
	sourcePlaylist
)

func (s source) String() string {
	switch s {
	case sourceDirect:
		return "direct"
	case sourceResolve:
		return "resolve"
	case sourceLink:
		return "link"
	case sourcePlaylist:
		return "playlist"
	}
	return "search"
}

// classify decides how a /play query is looked up. Unknown links go to
// yt-dlp's generic extractor.
func classify(query string) source {
	q := strings.TrimSpace(query)
	if !media.IsURL(q) {
		return sourceSearch
	}
	platform := media.DetectPlatform(q)
	switch {
	case platform == media.PlatformM3U8:
		return sourceDirect
	case media.NeedsResolve(platform):
		return sourceResolve
	case isPlaylist(q):
		return sourcePlaylist
	}
	return sourceLink
}

func isPlaylist(link string) bool {
	l := strings.ToLower(link)
	if strings.Contains(l, "youtube.com/playlist") {
		return true
	}
	if strings.Contains(l, "list=") && media.ExtractID(link) == "" {
		return true
	}
	return strings.Contains(l, "soundcloud.com/") && strings.Contains(l, "/sets/")
}

type resolver interface {
	GetTrack(ctx context.Context, link string, video bool) (*media.Track, error)
	Resolve(ctx context.Context, link string) (string, error)
	Search(ctx context.Context, query string, video bool) (*media.Track, error)
	Playlist(ctx context.Context, link string, limit int, video bool) ([]*media.Track, error)
	CheckDuration(d media.Descriptor) error
}

// lookup turns a query into playable descriptors without downloading them.
// Playlist entries over the duration limit are dropped; a single item over
// it is an error.
func lookup(ctx context.Context, r resolver, query string, video bool) ([]media.Descriptor, error) {
	query = strings.TrimSpace(query)
	switch classify(query) {
	case sourceDirect:
		return []media.Descriptor{media.Passthrough(query, video)}, nil

	case sourcePlaylist:
		tracks, err := r.Playlist(ctx, query, playlistLimit, video)
		if err != nil {
			return nil, err
		}
		var out []media.Descriptor
		var lastErr error
		for _, t := range tracks {
			if err := r.CheckDuration(t); err != nil {
				lastErr = err
				continue
			}
			out = append(out, t)
		}
		if len(out) == 0 {
			if lastErr == nil {
				lastErr = &media.AcquisitionError{ID: query, Err: media.ErrNotFound}
			}
			return nil, lastErr
		}
		return out, nil

	case sourceResolve:
		q, err := r.Resolve(ctx, query)
		if err != nil {
			return nil, err
		}
		query = q
		fallthrough

	case sourceSearch:
		t, err := r.Search(ctx, query, video)
		if err != nil {
			return nil, err
		}
		return single(r, t)
	}

	t, err := r.GetTrack(ctx, query, video)
	if err != nil {
		return nil, err
	}
	return single(r, t)
}

func single(r resolver, t *media.Track) ([]media.Descriptor, error) {
	if err := r.CheckDuration(t); err != nil {
		return nil, err
	}
	return []media.Descriptor{t}, nil
}

// failureKey maps a lookup or download error to a user message key.
func failureKey(err error) string {
	switch {
	case errors.Is(err, media.ErrTooLong):
		return "too_long"
	case errors.Is(err, media.ErrNotFound):
		return "not_found"
	case errors.Is(err, media.ErrResolve):
		return "resolve_failed"
	case errors.Is(err, media.ErrTooLarge):
		return "upload_too_large"
	case errors.Is(err, context.Canceled):
		return "upload_canceled"
	}
	return "error_download"
}
