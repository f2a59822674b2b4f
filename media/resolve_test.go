package media

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOpenGraph(t *testing.T) {
	page := `<head><meta property="og:title" content="Blinding Lights - song and lyrics by The Weeknd | Spotify">` +
		`<meta property="og:description" content="The Weeknd · After Hours · Song · 2020"></head>`
	title, artist, err := parseOpenGraph(page)
	require.NoError(t, err)
	assert.Equal(t, "Blinding Lights", title)
	assert.Equal(t, "The Weeknd", artist)

	_, _, err = parseOpenGraph("<head></head>")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	a := newTestAcquirer(t)
	a.Info = func(context.Context, string, string, string) (*Info, error) {
		return nil, errors.New("DRM protected")
	}

	a.Scrape = func(context.Context, string) (string, string, error) {
		return "Blinding Lights", "The Weeknd", nil
	}
	q, err := a.Resolve(context.Background(), "https://open.spotify.com/track/0VjIjW4GlUZAMYd2vXMi3b")
	require.NoError(t, err)
	assert.Equal(t, "The Weeknd - Blinding Lights", q)

	a.Scrape = func(context.Context, string) (string, string, error) {
		return "Tum Hi Ho", "", nil
	}
	q, err = a.Resolve(context.Background(), "https://www.jiosaavn.com/song/tum-hi-ho/EToxUyFpcwQ")
	require.NoError(t, err)
	assert.Equal(t, "Tum Hi Ho", q)

	a.Scrape = func(context.Context, string) (string, string, error) {
		return "", "", errors.New("blocked")
	}
	_, err = a.Resolve(context.Background(), "https://www.deezer.com/track/3135556")
	require.ErrorIs(t, err, ErrResolve)

	q, err = a.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", q)
}

func TestSearchUsesLookup(t *testing.T) {
	a := newTestAcquirer(t)
	a.Lookup = func(_ context.Context, q string) (string, error) {
		assert.Equal(t, "never gonna", q)
		return "dQw4w9WgXcQ", nil
	}
	a.Info = func(_ context.Context, link, _, _ string) (*Info, error) {
		assert.Equal(t, WatchURL("dQw4w9WgXcQ"), link)
		return &Info{ID: "dQw4w9WgXcQ", Title: "Never Gonna Give You Up (Official Video)", Uploader: "Rick Astley", DurationSec: 213}, nil
	}

	tr, err := a.Search(context.Background(), "never gonna", false)
	require.NoError(t, err)
	assert.Equal(t, PlatformYouTube, tr.Platform)
	assert.Equal(t, "03:33", tr.Duration)
	assert.Equal(t, WatchURL("dQw4w9WgXcQ"), tr.URL)
	assert.Equal(t, ThumbnailURL("dQw4w9WgXcQ", ""), tr.Thumbnail())
	assert.LessOrEqual(t, len([]rune(tr.Title)), TitleLimit)
}
