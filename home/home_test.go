package home

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/media"
	"github.com/leeineian/resonance/proc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  source
	}{
		{"never gonna give you up", sourceSearch},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", sourceLink},
		{"https://youtu.be/dQw4w9WgXcQ", sourceLink},
		{"https://www.youtube.com/playlist?list=PL123", sourcePlaylist},
		{"https://soundcloud.com/artist/sets/album", sourcePlaylist},
		{"https://open.spotify.com/track/abc123", sourceResolve},
		{"https://example.com/clip.mp4", sourceLink},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.query), tt.query)
	}
}

type fakeResolver struct {
	tracks   map[string]*media.Track
	playlist []*media.Track
	resolved string
	limit    int
	calls    []string
}

func (f *fakeResolver) GetTrack(_ context.Context, link string, _ bool) (*media.Track, error) {
	f.calls = append(f.calls, "track:"+link)
	if t, ok := f.tracks[link]; ok {
		return t, nil
	}
	return nil, &media.AcquisitionError{ID: link, Err: media.ErrNotFound}
}

func (f *fakeResolver) Resolve(_ context.Context, link string) (string, error) {
	f.calls = append(f.calls, "resolve:"+link)
	if f.resolved == "" {
		return "", &media.AcquisitionError{ID: link, Err: media.ErrResolve}
	}
	return f.resolved, nil
}

func (f *fakeResolver) Search(_ context.Context, query string, _ bool) (*media.Track, error) {
	f.calls = append(f.calls, "search:"+query)
	if t, ok := f.tracks[query]; ok {
		return t, nil
	}
	return nil, &media.AcquisitionError{ID: query, Err: media.ErrNotFound}
}

func (f *fakeResolver) Playlist(_ context.Context, link string, _ int, _ bool) ([]*media.Track, error) {
	f.calls = append(f.calls, "playlist:"+link)
	return f.playlist, nil
}

func (f *fakeResolver) CheckDuration(d media.Descriptor) error {
	if f.limit > 0 && d.Base().DurationSec > f.limit {
		return &media.AcquisitionError{ID: d.Base().ID, Err: media.ErrTooLong}
	}
	return nil
}

func track(id string, dur int) *media.Track {
	return &media.Track{Common: media.Common{ID: id, Title: "title " + id, DurationSec: dur, URL: media.WatchURL(id)}}
}

func TestLookupSearch(t *testing.T) {
	r := &fakeResolver{tracks: map[string]*media.Track{"lofi": track("a", 60)}}
	got, err := lookup(context.Background(), r, "  lofi ", false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Base().ID)
	assert.Equal(t, []string{"search:lofi"}, r.calls)
}

func TestLookupResolvesMusicLinks(t *testing.T) {
	link := "https://open.spotify.com/track/abc123"
	r := &fakeResolver{resolved: "artist - song", tracks: map[string]*media.Track{"artist - song": track("b", 200)}}
	got, err := lookup(context.Background(), r, link, false)
	require.NoError(t, err)
	assert.Equal(t, "b", got[0].Base().ID)
	assert.Equal(t, []string{"resolve:" + link, "search:artist - song"}, r.calls)

	r.resolved = ""
	_, err = lookup(context.Background(), r, link, false)
	assert.Equal(t, "resolve_failed", failureKey(err))
}

func TestLookupDirectStream(t *testing.T) {
	link := "https://cdn.example.com/live/index.m3u8"
	r := &fakeResolver{}
	got, err := lookup(context.Background(), r, link, true)
	require.NoError(t, err)
	assert.Equal(t, media.KindRaw, got[0].Kind())
	assert.Equal(t, link, got[0].Base().FilePath)
	assert.Empty(t, r.calls)
}

func TestLookupRejectsLongTrack(t *testing.T) {
	link := "https://youtu.be/dQw4w9WgXcQ"
	r := &fakeResolver{limit: 100, tracks: map[string]*media.Track{link: track("c", 500)}}
	_, err := lookup(context.Background(), r, link, false)
	assert.ErrorIs(t, err, media.ErrTooLong)
	assert.Equal(t, "too_long", failureKey(err))
}

func TestLookupPlaylistDropsLongEntries(t *testing.T) {
	link := "https://www.youtube.com/playlist?list=PL123"
	r := &fakeResolver{limit: 100, playlist: []*media.Track{track("a", 50), track("b", 500), track("c", 90)}}
	got, err := lookup(context.Background(), r, link, false)
	require.NoError(t, err)
	var ids []string
	for _, d := range got {
		ids = append(ids, d.Base().ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)

	r.playlist = []*media.Track{track("b", 500)}
	_, err = lookup(context.Background(), r, link, false)
	assert.ErrorIs(t, err, media.ErrTooLong)

	r.playlist = nil
	_, err = lookup(context.Background(), r, link, false)
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func TestFailureKey(t *testing.T) {
	assert.Equal(t, "not_found", failureKey(&media.AcquisitionError{Err: media.ErrNotFound}))
	assert.Equal(t, "upload_too_large", failureKey(media.ErrTooLarge))
	assert.Equal(t, "upload_canceled", failureKey(context.Canceled))
	assert.Equal(t, "error_download", failureKey(errors.New("boom")))
}

type fakeController struct {
	call    bool
	changed bool
	err     error
	ops     []string
}

func (f *fakeController) op(name string) (bool, error) {
	f.ops = append(f.ops, name)
	return f.changed, f.err
}

func (f *fakeController) Pause(context.Context, snowflake.ID) (bool, error)  { return f.op("pause") }
func (f *fakeController) Resume(context.Context, snowflake.ID) (bool, error) { return f.op("resume") }
func (f *fakeController) Mute(context.Context, snowflake.ID) (bool, error)   { return f.op("mute") }
func (f *fakeController) Unmute(context.Context, snowflake.ID) (bool, error) { return f.op("unmute") }
func (f *fakeController) PlayNext(context.Context, snowflake.ID) error {
	_, err := f.op("next")
	return err
}
func (f *fakeController) Replay(context.Context, snowflake.ID) error {
	_, err := f.op("replay")
	return err
}
func (f *fakeController) Stop(context.Context, snowflake.ID) error {
	_, err := f.op("stop")
	return err
}
func (f *fakeController) HasCall(context.Context, snowflake.ID) bool { return f.call }

func TestControlNeedsCall(t *testing.T) {
	c := &fakeController{}
	for _, action := range []string{"pause", "resume", "skip", "replay", "mute", "unmute"} {
		assert.Equal(t, "no_call", control(context.Background(), c, 1, action).key, action)
	}
	assert.Empty(t, c.ops)

	assert.Equal(t, "stopped", control(context.Background(), c, 1, "stop").key)
	assert.Equal(t, []string{"stop"}, c.ops)
}

func TestControlReplies(t *testing.T) {
	ctx := context.Background()
	c := &fakeController{call: true, changed: true}
	assert.Equal(t, "paused", control(ctx, c, 1, "pause").key)
	assert.Equal(t, "resumed", control(ctx, c, 1, "resume").key)
	assert.Equal(t, "muted", control(ctx, c, 1, "mute").key)
	assert.Equal(t, "skipped", control(ctx, c, 1, "skip").key)
	assert.Equal(t, "replaying", control(ctx, c, 1, "replay").key)
	assert.Equal(t, "unknown_action", control(ctx, c, 1, "dance").key)

	c.changed = false
	assert.Equal(t, "already_paused", control(ctx, c, 1, "pause").key)
	assert.Equal(t, "already_playing", control(ctx, c, 1, "resume").key)
	assert.Equal(t, "not_muted", control(ctx, c, 1, "unmute").key)
	assert.Equal(t, "skipped", control(ctx, c, 1, "skip").key, "skip always reports")
}

func TestControlErrors(t *testing.T) {
	ctx := context.Background()
	c := &fakeController{call: true, err: proc.ErrNoActiveCall}
	assert.Equal(t, "no_call", control(ctx, c, 1, "pause").key)

	c.err = &proc.FatalCallError{Chat: 1, Err: proc.ErrUnavailable}
	assert.Equal(t, "stopped", control(ctx, c, 1, "skip").key)

	c.err = errors.New("boom")
	assert.Equal(t, "error_play", control(ctx, c, 1, "replay").key)
}

func TestCheckSeek(t *testing.T) {
	d := track("a", 120)
	_, ok := checkSeek(d, 60)
	assert.True(t, ok)

	r, ok := checkSeek(d, 120)
	assert.False(t, ok)
	assert.Equal(t, "seek_invalid", r.key)
	assert.Equal(t, []any{"02:00"}, r.args)

	_, ok = checkSeek(media.Passthrough("https://x/live.m3u8", false), 9999)
	assert.True(t, ok, "live streams have no length")
}

func TestRenderQueue(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "The queue is empty.", renderQueue(ctx, 1, nil))

	var items []media.Descriptor
	for i := range 14 {
		items = append(items, track(fmt.Sprint(i), 60))
	}
	out := renderQueue(ctx, 1, items)
	lines := strings.Split(out, "\n")
	assert.Equal(t, "**Queue** (14)", lines[0])
	assert.Contains(t, lines[1], "▶️ **title 0**")
	assert.Contains(t, lines[2], "`1.` title 1")
	assert.Equal(t, "… +3", lines[len(lines)-1])
}

func TestRenderStats(t *testing.T) {
	out := renderStats(playbackStats{Assistants: 2, ActiveCalls: 3, VoicePing: 40 * time.Millisecond, CookiePool: 5})
	assert.True(t, strings.HasPrefix(out, "```ansi\n"))
	assert.Contains(t, out, "Active Calls:")
	assert.Contains(t, out, "40ms")
	assert.NotContains(t, out, "Gateway", "zero latencies are hidden")
}

func TestChoiceNameKeepsRunesWhole(t *testing.T) {
	long := track("a", 60)
	long.Title = strings.Repeat("日本語", 40)
	long.Duration = "01:00"

	name := choiceName(long)
	assert.True(t, utf8.ValidString(name))
	assert.Equal(t, 100, utf8.RuneCountInString(name))
	assert.True(t, strings.HasSuffix(name, "..."))

	short := track("b", 60)
	short.Duration = "01:00"
	assert.Equal(t, "title b (01:00)", choiceName(short))
}
