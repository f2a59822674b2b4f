package proc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chat = snowflake.ID(42)

func TestEnqueueStartsFirstAndQueuesRest(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	pos, err := h.o.Enqueue(ctx, chat, media.MessageRef{}, track("a", true))
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	pos, err = h.o.Enqueue(ctx, chat, media.MessageRef{}, track("b", true))
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	plays := h.conn.plays()
	require.Len(t, plays, 1)
	assert.Equal(t, "/cache/a.webm", plays[0].AudioPath)
	assert.True(t, h.o.HasCall(ctx, chat))
	assert.Contains(t, h.msg.texts(), "queued:1title bhttps://youtu.be/b")

	cur := h.o.Queue().Current(chat).Base()
	assert.False(t, cur.Message.IsZero(), "now playing card is tracked on the item")
	assert.False(t, cur.StartedAt.IsZero())
}

func TestEnqueueDuringQueueEndKeepsNewItem(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.o.Enqueue(ctx, chat, media.MessageRef{}, track("a", true))
	require.NoError(t, err)

	// Fire a new request while the finished queue is being torn down.
	done := make(chan error, 1)
	var once sync.Once
	h.store.hookHasCall(func() {
		once.Do(func() {
			go func() {
				_, err := h.o.Enqueue(ctx, chat, media.MessageRef{}, track("b", true))
				done <- err
			}()
			time.Sleep(20 * time.Millisecond)
		})
	})

	require.NoError(t, h.o.PlayNext(ctx, chat))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue never finished")
	}

	cur := h.o.Queue().Current(chat)
	require.NotNil(t, cur, "the playing item stays current")
	assert.Equal(t, "b", cur.Base().ID)
	assert.True(t, h.o.HasCall(ctx, chat))
	assert.Len(t, h.conn.plays(), 2)
}

func TestAppend(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.o.Enqueue(ctx, chat, media.MessageRef{}, track("a", true))
	require.NoError(t, err)
	n, err := h.o.Append(ctx, chat, track("b", false), track("c", false))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, h.o.Queue().Len(chat))
	assert.Len(t, h.conn.plays(), 1, "appending behind a playing item does not start anything")
	assert.Zero(t, h.acq.calls.Load())

	require.NoError(t, h.o.Stop(ctx, chat))
	_, err = h.o.Append(ctx, chat, track("d", false), track("e", false))
	require.NoError(t, err)
	assert.Equal(t, "d", h.o.Queue().Current(chat).Base().ID)
	assert.Equal(t, int32(1), h.acq.calls.Load(), "only the new head is fetched")
	assert.Len(t, h.conn.plays(), 2)
	assert.True(t, h.o.HasCall(ctx, chat))
}

func TestVideoSpec(t *testing.T) {
	h := newHarness()
	v := track("v", true)
	v.Video = true

	_, err := h.o.Enqueue(context.Background(), chat, media.MessageRef{}, v)
	require.NoError(t, err)

	plays := h.conn.plays()
	require.Len(t, plays, 1)
	assert.True(t, plays[0].Video)
	assert.Equal(t, plays[0].AudioPath, plays[0].VideoPath)
	assert.Contains(t, h.msg.texts()[0], "now_playing_video")
}

func TestSetVolumeClamps(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	for _, tc := range []struct{ in, want int }{{-10, 0}, {250, 200}, {100, 100}} {
		got, err := h.o.SetVolume(ctx, chat, tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
	assert.Equal(t, []int{0, 200, 100}, h.conn.volumes)
}

func TestControlsNeedAConnection(t *testing.T) {
	a, b := newFakeConn(), newFakeConn()
	o, err := NewOrchestrator(Deps{Conns: []Connection{a, b}, Store: newFakeStore(), Messenger: &fakeMessenger{}, Lang: fakeLang{}})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = o.Pause(ctx, chat)
	assert.ErrorIs(t, err, ErrNoActiveCall)
	_, err = o.SetVolume(ctx, chat, 50)
	assert.ErrorIs(t, err, ErrNoActiveCall)
	_, err = o.Mute(ctx, chat)
	assert.ErrorIs(t, err, ErrNoActiveCall)
}

func TestNewOrchestratorNeedsConnections(t *testing.T) {
	_, err := NewOrchestrator(Deps{})
	assert.Error(t, err)
}

func TestPauseResumePersist(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	ok, err := h.o.Pause(ctx, chat)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, h.o.IsPaused(ctx, chat))

	_, err = h.o.Resume(ctx, chat)
	require.NoError(t, err)
	assert.False(t, h.o.IsPaused(ctx, chat))
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.o.Enqueue(ctx, chat, media.MessageRef{}, track("a", true))
	require.NoError(t, err)

	require.NoError(t, h.o.Stop(ctx, chat))
	require.NoError(t, h.o.Stop(ctx, chat))

	assert.Equal(t, 1, h.conn.leaveCount())
	_, removes := h.store.counts()
	assert.Equal(t, 1, removes)
	assert.Zero(t, h.o.Queue().Len(chat))
	assert.False(t, h.o.HasCall(ctx, chat))
}

func TestStopWithoutCallIsNoop(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.o.Stop(context.Background(), chat))
	assert.Zero(t, h.conn.leaveCount())
	_, removes := h.store.counts()
	assert.Zero(t, removes)
}

func TestPlayNextOnLastItemStops(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.o.Enqueue(ctx, chat, media.MessageRef{}, track("a", true))
	require.NoError(t, err)
	card := h.o.Queue().Current(chat).Base().Message

	require.NoError(t, h.o.PlayNext(ctx, chat))

	assert.Len(t, h.conn.plays(), 1, "no play after the queue runs out")
	assert.Equal(t, 1, h.conn.leaveCount())
	assert.False(t, h.o.HasCall(ctx, chat))

	var deleted []media.MessageRef
	for _, e := range h.msg.entries() {
		if e.op == "delete" {
			deleted = append(deleted, e.ref)
		}
	}
	assert.Equal(t, []media.MessageRef{card}, deleted)
}

func TestPlayNextAdvances(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.o.Enqueue(ctx, chat, media.MessageRef{}, track("a", true))
	require.NoError(t, err)
	_, err = h.o.Enqueue(ctx, chat, media.MessageRef{}, track("b", false))
	require.NoError(t, err)

	require.NoError(t, h.o.PlayNext(ctx, chat))

	plays := h.conn.plays()
	require.Len(t, plays, 2)
	assert.Equal(t, "/cache/b.webm", plays[1].AudioPath)
	assert.EqualValues(t, 1, h.acq.calls.Load())
	assert.Equal(t, "b", h.o.Queue().Current(chat).Base().ID)
	assert.Contains(t, h.msg.texts(), "loading_next")

	adds, _ := h.store.counts()
	assert.Equal(t, 2, adds)
}

func TestPlayNextAcquireFailureEndsCall(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.acq.err = &media.AcquisitionError{ID: "b", Err: errBoom}

	_, err := h.o.Enqueue(ctx, chat, media.MessageRef{}, track("a", true))
	require.NoError(t, err)
	_, err = h.o.Enqueue(ctx, chat, media.MessageRef{}, track("b", false))
	require.NoError(t, err)

	err = h.o.PlayNext(ctx, chat)
	assert.True(t, media.IsAcquisitionError(err))
	assert.Zero(t, h.o.Queue().Len(chat))
	assert.Equal(t, 1, h.conn.leaveCount())
	assert.Contains(t, h.msg.texts(), "error_download:title b")
}

func TestSeekKeepsCallAndCard(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.o.Enqueue(ctx, chat, media.MessageRef{}, track("a", true))
	require.NoError(t, err)
	before := len(h.msg.entries())

	require.NoError(t, h.o.Seek(ctx, chat, 5))

	plays := h.conn.plays()
	require.Len(t, plays, 2)
	assert.Equal(t, "-ss 5", plays[1].FFmpegParams)
	assert.Len(t, h.msg.entries(), before, "seek renders no card")

	adds, _ := h.store.counts()
	assert.Equal(t, 1, adds)
	assert.Equal(t, 5, h.o.Queue().Current(chat).Base().Time)
}

func TestSeekOfOneHasNoOffset(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.o.Enqueue(ctx, chat, media.MessageRef{}, track("a", true))
	require.NoError(t, err)
	require.NoError(t, h.o.Seek(ctx, chat, 1))

	plays := h.conn.plays()
	require.Len(t, plays, 2)
	assert.Empty(t, plays[1].FFmpegParams)
}

func TestSeekWithoutCurrent(t *testing.T) {
	h := newHarness()
	assert.ErrorIs(t, h.o.Seek(context.Background(), chat, 10), ErrNoActiveCall)
}

func TestNoActiveCallTearsDown(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.conn.playErr = []error{ErrNoActiveCall}

	a, b := track("a", true), track("b", true)
	h.o.Queue().Add(chat, a)
	h.o.Queue().Add(chat, b)

	err := h.o.PlayMedia(ctx, chat, media.MessageRef{}, a, 0)

	var fatal *FatalCallError
	require.ErrorAs(t, err, &fatal)
	assert.ErrorIs(t, err, ErrNoActiveCall)
	assert.Zero(t, h.o.Queue().Len(chat))
	assert.False(t, h.o.HasCall(ctx, chat))
	assert.Contains(t, h.msg.texts(), "error_no_call")

	_, ok, _ := h.store.Assistant(ctx, chat)
	assert.False(t, ok)
}

func TestSkippableErrorAdvances(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.conn.playErr = []error{ErrFileNotFound}

	a, b := track("a", true), track("b", true)
	h.o.Queue().Add(chat, a)
	h.o.Queue().Add(chat, b)

	require.NoError(t, h.o.PlayMedia(ctx, chat, media.MessageRef{}, a, 0))

	assert.Len(t, h.conn.plays(), 2)
	assert.Equal(t, "b", h.o.Queue().Current(chat).Base().ID)
	assert.True(t, h.o.HasCall(ctx, chat))
	assert.Contains(t, h.msg.texts(), "error_file:title a")
}

func TestMissingFileSkips(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	a := track("a", false)
	h.o.Queue().Add(chat, a)

	require.NoError(t, h.o.PlayMedia(ctx, chat, media.MessageRef{}, a, 0))
	assert.Empty(t, h.conn.plays())
	assert.Zero(t, h.o.Queue().Len(chat))
	assert.Contains(t, h.msg.texts(), "no_file:title a")
}

func TestReportFallsBackToSend(t *testing.T) {
	h := newHarness()
	h.msg.editErr = errBoom
	ctx := context.Background()

	ref := media.MessageRef{ChannelID: 1, MessageID: 99}
	_, err := h.o.Enqueue(ctx, chat, ref, track("a", true))
	require.NoError(t, err)

	entries := h.msg.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "send", entries[0].op)
}

func TestReplayRestartsWithFreshCard(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.o.Enqueue(ctx, chat, media.MessageRef{}, track("a", true))
	require.NoError(t, err)
	old := h.o.Queue().Current(chat).Base().Message

	require.NoError(t, h.o.Replay(ctx, chat))

	assert.Len(t, h.conn.plays(), 2)
	cur := h.o.Queue().Current(chat).Base().Message
	assert.NotEqual(t, old, cur)

	entries := h.msg.entries()
	assert.Contains(t, entries, sent{op: "delete", ref: old})
}

func TestReplayWithoutCall(t *testing.T) {
	h := newHarness()
	h.o.Queue().Add(chat, track("a", true))
	require.NoError(t, h.o.Replay(context.Background(), chat))
	assert.Empty(t, h.conn.plays())
}

func TestPinsLeastBusyConnection(t *testing.T) {
	busy, idle := newFakeConn(), newFakeConn()
	busy.calls, idle.calls = 3, 1
	store := newFakeStore()
	o, err := NewOrchestrator(Deps{Conns: []Connection{busy, idle}, Store: store, Messenger: &fakeMessenger{}, Lang: fakeLang{}})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = o.Enqueue(ctx, chat, media.MessageRef{}, track("a", true))
	require.NoError(t, err)

	assert.Empty(t, busy.plays())
	assert.Len(t, idle.plays(), 1)
	idx, ok, _ := store.Assistant(ctx, chat)
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	require.NoError(t, o.Stop(ctx, chat))
	assert.Equal(t, 1, idle.leaveCount())
	assert.Zero(t, busy.leaveCount())
}

func TestPingAndActiveCalls(t *testing.T) {
	a, b := newFakeConn(), newFakeConn()
	a.ping, b.ping = 10*time.Millisecond, 30*time.Millisecond
	a.calls, b.callErr = 2, errBoom
	o, err := NewOrchestrator(Deps{Conns: []Connection{a, b}, Store: newFakeStore(), Messenger: &fakeMessenger{}, Lang: fakeLang{}})
	require.NoError(t, err)

	assert.Equal(t, 20*time.Millisecond, o.Ping())
	assert.Equal(t, 2, o.ActiveCalls(context.Background()))
}

func TestPlayAndStopAreExclusive(t *testing.T) {
	h := newHarness()
	h.conn.delay = time.Millisecond
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_ = h.o.Stop(ctx, chat)
				return
			}
			_ = h.o.PlayMedia(ctx, chat, media.MessageRef{}, track("a", true), 0)
		}()
	}
	wg.Wait()

	assert.Zero(t, h.conn.violations.Load())
	assert.Zero(t, h.o.locks.Len())
}

func TestCanceledPlayReturnsQuietly(t *testing.T) {
	h := newHarness()
	h.conn.playErr = []error{context.Canceled}
	ctx := context.Background()

	a := track("a", true)
	h.o.Queue().Add(chat, a)
	err := h.o.PlayMedia(ctx, chat, media.MessageRef{}, a, 0)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, h.o.Queue().Len(chat))
	assert.Empty(t, h.msg.texts())
}
