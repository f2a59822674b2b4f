package proc

import (
	"context"
	"fmt"
	"testing"

	"github.com/leeineian/resonance/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrder(t *testing.T) {
	q := NewQueue()
	assert.Nil(t, q.Current(chat))
	assert.Equal(t, 0, q.Add(chat, track("a", true)))
	assert.Equal(t, 1, q.Add(chat, track("b", true)))
	assert.Equal(t, 2, q.Add(chat, track("c", true)))

	assert.Equal(t, "a", q.Current(chat).Base().ID)
	assert.Equal(t, "b", q.Next(chat).Base().ID)
	assert.Equal(t, "c", q.Next(chat).Base().ID)
	assert.Nil(t, q.Next(chat))
	assert.Zero(t, q.Len(chat))
}

func TestQueueRemove(t *testing.T) {
	q := NewQueue()
	for _, id := range []string{"a", "b", "c"} {
		q.Add(chat, track(id, true))
	}

	_, ok := q.Remove(chat, 0)
	assert.False(t, ok, "current item stays")
	_, ok = q.Remove(chat, 3)
	assert.False(t, ok)

	d, ok := q.Remove(chat, 1)
	require.True(t, ok)
	assert.Equal(t, "b", d.Base().ID)

	var ids []string
	for _, d := range q.Items(chat) {
		ids = append(ids, d.Base().ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
}

func TestQueueChatsAreIndependent(t *testing.T) {
	q := NewQueue()
	q.Add(chat, track("a", true))
	q.Add(chat+1, track("x", true))

	q.Clear(chat)
	assert.Zero(t, q.Len(chat))
	assert.Equal(t, 1, q.Len(chat+1))
}

func TestQueueItemsIsACopy(t *testing.T) {
	q := NewQueue()
	q.Add(chat, track("a", true))
	items := q.Items(chat)
	items[0] = nil
	assert.NotNil(t, q.Current(chat))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{nil, ClassNone},
		{context.Canceled, ClassCanceled},
		{fmt.Errorf("wrapped: %w", context.Canceled), ClassCanceled},
		{ErrFileNotFound, ClassSkip},
		{ErrNoAudio, ClassSkip},
		{&SkippableMediaError{Chat: chat, Err: errBoom}, ClassSkip},
		{ErrNoActiveCall, ClassFatal},
		{ErrUnavailable, ClassFatal},
		{&FatalCallError{Chat: chat, Err: ErrUnsupported}, ClassFatal},
		{&media.AcquisitionError{ID: "x", Err: media.ErrTooLong}, ClassAcquisition},
		{errBoom, ClassFatal},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.err), func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestErrorKey(t *testing.T) {
	assert.Equal(t, "error_no_call", errorKey(fmt.Errorf("x: %w", ErrNoActiveCall)))
	assert.Equal(t, "error_unavailable", errorKey(ErrUnavailable))
	assert.Equal(t, "error_unsupported", errorKey(ErrUnsupported))
	assert.Equal(t, "error_file", errorKey(ErrFileNotFound))
	assert.Equal(t, "error_no_audio", errorKey(ErrNoAudio))
	assert.Equal(t, "error_play", errorKey(errBoom))
}

func TestChatStatus(t *testing.T) {
	assert.True(t, StatusKicked.Terminal())
	assert.True(t, StatusLeft.Terminal())
	assert.True(t, StatusClosed.Terminal())
	assert.False(t, StatusMuted.Terminal())
	assert.Equal(t, "unmuted", StatusUnmuted.String())
}
