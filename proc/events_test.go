package proc

import (
	"context"
	"testing"
	"time"

	"github.com/leeineian/resonance/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestDispatchStreamEndedAdvances(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness()
	ctx := context.Background()
	_, err := h.o.Enqueue(ctx, chat, media.MessageRef{}, track("a", true))
	require.NoError(t, err)
	_, err = h.o.Enqueue(ctx, chat, media.MessageRef{}, track("b", true))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		h.o.Dispatch(ctx)
		close(done)
	}()

	h.conn.events <- Event{Kind: EventStreamEnded, Chat: chat, Stream: StreamAudio}
	require.Eventually(t, func() bool { return len(h.conn.plays()) == 2 }, time.Second, 5*time.Millisecond)

	h.conn.events <- Event{Kind: EventChatUpdate, Chat: chat, Status: StatusMuted}
	h.conn.events <- Event{Kind: EventChatUpdate, Chat: chat, Status: StatusKicked}
	require.Eventually(t, func() bool { return h.conn.leaveCount() == 1 }, time.Second, 5*time.Millisecond)

	close(h.conn.events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch did not return after the event channel closed")
	}
	assert.Zero(t, h.o.Queue().Len(chat))
	assert.False(t, h.o.HasCall(ctx, chat))
}

func TestDispatchStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.o.Dispatch(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch ignored cancellation")
	}
}

func TestMuteEventKeepsCall(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, err := h.o.Enqueue(ctx, chat, media.MessageRef{}, track("a", true))
	require.NoError(t, err)

	h.o.handleEvent(ctx, Event{Kind: EventChatUpdate, Chat: chat, Status: StatusUnmuted})
	h.o.Wait()

	assert.Zero(t, h.conn.leaveCount())
	assert.True(t, h.o.HasCall(ctx, chat))
}
