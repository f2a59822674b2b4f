package proc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/media"
	"github.com/leeineian/resonance/sys"
)

// Orchestrator is the per-chat playback state machine:
// no call -> playing <-> paused -> no call.
//
// PlayMedia, PlayNext, Replay and Stop hold the chat's lock for their whole
// body. Pause, Resume, Mute, Unmute and SetVolume go straight to the
// transport.
type Orchestrator struct {
	conns []Connection
	queue *Queue
	store CallStore
	msg   Messenger
	lang  Localizer
	media Acquirer
	locks *LockArena

	tasks sync.WaitGroup
}

type Deps struct {
	Conns     []Connection
	Queue     *Queue
	Store     CallStore
	Messenger Messenger
	Lang      Localizer
	Acquirer  Acquirer
}

func NewOrchestrator(d Deps) (*Orchestrator, error) {
	if len(d.Conns) == 0 {
		return nil, errors.New("at least one connection is required")
	}
	if d.Queue == nil {
		d.Queue = NewQueue()
	}
	return &Orchestrator{
		conns: d.Conns,
		queue: d.Queue,
		store: d.Store,
		msg:   d.Messenger,
		lang:  d.Lang,
		media: d.Acquirer,
		locks: NewLockArena(),
	}, nil
}

func (o *Orchestrator) Queue() *Queue { return o.queue }

func (o *Orchestrator) Connections() []Connection { return o.conns }

// Enqueue adds d to the chat's queue and starts it when nothing is playing.
// It returns the queue position.
// The chat lock is held from Add onward so the end of the queue can never
// clear an item that is about to start.
func (o *Orchestrator) Enqueue(ctx context.Context, chat snowflake.ID, ref media.MessageRef, d media.Descriptor) (int, error) {
	ctx, release := o.locks.Lock(ctx, chat)
	defer release()

	pos := o.queue.Add(chat, d)
	if pos > 0 {
		c := d.Base()
		o.report(ctx, chat, ref, o.lang.Text(ctx, chat, "queued", pos, c.Title, c.URL))
		return pos, nil
	}
	return 0, o.playMediaLocked(ctx, chat, ref, d, 0)
}

// Append queues items behind whatever is playing without announcing each
// one. If the queue ran dry in the meantime the first item starts.
func (o *Orchestrator) Append(ctx context.Context, chat snowflake.ID, items ...media.Descriptor) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	ctx, release := o.locks.Lock(ctx, chat)
	defer release()

	idle := o.queue.Len(chat) == 0
	for _, d := range items {
		o.queue.Add(chat, d)
	}
	if !idle {
		return len(items), nil
	}
	if err := o.acquireLocked(ctx, chat, items[0]); err != nil {
		return len(items), err
	}
	return len(items), o.playMediaLocked(ctx, chat, media.MessageRef{}, items[0], 0)
}

// PlayMedia streams d into the chat's call. A seek > 0 restarts the current
// item at that offset without touching call state or the card.
func (o *Orchestrator) PlayMedia(ctx context.Context, chat snowflake.ID, ref media.MessageRef, d media.Descriptor, seek int) error {
	ctx, release := o.locks.Lock(ctx, chat)
	defer release()
	return o.playMediaLocked(ctx, chat, ref, d, seek)
}

func (o *Orchestrator) playMediaLocked(ctx context.Context, chat snowflake.ID, ref media.MessageRef, d media.Descriptor, seek int) error {
	c := d.Base()
	if c.FilePath == "" {
		sys.LogCalls(sys.MsgCallsNoFile, c.ID, chat)
		o.report(ctx, chat, ref, o.lang.Text(ctx, chat, "no_file", c.Title))
		return o.playNextLocked(ctx, chat)
	}

	spec := StreamSpec{AudioPath: c.FilePath}
	if c.Video {
		spec.VideoPath = c.FilePath
		spec.Video = true
	}
	if seek > 1 {
		spec.FFmpegParams = fmt.Sprintf("-ss %d", seek)
	}

	err := o.connFor(ctx, chat).Play(ctx, chat, spec)
	switch Classify(err) {
	case ClassNone:
	case ClassCanceled:
		return err
	case ClassSkip:
		sys.PlaybackErrorsTotal.WithLabelValues("skip").Inc()
		sys.LogCalls(sys.MsgCallsSkip, chat, err)
		o.report(ctx, chat, ref, o.lang.Text(ctx, chat, errorKey(err), c.Title))
		return o.playNextLocked(ctx, chat)
	default:
		sys.PlaybackErrorsTotal.WithLabelValues("fatal").Inc()
		sys.LogCalls(sys.MsgCallsFatal, chat, err)
		o.stopLocked(ctx, chat)
		o.report(ctx, chat, ref, o.lang.Text(ctx, chat, errorKey(err)))
		return &FatalCallError{Chat: chat, Err: err}
	}

	if seek != 0 {
		c.Time = seek
		sys.LogCalls(sys.MsgCallsResumedAt, chat, seek)
		return nil
	}

	c.MarkStarted()
	o.registerCall(ctx, chat)
	sys.LogCalls(sys.MsgCallsNowPlaying, chat, c.Title)

	card := Message{
		Text:      o.lang.Text(ctx, chat, "now_playing", c.Title, c.URL, c.Duration, c.User),
		Thumbnail: d.Thumbnail(),
		Controls:  true,
	}
	if c.Video {
		card.Text = o.lang.Text(ctx, chat, "now_playing_video", c.Title, c.URL, c.Duration, c.User)
	}
	c.Message = o.render(ctx, chat, ref, card)
	return nil
}

func (o *Orchestrator) registerCall(ctx context.Context, chat snowflake.ID) {
	had, _ := o.store.HasCall(ctx, chat)
	if err := o.store.AddCall(ctx, chat); err != nil {
		sys.LogCalls(sys.MsgCallsStoreFailed, chat, err)
		return
	}
	if !had {
		sys.ActiveCalls.Inc()
	}
}

// PlayNext drops the current item and plays the one after it, ending the
// call when the queue runs out.
func (o *Orchestrator) PlayNext(ctx context.Context, chat snowflake.ID) error {
	ctx, release := o.locks.Lock(ctx, chat)
	defer release()
	return o.playNextLocked(ctx, chat)
}

func (o *Orchestrator) playNextLocked(ctx context.Context, chat snowflake.ID) error {
	if cur := o.queue.Current(chat); cur != nil {
		if c := cur.Base(); !c.Message.IsZero() {
			o.deleteMessages(ctx, chat, c.Message)
			c.Message = media.MessageRef{}
		}
	}

	next := o.queue.Next(chat)
	if next == nil {
		sys.LogCalls(sys.MsgCallsQueueEmpty, chat)
		o.stopLocked(ctx, chat)
		return nil
	}

	if err := o.acquireLocked(ctx, chat, next); err != nil {
		return err
	}
	ref, err := o.msg.SendMessage(ctx, chat, Message{Text: o.lang.Text(ctx, chat, "loading_next")})
	if err != nil {
		o.uiFailed(chat, "send", err)
		ref = media.MessageRef{}
	}
	return o.playMediaLocked(ctx, chat, ref, next, 0)
}

// acquireLocked downloads d if it has no file yet. A failed download ends the
// call since nothing else is ready to play.
func (o *Orchestrator) acquireLocked(ctx context.Context, chat snowflake.ID, d media.Descriptor) error {
	if d.Base().FilePath != "" || o.media == nil {
		return nil
	}
	if err := o.media.Acquire(ctx, d); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sys.LogCalls(sys.MsgCallsAcquireFailed, chat, err)
		o.stopLocked(ctx, chat)
		o.report(ctx, chat, media.MessageRef{}, o.lang.Text(ctx, chat, "error_download", d.Base().Title))
		return err
	}
	return nil
}

// Replay restarts the current item from the beginning with a fresh card.
func (o *Orchestrator) Replay(ctx context.Context, chat snowflake.ID) error {
	ctx, release := o.locks.Lock(ctx, chat)
	defer release()

	if has, _ := o.store.HasCall(ctx, chat); !has {
		return nil
	}
	cur := o.queue.Current(chat)
	if cur == nil {
		return nil
	}
	if c := cur.Base(); !c.Message.IsZero() {
		o.deleteMessages(ctx, chat, c.Message)
		c.Message = media.MessageRef{}
	}
	return o.playMediaLocked(ctx, chat, media.MessageRef{}, cur, 0)
}

// Seek restarts the current item at offset seconds.
func (o *Orchestrator) Seek(ctx context.Context, chat snowflake.ID, offset int) error {
	cur := o.queue.Current(chat)
	if cur == nil {
		return ErrNoActiveCall
	}
	if offset < 0 {
		offset = 0
	}
	return o.PlayMedia(ctx, chat, media.MessageRef{}, cur, offset)
}

// Stop ends the chat's call. In-flight work for the chat is canceled first
// so Stop never waits behind a download. Stopping a chat with no call does
// nothing.
func (o *Orchestrator) Stop(ctx context.Context, chat snowflake.ID) error {
	o.locks.Interrupt(chat)
	ctx, release := o.locks.Lock(ctx, chat)
	defer release()
	o.stopLocked(ctx, chat)
	return nil
}

func (o *Orchestrator) stopLocked(ctx context.Context, chat snowflake.ID) {
	ctx = context.WithoutCancel(ctx)

	has, err := o.store.HasCall(ctx, chat)
	if err != nil {
		sys.LogCalls(sys.MsgCallsStoreFailed, chat, err)
	}
	conn, pinned := o.pinned(ctx, chat)
	queued := o.queue.Len(chat) > 0
	if !has && !pinned && !queued {
		return
	}

	o.queue.Clear(chat)
	if err := o.store.RemoveCall(ctx, chat); err != nil {
		sys.LogCalls(sys.MsgCallsStoreFailed, chat, err)
	}
	if err := o.store.ClearAssistant(ctx, chat); err != nil {
		sys.LogCalls(sys.MsgCallsStoreFailed, chat, err)
	}
	if has {
		sys.ActiveCalls.Dec()
	}
	if conn != nil {
		if err := conn.LeaveCall(ctx, chat, false); err != nil && !errors.Is(err, ErrNoActiveCall) {
			sys.LogCalls(sys.MsgCallsLeaveFailed, chat, err)
		}
	}
	sys.LogCalls(sys.MsgCallsStopped, chat)
}

func (o *Orchestrator) Pause(ctx context.Context, chat snowflake.ID) (bool, error) {
	if err := o.store.SetPaused(ctx, chat, true); err != nil {
		sys.LogCalls(sys.MsgCallsStoreFailed, chat, err)
	}
	c, err := o.callConn(ctx, chat)
	if err != nil {
		return false, err
	}
	return c.Pause(ctx, chat)
}

func (o *Orchestrator) Resume(ctx context.Context, chat snowflake.ID) (bool, error) {
	if err := o.store.SetPaused(ctx, chat, false); err != nil {
		sys.LogCalls(sys.MsgCallsStoreFailed, chat, err)
	}
	c, err := o.callConn(ctx, chat)
	if err != nil {
		return false, err
	}
	return c.Resume(ctx, chat)
}

func (o *Orchestrator) Mute(ctx context.Context, chat snowflake.ID) (bool, error) {
	c, err := o.callConn(ctx, chat)
	if err != nil {
		return false, err
	}
	return c.Mute(ctx, chat)
}

func (o *Orchestrator) Unmute(ctx context.Context, chat snowflake.ID) (bool, error) {
	c, err := o.callConn(ctx, chat)
	if err != nil {
		return false, err
	}
	return c.Unmute(ctx, chat)
}

// SetVolume clamps v to [0, 200] and returns the value applied.
func (o *Orchestrator) SetVolume(ctx context.Context, chat snowflake.ID, v int) (int, error) {
	v = max(0, min(200, v))
	c, err := o.callConn(ctx, chat)
	if err != nil {
		return v, err
	}
	return v, c.ChangeVolume(ctx, chat, v)
}

// Ping is the mean latency across all connections.
func (o *Orchestrator) Ping() time.Duration {
	if len(o.conns) == 0 {
		return 0
	}
	var total time.Duration
	for _, c := range o.conns {
		total += c.Ping()
	}
	return total / time.Duration(len(o.conns))
}

// ActiveCalls sums the call counts of every connection that answers.
func (o *Orchestrator) ActiveCalls(ctx context.Context) int {
	total := 0
	for i, c := range o.conns {
		n, err := c.Calls(ctx)
		if err != nil {
			sys.LogCalls(sys.MsgCallsPingFailed, i, err)
			continue
		}
		total += n
	}
	return total
}

// IsPaused reports the persisted paused flag.
func (o *Orchestrator) IsPaused(ctx context.Context, chat snowflake.ID) bool {
	p, _ := o.store.IsPaused(ctx, chat)
	return p
}

// HasCall reports whether the chat has a live call.
func (o *Orchestrator) HasCall(ctx context.Context, chat snowflake.ID) bool {
	has, _ := o.store.HasCall(ctx, chat)
	return has
}

// --- Messages ---

// render edits ref into card, falling back to a new message.
func (o *Orchestrator) render(ctx context.Context, chat snowflake.ID, ref media.MessageRef, card Message) media.MessageRef {
	if !ref.IsZero() {
		out, err := o.msg.EditMedia(ctx, ref, card)
		if err == nil {
			return out
		}
		o.uiFailed(chat, "edit", err)
	}
	out, err := o.msg.SendMessage(ctx, chat, card)
	if err != nil {
		o.uiFailed(chat, "send", err)
		return media.MessageRef{}
	}
	return out
}

// report shows text in ref, or in a new message.
func (o *Orchestrator) report(ctx context.Context, chat snowflake.ID, ref media.MessageRef, text string) {
	ctx = context.WithoutCancel(ctx)
	if !ref.IsZero() {
		err := o.msg.EditText(ctx, ref, text)
		if err == nil {
			return
		}
		o.uiFailed(chat, "edit", err)
	}
	if _, err := o.msg.SendMessage(ctx, chat, Message{Text: text}); err != nil {
		o.uiFailed(chat, "send", err)
	}
}

func (o *Orchestrator) deleteMessages(ctx context.Context, chat snowflake.ID, refs ...media.MessageRef) {
	if err := o.msg.DeleteMessages(ctx, refs...); err != nil {
		o.uiFailed(chat, "delete", err)
	}
}

func (o *Orchestrator) uiFailed(chat snowflake.ID, op string, err error) {
	sys.LogDebug(sys.MsgCallsUIFailed, chat, &BestEffortUIError{Op: op, Err: err})
}
