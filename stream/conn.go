package stream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/voice"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/media"
	"github.com/leeineian/resonance/proc"
	"github.com/leeineian/resonance/sys"
)

const eventBuffer = 64

// Assistant is one bot account's voice transport. Chats are guilds; each
// guild has at most one call per assistant.
type Assistant struct {
	Index   int
	Retries int
	Backoff time.Duration

	client *bot.Client

	mu     sync.Mutex
	bound  map[snowflake.ID]snowflake.ID
	calls  map[snowflake.ID]*call
	events chan proc.Event
	closed bool
}

type call struct {
	guild   snowflake.ID
	channel snowflake.ID
	conn    voice.Conn
	volume  atomic.Int32
	muted   atomic.Bool

	mu       sync.Mutex
	provider *Provider
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewAssistant(idx int) *Assistant {
	return &Assistant{
		Index:   idx,
		Retries: 5,
		Backoff: time.Second,
		bound:   make(map[snowflake.ID]snowflake.ID),
		calls:   make(map[snowflake.ID]*call),
		events:  make(chan proc.Event, eventBuffer),
	}
}

// Options wires the assistant's gateway listeners into its client.
func (a *Assistant) Options() []bot.ConfigOpt {
	return []bot.ConfigOpt{
		bot.WithEventListenerFunc(a.onVoiceStateUpdate),
		bot.WithEventListenerFunc(a.onGuildLeave),
		bot.WithEventListenerFunc(a.onChannelDelete),
	}
}

func (a *Assistant) Attach(client *bot.Client) { a.client = client }

func (a *Assistant) Client() *bot.Client { return a.client }

// Bind sets the voice channel the chat's next call joins.
func (a *Assistant) Bind(chat, channel snowflake.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bound[chat] = channel
}

func (a *Assistant) call(chat snowflake.ID) *call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[chat]
}

func (a *Assistant) Play(ctx context.Context, chat snowflake.ID, spec proc.StreamSpec) error {
	// Direct stream links and uncached uploads are opened by the demuxer.
	remote := media.IsURL(spec.AudioPath)
	if !remote {
		if _, err := os.Stat(spec.AudioPath); err != nil {
			return fmt.Errorf("%w: %s", proc.ErrFileNotFound, spec.AudioPath)
		}
	}

	c, err := a.join(ctx, chat)
	if err != nil {
		return err
	}
	kind := proc.StreamAudio
	if spec.Video {
		kind = proc.StreamVideo
		sys.LogVoice(sys.MsgVoiceVideoDropped, chat)
	}

	t := NewTranscoder()
	if err := a.prepare(t, spec); err != nil {
		t.Close()
		if remote && errors.Is(err, proc.ErrUnsupported) {
			return fmt.Errorf("%w: %v", proc.ErrFileNotFound, err)
		}
		return err
	}
	c.start(t, func(finished bool) {
		if finished {
			a.emit(proc.Event{Kind: proc.EventStreamEnded, Chat: chat, Stream: kind})
		}
	})
	return nil
}

func (a *Assistant) prepare(t *Transcoder, spec proc.StreamSpec) error {
	if err := t.OpenInput(spec.AudioPath); err != nil {
		return err
	}
	if err := t.StartAt(parseSeek(spec.FFmpegParams)); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	if err := t.SetupDecoder(); err != nil {
		return err
	}
	return t.SetupEncoder()
}

// join returns the chat's call, opening the voice connection on first use.
func (a *Assistant) join(ctx context.Context, chat snowflake.ID) (*call, error) {
	a.mu.Lock()
	if c, ok := a.calls[chat]; ok {
		a.mu.Unlock()
		return c, nil
	}
	channel := a.bound[chat]
	a.mu.Unlock()

	if channel == 0 || a.client == nil {
		return nil, proc.ErrNoActiveCall
	}

	sys.LogVoice(sys.MsgVoiceJoining, channel, chat)
	conn := a.client.VoiceManager.CreateConn(chat)
	var lastErr error
	for i := range max(1, a.Retries) {
		if i > 0 {
			backoff := a.Backoff << (i - 1)
			sys.LogVoice(sys.MsgVoiceJoinRetry, i, chat, lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				conn.Close(context.WithoutCancel(ctx))
				return nil, ctx.Err()
			}
		}
		if lastErr = conn.Open(ctx, channel, false, true); lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		conn.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("%w: %v", proc.ErrUnavailable, lastErr)
	}

	c := &call{guild: chat, channel: channel, conn: conn}
	c.volume.Store(100)
	a.mu.Lock()
	a.calls[chat] = c
	a.mu.Unlock()
	return c, nil
}

// start replaces whatever the call is playing with t. done reports whether
// the stream ran to its end.
func (c *call) start(t *Transcoder, done func(finished bool)) {
	c.stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewProvider(ctx)
	finished := make(chan struct{})
	p.OnFinish = func() { close(finished) }
	t.Gain = func() float64 { return gainFor(int(c.volume.Load()), c.muted.Load()) }

	c.provider, c.cancel, c.done = p, cancel, make(chan struct{})
	exited := c.done

	if c.conn != nil {
		c.conn.SetOpusFrameProvider(p)
		c.conn.SetSpeaking(ctx, voice.SpeakingFlagMicrophone)
	}

	sys.SafeGo(func() {
		defer close(exited)
		defer t.Close()
		if err := t.Transcode(ctx, p.PushFrame); err != nil && ctx.Err() == nil {
			sys.LogVoice(sys.MsgVoiceTranscodeErr, c.guild, err)
		}
		select {
		case <-finished:
			sys.LogVoice(sys.MsgVoiceFinished, c.guild)
			done(true)
		case <-ctx.Done():
			sys.LogVoice(sys.MsgVoiceInterrupted, c.guild)
			done(false)
		}
	})
}

// stop ends the current stream and waits for its goroutine.
func (c *call) stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done, c.provider = nil, nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	if c.conn != nil {
		c.conn.SetOpusFrameProvider(nil)
	}
}

func (c *call) currentProvider() *Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

func (a *Assistant) Pause(_ context.Context, chat snowflake.ID) (bool, error) {
	return a.setPaused(chat, true)
}

func (a *Assistant) Resume(_ context.Context, chat snowflake.ID) (bool, error) {
	return a.setPaused(chat, false)
}

func (a *Assistant) setPaused(chat snowflake.ID, paused bool) (bool, error) {
	c := a.call(chat)
	if c == nil {
		return false, proc.ErrNoActiveCall
	}
	p := c.currentProvider()
	if p == nil {
		return false, nil
	}
	return p.SetPaused(paused), nil
}

func (a *Assistant) Mute(_ context.Context, chat snowflake.ID) (bool, error) {
	return a.setMuted(chat, true)
}

func (a *Assistant) Unmute(_ context.Context, chat snowflake.ID) (bool, error) {
	return a.setMuted(chat, false)
}

func (a *Assistant) setMuted(chat snowflake.ID, muted bool) (bool, error) {
	c := a.call(chat)
	if c == nil {
		return false, proc.ErrNoActiveCall
	}
	return c.muted.Swap(muted) != muted, nil
}

func (a *Assistant) ChangeVolume(_ context.Context, chat snowflake.ID, volume int) error {
	c := a.call(chat)
	if c == nil {
		return proc.ErrNoActiveCall
	}
	c.volume.Store(int32(volume))
	return nil
}

// LeaveCall hangs up. close also forgets the chat's bound channel.
func (a *Assistant) LeaveCall(ctx context.Context, chat snowflake.ID, close bool) error {
	a.mu.Lock()
	c, ok := a.calls[chat]
	delete(a.calls, chat)
	if close {
		delete(a.bound, chat)
	}
	a.mu.Unlock()
	if !ok {
		return proc.ErrNoActiveCall
	}
	a.hangUp(ctx, c)
	return nil
}

func (a *Assistant) hangUp(ctx context.Context, c *call) {
	c.stop()
	if c.conn != nil {
		c.conn.Close(ctx)
	}
	sys.LogVoice(sys.MsgVoiceLeft, c.guild)
}

func (a *Assistant) Ping() time.Duration {
	if a.client == nil || a.client.Gateway == nil {
		return 0
	}
	return a.client.Gateway.Latency()
}

func (a *Assistant) Calls(context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls), nil
}

func (a *Assistant) Events() <-chan proc.Event { return a.events }

func (a *Assistant) emit(ev proc.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.events <- ev:
	default:
		sys.LogVoice(sys.MsgVoiceEventDropped, a.Index, ev.Kind)
	}
}

// Close hangs up every call and closes the event channel.
func (a *Assistant) Close(ctx context.Context) {
	a.mu.Lock()
	calls := a.calls
	a.calls = make(map[snowflake.ID]*call)
	a.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.hangUp(ctx, c)
		}()
	}
	wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
}

// --- Gateway events ---

// drop tears down a call the platform already ended and reports it.
func (a *Assistant) drop(chat snowflake.ID, status proc.ChatStatus) {
	a.mu.Lock()
	c, ok := a.calls[chat]
	delete(a.calls, chat)
	a.mu.Unlock()
	if !ok {
		return
	}
	sys.LogVoice(sys.MsgVoiceDisconnected, chat)
	a.hangUp(context.Background(), c)
	a.emit(proc.Event{Kind: proc.EventChatUpdate, Chat: chat, Status: status})
}

func (a *Assistant) onVoiceStateUpdate(event *events.GuildVoiceStateUpdate) {
	if event.VoiceState.UserID != event.Client().ID() {
		return
	}
	guild := event.VoiceState.GuildID
	c := a.call(guild)
	if c == nil {
		return
	}
	if event.VoiceState.ChannelID == nil {
		a.drop(guild, proc.StatusLeft)
		return
	}

	a.mu.Lock()
	c.channel = *event.VoiceState.ChannelID
	a.bound[guild] = c.channel
	a.mu.Unlock()

	if event.OldVoiceState.GuildMute != event.VoiceState.GuildMute {
		status := proc.StatusUnmuted
		if event.VoiceState.GuildMute {
			status = proc.StatusMuted
		}
		a.emit(proc.Event{Kind: proc.EventChatUpdate, Chat: guild, Status: status})
	}
}

func (a *Assistant) onGuildLeave(event *events.GuildLeave) {
	a.mu.Lock()
	delete(a.bound, event.GuildID)
	a.mu.Unlock()
	a.drop(event.GuildID, proc.StatusKicked)
}

func (a *Assistant) onChannelDelete(event *events.GuildChannelDelete) {
	a.mu.Lock()
	c, ok := a.calls[event.GuildID]
	hit := ok && c.channel == event.ChannelID
	if hit {
		delete(a.bound, event.GuildID)
	}
	a.mu.Unlock()
	if hit {
		a.drop(event.GuildID, proc.StatusClosed)
	}
}
