package proc

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/media"
)

// StreamSpec is what a connection plays. FFmpegParams only ever carries a
// "-ss N" seek.
type StreamSpec struct {
	AudioPath    string
	VideoPath    string
	Video        bool
	FFmpegParams string
}

type EventKind int

const (
	EventStreamEnded EventKind = iota
	EventChatUpdate
)

func (k EventKind) String() string {
	if k == EventChatUpdate {
		return "chat_update"
	}
	return "stream_ended"
}

type StreamKind int

const (
	StreamAudio StreamKind = iota
	StreamVideo
)

func (k StreamKind) String() string {
	if k == StreamVideo {
		return "video"
	}
	return "audio"
}

type ChatStatus int

const (
	StatusKicked ChatStatus = iota
	StatusLeft
	StatusClosed
	StatusMuted
	StatusUnmuted
)

func (s ChatStatus) String() string {
	return [...]string{"kicked", "left", "closed", "muted", "unmuted"}[s]
}

// Terminal reports whether the status ends the call.
func (s ChatStatus) Terminal() bool {
	return s == StatusKicked || s == StatusLeft || s == StatusClosed
}

// Event is pushed by a connection.
type Event struct {
	Kind   EventKind
	Chat   snowflake.ID
	Stream StreamKind
	Status ChatStatus
}

// Connection is one assistant's voice transport.
type Connection interface {
	Play(ctx context.Context, chat snowflake.ID, spec StreamSpec) error
	Pause(ctx context.Context, chat snowflake.ID) (bool, error)
	Resume(ctx context.Context, chat snowflake.ID) (bool, error)
	Mute(ctx context.Context, chat snowflake.ID) (bool, error)
	Unmute(ctx context.Context, chat snowflake.ID) (bool, error)
	ChangeVolume(ctx context.Context, chat snowflake.ID, volume int) error
	LeaveCall(ctx context.Context, chat snowflake.ID, close bool) error
	Ping() time.Duration
	Calls(ctx context.Context) (int, error)
	Events() <-chan Event
}

// Binder is implemented by connections that must be told which voice
// channel a chat plays in before Play.
type Binder interface {
	Bind(chat, channel snowflake.ID)
}

// Message is a chat card. Controls adds the playback buttons.
type Message struct {
	Text      string
	Thumbnail string
	Controls  bool
}

type Messenger interface {
	SendMessage(ctx context.Context, chat snowflake.ID, msg Message) (media.MessageRef, error)
	EditText(ctx context.Context, ref media.MessageRef, text string) error
	EditMedia(ctx context.Context, ref media.MessageRef, msg Message) (media.MessageRef, error)
	DeleteMessages(ctx context.Context, refs ...media.MessageRef) error
}

type Localizer interface {
	Text(ctx context.Context, chat snowflake.ID, key string, args ...any) string
}

// CallStore persists which chats have a call, their paused flag and their
// pinned assistant.
type CallStore interface {
	AddCall(ctx context.Context, chat snowflake.ID) error
	RemoveCall(ctx context.Context, chat snowflake.ID) error
	HasCall(ctx context.Context, chat snowflake.ID) (bool, error)
	SetPaused(ctx context.Context, chat snowflake.ID, paused bool) error
	IsPaused(ctx context.Context, chat snowflake.ID) (bool, error)
	Assistant(ctx context.Context, chat snowflake.ID) (int, bool, error)
	SetAssistant(ctx context.Context, chat snowflake.ID, idx int) error
	ClearAssistant(ctx context.Context, chat snowflake.ID) error
}

// Acquirer fills in a descriptor's file path.
type Acquirer interface {
	Acquire(ctx context.Context, d media.Descriptor) error
}
