package media

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/disgoorg/snowflake/v2"
)

// TitleLimit bounds titles shown on cards.
const TitleLimit = 25

// Kind tags a Descriptor variant.
type Kind int

const (
	KindRaw Kind = iota
	KindTrack
)

func (k Kind) String() string {
	if k == KindTrack {
		return "track"
	}
	return "raw"
}

// MessageRef points at a chat message. The zero value means none.
type MessageRef struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

func (r MessageRef) IsZero() bool { return r.MessageID == 0 }

// Common holds the fields every playable item carries.
type Common struct {
	ID          string
	Title       string
	Duration    string
	DurationSec int
	FilePath    string
	URL         string
	Video       bool
	User        string
	Message     MessageRef
	// Time is the play offset in seconds; StartedAt is set when playback starts.
	Time      int
	StartedAt time.Time
}

// Descriptor is the unit the orchestrator streams: a RawMedia or a Track.
type Descriptor interface {
	Base() *Common
	Kind() Kind
	Thumbnail() string
}

func (c *Common) Base() *Common { return c }

// MarkStarted records that playback of the item began now.
func (c *Common) MarkStarted() {
	c.StartedAt = time.Now()
	c.Time = 0
}

// RawMedia is an item that already has a file reference, such as an upload
// or a passthrough stream URL.
type RawMedia struct {
	Common
}

func NewRawMedia(c Common) *RawMedia {
	c.Title = TruncateTitle(c.Title)
	return &RawMedia{Common: c}
}

func (*RawMedia) Kind() Kind        { return KindRaw }
func (*RawMedia) Thumbnail() string { return "" }
func (m *RawMedia) String() string  { return "raw:" + m.ID }

// Track is an item resolved from a platform, carrying its metadata.
type Track struct {
	Common
	Platform string
	Channel  string
	Views    string
	Thumb    string
}

func (*Track) Kind() Kind          { return KindTrack }
func (t *Track) Thumbnail() string { return t.Thumb }
func (t *Track) String() string    { return t.Platform + ":" + t.ID }

// TruncateTitle cuts a title to TitleLimit runes.
func TruncateTitle(title string) string {
	if title == "" {
		return "Unknown"
	}
	if utf8.RuneCountInString(title) <= TitleLimit {
		return title
	}
	r := []rune(title)
	return string(r[:TitleLimit])
}

// Truncate cuts s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// FormatDuration renders seconds as MM:SS, or H:MM:SS past an hour.
func FormatDuration(sec int) string {
	if sec < 0 {
		sec = 0
	}
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
