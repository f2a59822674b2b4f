package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/media"
	"github.com/leeineian/resonance/proc"
	"github.com/leeineian/resonance/sys"
)

// ControlPrefix starts the custom ID of every playback button.
const ControlPrefix = "ctl:"

var controlButtons = []struct {
	action, label string
	style         discord.ButtonStyle
}{
	{"pause", "⏸", discord.ButtonStyleSecondary},
	{"resume", "▶️", discord.ButtonStyleSecondary},
	{"replay", "🔁", discord.ButtonStyleSecondary},
	{"skip", "⏭", discord.ButtonStyleSecondary},
	{"stop", "⏹", discord.ButtonStyleDanger},
}

// ControlRow is the button row attached to a now playing card.
func ControlRow(chat snowflake.ID) discord.ActionRowComponent {
	var buttons []discord.InteractiveComponent
	for _, b := range controlButtons {
		buttons = append(buttons, discord.NewButton(b.style, b.label, fmt.Sprintf("%s%s:%s", ControlPrefix, b.action, chat), "", 0))
	}
	return discord.NewActionRow(buttons...)
}

// ParseControl splits a "ctl:<action>:<chat>" custom ID.
func ParseControl(customID string) (action string, chat snowflake.ID, ok bool) {
	body, found := strings.CutPrefix(customID, ControlPrefix)
	if !found {
		return "", 0, false
	}
	action, raw, found := strings.Cut(body, ":")
	if !found || action == "" {
		return "", 0, false
	}
	id, err := snowflake.Parse(raw)
	if err != nil {
		return "", 0, false
	}
	return action, id, true
}

// Messenger posts orchestrator messages as V2 cards in each chat's text
// channel.
type Messenger struct {
	Client *bot.Client
}

func (m *Messenger) channel(ctx context.Context, chat snowflake.ID) (snowflake.ID, error) {
	ch, err := sys.GetChatChannel(ctx, chat)
	if err != nil {
		return 0, err
	}
	if ch == 0 {
		return 0, fmt.Errorf("no text channel recorded for %s", chat)
	}
	return ch, nil
}

func (m *Messenger) card(chat snowflake.ID, msg proc.Message) discord.ContainerComponent {
	if msg.Controls {
		return sys.NewCard(msg.Text, msg.Thumbnail, ControlRow(chat))
	}
	return sys.NewCard(msg.Text, msg.Thumbnail)
}

func (m *Messenger) SendMessage(ctx context.Context, chat snowflake.ID, msg proc.Message) (media.MessageRef, error) {
	ch, err := m.channel(ctx, chat)
	if err != nil {
		return media.MessageRef{}, err
	}
	sent, err := sys.SendMessageV2(m.Client, ch, m.card(chat, msg), rest.WithCtx(ctx))
	if err != nil {
		return media.MessageRef{}, err
	}
	return media.MessageRef{ChannelID: ch, MessageID: sent.ID}, nil
}

func (m *Messenger) EditText(ctx context.Context, ref media.MessageRef, text string) error {
	_, err := sys.EditMessageV2(m.Client, ref.ChannelID, ref.MessageID, sys.NewTextCard(text), rest.WithCtx(ctx))
	return err
}

// EditMedia turns an existing message into a card. The chat is recovered
// from the channel so controls carry the right ID.
func (m *Messenger) EditMedia(ctx context.Context, ref media.MessageRef, msg proc.Message) (media.MessageRef, error) {
	chat := snowflake.ID(0)
	if ch, ok := m.Client.Caches.Channel(ref.ChannelID); ok {
		if gc, ok := ch.(discord.GuildChannel); ok {
			chat = gc.GuildID()
		}
	}
	if chat == 0 && msg.Controls {
		return media.MessageRef{}, errors.New("unknown chat for controls")
	}
	edited, err := sys.EditMessageV2(m.Client, ref.ChannelID, ref.MessageID, m.card(chat, msg), rest.WithCtx(ctx))
	if err != nil {
		return media.MessageRef{}, err
	}
	return media.MessageRef{ChannelID: ref.ChannelID, MessageID: edited.ID}, nil
}

func (m *Messenger) DeleteMessages(ctx context.Context, refs ...media.MessageRef) error {
	var errs []error
	for _, ref := range refs {
		if ref.IsZero() {
			continue
		}
		if err := m.Client.Rest.DeleteMessage(ref.ChannelID, ref.MessageID, rest.WithCtx(ctx)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
