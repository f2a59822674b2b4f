package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/resonance/media"
	"github.com/leeineian/resonance/stream"
	"github.com/leeineian/resonance/sys"
)

func handleControl(event *events.ApplicationCommandInteractionCreate, action string) {
	chat, ok := guard(event)
	if !ok {
		return
	}
	ctx := sys.AppContext

	// Skip, replay and stop can wait on a download or a voice join.
	if err := event.DeferCreateMessage(false); err != nil {
		sys.LogDebug(sys.MsgCommandRespondFail, action, err)
		return
	}
	r := control(ctx, engine.Orch, chat, action)
	editText(event, text(ctx, chat, r.key, r.args...))
}

func handleVolume(event *events.ApplicationCommandInteractionCreate) {
	chat, ok := guard(event)
	if !ok {
		return
	}
	ctx := sys.AppContext
	percent := event.SlashCommandInteractionData().Int("percent")

	if !engine.Orch.HasCall(ctx, chat) {
		respondText(event, text(ctx, chat, "no_call"), true)
		return
	}
	applied, err := engine.Orch.SetVolume(ctx, chat, percent)
	if err != nil {
		r := failedControl(chat, "volume", err)
		respondText(event, text(ctx, chat, r.key, r.args...), true)
		return
	}
	respondText(event, text(ctx, chat, "volume", applied), false)
}

func handleSeek(event *events.ApplicationCommandInteractionCreate) {
	chat, ok := guard(event)
	if !ok {
		return
	}
	ctx := sys.AppContext
	offset := event.SlashCommandInteractionData().Int("seconds")

	cur := engine.Orch.Queue().Current(chat)
	if cur == nil || !engine.Orch.HasCall(ctx, chat) {
		respondText(event, text(ctx, chat, "no_call"), true)
		return
	}
	if r, ok := checkSeek(cur, offset); !ok {
		respondText(event, text(ctx, chat, r.key, r.args...), true)
		return
	}

	if err := event.DeferCreateMessage(false); err != nil {
		sys.LogDebug(sys.MsgCommandRespondFail, "seek", err)
		return
	}
	if err := engine.Orch.Seek(ctx, chat, offset); err != nil {
		r := failedControl(chat, "seek", err)
		editText(event, text(ctx, chat, r.key, r.args...))
		return
	}
	editText(event, text(ctx, chat, "seeked", media.FormatDuration(offset)))
}

// checkSeek rejects offsets past the end of a track with a known length.
// Live streams report no length and accept any offset.
func checkSeek(d media.Descriptor, offset int) (reply, bool) {
	dur := d.Base().DurationSec
	if offset < 0 || (dur > 0 && offset >= dur) {
		return reply{key: "seek_invalid", args: []any{media.FormatDuration(dur)}}, false
	}
	return reply{}, true
}

func handleControlButton(event *events.ComponentInteractionCreate) {
	action, chat, ok := stream.ParseControl(event.Data.CustomID())
	if !ok || event.GuildID() == nil || *event.GuildID() != chat || !ready() {
		_ = event.DeferUpdateMessage()
		return
	}
	ctx := sys.AppContext
	if isBlocked(event.User().ID) {
		respondEphemeral(event, text(ctx, chat, "blocked"))
		return
	}

	if err := event.DeferCreateMessage(true); err != nil {
		sys.LogDebug(sys.MsgCommandRespondFail, action, err)
		return
	}
	r := control(ctx, engine.Orch, chat, action)
	_, err := event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(),
		discord.NewMessageUpdate().
			WithIsComponentsV2(true).
			WithComponents(sys.NewTextCard(text(ctx, chat, r.key, r.args...))))
	if err != nil {
		sys.LogDebug(sys.MsgCommandRespondFail, action, err)
	}
}

func respondEphemeral(event *events.ComponentInteractionCreate, content string) {
	_ = event.CreateMessage(discord.NewMessageCreate().
		WithIsComponentsV2(true).
		WithEphemeral(true).
		AddComponents(sys.NewTextCard(content)))
}
