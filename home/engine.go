package home

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/media"
	"github.com/leeineian/resonance/proc"
	"github.com/leeineian/resonance/sys"
)

// Engine is everything the commands drive. main builds it once before the
// gateway opens.
type Engine struct {
	Orch    *proc.Orchestrator
	Media   *media.Acquirer
	Uploads *media.UploadFetcher
	Sudo    *sys.IDSet
	Blocked *sys.IDSet
	Config  *sys.Config
}

var engine *Engine

func Setup(e *Engine) { engine = e }

func ready() bool { return engine != nil && engine.Orch != nil }

// isSudo covers configured owners as well as the persisted sudo list.
func isSudo(id snowflake.ID) bool {
	if engine == nil {
		return false
	}
	if engine.Config != nil && engine.Config.IsOwner(id.String()) {
		return true
	}
	return engine.Sudo != nil && engine.Sudo.Contains(id)
}

func isBlocked(id snowflake.ID) bool {
	return engine != nil && engine.Blocked != nil && engine.Blocked.Contains(id) && !isSudo(id)
}

func text(ctx context.Context, chat snowflake.ID, key string, args ...any) string {
	return sys.Lang(ctx, chat).Get(key, args...)
}

// guard returns the invoking chat. Blocked users get a private notice.
func guard(event *events.ApplicationCommandInteractionCreate) (snowflake.ID, bool) {
	guildID := event.GuildID()
	if guildID == nil || !ready() {
		return 0, false
	}
	if isBlocked(event.User().ID) {
		_ = sys.RespondV2(event, sys.NewTextCard(text(sys.AppContext, *guildID, "blocked")), true)
		return 0, false
	}
	return *guildID, true
}

// voiceChannel is the channel the invoking member currently sits in.
func voiceChannel(client voiceStateCache, guildID, userID snowflake.ID) (snowflake.ID, bool) {
	vs, ok := client.VoiceState(guildID, userID)
	if !ok || vs.ChannelID == nil {
		return 0, false
	}
	return *vs.ChannelID, true
}

type voiceStateCache interface {
	VoiceState(guildID, userID snowflake.ID) (discord.VoiceState, bool)
}

func respondText(event *events.ApplicationCommandInteractionCreate, content string, ephemeral bool) {
	if err := sys.RespondV2(event, sys.NewTextCard(content), ephemeral); err != nil {
		sys.LogDebug(sys.MsgCommandRespondFail, event.Data.CommandName(), err)
	}
}

func editText(event *events.ApplicationCommandInteractionCreate, content string) {
	if err := sys.EditResponseV2(event, sys.NewTextCard(content)); err != nil {
		sys.LogDebug(sys.MsgCommandRespondFail, event.Data.CommandName(), err)
	}
}
