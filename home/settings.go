package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/leeineian/resonance/sys"
)

func init() {
	adminPerm := discord.PermissionAdministrator
	managePerm := discord.PermissionManageGuild

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "cookies",
		Description:              "Re-download the credential files (Owner Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts:                 []discord.InteractionContextType{discord.InteractionContextTypeGuild},
	}, handleCookies)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "language",
		Description:              "Set the language used in this server",
		DefaultMemberPermissions: omit.New(&managePerm),
		Contexts:                 []discord.InteractionContextType{discord.InteractionContextTypeGuild},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionString{
				Name:        "code",
				Description: "Language",
				Required:    true,
				Choices: []discord.ApplicationCommandOptionChoiceString{
					{Name: "English", Value: "en"},
					{Name: "Español", Value: "es"},
					{Name: "Bahasa Indonesia", Value: "id"},
				},
			},
		},
	}, handleLanguage)
}

func handleCookies(event *events.ApplicationCommandInteractionCreate) {
	chat := chatOf(event)
	if engine == nil || engine.Config == nil || !engine.Config.IsOwner(event.User().ID.String()) {
		denySudo(event)
		return
	}
	if engine.Media == nil || engine.Media.Cookies == nil {
		respondText(event, text(sys.AppContext, chat, "cookies_failed"), true)
		return
	}
	if err := event.DeferCreateMessage(true); err != nil {
		sys.LogDebug(sys.MsgCommandRespondFail, "cookies", err)
		return
	}

	ctx := sys.AppContext
	pool := engine.Media.Cookies
	n, err := pool.Refresh(ctx, engine.Config.CookieURLs)
	if err != nil && n == 0 {
		editText(event, text(ctx, chat, "cookies_failed"))
		return
	}
	editText(event, text(ctx, chat, "cookies_refreshed", n, pool.Len()))
}

func handleLanguage(event *events.ApplicationCommandInteractionCreate) {
	chat, ok := guard(event)
	if !ok {
		return
	}
	ctx := sys.AppContext
	code := sys.MatchLang(event.SlashCommandInteractionData().String("code"))
	if err := sys.SetChatLang(ctx, chat, code); err != nil {
		sys.LogError(sys.MsgCommandListFailed, "language", err)
		respondText(event, text(ctx, chat, "error_play"), true)
		return
	}
	respondText(event, text(ctx, chat, "language_set", code), false)
}
