package home

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/sys"
)

func init() {
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "ping",
		Description: "Check gateway and voice latency",
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionBool{
				Name:        "ephemeral",
				Description: "Whether the message should be ephemeral (default: true)",
				Required:    false,
			},
		},
	}, handlePing)

	sys.RegisterComponentHandler("ping_refresh", handlePingRefresh)
}

func pingCard(ctx context.Context, chat, interaction snowflake.ID) discord.ContainerComponent {
	latency := time.Since(interaction.Time()).Milliseconds()
	voice, calls := 0.0, 0
	if ready() {
		voice = float64(engine.Orch.Ping().Microseconds()) / 1000
		calls = engine.Orch.ActiveCalls(ctx)
	}
	return sys.NewCard(text(ctx, chat, "ping", latency, voice, calls), "",
		discord.NewActionRow(
			discord.NewSuccessButton("🔄 Refresh", "ping_refresh"),
		),
	)
}

func handlePing(event *events.ApplicationCommandInteractionCreate) {
	chat, ok := guard(event)
	if !ok {
		return
	}
	ephemeral := true
	if eph, ok := event.SlashCommandInteractionData().OptBool("ephemeral"); ok {
		ephemeral = eph
	}

	if err := sys.RespondV2(event, pingCard(sys.AppContext, chat, event.ID()), ephemeral); err != nil {
		sys.LogDebug(sys.MsgCommandRespondFail, "ping", err)
	}
}

func handlePingRefresh(event *events.ComponentInteractionCreate) {
	chat := snowflake.ID(0)
	if event.GuildID() != nil {
		chat = *event.GuildID()
	}
	_ = event.UpdateMessage(discord.NewMessageUpdate().
		WithIsComponentsV2(true).
		WithComponents(pingCard(sys.AppContext, chat, event.ID())))
}
