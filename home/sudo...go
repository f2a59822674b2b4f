package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/resonance/sys"
)

func listCommand(name, description string) discord.SlashCommandCreate {
	userOpt := []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionUser{
			Name:        "user",
			Description: "The user",
			Required:    true,
		},
	}
	return discord.SlashCommandCreate{
		Name:        name,
		Description: description,
		Contexts:    []discord.InteractionContextType{discord.InteractionContextTypeGuild},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{Name: "add", Description: "Add a user", Options: userOpt},
			discord.ApplicationCommandOptionSubCommand{Name: "remove", Description: "Remove a user", Options: userOpt},
			discord.ApplicationCommandOptionSubCommand{Name: "list", Description: "Show every user on the list"},
		},
	}
}

func init() {
	sys.RegisterCommand(listCommand("sudo", "Sudo users (Owner Only)"), func(event *events.ApplicationCommandInteractionCreate) {
		if engine == nil || engine.Config == nil || !engine.Config.IsOwner(event.User().ID.String()) {
			denySudo(event)
			return
		}
		handleList(event, engine.Sudo)
	})

	sys.RegisterCommand(listCommand("block", "Blocked users (Sudo Only)"), func(event *events.ApplicationCommandInteractionCreate) {
		if !isSudo(event.User().ID) {
			denySudo(event)
			return
		}
		handleList(event, engine.Blocked)
	})
}
