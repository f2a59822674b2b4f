package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/resonance/sys"
)

func init() {
	minPos := 1
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "queue",
		Description: "Queue System",
		Contexts:    []discord.InteractionContextType{discord.InteractionContextTypeGuild},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "show",
				Description: "List what is playing and what comes next",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "remove",
				Description: "Remove an upcoming track",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "position",
						Description: "Position shown by /queue show",
						Required:    true,
						MinValue:    &minPos,
					},
				},
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		if data.SubCommandName == nil {
			return
		}

		switch *data.SubCommandName {
		case "show":
			handleQueueShow(event)
		case "remove":
			handleQueueRemove(event, data)
		}
	})
}
