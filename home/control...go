package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/resonance/stream"
	"github.com/leeineian/resonance/sys"
)

var simpleControls = []struct{ name, description string }{
	{"pause", "Pause playback"},
	{"resume", "Resume playback"},
	{"skip", "Skip to the next track"},
	{"stop", "Stop playback, clear the queue and leave"},
	{"replay", "Restart the current track"},
	{"mute", "Mute the stream"},
	{"unmute", "Unmute the stream"},
}

func init() {
	contexts := []discord.InteractionContextType{discord.InteractionContextTypeGuild}

	for _, c := range simpleControls {
		action := c.name
		sys.RegisterCommand(discord.SlashCommandCreate{
			Name:        c.name,
			Description: c.description,
			Contexts:    contexts,
		}, func(event *events.ApplicationCommandInteractionCreate) {
			handleControl(event, action)
		})
	}

	minVol, maxVol := 0, 200
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "volume",
		Description: "Set the stream volume",
		Contexts:    contexts,
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionInt{
				Name:        "percent",
				Description: "0 to 200",
				Required:    true,
				MinValue:    &minVol,
				MaxValue:    &maxVol,
			},
		},
	}, handleVolume)

	minSeek := 0
	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "seek",
		Description: "Jump to a position in the current track",
		Contexts:    contexts,
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionInt{
				Name:        "seconds",
				Description: "Position from the start",
				Required:    true,
				MinValue:    &minSeek,
			},
		},
	}, handleSeek)

	sys.RegisterComponentHandler(stream.ControlPrefix, handleControlButton)
}
