package home

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/resonance/sys"
)

func playOptions(what string) []discord.ApplicationCommandOption {
	return []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:         "query",
			Description:  "A link or search terms for the " + what,
			Required:     false,
			Autocomplete: true,
		},
		discord.ApplicationCommandOptionAttachment{
			Name:        "file",
			Description: "An audio or video file to play",
			Required:    false,
		},
		discord.ApplicationCommandOptionString{
			Name:        "quality",
			Description: "Download quality",
			Required:    false,
			Choices: []discord.ApplicationCommandOptionChoiceString{
				{Name: "High", Value: "high"},
				{Name: "Medium", Value: "medium"},
				{Name: "Low", Value: "low"},
			},
		},
	}
}

func init() {
	contexts := []discord.InteractionContextType{discord.InteractionContextTypeGuild}

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "play",
		Description: "Play a track in your voice channel",
		Contexts:    contexts,
		Options:     playOptions("track"),
	}, func(event *events.ApplicationCommandInteractionCreate) {
		handlePlay(event, false)
	})

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:        "vplay",
		Description: "Play a video's audio in your voice channel",
		Contexts:    contexts,
		Options:     playOptions("video"),
	}, func(event *events.ApplicationCommandInteractionCreate) {
		handlePlay(event, true)
	})

	sys.RegisterAutocompleteHandler("play", handlePlayAutocomplete)
	sys.RegisterAutocompleteHandler("vplay", handlePlayAutocomplete)
	sys.RegisterComponentHandler(uploadCancelPrefix, handleUploadCancel)
}
