package sys

import (
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

// NewCard builds a V2 container with optional thumbnail accessory and
// trailing action rows.
func NewCard(text, thumbnail string, rows ...discord.ActionRowComponent) discord.ContainerComponent {
	var parts []discord.ContainerSubComponent
	if thumbnail != "" {
		parts = append(parts, discord.NewSection(discord.NewTextDisplay(text)).WithAccessory(discord.NewThumbnail(thumbnail)))
	} else {
		parts = append(parts, discord.NewTextDisplay(text))
	}
	if len(rows) > 0 {
		parts = append(parts, discord.NewSeparator(discord.SeparatorSpacingSizeSmall).WithDivider(true))
		for _, r := range rows {
			parts = append(parts, r)
		}
	}
	return discord.NewContainer(parts...)
}

// NewTextCard is a card with a single text display.
func NewTextCard(text string) discord.ContainerComponent {
	return discord.NewContainer(discord.NewTextDisplay(text))
}

func RespondV2(event *events.ApplicationCommandInteractionCreate, card discord.ContainerComponent, ephemeral bool) error {
	return event.CreateMessage(discord.NewMessageCreate().
		WithIsComponentsV2(true).
		WithEphemeral(ephemeral).
		AddComponents(card))
}

// EditResponseV2 replaces a deferred interaction response.
func EditResponseV2(event *events.ApplicationCommandInteractionCreate, card discord.ContainerComponent) error {
	_, err := event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(),
		discord.NewMessageUpdate().
			WithIsComponentsV2(true).
			WithComponents(card))
	return err
}

func SendMessageV2(client *bot.Client, channelID snowflake.ID, card discord.ContainerComponent, opts ...rest.RequestOpt) (*discord.Message, error) {
	return client.Rest.CreateMessage(channelID, discord.NewMessageCreate().
		WithIsComponentsV2(true).
		AddComponents(card), opts...)
}

func EditMessageV2(client *bot.Client, channelID, messageID snowflake.ID, card discord.ContainerComponent, opts ...rest.RequestOpt) (*discord.Message, error) {
	return client.Rest.UpdateMessage(channelID, messageID, discord.NewMessageUpdate().
		WithIsComponentsV2(true).
		WithComponents(card), opts...)
}
