package home

import (
	"context"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/media"
	"github.com/leeineian/resonance/sys"
)

const uploadCancelPrefix = "upl:cancel:"

func uploadFrom(a discord.Attachment, user snowflake.ID) media.Upload {
	u := media.Upload{
		ID:       a.ID.String(),
		URL:      a.URL,
		Filename: a.Filename,
		Size:     int64(a.Size),
		User:     discord.UserMention(user),
	}
	if a.ContentType != nil {
		u.ContentType = *a.ContentType
	}
	return u
}

// fetchUpload downloads an attachment while keeping the deferred reply
// updated with progress and a cancel button.
func fetchUpload(ctx context.Context, event *events.ApplicationCommandInteractionCreate, chat snowflake.ID, a discord.Attachment) (media.Descriptor, error) {
	job, err := engine.Uploads.Begin(ctx, uploadFrom(a, event.User().ID))
	if err != nil {
		return nil, err
	}
	cancelRow := discord.NewActionRow(discord.NewDangerButton("✖", uploadCancelPrefix+job.Token))

	show := func(pct int) {
		card := sys.NewCard(text(ctx, chat, "upload_progress", pct), "", cancelRow)
		if err := sys.EditResponseV2(event, card); err != nil {
			sys.LogDebug(sys.MsgCommandRespondFail, event.Data.CommandName(), err)
		}
	}
	show(0)

	m, err := job.Run(show)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func handleUploadCancel(event *events.ComponentInteractionCreate) {
	token := strings.TrimPrefix(event.Data.CustomID(), uploadCancelPrefix)
	chat := snowflake.ID(0)
	if event.GuildID() != nil {
		chat = *event.GuildID()
	}
	if engine == nil || engine.Uploads == nil || !engine.Uploads.Cancel(token) {
		_ = event.DeferUpdateMessage()
		return
	}
	_ = event.UpdateMessage(discord.NewMessageUpdate().
		WithIsComponentsV2(true).
		WithComponents(sys.NewTextCard(text(sys.AppContext, chat, "upload_canceled"))))
}
