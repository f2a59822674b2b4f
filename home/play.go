package home

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/media"
	"github.com/leeineian/resonance/proc"
	"github.com/leeineian/resonance/sys"
)

const autocompleteTimeout = 2500 * time.Millisecond

func handlePlay(event *events.ApplicationCommandInteractionCreate, video bool) {
	chat, ok := guard(event)
	if !ok {
		return
	}
	ctx := sys.AppContext
	data := event.SlashCommandInteractionData()
	query, _ := data.OptString("query")
	quality, _ := data.OptString("quality")
	attachment, hasFile := data.OptAttachment("file")

	if query == "" && !hasFile {
		respondText(event, text(ctx, chat, "not_found"), true)
		return
	}
	channel, ok := voiceChannel(event.Client().Caches, chat, event.User().ID)
	if !ok {
		respondText(event, text(ctx, chat, "not_in_voice"), true)
		return
	}

	if err := event.DeferCreateMessage(false); err != nil {
		sys.LogDebug(sys.MsgCommandRespondFail, event.Data.CommandName(), err)
		return
	}

	if err := sys.SetChatChannel(ctx, chat, event.Channel().ID()); err != nil {
		sys.LogCalls(sys.MsgCallsStoreFailed, chat, err)
	}
	engine.Orch.Bind(ctx, chat, channel)

	ref := media.MessageRef{}
	if msg, err := event.Client().Rest.GetInteractionResponse(event.ApplicationID(), event.Token()); err == nil {
		ref = media.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}
	}

	var items []media.Descriptor
	if hasFile {
		item, err := fetchUpload(ctx, event, chat, attachment)
		if err != nil {
			editText(event, failureText(ctx, chat, err, attachment.Filename))
			return
		}
		items = []media.Descriptor{item}
	} else {
		editText(event, text(ctx, chat, "searching"))
		found, err := lookup(ctx, engine.Media, query, video)
		if err != nil {
			sys.LogCalls(sys.MsgCommandPlayFailed, chat, err)
			editText(event, failureText(ctx, chat, err, query))
			return
		}
		items = found
	}

	mention := event.User().Mention()
	for _, d := range items {
		d.Base().User = mention
	}

	// Only the first item is fetched up front; the rest download when their
	// turn comes.
	first := items[0]
	if err := acquire(ctx, first, quality); err != nil {
		sys.LogCalls(sys.MsgCommandPlayFailed, chat, err)
		editText(event, failureText(ctx, chat, err, first.Base().Title))
		return
	}
	if _, err := engine.Orch.Enqueue(ctx, chat, ref, first); err != nil {
		var fatal *proc.FatalCallError
		if !errors.As(err, &fatal) && !errors.Is(err, context.Canceled) {
			sys.LogCalls(sys.MsgCommandPlayFailed, chat, err)
		}
		return
	}

	if more := items[1:]; len(more) > 0 {
		if _, err := engine.Orch.Append(ctx, chat, more...); err != nil {
			sys.LogCalls(sys.MsgCommandPlayFailed, chat, err)
			return
		}
		card := sys.NewTextCard(text(ctx, chat, "playlist_queued", len(more)))
		if _, err := sys.SendMessageV2(event.Client(), event.Channel().ID(), card, rest.WithCtx(ctx)); err != nil {
			sys.LogDebug(sys.MsgCommandRespondFail, event.Data.CommandName(), err)
		}
	}
}

// acquire downloads d, honoring an explicit quality tier for YouTube tracks.
func acquire(ctx context.Context, d media.Descriptor, quality string) error {
	c := d.Base()
	if quality == "" || c.FilePath != "" || d.Kind() != media.KindTrack || media.ExtractID(c.URL) == "" {
		return engine.Media.Acquire(ctx, d)
	}
	path, err := engine.Media.Download(ctx, c.ID, c.Video, media.ParseQuality(quality, c.Video))
	if err != nil {
		return err
	}
	c.FilePath = path
	return nil
}

func failureText(ctx context.Context, chat snowflake.ID, err error, title string) string {
	switch key := failureKey(err); key {
	case "too_long":
		limit := 0
		if engine.Config != nil {
			limit = int(engine.Config.DurationLimit.Seconds())
		}
		return text(ctx, chat, key, media.FormatDuration(limit))
	case "upload_too_large":
		mb := int64(0)
		if engine.Uploads != nil {
			mb = engine.Uploads.MaxBytes / (1024 * 1024)
		}
		return text(ctx, chat, key, mb)
	case "error_download":
		return text(ctx, chat, key, title)
	default:
		return text(ctx, chat, key)
	}
}

func handlePlayAutocomplete(event *events.AutocompleteInteractionCreate) {
	focused := event.Data.Focused()
	query := focused.String()
	if focused.Name != "query" || len(query) < 3 || media.IsURL(query) || engine == nil || engine.Media == nil {
		_ = event.AutocompleteResult(nil)
		return
	}

	ctx, cancel := context.WithTimeout(sys.AppContext, autocompleteTimeout)
	defer cancel()
	results, err := engine.Media.SearchMany(ctx, query, 5, event.Data.CommandName == "vplay")
	if err != nil {
		_ = event.AutocompleteResult(nil)
		return
	}

	var choices []discord.AutocompleteChoice
	for _, r := range results {
		choices = append(choices, discord.AutocompleteChoiceString{Name: choiceName(r), Value: r.URL})
	}
	_ = event.AutocompleteResult(choices)
}

// choiceName fits Discord's 100 character limit for autocomplete names.
func choiceName(t *media.Track) string {
	return media.Truncate(fmt.Sprintf("%s (%s)", t.Title, t.Duration), 100)
}
