package home

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/media"
	"github.com/leeineian/resonance/sys"
)

const queuePageSize = 10

func handleQueueShow(event *events.ApplicationCommandInteractionCreate) {
	chat, ok := guard(event)
	if !ok {
		return
	}
	ctx := sys.AppContext
	respondText(event, renderQueue(ctx, chat, engine.Orch.Queue().Items(chat)), false)
}

func handleQueueRemove(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	chat, ok := guard(event)
	if !ok {
		return
	}
	ctx := sys.AppContext
	d, ok := engine.Orch.Queue().Remove(chat, data.Int("position"))
	if !ok {
		respondText(event, text(ctx, chat, "queue_no_such"), true)
		return
	}
	respondText(event, text(ctx, chat, "queue_removed", d.Base().Title), false)
}

// renderQueue lists the current item and up to a page of upcoming ones.
// Upcoming positions match what Queue.Remove expects.
func renderQueue(ctx context.Context, chat snowflake.ID, items []media.Descriptor) string {
	if len(items) == 0 {
		return text(ctx, chat, "queue_empty")
	}

	var b strings.Builder
	b.WriteString(text(ctx, chat, "queue_header", len(items)))
	for i, d := range items {
		if i > queuePageSize {
			fmt.Fprintf(&b, "\n… +%d", len(items)-i)
			break
		}
		c := d.Base()
		if i == 0 {
			fmt.Fprintf(&b, "\n▶️ **%s** `%s`", c.Title, c.Duration)
			continue
		}
		fmt.Fprintf(&b, "\n`%d.` %s `%s`", i, c.Title, c.Duration)
	}
	return b.String()
}
