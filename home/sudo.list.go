package home

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/sys"
)

func chatOf(event *events.ApplicationCommandInteractionCreate) snowflake.ID {
	if g := event.GuildID(); g != nil {
		return *g
	}
	return 0
}

func denySudo(event *events.ApplicationCommandInteractionCreate) {
	respondText(event, text(sys.AppContext, chatOf(event), "sudo_only"), true)
}

// handleList applies add, remove or list to one of the persisted user sets.
func handleList(event *events.ApplicationCommandInteractionCreate, set *sys.IDSet) {
	data := event.SlashCommandInteractionData()
	if data.SubCommandName == nil || set == nil {
		return
	}
	ctx := sys.AppContext
	chat := chatOf(event)

	if *data.SubCommandName == "list" {
		respondText(event, renderList(set), true)
		return
	}

	user := data.User("user")
	var err error
	key := "sudo_added"
	switch *data.SubCommandName {
	case "add":
		err = set.Add(ctx, user.ID)
	case "remove":
		err = set.Remove(ctx, user.ID)
		key = "sudo_removed"
	default:
		return
	}
	if err != nil {
		sys.LogError(sys.MsgCommandListFailed, set.Name(), err)
		respondText(event, text(ctx, chat, "error_play"), true)
		return
	}
	sys.LogInfo(sys.MsgCommandListChanged, event.User().ID, *data.SubCommandName, user.ID, set.Name())
	respondText(event, text(ctx, chat, key, user.ID.String(), set.Name()), true)
}

func renderList(set *sys.IDSet) string {
	members := set.Members()
	if len(members) == 0 {
		return fmt.Sprintf("**%s** is empty.", set.Name())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%d)", set.Name(), len(members))
	for _, id := range members {
		fmt.Fprintf(&b, "\n- <@%s>", id)
	}
	return b.String()
}
