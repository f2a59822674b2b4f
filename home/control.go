package home

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/proc"
	"github.com/leeineian/resonance/sys"
)

type controller interface {
	Pause(ctx context.Context, chat snowflake.ID) (bool, error)
	Resume(ctx context.Context, chat snowflake.ID) (bool, error)
	Mute(ctx context.Context, chat snowflake.ID) (bool, error)
	Unmute(ctx context.Context, chat snowflake.ID) (bool, error)
	PlayNext(ctx context.Context, chat snowflake.ID) error
	Replay(ctx context.Context, chat snowflake.ID) error
	Stop(ctx context.Context, chat snowflake.ID) error
	HasCall(ctx context.Context, chat snowflake.ID) bool
}

// reply is a localized answer: a table key and its arguments.
type reply struct {
	key  string
	args []any
}

// control runs one playback action and picks the answer for it. Every
// action except stop needs a live call.
func control(ctx context.Context, c controller, chat snowflake.ID, action string) reply {
	if action != "stop" && !c.HasCall(ctx, chat) {
		return reply{key: "no_call"}
	}

	var (
		changed bool
		err     error
		done    reply
		already reply
	)
	switch action {
	case "pause":
		changed, err = c.Pause(ctx, chat)
		done, already = reply{key: "paused"}, reply{key: "already_paused"}
	case "resume":
		changed, err = c.Resume(ctx, chat)
		done, already = reply{key: "resumed"}, reply{key: "already_playing"}
	case "mute":
		changed, err = c.Mute(ctx, chat)
		done, already = reply{key: "muted"}, reply{key: "already_muted"}
	case "unmute":
		changed, err = c.Unmute(ctx, chat)
		done, already = reply{key: "unmuted"}, reply{key: "not_muted"}
	case "skip":
		changed, err = true, c.PlayNext(ctx, chat)
		done = reply{key: "skipped"}
	case "replay":
		changed, err = true, c.Replay(ctx, chat)
		done = reply{key: "replaying"}
	case "stop":
		changed, err = true, c.Stop(ctx, chat)
		done = reply{key: "stopped"}
	default:
		return reply{key: "unknown_action"}
	}

	if err != nil {
		return failedControl(chat, action, err)
	}
	if !changed {
		return already
	}
	return done
}

// failedControl maps a control error to an answer. Fatal call errors were
// already reported in the chat by the orchestrator.
func failedControl(chat snowflake.ID, action string, err error) reply {
	if errors.Is(err, proc.ErrNoActiveCall) {
		return reply{key: "no_call"}
	}
	sys.LogCalls(sys.MsgCommandControlFail, action, chat, err)
	var fatal *proc.FatalCallError
	if errors.As(err, &fatal) {
		return reply{key: "stopped"}
	}
	return reply{key: "error_play"}
}
