package proc

import (
	"context"
	"math"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/sys"
)

// connFor returns the chat's pinned connection, pinning the least busy one
// on first use.
func (o *Orchestrator) connFor(ctx context.Context, chat snowflake.ID) Connection {
	if c, ok := o.pinned(ctx, chat); ok {
		return c
	}

	best, bestCalls := 0, math.MaxInt
	for i, c := range o.conns {
		n, err := c.Calls(ctx)
		if err != nil {
			sys.LogCalls(sys.MsgCallsPingFailed, i, err)
			continue
		}
		if n < bestCalls {
			best, bestCalls = i, n
		}
	}
	if err := o.store.SetAssistant(ctx, chat, best); err != nil {
		sys.LogCalls(sys.MsgCallsStoreFailed, chat, err)
	}
	sys.LogCalls(sys.MsgCallsAssistantPinned, chat, best)
	return o.conns[best]
}

// pinned returns the chat's connection without pinning a new one.
func (o *Orchestrator) pinned(ctx context.Context, chat snowflake.ID) (Connection, bool) {
	idx, ok, err := o.store.Assistant(ctx, chat)
	if err != nil {
		sys.LogCalls(sys.MsgCallsStoreFailed, chat, err)
	}
	if !ok || idx < 0 || idx >= len(o.conns) {
		if len(o.conns) == 1 {
			return o.conns[0], false
		}
		return nil, false
	}
	return o.conns[idx], true
}

// callConn is the connection serving the chat's current call.
func (o *Orchestrator) callConn(ctx context.Context, chat snowflake.ID) (Connection, error) {
	if c, _ := o.pinned(ctx, chat); c != nil {
		return c, nil
	}
	return nil, ErrNoActiveCall
}

// Bind points the chat's connection at a voice channel.
func (o *Orchestrator) Bind(ctx context.Context, chat, channel snowflake.ID) {
	if b, ok := o.connFor(ctx, chat).(Binder); ok {
		b.Bind(chat, channel)
	}
}
