package proc

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/gateway"
	"github.com/leeineian/resonance/sys"
)

const configKeyPresence = "presence_visible"

var StartTime = time.Now().UTC()

func rotationInterval() time.Duration {
	return time.Duration(15+rand.Intn(46)) * time.Second
}

// presence rotates the bot's activity through short call statistics.
type presence struct {
	orch        *Orchestrator
	gatewayPing func() time.Duration
	last        string
}

// PresenceRotator is a daemon starter that keeps the command client's
// activity line current.
func PresenceRotator(client *bot.Client, o *Orchestrator) func(ctx context.Context) (bool, func(), func()) {
	return func(ctx context.Context) (bool, func(), func()) {
		if client == nil || o == nil {
			return false, nil, nil
		}
		p := &presence{orch: o, gatewayPing: client.Gateway.Latency}
		run := func() {
			for {
				next := rotationInterval()
				p.update(ctx, client, next)
				select {
				case <-time.After(next):
				case <-ctx.Done():
					return
				}
			}
		}
		return true, run, nil
	}
}

// SetPresenceVisible toggles the rotating statistics. It applies from the
// next rotation.
func SetPresenceVisible(ctx context.Context, visible bool) error {
	return sys.SetBotConfig(ctx, configKeyPresence, strconv.FormatBool(visible))
}

func (p *presence) update(ctx context.Context, client *bot.Client, next time.Duration) {
	if visible, err := sys.GetBotConfig(ctx, configKeyPresence); err == nil && visible == "false" {
		_ = client.SetPresence(ctx, gateway.WithOnlineStatus(discord.OnlineStatusOnline))
		return
	}

	text := p.pick(p.statuses(ctx))
	err := client.SetPresence(ctx,
		gateway.WithOnlineStatus(discord.OnlineStatusOnline),
		gateway.WithListeningActivity(text),
	)
	if err != nil {
		sys.LogPresence(sys.MsgPresenceFailed, err)
		return
	}
	sys.LogPresence(sys.MsgPresenceRotated, text, next)
}

// statuses returns every non-empty status line.
func (p *presence) statuses(ctx context.Context) []string {
	var out []string
	if n := p.orch.ActiveCalls(ctx); n > 0 {
		out = append(out, fmt.Sprintf("%d active calls", n))
	}
	if ping := p.orch.Ping(); ping > 0 {
		out = append(out, fmt.Sprintf("Voice: %dms", ping.Milliseconds()))
	}
	if p.gatewayPing != nil {
		if ping := p.gatewayPing(); ping > 0 {
			out = append(out, fmt.Sprintf("Gateway: %dms", ping.Milliseconds()))
		}
	}
	return append(out, uptimeStatus())
}

// pick chooses a random status, avoiding the one shown last when possible.
func (p *presence) pick(available []string) string {
	var choices []string
	for _, s := range available {
		if s != p.last {
			choices = append(choices, s)
		}
	}
	selected := available[0]
	if len(choices) > 0 {
		selected = choices[rand.Intn(len(choices))]
	}
	p.last = selected
	return selected
}

func uptimeStatus() string {
	up := time.Since(StartTime)
	return fmt.Sprintf("Uptime: %dh %dm", int(up.Hours()), int(up.Minutes())%60)
}
