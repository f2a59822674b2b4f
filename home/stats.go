package home

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/omit"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/proc"
	"github.com/leeineian/resonance/sys"
)

const (
	StatsAnsiReset    = "\u001b[0m"
	StatsAnsiPink     = "\u001b[35m"
	StatsAnsiPinkBold = "\u001b[35;1m"
	StatsCacheTTL     = 5000 * time.Millisecond
)

var (
	statsCacheMu sync.RWMutex
	statsSystem  statsCached
)

type statsCached struct {
	Data      string
	Timestamp time.Time
}

// playbackStats is what the engine reports about itself.
type playbackStats struct {
	Assistants  int
	ActiveCalls int
	VoicePing   time.Duration
	GatewayPing time.Duration
	APILatency  time.Duration
	CookiePool  int
	Uploads     int
	DBLatency   time.Duration
}

func statsTitle(text string) string {
	return fmt.Sprintf("%s%s%s", StatsAnsiPink, text, StatsAnsiReset)
}

func statsLine(key, val string) string {
	return fmt.Sprintf("%s> %s:%s %s%s%s", StatsAnsiPink, key, StatsAnsiReset, StatsAnsiPinkBold, val, StatsAnsiReset)
}

func init() {
	adminPerm := discord.PermissionAdministrator

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "stats",
		Description:              "Display playback and system statistics (Admin Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionBool{
				Name:        "ephemeral",
				Description: "Whether the message should be ephemeral (default: true)",
				Required:    false,
			},
		},
	}, handleStats)

	sys.RegisterCommand(discord.SlashCommandCreate{
		Name:                     "presence",
		Description:              "Show or hide playback statistics in the bot's status (Owner Only)",
		DefaultMemberPermissions: omit.New(&adminPerm),
		Contexts: []discord.InteractionContextType{
			discord.InteractionContextTypeGuild,
		},
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionBool{
				Name:        "visible",
				Description: "Whether statistics rotate in the status",
				Required:    true,
			},
		},
	}, handlePresence)
}

func handleStats(event *events.ApplicationCommandInteractionCreate) {
	ephemeral := true
	if eph, ok := event.SlashCommandInteractionData().OptBool("ephemeral"); ok {
		ephemeral = eph
	}

	if err := sys.RespondV2(event, sys.NewTextCard("⏳ Loading stats..."), ephemeral); err != nil {
		sys.LogDebug(sys.MsgCommandRespondFail, "stats", err)
		return
	}

	st := collectStats(sys.AppContext)
	st.APILatency = time.Since(snowflake.ID(event.ID()).Time())
	if event.Client().Gateway != nil {
		st.GatewayPing = event.Client().Gateway.Latency()
	}
	editText(event, renderStats(st))
}

func collectStats(ctx context.Context) playbackStats {
	var st playbackStats
	if !ready() {
		return st
	}
	st.Assistants = len(engine.Orch.Connections())
	st.ActiveCalls = engine.Orch.ActiveCalls(ctx)
	st.VoicePing = engine.Orch.Ping()
	if engine.Media != nil && engine.Media.Cookies != nil {
		st.CookiePool = engine.Media.Cookies.Len()
	}
	if engine.Uploads != nil {
		st.Uploads = engine.Uploads.Active()
	}

	start := time.Now()
	_, _ = sys.GetBotConfig(ctx, "ping_test")
	st.DBLatency = time.Since(start)
	return st
}

func renderStats(st playbackStats) string {
	return fmt.Sprintf("```ansi\n%s\n\n%s\n```", systemStats(), appStats(st))
}

func systemStats() string {
	statsCacheMu.RLock()
	if time.Since(statsSystem.Timestamp) < StatsCacheTTL && statsSystem.Data != "" {
		defer statsCacheMu.RUnlock()
		return statsSystem.Data
	}
	statsCacheMu.RUnlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	data := strings.Join([]string{
		statsTitle("System"),
		statsLine("Platform", runtime.GOOS+" "+runtime.GOARCH),
		statsLine("Go Version", runtime.Version()),
		statsLine("Memory", fmt.Sprintf("%.2f MB / %.2f MB (Sys)", float64(m.HeapAlloc)/1024/1024, float64(m.Sys)/1024/1024)),
		statsLine("Goroutines", fmt.Sprint(runtime.NumGoroutine())),
	}, "\n")

	statsCacheMu.Lock()
	statsSystem = statsCached{Data: data, Timestamp: time.Now().UTC()}
	statsCacheMu.Unlock()
	return data
}

func appStats(st playbackStats) string {
	uptime := time.Since(proc.StartTime)
	lines := []string{
		statsTitle("Playback"),
		statsLine("Uptime", fmt.Sprintf("%dd %dh %dm", int(uptime.Hours())/24, int(uptime.Hours())%24, int(uptime.Minutes())%60)),
		statsLine("Assistants", fmt.Sprint(st.Assistants)),
		statsLine("Active Calls", fmt.Sprint(st.ActiveCalls)),
		statsLine("Cookie Pool", fmt.Sprint(st.CookiePool)),
		statsLine("Uploads", fmt.Sprint(st.Uploads)),
	}
	for _, p := range []struct {
		key string
		d   time.Duration
	}{
		{"Voice", st.VoicePing},
		{"Gateway", st.GatewayPing},
		{"API Latency", st.APILatency},
	} {
		if p.d > 0 {
			lines = append(lines, statsLine(p.key, fmt.Sprintf("%dms", p.d.Milliseconds())))
		}
	}
	if st.DBLatency > 0 {
		lines = append(lines, statsLine("Database", fmt.Sprintf("%.2fms", float64(st.DBLatency.Microseconds())/1000)))
	}
	return strings.Join(lines, "\n")
}

func handlePresence(event *events.ApplicationCommandInteractionCreate) {
	if engine == nil || engine.Config == nil || !engine.Config.IsOwner(event.User().ID.String()) {
		denySudo(event)
		return
	}
	visible := event.SlashCommandInteractionData().Bool("visible")
	if err := proc.SetPresenceVisible(sys.AppContext, visible); err != nil {
		respondText(event, fmt.Sprintf("Error saving config: %v", err), true)
		return
	}

	state := "DISABLED"
	if visible {
		state = "ENABLED"
	}
	respondText(event, fmt.Sprintf("Status rotation has been **%s**.", state), false)
}
