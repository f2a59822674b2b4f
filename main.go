package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/home"
	"github.com/leeineian/resonance/media"
	"github.com/leeineian/resonance/proc"
	"github.com/leeineian/resonance/stream"
	"github.com/leeineian/resonance/sys"
)

func main() {
	// LogFatal panics so deferred cleanup still runs.
	defer func() {
		if r := recover(); r != nil {
			if msg, ok := r.(string); ok {
				fmt.Fprintf(os.Stderr, "\n[FATAL] %s\n", msg)
				os.Exit(1)
			}
			panic(r)
		}
	}()

	silent := flag.Bool("silent", false, "Disable all log output")
	skipReg := flag.Bool("skip-reg", false, "Skip command registration")
	clearAll := flag.Bool("clear-all", false, "Force clear guild commands (scan all guilds)")
	flag.Parse()

	cfg, err := sys.LoadConfig()
	if err != nil {
		sys.LogFatal(sys.MsgConfigFailedToLoad, err)
	}
	sys.InitLogger(*silent || cfg.Silent, true)
	astiav.SetLogLevel(astiav.LogLevelFatal)

	sys.LogInfo(sys.MsgBotStarting, sys.GetProjectName())

	release := lockPIDFile()
	defer release()

	if err := sys.InitDatabase(context.Background(), cfg.DatabasePath); err != nil {
		sys.LogFatal(sys.MsgDatabaseInitFail, err)
	}
	defer sys.CloseDatabase()

	if err := run(cfg, *silent, *skipReg, *clearAll); err != nil {
		sys.LogFatal(sys.MsgGenericError, err)
	}
}

func run(cfg *sys.Config, silent, skipReg, clearAll bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	sys.SetAppContext(ctx)

	// Nothing survives a restart; stale rows would pin chats to dead calls.
	if err := sys.ResetCalls(ctx); err != nil {
		sys.LogWarn(sys.MsgCallsStoreFailed, "startup", err)
	}

	// 1. Voice assistants. The command client is always assistant 0.
	primary := stream.NewAssistant(0)
	client, err := sys.CreateClient(ctx, cfg, primary.Options()...)
	if err != nil {
		return fmt.Errorf(sys.MsgBotClientFail, err)
	}
	defer client.Close(context.Background())
	primary.Attach(client)

	assistants := []*stream.Assistant{primary}
	for i, token := range cfg.AssistantTokens {
		a := stream.NewAssistant(len(assistants))
		c, err := sys.CreateAssistantClient(token, a.Options()...)
		if err != nil {
			sys.LogError(sys.MsgAssistantFail, i+1, err)
			continue
		}
		if err := c.OpenGateway(ctx); err != nil {
			sys.LogError(sys.MsgAssistantFail, i+1, err)
			c.Close(context.Background())
			continue
		}
		a.Attach(c)
		sys.LogInfo(sys.MsgAssistantReady, a.Index, c.ID())
		assistants = append(assistants, a)
	}
	conns := make([]proc.Connection, len(assistants))
	for i, a := range assistants {
		conns[i] = a
	}

	// 2. Media acquisition
	cookies := media.NewCookiePool(cfg.CookiesDir)
	if err := cookies.Load(); err != nil {
		sys.LogCookies(sys.MsgCookiesDirUnusable, cfg.CookiesDir, err)
	}
	if cookies.Len() == 0 && len(cfg.CookieURLs) > 0 {
		sys.SafeGo(func() {
			if _, err := cookies.Refresh(ctx, cfg.CookieURLs); err != nil {
				sys.LogCookies(sys.MsgCookiesRefreshFail, "startup", err)
			}
		})
	}
	acq := media.NewAcquirer(media.AcquirerConfig{
		Dir:           cfg.DownloadDir,
		DurationLimit: cfg.DurationLimit,
		Retries:       cfg.DownloadRetry,
		RetryDelay:    cfg.RetryDelay,
		Proxy:         cfg.YoutubeProxy,
	}, cookies)

	// 3. Orchestrator
	orch, err := proc.NewOrchestrator(proc.Deps{
		Conns:     conns,
		Store:     sys.CallStore{},
		Messenger: &stream.Messenger{Client: client},
		Lang:      sys.Localizer{},
		Acquirer:  acq,
	})
	if err != nil {
		return err
	}

	sudo, err := sys.LoadIDSet(ctx, "sudoers", ownerIDs(cfg)...)
	if err != nil {
		return fmt.Errorf("load sudoers: %w", err)
	}
	blocked, err := sys.LoadIDSet(ctx, "blocklist")
	if err != nil {
		return fmt.Errorf("load blocklist: %w", err)
	}

	home.Setup(&home.Engine{
		Orch:    orch,
		Media:   acq,
		Uploads: media.NewUploadFetcher(cfg.DownloadDir, cfg.MaxUploadBytes),
		Sudo:    sudo,
		Blocked: blocked,
		Config:  cfg,
	})

	// 4. Daemons start once the command client is ready. Voice connections
	// close first on shutdown so the dispatcher sees its event channels end.
	var readyOnce sync.Once
	sys.OnClientReady(func(_ context.Context, c *bot.Client) {
		readyOnce.Do(func() {
			sys.LogInfo(sys.MsgAssistantsOnline, len(assistants), c.ID())
			sys.RegisterDaemon(sys.LogVoice, hangUp(assistants))
		})
	})
	sys.RegisterDaemon(sys.LogCalls, dispatcher(orch))
	sys.RegisterDaemon(sys.LogCookies, cookies.StartWatcher())
	sys.RegisterDaemon(sys.LogPresence, proc.PresenceRotator(client, orch))
	sys.RegisterDaemon(sys.LogMetrics, sys.StartMetricsServer(cfg.MetricsAddr))

	// 5. Command registration
	if !skipReg {
		if err := sys.RegisterCommands(client, cfg.GuildID, clearAll); err != nil {
			sys.LogError(sys.MsgBotRegisterFail, err)
		}
	} else {
		sys.LogInfo("Skipping command registration as requested.")
	}

	// 6. Connect to Gateway
	if err := client.OpenGateway(ctx); err != nil {
		return fmt.Errorf(sys.MsgBotGatewayFail, err)
	}

	<-ctx.Done()
	if !silent {
		fmt.Println()
	}

	// Graceful Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sys.LogInfo("Shutting down all daemons...")
	sys.ShutdownDaemons(shutdownCtx)
	for _, a := range assistants[1:] {
		a.Client().Close(shutdownCtx)
	}

	if botUser, ok := client.Caches.SelfUser(); ok {
		sys.LogInfo(sys.MsgBotShutdown, botUser.Username)
	} else {
		sys.LogInfo(sys.MsgBotShutdown, sys.GetProjectName())
	}
	return nil
}

// dispatcher runs the orchestrator's event loops until the assistants close
// their event channels.
func dispatcher(o *proc.Orchestrator) func(ctx context.Context) (bool, func(), func()) {
	return func(ctx context.Context) (bool, func(), func()) {
		return true, func() { o.Dispatch(ctx) }, nil
	}
}

// hangUp leaves every call on shutdown.
func hangUp(assistants []*stream.Assistant) func(ctx context.Context) (bool, func(), func()) {
	return func(ctx context.Context) (bool, func(), func()) {
		return true, func() {}, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			sys.LogVoice("Leaving all voice calls...")
			for _, a := range assistants {
				a.Close(closeCtx)
			}
		}
	}
}

func ownerIDs(cfg *sys.Config) []snowflake.ID {
	var ids []snowflake.ID
	for _, raw := range cfg.OwnerIDs {
		if id, err := snowflake.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
