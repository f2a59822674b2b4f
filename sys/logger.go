package sys

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// --- Globals & Styles ---

var (
	// Level colors
	infoColor  = color.New()
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	fatalColor = color.New(color.FgRed, color.Bold)

	// Component colors
	databaseColor   = color.New()
	callsColor      = color.New(color.FgMagenta)
	voiceColor      = color.New(color.FgMagenta)
	downloaderColor = color.New(color.FgBlue)
	cookiesColor    = color.New(color.FgYellow)
	metricsColor    = color.New(color.FgHiBlack)
	presenceColor   = color.New(color.FgCyan)

	DefaultTimeFormat = "15:04:05"
	IsSilent          = false
	LogToFile         = false
	Logger            *slog.Logger

	logFile *os.File
	logMu   sync.Mutex
)

func init() {
	InitLogger(false, false)
}

// InitLogger initializes the global structured logger
func InitLogger(silent bool, saveToFile bool) {
	logMu.Lock()
	defer logMu.Unlock()

	IsSilent = silent
	LogToFile = saveToFile
	level := slog.LevelInfo
	if strings.ToLower(os.Getenv("DEBUG")) == "true" {
		level = slog.LevelDebug
	}

	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	var writer io.Writer = os.Stdout
	var err error

	if LogToFile {
		logName := GetProjectName() + ".log"
		if exePath, exeErr := os.Executable(); exeErr == nil {
			logName = filepath.Base(exePath) + ".log"
		}

		logFile, err = os.OpenFile(logName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", logName, err)
		} else {
			writer = io.MultiWriter(os.Stdout, NewStripANSIWriter(logFile))
		}
	}

	color.NoColor = false

	handler := NewBotLogHandler(writer, &BotLogHandlerOptions{
		Silent: IsSilent,
		Level:  level,
	})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func SetSilentMode(silent bool) {
	InitLogger(silent, LogToFile)
}

// --- Public Logging API ---

func LogInfo(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...))
}

func LogWarn(format string, v ...any) {
	slog.Warn(fmt.Sprintf(format, v...))
}

func LogError(format string, v ...any) {
	slog.Error(fmt.Sprintf(format, v...))
}

func LogFatal(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	slog.Log(context.Background(), slog.LevelError+4, msg)
	panic(msg)
}

func LogDebug(format string, v ...any) {
	slog.Debug(fmt.Sprintf(format, v...))
}

// Component Loggers

func LogDatabase(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "database"))
}

func LogCalls(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "calls"))
}

func LogVoice(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "voice"))
}

func LogDownloader(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "downloader"))
}

func LogCookies(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "cookies"))
}

func LogPresence(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "presence"))
}

func LogMetrics(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), slog.String("component", "metrics"))
}

// WarnComponent logs at warn level while keeping the component tag.
func WarnComponent(component, format string, v ...any) {
	slog.Warn(fmt.Sprintf(format, v...), slog.String("component", component))
}

// --- Log Handler Implementation ---

type BotLogHandlerOptions struct {
	Silent bool
	Level  slog.Leveler
}

type BotLogHandler struct {
	w    io.Writer
	opts *BotLogHandlerOptions
	mu   *sync.Mutex
}

func NewBotLogHandler(w io.Writer, opts *BotLogHandlerOptions) *BotLogHandler {
	if opts == nil {
		opts = &BotLogHandlerOptions{Level: slog.LevelInfo}
	}
	return &BotLogHandler{
		w:    w,
		opts: opts,
		mu:   &sync.Mutex{},
	}
}

func (h *BotLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.opts.Silent {
		return false
	}
	return level >= h.opts.Level.Level()
}

func (h *BotLogHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opts.Silent {
		return nil
	}

	timeStr := time.Now().Format(DefaultTimeFormat)
	levelStr := "DEBUG"
	levelColor := infoColor

	switch {
	case r.Level >= slog.LevelError+4:
		levelStr = "FATAL"
		levelColor = fatalColor
	case r.Level >= slog.LevelError:
		levelStr = "ERROR"
		levelColor = errorColor
	case r.Level >= slog.LevelWarn:
		levelStr = "WARN"
		levelColor = warnColor
	case r.Level >= slog.LevelInfo:
		levelStr = "INFO"
	}

	component := ""
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = strings.ToUpper(a.Value.String())
			return false
		}
		return true
	})

	fmt.Fprintf(h.w, "%s", timeStr)

	if component != "" {
		if levelStr != "INFO" {
			fmt.Fprintf(h.w, " %s", levelColor.Sprintf("[%s]", levelStr))
		}
		fmt.Fprintf(h.w, " %s\n", colorizeWithResets(getComponentColor(component), fmt.Sprintf("[%s] %s", component, r.Message)))
		return nil
	}

	displayMsg := fmt.Sprintf("[%s] %s", levelStr, r.Message)
	if levelStr == "INFO" && strings.HasPrefix(r.Message, "[") {
		if idx := strings.Index(r.Message, "]"); idx > 0 && idx < 20 {
			displayMsg = r.Message
		}
	}
	fmt.Fprintf(h.w, " %s\n", colorizeWithResets(levelColor, displayMsg))
	return nil
}

func (h *BotLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *BotLogHandler) WithGroup(name string) slog.Handler       { return h }

// --- Formatting Helpers ---

func getComponentColor(name string) *color.Color {
	switch name {
	case "DATABASE":
		return databaseColor
	case "CALLS":
		return callsColor
	case "VOICE":
		return voiceColor
	case "DOWNLOADER":
		return downloaderColor
	case "COOKIES":
		return cookiesColor
	case "METRICS":
		return metricsColor
	case "PRESENCE":
		return presenceColor
	default:
		return color.New(color.FgCyan)
	}
}

func colorizeWithResets(c *color.Color, text string) string {
	if !strings.Contains(text, "\x1b[0m") {
		return c.Sprint(text)
	}

	marker := "@@@MSG@@@"
	wrapped := c.Sprint(marker)
	idx := strings.Index(wrapped, marker)
	if idx <= 0 {
		return text
	}
	startSeq := wrapped[:idx]

	return c.Sprint(strings.ReplaceAll(text, "\x1b[0m", "\x1b[0m"+startSeq))
}

// --- ANSI Stripper ---

type StripANSIWriter struct {
	w  io.Writer
	re *regexp.Regexp
}

func NewStripANSIWriter(w io.Writer) *StripANSIWriter {
	return &StripANSIWriter{
		w:  w,
		re: regexp.MustCompile(`\x1b\[[0-9;]*m`),
	}
}

func (s *StripANSIWriter) Write(p []byte) (n int, err error) {
	_, err = s.w.Write(s.re.ReplaceAll(p, nil))
	return len(p), err
}

// --- Message Constants ---

const (
	// --- Infrastructure & Lifecycle ---
	MsgConfigFailedToLoad  = "Failed to load config: %v"
	MsgConfigMissingToken  = "DISCORD_TOKEN is not set in .env file"
	MsgDatabaseInitSuccess = "Database initialized successfully"
	MsgDatabaseInitFail    = "Failed to initialize database: %v"
	MsgDatabaseTableError  = "Failed to create table: %w"
	MsgDatabasePragmaError = "Failed to set pragma %s: %w"
	MsgDaemonStarting      = "Starting..."
	MsgBotStarting         = "Starting %s..."
	MsgBotReady            = "%s is ready! (ID: %s) (PID: %d) (Took: %dms)"
	MsgBotShutdown         = "Shutting down %s..."
	MsgBotRegisterFail     = "Command registration failed: %v"
	MsgBotClientFail       = "failed to create Discord client: %w"
	MsgBotGatewayFail      = "failed to open gateway: %w"
	MsgAssistantReady      = "Assistant %d ready as %s"
	MsgAssistantsOnline    = "%d voice assistant(s) online, commands served by %s"
	MsgAssistantFail       = "Assistant %d failed to start: %v"
	MsgBotKillingOld       = "Killing running instance... (PID: %d)"
	MsgBotOldTerminated    = "Old instance terminated."
	MsgGenericError        = "%v"

	// --- Command Loader & Registry ---
	MsgLoaderSyncCommands   = "Syncing %s commands..."
	MsgLoaderUpToDate       = "[LOADER] Commands are up to date. (Hash: %s)"
	MsgLoaderDevStarting    = "[DEV] Registering commands to guild: %s"
	MsgLoaderDevRegistered  = "[DEV] Registered: %s"
	MsgLoaderDevFail        = "[DEV] Registration failed: %v"
	MsgLoaderProdStarting   = "[PROD] Registering commands globally..."
	MsgLoaderProdRegistered = "[PROD] Registered: %s"
	MsgLoaderProdFail       = "[PROD] Global registration failed: %w"
	MsgLoaderPanicRecovered = "Panic recovered in handler: %v"

	// --- Calls ---
	MsgCallsNowPlaying      = "Now playing in %s: %s"
	MsgCallsResumedAt       = "Seeked %s to %ds"
	MsgCallsStopped         = "Call stopped in %s"
	MsgCallsQueueEmpty      = "Queue empty in %s, ending call"
	MsgCallsFatal           = "Fatal transport error in %s: %v"
	MsgCallsSkip            = "Skipping media in %s: %v"
	MsgCallsNoFile          = "No file for %s in %s, skipping"
	MsgCallsAcquireFailed   = "Could not acquire next media in %s: %v"
	MsgCallsLeaveFailed     = "Leave call failed in %s: %v"
	MsgCallsStoreFailed     = "Call state update failed in %s: %v"
	MsgCallsUIFailed        = "Message update failed in %s: %v"
	MsgCallsStreamEnded     = "Stream ended (%s) in %s"
	MsgCallsChatUpdate      = "Chat update (%s) in %s"
	MsgCallsMuteEvent       = "Stream %s in %s"
	MsgCallsDispatcherDone  = "Event loop for connection %d stopped"
	MsgCallsPingFailed      = "Active call count failed on connection %d: %v"
	MsgCallsAssistantPinned = "Pinned %s to assistant %d"

	// --- Downloader ---
	MsgDownloadCacheHit      = "Cache hit for %s"
	MsgDownloadStarting      = "Downloading %s (video: %v, quality: %s)"
	MsgDownloadDone          = "Downloaded %s to %s"
	MsgDownloadAttemptFailed = "Attempt %d/%d for %s failed: %v"
	MsgDownloadExhausted     = "Giving up on %s after %d attempts: %v"
	MsgDownloadTooLong       = "Rejected %s: %s exceeds limit %s"
	MsgDownloadResolved      = "Resolved %s link to query %q"
	MsgDownloadResolveFail   = "Could not resolve %s: %v"
	MsgDownloadPurged        = "Purged %d cached files for %s"
	MsgUploadStarting        = "Fetching upload %s (%d bytes)"
	MsgUploadCanceled        = "Upload %s canceled"
	MsgUploadFailed          = "Upload %s failed: %v"

	// --- Cookies ---
	MsgCookiesLoaded       = "Loaded %d cookie files from %s"
	MsgCookiesNone         = "No cookie files available, continuing without credentials"
	MsgCookiesInvalidated  = "Invalidated %s (%d left)"
	MsgCookiesRefreshed    = "Refreshed %d cookie files"
	MsgCookiesRefreshFail  = "Cookie refresh failed for %s: %v"
	MsgCookiesWatching     = "Watching %s for new cookie files"
	MsgCookiesWatchFail    = "Cookie directory watch failed: %v"
	MsgCookiesDirUnusable  = "Cookie directory %s unusable: %v"
	MsgCookiesReloadNotice = "Cookie directory changed (%s), reloading"

	// --- Voice ---
	MsgVoiceJoining      = "Joining channel %s in guild %s"
	MsgVoiceJoinRetry    = "Voice join attempt %d failed in guild %s: %v"
	MsgVoiceLeft         = "Left voice in guild %s"
	MsgVoiceDisconnected = "Assistant disconnected by external event in guild %s"
	MsgVoiceFinished     = "Playback finished: %s"
	MsgVoiceInterrupted  = "Playback stopped: %s"
	MsgVoiceTranscodeErr = "Transcoder %s failed: %v"
	MsgVoiceVideoDropped = "Video stream requested in %s, playing audio only"
	MsgVoiceEventDropped = "Event buffer full on assistant %d, dropping %s"

	// --- Presence ---
	MsgPresenceRotated = "Presence set to %q (next in %s)"
	MsgPresenceFailed  = "Presence update failed: %v"

	// --- Metrics ---
	MsgMetricsListening = "Serving metrics on %s"
	MsgMetricsFailed    = "Metrics server stopped: %v"

	// --- Commands ---
	MsgCommandRespondFail = "Failed to answer /%s: %v"
	MsgCommandPlayFailed  = "Play request in %s failed: %v"
	MsgCommandControlFail = "%s in %s failed: %v"
	MsgCommandListChanged = "%s %s %s in %s"
	MsgCommandListFailed  = "Updating %s failed: %v"
)
