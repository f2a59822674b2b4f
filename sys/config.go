package sys

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Token           string
	AssistantTokens []string
	GuildID         string
	DatabasePath    string
	OwnerIDs        []string
	Silent          bool

	DownloadDir    string
	CookiesDir     string
	CookieURLs     []string
	DurationLimit  time.Duration
	DownloadRetry  int
	RetryDelay     time.Duration
	YoutubeProxy   string
	MaxUploadBytes int64

	MetricsAddr string
	DefaultLang string
}

var GlobalConfig *Config

// Validate ensures the configuration is valid and meets requirements.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf("invalid GUILD_ID: must be a valid Snowflake")
	}
	if c.DownloadRetry < 1 {
		return fmt.Errorf("invalid DOWNLOAD_RETRIES: must be at least 1")
	}
	if c.DurationLimit <= 0 {
		return fmt.Errorf("invalid DURATION_LIMIT: must be positive")
	}
	return nil
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		folder := "."
		if info, err := os.Stat("data"); err == nil && info.IsDir() {
			folder = "./data"
		}
		dbPath = filepath.Join(folder, GetProjectName()+".db")
	}

	silent, _ := strconv.ParseBool(os.Getenv("SILENT"))

	cfg := &Config{
		Token:           os.Getenv("DISCORD_TOKEN"),
		AssistantTokens: splitList(os.Getenv("ASSISTANT_TOKENS")),
		GuildID:         os.Getenv("GUILD_ID"),
		DatabasePath:    dbPath,
		OwnerIDs:        splitList(os.Getenv("OWNER_IDS")),
		Silent:          silent,
		DownloadDir:     envOr("DOWNLOAD_DIR", "downloads"),
		CookiesDir:      envOr("COOKIES_DIR", "cookies"),
		CookieURLs:      splitList(os.Getenv("COOKIE_URLS")),
		DurationLimit:   time.Duration(envInt("DURATION_LIMIT", 3600)) * time.Second,
		DownloadRetry:   envInt("DOWNLOAD_RETRIES", 3),
		RetryDelay:      envDuration("RETRY_DELAY", 2*time.Second),
		YoutubeProxy:    os.Getenv("YOUTUBE_PROXY"),
		MaxUploadBytes:  int64(envInt("MAX_UPLOAD_SIZE", 200)) * 1024 * 1024,
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		DefaultLang:     envOr("DEFAULT_LANG", "en"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Silent {
		SetSilentMode(true)
	}

	GlobalConfig = cfg
	return cfg, nil
}

// IsOwner reports whether id is listed in OWNER_IDS.
func (c *Config) IsOwner(id string) bool {
	for _, o := range c.OwnerIDs {
		if o == id {
			return true
		}
	}
	return false
}

func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "resonance"
	if err == nil {
		projectName = strings.TrimSuffix(filepath.Base(exePath), ".exe")
		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") || strings.HasSuffix(projectName, ".test") {
			projectName = "resonance"
		}
	}
	return projectName
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

// envDuration accepts either a Go duration ("1500ms") or plain seconds ("2").
func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
