package media

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

// Quality selects a yt-dlp format tier.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

const (
	videoFormatHigh   = "(bestvideo[height<=?1080][width<=?1920][ext=mp4])+(bestaudio[ext=m4a])/best[ext=mp4]/best"
	videoFormatMedium = "(bestvideo[height<=?720][width<=?1280][ext=mp4])+(bestaudio[ext=m4a])/best[ext=mp4]/best"
	videoFormatLow    = "(bestvideo[height<=?480][width<=?854][ext=mp4])+(bestaudio[ext=m4a])/best[ext=mp4]/best"
	audioFormatHigh   = "bestaudio[ext=webm][acodec=opus]/bestaudio[ext=m4a]/bestaudio"
	audioFormatMedium = "bestaudio[ext=webm][asr<=?192000]/bestaudio"
)

// ParseQuality maps user input to a tier, defaulting per media type.
func ParseQuality(s string, video bool) Quality {
	switch Quality(strings.ToLower(strings.TrimSpace(s))) {
	case QualityHigh:
		return QualityHigh
	case QualityMedium:
		return QualityMedium
	case QualityLow:
		return QualityLow
	}
	if video {
		return QualityMedium
	}
	return QualityHigh
}

// FormatFor returns the yt-dlp format selector for a tier. Audio has no low
// tier; it falls back to medium.
func FormatFor(video bool, q Quality) string {
	if video {
		switch q {
		case QualityHigh:
			return videoFormatHigh
		case QualityLow:
			return videoFormatLow
		default:
			return videoFormatMedium
		}
	}
	if q == QualityHigh {
		return audioFormatHigh
	}
	return audioFormatMedium
}

// FetchRequest is one download attempt.
type FetchRequest struct {
	URL    string
	Output string
	Format string
	Cookie string
	Proxy  string
	Video  bool
}

// Info is metadata extracted without downloading.
type Info struct {
	ID          string
	Title       string
	Uploader    string
	Artist      string
	Track       string
	Thumbnail   string
	URL         string
	DurationSec int
	Views       int64
	IsLive      bool
}

type (
	FetchFunc func(ctx context.Context, req FetchRequest) error
	InfoFunc  func(ctx context.Context, link, cookie, proxy string) (*Info, error)
)

func newYtdlp(proxy string) *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings()
	if proxy != "" {
		cmd.Proxy(proxy)
	}
	return cmd
}

func baseArgs(cookie string) []string {
	args := []string{
		"--geo-bypass",
		"--no-check-certificates",
		"--socket-timeout", "30",
		"--retries", "3",
		"--fragment-retries", "3",
	}
	if cookie != "" {
		args = append(args, "--cookies", cookie)
	}
	return args
}

func runError(res *ytdlp.Result, err error) error {
	if res == nil || res.Stderr == "" {
		return err
	}
	msg := strings.TrimSpace(res.Stderr)
	if i := strings.LastIndex(msg, "\n"); i >= 0 {
		msg = msg[i+1:]
	}
	return fmt.Errorf("%w: %s", err, msg)
}

// ytdlpFetch downloads one source to req.Output.
func ytdlpFetch(ctx context.Context, req FetchRequest) error {
	args := baseArgs(req.Cookie)
	if req.Video {
		args = append(args, "--merge-output-format", "mp4")
	}
	res, err := newYtdlp(req.Proxy).
		Format(req.Format).
		Output(req.Output).
		NoPlaylist().
		IgnoreConfig().
		Run(ctx, append(args, req.URL)...)
	if err != nil {
		return runError(res, err)
	}
	return nil
}

const infoTemplate = "%(id)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(view_count)s\t%(thumbnail)s\t%(webpage_url)s\t%(artist)s\t%(track)s\t%(is_live)s"

func ytdlpInfo(ctx context.Context, link, cookie, proxy string) (*Info, error) {
	res, err := newYtdlp(proxy).
		Print(infoTemplate).
		NoPlaylist().
		IgnoreConfig().
		Run(ctx, append(baseArgs(cookie), "--skip-download", link)...)
	if err != nil {
		return nil, runError(res, err)
	}
	for _, l := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		if info := parseInfoLine(l); info != nil {
			return info, nil
		}
	}
	return nil, errors.New("failed to parse metadata")
}

func parseInfoLine(line string) *Info {
	ps := strings.Split(line, "\t")
	if len(ps) < 4 || na(ps[0]) == "" {
		return nil
	}
	get := func(i int) string {
		if i < len(ps) {
			return na(ps[i])
		}
		return ""
	}
	info := &Info{
		ID:          ps[0],
		Title:       get(1),
		Uploader:    get(2),
		DurationSec: parseSeconds(get(3)),
		Thumbnail:   get(5),
		URL:         get(6),
		Artist:      get(7),
		Track:       get(8),
		IsLive:      get(9) == "True",
	}
	info.Views, _ = strconv.ParseInt(get(4), 10, 64)
	return info
}

// flat search / playlist listing
const flatTemplate = "%(id)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(url)s"

func ytdlpFlat(ctx context.Context, target string, limit int, proxy string) ([]*Info, error) {
	res, err := newYtdlp(proxy).
		FlatPlaylist().
		Print(flatTemplate).
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		IgnoreConfig().
		Run(ctx, append(baseArgs(""), "--yes-playlist", target)...)
	if err != nil {
		return nil, runError(res, err)
	}

	var out []*Info
	for _, l := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		ps := strings.Split(l, "\t")
		if len(ps) < 5 || na(ps[0]) == "" || na(ps[1]) == "" {
			continue
		}
		out = append(out, &Info{
			ID:          ps[0],
			Title:       ps[1],
			Uploader:    na(ps[2]),
			DurationSec: parseSeconds(na(ps[3])),
			URL:         na(ps[4]),
		})
	}
	return out, nil
}

func na(s string) string {
	s = strings.TrimSpace(s)
	if s == "NA" || s == "None" {
		return ""
	}
	return s
}

func parseSeconds(s string) int {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return parseColon(s)
	}
	return int(f)
}

// parseColon parses "3:20" or "1:05:20".
func parseColon(s string) int {
	total := 0
	for _, p := range strings.Split(s, ":") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}
