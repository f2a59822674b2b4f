package media

import (
	"regexp"
	"strings"
)

const (
	PlatformYouTube     = "youtube"
	PlatformSpotify     = "spotify"
	PlatformSoundCloud  = "soundcloud"
	PlatformAppleMusic  = "apple_music"
	PlatformInstagram   = "instagram"
	PlatformFacebook    = "facebook"
	PlatformTwitter     = "twitter"
	PlatformTikTok      = "tiktok"
	PlatformTwitch      = "twitch"
	PlatformDeezer      = "deezer"
	PlatformJioSaavn    = "jiosaavn"
	PlatformGaana       = "gaana"
	PlatformVimeo       = "vimeo"
	PlatformDailymotion = "dailymotion"
	PlatformM3U8        = "m3u8"
	PlatformUnknown     = "unknown"
)

type platformRule struct {
	name     string
	patterns []*regexp.Regexp
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// Checked in order; the first platform with a matching pattern wins.
var platformRules = []platformRule{
	{PlatformYouTube, compile(
		`(?:https?://)?(?:www\.|m\.)?youtube\.com/watch\?v=[\w-]+`,
		`(?:https?://)?youtu\.be/[\w-]+`,
		`(?:https?://)?(?:www\.)?youtube\.com/shorts/[\w-]+`,
		`(?:https?://)?music\.youtube\.com/watch\?v=[\w-]+`,
	)},
	{PlatformSpotify, compile(
		`(?:https?://)?open\.spotify\.com/(?:track|album|playlist|episode)/\w+`,
	)},
	{PlatformSoundCloud, compile(
		`(?:https?://)?(?:www\.)?soundcloud\.com/[\w-]+/[\w-]+`,
		`(?:https?://)?on\.soundcloud\.com/[\w-]+`,
	)},
	{PlatformAppleMusic, compile(
		`(?:https?://)?music\.apple\.com/[\w-]+/(?:album|playlist|song)/[\w\-/]+`,
	)},
	{PlatformInstagram, compile(
		`(?:https?://)?(?:www\.)?instagram\.com/(?:p|reel|tv)/[\w-]+`,
	)},
	{PlatformFacebook, compile(
		`(?:https?://)?(?:www\.)?facebook\.com/(?:watch\?v=|[\w.]+/videos/)[\w-]+`,
		`(?:https?://)?fb\.watch/[\w-]+`,
	)},
	{PlatformTwitter, compile(
		`(?:https?://)?(?:www\.)?(?:twitter|x)\.com/[\w-]+/status/\d+`,
	)},
	{PlatformTikTok, compile(
		`(?:https?://)?(?:www\.)?tiktok\.com/@[\w.-]+/video/\d+`,
		`(?:https?://)?vm\.tiktok\.com/[\w-]+`,
		`(?:https?://)?vt\.tiktok\.com/[\w-]+`,
	)},
	{PlatformTwitch, compile(
		`(?:https?://)?(?:www\.)?twitch\.tv/videos/\d+`,
		`(?:https?://)?clips\.twitch\.tv/[\w-]+`,
		`(?:https?://)?(?:www\.)?twitch\.tv/[\w-]+/clip/[\w-]+`,
	)},
	{PlatformDeezer, compile(
		`(?:https?://)?(?:www\.)?deezer\.com/(?:[\w-]+/)?(?:track|album|playlist)/\d+`,
	)},
	{PlatformJioSaavn, compile(
		`(?:https?://)?(?:www\.)?jiosaavn\.com/song/[\w-]+`,
		`(?:https?://)?(?:www\.)?jiosaavn\.com/album/[\w-]+`,
	)},
	{PlatformGaana, compile(
		`(?:https?://)?(?:www\.)?gaana\.com/song/[\w-]+`,
	)},
	{PlatformVimeo, compile(
		`(?:https?://)?(?:www\.)?vimeo\.com/\d+`,
		`(?:https?://)?player\.vimeo\.com/video/\d+`,
	)},
	{PlatformDailymotion, compile(
		`(?:https?://)?(?:www\.)?dailymotion\.com/video/[\w-]+`,
		`(?:https?://)?dai\.ly/[\w-]+`,
	)},
	{PlatformM3U8, compile(
		`https?://\S+\.m3u8(?:\?\S*)?`,
	)},
}

var ytdlpSupported = map[string]bool{
	PlatformYouTube:     true,
	PlatformSoundCloud:  true,
	PlatformVimeo:       true,
	PlatformDailymotion: true,
	PlatformFacebook:    true,
	PlatformTwitter:     true,
	PlatformTikTok:      true,
	PlatformTwitch:      true,
	PlatformInstagram:   true,
	PlatformGaana:       true,
}

// Platforms whose media is DRM-locked; playable only through a search rewrite.
var resolveOnly = map[string]bool{
	PlatformSpotify:    true,
	PlatformDeezer:     true,
	PlatformAppleMusic: true,
	PlatformJioSaavn:   true,
}

var (
	urlRe     = regexp.MustCompile(`(?i)^https?://\S+$`)
	youtubeID = regexp.MustCompile(`(?:v=|youtu\.be/|shorts/|embed/|live/)([A-Za-z0-9_-]{11})`)
)

// DetectPlatform classifies a link against the ordered platform table.
func DetectPlatform(link string) string {
	link = strings.TrimSpace(link)
	for _, r := range platformRules {
		for _, p := range r.patterns {
			if p.MatchString(link) {
				return r.name
			}
		}
	}
	return PlatformUnknown
}

// YtdlpSupported reports whether the downloader can fetch the platform directly.
func YtdlpSupported(platform string) bool { return ytdlpSupported[platform] }

// NeedsResolve reports whether links on the platform must be rewritten to a search.
func NeedsResolve(platform string) bool { return resolveOnly[platform] }

func IsURL(s string) bool { return urlRe.MatchString(strings.TrimSpace(s)) }

// ExtractID returns the 11 character YouTube id in link, or "".
func ExtractID(link string) string {
	if m := youtubeID.FindStringSubmatch(link); len(m) > 1 {
		return m[1]
	}
	return ""
}

// WatchURL is the canonical page for a YouTube id.
func WatchURL(id string) string { return "https://www.youtube.com/watch?v=" + id }

// ThumbnailURL builds the static thumbnail link for a YouTube id.
func ThumbnailURL(id, size string) string {
	if size == "" {
		size = "hqdefault"
	}
	return "https://i.ytimg.com/vi/" + id + "/" + size + ".jpg"
}
