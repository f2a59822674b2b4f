package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/leeineian/resonance/sys"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
)

type (
	// LookupFunc returns the YouTube id of the top result for a query.
	LookupFunc func(ctx context.Context, query string) (string, error)
	// ScrapeFunc reads title and artist from a page's metadata.
	ScrapeFunc func(ctx context.Context, link string) (title, artist string, err error)
)

// lookupTopResult asks YouTube Music first and plain YouTube second.
func lookupTopResult(ctx context.Context, query string) (string, error) {
	if r, err := ytmusic.TrackSearch(query).Next(); err == nil {
		for _, v := range r.Tracks {
			if v.VideoID != "" {
				return v.VideoID, nil
			}
		}
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	r, err := ytsearch.NewClient(nil).Search(sctx, query)
	if err != nil {
		return "", err
	}
	for _, v := range r.Results {
		if v.VideoID != "" {
			return v.VideoID, nil
		}
	}
	return "", ErrNotFound
}

var (
	ogTitleRe = regexp.MustCompile(`<meta[^>]*property=["']og:title["'][^>]*content=["']([^"']+)["']`)
	ogDescRe  = regexp.MustCompile(`<meta[^>]*property=["']og:description["'][^>]*content=["']([^"']+)["']`)
	titleTail = []string{" - song and lyrics by", " | Spotify", " - Single by", " on Apple Music", " | Deezer", " | JioSaavn"}
)

// scrapeOpenGraph pulls og:title and og:description from the page head.
func scrapeOpenGraph(ctx context.Context, link string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := sys.HttpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var head strings.Builder
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for lines := 0; sc.Scan() && lines < 500; lines++ {
		head.WriteString(sc.Text())
		head.WriteByte(' ')
		if strings.Contains(sc.Text(), "</head>") {
			break
		}
	}
	return parseOpenGraph(head.String())
}

func parseOpenGraph(page string) (title, artist string, err error) {
	if m := ogTitleRe.FindStringSubmatch(page); len(m) > 1 {
		title = html.UnescapeString(m[1])
		for _, tail := range titleTail {
			if i := strings.Index(title, tail); i != -1 {
				title = title[:i]
			}
		}
	}
	if m := ogDescRe.FindStringSubmatch(page); len(m) > 1 {
		desc := html.UnescapeString(m[1])
		if parts := strings.Split(desc, " · "); len(parts) > 1 {
			artist = strings.TrimSpace(parts[0])
		}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "", errors.New("no og:title")
	}
	return title, artist, nil
}

// Resolve rewrites a music-service link into a search query for its top
// YouTube result. Links that need no rewrite are returned unchanged.
func (a *Acquirer) Resolve(ctx context.Context, link string) (string, error) {
	platform := DetectPlatform(link)
	if !NeedsResolve(platform) {
		return link, nil
	}

	title, artist := "", ""
	if info, err := a.GetInfo(ctx, link); err == nil && (info.Track != "" || info.Title != "") {
		title, artist = info.Track, info.Artist
		if title == "" {
			title = info.Title
		}
	} else {
		t, ar, serr := a.Scrape(ctx, link)
		if serr != nil {
			sys.LogDownloader(sys.MsgDownloadResolveFail, platform, serr)
			return "", &AcquisitionError{ID: link, Err: fmt.Errorf("%w: %v", ErrResolve, serr)}
		}
		title, artist = t, ar
	}

	query := title
	if artist != "" {
		query = artist + " - " + title
	}
	sys.LogDownloader(sys.MsgDownloadResolved, platform, query)
	return query, nil
}

// Search returns the top YouTube result for query.
func (a *Acquirer) Search(ctx context.Context, query string, video bool) (*Track, error) {
	if id, err := a.Lookup(ctx, query); err == nil && id != "" {
		if t, err := a.GetTrack(ctx, WatchURL(id), video); err == nil {
			return t, nil
		}
	}

	res, err := a.SearchMany(ctx, query, 1, video)
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

// SearchMany lists up to n YouTube results without downloading.
func (a *Acquirer) SearchMany(ctx context.Context, query string, n int, video bool) ([]*Track, error) {
	if n < 1 {
		n = 1
	}
	infos, err := ytdlpFlat(ctx, fmt.Sprintf("ytsearch%d:%s", n, query), n, a.cfg.Proxy)
	if err != nil {
		return nil, &AcquisitionError{ID: query, Err: err}
	}
	if len(infos) == 0 {
		return nil, &AcquisitionError{ID: query, Err: ErrNotFound}
	}
	out := make([]*Track, 0, len(infos))
	for _, info := range infos {
		info.URL = WatchURL(info.ID)
		out = append(out, trackFromInfo(info, PlatformYouTube, video))
	}
	return out, nil
}

// Playlist lists up to limit entries of a playlist link.
func (a *Acquirer) Playlist(ctx context.Context, link string, limit int, video bool) ([]*Track, error) {
	if limit < 1 {
		limit = 25
	}
	infos, err := ytdlpFlat(ctx, link, limit, a.cfg.Proxy)
	if err != nil {
		return nil, &AcquisitionError{ID: link, Err: err}
	}
	platform := DetectPlatform(link)
	out := make([]*Track, 0, len(infos))
	for _, info := range infos {
		if platform == PlatformYouTube || ExtractID(info.URL) != "" || info.URL == "" {
			info.URL = WatchURL(info.ID)
			out = append(out, trackFromInfo(info, PlatformYouTube, video))
			continue
		}
		out = append(out, trackFromInfo(info, platform, video))
	}
	if len(out) == 0 {
		return nil, &AcquisitionError{ID: link, Err: ErrNotFound}
	}
	return out, nil
}
