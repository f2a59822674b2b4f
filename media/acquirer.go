package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/leeineian/resonance/sys"
	"golang.org/x/sync/singleflight"
)

type AcquirerConfig struct {
	Dir           string
	DurationLimit time.Duration
	Retries       int
	RetryDelay    time.Duration
	Proxy         string
}

// Acquirer turns ids, links and queries into local files. Concurrent
// requests for the same artifact share one fetch.
type Acquirer struct {
	cfg     AcquirerConfig
	Cookies *CookiePool

	// Swappable for tests.
	Fetch  FetchFunc
	Info   InfoFunc
	Lookup LookupFunc
	Scrape ScrapeFunc

	sf   singleflight.Group
	mu   sync.Mutex
	jobs map[string]*fetchJob
}

type fetchJob struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func NewAcquirer(cfg AcquirerConfig, cookies *CookiePool) *Acquirer {
	if cfg.Dir == "" {
		cfg.Dir = "downloads"
	}
	if cfg.Retries < 1 {
		cfg.Retries = 3
	}
	return &Acquirer{
		cfg:     cfg,
		Cookies: cookies,
		Fetch:   ytdlpFetch,
		Info:    ytdlpInfo,
		Lookup:  lookupTopResult,
		Scrape:  scrapeOpenGraph,
		jobs:    make(map[string]*fetchJob),
	}
}

func (a *Acquirer) Dir() string { return a.cfg.Dir }

func safeName(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_", "%", "_").Replace(id)
}

// CachedPath is where the artifact for id lives once downloaded.
func (a *Acquirer) CachedPath(id string, video bool) string {
	ext := ".webm"
	if video {
		ext = ".mp4"
	}
	return filepath.Join(a.cfg.Dir, safeName(id)+ext)
}

func (a *Acquirer) IsCached(id string, video bool) bool {
	st, err := os.Stat(a.CachedPath(id, video))
	return err == nil && !st.IsDir() && st.Size() > 0
}

// PurgeCache deletes both artifacts for id and returns how many existed.
func (a *Acquirer) PurgeCache(id string) (int, error) {
	n := 0
	var errs []error
	for _, video := range []bool{false, true} {
		p := a.CachedPath(id, video)
		for _, f := range []string{p, p + ".part"} {
			err := os.Remove(f)
			switch {
			case err == nil:
				n++
			case !errors.Is(err, os.ErrNotExist):
				errs = append(errs, err)
			}
		}
	}
	if n > 0 {
		sys.LogDownloader(sys.MsgDownloadPurged, n, id)
	}
	return n, errors.Join(errs...)
}

// Download fetches a YouTube id at the given tier.
func (a *Acquirer) Download(ctx context.Context, id string, video bool, q Quality) (string, error) {
	return a.acquire(ctx, id, WatchURL(id), video, q, 0)
}

// Acquire fills in d's file path, downloading when needed.
func (a *Acquirer) Acquire(ctx context.Context, d Descriptor) error {
	c := d.Base()
	if c.FilePath != "" {
		return nil
	}
	if d.Kind() == KindRaw {
		if c.URL == "" {
			return &AcquisitionError{ID: c.ID, Err: ErrResolve}
		}
		c.FilePath = c.URL
		return nil
	}

	link := c.URL
	if link == "" || DetectPlatform(link) == PlatformYouTube {
		link = WatchURL(c.ID)
	}
	path, err := a.acquire(ctx, c.ID, link, c.Video, ParseQuality("", c.Video), c.DurationSec)
	if err != nil {
		return err
	}
	c.FilePath = path
	return nil
}

func (a *Acquirer) acquire(ctx context.Context, id, link string, video bool, q Quality, knownDur int) (string, error) {
	if id == "" {
		return "", &AcquisitionError{ID: link, Err: ErrResolve}
	}
	if a.IsCached(id, video) {
		sys.LogDownloader(sys.MsgDownloadCacheHit, id)
		sys.DownloadsTotal.WithLabelValues("cached").Inc()
		return a.CachedPath(id, video), nil
	}

	key := fmt.Sprintf("%s:%v", id, video)
	j := a.join(ctx, key)
	ch := a.sf.DoChan(key, func() (any, error) {
		return a.fetchWithRetry(j.ctx, id, link, video, q, knownDur)
	})

	select {
	case <-ctx.Done():
		a.leave(key, j, true)
		return "", ctx.Err()
	case r := <-ch:
		a.leave(key, j, false)
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

// join registers a waiter on the job for key. The job's context outlives any
// one caller and is canceled once every waiter has gone.
func (a *Acquirer) join(ctx context.Context, key string) *fetchJob {
	a.mu.Lock()
	defer a.mu.Unlock()
	j, ok := a.jobs[key]
	if !ok {
		jctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		j = &fetchJob{ctx: jctx, cancel: cancel}
		a.jobs[key] = j
	}
	j.waiters++
	return j
}

func (a *Acquirer) leave(key string, j *fetchJob, abandoned bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	j.waiters--
	if j.waiters > 0 {
		return
	}
	if a.jobs[key] == j {
		delete(a.jobs, key)
	}
	j.cancel()
	if abandoned {
		a.sf.Forget(key)
	}
}

func (a *Acquirer) fetchWithRetry(ctx context.Context, id, link string, video bool, q Quality, knownDur int) (string, error) {
	out := a.CachedPath(id, video)
	if a.IsCached(id, video) {
		sys.DownloadsTotal.WithLabelValues("cached").Inc()
		return out, nil
	}
	if err := a.checkDuration(ctx, id, link, knownDur); err != nil {
		sys.DownloadsTotal.WithLabelValues("rejected").Inc()
		return "", err
	}
	if err := os.MkdirAll(a.cfg.Dir, 0o755); err != nil {
		return "", &AcquisitionError{ID: id, Err: err}
	}

	sys.LogDownloader(sys.MsgDownloadStarting, id, video, q)
	policy := NewRetryPolicy(a.cfg.Retries, a.cfg.RetryDelay, a.Cookies)
	var last error
	for {
		attempt, ok := policy.Next()
		if !ok {
			break
		}
		cookie := ""
		if a.Cookies != nil {
			cookie, _ = a.Cookies.Draw()
		}
		sys.DownloadAttemptsTotal.Inc()

		err := a.Fetch(ctx, FetchRequest{
			URL:    link,
			Output: out,
			Format: FormatFor(video, q),
			Cookie: cookie,
			Proxy:  a.cfg.Proxy,
			Video:  video,
		})
		if err == nil && !a.IsCached(id, video) {
			err = fmt.Errorf("no output at %s", out)
		}
		if err == nil {
			sys.LogDownloader(sys.MsgDownloadDone, id, out)
			sys.DownloadsTotal.WithLabelValues("ok").Inc()
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		last = &TransientNetworkError{Attempt: attempt, Cookie: cookie, Err: err}
		sys.LogDownloader(sys.MsgDownloadAttemptFailed, attempt, policy.Ceiling, id, err)
		policy.OnFailure(cookie)
		if policy.IsExhausted() {
			break
		}
		if err := policy.Wait(ctx, attempt); err != nil {
			return "", err
		}
	}

	sys.LogDownloader(sys.MsgDownloadExhausted, id, policy.Attempt(), last)
	sys.DownloadsTotal.WithLabelValues("failed").Inc()
	return "", &AcquisitionError{ID: id, Err: last}
}

func (a *Acquirer) checkDuration(ctx context.Context, id, link string, known int) error {
	if a.cfg.DurationLimit <= 0 {
		return nil
	}
	dur := known
	if dur <= 0 {
		info, err := a.GetInfo(ctx, link)
		if err != nil {
			// the fetch attempts will surface a dead link
			return nil
		}
		dur = info.DurationSec
	}
	return a.guard(id, dur)
}

func (a *Acquirer) guard(id string, dur int) error {
	limit := int(a.cfg.DurationLimit / time.Second)
	if limit > 0 && dur > limit {
		sys.LogDownloader(sys.MsgDownloadTooLong, id, FormatDuration(dur), FormatDuration(limit))
		return &AcquisitionError{ID: id, Err: ErrTooLong}
	}
	return nil
}

// CheckDuration rejects a descriptor longer than the configured ceiling.
func (a *Acquirer) CheckDuration(d Descriptor) error {
	return a.guard(d.Base().ID, d.Base().DurationSec)
}

// GetInfo extracts metadata without downloading.
func (a *Acquirer) GetInfo(ctx context.Context, link string) (*Info, error) {
	cookie := ""
	if a.Cookies != nil {
		cookie, _ = a.Cookies.Draw()
	}
	info, err := a.Info(ctx, link, cookie, a.cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", link, err)
	}
	return info, nil
}

// GetTrack builds a Track for link from its metadata.
func (a *Acquirer) GetTrack(ctx context.Context, link string, video bool) (*Track, error) {
	info, err := a.GetInfo(ctx, link)
	if err != nil {
		return nil, &AcquisitionError{ID: link, Err: err}
	}
	t := trackFromInfo(info, DetectPlatform(link), video)
	if t.URL == "" {
		t.URL = link
	}
	return t, nil
}

func trackFromInfo(info *Info, platform string, video bool) *Track {
	if platform == PlatformUnknown && ExtractID(info.URL) != "" {
		platform = PlatformYouTube
	}
	t := &Track{
		Common: Common{
			ID:          info.ID,
			Title:       TruncateTitle(info.Title),
			Duration:    FormatDuration(info.DurationSec),
			DurationSec: info.DurationSec,
			URL:         info.URL,
			Video:       video,
		},
		Platform: platform,
		Channel:  info.Uploader,
		Thumb:    info.Thumbnail,
	}
	if info.Views > 0 {
		t.Views = fmt.Sprintf("%d", info.Views)
	}
	if platform == PlatformYouTube {
		if t.URL == "" {
			t.URL = WatchURL(info.ID)
		}
		if t.Thumb == "" {
			t.Thumb = ThumbnailURL(info.ID, "")
		}
	}
	return t
}

// Passthrough wraps a direct stream URL, such as an m3u8 playlist, as media
// the transport reads without downloading.
func Passthrough(link string, video bool) *RawMedia {
	return NewRawMedia(Common{
		ID:       link,
		Title:    filepath.Base(strings.SplitN(link, "?", 2)[0]),
		Duration: "Live",
		FilePath: link,
		URL:      link,
		Video:    video,
	})
}
