package media

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/leeineian/resonance/sys"
	"golang.org/x/sync/errgroup"
)

// DefaultPasteBase serves raw cookie payloads by slug.
const DefaultPasteBase = "https://batbin.me/raw/"

// CookiePool rotates the cookie files handed to yt-dlp. A path removed by
// Invalidate is not drawn again unless Refresh rewrites it.
type CookiePool struct {
	Dir       string
	PasteBase string
	Client    *http.Client

	mu        sync.Mutex
	loaded    bool
	paths     []string
	invalid   map[string]bool
	emptyOnce sync.Once
}

func NewCookiePool(dir string) *CookiePool {
	return &CookiePool{
		Dir:       dir,
		PasteBase: DefaultPasteBase,
		Client:    sys.HttpClient,
		invalid:   make(map[string]bool),
	}
}

// Load rescans the directory. Invalidated paths stay out.
func (p *CookiePool) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadLocked()
}

func (p *CookiePool) loadLocked() error {
	p.loaded = true
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		p.paths = nil
		sys.CookiePoolSize.Set(0)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		full := filepath.Join(p.Dir, e.Name())
		if p.invalid[full] {
			continue
		}
		paths = append(paths, full)
	}
	p.paths = paths
	sys.CookiePoolSize.Set(float64(len(paths)))
	if len(paths) > 0 {
		sys.LogCookies(sys.MsgCookiesLoaded, len(paths), p.Dir)
		p.emptyOnce = sync.Once{}
	}
	return nil
}

// Draw picks a random eligible cookie file. The first empty draw is logged.
func (p *CookiePool) Draw() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		if err := p.loadLocked(); err != nil {
			sys.LogCookies(sys.MsgCookiesDirUnusable, p.Dir, err)
		}
	}
	if len(p.paths) == 0 {
		p.emptyOnce.Do(func() { sys.LogCookies(sys.MsgCookiesNone) })
		return "", false
	}
	return p.paths[rand.IntN(len(p.paths))], true
}

// Invalidate removes path from the pool. Removing an absent path is a no-op.
func (p *CookiePool) Invalidate(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.invalid[path] = true
	for i, c := range p.paths {
		if c == path {
			p.paths = append(p.paths[:i], p.paths[i+1:]...)
			sys.CookiePoolSize.Set(float64(len(p.paths)))
			sys.LogCookies(sys.MsgCookiesInvalidated, filepath.Base(path), len(p.paths))
			return
		}
	}
}

func (p *CookiePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paths)
}

// Paths returns the eligible files, sorted.
func (p *CookiePool) Paths() []string {
	p.mu.Lock()
	out := append([]string(nil), p.paths...)
	p.mu.Unlock()
	sort.Strings(out)
	return out
}

// Refresh downloads each paste link into {slug}.txt and reloads the pool.
// Files it rewrites are eligible again. Failed links are logged and skipped.
func (p *CookiePool) Refresh(ctx context.Context, urls []string) (int, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return 0, fmt.Errorf("create cookie dir: %w", err)
	}

	var (
		mu      sync.Mutex
		written []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		g.Go(func() error {
			dst, err := p.fetchPaste(gctx, u)
			if err != nil {
				sys.LogCookies(sys.MsgCookiesRefreshFail, u, err)
				return nil
			}
			mu.Lock()
			written = append(written, dst)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return len(written), err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range written {
		delete(p.invalid, w)
	}
	if err := p.loadLocked(); err != nil {
		return len(written), err
	}
	sys.LogCookies(sys.MsgCookiesRefreshed, len(written))
	return len(written), nil
}

func (p *CookiePool) fetchPaste(ctx context.Context, link string) (string, error) {
	slug := path.Base(strings.TrimRight(link, "/"))
	if slug == "" || slug == "." || slug == "/" {
		return "", fmt.Errorf("no slug in %q", link)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.PasteBase+slug, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	dst := filepath.Join(p.Dir, slug+".txt")
	pf, err := renameio.NewPendingFile(dst)
	if err != nil {
		return "", err
	}
	defer pf.Cleanup()

	n, err := io.Copy(pf, resp.Body)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("empty payload")
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return "", err
	}
	return dst, nil
}

// StartWatcher is a daemon starter that reloads the pool when cookie files
// appear in the directory.
func (p *CookiePool) StartWatcher() func(ctx context.Context) (bool, func(), func()) {
	return func(ctx context.Context) (bool, func(), func()) {
		if err := os.MkdirAll(p.Dir, 0o755); err != nil {
			sys.LogCookies(sys.MsgCookiesDirUnusable, p.Dir, err)
			return false, nil, nil
		}
		w, err := fsnotify.NewWatcher()
		if err != nil {
			sys.LogCookies(sys.MsgCookiesWatchFail, err)
			return false, nil, nil
		}
		if err := w.Add(p.Dir); err != nil {
			_ = w.Close()
			sys.LogCookies(sys.MsgCookiesWatchFail, err)
			return false, nil, nil
		}

		run := func() {
			sys.LogCookies(sys.MsgCookiesWatching, p.Dir)
			p.watchLoop(ctx, w)
		}
		return true, run, func() { _ = w.Close() }
	}
}

func (p *CookiePool) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, ".txt") {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			op := ev.Op.String()
			debounce = time.AfterFunc(500*time.Millisecond, func() {
				sys.LogCookies(sys.MsgCookiesReloadNotice, op)
				if err := p.Load(); err != nil {
					sys.LogCookies(sys.MsgCookiesDirUnusable, p.Dir, err)
				}
			})
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			sys.LogCookies(sys.MsgCookiesWatchFail, err)
		}
	}
}
