package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/leeineian/resonance/sys"
	"golang.org/x/time/rate"
)

// Upload describes a file a user attached to a chat.
type Upload struct {
	ID          string
	URL         string
	Filename    string
	ContentType string
	Size        int64
	DurationSec int
	User        string
}

func (u Upload) IsVideo() bool {
	if strings.HasPrefix(u.ContentType, "video/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(u.Filename)) {
	case ".mp4", ".mkv", ".webm", ".mov":
		return !strings.HasPrefix(u.ContentType, "audio/")
	}
	return false
}

// UploadFetcher downloads attachments into the cache. Each upload id has at
// most one job in flight and each job can be canceled by its token.
type UploadFetcher struct {
	Dir      string
	MaxBytes int64
	Client   *http.Client
	Interval time.Duration

	mu      sync.Mutex
	active  map[string]string
	cancels map[string]context.CancelFunc
}

func NewUploadFetcher(dir string, maxBytes int64) *UploadFetcher {
	return &UploadFetcher{
		Dir:      dir,
		MaxBytes: maxBytes,
		Client:   &http.Client{Timeout: 10 * time.Minute},
		Interval: 5 * time.Second,
		active:   make(map[string]string),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// UploadJob is one registered fetch.
type UploadJob struct {
	Token string

	f      *UploadFetcher
	u      Upload
	ctx    context.Context
	cancel context.CancelFunc
	path   string
}

func (f *UploadFetcher) path(u Upload) string {
	ext := filepath.Ext(u.Filename)
	if ext == "" {
		ext = ".bin"
	}
	return filepath.Join(f.Dir, "upload-"+safeName(u.ID)+ext)
}

// Begin registers a job for u. It fails with ErrTooLarge past the size limit
// and ErrInFlight while another job for the same upload runs.
func (f *UploadFetcher) Begin(ctx context.Context, u Upload) (*UploadJob, error) {
	if f.MaxBytes > 0 && u.Size > f.MaxBytes {
		return nil, ErrTooLarge
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.active[u.ID]; busy {
		return nil, ErrInFlight
	}
	jctx, cancel := context.WithCancel(ctx)
	token := uuid.NewString()
	f.active[u.ID] = token
	f.cancels[token] = cancel
	return &UploadJob{Token: token, f: f, u: u, ctx: jctx, cancel: cancel, path: f.path(u)}, nil
}

// Cancel aborts the job with token. It reports whether a job was found.
func (f *UploadFetcher) Cancel(token string) bool {
	f.mu.Lock()
	cancel, ok := f.cancels[token]
	f.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (f *UploadFetcher) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}

func (f *UploadFetcher) finish(j *UploadJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active[j.u.ID] == j.Token {
		delete(f.active, j.u.ID)
	}
	delete(f.cancels, j.Token)
	j.cancel()
}

// Run downloads the upload, reporting whole percentages to progress no more
// often than the fetcher's interval.
func (j *UploadJob) Run(progress func(pct int)) (*RawMedia, error) {
	defer j.f.finish(j)

	if st, err := os.Stat(j.path); err == nil && st.Size() > 0 {
		return j.media(), nil
	}
	sys.LogDownloader(sys.MsgUploadStarting, j.u.ID, j.u.Size)

	if err := j.download(progress); err != nil {
		if cerr := j.ctx.Err(); cerr != nil || errors.Is(err, context.Canceled) {
			sys.LogDownloader(sys.MsgUploadCanceled, j.u.ID)
			return nil, context.Canceled
		}
		sys.LogDownloader(sys.MsgUploadFailed, j.u.ID, err)
		return nil, &AcquisitionError{ID: j.u.ID, Err: err}
	}
	return j.media(), nil
}

func (j *UploadJob) download(progress func(pct int)) error {
	if err := os.MkdirAll(j.f.Dir, 0o755); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(j.ctx, http.MethodGet, j.u.URL, nil)
	if err != nil {
		return err
	}
	resp, err := j.f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	total := j.u.Size
	if total <= 0 {
		total = resp.ContentLength
	}
	var body io.Reader = resp.Body
	if j.f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, j.f.MaxBytes+1)
	}

	pf, err := renameio.NewPendingFile(j.path)
	if err != nil {
		return err
	}
	defer pf.Cleanup()

	pw := &progressWriter{total: total, report: progress, every: rate.Sometimes{Interval: j.f.Interval}}
	n, err := io.Copy(io.MultiWriter(pf, pw), body)
	if err != nil {
		return err
	}
	if j.f.MaxBytes > 0 && n > j.f.MaxBytes {
		return ErrTooLarge
	}
	return pf.CloseAtomicallyReplace()
}

func (j *UploadJob) media() *RawMedia {
	title := strings.TrimSuffix(j.u.Filename, filepath.Ext(j.u.Filename))
	return NewRawMedia(Common{
		ID:          j.u.ID,
		Title:       title,
		Duration:    FormatDuration(j.u.DurationSec),
		DurationSec: j.u.DurationSec,
		FilePath:    j.path,
		URL:         j.u.URL,
		Video:       j.u.IsVideo(),
		User:        j.u.User,
	})
}

type progressWriter struct {
	total  int64
	done   int64
	report func(int)
	every  rate.Sometimes
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.done += int64(len(p))
	if w.report != nil && w.total > 0 {
		pct := int(w.done * 100 / w.total)
		if pct > 100 {
			pct = 100
		}
		w.every.Do(func() { w.report(pct) })
	}
	return len(p), nil
}
