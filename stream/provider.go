package stream

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Provider feeds transcoded Opus frames to a voice connection. A paused
// provider answers with silence and lets the transcoder back up behind it.
type Provider struct {
	frames   chan []byte
	paused   atomic.Bool
	ctx      context.Context
	once     sync.Once
	OnFinish func()
}

func NewProvider(ctx context.Context) *Provider {
	return &Provider{frames: make(chan []byte, 100), ctx: ctx}
}

// Close fires OnFinish at most once.
func (p *Provider) Close() {
	p.once.Do(func() {
		if p.OnFinish != nil {
			p.OnFinish()
		}
	})
}

// PushFrame blocks while the buffer is full. A nil frame marks the end.
func (p *Provider) PushFrame(f []byte) {
	select {
	case p.frames <- f:
	case <-p.ctx.Done():
	}
}

func (p *Provider) SetPaused(paused bool) bool {
	return p.paused.Swap(paused) != paused
}

func (p *Provider) Paused() bool { return p.paused.Load() }

func (p *Provider) ProvideOpusFrame() ([]byte, error) {
	if p.paused.Load() {
		return nil, nil
	}
	select {
	case f := <-p.frames:
		if f == nil {
			p.Close()
			return nil, io.EOF
		}
		return f, nil
	case <-p.ctx.Done():
		return nil, io.EOF
	case <-time.After(100 * time.Millisecond):
		return nil, nil
	}
}
