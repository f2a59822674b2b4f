package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/asticode/go-astiav"
	"github.com/leeineian/resonance/proc"
)

const (
	sampleRate   = 48000
	frameSamples = 960
)

// Transcoder decodes a local media file and re-encodes its first audio
// stream as 20ms Opus frames.
type Transcoder struct {
	inputCtx               *astiav.FormatContext
	decoderCtx, encoderCtx *astiav.CodecContext
	audioStreamIndex       int
	packet                 *astiav.Packet
	frame                  *astiav.Frame
	resampleCtx            *astiav.SoftwareResampleContext
	resampleFrame          *astiav.Frame
	fifo                   *astiav.AudioFifo
	onFrame                func([]byte)
	pts                    int64

	// Gain is sampled once per frame. Nil means unity.
	Gain func() float64
}

func NewTranscoder() *Transcoder {
	return &Transcoder{packet: astiav.AllocPacket(), frame: astiav.AllocFrame(), resampleFrame: astiav.AllocFrame()}
}

// Position is the encoded position in 48kHz samples.
func (t *Transcoder) Position() int64 {
	return atomic.LoadInt64(&t.pts)
}

func (t *Transcoder) OpenInput(path string) error {
	t.inputCtx = astiav.AllocFormatContext()
	if t.inputCtx == nil {
		return errors.New("failed to alloc ctx")
	}
	if err := t.inputCtx.OpenInput(path, nil, nil); err != nil {
		return fmt.Errorf("%w: %v", proc.ErrUnsupported, err)
	}
	if err := t.inputCtx.FindStreamInfo(nil); err != nil {
		return fmt.Errorf("%w: %v", proc.ErrUnsupported, err)
	}
	t.audioStreamIndex = -1
	for _, s := range t.inputCtx.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeAudio {
			t.audioStreamIndex = s.Index()
			break
		}
	}
	if t.audioStreamIndex == -1 {
		return proc.ErrNoAudio
	}
	return nil
}

// StartAt moves the input to sec seconds before the first frame is read.
func (t *Transcoder) StartAt(sec int) error {
	if sec <= 0 {
		return nil
	}
	ts := int64(sec) * sampleRate
	streamTb := t.inputCtx.Streams()[t.audioStreamIndex].TimeBase()
	streamTs := astiav.RescaleQ(ts, astiav.NewRational(1, sampleRate), streamTb)
	if err := t.inputCtx.SeekFrame(t.audioStreamIndex, streamTs, astiav.SeekFlags(astiav.SeekFlagBackward)); err != nil {
		return err
	}
	atomic.StoreInt64(&t.pts, ts)
	return nil
}

func (t *Transcoder) SetupDecoder() error {
	p := t.inputCtx.Streams()[t.audioStreamIndex].CodecParameters()
	d := astiav.FindDecoder(p.CodecID())
	if d == nil {
		return fmt.Errorf("%w: no decoder for %s", proc.ErrUnsupported, p.CodecID())
	}
	t.decoderCtx = astiav.AllocCodecContext(d)
	_ = p.ToCodecContext(t.decoderCtx)
	return t.decoderCtx.Open(d, nil)
}

func (t *Transcoder) SetupEncoder() error {
	e := astiav.FindEncoderByName("libopus")
	if e == nil {
		e = astiav.FindEncoder(astiav.CodecIDOpus)
	}
	if e == nil {
		return errors.New("no encoder")
	}
	t.encoderCtx = astiav.AllocCodecContext(e)
	t.encoderCtx.SetBitRate(128000)
	t.encoderCtx.SetSampleRate(sampleRate)
	t.encoderCtx.SetChannelLayout(astiav.ChannelLayoutStereo)
	t.encoderCtx.SetSampleFormat(astiav.SampleFormatS16)
	t.encoderCtx.SetTimeBase(astiav.NewRational(1, sampleRate))
	o := astiav.NewDictionary()
	defer o.Free()
	o.Set("vbr", "on", 0)
	o.Set("compression_level", "10", 0)
	o.Set("frame_size", "20", 0)
	if err := t.encoderCtx.Open(e, o); err != nil {
		return err
	}
	// The resampler configures itself from the first decoded frame.
	t.resampleCtx = astiav.AllocSoftwareResampleContext()
	if t.resampleCtx == nil {
		return errors.New("failed to allocate resampler")
	}
	return nil
}

// Transcode runs until the input ends or ctx is canceled. on receives every
// encoded frame, then a final nil.
func (t *Transcoder) Transcode(ctx context.Context, on func([]byte)) error {
	defer t.packet.Unref()
	t.onFrame = on
	defer func() {
		if t.onFrame != nil {
			t.onFrame(nil)
		}
	}()
	t.fifo = astiav.AllocAudioFifo(t.encoderCtx.SampleFormat(), t.encoderCtx.ChannelLayout().Channels(), frameSamples*2)
	defer func() {
		if t.fifo != nil {
			t.fifo.Free()
			t.fifo = nil
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.inputCtx.ReadFrame(t.packet); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				break
			}
			return err
		}
		if t.packet.StreamIndex() != t.audioStreamIndex {
			t.packet.Unref()
			continue
		}
		if err := t.decoderCtx.SendPacket(t.packet); err != nil {
			t.packet.Unref()
			return err
		}
		t.packet.Unref()
		for t.decoderCtx.ReceiveFrame(t.frame) == nil {
			t.pushToFifo()
			t.frame.Unref()
			for t.fifo.Size() >= frameSamples {
				t.drainFifo(frameSamples)
			}
		}
	}

	_ = t.decoderCtx.SendPacket(nil)
	for t.decoderCtx.ReceiveFrame(t.frame) == nil {
		t.pushToFifo()
		t.frame.Unref()
	}
	for t.fifo.Size() > 0 {
		t.drainFifo(min(frameSamples, t.fifo.Size()))
	}

	_ = t.encoderCtx.SendFrame(nil)
	t.receivePackets()
	return nil
}

func (t *Transcoder) resetResampleFrame() {
	t.resampleFrame.Unref()
	t.resampleFrame.SetChannelLayout(t.encoderCtx.ChannelLayout())
	t.resampleFrame.SetSampleFormat(t.encoderCtx.SampleFormat())
	t.resampleFrame.SetSampleRate(t.encoderCtx.SampleRate())
}

func (t *Transcoder) pushToFifo() {
	t.resetResampleFrame()
	nb := int(astiav.RescaleQ(int64(t.frame.NbSamples()), astiav.NewRational(1, t.frame.SampleRate()), astiav.NewRational(1, t.encoderCtx.SampleRate())))
	if nb <= 0 {
		return
	}
	t.resampleFrame.SetNbSamples(nb)
	_ = t.resampleFrame.AllocBuffer(0)
	if t.resampleCtx.ConvertFrame(t.frame, t.resampleFrame) == nil {
		_, _ = t.fifo.Write(t.resampleFrame)
	}
}

func (t *Transcoder) drainFifo(n int) {
	t.resetResampleFrame()
	t.resampleFrame.SetNbSamples(n)
	_ = t.resampleFrame.AllocBuffer(0)
	_, _ = t.fifo.Read(t.resampleFrame)
	t.applyGain()
	t.resampleFrame.SetPts(atomic.LoadInt64(&t.pts))
	atomic.AddInt64(&t.pts, int64(n))
	if err := t.encoderCtx.SendFrame(t.resampleFrame); err != nil {
		return
	}
	t.receivePackets()
}

func (t *Transcoder) applyGain() {
	if t.Gain == nil {
		return
	}
	g := t.Gain()
	if g == 1 {
		return
	}
	b, err := t.resampleFrame.Data().Bytes(1)
	if err != nil {
		return
	}
	scaleS16(b, g)
	_ = t.resampleFrame.Data().SetBytes(b, 1)
}

func (t *Transcoder) receivePackets() {
	for {
		p := astiav.AllocPacket()
		if t.encoderCtx.ReceivePacket(p) != nil {
			p.Free()
			return
		}
		if t.onFrame != nil {
			d := p.Data()
			fd := make([]byte, len(d))
			copy(fd, d)
			t.onFrame(fd)
		}
		p.Free()
	}
}

func (t *Transcoder) Close() {
	if t.resampleCtx != nil {
		t.resampleCtx.Free()
	}
	if t.resampleFrame != nil {
		t.resampleFrame.Free()
	}
	if t.packet != nil {
		t.packet.Free()
	}
	if t.frame != nil {
		t.frame.Free()
	}
	if t.decoderCtx != nil {
		t.decoderCtx.Free()
	}
	if t.encoderCtx != nil {
		t.encoderCtx.Free()
	}
	if t.inputCtx != nil {
		t.inputCtx.CloseInput()
		t.inputCtx.Free()
	}
}

// scaleS16 multiplies interleaved little-endian s16 samples by g in place.
func scaleS16(b []byte, g float64) {
	for i := 0; i+1 < len(b); i += 2 {
		v := float64(int16(binary.LittleEndian.Uint16(b[i:]))) * g
		v = math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(v)))
		binary.LittleEndian.PutUint16(b[i:], uint16(int16(v)))
	}
}

// parseSeek reads the offset out of a "-ss N" parameter string.
func parseSeek(params string) int {
	fields := strings.Fields(params)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "-ss" {
			if n, err := strconv.Atoi(fields[i+1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// gainFor maps a 0-200 volume onto a linear multiplier.
func gainFor(volume int, muted bool) float64 {
	if muted {
		return 0
	}
	return float64(max(0, min(200, volume))) / 100
}
