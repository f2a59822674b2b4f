package proc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/media"
)

type fakeConn struct {
	mu      sync.Mutex
	specs   []StreamSpec
	playErr []error
	volumes []int
	leaves  int
	calls   int
	callErr error
	ping    time.Duration
	delay   time.Duration

	inFlight   atomic.Int32
	violations atomic.Int32
	events     chan Event
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan Event, 8)}
}

func (c *fakeConn) enter() func() {
	if c.inFlight.Add(1) > 1 {
		c.violations.Add(1)
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return func() { c.inFlight.Add(-1) }
}

func (c *fakeConn) Play(_ context.Context, _ snowflake.ID, spec StreamSpec) error {
	defer c.enter()()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.specs = append(c.specs, spec)
	if len(c.playErr) > 0 {
		err := c.playErr[0]
		c.playErr = c.playErr[1:]
		return err
	}
	return nil
}

func (c *fakeConn) Pause(context.Context, snowflake.ID) (bool, error)  { return true, nil }
func (c *fakeConn) Resume(context.Context, snowflake.ID) (bool, error) { return true, nil }
func (c *fakeConn) Mute(context.Context, snowflake.ID) (bool, error)   { return true, nil }
func (c *fakeConn) Unmute(context.Context, snowflake.ID) (bool, error) { return true, nil }

func (c *fakeConn) ChangeVolume(_ context.Context, _ snowflake.ID, v int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volumes = append(c.volumes, v)
	return nil
}

func (c *fakeConn) LeaveCall(context.Context, snowflake.ID, bool) error {
	defer c.enter()()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaves++
	return nil
}

func (c *fakeConn) Ping() time.Duration { return c.ping }

func (c *fakeConn) Calls(context.Context) (int, error) { return c.calls, c.callErr }

func (c *fakeConn) Events() <-chan Event { return c.events }

func (c *fakeConn) plays() []StreamSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]StreamSpec(nil), c.specs...)
}

func (c *fakeConn) leaveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leaves
}

type fakeStore struct {
	mu        sync.Mutex
	calls     map[snowflake.ID]bool
	paused    map[snowflake.ID]bool
	assistant map[snowflake.ID]int
	adds      int
	removes   int
	// onHasCall runs outside the store lock on every HasCall.
	onHasCall func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		calls:     make(map[snowflake.ID]bool),
		paused:    make(map[snowflake.ID]bool),
		assistant: make(map[snowflake.ID]int),
	}
}

func (s *fakeStore) AddCall(_ context.Context, chat snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adds++
	s.calls[chat] = true
	return nil
}

func (s *fakeStore) RemoveCall(_ context.Context, chat snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removes++
	delete(s.calls, chat)
	return nil
}

func (s *fakeStore) HasCall(_ context.Context, chat snowflake.ID) (bool, error) {
	s.mu.Lock()
	has, hook := s.calls[chat], s.onHasCall
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return has, nil
}

func (s *fakeStore) hookHasCall(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onHasCall = f
}

func (s *fakeStore) SetPaused(_ context.Context, chat snowflake.ID, p bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[chat] = p
	return nil
}

func (s *fakeStore) IsPaused(_ context.Context, chat snowflake.ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused[chat], nil
}

func (s *fakeStore) Assistant(_ context.Context, chat snowflake.ID) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.assistant[chat]
	return idx, ok, nil
}

func (s *fakeStore) SetAssistant(_ context.Context, chat snowflake.ID, idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assistant[chat] = idx
	return nil
}

func (s *fakeStore) ClearAssistant(_ context.Context, chat snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assistant, chat)
	return nil
}

func (s *fakeStore) counts() (adds, removes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adds, s.removes
}

type sent struct {
	op   string
	ref  media.MessageRef
	text string
}

type fakeMessenger struct {
	mu      sync.Mutex
	next    atomic.Int64
	log     []sent
	editErr error
}

func (m *fakeMessenger) record(op string, ref media.MessageRef, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, sent{op, ref, text})
}

func (m *fakeMessenger) SendMessage(_ context.Context, _ snowflake.ID, msg Message) (media.MessageRef, error) {
	ref := media.MessageRef{ChannelID: 1, MessageID: snowflake.ID(m.next.Add(1))}
	m.record("send", ref, msg.Text)
	return ref, nil
}

func (m *fakeMessenger) EditText(_ context.Context, ref media.MessageRef, text string) error {
	if m.editErr != nil {
		return m.editErr
	}
	m.record("edit", ref, text)
	return nil
}

func (m *fakeMessenger) EditMedia(_ context.Context, ref media.MessageRef, msg Message) (media.MessageRef, error) {
	if m.editErr != nil {
		return media.MessageRef{}, m.editErr
	}
	m.record("edit", ref, msg.Text)
	return ref, nil
}

func (m *fakeMessenger) DeleteMessages(_ context.Context, refs ...media.MessageRef) error {
	for _, r := range refs {
		m.record("delete", r, "")
	}
	return nil
}

func (m *fakeMessenger) entries() []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sent(nil), m.log...)
}

func (m *fakeMessenger) texts() []string {
	var out []string
	for _, e := range m.entries() {
		if e.text != "" {
			out = append(out, e.text)
		}
	}
	return out
}

type fakeLang struct{}

func (fakeLang) Text(_ context.Context, _ snowflake.ID, key string, args ...any) string {
	if len(args) == 0 {
		return key
	}
	return key + ":" + fmt.Sprint(args...)
}

type fakeAcquirer struct {
	err   error
	calls atomic.Int32
}

func (a *fakeAcquirer) Acquire(_ context.Context, d media.Descriptor) error {
	a.calls.Add(1)
	if a.err != nil {
		return a.err
	}
	d.Base().FilePath = "/cache/" + d.Base().ID + ".webm"
	return nil
}

var errBoom = errors.New("boom")

type harness struct {
	o     *Orchestrator
	conn  *fakeConn
	store *fakeStore
	msg   *fakeMessenger
	acq   *fakeAcquirer
}

func newHarness() *harness {
	h := &harness{
		conn:  newFakeConn(),
		store: newFakeStore(),
		msg:   &fakeMessenger{},
		acq:   &fakeAcquirer{},
	}
	o, err := NewOrchestrator(Deps{
		Conns:     []Connection{h.conn},
		Store:     h.store,
		Messenger: h.msg,
		Lang:      fakeLang{},
		Acquirer:  h.acq,
	})
	if err != nil {
		panic(err)
	}
	h.o = o
	return h
}

func track(id string, withFile bool) *media.Track {
	t := &media.Track{
		Common:   media.Common{ID: id, Title: "title " + id, URL: "https://youtu.be/" + id, Duration: "03:00", DurationSec: 180, User: "alice"},
		Platform: media.PlatformYouTube,
		Thumb:    "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg",
	}
	if withFile {
		t.FilePath = "/cache/" + id + ".webm"
	}
	return t
}
