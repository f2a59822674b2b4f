package proc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceStatuses(t *testing.T) {
	h := newHarness()
	h.conn.calls = 3
	h.conn.ping = 40 * time.Millisecond
	p := &presence{orch: h.o, gatewayPing: func() time.Duration { return 0 }}

	got := p.statuses(context.Background())
	require.Len(t, got, 3)
	assert.Equal(t, "3 active calls", got[0])
	assert.Equal(t, "Voice: 40ms", got[1])
	assert.Contains(t, got[2], "Uptime:")
}

func TestPresenceIdleShowsUptime(t *testing.T) {
	p := &presence{orch: newHarness().o}
	got := p.statuses(context.Background())
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "Uptime:")
}

func TestPresencePickAvoidsRepeat(t *testing.T) {
	p := &presence{}
	for range 20 {
		prev := p.last
		got := p.pick([]string{"a", "b"})
		assert.NotEqual(t, prev, got)
	}
	assert.Equal(t, "only", p.pick([]string{"only"}))
	assert.Equal(t, "only", p.pick([]string{"only"}), "a lone status repeats")
}
