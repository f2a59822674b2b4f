package sys

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDatabase(context.Background(), filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() {
		CloseDatabase()
		DB = nil
	})
}

func TestIDSetInMemory(t *testing.T) {
	ctx := context.Background()
	s := NewIDSet("sudoers")

	require.NoError(t, s.Add(ctx, 30))
	require.NoError(t, s.Add(ctx, 10))
	require.NoError(t, s.Add(ctx, 10))
	assert.Equal(t, []snowflake.ID{10, 30}, s.Members())
	assert.True(t, s.Contains(30))

	require.NoError(t, s.Remove(ctx, 30))
	require.NoError(t, s.Remove(ctx, 99))
	assert.Equal(t, []snowflake.ID{10}, s.Members())

	require.NoError(t, s.Rebuild(ctx, []snowflake.ID{0, 5, 5, 7}))
	assert.Equal(t, 2, s.Len(), "zero and duplicate ids are dropped")
}

func TestIDSetPersists(t *testing.T) {
	openTestDB(t)
	ctx := context.Background()

	s, err := LoadIDSet(ctx, "blocklist")
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, 42))
	require.NoError(t, s.Add(ctx, 43))
	require.NoError(t, s.Remove(ctx, 42))

	reloaded, err := LoadIDSet(ctx, "blocklist", 7)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{7, 43}, reloaded.Members())

	other, err := LoadIDSet(ctx, "sudoers")
	require.NoError(t, err)
	assert.Zero(t, other.Len(), "lists are independent")
}

func TestCallStore(t *testing.T) {
	openTestDB(t)
	ctx := context.Background()
	var store CallStore

	ok, err := store.HasCall(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.AddCall(ctx, 1))
	require.NoError(t, store.SetPaused(ctx, 1, true))
	paused, err := store.IsPaused(ctx, 1)
	require.NoError(t, err)
	assert.True(t, paused)

	require.NoError(t, store.AddCall(ctx, 1))
	paused, _ = store.IsPaused(ctx, 1)
	assert.False(t, paused, "re-adding a call clears pause")

	require.NoError(t, store.SetAssistant(ctx, 1, 2))
	idx, found, err := store.Assistant(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, idx)

	require.NoError(t, store.ClearAssistant(ctx, 1))
	_, found, _ = store.Assistant(ctx, 1)
	assert.False(t, found)

	require.NoError(t, ResetCalls(ctx))
	ok, _ = store.HasCall(ctx, 1)
	assert.False(t, ok)
}

func TestChatSettings(t *testing.T) {
	openTestDB(t)
	ctx := context.Background()

	ch, err := GetChatChannel(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, ch)

	require.NoError(t, SetChatChannel(ctx, 5, 900))
	require.NoError(t, SetChatLang(ctx, 5, "es"))
	ch, _ = GetChatChannel(ctx, 5)
	assert.Equal(t, snowflake.ID(900), ch)

	assert.Equal(t, "🌐 Idioma cambiado a `es`.", Lang(ctx, 5).Get("language_set", "es"))
	assert.Equal(t, "🌐 Language set to `en`.", Lang(ctx, 6).Get("language_set", "en"), "unset chats use the default")
}

func TestStringsGet(t *testing.T) {
	es := langTables["es"]
	assert.Equal(t, "missing_key", es.Get("missing_key"))
	assert.Equal(t, langTables["en"].Get("unknown_action"), Strings{}.Get("unknown_action"), "falls back to English")
	assert.Contains(t, langTables["en"].Get("playlist_queued", 4), "4")
}

func TestMatchLang(t *testing.T) {
	assert.Equal(t, "en", MatchLang(""))
	assert.Equal(t, "es", MatchLang("es-MX"))
	assert.Equal(t, "id", MatchLang("id"))
	assert.Equal(t, "en", MatchLang("fr"))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("RES_DUR", "1500ms")
	assert.Equal(t, 1500*time.Millisecond, envDuration("RES_DUR", time.Second))
	t.Setenv("RES_DUR", "3")
	assert.Equal(t, 3*time.Second, envDuration("RES_DUR", time.Second))
	t.Setenv("RES_DUR", "soon")
	assert.Equal(t, time.Second, envDuration("RES_DUR", time.Second))

	t.Setenv("RES_INT", " 12 ")
	assert.Equal(t, 12, envInt("RES_INT", 1))

	assert.Nil(t, splitList("  "))
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b,"))
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Token: "x", DownloadRetry: 3, DurationLimit: time.Hour}
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Token = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.GuildID = "123"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.DownloadRetry = 0
	assert.Error(t, bad.Validate())

	assert.True(t, (&Config{OwnerIDs: []string{"1", "2"}}).IsOwner("2"))
	assert.False(t, (&Config{}).IsOwner("2"))
}

func TestNewCard(t *testing.T) {
	plain := NewCard("hello", "")
	require.Len(t, plain.Components, 1)

	row := discord.NewActionRow(discord.NewPrimaryButton("Go", "go"))
	withRows := NewCard("hello", "https://img.example/x.png", row)
	require.Len(t, withRows.Components, 3)
	_, isSection := withRows.Components[0].(discord.SectionComponent)
	assert.True(t, isSection)
}

func TestClientReadyCallbacks(t *testing.T) {
	saved := onClientReadyCallbacks
	t.Cleanup(func() { onClientReadyCallbacks = saved })
	onClientReadyCallbacks = nil

	var order []int
	OnClientReady(func(context.Context, *bot.Client) { order = append(order, 1) })
	OnClientReady(func(context.Context, *bot.Client) { order = append(order, 2) })

	TriggerClientReady(context.Background(), nil)
	assert.Equal(t, []int{1, 2}, order)
}
